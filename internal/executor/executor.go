// Package executor runs single PUT and GET operations through the external
// DFS client and measures them.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dfslab/dfsbench/internal/metrics"
	"github.com/dfslab/dfsbench/internal/sysinfo"
	"github.com/dfslab/dfsbench/pkg/bench/model"
)

const (
	// DefaultTimeout bounds every client invocation.
	DefaultTimeout = 120 * time.Second

	// DefaultPutMarker is printed by the DFS client after a successful upload.
	DefaultPutMarker = "File uploaded successfully"

	// OpPut and OpGet are the client subcommands.
	OpPut = "PUT"
	OpGet = "GET"

	// waitDelay is how long to wait for the output pipes after the client
	// has been killed.
	waitDelay = 2 * time.Second
)

var (
	// ErrTimeout means the client did not complete within the timeout and
	// was killed.
	ErrTimeout = errors.New("operation timed out")
	// ErrLaunch means the client could not be started.
	ErrLaunch = errors.New("cannot launch client")
	// ErrMissingMarker means the client exited successfully without printing
	// the expected confirmation.
	ErrMissingMarker = errors.New("confirmation marker not found in client output")
	// ErrMissingFile means a GET exited successfully without creating the
	// local file.
	ErrMissingFile = errors.New("downloaded file not found")
)

// ExitError is returned when the client exits with a non-zero code.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("client exited with code %d: %s", e.Code, strings.TrimSpace(e.Stderr))
}

// Sampler reads host resource usage.
type Sampler interface {
	Sample() (sysinfo.Sample, error)
}

// Config is the configuration for an Executor.
type Config struct {
	// Client is the path of the DFS client executable.
	Client string

	// ClientConfig is the path of the client configuration file, passed as
	// the first argument of every invocation.
	ClientConfig string

	// Dir is the working directory of the client process.
	Dir string

	// Timeout bounds each invocation. Zero means DefaultTimeout.
	Timeout time.Duration

	// PutMarker must appear in the client's stdout for a PUT to succeed.
	PutMarker string

	// GetMarker, if not empty, must appear in the client's stdout for a GET
	// to succeed.
	GetMarker string

	// Sampler measures resource usage around each invocation. If nil,
	// resource usage is reported as zero.
	Sampler Sampler
}

// Outcome is the measured result of one operation.
type Outcome struct {
	// Success is true if the operation completed and was confirmed.
	Success bool
	// Latency is the wall-clock duration in seconds. Zero on failure.
	Latency float64
	// Throughput is Bytes/Latency in MiB/s. Zero on failure.
	Throughput float64
	// CPUUsage is the mean of the before and after CPU samples.
	CPUUsage float64
	// MemoryUsage is the mean of the before and after memory samples.
	MemoryUsage float64
	// Bytes is the size of the uploaded file for PUT, or of the downloaded
	// file for GET.
	Bytes int64
	// Err describes why the operation failed.
	Err error
}

// Executor invokes the DFS client.
type Executor struct {
	config Config
}

// New returns an Executor with the provided config.
func New(config Config) *Executor {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Executor{config: config}
}

// Put uploads localPath as remoteName.
func (e *Executor) Put(ctx context.Context, localPath, remoteName string) Outcome {
	fi, err := os.Stat(localPath)
	if err != nil {
		return e.fail(OpPut, err)
	}
	return e.run(ctx, OpPut, []string{localPath, remoteName}, e.config.PutMarker,
		func() (int64, error) { return fi.Size(), nil })
}

// Get downloads remoteName into localPath.
func (e *Executor) Get(ctx context.Context, remoteName, localPath string) Outcome {
	return e.run(ctx, OpGet, []string{remoteName, localPath}, e.config.GetMarker,
		func() (int64, error) {
			fi, err := os.Stat(localPath)
			if err != nil {
				return 0, fmt.Errorf("%w: %v", ErrMissingFile, err)
			}
			return fi.Size(), nil
		})
}

// run invokes the client for op and measures it. size returns the number of
// bytes transferred once the client has exited successfully.
func (e *Executor) run(ctx context.Context, op string, args []string, marker string,
	size func() (int64, error)) Outcome {
	before := e.sample()
	start := time.Now()

	stdout, stderr, err := e.invoke(ctx, op, args)

	elapsed := time.Since(start)
	after := e.sample()

	if err == nil && marker != "" && !bytes.Contains(stdout, []byte(marker)) {
		err = ErrMissingMarker
	}
	var n int64
	if err == nil {
		n, err = size()
	}
	if err != nil {
		log.Warn("operation failed", "op", op, "args", args, "err", err,
			"stderr", strings.TrimSpace(string(stderr)))
		return e.fail(op, err)
	}

	out := Outcome{
		Success:     true,
		Latency:     elapsed.Seconds(),
		CPUUsage:    (before.CPUPercent + after.CPUPercent) / 2,
		MemoryUsage: (before.MemoryPercent + after.MemoryPercent) / 2,
		Bytes:       n,
	}
	if out.Latency > 0 {
		out.Throughput = float64(n) / out.Latency / model.MiB
	}
	metrics.OperationsTotal.WithLabelValues(strings.ToLower(op), "ok").Inc()
	log.Debug("operation succeeded", "op", op, "bytes", n, "latency", elapsed,
		"throughput", out.Throughput)
	return out
}

// invoke runs the client and classifies its failure, if any.
func (e *Executor) invoke(ctx context.Context, op string, args []string) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	argv := append([]string{e.config.ClientConfig, op}, args...)
	cmd := exec.CommandContext(ctx, e.config.Client, argv...)
	cmd.Dir = e.config.Dir
	cmd.WaitDelay = waitDelay
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return stdout.Bytes(), stderr.Bytes(), nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, stderr.Bytes(), fmt.Errorf("%w after %v", ErrTimeout, e.config.Timeout)
	case ctx.Err() != nil:
		return nil, stderr.Bytes(), ctx.Err()
	case errors.As(err, &exitErr):
		return stdout.Bytes(), stderr.Bytes(), &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
	default:
		return nil, nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
}

func (e *Executor) sample() sysinfo.Sample {
	if e.config.Sampler == nil {
		return sysinfo.Sample{}
	}
	s, err := e.config.Sampler.Sample()
	if err != nil {
		log.Debug("resource usage unknown", "err", err)
		return sysinfo.Sample{}
	}
	return s
}

func (e *Executor) fail(op string, err error) Outcome {
	metrics.OperationsTotal.WithLabelValues(strings.ToLower(op), resultLabel(err)).Inc()
	return Outcome{Err: err}
}

func resultLabel(err error) string {
	var exitErr *ExitError
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrLaunch):
		return "launch-error"
	case errors.As(err, &exitErr):
		return "exit-error"
	case errors.Is(err, ErrMissingMarker):
		return "missing-marker"
	case errors.Is(err, ErrMissingFile):
		return "missing-file"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
