// Package trial runs a single benchmark trial: it generates a file, uploads
// it, downloads it back and checks that the sizes match.
package trial

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dfslab/dfsbench/internal/executor"
	"github.com/dfslab/dfsbench/internal/metrics"
	"github.com/dfslab/dfsbench/pkg/bench/model"
)

// ErrIntegrity means the downloaded file does not have the size of the
// uploaded one.
var ErrIntegrity = errors.New("downloaded file size mismatch")

// Generator creates workload files.
type Generator interface {
	Create(size int64, name string, ft model.FileType) (string, error)
}

// Operator performs DFS operations.
type Operator interface {
	Put(ctx context.Context, localPath, remoteName string) executor.Outcome
	Get(ctx context.Context, remoteName, localPath string) executor.Outcome
}

// Runner runs trials sequentially and keeps their results in order. It is
// not safe for concurrent use.
type Runner struct {
	dir       string
	generator Generator
	operator  Operator

	results []model.TrialResult
}

// New returns a Runner downloading files into dir.
func New(dir string, generator Generator, operator Operator) *Runner {
	return &Runner{
		dir:       dir,
		generator: generator,
		operator:  operator,
	}
}

// Names returns the local, remote and downloaded file names of a trial.
func Names(testID, sizeMB int, ft model.FileType) (local, remote, downloaded string) {
	suffix := fmt.Sprintf("%d_%dMB_%s.bin", testID, sizeMB, ft)
	return "test_" + suffix, "remote_" + suffix, "downloaded_" + suffix
}

// Run executes one trial. The GET is only attempted if the PUT succeeded.
// Local files are removed before returning. Run fails, and records no result,
// if the workload file cannot be generated or if ctx is canceled while an
// operation is running.
func (r *Runner) Run(ctx context.Context, sizeMB, testID int, ft model.FileType) (model.TrialResult, error) {
	size := int64(sizeMB) * model.MiB
	localName, remoteName, downloadedName := Names(testID, sizeMB, ft)
	downloaded := filepath.Join(r.dir, downloadedName)

	local, err := r.generator.Create(size, localName, ft)
	if err != nil {
		return model.TrialResult{}, fmt.Errorf("cannot generate workload file: %w", err)
	}
	defer remove(local)
	defer remove(downloaded)

	result := model.TrialResult{
		FileSizeMB:    sizeMB,
		FileSizeBytes: size,
		FileType:      ft,
		TestID:        testID,
	}

	put := r.operator.Put(ctx, local, remoteName)
	if errors.Is(put.Err, context.Canceled) {
		return model.TrialResult{}, fmt.Errorf("PUT interrupted: %w", put.Err)
	}
	result.PutSuccess = put.Success
	if put.Success {
		result.PutLatency = put.Latency
		result.PutThroughput = put.Throughput
		result.PutCPUUsage = put.CPUUsage
		result.PutMemoryUsage = put.MemoryUsage
		observe(executor.OpPut, ft, put)

		get := r.operator.Get(ctx, remoteName, downloaded)
		if errors.Is(get.Err, context.Canceled) {
			return model.TrialResult{}, fmt.Errorf("GET interrupted: %w", get.Err)
		}
		if get.Success {
			result.GetLatency = get.Latency
			result.GetThroughput = get.Throughput
			result.GetCPUUsage = get.CPUUsage
			result.GetMemoryUsage = get.MemoryUsage
			observe(executor.OpGet, ft, get)

			result.IntegrityOK = get.Bytes == size
			if !result.IntegrityOK {
				log.Error("integrity check failed", "remote", remoteName,
					"err", fmt.Errorf("%w: got %d bytes, want %d", ErrIntegrity, get.Bytes, size))
			}
		}
		// A download of the wrong size is not a successful GET.
		result.GetSuccess = result.IntegrityOK
	}
	result.Timestamp = time.Now().Format(time.RFC3339Nano)

	metrics.TrialsTotal.WithLabelValues(string(ft), strconv.FormatBool(result.IntegrityOK)).Inc()
	r.results = append(r.results, result)
	return result, nil
}

// Results returns the results recorded so far, in execution order.
func (r *Runner) Results() []model.TrialResult {
	return r.results
}

func observe(op string, ft model.FileType, out executor.Outcome) {
	op = strings.ToLower(op)
	metrics.OperationLatency.WithLabelValues(op, string(ft)).Observe(out.Latency)
	metrics.OperationThroughput.WithLabelValues(op, string(ft)).Observe(out.Throughput)
}

func remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("cannot remove local file", "path", path, "err", err)
	}
}
