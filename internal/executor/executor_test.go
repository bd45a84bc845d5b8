package executor_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dfslab/dfsbench/internal/executor"
	"github.com/dfslab/dfsbench/internal/sysinfo"
	"github.com/dfslab/dfsbench/pkg/bench/model"
	"github.com/m-lab/go/rtx"
)

// writeScript writes an executable shell script standing in for the DFS
// client and returns its path.
func writeScript(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "dfc")
	rtx.Must(os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755), "cannot write fake client")
	return path
}

// fakeClient stores uploaded files in store and serves them back on GET.
func fakeClient(t *testing.T, store string) string {
	return writeScript(t, fmt.Sprintf(`
case "$2" in
PUT) cp "$3" "%[1]s/$4" && echo "<<< File uploaded successfully!" ;;
GET) cp "%[1]s/$3" "$4" ;;
*) exit 2 ;;
esac
`, store))
}

type fakeSampler struct {
	samples []sysinfo.Sample
	calls   int
}

func (s *fakeSampler) Sample() (sysinfo.Sample, error) {
	if s.calls >= len(s.samples) {
		return sysinfo.Sample{}, sysinfo.ErrSensor
	}
	s.calls++
	return s.samples[s.calls-1], nil
}

func makeFile(t *testing.T, dir string, size int) string {
	path := filepath.Join(dir, "local.bin")
	rtx.Must(os.WriteFile(path, make([]byte, size), 0o644), "cannot write local file")
	return path
}

func TestExecutor_RoundTrip(t *testing.T) {
	store, work := t.TempDir(), t.TempDir()
	sampler := &fakeSampler{samples: []sysinfo.Sample{
		{CPUPercent: 10, MemoryPercent: 40},
		{CPUPercent: 30, MemoryPercent: 60},
	}}
	e := executor.New(executor.Config{
		Client:       fakeClient(t, store),
		ClientConfig: "conf/dfc.conf",
		Dir:          work,
		PutMarker:    executor.DefaultPutMarker,
		Sampler:      sampler,
	})
	size := 3*model.MiB + 17
	local := makeFile(t, work, size)

	put := e.Put(context.Background(), local, "remote.bin")
	if !put.Success || put.Err != nil {
		t.Fatalf("Put() failed: %v", put.Err)
	}
	if put.Bytes != int64(size) {
		t.Errorf("Put() Bytes = %d, want %d", put.Bytes, size)
	}
	want := float64(size) / (put.Latency * model.MiB)
	if math.Abs(put.Throughput-want) > 1e-6*want {
		t.Errorf("Put() Throughput = %f, want %f", put.Throughput, want)
	}
	if put.CPUUsage != 20 || put.MemoryUsage != 50 {
		t.Errorf("Put() usage = %f/%f, want 20/50", put.CPUUsage, put.MemoryUsage)
	}

	// The sampler is now exhausted: usage must be reported as zero.
	downloaded := filepath.Join(work, "downloaded.bin")
	get := e.Get(context.Background(), "remote.bin", downloaded)
	if !get.Success || get.Err != nil {
		t.Fatalf("Get() failed: %v", get.Err)
	}
	if get.Bytes != int64(size) {
		t.Errorf("Get() Bytes = %d, want %d", get.Bytes, size)
	}
	if get.CPUUsage != 0 || get.MemoryUsage != 0 {
		t.Errorf("Get() usage = %f/%f, want 0/0", get.CPUUsage, get.MemoryUsage)
	}
}

func TestExecutor_Failures(t *testing.T) {
	work := t.TempDir()
	local := makeFile(t, work, 1024)

	tests := []struct {
		name    string
		client  string
		timeout time.Duration
		get     bool
		check   func(error) bool
	}{
		{
			name:   "missing-marker",
			client: writeScript(t, "echo done\n"),
			check:  func(err error) bool { return errors.Is(err, executor.ErrMissingMarker) },
		},
		{
			name:   "non-zero-exit",
			client: writeScript(t, "echo 'File uploaded successfully'\necho boom >&2\nexit 3\n"),
			check: func(err error) bool {
				var exitErr *executor.ExitError
				return errors.As(err, &exitErr) && exitErr.Code == 3 &&
					strings.Contains(exitErr.Stderr, "boom")
			},
		},
		{
			name:    "timeout",
			client:  writeScript(t, "exec sleep 10\n"),
			timeout: 200 * time.Millisecond,
			check:   func(err error) bool { return errors.Is(err, executor.ErrTimeout) },
		},
		{
			name:   "launch-error",
			client: filepath.Join(t.TempDir(), "does-not-exist"),
			check:  func(err error) bool { return errors.Is(err, executor.ErrLaunch) },
		},
		{
			name:   "get-missing-file",
			client: writeScript(t, "exit 0\n"),
			get:    true,
			check:  func(err error) bool { return errors.Is(err, executor.ErrMissingFile) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := executor.New(executor.Config{
				Client:    tt.client,
				Dir:       work,
				Timeout:   tt.timeout,
				PutMarker: executor.DefaultPutMarker,
			})
			start := time.Now()
			var out executor.Outcome
			if tt.get {
				out = e.Get(context.Background(), "remote.bin", filepath.Join(work, "missing.bin"))
			} else {
				out = e.Put(context.Background(), local, "remote.bin")
			}
			if out.Success {
				t.Fatalf("operation succeeded unexpectedly")
			}
			if !tt.check(out.Err) {
				t.Errorf("unexpected error: %v", out.Err)
			}
			if out.Latency != 0 || out.Throughput != 0 || out.Bytes != 0 {
				t.Errorf("failed operation reported metrics: %+v", out)
			}
			if time.Since(start) > 5*time.Second {
				t.Errorf("operation took too long: %v", time.Since(start))
			}
		})
	}
}

func TestExecutor_Canceled(t *testing.T) {
	e := executor.New(executor.Config{Client: writeScript(t, "exec sleep 10\n"), Dir: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := e.Get(ctx, "remote.bin", filepath.Join(t.TempDir(), "x"))
	if out.Success || !errors.Is(out.Err, context.Canceled) {
		t.Errorf("Get() with canceled context = %+v", out)
	}
}
