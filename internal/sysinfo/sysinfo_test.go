package sysinfo_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dfslab/dfsbench/internal/sysinfo"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/go/testingx"
)

// fakeProc creates a minimal procfs tree with the given meminfo content.
func fakeProc(t *testing.T, meminfo string) string {
	dir := t.TempDir()
	stat := "cpu  100 0 50 800 10 0 0 0 0 0\ncpu0 100 0 50 800 10 0 0 0 0 0\nbtime 1700000000\n"
	rtx.Must(os.WriteFile(filepath.Join(dir, "stat"), []byte(stat), 0o644), "cannot write stat")
	rtx.Must(os.WriteFile(filepath.Join(dir, "meminfo"), []byte(meminfo), 0o644), "cannot write meminfo")
	return dir
}

func TestSampler_Sample(t *testing.T) {
	t.Run("fake-procfs", func(t *testing.T) {
		dir := fakeProc(t, "MemTotal:        1000 kB\nMemFree:          100 kB\nMemAvailable:     250 kB\n")
		s, err := sysinfo.NewSampler(dir, 10*time.Millisecond)
		testingx.Must(t, err, "cannot create sampler")
		got, err := s.Sample()
		testingx.Must(t, err, "cannot sample")
		if got.MemoryPercent != 75 {
			t.Errorf("MemoryPercent = %f, want 75", got.MemoryPercent)
		}
		if got.MemoryAvailable != 250*1024 || got.MemoryTotal != 1000*1024 {
			t.Errorf("unexpected memory values: %+v", got)
		}
		// The fake stat file never changes, so no CPU time elapses.
		if got.CPUPercent != 0 {
			t.Errorf("CPUPercent = %f, want 0", got.CPUPercent)
		}
	})

	t.Run("memfree-fallback", func(t *testing.T) {
		dir := fakeProc(t, "MemTotal:        1000 kB\nMemFree:          100 kB\nBuffers:          50 kB\nCached:          350 kB\n")
		s, err := sysinfo.NewSampler(dir, time.Millisecond)
		testingx.Must(t, err, "cannot create sampler")
		got, err := s.Memory()
		testingx.Must(t, err, "cannot read memory")
		if got.MemoryPercent != 50 {
			t.Errorf("MemoryPercent = %f, want 50", got.MemoryPercent)
		}
	})

	t.Run("real-procfs", func(t *testing.T) {
		if _, err := os.Stat("/proc/stat"); err != nil {
			t.Skip("/proc is not available")
		}
		s, err := sysinfo.NewSampler("/proc", time.Second)
		testingx.Must(t, err, "cannot create sampler")
		start := time.Now()
		got, err := s.Sample()
		testingx.Must(t, err, "cannot sample")
		if time.Since(start) > time.Second {
			t.Errorf("Sample() took %v, the interval should be capped", time.Since(start))
		}
		if got.CPUPercent < 0 || got.CPUPercent > 100 {
			t.Errorf("CPUPercent out of range: %f", got.CPUPercent)
		}
		if got.MemoryPercent <= 0 || got.MemoryPercent > 100 {
			t.Errorf("MemoryPercent out of range: %f", got.MemoryPercent)
		}
	})
}

func TestSampler_Errors(t *testing.T) {
	t.Run("missing-mount", func(t *testing.T) {
		_, err := sysinfo.NewSampler(filepath.Join(t.TempDir(), "nope"), 0)
		if !errors.Is(err, sysinfo.ErrSensor) {
			t.Errorf("NewSampler() error = %v, want ErrSensor", err)
		}
	})
	t.Run("missing-files", func(t *testing.T) {
		s, err := sysinfo.NewSampler(t.TempDir(), time.Millisecond)
		testingx.Must(t, err, "cannot create sampler")
		if _, err := s.Sample(); !errors.Is(err, sysinfo.ErrSensor) {
			t.Errorf("Sample() error = %v, want ErrSensor", err)
		}
	})
}

func TestSnapshot(t *testing.T) {
	dir := fakeProc(t, "MemTotal:        2097152 kB\nMemAvailable:    1048576 kB\n")
	s, err := sysinfo.NewSampler(dir, time.Millisecond)
	testingx.Must(t, err, "cannot create sampler")

	t.Run("without-environment", func(t *testing.T) {
		info := sysinfo.Snapshot(sysinfo.Options{Sampler: s, Dir: t.TempDir()})
		if info.CPUCount <= 0 || info.OS == "" || info.Timestamp == "" {
			t.Errorf("incomplete snapshot: %+v", info)
		}
		if info.MemoryTotalGB != 2 || info.MemoryAvailableGB != 1 {
			t.Errorf("memory = %f/%f GB, want 2/1", info.MemoryTotalGB, info.MemoryAvailableGB)
		}
		if info.Environment != nil {
			t.Errorf("environment captured without being requested")
		}
	})

	t.Run("with-environment", func(t *testing.T) {
		info := sysinfo.Snapshot(sysinfo.Options{
			Environment: []string{"A=1", "B=x=y", "malformed", "=empty"},
		})
		if len(info.Environment) != 2 || info.Environment["A"] != "1" || info.Environment["B"] != "x=y" {
			t.Errorf("unexpected environment: %v", info.Environment)
		}
		if info.MemoryTotalGB != 0 || info.DiskUsage != nil {
			t.Errorf("memory/disk should be empty without sampler and dir: %+v", info)
		}
	})
}
