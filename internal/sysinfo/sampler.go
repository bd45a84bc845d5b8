// Package sysinfo reads host resource usage and builds the system snapshot
// stored in a session report.
package sysinfo

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/procfs"
)

// DefaultInterval is the CPU sampling window. Samples never block longer
// than this.
const DefaultInterval = 100 * time.Millisecond

// ErrSensor is returned when the platform's resource accounting cannot be
// read. Callers treat the usage as unknown (zero).
var ErrSensor = errors.New("resource sensor unavailable")

// Sample is a point-in-time reading of host resource usage.
type Sample struct {
	// CPUPercent is the busy fraction of all CPUs during the sampling window,
	// in percent.
	CPUPercent float64
	// MemoryPercent is the used fraction of physical memory, in percent.
	MemoryPercent float64
	// MemoryAvailable is the memory available for new allocations, in bytes.
	MemoryAvailable uint64
	// MemoryTotal is the total physical memory, in bytes.
	MemoryTotal uint64
}

// Sampler reads CPU and memory usage from a procfs mount.
type Sampler struct {
	fs       procfs.FS
	interval time.Duration
}

// NewSampler returns a Sampler reading from the procfs mounted at mountPoint
// (usually /proc). interval is capped to DefaultInterval.
func NewSampler(mountPoint string, interval time.Duration) (*Sampler, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSensor, err)
	}
	if interval <= 0 || interval > DefaultInterval {
		interval = DefaultInterval
	}
	return &Sampler{fs: fs, interval: interval}, nil
}

// Sample measures CPU usage over the sampling window and reads the current
// memory usage.
func (s *Sampler) Sample() (Sample, error) {
	before, err := s.fs.Stat()
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrSensor, err)
	}
	time.Sleep(s.interval)
	after, err := s.fs.Stat()
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrSensor, err)
	}
	mem, err := s.Memory()
	if err != nil {
		return Sample{}, err
	}
	mem.CPUPercent = cpuPercent(before.CPUTotal, after.CPUTotal)
	return mem, nil
}

// Memory reads the memory usage only. CPUPercent is left at zero.
func (s *Sampler) Memory() (Sample, error) {
	mi, err := s.fs.Meminfo()
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrSensor, err)
	}
	if mi.MemTotal == nil || *mi.MemTotal == 0 {
		return Sample{}, fmt.Errorf("%w: MemTotal missing from meminfo", ErrSensor)
	}
	// meminfo values are in kB.
	total := *mi.MemTotal * 1024
	var avail uint64
	switch {
	case mi.MemAvailable != nil:
		avail = *mi.MemAvailable * 1024
	case mi.MemFree != nil:
		// Kernels older than 3.14 do not report MemAvailable.
		avail = *mi.MemFree * 1024
		if mi.Buffers != nil {
			avail += *mi.Buffers * 1024
		}
		if mi.Cached != nil {
			avail += *mi.Cached * 1024
		}
	}
	if avail > total {
		avail = total
	}
	return Sample{
		MemoryPercent:   float64(total-avail) / float64(total) * 100,
		MemoryAvailable: avail,
		MemoryTotal:     total,
	}, nil
}

func cpuPercent(before, after procfs.CPUStat) float64 {
	idle := (after.Idle + after.Iowait) - (before.Idle + before.Iowait)
	total := cpuTotal(after) - cpuTotal(before)
	if total <= 0 {
		return 0
	}
	busy := (total - idle) / total * 100
	if busy < 0 {
		return 0
	}
	return busy
}

func cpuTotal(c procfs.CPUStat) float64 {
	// Guest time is already accounted in User and Nice.
	return c.User + c.Nice + c.System + c.Idle + c.Iowait + c.IRQ + c.SoftIRQ + c.Steal
}
