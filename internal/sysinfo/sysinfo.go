package sysinfo

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dfslab/dfsbench/pkg/bench/model"
)

const gib = 1 << 30

// Options configures a system snapshot.
type Options struct {
	// Sampler provides memory information. If nil, memory fields are zero.
	Sampler *Sampler

	// Dir is the directory whose filesystem usage is reported.
	Dir string

	// Environment is the list of KEY=VALUE pairs to store in the snapshot.
	// A nil slice disables environment capture.
	Environment []string
}

// Snapshot returns the current SystemInfo. Fields that cannot be read are
// left empty and logged.
func Snapshot(opts Options) model.SystemInfo {
	info := model.SystemInfo{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		OS:        osIdentity(),
		GoVersion: runtime.Version(),
		CPUCount:  runtime.NumCPU(),
	}
	if h, err := os.Hostname(); err == nil {
		info.Hostname = h
	}
	if opts.Sampler != nil {
		mem, err := opts.Sampler.Memory()
		if err != nil {
			log.Warn("cannot read memory info", "err", err)
		} else {
			info.MemoryTotalGB = float64(mem.MemoryTotal) / gib
			info.MemoryAvailableGB = float64(mem.MemoryAvailable) / gib
		}
	}
	if opts.Dir != "" {
		du, err := diskUsage(opts.Dir)
		if err != nil {
			log.Warn("cannot read disk usage", "dir", opts.Dir, "err", err)
		} else {
			info.DiskUsage = du
		}
	}
	if opts.Environment != nil {
		info.Environment = parseEnviron(opts.Environment)
	}
	return info
}

func parseEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}
