//go:build linux || darwin

package sysinfo

import (
	"runtime"

	"github.com/dfslab/dfsbench/pkg/bench/model"
	"golang.org/x/sys/unix"
)

func osIdentity() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return runtime.GOOS + "/" + runtime.GOARCH
	}
	return unix.ByteSliceToString(u.Sysname[:]) + "-" +
		unix.ByteSliceToString(u.Release[:]) + "-" +
		unix.ByteSliceToString(u.Machine[:])
}

func diskUsage(dir string) (*model.DiskUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return nil, err
	}
	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	used := (st.Blocks - st.Bfree) * bsize
	// Bavail excludes blocks reserved for root, as df does.
	free := st.Bavail * bsize
	du := &model.DiskUsage{
		TotalGB: float64(total) / gib,
		UsedGB:  float64(used) / gib,
		FreeGB:  float64(free) / gib,
	}
	if used+free > 0 {
		du.Percent = float64(used) / float64(used+free) * 100
	}
	return du, nil
}
