//go:build !linux && !darwin

package sysinfo

import (
	"errors"
	"runtime"

	"github.com/dfslab/dfsbench/pkg/bench/model"
)

func osIdentity() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

func diskUsage(dir string) (*model.DiskUsage, error) {
	return nil, errors.New("disk usage not supported on " + runtime.GOOS)
}
