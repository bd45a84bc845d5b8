// Package lifecycle prepares and tears down the benchmark environment: the
// local working directory, the DFS cluster processes and the data the DFS
// servers persisted during the session.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dfslab/dfsbench/internal/metrics"
)

const (
	// DefaultStartTimeout bounds the cluster start command.
	DefaultStartTimeout = 15 * time.Second
	// DefaultStopTimeout bounds the cluster stop command.
	DefaultStopTimeout = 10 * time.Second
	// DefaultSettle is how long to wait after starting the cluster.
	DefaultSettle = 3 * time.Second
)

var (
	// DefaultStartCommand starts the DFS cluster.
	DefaultStartCommand = []string{"make", "start"}
	// DefaultStopCommand kills any running DFS process.
	DefaultStopCommand = []string{"make", "kill"}
	// DefaultServerDirs are the per-node data directories, relative to the
	// DFS directory.
	DefaultServerDirs = []string{"server/DFS1", "server/DFS2", "server/DFS3", "server/DFS4"}
	// DefaultKeep lists the pre-existing account directories that cleanup
	// never removes.
	DefaultKeep = []string{"Bob", "Alice"}
)

// EnvironmentError is a failed cluster control command. It is logged and
// never stops the session.
type EnvironmentError struct {
	Command string
	Output  string
	Err     error
}

func (e *EnvironmentError) Error() string {
	msg := fmt.Sprintf("%q failed: %v", e.Command, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// Config is the configuration for a Manager.
type Config struct {
	// WorkDir is the local directory holding generated and downloaded files.
	WorkDir string

	// DFSDir is the DFS installation directory. Cluster commands run from
	// here and ServerDirs are relative to it.
	DFSDir string

	// StartCommand and StopCommand control the cluster. Nil means
	// DefaultStartCommand and DefaultStopCommand.
	StartCommand []string
	StopCommand  []string

	// StartTimeout and StopTimeout bound the cluster commands. Zero means
	// the package defaults.
	StartTimeout time.Duration
	StopTimeout  time.Duration

	// Settle is the wait after starting the cluster. Zero disables it.
	Settle time.Duration

	// ServerDirs are the per-node data directories, relative to DFSDir.
	ServerDirs []string

	// Keep lists entry names in ServerDirs that are never removed.
	Keep []string
}

// Manager manages the environment of a benchmark session.
type Manager struct {
	config    Config
	startTime time.Time
}

// New returns a Manager for config, filling unset fields with defaults.
func New(config Config) *Manager {
	if config.StartCommand == nil {
		config.StartCommand = DefaultStartCommand
	}
	if config.StopCommand == nil {
		config.StopCommand = DefaultStopCommand
	}
	if config.StartTimeout <= 0 {
		config.StartTimeout = DefaultStartTimeout
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = DefaultStopTimeout
	}
	return &Manager{config: config}
}

// Setup cleans any leftover state, creates the working directory, starts the
// cluster and waits for it to settle. A cluster start failure is logged and
// does not fail Setup.
func (m *Manager) Setup(ctx context.Context) error {
	log.Info("Setting up test environment", "workdir", m.config.WorkDir)
	if err := m.Cleanup(ctx); err != nil {
		return err
	}
	if err := os.MkdirAll(m.config.WorkDir, 0o755); err != nil {
		return fmt.Errorf("cannot create working directory: %w", err)
	}

	log.Info("Starting DFS servers")
	if err := m.command(ctx, m.config.StartCommand, m.config.StartTimeout); err != nil {
		log.Warn("server startup may have issues", "err", err)
	}
	if m.config.Settle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.Settle):
		}
	}
	m.startTime = time.Now()
	return nil
}

// StartTime returns the time Setup completed.
func (m *Manager) StartTime() time.Time {
	return m.startTime
}

// Cleanup stops the cluster, removes the working directory and removes every
// entry of the server data directories except the Keep list. It can be
// called any number of times. Stop failures are logged and swallowed. The
// returned error only reports files that could not be removed.
func (m *Manager) Cleanup(ctx context.Context) error {
	if err := m.command(ctx, m.config.StopCommand, m.config.StopTimeout); err != nil {
		log.Debug("cannot stop DFS servers", "err", err)
	}

	var errs []error
	if err := os.RemoveAll(m.config.WorkDir); err != nil {
		errs = append(errs, err)
	}
	keep := map[string]bool{}
	for _, k := range m.config.Keep {
		keep[k] = true
	}
	for _, d := range m.config.ServerDirs {
		dir := filepath.Join(m.config.DFSDir, d)
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, e := range entries {
			if keep[e.Name()] {
				continue
			}
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Shutdown tears the environment down. It must run at the end of every
// session, however the session ended, so ctx should not be the session's
// own (possibly canceled) context.
func (m *Manager) Shutdown(ctx context.Context) {
	log.Info("Shutting down test environment")
	if err := m.Cleanup(ctx); err != nil {
		log.Error("cleanup incomplete", "err", err)
	}
}

// command runs argv from DFSDir, bounded by timeout.
func (m *Manager) command(ctx context.Context, argv []string, timeout time.Duration) error {
	if len(argv) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = m.config.DFSDir
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %v: %w", timeout, err)
	}
	metrics.EnvironmentErrors.WithLabelValues(strings.Join(argv, " ")).Inc()
	return &EnvironmentError{Command: strings.Join(argv, " "), Output: string(out), Err: err}
}
