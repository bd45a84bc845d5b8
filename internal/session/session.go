// Package session runs a complete benchmark session: environment setup, the
// trial loop, report persistence and the final teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dfslab/dfsbench/internal/persistence"
	"github.com/dfslab/dfsbench/pkg/bench/model"
	"github.com/dfslab/dfsbench/pkg/version"
	"github.com/google/uuid"
	"github.com/m-lab/go/prometheusx"
)

// ErrPanic is returned when the trial loop panicked. The session is still
// shut down and its partial report persisted.
var ErrPanic = errors.New("session panicked")

// Environment is the lifecycle of the system under test.
type Environment interface {
	Setup(ctx context.Context) error
	Shutdown(ctx context.Context)
	StartTime() time.Time
}

// TrialRunner runs trials and keeps their results.
type TrialRunner interface {
	Run(ctx context.Context, sizeMB, testID int, ft model.FileType) (model.TrialResult, error)
	Results() []model.TrialResult
}

// Config is the configuration of a Session.
type Config struct {
	// Sizes are the file sizes to test, in MiB.
	Sizes []int
	// Iterations is the number of trials for every (type, size) pair.
	Iterations int
	// Types are the file types to test.
	Types []model.FileType

	// Output is the path of the report artifact.
	Output string
	// DataDir, if not empty, also receives a gzipped archival copy of the
	// report under DataDir/dfsbench/YYYY/MM/DD.
	DataDir string

	// ShutdownTimeout bounds the final teardown.
	ShutdownTimeout time.Duration
}

// Session is a single benchmark run.
type Session struct {
	// ID uniquely identifies the session.
	ID string

	config Config
	env    Environment
	runner TrialRunner
	info   model.SystemInfo
}

// New returns a Session. info is the system snapshot stored in the report.
func New(config Config, env Environment, runner TrialRunner, info model.SystemInfo) *Session {
	return &Session{
		ID:     uuid.NewString(),
		config: config,
		env:    env,
		runner: runner,
		info:   info,
	}
}

// Total returns the number of trials the session runs.
func (s *Session) Total() int {
	return len(s.config.Types) * len(s.config.Sizes) * s.config.Iterations
}

// Run sets the environment up, runs every trial in type, size, iteration
// order and persists the report once. The environment is always shut down
// before Run returns, also when ctx is canceled or the trial loop panics.
// In both cases the trials completed so far are still persisted, and the
// returned error reports the cause.
func (s *Session) Run(ctx context.Context) (report *model.SessionReport, err error) {
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		s.env.Shutdown(sctx)
	}()

	if err := s.env.Setup(ctx); err != nil {
		return nil, fmt.Errorf("cannot set up test environment: %w", err)
	}

	log.Info("Starting comprehensive performance test",
		"session", s.ID, "sizes", s.config.Sizes, "types", s.config.Types,
		"iterations", s.config.Iterations, "total", s.Total())

	loopErr := s.loop(ctx)

	report = s.report()
	if perr := s.persist(report); perr != nil {
		return report, errors.Join(loopErr, perr)
	}
	return report, loopErr
}

// loop runs the trials. It stops early if ctx is canceled and converts a
// panic into ErrPanic.
func (s *Session) loop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("session loop panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	testID := 0
	for _, ft := range s.config.Types {
		for _, size := range s.config.Sizes {
			log.Info("Testing file size", "size_mb", size, "type", ft)
			for i := 0; i < s.config.Iterations; i++ {
				if err := ctx.Err(); err != nil {
					log.Warn("Test interrupted", "completed", len(s.runner.Results()), "total", s.Total())
					return err
				}
				testID++
				res, err := s.runner.Run(ctx, size, testID, ft)
				switch {
				case errors.Is(err, context.Canceled):
					log.Warn("Test interrupted", "test_id", testID, "completed", len(s.runner.Results()), "total", s.Total())
					return err
				case err != nil:
					log.Error("trial error", "type", ft, "iteration", i+1, "test_id", testID, "err", err)
				case res.PutSuccess && res.GetSuccess:
					log.Info("trial complete", "type", ft, "iteration", i+1,
						"put_mbps", fmt.Sprintf("%.2f", res.PutThroughput),
						"get_mbps", fmt.Sprintf("%.2f", res.GetThroughput))
				default:
					log.Warn("trial failed", "type", ft, "iteration", i+1, "test_id", testID,
						"put", res.PutSuccess, "get", res.GetSuccess, "integrity", res.IntegrityOK)
				}
			}
		}
	}
	return nil
}

func (s *Session) report() *model.SessionReport {
	var duration float64
	if start := s.env.StartTime(); !start.IsZero() {
		duration = time.Since(start).Seconds()
	}
	results := s.runner.Results()
	if results == nil {
		results = []model.TrialResult{}
	}
	return &model.SessionReport{
		SessionID:      s.ID,
		Version:        version.Version,
		GitShortCommit: prometheusx.GitShortCommit,
		SystemInfo:     s.info,
		Duration:       duration,
		Results:        results,
	}
}

func (s *Session) persist(report *model.SessionReport) error {
	df, err := persistence.WriteReport(s.config.Output, report)
	if err != nil {
		return fmt.Errorf("cannot save results: %w", err)
	}
	log.Info("Results saved", "path", df.Path, "results", len(report.Results))
	if s.config.DataDir == "" {
		return nil
	}
	archive, err := persistence.WriteDataFile(s.config.DataDir, "dfsbench", s.ID, report)
	if err != nil {
		return fmt.Errorf("cannot archive results: %w", err)
	}
	log.Info("Results archived", "path", archive.Path)
	return nil
}

func (s *Session) shutdownTimeout() time.Duration {
	if s.config.ShutdownTimeout > 0 {
		return s.config.ShutdownTimeout
	}
	return time.Minute
}
