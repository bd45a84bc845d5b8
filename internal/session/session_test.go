package session_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dfslab/dfsbench/internal/persistence"
	"github.com/dfslab/dfsbench/internal/session"
	"github.com/dfslab/dfsbench/pkg/bench/model"
	"github.com/m-lab/go/testingx"
)

type fakeEnv struct {
	setupErr  error
	setups    int
	shutdowns int
	start     time.Time
}

func (e *fakeEnv) Setup(ctx context.Context) error {
	e.setups++
	if e.setupErr != nil {
		return e.setupErr
	}
	e.start = time.Now().Add(-2 * time.Second)
	return nil
}

func (e *fakeEnv) Shutdown(ctx context.Context) {
	e.shutdowns++
}

func (e *fakeEnv) StartTime() time.Time {
	return e.start
}

type fakeRunner struct {
	calls   []string
	results []model.TrialResult
	// onRun is called before each trial, if set.
	onRun func(testID int)
	// failID makes the trial with this ID return failErr, or a generic
	// error if failErr is nil.
	failID  int
	failErr error
}

func (r *fakeRunner) Run(ctx context.Context, sizeMB, testID int, ft model.FileType) (model.TrialResult, error) {
	if r.onRun != nil {
		r.onRun(testID)
	}
	r.calls = append(r.calls, fmt.Sprintf("%s/%d/%d", ft, sizeMB, testID))
	if testID == r.failID {
		if r.failErr != nil {
			return model.TrialResult{}, r.failErr
		}
		return model.TrialResult{}, errors.New("cannot generate file")
	}
	res := model.TrialResult{FileSizeMB: sizeMB, FileType: ft, TestID: testID, PutSuccess: true}
	r.results = append(r.results, res)
	return res, nil
}

func (r *fakeRunner) Results() []model.TrialResult {
	return r.results
}

func config(t *testing.T) session.Config {
	return session.Config{
		Sizes:      []int{1, 5},
		Iterations: 2,
		Types:      []model.FileType{model.FileTypeText, model.FileTypeRandom},
		Output:     filepath.Join(t.TempDir(), "performance_results.json"),
	}
}

func TestSession_Run(t *testing.T) {
	env := &fakeEnv{}
	runner := &fakeRunner{failID: 3}
	cfg := config(t)
	cfg.DataDir = t.TempDir()
	s := session.New(cfg, env, runner, model.SystemInfo{CPUCount: 2})

	report, err := s.Run(context.Background())
	testingx.Must(t, err, "Run failed")

	want := []string{
		"text/1/1", "text/1/2", "text/5/3", "text/5/4",
		"random/1/5", "random/1/6", "random/5/7", "random/5/8",
	}
	if fmt.Sprint(runner.calls) != fmt.Sprint(want) {
		t.Errorf("trial order = %v, want %v", runner.calls, want)
	}
	if s.Total() != 8 {
		t.Errorf("Total() = %d, want 8", s.Total())
	}
	if env.setups != 1 || env.shutdowns != 1 {
		t.Errorf("setups/shutdowns = %d/%d, want 1/1", env.setups, env.shutdowns)
	}
	// The failed trial is logged and the loop continues.
	if len(report.Results) != 7 {
		t.Errorf("report has %d results, want 7", len(report.Results))
	}
	if report.Duration < 2 || report.SessionID != s.ID || report.SystemInfo.CPUCount != 2 {
		t.Errorf("unexpected report metadata: %+v", report)
	}

	saved, err := persistence.ReadReport(cfg.Output)
	testingx.Must(t, err, "report not persisted")
	if len(saved.Results) != 7 || saved.SessionID != s.ID {
		t.Errorf("persisted report mismatch: %d results, id %s", len(saved.Results), saved.SessionID)
	}
	archived, err := filepath.Glob(filepath.Join(cfg.DataDir, "dfsbench", "*", "*", "*", "*.json.gz"))
	testingx.Must(t, err, "cannot glob archive")
	if len(archived) != 1 {
		t.Errorf("expected one archived report, found %v", archived)
	}
}

func TestSession_Canceled(t *testing.T) {
	env := &fakeEnv{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &fakeRunner{onRun: func(testID int) {
		if testID == 3 {
			cancel()
		}
	}}
	cfg := config(t)
	s := session.New(cfg, env, runner, model.SystemInfo{})

	report, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if env.shutdowns != 1 {
		t.Errorf("Shutdown called %d times, want 1", env.shutdowns)
	}
	if report == nil || len(report.Results) != 3 {
		t.Fatalf("partial report should contain 3 results: %+v", report)
	}
	if _, err := os.Stat(cfg.Output); err != nil {
		t.Errorf("partial report not persisted: %v", err)
	}
}

func TestSession_InterruptedTrial(t *testing.T) {
	env := &fakeEnv{}
	runner := &fakeRunner{failID: 2, failErr: fmt.Errorf("PUT interrupted: %w", context.Canceled)}
	cfg := config(t)
	s := session.New(cfg, env, runner, model.SystemInfo{})

	report, err := s.Run(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(runner.calls) != 2 {
		t.Errorf("trials after the interrupted one were run: %v", runner.calls)
	}
	if env.shutdowns != 1 {
		t.Errorf("Shutdown called %d times, want 1", env.shutdowns)
	}
	if report == nil || len(report.Results) != 1 {
		t.Fatalf("partial report should contain 1 result: %+v", report)
	}
	saved, err := persistence.ReadReport(cfg.Output)
	testingx.Must(t, err, "partial report not persisted")
	if len(saved.Results) != 1 || saved.Results[0].TestID != 1 {
		t.Errorf("persisted results = %+v, want only test 1", saved.Results)
	}
}

func TestSession_Panic(t *testing.T) {
	env := &fakeEnv{}
	runner := &fakeRunner{onRun: func(testID int) {
		if testID == 2 {
			panic("boom")
		}
	}}
	s := session.New(config(t), env, runner, model.SystemInfo{})

	report, err := s.Run(context.Background())
	if !errors.Is(err, session.ErrPanic) {
		t.Fatalf("Run() error = %v, want ErrPanic", err)
	}
	if env.shutdowns != 1 {
		t.Errorf("Shutdown called %d times, want 1", env.shutdowns)
	}
	if report == nil || len(report.Results) != 1 {
		t.Errorf("partial report should contain 1 result: %+v", report)
	}
}

func TestSession_SetupError(t *testing.T) {
	env := &fakeEnv{setupErr: errors.New("read-only filesystem")}
	runner := &fakeRunner{}
	cfg := config(t)
	s := session.New(cfg, env, runner, model.SystemInfo{})

	if _, err := s.Run(context.Background()); !errors.Is(err, env.setupErr) {
		t.Errorf("Run() error = %v, want the setup error", err)
	}
	if len(runner.calls) != 0 || env.shutdowns != 1 {
		t.Errorf("no trial expected and one shutdown: calls=%v shutdowns=%d", runner.calls, env.shutdowns)
	}
	if _, err := os.Stat(cfg.Output); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("report written despite setup failure")
	}
}

func TestSession_PersistError(t *testing.T) {
	env := &fakeEnv{}
	cfg := config(t)
	// The output's parent is a regular file, so the report cannot be written.
	parent := filepath.Join(t.TempDir(), "file")
	testingx.Must(t, os.WriteFile(parent, nil, 0o644), "cannot create file")
	cfg.Output = filepath.Join(parent, "out.json")
	s := session.New(cfg, env, &fakeRunner{}, model.SystemInfo{})

	report, err := s.Run(context.Background())
	if err == nil {
		t.Fatalf("Run() did not report the persistence failure")
	}
	if report == nil || len(report.Results) != 8 {
		t.Errorf("report should still be returned: %+v", report)
	}
}
