package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dfslab/dfsbench/internal/executor"
	"github.com/dfslab/dfsbench/internal/lifecycle"
	"github.com/dfslab/dfsbench/internal/persistence"
	"github.com/dfslab/dfsbench/internal/session"
	"github.com/dfslab/dfsbench/internal/sysinfo"
	"github.com/dfslab/dfsbench/internal/trial"
	"github.com/dfslab/dfsbench/internal/workload"
	"github.com/dfslab/dfsbench/pkg/bench/model"
	"github.com/dfslab/dfsbench/pkg/bench/stats"
	"github.com/dfslab/dfsbench/pkg/version"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
)

var (
	flagIterations   = flag.Int("iterations", 5, "Number of trials for every file size and type")
	flagOutput       = flag.String("output", "performance_results.json", "Path of the results file. Paths ending in .gz are gzipped")
	flagPlotOnly     = flag.Bool("plot-only", false, "Only render the summary of an existing results file")
	flagDFSDir       = flag.String("dfs-dir", "/home/lab/dfs", "DFS installation directory")
	flagClient       = flag.String("client", "bin/dfc", "DFS client executable, relative to -dfs-dir unless absolute")
	flagClientConfig = flag.String("client-config", "conf/dfc.conf", "DFS client configuration, relative to -dfs-dir unless absolute")
	flagWorkDir      = flag.String("workdir", "performance_test", "Local working directory for generated and downloaded files")
	flagSettle       = flag.Duration("settle", lifecycle.DefaultSettle, "Wait after starting the DFS servers")
	flagOpTimeout    = flag.Duration("op-timeout", executor.DefaultTimeout, "Timeout of every DFS client invocation")
	flagCaptureEnv   = flag.Bool("capture-env", false, "Store the environment variables in the system info")
	flagSummary      = flag.String("summary", "", "Path to write the aggregated summary as CSV")
	flagDataDir      = flag.String("datadir", "", "Directory to archive a gzipped copy of the results in")
	flagProcfs       = flag.String("procfs", "/proc", "Mount point of procfs")
	flagDebug        = flag.Bool("debug", false, "Enable debug logging")

	flagSizes   = flagx.StringArray{}
	flagTypes   = flagx.StringArray{}
	flagServers = flagx.StringArray{}
	flagKeep    = flagx.StringArray{}

	defaultSizes = []int{1, 5, 10, 25, 50, 100, 200, 500}
)

func init() {
	flag.Var(&flagSizes, "sizes", "File sizes to test in MB (default 1,5,10,25,50,100,200,500)")
	flag.Var(&flagTypes, "types", "File types to test: random, text, binary (default random)")
	flag.Var(&flagServers, "servers", "Server data directories to clean, relative to -dfs-dir (default server/DFS1..4)")
	flag.Var(&flagKeep, "keep", "Entries of the server data directories never removed (default Bob,Alice)")
}

func parseSizes(values []string) ([]int, error) {
	if len(values) == 0 {
		return defaultSizes, nil
	}
	sizes := make([]int, 0, len(values))
	for _, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, errors.New("file sizes must be positive")
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

func parseTypes(values []string) ([]model.FileType, error) {
	if len(values) == 0 {
		return []model.FileType{model.FileTypeRandom}, nil
	}
	types := make([]model.FileType, 0, len(values))
	for _, v := range values {
		ft, err := model.ParseFileType(v)
		if err != nil {
			return nil, err
		}
		types = append(types, ft)
	}
	return types, nil
}

// orDefault returns values, or def if values is empty.
func orDefault(values, def []string) []string {
	if len(values) == 0 {
		return def
	}
	return values
}

// resolve makes path absolute, relative to dir.
func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// summarize renders the summary of report to stdout and, if configured,
// writes the summary rows to CSV.
func summarize(report *model.SessionReport) {
	groups := stats.Aggregate(report.Results)
	if len(groups) == 0 {
		log.Warn("No results to summarize")
		return
	}
	rtx.Must(stats.WriteSystemInfo(os.Stdout, report.SystemInfo), "Cannot print system info")
	rtx.Must(stats.WriteTable(os.Stdout, groups), "Cannot print summary")
	if *flagSummary != "" {
		rtx.Must(stats.WriteCSVFile(*flagSummary, groups), "Cannot write summary")
		log.Info("Summary saved", "path", *flagSummary)
	}
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")

	log.SetReportTimestamp(true)
	if *flagDebug {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	}

	if *flagPlotOnly {
		report, err := persistence.ReadReport(*flagOutput)
		rtx.Must(err, "Cannot read results from %s", *flagOutput)
		summarize(report)
		return
	}

	sizes, err := parseSizes(flagSizes)
	rtx.Must(err, "Invalid -sizes")
	types, err := parseTypes(flagTypes)
	rtx.Must(err, "Invalid -types")
	if *flagIterations <= 0 {
		log.Fatal("Invalid -iterations", "iterations", *flagIterations)
	}
	dfsDir, err := filepath.Abs(*flagDFSDir)
	rtx.Must(err, "Cannot resolve -dfs-dir")
	workDir, err := filepath.Abs(*flagWorkDir)
	rtx.Must(err, "Cannot resolve -workdir")

	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()

	log.Info("dfs-bench", "version", version.Version, "commit", prometheusx.GitShortCommit)

	// The sampler is optional: without it resource usage is reported as zero.
	var sampler executor.Sampler
	procSampler, err := sysinfo.NewSampler(*flagProcfs, sysinfo.DefaultInterval)
	if err != nil {
		log.Warn("Resource sampling disabled", "err", err)
	} else {
		sampler = procSampler
	}

	opts := sysinfo.Options{Sampler: procSampler, Dir: dfsDir}
	if *flagCaptureEnv {
		opts.Environment = os.Environ()
	}
	info := sysinfo.Snapshot(opts)

	exec := executor.New(executor.Config{
		Client:       resolve(dfsDir, *flagClient),
		ClientConfig: resolve(dfsDir, *flagClientConfig),
		Dir:          dfsDir,
		Timeout:      *flagOpTimeout,
		PutMarker:    executor.DefaultPutMarker,
		Sampler:      sampler,
	})
	runner := trial.New(workDir, workload.New(workDir), exec)
	env := lifecycle.New(lifecycle.Config{
		WorkDir:    workDir,
		DFSDir:     dfsDir,
		Settle:     *flagSettle,
		ServerDirs: orDefault(flagServers, lifecycle.DefaultServerDirs),
		Keep:       orDefault(flagKeep, lifecycle.DefaultKeep),
	})
	s := session.New(session.Config{
		Sizes:           sizes,
		Iterations:      *flagIterations,
		Types:           types,
		Output:          *flagOutput,
		DataDir:         *flagDataDir,
		ShutdownTimeout: time.Minute,
	}, env, runner, info)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := s.Run(ctx)
	if report != nil {
		summarize(report)
	}
	if err != nil {
		log.Error("Performance test did not complete", "err", err)
		stop()
		promSrv.Close()
		os.Exit(1)
	}
}
