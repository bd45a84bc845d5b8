package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dfslab/dfsbench/pkg/probe"
	"github.com/dfslab/dfsbench/pkg/probe/spec"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"
)

var (
	flagServer      = flag.String("server", "", "Server address (host:port), or a server name from -conf. Defaults to the first server of -conf, or "+spec.DefaultServer)
	flagConf        = flag.String("conf", "", "Path to a DFS client configuration (dfc.conf) to read servers and credentials from")
	flagUser        = flag.String("user", "", "Username, overrides -conf")
	flagPassword    = flag.String("password", "", "Password, overrides -conf")
	flagOp          = flag.String("op", "list", "Command to send: list, get, put, mkdir or auth")
	flagFolder      = flag.String("folder", spec.DefaultFolder, "Remote folder")
	flagFile        = flag.String("file", "", "Remote file name (get, put)")
	flagContent     = flag.String("content", "", "Content to upload (put)")
	flagContentFile = flag.String("content-file", "", "Local file to upload (put), overrides -content")
	flagSplitSize   = flag.Int("split-size", spec.DefaultSplitSize, "Maximum content size of a PUT split")
	flagTimeout     = flag.Duration("timeout", spec.DefaultTimeout, "Timeout for the whole exchange")
	flagAuthAck     = flag.Bool("auth-ack", false, "Expect an authentication acknowledgement before the status")
	flagDebug       = flag.Bool("debug", false, "Print debug output")
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")

	log.SetReportTimestamp(true)
	if *flagDebug {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	}

	config := probe.Config{
		Server:    *flagServer,
		Timeout:   *flagTimeout,
		SplitSize: *flagSplitSize,
		AuthAck:   *flagAuthAck,
		Emitter:   &probe.HumanReadable{Debug: *flagDebug},
	}
	if *flagConf != "" {
		dfc, err := probe.ReadDFCConfig(*flagConf)
		rtx.Must(err, "Cannot read DFS client configuration")
		config.Username, config.Password = dfc.Username, dfc.Password
		if addr, ok := dfc.Lookup(config.Server); ok {
			config.Server = addr
		} else if config.Server == "" {
			config.Server = dfc.Servers[0].Address
		}
	}
	if *flagUser != "" {
		config.Username = *flagUser
	}
	if *flagPassword != "" {
		config.Password = *flagPassword
	}

	op, ok := spec.ParseFlag(*flagOp)
	if !ok {
		log.Fatal("Invalid operation", "op", *flagOp)
	}
	content := []byte(*flagContent)
	if op == spec.FlagPut && *flagContentFile != "" {
		var err error
		content, err = os.ReadFile(*flagContentFile)
		rtx.Must(err, "Cannot read content file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl := probe.New(config)
	log.Debug("Probing server", "server", config.Server, "op", op)
	result, err := cl.Do(ctx, probe.Command{
		Flag:     op,
		Username: config.Username,
		Password: config.Password,
		Folder:   *flagFolder,
		Filename: *flagFile,
	}, content)
	if err != nil || !result.OK {
		os.Exit(1)
	}
}
