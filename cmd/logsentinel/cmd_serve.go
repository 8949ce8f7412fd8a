package main

// ---------------------------------------------------------------------------
// cmd_serve.go — start the LogSentinel server
// ---------------------------------------------------------------------------

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/logsentinel-project/logsentinel/internal/api"
	"github.com/logsentinel-project/logsentinel/internal/core"
	"github.com/logsentinel-project/logsentinel/internal/ingest"
	"github.com/logsentinel-project/logsentinel/internal/llm"
	"github.com/logsentinel-project/logsentinel/internal/orchestrate"
	"github.com/logsentinel-project/logsentinel/internal/pattern"
)

// liveBufferSize bounds the live ingestion window analyzed when a request
// carries no events of its own.
const liveBufferSize = 4096

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	logLevel := fs.String("log-level", "", "Log level override: debug, info, warn, error")
	quiet := fs.Bool("quiet", false, "Suppress banner and non-essential output")
	fs.BoolVar(quiet, "q", false, "Suppress banner and non-essential output")
	noColor := fs.Bool("no-color", false, "Disable color output")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	if *noColor {
		os.Setenv("NO_COLOR", "1")
	}

	if !*quiet {
		fmt.Fprint(os.Stderr, bannerText())
	}

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		errorf("loading config: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger := core.NewLogger(cfg.Logging, os.Stderr)

	if !cfg.AuthEnabled() && !*quiet {
		fmt.Fprintf(os.Stderr, "%s No API keys configured. The API runs in open mode.\n", yellow("⚠"))
		fmt.Fprintf(os.Stderr, "    Set api_keys in config or the LOGSENTINEL_API_KEY env var.\n")
	}

	library, err := pattern.Load(cfg.Patterns.Path)
	if err != nil {
		errorf("loading pattern library: %v", err)
	}

	if !*quiet {
		fmt.Fprintf(os.Stderr, "%s Starting LogSentinel...\n", dim("▸"))
	}

	bus, err := core.NewEventBus(&cfg.Bus, logger)
	if err != nil {
		errorf("starting event bus: %v", err)
	}

	// Live ingestion window: every event on the bus lands here so analysis
	// requests without an explicit event set run against recent traffic.
	live := core.NewEventRingBuffer(liveBufferSize)
	if err := bus.SubscribeToAllEvents(func(ev core.Event) {
		live.Append(ev)
	}); err != nil {
		errorf("subscribing to event stream: %v", err)
	}

	var generator orchestrate.Generator
	if cfg.Gemini.Enabled && len(cfg.Gemini.APIKeys) > 0 {
		client := llm.NewClient(llm.Config{
			Model:   cfg.Gemini.Model,
			APIKeys: cfg.Gemini.APIKeys,
			Timeout: time.Duration(cfg.Analysis.ExternalTimeoutSeconds) * time.Second,
		}, logger)
		if client.Enabled() {
			generator = client
		}
	}

	srv := api.NewServer(api.Options{
		Config:    cfg,
		Library:   library,
		Bus:       bus,
		Generator: generator,
		Live:      live,
		Version:   version,
	}, logger)
	if err := srv.Start(); err != nil {
		errorf("starting API server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var syslogSrv *ingest.SyslogServer
	if cfg.Syslog.Enabled {
		syslogSrv = ingest.NewSyslogServer(&cfg.Syslog, bus, logger)
		if err := syslogSrv.Start(ctx); err != nil {
			errorf("starting syslog ingestion: %v", err)
		}
		if !*quiet {
			fmt.Fprintf(os.Stderr, "%s Syslog ingestion on :%d (%s)\n",
				green("✓"), cfg.Syslog.Port, cfg.Syslog.Protocol)
		}
	}

	if !*quiet {
		genStatus := dim("disabled")
		if generator != nil {
			genStatus = green("enabled")
		}
		fmt.Fprintf(os.Stderr, "%s LogSentinel running: %d patterns loaded, API on :%d, synthesis %s\n",
			green("✓"), library.Count(), cfg.Server.Port, genStatus)
		fmt.Fprintf(os.Stderr, "%s Press Ctrl+C to stop\n", dim("▸"))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	if !*quiet {
		fmt.Fprintf(os.Stderr, "\n%s Received %s, shutting down...\n", dim("▸"), sig)
	}

	cancel()
	if syslogSrv != nil {
		syslogSrv.Stop()
	}
	srv.Stop()
	bus.Close()

	if !*quiet {
		fmt.Fprintf(os.Stderr, "%s LogSentinel stopped.\n", green("✓"))
	}
}
