package main

// ---------------------------------------------------------------------------
// cmd_analyze.go — offline analysis of a log file
// ---------------------------------------------------------------------------

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/logsentinel-project/logsentinel/internal/core"
	"github.com/logsentinel-project/logsentinel/internal/correlate"
	"github.com/logsentinel-project/logsentinel/internal/ingest"
	"github.com/logsentinel-project/logsentinel/internal/llm"
	"github.com/logsentinel-project/logsentinel/internal/orchestrate"
	"github.com/logsentinel-project/logsentinel/internal/pattern"
	"github.com/logsentinel-project/logsentinel/internal/report"
	"github.com/logsentinel-project/logsentinel/internal/retrieval"
)

func cmdAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	file := fs.String("file", "", "Log file to analyze (required)")
	task := fs.String("task", "hunt for attack patterns and anomalies", "Analysis task")
	ot := fs.Bool("ot", false, "Treat as an OT/SCADA environment")
	patternsPath := fs.String("patterns", "", "YAML pattern definitions replacing the builtin library")
	format := fs.String("format", "markdown", "Output format: markdown, table, json, csv, sarif")
	output := fs.String("output", "", "Write output to file")
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	noLLM := fs.Bool("no-llm", false, "Skip narrative synthesis even when API keys are configured")
	fs.Parse(args)

	if *file == "" {
		errorf("--file is required (see: logsentinel help analyze)")
	}

	cfg, err := core.LoadConfig(envConfig(*configPath))
	if err != nil {
		errorf("loading config: %v", err)
	}
	cfg.Logging.Level = *logLevel
	logger := core.NewLogger(cfg.Logging, os.Stderr)

	parser := ingest.NewParser(logger)
	events, skipped, err := parser.ParseFile(*file)
	if err != nil {
		errorf("parsing %s: %v", *file, err)
	}
	if skipped > 0 {
		warnf("skipped %d malformed record(s) in %s", skipped, *file)
	}

	libPath := *patternsPath
	if libPath == "" {
		libPath = cfg.Patterns.Path
	}
	library, err := pattern.Load(libPath)
	if err != nil {
		errorf("loading pattern library: %v", err)
	}

	var generator orchestrate.Generator
	if !*noLLM && cfg.Gemini.Enabled && len(cfg.Gemini.APIKeys) > 0 {
		client := llm.NewClient(llm.Config{
			Model:   cfg.Gemini.Model,
			APIKeys: cfg.Gemini.APIKeys,
			Timeout: time.Duration(cfg.Analysis.ExternalTimeoutSeconds) * time.Second,
		}, logger)
		if client.Enabled() {
			generator = client
		}
	}

	index := retrieval.NewIndex(events, cfg.Retrieval.CacheSize, logger)
	matcher := correlate.NewMatcher(library, logger)
	orch := orchestrate.New(matcher, orchestrate.Options{
		Retriever:       index,
		Generator:       generator,
		MaxFollowups:    cfg.Analysis.MaxFollowups,
		FollowupWindow:  time.Duration(cfg.Analysis.FollowupWindowMinutes) * time.Minute,
		ExternalTimeout: time.Duration(cfg.Analysis.ExternalTimeoutSeconds) * time.Second,
		RetrievalK:      cfg.Retrieval.DefaultK,
	}, logger)

	result, err := orch.Analyze(context.Background(), orchestrate.Request{
		ID:            uuid.New().String(),
		Task:          *task,
		Events:        events,
		OTEnvironment: *ot,
	})
	if err != nil {
		errorf("analysis failed: %v", err)
	}

	w, cleanup := outputWriter(*output)
	defer cleanup()

	switch parseFormat(*format) {
	case FormatJSON:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			errorf("encoding result: %v", err)
		}
		fmt.Fprintln(w, string(data))

	case FormatSARIF:
		writeSARIF(w, result, version)

	case FormatCSV:
		headers := []string{"sequence", "severity", "events", "span_minutes", "techniques"}
		rows := make([][]string, 0, len(result.Sequences))
		for _, seq := range result.Sequences {
			rows = append(rows, []string{
				seq.Name,
				strconv.Itoa(seq.Severity),
				strconv.Itoa(len(seq.Events)),
				fmt.Sprintf("%.0f", seq.TimeSpanMinutes),
				fmt.Sprint(seq.Techniques),
			})
		}
		writeCSV(w, headers, rows)

	case FormatTable:
		renderResultTable(w, result)

	default: // markdown
		fmt.Fprint(w, report.Markdown(result))
	}
}

// renderResultTable prints a terminal summary of the result.
func renderResultTable(w *os.File, result *orchestrate.Result) {
	fmt.Fprintf(w, "\n%s Analysis of %d events\n\n", bold("●"), result.EventsAnalyzed)
	fmt.Fprintf(w, "  %-16s %s\n", "Risk Level:", riskColor(result.RiskLevel))
	fmt.Fprintf(w, "  %-16s %d/100\n", "Risk Score:", result.RiskScore)
	fmt.Fprintf(w, "  %-16s %s\n", "Attack Stage:", result.AttackStage)
	if result.AttackSucceeded {
		fmt.Fprintf(w, "  %-16s %s\n", "Attack Succeeded:", red("yes"))
	}
	fmt.Fprintf(w, "  %-16s %s\n", "Confidence:", result.Confidence)
	if result.Degraded() {
		fmt.Fprintf(w, "  %-16s %s\n", "Degraded:", yellow(fmt.Sprint(result.DegradedStages)))
	}
	fmt.Fprintln(w)

	if len(result.Sequences) > 0 {
		t := NewTable(w, "SEQUENCE", "SEVERITY", "EVENTS", "SPAN (MIN)", "STAGE")
		for _, seq := range result.Sequences {
			t.AddRow(seq.Name,
				strconv.Itoa(seq.Severity),
				strconv.Itoa(len(seq.Events)),
				fmt.Sprintf("%.0f", seq.TimeSpanMinutes),
				seq.AttackStage)
		}
		t.Render()
		fmt.Fprintln(w)
	}

	if len(result.Techniques) > 0 {
		t := NewTable(w, "TECHNIQUE", "NAME", "TACTIC")
		for _, tech := range result.Techniques {
			t.AddRow(tech.ID, tech.Name, tech.Tactic)
		}
		t.Render()
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%s\n\n", result.Summary)
}

func riskColor(level string) string {
	switch level {
	case "CRITICAL":
		return red(level)
	case "HIGH":
		return yellow(level)
	case "MEDIUM":
		return cyan(level)
	default:
		return green(level)
	}
}
