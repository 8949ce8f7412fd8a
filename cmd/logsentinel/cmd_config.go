package main

// ---------------------------------------------------------------------------
// cmd_config.go — show, validate, or modify configuration
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/logsentinel-project/logsentinel/internal/core"
	"gopkg.in/yaml.v3"
)

func cmdConfig(args []string) {
	if len(args) > 0 && args[0] == "set" {
		cmdConfigSet(args[1:])
		return
	}
	if len(args) > 0 && args[0] == "init" {
		cmdConfigInit(args[1:])
		return
	}

	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	validate := fs.Bool("validate", false, "Validate config and exit")
	format := fs.String("format", "table", "Output format: table, json")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	output := fs.String("output", "", "Write output to file")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	if *jsonOut {
		*format = "json"
	}

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		if *validate {
			fmt.Fprintf(os.Stderr, "%s Config invalid: %v\n", red("✗"), err)
			os.Exit(1)
		}
		errorf("loading config: %v", err)
	}

	if *validate {
		issues := make([]string, 0)
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			issues = append(issues, fmt.Sprintf("server.port %d is out of range (1-65535)", cfg.Server.Port))
		}
		if cfg.Bus.Port < 1 || cfg.Bus.Port > 65535 {
			issues = append(issues, fmt.Sprintf("bus.port %d is out of range (1-65535)", cfg.Bus.Port))
		}
		if cfg.Server.Port == cfg.Bus.Port {
			issues = append(issues, fmt.Sprintf("server.port and bus.port are both %d — they must differ", cfg.Server.Port))
		}
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[cfg.LogLevel()] {
			issues = append(issues, fmt.Sprintf("logging.level %q is not valid (debug, info, warn, error)", cfg.Logging.Level))
		}
		if cfg.Syslog.Enabled {
			if cfg.Syslog.Port == cfg.Server.Port {
				issues = append(issues, fmt.Sprintf("syslog.port and server.port are both %d", cfg.Syslog.Port))
			}
			if cfg.Syslog.Port == cfg.Bus.Port {
				issues = append(issues, fmt.Sprintf("syslog.port and bus.port are both %d", cfg.Syslog.Port))
			}
			switch strings.ToLower(cfg.Syslog.Protocol) {
			case "udp", "tcp", "both":
			default:
				issues = append(issues, fmt.Sprintf("syslog.protocol %q is not valid (udp, tcp, both)", cfg.Syslog.Protocol))
			}
		}
		if cfg.Analysis.MaxFollowups < 1 {
			issues = append(issues, "analysis.max_followups must be positive")
		}
		if cfg.Retrieval.DefaultK < 1 {
			issues = append(issues, "retrieval.default_k must be positive")
		}
		if cfg.Gemini.Enabled && len(cfg.Gemini.APIKeys) == 0 {
			issues = append(issues, "gemini.enabled is true but no api_keys configured (set gemini.api_keys or GEMINI_API_KEY)")
		}

		if len(issues) > 0 {
			fmt.Fprintf(os.Stderr, "%s Config has %d issue(s):\n", red("✗"), len(issues))
			for _, issue := range issues {
				fmt.Fprintf(os.Stderr, "  - %s\n", issue)
			}
			os.Exit(1)
		}

		fmt.Fprintf(os.Stdout, "%s Config valid (%s).\n", green("✓"), *configPath)
		os.Exit(0)
	}

	// Never print secrets
	redacted := *cfg
	if len(redacted.Server.APIKeys) > 0 {
		redacted.Server.APIKeys = []string{"***"}
	}
	if len(redacted.Gemini.APIKeys) > 0 {
		redacted.Gemini.APIKeys = []string{"***"}
	}

	w, cleanup := outputWriter(*output)
	defer cleanup()

	if parseFormat(*format) == FormatJSON {
		data, err := json.MarshalIndent(redacted, "", "  ")
		if err != nil {
			errorf("marshaling config: %v", err)
		}
		fmt.Fprintln(w, string(data))
		return
	}

	data, err := yaml.Marshal(redacted)
	if err != nil {
		errorf("marshaling config: %v", err)
	}
	fmt.Fprint(w, string(data))
}

func cmdConfigInit(args []string) {
	fs := flag.NewFlagSet("config-init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path to write")
	force := fs.Bool("force", false, "Overwrite an existing file")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	if _, err := os.Stat(*configPath); err == nil && !*force {
		errorf("%s already exists (use --force to overwrite)", *configPath)
	}

	if dir := filepath.Dir(*configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			errorf("creating config directory: %v", err)
		}
	}

	if err := core.SaveConfig(core.DefaultConfig(), *configPath); err != nil {
		errorf("writing config: %v", err)
	}
	fmt.Fprintf(os.Stdout, "%s Wrote default config to %s\n", green("✓"), *configPath)
}

func cmdConfigSet(args []string) {
	fs := flag.NewFlagSet("config-set", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	remaining := fs.Args()
	if len(remaining) < 2 {
		errorf("usage: logsentinel config set <key> <value>\n\nExamples:\n  logsentinel config set server.port 8080\n  logsentinel config set logging.level debug\n  logsentinel config set syslog.enabled true")
	}

	key := remaining[0]
	value := remaining[1]

	data, err := os.ReadFile(*configPath)
	if err != nil {
		errorf("reading config: %v", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		errorf("parsing config: %v", err)
	}

	parts := strings.Split(key, ".")
	if err := setNestedValue(raw, parts, value); err != nil {
		errorf("setting %s: %v", key, err)
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		errorf("marshaling config: %v", err)
	}

	if err := os.WriteFile(*configPath, out, 0644); err != nil {
		errorf("writing config: %v", err)
	}

	fmt.Fprintf(os.Stdout, "%s Set %s = %s in %s\n", green("✓"), bold(key), value, *configPath)
}

func setNestedValue(m map[string]interface{}, path []string, value string) error {
	if len(path) == 0 {
		return fmt.Errorf("empty key path")
	}

	if len(path) == 1 {
		m[path[0]] = parseValue(value)
		return nil
	}

	next, ok := m[path[0]]
	if !ok {
		next = map[string]interface{}{}
		m[path[0]] = next
	}

	nextMap, ok := next.(map[string]interface{})
	if !ok {
		return fmt.Errorf("key %q is not a map", path[0])
	}

	return setNestedValue(nextMap, path[1:], value)
}

func parseValue(s string) interface{} {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := fmt.Sscanf(s, "%d", new(int)); n == 1 && err == nil {
		var i int
		fmt.Sscanf(s, "%d", &i)
		return i
	}
	if n, err := fmt.Sscanf(s, "%f", new(float64)); n == 1 && err == nil && strings.Contains(s, ".") {
		var f float64
		fmt.Sscanf(s, "%f", &f)
		return f
	}
	return s
}
