package main

// ---------------------------------------------------------------------------
// banner.go — ASCII art banner and version/usage printing
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	"os"
	goruntime "runtime"
	"runtime/debug"
)

func bannerText() string {
	banner := `
    ╔════════════════════════════════════════════════════════════╗
    ║                                                            ║
    ║   ██╗      ██████╗  ██████╗                                ║
    ║   ██║     ██╔═══██╗██╔════╝                                ║
    ║   ██║     ██║   ██║██║  ███╗                               ║
    ║   ██║     ██║   ██║██║   ██║                               ║
    ║   ███████╗╚██████╔╝╚██████╔╝ SENTINEL                      ║
    ║   ╚══════╝ ╚═════╝  ╚═════╝                                ║
    ║                                                            ║
    ║        SECURITY LOG ANALYSIS & ATTACK CORRELATION          ║
    ║                                                            ║
    ╚════════════════════════════════════════════════════════════╝
`
	if !colorEnabled() {
		return banner
	}
	return "\033[36m" + banner + "\033[0m"
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "logsentinel v%s", version)
	if commit != "dev" {
		fmt.Fprintf(w, " (%s)", commit[:min(7, len(commit))])
	}
	if buildDate != "unknown" {
		fmt.Fprintf(w, " built %s", buildDate)
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(w, " %s", bi.GoVersion)
	}
	fmt.Fprintf(w, " %s/%s", goruntime.GOOS, goruntime.GOARCH)
	fmt.Fprintln(w)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, bannerText())
	fmt.Fprintf(w, "  %s\n\n", dim("v"+version))
	fmt.Fprintf(w, "%s\n\n", bold("USAGE"))
	fmt.Fprintf(w, "  logsentinel <command> [flags]\n\n")
	fmt.Fprintf(w, "%s\n\n", bold("COMMANDS"))
	fmt.Fprintf(w, "  %-12s  %s\n", bold("analyze"), "Analyze a log file for attack patterns")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("serve"), "Start the analysis server (API, bus, syslog ingestion)")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("patterns"), "List the attack pattern library")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("techniques"), "List the MITRE ATT&CK technique catalog")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("status"), "Show status of a running instance")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("config"), "Show, validate, or initialize configuration")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("stop"), "Gracefully stop a running instance")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("version"), "Print version and build info")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("help"), "Show help for a command")
	fmt.Fprintf(w, "\n%s\n\n", bold("GLOBAL FLAGS"))
	fmt.Fprintf(w, "  %-22s  %s\n", "--config <path>", "Config file path (env: LOGSENTINEL_CONFIG)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--api-key <key>", "API key (env: LOGSENTINEL_API_KEY)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--format <fmt>", "Output format: table, json, markdown, csv, sarif")
	fmt.Fprintf(w, "  %-22s  %s\n", "--version, -V", "Print version and exit")
	fmt.Fprintf(w, "  %-22s  %s\n", "--help, -h", "Show help")
	fmt.Fprintf(w, "\n%s\n\n", bold("EXAMPLES"))
	fmt.Fprintf(w, "  %s\n", dim("# Analyze a log file and print the markdown report"))
	fmt.Fprintf(w, "  logsentinel analyze --file auth.log --task \"investigate failed logins\"\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Analyze an OT/SCADA export as JSON"))
	fmt.Fprintf(w, "  logsentinel analyze --file scada.jsonl --ot --format json\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Start the server with syslog ingestion"))
	fmt.Fprintf(w, "  logsentinel serve --config configs/default.yaml\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Check a running instance"))
	fmt.Fprintf(w, "  logsentinel status --format json\n\n")
	fmt.Fprintf(w, "Run %s for detailed help on any command.\n\n", bold("logsentinel help <command>"))
}

// cmdHelp prints usage details for a single command.
func cmdHelp(cmd string) {
	switch cmd {
	case "analyze":
		fmt.Print(`Usage: logsentinel analyze --file <path> [flags]

Parse a log file (JSONL, CSV, or plain text), correlate attack patterns,
score the risk, and render an analyst report.

Flags:
  --file <path>        Log file to analyze (required)
  --task <text>        Analysis task, routes the pipeline (default: full hunt)
  --ot                 Treat as an OT/SCADA environment
  --patterns <path>    YAML pattern definitions replacing the builtin library
  --format <fmt>       Output: markdown (default), table, json, csv, sarif
  --output <path>      Write output to file instead of stdout
  --config <path>      Config file path
  --log-level <level>  Log level override: debug, info, warn, error
`)
	case "serve":
		fmt.Print(`Usage: logsentinel serve [flags]

Start the LogSentinel server: REST API, embedded NATS event bus, and
optional live syslog ingestion.

Flags:
  --config <path>      Config file path
  --log-level <level>  Log level override: debug, info, warn, error
  --quiet, -q          Suppress banner and non-essential output
  --no-color           Disable color output
`)
	case "patterns":
		fmt.Print(`Usage: logsentinel patterns [flags]

List the attack pattern library.

Flags:
  --patterns <path>    YAML pattern definitions replacing the builtin library
  --format <fmt>       Output format: table (default), json, csv
  --output <path>      Write output to file instead of stdout
`)
	case "techniques":
		fmt.Print(`Usage: logsentinel techniques [flags]

List the MITRE ATT&CK technique catalog used for event annotation.

Flags:
  --format <fmt>       Output format: table (default), json, csv
  --output <path>      Write output to file instead of stdout
`)
	case "status":
		fmt.Print(`Usage: logsentinel status [flags]

Fetch status from a running LogSentinel instance.

Flags:
  --config <path>      Config file path
  --host <host>        API host override (env: LOGSENTINEL_HOST)
  --port <port>        API port override (env: LOGSENTINEL_PORT)
  --api-key <key>      API key (env: LOGSENTINEL_API_KEY)
  --format <fmt>       Output format: table (default), json
  --timeout <dur>      Request timeout (default: 5s)
`)
	case "config":
		fmt.Print(`Usage: logsentinel config <show|init|path> [flags]

Show the effective configuration, write a starter config file, or print
the config path in use.

Flags:
  --config <path>      Config file path
`)
	case "stop":
		fmt.Print(`Usage: logsentinel stop [flags]

Gracefully stop a running LogSentinel instance via its API.

Flags:
  --config <path>      Config file path
  --host <host>        API host override
  --port <port>        API port override
  --api-key <key>      API key (env: LOGSENTINEL_API_KEY)
`)
	default:
		printUsage(os.Stdout)
	}
}
