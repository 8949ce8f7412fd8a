package main

// ---------------------------------------------------------------------------
// cmd_patterns.go — inspect the attack pattern library and technique catalog
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/logsentinel-project/logsentinel/internal/mitre"
	"github.com/logsentinel-project/logsentinel/internal/pattern"
)

func cmdPatterns(args []string) {
	fs := flag.NewFlagSet("patterns", flag.ExitOnError)
	patternsPath := fs.String("patterns", "", "YAML pattern definitions replacing the builtin library")
	format := fs.String("format", "table", "Output format: table, json, csv")
	output := fs.String("output", "", "Write output to file")
	fs.Parse(args)

	library, err := pattern.Load(*patternsPath)
	if err != nil {
		errorf("loading pattern library: %v", err)
	}

	w, cleanup := outputWriter(*output)
	defer cleanup()

	defs := library.All()

	switch parseFormat(*format) {
	case FormatJSON:
		data, err := json.MarshalIndent(defs, "", "  ")
		if err != nil {
			errorf("encoding patterns: %v", err)
		}
		fmt.Fprintln(w, string(data))

	case FormatCSV:
		headers := []string{"name", "stages", "severity", "attack_stage", "techniques"}
		rows := make([][]string, 0, len(defs))
		for _, def := range defs {
			rows = append(rows, []string{
				def.Name,
				strconv.Itoa(len(def.Stages)),
				strconv.Itoa(def.Severity),
				def.AttackStage,
				strings.Join(def.Techniques, " "),
			})
		}
		writeCSV(w, headers, rows)

	default:
		fmt.Fprintf(w, "\n%s Pattern library (%d patterns)\n\n", bold("●"), library.Count())
		t := NewTable(w, "NAME", "STAGES", "SEVERITY", "ATTACK STAGE", "TECHNIQUES")
		for _, def := range defs {
			t.AddRow(def.Name,
				strconv.Itoa(len(def.Stages)),
				strconv.Itoa(def.Severity),
				def.AttackStage,
				strings.Join(def.Techniques, ", "))
		}
		t.Render()
		fmt.Fprintln(w)
	}
}

func cmdTechniques(args []string) {
	fs := flag.NewFlagSet("techniques", flag.ExitOnError)
	format := fs.String("format", "table", "Output format: table, json, csv")
	output := fs.String("output", "", "Write output to file")
	fs.Parse(args)

	techniques := mitre.AllTechniques()

	w, cleanup := outputWriter(*output)
	defer cleanup()

	switch parseFormat(*format) {
	case FormatJSON:
		data, err := json.MarshalIndent(techniques, "", "  ")
		if err != nil {
			errorf("encoding techniques: %v", err)
		}
		fmt.Fprintln(w, string(data))

	case FormatCSV:
		headers := []string{"id", "name", "tactic", "url"}
		rows := make([][]string, 0, len(techniques))
		for _, tech := range techniques {
			rows = append(rows, []string{tech.ID, tech.Name, tech.Tactic, tech.URL})
		}
		writeCSV(w, headers, rows)

	default:
		fmt.Fprintf(w, "\n%s MITRE ATT&CK catalog (%d techniques)\n\n", bold("●"), len(techniques))
		t := NewTable(w, "ID", "NAME", "TACTIC")
		for _, tech := range techniques {
			t.AddRow(tech.ID, tech.Name, tech.Tactic)
		}
		t.Render()
		fmt.Fprintln(w)
	}
}
