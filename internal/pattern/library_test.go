package pattern

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/logsentinel-project/logsentinel/internal/core"
)

func TestBuiltinLibraryLoads(t *testing.T) {
	lib, err := NewLibrary(Builtin())
	if err != nil {
		t.Fatalf("builtin patterns must validate: %v", err)
	}
	if lib.Count() != 10 {
		t.Errorf("expected 10 builtin patterns, got %d", lib.Count())
	}
	if _, ok := lib.Get("complete_ot_breach"); !ok {
		t.Error("complete_ot_breach missing")
	}
}

func TestEmptyStagesRejected(t *testing.T) {
	_, err := NewLibrary([]Definition{{Name: "empty", Severity: 50}})
	var cfgErr *core.PatternConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected PatternConfigError, got %v", err)
	}
	if cfgErr.Pattern != "empty" {
		t.Errorf("error should name the pattern, got %q", cfgErr.Pattern)
	}
}

func TestNonPositiveGapRejected(t *testing.T) {
	defs := []Definition{{
		Name: "bad_gap",
		Stages: []Stage{
			{Name: "a", Pattern: `first`, MinCount: 1},
			{Name: "b", Pattern: `second`, MinCount: 1, MaxGapMinutes: 0},
		},
		Severity: 50,
	}}
	var cfgErr *core.PatternConfigError
	if _, err := NewLibrary(defs); !errors.As(err, &cfgErr) {
		t.Fatalf("expected PatternConfigError, got %v", err)
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	def := Definition{
		Name:     "dup",
		Stages:   []Stage{{Name: "a", Pattern: `x`, MinCount: 1}},
		Severity: 10,
	}
	var cfgErr *core.PatternConfigError
	if _, err := NewLibrary([]Definition{def, def}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected PatternConfigError, got %v", err)
	}
}

func TestBadRegexRejected(t *testing.T) {
	defs := []Definition{{
		Name:     "bad_regex",
		Stages:   []Stage{{Name: "a", Pattern: `([`, MinCount: 1}},
		Severity: 10,
	}}
	var cfgErr *core.PatternConfigError
	if _, err := NewLibrary(defs); !errors.As(err, &cfgErr) {
		t.Fatalf("expected PatternConfigError, got %v", err)
	}
}

func TestStageMatchesCaseInsensitive(t *testing.T) {
	lib, err := NewLibrary(Builtin())
	if err != nil {
		t.Fatal(err)
	}
	d, _ := lib.Get("brute_force_success")
	if !d.Stages[0].Matches("FAILED LOGIN for root") {
		t.Error("stage regex should be case-insensitive")
	}
	if d.Stages[0].Matches("link flapped on eth1") {
		t.Error("stage regex should not match unrelated text")
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	yaml := `patterns:
  - name: test_chain
    description: test
    severity: 60
    techniques: [T1110]
    attack_stage: Mid-Stage
    sequence:
      - name: first
        pattern: "failed.*login"
        min_count: 2
      - name: second
        pattern: "accepted.*login"
        min_count: 1
        max_gap_minutes: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	lib, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	d, ok := lib.Get("test_chain")
	if !ok {
		t.Fatal("test_chain not loaded")
	}
	if d.Stages[1].MaxGapMinutes != 5 {
		t.Errorf("max gap not parsed: %d", d.Stages[1].MaxGapMinutes)
	}
	if !d.Stages[0].Matches("Failed login for admin") {
		t.Error("loaded regex should match")
	}
}

func TestLoadEmptyPathUsesBuiltin(t *testing.T) {
	lib, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if lib.Count() != 10 {
		t.Errorf("expected builtin set, got %d patterns", lib.Count())
	}
}

func TestLoadEmptyFileRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("patterns: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	var cfgErr *core.PatternConfigError
	if _, err := Load(path); !errors.As(err, &cfgErr) {
		t.Fatalf("expected PatternConfigError, got %v", err)
	}
}

func TestMinCountDefaultsToOne(t *testing.T) {
	lib, err := NewLibrary([]Definition{{
		Name:     "defaulted",
		Stages:   []Stage{{Name: "a", Pattern: `x`}},
		Severity: 10,
	}})
	if err != nil {
		t.Fatal(err)
	}
	d, _ := lib.Get("defaulted")
	if d.Stages[0].MinCount != 1 {
		t.Errorf("min_count should default to 1, got %d", d.Stages[0].MinCount)
	}
}
