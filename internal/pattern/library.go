package pattern

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/logsentinel-project/logsentinel/internal/core"
)

// Library is a validated, immutable set of pattern definitions. It is built
// once at load time and is safe for concurrent readers.
type Library struct {
	defs   []Definition
	byName map[string]*Definition
}

// NewLibrary validates and compiles the given definitions. Any invalid
// definition fails the whole load with a *core.PatternConfigError.
func NewLibrary(defs []Definition) (*Library, error) {
	lib := &Library{
		defs:   make([]Definition, len(defs)),
		byName: make(map[string]*Definition, len(defs)),
	}
	copy(lib.defs, defs)

	for i := range lib.defs {
		d := &lib.defs[i]
		if err := d.compile(); err != nil {
			return nil, &core.PatternConfigError{Pattern: d.Name, Reason: err.Error()}
		}
		if _, dup := lib.byName[d.Name]; dup {
			return nil, &core.PatternConfigError{Pattern: d.Name, Reason: "duplicate pattern name"}
		}
		lib.byName[d.Name] = d
	}
	return lib, nil
}

// Load builds the library from a YAML file, or from the builtin definitions
// when path is empty.
func Load(path string) (*Library, error) {
	if path == "" {
		return NewLibrary(Builtin())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern file: %w", err)
	}

	var file struct {
		Patterns []Definition `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &core.PatternConfigError{Reason: fmt.Sprintf("parsing pattern file: %v", err)}
	}
	if len(file.Patterns) == 0 {
		return nil, &core.PatternConfigError{Reason: "pattern file defines no patterns"}
	}
	return NewLibrary(file.Patterns)
}

// All returns the definitions in load order. The returned slice must not be
// modified.
func (l *Library) All() []Definition {
	return l.defs
}

// Get returns the definition with the given name, if present.
func (l *Library) Get(name string) (*Definition, bool) {
	d, ok := l.byName[name]
	return d, ok
}

// Count returns the number of loaded patterns.
func (l *Library) Count() int {
	return len(l.defs)
}
