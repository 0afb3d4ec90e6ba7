// Package flow loads declarative task flow definitions: named state
// machines over task statuses, with stage inheritance, worker-class gates,
// and load-time validation (spec.md §4.G). Flows are represented as a
// graph with typed edges; callers must never run a topological sort over
// them, since the DAG is a state machine, not a build graph (spec.md §9).
package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Stage is one status in a flow.
type Stage struct {
	Next     string              `yaml:"next"`
	Fail     string              `yaml:"fail"`
	Requires []string            `yaml:"requires"`
	Workers  map[string][]string `yaml:"workers"`
	Terminal bool                `yaml:"terminal"`
}

// WorkersFor returns the allowed classes for a requesting class key,
// falling back to the stage's "default" entry.
func (s Stage) WorkersFor(requestingClass string) []string {
	if w, ok := s.Workers[requestingClass]; ok {
		return w
	}
	return s.Workers["default"]
}

// doc is the on-disk YAML shape for one flow document.
type doc struct {
	Name     string           `yaml:"name"`
	Inherits string           `yaml:"inherits"`
	Initial  string           `yaml:"initial"`
	Stages   map[string]Stage `yaml:"stages"`
}

// Flow is a fully merged, validated flow ready for the task DAG engine.
type Flow struct {
	Name    string
	Initial string
	Stages  map[string]Stage
}

// Base is the default pipeline every flow without an explicit `inherits`
// chain ultimately derives from, per spec.md §3.
var Base = Flow{
	Name:    "_base",
	Initial: "open",
	Stages: map[string]Stage{
		"open":        {Next: "assigned", Workers: map[string][]string{"default": {"lead"}}},
		"assigned":    {Next: "in_progress", Workers: map[string][]string{"default": {"lead"}}},
		"in_progress": {Next: "fixed", Fail: "open", Requires: []string{"submit_result"}, Workers: map[string][]string{"default": {"lead", "coder", "builder"}}},
		"fixed":       {Next: "verified", Fail: "in_progress", Workers: map[string][]string{"default": {"oracle"}}},
		"verified":    {Next: "closed", Workers: map[string][]string{"default": {"lead"}}},
		"closed":      {Terminal: true, Workers: map[string][]string{"default": {"lead"}}},
	},
}

// Loader loads and merges flow documents from a search path.
type Loader struct {
	searchPath string
	docs       map[string]doc
}

// NewLoader builds a Loader rooted at searchPath (a directory of .yaml flow
// documents).
func NewLoader(searchPath string) *Loader {
	return &Loader{searchPath: searchPath, docs: map[string]doc{}}
}

// LoadAll reads every *.yaml file under the search path into memory without
// merging; call Resolve per flow name to get a validated, merged Flow.
func (l *Loader) LoadAll() error {
	entries, err := os.ReadDir(l.searchPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(l.searchPath, e.Name()))
		if err != nil {
			return fmt.Errorf("read flow %s: %w", e.Name(), err)
		}
		var d doc
		if err := yaml.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("parse flow %s: %w", e.Name(), err)
		}
		if d.Name == "" {
			return fmt.Errorf("flow %s missing name", e.Name())
		}
		l.docs[d.Name] = d
	}
	return nil
}

// Resolve merges a named flow with its inheritance chain (depth-first:
// child stages override parent stages; unspecified stages are inherited
// verbatim) and validates it, per spec.md §4.G.
func (l *Loader) Resolve(name string) (*Flow, error) {
	chain, err := l.inheritanceChain(name, map[string]bool{})
	if err != nil {
		return nil, err
	}

	merged := Flow{Name: name, Initial: Base.Initial, Stages: map[string]Stage{}}
	for k, v := range Base.Stages {
		merged.Stages[k] = v
	}
	for i := len(chain) - 1; i >= 0; i-- {
		d := chain[i]
		if d.Initial != "" {
			merged.Initial = d.Initial
		}
		for stageName, stage := range d.Stages {
			if stage.Workers == nil {
				stage.Workers = map[string][]string{}
			}
			if _, ok := stage.Workers["default"]; !ok {
				stage.Workers["default"] = []string{"lead"}
			}
			merged.Stages[stageName] = stage
		}
	}

	if err := validate(&merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

func (l *Loader) inheritanceChain(name string, seen map[string]bool) ([]doc, error) {
	if name == "" || name == "_base" {
		return nil, nil
	}
	if seen[name] {
		return nil, fmt.Errorf("flow %s: inheritance cycle", name)
	}
	seen[name] = true
	d, ok := l.docs[name]
	if !ok {
		return nil, fmt.Errorf("flow %s: not found", name)
	}
	chain := []doc{d}
	if d.Inherits != "" {
		parentChain, err := l.inheritanceChain(d.Inherits, seen)
		if err != nil {
			return nil, err
		}
		chain = append(chain, parentChain...)
	}
	return chain, nil
}

// validate checks next/fail targets exist, every reachable stage has a
// workers map, terminal stages have no next, and requires entries draw
// from the fixed vocabulary, per spec.md §4.G.
func validate(f *Flow) error {
	for name, stage := range f.Stages {
		if stage.Terminal {
			if stage.Next != "" {
				return fmt.Errorf("flow %s: terminal stage %s must not have next", f.Name, name)
			}
			continue
		}
		if stage.Next == "" {
			return fmt.Errorf("flow %s: non-terminal stage %s missing next", f.Name, name)
		}
		if _, ok := f.Stages[stage.Next]; !ok {
			return fmt.Errorf("flow %s: stage %s next target %s does not exist", f.Name, name, stage.Next)
		}
		if stage.Fail != "" {
			if _, ok := f.Stages[stage.Fail]; !ok {
				return fmt.Errorf("flow %s: stage %s fail target %s does not exist", f.Name, name, stage.Fail)
			}
		}
		if len(stage.Workers) == 0 {
			return fmt.Errorf("flow %s: stage %s missing workers map", f.Name, name)
		}
		for _, req := range stage.Requires {
			if req != "submit_result" {
				return fmt.Errorf("flow %s: stage %s has unknown requires entry %q", f.Name, name, req)
			}
		}
	}
	return nil
}

// Names lists every loaded flow name.
func (l *Loader) Names() []string {
	names := make([]string, 0, len(l.docs))
	for name := range l.docs {
		names = append(names, name)
	}
	return names
}
