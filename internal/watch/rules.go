// Package watch re-runs tasks when project sources change.
package watch

import (
	"fmt"

	"git.home.luguber.info/inful/sitepipe/internal/config"
	"git.home.luguber.info/inful/sitepipe/internal/globs"
)

// Rule maps source globs to the task they trigger.
type Rule struct {
	Globs []string
	Task  string
}

type compiledRule struct {
	Rule
	set *globs.Set
}

// Table is a static, ordered list of rules.
type Table struct {
	rules []compiledRule
}

// NewTable compiles rules. Every rule needs a task and at least one glob.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if r.Task == "" {
			return nil, fmt.Errorf("watch rule %d: task is required", i)
		}
		if len(r.Globs) == 0 {
			return nil, fmt.Errorf("watch rule %d (%s): at least one glob is required", i, r.Task)
		}
		set, err := globs.Compile(r.Globs...)
		if err != nil {
			return nil, fmt.Errorf("watch rule %d (%s): %w", i, r.Task, err)
		}
		t.rules = append(t.rules, compiledRule{Rule: r, set: set})
	}
	return t, nil
}

// TableFromConfig builds the table from the watch section.
func TableFromConfig(cfg config.WatchConfig) (*Table, error) {
	rules := make([]Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, Rule{Globs: r.Globs, Task: r.Task})
	}
	return NewTable(rules)
}

// Rules returns the table's rules in order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r.Rule)
	}
	return out
}

// Tasks returns the tasks whose rules match rel, in rule order without repeats.
func (t *Table) Tasks(rel string) []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range t.rules {
		if seen[r.Task] || !r.set.Match(rel) {
			continue
		}
		seen[r.Task] = true
		out = append(out, r.Task)
	}
	return out
}
