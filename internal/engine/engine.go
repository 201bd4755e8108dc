// Package engine loads the registered rule catalog, runs it in
// parallel over a shared analysisctx.Context, and assembles a single
// deterministically-ordered Output.
//
// Grounded on original_source/src/engine.rs's Engine/rayon par_iter
// design, translated to goroutines via golang.org/x/sync/errgroup
// since Go's standard toolchain has no rayon equivalent.
package engine

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/rules"
)

// Output is the aggregated, sorted result of running every selected
// rule once.
type Output struct {
	Rules   []rules.Metadata
	Results []rules.Finding
}

// Engine runs a fixed, sorted set of rules.
type Engine struct {
	selected []rules.Rule
}

// New loads rules.All(), sorted by ID. If selected is non-nil, the
// engine is restricted to that allow-set; any ID in selected that
// matches no registered rule is a fatal configuration error.
func New(selected []string) (*Engine, error) {
	all := rules.All()
	if selected == nil {
		return &Engine{selected: all}, nil
	}

	byID := make(map[string]rules.Rule, len(all))
	for _, r := range all {
		byID[r.Metadata().ID] = r
	}

	want := make(map[string]bool, len(selected))
	for _, id := range selected {
		want[id] = true
	}

	var unknown []string
	for id := range want {
		if _, ok := byID[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("engine: unknown rule ID(s): %v", unknown)
	}

	var chosen []rules.Rule
	for _, r := range all {
		if want[r.Metadata().ID] {
			chosen = append(chosen, r)
		}
	}
	return &Engine{selected: chosen}, nil
}

// ruleOutput is one rule's findings before the final merge+sort.
type ruleOutput struct {
	id       string
	metadata rules.Metadata
	findings []rules.Finding
}

// Analyze runs every selected rule against ctx. Rules execute
// concurrently; on any rule error, Analyze returns the error from
// whichever failing rule's ID sorts first, independent of which
// goroutine actually finished first.
func (e *Engine) Analyze(ctx *analysisctx.Context) (Output, error) {
	outputs := make([]ruleOutput, len(e.selected))
	errs := make([]error, len(e.selected))

	var g errgroup.Group
	for i, r := range e.selected {
		i, r := i, r
		g.Go(func() error {
			findings, err := r.Run(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("engine: rule %s: %w", r.Metadata().ID, err)
				return nil
			}
			for k := range findings {
				if findings[k].RuleID == "" {
					findings[k].RuleID = r.Metadata().ID
				}
			}
			outputs[i] = ruleOutput{id: r.Metadata().ID, metadata: r.Metadata(), findings: findings}
			return nil
		})
	}
	_ = g.Wait() // rule goroutines never themselves return an error; failures are recorded in errs

	if err := firstErrorByRuleID(e.selected, errs); err != nil {
		return Output{}, err
	}

	sort.Slice(outputs, func(i, j int) bool { return outputs[i].id < outputs[j].id })

	out := Output{Rules: make([]rules.Metadata, 0, len(outputs))}
	for _, o := range outputs {
		out.Rules = append(out.Rules, o.metadata)
		out.Results = append(out.Results, o.findings...)
	}

	sort.SliceStable(out.Results, func(i, j int) bool {
		if out.Results[i].RuleID != out.Results[j].RuleID {
			return out.Results[i].RuleID < out.Results[j].RuleID
		}
		return out.Results[i].Message < out.Results[j].Message
	})

	return out, nil
}

// firstErrorByRuleID returns the error recorded for the rule whose ID
// sorts first among every rule that failed, or nil if none failed.
func firstErrorByRuleID(selected []rules.Rule, errs []error) error {
	type failure struct {
		id  string
		err error
	}
	var failures []failure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, failure{id: selected[i].Metadata().ID, err: err})
		}
	}
	if len(failures) == 0 {
		return nil
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].id < failures[j].id })
	return failures[0].err
}
