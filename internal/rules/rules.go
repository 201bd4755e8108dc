// Package rules hosts the rule contract every analysis check
// implements and the explicit All() constructor the engine loads them
// from. Each rule family lives in its own file (plus _test.go),
// grounded on the corresponding original_source/src/rules/*/mod.rs.
package rules

import (
	"sort"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
)

// Metadata describes a rule for the tool driver's rule descriptor table
// and for baseline/SARIF rule-ID stamping.
type Metadata struct {
	ID          string
	Name        string
	Description string
}

// Finding is a single result a rule reports. Line is 0 when the owning
// method carries no LineNumberTable entry covering Offset.
type Finding struct {
	RuleID      string
	Message     string
	ClassName   string
	MethodName  string
	Descriptor  string
	ArtifactURI string
	Offset      uint32
	Line        int
}

// Rule is the contract every analysis check implements.
type Rule interface {
	Metadata() Metadata
	Run(ctx *analysisctx.Context) ([]Finding, error)
}

// All constructs and returns the full set of analysis rules, sorted by
// rule ID. Adding a rule means adding its struct literal here.
func All() []Rule {
	out := []Rule{
		comparetoOverflowRule{},
		exceptionCauseNotPreservedRule{},
		futureGetWithoutTimeoutRule{},
		localComplexityGuardRule{},
		lockNotReleasedRule{},
		magicNumberRule{},
		optionalGetCallRule{},
		slf4jPlaceholderMismatchRule{},
		stringFormatLocaleMissingRule{},
		urlOpenstreamCallRule{},
		volatileIncrementNonAtomicRule{},
		waitNotGuardedByLoopRule{},
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata().ID < out[j].Metadata().ID
	})
	return out
}

// newFinding builds a Finding at a specific bytecode offset within
// method of class, resolving the artifact URI and source line through
// ctx, mirroring the original's method_location_with_line helper.
func newFinding(ctx *analysisctx.Context, ruleID, message string, class ir.Class, method ir.Method, offset uint32) Finding {
	uri, _ := ctx.ClassArtifactURI(class)
	line, _ := method.LineForOffset(offset)
	return Finding{
		RuleID:      ruleID,
		Message:     message,
		ClassName:   class.Name,
		MethodName:  method.Name,
		Descriptor:  method.Descriptor,
		ArtifactURI: uri,
		Offset:      offset,
		Line:        line,
	}
}
