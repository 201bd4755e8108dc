package rules

import (
	"fmt"
	"strings"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

// comparetoOverflowRule flags compareTo implementations that compute
// their result via isub: the subtraction silently wraps for operands at
// the extremes of int range, turning a sort order comparison inverted
// for those inputs.
//
// Grounded on original_source/src/rules/compareto_overflow/mod.rs.
type comparetoOverflowRule struct{}

func (comparetoOverflowRule) Metadata() Metadata {
	return Metadata{
		ID:          "COMPARETO_OVERFLOW",
		Name:        "compareTo integer subtraction overflow",
		Description: "compareTo using integer subtraction can overflow for extreme values",
	}
}

func (r comparetoOverflowRule) Run(ctx *analysisctx.Context) ([]Finding, error) {
	var findings []Finding
	for _, class := range ctx.AnalysisTargetClasses() {
		for _, method := range class.Methods {
			if !isComparetoReturningInt(method) {
				continue
			}
			if callsSafeIntegerCompare(method) {
				continue
			}
			offset, ok := firstIsubOffset(method)
			if !ok {
				continue
			}
			message := fmt.Sprintf("Avoid integer subtraction in compareTo in %s.%s%s; use Integer.compare() to prevent overflow.",
				class.Name, method.Name, method.Descriptor)
			findings = append(findings, newFinding(ctx, r.Metadata().ID, message, class, method, offset))
		}
	}
	return findings, nil
}

func isComparetoReturningInt(method ir.Method) bool {
	return method.Name == "compareTo" && strings.HasSuffix(method.Descriptor, ")I")
}

func callsSafeIntegerCompare(method ir.Method) bool {
	for _, call := range method.Calls {
		if (call.Owner == "java/lang/Integer" || call.Owner == "java/lang/Long") && call.Name == "compare" {
			return true
		}
	}
	return false
}

func firstIsubOffset(method ir.Method) (uint32, bool) {
	for _, block := range method.CFG.Blocks {
		for _, inst := range block.Instructions {
			if inst.Opcode == opcode.Isub {
				return inst.Offset, true
			}
		}
	}
	return 0, false
}
