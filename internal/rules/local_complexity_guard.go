package rules

import (
	"fmt"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

const localComplexityThreshold = 10

// localComplexityGuardRule flags concrete methods whose local cyclomatic
// complexity (1 + decision points + catch handlers) exceeds a strict
// fixed threshold.
//
// Grounded on original_source/src/rules/codex_local_complexity_guard/mod.rs.
type localComplexityGuardRule struct{}

func (localComplexityGuardRule) Metadata() Metadata {
	return Metadata{
		ID:          "LOCAL_COMPLEXITY_GUARD",
		Name:        "Local cyclomatic complexity guard",
		Description: "Reports concrete methods whose local cyclomatic complexity exceeds a strict fixed threshold",
	}
}

func (r localComplexityGuardRule) Run(ctx *analysisctx.Context) ([]Finding, error) {
	var findings []Finding
	for _, class := range ctx.AnalysisTargetClasses() {
		for _, method := range class.Methods {
			if !isExecutableMethod(method) || isCompilerGeneratedNoise(method) {
				continue
			}
			complexity, err := methodLocalComplexity(method)
			if err != nil {
				return nil, fmt.Errorf("rules: LOCAL_COMPLEXITY_GUARD in %s.%s%s: %w", class.Name, method.Name, method.Descriptor, err)
			}
			if complexity <= localComplexityThreshold {
				continue
			}
			message := fmt.Sprintf("Method complexity %d exceeds local threshold %d in %s.%s%s; simplify control flow or split this method.",
				complexity, localComplexityThreshold, class.Name, method.Name, method.Descriptor)
			findings = append(findings, newFinding(ctx, r.Metadata().ID, message, class, method, 0))
		}
	}
	return findings, nil
}

func isExecutableMethod(method ir.Method) bool {
	return !method.Access.IsAbstract && len(method.Bytecode) > 0
}

func isCompilerGeneratedNoise(method ir.Method) bool {
	return method.Access.IsSynthetic || method.Access.IsBridge
}

func methodLocalComplexity(method ir.Method) (int, error) {
	code := method.Bytecode
	decisionPoints := 0
	offset := 0
	for offset < len(code) {
		op := code[offset]
		switch {
		case op == opcode.Tableswitch:
			n, err := tableswitchNonDefaultBranchCount(code, offset)
			if err != nil {
				return 0, err
			}
			decisionPoints += n
		case op == opcode.Lookupswitch:
			n, err := lookupswitchNonDefaultBranchCount(code, offset)
			if err != nil {
				return 0, err
			}
			decisionPoints += n
		case isComplexityConditionalBranch(op):
			decisionPoints++
		}
		length, ok := opcode.Length(code, offset)
		if !ok {
			return 0, fmt.Errorf("rules: invalid opcode length at offset %d", offset)
		}
		offset += length
	}

	catchHandlers := 0
	for _, handler := range method.ExceptionHandlers {
		if handler.CaughtType != "" {
			catchHandlers++
		}
	}

	return 1 + decisionPoints + catchHandlers, nil
}

// isComplexityConditionalBranch matches the two-way if* family
// (0x99..0xa6) plus ifnull/ifnonnull. tableswitch/lookupswitch/jsr are
// handled separately or excluded.
func isComplexityConditionalBranch(op byte) bool {
	if op >= opcode.Ifeq && op <= opcode.IfAcmpne {
		return true
	}
	return op == opcode.Ifnull || op == opcode.Ifnonnull
}

func tableswitchNonDefaultBranchCount(code []byte, offset int) (int, error) {
	pad := opcode.Padding(offset)
	base := offset + 1 + pad
	if base+12 > len(code) {
		return 0, fmt.Errorf("rules: truncated tableswitch at offset %d", offset)
	}
	low := beInt32(code, base+4)
	high := beInt32(code, base+8)
	if high < low {
		return 0, fmt.Errorf("rules: invalid tableswitch range at offset %d", offset)
	}
	return int(high-low) + 1, nil
}

func lookupswitchNonDefaultBranchCount(code []byte, offset int) (int, error) {
	pad := opcode.Padding(offset)
	base := offset + 1 + pad
	if base+8 > len(code) {
		return 0, fmt.Errorf("rules: truncated lookupswitch at offset %d", offset)
	}
	npairs := beInt32(code, base+4)
	if npairs < 0 {
		return 0, fmt.Errorf("rules: negative lookupswitch pair count at offset %d", offset)
	}
	return int(npairs), nil
}

func beInt32(code []byte, offset int) int32 {
	u := uint32(code[offset])<<24 | uint32(code[offset+1])<<16 | uint32(code[offset+2])<<8 | uint32(code[offset+3])
	return int32(u)
}
