package dataflow

import (
	"fmt"
	"testing"

	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

// athrowSemantics is a minimal Semantics[int] that records the offset
// of every athrow instruction it visits; the state (an int visit
// counter) is irrelevant to the check itself but exercises state
// threading across blocks.
type athrowSemantics struct{}

func (athrowSemantics) InitialStates(method *ir.Method) []WorklistItem[int] {
	if len(method.CFG.Blocks) == 0 {
		return nil
	}
	return []WorklistItem[int]{{BlockOffset: method.CFG.Blocks[0].StartOffset, State: 0}}
}

func (athrowSemantics) CanonicalizeState(state int) int { return state }

func (athrowSemantics) Key(blockOffset uint32, state int) string {
	return fmt.Sprintf("%d", blockOffset)
}

func (athrowSemantics) TransferInstruction(state int, inst ir.Instruction) (int, TransferResult, any) {
	if inst.Opcode == opcode.Athrow {
		return state + 1, TerminatePath, inst.Offset
	}
	return state + 1, Continue, nil
}

func (athrowSemantics) OnBlockEnd(state int, block *ir.BasicBlock, successors []uint32) []*int {
	out := make([]*int, len(successors))
	for i := range out {
		s := state
		out[i] = &s
	}
	return out
}

func TestRunWorklistLinearCFG(t *testing.T) {
	method := &ir.Method{
		CFG: ir.ControlFlowGraph{
			Blocks: []ir.BasicBlock{
				{StartOffset: 0, EndOffset: 1, Instructions: []ir.Instruction{{Offset: 0, Opcode: opcode.Nop}}},
				{StartOffset: 1, EndOffset: 2, Instructions: []ir.Instruction{{Offset: 1, Opcode: opcode.Athrow}}},
			},
			Edges: []ir.Edge{{From: 0, To: 1, Kind: ir.EdgeFallthrough}},
		},
	}
	findings := RunWorklist[int](method, athrowSemantics{})
	if len(findings) != 1 || findings[0].(uint32) != 1 {
		t.Fatalf("findings = %v, want [1]", findings)
	}
}

func TestRunWorklistTerminatesOnCycle(t *testing.T) {
	// block0 -> block1 -> block0 (back edge) and block1 -> block2 (exit)
	method := &ir.Method{
		CFG: ir.ControlFlowGraph{
			Blocks: []ir.BasicBlock{
				{StartOffset: 0, EndOffset: 1, Instructions: []ir.Instruction{{Offset: 0, Opcode: opcode.Nop}}},
				{StartOffset: 1, EndOffset: 2, Instructions: []ir.Instruction{{Offset: 1, Opcode: opcode.Nop}}},
				{StartOffset: 2, EndOffset: 3, Instructions: []ir.Instruction{{Offset: 2, Opcode: opcode.Athrow}}},
			},
			Edges: []ir.Edge{
				{From: 0, To: 1, Kind: ir.EdgeFallthrough},
				{From: 1, To: 0, Kind: ir.EdgeBranch},
				{From: 1, To: 2, Kind: ir.EdgeFallthrough},
			},
		},
	}
	findings := RunWorklist[int](method, athrowSemantics{})
	if len(findings) != 1 || findings[0].(uint32) != 2 {
		t.Fatalf("findings = %v, want [2]; worklist should terminate via visited-set dedup", findings)
	}
}

func TestRunWorklistEmptyCFG(t *testing.T) {
	method := &ir.Method{}
	findings := RunWorklist[int](method, athrowSemantics{})
	if findings != nil {
		t.Fatalf("findings = %v, want nil for empty CFG", findings)
	}
}
