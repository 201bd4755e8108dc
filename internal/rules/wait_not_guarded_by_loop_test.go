package rules

import (
	"testing"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
)

func runWaitNotGuardedByLoop(t *testing.T, method ir.Method) []Finding {
	t.Helper()
	class := ir.Class{Name: "com/example/ClassA", ArtifactIndex: 0, Methods: []ir.Method{method}}
	artifacts := []ir.Artifact{{URI: "ClassA.class", ParentIndex: -1, Role: ir.RoleAnalysisTarget}}
	ctx := analysisctx.Build([]ir.Class{class}, artifacts, nil)
	findings, err := (waitNotGuardedByLoopRule{}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return findings
}

var objectWaitCall = ir.CallSite{Owner: "java/lang/Object", Name: "wait", Descriptor: "()V", Kind: ir.CallVirtual}

func TestWaitNotGuardedByLoopFlagsWaitUnderIf(t *testing.T) {
	method := ir.Method{
		Name: "methodOne", Descriptor: "(Ljava/lang/Object;Z)V",
		Calls: []ir.CallSite{withOffset(objectWaitCall, 10)},
		CFG: ir.ControlFlowGraph{
			Blocks: []ir.BasicBlock{
				{StartOffset: 0, EndOffset: 5},
				{StartOffset: 5, EndOffset: 15},
				{StartOffset: 15, EndOffset: 16},
			},
			Edges: []ir.Edge{
				{From: 0, To: 5, Kind: ir.EdgeBranch},
				{From: 0, To: 15, Kind: ir.EdgeFallthrough},
				{From: 5, To: 15, Kind: ir.EdgeFallthrough},
			},
		},
	}
	if findings := runWaitNotGuardedByLoop(t, method); len(findings) != 1 {
		t.Fatalf("findings = %+v, want one for wait() under a plain if", findings)
	}
}

func TestWaitNotGuardedByLoopIgnoresWaitInsideWhile(t *testing.T) {
	// entry[0,5) -> check[5,8) -> body[8,15) -> back edge to check -> end[15,16)
	method := ir.Method{
		Name: "methodTwo", Descriptor: "(Ljava/lang/Object;Z)V",
		Calls: []ir.CallSite{withOffset(objectWaitCall, 10)},
		CFG: ir.ControlFlowGraph{
			Blocks: []ir.BasicBlock{
				{StartOffset: 0, EndOffset: 5},
				{StartOffset: 5, EndOffset: 8},
				{StartOffset: 8, EndOffset: 15},
				{StartOffset: 15, EndOffset: 16},
			},
			Edges: []ir.Edge{
				{From: 0, To: 5, Kind: ir.EdgeFallthrough},
				{From: 5, To: 15, Kind: ir.EdgeBranch},
				{From: 5, To: 8, Kind: ir.EdgeFallthrough},
				{From: 8, To: 5, Kind: ir.EdgeBranch}, // back edge: loop range becomes [5,15)
			},
		},
	}
	if findings := runWaitNotGuardedByLoop(t, method); len(findings) != 0 {
		t.Fatalf("findings = %+v, want none for wait() inside a while loop", findings)
	}
}

func TestWaitNotGuardedByLoopFlagsConditionAwait(t *testing.T) {
	awaitCall := ir.CallSite{Owner: "java/util/concurrent/locks/Condition", Name: "await", Descriptor: "()V", Kind: ir.CallInterface, Offset: 10}
	method := ir.Method{
		Name: "methodThree", Descriptor: "(Z)V",
		Calls: []ir.CallSite{awaitCall},
		CFG: ir.ControlFlowGraph{
			Blocks: []ir.BasicBlock{
				{StartOffset: 0, EndOffset: 5},
				{StartOffset: 5, EndOffset: 15},
			},
			Edges: []ir.Edge{{From: 0, To: 5, Kind: ir.EdgeBranch}, {From: 0, To: 15, Kind: ir.EdgeFallthrough}},
		},
	}
	if findings := runWaitNotGuardedByLoop(t, method); len(findings) != 1 {
		t.Fatalf("findings = %+v, want one for Condition.await() under a plain if", findings)
	}
}
