package rules

import (
	"testing"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

func runLocalComplexityGuard(t *testing.T, class ir.Class) []Finding {
	t.Helper()
	artifacts := []ir.Artifact{{URI: "Class.class", ParentIndex: -1, Role: ir.RoleAnalysisTarget}}
	ctx := analysisctx.Build([]ir.Class{class}, artifacts, nil)
	findings, err := (localComplexityGuardRule{}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return findings
}

func bytecodeWithIfCount(n int) []byte {
	code := make([]byte, 0, n*3+1)
	for i := 0; i < n; i++ {
		code = append(code, opcode.Ifeq, 0, 0)
	}
	code = append(code, opcode.Return)
	return code
}

func methodWithComplexity(name string, bytecode []byte, access ir.MethodAccess, catchHandlers int) ir.Method {
	var handlers []ir.ExceptionHandler
	for i := 0; i < catchHandlers; i++ {
		handlers = append(handlers, ir.ExceptionHandler{StartPC: 0, EndPC: 1, HandlerPC: 0, CaughtType: "java/lang/RuntimeException"})
	}
	return ir.Method{
		Name: name, Descriptor: "()V", Access: access,
		Bytecode:          bytecode,
		ExceptionHandlers: handlers,
	}
}

func TestLocalComplexityGuardReportsMethodAboveThreshold(t *testing.T) {
	method := methodWithComplexity("methodX", bytecodeWithIfCount(10), ir.MethodAccess{IsPublic: true}, 0)
	class := ir.Class{Name: "com/example/ClassA", Methods: []ir.Method{method}}
	findings := runLocalComplexityGuard(t, class)
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want one", findings)
	}
	want := "Method complexity 11 exceeds local threshold 10 in com/example/ClassA.methodX()V; simplify control flow or split this method."
	if findings[0].Message != want {
		t.Fatalf("message = %q, want %q", findings[0].Message, want)
	}
}

func TestLocalComplexityGuardDoesNotReportAtBoundary(t *testing.T) {
	method := methodWithComplexity("methodX", bytecodeWithIfCount(9), ir.MethodAccess{IsPublic: true}, 0)
	class := ir.Class{Name: "com/example/ClassB", Methods: []ir.Method{method}}
	if findings := runLocalComplexityGuard(t, class); len(findings) != 0 {
		t.Fatalf("findings = %+v, want none at the strict boundary", findings)
	}
}

func TestLocalComplexityGuardCountsCatchHandlersAsDecisions(t *testing.T) {
	method := methodWithComplexity("methodX", bytecodeWithIfCount(9), ir.MethodAccess{IsPublic: true}, 2)
	class := ir.Class{Name: "com/example/ClassD", Methods: []ir.Method{method}}
	findings := runLocalComplexityGuard(t, class)
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want one", findings)
	}
	want := "Method complexity 12 exceeds local threshold 10 in com/example/ClassD.methodX()V; simplify control flow or split this method."
	if findings[0].Message != want {
		t.Fatalf("message = %q, want %q", findings[0].Message, want)
	}
}

func TestLocalComplexityGuardCountsNonDefaultSwitchBranches(t *testing.T) {
	// tableswitch at offset 0 with low=1, high=10 -> 10 non-default branches.
	code := []byte{opcode.Tableswitch, 0, 0, 0}
	code = append(code, 0, 0, 0, 0) // default offset
	code = append(code, 0, 0, 0, 1)  // low = 1
	code = append(code, 0, 0, 0, 10) // high = 10
	for i := 0; i < 10; i++ {
		code = append(code, 0, 0, 0, 0)
	}
	code = append(code, opcode.Return)

	method := methodWithComplexity("methodX", code, ir.MethodAccess{IsPublic: true}, 0)
	class := ir.Class{Name: "com/example/ClassE", Methods: []ir.Method{method}}
	findings := runLocalComplexityGuard(t, class)
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want one", findings)
	}
	want := "Method complexity 11 exceeds local threshold 10 in com/example/ClassE.methodX()V; simplify control flow or split this method."
	if findings[0].Message != want {
		t.Fatalf("message = %q, want %q", findings[0].Message, want)
	}
}

func TestLocalComplexityGuardSkipsSyntheticBridgeAndNonExecutableMethods(t *testing.T) {
	concrete := methodWithComplexity("methodA", bytecodeWithIfCount(10), ir.MethodAccess{IsPublic: true}, 0)
	synthetic := methodWithComplexity("methodB", bytecodeWithIfCount(10), ir.MethodAccess{IsPublic: true, IsSynthetic: true}, 0)
	bridge := methodWithComplexity("methodC", bytecodeWithIfCount(10), ir.MethodAccess{IsPublic: true, IsBridge: true}, 0)
	abstractMethod := methodWithComplexity("methodD", nil, ir.MethodAccess{IsPublic: true, IsAbstract: true}, 0)

	class := ir.Class{Name: "com/example/ClassG", Methods: []ir.Method{synthetic, bridge, abstractMethod, concrete}}
	findings := runLocalComplexityGuard(t, class)
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want one", findings)
	}
	if findings[0].MethodName != "methodA" {
		t.Fatalf("MethodName = %q, want methodA", findings[0].MethodName)
	}
}
