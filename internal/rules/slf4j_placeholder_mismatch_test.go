package rules

import (
	"testing"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

func runSLF4JPlaceholderMismatch(t *testing.T, method ir.Method) []Finding {
	t.Helper()
	class := ir.Class{Name: "com/example/Runner", ArtifactIndex: 0, Methods: []ir.Method{method}}
	artifacts := []ir.Artifact{{URI: "Runner.class", ParentIndex: -1, Role: ir.RoleAnalysisTarget}}
	ctx := analysisctx.Build([]ir.Class{class}, artifacts, nil)
	findings, err := (slf4jPlaceholderMismatchRule{}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return findings
}

// loggerInfoMethod builds a method that loads the logger from local 1,
// pushes a constant format string, pushes argCount null Object args, and
// calls Logger.info with the matching descriptor.
func loggerInfoMethod(format string, argCount int) ir.Method {
	var bytecode []byte
	var instructions []ir.Instruction

	ldcOffset := uint32(1) // after the one-byte aload_1
	bytecode = append(bytecode, opcode.Aload1, opcode.Ldc, 0)
	instructions = append(instructions,
		ir.Instruction{Offset: 0, Opcode: opcode.Aload1, Kind: ir.Other{}},
		ir.Instruction{Offset: ldcOffset, Opcode: opcode.Ldc, Kind: ir.ConstString{Value: format}},
	)

	for i := 0; i < argCount; i++ {
		offset := uint32(len(bytecode))
		bytecode = append(bytecode, opcode.AconstNull)
		instructions = append(instructions, ir.Instruction{Offset: offset, Opcode: opcode.AconstNull, Kind: ir.Other{}})
	}

	descriptor := "(Ljava/lang/String;"
	for i := 0; i < argCount; i++ {
		descriptor += "Ljava/lang/Object;"
	}
	descriptor += ")V"

	callOffset := uint32(len(bytecode))
	bytecode = append(bytecode, opcode.Invokeinterface, 0, 0, 0, 0)
	call := ir.CallSite{Owner: "org/slf4j/Logger", Name: "info", Descriptor: descriptor, Kind: ir.CallInterface, Offset: callOffset}
	instructions = append(instructions, ir.Instruction{Offset: callOffset, Opcode: opcode.Invokeinterface, Kind: ir.Invoke{Call: call}})

	returnOffset := uint32(len(bytecode))
	bytecode = append(bytecode, opcode.Return)
	instructions = append(instructions, ir.Instruction{Offset: returnOffset, Opcode: opcode.Return, Kind: ir.Other{}})

	return ir.Method{
		Name: "run", Descriptor: "()V",
		Bytecode: bytecode,
		Calls:    []ir.CallSite{call},
		CFG:      ir.ControlFlowGraph{Blocks: []ir.BasicBlock{{StartOffset: 0, EndOffset: uint32(len(bytecode)), Instructions: instructions}}},
	}
}

func TestSLF4JPlaceholderMismatchReportsMissingArgs(t *testing.T) {
	method := loggerInfoMethod("Hello {} {}", 1)
	findings := runSLF4JPlaceholderMismatch(t, method)
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want one", findings)
	}
}

func TestSLF4JPlaceholderMismatchAllowsMatchedCount(t *testing.T) {
	method := loggerInfoMethod("Hello {}", 1)
	if findings := runSLF4JPlaceholderMismatch(t, method); len(findings) != 0 {
		t.Fatalf("findings = %+v, want none for matched placeholder count", findings)
	}
}

func TestSLF4JPlaceholderMismatchAllowsEscapedBraces(t *testing.T) {
	method := loggerInfoMethod("Escaped \\{} text", 0)
	if findings := runSLF4JPlaceholderMismatch(t, method); len(findings) != 0 {
		t.Fatalf("findings = %+v, want none for an escaped placeholder", findings)
	}
}
