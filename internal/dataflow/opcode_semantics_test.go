package dataflow

import (
	"testing"

	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

type intDomain struct{}

func (intDomain) UnknownValue() int { return -1 }
func (intDomain) ScalarValue() int  { return -2 }

func TestApplyDefaultSemanticsScalarPush(t *testing.T) {
	m := NewMachine[int](0)
	inst := ir.Instruction{Offset: 0, Opcode: opcode.Iconst1}
	eff := ApplyDefaultSemantics[int](m, intDomain{}, nil, inst)
	if eff != EffectPushScalar {
		t.Fatalf("effect = %v, want EffectPushScalar", eff)
	}
	if m.Peek() != -2 {
		t.Fatalf("pushed value = %d, want -2", m.Peek())
	}
}

func TestApplyDefaultSemanticsUnknownPush(t *testing.T) {
	m := NewMachine[int](0)
	inst := ir.Instruction{Offset: 0, Opcode: opcode.AconstNull}
	eff := ApplyDefaultSemantics[int](m, intDomain{}, nil, inst)
	if eff != EffectPushUnknown || m.Peek() != -1 {
		t.Fatalf("effect/value = %v/%d, want EffectPushUnknown/-1", eff, m.Peek())
	}
}

func TestApplyDefaultSemanticsFixedLoadStore(t *testing.T) {
	m := NewMachine[int](0)
	m.StoreLocal(1, 42)
	inst := ir.Instruction{Offset: 0, Opcode: opcode.Iload1}
	ApplyDefaultSemantics[int](m, intDomain{}, nil, inst)
	if m.Peek() != 42 {
		t.Fatalf("Iload1 pushed %d, want 42", m.Peek())
	}

	m2 := NewMachine[int](0)
	m2.Push(7)
	storeInst := ir.Instruction{Offset: 0, Opcode: opcode.Istore2}
	ApplyDefaultSemantics[int](m2, intDomain{}, nil, storeInst)
	if got := m2.LoadLocal(2); got != 7 {
		t.Fatalf("Istore2 stored %d, want 7", got)
	}
}

func TestApplyDefaultSemanticsOperandLoad(t *testing.T) {
	m := NewMachine[int](0)
	m.StoreLocal(5, 99)
	code := []byte{byte(opcode.Iload), 5}
	inst := ir.Instruction{Offset: 0, Opcode: opcode.Iload}
	ApplyDefaultSemantics[int](m, intDomain{}, code, inst)
	if m.Peek() != 99 {
		t.Fatalf("iload 5 pushed %d, want 99", m.Peek())
	}
}

func TestApplyDefaultSemanticsPopDup(t *testing.T) {
	m := NewMachine[int](0)
	m.Push(1)
	m.Push(2)
	ApplyDefaultSemantics[int](m, intDomain{}, nil, ir.Instruction{Opcode: opcode.Pop})
	if len(m.Stack) != 1 {
		t.Fatalf("after pop, stack = %v", m.Stack)
	}
	ApplyDefaultSemantics[int](m, intDomain{}, nil, ir.Instruction{Opcode: opcode.Dup})
	if len(m.Stack) != 2 || m.Stack[0] != m.Stack[1] {
		t.Fatalf("after dup, stack = %v", m.Stack)
	}
}

func TestApplyDefaultSemanticsConditionalBranchPopsOperands(t *testing.T) {
	m := NewMachine[int](0)
	m.Push(1)
	m.Push(2)
	ApplyDefaultSemantics[int](m, intDomain{}, nil, ir.Instruction{Opcode: opcode.IfIcmpeq})
	if len(m.Stack) != 0 {
		t.Fatalf("if_icmpeq should pop two operands, stack = %v", m.Stack)
	}
}

func TestApplyDefaultSemanticsUnhandledOpcodeIsNoop(t *testing.T) {
	m := NewMachine[int](0)
	eff := ApplyDefaultSemantics[int](m, intDomain{}, nil, ir.Instruction{Opcode: opcode.Nop})
	if eff != EffectNone {
		t.Fatalf("nop should be EffectNone, got %v", eff)
	}
}
