package dataflow

import (
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

// ValueDomain is the minimal constructor set a value domain must supply
// for ApplyDefaultSemantics to drive a generic stack machine through an
// opcode it has no rule-specific handling for.
type ValueDomain[V any] interface {
	UnknownValue() V
	ScalarValue() V
}

// Effect is the abstract action ApplyDefaultSemantics takes for a given
// opcode, expressed independently of any concrete value domain so rules
// can log or special-case specific effect shapes if they want to.
type Effect int

const (
	EffectNone Effect = iota
	EffectPushUnknown
	EffectPushScalar
	EffectLoadLocal
	EffectStoreLocal
	EffectPop1
	EffectPop2
	EffectDup
)

// ApplyDefaultSemantics applies the table-driven default effect of a
// single instruction to m, using domain to construct push values. It
// covers the opcode families original_source/src/dataflow/opcode_semantics.rs
// handles generically: the scalar-constant push family
// (iconst_*/lconst_*/fconst_*/dconst_*/bipush/sipush/ldc*), the
// unknown-value pushes (aconst_null/new), the indexed load/store
// families (*load*/*store*), pop/pop2/dup, and the branch/switch
// opcodes (which pop their operand(s) but push nothing). Opcodes this
// table has no opinion on are left as EffectNone and do not touch m —
// callers apply rule-specific handling for those themselves.
func ApplyDefaultSemantics[V any](m *Machine[V], domain ValueDomain[V], code []byte, inst ir.Instruction) Effect {
	op := inst.Opcode
	switch {
	case isScalarPush(op):
		m.Push(domain.ScalarValue())
		return EffectPushScalar
	case isUnknownPush(op):
		m.Push(domain.UnknownValue())
		return EffectPushUnknown
	case isFixedLoad(op):
		idx := fixedLoadIndex(op)
		m.Push(m.LoadLocal(idx))
		return EffectLoadLocal
	case isOperandLoad(op):
		idx := operandIndex(code, inst)
		m.Push(m.LoadLocal(idx))
		return EffectLoadLocal
	case isFixedStore(op):
		idx := fixedStoreIndex(op)
		m.StoreLocal(idx, m.Pop())
		return EffectStoreLocal
	case isOperandStore(op):
		idx := operandIndex(code, inst)
		m.StoreLocal(idx, m.Pop())
		return EffectStoreLocal
	case op == opcode.Pop:
		m.Pop()
		return EffectPop1
	case op == opcode.Pop2:
		m.Pop()
		m.Pop()
		return EffectPop2
	case op == opcode.Dup:
		v := m.Peek()
		m.Push(v)
		return EffectDup
	case opcode.IsConditionalBranch(op), op == opcode.JsrW:
		m.Pop()
		if takesTwoOperands(op) {
			m.Pop()
			return EffectPop2
		}
		return EffectPop1
	case opcode.IsSwitch(op):
		m.Pop()
		return EffectPop1
	}
	return EffectNone
}

func takesTwoOperands(op byte) bool {
	switch op {
	case opcode.IfIcmpeq, opcode.IfIcmpne, opcode.IfIcmplt, opcode.IfIcmpge,
		opcode.IfIcmpgt, opcode.IfIcmple, opcode.IfAcmpeq, opcode.IfAcmpne:
		return true
	}
	return false
}

func isScalarPush(op byte) bool {
	switch op {
	case opcode.IconstM1, opcode.Iconst0, opcode.Iconst1, opcode.Iconst2,
		opcode.Iconst3, opcode.Iconst4, opcode.Iconst5,
		opcode.Lconst0, opcode.Lconst1, opcode.Fconst0, opcode.Fconst1, opcode.Fconst2,
		opcode.Dconst0, opcode.Dconst1, opcode.Bipush, opcode.Sipush,
		opcode.Ldc, opcode.LdcW, opcode.Ldc2W:
		return true
	}
	return false
}

func isUnknownPush(op byte) bool {
	switch op {
	case opcode.AconstNull, opcode.New:
		return true
	}
	return false
}

func isFixedLoad(op byte) bool {
	switch op {
	case opcode.Iload0, opcode.Iload1, opcode.Iload2, opcode.Iload3,
		opcode.Lload0, opcode.Lload1, opcode.Lload2, opcode.Lload3,
		opcode.Fload0, opcode.Fload1, opcode.Fload2, opcode.Fload3,
		opcode.Dload0, opcode.Dload1, opcode.Dload2, opcode.Dload3,
		opcode.Aload0, opcode.Aload1, opcode.Aload2, opcode.Aload3:
		return true
	}
	return false
}

func fixedLoadIndex(op byte) int {
	switch op {
	case opcode.Iload0, opcode.Lload0, opcode.Fload0, opcode.Dload0, opcode.Aload0:
		return 0
	case opcode.Iload1, opcode.Lload1, opcode.Fload1, opcode.Dload1, opcode.Aload1:
		return 1
	case opcode.Iload2, opcode.Lload2, opcode.Fload2, opcode.Dload2, opcode.Aload2:
		return 2
	default:
		return 3
	}
}

func isOperandLoad(op byte) bool {
	switch op {
	case opcode.Iload, opcode.Lload, opcode.Fload, opcode.Dload, opcode.Aload:
		return true
	}
	return false
}

func isFixedStore(op byte) bool {
	switch op {
	case opcode.Istore0, opcode.Istore1, opcode.Istore2, opcode.Istore3,
		opcode.Lstore0, opcode.Lstore1, opcode.Lstore2, opcode.Lstore3,
		opcode.Fstore0, opcode.Fstore1, opcode.Fstore2, opcode.Fstore3,
		opcode.Dstore0, opcode.Dstore1, opcode.Dstore2, opcode.Dstore3,
		opcode.Astore0, opcode.Astore1, opcode.Astore2, opcode.Astore3:
		return true
	}
	return false
}

func fixedStoreIndex(op byte) int {
	switch op {
	case opcode.Istore0, opcode.Lstore0, opcode.Fstore0, opcode.Dstore0, opcode.Astore0:
		return 0
	case opcode.Istore1, opcode.Lstore1, opcode.Fstore1, opcode.Dstore1, opcode.Astore1:
		return 1
	case opcode.Istore2, opcode.Lstore2, opcode.Fstore2, opcode.Dstore2, opcode.Astore2:
		return 2
	default:
		return 3
	}
}

func isOperandStore(op byte) bool {
	switch op {
	case opcode.Istore, opcode.Lstore, opcode.Fstore, opcode.Dstore, opcode.Astore:
		return true
	}
	return false
}

// operandIndex reads the single-byte local-variable index operand of a
// *load/*store instruction directly out of the method's raw bytecode.
func operandIndex(code []byte, inst ir.Instruction) int {
	pos := int(inst.Offset) + 1
	if pos >= len(code) {
		return -1
	}
	return int(code[pos])
}
