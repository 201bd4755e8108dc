package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/dataflow"
	"github.com/kengotoda/inspequte/internal/descriptor"
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

// exceptionCauseNotPreservedRule symbolically executes every catch
// handler's bytecode: a freshly-constructed exception thrown from the
// handler without its constructor receiving the caught exception as a
// cause, or without a subsequent Throwable.initCause(caught) call,
// drops the original failure's cause chain.
//
// Grounded on original_source/src/rules/exception_cause_not_preserved/mod.rs
// and spec.md §4.9's exception-handler exploration design (start at
// handler_pc with {Caught} on the stack; explore only forward-reachable
// blocks; terminate each path at the first athrow or method exit).
type exceptionCauseNotPreservedRule struct{}

func (exceptionCauseNotPreservedRule) Metadata() Metadata {
	return Metadata{
		ID:          "EXCEPTION_CAUSE_NOT_PRESERVED",
		Name:        "Exception cause not preserved",
		Description: "A caught exception's cause is not propagated to a newly thrown exception",
	}
}

func (r exceptionCauseNotPreservedRule) Run(ctx *analysisctx.Context) ([]Finding, error) {
	var findings []Finding
	for _, class := range ctx.AnalysisTargetClasses() {
		for _, method := range class.Methods {
			for _, handler := range method.ExceptionHandlers {
				sem := excCauseSemantics{code: method.Bytecode, handlerPC: handler.HandlerPC}
				for _, raw := range dataflow.RunWorklist[excCauseState](&method, sem) {
					offset := raw.(uint32)
					message := fmt.Sprintf("Exception cause not preserved when rethrowing in %s.%s%s",
						class.Name, method.Name, method.Descriptor)
					findings = append(findings, newFinding(ctx, r.Metadata().ID, message, class, method, offset))
				}
			}
		}
	}
	return findings, nil
}

// excCauseKind classifies an abstract value's provenance.
type excCauseKind int

const (
	excOther excCauseKind = iota
	excCaught
	excNew
)

// excCauseValue is the value domain for the exception-cause dataflow
// pass: {Other, Caught, New(symbolic_id)} per spec.md §9, with
// causeKnown tracking whether that specific New object's constructor or
// a later initCause call has already threaded the caught exception
// through.
type excCauseValue struct {
	kind       excCauseKind
	id         dataflow.SymbolicID
	causeKnown bool
}

func (v excCauseValue) SymbolicID() (dataflow.SymbolicID, bool) {
	if v.kind != excNew {
		return 0, false
	}
	return v.id, true
}

func (v excCauseValue) WithSymbolicID(id dataflow.SymbolicID) excCauseValue {
	if v.kind != excNew {
		return v
	}
	return excCauseValue{kind: excNew, id: id, causeKnown: v.causeKnown}
}

func (v excCauseValue) Unknown() excCauseValue { return excCauseValue{kind: excOther} }

type excCauseDomain struct{}

func (excCauseDomain) UnknownValue() excCauseValue { return excCauseValue{kind: excOther} }
func (excCauseDomain) ScalarValue() excCauseValue  { return excCauseValue{kind: excOther} }

// excCauseState is the per-path worklist state: an abstract stack
// machine over excCauseValue plus the next symbolic id to allocate.
type excCauseState struct {
	m      *dataflow.Machine[excCauseValue]
	nextID dataflow.SymbolicID
}

func (s excCauseState) clone() excCauseState {
	m := &dataflow.Machine[excCauseValue]{
		Stack:                 append([]excCauseValue(nil), s.m.Stack...),
		Locals:                make(map[int]excCauseValue, len(s.m.Locals)),
		DefaultValue:          s.m.DefaultValue,
		MaxStackDepth:         s.m.MaxStackDepth,
		MaxLocals:             s.m.MaxLocals,
		MaxSymbolicIdentities: s.m.MaxSymbolicIdentities,
	}
	for k, v := range s.m.Locals {
		m.Locals[k] = v
	}
	return excCauseState{m: m, nextID: s.nextID}
}

// markCausePreserved flags every live stack/local value sharing id as
// cause-known, covering dup'd copies of the object still in scope after
// the copy that was consumed by invokespecial/initCause.
func (s *excCauseState) markCausePreserved(id dataflow.SymbolicID) {
	for i, v := range s.m.Stack {
		if v.kind == excNew && v.id == id {
			s.m.Stack[i].causeKnown = true
		}
	}
	for k, v := range s.m.Locals {
		if v.kind == excNew && v.id == id {
			v.causeKnown = true
			s.m.Locals[k] = v
		}
	}
}

// excCauseSemantics drives dataflow.RunWorklist for a single exception
// handler. code is the owning method's raw bytecode (needed by
// ApplyDefaultSemantics for operand-indexed load/store opcodes); the
// Semantics interface itself receives no method reference per
// instruction, so both are captured once at construction.
type excCauseSemantics struct {
	code      []byte
	handlerPC uint32
}

func (sem excCauseSemantics) InitialStates(method *ir.Method) []dataflow.WorklistItem[excCauseState] {
	if _, ok := method.CFG.BlockAt(sem.handlerPC); !ok {
		return nil
	}
	m := &dataflow.Machine[excCauseValue]{Locals: map[int]excCauseValue{}, DefaultValue: excCauseValue{kind: excOther}}
	m.Push(excCauseValue{kind: excCaught})
	return []dataflow.WorklistItem[excCauseState]{{BlockOffset: sem.handlerPC, State: excCauseState{m: m}}}
}

func (sem excCauseSemantics) CanonicalizeState(state excCauseState) excCauseState {
	next := state.clone()
	dataflow.CanonicalizeSymbolicIDs[excCauseValue](next.m)
	return next
}

func (sem excCauseSemantics) Key(blockOffset uint32, state excCauseState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", blockOffset)
	for _, v := range state.m.Stack {
		fmt.Fprintf(&b, "|s:%d:%d:%v", v.kind, v.id, v.causeKnown)
	}
	localKeys := make([]int, 0, len(state.m.Locals))
	for k := range state.m.Locals {
		localKeys = append(localKeys, k)
	}
	sort.Ints(localKeys)
	for _, k := range localKeys {
		v := state.m.Locals[k]
		fmt.Fprintf(&b, "|l%d:%d:%d:%v", k, v.kind, v.id, v.causeKnown)
	}
	return b.String()
}

func (sem excCauseSemantics) TransferInstruction(state excCauseState, inst ir.Instruction) (excCauseState, dataflow.TransferResult, any) {
	next := state.clone()
	switch {
	case inst.Opcode == opcode.New:
		id := next.nextID
		next.nextID++
		next.m.Push(excCauseValue{kind: excNew, id: id})
		return next, dataflow.Continue, nil

	case inst.Opcode == opcode.Athrow:
		top := next.m.Pop()
		if top.kind == excNew && !top.causeKnown {
			return next, dataflow.TerminatePath, inst.Offset
		}
		return next, dataflow.TerminatePath, nil

	case inst.Opcode == opcode.Invokespecial:
		call, ok := invokeOf(inst)
		if ok && call.Name == "<init>" {
			next.applyConstructorCall(call)
			return next, dataflow.Continue, nil
		}
		if ok {
			next.applyGenericInvoke(call, false)
		}
		return next, dataflow.Continue, nil

	case inst.Opcode == opcode.Invokevirtual, inst.Opcode == opcode.Invokeinterface:
		call, ok := invokeOf(inst)
		if ok && call.Name == "initCause" && strings.HasSuffix(call.Descriptor, ")Ljava/lang/Throwable;") {
			next.applyInitCause()
			return next, dataflow.Continue, nil
		}
		if ok {
			next.applyGenericInvoke(call, false)
		}
		return next, dataflow.Continue, nil

	case inst.Opcode == opcode.Invokestatic:
		if call, ok := invokeOf(inst); ok {
			next.applyGenericInvoke(call, true)
		}
		return next, dataflow.Continue, nil

	case inst.Opcode == opcode.Invokedynamic:
		next.m.Push(excCauseValue{kind: excOther})
		return next, dataflow.Continue, nil

	case isFieldOpcode(inst.Opcode):
		next.applyFieldAccess(inst.Opcode)
		return next, dataflow.Continue, nil

	default:
		dataflow.ApplyDefaultSemantics[excCauseValue](next.m, excCauseDomain{}, sem.code, inst)
		return next, dataflow.Continue, nil
	}
}

// OnBlockEnd restricts exploration to blocks at or after handlerPC, per
// spec.md §4.9: this prunes re-entry into the protected try body.
func (sem excCauseSemantics) OnBlockEnd(state excCauseState, block *ir.BasicBlock, successors []uint32) []*excCauseState {
	out := make([]*excCauseState, len(successors))
	for i, succ := range successors {
		if succ < sem.handlerPC {
			continue
		}
		s := state
		out[i] = &s
	}
	return out
}

func (s *excCauseState) applyConstructorCall(call ir.CallSite) {
	paramCount, _ := descriptor.ParamCount(call.Descriptor)
	args := s.m.PopN(paramCount)
	recv := s.m.Pop()
	if recv.kind != excNew {
		return
	}
	for _, a := range args {
		if a.kind == excCaught {
			s.markCausePreserved(recv.id)
			return
		}
	}
}

func (s *excCauseState) applyInitCause() {
	arg := s.m.Pop()
	recv := s.m.Pop()
	if recv.kind == excNew && arg.kind == excCaught {
		recv.causeKnown = true
		s.markCausePreserved(recv.id)
	}
	s.m.Push(recv)
}

func (s *excCauseState) applyGenericInvoke(call ir.CallSite, isStatic bool) {
	paramCount, _ := descriptor.ParamCount(call.Descriptor)
	s.m.PopN(paramCount)
	if !isStatic {
		s.m.Pop()
	}
	retKind, _ := descriptor.Return(call.Descriptor)
	if retKind != descriptor.ReturnVoid {
		s.m.Push(excCauseValue{kind: excOther})
	}
}

func (s *excCauseState) applyFieldAccess(op byte) {
	switch op {
	case opcode.Getstatic:
		s.m.Push(excCauseValue{kind: excOther})
	case opcode.Putstatic:
		s.m.Pop()
	case opcode.Getfield:
		s.m.Pop()
		s.m.Push(excCauseValue{kind: excOther})
	case opcode.Putfield:
		s.m.Pop()
		s.m.Pop()
	}
}

func invokeOf(inst ir.Instruction) (ir.CallSite, bool) {
	call, ok := inst.Kind.(ir.Invoke)
	if !ok {
		return ir.CallSite{}, false
	}
	return call.Call, true
}

func isFieldOpcode(op byte) bool {
	switch op {
	case opcode.Getstatic, opcode.Putstatic, opcode.Getfield, opcode.Putfield:
		return true
	}
	return false
}
