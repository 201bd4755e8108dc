// Package dataflow implements the generic abstract stack machine and
// the FIFO worklist driver every rule's dataflow pass runs on top of.
//
// Grounded on original_source/src/dataflow/stack_machine.rs and
// original_source/src/dataflow/opcode_semantics.rs.
package dataflow

import "sort"

// Machine is a generic abstract operand stack plus local-variable slots,
// parameterized over the abstract value domain V. It caps stack depth,
// local slot count, and the number of distinct symbolic identities it
// will track, so that two runs over pathological bytecode converge to
// equal (and therefore de-duplicable) states.
type Machine[V any] struct {
	Stack []V
	Locals map[int]V

	DefaultValue V

	MaxStackDepth         int // 0 means unbounded
	MaxLocals             int // 0 means unbounded
	MaxSymbolicIdentities int // 0 means unbounded
}

// NewMachine returns a Machine with empty stack and locals.
func NewMachine[V any](defaultValue V) *Machine[V] {
	return &Machine[V]{DefaultValue: defaultValue, Locals: map[int]V{}}
}

// Push pushes v onto the stack. If MaxStackDepth is set and the stack
// is already at capacity, the oldest (bottom) element is dropped so the
// newest value always survives.
func (m *Machine[V]) Push(v V) {
	m.Stack = append(m.Stack, v)
	if m.MaxStackDepth > 0 && len(m.Stack) > m.MaxStackDepth {
		m.Stack = m.Stack[len(m.Stack)-m.MaxStackDepth:]
	}
}

// Pop removes and returns the top of the stack. If the stack is empty,
// it returns the default value without mutating the stack.
func (m *Machine[V]) Pop() V {
	if len(m.Stack) == 0 {
		return m.DefaultValue
	}
	top := m.Stack[len(m.Stack)-1]
	m.Stack = m.Stack[:len(m.Stack)-1]
	return top
}

// PopN pops n values and returns them in original (bottom-to-top)
// order. Popping past an empty stack yields DefaultValue for the
// missing entries.
func (m *Machine[V]) PopN(n int) []V {
	out := make([]V, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = m.Pop()
	}
	return out
}

// Peek returns the top of the stack without removing it.
func (m *Machine[V]) Peek() V {
	if len(m.Stack) == 0 {
		return m.DefaultValue
	}
	return m.Stack[len(m.Stack)-1]
}

// StoreLocal stores v at local slot index. If MaxLocals is set and
// index is out of range, the store is dropped.
func (m *Machine[V]) StoreLocal(index int, v V) {
	if m.MaxLocals > 0 && index >= m.MaxLocals {
		return
	}
	m.Locals[index] = v
}

// LoadLocal returns the value at local slot index, or DefaultValue if
// unset.
func (m *Machine[V]) LoadLocal(index int) V {
	if v, ok := m.Locals[index]; ok {
		return v
	}
	return m.DefaultValue
}

// RetainLocals removes every local slot whose index is not in keep,
// used when a CFG join needs to narrow the live-local set before
// comparing states.
func (m *Machine[V]) RetainLocals(keep map[int]bool) {
	for idx := range m.Locals {
		if !keep[idx] {
			delete(m.Locals, idx)
		}
	}
}

// SymbolicID is a small abstract identity a value domain can attach to
// a V to track aliasing (e.g. "this lock site's monitor object") across
// a dataflow pass without carrying full structural values.
type SymbolicID int

// Identified is implemented by value domains whose values can carry a
// SymbolicID, enabling CanonicalizeSymbolicIDs and
// EnforceSymbolicIdentityCap.
type Identified[V any] interface {
	SymbolicID() (SymbolicID, bool)
	WithSymbolicID(SymbolicID) V
	Unknown() V
}

// CanonicalizeSymbolicIDs reassigns every distinct symbolic ID appearing
// across the stack and locals (in that order, each scanned low-index to
// high-index) to a compact ID in first-encounter order, starting at 0.
// This makes two machines that reached structurally equivalent states
// via different ID-allocation histories compare equal.
func CanonicalizeSymbolicIDs[V Identified[V]](m *Machine[V]) {
	mapping := map[SymbolicID]SymbolicID{}
	next := SymbolicID(0)
	canon := func(v V) V {
		id, ok := v.SymbolicID()
		if !ok {
			return v
		}
		c, seen := mapping[id]
		if !seen {
			c = next
			mapping[id] = c
			next++
		}
		return v.WithSymbolicID(c)
	}
	for i, v := range m.Stack {
		m.Stack[i] = canon(v)
	}
	for _, k := range sortedLocalKeys(m.Locals) {
		m.Locals[k] = canon(m.Locals[k])
	}
}

// EnforceSymbolicIdentityCap keeps only the MaxSymbolicIdentities
// greatest (i.e. most recently allocated, assuming canonicalized
// first-encounter IDs) symbolic identities live; every value carrying
// an evicted ID is replaced with the domain's Unknown value. A
// MaxSymbolicIdentities of 0 means unbounded (no-op).
func EnforceSymbolicIdentityCap[V Identified[V]](m *Machine[V]) {
	if m.MaxSymbolicIdentities <= 0 {
		return
	}
	ids := map[SymbolicID]bool{}
	for _, v := range m.Stack {
		if id, ok := v.SymbolicID(); ok {
			ids[id] = true
		}
	}
	for _, v := range m.Locals {
		if id, ok := v.SymbolicID(); ok {
			ids[id] = true
		}
	}
	if len(ids) <= m.MaxSymbolicIdentities {
		return
	}
	sorted := make([]SymbolicID, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	keep := map[SymbolicID]bool{}
	for _, id := range sorted[:m.MaxSymbolicIdentities] {
		keep[id] = true
	}
	unknownify := func(v V) V {
		if id, ok := v.SymbolicID(); ok && !keep[id] {
			return v.Unknown()
		}
		return v
	}
	for i, v := range m.Stack {
		m.Stack[i] = unknownify(v)
	}
	for k, v := range m.Locals {
		m.Locals[k] = unknownify(v)
	}
}

func sortedLocalKeys[V any](locals map[int]V) []int {
	keys := make([]int, 0, len(locals))
	for k := range locals {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
