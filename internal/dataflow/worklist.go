package dataflow

import (
	"github.com/kengotoda/inspequte/internal/ir"
)

// TransferResult tells RunWorklist what to do with a path after a
// single instruction has been transferred.
type TransferResult int

const (
	// Continue keeps walking the current basic block.
	Continue TransferResult = iota
	// TerminatePath stops exploring this path with no finding.
	TerminatePath
)

// Semantics is the contract a rule's dataflow pass implements to drive
// RunWorklist. S is the rule's own per-path state type; Key turns a
// canonicalized S into a stable string for the worklist's visited-set.
type Semantics[S any] interface {
	// InitialStates returns the state(s) the worklist seeds at each
	// entry block of the method (normally just its start offset).
	InitialStates(method *ir.Method) []WorklistItem[S]

	// CanonicalizeState returns a canonical copy of state suitable for
	// visited-set deduplication (e.g. after symbolic-ID
	// canonicalization and identity capping).
	CanonicalizeState(state S) S

	// Key returns the visited-set map key for a canonicalized state at
	// a given block offset.
	Key(blockOffset uint32, state S) string

	// TransferInstruction applies a single instruction's effect to
	// state, returning the (possibly mutated) state and whether to
	// keep walking. found, if non-nil, is recorded by RunWorklist and
	// the path is not explored further.
	TransferInstruction(state S, inst ir.Instruction) (next S, result TransferResult, found any)

	// OnBlockEnd is called once a block's instructions are exhausted.
	// The returned slice is positionally aligned with successors: a nil
	// entry at index i prunes that successor (e.g. restricting
	// exploration to the suffix of a catch handler); a non-nil entry
	// enqueues its pointee as the state arriving at successors[i].
	OnBlockEnd(state S, block *ir.BasicBlock, successors []uint32) []*S
}

// WorklistItem pairs a block offset with the path state arriving at it.
type WorklistItem[S any] struct {
	BlockOffset uint32
	State       S
}

// RunWorklist drives a FIFO worklist dataflow pass over method's CFG
// using sem. It returns every non-nil `found` value TransferInstruction
// produced, in the order instructions were visited. Two paths that
// arrive at the same block with keys that compare equal (after
// canonicalization) are deduplicated: only the first is explored,
// guaranteeing termination regardless of how many back-edges the CFG
// has.
func RunWorklist[S any](method *ir.Method, sem Semantics[S]) []any {
	var findings []any
	visited := map[string]bool{}

	queue := sem.InitialStates(method)
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		canon := sem.CanonicalizeState(item.State)
		key := sem.Key(item.BlockOffset, canon)
		if visited[key] {
			continue
		}
		visited[key] = true

		block, ok := method.CFG.BlockAt(item.BlockOffset)
		if !ok {
			continue
		}

		state := canon
		terminated := false
		for _, inst := range block.Instructions {
			next, result, found := sem.TransferInstruction(state, inst)
			state = next
			if found != nil {
				findings = append(findings, found)
			}
			if result == TerminatePath || found != nil {
				terminated = true
				break
			}
		}
		if terminated {
			continue
		}

		successors := method.CFG.Successors(item.BlockOffset)
		for i, next := range sem.OnBlockEnd(state, block, successors) {
			if i >= len(successors) || next == nil {
				continue
			}
			queue = append(queue, WorklistItem[S]{BlockOffset: successors[i], State: *next})
		}
	}
	return findings
}
