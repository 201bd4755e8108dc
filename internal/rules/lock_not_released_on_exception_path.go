package rules

import (
	"fmt"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/dataflow"
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

// lockNotReleasedRule flags a java.util.concurrent.locks.Lock.lock()
// call site from which some CFG path reaches a method exit (return or
// athrow) without passing through a call to unlock() on the way.
//
// Grounded on original_source/src/rules/lock_not_released_on_exception_path/mod.rs.
type lockNotReleasedRule struct{}

func (lockNotReleasedRule) Metadata() Metadata {
	return Metadata{
		ID:          "LOCK_NOT_RELEASED_ON_EXCEPTION_PATH",
		Name:        "Lock not released on exception path",
		Description: "A Lock.lock() call has a path to method exit without an intervening unlock()",
	}
}

func (r lockNotReleasedRule) Run(ctx *analysisctx.Context) ([]Finding, error) {
	var findings []Finding
	for _, class := range ctx.AnalysisTargetClasses() {
		for _, method := range class.Methods {
			for _, call := range method.Calls {
				if !isLockCall(call) {
					continue
				}
				sem := lockSemantics{startOffset: call.Offset}
				for range dataflow.RunWorklist[bool](&method, sem) {
					message := fmt.Sprintf("lock() at offset %d in %s.%s%s has a path to exit without unlock()",
						call.Offset, class.Name, method.Name, method.Descriptor)
					findings = append(findings, newFinding(ctx, r.Metadata().ID, message, class, method, call.Offset))
					break // one finding per lock() call site regardless of how many unsafe paths it has
				}
			}
		}
	}
	return findings, nil
}

func isLockCall(call ir.CallSite) bool {
	return call.Name == "lock" && call.Descriptor == "()V" && isLockOwner(call.Owner)
}

func isUnlockCall(call ir.CallSite) bool {
	return call.Name == "unlock" && call.Descriptor == "()V" && isLockOwner(call.Owner)
}

func isLockOwner(owner string) bool {
	switch owner {
	case "java/util/concurrent/locks/Lock", "java/util/concurrent/locks/ReentrantLock",
		"java/util/concurrent/locks/ReentrantReadWriteLock$ReadLock",
		"java/util/concurrent/locks/ReentrantReadWriteLock$WriteLock":
		return true
	}
	return false
}

// lockSemantics walks forward from a single lock() call site's owning
// block, starting right after that call, looking for a method exit
// reachable without crossing an unlock() call on the same path. State
// is a bool: true once unlock() has been seen on this path.
type lockSemantics struct {
	startOffset uint32
}

func (sem lockSemantics) InitialStates(method *ir.Method) []dataflow.WorklistItem[bool] {
	block, ok := method.CFG.BlockAt(blockStartContaining(method, sem.startOffset))
	if !ok {
		return nil
	}
	return []dataflow.WorklistItem[bool]{{BlockOffset: block.StartOffset, State: false}}
}

func (lockSemantics) CanonicalizeState(state bool) bool { return state }

func (lockSemantics) Key(blockOffset uint32, state bool) string {
	return fmt.Sprintf("%d:%v", blockOffset, state)
}

func (sem lockSemantics) TransferInstruction(state bool, inst ir.Instruction) (bool, dataflow.TransferResult, any) {
	if inst.Offset <= sem.startOffset {
		// Instructions at or before the seeding lock() call (reached
		// because exploration starts at its owning block's first
		// instruction, not mid-block) carry no signal for this pass.
		return state, dataflow.Continue, nil
	}
	if invoke, ok := inst.Kind.(ir.Invoke); ok && isUnlockCall(invoke.Call) {
		return true, dataflow.TerminatePath, nil
	}
	if opcode.IsReturn(inst.Opcode) || opcode.IsThrow(inst.Opcode) {
		if state {
			return state, dataflow.TerminatePath, nil
		}
		return state, dataflow.TerminatePath, inst.Offset
	}
	return state, dataflow.Continue, nil
}

func (lockSemantics) OnBlockEnd(state bool, block *ir.BasicBlock, successors []uint32) []*bool {
	out := make([]*bool, len(successors))
	for i := range successors {
		s := state
		out[i] = &s
	}
	return out
}

// blockStartContaining returns the start offset of the CFG block that
// contains offset, or offset itself if no block contains it (the caller
// then fails BlockAt and yields no states).
func blockStartContaining(method *ir.Method, offset uint32) uint32 {
	for _, b := range method.CFG.Blocks {
		if offset >= b.StartOffset && offset < b.EndOffset {
			return b.StartOffset
		}
	}
	return offset
}
