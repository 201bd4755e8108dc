package rules

import (
	"fmt"
	"sort"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
)

// waitNotGuardedByLoopRule flags Object.wait/Condition.await calls that
// sit outside any backward-branch (loop) region: without re-checking
// the wait condition in a loop, a spurious wakeup resumes the thread as
// if the condition held.
//
// Grounded on original_source/src/rules/wait_not_guarded_by_loop/mod.rs.
type waitNotGuardedByLoopRule struct{}

func (waitNotGuardedByLoopRule) Metadata() Metadata {
	return Metadata{
		ID:          "WAIT_NOT_GUARDED_BY_LOOP",
		Name:        "Wait call not guarded by loop",
		Description: "wait/await calls outside retry loops risk spurious wakeups",
	}
}

func (r waitNotGuardedByLoopRule) Run(ctx *analysisctx.Context) ([]Finding, error) {
	var findings []Finding
	for _, class := range ctx.AnalysisTargetClasses() {
		for _, method := range class.Methods {
			ranges := loopRanges(method)
			for _, call := range method.Calls {
				if !isWaitLikeCall(call.Owner, call.Name, call.Descriptor) {
					continue
				}
				if isGuardedByLoop(ranges, call.Offset) {
					continue
				}
				message := fmt.Sprintf("Wrap wait/await in a condition-checking loop in %s.%s%s; re-check the condition after wakeup to handle spurious wakeups.",
					class.Name, method.Name, method.Descriptor)
				findings = append(findings, newFinding(ctx, r.Metadata().ID, message, class, method, call.Offset))
			}
		}
	}
	return findings, nil
}

func isWaitLikeCall(owner, name, descriptor string) bool {
	if owner == "java/lang/Object" && name == "wait" {
		switch descriptor {
		case "()V", "(J)V", "(JI)V":
			return true
		}
		return false
	}
	conditionOwner := owner == "java/util/concurrent/locks/Condition" ||
		owner == "java/util/concurrent/locks/AbstractQueuedSynchronizer$ConditionObject"
	if !conditionOwner {
		return false
	}
	switch {
	case name == "await" && descriptor == "()V":
		return true
	case name == "awaitUninterruptibly" && descriptor == "()V":
		return true
	case name == "awaitNanos" && descriptor == "(J)J":
		return true
	case name == "awaitUntil" && descriptor == "(Ljava/util/Date;)Z":
		return true
	case name == "await" && descriptor == "(JLjava/util/concurrent/TimeUnit;)Z":
		return true
	}
	return false
}

type loopRange struct {
	start, end uint32
}

func loopRanges(method ir.Method) []loopRange {
	blockEnd := make(map[uint32]uint32, len(method.CFG.Blocks))
	for _, b := range method.CFG.Blocks {
		blockEnd[b.StartOffset] = b.EndOffset
	}
	seen := make(map[loopRange]bool)
	var ranges []loopRange
	for _, edge := range method.CFG.Edges {
		if edge.Kind != ir.EdgeBranch || edge.From <= edge.To {
			continue
		}
		end, ok := blockEnd[edge.From]
		if !ok {
			continue
		}
		rng := loopRange{start: edge.To, end: end}
		if !seen[rng] {
			seen[rng] = true
			ranges = append(ranges, rng)
		}
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].start != ranges[j].start {
			return ranges[i].start < ranges[j].start
		}
		return ranges[i].end < ranges[j].end
	})
	return ranges
}

func isGuardedByLoop(ranges []loopRange, offset uint32) bool {
	for _, rng := range ranges {
		if rng.start <= offset && offset < rng.end {
			return true
		}
	}
	return false
}
