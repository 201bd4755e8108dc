package rules

import (
	"fmt"
	"strings"

	"github.com/kengotoda/inspequte/internal/analysisctx"
)

// futureGetWithoutTimeoutRule flags the zero-argument get() overload on
// Future and its common subtypes: a call with no timeout can block the
// calling thread indefinitely.
//
// Grounded on original_source/src/rules/future_get_without_timeout/mod.rs.
type futureGetWithoutTimeoutRule struct{}

func (futureGetWithoutTimeoutRule) Metadata() Metadata {
	return Metadata{
		ID:          "FUTURE_GET_WITHOUT_TIMEOUT",
		Name:        "Future.get without timeout",
		Description: "Timeout-free Future.get calls can block indefinitely",
	}
}

func (r futureGetWithoutTimeoutRule) Run(ctx *analysisctx.Context) ([]Finding, error) {
	var findings []Finding
	for _, class := range ctx.AnalysisTargetClasses() {
		for _, method := range class.Methods {
			for _, call := range method.Calls {
				if !isTimeoutFreeFutureGet(call.Owner, call.Name, call.Descriptor) {
					continue
				}
				message := fmt.Sprintf("Avoid timeout-free Future.get() in %s.%s%s; prefer get(timeout, unit) or non-blocking composition.",
					class.Name, method.Name, method.Descriptor)
				findings = append(findings, newFinding(ctx, r.Metadata().ID, message, class, method, call.Offset))
			}
		}
	}
	return findings, nil
}

func isTimeoutFreeFutureGet(owner, name, descriptor string) bool {
	if name != "get" || !strings.HasPrefix(descriptor, "()") {
		return false
	}
	switch owner {
	case "java/util/concurrent/Future", "java/util/concurrent/CompletableFuture",
		"java/util/concurrent/FutureTask", "java/util/concurrent/ForkJoinTask":
		return true
	}
	return strings.HasPrefix(owner, "java/util/concurrent/") && strings.HasSuffix(owner, "Future")
}
