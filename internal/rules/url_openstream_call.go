package rules

import (
	"fmt"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
)

// urlOpenstreamCallRule flags URL.openStream() calls, except those
// chained directly off a Class/ClassLoader.getResource() lookup, which
// is exempt because the returned stream's lifecycle is scoped to a
// classpath resource rather than an arbitrary network connection.
//
// Grounded on original_source/src/rules/url_openstream_call/mod.rs.
type urlOpenstreamCallRule struct{}

func (urlOpenstreamCallRule) Metadata() Metadata {
	return Metadata{
		ID:          "URL_OPENSTREAM_CALL",
		Name:        "URL.openStream call",
		Description: "URL.openStream can hide timeout and connection configuration",
	}
}

func (r urlOpenstreamCallRule) Run(ctx *analysisctx.Context) ([]Finding, error) {
	var findings []Finding
	for _, class := range ctx.AnalysisTargetClasses() {
		for _, method := range class.Methods {
			for idx, call := range method.Calls {
				if !isURLOpenstreamCall(call.Owner, call.Name, call.Descriptor) {
					continue
				}
				if isClasspathResourceOpenstream(method, idx) {
					continue
				}
				message := fmt.Sprintf("Avoid URL.openStream() in %s.%s%s; use openConnection() with explicit timeouts and structured resource handling.",
					class.Name, method.Name, method.Descriptor)
				findings = append(findings, newFinding(ctx, r.Metadata().ID, message, class, method, call.Offset))
			}
		}
	}
	return findings, nil
}

func isURLOpenstreamCall(owner, name, descriptor string) bool {
	return owner == "java/net/URL" && name == "openStream" && descriptor == "()Ljava/io/InputStream;"
}

func isClasspathResourceOpenstream(method ir.Method, openstreamIndex int) bool {
	if openstreamIndex == 0 {
		return false
	}
	previous := method.Calls[openstreamIndex-1]
	return isResourceLookupCall(previous.Owner, previous.Name, previous.Descriptor)
}

func isResourceLookupCall(owner, name, descriptor string) bool {
	if name != "getResource" || descriptor != "(Ljava/lang/String;)Ljava/net/URL;" {
		return false
	}
	return owner == "java/lang/Class" || owner == "java/lang/ClassLoader"
}
