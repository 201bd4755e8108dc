package rules

import (
	"testing"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
)

func runURLOpenstreamCall(t *testing.T, method ir.Method) []Finding {
	t.Helper()
	class := ir.Class{Name: "com/example/ClassA", ArtifactIndex: 0, Methods: []ir.Method{method}}
	artifacts := []ir.Artifact{{URI: "ClassA.class", ParentIndex: -1, Role: ir.RoleAnalysisTarget}}
	ctx := analysisctx.Build([]ir.Class{class}, artifacts, nil)
	findings, err := (urlOpenstreamCallRule{}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return findings
}

var openStreamCall = ir.CallSite{Owner: "java/net/URL", Name: "openStream", Descriptor: "()Ljava/io/InputStream;", Kind: ir.CallVirtual}

func TestURLOpenstreamCallFlagsDirectCall(t *testing.T) {
	method := ir.Method{
		Name: "methodX", Descriptor: "(Ljava/net/URL;)Ljava/io/InputStream;",
		Calls: []ir.CallSite{withOffset(openStreamCall, 1)},
	}
	if findings := runURLOpenstreamCall(t, method); len(findings) != 1 {
		t.Fatalf("findings = %+v, want one", findings)
	}
}

func TestURLOpenstreamCallAllowsClassGetResourceChain(t *testing.T) {
	getResource := ir.CallSite{Owner: "java/lang/Class", Name: "getResource", Descriptor: "(Ljava/lang/String;)Ljava/net/URL;", Kind: ir.CallVirtual}
	method := ir.Method{
		Name: "methodZ", Descriptor: "()Ljava/io/InputStream;",
		Calls: []ir.CallSite{withOffset(getResource, 1), withOffset(openStreamCall, 5)},
	}
	if findings := runURLOpenstreamCall(t, method); len(findings) != 0 {
		t.Fatalf("findings = %+v, want none for Class.getResource(...).openStream()", findings)
	}
}

func TestURLOpenstreamCallAllowsClassLoaderGetResourceChain(t *testing.T) {
	getResource := ir.CallSite{Owner: "java/lang/ClassLoader", Name: "getResource", Descriptor: "(Ljava/lang/String;)Ljava/net/URL;", Kind: ir.CallVirtual}
	method := ir.Method{
		Name: "methodW", Descriptor: "()Ljava/io/InputStream;",
		Calls: []ir.CallSite{withOffset(getResource, 1), withOffset(openStreamCall, 5)},
	}
	if findings := runURLOpenstreamCall(t, method); len(findings) != 0 {
		t.Fatalf("findings = %+v, want none for ClassLoader.getResource(...).openStream()", findings)
	}
}

func TestURLOpenstreamCallIgnoresOpenConnection(t *testing.T) {
	method := ir.Method{
		Name: "methodY", Descriptor: "(Ljava/net/URL;)Ljava/net/URLConnection;",
		Calls: []ir.CallSite{{Owner: "java/net/URL", Name: "openConnection", Descriptor: "()Ljava/net/URLConnection;", Kind: ir.CallVirtual, Offset: 1}},
	}
	if findings := runURLOpenstreamCall(t, method); len(findings) != 0 {
		t.Fatalf("findings = %+v, want none for openConnection()", findings)
	}
}
