package rules

import (
	"testing"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
)

func runStringFormatLocaleMissing(t *testing.T, method ir.Method) []Finding {
	t.Helper()
	class := ir.Class{Name: "com/example/ClassA", ArtifactIndex: 0, Methods: []ir.Method{method}}
	artifacts := []ir.Artifact{{URI: "ClassA.class", ParentIndex: -1, Role: ir.RoleAnalysisTarget}}
	ctx := analysisctx.Build([]ir.Class{class}, artifacts, nil)
	findings, err := (stringFormatLocaleMissingRule{}).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return findings
}

func TestStringFormatLocaleMissingFlagsStringFormat(t *testing.T) {
	method := ir.Method{
		Name: "methodX", Descriptor: "(I)Ljava/lang/String;",
		Calls: []ir.CallSite{{Owner: "java/lang/String", Name: "format", Descriptor: "(Ljava/lang/String;[Ljava/lang/Object;)Ljava/lang/String;", Kind: ir.CallStatic, Offset: 1}},
	}
	if findings := runStringFormatLocaleMissing(t, method); len(findings) != 1 {
		t.Fatalf("findings = %+v, want one", findings)
	}
}

func TestStringFormatLocaleMissingFlagsFormatterConstructor(t *testing.T) {
	method := ir.Method{
		Name: "methodX", Descriptor: "(I)Ljava/lang/String;",
		Calls: []ir.CallSite{{Owner: "java/util/Formatter", Name: "<init>", Descriptor: "()V", Kind: ir.CallSpecial, Offset: 1}},
	}
	findings := runStringFormatLocaleMissing(t, method)
	if len(findings) != 1 {
		t.Fatalf("findings = %+v, want one", findings)
	}
	if findings[0].Message == "" {
		t.Fatal("expected a non-empty message")
	}
}

func TestStringFormatLocaleMissingFlagsEachSupportedFormatterConstructor(t *testing.T) {
	descriptors := []string{
		"()V",
		"(Ljava/lang/Appendable;)V",
		"(Ljava/lang/String;)V",
		"(Ljava/lang/String;Ljava/lang/String;)V",
		"(Ljava/lang/String;Ljava/nio/charset/Charset;)V",
		"(Ljava/io/File;)V",
		"(Ljava/io/File;Ljava/lang/String;)V",
		"(Ljava/io/File;Ljava/nio/charset/Charset;)V",
		"(Ljava/io/PrintStream;)V",
		"(Ljava/io/OutputStream;)V",
		"(Ljava/io/OutputStream;Ljava/lang/String;)V",
		"(Ljava/io/OutputStream;Ljava/nio/charset/Charset;)V",
	}
	var calls []ir.CallSite
	for i, d := range descriptors {
		calls = append(calls, ir.CallSite{Owner: "java/util/Formatter", Name: "<init>", Descriptor: d, Kind: ir.CallSpecial, Offset: uint32(i)})
	}
	method := ir.Method{Name: "methodX", Descriptor: "()V", Calls: calls}
	if findings := runStringFormatLocaleMissing(t, method); len(findings) != len(descriptors) {
		t.Fatalf("findings = %d, want %d", len(findings), len(descriptors))
	}
}

func TestStringFormatLocaleMissingIgnoresLocaleAwareCalls(t *testing.T) {
	method := ir.Method{
		Name: "methodX", Descriptor: "(I)Ljava/lang/String;",
		Calls: []ir.CallSite{
			{Owner: "java/util/Formatter", Name: "<init>", Descriptor: "(Ljava/util/Locale;)V", Kind: ir.CallSpecial, Offset: 1},
			{Owner: "java/util/Formatter", Name: "format", Descriptor: "(Ljava/util/Locale;Ljava/lang/String;[Ljava/lang/Object;)Ljava/util/Formatter;", Kind: ir.CallVirtual, Offset: 5},
			{Owner: "java/lang/String", Name: "format", Descriptor: "(Ljava/util/Locale;Ljava/lang/String;[Ljava/lang/Object;)Ljava/lang/String;", Kind: ir.CallStatic, Offset: 10},
		},
	}
	if findings := runStringFormatLocaleMissing(t, method); len(findings) != 0 {
		t.Fatalf("findings = %+v, want none for locale-aware calls", findings)
	}
}

func TestStringFormatLocaleMissingIgnoresFormatterFormatWithoutLocaleArg(t *testing.T) {
	method := ir.Method{
		Name: "methodX", Descriptor: "(I)Ljava/lang/String;",
		Calls: []ir.CallSite{
			{Owner: "java/util/Formatter", Name: "format", Descriptor: "(Ljava/lang/String;[Ljava/lang/Object;)Ljava/util/Formatter;", Kind: ir.CallVirtual, Offset: 5},
		},
	}
	if findings := runStringFormatLocaleMissing(t, method); len(findings) != 0 {
		t.Fatalf("findings = %+v, want none; Formatter.format(String, ...) is out of scope", findings)
	}
}
