package engine

import (
	"testing"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
)

func testContext() *analysisctx.Context {
	class := ir.Class{Name: "com/example/ClassA", Methods: []ir.Method{
		{Name: "compareTo", Descriptor: "(Ljava/lang/Object;)I"},
	}}
	artifacts := []ir.Artifact{{URI: "ClassA.class", ParentIndex: -1, Role: ir.RoleAnalysisTarget}}
	return analysisctx.Build([]ir.Class{class}, artifacts, nil)
}

func TestNewDefaultsToEveryRegisteredRule(t *testing.T) {
	e, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(e.selected) == 0 {
		t.Fatal("expected at least one registered rule")
	}
}

func TestNewFiltersToAllowSet(t *testing.T) {
	e, err := New([]string{"COMPARETO_OVERFLOW"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(e.selected) != 1 || e.selected[0].Metadata().ID != "COMPARETO_OVERFLOW" {
		t.Fatalf("selected = %+v, want exactly COMPARETO_OVERFLOW", e.selected)
	}
}

func TestNewRejectsUnknownRuleID(t *testing.T) {
	if _, err := New([]string{"NOT_A_REAL_RULE"}); err == nil {
		t.Fatal("expected an error for an unknown rule ID")
	}
}

func TestAnalyzeSortsRulesAndResultsByID(t *testing.T) {
	e, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := e.Analyze(testContext())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for i := 1; i < len(out.Rules); i++ {
		if out.Rules[i-1].ID >= out.Rules[i].ID {
			t.Fatalf("rule descriptors not sorted: %q >= %q", out.Rules[i-1].ID, out.Rules[i].ID)
		}
	}
	for i := 1; i < len(out.Results); i++ {
		prev, cur := out.Results[i-1], out.Results[i]
		if prev.RuleID > cur.RuleID || (prev.RuleID == cur.RuleID && prev.Message > cur.Message) {
			t.Fatalf("results not sorted by (ruleID, message): %+v before %+v", prev, cur)
		}
	}
}

func TestAnalyzeIsDeterministicAcrossRuns(t *testing.T) {
	e, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first, err := e.Analyze(testContext())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	second, err := e.Analyze(testContext())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(first.Results) != len(second.Results) {
		t.Fatalf("result counts differ across runs: %d vs %d", len(first.Results), len(second.Results))
	}
	for i := range first.Results {
		if first.Results[i] != second.Results[i] {
			t.Fatalf("result %d differs across runs: %+v vs %+v", i, first.Results[i], second.Results[i])
		}
	}
}
