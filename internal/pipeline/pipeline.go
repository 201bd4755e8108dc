package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/baseline"
	"github.com/kengotoda/inspequte/internal/classpath"
	"github.com/kengotoda/inspequte/internal/engine"
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/rules"
	"github.com/kengotoda/inspequte/internal/sarif"
	"github.com/kengotoda/inspequte/internal/telemetry"
)

// ScanRequest describes one invocation's inputs.
type ScanRequest struct {
	// InputPaths are the artifacts under analysis: loose .class files,
	// .jar archives, or directories of either.
	InputPaths []string
	// ClasspathPaths supply additional classes for reference resolution
	// only; no rule reports findings in them.
	ClasspathPaths []string
	// DuplicatePolicy controls how classpath.Resolve reacts to a class
	// name supplied by more than one artifact.
	DuplicatePolicy classpath.DuplicatePolicy
	// RuleIDs restricts the engine to this allow-set; nil runs every
	// registered rule.
	RuleIDs []string
	// BaselinePath, if non-empty, is loaded and used to filter results.
	BaselinePath string
	// ToolVersion and Arguments are threaded into the SARIF invocation.
	ToolVersion string
	Arguments   []string
	// AutomationDetailsID is the optional run.automationDetails.id.
	AutomationDetailsID string
}

// Result is a completed scan: the SARIF log ready to be written, and
// the raw (pre-baseline-filter) findings for a caller that wants to
// write a fresh baseline from this same run.
type Result struct {
	Log             sarif.Log
	Findings        []rules.Finding
	BaselineApplied bool
}

// Run executes the full scan→classpath→analyze→baseline→SARIF
// pipeline, mirroring original_source/src/main.rs's analyze().
func Run(ctx context.Context, tel *telemetry.Telemetry, req ScanRequest) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, tel, "pipeline.run")
	defer span.End()

	scanStart := time.Now()
	targets, err := ScanPaths(req.InputPaths, ir.RoleAnalysisTarget)
	if err != nil {
		telemetry.SetSpanError(span, err)
		return Result{}, err
	}
	classpathScan, err := ScanPaths(req.ClasspathPaths, ir.RoleClasspathOnly)
	if err != nil {
		telemetry.SetSpanError(span, err)
		return Result{}, err
	}
	classes, artifacts := mergeScans(targets, classpathScan)
	scanMillis := time.Since(scanStart).Milliseconds()

	classpathStart := time.Now()
	classpathIndex, err := classpath.Resolve(classes, artifacts, req.DuplicatePolicy, tel.Logger)
	if err != nil {
		telemetry.SetSpanError(span, err)
		return Result{}, err
	}
	classpathMillis := time.Since(classpathStart).Milliseconds()

	analysisCtx := analysisctx.Build(classes, artifacts, tel)
	analysisCtx.SetClasspathIndex(classpathIndex)

	eng, err := engine.New(req.RuleIDs)
	if err != nil {
		telemetry.SetSpanError(span, err)
		return Result{}, err
	}

	analysisStart := time.Now()
	out, err := eng.Analyze(analysisCtx)
	if err != nil {
		telemetry.SetSpanError(span, err)
		return Result{}, err
	}
	analysisMillis := time.Since(analysisStart).Milliseconds()

	findings := out.Results
	baselineApplied := false
	if req.BaselinePath != "" {
		b, err := baseline.Load(req.BaselinePath)
		if err != nil {
			telemetry.SetSpanError(span, err)
			return Result{}, fmt.Errorf("pipeline: failed to load baseline: %w", err)
		}
		if b != nil {
			findings = b.Filter(findings)
			baselineApplied = true
		}
	}

	sarifArtifacts := make([]sarif.Artifact, 0, len(targets.Artifacts))
	for _, a := range targets.Artifacts {
		sarifArtifacts = append(sarifArtifacts, sarif.Artifact{Location: sarif.ArtifactLocation{URI: a.URI}})
	}

	log := sarif.Assemble(sarif.Input{
		ToolVersion: req.ToolVersion,
		Artifacts:   sarifArtifacts,
		Arguments:   req.Arguments,
		Stats: sarif.InvocationStats{
			ScanMillis:       scanMillis,
			ClasspathMillis:  classpathMillis,
			AnalysisMillis:   analysisMillis,
			ClassCount:       len(targets.Classes),
			ArtifactCount:    len(targets.Artifacts),
			ClasspathClasses: len(classpathScan.Classes),
		},
		Rules:               out.Rules,
		Results:             findings,
		AutomationDetailsID: req.AutomationDetailsID,
	})

	telemetry.SetSpanOK(span)
	return Result{Log: log, Findings: out.Results, BaselineApplied: baselineApplied}, nil
}

// mergeScans combines the analysis-target and classpath-only scans
// into one class/artifact set, renumbering classpath artifact indices
// (and each classpath class's ArtifactIndex/ParentIndex) to sit after
// the target set's.
func mergeScans(targets, extra ScanResult) ([]ir.Class, []ir.Artifact) {
	offset := len(targets.Artifacts)

	artifacts := make([]ir.Artifact, 0, len(targets.Artifacts)+len(extra.Artifacts))
	artifacts = append(artifacts, targets.Artifacts...)
	for _, a := range extra.Artifacts {
		if a.HasParent() {
			a.ParentIndex += offset
		}
		artifacts = append(artifacts, a)
	}

	classes := make([]ir.Class, 0, len(targets.Classes)+len(extra.Classes))
	classes = append(classes, targets.Classes...)
	for _, c := range extra.Classes {
		c.ArtifactIndex += offset
		classes = append(classes, c)
	}

	return classes, artifacts
}
