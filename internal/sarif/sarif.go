// Package sarif assembles a SARIF 2.1.0 log from a single analysis
// run, grounded on original_source/src/main.rs's build_sarif/
// build_invocation. Unlike the original's serde_sarif-backed structs,
// this package defines its own minimal SARIF object model, since the
// pack carries no dedicated SARIF crate/library — every field maps
// directly onto the subset of the SARIF 2.1.0 schema this tool emits.
package sarif

import (
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/mod/semver"

	"github.com/kengotoda/inspequte/internal/rules"
)

const schemaURL = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"

const toolName = "inspequte"
const toolInformationURI = "https://github.com/KengoTODA/inspequte"

// Log is the top-level SARIF document.
type Log struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run is a single tool invocation's worth of results.
type Run struct {
	Tool               Tool                `json:"tool"`
	Artifacts          []Artifact          `json:"artifacts,omitempty"`
	Invocations        []Invocation        `json:"invocations"`
	Results            []Result            `json:"results"`
	AutomationDetails  *AutomationDetails  `json:"automationDetails,omitempty"`
}

// Tool wraps the driver component.
type Tool struct {
	Driver ToolComponent `json:"driver"`
}

// ToolComponent describes the analyzer itself and its rule catalog.
type ToolComponent struct {
	Name            string               `json:"name"`
	InformationURI  string               `json:"informationUri"`
	SemanticVersion string               `json:"semanticVersion"`
	Rules           []ReportingDescriptor `json:"rules,omitempty"`
}

// ReportingDescriptor is one rule's SARIF metadata entry.
type ReportingDescriptor struct {
	ID               string                    `json:"id"`
	Name             string                    `json:"name"`
	ShortDescription MultiformatMessageString `json:"shortDescription"`
}

// MultiformatMessageString carries a plain-text message.
type MultiformatMessageString struct {
	Text string `json:"text"`
}

// Artifact is one scanned input (a .class file, a JAR, or a class
// nested inside a JAR).
type Artifact struct {
	Location ArtifactLocation `json:"location"`
}

// ArtifactLocation carries an artifact's URI.
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// AutomationDetails carries the optional run.automationDetails.id
// (e.g. a GitHub code scanning category).
type AutomationDetails struct {
	ID string `json:"id"`
}

// Invocation records execution metadata: CLI arguments and a property
// bag of phase timings and entity counts.
type Invocation struct {
	ExecutionSuccessful bool                   `json:"executionSuccessful"`
	Arguments           []string               `json:"arguments"`
	CommandLine         string                 `json:"commandLine,omitempty"`
	Properties          map[string]interface{} `json:"properties,omitempty"`
}

// Result is a single finding.
type Result struct {
	RuleID    string     `json:"ruleId"`
	Message   Message    `json:"message"`
	Locations []Location `json:"locations,omitempty"`
}

// Message carries a finding's human-readable text.
type Message struct {
	Text string `json:"text"`
}

// Location is a single finding's physical and logical location.
type Location struct {
	PhysicalLocation *PhysicalLocation `json:"physicalLocation,omitempty"`
	LogicalLocations []LogicalLocation `json:"logicalLocations,omitempty"`
}

// PhysicalLocation cites an artifact URI and, if known, a source
// region.
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           *Region          `json:"region,omitempty"`
}

// Region is a single-line source region.
type Region struct {
	StartLine int `json:"startLine"`
}

// LogicalLocation names the method a finding belongs to, e.g.
// "com/example/App.run()V".
type LogicalLocation struct {
	Name string `json:"name"`
}

// InvocationStats is the phase-timing and entity-count data threaded
// into the invocation's property bag.
type InvocationStats struct {
	ScanMillis       int64
	ClasspathMillis  int64
	AnalysisMillis   int64
	ClassCount       int
	ArtifactCount    int
	ClasspathClasses int
}

// Input is everything Assemble needs to build one Run.
type Input struct {
	ToolVersion        string
	Artifacts          []Artifact
	Arguments          []string
	Stats              InvocationStats
	Rules              []rules.Metadata
	Results            []rules.Finding
	AutomationDetailsID string
}

// Assemble builds a single-Run SARIF Log from a completed analysis.
func Assemble(in Input) Log {
	driver := ToolComponent{
		Name:            toolName,
		InformationURI:  toolInformationURI,
		SemanticVersion: normalizeVersion(in.ToolVersion),
	}
	if len(in.Rules) > 0 {
		driver.Rules = make([]ReportingDescriptor, 0, len(in.Rules))
		for _, m := range in.Rules {
			driver.Rules = append(driver.Rules, ReportingDescriptor{
				ID:               m.ID,
				Name:             m.Name,
				ShortDescription: MultiformatMessageString{Text: m.Description},
			})
		}
	}

	run := Run{
		Tool:        Tool{Driver: driver},
		Artifacts:   in.Artifacts,
		Invocations: []Invocation{buildInvocation(in.Arguments, in.Stats)},
		Results:     buildResults(in.Results),
	}
	if id := in.AutomationDetailsID; id != "" {
		run.AutomationDetails = &AutomationDetails{ID: id}
	}

	return Log{
		Schema:  schemaURL,
		Version: "2.1.0",
		Runs:    []Run{run},
	}
}

func buildInvocation(arguments []string, stats InvocationStats) Invocation {
	return Invocation{
		ExecutionSuccessful: true,
		Arguments:           arguments,
		CommandLine:         joinArguments(arguments),
		Properties: map[string]interface{}{
			"inspequte.scan_ms":               stats.ScanMillis,
			"inspequte.classpath_ms":          stats.ClasspathMillis,
			"inspequte.analysis_rules_ms":     stats.AnalysisMillis,
			"inspequte.class_count":           stats.ClassCount,
			"inspequte.artifact_count":        stats.ArtifactCount,
			"inspequte.classpath_class_count": stats.ClasspathClasses,
		},
	}
}

func joinArguments(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func buildResults(findings []rules.Finding) []Result {
	results := make([]Result, 0, len(findings))
	for _, f := range findings {
		loc := Location{
			LogicalLocations: []LogicalLocation{{Name: fmt.Sprintf("%s.%s%s", f.ClassName, f.MethodName, f.Descriptor)}},
		}
		if f.ArtifactURI != "" {
			region := (*Region)(nil)
			if f.Line > 0 {
				region = &Region{StartLine: f.Line}
			}
			loc.PhysicalLocation = &PhysicalLocation{
				ArtifactLocation: ArtifactLocation{URI: f.ArtifactURI},
				Region:           region,
			}
		}
		results = append(results, Result{
			RuleID:    f.RuleID,
			Message:   Message{Text: f.Message},
			Locations: []Location{loc},
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RuleID != results[j].RuleID {
			return results[i].RuleID < results[j].RuleID
		}
		return results[i].Message.Text < results[j].Message.Text
	})
	return results
}

// normalizeVersion canonicalizes a tool version string into SARIF's
// semanticVersion field via golang.org/x/mod/semver, falling back to
// the raw string if it isn't valid semver (e.g. a dev build tag).
func normalizeVersion(version string) string {
	if version == "" {
		return "0.0.0"
	}
	prefixed := version
	if prefixed[0] != 'v' {
		prefixed = "v" + prefixed
	}
	if !semver.IsValid(prefixed) {
		return version
	}
	return semver.Canonical(prefixed)[1:]
}

// Marshal renders log as UTF-8 JSON followed by a trailing newline,
// matching the original's compact serde_json::to_writer + "\n" style.
func Marshal(log Log) ([]byte, error) {
	data, err := json.Marshal(log)
	if err != nil {
		return nil, fmt.Errorf("sarif: failed to serialize log: %w", err)
	}
	return append(data, '\n'), nil
}
