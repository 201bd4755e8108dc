// Package baseline captures and replays a snapshot of known findings
// so later scans can suppress them, matching
// original_source/src/baseline.rs.
package baseline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kengotoda/inspequte/internal/rules"
)

// entry is the canonicalized, comparable snapshot of a single finding
// stored in a baseline file. Its on-disk shape is a "locations" array
// of {logical, uri, startLine} rather than these flat fields; only one
// location is ever produced per entry today, so MarshalJSON/
// UnmarshalJSON fold it into/out of a single-element array.
type entry struct {
	RuleID      string
	Message     string
	ArtifactURI string
	ClassName   string
	MethodName  string
	Descriptor  string
	Line        int
}

// location is the wire shape of a single baseline-entry location.
type location struct {
	Logical   string `json:"logical,omitempty"`
	URI       string `json:"uri,omitempty"`
	StartLine int    `json:"startLine,omitempty"`
}

// entryWire is the on-disk JSON shape of entry.
type entryWire struct {
	RuleID    string     `json:"ruleId"`
	Message   string     `json:"message"`
	Locations []location `json:"locations"`
}

// logicalName renders "owner/Class.method(descriptor)", the logical
// name format used throughout SARIF locations.
func (e entry) logicalName() string {
	return e.ClassName + "." + e.MethodName + e.Descriptor
}

// splitLogicalName reverses logicalName: the descriptor starts at the
// first "(" and runs to the end; the method name is whatever follows
// the last "." before that.
func splitLogicalName(logical string) (className, methodName, descriptor string) {
	parenIdx := strings.Index(logical, "(")
	if parenIdx < 0 {
		return logical, "", ""
	}
	descriptor = logical[parenIdx:]
	ownerAndMethod := logical[:parenIdx]
	dotIdx := strings.LastIndex(ownerAndMethod, ".")
	if dotIdx < 0 {
		return ownerAndMethod, "", descriptor
	}
	return ownerAndMethod[:dotIdx], ownerAndMethod[dotIdx+1:], descriptor
}

func (e entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryWire{
		RuleID:  e.RuleID,
		Message: e.Message,
		Locations: []location{{
			Logical:   e.logicalName(),
			URI:       e.ArtifactURI,
			StartLine: e.Line,
		}},
	})
}

func (e *entry) UnmarshalJSON(data []byte) error {
	var w entryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.RuleID = w.RuleID
	e.Message = w.Message
	if len(w.Locations) > 0 {
		loc := w.Locations[0]
		e.ArtifactURI = loc.URI
		e.Line = loc.StartLine
		e.ClassName, e.MethodName, e.Descriptor = splitLogicalName(loc.Logical)
	}
	return nil
}

func entryFromFinding(f rules.Finding) entry {
	return entry{
		RuleID:      f.RuleID,
		Message:     f.Message,
		ArtifactURI: f.ArtifactURI,
		ClassName:   f.ClassName,
		MethodName:  f.MethodName,
		Descriptor:  f.Descriptor,
		Line:        f.Line,
	}
}

func (e entry) less(o entry) bool {
	if e.RuleID != o.RuleID {
		return e.RuleID < o.RuleID
	}
	if e.Message != o.Message {
		return e.Message < o.Message
	}
	if e.ArtifactURI != o.ArtifactURI {
		return e.ArtifactURI < o.ArtifactURI
	}
	if e.ClassName != o.ClassName {
		return e.ClassName < o.ClassName
	}
	if e.MethodName != o.MethodName {
		return e.MethodName < o.MethodName
	}
	if e.Descriptor != o.Descriptor {
		return e.Descriptor < o.Descriptor
	}
	return e.Line < o.Line
}

// Baseline is a sorted, deduplicated set of known findings.
type Baseline struct {
	Version  int     `json:"version"`
	Findings []entry `json:"findings"`
}

// Capture snapshots findings into a sorted, deduplicated Baseline.
func Capture(findings []rules.Finding) Baseline {
	seen := make(map[entry]bool, len(findings))
	var entries []entry
	for _, f := range findings {
		e := entryFromFinding(f)
		if !seen[e] {
			seen[e] = true
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].less(entries[j]) })
	return Baseline{Version: 1, Findings: entries}
}

// Filter removes every finding present in b, preserving order.
func (b Baseline) Filter(findings []rules.Finding) []rules.Finding {
	known := make(map[entry]bool, len(b.Findings))
	for _, e := range b.Findings {
		known[e] = true
	}
	var out []rules.Finding
	for _, f := range findings {
		if !known[entryFromFinding(f)] {
			out = append(out, f)
		}
	}
	return out
}

// Load reads a baseline file. A missing file returns (nil, nil), not
// an error, so a first-ever scan runs cleanly with no baseline.
func Load(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("baseline: failed to read %s: %w", path, err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("baseline: failed to parse %s: %w", path, err)
	}
	sort.Slice(b.Findings, func(i, j int) bool { return b.Findings[i].less(b.Findings[j]) })
	b.Findings = dedupSorted(b.Findings)
	return &b, nil
}

func dedupSorted(entries []entry) []entry {
	if len(entries) < 2 {
		return entries
	}
	out := entries[:1]
	for _, e := range entries[1:] {
		if e != out[len(out)-1] {
			out = append(out, e)
		}
	}
	return out
}

// Write captures findings and writes them to path as compact JSON,
// one finding per line for readable diffs, creating parent
// directories as needed.
func Write(path string, findings []rules.Finding) error {
	b := Capture(findings)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("baseline: failed to create directory %s: %w", dir, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("baseline: failed to create %s: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintf(w, "{\"version\":%d,\"findings\":[", b.Version)
	for i, e := range b.Findings {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('\n')
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("baseline: failed to serialize entry: %w", err)
		}
		w.Write(data)
	}
	if len(b.Findings) > 0 {
		w.WriteByte('\n')
	}
	w.WriteString("]}\n")
	return w.Flush()
}
