// Package analysisctx builds the shared, read-only view of scanned
// classes that every rule runs against: which classes are in scope for
// findings, artifact URI resolution, and ecosystem probes (SLF4J,
// Log4j2 presence).
//
// Grounded on original_source/src/engine.rs's AnalysisContext and
// detect_logging_frameworks.
package analysisctx

import (
	"fmt"
	"strings"

	"github.com/kengotoda/inspequte/internal/classpath"
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/telemetry"
)

// Context is the shared view of a single analysis run's scanned
// classes and artifacts.
type Context struct {
	classes   []ir.Class
	artifacts []ir.Artifact
	telemetry *telemetry.Telemetry

	hasSLF4J  bool
	hasLog4j2 bool

	classpathIndex *classpath.Index
}

// Build assembles a Context from every scanned class and artifact. If
// no artifact carries ir.RoleAnalysisTarget, every class is treated as an
// analysis target (an empty restriction set means everything is in
// scope, matching the original engine's default).
func Build(classes []ir.Class, artifacts []ir.Artifact, tel *telemetry.Telemetry) *Context {
	ctx := &Context{classes: classes, artifacts: artifacts, telemetry: tel}
	ctx.hasSLF4J, ctx.hasLog4j2 = detectLoggingFrameworks(classes)
	return ctx
}

// Classes returns every scanned class, including classpath-only ones.
func (c *Context) Classes() []ir.Class { return c.classes }

// AnalysisTargetClasses returns the classes rules should report
// findings in.
func (c *Context) AnalysisTargetClasses() []ir.Class {
	if !c.hasAnyTargetRole() {
		return c.classes
	}
	var out []ir.Class
	for _, class := range c.classes {
		if c.IsAnalysisTargetClass(class) {
			out = append(out, class)
		}
	}
	return out
}

func (c *Context) hasAnyTargetRole() bool {
	for _, a := range c.artifacts {
		if a.Role.Has(ir.RoleAnalysisTarget) {
			return true
		}
	}
	return false
}

// IsAnalysisTargetClass reports whether class's owning artifact (or
// any of its ancestors, walking ParentIndex, e.g. a class nested inside
// an analysis-target JAR) carries ir.RoleAnalysisTarget.
func (c *Context) IsAnalysisTargetClass(class ir.Class) bool {
	idx := class.ArtifactIndex
	seen := map[int]bool{}
	for idx >= 0 && idx < len(c.artifacts) && !seen[idx] {
		seen[idx] = true
		if c.artifacts[idx].Role.Has(ir.RoleAnalysisTarget) {
			return true
		}
		idx = c.artifacts[idx].ParentIndex
	}
	return false
}

// ArtifactURI returns the URI of the artifact at index.
func (c *Context) ArtifactURI(index int) (string, bool) {
	if index < 0 || index >= len(c.artifacts) {
		return "", false
	}
	return c.artifacts[index].URI, true
}

// ClassArtifactURI returns the URI a SARIF location should cite for
// class: its own artifact's URI if loose, or a synthesized
// "jar:<parent-uri>!/<entry>" URI if the class lives inside a
// container. The scanner stores bare entry paths for JAR entries; a
// stored URI that is already a complete "jar:" URI is returned as-is
// instead of being wrapped a second time.
func (c *Context) ClassArtifactURI(class ir.Class) (string, bool) {
	uri, ok := c.ArtifactURI(class.ArtifactIndex)
	if !ok {
		return "", false
	}
	artifact := c.artifacts[class.ArtifactIndex]
	if !artifact.HasParent() || strings.HasPrefix(uri, "jar:") {
		return uri, true
	}
	parentURI, ok := c.ArtifactURI(artifact.ParentIndex)
	if !ok {
		return uri, true
	}
	return fmt.Sprintf("jar:%s!/%s", parentURI, uri), true
}

// SetClasspathIndex attaches the resolved classpath index so rules can
// look up which artifact supplies a given class name. Called once,
// after classpath.Resolve, before any rule runs.
func (c *Context) SetClasspathIndex(idx *classpath.Index) { c.classpathIndex = idx }

// ResolveClassArtifactURI looks up the artifact URI that the resolved
// classpath attributes className to (the lexicographically-smallest
// supplier, in Permissive mode). Returns false if no classpath index
// was attached or className is unknown.
func (c *Context) ResolveClassArtifactURI(className string) (string, bool) {
	if c.classpathIndex == nil {
		return "", false
	}
	return c.classpathIndex.URI(className)
}

// HasSLF4J reports whether any scanned class references the SLF4J
// Logger API.
func (c *Context) HasSLF4J() bool { return c.hasSLF4J }

// HasLog4j2 reports whether any scanned class references the Log4j2
// Logger API.
func (c *Context) HasLog4j2() bool { return c.hasLog4j2 }

func detectLoggingFrameworks(classes []ir.Class) (hasSLF4J, hasLog4j2 bool) {
	for _, class := range classes {
		for _, ref := range class.ReferencedClasses {
			switch {
			case strings.HasPrefix(ref, "org/slf4j/"):
				hasSLF4J = true
			case strings.HasPrefix(ref, "org/apache/logging/log4j/"):
				hasLog4j2 = true
			}
		}
		var descriptors []string
		for _, f := range class.Fields {
			descriptors = append(descriptors, f.Descriptor)
		}
		for _, m := range class.Methods {
			descriptors = append(descriptors, m.Descriptor)
		}
		for _, d := range descriptors {
			hasSLF4J = hasSLF4J || strings.Contains(d, "Lorg/slf4j/")
			hasLog4j2 = hasLog4j2 || strings.Contains(d, "Lorg/apache/logging/log4j/")
		}
		if hasSLF4J && hasLog4j2 {
			return
		}
	}
	return
}
