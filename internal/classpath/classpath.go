// Package classpath resolves class names to the artifact that supplies
// them and applies the duplicate-class policy described in
// original_source/src/classpath.rs.
package classpath

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kengotoda/inspequte/internal/ir"
)

// DuplicatePolicy controls how classpath.Resolve reacts when the same
// class name is supplied by more than one artifact.
type DuplicatePolicy int

const (
	// Strict fails resolution on any duplicate class name.
	Strict DuplicatePolicy = iota
	// Permissive picks the lexicographically-smallest artifact URI and
	// discards the rest.
	Permissive
)

// platformPrefixes are internal-name prefixes treated as always
// resolvable even when absent from the scanned class set, matching
// original_source/src/classpath.rs's is_platform_class.
var platformPrefixes = []string{"java/", "javax/", "jdk/", "sun/", "com/sun/"}

// IsPlatformClass reports whether name belongs to the JDK's own
// namespace and is therefore exempt from missing-reference accounting.
func IsPlatformClass(name string) bool {
	for _, p := range platformPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Index maps class names to the artifact URI that supplies them.
type Index struct {
	uriByClass map[string]string
}

// URI returns the resolved artifact URI for a class name.
func (idx *Index) URI(className string) (string, bool) {
	uri, ok := idx.uriByClass[className]
	return uri, ok
}

// Resolve builds a classpath Index from the scanned classes and their
// owning artifacts. In Strict mode it returns an error listing every
// duplicate class name and the artifact URIs that supply it. In
// Permissive mode it resolves each duplicate to the
// lexicographically-smallest artifact URI and logs a warning through
// logger naming the class and the chosen URI. logger may be nil, in
// which case permissive resolution proceeds silently (useful for
// tests that don't care about the log output).
func Resolve(classes []ir.Class, artifacts []ir.Artifact, policy DuplicatePolicy, logger *slog.Logger) (*Index, error) {
	urisByClass := map[string][]string{}
	for _, c := range classes {
		if c.ArtifactIndex < 0 || c.ArtifactIndex >= len(artifacts) {
			continue
		}
		uri := artifacts[c.ArtifactIndex].URI
		urisByClass[c.Name] = append(urisByClass[c.Name], uri)
	}

	if policy == Strict {
		var dupeNames []string
		for name, uris := range urisByClass {
			if len(uris) > 1 {
				dupeNames = append(dupeNames, name)
			}
		}
		if len(dupeNames) > 0 {
			sort.Strings(dupeNames)
			var b strings.Builder
			b.WriteString("classpath: duplicate class definitions: ")
			for i, name := range dupeNames {
				if i > 0 {
					b.WriteString("; ")
				}
				uris := append([]string(nil), urisByClass[name]...)
				sort.Strings(uris)
				fmt.Fprintf(&b, "%s supplied by %s", name, strings.Join(uris, ", "))
			}
			return nil, fmt.Errorf("%s", b.String())
		}
	}

	resolved := make(map[string]string, len(urisByClass))
	dupeClasses := make([]string, 0)
	for name, uris := range urisByClass {
		if len(uris) > 1 {
			dupeClasses = append(dupeClasses, name)
		}
		sorted := append([]string(nil), uris...)
		sort.Strings(sorted)
		resolved[name] = sorted[0]
	}

	if logger != nil && len(dupeClasses) > 0 {
		sort.Strings(dupeClasses)
		for _, name := range dupeClasses {
			logger.Warn("classpath: duplicate class resolved permissively",
				"class", name, "chosenURI", resolved[name])
		}
	}

	return &Index{uriByClass: resolved}, nil
}
