// Package pipeline wires scanning, classpath resolution, rule
// execution, baseline filtering, and SARIF assembly into the single
// orchestrated flow cmd/inspequte drives, mirroring
// original_source/src/main.rs's analyze()/run_scan()/run_baseline().
package pipeline

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kengotoda/inspequte/internal/classfile"
	"github.com/kengotoda/inspequte/internal/ir"
)

// ScanResult is every class and artifact discovered under a set of
// input paths, tagged with the given role.
type ScanResult struct {
	Classes   []ir.Class
	Artifacts []ir.Artifact
}

// ScanPaths walks every path in paths (a loose .class file, a .jar
// archive, or a directory containing either) and decodes every class
// file found, attributing role to the top-level artifact each class
// belongs to. Paths are scanned in the order given and sorted
// directory-walk order, so ArtifactIndex assignment is deterministic
// across runs on the same inputs.
func ScanPaths(paths []string, role ir.Role) (ScanResult, error) {
	var result ScanResult

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return ScanResult{}, fmt.Errorf("pipeline: failed to stat %s: %w", p, err)
		}
		if info.IsDir() {
			if err := scanDir(p, role, &result); err != nil {
				return ScanResult{}, err
			}
			continue
		}
		if err := scanFile(p, role, &result); err != nil {
			return ScanResult{}, err
		}
	}

	return result, nil
}

func scanDir(root string, role ir.Role, result *ScanResult) error {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".class", ".jar":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pipeline: failed to walk %s: %w", root, err)
	}
	sort.Strings(files)
	for _, f := range files {
		if err := scanFile(f, role, result); err != nil {
			return err
		}
	}
	return nil
}

func scanFile(path string, role ir.Role, result *ScanResult) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar":
		return scanJARFile(path, role, result)
	case ".class":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("pipeline: failed to read %s: %w", path, err)
		}
		uri, err := fileURI(path)
		if err != nil {
			return err
		}
		return addClass(uri, role, -1, data, result)
	default:
		return fmt.Errorf("pipeline: unsupported input %s (expected .class or .jar)", path)
	}
}

func scanJARFile(path string, role ir.Role, result *ScanResult) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("pipeline: failed to open JAR %s: %w", path, err)
	}
	defer zr.Close()

	jarURI, err := fileURI(path)
	if err != nil {
		return err
	}
	artifactIndex := len(result.Artifacts)
	result.Artifacts = append(result.Artifacts, ir.Artifact{URI: jarURI, ParentIndex: -1, Role: role})

	entries := make([]struct {
		name string
		data []byte
	}, 0)
	err = classfile.ScanJAR(&zr.Reader, func(entryPath string, data []byte) error {
		entries = append(entries, struct {
			name string
			data []byte
		}{entryPath, data})
		return nil
	})
	if err != nil {
		return fmt.Errorf("pipeline: failed to scan JAR %s: %w", path, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	for _, e := range entries {
		// Entry artifacts store the bare entry path, not a pre-built
		// "jar:..." URI: analysisctx.ClassArtifactURI synthesizes the
		// full "jar:<parent-uri>!/<entry>" URI once from this artifact's
		// parent, so storing it here too would double-wrap it.
		if err := addClass(e.name, role, artifactIndex, e.data, result); err != nil {
			return fmt.Errorf("pipeline: failed to decode jar:%s!/%s: %w", jarURI, e.name, err)
		}
	}
	return nil
}

// fileURI converts a filesystem path into an absolute "file://" URI,
// matching the absolute-URI convention original_source/src/main.rs's
// input handling strips back off ("file://" + absolute path).
func fileURI(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("pipeline: failed to resolve %s: %w", path, err)
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	return "file://" + abs, nil
}

func addClass(uri string, role ir.Role, parentIndex int, data []byte, result *ScanResult) error {
	artifactIndex := len(result.Artifacts)
	result.Artifacts = append(result.Artifacts, ir.Artifact{URI: uri, ParentIndex: parentIndex, Role: role})

	class, err := classfile.ScanClass(artifactIndex, data)
	if err != nil {
		return fmt.Errorf("pipeline: failed to parse %s: %w", uri, err)
	}
	result.Classes = append(result.Classes, class)
	return nil
}
