package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// expandArgs turns a list of raw CLI tokens into a flat list of
// values, expanding any token of the form "@path" into the
// newline-separated contents of path (recursively, since an @file may
// itself contain @references), and comma-splitting only tokens that
// were NOT read from an @file.
//
// Grounded on original_source/src/main.rs's expand_path_args/
// expand_rule_args and their shared @file convention: comment lines
// (leading '#') and blank lines are skipped, and a file is rejected if
// it would revisit a path already open on the current expansion stack.
func expandArgs(tokens []string) ([]string, error) {
	var out []string
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "@") {
			expanded, err := expandFile(tok[1:], nil)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
			continue
		}
		for _, piece := range strings.Split(tok, ",") {
			piece = strings.TrimSpace(piece)
			if piece != "" {
				out = append(out, piece)
			}
		}
	}
	return out, nil
}

func expandFile(path string, stack []string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("args: failed to resolve %s: %w", path, err)
	}
	for _, visited := range stack {
		if visited == abs {
			return nil, fmt.Errorf("args: circular @file reference through %s", path)
		}
	}
	stack = append(stack, abs)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("args: failed to open %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "@") {
			nested, err := expandFile(resolveRelative(path, line[1:]), stack)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		if strings.Contains(line, ",") {
			return nil, fmt.Errorf("args: %s:%q must name one value per line, not a comma list", path, line)
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("args: failed to read %s: %w", path, err)
	}
	return out, nil
}

// resolveRelative resolves a nested @file reference found inside
// referencer against referencer's own directory, so @file chains work
// regardless of the caller's working directory.
func resolveRelative(referencer, ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(filepath.Dir(referencer), ref)
}
