package main

import (
	"fmt"
	"os"

	"github.com/kengotoda/inspequte/internal/baseline"
	"github.com/kengotoda/inspequte/internal/pipeline"
	"github.com/kengotoda/inspequte/internal/sarif"
)

// writeSARIF renders result's SARIF log to path, or to stdout when
// path is "-" or empty.
func writeSARIF(path string, result pipeline.Result) error {
	data, err := sarif.Marshal(result.Log)
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// baselineWrite captures result's raw findings (unfiltered by any
// existing baseline) into a fresh baseline file at path.
func baselineWrite(path string, result pipeline.Result) error {
	return baseline.Write(path, result.Findings)
}
