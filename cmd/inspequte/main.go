// Command inspequte scans compiled JVM class files and JARs for
// defect-prone bytecode patterns and emits SARIF 2.1.0. It is a thin
// wrapper over internal/pipeline: argument parsing, @file expansion,
// and output routing live here; every analysis decision lives in the
// internal packages.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kengotoda/inspequte/internal/classpath"
	"github.com/kengotoda/inspequte/internal/pipeline"
	"github.com/kengotoda/inspequte/internal/telemetry"
)

// version is overridden at release build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: inspequte <scan|baseline> [flags]")
		return 2
	}

	switch args[0] {
	case "scan":
		return runScan(args[1:])
	case "baseline":
		return runBaseline(args[1:])
	case "-h", "--help", "help":
		fmt.Fprintln(os.Stderr, "usage: inspequte <scan|baseline> [flags]")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "inspequte: unknown command %q\n", args[0])
		return 2
	}
}

type commonFlags struct {
	inputs          []string
	classpathInputs []string
	rules           []string
	permissive      bool
}

func parseCommonFlags(fs *flag.FlagSet, args []string) (commonFlags, []string, error) {
	var raw commonFlags
	var inputArg, classpathArg, rulesArg string
	fs.StringVar(&inputArg, "input", "", "comma-separated paths to scan (.class, .jar, or a directory); use @file for more")
	fs.StringVar(&classpathArg, "classpath", "", "comma-separated classpath-only paths, same syntax as --input")
	fs.StringVar(&rulesArg, "rules", "", "comma-separated rule IDs to run; omit to run every registered rule")
	fs.BoolVar(&raw.permissive, "permissive", false, "resolve duplicate class definitions to the lexicographically-smallest artifact instead of failing")
	if err := fs.Parse(args); err != nil {
		return commonFlags{}, nil, err
	}

	inputs, err := expandArgs(splitNonEmpty(inputArg))
	if err != nil {
		return commonFlags{}, nil, err
	}
	classpathInputs, err := expandArgs(splitNonEmpty(classpathArg))
	if err != nil {
		return commonFlags{}, nil, err
	}
	var ruleIDs []string
	if rulesArg != "" {
		ruleIDs, err = expandArgs(splitNonEmpty(rulesArg))
		if err != nil {
			return commonFlags{}, nil, err
		}
	}

	raw.inputs = inputs
	raw.classpathInputs = classpathInputs
	raw.rules = ruleIDs
	return raw, fs.Args(), nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func duplicatePolicy(permissive bool) classpath.DuplicatePolicy {
	if permissive {
		return classpath.Permissive
	}
	return classpath.Strict
}

func runScan(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	var output, baselinePath, automationID string
	fs.StringVar(&output, "output", "-", "SARIF output path, or \"-\" for stdout")
	fs.StringVar(&baselinePath, "baseline", "", "baseline file to filter known findings out of the report")
	fs.StringVar(&automationID, "automation-id", "", "optional run.automationDetails.id to embed in the SARIF output")

	common, _, err := parseCommonFlags(fs, args)
	if err != nil {
		return 2
	}
	if len(common.inputs) == 0 {
		fmt.Fprintln(os.Stderr, "inspequte scan: --input is required")
		return 2
	}

	tel := telemetry.New("inspequte", slog.Default())
	result, err := pipeline.Run(context.Background(), tel, pipeline.ScanRequest{
		InputPaths:          common.inputs,
		ClasspathPaths:      common.classpathInputs,
		DuplicatePolicy:     duplicatePolicy(common.permissive),
		RuleIDs:             common.rules,
		BaselinePath:        baselinePath,
		ToolVersion:         version,
		Arguments:           args,
		AutomationDetailsID: automationID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspequte: %v\n", err)
		return 1
	}

	if err := writeSARIF(output, result); err != nil {
		fmt.Fprintf(os.Stderr, "inspequte: %v\n", err)
		return 1
	}
	if len(result.Log.Runs[0].Results) > 0 {
		return 1
	}
	return 0
}

func runBaseline(args []string) int {
	fs := flag.NewFlagSet("baseline", flag.ContinueOnError)
	var output string
	fs.StringVar(&output, "output", "", "path to write the baseline file (required)")

	common, _, err := parseCommonFlags(fs, args)
	if err != nil {
		return 2
	}
	if len(common.inputs) == 0 {
		fmt.Fprintln(os.Stderr, "inspequte baseline: --input is required")
		return 2
	}
	if output == "" {
		fmt.Fprintln(os.Stderr, "inspequte baseline: --output is required")
		return 2
	}

	tel := telemetry.New("inspequte", slog.Default())
	result, err := pipeline.Run(context.Background(), tel, pipeline.ScanRequest{
		InputPaths:      common.inputs,
		ClasspathPaths:  common.classpathInputs,
		DuplicatePolicy: duplicatePolicy(common.permissive),
		RuleIDs:         common.rules,
		ToolVersion:     version,
		Arguments:       args,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspequte: %v\n", err)
		return 1
	}

	if err := baselineWrite(output, result); err != nil {
		fmt.Fprintf(os.Stderr, "inspequte: %v\n", err)
		return 1
	}
	return 0
}
