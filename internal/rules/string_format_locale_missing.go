package rules

import (
	"fmt"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
)

// stringFormatLocaleMissingRule flags String.format(String, Object[])
// calls and Formatter constructors that omit an explicit Locale
// argument: both default to the JVM's runtime locale, so the same code
// formats numbers and dates differently depending on where it runs.
//
// Grounded on original_source/src/rules/string_format_locale_missing/mod.rs.
type stringFormatLocaleMissingRule struct{}

func (stringFormatLocaleMissingRule) Metadata() Metadata {
	return Metadata{
		ID:          "STRING_FORMAT_LOCALE_MISSING",
		Name:        "String/Formatter formatting without explicit locale",
		Description: "String.format(...) and Formatter usage without Locale can vary by runtime locale",
	}
}

func (r stringFormatLocaleMissingRule) Run(ctx *analysisctx.Context) ([]Finding, error) {
	var findings []Finding
	for _, class := range ctx.AnalysisTargetClasses() {
		for _, method := range class.Methods {
			for _, call := range method.Calls {
				if !isLocaleMissingFormatCall(call) {
					continue
				}
				var message string
				if call.Name == "<init>" {
					message = fmt.Sprintf("Formatter in %s.%s%s created without an explicit Locale; pass Locale.ROOT (or another explicit Locale).",
						class.Name, method.Name, method.Descriptor)
				} else {
					message = fmt.Sprintf("Formatting in %s.%s%s depends on the default locale; pass Locale.ROOT (or another explicit Locale).",
						class.Name, method.Name, method.Descriptor)
				}
				findings = append(findings, newFinding(ctx, r.Metadata().ID, message, class, method, call.Offset))
			}
		}
	}
	return findings, nil
}

func isLocaleMissingFormatCall(call ir.CallSite) bool {
	return isStringFormatWithoutLocale(call) || isFormatterConstructorWithoutLocale(call)
}

func isStringFormatWithoutLocale(call ir.CallSite) bool {
	return call.Owner == "java/lang/String" && call.Name == "format" &&
		call.Descriptor == "(Ljava/lang/String;[Ljava/lang/Object;)Ljava/lang/String;"
}

func isFormatterConstructorWithoutLocale(call ir.CallSite) bool {
	if call.Owner != "java/util/Formatter" || call.Name != "<init>" {
		return false
	}
	switch call.Descriptor {
	case "()V",
		"(Ljava/lang/Appendable;)V",
		"(Ljava/lang/String;)V",
		"(Ljava/lang/String;Ljava/lang/String;)V",
		"(Ljava/lang/String;Ljava/nio/charset/Charset;)V",
		"(Ljava/io/File;)V",
		"(Ljava/io/File;Ljava/lang/String;)V",
		"(Ljava/io/File;Ljava/nio/charset/Charset;)V",
		"(Ljava/io/PrintStream;)V",
		"(Ljava/io/OutputStream;)V",
		"(Ljava/io/OutputStream;Ljava/lang/String;)V",
		"(Ljava/io/OutputStream;Ljava/nio/charset/Charset;)V":
		return true
	}
	return false
}
