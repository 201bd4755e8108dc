package rules

import (
	"fmt"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/descriptor"
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

// slf4jPlaceholderMismatchRule simulates a method's bytecode linearly
// (ignoring branches, since the stack shape at any call site does not
// depend on which path reached it) tracking which stack/local slots
// hold a string literal pushed by ldc, then flags SLF4J Logger calls
// whose first argument is such a literal with a "{}" count that
// disagrees with the number of trailing arguments supplied.
//
// Grounded on original_source/src/rules/slf4j_placeholder_mismatch.rs.
type slf4jPlaceholderMismatchRule struct{}

func (slf4jPlaceholderMismatchRule) Metadata() Metadata {
	return Metadata{
		ID:          "SLF4J_PLACEHOLDER_MISMATCH",
		Name:        "SLF4J placeholder mismatch",
		Description: "SLF4J placeholder count does not match arguments",
	}
}

func (r slf4jPlaceholderMismatchRule) Run(ctx *analysisctx.Context) ([]Finding, error) {
	var findings []Finding
	for _, class := range ctx.AnalysisTargetClasses() {
		for _, method := range class.Methods {
			if len(method.Bytecode) == 0 {
				continue
			}
			sites, err := slf4jAnalyzeMethod(method)
			if err != nil {
				return nil, fmt.Errorf("rules: SLF4J_PLACEHOLDER_MISMATCH in %s.%s%s: %w", class.Name, method.Name, method.Descriptor, err)
			}
			for _, site := range sites {
				message := fmt.Sprintf("SLF4J placeholder mismatch: expected %d argument(s) but found %d", site.expected, site.found)
				findings = append(findings, newFinding(ctx, r.Metadata().ID, message, class, method, site.offset))
			}
		}
	}
	return findings, nil
}

type slf4jValueKind int

const (
	slf4jUnknown slf4jValueKind = iota
	slf4jFormatString
)

type slf4jValue struct {
	kind         slf4jValueKind
	placeholders int
}

type slf4jMismatchSite struct {
	offset           uint32
	expected, found int
}

func slf4jAnalyzeMethod(method ir.Method) ([]slf4jMismatchSite, error) {
	callsByOffset := make(map[uint32]ir.CallSite, len(method.Calls))
	for _, c := range method.Calls {
		callsByOffset[c.Offset] = c
	}
	constStrings := make(map[uint32]string)
	for _, block := range method.CFG.Blocks {
		for _, inst := range block.Instructions {
			if cs, ok := inst.Kind.(ir.ConstString); ok {
				constStrings[inst.Offset] = cs.Value
			}
		}
	}

	locals, err := slf4jInitialLocals(method)
	if err != nil {
		return nil, err
	}
	var stack []slf4jValue
	pop := func() slf4jValue {
		if len(stack) == 0 {
			return slf4jValue{kind: slf4jUnknown}
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	ensureLocal := func(index int) {
		for index >= len(locals) {
			locals = append(locals, slf4jValue{kind: slf4jUnknown})
		}
	}

	var sites []slf4jMismatchSite
	code := method.Bytecode
	offset := 0
	for offset < len(code) {
		op := code[offset]
		switch op {
		case opcode.AconstNull:
			stack = append(stack, slf4jValue{kind: slf4jUnknown})
		case opcode.Aload:
			index := 0
			if offset+1 < len(code) {
				index = int(code[offset+1])
			}
			ensureLocal(index)
			stack = append(stack, locals[index])
		case opcode.Aload0, opcode.Aload1, opcode.Aload2, opcode.Aload3:
			index := int(op - opcode.Aload0)
			ensureLocal(index)
			stack = append(stack, locals[index])
		case opcode.Astore:
			index := 0
			if offset+1 < len(code) {
				index = int(code[offset+1])
			}
			ensureLocal(index)
			locals[index] = pop()
		case opcode.Astore0, opcode.Astore1, opcode.Astore2, opcode.Astore3:
			index := int(op - opcode.Astore0)
			ensureLocal(index)
			locals[index] = pop()
		case opcode.Ldc, opcode.LdcW, opcode.Ldc2W:
			if value, ok := constStrings[uint32(offset)]; ok {
				stack = append(stack, slf4jValue{kind: slf4jFormatString, placeholders: countPlaceholders(value)})
			} else {
				stack = append(stack, slf4jValue{kind: slf4jUnknown})
			}
		case opcode.Dup:
			if len(stack) > 0 {
				stack = append(stack, stack[len(stack)-1])
			}
		case opcode.Pop:
			pop()
		case opcode.Invokevirtual, opcode.Invokeinterface, opcode.Invokespecial, opcode.Invokestatic:
			if call, ok := callsByOffset[uint32(offset)]; ok {
				paramTypes, err := descriptor.ParamTypes(call.Descriptor)
				if err != nil {
					return nil, err
				}
				args := make([]slf4jValue, len(paramTypes))
				for i := len(paramTypes) - 1; i >= 0; i-- {
					args[i] = pop()
				}
				if call.Kind != ir.CallStatic {
					pop()
				}
				if isSLF4JLoggerCall(call) {
					if mismatch, ok := slf4jPlaceholderMismatch(paramTypes, args); ok {
						sites = append(sites, slf4jMismatchSite{offset: uint32(offset), expected: mismatch.expected, found: mismatch.found})
					}
				}
				retKind, err := descriptor.Return(call.Descriptor)
				if err != nil {
					return nil, err
				}
				if retKind != descriptor.ReturnVoid {
					stack = append(stack, slf4jValue{kind: slf4jUnknown})
				}
			}
		}
		length, ok := opcode.Length(code, offset)
		if !ok {
			break
		}
		offset += length
	}
	return sites, nil
}

func slf4jInitialLocals(method ir.Method) ([]slf4jValue, error) {
	var locals []slf4jValue
	if !method.Access.IsStatic {
		locals = append(locals, slf4jValue{kind: slf4jUnknown})
	}
	paramTypes, err := descriptor.ParamTypes(method.Descriptor)
	if err != nil {
		return nil, err
	}
	for range paramTypes {
		locals = append(locals, slf4jValue{kind: slf4jUnknown})
	}
	return locals, nil
}

func isSLF4JLoggerCall(call ir.CallSite) bool {
	if call.Owner != "org/slf4j/Logger" {
		return false
	}
	switch call.Name {
	case "trace", "debug", "info", "warn", "error":
		return true
	}
	return false
}

type slf4jMismatch struct {
	expected, found int
}

func slf4jPlaceholderMismatch(paramTypes []string, args []slf4jValue) (slf4jMismatch, bool) {
	if len(paramTypes) == 0 || len(args) == 0 {
		return slf4jMismatch{}, false
	}
	if paramTypes[0] != "Ljava/lang/String;" {
		return slf4jMismatch{}, false
	}
	if args[0].kind != slf4jFormatString {
		return slf4jMismatch{}, false
	}
	format := args[0].placeholders

	argCount := len(paramTypes) - 1
	if paramTypes[len(paramTypes)-1] == "Ljava/lang/Throwable;" {
		argCount--
	}
	if argCount < 0 {
		argCount = 0
	}

	if len(paramTypes) == 2 && paramTypes[1] == "[Ljava/lang/Object;" {
		return slf4jMismatch{}, false
	}

	if format == argCount {
		return slf4jMismatch{}, false
	}
	return slf4jMismatch{expected: format, found: argCount}, true
}

func countPlaceholders(text string) int {
	bytes := []byte(text)
	count := 0
	i := 0
	for i+1 < len(bytes) {
		if bytes[i] == '{' && bytes[i+1] == '}' {
			backslashes := 0
			lookback := i
			for lookback > 0 {
				lookback--
				if bytes[lookback] == '\\' {
					backslashes++
				} else {
					break
				}
			}
			if backslashes%2 == 0 {
				count++
			}
			i += 2
		} else {
			i++
		}
	}
	return count
}
