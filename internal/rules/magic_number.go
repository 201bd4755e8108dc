package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

// magicNumberRule flags numeric literals pushed directly in method
// bodies, exempting an allowlist of common values, array-creation
// sizes, and collection initial-capacity arguments.
//
// Grounded on original_source/src/rules/magic_number/mod.rs.
type magicNumberRule struct{}

func (magicNumberRule) Metadata() Metadata {
	return Metadata{
		ID:          "MAGIC_NUMBER",
		Name:        "Magic number",
		Description: "Numeric literals used directly in method bodies reduce readability and maintainability; extract them into named constants",
	}
}

var magicNumberIntAllowlist = buildMagicNumberAllowlist()

func buildMagicNumberAllowlist() map[int64]bool {
	set := map[int64]bool{-1: true, 0: true, 1: true, 2: true}
	for p := int64(4); p <= 1024; p *= 2 {
		set[p] = true
	}
	set[0xFF] = true
	set[0xFFFF] = true
	set[0xFFFFFFFF] = true
	return set
}

var magicNumberCollectionTypes = map[string]bool{
	"java/lang/StringBuilder":                    true,
	"java/lang/StringBuffer":                      true,
	"java/util/ArrayList":                         true,
	"java/util/LinkedList":                        true,
	"java/util/HashSet":                           true,
	"java/util/LinkedHashSet":                     true,
	"java/util/HashMap":                           true,
	"java/util/LinkedHashMap":                     true,
	"java/util/WeakHashMap":                       true,
	"java/util/IdentityHashMap":                   true,
	"java/util/Hashtable":                         true,
	"java/util/Vector":                            true,
	"java/util/PriorityQueue":                     true,
	"java/util/ArrayDeque":                        true,
	"java/util/concurrent/ConcurrentHashMap":      true,
	"java/util/concurrent/LinkedBlockingQueue":    true,
	"java/util/concurrent/ArrayBlockingQueue":     true,
	"java/util/concurrent/PriorityBlockingQueue":  true,
	"java/util/concurrent/LinkedBlockingDeque":    true,
}

func (r magicNumberRule) Run(ctx *analysisctx.Context) ([]Finding, error) {
	var findings []Finding
	for _, class := range ctx.AnalysisTargetClasses() {
		for _, method := range class.Methods {
			if method.Access.IsSynthetic || method.Access.IsBridge {
				continue
			}
			if method.Name == "hashCode" && method.Descriptor == "()I" {
				continue
			}
			instructions := flattenInstructions(method.CFG)
			for idx, inst := range instructions {
				value, ok := magicNumberLiteral(inst.Kind)
				if !ok {
					continue
				}
				if magicNumberArrayCreationContext(instructions, idx) {
					continue
				}
				if magicNumberCollectionCapacityContext(instructions, idx) {
					continue
				}
				message := fmt.Sprintf("Magic number %s in %s.%s%s", value, class.Name, method.Name, method.Descriptor)
				findings = append(findings, newFinding(ctx, r.Metadata().ID, message, class, method, inst.Offset))
			}
		}
	}
	return findings, nil
}

func magicNumberLiteral(kind ir.InstructionKind) (string, bool) {
	switch k := kind.(type) {
	case ir.ConstInt:
		if magicNumberIntAllowlist[int64(k.Value)] {
			return "", false
		}
		return fmt.Sprintf("%d", k.Value), true
	case ir.ConstFloat:
		if k.Value == 0.0 || k.Value == 1.0 {
			return "", false
		}
		return fmt.Sprintf("%v", k.Value), true
	default:
		return "", false
	}
}

func magicNumberArrayCreationContext(instructions []ir.Instruction, idx int) bool {
	if idx+1 >= len(instructions) {
		return false
	}
	switch instructions[idx+1].Opcode {
	case opcode.Newarray, opcode.Anewarray, opcode.Multianewarray:
		return true
	}
	return false
}

func magicNumberCollectionCapacityContext(instructions []ir.Instruction, idx int) bool {
	limit := idx + 5
	if limit > len(instructions) {
		limit = len(instructions)
	}
	for i := idx + 1; i < limit; i++ {
		invoke, ok := instructions[i].Kind.(ir.Invoke)
		if !ok {
			continue
		}
		if invoke.Call.Name == "<init>" && strings.HasPrefix(invoke.Call.Descriptor, "(I)") && magicNumberCollectionTypes[invoke.Call.Owner] {
			return true
		}
	}
	return false
}

// flattenInstructions returns every instruction across a method's CFG
// blocks in ascending offset order.
func flattenInstructions(cfg ir.ControlFlowGraph) []ir.Instruction {
	var out []ir.Instruction
	for _, b := range cfg.Blocks {
		out = append(out, b.Instructions...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}
