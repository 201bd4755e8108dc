package rules

import (
	"fmt"
	"sort"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

// volatileIncrementNonAtomicRule flags a getfield/getstatic of a
// volatile field, followed (within a short lookback window) by an
// arithmetic opcode and a putfield/putstatic writing the same field:
// the read-modify-write is three separate memory operations and can
// lose a concurrent update despite the field's volatile keyword.
//
// Grounded on original_source/src/rules/volatile_increment_non_atomic/mod.rs.
type volatileIncrementNonAtomicRule struct{}

func (volatileIncrementNonAtomicRule) Metadata() Metadata {
	return Metadata{
		ID:          "VOLATILE_INCREMENT_NON_ATOMIC",
		Name:        "Non-atomic update on volatile field",
		Description: "Read-modify-write updates on volatile fields can lose concurrent updates",
	}
}

const volatileLookbackWindow = 8

func (r volatileIncrementNonAtomicRule) Run(ctx *analysisctx.Context) ([]Finding, error) {
	var findings []Finding
	for _, class := range ctx.AnalysisTargetClasses() {
		volatileFields := volatileFieldSet(class)
		if len(volatileFields) == 0 {
			continue
		}
		for _, method := range class.Methods {
			for _, site := range findNonAtomicUpdateSites(method, volatileFields) {
				message := fmt.Sprintf("Non-atomic update on volatile field '%s' in %s.%s%s; replace with an atomic type or synchronize the update.",
					site.fieldName, class.Name, method.Name, method.Descriptor)
				findings = append(findings, newFinding(ctx, r.Metadata().ID, message, class, method, site.offset))
			}
		}
	}
	return findings, nil
}

type volatileFieldKey struct {
	owner, name, descriptor string
}

type volatileUpdateSite struct {
	fieldName string
	offset    uint32
}

func volatileFieldSet(class ir.Class) map[volatileFieldKey]bool {
	fields := make(map[volatileFieldKey]bool)
	for _, f := range class.Fields {
		if f.IsVolatile {
			fields[volatileFieldKey{owner: class.Name, name: f.Name, descriptor: f.Descriptor}] = true
		}
	}
	return fields
}

func findNonAtomicUpdateSites(method ir.Method, volatileFields map[volatileFieldKey]bool) []volatileUpdateSite {
	var instructions []ir.Instruction
	for _, block := range method.CFG.Blocks {
		instructions = append(instructions, block.Instructions...)
	}
	sort.Slice(instructions, func(i, j int) bool { return instructions[i].Offset < instructions[j].Offset })

	seen := make(map[uint32]bool)
	var sites []volatileUpdateSite
	for i, inst := range instructions {
		field, name, ok := writeFieldKey(inst, volatileFields)
		if !ok {
			continue
		}
		if i == 0 || !isRMWArithmetic(instructions[i-1].Opcode) {
			continue
		}
		start := i - volatileLookbackWindow
		if start < 0 {
			start = 0
		}
		hasMatchingRead := false
		for _, candidate := range instructions[start:i] {
			if k, _, ok := readFieldKey(candidate, volatileFields); ok && k == field {
				hasMatchingRead = true
				break
			}
		}
		if hasMatchingRead && !seen[inst.Offset] {
			seen[inst.Offset] = true
			sites = append(sites, volatileUpdateSite{fieldName: name, offset: inst.Offset})
		}
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].offset < sites[j].offset })
	return sites
}

func readFieldKey(inst ir.Instruction, volatileFields map[volatileFieldKey]bool) (volatileFieldKey, string, bool) {
	if inst.Opcode != opcode.Getfield && inst.Opcode != opcode.Getstatic {
		return volatileFieldKey{}, "", false
	}
	return instructionFieldKey(inst, volatileFields)
}

func writeFieldKey(inst ir.Instruction, volatileFields map[volatileFieldKey]bool) (volatileFieldKey, string, bool) {
	if inst.Opcode != opcode.Putfield && inst.Opcode != opcode.Putstatic {
		return volatileFieldKey{}, "", false
	}
	return instructionFieldKey(inst, volatileFields)
}

func instructionFieldKey(inst ir.Instruction, volatileFields map[volatileFieldKey]bool) (volatileFieldKey, string, bool) {
	access, ok := inst.Kind.(ir.FieldAccess)
	if !ok {
		return volatileFieldKey{}, "", false
	}
	key := volatileFieldKey{owner: access.Ref.Owner, name: access.Ref.Name, descriptor: access.Ref.Descriptor}
	if !volatileFields[key] {
		return volatileFieldKey{}, "", false
	}
	return key, access.Ref.Name, true
}

func isRMWArithmetic(op byte) bool {
	switch op {
	case opcode.Iadd, opcode.Ladd, opcode.Fadd, opcode.Dadd,
		opcode.Isub, opcode.Lsub, opcode.Fsub, opcode.Dsub,
		opcode.Imul, opcode.Lmul, opcode.Fmul, opcode.Dmul,
		opcode.Idiv, opcode.Ldiv, opcode.Fdiv, opcode.Ddiv,
		opcode.Irem, opcode.Lrem, opcode.Frem, opcode.Drem,
		opcode.Ishl, opcode.Lshl, opcode.Ishr, opcode.Lshr,
		opcode.Iushr, opcode.Lushr,
		opcode.Iand, opcode.Land, opcode.Ior, opcode.Lor, opcode.Ixor, opcode.Lxor:
		return true
	}
	return false
}
