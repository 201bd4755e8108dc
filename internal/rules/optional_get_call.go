package rules

import (
	"fmt"

	"github.com/kengotoda/inspequte/internal/analysisctx"
	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

// optionalGetCallRule flags direct getter calls on the Optional family
// (Optional.get, OptionalInt.getAsInt, OptionalLong.getAsLong,
// OptionalDouble.getAsDouble), unless the call is guarded by a
// preceding isPresent()/isEmpty() check on the same local with no
// intervening store.
//
// Grounded on original_source/src/rules/optional_get_call/mod.rs.
type optionalGetCallRule struct{}

func (optionalGetCallRule) Metadata() Metadata {
	return Metadata{
		ID:          "OPTIONAL_GET_CALL",
		Name:        "Optional direct getter call",
		Description: "Optional.get/getAs* can throw when empty",
	}
}

func (r optionalGetCallRule) Run(ctx *analysisctx.Context) ([]Finding, error) {
	var findings []Finding
	for _, class := range ctx.AnalysisTargetClasses() {
		for _, method := range class.Methods {
			instructions := optionalGetDecodeInstructions(method.Bytecode)
			guarded := optionalGetGuardedOffsets(&method, instructions)
			for _, call := range method.Calls {
				if !isOptionalGetterCall(call.Owner, call.Name, call.Descriptor) {
					continue
				}
				if guarded[call.Offset] {
					continue
				}
				message := fmt.Sprintf("Avoid Optional direct getter in %s.%s%s; use orElse/orElseThrow/ifPresent instead.",
					class.Name, method.Name, method.Descriptor)
				findings = append(findings, newFinding(ctx, r.Metadata().ID, message, class, method, call.Offset))
			}
		}
	}
	return findings, nil
}

func isOptionalGetterCall(owner, name, descriptor string) bool {
	switch {
	case owner == "java/util/Optional" && name == "get" && descriptor == "()Ljava/lang/Object;":
		return true
	case owner == "java/util/OptionalInt" && name == "getAsInt" && descriptor == "()I":
		return true
	case owner == "java/util/OptionalLong" && name == "getAsLong" && descriptor == "()J":
		return true
	case owner == "java/util/OptionalDouble" && name == "getAsDouble" && descriptor == "()D":
		return true
	}
	return false
}

func isOptionalOwner(owner string) bool {
	switch owner {
	case "java/util/Optional", "java/util/OptionalInt", "java/util/OptionalLong", "java/util/OptionalDouble":
		return true
	}
	return false
}

// optionalGetInstruction is a decoded instruction boundary: offset,
// opcode, and total byte length, independent of the instruction's
// symbolic payload (the rule only needs aload/astore/invoke/branch
// shapes, not the full ir.Instruction decode).
type optionalGetInstruction struct {
	offset uint32
	opcode byte
	length int
}

func optionalGetDecodeInstructions(code []byte) []optionalGetInstruction {
	var out []optionalGetInstruction
	offset := 0
	for offset < len(code) {
		length, ok := opcode.Length(code, offset)
		if !ok {
			break
		}
		out = append(out, optionalGetInstruction{offset: uint32(offset), opcode: code[offset], length: length})
		offset += length
	}
	return out
}

type optionalGetPresenceKind int

const (
	optionalGetIsPresent optionalGetPresenceKind = iota
	optionalGetIsEmpty
)

type optionalGetGuardRange struct {
	startOffset uint32
	endOffset   uint32
	localIndex  int
}

// optionalGetGuardedOffsets returns the call offsets of Optional getter
// calls that are reachable only when a preceding isPresent()/isEmpty()
// check on the same local has already established non-emptiness, with
// no store to that local in between.
func optionalGetGuardedOffsets(method *ir.Method, instructions []optionalGetInstruction) map[uint32]bool {
	indexByOffset := make(map[uint32]int, len(instructions))
	for i, inst := range instructions {
		indexByOffset[inst.offset] = i
	}
	ranges := optionalGetCollectGuardRanges(method, instructions)

	guarded := make(map[uint32]bool)
	for _, call := range method.Calls {
		if !isOptionalGetterCall(call.Owner, call.Name, call.Descriptor) {
			continue
		}
		idx, ok := indexByOffset[call.Offset]
		if !ok {
			continue
		}
		localIndex, ok := optionalGetReceiverLocalIndex(method.Bytecode, instructions, idx)
		if !ok {
			continue
		}
		for _, rng := range ranges {
			if rng.localIndex != localIndex {
				continue
			}
			if call.Offset < rng.startOffset || call.Offset >= rng.endOffset {
				continue
			}
			if optionalGetHasStoreBetween(method.Bytecode, instructions, localIndex, rng.startOffset, call.Offset) {
				continue
			}
			guarded[call.Offset] = true
			break
		}
	}
	return guarded
}

func optionalGetCollectGuardRanges(method *ir.Method, instructions []optionalGetInstruction) []optionalGetGuardRange {
	callsByOffset := make(map[uint32]ir.CallSite, len(method.Calls))
	for _, call := range method.Calls {
		callsByOffset[call.Offset] = call
	}
	var ranges []optionalGetGuardRange
	for idx, inst := range instructions {
		if !isInvokeOpcode(inst.opcode) {
			continue
		}
		call, ok := callsByOffset[inst.offset]
		if !ok {
			continue
		}
		kind, ok := optionalPresenceCheckKind(call)
		if !ok {
			continue
		}
		localIndex, ok := optionalGetReceiverLocalIndex(method.Bytecode, instructions, idx)
		if !ok {
			continue
		}
		if idx+1 >= len(instructions) {
			continue
		}
		branch := instructions[idx+1]
		target, ok := optionalGetConditionalBranchTarget(method.Bytecode, branch)
		if !ok {
			continue
		}
		start, end, ok := optionalGetFallthroughRange(kind, branch, target)
		if !ok {
			continue
		}
		ranges = append(ranges, optionalGetGuardRange{startOffset: start, endOffset: end, localIndex: localIndex})
	}
	return ranges
}

func isInvokeOpcode(op byte) bool {
	switch op {
	case opcode.Invokevirtual, opcode.Invokespecial, opcode.Invokeinterface, opcode.Invokestatic:
		return true
	}
	return false
}

func optionalPresenceCheckKind(call ir.CallSite) (optionalGetPresenceKind, bool) {
	if call.Descriptor != "()Z" || !isOptionalOwner(call.Owner) {
		return 0, false
	}
	switch call.Name {
	case "isPresent":
		return optionalGetIsPresent, true
	case "isEmpty":
		return optionalGetIsEmpty, true
	}
	return 0, false
}

func optionalGetReceiverLocalIndex(code []byte, instructions []optionalGetInstruction, idx int) (int, bool) {
	if idx == 0 {
		return 0, false
	}
	return aloadLocalIndex(code, instructions[idx-1])
}

func aloadLocalIndex(code []byte, inst optionalGetInstruction) (int, bool) {
	switch inst.opcode {
	case opcode.Aload:
		if int(inst.offset)+1 >= len(code) {
			return 0, false
		}
		return int(code[inst.offset+1]), true
	case opcode.Aload0, opcode.Aload1, opcode.Aload2, opcode.Aload3:
		return int(inst.opcode - opcode.Aload0), true
	case opcode.Wide:
		if int(inst.offset)+3 >= len(code) || code[inst.offset+1] != opcode.Aload {
			return 0, false
		}
		return int(code[inst.offset+2])<<8 | int(code[inst.offset+3]), true
	}
	return 0, false
}

func astoreLocalIndex(code []byte, inst optionalGetInstruction) (int, bool) {
	switch inst.opcode {
	case opcode.Astore:
		if int(inst.offset)+1 >= len(code) {
			return 0, false
		}
		return int(code[inst.offset+1]), true
	case opcode.Astore0, opcode.Astore1, opcode.Astore2, opcode.Astore3:
		return int(inst.opcode - opcode.Astore0), true
	case opcode.Wide:
		if int(inst.offset)+3 >= len(code) || code[inst.offset+1] != opcode.Astore {
			return 0, false
		}
		return int(code[inst.offset+2])<<8 | int(code[inst.offset+3]), true
	}
	return 0, false
}

func optionalGetConditionalBranchTarget(code []byte, inst optionalGetInstruction) (uint32, bool) {
	if inst.opcode != opcode.Ifeq && inst.opcode != opcode.Ifne {
		return 0, false
	}
	if int(inst.offset)+2 >= len(code) {
		return 0, false
	}
	branch := int16(uint16(code[inst.offset+1])<<8 | uint16(code[inst.offset+2]))
	target := int32(inst.offset) + int32(branch)
	if target < 0 {
		return 0, false
	}
	return uint32(target), true
}

func optionalGetFallthroughRange(kind optionalGetPresenceKind, branch optionalGetInstruction, branchTarget uint32) (start, end uint32, ok bool) {
	nonEmptyOnFallthrough := (kind == optionalGetIsPresent && branch.opcode == opcode.Ifeq) ||
		(kind == optionalGetIsEmpty && branch.opcode == opcode.Ifne)
	if !nonEmptyOnFallthrough {
		return 0, 0, false
	}
	start = branch.offset + uint32(branch.length)
	if start >= branchTarget {
		return 0, 0, false
	}
	return start, branchTarget, true
}

func optionalGetHasStoreBetween(code []byte, instructions []optionalGetInstruction, localIndex int, start, end uint32) bool {
	for _, inst := range instructions {
		if inst.offset < start || inst.offset >= end {
			continue
		}
		if stored, ok := astoreLocalIndex(code, inst); ok && stored == localIndex {
			return true
		}
	}
	return false
}
