package classfile

import (
	"fmt"

	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

// decodeInstructions walks code from offset 0, decoding every
// instruction and symbolically resolving any constant-pool operand it
// carries. It also returns the flattened lists of call sites and string
// literals the rule catalog scans independently of the CFG.
func decodeInstructions(code []byte, cp *constantPool) ([]ir.Instruction, []ir.CallSite, []string, error) {
	var instructions []ir.Instruction
	var calls []ir.CallSite
	var strings []string

	for offset := 0; offset < len(code); {
		op := code[offset]
		n, ok := opcode.Length(code, offset)
		if !ok {
			return nil, nil, nil, fmt.Errorf("classfile: undecodable instruction %s (0x%02x) at offset %d", opcode.Name(op), op, offset)
		}
		kind, call, str, err := decodeOperand(code, offset, op, cp)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("classfile: decoding operand at offset %d: %w", offset, err)
		}
		instructions = append(instructions, ir.Instruction{
			Offset: uint32(offset),
			Opcode: op,
			Kind:   kind,
		})
		if call != nil {
			calls = append(calls, *call)
		}
		if str != "" {
			strings = append(strings, str)
		}
		offset += n
	}
	return instructions, calls, strings, nil
}

// decodeOperand resolves the constant-pool-bearing operand of a single
// instruction, if it has one. Most opcodes carry no symbolic operand and
// decode to Other{}.
func decodeOperand(code []byte, offset int, op byte, cp *constantPool) (ir.InstructionKind, *ir.CallSite, string, error) {
	switch op {
	case opcode.Ldc:
		return decodeLdc(code, offset, int(code[offset+1]), cp)
	case opcode.LdcW, opcode.Ldc2W:
		idx := int(code[offset+1])<<8 | int(code[offset+2])
		return decodeLdc(code, offset, idx, cp)
	case opcode.Getstatic, opcode.Putstatic, opcode.Getfield, opcode.Putfield:
		idx := beIndex(code, offset+1)
		owner, name, descriptor, err := cp.fieldRef(idx)
		if err != nil {
			return nil, nil, "", err
		}
		return ir.FieldAccess{Ref: ir.FieldRef{Owner: owner, Name: name, Descriptor: descriptor}}, nil, "", nil
	case opcode.Invokevirtual, opcode.Invokespecial, opcode.Invokestatic:
		idx := beIndex(code, offset+1)
		owner, name, descriptor, err := cp.methodRef(idx)
		if err != nil {
			return nil, nil, "", err
		}
		call := ir.CallSite{Owner: owner, Name: name, Descriptor: descriptor, Kind: callKindFor(op), Offset: uint32(offset)}
		return ir.Invoke{Call: call}, &call, "", nil
	case opcode.Invokeinterface:
		idx := beIndex(code, offset+1)
		owner, name, descriptor, err := cp.methodRef(idx)
		if err != nil {
			return nil, nil, "", err
		}
		call := ir.CallSite{Owner: owner, Name: name, Descriptor: descriptor, Kind: ir.CallInterface, Offset: uint32(offset)}
		return ir.Invoke{Call: call}, &call, "", nil
	case opcode.Invokedynamic:
		idx := beIndex(code, offset+1)
		descriptor, err := cp.invokeDynamicDescriptor(idx)
		if err != nil {
			return nil, nil, "", err
		}
		return ir.InvokeDynamic{Descriptor: descriptor}, nil, "", nil
	}
	return ir.Other{}, nil, "", nil
}

func decodeLdc(code []byte, offset int, cpIndex int, cp *constantPool) (ir.InstructionKind, *ir.CallSite, string, error) {
	entry, err := cp.get(uint16(cpIndex))
	if err != nil {
		return nil, nil, "", err
	}
	switch entry.tag {
	case tagInteger:
		return ir.ConstInt{Value: entry.integer}, nil, "", nil
	case tagFloat:
		return ir.ConstFloat{Value: float64(entry.float32v)}, nil, "", nil
	case tagLong:
		return ir.ConstInt{Value: int32(entry.long)}, nil, "", nil
	case tagDouble:
		return ir.ConstFloat{Value: entry.double}, nil, "", nil
	case tagString:
		s, err := cp.string(uint16(cpIndex))
		if err != nil {
			return nil, nil, "", err
		}
		return ir.ConstString{Value: s}, nil, s, nil
	case tagClass:
		name, err := cp.className(uint16(cpIndex))
		if err != nil {
			return nil, nil, "", err
		}
		return ir.ConstString{Value: name}, nil, "", nil
	default:
		return ir.Other{}, nil, "", nil
	}
}

func callKindFor(op byte) ir.CallKind {
	switch op {
	case opcode.Invokestatic:
		return ir.CallStatic
	case opcode.Invokespecial:
		return ir.CallSpecial
	default:
		return ir.CallVirtual
	}
}

func beIndex(code []byte, offset int) uint16 {
	return uint16(code[offset])<<8 | uint16(code[offset+1])
}
