package classfile

import (
	"sort"

	"github.com/kengotoda/inspequte/internal/ir"
	"github.com/kengotoda/inspequte/internal/opcode"
)

// buildCFG partitions instructions into basic blocks and links them with
// fallthrough, branch, and exception edges, per spec.md §4.1: a new
// block starts at offset 0, at every branch/switch target, and at the
// instruction immediately following any branch, switch, return, or
// throw.
func buildCFG(instructions []ir.Instruction, code []byte, handlers []ir.ExceptionHandler) ir.ControlFlowGraph {
	if len(instructions) == 0 {
		return ir.ControlFlowGraph{}
	}

	boundaries := map[uint32]bool{instructions[0].Offset: true}
	for i, inst := range instructions {
		op := inst.Opcode
		nextOffset := uint32(len(code))
		if i+1 < len(instructions) {
			nextOffset = instructions[i+1].Offset
		}
		switch {
		case opcode.IsUnconditionalBranch(op):
			boundaries[uint32(opcode.BranchOffset16(code, int(inst.Offset)))] = true
			boundaries[nextOffset] = true
		case opcode.IsConditionalBranch(op):
			boundaries[uint32(opcode.BranchOffset16(code, int(inst.Offset)))] = true
			boundaries[nextOffset] = true
		case op == opcode.GotoW || op == opcode.JsrW:
			boundaries[uint32(opcode.BranchOffset32(code, int(inst.Offset)))] = true
			boundaries[nextOffset] = true
		case opcode.IsSwitch(op):
			for _, target := range switchTargets(code, int(inst.Offset), op) {
				boundaries[uint32(target)] = true
			}
			boundaries[nextOffset] = true
		case opcode.IsReturn(op), opcode.IsThrow(op):
			boundaries[nextOffset] = true
		}
	}
	for _, h := range handlers {
		boundaries[h.HandlerPC] = true
		boundaries[h.StartPC] = true
		boundaries[h.EndPC] = true
	}

	var starts []uint32
	for offset := range boundaries {
		if offset < uint32(len(code)) {
			starts = append(starts, offset)
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	blocks := make([]ir.BasicBlock, len(starts))
	for i, start := range starts {
		end := uint32(len(code))
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		blocks[i] = ir.BasicBlock{StartOffset: start, EndOffset: end}
	}
	blockIndexFor := func(offset uint32) int {
		return sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
	}
	for _, inst := range instructions {
		idx := blockIndexFor(inst.Offset)
		blocks[idx].Instructions = append(blocks[idx].Instructions, inst)
	}

	var edges []ir.Edge
	for bi := range blocks {
		b := &blocks[bi]
		if len(b.Instructions) == 0 {
			continue
		}
		last := b.Instructions[len(b.Instructions)-1]
		op := last.Opcode
		switch {
		case opcode.IsUnconditionalBranch(op):
			target := uint32(opcode.BranchOffset16(code, int(last.Offset)))
			edges = append(edges, ir.Edge{From: b.StartOffset, To: target, Kind: ir.EdgeBranch})
		case op == opcode.GotoW:
			target := uint32(opcode.BranchOffset32(code, int(last.Offset)))
			edges = append(edges, ir.Edge{From: b.StartOffset, To: target, Kind: ir.EdgeBranch})
		case opcode.IsConditionalBranch(op):
			target := uint32(opcode.BranchOffset16(code, int(last.Offset)))
			edges = append(edges, ir.Edge{From: b.StartOffset, To: target, Kind: ir.EdgeBranch})
			if b.EndOffset < uint32(len(code)) {
				edges = append(edges, ir.Edge{From: b.StartOffset, To: b.EndOffset, Kind: ir.EdgeFallthrough})
			}
		case op == opcode.JsrW:
			target := uint32(opcode.BranchOffset32(code, int(last.Offset)))
			edges = append(edges, ir.Edge{From: b.StartOffset, To: target, Kind: ir.EdgeBranch})
			if b.EndOffset < uint32(len(code)) {
				edges = append(edges, ir.Edge{From: b.StartOffset, To: b.EndOffset, Kind: ir.EdgeFallthrough})
			}
		case opcode.IsSwitch(op):
			for _, target := range switchTargets(code, int(last.Offset), op) {
				edges = append(edges, ir.Edge{From: b.StartOffset, To: uint32(target), Kind: ir.EdgeBranch})
			}
		case opcode.IsReturn(op), opcode.IsThrow(op):
			// no fallthrough or branch successor
		default:
			if b.EndOffset < uint32(len(code)) {
				edges = append(edges, ir.Edge{From: b.StartOffset, To: b.EndOffset, Kind: ir.EdgeFallthrough})
			}
		}
	}

	for _, h := range handlers {
		for _, b := range blocks {
			if b.StartOffset >= h.StartPC && b.StartOffset < h.EndPC {
				edges = append(edges, ir.Edge{From: b.StartOffset, To: h.HandlerPC, Kind: ir.EdgeException})
			}
		}
	}

	return ir.ControlFlowGraph{Blocks: blocks, Edges: edges}
}

// switchTargets returns every absolute jump target of a tableswitch or
// lookupswitch instruction at offset, including the default target.
func switchTargets(code []byte, offset int, op byte) []int32 {
	pad := opcode.Padding(offset)
	base := offset + 1 + pad
	def := int32(be32(code, base))
	targets := []int32{int32(offset) + def}
	switch op {
	case opcode.Tableswitch:
		low := int32(be32(code, base+4))
		high := int32(be32(code, base+8))
		entryBase := base + 12
		for i := 0; i <= int(high-low); i++ {
			delta := int32(be32(code, entryBase+4*i))
			targets = append(targets, int32(offset)+delta)
		}
	case opcode.Lookupswitch:
		npairs := int(be32(code, base+4))
		entryBase := base + 8
		for i := 0; i < npairs; i++ {
			delta := int32(be32(code, entryBase+8*i+4))
			targets = append(targets, int32(offset)+delta)
		}
	}
	return targets
}

func be32(b []byte, offset int) uint32 {
	return uint32(b[offset])<<24 | uint32(b[offset+1])<<16 | uint32(b[offset+2])<<8 | uint32(b[offset+3])
}
