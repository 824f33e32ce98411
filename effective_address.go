package wg86

import "golang.org/x/arch/x86/x86asm"

// defaultSegmentForBase implements spec.md §4.F's default-segment rule:
// SS when the base register is BP or SP, DS otherwise. x86asm's own
// 16-bit ModR/M table (addr16 in its decode.go) leaves Mem.Segment at
// the zero Reg for these forms unless an explicit override prefix was
// present — it never bakes in the SS default itself, so this module
// supplies the rule.
func defaultSegmentForBase(base x86asm.Reg) x86asm.Reg {
	switch base {
	case x86asm.BP, x86asm.SP:
		return x86asm.SS
	default:
		return x86asm.DS
	}
}

// ResolveEffectiveAddress computes (segment, offset) for a decoded
// Memory operand, per spec.md §4.F: offset is base+index+disp computed
// as wrapping unsigned 16-bit arithmetic; segment is the explicit
// override if the instruction carried one, else the default for the
// base register.
func ResolveEffectiveAddress(regs *RegisterFile, mem x86asm.Mem, override x86asm.Reg) (segment, offset uint16) {
	offset = uint16(int32(mem.Disp))
	if mem.Base != 0 {
		offset += regs.Get16(mem.Base)
	}
	if mem.Index != 0 && mem.Scale != 0 {
		offset += regs.Get16(mem.Index) * uint16(mem.Scale)
	}

	var segReg x86asm.Reg
	if override != 0 {
		segReg = override
	} else if mem.Segment != 0 {
		segReg = mem.Segment
	} else {
		segReg = defaultSegmentForBase(mem.Base)
	}
	return regs.Get16(segReg), offset
}

// ResolveOperandAddress resolves operand index idx of in, which must be
// of kind OperandMemory, honoring in's own segment-override prefix.
func ResolveOperandAddress(regs *RegisterFile, in *Instruction, idx int) (segment, offset uint16) {
	op := in.Operands[idx]
	return ResolveEffectiveAddress(regs, op.Mem, in.SegmentOverride())
}
