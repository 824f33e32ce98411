package wg86

import "golang.org/x/arch/x86/x86asm"

func is32BitReg(r x86asm.Reg) bool {
	return r >= x86asm.EAX && r <= x86asm.R15L
}

// operandWidth infers the operand width in bits from its decoded kind,
// per spec.md §4.D ("the width is inferred from the operand kinds").
func operandWidth(in *Instruction, idx int) int {
	op := in.Operands[idx]
	switch op.Kind {
	case OperandRegister:
		if IsRegWidth8(op.Reg) {
			return 8
		}
		if is32BitReg(op.Reg) {
			return 32
		}
		return 16
	case OperandMemory:
		switch in.raw.MemBytes {
		case 1:
			return 8
		case 4:
			return 32
		default:
			return 16
		}
	case OperandImmediate8:
		return 8
	case OperandImmediate32:
		return 32
	default:
		return 16
	}
}

// ReadOperand reads operand idx of in, resolving memory operands via
// the effective-address resolver and routing the relocation-aware
// word/dword path for non-byte memory reads (spec.md §4.B).
func ReadOperand(eu *ExecutionUnit, in *Instruction, idx int) (uint32, int, error) {
	op := in.Operands[idx]
	width := operandWidth(in, idx)
	switch op.Kind {
	case OperandRegister:
		if is32BitReg(op.Reg) {
			return 0, width, &UnsupportedOperandShape{Mnemonic: in.Op.String(), Kinds: []OperandKind{op.Kind}}
		}
		if width == 8 {
			return uint32(eu.Regs.Get8(op.Reg)), width, nil
		}
		return uint32(eu.Regs.Get16(op.Reg)), width, nil
	case OperandMemory:
		seg, off := ResolveOperandAddress(eu.Regs, in, idx)
		switch width {
		case 8:
			b, err := eu.Memory.GetByte(seg, off)
			return uint32(b), width, err
		case 32:
			d, err := eu.Memory.ReadOperandDword(seg, off)
			return d, width, err
		default:
			w, err := eu.Memory.ReadOperandWord(seg, off)
			return uint32(w), width, err
		}
	case OperandImmediate16, OperandImmediate8to16:
		// An imm16 field is a candidate for the NE loader's sentinel
		// fix-up (spec.md §4.B/testable property 4): it occupies the
		// trailing two bytes of the encoding, the same slot a far
		// pointer's low word would. classifyImmediate tells Immediate16
		// apart from Immediate8to16 by the decoded value's range, not by
		// the instruction's real imm8-vs-imm16 encoding (x86asm sign
		// extends a full imm16 through int16, so a relocation sentinel's
		// 0xFFFF always decodes as -1 and lands in the 8to16 bucket) —
		// both cases must check the relocation table the same way.
		immOff := in.Offset + uint16(in.Len) - 2
		if r, ok := eu.Memory.GetRelocation(in.Segment, immOff); ok {
			return uint32(r.LowWord()), width, nil
		}
		return uint32(op.Imm), width, nil
	case OperandImmediate32:
		immOff := in.Offset + uint16(in.Len) - 4
		if r, ok := eu.Memory.GetRelocation(in.Segment, immOff); ok {
			return uint32(r.LowWord()) | uint32(r.HighWord())<<16, width, nil
		}
		return uint32(op.Imm), width, nil
	case OperandImmediate8, OperandNearBranch16, OperandFarBranch16:
		return uint32(op.Imm), width, nil
	default:
		return 0, width, &UnsupportedOperandShape{Mnemonic: in.Op.String(), Kinds: []OperandKind{op.Kind}}
	}
}

// WriteOperand writes value (truncated to the operand's inferred
// width) into operand idx of in.
func WriteOperand(eu *ExecutionUnit, in *Instruction, idx int, value uint32) error {
	op := in.Operands[idx]
	width := operandWidth(in, idx)
	switch op.Kind {
	case OperandRegister:
		if is32BitReg(op.Reg) {
			return &UnsupportedOperandShape{Mnemonic: in.Op.String(), Kinds: []OperandKind{op.Kind}}
		}
		if width == 8 {
			eu.Regs.Set8(op.Reg, byte(value))
		} else {
			eu.Regs.Set16(op.Reg, uint16(value))
		}
		return nil
	case OperandMemory:
		seg, off := ResolveOperandAddress(eu.Regs, in, idx)
		switch width {
		case 8:
			return eu.Memory.SetByte(seg, off, byte(value))
		case 32:
			return eu.Memory.SetDword(seg, off, value)
		default:
			return eu.Memory.SetWord(seg, off, uint16(value))
		}
	default:
		return &UnsupportedOperandShape{Mnemonic: in.Op.String(), Kinds: []OperandKind{op.Kind}}
	}
}

// signExtend widens a width-bit two's-complement value to 64 bits.
func signExtend(v uint64, width int) int64 {
	shift := 64 - uint(width)
	return int64(v<<shift) >> shift
}
