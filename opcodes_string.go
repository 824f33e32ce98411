package wg86

import "golang.org/x/arch/x86/x86asm"

func init() {
	for _, op := range []x86asm.Op{
		x86asm.MOVSB, x86asm.MOVSW, x86asm.CMPSB, x86asm.CMPSW,
		x86asm.SCASB, x86asm.SCASW, x86asm.LODSB, x86asm.LODSW,
		x86asm.STOSB, x86asm.STOSW,
	} {
		o := op
		register(o, func(eu *ExecutionUnit, in *Instruction) error {
			return eu.stringStep(o, stringSourceSegment(in))
		})
	}
}

func isStringOp(op x86asm.Op) bool {
	switch op {
	case x86asm.MOVSB, x86asm.MOVSW, x86asm.CMPSB, x86asm.CMPSW,
		x86asm.SCASB, x86asm.SCASW, x86asm.LODSB, x86asm.LODSW,
		x86asm.STOSB, x86asm.STOSW:
		return true
	}
	return false
}

func stringWidth(op x86asm.Op) int {
	switch op {
	case x86asm.MOVSB, x86asm.CMPSB, x86asm.SCASB, x86asm.LODSB, x86asm.STOSB:
		return 8
	default:
		return 16
	}
}

func isCompareStringOp(op x86asm.Op) bool {
	switch op {
	case x86asm.CMPSB, x86asm.CMPSW, x86asm.SCASB, x86asm.SCASW:
		return true
	}
	return false
}

// stringSourceSegment is DS unless overridden; the destination segment
// for MOVS/CMPS/SCAS/STOS is always ES and cannot be overridden, per
// spec.md §9 open question 3.
func stringSourceSegment(in *Instruction) x86asm.Reg {
	if ov := in.SegmentOverride(); ov != 0 {
		return ov
	}
	return x86asm.DS
}

// stringStep performs one iteration of a string instruction, advancing
// SI and/or DI by the operand width (1 or 2 bytes) in the direction DF
// selects.
func (eu *ExecutionUnit) stringStep(op x86asm.Op, srcSeg x86asm.Reg) error {
	width := stringWidth(op)
	delta := int32(width / 8)
	if eu.Regs.DF() {
		delta = -delta
	}

	switch op {
	case x86asm.MOVSB, x86asm.MOVSW:
		seg := eu.Regs.Get16(srcSeg)
		if width == 8 {
			v, err := eu.Memory.GetByte(seg, eu.Regs.SI)
			if err != nil {
				return err
			}
			if err := eu.Memory.SetByte(eu.Regs.ES, eu.Regs.DI, v); err != nil {
				return err
			}
		} else {
			v, err := eu.Memory.ReadOperandWord(seg, eu.Regs.SI)
			if err != nil {
				return err
			}
			if err := eu.Memory.SetWord(eu.Regs.ES, eu.Regs.DI, v); err != nil {
				return err
			}
		}
		eu.Regs.SI = uint16(int32(eu.Regs.SI) + delta)
		eu.Regs.DI = uint16(int32(eu.Regs.DI) + delta)

	case x86asm.CMPSB, x86asm.CMPSW:
		seg := eu.Regs.Get16(srcSeg)
		var a, b uint64
		if width == 8 {
			av, err := eu.Memory.GetByte(seg, eu.Regs.SI)
			if err != nil {
				return err
			}
			bv, err := eu.Memory.GetByte(eu.Regs.ES, eu.Regs.DI)
			if err != nil {
				return err
			}
			a, b = uint64(av), uint64(bv)
		} else {
			av, err := eu.Memory.ReadOperandWord(seg, eu.Regs.SI)
			if err != nil {
				return err
			}
			bv, err := eu.Memory.ReadOperandWord(eu.Regs.ES, eu.Regs.DI)
			if err != nil {
				return err
			}
			a, b = uint64(av), uint64(bv)
		}
		eu.Regs.ApplyFlags(Evaluate(FlagOpCmp, width, a, b, a-b, eu.Regs.Flags))
		eu.Regs.SI = uint16(int32(eu.Regs.SI) + delta)
		eu.Regs.DI = uint16(int32(eu.Regs.DI) + delta)

	case x86asm.SCASB, x86asm.SCASW:
		var a, b uint64
		if width == 8 {
			a = uint64(eu.Regs.Get8(x86asm.AL))
			bv, err := eu.Memory.GetByte(eu.Regs.ES, eu.Regs.DI)
			if err != nil {
				return err
			}
			b = uint64(bv)
		} else {
			a = uint64(eu.Regs.AX)
			bv, err := eu.Memory.ReadOperandWord(eu.Regs.ES, eu.Regs.DI)
			if err != nil {
				return err
			}
			b = uint64(bv)
		}
		eu.Regs.ApplyFlags(Evaluate(FlagOpCmp, width, a, b, a-b, eu.Regs.Flags))
		eu.Regs.DI = uint16(int32(eu.Regs.DI) + delta)

	case x86asm.LODSB, x86asm.LODSW:
		seg := eu.Regs.Get16(srcSeg)
		if width == 8 {
			v, err := eu.Memory.GetByte(seg, eu.Regs.SI)
			if err != nil {
				return err
			}
			eu.Regs.Set8(x86asm.AL, v)
		} else {
			v, err := eu.Memory.ReadOperandWord(seg, eu.Regs.SI)
			if err != nil {
				return err
			}
			eu.Regs.AX = v
		}
		eu.Regs.SI = uint16(int32(eu.Regs.SI) + delta)

	case x86asm.STOSB, x86asm.STOSW:
		if width == 8 {
			if err := eu.Memory.SetByte(eu.Regs.ES, eu.Regs.DI, eu.Regs.Get8(x86asm.AL)); err != nil {
				return err
			}
		} else {
			if err := eu.Memory.SetWord(eu.Regs.ES, eu.Regs.DI, eu.Regs.AX); err != nil {
				return err
			}
		}
		eu.Regs.DI = uint16(int32(eu.Regs.DI) + delta)
	}
	return nil
}

// execString drives the REP/REPE/REPNE loop around stringStep: CX
// decrements once per iteration, and for the compare-family
// instructions the loop also breaks on a ZF mismatch, per spec.md §9
// open question 3's REPE/REPNE semantics.
func (eu *ExecutionUnit) execString(in *Instruction, rep RepKind) error {
	srcSeg := stringSourceSegment(in)
	compareLike := isCompareStringOp(in.Op)

	for eu.Regs.CX != 0 {
		if err := eu.stringStep(in.Op, srcSeg); err != nil {
			return err
		}
		eu.Regs.CX--
		if compareLike {
			if rep == RepEqual && !eu.Regs.ZF() {
				break
			}
			if rep == RepNotEqual && eu.Regs.ZF() {
				break
			}
		}
	}
	eu.Regs.IP += uint16(in.Len)
	return nil
}
