package wg86

import "golang.org/x/arch/x86/x86asm"

func init() {
	register(x86asm.MOV, opMOV)
	register(x86asm.MOVZX, opMOVZX)
	register(x86asm.MOVSX, opMOVSX)
	register(x86asm.XCHG, opXCHG)
	register(x86asm.LEA, opLEA)
	register(x86asm.LDS, opLoadFarPointer(x86asm.DS))
	register(x86asm.LES, opLoadFarPointer(x86asm.ES))

	register(x86asm.PUSH, opPUSH)
	register(x86asm.POP, opPOP)
	register(x86asm.PUSHF, opPUSHF)
	register(x86asm.POPF, opPOPF)
	register(x86asm.PUSHA, opPUSHA)
	register(x86asm.POPA, opPOPA)

	register(x86asm.CBW, opCBW)
	register(x86asm.CWD, opCWD)
	register(x86asm.XLATB, opXLAT)
}

func opMOV(eu *ExecutionUnit, in *Instruction) error {
	v, _, err := ReadOperand(eu, in, 1)
	if err != nil {
		return err
	}
	return WriteOperand(eu, in, 0, v)
}

func opMOVZX(eu *ExecutionUnit, in *Instruction) error {
	v, width, err := ReadOperand(eu, in, 1)
	if err != nil {
		return err
	}
	return WriteOperand(eu, in, 0, v&uint32(widthMask(width)))
}

func opMOVSX(eu *ExecutionUnit, in *Instruction) error {
	v, width, err := ReadOperand(eu, in, 1)
	if err != nil {
		return err
	}
	return WriteOperand(eu, in, 0, uint32(signExtend(uint64(v)&widthMask(width), width)))
}

func opXCHG(eu *ExecutionUnit, in *Instruction) error {
	a, _, err := ReadOperand(eu, in, 0)
	if err != nil {
		return err
	}
	b, _, err := ReadOperand(eu, in, 1)
	if err != nil {
		return err
	}
	if err := WriteOperand(eu, in, 0, b); err != nil {
		return err
	}
	return WriteOperand(eu, in, 1, a)
}

func opLEA(eu *ExecutionUnit, in *Instruction) error {
	_, offset := ResolveOperandAddress(eu.Regs, in, 1)
	return WriteOperand(eu, in, 0, uint32(offset))
}

// opLoadFarPointer implements LDS/LES: the destination register is
// loaded from the addressed word, and segReg from the following word,
// per the 80286 far-pointer load pair.
func opLoadFarPointer(segReg x86asm.Reg) func(*ExecutionUnit, *Instruction) error {
	return func(eu *ExecutionUnit, in *Instruction) error {
		seg, off := ResolveOperandAddress(eu.Regs, in, 1)
		lo, err := eu.Memory.ReadOperandWord(seg, off)
		if err != nil {
			return err
		}
		hi, err := eu.Memory.ReadOperandWord(seg, off+2)
		if err != nil {
			return err
		}
		if err := WriteOperand(eu, in, 0, uint32(lo)); err != nil {
			return err
		}
		eu.Regs.Set16(segReg, hi)
		return nil
	}
}

func opPUSH(eu *ExecutionUnit, in *Instruction) error {
	v, _, err := ReadOperand(eu, in, 0)
	if err != nil {
		return err
	}
	return eu.pushWord(uint16(v))
}

func opPOP(eu *ExecutionUnit, in *Instruction) error {
	v, err := eu.popWord()
	if err != nil {
		return err
	}
	return WriteOperand(eu, in, 0, uint32(v))
}

func opPUSHF(eu *ExecutionUnit, in *Instruction) error {
	return eu.pushWord(eu.Regs.Flags)
}

func opPOPF(eu *ExecutionUnit, in *Instruction) error {
	v, err := eu.popWord()
	if err != nil {
		return err
	}
	eu.Regs.Flags = v
	return nil
}

func opPUSHA(eu *ExecutionUnit, in *Instruction) error {
	sp := eu.Regs.SP
	for _, v := range []uint16{eu.Regs.AX, eu.Regs.CX, eu.Regs.DX, eu.Regs.BX, sp, eu.Regs.BP, eu.Regs.SI, eu.Regs.DI} {
		if err := eu.pushWord(v); err != nil {
			return err
		}
	}
	return nil
}

func opPOPA(eu *ExecutionUnit, in *Instruction) error {
	var di, si, bp, _sp, bx, dx, cx, ax uint16
	var err error
	if di, err = eu.popWord(); err != nil {
		return err
	}
	if si, err = eu.popWord(); err != nil {
		return err
	}
	if bp, err = eu.popWord(); err != nil {
		return err
	}
	if _sp, err = eu.popWord(); err != nil {
		return err
	}
	if bx, err = eu.popWord(); err != nil {
		return err
	}
	if dx, err = eu.popWord(); err != nil {
		return err
	}
	if cx, err = eu.popWord(); err != nil {
		return err
	}
	if ax, err = eu.popWord(); err != nil {
		return err
	}
	_ = _sp
	eu.Regs.DI, eu.Regs.SI, eu.Regs.BP = di, si, bp
	eu.Regs.BX, eu.Regs.DX, eu.Regs.CX, eu.Regs.AX = bx, dx, cx, ax
	return nil
}

func opCBW(eu *ExecutionUnit, in *Instruction) error {
	eu.Regs.AX = uint16(int8(eu.Regs.Get8(x86asm.AL)))
	return nil
}

func opCWD(eu *ExecutionUnit, in *Instruction) error {
	if eu.Regs.AX&0x8000 != 0 {
		eu.Regs.DX = 0xFFFF
	} else {
		eu.Regs.DX = 0
	}
	return nil
}

func opXLAT(eu *ExecutionUnit, in *Instruction) error {
	seg := eu.Regs.DS
	if ov := in.SegmentOverride(); ov != 0 {
		seg = eu.Regs.Get16(ov)
	}
	b, err := eu.Memory.GetByte(seg, eu.Regs.BX+uint16(eu.Regs.Get8(x86asm.AL)))
	if err != nil {
		return err
	}
	eu.Regs.Set8(x86asm.AL, b)
	return nil
}
