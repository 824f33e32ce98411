package wg86

import "golang.org/x/arch/x86/x86asm"

func init() {
	register(x86asm.JMP, opJMP)
	register(x86asm.LJMP, opJMP)
	register(x86asm.CALL, opCALL)
	register(x86asm.LCALL, func(eu *ExecutionUnit, in *Instruction) error { return eu.dispatchFarCall(in) })
	register(x86asm.RET, opRET)
	register(x86asm.LRET, func(eu *ExecutionUnit, in *Instruction) error { return eu.dispatchRetf(in) })
	register(x86asm.INT, opINT)
	register(x86asm.IRET, opIRET)

	register(x86asm.LOOP, opLOOP)
	register(x86asm.LOOPE, opLOOPE)
	register(x86asm.LOOPNE, opLOOPNE)
	register(x86asm.JCXZ, opJCXZ)

	for op, cond := range jccConditions {
		c := cond
		register(op, func(eu *ExecutionUnit, in *Instruction) error {
			condBranch(eu, in, c(eu.Regs))
			return nil
		})
	}

	register(x86asm.CLC, func(eu *ExecutionUnit, in *Instruction) error { eu.Regs.SetCF(false); return nil })
	register(x86asm.STC, func(eu *ExecutionUnit, in *Instruction) error { eu.Regs.SetCF(true); return nil })
	register(x86asm.CMC, func(eu *ExecutionUnit, in *Instruction) error { eu.Regs.SetCF(!eu.Regs.CF()); return nil })
	register(x86asm.CLD, func(eu *ExecutionUnit, in *Instruction) error { eu.Regs.SetDF(false); return nil })
	register(x86asm.STD, func(eu *ExecutionUnit, in *Instruction) error { eu.Regs.SetDF(true); return nil })
	register(x86asm.CLI, func(eu *ExecutionUnit, in *Instruction) error { eu.Regs.SetIF(false); return nil })
	register(x86asm.STI, func(eu *ExecutionUnit, in *Instruction) error { eu.Regs.SetIF(true); return nil })
	register(x86asm.LAHF, func(eu *ExecutionUnit, in *Instruction) error {
		eu.Regs.Set8(x86asm.AH, eu.Regs.LAHF())
		return nil
	})
	register(x86asm.SAHF, func(eu *ExecutionUnit, in *Instruction) error {
		eu.Regs.SAHF(eu.Regs.Get8(x86asm.AH))
		return nil
	})
	register(x86asm.NOP, func(eu *ExecutionUnit, in *Instruction) error { return nil })
}

// isJccOp reports whether op is one of x86asm's sixteen conditional
// jump mnemonics (JA/JAE/.../JS rather than the JZ/JNZ spelling).
func isJccOp(op x86asm.Op) bool {
	_, ok := jccConditions[op]
	return ok
}

var jccConditions = map[x86asm.Op]func(*RegisterFile) bool{
	x86asm.JA:   func(r *RegisterFile) bool { return !r.CF() && !r.ZF() },
	x86asm.JAE:  func(r *RegisterFile) bool { return !r.CF() },
	x86asm.JB:   func(r *RegisterFile) bool { return r.CF() },
	x86asm.JBE:  func(r *RegisterFile) bool { return r.CF() || r.ZF() },
	x86asm.JE:   func(r *RegisterFile) bool { return r.ZF() },
	x86asm.JG:   func(r *RegisterFile) bool { return !r.ZF() && r.SF() == r.OF() },
	x86asm.JGE:  func(r *RegisterFile) bool { return r.SF() == r.OF() },
	x86asm.JL:   func(r *RegisterFile) bool { return r.SF() != r.OF() },
	x86asm.JLE:  func(r *RegisterFile) bool { return r.ZF() || r.SF() != r.OF() },
	x86asm.JNE:  func(r *RegisterFile) bool { return !r.ZF() },
	x86asm.JNO:  func(r *RegisterFile) bool { return !r.OF() },
	x86asm.JNP:  func(r *RegisterFile) bool { return !r.PF() },
	x86asm.JNS:  func(r *RegisterFile) bool { return !r.SF() },
	x86asm.JO:   func(r *RegisterFile) bool { return r.OF() },
	x86asm.JP:   func(r *RegisterFile) bool { return r.PF() },
	x86asm.JS:   func(r *RegisterFile) bool { return r.SF() },
}

// condBranch applies a relative branch's displacement when taken,
// leaving IP untouched (for step's auto-advance) when not.
func condBranch(eu *ExecutionUnit, in *Instruction, taken bool) {
	if !taken {
		return
	}
	op := in.Operands[0]
	eu.Regs.IP = eu.Regs.IP + uint16(in.Len) + uint16(int16(op.Rel))
}

func opLOOP(eu *ExecutionUnit, in *Instruction) error {
	eu.Regs.CX--
	condBranch(eu, in, eu.Regs.CX != 0)
	return nil
}

func opLOOPE(eu *ExecutionUnit, in *Instruction) error {
	eu.Regs.CX--
	condBranch(eu, in, eu.Regs.CX != 0 && eu.Regs.ZF())
	return nil
}

func opLOOPNE(eu *ExecutionUnit, in *Instruction) error {
	eu.Regs.CX--
	condBranch(eu, in, eu.Regs.CX != 0 && !eu.Regs.ZF())
	return nil
}

func opJCXZ(eu *ExecutionUnit, in *Instruction) error {
	condBranch(eu, in, eu.Regs.CX == 0)
	return nil
}

func opJMP(eu *ExecutionUnit, in *Instruction) error {
	op := in.Operands[0]
	switch op.Kind {
	case OperandNearBranch16:
		if op.IsRel {
			eu.Regs.IP = eu.Regs.IP + uint16(in.Len) + uint16(int16(op.Rel))
		} else {
			eu.Regs.IP = uint16(op.Imm)
		}
		return nil
	case OperandFarBranch16:
		eu.Regs.IP = uint16(op.Imm)
		eu.Regs.CS = uint16(in.Operands[1].Imm)
		return nil
	case OperandRegister:
		v, _, err := ReadOperand(eu, in, 0)
		if err != nil {
			return err
		}
		eu.Regs.IP = uint16(v)
		return nil
	case OperandMemory:
		seg, off := ResolveOperandAddress(eu.Regs, in, 0)
		if in.raw.MemBytes == 4 {
			newOff, err := eu.Memory.ReadOperandWord(seg, off)
			if err != nil {
				return err
			}
			newSeg, err := eu.Memory.ReadOperandWord(seg, off+2)
			if err != nil {
				return err
			}
			eu.Regs.IP, eu.Regs.CS = newOff, newSeg
			return nil
		}
		v, err := eu.Memory.ReadOperandWord(seg, off)
		if err != nil {
			return err
		}
		eu.Regs.IP = v
		return nil
	}
	return &UnsupportedOperandShape{Mnemonic: "JMP", Kinds: []OperandKind{op.Kind}}
}

func opCALL(eu *ExecutionUnit, in *Instruction) error {
	op := in.Operands[0]
	switch op.Kind {
	case OperandNearBranch16:
		ret := eu.Regs.IP + uint16(in.Len)
		target := uint16(op.Imm)
		if op.IsRel {
			target = ret + uint16(int16(op.Rel))
		}
		if err := eu.pushWord(ret); err != nil {
			return err
		}
		eu.Regs.IP = target
		return nil
	case OperandRegister:
		v, _, err := ReadOperand(eu, in, 0)
		if err != nil {
			return err
		}
		ret := eu.Regs.IP + uint16(in.Len)
		if err := eu.pushWord(ret); err != nil {
			return err
		}
		eu.Regs.IP = uint16(v)
		return nil
	case OperandMemory:
		if in.raw.MemBytes == 4 {
			return eu.dispatchFarCall(in)
		}
		seg, off := ResolveOperandAddress(eu.Regs, in, 0)
		v, err := eu.Memory.ReadOperandWord(seg, off)
		if err != nil {
			return err
		}
		ret := eu.Regs.IP + uint16(in.Len)
		if err := eu.pushWord(ret); err != nil {
			return err
		}
		eu.Regs.IP = v
		return nil
	}
	return &UnsupportedOperandShape{Mnemonic: "CALL", Kinds: []OperandKind{op.Kind}}
}

func opRET(eu *ExecutionUnit, in *Instruction) error {
	ip, err := eu.popWord()
	if err != nil {
		return err
	}
	eu.Regs.IP = ip
	if in.Operands[0].Kind != OperandNone {
		eu.Regs.SP += uint16(in.Operands[0].Imm)
	}
	return nil
}

func opINT(eu *ExecutionUnit, in *Instruction) error {
	return eu.dispatchInterrupt(byte(in.Operands[0].Imm))
}

func opIRET(eu *ExecutionUnit, in *Instruction) error {
	ip, err := eu.popWord()
	if err != nil {
		return err
	}
	cs, err := eu.popWord()
	if err != nil {
		return err
	}
	fl, err := eu.popWord()
	if err != nil {
		return err
	}
	eu.Regs.IP, eu.Regs.CS, eu.Regs.Flags = ip, cs, fl
	return nil
}
