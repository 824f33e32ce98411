package wg86

import "golang.org/x/arch/x86/x86asm"

func init() {
	registerAll(binaryArith(FlagOpAdd, true), x86asm.ADD)
	registerAll(binaryArith(FlagOpAdc, true), x86asm.ADC)
	registerAll(binaryArith(FlagOpSub, true), x86asm.SUB)
	registerAll(binaryArith(FlagOpSbb, true), x86asm.SBB)
	registerAll(binaryArith(FlagOpCmp, false), x86asm.CMP)

	register(x86asm.INC, unaryArith(FlagOpInc))
	register(x86asm.DEC, unaryArith(FlagOpDec))
	register(x86asm.NEG, unaryArith(FlagOpNeg))

	register(x86asm.MUL, opMUL)
	register(x86asm.IMUL, opIMUL)
	register(x86asm.DIV, opDIV)
	register(x86asm.IDIV, opIDIV)

	register(x86asm.DAA, opDAA)
	register(x86asm.DAS, opDAS)
	register(x86asm.AAA, opAAA)
	register(x86asm.AAS, opAAS)
	register(x86asm.AAM, opAAM)
	register(x86asm.AAD, opAAD)
}

// binaryArith implements the ADD/ADC/SUB/SBB/CMP family: op0 <op>= op1
// (CMP discards the result), per spec.md §4.D — the register-register
// case is op0 ← op0 <op> op1, resolving the source's documented
// op0 ← op1 bug (spec.md §9 open question 1).
func binaryArith(flagOp FlagOp, writeback bool) func(*ExecutionUnit, *Instruction) error {
	return func(eu *ExecutionUnit, in *Instruction) error {
		a, width, err := ReadOperand(eu, in, 0)
		if err != nil {
			return err
		}
		bRaw, _, err := ReadOperand(eu, in, 1)
		if err != nil {
			return err
		}
		av := uint64(a) & widthMask(width)
		bv := uint64(bRaw) & widthMask(width)

		var result uint64
		switch flagOp {
		case FlagOpAdd:
			result = av + bv
		case FlagOpAdc:
			result = av + bv + carryIn(eu)
		case FlagOpSub, FlagOpCmp:
			result = av - bv
		case FlagOpSbb:
			result = av - bv - carryIn(eu)
		}

		eu.Regs.ApplyFlags(Evaluate(flagOp, width, av, bv, result, eu.Regs.Flags))
		if writeback {
			return WriteOperand(eu, in, 0, uint32(result))
		}
		return nil
	}
}

func carryIn(eu *ExecutionUnit) uint64 {
	if eu.Regs.CF() {
		return 1
	}
	return 0
}

// unaryArith implements INC/DEC/NEG, each a single read-modify-write
// operand with its own carry-preservation rule handled in Evaluate.
func unaryArith(flagOp FlagOp) func(*ExecutionUnit, *Instruction) error {
	return func(eu *ExecutionUnit, in *Instruction) error {
		a, width, err := ReadOperand(eu, in, 0)
		if err != nil {
			return err
		}
		av := uint64(a) & widthMask(width)
		var result uint64
		switch flagOp {
		case FlagOpInc:
			result = av + 1
		case FlagOpDec:
			result = av - 1
		case FlagOpNeg:
			result = (widthMask(width) + 1 - av) & widthMask(width)
		}
		eu.Regs.ApplyFlags(Evaluate(flagOp, width, av, 0, result, eu.Regs.Flags))
		return WriteOperand(eu, in, 0, uint32(result))
	}
}

func opMUL(eu *ExecutionUnit, in *Instruction) error {
	v, width, err := ReadOperand(eu, in, 0)
	if err != nil {
		return err
	}
	vv := uint64(v) & widthMask(width)
	if width == 8 {
		al := uint64(eu.Regs.Get8(x86asm.AL))
		result := al * vv
		eu.Regs.Set16(x86asm.AX, uint16(result))
		eu.Regs.ApplyFlags(Evaluate(FlagOpMul, 8, al, vv, result, eu.Regs.Flags))
		return nil
	}
	ax := uint64(eu.Regs.AX)
	result := ax * vv
	eu.Regs.AX = uint16(result)
	eu.Regs.DX = uint16(result >> 16)
	eu.Regs.ApplyFlags(Evaluate(FlagOpMul, 16, ax, vv, result, eu.Regs.Flags))
	return nil
}

func numArgs(in *Instruction) int {
	n := 0
	for _, o := range in.Operands {
		if o.Kind == OperandNone {
			break
		}
		n++
	}
	return n
}

func opIMUL(eu *ExecutionUnit, in *Instruction) error {
	if numArgs(in) == 1 {
		v, width, err := ReadOperand(eu, in, 0)
		if err != nil {
			return err
		}
		vv := signExtend(uint64(v)&widthMask(width), width)
		if width == 8 {
			al := int64(int8(eu.Regs.Get8(x86asm.AL)))
			result := al * vv
			eu.Regs.Set16(x86asm.AX, uint16(result))
			eu.Regs.ApplyFlags(Evaluate(FlagOpIMul, 8, uint64(al), uint64(vv), uint64(result), eu.Regs.Flags))
			return nil
		}
		ax := int64(int16(eu.Regs.AX))
		result := ax * vv
		eu.Regs.AX = uint16(result)
		eu.Regs.DX = uint16(result >> 16)
		eu.Regs.ApplyFlags(Evaluate(FlagOpIMul, 16, uint64(ax), uint64(vv), uint64(result), eu.Regs.Flags))
		return nil
	}

	// Two- or three-operand forms: dst = src * multiplier.
	srcIdx := 1
	multiplierIdx := 1
	if numArgs(in) == 3 {
		multiplierIdx = 2
	}
	srcV, width, err := ReadOperand(eu, in, srcIdx)
	if err != nil {
		return err
	}
	mulV, mulWidth, err := ReadOperand(eu, in, multiplierIdx)
	if err != nil {
		return err
	}
	a := signExtend(uint64(srcV)&widthMask(width), width)
	m := signExtend(uint64(mulV)&widthMask(mulWidth), mulWidth)
	result := a * m
	dstWidth := operandWidth(in, 0)
	eu.Regs.ApplyFlags(Evaluate(FlagOpIMul, dstWidth, uint64(a), uint64(m), uint64(result), eu.Regs.Flags))
	return WriteOperand(eu, in, 0, uint32(result))
}

func opDIV(eu *ExecutionUnit, in *Instruction) error {
	v, width, err := ReadOperand(eu, in, 0)
	if err != nil {
		return err
	}
	divisor := uint64(v) & widthMask(width)
	if divisor == 0 {
		return &DivideError{Segment: eu.Regs.CS, Offset: eu.Regs.IP}
	}
	if width == 8 {
		dividend := uint64(eu.Regs.AX)
		q, r := dividend/divisor, dividend%divisor
		if q > 0xFF {
			return &DivideError{Segment: eu.Regs.CS, Offset: eu.Regs.IP}
		}
		eu.Regs.Set8(x86asm.AL, byte(q))
		eu.Regs.Set8(x86asm.AH, byte(r))
		return nil
	}
	dividend := uint64(eu.Regs.DX)<<16 | uint64(eu.Regs.AX)
	q, r := dividend/divisor, dividend%divisor
	if q > 0xFFFF {
		return &DivideError{Segment: eu.Regs.CS, Offset: eu.Regs.IP}
	}
	eu.Regs.AX = uint16(q)
	eu.Regs.DX = uint16(r)
	return nil
}

func opIDIV(eu *ExecutionUnit, in *Instruction) error {
	v, width, err := ReadOperand(eu, in, 0)
	if err != nil {
		return err
	}
	divisor := signExtend(uint64(v)&widthMask(width), width)
	if divisor == 0 {
		return &DivideError{Segment: eu.Regs.CS, Offset: eu.Regs.IP}
	}
	if width == 8 {
		dividend := int64(int16(eu.Regs.AX))
		q, r := dividend/divisor, dividend%divisor
		if q < -128 || q > 127 {
			return &DivideError{Segment: eu.Regs.CS, Offset: eu.Regs.IP}
		}
		eu.Regs.Set8(x86asm.AL, byte(int8(q)))
		eu.Regs.Set8(x86asm.AH, byte(int8(r)))
		return nil
	}
	dividend := int64(int32(uint32(eu.Regs.DX)<<16 | uint32(eu.Regs.AX)))
	q, r := dividend/divisor, dividend%divisor
	if q < -32768 || q > 32767 {
		return &DivideError{Segment: eu.Regs.CS, Offset: eu.Regs.IP}
	}
	eu.Regs.AX = uint16(int16(q))
	eu.Regs.DX = uint16(int16(r))
	return nil
}

func setResultFlagsPreserveCarry(eu *ExecutionUnit, al byte) {
	f := Evaluate(FlagOpLogic, 8, uint64(al), 0, uint64(al), eu.Regs.Flags)
	eu.Regs.Flags = (eu.Regs.Flags &^ (FlagZF | FlagSF | FlagPF)) | (f & (FlagZF | FlagSF | FlagPF))
}

func opDAA(eu *ExecutionUnit, in *Instruction) error {
	al := eu.Regs.Get8(x86asm.AL)
	oldAL, oldCF := al, eu.Regs.CF()
	af, cf := false, false
	if (al&0x0F) > 9 || eu.Regs.AF() {
		al += 6
		af = true
	}
	if oldAL > 0x99 || oldCF {
		al += 0x60
		cf = true
	}
	eu.Regs.Set8(x86asm.AL, al)
	eu.Regs.setFlag(FlagAF, af)
	eu.Regs.setFlag(FlagCF, cf)
	setResultFlagsPreserveCarry(eu, al)
	return nil
}

func opDAS(eu *ExecutionUnit, in *Instruction) error {
	al := eu.Regs.Get8(x86asm.AL)
	oldAL, oldCF := al, eu.Regs.CF()
	af, cf := false, false
	if (al&0x0F) > 9 || eu.Regs.AF() {
		al -= 6
		af = true
	}
	if oldAL > 0x99 || oldCF {
		al -= 0x60
		cf = true
	}
	eu.Regs.Set8(x86asm.AL, al)
	eu.Regs.setFlag(FlagAF, af)
	eu.Regs.setFlag(FlagCF, cf)
	setResultFlagsPreserveCarry(eu, al)
	return nil
}

func opAAA(eu *ExecutionUnit, in *Instruction) error {
	al := eu.Regs.Get8(x86asm.AL)
	if (al&0x0F) > 9 || eu.Regs.AF() {
		al += 6
		eu.Regs.Set8(x86asm.AH, eu.Regs.Get8(x86asm.AH)+1)
		eu.Regs.setFlag(FlagAF, true)
		eu.Regs.setFlag(FlagCF, true)
	} else {
		eu.Regs.setFlag(FlagAF, false)
		eu.Regs.setFlag(FlagCF, false)
	}
	eu.Regs.Set8(x86asm.AL, al&0x0F)
	return nil
}

func opAAS(eu *ExecutionUnit, in *Instruction) error {
	al := eu.Regs.Get8(x86asm.AL)
	if (al&0x0F) > 9 || eu.Regs.AF() {
		al -= 6
		eu.Regs.Set8(x86asm.AH, eu.Regs.Get8(x86asm.AH)-1)
		eu.Regs.setFlag(FlagAF, true)
		eu.Regs.setFlag(FlagCF, true)
	} else {
		eu.Regs.setFlag(FlagAF, false)
		eu.Regs.setFlag(FlagCF, false)
	}
	eu.Regs.Set8(x86asm.AL, al&0x0F)
	return nil
}

func aamAadBase(in *Instruction) byte {
	if in.Operands[0].Kind != OperandNone {
		return byte(in.Operands[0].Imm)
	}
	return 10
}

func opAAM(eu *ExecutionUnit, in *Instruction) error {
	base := aamAadBase(in)
	al := eu.Regs.Get8(x86asm.AL)
	ah := al / base
	al = al % base
	eu.Regs.Set8(x86asm.AH, ah)
	eu.Regs.Set8(x86asm.AL, al)
	setResultFlagsPreserveCarry(eu, al)
	return nil
}

func opAAD(eu *ExecutionUnit, in *Instruction) error {
	base := aamAadBase(in)
	al, ah := eu.Regs.Get8(x86asm.AL), eu.Regs.Get8(x86asm.AH)
	newAL := ah*base + al
	eu.Regs.Set8(x86asm.AL, newAL)
	eu.Regs.Set8(x86asm.AH, 0)
	setResultFlagsPreserveCarry(eu, newAL)
	return nil
}
