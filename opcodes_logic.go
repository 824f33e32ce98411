package wg86

import "golang.org/x/arch/x86/x86asm"

func init() {
	registerAll(bitwiseOp(FlagOpAnd, true), x86asm.AND)
	registerAll(bitwiseOp(FlagOpOr, true), x86asm.OR)
	registerAll(bitwiseOp(FlagOpXor, true), x86asm.XOR)
	registerAll(bitwiseOp(FlagOpTest, false), x86asm.TEST)
	register(x86asm.NOT, opNOT)

	register(x86asm.SHL, shiftRotate(FlagOpShl))
	register(x86asm.SHR, shiftRotate(FlagOpShr))
	register(x86asm.SAR, shiftRotate(FlagOpSar))
	register(x86asm.ROL, shiftRotate(FlagOpRol))
	register(x86asm.ROR, shiftRotate(FlagOpRor))
	register(x86asm.RCL, shiftRotate(FlagOpRcl))
	register(x86asm.RCR, shiftRotate(FlagOpRcr))
}

// bitwiseOp implements AND/OR/XOR/TEST: CF and OF are always cleared,
// AF is left undefined (cleared), per the Evaluate FlagOpAnd/Or/Xor/Test
// case.
func bitwiseOp(flagOp FlagOp, writeback bool) func(*ExecutionUnit, *Instruction) error {
	return func(eu *ExecutionUnit, in *Instruction) error {
		a, width, err := ReadOperand(eu, in, 0)
		if err != nil {
			return err
		}
		b, _, err := ReadOperand(eu, in, 1)
		if err != nil {
			return err
		}
		av := uint64(a) & widthMask(width)
		bv := uint64(b) & widthMask(width)

		var result uint64
		switch flagOp {
		case FlagOpAnd, FlagOpTest:
			result = av & bv
		case FlagOpOr:
			result = av | bv
		case FlagOpXor:
			result = av ^ bv
		}

		eu.Regs.ApplyFlags(Evaluate(flagOp, width, av, bv, result, eu.Regs.Flags))
		if writeback {
			return WriteOperand(eu, in, 0, uint32(result))
		}
		return nil
	}
}

func opNOT(eu *ExecutionUnit, in *Instruction) error {
	a, width, err := ReadOperand(eu, in, 0)
	if err != nil {
		return err
	}
	result := (^uint64(a)) & widthMask(width)
	return WriteOperand(eu, in, 0, uint32(result))
}

// shiftCount reads the shift/rotate count operand: the implicit 1 of
// the one-operand D0/D1 forms, the CL of the D2/D3 forms, or the imm8
// of the C0/C1 forms, masked to 5 bits per spec.md §4.C.
func shiftCount(eu *ExecutionUnit, in *Instruction) (uint, error) {
	if numArgs(in) < 2 {
		return 1, nil
	}
	v, _, err := ReadOperand(eu, in, 1)
	if err != nil {
		return 0, err
	}
	return uint(v) & 0x1F, nil
}

// shiftRotate implements SHL/SHR/SAR/ROL/ROR/RCL/RCR as one generic
// read-modify-write operand, deferring flag derivation to ShiftFlags
// since the carry-out bit and shift count don't fit Evaluate's
// (a, b, result) shape.
func shiftRotate(flagOp FlagOp) func(*ExecutionUnit, *Instruction) error {
	return func(eu *ExecutionUnit, in *Instruction) error {
		a, width, err := ReadOperand(eu, in, 0)
		if err != nil {
			return err
		}
		count, err := shiftCount(eu, in)
		if err != nil {
			return err
		}
		before := uint64(a) & widthMask(width)
		if count == 0 {
			// A masked count of zero leaves every flag untouched.
			return nil
		}

		var result uint64
		var carryOut bool
		w := uint(width)

		switch flagOp {
		case FlagOpShl:
			if count <= w {
				carryOut = (before>>(w-count))&1 != 0
			}
			result = (before << count) & widthMask(width)
		case FlagOpShr:
			if count <= w {
				carryOut = (before>>(count-1))&1 != 0
			}
			result = before >> count
		case FlagOpSar:
			if count <= w {
				carryOut = (before>>(count-1))&1 != 0
			}
			result = uint64(signExtend(before, width)>>int64(count)) & widthMask(width)
		case FlagOpRol:
			rot := count % w
			if rot == 0 {
				result = before
			} else {
				result = ((before << rot) | (before >> (w - rot))) & widthMask(width)
			}
			carryOut = result&1 != 0
		case FlagOpRor:
			rot := count % w
			if rot == 0 {
				result = before
			} else {
				result = ((before >> rot) | (before << (w - rot))) & widthMask(width)
			}
			carryOut = (result>>(w-1))&1 != 0
		case FlagOpRcl:
			wide := w + 1
			rot := count % wide
			cf := uint64(0)
			if eu.Regs.CF() {
				cf = 1
			}
			val := before | (cf << w)
			if rot != 0 {
				val = ((val << rot) | (val >> (wide - rot))) & ((uint64(1) << wide) - 1)
			}
			result = val & widthMask(width)
			carryOut = (val>>w)&1 != 0
		case FlagOpRcr:
			wide := w + 1
			rot := count % wide
			cf := uint64(0)
			if eu.Regs.CF() {
				cf = 1
			}
			val := before | (cf << w)
			if rot != 0 {
				val = ((val >> rot) | (val << (wide - rot))) & ((uint64(1) << wide) - 1)
			}
			result = val & widthMask(width)
			carryOut = (val>>w)&1 != 0
		}

		eu.Regs.ApplyFlags(ShiftFlags(flagOp, width, before, count, result, carryOut))
		return WriteOperand(eu, in, 0, uint32(result))
	}
}
