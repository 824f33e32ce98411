package wg86

import "golang.org/x/arch/x86/x86asm"

func init() {
	register(x86asm.BT, bitTest(bitTestOnly))
	register(x86asm.BTS, bitTest(bitTestSet))
	register(x86asm.BTR, bitTest(bitTestReset))
	register(x86asm.BTC, bitTest(bitTestComplement))
	register(x86asm.BSF, opBSF)
	register(x86asm.BSR, opBSR)
}

type bitTestMode int

const (
	bitTestOnly bitTestMode = iota
	bitTestSet
	bitTestReset
	bitTestComplement
)

// bitTest implements BT/BTS/BTR/BTC: CF receives the tested bit's prior
// value, and for the Set/Reset/Complement variants the base operand is
// written back with that bit modified.
func bitTest(mode bitTestMode) func(*ExecutionUnit, *Instruction) error {
	return func(eu *ExecutionUnit, in *Instruction) error {
		base, width, err := ReadOperand(eu, in, 0)
		if err != nil {
			return err
		}
		idxRaw, _, err := ReadOperand(eu, in, 1)
		if err != nil {
			return err
		}
		bit := uint(idxRaw) % uint(width)

		set := (base>>bit)&1 != 0
		eu.Regs.SetCF(set)

		var result uint32
		switch mode {
		case bitTestOnly:
			return nil
		case bitTestSet:
			result = base | (1 << bit)
		case bitTestReset:
			result = base &^ (1 << bit)
		case bitTestComplement:
			result = base ^ (1 << bit)
		}
		return WriteOperand(eu, in, 0, result)
	}
}

func opBSF(eu *ExecutionUnit, in *Instruction) error {
	v, width, err := ReadOperand(eu, in, 1)
	if err != nil {
		return err
	}
	src := v & uint32(widthMask(width))
	if src == 0 {
		eu.Regs.SetZF(true)
		return nil
	}
	eu.Regs.SetZF(false)
	idx := uint32(0)
	for (src>>idx)&1 == 0 {
		idx++
	}
	return WriteOperand(eu, in, 0, idx)
}

func opBSR(eu *ExecutionUnit, in *Instruction) error {
	v, width, err := ReadOperand(eu, in, 1)
	if err != nil {
		return err
	}
	src := v & uint32(widthMask(width))
	if src == 0 {
		eu.Regs.SetZF(true)
		return nil
	}
	eu.Regs.SetZF(false)
	idx := uint32(width - 1)
	for (src>>idx)&1 == 0 {
		idx--
	}
	return WriteOperand(eu, in, 0, idx)
}
