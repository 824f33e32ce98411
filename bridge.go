package wg86

import (
	"github.com/sirupsen/logrus"
)

// CallbackTable is the opaque host-provided dictionary the call/
// interrupt bridge (spec.md §4.G) vectors into. The core never owns an
// implementation of it — per spec.md §1 the exported-module library
// (the hundreds of BBS API functions) is an external collaborator,
// consumed here only at this interface.
type CallbackTable interface {
	// HostInvoke services a far CALL whose relocation record resolved
	// to an imported symbol. The callback reads its arguments from the
	// stack via eu.Regs, writes a return value into AX/DX:AX, and
	// adjusts SP to discard them before returning.
	HostInvoke(eu *ExecutionUnit, importOrdinal, functionOrdinal int) error

	// HostInterrupt services an INT n whose vector is recognized by the
	// host. An error return is fatal, exactly like an unrecognized
	// vector.
	HostInterrupt(eu *ExecutionUnit, n byte) (recognized bool, err error)
}

// dispatchFarCall implements spec.md §4.G's relocation-sentinel
// detection for CALL FarBranch16: if the immediate encoded at the call
// site is the NE loader's 0xFFFF sentinel and a relocation record sits
// there, an ImportedOrdinal record is serviced by hostInvoke without
// ever pushing a return address or advancing IP until the host
// returns; any other kind falls through to an ordinary far call.
func (eu *ExecutionUnit) dispatchFarCall(in *Instruction) error {
	op := in.Operands[0]
	if op.Kind == OperandMemory {
		return eu.farCallIndirect(in)
	}

	// Direct far call: Args are [Imm(offset), Imm(segment)] for LCALL in
	// x86asm's decode, or a single Imm carrying the packed ptr16:16 —
	// normalize by reading the relocation record at the encoded
	// immediate-slot offset (IP+1, per spec.md §4.G).
	recOff := eu.Regs.IP + 1
	if rec, ok := eu.Memory.GetRelocation(eu.Regs.CS, recOff); ok {
		switch rec.Kind {
		case ImportedOrdinal:
			eu.Logger.WithFields(logrus.Fields{
				"importOrdinal":   rec.Target.ImportOrdinal,
				"functionOrdinal": rec.Target.FunctionOrdinal,
				"cs":              eu.Regs.CS,
				"ip":              eu.Regs.IP,
			}).Debug("far call through relocation: hostInvoke")
			if err := eu.Callbacks.HostInvoke(eu, rec.Target.ImportOrdinal, rec.Target.FunctionOrdinal); err != nil {
				return NewHostInvokeFailure(rec.Target.ImportOrdinal, rec.Target.FunctionOrdinal, err)
			}
			eu.Regs.IP += uint16(in.Len)
			return nil
		case InternalReference:
			eu.pushWord(eu.Regs.CS)
			eu.pushWord(eu.Regs.IP + uint16(in.Len))
			eu.Regs.CS = rec.Target.Segment
			eu.Regs.IP = rec.Target.Offset
			return nil
		}
	}

	newOff := uint16(op.Imm)
	newSeg := uint16(0)
	if in.Operands[1].Kind != OperandNone {
		newSeg = uint16(in.Operands[1].Imm)
	}
	if newOff == relocationSentinel {
		return &RelocationMissing{Segment: eu.Regs.CS, Offset: recOff}
	}
	eu.pushWord(eu.Regs.CS)
	eu.pushWord(eu.Regs.IP + uint16(in.Len))
	eu.Regs.CS = newSeg
	eu.Regs.IP = newOff
	return nil
}

func (eu *ExecutionUnit) farCallIndirect(in *Instruction) error {
	seg, off := ResolveOperandAddress(eu.Regs, in, 0)
	newOff, err := eu.Memory.ReadOperandWord(seg, off)
	if err != nil {
		return err
	}
	newSeg, err := eu.Memory.ReadOperandWord(seg, off+2)
	if err != nil {
		return err
	}
	eu.pushWord(eu.Regs.CS)
	eu.pushWord(eu.Regs.IP + uint16(in.Len))
	eu.Regs.CS = newSeg
	eu.Regs.IP = newOff
	return nil
}

// dispatchInterrupt implements spec.md §4.G's INT n routing: a
// recognized vector is delivered to the host handler; an unrecognized
// one is fatal.
func (eu *ExecutionUnit) dispatchInterrupt(n byte) error {
	recognized, err := eu.Callbacks.HostInterrupt(eu, n)
	if err != nil {
		return NewHostInvokeFailure(int(n), 0, err)
	}
	if !recognized {
		return &UnsupportedOperandShape{Mnemonic: "INT", Kinds: []OperandKind{OperandImmediate8}}
	}
	return nil
}

// dispatchRetf implements RETF: pop IP then CS; with an immediate
// operand, adjust SP by that count afterward.
func (eu *ExecutionUnit) dispatchRetf(in *Instruction) error {
	ip, err := eu.popWord()
	if err != nil {
		return err
	}
	cs, err := eu.popWord()
	if err != nil {
		return err
	}
	eu.Regs.IP = ip
	eu.Regs.CS = cs
	if in.Operands[0].Kind != OperandNone {
		eu.Regs.SP += uint16(in.Operands[0].Imm)
	}
	return nil
}
