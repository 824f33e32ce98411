package wg86

import (
	"golang.org/x/arch/x86/x86asm"
)

// maxInstructionLength bounds how many raw bytes the decoder is fed;
// no x86 instruction (even with redundant prefixes) exceeds 15 bytes
// in practice, and the decoder itself enforces the real limit.
const maxInstructionLength = 15

// OperandKind tags the shape of one decoded operand, per spec.md §3's
// Instruction data model.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandRegister
	OperandImmediate8
	OperandImmediate8to16
	OperandImmediate16
	OperandImmediate32
	OperandMemory
	OperandFarBranch16
	OperandNearBranch16
)

// Operand is one immutable decoded operand.
type Operand struct {
	Kind  OperandKind
	Reg   x86asm.Reg
	Mem   x86asm.Mem
	Imm   int64
	Rel   int32
	IsRel bool
}

// Instruction is the immutable decoded-instruction record spec.md §3
// describes, wrapping the x86asm decode result rather than re-deriving
// ModR/M and SIB decoding by hand: per spec.md §2 the decoder itself is
// an external library's responsibility, and this module supplies only
// the semantic tables that act on its output.
type Instruction struct {
	Op       x86asm.Op
	Len      int
	Operands [4]Operand
	Prefix   x86asm.Prefixes
	DataSize int
	AddrSize int

	Segment uint16
	Offset  uint16

	raw x86asm.Inst
}

// SegmentOverride returns the explicit segment-override prefix applied
// to this instruction's memory operand, or 0 (no register) if none was
// present.
func (in *Instruction) SegmentOverride() x86asm.Reg {
	for _, p := range in.Prefix {
		switch p & 0xFF {
		case x86asm.PrefixES:
			return x86asm.ES
		case x86asm.PrefixCS:
			return x86asm.CS
		case x86asm.PrefixSS:
			return x86asm.SS
		case x86asm.PrefixDS:
			return x86asm.DS
		case x86asm.PrefixFS:
			return x86asm.FS
		case x86asm.PrefixGS:
			return x86asm.GS
		}
		if p == 0 {
			break
		}
	}
	return 0
}

// RepKind reports which (if any) REP/REPE/REPNE prefix was decoded,
// for the string-instruction family.
type RepKind int

const (
	RepNone RepKind = iota
	RepEqual
	RepNotEqual
)

func (in *Instruction) Rep() RepKind {
	for _, p := range in.Prefix {
		switch p & 0xFF {
		case x86asm.PrefixREP:
			return RepEqual
		case x86asm.PrefixREPN:
			return RepNotEqual
		}
		if p == 0 {
			break
		}
	}
	return RepNone
}

func classifyImmediate(dataSize int, v int64) OperandKind {
	switch dataSize {
	case 8:
		return OperandImmediate8
	case 32:
		return OperandImmediate32
	default:
		if v >= -128 && v <= 127 {
			return OperandImmediate8to16
		}
		return OperandImmediate16
	}
}

func convertArg(a x86asm.Arg, dataSize int, isBranch bool) Operand {
	switch v := a.(type) {
	case x86asm.Reg:
		return Operand{Kind: OperandRegister, Reg: v}
	case x86asm.Mem:
		return Operand{Kind: OperandMemory, Mem: v}
	case x86asm.Imm:
		if isBranch {
			return Operand{Kind: OperandNearBranch16, Imm: int64(v)}
		}
		return Operand{Kind: classifyImmediate(dataSize, int64(v)), Imm: int64(v)}
	case x86asm.Rel:
		return Operand{Kind: OperandNearBranch16, Rel: int32(v), IsRel: true}
	default:
		return Operand{Kind: OperandNone}
	}
}

var farBranchOps = map[x86asm.Op]bool{
	x86asm.LCALL: true,
	x86asm.LJMP:  true,
	x86asm.LRET:  true,
}

// decodeInstruction decodes raw (at least maxInstructionLength bytes,
// starting at seg:off) into an Instruction record.
func decodeInstruction(raw []byte, seg, off uint16) (*Instruction, error) {
	inst, err := x86asm.Decode(raw, 16)
	if err != nil {
		return nil, &DecodeFailure{Segment: seg, Offset: off, Bytes: raw[:min(4, len(raw))], Cause: err}
	}
	isFar := farBranchOps[inst.Op]
	in := &Instruction{
		Op:       inst.Op,
		Len:      inst.Len,
		Prefix:   inst.Prefix,
		DataSize: inst.DataSize,
		AddrSize: inst.AddrSize,
		Segment:  seg,
		Offset:   off,
		raw:      inst,
	}
	for i, a := range inst.Args {
		if a == nil {
			break
		}
		op := convertArg(a, inst.DataSize, isFarOperandKindsCandidate(inst.Op))
		if isFar && op.Kind == OperandNearBranch16 {
			op.Kind = OperandFarBranch16
		}
		in.Operands[i] = op
	}
	return in, nil
}

func isFarOperandKindsCandidate(op x86asm.Op) bool {
	switch op {
	case x86asm.JMP, x86asm.CALL, x86asm.LCALL, x86asm.LJMP, x86asm.LRET, x86asm.RET:
		return true
	}
	if isJccOp(op) {
		return true
	}
	return false
}

// String renders the instruction in AT&T/GNU syntax, for disassembly
// listings (cmd/x86disasm) and test failure messages.
func (in *Instruction) String() string {
	return x86asm.GNUSyntax(in.raw, uint64(in.Offset), nil)
}

// Disassemble decodes one instruction from raw (which should hold at
// least maxInstructionLength bytes when available) without requiring a
// backing SegmentedMemory; cmd/x86disasm uses this to walk a flat
// binary image.
func Disassemble(raw []byte, seg, off uint16) (*Instruction, error) {
	return decodeInstruction(raw, seg, off)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
