package wg86

import "golang.org/x/arch/x86/x86asm"

// Flag bits within RegisterFile.Flags.
const (
	FlagCF = uint16(1 << 0)
	FlagPF = uint16(1 << 2)
	FlagAF = uint16(1 << 4)
	FlagZF = uint16(1 << 6)
	FlagSF = uint16(1 << 7)
	FlagTF = uint16(1 << 8)
	FlagIF = uint16(1 << 9)
	FlagDF = uint16(1 << 10)
	FlagOF = uint16(1 << 11)
)

const flagsArithMask = FlagCF | FlagPF | FlagAF | FlagZF | FlagSF | FlagOF

// RegisterFile holds one execution unit's private CPU state: the 16/8-bit
// general registers with half aliasing, the segment registers, IP, FLAGS,
// and the x87 sub-register. Unlike the teacher's flat 32-bit core this
// module carries no general 32-bit GP bank — spec.md scopes 386+ GP
// instructions beyond incidental use out, so AX/BX/CX/DX etc. are the
// only addressable general registers.
type RegisterFile struct {
	AX, CX, DX, BX uint16
	SP, BP, SI, DI uint16

	CS, DS, ES, SS, FS, GS uint16
	IP                     uint16
	Flags                  uint16

	FPU FPUState
}

// Zero resets the register file to the defined post-reset configuration
// spec.md §4.A describes: general registers and segments zero, IP zero,
// FLAGS 0x0002 (the reserved always-one bit), and an empty x87 stack with
// default rounding and precision.
func (r *RegisterFile) Zero() {
	*r = RegisterFile{Flags: 0x0002}
	r.FPU.Reset()
}

// reg16 returns a pointer to the 16-bit register backing store for r, or
// nil if r does not name a general register this module models.
func (rf *RegisterFile) reg16(r x86asm.Reg) *uint16 {
	switch r {
	case x86asm.AX:
		return &rf.AX
	case x86asm.CX:
		return &rf.CX
	case x86asm.DX:
		return &rf.DX
	case x86asm.BX:
		return &rf.BX
	case x86asm.SP:
		return &rf.SP
	case x86asm.BP:
		return &rf.BP
	case x86asm.SI:
		return &rf.SI
	case x86asm.DI:
		return &rf.DI
	}
	return nil
}

// Get16 reads a 16-bit general or segment register.
func (rf *RegisterFile) Get16(r x86asm.Reg) uint16 {
	if p := rf.reg16(r); p != nil {
		return *p
	}
	switch r {
	case x86asm.ES:
		return rf.ES
	case x86asm.CS:
		return rf.CS
	case x86asm.SS:
		return rf.SS
	case x86asm.DS:
		return rf.DS
	case x86asm.FS:
		return rf.FS
	case x86asm.GS:
		return rf.GS
	case x86asm.IP:
		return rf.IP
	}
	return 0
}

// Set16 writes a 16-bit general or segment register. Writing a segment
// register never triggers a descriptor reload: real mode has none.
func (rf *RegisterFile) Set16(r x86asm.Reg, v uint16) {
	if p := rf.reg16(r); p != nil {
		*p = v
		return
	}
	switch r {
	case x86asm.ES:
		rf.ES = v
	case x86asm.CS:
		rf.CS = v
	case x86asm.SS:
		rf.SS = v
	case x86asm.DS:
		rf.DS = v
	case x86asm.FS:
		rf.FS = v
	case x86asm.GS:
		rf.GS = v
	case x86asm.IP:
		rf.IP = v
	}
}

// Get8 reads an 8-bit half of a general register. AL/CL/DL/BL read the
// low byte; AH/CH/DH/BH read the high byte.
func (rf *RegisterFile) Get8(r x86asm.Reg) byte {
	switch r {
	case x86asm.AL:
		return byte(rf.AX)
	case x86asm.CL:
		return byte(rf.CX)
	case x86asm.DL:
		return byte(rf.DX)
	case x86asm.BL:
		return byte(rf.BX)
	case x86asm.AH:
		return byte(rf.AX >> 8)
	case x86asm.CH:
		return byte(rf.CX >> 8)
	case x86asm.DH:
		return byte(rf.DX >> 8)
	case x86asm.BH:
		return byte(rf.BX >> 8)
	}
	return 0
}

// Set8 writes an 8-bit half of a general register, leaving the other
// half of the same word untouched.
func (rf *RegisterFile) Set8(r x86asm.Reg, v byte) {
	switch r {
	case x86asm.AL:
		rf.AX = (rf.AX &^ 0x00FF) | uint16(v)
	case x86asm.CL:
		rf.CX = (rf.CX &^ 0x00FF) | uint16(v)
	case x86asm.DL:
		rf.DX = (rf.DX &^ 0x00FF) | uint16(v)
	case x86asm.BL:
		rf.BX = (rf.BX &^ 0x00FF) | uint16(v)
	case x86asm.AH:
		rf.AX = (rf.AX &^ 0xFF00) | uint16(v)<<8
	case x86asm.CH:
		rf.CX = (rf.CX &^ 0xFF00) | uint16(v)<<8
	case x86asm.DH:
		rf.DX = (rf.DX &^ 0xFF00) | uint16(v)<<8
	case x86asm.BH:
		rf.BX = (rf.BX &^ 0xFF00) | uint16(v)<<8
	}
}

// IsRegWidth8 reports whether r names one of the 8-bit half registers.
func IsRegWidth8(r x86asm.Reg) bool {
	switch r {
	case x86asm.AL, x86asm.CL, x86asm.DL, x86asm.BL, x86asm.AH, x86asm.CH, x86asm.DH, x86asm.BH:
		return true
	}
	return false
}

// CF, ZF, SF, OF, PF, AF, TF, IF, DF report the named flag bit.
func (rf *RegisterFile) CF() bool { return rf.Flags&FlagCF != 0 }
func (rf *RegisterFile) PF() bool { return rf.Flags&FlagPF != 0 }
func (rf *RegisterFile) AF() bool { return rf.Flags&FlagAF != 0 }
func (rf *RegisterFile) ZF() bool { return rf.Flags&FlagZF != 0 }
func (rf *RegisterFile) SF() bool { return rf.Flags&FlagSF != 0 }
func (rf *RegisterFile) TF() bool { return rf.Flags&FlagTF != 0 }
func (rf *RegisterFile) IF() bool { return rf.Flags&FlagIF != 0 }
func (rf *RegisterFile) DF() bool { return rf.Flags&FlagDF != 0 }
func (rf *RegisterFile) OF() bool { return rf.Flags&FlagOF != 0 }

func (rf *RegisterFile) setFlag(bit uint16, v bool) {
	if v {
		rf.Flags |= bit
	} else {
		rf.Flags &^= bit
	}
}

func (rf *RegisterFile) SetCF(v bool) { rf.setFlag(FlagCF, v) }
func (rf *RegisterFile) SetZF(v bool) { rf.setFlag(FlagZF, v) }
func (rf *RegisterFile) SetOF(v bool) { rf.setFlag(FlagOF, v) }
func (rf *RegisterFile) SetDF(v bool) { rf.setFlag(FlagDF, v) }
func (rf *RegisterFile) SetIF(v bool) { rf.setFlag(FlagIF, v) }

// ApplyFlags merges the six arithmetic flag bits from f into Flags,
// leaving TF/IF/DF and the reserved bits untouched.
func (rf *RegisterFile) ApplyFlags(f uint16) {
	rf.Flags = (rf.Flags &^ flagsArithMask) | (f & flagsArithMask)
}

// LAHF packs SF:ZF:0:AF:0:PF:1:CF into AH, matching the real LAHF
// instruction's byte layout.
func (rf *RegisterFile) LAHF() byte {
	var b byte
	if rf.CF() {
		b |= 1 << 0
	}
	b |= 1 << 1
	if rf.PF() {
		b |= 1 << 2
	}
	if rf.AF() {
		b |= 1 << 4
	}
	if rf.ZF() {
		b |= 1 << 6
	}
	if rf.SF() {
		b |= 1 << 7
	}
	return b
}

// SAHF loads AH into SF:ZF:AF:PF:CF, the inverse of LAHF.
func (rf *RegisterFile) SAHF(b byte) {
	rf.SetCF(b&(1<<0) != 0)
	rf.setFlag(FlagPF, b&(1<<2) != 0)
	rf.setFlag(FlagAF, b&(1<<4) != 0)
	rf.setFlag(FlagZF, b&(1<<6) != 0)
	rf.setFlag(FlagSF, b&(1<<7) != 0)
}
