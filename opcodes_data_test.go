package wg86

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

// ============================================================================
// Simple push/pop/ret sequence
// ============================================================================

func TestSequence_MovPushPopRet(t *testing.T) {
	mem := NewSegmentedMemory()
	mem.AddSegment(0x1000, SegmentCode, []byte{
		0xB8, 0x34, 0x12, // MOV AX, 0x1234
		0x50,             // PUSH AX
		0x58,             // POP AX
		0xC3,             // RET
	})
	mem.AddSegment(0x2000, SegmentStack, nil)

	eu := NewExecutionUnit(mem, nil, nil)
	eu.Regs.CS = 0x1000
	eu.Regs.SS = 0x2000
	eu.Regs.SP = 0x1000

	// Seed a known near-return address on the stack for RET to pop.
	eu.Regs.SP -= 2
	if err := mem.SetWord(eu.Regs.SS, eu.Regs.SP, 0xABCD); err != nil {
		t.Fatalf("seeding return address: %v", err)
	}
	spBeforeBody := eu.Regs.SP

	for i := 0; i < 4; i++ {
		if err := eu.step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if eu.Regs.AX != 0x1234 {
		t.Errorf("AX = %04X, want 1234", eu.Regs.AX)
	}
	if eu.Regs.IP != 0xABCD {
		t.Errorf("IP after RET = %04X, want ABCD", eu.Regs.IP)
	}
	if eu.Regs.SP != spBeforeBody+2 {
		t.Errorf("SP after RET = %04X, want %04X (push/pop cancel, RET consumes 2)", eu.Regs.SP, spBeforeBody+2)
	}
}

// ============================================================================
// XCHG / LEA
// ============================================================================

func TestOpXCHG_SwapsRegisters(t *testing.T) {
	eu := newTestUnit()
	eu.Regs.AX, eu.Regs.BX = 1, 2
	in := &Instruction{Op: x86asm.XCHG, Operands: [4]Operand{regOperand(x86asm.AX), regOperand(x86asm.BX)}}
	if err := intHandlers[x86asm.XCHG](eu, in); err != nil {
		t.Fatalf("XCHG: %v", err)
	}
	if eu.Regs.AX != 2 || eu.Regs.BX != 1 {
		t.Errorf("after XCHG AX,BX: AX=%d BX=%d, want 2/1", eu.Regs.AX, eu.Regs.BX)
	}
}

func TestOpLEA_ComputesOffsetWithoutAccessingMemory(t *testing.T) {
	eu := newTestUnit()
	eu.Regs.BX = 0x0100
	in := &Instruction{
		Op: x86asm.LEA,
		Operands: [4]Operand{
			regOperand(x86asm.AX),
			{Kind: OperandMemory, Mem: x86asm.Mem{Base: x86asm.BX, Disp: 4}},
		},
	}
	if err := intHandlers[x86asm.LEA](eu, in); err != nil {
		t.Fatalf("LEA: %v", err)
	}
	if eu.Regs.AX != 0x0104 {
		t.Errorf("AX after LEA = %04X, want 0104", eu.Regs.AX)
	}
}

// ============================================================================
// Relocation sentinel through a decoded imm16 operand
// ============================================================================

// A full imm16 sentinel (0xFFFF) sign-extends to int16(-1), which falls
// inside classifyImmediate's imm8-sign-extended value range and gets
// tagged OperandImmediate8to16 even though MOV AX,imm16 has no imm8
// form at all. ReadOperand must still redirect it through the
// relocation table.
func TestOpMOV_ImmediateSentinelRedirectsThroughRelocation(t *testing.T) {
	mem := NewSegmentedMemory()
	mem.AddSegment(0x1000, SegmentCode, []byte{0xB8, 0xFF, 0xFF}) // MOV AX, 0xFFFF
	rec := &RelocationRecord{
		OffsetWithinSegment: 1,
		Kind:                InternalReference,
		Target:              RelocationTarget{Segment: 0x0007, Offset: 0x1000},
	}
	if err := mem.AddRelocation(0x1000, rec); err != nil {
		t.Fatalf("AddRelocation: %v", err)
	}

	in, err := decodeInstruction([]byte{0xB8, 0xFF, 0xFF, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, 0x1000, 0)
	if err != nil {
		t.Fatalf("decodeInstruction: %v", err)
	}
	if in.Operands[1].Kind != OperandImmediate8to16 {
		t.Fatalf("decoded imm kind = %v, want OperandImmediate8to16 (sign-extended -1)", in.Operands[1].Kind)
	}

	eu := NewExecutionUnit(mem, nil, nil)
	eu.Regs.CS, eu.Regs.IP = 0x1000, 0
	if err := intHandlers[x86asm.MOV](eu, in); err != nil {
		t.Fatalf("MOV: %v", err)
	}
	if eu.Regs.AX != 0x1000 {
		t.Errorf("AX after relocated MOV AX,0xFFFF = %04X, want 1000 (the relocation's target offset)", eu.Regs.AX)
	}
}

func TestOpXLAT_HonorsSegmentOverride(t *testing.T) {
	mem := NewSegmentedMemory()
	mem.AddSegment(0x1000, SegmentData, nil) // DS: wrong table
	mem.AddSegment(0x2000, SegmentData, nil) // ES: the real table
	if err := mem.SetByte(0x2000, 5, 0x42); err != nil {
		t.Fatalf("SetByte: %v", err)
	}

	eu := NewExecutionUnit(mem, nil, nil)
	eu.Regs.DS, eu.Regs.ES = 0x1000, 0x2000
	eu.Regs.BX = 5
	eu.Regs.Set8(x86asm.AL, 0)

	in := &Instruction{Op: x86asm.XLATB}
	in.Prefix[0] = x86asm.PrefixES
	if err := intHandlers[x86asm.XLATB](eu, in); err != nil {
		t.Fatalf("XLATB: %v", err)
	}
	if got := eu.Regs.Get8(x86asm.AL); got != 0x42 {
		t.Errorf("AL after XLATB with ES override = %#x, want 0x42", got)
	}
}

func TestOpPushPop_RoundTrip(t *testing.T) {
	mem := NewSegmentedMemory()
	mem.AddSegment(0x1000, SegmentStack, nil)
	eu := NewExecutionUnit(mem, nil, nil)
	eu.Regs.SS = 0x1000
	eu.Regs.SP = 0x0100
	eu.Regs.AX = 0xBEEF

	pushIn := &Instruction{Op: x86asm.PUSH, Operands: [4]Operand{regOperand(x86asm.AX)}}
	if err := intHandlers[x86asm.PUSH](eu, pushIn); err != nil {
		t.Fatalf("PUSH: %v", err)
	}
	if eu.Regs.SP != 0x00FE {
		t.Fatalf("SP after PUSH = %04X, want 00FE", eu.Regs.SP)
	}

	eu.Regs.AX = 0
	popIn := &Instruction{Op: x86asm.POP, Operands: [4]Operand{regOperand(x86asm.AX)}}
	if err := intHandlers[x86asm.POP](eu, popIn); err != nil {
		t.Fatalf("POP: %v", err)
	}
	if eu.Regs.AX != 0xBEEF {
		t.Errorf("AX after POP = %04X, want BEEF", eu.Regs.AX)
	}
	if eu.Regs.SP != 0x0100 {
		t.Errorf("SP after POP = %04X, want 0100", eu.Regs.SP)
	}
}
