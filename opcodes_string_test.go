package wg86

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

// ============================================================================
// REP MOVSB
// ============================================================================

func TestExecString_RepMovsbCopiesAndAdvances(t *testing.T) {
	mem := NewSegmentedMemory()
	mem.AddSegment(0x1000, SegmentData, []byte{1, 2, 3, 4, 5})
	eu := NewExecutionUnit(mem, nil, nil)
	eu.Regs.DS, eu.Regs.ES = 0x1000, 0x1000
	eu.Regs.SI, eu.Regs.DI = 0, 10
	eu.Regs.CX = 5

	in := &Instruction{Op: x86asm.MOVSB, Len: 2}
	if err := eu.execString(in, RepEqual); err != nil {
		t.Fatalf("execString: %v", err)
	}

	if eu.Regs.CX != 0 {
		t.Errorf("CX = %d, want 0", eu.Regs.CX)
	}
	if eu.Regs.SI != 5 {
		t.Errorf("SI = %d, want 5", eu.Regs.SI)
	}
	if eu.Regs.DI != 15 {
		t.Errorf("DI = %d, want 15", eu.Regs.DI)
	}
	if eu.Regs.IP != 2 {
		t.Errorf("IP = %d, want 2 (advanced once by instruction length)", eu.Regs.IP)
	}

	for i := 0; i < 5; i++ {
		b, err := mem.GetByte(0x1000, uint16(10+i))
		if err != nil {
			t.Fatalf("GetByte: %v", err)
		}
		if b != byte(i+1) {
			t.Errorf("copied byte at DI+%d = %d, want %d", i, b, i+1)
		}
	}
}

// Scenario: REP MOVSB with CX=0 is a pure no-op — no memory access, and
// SI/DI/CX are left exactly as found.
func TestExecString_RepMovsbZeroCountIsNoOp(t *testing.T) {
	mem := NewSegmentedMemory()
	mem.AddSegment(0x1000, SegmentData, []byte{0xAA})
	eu := NewExecutionUnit(mem, nil, nil)
	eu.Regs.DS, eu.Regs.ES = 0x1000, 0x1000
	eu.Regs.SI, eu.Regs.DI = 0, 0
	eu.Regs.CX = 0

	in := &Instruction{Op: x86asm.MOVSB, Len: 2}
	if err := eu.execString(in, RepEqual); err != nil {
		t.Fatalf("execString: %v", err)
	}

	if eu.Regs.CX != 0 || eu.Regs.SI != 0 || eu.Regs.DI != 0 {
		t.Errorf("CX/SI/DI changed on a zero-count REP MOVSB: CX=%d SI=%d DI=%d", eu.Regs.CX, eu.Regs.SI, eu.Regs.DI)
	}
	b, err := mem.GetByte(0x1000, 0)
	if err != nil || b != 0xAA {
		t.Errorf("source byte disturbed by zero-count REP MOVSB: %02X, %v", b, err)
	}
}

// ============================================================================
// REPE CMPSB early exit on mismatch
// ============================================================================

func TestExecString_RepeCmpsbStopsOnMismatch(t *testing.T) {
	mem := NewSegmentedMemory()
	mem.AddSegment(0x1000, SegmentData, []byte{1, 2, 9, 4})
	mem.AddSegment(0x2000, SegmentData, []byte{1, 2, 3, 4})
	eu := NewExecutionUnit(mem, nil, nil)
	eu.Regs.DS, eu.Regs.ES = 0x1000, 0x2000
	eu.Regs.SI, eu.Regs.DI = 0, 0
	eu.Regs.CX = 4

	in := &Instruction{Op: x86asm.CMPSB, Len: 2}
	if err := eu.execString(in, RepEqual); err != nil {
		t.Fatalf("execString: %v", err)
	}

	// Mismatch occurs comparing index 2 (9 vs 3); the loop should have
	// run three iterations (indices 0,1,2) and stopped there.
	if eu.Regs.CX != 1 {
		t.Errorf("CX = %d, want 1 (stopped after the mismatching 3rd byte)", eu.Regs.CX)
	}
	if eu.Regs.SI != 3 || eu.Regs.DI != 3 {
		t.Errorf("SI/DI = %d/%d, want 3/3", eu.Regs.SI, eu.Regs.DI)
	}
	if eu.Regs.ZF() {
		t.Error("ZF set after a mismatch, want clear")
	}
}
