package wg86

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

// ============================================================================
// HLT terminates Execute normally
// ============================================================================

func TestExecute_HaltTerminatesNormally(t *testing.T) {
	mem := NewSegmentedMemory()
	mem.AddSegment(0x1000, SegmentCode, []byte{0xB0, 0x05, 0xF4}) // MOV AL,5; HLT
	mem.AddSegment(0x2000, SegmentStack, nil)

	eu := NewExecutionUnit(mem, nil, nil)
	eu.Regs.SS = 0x2000
	regs, err := eu.Execute(context.Background(), FarPointer{Segment: 0x1000, Offset: 0}, 0, false, true, nil, 0x1000)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := regs.Get8(x86asm.AL); got != 5 {
		t.Errorf("AL = %d, want 5", got)
	}
}

// ============================================================================
// simulateCallFar sentinel return
// ============================================================================

func TestExecute_SimulateCallFarReturnsOnSentinel(t *testing.T) {
	mem := NewSegmentedMemory()
	// RETF immediately: pops IP then CS off the stack.
	mem.AddSegment(0x1000, SegmentCode, []byte{0xCB})
	mem.AddSegment(0x2000, SegmentStack, nil)

	eu := NewExecutionUnit(mem, nil, nil)
	eu.Regs.SS = 0x2000
	regs, err := eu.Execute(context.Background(), FarPointer{Segment: 0x1000, Offset: 0}, 7, true, false, nil, 0x1000)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if regs.AX != 7 {
		t.Errorf("AX = %04X, want channel number 7 seeded at entry", regs.AX)
	}
}

// ============================================================================
// Cooperative cancellation
// ============================================================================

func TestExecute_CancelStopsAtNextInstructionBoundary(t *testing.T) {
	mem := NewSegmentedMemory()
	mem.AddSegment(0x1000, SegmentCode, []byte{0x90}) // NOP, forever (no HLT)
	mem.AddSegment(0x2000, SegmentStack, nil)

	eu := NewExecutionUnit(mem, nil, nil)
	eu.Regs.SS = 0x2000
	eu.Cancel()
	_, err := eu.Execute(context.Background(), FarPointer{Segment: 0x1000, Offset: 0}, 0, false, true, nil, 0x1000)
	var cancelled *Cancelled
	if !errors.As(err, &cancelled) {
		t.Fatalf("Execute after Cancel() returned %v, want *Cancelled", err)
	}
}

// ============================================================================
// Unsupported mnemonic propagation
// ============================================================================

func TestStep_UnsupportedMnemonicIsFatal(t *testing.T) {
	eu := newTestUnit()
	eu.Memory.AddSegment(0x1000, SegmentCode, []byte{0x63, 0xC0}) // ARPL AX,AX, deliberately unimplemented
	eu.Regs.CS, eu.Regs.IP = 0x1000, 0

	err := eu.step()
	var um *UnsupportedMnemonic
	if !errors.As(err, &um) {
		t.Fatalf("step on an unimplemented mnemonic returned %v, want *UnsupportedMnemonic", err)
	}
}

// ============================================================================
// Stack faults
// ============================================================================

func TestPushWord_AtSegmentBottomFaults(t *testing.T) {
	eu := newTestUnit()
	eu.Regs.SS = 0x2000
	eu.Regs.SP = 1

	err := eu.pushWord(0x1234)
	var sf *StackFault
	if !errors.As(err, &sf) {
		t.Fatalf("pushWord with SP=1 returned %v, want *StackFault", err)
	}
	if sf.Segment != 0x2000 || sf.SP != 1 {
		t.Errorf("StackFault = %+v, want Segment=2000 SP=0001", sf)
	}
}

func TestPopWord_AtSegmentTopFaults(t *testing.T) {
	eu := newTestUnit()
	eu.Regs.SS = 0x2000
	eu.Regs.SP = 0xFFFE

	_, err := eu.popWord()
	var sf *StackFault
	if !errors.As(err, &sf) {
		t.Fatalf("popWord with SP=FFFE returned %v, want *StackFault", err)
	}
}

func TestPushPopByte_AtSegmentEdgesFault(t *testing.T) {
	eu := newTestUnit()
	eu.Regs.SS = 0x2000

	eu.Regs.SP = 0
	var sf *StackFault
	if err := eu.pushByte(1); !errors.As(err, &sf) {
		t.Fatalf("pushByte with SP=0 returned %v, want *StackFault", err)
	}

	eu.Regs.SP = 0xFFFF
	if _, err := eu.popByte(); !errors.As(err, &sf) {
		t.Fatalf("popByte with SP=FFFF returned %v, want *StackFault", err)
	}
}

// ============================================================================
// RelocationMissing
// ============================================================================

func TestDispatchFarCall_UnresolvedSentinelIsRelocationMissing(t *testing.T) {
	mem := NewSegmentedMemory()
	mem.AddSegment(0x1000, SegmentCode, []byte{0x9A, 0xFF, 0xFF, 0xFF, 0xFF})
	eu := NewExecutionUnit(mem, nil, nil)
	eu.Regs.CS, eu.Regs.IP = 0x1000, 0

	in := &Instruction{Op: 0, Len: 5, Operands: [4]Operand{{Kind: OperandFarBranch16, Imm: 0xFFFF}, {Kind: OperandImmediate16, Imm: 0xFFFF}}}
	err := eu.dispatchFarCall(in)
	var rm *RelocationMissing
	if !errors.As(err, &rm) {
		t.Fatalf("dispatchFarCall on an unresolved sentinel returned %v, want *RelocationMissing", err)
	}
}

func TestReadOperandWord_UnresolvedSentinelIsRelocationMissing(t *testing.T) {
	mem := NewSegmentedMemory()
	mem.AddSegment(0x1000, SegmentData, nil)
	if err := mem.SetWord(0x1000, 0, 0xFFFF); err != nil {
		t.Fatalf("SetWord: %v", err)
	}

	_, err := mem.ReadOperandWord(0x1000, 0)
	var rm *RelocationMissing
	if !errors.As(err, &rm) {
		t.Fatalf("ReadOperandWord on an unresolved sentinel returned %v, want *RelocationMissing", err)
	}
}
