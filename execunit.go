package wg86

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/arch/x86/x86asm"
)

// sentinelReturnCS is the reserved CS value ExecutionUnit.Execute
// pushes for simulateCallFar, per spec.md §4.H step 3: when the guest
// RETFs to it, the unit has returned to its caller and terminates
// normally rather than faulting on an unmapped segment.
const sentinelReturnCS = uint16(0xFFFF)

// ExecutionUnit is a single logical thread of guest execution: its own
// register file, a borrowed reference to the module's shared memory
// and callback table. Nested host→guest re-entry uses a distinct unit
// from the pool so the caller's register state is never corrupted
// (spec.md §4.H/§5).
type ExecutionUnit struct {
	Regs     *RegisterFile
	Memory   *SegmentedMemory
	Callbacks CallbackTable
	Logger   logrus.FieldLogger

	cancelled bool
	halted    bool

	pool *Pool
}

// NewExecutionUnit creates a standalone unit not bound to a pool. Most
// callers should instead use Pool.Checkout.
func NewExecutionUnit(memory *SegmentedMemory, callbacks CallbackTable, logger logrus.FieldLogger) *ExecutionUnit {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	eu := &ExecutionUnit{
		Regs:      &RegisterFile{},
		Memory:    memory,
		Callbacks: callbacks,
		Logger:    logger,
	}
	eu.Regs.Zero()
	return eu
}

// Cancel requests cooperative cancellation; it takes effect at the next
// instruction boundary (spec.md §5).
func (eu *ExecutionUnit) Cancel() { eu.cancelled = true }

func (eu *ExecutionUnit) reset() {
	eu.Regs.Zero()
	eu.cancelled = false
	eu.halted = false
}

// A segment is a full 64KiB array, so a push/pop never indexes out of
// the backing slice; the "bounds" a real stack fault guards against is
// SP itself wrapping around the segment — a push below offset 0 or a
// pop past offset 0xFFFF. Both are reported as StackFault rather than
// silently wrapped, since a wrapped SP means the guest's stack has
// collided with the bottom or top of its own segment.
func (eu *ExecutionUnit) pushWord(v uint16) error {
	if eu.Regs.SP < 2 {
		return &StackFault{Segment: eu.Regs.SS, SP: eu.Regs.SP}
	}
	eu.Regs.SP -= 2
	return eu.Memory.SetWord(eu.Regs.SS, eu.Regs.SP, v)
}

func (eu *ExecutionUnit) popWord() (uint16, error) {
	if eu.Regs.SP > 0xFFFD {
		return 0, &StackFault{Segment: eu.Regs.SS, SP: eu.Regs.SP}
	}
	v, err := eu.Memory.GetWord(eu.Regs.SS, eu.Regs.SP)
	if err != nil {
		return 0, err
	}
	eu.Regs.SP += 2
	return v, nil
}

func (eu *ExecutionUnit) pushByte(v byte) error {
	if eu.Regs.SP < 1 {
		return &StackFault{Segment: eu.Regs.SS, SP: eu.Regs.SP}
	}
	eu.Regs.SP--
	return eu.Memory.SetByte(eu.Regs.SS, eu.Regs.SP, v)
}

func (eu *ExecutionUnit) popByte() (byte, error) {
	if eu.Regs.SP > 0xFFFE {
		return 0, &StackFault{Segment: eu.Regs.SS, SP: eu.Regs.SP}
	}
	v, err := eu.Memory.GetByte(eu.Regs.SS, eu.Regs.SP)
	if err != nil {
		return 0, err
	}
	eu.Regs.SP++
	return v, nil
}

// Execute is the entry point spec.md §4.H names: it seeds registers,
// pushes the initial stack, optionally arms the simulateCallFar
// sentinel, and runs until HLT, a fatal fault, or cancellation.
func (eu *ExecutionUnit) Execute(ctx context.Context, entryPoint FarPointer, channelNumber uint16, simulateCallFar, bypassSetState bool, initialStack []uint16, initialSP uint16) (*RegisterFile, error) {
	if !bypassSetState {
		eu.Regs.AX = channelNumber
		eu.Regs.ES = eu.Regs.DS
		eu.Regs.Flags = 0x0002
	}

	eu.Regs.SP = initialSP
	for i := len(initialStack) - 1; i >= 0; i-- {
		if err := eu.pushWord(initialStack[i]); err != nil {
			return eu.Regs, err
		}
	}

	if simulateCallFar {
		if err := eu.pushWord(sentinelReturnCS); err != nil {
			return eu.Regs, err
		}
		if err := eu.pushWord(0); err != nil {
			return eu.Regs, err
		}
	}

	eu.Regs.CS = entryPoint.Segment
	eu.Regs.IP = entryPoint.Offset

	for {
		select {
		case <-ctx.Done():
			eu.cancelled = true
		default:
		}
		if eu.cancelled {
			return eu.Regs, &Cancelled{}
		}
		if eu.halted {
			return eu.Regs, nil
		}
		if simulateCallFar && eu.Regs.CS == sentinelReturnCS {
			return eu.Regs, nil
		}

		if err := eu.step(); err != nil {
			eu.Logger.WithFields(logrus.Fields{
				"cs":    eu.Regs.CS,
				"ip":    eu.Regs.IP,
				"error": err,
			}).Error("execution unit terminated")
			return eu.Regs, err
		}
	}
}

// step decodes and executes a single instruction at CS:IP, advancing
// IP by its byte length unless control-flow semantics already moved
// it (spec.md §2's data-flow description).
func (eu *ExecutionUnit) step() error {
	in, err := eu.Memory.GetInstruction(eu.Regs.CS, eu.Regs.IP)
	if err != nil {
		return err
	}

	if in.Op == x86asm.HLT {
		eu.halted = true
		return nil
	}

	if rep := in.Rep(); rep != RepNone && isStringOp(in.Op) {
		return eu.execString(in, rep)
	}

	if handler, ok := fpuHandlers[in.Op]; ok {
		if err := handler(eu, in); err != nil {
			return err
		}
		if eu.Regs.FPU.Unmasked() {
			return &FpuException{Kind: in.Op.String()}
		}
		eu.Regs.IP += uint16(in.Len)
		return nil
	}

	if handler, ok := intHandlers[in.Op]; ok {
		before := eu.Regs.IP
		if err := handler(eu, in); err != nil {
			return err
		}
		if eu.Regs.IP == before {
			eu.Regs.IP += uint16(in.Len)
		}
		return nil
	}

	return &UnsupportedMnemonic{Mnemonic: in.Op.String()}
}
