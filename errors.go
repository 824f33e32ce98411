package wg86

import (
	"fmt"

	"github.com/pkg/errors"
)

// DecodeFailure reports that the decoder could not interpret the bytes
// at the given segment:offset.
type DecodeFailure struct {
	Segment uint16
	Offset  uint16
	Bytes   []byte
	Cause   error
}

func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("decode failure at %04X:%04X (%x): %v", e.Segment, e.Offset, e.Bytes, e.Cause)
}

func (e *DecodeFailure) Unwrap() error { return e.Cause }

// UnsupportedMnemonic reports a decoded but unimplemented mnemonic.
type UnsupportedMnemonic struct {
	Mnemonic string
}

func (e *UnsupportedMnemonic) Error() string {
	return fmt.Sprintf("unsupported mnemonic %s", e.Mnemonic)
}

// UnsupportedOperandShape reports an implemented mnemonic fed an
// operand-kind combination it does not handle.
type UnsupportedOperandShape struct {
	Mnemonic string
	Kinds    []OperandKind
}

func (e *UnsupportedOperandShape) Error() string {
	return fmt.Sprintf("unsupported operand shape for %s: %v", e.Mnemonic, e.Kinds)
}

// DivideError is #DE, raised by DIV/IDIV on divide-by-zero or quotient
// overflow.
type DivideError struct {
	Segment uint16
	Offset  uint16
}

func (e *DivideError) Error() string {
	return fmt.Sprintf("divide error at %04X:%04X", e.Segment, e.Offset)
}

// FpuException is an unmasked x87 exception escalated to a fault.
type FpuException struct {
	Kind string
}

func (e *FpuException) Error() string {
	return fmt.Sprintf("unmasked fpu exception: %s", e.Kind)
}

// StackFault reports a push/pop outside segment bounds.
type StackFault struct {
	Segment uint16
	SP      uint16
}

func (e *StackFault) Error() string {
	return fmt.Sprintf("stack fault in segment %04X at SP=%04X", e.Segment, e.SP)
}

// RelocationMissing reports a sentinel 0xFFFF word read where no
// relocation record is registered.
type RelocationMissing struct {
	Segment uint16
	Offset  uint16
}

func (e *RelocationMissing) Error() string {
	return fmt.Sprintf("relocation missing at %04X:%04X", e.Segment, e.Offset)
}

// HostInvokeFailure wraps an error returned from a host callback.
type HostInvokeFailure struct {
	ImportOrdinal   int
	FunctionOrdinal int
	Cause           error
}

func (e *HostInvokeFailure) Error() string {
	return fmt.Sprintf("host invoke (%d,%d) failed: %v", e.ImportOrdinal, e.FunctionOrdinal, e.Cause)
}

func (e *HostInvokeFailure) Unwrap() error { return e.Cause }

// NewHostInvokeFailure wraps cause with import/function ordinal context.
func NewHostInvokeFailure(importOrdinal, functionOrdinal int, cause error) *HostInvokeFailure {
	return &HostInvokeFailure{
		ImportOrdinal:   importOrdinal,
		FunctionOrdinal: functionOrdinal,
		Cause:           errors.Wrapf(cause, "hostInvoke(%d,%d)", importOrdinal, functionOrdinal),
	}
}

// Cancelled reports a cooperative cancellation observed at an
// instruction boundary.
type Cancelled struct{}

func (e *Cancelled) Error() string { return "execution cancelled" }
