package wg86

import (
	"math"

	"golang.org/x/arch/x86/x86asm"
)

func (f *FPUState) loadFloat32(mem *SegmentedMemory, seg, off uint16) (float64, error) {
	bits, err := mem.GetDword(seg, off)
	if err != nil {
		return 0, err
	}
	return float64(math.Float32frombits(bits)), nil
}

func (f *FPUState) storeFloat32(mem *SegmentedMemory, seg, off uint16, v float64) error {
	f32 := float32(v)
	if float64(f32) != v && !math.IsNaN(v) {
		f.setException(fswPE)
	}
	return mem.SetDword(seg, off, math.Float32bits(f32))
}

func (f *FPUState) loadFloat64(mem *SegmentedMemory, seg, off uint16) (float64, error) {
	lo, err := mem.GetDword(seg, off)
	if err != nil {
		return 0, err
	}
	hi, err := mem.GetDword(seg, off+4)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(lo) | uint64(hi)<<32), nil
}

func (f *FPUState) storeFloat64(mem *SegmentedMemory, seg, off uint16, v float64) error {
	bits := math.Float64bits(v)
	if err := mem.SetDword(seg, off, uint32(bits)); err != nil {
		return err
	}
	return mem.SetDword(seg, off+4, uint32(bits>>32))
}

func (f *FPUState) loadExtended80(mem *SegmentedMemory, seg, off uint16) (float64, error) {
	var b [10]byte
	for i := range b {
		v, err := mem.GetByte(seg, off+uint16(i))
		if err != nil {
			return 0, err
		}
		b[i] = v
	}
	return ExtendedRealFromBytes(b).ToFloat64(), nil
}

func (f *FPUState) storeExtended80(mem *SegmentedMemory, seg, off uint16, v float64) error {
	b := ExtendedRealFromFloat64(v).Bytes()
	for i, by := range b {
		if err := mem.SetByte(seg, off+uint16(i), by); err != nil {
			return err
		}
	}
	return nil
}

func (f *FPUState) loadInt16(mem *SegmentedMemory, seg, off uint16) (float64, error) {
	raw, err := mem.GetWord(seg, off)
	if err != nil {
		return 0, err
	}
	return float64(int16(raw)), nil
}

func (f *FPUState) storeInt16(mem *SegmentedMemory, seg, off uint16, v float64) error {
	i := int16(f.intFromFloat(v, 16))
	return mem.SetWord(seg, off, uint16(i))
}

func (f *FPUState) loadInt32(mem *SegmentedMemory, seg, off uint16) (float64, error) {
	raw, err := mem.GetDword(seg, off)
	if err != nil {
		return 0, err
	}
	return float64(int32(raw)), nil
}

func (f *FPUState) storeInt32(mem *SegmentedMemory, seg, off uint16, v float64) error {
	i := int32(f.intFromFloat(v, 32))
	return mem.SetDword(seg, off, uint32(i))
}

func (f *FPUState) loadInt64(mem *SegmentedMemory, seg, off uint16) (float64, error) {
	lo, err := mem.GetDword(seg, off)
	if err != nil {
		return 0, err
	}
	hi, err := mem.GetDword(seg, off+4)
	if err != nil {
		return 0, err
	}
	return float64(int64(uint64(lo) | uint64(hi)<<32)), nil
}

func (f *FPUState) storeInt64(mem *SegmentedMemory, seg, off uint16, v float64) error {
	i := uint64(f.intFromFloat(v, 64))
	if err := mem.SetDword(seg, off, uint32(i)); err != nil {
		return err
	}
	return mem.SetDword(seg, off+4, uint32(i>>32))
}

func (f *FPUState) loadBCD(mem *SegmentedMemory, seg, off uint16) (float64, error) {
	var val int64
	mul := int64(1)
	for i := 0; i < 9; i++ {
		b, err := mem.GetByte(seg, off+uint16(i))
		if err != nil {
			return 0, err
		}
		d0 := int64(b & 0x0F)
		d1 := int64((b >> 4) & 0x0F)
		val += d0 * mul
		mul *= 10
		val += d1 * mul
		mul *= 10
	}
	sign, err := mem.GetByte(seg, off+9)
	if err != nil {
		return 0, err
	}
	if sign&0x80 != 0 {
		val = -val
	}
	return float64(val), nil
}

func (f *FPUState) storeBCD(mem *SegmentedMemory, seg, off uint16, v float64) error {
	r := int64(f.roundPerFCW(v))
	neg := r < 0
	if neg {
		r = -r
	}
	for i := 0; i < 9; i++ {
		d0 := byte(r % 10)
		r /= 10
		d1 := byte(r % 10)
		r /= 10
		if err := mem.SetByte(seg, off+uint16(i), d0|(d1<<4)); err != nil {
			return err
		}
	}
	if neg {
		return mem.SetByte(seg, off+9, 0x80)
	}
	return mem.SetByte(seg, off+9, 0x00)
}

func (f *FPUState) fnstenv32(mem *SegmentedMemory, seg, off uint16) error {
	mem.SetDword(seg, off+0, uint32(f.FCW))
	mem.SetDword(seg, off+4, uint32(f.FSW))
	mem.SetDword(seg, off+8, uint32(f.FTW))
	mem.SetDword(seg, off+12, f.FIP)
	mem.SetDword(seg, off+16, uint32(f.FCS)|(uint32(f.FOP&0x7FF)<<16))
	mem.SetDword(seg, off+20, f.FDP)
	mem.SetDword(seg, off+24, uint32(f.FDS))
	f.FCW |= 0x003F
	return nil
}

func (f *FPUState) fldenv32(mem *SegmentedMemory, seg, off uint16) error {
	w := func(o uint16) uint32 { v, _ := mem.GetDword(seg, off+o); return v }
	f.FCW = uint16(w(0))
	f.FSW = uint16(w(4))
	f.FTW = uint16(w(8))
	f.FIP = w(12)
	mix := w(16)
	f.FCS = uint16(mix)
	f.FOP = uint16((mix >> 16) & 0x7FF)
	f.FDP = w(20)
	f.FDS = uint16(w(24))
	return nil
}

func (f *FPUState) fsave32(mem *SegmentedMemory, seg, off uint16) error {
	f.fnstenv32(mem, seg, off)
	base := off + 28
	for i := 0; i < 8; i++ {
		f.storeExtended80(mem, seg, base+uint16(i*10), f.regs[i])
	}
	f.Reset()
	return nil
}

func (f *FPUState) frstor32(mem *SegmentedMemory, seg, off uint16) error {
	f.fldenv32(mem, seg, off)
	base := off + 28
	for i := 0; i < 8; i++ {
		v, err := f.loadExtended80(mem, seg, base+uint16(i*10))
		if err != nil {
			return err
		}
		f.regs[i] = v
	}
	return nil
}

// fpuHandlers dispatches x87 mnemonics. Populated by init so every
// handler below can reference the shared map without forward-decl
// ordering concerns.
var fpuHandlers map[x86asm.Op]func(*ExecutionUnit, *Instruction) error

func init() {
	fpuHandlers = map[x86asm.Op]func(*ExecutionUnit, *Instruction) error{
		x86asm.FLD:    fpFLD,
		x86asm.FST:    fpFST,
		x86asm.FSTP:   fpFSTP,
		x86asm.FILD:   fpFILD,
		x86asm.FIST:   fpFIST,
		x86asm.FISTP:  fpFISTP,
		x86asm.FADD:   fpBinary(false, func(a, b float64) float64 { return a + b }),
		x86asm.FADDP:  fpBinary(true, func(a, b float64) float64 { return a + b }),
		x86asm.FSUB:   fpBinary(false, func(a, b float64) float64 { return a - b }),
		x86asm.FSUBP:  fpBinary(true, func(a, b float64) float64 { return a - b }),
		x86asm.FSUBR:  fpBinary(false, func(a, b float64) float64 { return b - a }),
		x86asm.FSUBRP: fpBinary(true, func(a, b float64) float64 { return b - a }),
		x86asm.FMUL:   fpBinary(false, func(a, b float64) float64 { return a * b }),
		x86asm.FMULP:  fpBinary(true, func(a, b float64) float64 { return a * b }),
		x86asm.FDIV:   fpDivide(false, false),
		x86asm.FDIVP:  fpDivide(true, false),
		x86asm.FDIVR:  fpDivide(false, true),
		x86asm.FDIVRP: fpDivide(true, true),
		x86asm.FABS:   fpUnary(math.Abs),
		x86asm.FCHS:   fpUnary(func(v float64) float64 { return -v }),
		x86asm.FSQRT:  fpUnary(math.Sqrt),
		x86asm.FRNDINT: fpUnary(func(v float64) float64 {
			return v // actual rounding applied by roundPerFCW at call site
		}),
		x86asm.FSCALE:   fpFSCALE,
		x86asm.FPREM:    fpFPREM(false),
		x86asm.FPREM1:   fpFPREM(true),
		x86asm.FXCH:     fpFXCH,
		x86asm.FXAM:     fpFXAM,
		x86asm.FCOM:     fpCompare(false, false),
		x86asm.FCOMP:    fpCompare(true, false),
		x86asm.FCOMPP:   fpCompare(true, true),
		x86asm.FUCOM:    fpCompare(false, false),
		x86asm.FUCOMP:   fpCompare(true, false),
		x86asm.FUCOMPP:  fpCompare(true, true),
		x86asm.FTST:     fpFTST,
		x86asm.FSIN:     fpUnary(math.Sin),
		x86asm.FCOS:     fpUnary(math.Cos),
		x86asm.FSINCOS:  fpFSINCOS,
		x86asm.F2XM1:    fpUnary(func(v float64) float64 { return math.Exp2(v) - 1 }),
		x86asm.FYL2X:    fpFYL2X(false),
		x86asm.FYL2XP1:  fpFYL2X(true),
		x86asm.FPATAN:   fpFPATAN,
		x86asm.FPTAN:    fpFPTAN,
		x86asm.FLDCW:    fpFLDCW,
		x86asm.FNSTCW:   fpFNSTCW,
		x86asm.FLDZ:     fpLoadConst(6),
		x86asm.FLD1:     fpLoadConst(0),
		x86asm.FLDPI:    fpLoadConst(3),
		x86asm.FLDL2E:   fpLoadConst(2),
		x86asm.FLDL2T:   fpLoadConst(1),
		x86asm.FLDLG2:   fpLoadConst(4),
		x86asm.FLDLN2:   fpLoadConst(5),
		x86asm.FWAIT:    fpNop,
		x86asm.FNINIT:   fpFNINIT,
		x86asm.FNCLEX:   fpFNCLEX,
		x86asm.FNSTENV:  fpFNSTENV,
		x86asm.FLDENV:   fpFLDENV,
		x86asm.FNSAVE:   fpFNSAVE,
		x86asm.FRSTOR:   fpFRSTOR,
		x86asm.FNSTSW:   fpFNSTSW,
	}
}

// fpOperandAddr resolves the memory operand (argument 0) of an FPU
// instruction and records it as the FPU's last data-access address for
// FNSTENV/FSAVE capture.
func fpOperandAddr(eu *ExecutionUnit, in *Instruction) (seg, off uint16) {
	seg, off = ResolveOperandAddress(eu.Regs, in, 0)
	eu.Regs.FPU.FDP = uint32(off)
	eu.Regs.FPU.FDS = seg
	return
}

func fpStackIndex(in *Instruction, argIdx int) int {
	op := in.Operands[argIdx]
	if op.Kind != OperandRegister {
		return 0
	}
	switch op.Reg {
	case x86asm.F0:
		return 0
	case x86asm.F1:
		return 1
	case x86asm.F2:
		return 2
	case x86asm.F3:
		return 3
	case x86asm.F4:
		return 4
	case x86asm.F5:
		return 5
	case x86asm.F6:
		return 6
	case x86asm.F7:
		return 7
	}
	return 0
}

func fpFLD(eu *ExecutionUnit, in *Instruction) error {
	f := &eu.Regs.FPU
	op := in.Operands[0]
	if op.Kind == OperandRegister {
		f.Push(f.ST(fpStackIndex(in, 0)))
		return nil
	}
	seg, off := fpOperandAddr(eu, in)
	var v float64
	var err error
	switch in.raw.MemBytes {
	case 4:
		v, err = f.loadFloat32(eu.Memory, seg, off)
	case 8:
		v, err = f.loadFloat64(eu.Memory, seg, off)
	default:
		v, err = f.loadExtended80(eu.Memory, seg, off)
	}
	if err != nil {
		return err
	}
	f.Push(v)
	return nil
}

func fpStoreOnly(eu *ExecutionUnit, in *Instruction, pop bool) error {
	f := &eu.Regs.FPU
	v := f.ST(0)
	op := in.Operands[0]
	var err error
	if op.Kind == OperandRegister {
		f.setST(fpStackIndex(in, 0), v)
	} else {
		seg, off := fpOperandAddr(eu, in)
		switch in.raw.MemBytes {
		case 4:
			err = f.storeFloat32(eu.Memory, seg, off, v)
		case 8:
			err = f.storeFloat64(eu.Memory, seg, off, v)
		default:
			err = f.storeExtended80(eu.Memory, seg, off, v)
		}
	}
	if err != nil {
		return err
	}
	if pop {
		f.Pop()
	}
	return nil
}

func fpFST(eu *ExecutionUnit, in *Instruction) error  { return fpStoreOnly(eu, in, false) }
func fpFSTP(eu *ExecutionUnit, in *Instruction) error { return fpStoreOnly(eu, in, true) }

func fpFILD(eu *ExecutionUnit, in *Instruction) error {
	f := &eu.Regs.FPU
	seg, off := fpOperandAddr(eu, in)
	var v float64
	var err error
	switch in.raw.MemBytes {
	case 2:
		v, err = f.loadInt16(eu.Memory, seg, off)
	case 4:
		v, err = f.loadInt32(eu.Memory, seg, off)
	default:
		v, err = f.loadInt64(eu.Memory, seg, off)
	}
	if err != nil {
		return err
	}
	f.Push(v)
	return nil
}

func fpIntStore(eu *ExecutionUnit, in *Instruction, pop bool) error {
	f := &eu.Regs.FPU
	v := f.ST(0)
	seg, off := fpOperandAddr(eu, in)
	var err error
	switch in.raw.MemBytes {
	case 2:
		err = f.storeInt16(eu.Memory, seg, off, v)
	case 4:
		err = f.storeInt32(eu.Memory, seg, off, v)
	default:
		err = f.storeInt64(eu.Memory, seg, off, v)
	}
	if err != nil {
		return err
	}
	if pop {
		f.Pop()
	}
	return nil
}

func fpFIST(eu *ExecutionUnit, in *Instruction) error  { return fpIntStore(eu, in, false) }
func fpFISTP(eu *ExecutionUnit, in *Instruction) error { return fpIntStore(eu, in, true) }

// fpBinary builds a handler for the FADD/FSUB/FMUL family (and their
// *P pop variants) in both register and memory-source forms.
func fpBinary(pop bool, op func(a, b float64) float64) func(*ExecutionUnit, *Instruction) error {
	return func(eu *ExecutionUnit, in *Instruction) error {
		f := &eu.Regs.FPU
		dst := in.Operands[0]
		if dst.Kind == OperandMemory {
			seg, off := fpOperandAddr(eu, in)
			var src float64
			var err error
			if in.raw.MemBytes == 4 {
				src, err = f.loadFloat32(eu.Memory, seg, off)
			} else {
				src, err = f.loadFloat64(eu.Memory, seg, off)
			}
			if err != nil {
				return err
			}
			f.setST(0, op(f.ST(0), src))
			return nil
		}
		// Register form: dst ST(i), src ST(0) (two-operand encodings) or
		// implicit ST(0)/ST(i) for the single-operand encodings x86asm
		// normalizes to two explicit register args.
		i := fpStackIndex(in, 0)
		j := 0
		if in.Operands[1].Kind == OperandRegister {
			j = fpStackIndex(in, 1)
		}
		result := op(f.ST(i), f.ST(j))
		f.setST(i, result)
		if pop {
			f.Pop()
		}
		return nil
	}
}

func fpDivide(pop, reversed bool) func(*ExecutionUnit, *Instruction) error {
	return fpBinary(pop, func(a, b float64) float64 {
		if reversed {
			a, b = b, a
		}
		if b == 0 {
			if a == 0 {
				return math.NaN()
			}
			return math.Inf(sign64(a))
		}
		return a / b
	})
}

func sign64(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}

func fpUnary(op func(float64) float64) func(*ExecutionUnit, *Instruction) error {
	return func(eu *ExecutionUnit, in *Instruction) error {
		f := &eu.Regs.FPU
		if in.Op == x86asm.FRNDINT {
			f.setST(0, f.roundPerFCW(f.ST(0)))
			return nil
		}
		f.setST(0, op(f.ST(0)))
		return nil
	}
}

func fpFSCALE(eu *ExecutionUnit, in *Instruction) error {
	f := &eu.Regs.FPU
	f.setST(0, f.ST(0)*math.Pow(2, math.Trunc(f.ST(1))))
	return nil
}

func fpFPREM(ieee bool) func(*ExecutionUnit, *Instruction) error {
	return func(eu *ExecutionUnit, in *Instruction) error {
		f := &eu.Regs.FPU
		a, b := f.ST(0), f.ST(1)
		var r float64
		var q int64
		if ieee {
			r = math.Remainder(a, b)
			q = int64(math.RoundToEven(a / b))
		} else {
			q = int64(math.Trunc(a / b))
			r = a - float64(q)*b
		}
		f.setST(0, r)
		f.setQuotientFlags(q)
		return nil
	}
}

func fpFXCH(eu *ExecutionUnit, in *Instruction) error {
	f := &eu.Regs.FPU
	i := fpStackIndex(in, 0)
	a, b := f.ST(0), f.ST(i)
	f.setST(0, b)
	f.setST(i, a)
	return nil
}

func fpFXAM(eu *ExecutionUnit, in *Instruction) error {
	f := &eu.Regs.FPU
	empty := f.getTag(f.physReg(0)) == tagEmpty
	f.xam(f.ST(0), empty)
	return nil
}

func fpCompare(pop, pop2 bool) func(*ExecutionUnit, *Instruction) error {
	return func(eu *ExecutionUnit, in *Instruction) error {
		f := &eu.Regs.FPU
		i := 1
		if in.Operands[0].Kind == OperandRegister && in.Operands[0].Reg >= x86asm.F0 {
			i = fpStackIndex(in, 0)
		}
		f.doCompare(f.ST(0), f.ST(i), true)
		if pop {
			f.Pop()
		}
		if pop2 {
			f.Pop()
		}
		return nil
	}
}

func fpFTST(eu *ExecutionUnit, in *Instruction) error {
	f := &eu.Regs.FPU
	f.doCompare(f.ST(0), 0, true)
	return nil
}

func fpFSINCOS(eu *ExecutionUnit, in *Instruction) error {
	f := &eu.Regs.FPU
	v := f.ST(0)
	f.setST(0, math.Sin(v))
	f.Push(math.Cos(v))
	return nil
}

func fpFYL2X(plus1 bool) func(*ExecutionUnit, *Instruction) error {
	return func(eu *ExecutionUnit, in *Instruction) error {
		f := &eu.Regs.FPU
		x, y := f.ST(0), f.ST(1)
		if plus1 {
			x += 1
		}
		r := y * math.Log2(x)
		f.Pop()
		f.setST(0, r)
		return nil
	}
}

func fpFPATAN(eu *ExecutionUnit, in *Instruction) error {
	f := &eu.Regs.FPU
	y, x := f.ST(0), f.ST(1)
	r := math.Atan2(x, y)
	f.Pop()
	f.setST(0, r)
	return nil
}

func fpFPTAN(eu *ExecutionUnit, in *Instruction) error {
	f := &eu.Regs.FPU
	f.setST(0, math.Tan(f.ST(0)))
	f.Push(1.0)
	return nil
}

func fpFLDCW(eu *ExecutionUnit, in *Instruction) error {
	seg, off := fpOperandAddr(eu, in)
	v, err := eu.Memory.GetWord(seg, off)
	if err != nil {
		return err
	}
	eu.Regs.FPU.FCW = v
	return nil
}

func fpFNSTCW(eu *ExecutionUnit, in *Instruction) error {
	seg, off := fpOperandAddr(eu, in)
	return eu.Memory.SetWord(seg, off, eu.Regs.FPU.FCW)
}

func fpFNSTSW(eu *ExecutionUnit, in *Instruction) error {
	if in.Operands[0].Kind == OperandRegister {
		eu.Regs.Set16(in.Operands[0].Reg, eu.Regs.FPU.FSW)
		return nil
	}
	seg, off := fpOperandAddr(eu, in)
	return eu.Memory.SetWord(seg, off, eu.Regs.FPU.FSW)
}

func fpLoadConst(idx int) func(*ExecutionUnit, *Instruction) error {
	return func(eu *ExecutionUnit, in *Instruction) error {
		eu.Regs.FPU.Push(x87ConstTable[idx])
		return nil
	}
}

func fpNop(eu *ExecutionUnit, in *Instruction) error { return nil }

func fpFNINIT(eu *ExecutionUnit, in *Instruction) error {
	eu.Regs.FPU.Reset()
	return nil
}

func fpFNCLEX(eu *ExecutionUnit, in *Instruction) error {
	eu.Regs.FPU.FSW &^= fswIE | fswDE | fswZE | fswOE | fswUE | fswPE | fswSF | fswES | fswB
	return nil
}

func fpFNSTENV(eu *ExecutionUnit, in *Instruction) error {
	seg, off := fpOperandAddr(eu, in)
	return eu.Regs.FPU.fnstenv32(eu.Memory, seg, off)
}

func fpFLDENV(eu *ExecutionUnit, in *Instruction) error {
	seg, off := fpOperandAddr(eu, in)
	return eu.Regs.FPU.fldenv32(eu.Memory, seg, off)
}

func fpFNSAVE(eu *ExecutionUnit, in *Instruction) error {
	seg, off := fpOperandAddr(eu, in)
	return eu.Regs.FPU.fsave32(eu.Memory, seg, off)
}

func fpFRSTOR(eu *ExecutionUnit, in *Instruction) error {
	seg, off := fpOperandAddr(eu, in)
	return eu.Regs.FPU.frstor32(eu.Memory, seg, off)
}
