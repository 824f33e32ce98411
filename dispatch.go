package wg86

import "golang.org/x/arch/x86/x86asm"

// intHandlers is the mnemonic dispatch table spec.md §4.D describes,
// populated by each opcodes_*.go file's init(). Collapsing the
// teacher's per-group-opcode switch (cpu_x86_grp.go's ModR/M-reg-field
// dispatch) into one map keyed directly by x86asm.Op is possible
// because the decoder already classifies ADD/OR/ADC/SBB/AND/SUB/XOR/CMP
// (and the Group-2/Group-3 families) as distinct Op values, unlike the
// teacher's hand-rolled decoder which defers that classification to
// runtime ModR/M inspection.
var intHandlers = map[x86asm.Op]func(*ExecutionUnit, *Instruction) error{}

func register(op x86asm.Op, fn func(*ExecutionUnit, *Instruction) error) {
	intHandlers[op] = fn
}

func registerAll(fn func(*ExecutionUnit, *Instruction) error, ops ...x86asm.Op) {
	for _, op := range ops {
		intHandlers[op] = fn
	}
}
