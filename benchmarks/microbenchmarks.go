package benchmarks

import (
	"github.com/sarchlab/psxrec/core"
	"github.com/sarchlab/psxrec/insts"
)

// Guest registers used by the benchmarks.
const (
	zero = 0
	v0   = 2
	t0   = 8
	t1   = 9
	t2   = 10
	t3   = 11
	ra   = 31
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// stresses a different part of the translator.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		countdownLoop(),
		multiplyUnit(),
		unalignedAccess(),
		gteTransfer(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation: a self loop,
// call-heavy code and a GTE transfer run.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		countdownLoop(),
		functionCalls(),
		gteTransfer(),
	}
}

// 1. Arithmetic Sequential - independent ALU operations
func arithmeticSequential() Benchmark {
	prog := make([]uint32, 0, 23)
	for i := 0; i < 20; i++ {
		r := uint8(t0 + i%5)
		prog = append(prog, insts.ADDIU(r, r, 1))
	}
	prog = append(prog,
		insts.ADDU(v0, t0, zero),
		insts.SYSCALL(0),
		insts.NOP,
	)

	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 independent ADDIUs over 5 registers - register allocation without call-outs",
		Program:     prog,
		Expected:    4,
	}
}

// 2. Dependency Chain - one register carried through every instruction
func dependencyChain() Benchmark {
	return Benchmark{
		Name:        "dependency_chain",
		Description: "20 dependent ADDIUs ($v0 += 1)",
		Program:     buildDependencyChain(20),
		Expected:    20,
	}
}

func buildDependencyChain(n int) []uint32 {
	prog := make([]uint32, 0, n+2)
	for i := 0; i < n; i++ {
		prog = append(prog, insts.ADDIU(v0, v0, 1))
	}
	return append(prog, insts.SYSCALL(0), insts.NOP)
}

// 3. Memory Sequential - store/load pairs to consecutive words
func memorySequential() Benchmark {
	prog := []uint32{
		insts.LUI(t1, DataBase>>16),
		insts.ADDIU(v0, zero, 42),
	}
	for i := int16(0); i < 10; i++ {
		prog = append(prog,
			insts.SW(v0, t1, 4*i),
			insts.LW(v0, t1, 4*i),
		)
	}
	prog = append(prog, insts.SYSCALL(0), insts.NOP)

	return Benchmark{
		Name:        "memory_sequential",
		Description: "10 SW/LW pairs to sequential addresses - inline access or call-outs",
		Program:     prog,
		Expected:    42,
	}
}

// 4. Function Calls - JAL/JR pairs into a leaf function
func functionCalls() Benchmark {
	const fn = ProgramBase + 0x40

	prog := []uint32{
		insts.JAL(fn), insts.NOP,
		insts.JAL(fn), insts.NOP,
		insts.JAL(fn), insts.NOP,
		insts.SYSCALL(0), insts.NOP,
	}
	for len(prog) < (fn-ProgramBase)/4 {
		prog = append(prog, insts.NOP)
	}
	prog = append(prog,
		insts.JR(ra),
		insts.ADDIU(v0, v0, 1),
	)

	return Benchmark{
		Name:        "function_calls",
		Description: "3 calls to a leaf that increments $v0 in its return delay slot",
		Program:     prog,
		Expected:    3,
	}
}

// 5. Countdown Loop - a block that branches back to itself
func countdownLoop() Benchmark {
	return Benchmark{
		Name:        "countdown_loop",
		Description: "10 iterations of a self loop - exercises the fast re-entry path",
		Program: []uint32{
			insts.ADDIU(t0, zero, 10),
			insts.ADDIU(v0, zero, 0),
			insts.ADDIU(v0, v0, 3), // loop:
			insts.ADDIU(t0, t0, -1),
			insts.BNE(t0, zero, -3),
			insts.NOP,
			insts.SYSCALL(0),
			insts.NOP,
		},
		Expected: 30,
	}
}

// 6. Multiply Unit - MULT/MFLO
func multiplyUnit() Benchmark {
	return Benchmark{
		Name:        "multiply_unit",
		Description: "MULT and MFLO - multiply unit through the interpreter",
		Program: []uint32{
			insts.ADDIU(t0, zero, 6),
			insts.ADDIU(t1, zero, 7),
			insts.MULT(t0, t1),
			insts.MFLO(v0),
			insts.SYSCALL(0),
			insts.NOP,
		},
		Expected: 42,
	}
}

// 7. Unaligned Access - LWL/LWR pair reading a whole word
func unalignedAccess() Benchmark {
	return Benchmark{
		Name:        "unaligned_access",
		Description: "LWL/LWR pair - unaligned loads through the interpreter",
		Program: []uint32{
			insts.LUI(t1, DataBase>>16),
			insts.LUI(t0, 0x1122),
			insts.ORI(t0, t0, 0x3344),
			insts.SW(t0, t1, 0),
			insts.LWL(v0, t1, 3),
			insts.LWR(v0, t1, 0),
			insts.SYSCALL(0),
			insts.NOP,
		},
		Expected: 0x11223344,
	}
}

// 8. GTE Transfer - LWC2/SWC2 runs
func gteTransfer() Benchmark {
	return Benchmark{
		Name:        "gte_transfer",
		Description: "3 LWC2 then 3 SWC2 - GTE transfer queue",
		Setup: func(m *core.Machine) {
			m.LoadGuestWords(DataBase, []uint32{0x00010002, 0x00030004, 0x00050006})
		},
		Program: []uint32{
			insts.LUI(t1, DataBase>>16),
			insts.LWC2(0, t1, 0),
			insts.LWC2(2, t1, 4),
			insts.LWC2(4, t1, 8),
			insts.SWC2(0, t1, 12),
			insts.SWC2(2, t1, 16),
			insts.SWC2(4, t1, 20),
			insts.LW(t2, t1, 12),
			insts.LW(t3, t1, 20),
			insts.NOP,
			insts.ADDU(v0, t2, t3),
			insts.SYSCALL(0),
			insts.NOP,
		},
		Expected: 0x00060008,
	}
}
