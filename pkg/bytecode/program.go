package bytecode

import (
	"errors"
	"fmt"
)

// DefaultCapacity is the number of instruction slots a new Program reserves.
const DefaultCapacity = 1024

// ErrProgramTooLarge is returned when appending would exceed the program's
// instruction limit.
var ErrProgramTooLarge = errors.New("program exceeds instruction limit")

// Instruction is a single IR instruction.
//
// Arg holds a repeat count for counted opcodes, an instruction address for
// branches and jumps, and the multiplier for OpMul. Offset is only meaningful
// for OpMul, where it is the displacement of the target cell from the data
// pointer.
type Instruction struct {
	Op     Opcode
	Arg    int
	Offset int
}

// String returns a compact form of the instruction for test failures and traces.
func (ins Instruction) String() string {
	if ins.Op == OpMul {
		return fmt.Sprintf("%s %d [dp%+d]", ins.Op, ins.Arg, ins.Offset)
	}
	return fmt.Sprintf("%s %d", ins.Op, ins.Arg)
}

// Program is a growable, index-addressed sequence of instructions.
// It is built by the compiler, rewritten in place by the optimizer passes and
// then handed to the VM, which owns it from that point on.
type Program struct {
	code []Instruction

	// limit caps the instruction count; zero means unlimited.
	limit int
}

// NewProgram creates an empty program with DefaultCapacity slots reserved.
func NewProgram() *Program {
	return &Program{code: make([]Instruction, 0, DefaultCapacity)}
}

// NewProgramWithLimit creates an empty program that refuses to grow past
// limit instructions. A limit of zero or less means unlimited.
func NewProgramWithLimit(limit int) *Program {
	p := NewProgram()
	if limit > 0 {
		p.limit = limit
	}
	return p
}

// ProgramOf builds a program from literal instructions. Mostly useful in tests.
func ProgramOf(code ...Instruction) *Program {
	p := &Program{code: make([]Instruction, len(code), max(len(code), DefaultCapacity))}
	copy(p.code, code)
	return p
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.code)
}

// Cap returns the number of instruction slots currently allocated.
func (p *Program) Cap() int {
	return cap(p.code)
}

// Append adds an instruction at the end of the program.
func (p *Program) Append(ins Instruction) error {
	if p.limit > 0 && len(p.code) >= p.limit {
		return fmt.Errorf("%w (%d)", ErrProgramTooLarge, p.limit)
	}
	p.code = append(p.code, ins)
	return nil
}

// Emit appends an instruction built from an opcode and argument.
func (p *Program) Emit(op Opcode, arg int) error {
	return p.Append(Instruction{Op: op, Arg: arg})
}

// At returns the instruction at index i. Panics if i is out of range.
func (p *Program) At(i int) Instruction {
	return p.code[i]
}

// Set overwrites the instruction at index i. Panics if i is out of range.
func (p *Program) Set(i int, ins Instruction) {
	p.code[i] = ins
}

// Substitute overwrites len(ir) instructions starting at pos. It returns
// false and leaves the program untouched if the replacement does not fit.
func (p *Program) Substitute(pos int, ir ...Instruction) bool {
	if pos < 0 || pos+len(ir) > len(p.code) {
		return false
	}
	copy(p.code[pos:], ir)
	return true
}

// Fill overwrites the half-open range [from, to) with copies of ins.
func (p *Program) Fill(from, to int, ins Instruction) {
	for i := from; i < to; i++ {
		p.code[i] = ins
	}
}

// Truncate shrinks the program to n instructions.
func (p *Program) Truncate(n int) {
	p.code = p.code[:n]
}

// Instructions returns a copy of the instruction sequence.
func (p *Program) Instructions() []Instruction {
	out := make([]Instruction, len(p.code))
	copy(out, p.code)
	return out
}

// Count returns how many instructions use op.
func (p *Program) Count(op Opcode) int {
	n := 0
	for _, ins := range p.code {
		if ins.Op == op {
			n++
		}
	}
	return n
}
