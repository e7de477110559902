// Package bytecode defines the tape machine's instruction set, the Program
// container the compiler produces, a disassembler, and the virtual machine
// that executes compiled programs.
//
// # Architecture Overview
//
//   - Opcodes: one per source symbol (IN, OUT, INC_V, DEC_V, INC_P, DEC_P,
//     BRANCH_Z, BRANCH_NZ), their counted forms (ADD_V, SUB_V, ADD_P, SUB_P),
//     control (JMP, HALT, NOP) and the idiom instructions CLEAR and MUL.
//
//   - Program: an index-addressed, growable instruction array. The optimizer
//     rewrites it in place, leaving NOP holes that the final compaction pass
//     removes while relinking every branch target.
//
//   - VM: a fetch/dispatch loop with a program counter, a data pointer and a
//     fixed tape of signed byte cells. Arithmetic wraps. Execution stops on
//     HALT, on an unknown opcode, or when the program counter runs off the end.
//
// # Ownership
//
// A Program is mutated only while it is being compiled. Once handed to NewVM
// the VM owns it; callers should not modify it afterwards.
package bytecode
