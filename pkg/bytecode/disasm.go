package bytecode

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble returns a human-readable listing of the program, one line per
// instruction in the form
//
//	(0x00000003) BRANCH_NZ -> 0x00000001
//
// MUL lines additionally show the target cell offset. The listing is for
// inspection only and cannot be parsed back into a Program.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	p.DisassembleTo(&sb)
	return sb.String()
}

// DisassembleTo writes the listing produced by Disassemble to w.
func (p *Program) DisassembleTo(w io.Writer) error {
	for addr, ins := range p.code {
		if _, err := io.WriteString(w, DisassembleInstruction(addr, ins)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// DisassembleInstruction formats a single instruction located at addr.
func DisassembleInstruction(addr int, ins Instruction) string {
	line := fmt.Sprintf("(0x%08X) %s -> 0x%08X", uint32(addr), ins.Op, uint32(ins.Arg))
	if ins.Op == OpMul {
		line += fmt.Sprintf(" [dp%+d]", ins.Offset)
	}
	return line
}
