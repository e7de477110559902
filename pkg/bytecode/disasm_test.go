package bytecode

import (
	"strings"
	"testing"
)

func TestDisassembleEmpty(t *testing.T) {
	p := NewProgram()

	if output := p.Disassemble(); output != "" {
		t.Errorf("Disassembly of empty program = %q, want empty", output)
	}
}

func TestDisassembleFormat(t *testing.T) {
	p := ProgramOf(
		Instruction{Op: OpBranchZ, Arg: 3},
		Instruction{Op: OpDecV},
		Instruction{Op: OpBranchNZ, Arg: 1},
		Instruction{Op: OpHalt},
	)

	want := "(0x00000000) BRANCH_Z -> 0x00000003\n" +
		"(0x00000001) DEC_V -> 0x00000000\n" +
		"(0x00000002) BRANCH_NZ -> 0x00000001\n" +
		"(0x00000003) HALT -> 0x00000000\n"

	if got := p.Disassemble(); got != want {
		t.Errorf("Disassemble() =\n%s\nwant\n%s", got, want)
	}
}

func TestDisassembleMul(t *testing.T) {
	line := DisassembleInstruction(16, Instruction{Op: OpMul, Arg: 8, Offset: 2})

	if !strings.HasPrefix(line, "(0x00000010) MUL -> 0x00000008") {
		t.Errorf("unexpected MUL line %q", line)
	}
	if !strings.Contains(line, "[dp+2]") {
		t.Errorf("MUL line %q is missing the cell offset", line)
	}
}

func TestDisassembleNegativeArgument(t *testing.T) {
	line := DisassembleInstruction(0, Instruction{Op: OpMul, Arg: -1, Offset: -3})

	if !strings.Contains(line, "-> 0xFFFFFFFF") {
		t.Errorf("negative argument should render as 32-bit hex, got %q", line)
	}
	if !strings.Contains(line, "[dp-3]") {
		t.Errorf("negative offset missing from %q", line)
	}
}
