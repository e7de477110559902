package bytecode

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

// Helper to build a program that ends in HALT
func programWithHalt(code ...Instruction) *Program {
	return ProgramOf(append(code, Instruction{Op: OpHalt})...)
}

// Helper to run a program and collect its output
func runProgram(t *testing.T, p *Program, input string) (*VM, []byte) {
	t.Helper()
	var out bytes.Buffer
	vm := NewVMWithTapeSize(p, 16)
	vm.SetInput(strings.NewReader(input))
	vm.SetOutput(&out)
	if err := vm.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return vm, out.Bytes()
}

// ============ Cell Arithmetic Tests ============

func TestVMIncDec(t *testing.T) {
	p := programWithHalt(
		Instruction{Op: OpIncV},
		Instruction{Op: OpIncV},
		Instruction{Op: OpDecV},
		Instruction{Op: OpOut},
	)

	_, out := runProgram(t, p, "")
	if !bytes.Equal(out, []byte{1}) {
		t.Errorf("output = %v, want [1]", out)
	}
}

func TestVMCountedWraps(t *testing.T) {
	p := programWithHalt(
		Instruction{Op: OpAddV, Arg: 200},
		Instruction{Op: OpAddV, Arg: 100},
		Instruction{Op: OpOut},
		Instruction{Op: OpSubV, Arg: 45},
		Instruction{Op: OpOut},
	)

	_, out := runProgram(t, p, "")
	// 300 mod 256 = 44; 44 - 45 wraps to 255
	if !bytes.Equal(out, []byte{44, 255}) {
		t.Errorf("output = %v, want [44 255]", out)
	}
}

func TestVMDecrementWrapsBelowZero(t *testing.T) {
	p := programWithHalt(Instruction{Op: OpDecV}, Instruction{Op: OpOut})

	vm, out := runProgram(t, p, "")
	if !bytes.Equal(out, []byte{0xFF}) {
		t.Errorf("output = %v, want [255]", out)
	}
	if vm.Cell(0) != -1 {
		t.Errorf("cell = %d, want -1", vm.Cell(0))
	}
}

// ============ Pointer Boundary Tests ============

func TestVMUnitPointerClamps(t *testing.T) {
	code := make([]Instruction, 0, 10)
	for i := 0; i < 10; i++ {
		code = append(code, Instruction{Op: OpDecP})
	}
	vm, _ := runProgram(t, programWithHalt(code...), "")

	if vm.Pointer() != 0 {
		t.Errorf("pointer = %d after ten DEC_P, want 0", vm.Pointer())
	}

	code = code[:0]
	for i := 0; i < 20; i++ {
		code = append(code, Instruction{Op: OpIncP})
	}
	vm, _ = runProgram(t, programWithHalt(code...), "")

	if vm.Pointer() != 15 {
		t.Errorf("pointer = %d after twenty INC_P on a 16 cell tape, want 15", vm.Pointer())
	}
}

func TestVMCountedPointerDropsOutOfRangeMoves(t *testing.T) {
	p := programWithHalt(
		Instruction{Op: OpAddP, Arg: 10},
		Instruction{Op: OpAddP, Arg: 10}, // would land on 20, dropped
		Instruction{Op: OpSubP, Arg: 3},
		Instruction{Op: OpSubP, Arg: 8}, // would land on -1, dropped
	)

	vm, _ := runProgram(t, p, "")
	if vm.Pointer() != 7 {
		t.Errorf("pointer = %d, want 7", vm.Pointer())
	}
}

// ============ Control Flow Tests ============

func TestVMLoop(t *testing.T) {
	// +++[>++<-]>.
	p := programWithHalt(
		Instruction{Op: OpAddV, Arg: 3},
		Instruction{Op: OpBranchZ, Arg: 7},
		Instruction{Op: OpIncP},
		Instruction{Op: OpAddV, Arg: 2},
		Instruction{Op: OpDecP},
		Instruction{Op: OpDecV},
		Instruction{Op: OpBranchNZ, Arg: 2},
		Instruction{Op: OpIncP},
		Instruction{Op: OpOut},
	)

	_, out := runProgram(t, p, "")
	if !bytes.Equal(out, []byte{6}) {
		t.Errorf("output = %v, want [6]", out)
	}
}

func TestVMBranchZeroSkipsLoop(t *testing.T) {
	p := programWithHalt(
		Instruction{Op: OpBranchZ, Arg: 3},
		Instruction{Op: OpOut},
		Instruction{Op: OpBranchNZ, Arg: 1},
		Instruction{Op: OpIncV},
		Instruction{Op: OpOut},
	)

	_, out := runProgram(t, p, "")
	if !bytes.Equal(out, []byte{1}) {
		t.Errorf("output = %v, want [1]", out)
	}
}

func TestVMJumpAndHalt(t *testing.T) {
	p := ProgramOf(
		Instruction{Op: OpJmp, Arg: 2},
		Instruction{Op: OpOut},
		Instruction{Op: OpHalt},
		Instruction{Op: OpOut},
	)

	vm, out := runProgram(t, p, "")
	if len(out) != 0 {
		t.Errorf("output = %v, want none", out)
	}
	if vm.PC() != 2 {
		t.Errorf("pc = %d, want 2 (halted)", vm.PC())
	}
}

func TestVMUnknownOpcodeHalts(t *testing.T) {
	p := ProgramOf(
		Instruction{Op: OpIncV},
		Instruction{Op: Opcode(0xEE)},
		Instruction{Op: OpOut},
	)

	_, out := runProgram(t, p, "")
	if len(out) != 0 {
		t.Errorf("output = %v, want none after unknown opcode", out)
	}
}

func TestVMRunsOffEnd(t *testing.T) {
	p := ProgramOf(Instruction{Op: OpIncV}, Instruction{Op: OpOut})

	_, out := runProgram(t, p, "")
	if !bytes.Equal(out, []byte{1}) {
		t.Errorf("output = %v, want [1]", out)
	}
}

// ============ Idiom Instruction Tests ============

func TestVMClear(t *testing.T) {
	p := programWithHalt(
		Instruction{Op: OpAddV, Arg: 42},
		Instruction{Op: OpClear},
		Instruction{Op: OpOut},
	)

	_, out := runProgram(t, p, "")
	if !bytes.Equal(out, []byte{0}) {
		t.Errorf("output = %v, want [0]", out)
	}
}

func TestVMMul(t *testing.T) {
	p := programWithHalt(
		Instruction{Op: OpAddV, Arg: 8},
		Instruction{Op: OpMul, Arg: 8, Offset: 1},
		Instruction{Op: OpMul, Arg: -2, Offset: 3},
		Instruction{Op: OpClear},
	)

	vm, _ := runProgram(t, p, "")
	if vm.Cell(0) != 0 {
		t.Errorf("source cell = %d, want 0", vm.Cell(0))
	}
	if vm.Cell(1) != 64 {
		t.Errorf("cell 1 = %d, want 64", vm.Cell(1))
	}
	if vm.Cell(3) != -16 {
		t.Errorf("cell 3 = %d, want -16", vm.Cell(3))
	}
}

func TestVMMulOffTapeFaults(t *testing.T) {
	p := programWithHalt(
		Instruction{Op: OpIncV},
		Instruction{Op: OpMul, Arg: 1, Offset: 100},
	)

	vm := NewVMWithTapeSize(p, 16)
	err := vm.Run()
	if !errors.Is(err, ErrTapeFault) {
		t.Fatalf("Run error = %v, want ErrTapeFault", err)
	}
}

func TestVMMulSkipsZeroSource(t *testing.T) {
	// [-<+>] at the left edge with a zero cell: the loop never runs, so
	// the off-tape target is never touched.
	p := programWithHalt(
		Instruction{Op: OpMul, Arg: 1, Offset: -1},
		Instruction{Op: OpClear},
		Instruction{Op: OpOut},
	)

	_, out := runProgram(t, p, "")
	if !bytes.Equal(out, []byte{0}) {
		t.Errorf("output = %v, want [0]", out)
	}
}

// ============ I/O Tests ============

func TestVMInputEcho(t *testing.T) {
	p := programWithHalt(
		Instruction{Op: OpIn},
		Instruction{Op: OpOut},
		Instruction{Op: OpIn},
		Instruction{Op: OpOut},
	)

	vm, out := runProgram(t, p, "hi")
	if string(out) != "hi" {
		t.Errorf("output = %q, want %q", out, "hi")
	}
	if vm.Stats().InputBytes != 2 {
		t.Errorf("InputBytes = %d, want 2", vm.Stats().InputBytes)
	}
}

func TestVMInputEOFLeavesCell(t *testing.T) {
	p := programWithHalt(
		Instruction{Op: OpAddV, Arg: 7},
		Instruction{Op: OpIn},
		Instruction{Op: OpOut},
	)

	_, out := runProgram(t, p, "")
	if !bytes.Equal(out, []byte{7}) {
		t.Errorf("output = %v, want [7]", out)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestVMOutputError(t *testing.T) {
	vm := NewVM(programWithHalt(Instruction{Op: OpOut}))
	vm.SetOutput(failingWriter{})

	err := vm.Run()
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("Run error = %v, want write failure", err)
	}
}

func TestVMInputError(t *testing.T) {
	vm := NewVM(programWithHalt(Instruction{Op: OpIn}))
	vm.SetInput(iotest.ErrReader(errors.New("connection reset")))

	err := vm.Run()
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("Run error = %v, want read failure", err)
	}
}

// ============ Stats and Reset Tests ============

func TestVMStatsAndReset(t *testing.T) {
	p := programWithHalt(
		Instruction{Op: OpIncV},
		Instruction{Op: OpIncV},
		Instruction{Op: OpOut},
	)

	vm, _ := runProgram(t, p, "")
	stats := vm.Stats()
	if stats.Steps != 4 {
		t.Errorf("Steps = %d, want 4", stats.Steps)
	}
	if stats.OpCounts[OpIncV] != 2 {
		t.Errorf("OpCounts[INC_V] = %d, want 2", stats.OpCounts[OpIncV])
	}
	if stats.OutputBytes != 1 {
		t.Errorf("OutputBytes = %d, want 1", stats.OutputBytes)
	}

	vm.Reset()
	if vm.Cell(0) != 0 || vm.PC() != 0 || vm.Stats().Steps != 0 {
		t.Error("Reset did not clear VM state")
	}
}

func TestNewVMDefaultTape(t *testing.T) {
	vm := NewVMWithTapeSize(NewProgram(), 0)
	if vm.TapeSize() != DefaultTapeSize {
		t.Errorf("TapeSize() = %d, want %d", vm.TapeSize(), DefaultTapeSize)
	}
}
