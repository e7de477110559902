package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/tapevm/pkg/bytecode"
)

type ins = bytecode.Instruction

// Helper to build and run pass 1 over a source string
func combined(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	prog, err := Build([]byte(src), 0)
	if err != nil {
		t.Fatalf("Build(%q) failed: %v", src, err)
	}
	CombineRuns(prog)
	return prog
}

// ============ Pass 1 Tests ============

func TestCombineRuns(t *testing.T) {
	prog, err := Build([]byte("+++>><"), 0)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if folded := CombineRuns(prog); folded != 2 {
		t.Errorf("CombineRuns = %d, want 2", folded)
	}

	want := []ins{
		{Op: bytecode.OpAddV, Arg: 3},
		{Op: bytecode.OpNop},
		{Op: bytecode.OpNop},
		{Op: bytecode.OpAddP, Arg: 2},
		{Op: bytecode.OpNop},
		{Op: bytecode.OpSubP, Arg: 1},
		{Op: bytecode.OpHalt},
	}
	if diff := cmp.Diff(want, prog.Instructions()); diff != "" {
		t.Errorf("CombineRuns mismatch (-want +got):\n%s", diff)
	}
}

func TestCombineRunsKeepsBranchTargets(t *testing.T) {
	prog := combined(t, "++[--]")

	want := []ins{
		{Op: bytecode.OpAddV, Arg: 2},
		{Op: bytecode.OpNop},
		{Op: bytecode.OpBranchZ, Arg: 6},
		{Op: bytecode.OpSubV, Arg: 2},
		{Op: bytecode.OpNop},
		{Op: bytecode.OpBranchNZ, Arg: 3},
		{Op: bytecode.OpHalt},
	}
	if diff := cmp.Diff(want, prog.Instructions()); diff != "" {
		t.Errorf("CombineRuns mismatch (-want +got):\n%s", diff)
	}
}

func TestCombineRunsAlternatingSymbols(t *testing.T) {
	prog := combined(t, "+-+-")

	for i := 0; i < 4; i++ {
		if got := prog.At(i); got.Arg != 1 || !got.Op.IsCounted() {
			t.Errorf("instruction %d = %v, want a counted op with Arg 1", i, got)
		}
	}
}

// ============ Pass 2 Tests ============

func TestRewriteClearLoops(t *testing.T) {
	for _, src := range []string{"+++[-].", "+++[+]."} {
		prog := combined(t, src)

		stats := RewriteIdioms(prog)
		if stats.ClearLoops != 1 {
			t.Errorf("%q: ClearLoops = %d, want 1", src, stats.ClearLoops)
		}

		want := []ins{
			{Op: bytecode.OpAddV, Arg: 3},
			{Op: bytecode.OpNop},
			{Op: bytecode.OpNop},
			{Op: bytecode.OpClear},
			{Op: bytecode.OpNop},
			{Op: bytecode.OpNop},
			{Op: bytecode.OpOut},
			{Op: bytecode.OpHalt},
		}
		if diff := cmp.Diff(want, prog.Instructions()); diff != "" {
			t.Errorf("%q: RewriteIdioms mismatch (-want +got):\n%s", src, diff)
		}
	}
}

func TestRewriteClearLoopNeedsUnitStep(t *testing.T) {
	prog := combined(t, "[--]")
	before := prog.Instructions()

	if stats := RewriteIdioms(prog); stats != (IdiomStats{}) {
		t.Errorf("[--] was rewritten: %+v", stats)
	}
	if diff := cmp.Diff(before, prog.Instructions()); diff != "" {
		t.Errorf("program changed (-before +after):\n%s", diff)
	}
}

func TestRewriteMulLoopDecrementLast(t *testing.T) {
	prog := combined(t, "++++++++[>++++++++<-]>.")

	stats := RewriteIdioms(prog)
	if stats.MulLoops != 1 || stats.MulTerms != 1 {
		t.Fatalf("stats = %+v, want one loop with one term", stats)
	}

	if got := prog.At(8); got != (ins{Op: bytecode.OpMul, Arg: 8, Offset: 1}) {
		t.Errorf("instruction 8 = %v, want MUL 8 [dp+1]", got)
	}
	if got := prog.At(9); got.Op != bytecode.OpClear {
		t.Errorf("instruction 9 = %v, want CLEAR", got)
	}
	for i := 10; i <= 20; i++ {
		if prog.At(i).Op != bytecode.OpNop {
			t.Errorf("instruction %d = %v, want NOP", i, prog.At(i))
		}
	}
	if got := prog.At(21); got != (ins{Op: bytecode.OpAddP, Arg: 1}) {
		t.Errorf("instruction after the loop changed: %v", got)
	}
}

func TestRewriteMulLoopDecrementFirst(t *testing.T) {
	prog := combined(t, "[->++>+++++<<]")

	stats := RewriteIdioms(prog)
	if stats.MulLoops != 1 || stats.MulTerms != 2 {
		t.Fatalf("stats = %+v, want one loop with two terms", stats)
	}

	want := []ins{
		{Op: bytecode.OpMul, Arg: 2, Offset: 1},
		{Op: bytecode.OpMul, Arg: 5, Offset: 2},
		{Op: bytecode.OpClear},
	}
	if diff := cmp.Diff(want, prog.Instructions()[:3]); diff != "" {
		t.Errorf("RewriteIdioms mismatch (-want +got):\n%s", diff)
	}
}

func TestRewriteMulLoopNegative(t *testing.T) {
	prog := combined(t, "[-<--->]")

	RewriteIdioms(prog)
	if got := prog.At(0); got != (ins{Op: bytecode.OpMul, Arg: -3, Offset: -1}) {
		t.Errorf("instruction 0 = %v, want MUL -3 [dp-1]", got)
	}
}

func TestRewriteMulLoopRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"crosses source cell", "[->+<+>]"},
		{"unbalanced return", "[->+<<]"},
		{"output in body", "[->.<]"},
		{"nested loop", "[->[-]<]"},
		{"double decrement", "[->+<-]"},
		{"no body", "[-<>]"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prog := combined(t, tc.src)
			before := prog.Instructions()

			stats := RewriteIdioms(prog)
			if stats.MulLoops != 0 {
				t.Errorf("%q rewritten as a mul loop", tc.src)
			}
			if stats.ClearLoops == 0 {
				if diff := cmp.Diff(before, prog.Instructions()); diff != "" {
					t.Errorf("rejected probe modified the program (-before +after):\n%s", diff)
				}
			}
		})
	}
}

func TestRewriteIdiomsIsIdempotent(t *testing.T) {
	prog := combined(t, "++[->+<]>[-]<+++[>++<-]")

	first := RewriteIdioms(prog)
	if first.MulLoops != 2 || first.ClearLoops != 1 {
		t.Fatalf("first run = %+v, want 2 mul loops and 1 clear loop", first)
	}

	after := prog.Instructions()
	if second := RewriteIdioms(prog); second != (IdiomStats{}) {
		t.Errorf("second run rewrote again: %+v", second)
	}
	if diff := cmp.Diff(after, prog.Instructions()); diff != "" {
		t.Errorf("second run changed the program (-first +second):\n%s", diff)
	}
}

// ============ Pass 3 Tests ============

func TestCompactRelinksThroughNops(t *testing.T) {
	p := bytecode.ProgramOf(
		ins{Op: bytecode.OpBranchZ, Arg: 4},
		ins{Op: bytecode.OpNop},
		ins{Op: bytecode.OpAddV, Arg: 1},
		ins{Op: bytecode.OpBranchNZ, Arg: 1},
		ins{Op: bytecode.OpNop},
		ins{Op: bytecode.OpOut},
		ins{Op: bytecode.OpHalt},
	)

	stats := Compact(p)
	if stats.Removed != 2 || stats.Demoted != 1 {
		t.Errorf("stats = %+v, want 2 removed and 1 demoted", stats)
	}

	want := []ins{
		{Op: bytecode.OpBranchZ, Arg: 3},
		{Op: bytecode.OpIncV},
		{Op: bytecode.OpBranchNZ, Arg: 1},
		{Op: bytecode.OpOut},
		{Op: bytecode.OpHalt},
	}
	if diff := cmp.Diff(want, p.Instructions()); diff != "" {
		t.Errorf("Compact mismatch (-want +got):\n%s", diff)
	}
}

func TestCompactDemotesEveryCountedForm(t *testing.T) {
	p := bytecode.ProgramOf(
		ins{Op: bytecode.OpAddV, Arg: 1},
		ins{Op: bytecode.OpSubV, Arg: 1},
		ins{Op: bytecode.OpAddP, Arg: 1},
		ins{Op: bytecode.OpSubP, Arg: 1},
		ins{Op: bytecode.OpAddV, Arg: 2},
		ins{Op: bytecode.OpMul, Arg: 1, Offset: 1},
		ins{Op: bytecode.OpHalt},
	)

	Compact(p)

	want := []ins{
		{Op: bytecode.OpIncV},
		{Op: bytecode.OpDecV},
		{Op: bytecode.OpIncP},
		{Op: bytecode.OpDecP},
		{Op: bytecode.OpAddV, Arg: 2},
		{Op: bytecode.OpMul, Arg: 1, Offset: 1},
		{Op: bytecode.OpHalt},
	}
	if diff := cmp.Diff(want, p.Instructions()); diff != "" {
		t.Errorf("Compact mismatch (-want +got):\n%s", diff)
	}
}

func TestCompactLeavesNoNops(t *testing.T) {
	prog := combined(t, "+++++[>+++++<-]>[-]<<<<++")
	RewriteIdioms(prog)
	Compact(prog)

	if n := prog.Count(bytecode.OpNop); n != 0 {
		t.Errorf("%d NOPs survived compaction", n)
	}
	for i, in := range prog.Instructions() {
		if in.Op.IsBranch() && (in.Arg < 0 || in.Arg > prog.Len()) {
			t.Errorf("instruction %d targets %d, outside the program", i, in.Arg)
		}
	}
}
