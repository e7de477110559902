package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/tapevm/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Pattern matching over the IR
// ---------------------------------------------------------------------------

// MatchMode selects how a PatternRule compares against an instruction.
type MatchMode uint8

const (
	// MatchStrict requires both opcode and argument to be equal.
	MatchStrict MatchMode = iota
	// MatchOpcode requires only the opcode to be equal; the argument is a
	// wildcard.
	MatchOpcode
)

func (m MatchMode) String() string {
	switch m {
	case MatchStrict:
		return "strict"
	case MatchOpcode:
		return "opcode"
	}
	return "unknown"
}

// Accepts reports whether ins satisfies want under this mode.
func (m MatchMode) Accepts(want, ins bytecode.Instruction) bool {
	switch m {
	case MatchStrict:
		return ins.Op == want.Op && ins.Arg == want.Arg
	case MatchOpcode:
		return ins.Op == want.Op
	}
	return false
}

// PatternRule is one element of a Pattern.
type PatternRule struct {
	Want bytecode.Instruction
	Mode MatchMode
}

// Pattern is an ordered sequence of rules matched against consecutive
// non-NOP instructions.
type Pattern []PatternRule

func (r PatternRule) String() string {
	if r.Mode == MatchOpcode {
		return fmt.Sprintf("%v(%v)", r.Want.Op, r.Mode)
	}
	return fmt.Sprintf("%v %d(%v)", r.Want.Op, r.Want.Arg, r.Mode)
}

func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, r := range p {
		parts[i] = r.String()
	}
	return strings.Join(parts, " ")
}

// Strict builds a rule that matches op with exactly arg.
func Strict(op bytecode.Opcode, arg int) PatternRule {
	return PatternRule{Want: bytecode.Instruction{Op: op, Arg: arg}, Mode: MatchStrict}
}

// Any builds a rule that matches op with any argument.
func Any(op bytecode.Opcode) PatternRule {
	return PatternRule{Want: bytecode.Instruction{Op: op}, Mode: MatchOpcode}
}

// Match tests pattern against the program starting at pos and returns the
// number of instructions the match spans, or 0 if it fails. The first rule
// must match the instruction at pos itself; NOPs between later rules are
// skipped and counted in the returned length.
func Match(p *bytecode.Program, pos int, pattern Pattern) int {
	if len(pattern) == 0 || pos < 0 {
		return 0
	}

	i := pos
	for k, rule := range pattern {
		if k > 0 {
			for i < p.Len() && p.At(i).Op == bytecode.OpNop {
				i++
			}
		}
		if i >= p.Len() {
			return 0
		}
		if !rule.Mode.Accepts(rule.Want, p.At(i)) {
			return 0
		}
		i++
	}

	return i - pos
}

// operands returns the non-NOP instructions in [pos, pos+n).
func operands(p *bytecode.Program, pos, n int) []bytecode.Instruction {
	out := make([]bytecode.Instruction, 0, n)
	for i := pos; i < pos+n; i++ {
		if ins := p.At(i); ins.Op != bytecode.OpNop {
			out = append(out, ins)
		}
	}
	return out
}
