package compiler

import "github.com/chazu/tapevm/pkg/bytecode"

// ---------------------------------------------------------------------------
// Pass 1: combine runs
// ---------------------------------------------------------------------------

// CombineRuns rewrites every maximal run of identical '+', '-', '>' or '<'
// instructions into one counted instruction followed by NOPs, so the program
// keeps its length and every branch target stays valid. A run of one becomes
// a counted instruction with Arg 1. It returns the number of runs longer than
// one.
func CombineRuns(p *bytecode.Program) int {
	folded := 0

	for i := 0; i < p.Len(); {
		op := p.At(i).Op
		counted, ok := op.Counted()
		if !ok {
			i++
			continue
		}

		j := i + 1
		for j < p.Len() && p.At(j).Op == op {
			j++
		}

		p.Set(i, bytecode.Instruction{Op: counted, Arg: j - i})
		p.Fill(i+1, j, bytecode.Instruction{Op: bytecode.OpNop})
		if j-i > 1 {
			folded++
		}
		i = j
	}

	return folded
}

// ---------------------------------------------------------------------------
// Pass 2: idiom rewriting
// ---------------------------------------------------------------------------

// IdiomStats counts the rewrites made by RewriteIdioms.
type IdiomStats struct {
	ClearLoops int
	MulLoops   int
	MulTerms   int
}

// RewriteIdioms replaces clear loops with CLEAR and multiplication loops with
// a MUL per target cell followed by CLEAR. Rewritten windows keep their
// length; the leftover slots become NOPs. Running it twice changes nothing
// the second time.
func RewriteIdioms(p *bytecode.Program) IdiomStats {
	var stats IdiomStats

	for i := 0; i < p.Len(); {
		if n := rewriteClearLoop(p, i); n > 0 {
			stats.ClearLoops++
			i += n
			continue
		}
		if n, terms := rewriteMulLoop(p, i); n > 0 {
			stats.MulLoops++
			stats.MulTerms += terms
			i += n
			continue
		}
		i++
	}

	return stats
}

func rewriteClearLoop(p *bytecode.Program, pos int) int {
	for _, pattern := range clearPatterns {
		if n := Match(p, pos, pattern); n > 0 {
			compilerLog.Debugf("clear loop at 0x%08X: %v", pos, pattern)
			p.Substitute(pos, window(n, bytecode.Instruction{Op: bytecode.OpClear})...)
			return n
		}
	}
	return 0
}

// mulTerm is one target cell of a multiplication loop.
type mulTerm struct {
	offset int // displacement from the source cell
	factor int // amount added per unit of the source cell
}

// rewriteMulLoop probes for a multiplication loop at pos. Nothing is written
// until the whole loop has been validated. It returns the window length and
// the number of MUL instructions emitted, or zeros if pos does not start a
// multiplication loop.
func rewriteMulLoop(p *bytecode.Program, pos int) (int, int) {
	decrementLast := false
	cursor := pos
	if n := Match(p, pos, mulHead); n > 0 {
		cursor += n
	} else if n := Match(p, pos, mulOpen); n > 0 {
		decrementLast = true
		cursor += n
	} else {
		return 0, 0
	}

	var terms []mulTerm
	disp := 0
	var end int

	for {
		cursor = skipNops(p, cursor)
		if len(terms) > 0 {
			if n := Match(p, cursor, mulTail(disp, decrementLast)); n > 0 {
				end = cursor + n
				break
			}
		}

		n := matchMulTerm(p, cursor)
		if n == 0 {
			return 0, 0
		}

		pair := operands(p, cursor, n)
		move, update := pair[0], pair[1]
		if move.Op == bytecode.OpAddP {
			disp += move.Arg
		} else {
			disp -= move.Arg
		}

		// A body that passes back over the source cell would change the
		// loop counter; leave it alone.
		if disp == 0 {
			return 0, 0
		}

		factor := update.Arg
		if update.Op == bytecode.OpSubV {
			factor = -factor
		}
		terms = append(terms, mulTerm{offset: disp, factor: factor})
		cursor += n
	}

	// Commit
	ir := make([]bytecode.Instruction, 0, len(terms)+1)
	for _, term := range terms {
		ir = append(ir, bytecode.Instruction{Op: bytecode.OpMul, Arg: term.factor, Offset: term.offset})
	}
	ir = append(ir, bytecode.Instruction{Op: bytecode.OpClear})
	compilerLog.Debugf("mul loop at 0x%08X: %d terms", pos, len(terms))
	p.Substitute(pos, window(end-pos, ir...)...)

	return end - pos, len(terms)
}

// window pads ir with NOPs to n instructions.
func window(n int, ir ...bytecode.Instruction) []bytecode.Instruction {
	out := make([]bytecode.Instruction, n)
	copy(out, ir)
	return out
}

func matchMulTerm(p *bytecode.Program, pos int) int {
	for _, pattern := range mulTerms {
		if n := Match(p, pos, pattern); n > 0 {
			return n
		}
	}
	return 0
}

func skipNops(p *bytecode.Program, pos int) int {
	for pos < p.Len() && p.At(pos).Op == bytecode.OpNop {
		pos++
	}
	return pos
}

// ---------------------------------------------------------------------------
// Pass 3: compaction and relinking
// ---------------------------------------------------------------------------

// CompactStats counts the changes made by Compact.
type CompactStats struct {
	Removed int // NOPs dropped
	Demoted int // counted instructions with Arg 1 turned back into unit steps
}

// Compact removes every NOP, demotes counted instructions whose count is 1 to
// their unit form and rewrites branch targets through an old-to-new address
// map. A target that pointed at a NOP lands on the next surviving
// instruction.
func Compact(p *bytecode.Program) CompactStats {
	var stats CompactStats

	n := p.Len()
	remap := make([]int, n+1)

	w := 0
	for r := 0; r < n; r++ {
		remap[r] = w

		ins := p.At(r)
		if ins.Op == bytecode.OpNop {
			stats.Removed++
			continue
		}
		if ins.Arg == 1 {
			if unit, ok := ins.Op.Unit(); ok {
				ins = bytecode.Instruction{Op: unit}
				stats.Demoted++
			}
		}

		p.Set(w, ins)
		w++
	}
	remap[n] = w

	for i := 0; i < w; i++ {
		ins := p.At(i)
		if ins.Op.IsBranch() && ins.Arg >= 0 && ins.Arg <= n {
			ins.Arg = remap[ins.Arg]
			p.Set(i, ins)
		}
	}

	p.Truncate(w)
	return stats
}
