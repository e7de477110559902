package compiler

import "github.com/chazu/tapevm/pkg/bytecode"

// Idiom pattern tables. All of them run on pass 1 output, so runs of '+' and
// '-' have already become ADD_V/SUB_V and a lone '-' is SUB_V 1.

// Clear loops: [-] and [+].
var clearPatterns = []Pattern{
	{Any(bytecode.OpBranchZ), Strict(bytecode.OpSubV, 1), Any(bytecode.OpBranchNZ)},
	{Any(bytecode.OpBranchZ), Strict(bytecode.OpAddV, 1), Any(bytecode.OpBranchNZ)},
}

// mulHead matches the opening of a multiplication loop that decrements its
// source cell first: [-
var mulHead = Pattern{Any(bytecode.OpBranchZ), Strict(bytecode.OpSubV, 1)}

// mulOpen matches the opening of a multiplication loop that decrements its
// source cell last.
var mulOpen = Pattern{Any(bytecode.OpBranchZ)}

// mulTerms are the (move, update) pairs a multiplication loop body is made of.
// Arguments are wildcards; the probe reads them back out of the match.
var mulTerms = []Pattern{
	{Any(bytecode.OpAddP), Any(bytecode.OpAddV)},
	{Any(bytecode.OpAddP), Any(bytecode.OpSubV)},
	{Any(bytecode.OpSubP), Any(bytecode.OpAddV)},
	{Any(bytecode.OpSubP), Any(bytecode.OpSubV)},
}

// returnMove is the pointer move that undoes a total displacement of disp.
func returnMove(disp int) PatternRule {
	if disp > 0 {
		return Strict(bytecode.OpSubP, disp)
	}
	return Strict(bytecode.OpAddP, -disp)
}

// mulTail matches the end of a multiplication loop whose body has moved the
// pointer by disp. decrementLast selects the form that decrements the source
// cell just before the closing branch.
func mulTail(disp int, decrementLast bool) Pattern {
	if decrementLast {
		return Pattern{returnMove(disp), Strict(bytecode.OpSubV, 1), Any(bytecode.OpBranchNZ)}
	}
	return Pattern{returnMove(disp), Any(bytecode.OpBranchNZ)}
}
