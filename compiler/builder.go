package compiler

import (
	"errors"
	"fmt"

	"github.com/chazu/tapevm/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// IR builder: source -> unoptimized Program
// ---------------------------------------------------------------------------

// ErrUnmatchedBracket is wrapped by the SyntaxError returned for a '[' or ']'
// without a partner.
var ErrUnmatchedBracket = errors.New("unmatched bracket")

// SyntaxError locates an unmatched bracket in the source.
type SyntaxError struct {
	Symbol byte
	Offset int // byte offset into the source
	Line   int // 1-based
	Column int // 1-based
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %v '%c'", e.Line, e.Column, ErrUnmatchedBracket, e.Symbol)
}

func (e *SyntaxError) Unwrap() error {
	return ErrUnmatchedBracket
}

func newSyntaxError(src []byte, offset int) *SyntaxError {
	line, col := 1, 1
	for _, ch := range src[:offset] {
		if ch == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &SyntaxError{Symbol: src[offset], Offset: offset, Line: line, Column: col}
}

// Build translates source into an unoptimized Program: one instruction per
// symbol, branch targets resolved, HALT appended. Bytes other than the eight
// symbols are comments. A limit above zero caps the number of instructions.
//
// On failure Build returns a nil Program.
func Build(src []byte, limit int) (*bytecode.Program, error) {
	prog := bytecode.NewProgramWithLimit(limit)

	// comments counts the non-symbol bytes seen so far; a symbol at source
	// offset i lands at instruction address i - comments.
	comments := 0

	for i, ch := range src {
		op, ok := bytecode.OpcodeForSymbol(ch)
		if !ok {
			comments++
			continue
		}

		arg := 0
		switch op {
		case bytecode.OpBranchZ:
			partner := FindClosing(src, i)
			if partner == NoMatch {
				return nil, newSyntaxError(src, i)
			}
			arg = partner + 1 - comments
		case bytecode.OpBranchNZ:
			partner := FindOpening(src, i)
			if partner == NoMatch {
				return nil, newSyntaxError(src, i)
			}
			arg = partner + 1 - comments
		}

		if err := prog.Emit(op, arg); err != nil {
			return nil, err
		}
	}

	// The VM stops at HALT; make sure every program ends with one.
	if err := prog.Emit(bytecode.OpHalt, 0); err != nil {
		return nil, err
	}

	return prog, nil
}
