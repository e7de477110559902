package compiler

import "github.com/chazu/tapevm/pkg/bytecode"

// ---------------------------------------------------------------------------
// Bracket matching
// ---------------------------------------------------------------------------

// NoMatch is returned by FindClosing and FindOpening when the bracket at the
// given position has no partner.
const NoMatch = -1

// FindClosing returns the position of the ']' matching the '[' at pos.
//
// Comment bytes between the two brackets are not counted, so the result is
// the partner's position as it would be in a source with those comments
// stripped. Subtracting the number of comment bytes that precede pos turns
// the result into an instruction address.
func FindClosing(src []byte, pos int) int {
	if pos < 0 || pos >= len(src) {
		return NoMatch
	}

	depth := 0
	skipped := 0
	for i := pos + 1; i < len(src); i++ {
		ch := src[i]
		if !bytecode.IsSymbol(ch) {
			skipped++
			continue
		}

		switch ch {
		case '[':
			depth++
		case ']':
			if depth == 0 {
				return i - skipped
			}
			depth--
		}
	}

	return NoMatch
}

// FindOpening returns the position of the '[' matching the ']' at pos, with
// the same comment correction as FindClosing: comment bytes between the two
// brackets are added back so the result lines up with the caller's count of
// comments before pos.
func FindOpening(src []byte, pos int) int {
	if pos < 0 || pos >= len(src) {
		return NoMatch
	}

	depth := 0
	skipped := 0
	for i := pos - 1; i >= 0; i-- {
		ch := src[i]
		if !bytecode.IsSymbol(ch) {
			skipped++
			continue
		}

		switch ch {
		case ']':
			depth++
		case '[':
			if depth == 0 {
				return i + skipped
			}
			depth--
		}
	}

	return NoMatch
}
