// Package interp executes tape language source directly, without building IR.
//
// It is the reference the compiled pipeline is checked against: the cell and
// pointer rules match the VM running an unoptimized program (8-bit wrapping
// cells, unit pointer steps clamped to the tape, end of input leaves the cell
// unchanged).
package interp

import (
	"bufio"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/tapevm/compiler"
	"github.com/chazu/tapevm/pkg/bytecode"
)

var interpLog = commonlog.GetLogger("tapevm.interp")

// Interpreter runs one source program.
type Interpreter struct {
	src   []byte
	jumps []int // partner offset for each bracket, -1 elsewhere

	tape []int8
	pc   int
	dp   int

	in  io.ByteReader
	out io.Writer
	buf [1]byte

	steps   uint64
	written uint64
	read    uint64
}

// New prepares src for execution on a tape of tapeSize cells. A tapeSize
// below 1 selects bytecode.DefaultTapeSize. Unmatched brackets are reported
// the same way the compiler reports them.
func New(src []byte, tapeSize int) (*Interpreter, error) {
	if tapeSize < 1 {
		tapeSize = bytecode.DefaultTapeSize
	}

	jumps, err := matchBrackets(src)
	if err != nil {
		return nil, err
	}

	return &Interpreter{
		src:   src,
		jumps: jumps,
		tape:  make([]int8, tapeSize),
		in:    bufio.NewReader(eofReader{}),
		out:   io.Discard,
	}, nil
}

func matchBrackets(src []byte) ([]int, error) {
	jumps := make([]int, len(src))
	var stack []int

	for i, ch := range src {
		jumps[i] = -1
		switch ch {
		case '[':
			stack = append(stack, i)
		case ']':
			if len(stack) == 0 {
				return nil, fmt.Errorf("offset %d: %w", i, compiler.ErrUnmatchedBracket)
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			jumps[open] = i
			jumps[i] = open
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("offset %d: %w", stack[len(stack)-1], compiler.ErrUnmatchedBracket)
	}

	return jumps, nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// SetInput sets the reader ',' takes bytes from.
func (it *Interpreter) SetInput(r io.Reader) {
	if br, ok := r.(io.ByteReader); ok {
		it.in = br
		return
	}
	it.in = bufio.NewReader(r)
}

// SetOutput sets the writer '.' sends bytes to.
func (it *Interpreter) SetOutput(w io.Writer) {
	it.out = w
}

// Pointer returns the data pointer.
func (it *Interpreter) Pointer() int { return it.dp }

// Cell returns the value of tape cell i.
func (it *Interpreter) Cell(i int) int8 { return it.tape[i] }

// Steps returns the number of symbols executed, comments excluded.
func (it *Interpreter) Steps() uint64 { return it.steps }

// OutputBytes returns the number of bytes written.
func (it *Interpreter) OutputBytes() uint64 { return it.written }

// InputBytes returns the number of bytes read.
func (it *Interpreter) InputBytes() uint64 { return it.read }

// Run executes the program to completion.
func (it *Interpreter) Run() error {
	last := len(it.tape) - 1

	for it.pc < len(it.src) {
		switch it.src[it.pc] {
		case '+':
			it.tape[it.dp]++
		case '-':
			it.tape[it.dp]--
		case '>':
			if it.dp < last {
				it.dp++
			}
		case '<':
			if it.dp > 0 {
				it.dp--
			}
		case '.':
			it.buf[0] = byte(it.tape[it.dp])
			if _, err := it.out.Write(it.buf[:]); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			it.written++
		case ',':
			if f, ok := it.out.(interface{ Flush() error }); ok {
				if err := f.Flush(); err != nil {
					return fmt.Errorf("flush output: %w", err)
				}
			}
			b, err := it.in.ReadByte()
			if err == nil {
				it.tape[it.dp] = int8(b)
				it.read++
			} else if err != io.EOF {
				return fmt.Errorf("read input: %w", err)
			}
		case '[':
			if it.tape[it.dp] == 0 {
				it.pc = it.jumps[it.pc]
			}
		case ']':
			if it.tape[it.dp] != 0 {
				it.pc = it.jumps[it.pc]
			}
		default:
			it.pc++
			continue
		}
		it.steps++
		it.pc++
	}

	interpLog.Debugf("interpreted %d steps, %d bytes out", it.steps, it.written)
	return nil
}
