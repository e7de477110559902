package bytecode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/tliron/commonlog"
)

// DefaultTapeSize is the number of cells on the VM tape.
const DefaultTapeSize = 65536

// ErrTapeFault signals an instruction addressed memory outside the tape or
// jumped outside the program. The compiler never produces such programs; the
// fault is only reachable through hand-built or corrupted IR.
var ErrTapeFault = errors.New("vm fault")

// ErrStepLimit is returned when a VM with a StepLimit dispatches that many
// instructions without finishing.
var ErrStepLimit = errors.New("step limit reached")

var vmLog = commonlog.GetLogger("tapevm.vm")

// flusher is implemented by buffered writers. The VM flushes pending output
// before blocking on input so prompts become visible.
type flusher interface {
	Flush() error
}

// Stats summarizes one execution.
type Stats struct {
	Steps       uint64            // Instructions dispatched
	OutputBytes uint64            // Bytes written by OUT
	InputBytes  uint64            // Bytes consumed by IN
	OpCounts    map[Opcode]uint64 // Dispatch count per opcode (nonzero entries only)
}

// VM executes a compiled Program over a fixed tape of signed byte cells.
//
// Pointer moves follow two different boundary policies. Unit steps (INC_P,
// DEC_P) clamp: a move that would leave the tape leaves the pointer on the
// edge cell. Counted steps (ADD_P, SUB_P) are dropped entirely when the
// destination is off the tape. The asymmetry is deliberate and observable.
type VM struct {
	program *Program
	pc      int
	dp      int
	tape    []int8

	in  io.ByteReader
	out io.Writer
	buf [1]byte

	steps    uint64
	written  uint64
	read     uint64
	opCounts [256]uint64

	// Trace logs every dispatched instruction at debug level.
	Trace bool

	// StepLimit stops Run with ErrStepLimit after this many instructions.
	// Zero means no limit.
	StepLimit uint64

	// Profiler, when set, is told about every taken loop back edge.
	Profiler *Profiler
}

// NewVM creates a VM that owns program, with a DefaultTapeSize tape, no input
// and discarded output.
func NewVM(program *Program) *VM {
	return NewVMWithTapeSize(program, DefaultTapeSize)
}

// NewVMWithTapeSize creates a VM with a tape of size cells. Sizes below one
// fall back to DefaultTapeSize.
func NewVMWithTapeSize(program *Program, size int) *VM {
	if size < 1 {
		size = DefaultTapeSize
	}
	return &VM{
		program: program,
		tape:    make([]int8, size),
		in:      bufio.NewReader(eofReader{}),
		out:     io.Discard,
	}
}

// SetInput sets the stream consumed by IN.
func (vm *VM) SetInput(r io.Reader) {
	if br, ok := r.(io.ByteReader); ok {
		vm.in = br
		return
	}
	vm.in = bufio.NewReader(r)
}

// SetOutput sets the stream written by OUT.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// Program returns the program owned by the VM.
func (vm *VM) Program() *Program {
	return vm.program
}

// PC returns the program counter.
func (vm *VM) PC() int {
	return vm.pc
}

// Pointer returns the data pointer.
func (vm *VM) Pointer() int {
	return vm.dp
}

// Cell returns the value of tape cell i.
func (vm *VM) Cell(i int) int8 {
	return vm.tape[i]
}

// TapeSize returns the number of cells on the tape.
func (vm *VM) TapeSize() int {
	return len(vm.tape)
}

// Reset clears the tape, registers and statistics so the program can run again.
func (vm *VM) Reset() {
	clear(vm.tape)
	vm.pc = 0
	vm.dp = 0
	vm.steps = 0
	vm.written = 0
	vm.read = 0
	vm.opCounts = [256]uint64{}
}

// Stats returns execution counters accumulated since creation or the last Reset.
func (vm *VM) Stats() Stats {
	s := Stats{
		Steps:       vm.steps,
		OutputBytes: vm.written,
		InputBytes:  vm.read,
		OpCounts:    make(map[Opcode]uint64, OpcodeCount()),
	}
	for op, n := range vm.opCounts {
		if n > 0 {
			s.OpCounts[Opcode(op)] = n
		}
	}
	return s
}

// Run executes the program until HALT, an unknown opcode, or the end of the
// code. It returns an error only when reading input or writing output fails,
// on ErrTapeFault, or on ErrStepLimit.
func (vm *VM) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			re, ok := r.(runtime.Error)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("%w at pc=0x%08X dp=%d: %v", ErrTapeFault, vm.pc, vm.dp, re)
		}
	}()

	code := vm.program.code
	tape := vm.tape
	size := len(tape)

	for vm.pc < len(code) {
		if vm.StepLimit > 0 && vm.steps >= vm.StepLimit {
			return fmt.Errorf("%w (%d) at pc=0x%08X", ErrStepLimit, vm.StepLimit, vm.pc)
		}

		ins := code[vm.pc]
		vm.steps++
		vm.opCounts[ins.Op]++

		if vm.Trace {
			vmLog.Debugf("[%08X] %-9s arg=%d dp=%d cell=%d", vm.pc, ins.Op, ins.Arg, vm.dp, tape[vm.dp])
		}

		switch ins.Op {
		case OpNop:
			// Do nothing

		case OpIn:
			if f, ok := vm.out.(flusher); ok {
				if err := f.Flush(); err != nil {
					return fmt.Errorf("flush output: %w", err)
				}
			}
			// End of input leaves the cell unchanged.
			b, err := vm.in.ReadByte()
			if err == nil {
				tape[vm.dp] = int8(b)
				vm.read++
			} else if err != io.EOF {
				return fmt.Errorf("read input: %w", err)
			}

		case OpOut:
			vm.buf[0] = byte(tape[vm.dp])
			if _, err := vm.out.Write(vm.buf[:]); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			vm.written++

		case OpIncV:
			tape[vm.dp]++

		case OpDecV:
			tape[vm.dp]--

		case OpAddV:
			tape[vm.dp] += int8(ins.Arg)

		case OpSubV:
			tape[vm.dp] -= int8(ins.Arg)

		case OpIncP:
			if vm.dp < size-1 {
				vm.dp++
			}

		case OpDecP:
			if vm.dp > 0 {
				vm.dp--
			}

		case OpAddP:
			if next := vm.dp + ins.Arg; next >= 0 && next < size {
				vm.dp = next
			}

		case OpSubP:
			if next := vm.dp - ins.Arg; next >= 0 && next < size {
				vm.dp = next
			}

		case OpBranchZ:
			if tape[vm.dp] == 0 {
				vm.pc = ins.Arg
				continue
			}

		case OpBranchNZ:
			if tape[vm.dp] != 0 {
				if vm.Profiler != nil {
					vm.Profiler.RecordBackEdge(vm.pc, ins.Arg)
				}
				vm.pc = ins.Arg
				continue
			}

		case OpJmp:
			vm.pc = ins.Arg
			continue

		case OpHalt:
			return nil

		case OpClear:
			tape[vm.dp] = 0

		case OpMul:
			// A zero source cell is a loop that never runs; its target
			// cells are not touched.
			if c := tape[vm.dp]; c != 0 {
				tape[vm.dp+ins.Offset] += c * int8(ins.Arg)
			}

		default:
			return nil
		}

		vm.pc++
	}

	return nil
}

// eofReader is an input stream that is always exhausted.
type eofReader struct{}

func (eofReader) Read([]byte) (int, error) {
	return 0, io.EOF
}
