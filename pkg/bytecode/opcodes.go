package bytecode

import (
	"fmt"
	"slices"
)

// Opcode represents a tape machine instruction.
type Opcode byte

const (
	// ========================================================================
	// Source-level operations (one per symbol)
	// ========================================================================

	OpNop      Opcode = 0x00 // No operation; placeholder left by rewrites
	OpIn       Opcode = 0x01 // ,  read one input byte into the current cell
	OpOut      Opcode = 0x02 // .  write the current cell
	OpIncV     Opcode = 0x03 // +  current cell += 1
	OpDecV     Opcode = 0x04 // -  current cell -= 1
	OpAddV     Opcode = 0x05 // current cell += Arg
	OpSubV     Opcode = 0x06 // current cell -= Arg
	OpIncP     Opcode = 0x07 // >  data pointer += 1 (clamped)
	OpDecP     Opcode = 0x08 // <  data pointer -= 1 (clamped)
	OpAddP     Opcode = 0x09 // data pointer += Arg (dropped when out of range)
	OpSubP     Opcode = 0x0A // data pointer -= Arg (dropped when out of range)
	OpBranchZ  Opcode = 0x0B // [  jump to Arg if current cell is zero
	OpBranchNZ Opcode = 0x0C // ]  jump to Arg if current cell is nonzero
	OpJmp      Opcode = 0x0D // unconditional jump to Arg
	OpHalt     Opcode = 0x0E // stop execution

	// ========================================================================
	// Idiom instructions produced by the optimizer
	// ========================================================================

	OpClear Opcode = 0x0F // [-]  current cell = 0
	OpMul   Opcode = 0x10 // tape[dp+Offset] += current cell * Arg
)

// OpcodeInfo provides metadata about each opcode for disassembly and the optimizer.
type OpcodeInfo struct {
	Name    string // Human-readable name
	Symbol  byte   // Source symbol, 0 when the opcode has none
	Counted bool   // Arg is a repeat count
	Branch  bool   // Arg is an instruction address
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop: {"NOP", 0, false, false},
	OpIn:  {"IN", ',', false, false},
	OpOut: {"OUT", '.', false, false},

	// Cell arithmetic
	OpIncV: {"INC_V", '+', false, false},
	OpDecV: {"DEC_V", '-', false, false},
	OpAddV: {"ADD_V", 0, true, false},
	OpSubV: {"SUB_V", 0, true, false},

	// Pointer movement
	OpIncP: {"INC_P", '>', false, false},
	OpDecP: {"DEC_P", '<', false, false},
	OpAddP: {"ADD_P", 0, true, false},
	OpSubP: {"SUB_P", 0, true, false},

	// Control flow
	OpBranchZ:  {"BRANCH_Z", '[', false, true},
	OpBranchNZ: {"BRANCH_NZ", ']', false, true},
	OpJmp:      {"JMP", 0, false, true},
	OpHalt:     {"HALT", 0, false, false},

	// Idioms
	OpClear: {"CLEAR", 0, false, false},
	OpMul:   {"MUL", 0, false, false},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsBranch returns true if the opcode's argument is a jump target.
func (op Opcode) IsBranch() bool {
	return GetOpcodeInfo(op).Branch
}

// IsCounted returns true if the opcode's argument is a repeat count.
func (op Opcode) IsCounted() bool {
	return GetOpcodeInfo(op).Counted
}

// Counted returns the counted form of a unit-step opcode (INC_V -> ADD_V and
// so on). The second result is false for opcodes without a counted form.
func (op Opcode) Counted() (Opcode, bool) {
	switch op {
	case OpIncV:
		return OpAddV, true
	case OpDecV:
		return OpSubV, true
	case OpIncP:
		return OpAddP, true
	case OpDecP:
		return OpSubP, true
	}
	return op, false
}

// Unit returns the single-step form of a counted opcode (ADD_V -> INC_V and
// so on). The second result is false for opcodes without a unit form.
func (op Opcode) Unit() (Opcode, bool) {
	switch op {
	case OpAddV:
		return OpIncV, true
	case OpSubV:
		return OpDecV, true
	case OpAddP:
		return OpIncP, true
	case OpSubP:
		return OpDecP, true
	}
	return op, false
}

// symbolTable maps source symbols to their opcode.
var symbolTable = func() map[byte]Opcode {
	m := make(map[byte]Opcode)
	for op, info := range opcodeInfoTable {
		if info.Symbol != 0 {
			m[info.Symbol] = op
		}
	}
	return m
}()

// OpcodeForSymbol returns the opcode a source symbol compiles to.
// The second result is false for comment bytes.
func OpcodeForSymbol(ch byte) (Opcode, bool) {
	op, ok := symbolTable[ch]
	return op, ok
}

// IsSymbol reports whether ch is one of the eight instruction symbols.
func IsSymbol(ch byte) bool {
	_, ok := symbolTable[ch]
	return ok
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	slices.Sort(opcodes)
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
