// Package bytecode implements the bytecode compiler (C6): lowering
// bake-resolved IR to BC, with variables replaced by local-slot indices.
package bytecode

import (
	"github.com/alekratz/sbl/internal/token"
	"github.com/alekratz/sbl/internal/value"
)

// Kind tags a BC instruction. SymJmp/SymJmpZ/Label are pre-resolution
// (label ids, as Int); Jmp/JmpZ carry an Address once C7's ABSOLUTE_JUMPS
// pass has run. Pop/Load carry an Address (local-slot index) from this
// stage onward.
type Kind int

const (
	Push       Kind = iota // Bundle holds one or more literal values (PushAll)
	PushL                  // append popped value to top-of-stack literal
	Pop                    // Val = Address(slot)
	PopN                   // Val = Int(n)
	PopDiscard             // no payload
	Store                  // Target = Address(slot), Val = literal
	Load                   // Val = Address(slot)
	SymJmp                 // Val = Int(label), unresolved
	SymJmpZ                // Val = Int(label), unresolved
	Jmp                    // Val = Address(instruction index), resolved
	JmpZ                   // Val = Address(instruction index), resolved
	Label                  // Val = Int(label); removed by ABSOLUTE_JUMPS
	Call                   // Val = Ident(name)
	Ret
	Nop
)

func (k Kind) String() string {
	names := [...]string{
		"PUSH", "PUSHL", "POP", "POPN", "POP_DISCARD", "STORE", "LOAD",
		"SYM_JMP", "SYM_JMPZ", "JMP", "JMPZ", "LABEL", "CALL", "RET", "NOP",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// Instr is a single BC instruction.
type Instr struct {
	Kind   Kind
	Val    value.Value   // primary scalar payload
	Bundle []value.Value // Push only: the PushAll bundle
	Target value.Value   // Store only: the local-slot Address being written
	Range  token.Range
}
