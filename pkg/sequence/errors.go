package sequence

import (
	"errors"
	"fmt"
)

// Structural and authoring defects that halt a running sequence. They are
// never retried; the program text itself is wrong.
var (
	ErrUnresolvedVariable   = errors.New("unresolved variable")
	ErrMalformedInstruction = errors.New("malformed instruction")
	ErrMismatchedIf         = errors.New("mismatched IF")
	ErrMismatchedLoopEnd    = errors.New("mismatched LOOP_END")
	// ErrUnclosedLoop is only reported by Validate; at runtime an unclosed
	// loop ends the sequence with a warning, not an error.
	ErrUnclosedLoop = errors.New("unclosed loop")
)

// HaltError reports why a sequence stopped, with the offending instruction
// and program counter. PC is -1 when raised by Validate.
type HaltError struct {
	PC          int
	Instruction string
	Err         error
}

func (e *HaltError) Error() string {
	if e.PC < 0 {
		return fmt.Sprintf("sequence invalid at %q: %v", e.Instruction, e.Err)
	}
	return fmt.Sprintf("sequence halted at PC %d (%q): %v", e.PC, e.Instruction, e.Err)
}

func (e *HaltError) Unwrap() error { return e.Err }
