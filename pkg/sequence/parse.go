// Package sequence parses and executes tracker command sequences: small
// line-oriented programs mixing device commands with loops, sensor
// conditionals, timed waits and variables.
package sequence

import (
	"strings"
)

// Kind tags an instruction variant.
type Kind int

const (
	// KindDevice is a raw command forwarded to the device.
	KindDevice Kind = iota
	KindComment
	KindSetVar
	KindIfSensor
	KindEndIf
	KindLoopStart
	KindLoopEnd
	KindWait
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindComment:
		return "comment"
	case KindSetVar:
		return "SET_VAR"
	case KindIfSensor:
		return "IF_SENSOR"
	case KindEndIf:
		return "ENDIF"
	case KindLoopStart:
		return "LOOP_START"
	case KindLoopEnd:
		return "LOOP_END"
	case KindWait:
		return "WAIT"
	}
	return "unknown"
}

// Instruction is one program step. Raw keeps the full instruction text;
// tokens and $name references stay unresolved until execution.
type Instruction struct {
	Kind Kind
	Raw  string
	Line int // 1-based line in the source text
}

// Program is a parsed sequence, immutable during execution.
type Program []Instruction

// Parse classifies the program text in a single pass. Blank lines are
// dropped; comment lines are kept so program counters match the visible
// text. Argument values are validated at execution time, after variable
// resolution.
func Parse(text string) Program {
	var prog Program
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		in := Instruction{Raw: line, Line: i + 1}

		switch {
		case strings.HasPrefix(line, "#"):
			in.Kind = KindComment
		case strings.HasPrefix(line, "SET_VAR:"):
			in.Kind = KindSetVar
		case strings.HasPrefix(line, "IF_SENSOR:"):
			in.Kind = KindIfSensor
		case line == "ENDIF":
			in.Kind = KindEndIf
		case strings.HasPrefix(line, "LOOP_START:"):
			in.Kind = KindLoopStart
		case line == "LOOP_END":
			in.Kind = KindLoopEnd
		case strings.HasPrefix(line, "WAIT:"):
			in.Kind = KindWait
		default:
			in.Kind = KindDevice
		}

		prog = append(prog, in)
	}
	return prog
}

// Validate is a structural lint usable before a run: it checks that every
// ENDIF and LOOP_END has a matching opener and that nothing is left open.
// Run does not require it; runtime execution stays strict on its own.
func (p Program) Validate() error {
	ifDepth, loopDepth := 0, 0
	for _, in := range p {
		switch in.Kind {
		case KindIfSensor:
			ifDepth++
		case KindEndIf:
			ifDepth--
			if ifDepth < 0 {
				return &HaltError{PC: -1, Instruction: in.Raw, Err: ErrMismatchedIf}
			}
		case KindLoopStart:
			loopDepth++
		case KindLoopEnd:
			loopDepth--
			if loopDepth < 0 {
				return &HaltError{PC: -1, Instruction: in.Raw, Err: ErrMismatchedLoopEnd}
			}
		}
	}
	if ifDepth != 0 {
		return &HaltError{PC: -1, Instruction: "", Err: ErrMismatchedIf}
	}
	if loopDepth != 0 {
		return &HaltError{PC: -1, Instruction: "", Err: ErrUnclosedLoop}
	}
	return nil
}
