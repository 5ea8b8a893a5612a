package sequence

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/helioctl/helioctl/pkg/tracker"
)

// Sender issues device commands under the standard ACK policy.
// *tracker.Session satisfies it.
type Sender interface {
	SendCommand(cmd string) (string, error)
}

// SensorReader is the read-only sensor snapshot the interpreter consults
// for IF_SENSOR conditions. *tracker.SensorState satisfies it.
type SensorReader interface {
	Get(pin string) string
	Snapshot() map[string]string
}

// Timing governs movement-completion detection.
type Timing struct {
	// InitialWait is how long to wait for the first position update after
	// a movement command before reporting a possible stall.
	InitialWait time.Duration
	// StallWindow is the quiet period with no position updates after which
	// ongoing movement is considered complete.
	StallWindow time.Duration
	// MovementTimeout bounds the whole detection wait.
	MovementTimeout time.Duration
}

// DefaultTiming matches the stock configuration.
func DefaultTiming() Timing {
	return Timing{
		InitialWait:     5 * time.Second,
		StallWindow:     3 * time.Second,
		MovementTimeout: 120 * time.Second,
	}
}

// RunnerConfig wires a Runner to its collaborators.
type RunnerConfig struct {
	Sender  Sender
	Sensors SensorReader

	// Events is the live device event stream. The runner owns consumption
	// of it for the duration of a run and forwards everything it takes to
	// Sink, so the display misses nothing.
	Events <-chan tracker.Event

	// Sink receives the runner's own status events plus every device
	// event drained from Events, in order.
	Sink func(tracker.Event)

	Timing Timing
	Logger *slog.Logger
}

// Runner executes a parsed Program with a program-counter loop. A Runner
// performs one run at a time; the caller must not start a second run while
// one is active.
type Runner struct {
	sender  Sender
	sensors SensorReader
	events  <-chan tracker.Event
	sink    func(tracker.Event)
	timing  Timing
	log     *slog.Logger
}

type loopFrame struct {
	start     int
	remaining int
}

// NewRunner creates a sequence runner.
func NewRunner(cfg RunnerConfig) *Runner {
	sink := cfg.Sink
	if sink == nil {
		sink = func(tracker.Event) {}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timing := cfg.Timing
	if timing == (Timing{}) {
		timing = DefaultTiming()
	}
	return &Runner{
		sender:  cfg.Sender,
		sensors: cfg.Sensors,
		events:  cfg.Events,
		sink:    sink,
		timing:  timing,
		log:     logger,
	}
}

// Run executes prog to completion. It returns nil on normal termination
// (including the unclosed-loops warning case) and a *HaltError when the
// program stops on a structural defect, an unresolved variable or a failed
// device exchange. Device state already applied is not unwound.
func (r *Runner) Run(prog Program) error {
	r.sink(tracker.Info{Text: "Starting custom sequence..."})
	if r.sensors != nil {
		r.sink(tracker.Info{Text: fmt.Sprintf("Initial sensor states: %v", r.sensors.Snapshot())})
	}

	vars := make(map[string]string)
	var loops []loopFrame

	pc := 0
	for pc < len(prog) {
		r.drainEvents()

		in := prog[pc]
		if in.Kind == KindComment {
			pc++
			continue
		}

		tokens, err := resolveTokens(in.Raw, vars)
		if err != nil {
			r.sink(tracker.Error{Text: fmt.Sprintf("Halting due to unresolved variable in command: %s", in.Raw)})
			return r.halt(pc, in, err)
		}
		text := strings.Join(tokens, ":")
		r.sink(tracker.Info{Text: fmt.Sprintf("Executing [PC:%d]: %s", pc, text)})
		r.log.Debug("executing instruction", "pc", pc, "kind", in.Kind.String(), "text", text)

		switch in.Kind {
		case KindSetVar:
			if len(tokens) < 3 {
				return r.haltMalformed(pc, in)
			}
			name := tokens[1]
			value := strings.Join(tokens[2:], ":")
			vars[name] = value
			r.sink(tracker.Info{Text: fmt.Sprintf("Set variable $%s = %s", name, value)})

		case KindIfSensor:
			if len(tokens) != 3 {
				return r.haltMalformed(pc, in)
			}
			pin := tokens[1]
			expected := "0"
			if strings.EqualFold(tokens[2], "HIGH") {
				expected = "1"
			}
			current := "0"
			if r.sensors != nil {
				current = r.sensors.Get(pin)
			}
			met := current == expected
			r.sink(tracker.Info{Text: fmt.Sprintf(
				"IF condition: Pin %s state is '%s', expected '%s'. Condition is %t.",
				pin, current, expected, met)})
			if !met {
				end := findMatchingEndIf(prog, pc)
				if end < 0 {
					r.sink(tracker.Error{Text: fmt.Sprintf("Mismatched IF at PC %d has no ENDIF. Halting.", pc)})
					return r.halt(pc, in, ErrMismatchedIf)
				}
				// Land on the ENDIF; the pc advance below steps past it.
				pc = end
			}

		case KindEndIf:
			// Marker only.

		case KindLoopStart:
			if len(tokens) != 2 {
				return r.haltMalformed(pc, in)
			}
			n, err := strconv.Atoi(tokens[1])
			if err != nil {
				return r.haltMalformed(pc, in)
			}
			// The pass about to run counts as the first iteration.
			remaining := n - 1
			if remaining < 0 {
				remaining = 0
			}
			loops = append(loops, loopFrame{start: pc, remaining: remaining})

		case KindLoopEnd:
			if len(loops) == 0 {
				r.sink(tracker.Error{Text: "Mismatched LOOP_END found. Halting sequence."})
				return r.halt(pc, in, ErrMismatchedLoopEnd)
			}
			top := &loops[len(loops)-1]
			if top.remaining > 0 {
				top.remaining--
				pc = top.start
			} else {
				loops = loops[:len(loops)-1]
			}

		case KindWait:
			if len(tokens) != 2 {
				return r.haltMalformed(pc, in)
			}
			secs, err := strconv.ParseFloat(tokens[1], 64)
			if err != nil {
				return r.haltMalformed(pc, in)
			}
			r.sink(tracker.Info{Text: fmt.Sprintf("Waiting for %g second(s)...", secs)})
			r.wait(time.Duration(secs * float64(time.Second)))

		case KindDevice:
			if _, err := r.sender.SendCommand(text); err != nil {
				r.sink(tracker.Error{Text: fmt.Sprintf("Failed to send command '%s'. Halting sequence.", text)})
				return r.halt(pc, in, err)
			}
			if tracker.IsMovement(text) {
				r.awaitMovement(text)
			}
		}

		pc++
	}

	r.drainEvents()
	if len(loops) > 0 {
		r.sink(tracker.Warn{Text: "Sequence finished, but some loops were not closed with LOOP_END."})
	} else {
		r.sink(tracker.Info{Text: "Custom sequence finished successfully."})
	}
	return nil
}

// resolveTokens splits an instruction into its colon-delimited tokens and
// substitutes $name references. A reference to an absent variable is a
// fatal authoring error, never skipped or defaulted.
func resolveTokens(raw string, vars map[string]string) ([]string, error) {
	parts := strings.Split(raw, ":")
	out := make([]string, len(parts))
	for i, p := range parts {
		if strings.HasPrefix(p, "$") {
			name := p[1:]
			v, ok := vars[name]
			if !ok {
				return nil, fmt.Errorf("%w: $%s", ErrUnresolvedVariable, name)
			}
			out[i] = v
			continue
		}
		out[i] = p
	}
	return out, nil
}

// findMatchingEndIf scans forward from the IF at start and returns the
// index of its depth-0 ENDIF, or -1. Any IF_-prefixed instruction opens a
// nesting level.
func findMatchingEndIf(prog Program, start int) int {
	depth := 1
	for i := start + 1; i < len(prog); i++ {
		if strings.HasPrefix(prog[i].Raw, "IF_") {
			depth++
		} else if prog[i].Kind == KindEndIf {
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func (r *Runner) halt(pc int, in Instruction, err error) error {
	return &HaltError{PC: pc, Instruction: in.Raw, Err: err}
}

func (r *Runner) haltMalformed(pc int, in Instruction) error {
	r.sink(tracker.Error{Text: fmt.Sprintf("Invalid %s format: %s. Halting sequence.", in.Kind, in.Raw)})
	return r.halt(pc, in, ErrMalformedInstruction)
}

// wait sleeps for d in slices, draining device events to the sink so the
// display keeps flowing during long waits. The wait is not cancellable.
func (r *Runner) wait(d time.Duration) {
	deadline := time.Now().Add(d)
	for {
		r.drainEvents()
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		slice := 100 * time.Millisecond
		if remaining < slice {
			slice = remaining
		}
		time.Sleep(slice)
	}
}

// drainEvents forwards any pending device events to the sink without
// blocking.
func (r *Runner) drainEvents() {
	if r.events == nil {
		return
	}
	for {
		select {
		case ev := <-r.events:
			r.sink(ev)
		default:
			return
		}
	}
}

// awaitMovement infers completion of a movement command from position
// traffic: the device reports no synchronous "done", so movement is judged
// complete once position updates go quiet for a stall window. Non-position
// events taken from the stream while watching are kept in a side buffer
// and replayed to the sink in their original order; the detection window
// must not swallow unrelated events. All outcomes are advisory and the
// sequence continues.
func (r *Runner) awaitMovement(cmd string) {
	if r.events == nil {
		return
	}

	var buffered []tracker.Event
	replay := func() {
		for _, ev := range buffered {
			r.sink(ev)
		}
		buffered = nil
	}

	overall := time.Now().Add(r.timing.MovementTimeout)

	// Wait for evidence that movement started.
	sawUpdate := false
	var lastUpdate time.Time
	initialDeadline := time.Now().Add(r.timing.InitialWait)
	for !sawUpdate {
		remaining := time.Until(initialDeadline)
		if remaining <= 0 {
			break
		}
		ev, ok := r.nextEvent(remaining)
		if !ok {
			break
		}
		if _, isPos := ev.(tracker.PositionUpdate); isPos {
			sawUpdate = true
			lastUpdate = time.Now()
		} else {
			buffered = append(buffered, ev)
		}
	}
	if !sawUpdate {
		r.sink(tracker.Error{Text: fmt.Sprintf("No movement updates observed after sending '%s'. Possible stall.", cmd)})
		replay()
		return
	}

	// Movement is underway: complete once updates stop for the stall
	// window, or give up at the overall deadline.
	for {
		if !time.Now().Before(overall) {
			r.sink(tracker.Error{Text: fmt.Sprintf("Movement timeout for '%s'. Possible stall.", cmd)})
			break
		}
		quiet := r.timing.StallWindow - time.Since(lastUpdate)
		if quiet <= 0 {
			r.sink(tracker.Info{Text: fmt.Sprintf("Movement for '%s' appears complete.", cmd)})
			break
		}
		wait := quiet
		if until := time.Until(overall); until < wait {
			wait = until
		}
		ev, ok := r.nextEvent(wait)
		if !ok {
			continue
		}
		if _, isPos := ev.(tracker.PositionUpdate); isPos {
			lastUpdate = time.Now()
		} else {
			buffered = append(buffered, ev)
		}
	}

	replay()
}

// nextEvent receives one event, waiting up to timeout.
func (r *Runner) nextEvent(timeout time.Duration) (tracker.Event, bool) {
	if timeout <= 0 {
		select {
		case ev := <-r.events:
			return ev, true
		default:
			return nil, false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-r.events:
		return ev, true
	case <-timer.C:
		return nil, false
	}
}
