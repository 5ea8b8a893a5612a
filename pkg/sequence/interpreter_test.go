package sequence

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/helioctl/helioctl/pkg/tracker"
)

type fakeSender struct {
	mu     sync.Mutex
	cmds   []string
	fail   map[string]error
	onSend func(cmd string)
}

func (f *fakeSender) SendCommand(cmd string) (string, error) {
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook(cmd)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[cmd]; ok {
		return "", err
	}
	return "OK", nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cmds...)
}

type fakeSensors map[string]string

func (f fakeSensors) Get(pin string) string {
	if v, ok := f[pin]; ok {
		return v
	}
	return "0"
}

func (f fakeSensors) Snapshot() map[string]string { return f }

// sinkRecorder collects everything the runner pushes to the display.
type sinkRecorder struct {
	mu     sync.Mutex
	events []tracker.Event
}

func (s *sinkRecorder) sink(ev tracker.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *sinkRecorder) all() []tracker.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tracker.Event(nil), s.events...)
}

func (s *sinkRecorder) texts() []string {
	var out []string
	for _, ev := range s.all() {
		switch e := ev.(type) {
		case tracker.Info:
			out = append(out, e.Text)
		case tracker.Warn:
			out = append(out, e.Text)
		case tracker.Error:
			out = append(out, e.Text)
		}
	}
	return out
}

func (s *sinkRecorder) contains(substr string) bool {
	for _, text := range s.texts() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

// testTiming keeps movement-detection waits short.
var testTiming = Timing{
	InitialWait:     80 * time.Millisecond,
	StallWindow:     100 * time.Millisecond,
	MovementTimeout: 600 * time.Millisecond,
}

func newTestRunner(sender *fakeSender, sensors fakeSensors, events <-chan tracker.Event, rec *sinkRecorder) *Runner {
	return NewRunner(RunnerConfig{
		Sender:  sender,
		Sensors: sensors,
		Events:  events,
		Sink:    rec.sink,
		Timing:  testTiming,
	})
}

func run(t *testing.T, lines []string, sensors fakeSensors) (*fakeSender, *sinkRecorder, error) {
	t.Helper()
	sender := &fakeSender{}
	rec := &sinkRecorder{}
	r := newTestRunner(sender, sensors, nil, rec)
	err := r.Run(Parse(strings.Join(lines, "\n")))
	return sender, rec, err
}

func TestLoopBodyRunsExactlyNTimes(t *testing.T) {
	sender, _, err := run(t, []string{"LOOP_START:2", "SET_OUTPUT:4:1", "LOOP_END"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sent(); len(got) != 2 {
		t.Errorf("body executed %d times, want 2: %v", len(got), got)
	}

	sender, _, err = run(t, []string{"LOOP_START:5", "SET_OUTPUT:4:1", "LOOP_END"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sent(); len(got) != 5 {
		t.Errorf("body executed %d times, want 5", len(got))
	}
}

func TestLoopZeroAndNegativeClampToOnePass(t *testing.T) {
	for _, n := range []string{"0", "-3", "1"} {
		sender, _, err := run(t, []string{"LOOP_START:" + n, "SET_OUTPUT:4:1", "LOOP_END"}, nil)
		if err != nil {
			t.Fatalf("Run(LOOP_START:%s): %v", n, err)
		}
		if got := sender.sent(); len(got) != 1 {
			t.Errorf("LOOP_START:%s executed body %d times, want 1", n, len(got))
		}
	}
}

func TestNestedLoops(t *testing.T) {
	sender, _, err := run(t, []string{
		"LOOP_START:2",
		"LOOP_START:3",
		"SET_OUTPUT:4:1",
		"LOOP_END",
		"LOOP_END",
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sent(); len(got) != 6 {
		t.Errorf("nested body executed %d times, want 6", len(got))
	}
}

func TestIfSensorSkipsWhenUnseen(t *testing.T) {
	// Unseen pins default to LOW, so a HIGH condition skips the block.
	sender, _, err := run(t, []string{"IF_SENSOR:2:HIGH", "SET_OUTPUT:4:1", "ENDIF"}, fakeSensors{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sent(); len(got) != 0 {
		t.Errorf("skipped block sent %v, want none", got)
	}
}

func TestIfSensorExecutesWhenMet(t *testing.T) {
	sender, _, err := run(t, []string{"IF_SENSOR:2:HIGH", "SET_OUTPUT:4:1", "ENDIF"}, fakeSensors{"2": "1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sent(); len(got) != 1 {
		t.Errorf("sent %v, want the block body", got)
	}

	sender, _, err = run(t, []string{"IF_SENSOR:2:LOW", "SET_OUTPUT:4:1", "ENDIF"}, fakeSensors{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sent(); len(got) != 1 {
		t.Errorf("LOW condition on unseen pin should hold, sent %v", got)
	}
}

func TestNestedIfSkipsToMatchingEndif(t *testing.T) {
	// The outer false IF must jump past the *matching* ENDIF, not the
	// first one, so the trailing command still runs.
	sender, _, err := run(t, []string{
		"IF_SENSOR:1:HIGH",
		"IF_SENSOR:2:HIGH",
		"SET_OUTPUT:4:1",
		"ENDIF",
		"SET_OUTPUT:5:1",
		"ENDIF",
		"SET_OUTPUT:6:1",
	}, fakeSensors{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sent(); len(got) != 1 || got[0] != "SET_OUTPUT:6:1" {
		t.Errorf("sent %v, want only SET_OUTPUT:6:1", got)
	}

	// Outer true, inner false: only the outer tail runs.
	sender, _, err = run(t, []string{
		"IF_SENSOR:1:HIGH",
		"IF_SENSOR:2:HIGH",
		"SET_OUTPUT:4:1",
		"ENDIF",
		"SET_OUTPUT:5:1",
		"ENDIF",
	}, fakeSensors{"1": "1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sent(); len(got) != 1 || got[0] != "SET_OUTPUT:5:1" {
		t.Errorf("sent %v, want only SET_OUTPUT:5:1", got)
	}
}

func TestVariableSubstitution(t *testing.T) {
	sender, _, err := run(t, []string{"SET_VAR:speed:75", "SET_SPEED:0:$speed"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sent(); len(got) != 1 || got[0] != "SET_SPEED:0:75" {
		t.Errorf("sent %v, want SET_SPEED:0:75", got)
	}
}

func TestVariableOverwrite(t *testing.T) {
	sender, _, err := run(t, []string{
		"SET_VAR:speed:75",
		"SET_VAR:speed:20",
		"SET_SPEED:0:$speed",
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sent(); got[len(got)-1] != "SET_SPEED:0:20" {
		t.Errorf("sent %v, want SET_SPEED:0:20 last", got)
	}
}

func TestUnresolvedVariableHalts(t *testing.T) {
	sender, rec, err := run(t, []string{"SET_SPEED:0:$missing", "SET_OUTPUT:4:1"}, nil)

	var halt *HaltError
	if !errors.As(err, &halt) {
		t.Fatalf("Run = %v, want *HaltError", err)
	}
	if !errors.Is(err, ErrUnresolvedVariable) {
		t.Errorf("Run = %v, want ErrUnresolvedVariable", err)
	}
	if halt.PC != 0 {
		t.Errorf("halt PC = %d, want 0", halt.PC)
	}
	if got := sender.sent(); len(got) != 0 {
		t.Errorf("sent %v, want nothing after the halt", got)
	}
	if !rec.contains("unresolved variable") {
		t.Error("missing unresolved-variable report")
	}
}

func TestVariablesResolveInsideDirectives(t *testing.T) {
	// LOOP_START and WAIT arguments may be variables too.
	sender, _, err := run(t, []string{
		"SET_VAR:n:3",
		"LOOP_START:$n",
		"SET_OUTPUT:4:1",
		"LOOP_END",
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sender.sent(); len(got) != 3 {
		t.Errorf("body executed %d times, want 3", len(got))
	}
}

func TestMismatchedLoopEndHalts(t *testing.T) {
	sender, _, err := run(t, []string{"LOOP_END", "SET_OUTPUT:4:1"}, nil)

	if !errors.Is(err, ErrMismatchedLoopEnd) {
		t.Fatalf("Run = %v, want ErrMismatchedLoopEnd", err)
	}
	if got := sender.sent(); len(got) != 0 {
		t.Errorf("sent %v, want nothing after the halt", got)
	}
}

func TestMismatchedIfHalts(t *testing.T) {
	_, _, err := run(t, []string{"IF_SENSOR:2:HIGH", "SET_OUTPUT:4:1"}, fakeSensors{})

	if !errors.Is(err, ErrMismatchedIf) {
		t.Fatalf("Run = %v, want ErrMismatchedIf", err)
	}
}

func TestMalformedInstructionHalts(t *testing.T) {
	tests := [][]string{
		{"LOOP_START:abc", "LOOP_END"},
		{"WAIT:soon"},
		{"SET_VAR:lonely"},
		{"IF_SENSOR:2", "ENDIF"},
	}
	for _, lines := range tests {
		_, _, err := run(t, lines, fakeSensors{})
		if !errors.Is(err, ErrMalformedInstruction) {
			t.Errorf("Run(%v) = %v, want ErrMalformedInstruction", lines, err)
		}
	}
}

func TestUnclosedLoopWarnsButSucceeds(t *testing.T) {
	_, rec, err := run(t, []string{"LOOP_START:2", "SET_OUTPUT:4:1"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rec.contains("not closed with LOOP_END") {
		t.Error("missing unclosed-loop warning")
	}
}

func TestCommentsSkipButKeepProgramCounter(t *testing.T) {
	_, rec, err := run(t, []string{"# heading", "SET_OUTPUT:4:1"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rec.contains("Executing [PC:1]: SET_OUTPUT:4:1") {
		t.Errorf("comment must occupy PC 0; trace: %v", rec.texts())
	}
}

func TestDeviceFailureHalts(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{
		"SET_OUTPUT:4:1": errors.New("ack_timeout"),
	}}
	rec := &sinkRecorder{}
	r := newTestRunner(sender, nil, nil, rec)

	err := r.Run(Parse("SET_OUTPUT:4:1\nSET_OUTPUT:5:1"))

	var halt *HaltError
	if !errors.As(err, &halt) {
		t.Fatalf("Run = %v, want *HaltError", err)
	}
	if got := sender.sent(); len(got) != 1 {
		t.Errorf("sent %v, want only the failing command", got)
	}
}

func TestWaitSleeps(t *testing.T) {
	start := time.Now()
	_, _, err := run(t, []string{"WAIT:0.15"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 140*time.Millisecond {
		t.Errorf("WAIT:0.15 finished after %v", elapsed)
	}
}

func TestMovementCompletionAfterStallWindow(t *testing.T) {
	events := make(chan tracker.Event, 16)

	// Position traffic starts only once the command is on the wire, then
	// goes silent: the device stops reporting when the actuator settles.
	sender := &fakeSender{onSend: func(string) {
		events <- tracker.PositionUpdate{Value: 1.0}
		events <- tracker.Info{Text: "first"}
		events <- tracker.PositionUpdate{Value: 2.0}
		events <- tracker.Info{Text: "second"}
	}}
	rec := &sinkRecorder{}
	r := newTestRunner(sender, nil, events, rec)

	start := time.Now()
	if err := r.Run(Parse("MOVE_DIST:0:100")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(start)

	if !rec.contains("appears complete") {
		t.Errorf("missing completion report; trace: %v", rec.texts())
	}
	if rec.contains("Possible stall") {
		t.Errorf("quiet period misreported as stall; trace: %v", rec.texts())
	}
	if elapsed < testTiming.StallWindow {
		t.Errorf("completed after %v, before the stall window elapsed", elapsed)
	}

	// Interleaved non-position events must reach the display in order.
	var first, second = -1, -1
	for i, text := range rec.texts() {
		if text == "first" {
			first = i
		}
		if text == "second" {
			second = i
		}
	}
	if first < 0 || second < 0 {
		t.Fatalf("buffered events were swallowed; trace: %v", rec.texts())
	}
	if first > second {
		t.Error("buffered events replayed out of order")
	}
}

func TestMovementStallWhenNoUpdates(t *testing.T) {
	events := make(chan tracker.Event, 1)

	sender := &fakeSender{}
	rec := &sinkRecorder{}
	r := newTestRunner(sender, nil, events, rec)

	// The stall report is advisory: the next instruction still runs.
	if err := r.Run(Parse("MOVE_DIST:0:100\nSET_OUTPUT:4:1")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rec.contains("Possible stall") {
		t.Errorf("missing stall report; trace: %v", rec.texts())
	}
	if got := sender.sent(); len(got) != 2 {
		t.Errorf("sent %v, want both commands despite the stall", got)
	}
}

func TestMovementTimeout(t *testing.T) {
	events := make(chan tracker.Event, 16)
	stop := make(chan struct{})
	defer close(stop)

	// Keep position updates flowing past the movement timeout.
	go func() {
		ticker := time.NewTicker(30 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case events <- tracker.PositionUpdate{Value: 1.0}:
				default:
				}
			case <-stop:
				return
			}
		}
	}()

	sender := &fakeSender{}
	rec := &sinkRecorder{}
	r := newTestRunner(sender, nil, events, rec)

	start := time.Now()
	if err := r.Run(Parse("MOVE_DIST:0:100")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(start)

	if !rec.contains("Movement timeout") {
		t.Errorf("missing timeout report; trace: %v", rec.texts())
	}
	if elapsed < testTiming.MovementTimeout {
		t.Errorf("gave up after %v, before the movement timeout", elapsed)
	}
}
