package tracker

import "sync"

// SensorState is the last-observed state of each sensor pin, updated by
// event consumption in the reader and read by the sequence interpreter.
type SensorState struct {
	mu     sync.RWMutex
	states map[string]string
	// def is reported for pins never seen; "0" (LOW) unless configured.
	def string
}

// NewSensorState creates an empty snapshot with the given default state.
func NewSensorState(def string) *SensorState {
	if def == "" {
		def = "0"
	}
	return &SensorState{states: make(map[string]string), def: def}
}

// Get returns the last observed state for pin, or the default if unseen.
func (s *SensorState) Get(pin string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[pin]; ok {
		return state
	}
	return s.def
}

// Snapshot returns a copy of all observed pin states.
func (s *SensorState) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.states))
	for pin, state := range s.states {
		out[pin] = state
	}
	return out
}

func (s *SensorState) set(pin, state string) {
	s.mu.Lock()
	s.states[pin] = state
	s.mu.Unlock()
}
