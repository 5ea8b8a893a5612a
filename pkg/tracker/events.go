package tracker

// Event is a message from the device session to the presentation layer.
// Events are produced by the reader goroutine (and by session operations
// reporting their own status) and are immutable once created.
type Event interface {
	event()
}

// Info is a human-readable status line.
type Info struct{ Text string }

// Warn is a non-fatal condition worth surfacing to the operator.
type Warn struct{ Text string }

// Error is a failure report. It does not necessarily end the session.
type Error struct{ Text string }

// Disconnected is emitted exactly once when the connection is lost.
type Disconnected struct{ Reason string }

// PositionUpdate is a POS:<float> line from the device.
type PositionUpdate struct{ Value float64 }

// SensorUpdate is a SENSOR:<pin>:<state> or SENSOR_STATE:<pin>:<state> line.
type SensorUpdate struct {
	Pin   string
	State string
}

// AngleUpdate is an ANGLE:<float> line from the device.
type AngleUpdate struct{ Value float64 }

// Raw carries an unclassified device line verbatim. The reader emits a
// paired Info right after it for plain-text displays.
type Raw struct{ Text string }

func (Info) event()           {}
func (Warn) event()           {}
func (Error) event()          {}
func (Disconnected) event()   {}
func (PositionUpdate) event() {}
func (SensorUpdate) event()   {}
func (AngleUpdate) event()    {}
func (Raw) event()            {}
