package tracker

import (
	"context"
	"time"
)

// trackInterval is how often the device is poked to perform one tracking
// adjustment. The device itself reads its sensors and moves the motors.
const trackInterval = 10

// RunTracking runs the automatic sun-tracking loop until ctx is cancelled
// or a send fails. The interval wait checks for cancellation every second,
// so stopping takes effect within a second.
func (s *Session) RunTracking(ctx context.Context) error {
	s.emit(Info{Text: "Sun tracking sequence started."})
	defer s.emit(Info{Text: "Sun tracking sequence stopped."})

	for {
		if _, err := s.Send("TRACK_SUN", SendOptions{}); err != nil {
			s.emit(Error{Text: "Failed to send TRACK_SUN command. Stopping sequence."})
			return err
		}

		for i := 0; i < trackInterval; i++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}
