package tracker

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when an operation needs an open connection
// and there is none.
var ErrNotConnected = errors.New("not connected")

// SendError reports a command exchange that exhausted all attempts. Reason
// is the last failure: "ack_timeout" or the device's error line verbatim.
type SendError struct {
	Command string
	Reason  string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %q failed: %s", e.Command, e.Reason)
}
