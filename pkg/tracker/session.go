// Package tracker implements the device session for the solar-tracker
// controller: the background event reader, the synchronous command
// dispatcher, the sensor snapshot and the periodic tracking loop.
package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/helioctl/helioctl/pkg/link"
)

const (
	// readPoll is how long one reader blocking read may last before the
	// loop re-checks for shutdown.
	readPoll = 200 * time.Millisecond

	// DefaultAckTimeout applies to Send calls that don't set a timeout.
	DefaultAckTimeout = 2 * time.Second

	// CommandAckTimeout is the policy timeout used by SendCommand, matching
	// the sequence controller's exchange budget.
	CommandAckTimeout = 3 * time.Second

	defaultEventBuffer = 256
	ackBuffer          = 64
)

// SessionConfig configures a device session.
type SessionConfig struct {
	Conn *link.Conn

	// Logger receives diagnostic traces (ACK payloads, dropped lines).
	// Defaults to slog.Default().
	Logger *slog.Logger

	// SensorDefault is reported for pins never observed; defaults to "0".
	SensorDefault string

	// EventBuffer is the display stream capacity; when full, the oldest
	// event is dropped in favor of the newest.
	EventBuffer int
}

// Session owns one open connection to the controller. It runs the event
// reader for the lifetime of the connection and serializes all command
// exchanges. At most one Session should be alive per physical port.
type Session struct {
	conn    *link.Conn
	log     *slog.Logger
	sensors *SensorState

	events chan Event
	acks   chan string

	// sendMu enforces single-flight command exchanges: one write and one
	// ACK wait at a time.
	sendMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	discOnce  sync.Once
}

// NewSession wraps an open connection and starts the event reader.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bufSize := cfg.EventBuffer
	if bufSize <= 0 {
		bufSize = defaultEventBuffer
	}

	s := &Session{
		conn:    cfg.Conn,
		log:     logger,
		sensors: NewSensorState(cfg.SensorDefault),
		events:  make(chan Event, bufSize),
		acks:    make(chan string, ackBuffer),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Events returns the display event stream. The channel is never closed;
// consumers should stop when they see a Disconnected event or after
// closing the session.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Sensors returns the session's sensor snapshot.
func (s *Session) Sensors() *SensorState {
	return s.sensors
}

// Connected reports whether the underlying connection is still open.
func (s *Session) Connected() bool {
	return !s.conn.Closed()
}

// Close shuts down the reader and closes the connection. No Disconnected
// event is emitted for a deliberate close.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// readLoop is the event reader: it classifies each inbound line and fans
// it out to the display stream and the ACK channel. It exits when the
// session closes or the connection fails.
func (s *Session) readLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		line, err := s.conn.ReadLine(readPoll)
		if err != nil {
			if errors.Is(err, link.ErrTimeout) {
				continue
			}
			select {
			case <-s.done: // deliberate close, not a failure
				return
			default:
			}
			s.emit(Error{Text: fmt.Sprintf("Serial read error: %v", err)})
			s.disconnect(fmt.Sprintf("serial read error: %v", err))
			return
		}
		if line == "" {
			continue
		}

		events := parseLine(line)
		if len(events) == 0 {
			s.log.Debug("dropped malformed line", "line", line)
			continue
		}
		for _, ev := range events {
			if su, ok := ev.(SensorUpdate); ok {
				s.sensors.set(su.Pin, su.State)
			}
			s.emit(ev)
		}
		s.pushAck(line)
	}
}

// SendOptions controls one command exchange.
type SendOptions struct {
	ExpectAck bool
	Timeout   time.Duration // per-attempt ACK wait; DefaultAckTimeout if zero
	Retries   int           // extra attempts after the first
}

// Send writes a command line and, if an ACK is expected, waits for the
// device's response, retrying up to Retries extra times on a rejection or
// timeout. The acknowledgment payload is returned verbatim on success.
//
// Exchanges are serialized: concurrent Send calls queue on the session's
// single-flight lock. A write-level I/O failure is never retried; it tears
// the connection down and returns immediately.
func (s *Session) Send(cmd string, opt SendOptions) (string, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.conn.Closed() {
		s.emit(Warn{Text: fmt.Sprintf("Not connected: cannot send '%s'", cmd)})
		return "", ErrNotConnected
	}

	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}

	var lastReason string
	for attempt := 0; attempt <= opt.Retries; attempt++ {
		// A stale line from an earlier exchange must not satisfy this one.
		s.drainAcks()

		if err := s.conn.WriteLine(cmd); err != nil {
			if errors.Is(err, link.ErrClosed) {
				s.emit(Warn{Text: fmt.Sprintf("Not connected: cannot send '%s'", cmd)})
				return "", ErrNotConnected
			}
			s.emit(Error{Text: fmt.Sprintf("Failed to write to serial port: %v", err)})
			s.disconnect(fmt.Sprintf("serial write failed: %v", err))
			return "", err
		}
		if !opt.ExpectAck {
			return "", nil
		}

		timer := time.NewTimer(timeout)
		select {
		case text := <-s.acks:
			timer.Stop()
			text = strings.TrimSpace(text)
			// ERR covers both ERROR and ERR prefixed rejections.
			if strings.HasPrefix(strings.ToUpper(text), "ERR") {
				lastReason = text
				continue
			}
			s.log.Debug("ack", "command", cmd, "payload", text)
			return text, nil
		case <-timer.C:
			lastReason = "ack_timeout"
			continue
		}
	}

	err := &SendError{Command: cmd, Reason: lastReason}
	s.emit(Error{Text: err.Error()})
	return "", err
}

// SendCommand sends cmd under the standard ACK policy: commands listed in
// NeedsAck wait for acknowledgment with a 3s timeout and one retry,
// everything else is fire-and-forget.
func (s *Session) SendCommand(cmd string) (string, error) {
	return s.Send(cmd, SendOptions{
		ExpectAck: NeedsAck(cmd),
		Timeout:   CommandAckTimeout,
		Retries:   1,
	})
}

// disconnect tears down the connection and emits the Disconnected event,
// which must be observed at most once per session.
func (s *Session) disconnect(reason string) {
	s.conn.Close()
	s.discOnce.Do(func() {
		s.emit(Disconnected{Reason: reason})
	})
}

// emit delivers an event to the display stream, dropping the oldest
// buffered event when the consumer is behind.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		select {
		case <-s.events:
		default:
		}
		select {
		case s.events <- ev:
		default:
		}
	}
}

// Emit publishes a status event on behalf of a collaborator (e.g. the
// sequence runner) so it interleaves with device events in order.
func (s *Session) Emit(ev Event) {
	s.emit(ev)
}

func (s *Session) pushAck(line string) {
	select {
	case s.acks <- line:
	default:
		select {
		case <-s.acks:
		default:
		}
		select {
		case s.acks <- line:
		default:
		}
	}
}

func (s *Session) drainAcks() {
	for {
		select {
		case <-s.acks:
		default:
			return
		}
	}
}
