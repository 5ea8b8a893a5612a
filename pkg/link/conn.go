package link

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrClosed is returned once the connection is closed, whether by
	// Close or by an I/O failure.
	ErrClosed = errors.New("connection closed")
	// ErrTimeout is returned by ReadLine when no complete line arrived
	// within the timeout.
	ErrTimeout = errors.New("read timeout")
)

// pollInterval bounds how long a single blocking port read may take, so
// ReadLine can honor its deadline and Close is noticed promptly.
const pollInterval = 100 * time.Millisecond

// Conn is the line channel over an open serial port. It is the sole owner
// of the port: one goroutine may call ReadLine while another calls
// WriteLine, but neither method may be called concurrently with itself.
type Conn struct {
	port      Port
	closed    atomic.Bool
	closeOnce sync.Once

	// carry holds bytes read past the last newline, consumed by the next
	// ReadLine call.
	carry []byte
	tmp   [256]byte
}

// NewConn wraps an already-open port.
func NewConn(port Port) *Conn {
	return &Conn{port: port}
}

// Closed reports whether the connection has been torn down.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// Close tears down the connection. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.port.Close()
	})
	return err
}

// WriteLine writes s followed by a newline. On an I/O failure the
// connection transitions to closed and the underlying error is returned;
// callers must not retry at this level.
func (c *Conn) WriteLine(s string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if _, err := c.port.Write([]byte(strings.TrimSpace(s) + "\n")); err != nil {
		c.Close()
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}

// ReadLine returns the next newline-terminated line, without its line
// ending, waiting up to timeout for it to complete. Returns ErrTimeout if
// no full line arrived in time and ErrClosed once the connection is down.
func (c *Conn) ReadLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)

	for {
		if i := bytes.IndexByte(c.carry, '\n'); i >= 0 {
			line := string(bytes.TrimRight(c.carry[:i], "\r"))
			c.carry = append(c.carry[:0], c.carry[i+1:]...)
			return line, nil
		}

		if c.closed.Load() {
			return "", ErrClosed
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ErrTimeout
		}
		poll := pollInterval
		if remaining < poll {
			poll = remaining
		}

		if err := c.port.SetReadTimeout(poll); err != nil {
			c.Close()
			return "", fmt.Errorf("set read timeout: %w", err)
		}
		n, err := c.port.Read(c.tmp[:])
		if err != nil {
			c.Close()
			return "", fmt.Errorf("read line: %w", err)
		}
		c.carry = append(c.carry, c.tmp[:n]...)
	}
}
