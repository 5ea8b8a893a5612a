// Package link owns the serial connection to the tracker board and frames
// the wire protocol as newline-terminated UTF-8 lines.
package link

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// BaudRate is fixed by the controller firmware.
const BaudRate = 115200

// Port is the minimal serial interface the channel needs. It allows using
// either a real OS serial port or a scripted port in tests.
type Port interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Open opens the named serial port and wraps it in a Conn.
func Open(name string) (*Conn, error) {
	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}

	port.ResetInputBuffer()
	port.ResetOutputBuffer()

	return NewConn(port), nil
}
