package tracker

import (
	"fmt"
	"strings"
)

// ackCommands lists the command words whose exchanges wait for a device
// acknowledgment. Everything else is fire-and-forget.
var ackCommands = map[string]bool{
	"MOTOR_CMD":     true,
	"MOVE_TIME":     true,
	"MOVE_DIST":     true,
	"TURN":          true,
	"SET_CAL":       true,
	"STOP_ALL":      true,
	"GET_CAL":       true,
	"TEST_MOTOR":    true,
	"PIN_TEST":      true,
	"SENSOR_REPORT": true,
}

// NeedsAck reports whether cmd is expected to be acknowledged.
func NeedsAck(cmd string) bool {
	word, _, _ := strings.Cut(cmd, ":")
	return ackCommands[strings.ToUpper(word)]
}

// movementPrefixes mark commands that start physical movement; the
// sequence interpreter watches position updates after sending one.
var movementPrefixes = []string{"MOVE_DIST:", "MOVE_TIME:", "TURN:", "MOTOR_CMD:"}

// IsMovement reports whether cmd starts physical movement.
func IsMovement(cmd string) bool {
	for _, p := range movementPrefixes {
		if strings.HasPrefix(cmd, p) {
			return true
		}
	}
	return false
}

// Normalize validates a user-entered command and maps aliases, returning
// the wire command and whether it expects an ACK. ok is false for a
// malformed command that must not be sent.
func Normalize(text string) (cmd string, expectAck bool, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, false
	}
	parts := strings.Split(text, ":")
	base := strings.ToUpper(parts[0])

	switch base {
	case "FORWARD", "FWD":
		return "MOTOR_CMD:0:FWD", true, true
	case "REVERSE", "REV":
		return "MOTOR_CMD:0:REV", true, true

	case "MOTOR_CMD":
		if len(parts) < 3 {
			return "", false, false
		}
		sub := strings.ToUpper(parts[2])
		switch sub {
		case "FWD", "REV", "STOP", "HOME":
			return fmt.Sprintf("MOTOR_CMD:%s:%s", parts[1], sub), true, true
		}
		return "", false, false

	case "MOVE_TIME", "MOVE_DIST", "TURN":
		return text, true, true

	case "TEST_MOTOR":
		if len(parts) < 2 {
			return "", false, false
		}
		return text, true, true

	case "PIN_TEST":
		return text, true, true

	case "SENSOR_REPORT":
		if len(parts) < 2 {
			return "", false, false
		}
		v := strings.ToUpper(parts[1])
		if v != "ON" && v != "OFF" {
			return "", false, false
		}
		return "SENSOR_REPORT:" + v, true, true

	case "GET_CAL", "SET_CAL", "STOP_ALL":
		return text, true, true
	}

	// Unknown commands pass through without an ACK.
	return text, false, true
}

// Home requests the homing sequence for motor 0.
func (s *Session) Home() error {
	s.emit(Info{Text: "Requesting homing sequence for motor 0..."})
	if _, err := s.SendCommand("MOTOR_CMD:0:HOME"); err != nil {
		s.emit(Error{Text: "Failed to send HOME command."})
		return err
	}
	return nil
}

// RunMotor runs motor 0 "forward" or "reverse".
func (s *Session) RunMotor(direction string) error {
	var cmd, msg string
	switch direction {
	case "forward":
		cmd, msg = "MOTOR_CMD:0:FWD", "Running motor 0 forward..."
	case "reverse":
		cmd, msg = "MOTOR_CMD:0:REV", "Running motor 0 in reverse..."
	default:
		err := fmt.Errorf("invalid motor direction: %s", direction)
		s.emit(Error{Text: err.Error()})
		return err
	}
	s.emit(Info{Text: msg})
	if _, err := s.SendCommand(cmd); err != nil {
		s.emit(Error{Text: fmt.Sprintf("Failed to send %s command.", cmd)})
		return err
	}
	return nil
}

// StopMotor stops motor 0.
func (s *Session) StopMotor() error {
	s.emit(Info{Text: "Stopping motor 0..."})
	if _, err := s.SendCommand("MOTOR_CMD:0:STOP"); err != nil {
		s.emit(Error{Text: "Failed to send STOP command."})
		return err
	}
	return nil
}

// SetSpeed sets motor id's speed as a percentage; id "*" addresses every
// motor.
func (s *Session) SetSpeed(id string, pct int) error {
	if pct < 0 || pct > 100 {
		err := fmt.Errorf("speed %d out of range 0-100", pct)
		s.emit(Error{Text: err.Error()})
		return err
	}
	s.emit(Info{Text: fmt.Sprintf("Setting motor %s speed to %d%%...", id, pct)})
	if _, err := s.SendCommand(fmt.Sprintf("SET_SPEED:%s:%d", id, pct)); err != nil {
		s.emit(Error{Text: "Failed to send SET_SPEED command."})
		return err
	}
	return nil
}

// StopAll halts every motor immediately.
func (s *Session) StopAll() error {
	_, err := s.SendCommand("STOP_ALL")
	return err
}

// ReadCalibration asks the device for its calibration table and returns
// the raw response payload.
func (s *Session) ReadCalibration() (string, error) {
	payload, err := s.SendCommand("GET_CAL")
	if err != nil {
		s.emit(Error{Text: fmt.Sprintf("Failed to get calibration: %v", err)})
		return "", err
	}
	s.emit(Info{Text: "Calibration response: " + payload})
	return payload, nil
}

// PinTest runs the device pin self-test.
func (s *Session) PinTest() (string, error) {
	return s.SendCommand("PIN_TEST")
}

// SetSensorReport toggles the device's periodic sensor report stream.
func (s *Session) SetSensorReport(on bool) error {
	cmd := "SENSOR_REPORT:OFF"
	if on {
		cmd = "SENSOR_REPORT:ON"
	}
	_, err := s.SendCommand(cmd)
	return err
}
