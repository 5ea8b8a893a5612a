package tracker

import (
	"strconv"
	"strings"
)

// parseLine classifies one inbound line into the events it produces.
// Malformed payloads (bad float, missing fields) yield no events; the
// protocol drops them silently rather than failing the session.
func parseLine(text string) []Event {
	switch {
	case strings.HasPrefix(text, "POS:"):
		val, err := strconv.ParseFloat(text[len("POS:"):], 64)
		if err != nil {
			return nil
		}
		return []Event{PositionUpdate{Value: val}}

	case strings.HasPrefix(text, "SENSOR:"), strings.HasPrefix(text, "SENSOR_STATE:"):
		// Pin sits at index 1 for both spellings.
		parts := strings.Split(text, ":")
		if len(parts) < 3 {
			return nil
		}
		return []Event{SensorUpdate{Pin: parts[1], State: parts[2]}}

	case strings.HasPrefix(text, "ANGLE:"):
		val, err := strconv.ParseFloat(text[len("ANGLE:"):], 64)
		if err != nil {
			return nil
		}
		return []Event{AngleUpdate{Value: val}}

	default:
		return []Event{Raw{Text: text}, Info{Text: text}}
	}
}
