// Package actuator drives the motorised window controller over its serial
// line protocol and feeds the device's events back into the control kernel.
package actuator

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/smartbuilding/climatectl/internal/kernel"
)

// The device speaks a newline-terminated ASCII protocol. Outbound commands:
//
//	SET_POS:<0..100>      window position percentage
//	MODE:<AUTOMATIC|MANUAL>
//	TEMP:<decimal, one fractional digit>
//	ALARM_STATE:<0|1>
//
// Inbound events:
//
//	MODE_CHANGED:<AUTOMATIC|MANUAL>   the operator pressed the mode button
//	POT:<0..100>                      the potentiometer moved

// EventKind discriminates the inbound event shapes.
type EventKind int

const (
	EventModeChanged EventKind = iota
	EventKnobMoved
)

// Event is a parsed device line.
type Event struct {
	Kind       EventKind
	Mode       kernel.Mode
	Percentage float64
}

// ParseEvent decodes one device line. The second return value is false for
// unknown or malformed lines, which callers ignore.
func ParseEvent(line string) (Event, bool) {
	switch {
	case strings.HasPrefix(line, "MODE_CHANGED:"):
		mode, ok := kernel.ParseMode(strings.TrimPrefix(line, "MODE_CHANGED:"))
		if !ok {
			return Event{}, false
		}
		return Event{Kind: EventModeChanged, Mode: mode}, true

	case strings.HasPrefix(line, "POT:"):
		value, err := strconv.Atoi(strings.TrimPrefix(line, "POT:"))
		if err != nil || value < 0 || value > 100 {
			return Event{}, false
		}
		return Event{Kind: EventKnobMoved, Percentage: float64(value)}, true

	default:
		return Event{}, false
	}
}

func formatPosition(opening float64) string {
	return fmt.Sprintf("SET_POS:%d", int(math.Round(opening*100)))
}

func formatMode(mode kernel.Mode) string {
	return "MODE:" + mode.String()
}

func formatTemperature(celsius float64) string {
	return fmt.Sprintf("TEMP:%.1f", celsius)
}

func formatAlarm(active bool) string {
	if active {
		return "ALARM_STATE:1"
	}
	return "ALARM_STATE:0"
}
