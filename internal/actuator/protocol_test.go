package actuator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartbuilding/climatectl/internal/kernel"
)

func TestParseEvent_ModeChanged(t *testing.T) {
	ev, ok := ParseEvent("MODE_CHANGED:MANUAL")
	require.True(t, ok)
	assert.Equal(t, EventModeChanged, ev.Kind)
	assert.Equal(t, kernel.ModeManual, ev.Mode)

	ev, ok = ParseEvent("MODE_CHANGED:AUTOMATIC")
	require.True(t, ok)
	assert.Equal(t, kernel.ModeAutomatic, ev.Mode)
}

func TestParseEvent_Knob(t *testing.T) {
	ev, ok := ParseEvent("POT:73")
	require.True(t, ok)
	assert.Equal(t, EventKnobMoved, ev.Kind)
	assert.Equal(t, 73.0, ev.Percentage)

	for _, line := range []string{"POT:0", "POT:100"} {
		_, ok := ParseEvent(line)
		assert.True(t, ok, line)
	}
}

func TestParseEvent_Malformed(t *testing.T) {
	for _, line := range []string{
		"",
		"POT:",
		"POT:abc",
		"POT:101",
		"POT:-1",
		"POT:12.5",
		"MODE_CHANGED:",
		"MODE_CHANGED:manual",
		"MODE_CHANGED:HYBRID",
		"TEMP:21.0",
		"garbage",
	} {
		_, ok := ParseEvent(line)
		assert.False(t, ok, "line %q must be rejected", line)
	}
}

func TestFormatCommands(t *testing.T) {
	assert.Equal(t, "SET_POS:0", formatPosition(0))
	assert.Equal(t, "SET_POS:100", formatPosition(1))
	assert.Equal(t, "SET_POS:51", formatPosition(0.505))
	assert.Equal(t, "SET_POS:1", formatPosition(0.01))

	assert.Equal(t, "MODE:AUTOMATIC", formatMode(kernel.ModeAutomatic))
	assert.Equal(t, "MODE:MANUAL", formatMode(kernel.ModeManual))

	assert.Equal(t, "TEMP:23.5", formatTemperature(23.5))
	assert.Equal(t, "TEMP:21.0", formatTemperature(21))
	assert.Equal(t, "TEMP:-3.3", formatTemperature(-3.26))

	assert.Equal(t, "ALARM_STATE:1", formatAlarm(true))
	assert.Equal(t, "ALARM_STATE:0", formatAlarm(false))
}
