package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartbuilding/climatectl/internal/config"
)

type sinkEvent struct {
	op      string
	celsius float64
	status  string
	detail  map[string]any
}

type fakeSink struct {
	events []sinkEvent
}

func (s *fakeSink) OnSample(celsius float64) {
	s.events = append(s.events, sinkEvent{op: "sample", celsius: celsius})
}

func (s *fakeSink) OnSensorHealth(status string, detail map[string]any) {
	s.events = append(s.events, sinkEvent{op: "health", status: status, detail: detail})
}

func newTestClient(sink Sink) *Client {
	return NewClient(config.Default().MQTT, sink, nil)
}

func TestHandleTemperature(t *testing.T) {
	sink := &fakeSink{}
	c := newTestClient(sink)

	c.handleTemperature([]byte(`{"temperature": 23.5}`))
	c.handleTemperature([]byte(`{"temperature": -4}`))

	require.Len(t, sink.events, 2)
	assert.Equal(t, sinkEvent{op: "sample", celsius: 23.5}, sink.events[0])
	assert.Equal(t, sinkEvent{op: "sample", celsius: -4}, sink.events[1])
}

func TestHandleTemperature_ExtraFieldsIgnored(t *testing.T) {
	sink := &fakeSink{}
	c := newTestClient(sink)

	c.handleTemperature([]byte(`{"temperature": 21.0, "unit": "C", "seq": 7}`))

	require.Len(t, sink.events, 1)
	assert.Equal(t, 21.0, sink.events[0].celsius)
}

func TestHandleTemperature_MalformedDropped(t *testing.T) {
	sink := &fakeSink{}
	c := newTestClient(sink)

	c.handleTemperature([]byte(`not json`))
	c.handleTemperature([]byte(`{}`))
	c.handleTemperature([]byte(`{"temperature": "hot"}`))
	c.handleTemperature([]byte(`{"temp": 21}`))

	assert.Empty(t, sink.events, "malformed payloads never reach the kernel")
}

func TestHandleStatus(t *testing.T) {
	sink := &fakeSink{}
	c := newTestClient(sink)

	c.handleStatus([]byte(`{"status": "online", "ip": "10.0.0.7", "rssi": -61}`))

	require.Len(t, sink.events, 1)
	assert.Equal(t, "health", sink.events[0].op)
	assert.Equal(t, "online", sink.events[0].status)
	assert.Equal(t, "10.0.0.7", sink.events[0].detail["ip"])
	assert.Equal(t, -61.0, sink.events[0].detail["rssi"])
}

func TestHandleStatus_MalformedDropped(t *testing.T) {
	sink := &fakeSink{}
	c := newTestClient(sink)

	c.handleStatus([]byte(`nope`))
	c.handleStatus([]byte(`{"state": "online"}`))
	c.handleStatus([]byte(`{"status": 12}`))

	assert.Empty(t, sink.events)
}
