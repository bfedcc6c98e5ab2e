package actuator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smartbuilding/climatectl/internal/config"
	"github.com/smartbuilding/climatectl/internal/kernel"
)

type sinkCall struct {
	op         string
	mode       kernel.Mode
	percentage float64
	origin     kernel.Origin
}

type fakeSink struct {
	calls  []sinkCall
	accept bool
}

func (s *fakeSink) SetMode(m kernel.Mode) bool {
	s.calls = append(s.calls, sinkCall{op: "mode", mode: m})
	return s.accept
}

func (s *fakeSink) SetManualWindow(p float64, o kernel.Origin) bool {
	s.calls = append(s.calls, sinkCall{op: "window", percentage: p, origin: o})
	return s.accept
}

func newTestLink(sink CommandSink, onDrop func()) *Link {
	return NewLink(config.SerialConfig{Port: "/dev/null", Baud: 115200}, sink, onDrop)
}

func TestDispatch_ModeChanged(t *testing.T) {
	sink := &fakeSink{accept: true}
	l := newTestLink(sink, nil)

	l.dispatch("MODE_CHANGED:MANUAL")
	l.dispatch("MODE_CHANGED:AUTOMATIC")

	assert.Equal(t, []sinkCall{
		{op: "mode", mode: kernel.ModeManual},
		{op: "mode", mode: kernel.ModeAutomatic},
	}, sink.calls)
}

func TestDispatch_KnobTagsLocalOrigin(t *testing.T) {
	sink := &fakeSink{accept: true}
	l := newTestLink(sink, nil)

	l.dispatch("POT:55")

	assert.Equal(t, []sinkCall{
		{op: "window", percentage: 55, origin: kernel.OriginLocalKnob},
	}, sink.calls)
}

func TestDispatch_UnknownLinesIgnored(t *testing.T) {
	sink := &fakeSink{accept: true}
	l := newTestLink(sink, nil)

	l.dispatch("HELLO")
	l.dispatch("POT:9999")
	l.dispatch("MODE_CHANGED:SOMETHING")

	assert.Empty(t, sink.calls)
}

func TestDispatch_RejectedCommandsDoNotPanic(t *testing.T) {
	sink := &fakeSink{accept: false}
	l := newTestLink(sink, nil)

	l.dispatch("MODE_CHANGED:MANUAL")
	l.dispatch("POT:10")

	assert.Len(t, sink.calls, 2)
}

func TestSend_DropsWhenQueueFull(t *testing.T) {
	dropped := 0
	l := newTestLink(&fakeSink{}, func() { dropped++ })

	// Nothing drains the queue: fill it, then overflow.
	for i := 0; i < outboundQueueSize; i++ {
		l.SetPosition(0.5)
	}
	assert.Equal(t, 0, dropped)

	l.SetPosition(0.7)
	l.SignalAlarm(true)
	assert.Equal(t, 2, dropped)
}

func TestClose_Idempotent(t *testing.T) {
	l := newTestLink(&fakeSink{}, nil)
	// Never started: Close must still return promptly and twice.
	l.Close()
	l.Close()
}
