package kernel

import "time"

// ActuatorPort is the outbound capability the kernel drives the window
// controller through. Implementations must accept every call without
// blocking: delivery failures are logged and dropped inside the port, never
// surfaced back to the kernel. Repeating a command must be harmless.
type ActuatorPort interface {
	// SetPosition commands the window to the given opening in [0,1].
	SetPosition(opening float64)
	// AnnounceMode tells the device which mode the kernel considers
	// authoritative.
	AnnounceMode(mode Mode)
	// DisplayTemperature relays a reading for the local display. Only
	// meaningful in manual mode.
	DisplayTemperature(celsius float64)
	// SignalAlarm toggles the local alarm indicator.
	SignalAlarm(active bool)
}

// SensorPort is the outbound capability the kernel adjusts the sensor's
// sampling rate through. Same non-blocking contract as ActuatorPort.
type SensorPort interface {
	PublishPeriod(period time.Duration)
}

// Recorder receives observability updates from the kernel. Implementations
// must not block; a nil Recorder disables recording.
type Recorder interface {
	SampleAccepted(celsius float64)
	SampleRejected()
	KernelState(state State, opening float64, period time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) SampleAccepted(float64)                    {}
func (noopRecorder) SampleRejected()                           {}
func (noopRecorder) KernelState(State, float64, time.Duration) {}
