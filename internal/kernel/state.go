package kernel

import "fmt"

// Mode selects who is authoritative for the window position: the control
// policy (automatic) or the operator (manual).
type Mode int

const (
	ModeAutomatic Mode = iota
	ModeManual
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeAutomatic:
		return "AUTOMATIC"
	case ModeManual:
		return "MANUAL"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalJSON encodes the mode as its wire name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// ParseMode converts a wire name into a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "AUTOMATIC":
		return ModeAutomatic, true
	case "MANUAL":
		return ModeManual, true
	default:
		return 0, false
	}
}

func (m Mode) valid() bool {
	return m == ModeAutomatic || m == ModeManual
}

// State is the thermal state of the controlled room. StateAlarm is latched:
// no temperature sample exits it, only an operator reset.
type State int

const (
	StateNormal State = iota
	StateHot
	StateTooHot
	StateAlarm
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateHot:
		return "HOT"
	case StateTooHot:
		return "TOO_HOT"
	case StateAlarm:
		return "ALARM"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalJSON encodes the state as its wire name.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Origin tags where a manual window command came from. Commands from the
// local potentiometer describe a movement the hardware already performed, so
// the kernel records them without echoing a position command back.
type Origin int

const (
	OriginOperator Origin = iota
	OriginLocalKnob
)

// String returns a human-readable origin name for logs.
func (o Origin) String() string {
	switch o {
	case OriginOperator:
		return "operator"
	case OriginLocalKnob:
		return "local-knob"
	default:
		return fmt.Sprintf("Origin(%d)", int(o))
	}
}

// Well-known sensor health values. Anything else received from the sensor is
// forwarded to the dashboard verbatim.
const (
	SensorUnknown = "UNKNOWN"
	SensorOnline  = "ONLINE"
	SensorOffline = "OFFLINE"
)
