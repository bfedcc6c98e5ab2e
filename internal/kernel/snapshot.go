package kernel

// Snapshot is the consistent read-only view of the kernel served to the
// operator dashboard. Pointer fields are nil until a first sample arrives.
type Snapshot struct {
	SensorStatus       string         `json:"sensor_status"`
	SensorDetail       map[string]any `json:"sensor_detail,omitempty"`
	CurrentTemperature *float64       `json:"current_temperature"`
	LastTemperatures   []float64      `json:"last_n_temperatures"`
	AverageTemperature *float64       `json:"average_temperature"`
	MinTemperature     *float64       `json:"min_temperature"`
	MaxTemperature     *float64       `json:"max_temperature"`
	Mode               Mode           `json:"system_mode"`
	State              State          `json:"system_state"`
	// WindowOpening is reported as a percentage in [0,100] with one decimal.
	WindowOpening float64 `json:"window_opening_percentage"`
	AlarmActive   bool    `json:"alarm_active"`
}
