// Package config provides configuration management for the climate control unit.
// It handles loading, validation, and management of settings from a YAML file
// and environment variables, with defaults suitable for a local deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts both "30s"-style strings and bare integer seconds in
// YAML, matching how deployments usually write sampling periods.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	// Integers are tried first: any scalar also decodes as a string.
	var seconds int64
	if err := value.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// Config represents the complete control unit configuration.
type Config struct {
	Control  ControlConfig `json:"control" yaml:"control"`
	API      APIConfig     `json:"api" yaml:"api"`
	MQTT     MQTTConfig    `json:"mqtt" yaml:"mqtt"`
	Serial   SerialConfig  `json:"serial" yaml:"serial"`
	LogLevel string        `json:"log_level" yaml:"log_level"`
}

// ControlConfig holds the thermal policy tunables.
type ControlConfig struct {
	// T1 and T2 delimit the HOT band in degrees Celsius. T2 should be
	// strictly greater than T1; when equal the proportional branch
	// degenerates to a binary opening.
	T1 float64 `json:"t1" yaml:"t1"`
	T2 float64 `json:"t2" yaml:"t2"`

	// WindowSize is how many recent readings the telemetry window retains.
	WindowSize int `json:"window_size" yaml:"window_size"`

	// AlarmAfter is how long the system must remain TOO_HOT before latching
	// into ALARM.
	AlarmAfter Duration `json:"alarm_after" yaml:"alarm_after"`

	// SamplingNormal (F1) and SamplingFast (F2) are the sensor sampling
	// periods requested over MQTT.
	SamplingNormal Duration `json:"sampling_normal" yaml:"sampling_normal"`
	SamplingFast   Duration `json:"sampling_fast" yaml:"sampling_fast"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Host      string          `json:"host" yaml:"host"`
	Port      int             `json:"port" yaml:"port"`
	StaticDir string          `json:"static_dir" yaml:"static_dir"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures per-client request throttling on /api.
type RateLimitConfig struct {
	Enabled           bool `json:"enabled" yaml:"enabled"`
	RequestsPerSecond int  `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int  `json:"burst_size" yaml:"burst_size"`
}

// MQTTConfig configures the sensor link.
type MQTTConfig struct {
	BrokerHost       string `json:"broker_host" yaml:"broker_host"`
	BrokerPort       int    `json:"broker_port" yaml:"broker_port"`
	TemperatureTopic string `json:"temperature_topic" yaml:"temperature_topic"`
	StatusTopic      string `json:"status_topic" yaml:"status_topic"`
	FrequencyTopic   string `json:"frequency_topic" yaml:"frequency_topic"`
}

// SerialConfig configures the actuator link.
type SerialConfig struct {
	Port string `json:"port" yaml:"port"`
	Baud int    `json:"baud" yaml:"baud"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Control: ControlConfig{
			T1:             20.0,
			T2:             27.0,
			WindowSize:     10,
			AlarmAfter:     Duration(5 * time.Minute),
			SamplingNormal: Duration(60 * time.Second),
			SamplingFast:   Duration(10 * time.Second),
		},
		API: APIConfig{
			Host:      "0.0.0.0",
			Port:      5000,
			StaticDir: "web/static",
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 50,
				BurstSize:         100,
			},
		},
		MQTT: MQTTConfig{
			BrokerHost:       "localhost",
			BrokerPort:       1883,
			TemperatureTopic: "assignment3/temperature",
			StatusTopic:      "assignment3/status",
			FrequencyTopic:   "assignment3/frequency",
		},
		Serial: SerialConfig{
			Port: "/dev/ttyUSB0",
			Baud: 115200,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from the given path, applies environment
// overrides, and validates the result. An empty path yields the defaults
// (plus environment overrides).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override the settings that
// commonly differ between hosts without editing the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CLIMATECTL_MQTT_HOST"); v != "" {
		c.MQTT.BrokerHost = v
	}
	if v := os.Getenv("CLIMATECTL_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTT.BrokerPort = port
		}
	}
	if v := os.Getenv("CLIMATECTL_SERIAL_PORT"); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv("CLIMATECTL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.API.Port = port
		}
	}
	if v := os.Getenv("CLIMATECTL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration for values the control kernel cannot
// operate with.
func (c *Config) Validate() error {
	if c.Control.T2 < c.Control.T1 {
		return fmt.Errorf("control: t2 (%.1f) must not be below t1 (%.1f)", c.Control.T2, c.Control.T1)
	}
	if c.Control.WindowSize <= 0 {
		return fmt.Errorf("control: window_size must be positive, got %d", c.Control.WindowSize)
	}
	if c.Control.AlarmAfter <= 0 {
		return fmt.Errorf("control: alarm_after must be positive, got %s", c.Control.AlarmAfter)
	}
	if c.Control.SamplingFast <= 0 || c.Control.SamplingNormal <= c.Control.SamplingFast {
		return fmt.Errorf("control: sampling periods must satisfy normal > fast > 0, got normal=%s fast=%s",
			c.Control.SamplingNormal, c.Control.SamplingFast)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api: invalid port %d", c.API.Port)
	}
	if c.MQTT.BrokerHost == "" {
		return fmt.Errorf("mqtt: broker_host is required")
	}
	if c.MQTT.BrokerPort <= 0 || c.MQTT.BrokerPort > 65535 {
		return fmt.Errorf("mqtt: invalid broker_port %d", c.MQTT.BrokerPort)
	}
	if c.Serial.Port == "" {
		return fmt.Errorf("serial: port is required")
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial: invalid baud rate %d", c.Serial.Baud)
	}
	return nil
}

// ListenAddr returns the host:port the API server binds to.
func (c *APIConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BrokerURL returns the tcp:// URL of the MQTT broker.
func (c *MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.BrokerHost, c.BrokerPort)
}
