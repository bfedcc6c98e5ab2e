// Package sensor maintains the MQTT link to the remote temperature sensor:
// it decodes the sensor's telemetry and status streams into kernel commands
// and publishes sampling period requests back.
package sensor

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/smartbuilding/climatectl/internal/config"
	"github.com/smartbuilding/climatectl/internal/kernel"
)

const (
	connectTimeout = 5 * time.Second
	// The sensor retries delivery, so frequency requests go out at QoS 1
	// (at least once).
	publishQoS = 1
)

// Sink is the slice of the control kernel the sensor streams feed into.
type Sink interface {
	OnSample(celsius float64)
	OnSensorHealth(status string, detail map[string]any)
}

// Client owns the MQTT session. It implements kernel.SensorPort; outbound
// publications never block the kernel, failures are logged and counted.
type Client struct {
	cfg    config.MQTTConfig
	sink   Sink
	client mqtt.Client
	onDrop func()
}

// NewClient creates a client for the given broker. onDrop, if non-nil, is
// invoked for every sampling period publication that is lost.
func NewClient(cfg config.MQTTConfig, sink Sink, onDrop func()) *Client {
	if onDrop == nil {
		onDrop = func() {}
	}
	c := &Client{cfg: cfg, sink: sink, onDrop: onDrop}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID("climatectl-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(3 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect starts the session. The paho client keeps retrying in the
// background, so a broker that is down at startup is not fatal; the error is
// only returned for a definitively failed first attempt.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warn().Str("broker", c.cfg.BrokerURL()).Msg("MQTT broker not reachable yet, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to MQTT broker %s: %w", c.cfg.BrokerURL(), err)
	}
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.client.Disconnect(250)
	log.Info().Msg("MQTT link closed")
}

// PublishPeriod implements kernel.SensorPort. The payload carries the period
// in whole seconds.
func (c *Client) PublishPeriod(period time.Duration) {
	payload, err := json.Marshal(map[string]int{"frequency": int(period.Seconds())})
	if err != nil {
		log.Error().Err(err).Msg("encode frequency payload")
		c.onDrop()
		return
	}
	if !c.client.IsConnectionOpen() {
		log.Warn().Dur("period", period).Msg("MQTT disconnected, dropping sampling period request")
		c.onDrop()
		return
	}
	token := c.client.Publish(c.cfg.FrequencyTopic, publishQoS, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Dur("period", period).Msg("sampling period publication failed")
			c.onDrop()
			return
		}
		log.Info().Dur("period", period).Str("topic", c.cfg.FrequencyTopic).Msg("published sampling period")
	}()
}

// onConnect runs on every (re)connection and (re)subscribes both inbound
// topics.
func (c *Client) onConnect(client mqtt.Client) {
	log.Info().Str("broker", c.cfg.BrokerURL()).Msg("connected to MQTT broker")

	subscribe := func(topic string, handler func([]byte)) {
		token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			handler(msg.Payload())
		})
		go func() {
			token.Wait()
			if err := token.Error(); err != nil {
				log.Error().Err(err).Str("topic", topic).Msg("subscribe failed")
				return
			}
			log.Info().Str("topic", topic).Msg("subscribed")
		}()
	}

	subscribe(c.cfg.TemperatureTopic, c.handleTemperature)
	subscribe(c.cfg.StatusTopic, c.handleStatus)
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	log.Warn().Err(err).Msg("MQTT connection lost, paho will reconnect")
	c.sink.OnSensorHealth(kernel.SensorOffline, nil)
}

// handleTemperature decodes a telemetry payload and forwards the sample.
// Extra fields are ignored; payloads without a temperature are dropped.
func (c *Client) handleTemperature(payload []byte) {
	var msg struct {
		Temperature *float64 `json:"temperature"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Warn().Err(err).Str("payload", string(payload)).Msg("malformed temperature payload")
		return
	}
	if msg.Temperature == nil {
		log.Warn().Str("payload", string(payload)).Msg("temperature payload without temperature field")
		return
	}
	c.sink.OnSample(*msg.Temperature)
}

// handleStatus decodes a status payload; the full payload is forwarded as
// detail for the dashboard.
func (c *Client) handleStatus(payload []byte) {
	var detail map[string]any
	if err := json.Unmarshal(payload, &detail); err != nil {
		log.Warn().Err(err).Str("payload", string(payload)).Msg("malformed status payload")
		return
	}
	status, ok := detail["status"].(string)
	if !ok {
		log.Warn().Str("payload", string(payload)).Msg("status payload without status field")
		return
	}
	c.sink.OnSensorHealth(status, detail)
}
