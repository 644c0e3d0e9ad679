// Package announce publishes hole events to an MQTT broker so scoreboards
// and home automation can react to them.
package announce

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	c "lautenbacher.net/puttcup/config"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Event is the JSON payload of one hole.
type Event struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	DistanceCM float64   `json:"distance_cm"`
	Streak     int       `json:"streak"`
	Sound      string    `json:"sound,omitempty"`
}

// NewEvent stamps a fresh event id.
func NewEvent(at time.Time, distance float64, streak int) Event {
	return Event{
		ID:         uuid.NewString(),
		Time:       at,
		DistanceCM: distance,
		Streak:     streak,
	}
}

type Announcer interface {
	Announce(ev Event) error
	Close()
}

// publisher is the part of the MQTT client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTAnnouncer struct {
	client publisher
	topic  string
}

// NewMQTTAnnouncer connects to the configured broker. The client
// reconnects on its own after a lost connection.
func NewMQTTAnnouncer(cfg c.AnnounceConfig) (*MQTTAnnouncer, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "broker", cfg.Broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timeout connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}
	slog.Info("Connected to MQTT broker", "broker", cfg.Broker, "topic", cfg.Topic)
	return newMQTTAnnouncer(client, cfg.Topic), nil
}

func newMQTTAnnouncer(client publisher, topic string) *MQTTAnnouncer {
	return &MQTTAnnouncer{client: client, topic: topic}
}

func (a *MQTTAnnouncer) Announce(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	token := a.client.Publish(a.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout publishing to %s", a.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", a.topic, err)
	}
	return nil
}

func (a *MQTTAnnouncer) Close() {
	a.client.Disconnect(250)
}

// FromConfig returns an announcer for cfg, or nil when announcing is
// disabled or the broker is unreachable.
func FromConfig(cfg c.AnnounceConfig) Announcer {
	if !cfg.Enabled {
		return nil
	}
	a, err := NewMQTTAnnouncer(cfg)
	if err != nil {
		slog.Warn("Not announcing holes", "error", err)
		return nil
	}
	return a
}
