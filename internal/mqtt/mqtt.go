// Package mqtt relays published subtitles to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/whispersubs/whispersubs/internal/conf"
	"github.com/whispersubs/whispersubs/internal/logger"
)

// Client defines the MQTT operations used by the relay
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends payload to topic and waits for the broker to accept it.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected returns true if the client is currently connected.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // subtitle topic
	QoS      byte
	Retain   bool // true to retain the latest subtitle at the broker
	// Connection timeouts
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ConfigFromSettings builds the client configuration from settings. The
// client ID defaults to the instance name.
func ConfigFromSettings(s *conf.Settings) Config {
	cfg := DefaultConfig()
	cfg.Broker = s.MQTT.Broker
	cfg.ClientID = s.MQTT.ClientID
	if cfg.ClientID == "" {
		cfg.ClientID = s.Main.Name
	}
	cfg.Username = s.MQTT.Username
	cfg.Password = s.MQTT.Password
	cfg.Topic = s.MQTT.Topic
	cfg.QoS = byte(min(max(s.MQTT.QoS, 0), 2))
	cfg.Retain = s.MQTT.Retain
	return cfg
}

// GetLogger returns the mqtt module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
