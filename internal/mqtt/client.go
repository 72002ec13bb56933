package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/logger"
	"github.com/whispersubs/whispersubs/internal/observability/metrics"
)

// client implements the Client interface on top of paho. Reconnection
// after a lost connection is left to paho's auto-reconnect.
type client struct {
	config  Config
	mu      sync.Mutex // serializes Connect, Publish and Disconnect
	metrics *metrics.MQTTMetrics
	log     logger.Logger

	// IsConnected runs on the inference worker without mu
	clientMu       sync.RWMutex
	internalClient paho.Client
}

// NewClient creates a new MQTT client. m may be nil.
func NewClient(cfg Config, m *metrics.MQTTMetrics) Client {
	return &client{
		config:  cfg,
		metrics: m,
		log:     GetLogger().With(logger.String("broker", cfg.Broker)),
	}
}

// Connect resolves the broker host first so DNS problems surface as such,
// then connects.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil || u.Host == "" {
		return connError(fmt.Errorf("invalid broker URL %q", c.config.Broker))
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return connError(fmt.Errorf("failed to resolve hostname %s: %w", host, err))
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	pc := paho.NewClient(opts)
	c.clientMu.Lock()
	c.internalClient = pc
	c.clientMu.Unlock()

	token := pc.Connect()
	if !waitToken(ctx, token, c.config.ConnectTimeout) {
		// paho keeps retrying in the background
		return connError(fmt.Errorf("connection timeout"))
	}
	if err := token.Error(); err != nil {
		c.incErrors()
		return connError(fmt.Errorf("connection error: %w", err))
	}
	return nil
}

// Publish sends payload to topic with the configured QoS and retain flag
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pc := c.current()
	if pc == nil || !pc.IsConnected() {
		return publishError(fmt.Errorf("not connected to MQTT broker"), topic)
	}

	start := time.Now()
	token := pc.Publish(topic, c.config.QoS, c.config.Retain, payload)
	if !waitToken(ctx, token, c.config.PublishTimeout) {
		c.incErrors()
		return publishError(fmt.Errorf("publish timeout"), topic)
	}
	if err := token.Error(); err != nil {
		c.incErrors()
		return publishError(err, topic)
	}

	if c.metrics != nil {
		c.metrics.ObservePublish(len(payload), time.Since(start))
	}
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	pc := c.current()
	return pc != nil && pc.IsConnected()
}

func (c *client) current() paho.Client {
	c.clientMu.RLock()
	defer c.clientMu.RUnlock()
	return c.internalClient
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	pc := c.current()
	if pc == nil {
		return
	}
	// also stops a pending connect retry loop
	pc.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	c.setConnected(false)
	c.log.Info("disconnected from MQTT broker")
}

func (c *client) onConnect(paho.Client) {
	c.log.Info("connected to MQTT broker")
	c.setConnected(true)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost", logger.Error(err))
	c.setConnected(false)
	c.incErrors()
}

func (c *client) onReconnecting(paho.Client, *paho.ClientOptions) {
	if c.metrics != nil {
		c.metrics.ReconnectAttempts.Inc()
	}
}

func (c *client) setConnected(connected bool) {
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(connected)
	}
}

func (c *client) incErrors() {
	if c.metrics != nil {
		c.metrics.Errors.Inc()
	}
}

// waitToken waits for token completion, the timeout or ctx, whichever
// comes first, and reports whether the token completed.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func connError(err error) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTConnection).
		Build()
}

func publishError(err error, topic string) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTPublish).
		Context("topic", topic).
		Build()
}
