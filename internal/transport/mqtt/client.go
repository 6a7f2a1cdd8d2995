package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oshokin/home-sentinel/internal/logger"
	"github.com/oshokin/home-sentinel/internal/transport"
)

// DefaultConnectTimeout bounds the initial broker handshake.
const DefaultConnectTimeout = 10 * time.Second

// Options holds the broker connection parameters.
type Options struct {
	// BrokerURL is the broker endpoint, e.g. "tcp://localhost:1883".
	BrokerURL string
	// ClientID prefixes the MQTT client identifier. A random suffix is
	// appended so a restarted node never collides with its stale session.
	ClientID string
	// Username authenticates the client if the broker requires it.
	Username string
	// Password authenticates the client if the broker requires it.
	Password string
	// ConnectTimeout bounds Connect; DefaultConnectTimeout when zero.
	ConnectTimeout time.Duration
	// Logger overrides the global logger when set.
	Logger *zap.SugaredLogger
}

// subscription is one registered topic handler, kept so it can be replayed
// after an automatic reconnect (clean sessions lose server-side state; the
// retained messages delivered on resubscribe resynchronize the node).
type subscription struct {
	topic string
	qos   byte
	h     transport.Handler
}

// Client is the paho-backed transport.Channel.
type Client struct {
	opts   Options
	log    *zap.SugaredLogger
	client paho.Client

	mu   sync.Mutex
	subs []subscription
}

// interface guard
var _ transport.Channel = (*Client)(nil)

// NewClient builds a client; no network activity until Connect.
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.Logger().Named("mqtt")
	}

	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	return &Client{
		opts: opts,
		log:  log,
	}
}

// Connect establishes the broker session. Reconnects afterwards are
// automatic; registered subscriptions are replayed on every (re)connect.
func (c *Client) Connect(ctx context.Context) error {
	pahoOpts := paho.NewClientOptions().
		AddBroker(c.opts.BrokerURL).
		SetClientID(fmt.Sprintf("%s-%s", c.opts.ClientID, uuid.NewString()[:8])).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(c.opts.ConnectTimeout).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if c.opts.Username != "" {
		pahoOpts.SetUsername(c.opts.Username)
		pahoOpts.SetPassword(c.opts.Password)
	}

	c.client = paho.NewClient(pahoOpts)

	token := c.client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("connect to %s: %w", c.opts.BrokerURL, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", c.opts.BrokerURL, err)
	}

	return nil
}

// Subscribe registers a handler and, if connected, installs it on the
// broker right away. The registration survives reconnects.
func (c *Client) Subscribe(topic string, qos byte, h transport.Handler) error {
	c.mu.Lock()
	c.subs = append(c.subs, subscription{topic: topic, qos: qos, h: h})
	c.mu.Unlock()

	if c.client == nil || !c.client.IsConnected() {
		return transport.ErrNotConnected
	}

	return c.subscribe(topic, qos, h)
}

// Publish sends a payload without waiting for broker acknowledgement.
// Returns ErrNotConnected while the session is down; callers drop and log.
func (c *Client) Publish(topic string, qos byte, retain bool, payload []byte) error {
	if c.client == nil || !c.client.IsConnected() {
		return transport.ErrNotConnected
	}

	c.client.Publish(topic, qos, retain, payload)

	return nil
}

// Connected reports whether the broker session is up.
func (c *Client) Connected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Close tears down the broker session.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Disconnect(250) //nolint:mnd // Quiesce period in milliseconds.
	}
}

// subscribe installs one handler on the live session.
func (c *Client) subscribe(topic string, qos byte, h transport.Handler) error {
	token := c.client.Subscribe(topic, qos, func(_ paho.Client, m paho.Message) {
		h(m.Topic(), m.Payload())
	})

	if !token.WaitTimeout(c.opts.ConnectTimeout) {
		return fmt.Errorf("subscribe %s: %w", topic, transport.ErrNotConnected)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	return nil
}

// onConnect replays every registered subscription. Retained topics deliver
// their stored value immediately, resynchronizing a node that was away.
func (c *Client) onConnect(paho.Client) {
	c.mu.Lock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		if err := c.subscribe(s.topic, s.qos, s.h); err != nil {
			c.log.Errorw("resubscribe failed", "topic", s.topic, "error", err)
		}
	}

	c.log.Infow("broker session established", "broker", c.opts.BrokerURL, "subscriptions", len(subs))
}

// onConnectionLost logs the liveness warning; paho retries in the background.
func (c *Client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warnw("broker connection lost", "broker", c.opts.BrokerURL, "error", err)
}
