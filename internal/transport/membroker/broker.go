package membroker

import (
	"context"
	"strings"
	"sync"

	"github.com/oshokin/home-sentinel/internal/transport"
)

// Broker is an in-process pub/sub hub with MQTT-like semantics: retained
// messages are stored per topic (last value wins) and handed to new
// subscribers, and topic filters support the single-level "+" wildcard.
// Delivery is synchronous in the publisher's goroutine, which keeps tests
// deterministic.
type Broker struct {
	mu       sync.Mutex
	subs     []*subscription
	retained map[string][]byte
}

// subscription binds one client's handler to a topic filter.
type subscription struct {
	client *Client
	filter string
	h      transport.Handler
}

// New creates an empty broker.
func New() *Broker {
	return &Broker{
		retained: make(map[string][]byte),
	}
}

// NewClient returns a disconnected handle on the broker.
func (b *Broker) NewClient() *Client {
	return &Client{broker: b}
}

// publish stores the payload if retained and delivers it to every
// connected subscriber whose filter matches.
func (b *Broker) publish(topic string, retain bool, payload []byte) {
	b.mu.Lock()

	if retain {
		stored := make([]byte, len(payload))
		copy(stored, payload)
		b.retained[topic] = stored
	}

	var targets []transport.Handler

	for _, s := range b.subs {
		if s.client.Connected() && matches(s.filter, topic) {
			targets = append(targets, s.h)
		}
	}

	b.mu.Unlock()

	for _, h := range targets {
		h(topic, payload)
	}
}

// subscribe registers a handler and replays matching retained messages,
// the way an MQTT broker answers a new subscription.
func (b *Broker) subscribe(c *Client, filter string, h transport.Handler) {
	b.mu.Lock()

	b.subs = append(b.subs, &subscription{client: c, filter: filter, h: h})

	type pending struct {
		topic   string
		payload []byte
	}

	var replay []pending

	for topic, payload := range b.retained {
		if matches(filter, topic) {
			replay = append(replay, pending{topic: topic, payload: payload})
		}
	}

	b.mu.Unlock()

	for _, p := range replay {
		h(p.topic, p.payload)
	}
}

// drop removes every subscription held by the client.
func (b *Broker) drop(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.subs[:0]

	for _, s := range b.subs {
		if s.client != c {
			kept = append(kept, s)
		}
	}

	b.subs = kept
}

// replayRetained redelivers retained messages to the client's
// subscriptions, mimicking retained delivery after a reconnect.
func (b *Broker) replayRetained(c *Client) {
	b.mu.Lock()

	type pending struct {
		topic   string
		payload []byte
		h       transport.Handler
	}

	var replay []pending

	for _, s := range b.subs {
		if s.client != c {
			continue
		}

		for topic, payload := range b.retained {
			if matches(s.filter, topic) {
				replay = append(replay, pending{topic: topic, payload: payload, h: s.h})
			}
		}
	}

	b.mu.Unlock()

	for _, p := range replay {
		p.h(p.topic, p.payload)
	}
}

// matches reports whether a topic filter matches a concrete topic.
// Filters are "/"-separated; "+" matches exactly one level.
func matches(filter, topic string) bool {
	if filter == topic {
		return true
	}

	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")

	if len(fp) != len(tp) {
		return false
	}

	for i := range fp {
		if fp[i] != "+" && fp[i] != tp[i] {
			return false
		}
	}

	return true
}

// Client is one node's handle on the broker, implementing transport.Channel.
type Client struct {
	broker *Broker

	mu        sync.Mutex
	connected bool
}

// interface guard
var _ transport.Channel = (*Client)(nil)

// Connect marks the client connected.
func (c *Client) Connect(context.Context) error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return nil
}

// Subscribe registers a handler; matching retained messages are delivered
// immediately.
func (c *Client) Subscribe(topic string, _ byte, h transport.Handler) error {
	if !c.Connected() {
		return transport.ErrNotConnected
	}

	c.broker.subscribe(c, topic, h)

	return nil
}

// Publish delivers to all connected subscribers; ErrNotConnected while down.
func (c *Client) Publish(topic string, _ byte, retain bool, payload []byte) error {
	if !c.Connected() {
		return transport.ErrNotConnected
	}

	c.broker.publish(topic, retain, payload)

	return nil
}

// Connected reports the simulated link state.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// Close disconnects and removes the client's subscriptions.
func (c *Client) Close() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.broker.drop(c)
}

// Drop simulates a lost connection: publishes fail and nothing is
// delivered, but subscriptions stay registered for Restore.
func (c *Client) Drop() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

// Restore simulates a reconnect: the link comes back and retained messages
// are redelivered to the client's subscriptions.
func (c *Client) Restore() {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.broker.replayRetained(c)
}
