package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oshokin/home-sentinel/internal/config"
	"github.com/oshokin/home-sentinel/internal/logger"
	"github.com/oshokin/home-sentinel/internal/transport"
)

// topicPrefix prefixes the per-node telemetry topic.
const topicPrefix = "telemetry/"

// Sample is one sensor or actuator reading.
type Sample struct {
	// Device is the reporting component code, e.g. "DS1".
	Device string `json:"device"`
	// Field names the measurement, e.g. "is_open" or "distance_cm".
	Field string `json:"field"`
	// Value is the measurement itself.
	Value any `json:"value"`
	// Timestamp is when the sample was taken.
	Timestamp time.Time `json:"ts"`
}

// Publisher buffers samples and publishes them as one JSON array on
// telemetry/<nodeID>, either on a fixed interval or as soon as the batch
// fills. Samples produced while the transport is down are discarded with
// the batch, never queued.
type Publisher struct {
	topic         string
	ch            transport.Channel
	log           *zap.SugaredLogger
	flushInterval time.Duration
	batchSize     int

	mu  sync.Mutex
	buf []Sample

	started  bool
	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

// NewPublisher creates a publisher for one node.
func NewPublisher(nodeID string, ch transport.Channel, cfg config.Telemetry, log *zap.SugaredLogger) *Publisher {
	if log == nil {
		log = logger.Logger().Named("telemetry")
	}

	return &Publisher{
		topic:         topicPrefix + nodeID,
		ch:            ch,
		log:           log,
		flushInterval: cfg.FlushInterval,
		batchSize:     cfg.BatchSize,
		stopped:       make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. It runs until Stop is called or the
// context is canceled.
func (p *Publisher) Start(ctx context.Context) {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(p.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.Flush()
			case <-p.stopped:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Record buffers one sample, flushing early when the batch is full.
func (p *Publisher) Record(s Sample) {
	p.mu.Lock()
	p.buf = append(p.buf, s)
	full := len(p.buf) >= p.batchSize
	p.mu.Unlock()

	if full {
		p.Flush()
	}
}

// Flush publishes the buffered samples, if any.
func (p *Publisher) Flush() {
	p.mu.Lock()
	batch := p.buf
	p.buf = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	data, err := json.Marshal(batch)
	if err != nil {
		p.log.Errorw("marshal telemetry batch", "error", err)

		return
	}

	if err := p.ch.Publish(p.topic, transport.QoSAtMostOnce, false, data); err != nil {
		p.log.Debugw("telemetry batch dropped", "samples", len(batch), "error", err)
	}
}

// Stop halts the flush loop and publishes whatever is still buffered.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopped)
	})

	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if started {
		<-p.done
	}

	p.Flush()
}
