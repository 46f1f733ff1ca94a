// Package stream mirrors domain records to a message broker. Publishing is
// asynchronous and best effort: the database stays the system of record and a
// full queue or broker outage drops messages rather than failing callers.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"memberverify/pkg/platform/circuit"
)

// Message is one record to publish.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Producer delivers messages to a broker.
type Producer interface {
	Produce(ctx context.Context, msg Message) error
}

// Publisher queues messages and delivers them from Run.
type Publisher struct {
	producer Producer
	topic    string
	queue    chan Message
	breaker  *circuit.Breaker
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithBufferSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan Message, n)
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

// WithProduceTimeout bounds each delivery attempt.
func WithProduceTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.timeout = d
	}
}

func NewPublisher(producer Producer, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		producer: producer,
		topic:    topic,
		queue:    make(chan Message, 1024),
		breaker:  circuit.New("stream"),
		timeout:  5 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish encodes v as JSON and enqueues it without blocking. It reports
// whether the message was accepted.
func (p *Publisher) Publish(kind, key string, v any) bool {
	value, err := json.Marshal(v)
	if err != nil {
		p.logger.Warn("failed to encode stream message", "kind", kind, "error", err)
		return false
	}
	msg := Message{
		Topic:   p.topic,
		Key:     key,
		Value:   value,
		Headers: map[string]string{"kind": kind},
	}
	select {
	case p.queue <- msg:
		return true
	default:
		p.drop("queue_full")
		return false
	}
}

// Run delivers queued messages until ctx is cancelled, then drains what is
// already queued.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return nil
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	for {
		select {
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, msg Message) {
	if !p.breaker.Allow() {
		p.drop("circuit_open")
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.producer.Produce(sendCtx, msg)
	cancel()

	if err != nil {
		_, change := p.breaker.RecordFailure()
		if change.Opened {
			p.logger.Warn("stream circuit opened", "topic", msg.Topic)
		}
		p.setBreakerState()
		p.drop("produce_failed")
		p.logger.Warn("failed to publish stream message", "topic", msg.Topic, "key", msg.Key, "error", err)
		return
	}

	_, change := p.breaker.RecordSuccess()
	if change.Closed {
		p.logger.Info("stream circuit closed", "topic", msg.Topic)
	}
	p.setBreakerState()
	if p.metrics != nil {
		p.metrics.IncPublished()
	}
}

func (p *Publisher) drop(reason string) {
	if p.metrics != nil {
		p.metrics.IncDropped(reason)
	}
}

func (p *Publisher) setBreakerState() {
	if p.metrics != nil {
		p.metrics.SetCircuitBreakerState(p.breaker.IsOpen())
	}
}
