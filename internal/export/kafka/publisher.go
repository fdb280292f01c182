// Package kafka publishes report envelopes to a Kafka topic.
package kafka

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Shopify/sarama"
	"github.com/rs/zerolog"

	"github.com/btraceio/btrace-sub009/internal/profiling/profiler"
	"github.com/btraceio/btrace-sub009/internal/report"
)

// ClientID identifies the profiler to the brokers.
const ClientID = "btrace-profiler"

// Snapshotter produces Snapshots on demand.
type Snapshotter interface {
	Snapshot(reset bool) *profiler.Snapshot
}

// Publisher sends envelopes through an asynchronous producer.
//
// Delivery failures are reported on the producer's error channel; the
// Publisher drains it, logs each failure and counts it.
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
	log      zerolog.Logger

	sent   atomic.Int64
	failed atomic.Int64
	done   chan struct{}
}

// New connects an asynchronous producer to brokers.
func New(brokers []string, topic string, log zerolog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = ClientID
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer for %v: %w", brokers, err)
	}
	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("kafka producer connected")
	return NewWithProducer(producer, topic, log), nil
}

// NewWithProducer wraps an existing producer. The Publisher takes ownership
// and closes it in Close.
func NewWithProducer(producer sarama.AsyncProducer, topic string, log zerolog.Logger) *Publisher {
	p := &Publisher{
		producer: producer,
		topic:    topic,
		log:      log,
		done:     make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

func (p *Publisher) drainErrors() {
	defer close(p.done)
	for perr := range p.producer.Errors() {
		p.failed.Add(1)
		p.log.Warn().Err(perr.Err).Str("topic", perr.Msg.Topic).Msg("snapshot delivery failed")
	}
}

// Publish queues env for delivery, keyed by its session so one session's
// envelopes stay in one partition.
func (p *Publisher) Publish(env report.Envelope) error {
	b, err := report.Marshal(env)
	if err != nil {
		return err
	}
	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(env.Session),
		Value: sarama.ByteEncoder(b),
	}
	p.sent.Add(1)
	return nil
}

// Run publishes a cumulative Snapshot of src every interval until ctx is done.
func (p *Publisher) Run(ctx context.Context, src Snapshotter, session string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			host, err := report.CollectHostStats(ctx)
			if err != nil {
				p.log.Debug().Err(err).Msg("partial host stats")
			}
			if err := p.Publish(report.NewEnvelope(session, src.Snapshot(false), host)); err != nil {
				return err
			}
		}
	}
}

// Sent returns the number of envelopes handed to the producer.
func (p *Publisher) Sent() int64 { return p.sent.Load() }

// Failed returns the number of envelopes the producer reported as lost.
func (p *Publisher) Failed() int64 { return p.failed.Load() }

// Close flushes buffered messages and shuts the producer down. Every
// delivery failure, including those surfaced by the flush, is counted in
// Failed; Close reports the ones seen while closing.
func (p *Publisher) Close() error {
	before := p.failed.Load()
	p.producer.AsyncClose()
	<-p.done
	if lost := p.failed.Load() - before; lost > 0 {
		return fmt.Errorf("close kafka producer: %w", &LostError{Count: lost})
	}
	return nil
}

// LostError reports envelopes that failed delivery while the producer was
// closing.
type LostError struct {
	Count int64
}

func (e *LostError) Error() string {
	return fmt.Sprintf("%d envelopes not delivered", e.Count)
}
