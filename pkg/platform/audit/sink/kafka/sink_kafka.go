// Package kafka produces audit events to a Kafka topic, keyed by BaseID so
// one vulnerability's history stays in partition order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"bvcregistry/pkg/platform/audit"
)

// Sink is a Kafka-backed audit sink.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects a producer to the given brokers.
func New(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("audit kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// Record produces one event synchronously so a confirmed mutation's audit
// entry is on the broker before the response leaves.
func (s *Sink) Record(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit kafka encode: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.BaseID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("audit kafka produce: %w", err)
	}
	return nil
}

// Close flushes pending records and releases the client.
func (s *Sink) Close() error {
	s.client.Close()
	return nil
}
