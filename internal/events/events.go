package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TypeSearchCompleted = "search.completed"
	TypeSearchFailed    = "search.failed"
)

// SearchEvent announces that a search reached a terminal state.
type SearchEvent struct {
	Type         string    `json:"type"`
	SearchID     string    `json:"search_id"`
	QueryHash    string    `json:"query_hash"`
	Status       string    `json:"status"`
	OfferCount   int       `json:"offer_count"`
	FromCache    bool      `json:"from_cache"`
	ErrorMessage string    `json:"error_message,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event SearchEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
		},
	}
}

// Publish keys messages by search id so every event of one search lands on
// the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event SearchEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SearchID),
		Value: data,
		Time:  event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("write %s event: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event SearchEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
