// Package events publishes link audit events to Kafka as CloudEvents
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prperemyshlev/adlink-service/internal/domain"
	"github.com/segmentio/kafka-go"
)

// CloudEvent is the JSON envelope written to the audit topic
type CloudEvent struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	SpecVersion string          `json:"specversion"`
	Type        string          `json:"type"`
	Time        time.Time       `json:"time"`
	Subject     string          `json:"subject,omitempty"`
	ContentType string          `json:"datacontenttype"`
	Data        json.RawMessage `json:"data"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes audit events keyed by user id so one user's events stay ordered
type KafkaPublisher struct {
	writer messageWriter
	source string
}

// NewKafkaPublisher creates a synchronous publisher for topic
func NewKafkaPublisher(brokers []string, topic, source string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}

	return &KafkaPublisher{writer: writer, source: source}
}

// Publish writes one event
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	ce := CloudEvent{
		ID:          event.ID,
		Source:      p.source,
		SpecVersion: "1.0",
		Type:        event.Name,
		Time:        event.OccurredAt.UTC(),
		Subject:     event.UserID,
		ContentType: "application/json",
		Data:        data,
	}

	value, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("failed to marshal cloud event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "ce_id", Value: []byte(ce.ID)},
			{Key: "ce_type", Value: []byte(ce.Type)},
			{Key: "ce_source", Value: []byte(ce.Source)},
			{Key: "ce_specversion", Value: []byte(ce.SpecVersion)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Name, err)
	}

	return nil
}

// Close flushes pending messages and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
