package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/carpool-matching/internal/models"
)

// TripEvent is the message published whenever the trip pool changes.
type TripEvent struct {
	Type string      `json:"type"` // "trip_created", "trip_updated", "trip_closed"
	Trip models.Trip `json:"trip"`
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

// PublishTripEvent is best-effort: callers log failures but never fail the
// request over them.
func (k *KafkaProducer) PublishTripEvent(eventType string, t models.Trip) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(TripEvent{Type: eventType, Trip: t})
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(t.ID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
