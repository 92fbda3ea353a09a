package relay

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"warden/internal/eventsourcing"
)

const (
	headerEventType  = "event_type"
	headerVersion    = "version"
	headerActorID    = "actor_id"
	headerOccurredOn = "occurred_on"
	headerPosition   = "position"
)

// Publisher delivers committed records downstream.
type Publisher interface {
	Publish(ctx context.Context, records []eventsourcing.Record) error
}

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher produces records to a single topic keyed by stream id so a
// stream's events land on one partition in order.
type KafkaPublisher struct {
	client producer
	topic  string
}

// NewKafkaPublisher constructs a publisher producing to topic.
func NewKafkaPublisher(client *kgo.Client, topic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, records []eventsourcing.Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]*kgo.Record, len(records))
	for i, rec := range records {
		msgs[i] = toKafkaRecord(p.topic, rec)
	}
	if err := p.client.ProduceSync(ctx, msgs...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d records to %s: %w", len(msgs), p.topic, err)
	}
	return nil
}

func toKafkaRecord(topic string, rec eventsourcing.Record) *kgo.Record {
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(rec.StreamID.String()),
		Value: rec.Data,
		Headers: []kgo.RecordHeader{
			{Key: headerEventType, Value: []byte(rec.EventType)},
			{Key: headerVersion, Value: []byte(strconv.FormatInt(rec.Version, 10))},
			{Key: headerActorID, Value: []byte(rec.ActorID)},
			{Key: headerOccurredOn, Value: []byte(rec.OccurredOn.UTC().Format(time.RFC3339Nano))},
			{Key: headerPosition, Value: []byte(strconv.FormatInt(rec.Position, 10))},
		},
		Timestamp: rec.OccurredOn,
	}
}
