package repository

import (
	"context"
	"encoding/json"

	"school_messaging_service/internal/messaging/domain"
	errprocess "school_messaging_service/pkg/err"

	"github.com/segmentio/kafka-go"
)

// MessageSink hands committed messages to downstream consumers
// (notification delivery lives outside this service).
type MessageSink interface {
	MessageSent(ctx context.Context, rec domain.MessageSent) error
}

// KafkaEventType header value of message records
const KafkaEventType = "message.sent"

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaMessageSink writes one record per message, keyed by conversation id
// so records of one conversation stay on one partition, in order.
type KafkaMessageSink struct {
	writer kafkaWriter
}

var _ MessageSink = (*KafkaMessageSink)(nil)

// NewKafkaMessageSink create KafkaMessageSink
func NewKafkaMessageSink(w *kafka.Writer) *KafkaMessageSink {
	return &KafkaMessageSink{writer: w}
}

// MessageSent write record
func (s *KafkaMessageSink) MessageSent(ctx context.Context, rec domain.MessageSent) error {
	msg, err := encodeMessageSent(rec)
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return errprocess.Wrap(errprocess.Internal, "kafka write", err)
	}
	return nil
}

func encodeMessageSent(rec domain.MessageSent) (kafka.Message, error) {
	value, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(rec.ConversationID),
		Value: value,
		Time:  rec.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(KafkaEventType)},
		},
	}, nil
}

// NopMessageSink drops records; used when no brokers are configured.
type NopMessageSink struct{}

// MessageSent no-op
func (NopMessageSink) MessageSent(context.Context, domain.MessageSent) error { return nil }
