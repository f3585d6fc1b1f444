package database

import (
	"context"
	"fmt"
	"time"

	"school_messaging_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewKafkaWriterWithRetry dials the brokers until one answers, then returns
// a writer keyed by message Key (hash balancer keeps one conversation on one partition).
func NewKafkaWriterWithRetry(ctx context.Context, k KafkaConnection) (*kafka.Writer, error) {
	if len(k.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}

	attempts := k.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var conn *kafka.Conn
		conn, err = kafka.DialContext(ctx, "tcp", k.Brokers[0])
		if err == nil {
			conn.Close()
			return &kafka.Writer{
				Addr:         kafka.TCP(k.Brokers...),
				Topic:        k.Topic,
				Balancer:     &kafka.Hash{},
				RequiredAcks: kafka.RequireOne,
				BatchTimeout: 50 * time.Millisecond,
				// 不自動建 topic，由部署端負責
				AllowAutoTopicCreation: false,
			}, nil
		}

		logger.Log.Warn("Kafka dial failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Strings("brokers", k.Brokers),
			zap.Error(err),
		)
		time.Sleep(k.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("kafka writer unavailable after %d attempts: %w", attempts, err)
}
