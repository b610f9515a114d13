package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher writes events keyed by order id so every event of one order lands on
// the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaPublisher(broker, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := []kafka.Header{{Key: "type", Value: []byte(event.Type)}}
	for k, v := range traceHeaders(ctx) {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.OrderID.Hex()),
		Value:   body,
		Headers: headers,
		Time:    event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	p.logger.Debug("Wrote order event",
		zap.String("type", string(event.Type)),
		zap.String("topic", p.writer.Topic))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
