package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

type ChannelPool struct {
	conn      *amqp.Connection
	channels  chan *amqp.Channel
	mu        sync.Mutex
	closed    bool
	queueName string
	logger    *zap.Logger
}

// NewChannelPool dials RabbitMQ and pre-opens size channels, each with the queue declared.
func NewChannelPool(url, queueName string, size int, logger *zap.Logger) (*ChannelPool, error) {
	if size < 1 {
		size = 1
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	pool := &ChannelPool{
		conn:      conn,
		channels:  make(chan *amqp.Channel, size),
		queueName: queueName,
		logger:    logger,
	}

	for i := 0; i < size; i++ {
		ch, err := pool.createChannel()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create channel %d: %w", i, err)
		}
		pool.channels <- ch
	}

	logger.Info("Created RabbitMQ channel pool", zap.Int("size", size), zap.String("queue", queueName))
	return pool, nil
}

func (p *ChannelPool) createChannel() (*amqp.Channel, error) {
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		p.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return ch, nil
}

// Get waits for a free channel until ctx is done. A channel that was closed by the
// broker is replaced.
func (p *ChannelPool) Get(ctx context.Context) (*amqp.Channel, error) {
	select {
	case ch, ok := <-p.channels:
		if !ok {
			return nil, errors.New("channel pool closed")
		}
		if ch.IsClosed() {
			return p.createChannel()
		}
		return ch, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no channels available in pool: %w", ctx.Err())
	}
}

func (p *ChannelPool) Put(ch *amqp.Channel) {
	if ch == nil || ch.IsClosed() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		ch.Close()
		return
	}
	select {
	case p.channels <- ch:
	default:
		ch.Close()
	}
}

func (p *ChannelPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	close(p.channels)
	for ch := range p.channels {
		ch.Close()
	}
	var err error
	if p.conn != nil {
		err = p.conn.Close()
	}
	p.logger.Info("Closed RabbitMQ channel pool")
	return err
}

type RabbitPublisher struct {
	pool      *ChannelPool
	queueName string
	logger    *zap.Logger
}

func NewRabbitPublisher(pool *ChannelPool, queueName string, logger *zap.Logger) *RabbitPublisher {
	return &RabbitPublisher{pool: pool, queueName: queueName, logger: logger}
}

func (p *RabbitPublisher) Publish(ctx context.Context, event OrderEvent) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ch, err := p.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get channel from pool: %w", err)
	}
	defer p.pool.Put(ch)

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := amqp.Table{}
	for k, v := range traceHeaders(ctx) {
		headers[k] = v
	}

	err = ch.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.ID,
			Type:         string(event.Type),
			Timestamp:    event.OccurredAt,
			Headers:      headers,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Published order event",
		zap.String("type", string(event.Type)),
		zap.String("order_number", event.OrderNumber))
	return nil
}

func (p *RabbitPublisher) Close() error {
	return p.pool.Close()
}
