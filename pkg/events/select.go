package events

import (
	"fmt"

	"go.uber.org/zap"
)

// Settings picks and configures a broker.
type Settings struct {
	Driver          string // none, rabbitmq, kafka
	RabbitMQURL     string
	RabbitMQQueue   string
	ChannelPoolSize int
	KafkaBroker     string
	KafkaTopic      string
}

func NewPublisher(s Settings, logger *zap.Logger) (Publisher, error) {
	switch s.Driver {
	case "", "none":
		return Noop{}, nil
	case "rabbitmq":
		pool, err := NewChannelPool(s.RabbitMQURL, s.RabbitMQQueue, s.ChannelPoolSize, logger)
		if err != nil {
			return nil, err
		}
		return NewRabbitPublisher(pool, s.RabbitMQQueue, logger), nil
	case "kafka":
		return NewKafkaPublisher(s.KafkaBroker, s.KafkaTopic, logger), nil
	}
	return nil, fmt.Errorf("unknown events driver %q", s.Driver)
}
