package notify

import (
	"context"
	"strings"
	"time"

	k "github.com/segmentio/kafka-go"

	"foodcoop/pkg/logger"
)

// Producer publishes relayed outbox messages to a Kafka topic.
// Messages are keyed by order id so events of one order keep their order.
type Producer struct {
	writer *k.Writer
	log    *logger.Logger
}

// NewProducer creates a producer for a comma separated broker list.
func NewProducer(brokersCSV, topic string, log *logger.Logger) *Producer {
	return &Producer{
		writer: &k.Writer{
			Addr:         k.TCP(SplitBrokers(brokersCSV)...),
			Topic:        topic,
			Balancer:     &k.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: k.RequireOne,
		},
		log: log.WithComponent("kafka"),
	}
}

// SplitBrokers parses a comma separated broker list, skipping blanks.
func SplitBrokers(brokersCSV string) []string {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Publish implements postgres.Publisher.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	p.log.WithContext(ctx).Debugw("producer write message", "key", key, "bytes", len(value))

	return p.writer.WriteMessages(ctx, k.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	})
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	p.log.Info("close producer")
	return p.writer.Close()
}
