package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the optional additive Kafka sink.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// KafkaSink publishes events to a Kafka topic for downstream cluster
// consumers. It is purely additive: the in-process dispatcher is the
// source of truth and sink failures never gate a lifecycle transition.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink returns nil, nil when cfg.Enabled is false.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &KafkaSink{writer: writer}, nil
}

// Publish marshals ev to JSON and writes it to the configured topic.
func (s *KafkaSink) Publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writer.WriteMessages(ctx, kafka.Message{
		Value: payload,
		Time:  ev.Timestamp,
	})
}

// Close flushes and closes the underlying Kafka writer.
func (s *KafkaSink) Close() error {
	if err := s.writer.Close(); err != nil {
		log.Warn().Err(err).Msg("eventbus: kafka sink close failed")
		return err
	}
	return nil
}
