package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Producer publishes notification payloads to Kafka. The dispatcher that
// turns them into emails lives outside this service. When Kafka is
// disabled by configuration every publish is a logged no-op, so the engine
// runs fine on a laptop without a broker.
type Producer struct {
	writer  *kafka.Writer
	topics  config.TopicConfig
	enabled bool
	logger  *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	p := &Producer{
		topics:  cfg.Topics,
		enabled: cfg.Enabled,
		logger:  log,
	}
	if cfg.Enabled {
		p.writer = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Balancer: &kafka.LeastBytes{},
		}
	}
	return p
}

// Publish marshals the value and writes it to the topic.
func (p *Producer) Publish(topic, key string, value interface{}) error {
	if !p.enabled {
		p.logger.Debug("KAFKA", fmt.Sprintf("publishing disabled, dropping message for topic %s", topic))
		return nil
	}

	msgBytes, err := json.Marshal(value)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
	if err != nil {
		return err
	}

	p.logger.Info("KAFKA", fmt.Sprintf("published to %s (key=%s)", topic, key))
	return nil
}

func (p *Producer) PublishBookingCreated(n models.BookingNotification) error {
	return p.Publish(p.topics.BookingCreated, n.BookingID, n)
}

func (p *Producer) PublishBookingApproved(n models.BookingNotification) error {
	return p.Publish(p.topics.BookingApproved, n.BookingID, n)
}

func (p *Producer) PublishBookingRejected(n models.BookingNotification) error {
	return p.Publish(p.topics.BookingRejected, n.BookingID, n)
}

func (p *Producer) PublishBookingCancelled(n models.BookingNotification) error {
	return p.Publish(p.topics.BookingCancelled, n.BookingID, n)
}

func (p *Producer) PublishPaymentReminder(n models.PaymentReminderNotification) error {
	return p.Publish(p.topics.PaymentReminder, n.BookingID, n)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
