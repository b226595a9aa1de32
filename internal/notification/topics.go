package notification

import (
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/config"
)

// EnsureTopicsExist creates the notification topics if they don't already exist
func EnsureTopicsExist(cfg config.KafkaConfig) error {
	if !cfg.Enabled {
		return nil
	}

	topics := []string{
		cfg.Topics.BookingCreated,
		cfg.Topics.BookingApproved,
		cfg.Topics.BookingRejected,
		cfg.Topics.BookingCancelled,
		cfg.Topics.PaymentReminder,
	}

	// Connect to the first broker to create topics
	conn, err := kafka.Dial("tcp", cfg.Brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", controller.Host)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		topicConfigs := []kafka.TopicConfig{
			{
				Topic:             topic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			},
		}

		err = controllerConn.CreateTopics(topicConfigs...)
		if err != nil {
			// If error contains "already exists", it's not a problem
			if err.Error() == "kafka server: topic already exists" {
				log.Printf("Topic %s already exists", topic)
				continue
			}
			log.Printf("Error creating topic %s: %v", topic, err)
			// Continue trying to create other topics even if one fails
		} else {
			log.Printf("Created topic: %s", topic)
		}
	}

	// Wait a moment for topics to be fully created
	time.Sleep(1 * time.Second)
	return nil
}
