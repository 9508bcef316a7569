package notify

import (
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"quickbite/internal/config"
	"quickbite/internal/logger"
)

// EnsureTopics creates the platform's topics on the controller broker so a
// fresh cluster works without manual setup. Existing topics are left alone.
func EnsureTopics(cfg config.KafkaConfig, log *logger.Logger) error {
	conn, err := kafka.Dial("tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("dialing kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("resolving controller: %w", err)
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dialing controller: %w", err)
	}
	defer controllerConn.Close()

	topics := []string{
		cfg.Topics.OrderStatus,
		cfg.Topics.DeliveryEvents,
		cfg.Topics.PaymentEvents,
		cfg.Topics.PushDispatch,
	}
	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		})
	}

	if err := controllerConn.CreateTopics(configs...); err != nil {
		return fmt.Errorf("creating topics: %w", err)
	}
	for _, topic := range topics {
		log.LogKafka("ENSURE", topic, "topic ready")
	}
	return nil
}
