package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"quickbite/internal/config"
	"quickbite/internal/logger"
	"quickbite/internal/models"
)

// Producer mirrors domain events onto kafka for downstream consumers
// (analytics, push dispatch). Publishing is best-effort: callers log a
// failed publish and move on.
type Producer struct {
	writer *kafka.Writer
	topics config.TopicConfig
	log    *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer, topics: cfg.Topics, log: log}
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: raw,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("writing to %s: %w", topic, err)
	}
	p.log.LogKafka("PUBLISH", topic, key)
	return nil
}

// PublishOrderStatus mirrors a status transition, keyed by order id so a
// single order's history stays in partition order.
func (p *Producer) PublishOrderStatus(ctx context.Context, ord *models.Order, previous string) error {
	return p.publish(ctx, p.topics.OrderStatus, ord.ID, map[string]interface{}{
		"order_id":        ord.ID,
		"user_id":         ord.UserID,
		"restaurant_id":   ord.RestaurantID,
		"driver_id":       ord.DriverID,
		"status":          ord.Status,
		"previous_status": previous,
		"total":           ord.Total,
	})
}

func (p *Producer) PublishDeliveryEvent(ctx context.Context, ord *models.Order, event string) error {
	return p.publish(ctx, p.topics.DeliveryEvents, ord.ID, map[string]interface{}{
		"event":     event,
		"order_id":  ord.ID,
		"driver_id": ord.DriverID,
	})
}

func (p *Producer) PublishPaymentEvent(ctx context.Context, ord *models.Order, status string) error {
	return p.publish(ctx, p.topics.PaymentEvents, ord.ID, map[string]interface{}{
		"order_id":       ord.ID,
		"restaurant_id":  ord.RestaurantID,
		"payment_status": status,
		"total":          ord.Total,
	})
}

// PublishPush hands a push notification to the dispatch worker.
func (p *Producer) PublishPush(ctx context.Context, userIDs []string, title, body string) error {
	return p.publish(ctx, p.topics.PushDispatch, title, map[string]interface{}{
		"user_ids": userIDs,
		"title":    title,
		"body":     body,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
