package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"xp_engine/pkg/logger"
	"xp_engine/pkg/monitoring"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Publisher interface {
	SendActivityCompletedEvent(ctx context.Context, evt *ActivityCompletedEvent) error
	SendTimeSpentEvent(ctx context.Context, evt *TimeSpentEvent) error
	Close() error
}

type EventPublisher struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	enabled      bool
}

func NewEventPublisher(url, exchange string) (*EventPublisher, error) {
	if url == "" {
		logger.Log.Warn("RabbitMQ URL is empty, analytics publishing is disabled")
		return &EventPublisher{enabled: false}, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &EventPublisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchange,
		enabled:      true,
	}, nil
}

func (p *EventPublisher) SendActivityCompletedEvent(ctx context.Context, evt *ActivityCompletedEvent) error {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	return p.publish(ctx, RoutingActivityCompleted, evt.EventID, evt)
}

func (p *EventPublisher) SendTimeSpentEvent(ctx context.Context, evt *TimeSpentEvent) error {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	return p.publish(ctx, RoutingTimeSpent, evt.EventID, evt)
}

func (p *EventPublisher) publish(ctx context.Context, routingKey, messageID string, payload any) error {
	if !p.enabled {
		logger.Log.Debug("analytics publishing disabled, skipping event", zap.String("routingKey", routingKey))
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		monitoring.AnalyticsEvents.WithLabelValues(routingKey, "error").Inc()
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	monitoring.AnalyticsEvents.WithLabelValues(routingKey, "sent").Inc()
	return nil
}

func (p *EventPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
