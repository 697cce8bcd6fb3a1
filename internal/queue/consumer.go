package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// StartOutboundConsumer connects to RabbitMQ, declares the
// notification.outbound queue (durable), and starts consuming messages.
// Each message is handed to the delivery worker, which currently records
// a structured delivery log entry; a real SMS/email gateway slots in
// behind the same loop.  The function runs a reconnect loop with
// exponential backoff and keeps running until the process exits,
// rejecting messages that fail to decode so the server continues
// operating.
func StartOutboundConsumer(url string, logger *zap.Logger) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("outbound-consumer: failed to dial broker",
				zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, logger); err != nil {
			logger.Warn("outbound-consumer: consume loop ended, reconnecting", zap.Error(err))
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, logger *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("outbound-consumer: set QoS failed", zap.Error(err))
	}

	if _, err := ch.QueueDeclare(OutboundQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(OutboundQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, logger); err != nil {
			logger.Error("outbound-consumer: handle message failed", zap.Error(err))
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, logger *zap.Logger) error {
	var msg OutboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	logger.Info("notification delivered",
		zap.String("message_id", msg.MessageID),
		zap.String("kind", msg.Kind),
		zap.String("channel", msg.Channel),
		zap.String("to", msg.To),
		zap.String("booking_reference", msg.BookingReference),
	)
	return nil
}
