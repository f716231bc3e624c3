// Package events publishes resolved payment outcomes to Kafka so downstream
// services (ledger, owner dashboards) can react without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zelton/internal/payments"
	"zelton/internal/poller"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultTopic = "payment_outcomes"

type PaymentOutcomeEvent struct {
	OrderID   string    `json:"order_id"`
	Kind      string    `json:"kind"`
	PayerID   string    `json:"payer_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Reference string    `json:"plan_or_unit_ref"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPaymentOutcomeEvent(intent payments.Intent, res poller.Result, at time.Time) PaymentOutcomeEvent {
	ev := PaymentOutcomeEvent{
		OrderID:   intent.OrderID,
		Kind:      string(intent.Kind),
		PayerID:   intent.PayerID,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Reference: intent.PlanOrUnitRef,
		Outcome:   string(res.Outcome),
		Reason:    res.Reason,
		Attempts:  res.Attempts,
		Timestamp: at.UTC(),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	return ev
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewKafkaWriter(brokers []string, topic string, logger *zap.SugaredLogger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		AllowAutoTopicCreation: true,
		Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debugf(msg, args...) }),
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Errorf(msg, args...) }),
	}
}

func NewKafkaPublisher(w MessageWriter, logger *zap.SugaredLogger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: 10 * time.Second, logger: logger}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// Notify publishes the outcome keyed by order id, so every event for an
// order lands on the same partition.
func (p *KafkaPublisher) Notify(ctx context.Context, intent payments.Intent, res poller.Result) error {
	value, err := json.Marshal(NewPaymentOutcomeEvent(intent, res, time.Now()))
	if err != nil {
		return fmt.Errorf("encode payment outcome: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(intent.OrderID), Value: value}); err != nil {
		return fmt.Errorf("failed to produce payment outcome to Kafka: %w", err)
	}
	p.logger.Debugw("payment outcome published", "order_id", intent.OrderID, "outcome", res.Outcome)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	p.logger.Info("kafka writer closed")
	return nil
}
