package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"zelton/internal/payments"
	"zelton/internal/poller"

	"github.com/segmentio/kafka-go"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap/zaptest"
)

func TestKafkaPublisherIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("zelton-test"),
	)
	if err != nil {
		t.Skipf("kafka container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	brokers, err := ctr.Brokers(ctx)
	if err != nil {
		t.Fatal(err)
	}

	logger := zaptest.NewLogger(t).Sugar()
	pub := NewKafkaPublisher(NewKafkaWriter(brokers, DefaultTopic, logger), logger)

	intent := payments.Intent{
		OrderID:       "SUB_1700000000_ab12cd34",
		Kind:          payments.KindSubscription,
		Amount:        49900,
		Currency:      "INR",
		PayerID:       "owner-3",
		PlanOrUnitRef: "plan-pro",
	}
	res := poller.Result{OrderID: intent.OrderID, Outcome: payments.Completed, Attempts: 4}

	// The first write may race topic auto-creation.
	deadline := time.Now().Add(30 * time.Second)
	for {
		err = pub.Notify(ctx, intent, res)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatal(err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     DefaultTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	defer reader.Close()

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	msg, err := reader.ReadMessage(readCtx)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	if string(msg.Key) != intent.OrderID {
		t.Errorf("key = %q, want %q", msg.Key, intent.OrderID)
	}
	var ev PaymentOutcomeEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Outcome != "COMPLETED" || ev.Kind != "subscription" || ev.Attempts != 4 {
		t.Errorf("unexpected event %+v", ev)
	}
}
