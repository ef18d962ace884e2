package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/oakmart/api/internal/services"
)

func newTestTopic(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	t.Helper()

	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() {
		_ = srv.Close()
	})

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	topic, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return srv, topic
}

func TestPubSubOrderEventPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv, topic := newTestTopic(t)

	publisher, err := NewPubSubOrderEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderEventPublisher: %v", err)
	}

	occurredAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	event := services.OrderEvent{
		Type:          "order.placed",
		OrderID:       "ord_1",
		OrderNumber:   "OM-2026-000001",
		CustomerID:    "cus_1",
		Status:        "pending",
		PaymentStatus: "completed",
		OccurredAt:    occurredAt,
	}

	if _, err := publisher.PublishOrderEvent(ctx, event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Type != event.Type || payload.OrderID != event.OrderID {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if !payload.OccurredAt.Equal(occurredAt) {
		t.Fatalf("expected occurredAt preserved, got %s", payload.OccurredAt)
	}

	attrs := messages[0].Attributes
	if attrs["eventType"] != "order.placed" {
		t.Fatalf("expected eventType attribute, got %q", attrs["eventType"])
	}
	if attrs["orderId"] != "ord_1" || attrs["orderNumber"] != "OM-2026-000001" {
		t.Fatalf("unexpected order attributes %#v", attrs)
	}
	if _, ok := attrs["paymentStatus"]; ok {
		t.Fatalf("paymentStatus attribute should not be present")
	}
}

func TestPubSubOrderEventPublisherOmitsEmptyAttributes(t *testing.T) {
	ctx := context.Background()
	srv, topic := newTestTopic(t)

	publisher, err := NewPubSubOrderEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderEventPublisher: %v", err)
	}

	event := services.OrderEvent{
		Type:    "order.status.changed",
		OrderID: "ord_2",
	}
	if _, err := publisher.PublishOrderEvent(ctx, event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	attrs := messages[0].Attributes
	for _, key := range []string{"orderNumber", "customerId", "status"} {
		if _, ok := attrs[key]; ok {
			t.Fatalf("expected %s attribute to be omitted, got %#v", key, attrs)
		}
	}
}

func TestPubSubOrderEventPublisherMarshalFailure(t *testing.T) {
	_, topic := newTestTopic(t)

	publisher, err := NewPubSubOrderEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderEventPublisher: %v", err)
	}
	publisher.marshal = func(any) ([]byte, error) {
		return nil, errors.New("boom")
	}

	if _, err := publisher.PublishOrderEvent(context.Background(), services.OrderEvent{Type: "order.placed"}); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestPubSubOrderEventPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubOrderEventPublisher(nil); err == nil {
		t.Fatalf("expected error for nil topic")
	}
}
