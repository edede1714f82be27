package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/merakimart/backend/pkg/config"
	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	"github.com/merakimart/backend/pkg/outbox"
	"github.com/merakimart/backend/pkg/outbox/payloads"
)

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "mm-order-events"})
	if err != nil {
		t.Fatalf("NewEventRegistry: %v", err)
	}
	return reg
}

func envelopeRow(t *testing.T, eventType enums.OutboxEventType, aggType enums.OutboxAggregateType, data interface{}) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       raw,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggType,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestResolveOrderPaid(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, enums.EventOrderPaid, enums.AggregateOrder, payloads.OrderPaidEvent{
		OrderID:     uuid.New(),
		AmountPaise: 49900,
	})

	resolved, err := reg.Resolve(row)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Descriptor.Topic != "mm-order-events" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	paid, ok := resolved.Payload.(*payloads.OrderPaidEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if paid.AmountPaise != 49900 {
		t.Fatalf("unexpected amount %d", paid.AmountPaise)
	}
}

func TestResolveRejectsUnknownType(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, enums.EventNotificationRequested, enums.AggregateOrder, map[string]string{"x": "y"})

	_, err := reg.Resolve(row)
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected NonRetryableError, got %v", err)
	}
}

func TestResolveRejectsAggregateMismatch(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, enums.EventOrderPaid, enums.AggregateUser, payloads.OrderPaidEvent{})

	_, err := reg.Resolve(row)
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected NonRetryableError, got %v", err)
	}
}

func TestResolveRejectsEmptyPayload(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, enums.EventOrderPaid, enums.AggregateOrder, nil)

	_, err := reg.Resolve(row)
	var nonRetry NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected NonRetryableError, got %v", err)
	}
}
