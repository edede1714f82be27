package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/merakimart/backend/pkg/config"
	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	"github.com/merakimart/backend/pkg/outbox"
	"github.com/merakimart/backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, fmt.Errorf("orders topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	topic := cfg.OrdersTopic

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventOrderCreated,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() interface{} { return &payloads.OrderCreatedEvent{} },
		},
		{
			EventType:      enums.EventOrderPaid,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() interface{} { return &payloads.OrderPaidEvent{} },
		},
		{
			EventType:      enums.EventOrderShipped,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() interface{} { return &payloads.OrderStatusEvent{} },
		},
		{
			EventType:      enums.EventOrderDelivered,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() interface{} { return &payloads.OrderStatusEvent{} },
		},
		{
			EventType:      enums.EventOrderCancelled,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() interface{} { return &payloads.OrderCancelledEvent{} },
		},
		{
			EventType:      enums.EventOrderPaymentExpired,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() interface{} { return &payloads.OrderPaymentExpiredEvent{} },
		},
		{
			EventType:      enums.EventUserRegistered,
			AggregateType:  enums.AggregateUser,
			PayloadFactory: func() interface{} { return &payloads.UserRegisteredEvent{} },
		},
		{
			EventType:      enums.EventPointsAccrued,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() interface{} { return &payloads.PointsAccruedEvent{} },
		},
		{
			EventType:      enums.EventPointsRedeemed,
			AggregateType:  enums.AggregatePointTransaction,
			PayloadFactory: func() interface{} { return &payloads.PointsRedeemedEvent{} },
		},
		{
			EventType:      enums.EventReferralBonusAwarded,
			AggregateType:  enums.AggregateUser,
			PayloadFactory: func() interface{} { return &payloads.ReferralBonusAwardedEvent{} },
		},
		{
			EventType:      enums.EventReviewSubmitted,
			AggregateType:  enums.AggregateReview,
			PayloadFactory: func() interface{} { return &payloads.ReviewSubmittedEvent{} },
		},
		{
			EventType:      enums.EventReviewModerated,
			AggregateType:  enums.AggregateReview,
			PayloadFactory: func() interface{} { return &payloads.ReviewModeratedEvent{} },
		},
		{
			EventType:      enums.EventGiftCardIssued,
			AggregateType:  enums.AggregateGiftCard,
			PayloadFactory: func() interface{} { return &payloads.GiftCardIssuedEvent{} },
		},
		{
			EventType:      enums.EventGiftCardRedeemed,
			AggregateType:  enums.AggregateGiftCard,
			PayloadFactory: func() interface{} { return &payloads.GiftCardRedeemedEvent{} },
		},
	} {
		desc.Topic = topic
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
