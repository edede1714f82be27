package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder            OutboxAggregateType = "order"
	AggregateUser             OutboxAggregateType = "user"
	AggregateReview           OutboxAggregateType = "review"
	AggregateGiftCard         OutboxAggregateType = "gift_card"
	AggregatePointTransaction OutboxAggregateType = "point_transaction"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateUser,
	AggregateReview,
	AggregateGiftCard,
	AggregatePointTransaction,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderPaid             OutboxEventType = "order_paid"
	EventOrderShipped          OutboxEventType = "order_shipped"
	EventOrderDelivered        OutboxEventType = "order_delivered"
	EventOrderCancelled        OutboxEventType = "order_cancelled"
	EventOrderPaymentExpired   OutboxEventType = "order_payment_expired"
	EventUserRegistered        OutboxEventType = "user_registered"
	EventPointsAccrued         OutboxEventType = "points_accrued"
	EventPointsRedeemed        OutboxEventType = "points_redeemed"
	EventReferralBonusAwarded  OutboxEventType = "referral_bonus_awarded"
	EventReviewSubmitted       OutboxEventType = "review_submitted"
	EventReviewModerated       OutboxEventType = "review_moderated"
	EventGiftCardIssued        OutboxEventType = "gift_card_issued"
	EventGiftCardRedeemed      OutboxEventType = "gift_card_redeemed"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderShipped,
	EventOrderDelivered,
	EventOrderCancelled,
	EventOrderPaymentExpired,
	EventUserRegistered,
	EventPointsAccrued,
	EventPointsRedeemed,
	EventReferralBonusAwarded,
	EventReviewSubmitted,
	EventReviewModerated,
	EventGiftCardIssued,
	EventGiftCardRedeemed,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason maps to the outbox_dlq_error_reason_enum in Postgres.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)

// IsValid reports whether the value matches the canonical DLQ reason enum.
func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonNonRetryable || r == OutboxDLQReasonMaxAttempts
}
