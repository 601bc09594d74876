package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePurchase       OutboxAggregateType = "purchase"
	AggregateEscrowOrder    OutboxAggregateType = "escrow_order"
	AggregateConnectAccount OutboxAggregateType = "connect_account"
)

var validOutboxAggregateTypes = []OutboxAggregateType{
	AggregatePurchase,
	AggregateEscrowOrder,
	AggregateConnectAccount,
}

// IsValid reports whether the value matches the canonical aggregate type enum.
func (v OutboxAggregateType) IsValid() bool {
	for _, candidate := range validOutboxAggregateTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validOutboxAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPurchasePaid     OutboxEventType = "purchase_paid"
	EventPurchaseFailed   OutboxEventType = "purchase_failed"
	EventPurchaseOversold OutboxEventType = "purchase_oversold"
	EventEscrowOpened     OutboxEventType = "escrow_opened"
	EventEscrowReleased   OutboxEventType = "escrow_released"
	EventPickupConfirmed  OutboxEventType = "pickup_confirmed"
	EventConnectOnboarded OutboxEventType = "connect_onboarded"

	EventPurchaseRefundRequired OutboxEventType = "purchase_refund_required"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPurchasePaid,
	EventPurchaseFailed,
	EventPurchaseOversold,
	EventEscrowOpened,
	EventEscrowReleased,
	EventPickupConfirmed,
	EventConnectOnboarded,
	EventPurchaseRefundRequired,
}

// IsValid reports whether the value matches the canonical event type enum.
func (v OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == v {
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
