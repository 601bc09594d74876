package outbox

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
)

// EventDescriptor links an event type to its aggregate, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a decoded outbox row ready for publishing.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   PayloadEnvelope
	Payload    any
}

// NonRetryableError signals the publisher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps err as a NonRetryableError.
func NewNonRetryableError(err error) error {
	return NonRetryableError{Err: err}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// settlementEvents is the closed set of events the settlement flow emits.
var settlementEvents = []EventDescriptor{
	{EventType: enums.EventPurchasePaid, AggregateType: enums.AggregatePurchase, PayloadFactory: func() any { return &PurchasePaidEvent{} }},
	{EventType: enums.EventPurchaseFailed, AggregateType: enums.AggregatePurchase, PayloadFactory: func() any { return &PurchaseFailedEvent{} }},
	{EventType: enums.EventPurchaseOversold, AggregateType: enums.AggregatePurchase, PayloadFactory: func() any { return &PurchaseOversoldEvent{} }},
	{EventType: enums.EventPurchaseRefundRequired, AggregateType: enums.AggregatePurchase, PayloadFactory: func() any { return &PurchaseRefundRequiredEvent{} }},
	{EventType: enums.EventEscrowOpened, AggregateType: enums.AggregateEscrowOrder, PayloadFactory: func() any { return &EscrowOpenedEvent{} }},
	{EventType: enums.EventEscrowReleased, AggregateType: enums.AggregateEscrowOrder, PayloadFactory: func() any { return &EscrowReleasedEvent{} }},
	{EventType: enums.EventPickupConfirmed, AggregateType: enums.AggregateEscrowOrder, PayloadFactory: func() any { return &PickupConfirmedEvent{} }},
	{EventType: enums.EventConnectOnboarded, AggregateType: enums.AggregateConnectAccount, PayloadFactory: func() any { return &ConnectOnboardedEvent{} }},
}

// AggregateFor returns the aggregate an event type must be emitted against.
func AggregateFor(eventType enums.OutboxEventType) (enums.OutboxAggregateType, bool) {
	for _, desc := range settlementEvents {
		if desc.EventType == eventType {
			return desc.AggregateType, true
		}
	}
	return "", false
}

// NewEventRegistry routes every settlement event to topic.
func NewEventRegistry(topic string) (*EventRegistry, error) {
	if topic == "" {
		return nil, errors.New("settlement topic is required")
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(settlementEvents))}
	for _, desc := range settlementEvents {
		desc.Topic = topic
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Resolve decodes the envelope and payload of row, validating it against the
// registered descriptor. Decode failures are non-retryable.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[row.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("event type %s not registered", row.EventType))
	}
	if desc.AggregateType != row.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("event %s expects aggregate %s, got %s", row.EventType, desc.AggregateType, row.AggregateType))
	}
	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
