package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hotmess/hotmess-backend/pkg/redis"
)

const receiptScope = "stripe-webhook"

// ReceiptGuard remembers processed event ids in Redis so exact redeliveries
// skip the database. Settlement stays idempotent without it.
type ReceiptGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewReceiptGuard(store redis.IdempotencyStore, ttl time.Duration) (*ReceiptGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("receipt ttl must be positive")
	}
	return &ReceiptGuard{store: store, ttl: ttl}, nil
}

// Claim marks eventID as received. It reports true when an earlier delivery
// already claimed it.
func (g *ReceiptGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(receiptScope, eventID), time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim webhook receipt: %w", err)
	}
	return !set, nil
}

// Release drops the receipt so a failed delivery is processed again on retry.
func (g *ReceiptGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(receiptScope, eventID))
}
