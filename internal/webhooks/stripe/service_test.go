package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/hotmess/hotmess-backend/internal/connect"
	"github.com/hotmess/hotmess-backend/internal/settlement"
)

type fakeApplier struct {
	successes []settlement.PaymentSucceeded
	failures  []settlement.PaymentFailed
	err       error
}

func (f *fakeApplier) ApplySuccess(_ context.Context, in settlement.PaymentSucceeded) (*settlement.Outcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.successes = append(f.successes, in)
	return &settlement.Outcome{PurchaseID: in.PurchaseID, Result: settlement.ResultApplied}, nil
}

func (f *fakeApplier) ApplyFailure(_ context.Context, in settlement.PaymentFailed) (*settlement.Outcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.failures = append(f.failures, in)
	return &settlement.Outcome{PurchaseID: in.PurchaseID, Result: settlement.ResultFailed}, nil
}

type fakeSyncer struct {
	updates []connect.AccountUpdate
}

func (f *fakeSyncer) SyncAccount(_ context.Context, u connect.AccountUpdate) error {
	f.updates = append(f.updates, u)
	return nil
}

type recordingMetrics struct {
	outcomes []string
}

func (m *recordingMetrics) WebhookEvent(eventType, outcome string) {
	m.outcomes = append(m.outcomes, eventType+":"+outcome)
}

func newTestService(t *testing.T) (*Service, *fakeApplier, *fakeSyncer, *recordingMetrics) {
	t.Helper()
	applier, syncer, metrics := &fakeApplier{}, &fakeSyncer{}, &recordingMetrics{}
	svc, err := NewService(ServiceParams{Applier: applier, Connect: syncer, Metrics: metrics})
	require.NoError(t, err)
	return svc, applier, syncer, metrics
}

func event(t *testing.T, kind stripe.EventType, object any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_" + uuid.NewString(), Type: kind, Data: &stripe.EventData{Raw: raw}}
}

func TestCheckoutCompletedPaidAppliesSuccess(t *testing.T) {
	svc, applier, _, metrics := newTestService(t)
	purchaseID := uuid.New()

	err := svc.HandleEvent(context.Background(), event(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":             "cs_test_1",
		"payment_status": "paid",
		"payment_intent": "pi_123",
		"metadata":       map[string]string{"purchase_id": purchaseID.String()},
	}))
	require.NoError(t, err)
	require.Len(t, applier.successes, 1)
	assert.Equal(t, purchaseID, applier.successes[0].PurchaseID)
	assert.Equal(t, "cs_test_1", applier.successes[0].SessionID)
	assert.Equal(t, "pi_123", applier.successes[0].PaymentIntentID)
	assert.Equal(t, []string{"checkout.session.completed:handled"}, metrics.outcomes)
}

func TestCheckoutCompletedUnpaidIsIgnored(t *testing.T) {
	svc, applier, _, metrics := newTestService(t)

	err := svc.HandleEvent(context.Background(), event(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":             "cs_test_2",
		"payment_status": "unpaid",
	}))
	require.NoError(t, err)
	assert.Empty(t, applier.successes)
	assert.Equal(t, []string{"checkout.session.completed:ignored"}, metrics.outcomes)
}

func TestSessionWithoutMetadataFallsBackToClientReference(t *testing.T) {
	svc, applier, _, _ := newTestService(t)
	purchaseID := uuid.New()

	err := svc.HandleEvent(context.Background(), event(t, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, map[string]any{
		"id":                  "cs_test_3",
		"client_reference_id": purchaseID.String(),
	}))
	require.NoError(t, err)
	require.Len(t, applier.successes, 1)
	assert.Equal(t, purchaseID, applier.successes[0].PurchaseID)
}

func TestPaymentIntentEvents(t *testing.T) {
	svc, applier, _, _ := newTestService(t)
	purchaseID := uuid.New()
	meta := map[string]string{"purchase_id": purchaseID.String()}

	require.NoError(t, svc.HandleEvent(context.Background(), event(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{"id": "pi_1", "metadata": meta})))
	require.Len(t, applier.successes, 1)
	assert.Equal(t, "pi_1", applier.successes[0].PaymentIntentID)

	// intent ids are reused across retries; a decline is not terminal
	require.NoError(t, svc.HandleEvent(context.Background(), event(t, stripe.EventTypePaymentIntentPaymentFailed, map[string]any{
		"id":                 "pi_2",
		"metadata":           meta,
		"last_payment_error": map[string]any{"message": "card declined"},
	})))
	assert.Empty(t, applier.failures)

	// intents created outside checkout carry no purchase metadata
	require.NoError(t, svc.HandleEvent(context.Background(), event(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{"id": "pi_3"})))
	assert.Len(t, applier.successes, 1)
}

func TestAsyncFailureAppliesFailure(t *testing.T) {
	svc, applier, _, _ := newTestService(t)

	require.NoError(t, svc.HandleEvent(context.Background(), event(t, stripe.EventTypeCheckoutSessionAsyncPaymentFailed, map[string]any{"id": "cs_test_4"})))
	require.Len(t, applier.failures, 1)
	assert.Equal(t, "cs_test_4", applier.failures[0].SessionID)
	assert.Equal(t, uuid.Nil, applier.failures[0].PurchaseID)
}

func TestExpiredSessionAppliesFailure(t *testing.T) {
	svc, applier, _, metrics := newTestService(t)
	purchaseID := uuid.New()

	require.NoError(t, svc.HandleEvent(context.Background(), event(t, stripe.EventTypeCheckoutSessionExpired, map[string]any{
		"id":       "cs_test_5",
		"metadata": map[string]string{"purchase_id": purchaseID.String()},
	})))
	require.Len(t, applier.failures, 1)
	assert.Equal(t, purchaseID, applier.failures[0].PurchaseID)
	assert.Equal(t, "checkout.session.expired", applier.failures[0].Reason)
	assert.Equal(t, []string{"checkout.session.expired:handled"}, metrics.outcomes)
}

func TestDeclinedAttemptThenPaidSessionSettlesSuccess(t *testing.T) {
	svc, applier, _, metrics := newTestService(t)
	purchaseID := uuid.New()
	meta := map[string]string{"purchase_id": purchaseID.String()}

	require.NoError(t, svc.HandleEvent(context.Background(), event(t, stripe.EventTypePaymentIntentPaymentFailed, map[string]any{
		"id":                 "pi_retry",
		"metadata":           meta,
		"last_payment_error": map[string]any{"message": "Your card was declined."},
	})))
	require.NoError(t, svc.HandleEvent(context.Background(), event(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":             "cs_retry",
		"payment_status": "paid",
		"payment_intent": "pi_retry",
		"metadata":       meta,
	})))

	assert.Empty(t, applier.failures)
	require.Len(t, applier.successes, 1)
	assert.Equal(t, purchaseID, applier.successes[0].PurchaseID)
	assert.Equal(t, []string{"payment_intent.payment_failed:ignored", "checkout.session.completed:handled"}, metrics.outcomes)
}

func TestAccountUpdatedSyncsConnect(t *testing.T) {
	svc, _, syncer, _ := newTestService(t)

	require.NoError(t, svc.HandleEvent(context.Background(), event(t, stripe.EventTypeAccountUpdated, map[string]any{
		"id":                "acct_1",
		"charges_enabled":   true,
		"details_submitted": true,
	})))
	require.Len(t, syncer.updates, 1)
	assert.Equal(t, connect.AccountUpdate{AccountID: "acct_1", ChargesEnabled: true, DetailsSubmitted: true}, syncer.updates[0])
}

func TestUnknownEventIgnoredAndErrorsSurface(t *testing.T) {
	svc, applier, _, metrics := newTestService(t)

	require.NoError(t, svc.HandleEvent(context.Background(), event(t, "customer.created", map[string]any{"id": "cus_1"})))

	applier.err = errors.New("db down")
	err := svc.HandleEvent(context.Background(), event(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{
		"id":       "pi_9",
		"metadata": map[string]string{"purchase_id": uuid.NewString()},
	}))
	require.Error(t, err)
	assert.Equal(t, []string{"customer.created:ignored", "payment_intent.succeeded:error"}, metrics.outcomes)
}

func TestEventFromOtherEnvironmentIgnored(t *testing.T) {
	applier := &fakeApplier{}
	live := true
	svc, err := NewService(ServiceParams{Applier: applier, Connect: &fakeSyncer{}, Livemode: &live})
	require.NoError(t, err)

	evt := event(t, stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":             "cs_test_2",
		"payment_status": "paid",
		"metadata":       map[string]string{"purchase_id": uuid.NewString()},
	})
	require.NoError(t, svc.HandleEvent(context.Background(), evt))
	assert.Empty(t, applier.successes)

	evt.Livemode = true
	require.NoError(t, svc.HandleEvent(context.Background(), evt))
	assert.Len(t, applier.successes, 1)
}
