package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/hotmess/hotmess-backend/internal/connect"
	"github.com/hotmess/hotmess-backend/internal/settlement"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/logger"
	pkgstripe "github.com/hotmess/hotmess-backend/pkg/stripe"
)

// Outcome labels for webhook metrics.
const (
	OutcomeHandled = "handled"
	OutcomeIgnored = "ignored"
	OutcomeError   = "error"
)

type accountSyncer interface {
	SyncAccount(ctx context.Context, update connect.AccountUpdate) error
}

type webhookMetrics interface {
	WebhookEvent(eventType, outcome string)
}

// ServiceParams wires the webhook dispatcher.
type ServiceParams struct {
	Applier settlement.Applier
	Connect accountSyncer
	Metrics webhookMetrics
	Logger  *logger.Logger
	// Livemode, when set, drops events from the other Stripe environment.
	Livemode *bool
}

// Service routes verified Stripe events to the settlement applier and the
// Connect onboarding sync.
type Service struct {
	applier  settlement.Applier
	connect  accountSyncer
	metrics  webhookMetrics
	logg     *logger.Logger
	livemode *bool
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Applier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement applier required")
	}
	if params.Connect == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "connect service required")
	}
	return &Service{
		applier:  params.Applier,
		connect:  params.Connect,
		metrics:  params.Metrics,
		logg:     params.Logger,
		livemode: params.Livemode,
	}, nil
}

// HandleEvent applies event. Returned errors make the provider redeliver, so
// only store or dependency failures are surfaced.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	if s.logg != nil {
		ctx = s.logg.WithStripeEvent(ctx, event.ID, string(event.Type))
	}

	handled, err := s.dispatch(ctx, event)
	outcome := OutcomeIgnored
	switch {
	case err != nil:
		outcome = OutcomeError
	case handled:
		outcome = OutcomeHandled
	}
	if s.metrics != nil {
		s.metrics.WebhookEvent(string(event.Type), outcome)
	}
	return err
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) (bool, error) {
	if s.livemode != nil && event.Livemode != *s.livemode {
		s.warn(s.logWith(ctx, "livemode", event.Livemode), "stripe event from other environment ignored")
		return false, nil
	}
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		sess, err := decode[stripe.CheckoutSession](event)
		if err != nil {
			return false, err
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			// async methods settle later through async_payment_succeeded.
			return false, nil
		}
		return s.succeeded(ctx, sessionSuccess(sess))
	case stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		sess, err := decode[stripe.CheckoutSession](event)
		if err != nil {
			return false, err
		}
		return s.succeeded(ctx, sessionSuccess(sess))
	case stripe.EventTypePaymentIntentSucceeded:
		pi, err := decode[stripe.PaymentIntent](event)
		if err != nil {
			return false, err
		}
		return s.succeeded(ctx, settlement.PaymentSucceeded{
			PurchaseID:      s.purchaseID(ctx, pi.Metadata, ""),
			PaymentIntentID: pi.ID,
		})
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed, stripe.EventTypeCheckoutSessionExpired:
		sess, err := decode[stripe.CheckoutSession](event)
		if err != nil {
			return false, err
		}
		return s.failed(ctx, settlement.PaymentFailed{
			PurchaseID: s.purchaseID(ctx, sess.Metadata, sess.ClientReferenceID),
			SessionID:  sess.ID,
			Reason:     string(event.Type),
		})
	case stripe.EventTypePaymentIntentPaymentFailed:
		// A declined attempt leaves the checkout session open for retries.
		pi, err := decode[stripe.PaymentIntent](event)
		if err != nil {
			return false, err
		}
		if s.logg != nil {
			ctx = s.logWith(ctx, "payment_intent_id", pi.ID)
			if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
				ctx = s.logWith(ctx, "decline", pi.LastPaymentError.Msg)
			}
			s.logg.Info(ctx, "payment attempt declined; awaiting session outcome")
		}
		return false, nil
	case stripe.EventTypeAccountUpdated:
		acct, err := decode[stripe.Account](event)
		if err != nil {
			return false, err
		}
		err = s.connect.SyncAccount(ctx, connect.AccountUpdate{
			AccountID:        acct.ID,
			ChargesEnabled:   acct.ChargesEnabled,
			DetailsSubmitted: acct.DetailsSubmitted,
		})
		return err == nil, err
	default:
		return false, nil
	}
}

func (s *Service) succeeded(ctx context.Context, in settlement.PaymentSucceeded) (bool, error) {
	if in.PurchaseID == uuid.Nil && in.SessionID == "" {
		s.warn(ctx, "payment event carries no purchase reference")
		return false, nil
	}
	out, err := s.applier.ApplySuccess(ctx, in)
	if err != nil {
		return false, err
	}
	return out.Result != settlement.ResultMissing, nil
}

func (s *Service) failed(ctx context.Context, in settlement.PaymentFailed) (bool, error) {
	if in.PurchaseID == uuid.Nil && in.SessionID == "" {
		s.warn(ctx, "payment event carries no purchase reference")
		return false, nil
	}
	out, err := s.applier.ApplyFailure(ctx, in)
	if err != nil {
		return false, err
	}
	return out.Result != settlement.ResultMissing, nil
}

func (s *Service) purchaseID(ctx context.Context, metadata map[string]string, fallback string) uuid.UUID {
	raw := metadata[pkgstripe.MetadataPurchaseID]
	if raw == "" {
		raw = fallback
	}
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.warn(s.logWith(ctx, "purchase_id", raw), "payment event carries a malformed purchase id")
		return uuid.Nil
	}
	return id
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func (s *Service) logWith(ctx context.Context, key string, value any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithField(ctx, key, value)
}

func sessionSuccess(sess *stripe.CheckoutSession) settlement.PaymentSucceeded {
	in := settlement.PaymentSucceeded{SessionID: sess.ID}
	if raw := sess.Metadata[pkgstripe.MetadataPurchaseID]; raw != "" {
		in.PurchaseID, _ = uuid.Parse(raw)
	} else if sess.ClientReferenceID != "" {
		in.PurchaseID, _ = uuid.Parse(sess.ClientReferenceID)
	}
	if sess.PaymentIntent != nil {
		in.PaymentIntentID = sess.PaymentIntent.ID
	}
	return in
}

func decode[T any](event *stripe.Event) (*T, error) {
	var out T
	if err := json.Unmarshal(event.Data.Raw, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode "+string(event.Type)+" payload")
	}
	return &out, nil
}
