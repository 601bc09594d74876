package checkout

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hotmess/hotmess-backend/internal/purchases"
	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/logger"
	"github.com/hotmess/hotmess-backend/pkg/stripe"
)

type sessionClient interface {
	CreateCheckoutSession(ctx context.Context, in stripe.CheckoutSessionInput) (*stripe.CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service opens provider checkout sessions for server-priced purchases.
type Service interface {
	Start(ctx context.Context, input StartInput) (*StartResult, error)
}

// StartInput is the buyer's checkout request.
type StartInput struct {
	BuyerID      uuid.UUID
	BuyerEmail   string
	PurchaseType enums.PurchaseType
	ReferenceID  uuid.UUID
	Quantity     int
}

// StartResult is returned to the client so it can redirect to the hosted page.
type StartResult struct {
	PurchaseID  uuid.UUID `json:"purchase_id"`
	SessionID   string    `json:"session_id"`
	CheckoutURL string    `json:"checkout_url"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	TransactionRunner txRunner
	Pricer            *Pricer
	Purchases         purchases.Repository
	Stripe            sessionClient
	Logger            *logger.Logger
}

type service struct {
	tx        txRunner
	pricer    *Pricer
	purchases purchases.Repository
	stripe    sessionClient
	logg      *logger.Logger
}

// NewService builds the checkout service. A nil Stripe client is accepted so
// the API can boot without payment credentials; every checkout then fails closed.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Pricer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pricer required")
	}
	if params.Purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchases repository required")
	}
	return &service{
		tx:        params.TransactionRunner,
		pricer:    params.Pricer,
		purchases: params.Purchases,
		stripe:    params.Stripe,
		logg:      params.Logger,
	}, nil
}

func (s *service) Start(ctx context.Context, input StartInput) (*StartResult, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments are not configured")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if input.ReferenceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference_id is required")
	}
	email := strings.TrimSpace(input.BuyerEmail)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer_email is invalid")
	}

	quote, err := s.pricer.Quote(ctx, input.PurchaseType, input.ReferenceID, input.BuyerID, input.Quantity)
	if err != nil {
		return nil, err
	}
	if quote.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase amount must be positive")
	}

	purchaseID := uuid.New()
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"purchase_id":   purchaseID.String(),
			"purchase_type": string(input.PurchaseType),
		})
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, stripe.CheckoutSessionInput{
		PurchaseID:     purchaseID.String(),
		PurchaseType:   string(input.PurchaseType),
		ReferenceID:    input.ReferenceID.String(),
		CustomerEmail:  email,
		ProductName:    quote.Description,
		AmountCents:    quote.AmountCents,
		Currency:       quote.Currency,
		IdempotencyKey: "checkout:" + purchaseID.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	sessionID := session.ID
	purchase := &models.Purchase{
		ID:              purchaseID,
		BuyerID:         input.BuyerID,
		BuyerEmail:      email,
		SellerID:        quote.SellerID,
		PurchaseType:    input.PurchaseType,
		ReferenceID:     input.ReferenceID,
		Quantity:        quote.Quantity,
		AmountCents:     quote.AmountCents,
		Currency:        quote.Currency,
		Status:          enums.PurchaseStatusPending,
		StripeSessionID: &sessionID,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.purchases.WithTx(tx).Create(ctx, purchase)
	})
	if err != nil {
		s.compensate(ctx, sessionID, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist purchase")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "session_id", sessionID), "checkout session created")
	}
	return &StartResult{
		PurchaseID:  purchaseID,
		SessionID:   sessionID,
		CheckoutURL: session.URL,
		AmountCents: quote.AmountCents,
		Currency:    quote.Currency,
	}, nil
}

// compensate expires a session whose purchase row never landed so the buyer
// cannot pay for something the store does not know about.
func (s *service) compensate(ctx context.Context, sessionID string, cause error) {
	expireCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	expireErr := s.stripe.ExpireCheckoutSession(expireCtx, sessionID)
	if s.logg == nil {
		return
	}
	fields := map[string]any{
		"event":      "compensation",
		"session_id": sessionID,
		"cause":      cause.Error(),
	}
	if expireErr != nil {
		s.logg.Error(s.logg.WithFields(ctx, fields), "expire orphaned checkout session failed", expireErr)
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), "expired orphaned checkout session")
}
