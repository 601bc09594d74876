package connect

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hotmess/hotmess-backend/pkg/db"
	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/logger"
	"github.com/hotmess/hotmess-backend/pkg/outbox"
)

type accountClient interface {
	CreateExpressAccount(ctx context.Context, sellerID, email, idempotencyKey string) (string, error)
	CreateOnboardingLink(ctx context.Context, accountID string) (string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service manages seller payout onboarding.
type Service interface {
	Onboard(ctx context.Context, sellerID uuid.UUID, email string) (*OnboardResult, error)
	Status(ctx context.Context, sellerID uuid.UUID) (*StatusResult, error)
	SyncAccount(ctx context.Context, update AccountUpdate) error
}

// OnboardResult carries the hosted onboarding link for the seller.
type OnboardResult struct {
	AccountID        string                 `json:"account_id"`
	OnboardingURL    string                 `json:"onboarding_url"`
	OnboardingStatus enums.OnboardingStatus `json:"onboarding_status"`
}

// StatusResult reports the seller's onboarding state.
type StatusResult struct {
	Connected        bool                   `json:"connected"`
	AccountID        string                 `json:"account_id,omitempty"`
	OnboardingStatus enums.OnboardingStatus `json:"onboarding_status,omitempty"`
}

// AccountUpdate is the slice of an account.updated payload that matters here.
type AccountUpdate struct {
	AccountID        string
	ChargesEnabled   bool
	DetailsSubmitted bool
}

// ServiceParams wires the onboarding service.
type ServiceParams struct {
	TransactionRunner txRunner
	Accounts          Repository
	Stripe            accountClient
	Outbox            outboxEmitter
	Logger            *logger.Logger
}

type service struct {
	tx       txRunner
	accounts Repository
	stripe   accountClient
	outbox   outboxEmitter
	logg     *logger.Logger
}

// NewService builds the onboarding service. A nil Stripe client makes Onboard
// fail closed while Status and SyncAccount keep working.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "connect repository required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	return &service{
		tx:       params.TransactionRunner,
		accounts: params.Accounts,
		stripe:   params.Stripe,
		outbox:   params.Outbox,
		logg:     params.Logger,
	}, nil
}

func (s *service) Onboard(ctx context.Context, sellerID uuid.UUID, email string) (*OnboardResult, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments are not configured")
	}
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	acct, err := s.accounts.FindBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load connect account")
	}
	if acct == nil {
		acct, err = s.create(ctx, sellerID, strings.TrimSpace(email))
		if err != nil {
			return nil, err
		}
	}

	url, err := s.stripe.CreateOnboardingLink(ctx, acct.StripeAccountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create onboarding link")
	}
	return &OnboardResult{
		AccountID:        acct.StripeAccountID,
		OnboardingURL:    url,
		OnboardingStatus: acct.OnboardingStatus,
	}, nil
}

func (s *service) create(ctx context.Context, sellerID uuid.UUID, email string) (*models.SellerConnectAccount, error) {
	stripeID, err := s.stripe.CreateExpressAccount(ctx, sellerID.String(), email, "connect:"+sellerID.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create connect account")
	}

	acct := &models.SellerConnectAccount{
		ID:               uuid.New(),
		SellerID:         sellerID,
		StripeAccountID:  stripeID,
		OnboardingStatus: enums.OnboardingStatusPending,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.accounts.WithTx(tx).Create(ctx, acct)
	})
	if err == nil {
		return acct, nil
	}
	if !db.IsUniqueViolation(err, "") {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist connect account")
	}

	winner, findErr := s.accounts.FindBySeller(ctx, sellerID)
	if findErr != nil || winner == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload connect account")
	}
	if winner.StripeAccountID != stripeID && s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"event":               "compensation",
			"seller_id":           sellerID.String(),
			"orphaned_account_id": stripeID,
			"kept_account_id":     winner.StripeAccountID,
		}), "concurrent onboarding created an orphaned connect account")
	}
	return winner, nil
}

func (s *service) Status(ctx context.Context, sellerID uuid.UUID) (*StatusResult, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	acct, err := s.accounts.FindBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load connect account")
	}
	if acct == nil {
		return &StatusResult{Connected: false}, nil
	}
	return &StatusResult{
		Connected:        true,
		AccountID:        acct.StripeAccountID,
		OnboardingStatus: acct.OnboardingStatus,
	}, nil
}

func (s *service) SyncAccount(ctx context.Context, update AccountUpdate) error {
	if strings.TrimSpace(update.AccountID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}
	if !update.ChargesEnabled || !update.DetailsSubmitted {
		return nil
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.accounts.WithTx(tx)
		acct, err := repo.FindByStripeAccount(ctx, update.AccountID)
		if err != nil {
			return err
		}
		if acct == nil {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "stripe_account_id", update.AccountID), "account.updated for unknown connect account")
			}
			return nil
		}
		changed, err := repo.MarkComplete(ctx, acct.ID)
		if err != nil || !changed {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventConnectOnboarded,
			AggregateType: enums.AggregateConnectAccount,
			AggregateID:   acct.ID,
			Data: map[string]any{
				"seller_id":         acct.SellerID.String(),
				"stripe_account_id": acct.StripeAccountID,
			},
			OccurredAt: time.Now().UTC(),
		})
	})
}
