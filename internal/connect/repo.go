package connect

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
)

// Repository persists seller Connect accounts. seller_id and stripe_account_id
// are both unique; concurrent creates lose on the constraint.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, acct *models.SellerConnectAccount) error
	FindBySeller(ctx context.Context, sellerID uuid.UUID) (*models.SellerConnectAccount, error)
	FindByStripeAccount(ctx context.Context, stripeAccountID string) (*models.SellerConnectAccount, error)
	MarkComplete(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a Connect account repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, acct *models.SellerConnectAccount) error {
	return r.db.WithContext(ctx).Create(acct).Error
}

func (r *repository) FindBySeller(ctx context.Context, sellerID uuid.UUID) (*models.SellerConnectAccount, error) {
	return r.first(ctx, "seller_id = ?", sellerID)
}

func (r *repository) FindByStripeAccount(ctx context.Context, stripeAccountID string) (*models.SellerConnectAccount, error) {
	return r.first(ctx, "stripe_account_id = ?", stripeAccountID)
}

// MarkComplete flips a pending account to complete. It reports false when the
// account was already complete.
func (r *repository) MarkComplete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SellerConnectAccount{}).
		Where("id = ? AND onboarding_status = ?", id, enums.OnboardingStatusPending).
		Update("onboarding_status", enums.OnboardingStatusComplete)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.SellerConnectAccount, error) {
	var acct models.SellerConnectAccount
	err := r.db.WithContext(ctx).Where(query, arg).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}
