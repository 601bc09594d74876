package purchases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
)

// Repository persists purchases. Status changes are conditional updates: a
// false result means the row was not in the expected prior state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.Purchase) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error)
	FlagRefund(ctx context.Context, id uuid.UUID, paymentIntentID string, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a purchases repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, purchase *models.Purchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

// FindByID returns nil, nil when the purchase does not exist.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).Where("stripe_session_id = ?", sessionID).First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     enums.PurchaseStatusPaid,
		"paid_at":    at,
		"updated_at": at,
	}
	if paymentIntentID != "" {
		updates["stripe_payment_intent_id"] = paymentIntentID
	}
	return r.transition(ctx, id, enums.PurchaseStatusPending, updates)
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, id, enums.PurchaseStatusPending, map[string]any{
		"status":     enums.PurchaseStatusPaymentFailed,
		"failed_at":  at,
		"updated_at": at,
	})
}

func (r *repository) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.transition(ctx, id, enums.PurchaseStatusPaid, map[string]any{
		"status":            enums.PurchaseStatusDelivered,
		"digital_delivered": true,
		"updated_at":        time.Now().UTC(),
	})
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status IN ?", id, []enums.PurchaseStatus{enums.PurchaseStatusPaid, enums.PurchaseStatusDelivered}).
		Updates(map[string]any{
			"status":     enums.PurchaseStatusCompleted,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FlagRefund marks a failed purchase whose payment was captured anyway. It
// reports true only for the first flag.
func (r *repository) FlagRefund(ctx context.Context, id uuid.UUID, paymentIntentID string, at time.Time) (bool, error) {
	updates := map[string]any{
		"refund_flagged_at": at,
		"updated_at":        at,
	}
	if paymentIntentID != "" {
		updates["stripe_payment_intent_id"] = paymentIntentID
	}
	result := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status = ? AND refund_flagged_at IS NULL", id, enums.PurchaseStatusPaymentFailed).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) transition(ctx context.Context, id uuid.UUID, from enums.PurchaseStatus, updates map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
