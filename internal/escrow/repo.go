package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
)

// Repository persists escrow orders and reads the disputes that gate them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.EscrowOrder) error
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.EscrowOrder, error)
	FindByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.EscrowOrder, error)
	HasBlockingDispute(ctx context.Context, orderID uuid.UUID) (bool, error)
	MarkReleased(ctx context.Context, release Released) (bool, error)
}

// Released carries the columns written when an order leaves escrow.
type Released struct {
	OrderID          uuid.UUID
	ReleasedBy       uuid.UUID
	PlatformFeeXP    int64
	SellerReceivedXP int64
	At               time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an escrow repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.EscrowOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByIDForUpdate row-locks the order until the surrounding transaction ends.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.EscrowOrder, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repository) FindByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.EscrowOrder, error) {
	return r.first(r.db.WithContext(ctx).Where("purchase_id = ?", purchaseID))
}

func (r *repository) HasBlockingDispute(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("order_id = ? AND status IN ?", orderID, []enums.DisputeStatus{enums.DisputeStatusOpen, enums.DisputeStatusInvestigating}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkReleased moves the order from escrow to completed. It reports false when
// the order had already left escrow.
func (r *repository) MarkReleased(ctx context.Context, release Released) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.EscrowOrder{}).
		Where("id = ? AND status = ?", release.OrderID, enums.EscrowStatusEscrow).
		Updates(map[string]any{
			"status":             enums.EscrowStatusCompleted,
			"escrow_released_at": release.At,
			"escrow_released_by": release.ReleasedBy,
			"platform_fee_xp":    release.PlatformFeeXP,
			"seller_received_xp": release.SellerReceivedXP,
			"updated_at":         release.At,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) first(query *gorm.DB) (*models.EscrowOrder, error) {
	var order models.EscrowOrder
	if err := query.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}
