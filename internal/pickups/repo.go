package pickups

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

// Repository persists pickup beacons.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, beacon *models.PickupBeacon) error
	FindByQRCode(ctx context.Context, qrCode string) (*models.PickupBeacon, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PickupBeacon, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.PickupBeacon, error)
	MarkPickedUp(ctx context.Context, id, buyerID uuid.UUID, photoURL *string, at time.Time) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
	ExpireBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a beacon repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, beacon *models.PickupBeacon) error {
	return r.db.WithContext(ctx).Create(beacon).Error
}

// FindByQRCode returns nil, nil when no beacon carries the code.
func (r *repository) FindByQRCode(ctx context.Context, qrCode string) (*models.PickupBeacon, error) {
	return r.first(r.db.WithContext(ctx).Where("qr_code = ?", qrCode))
}

// FindByIDForUpdate row-locks the beacon. Callers lock its escrow order first.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PickupBeacon, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.PickupBeacon, error) {
	return r.first(r.db.WithContext(ctx).Where("order_id = ? AND status = ?", orderID, enums.BeaconStatusActive))
}

func (r *repository) first(query *gorm.DB) (*models.PickupBeacon, error) {
	var beacon models.PickupBeacon
	if err := query.First(&beacon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &beacon, nil
}

// MarkPickedUp consumes an active beacon. It reports false when the beacon was
// no longer active.
func (r *repository) MarkPickedUp(ctx context.Context, id, buyerID uuid.UUID, photoURL *string, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":       enums.BeaconStatusPickedUp,
		"picked_up_at": at,
		"picked_up_by": buyerID,
	}
	if photoURL != nil {
		updates["photo_url"] = *photoURL
	}
	result := r.db.WithContext(ctx).
		Model(&models.PickupBeacon{}).
		Where("id = ? AND status = ?", id, enums.BeaconStatusActive).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PickupBeacon{}).
		Where("id = ? AND status = ?", id, enums.BeaconStatusActive).
		Update("status", enums.BeaconStatusExpired)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ExpireBefore expires up to limit active beacons whose expiry has passed.
func (r *repository) ExpireBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	ids := r.db.WithContext(ctx).
		Model(&models.PickupBeacon{}).
		Select("id").
		Where("status = ? AND expires_at <= ?", enums.BeaconStatusActive, cutoff).
		Order("expires_at ASC").
		Limit(limit)
	result := r.db.WithContext(ctx).
		Model(&models.PickupBeacon{}).
		Where("id IN (?) AND status = ?", ids, enums.BeaconStatusActive).
		Update("status", enums.BeaconStatusExpired)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
