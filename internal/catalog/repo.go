package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
)

// Repository reads sellable entities and applies the settlement side effects
// that touch them. Every mutation is a single conditional or arithmetic SQL
// statement so concurrent settlements never read-modify-write.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindListing(ctx context.Context, id uuid.UUID) (*models.TicketListing, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error)
	MarkListingSold(ctx context.Context, id, buyerID uuid.UUID, at time.Time) (bool, error)
	DecrementInventory(ctx context.Context, id uuid.UUID, quantity int) error
	AddCredits(ctx context.Context, businessID uuid.UUID, credits int64) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindListing(ctx context.Context, id uuid.UUID) (*models.TicketListing, error) {
	var listing models.TicketListing
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &listing, nil
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &product, nil
}

func (r *repository) FindBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	var business models.Business
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&business).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &business, nil
}

// MarkListingSold flips an active listing to sold. It reports false when the
// listing was no longer active.
func (r *repository) MarkListingSold(ctx context.Context, id, buyerID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.TicketListing{}).
		Where("id = ? AND status = ?", id, enums.ListingStatusActive).
		Updates(map[string]any{
			"status":     enums.ListingStatusSold,
			"buyer_id":   buyerID,
			"sold_at":    at,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DecrementInventory subtracts quantity, flooring the count at zero.
func (r *repository) DecrementInventory(ctx context.Context, id uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"inventory_count": gorm.Expr("CASE WHEN inventory_count > ? THEN inventory_count - ? ELSE 0 END", quantity, quantity),
			"updated_at":      time.Now().UTC(),
		}).Error
}

// AddCredits increments the business credit balance in place. It reports false
// when the business does not exist.
func (r *repository) AddCredits(ctx context.Context, businessID uuid.UUID, credits int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Business{}).
		Where("id = ?", businessID).
		Updates(map[string]any{
			"credit_balance": gorm.Expr("credit_balance + ?", credits),
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
