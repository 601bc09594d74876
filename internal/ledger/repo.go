package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
	"github.com/hotmess/hotmess-backend/pkg/pagination"
)

// Repository manages wallets and their append-only ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	IncrementWallet(ctx context.Context, userID uuid.UUID, currency enums.Currency, amount int64) (int64, error)
	InsertEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListWallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error)
	ListEntries(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LedgerEntry, error)
	FindDrift(ctx context.Context, limit int) ([]Drift, error)
}

// Drift is a wallet whose stored balance disagrees with the sum of its entries.
type Drift struct {
	UserID    uuid.UUID      `gorm:"column:user_id" json:"user_id"`
	Currency  enums.Currency `gorm:"column:currency" json:"currency"`
	Balance   int64          `gorm:"column:balance" json:"balance"`
	LedgerSum int64          `gorm:"column:ledger_sum" json:"ledger_sum"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// IncrementWallet adds amount to the (user, currency) wallet, creating it on
// first use, and returns the balance after the increment.
func (r *repository) IncrementWallet(ctx context.Context, userID uuid.UUID, currency enums.Currency, amount int64) (int64, error) {
	db := r.db.WithContext(ctx)
	wallet := models.Wallet{UserID: userID, Currency: currency, Balance: amount}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "currency"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    gorm.Expr("wallets.balance + excluded.balance"),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&wallet).Error
	if err != nil {
		return 0, err
	}

	var balance int64
	if err := db.Model(&models.Wallet{}).
		Where("user_id = ? AND currency = ?", userID, currency).
		Pluck("balance", &balance).Error; err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *repository) InsertEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListWallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	var wallets []models.Wallet
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("currency ASC").
		Find(&wallets).Error; err != nil {
		return nil, err
	}
	return wallets, nil
}

// ListEntries returns up to limit+1 entries, newest first, so callers can page
// with pagination.Trim.
func (r *repository) ListEntries(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.LedgerEntry, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var entries []models.LedgerEntry
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) FindDrift(ctx context.Context, limit int) ([]Drift, error) {
	var rows []Drift
	err := r.db.WithContext(ctx).Raw(`
		SELECT w.user_id, w.currency, w.balance, COALESCE(SUM(l.amount), 0) AS ledger_sum
		FROM wallets w
		LEFT JOIN ledger_entries l ON l.user_id = w.user_id AND l.currency = w.currency
		GROUP BY w.user_id, w.currency, w.balance
		HAVING w.balance <> COALESCE(SUM(l.amount), 0)
		ORDER BY w.user_id, w.currency
		LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
