package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/pagination"
)

// Service posts balance movements and serves the wallet read model.
type Service interface {
	Post(ctx context.Context, tx *gorm.DB, posting Posting) (*models.LedgerEntry, error)
	Wallet(ctx context.Context, userID uuid.UUID, params pagination.Params) (*WalletView, error)
	FindDrift(ctx context.Context, limit int) ([]Drift, error)
}

// Posting is one signed movement on one wallet.
type Posting struct {
	UserID        uuid.UUID
	Currency      enums.Currency
	Amount        int64
	Type          enums.LedgerTransactionType
	ReferenceID   *uuid.UUID
	ReferenceType string
	Metadata      map[string]any
}

// WalletView is the authenticated user's balances plus a page of entries.
type WalletView struct {
	Balances   []Balance   `json:"balances"`
	Entries    []EntryView `json:"entries"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// Balance is a single currency balance.
type Balance struct {
	Currency  enums.Currency `json:"currency"`
	Balance   int64          `json:"balance"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// EntryView is the public shape of a ledger entry.
type EntryView struct {
	ID              uuid.UUID                   `json:"id"`
	Currency        enums.Currency              `json:"currency"`
	Amount          int64                       `json:"amount"`
	TransactionType enums.LedgerTransactionType `json:"transaction_type"`
	ReferenceID     *uuid.UUID                  `json:"reference_id,omitempty"`
	ReferenceType   *string                     `json:"reference_type,omitempty"`
	BalanceAfter    int64                       `json:"balance_after"`
	Metadata        datatypes.JSON              `json:"metadata,omitempty"`
	CreatedAt       time.Time                   `json:"created_at"`
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository required")
	}
	return &service{repo: repo}, nil
}

// Post increments the wallet and appends the matching entry. Both writes run on
// tx so the entry commits or rolls back with the balance.
func (s *service) Post(ctx context.Context, tx *gorm.DB, posting Posting) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger posting requires a transaction")
	}
	if posting.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger user id is required")
	}
	if posting.Currency == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger currency is required")
	}
	if !posting.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger transaction type")
	}

	repo := s.repo.WithTx(tx)
	balance, err := repo.IncrementWallet(ctx, posting.UserID, posting.Currency, posting.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment wallet")
	}

	entry := &models.LedgerEntry{
		ID:              uuid.New(),
		UserID:          posting.UserID,
		Currency:        posting.Currency,
		Amount:          posting.Amount,
		TransactionType: posting.Type,
		ReferenceID:     posting.ReferenceID,
		BalanceAfter:    balance,
	}
	if posting.ReferenceType != "" {
		refType := posting.ReferenceType
		entry.ReferenceType = &refType
	}
	if len(posting.Metadata) > 0 {
		raw, err := json.Marshal(posting.Metadata)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode ledger metadata")
		}
		entry.Metadata = datatypes.JSON(raw)
	}
	if err := repo.InsertEntry(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert ledger entry")
	}
	return entry, nil
}

func (s *service) Wallet(ctx context.Context, userID uuid.UUID, params pagination.Params) (*WalletView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	wallets, err := s.repo.ListWallets(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallets")
	}
	rows, err := s.repo.ListEntries(ctx, userID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list ledger entries")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(e models.LedgerEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})

	view := &WalletView{
		Balances:   make([]Balance, 0, len(wallets)),
		Entries:    make([]EntryView, 0, len(rows)),
		NextCursor: pagination.EncodeNext(next),
	}
	for _, w := range wallets {
		view.Balances = append(view.Balances, Balance{Currency: w.Currency, Balance: w.Balance, UpdatedAt: w.UpdatedAt})
	}
	for _, e := range rows {
		view.Entries = append(view.Entries, EntryView{
			ID:              e.ID,
			Currency:        e.Currency,
			Amount:          e.Amount,
			TransactionType: e.TransactionType,
			ReferenceID:     e.ReferenceID,
			ReferenceType:   e.ReferenceType,
			BalanceAfter:    e.BalanceAfter,
			Metadata:        e.Metadata,
			CreatedAt:       e.CreatedAt,
		})
	}
	return view, nil
}

func (s *service) FindDrift(ctx context.Context, limit int) ([]Drift, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	rows, err := s.repo.FindDrift(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find wallet drift")
	}
	return rows, nil
}
