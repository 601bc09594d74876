package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hotmess/hotmess-backend/internal/ledger"
	"github.com/hotmess/hotmess-backend/internal/notifications"
	"github.com/hotmess/hotmess-backend/internal/purchases"
	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/logger"
	"github.com/hotmess/hotmess-backend/pkg/outbox"
)

// Release methods recorded on ledger metadata and events.
const (
	MethodManual = "manual"
	MethodPickup = "pickup"
)

// State-conflict reasons returned by the release gates.
const (
	ReasonAlreadyCompleted = "already_completed"
	ReasonDisputed         = "disputed"
	ReasonCancelled        = "cancelled"
	ReasonDisputeActive    = "dispute_active"
)

const referenceTypeEscrowOrder = "escrow_order"

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Outcome is what a completed release moved.
type Outcome struct {
	OrderID          uuid.UUID
	SellerID         uuid.UUID
	TotalXP          int64
	PlatformFeeXP    int64
	SellerReceivedXP int64
	Method           string
}

// ReleaserParams wires the release core.
type ReleaserParams struct {
	Orders            Repository
	Purchases         purchases.Repository
	Ledger            ledger.Service
	Notifications     notifications.Service
	Outbox            outboxPublisher
	FeeRate           decimal.Decimal
	PlatformAccountID uuid.UUID
	Logger            *logger.Logger
	Clock             func() time.Time
}

// Releaser performs the gated, exactly-once transfer of an escrow order's XP.
// It always runs inside the caller's transaction so callers can combine it
// with their own conditional updates (e.g. consuming a pickup beacon).
type Releaser struct {
	orders            Repository
	purchases         purchases.Repository
	ledger            ledger.Service
	notifications     notifications.Service
	outbox            outboxPublisher
	feeRate           decimal.Decimal
	platformAccountID uuid.UUID
	logg              *logger.Logger
	now               func() time.Time
}

// NewReleaser validates the parameters and builds a Releaser.
func NewReleaser(params ReleaserParams) (*Releaser, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "escrow repository required")
	}
	if params.Purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchases repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifications service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.PlatformAccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "platform account id required")
	}
	if params.FeeRate.IsNegative() || params.FeeRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "platform fee rate must be within [0, 1]")
	}
	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Releaser{
		orders:            params.Orders,
		purchases:         params.Purchases,
		ledger:            params.Ledger,
		notifications:     params.Notifications,
		outbox:            params.Outbox,
		feeRate:           params.FeeRate,
		platformAccountID: params.PlatformAccountID,
		logg:              params.Logger,
		now:               now,
	}, nil
}

// LockOrder loads and row-locks the order on tx. A missing order is NOT_FOUND.
func (r *Releaser) LockOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.EscrowOrder, error) {
	order, err := r.orders.WithTx(tx).FindByIDForUpdate(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load escrow order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow order not found")
	}
	return order, nil
}

// CheckStatus rejects orders that are not currently held in escrow.
func CheckStatus(order *models.EscrowOrder) error {
	switch order.Status {
	case enums.EscrowStatusEscrow:
		return nil
	case enums.EscrowStatusCompleted:
		return pkgerrors.StateConflict(ReasonAlreadyCompleted, "escrow order already released")
	case enums.EscrowStatusDisputed:
		return pkgerrors.StateConflict(ReasonDisputed, "escrow order is disputed")
	case enums.EscrowStatusCancelled:
		return pkgerrors.StateConflict(ReasonCancelled, "escrow order was cancelled")
	default:
		return pkgerrors.StateConflict(string(order.Status), "escrow order cannot be released")
	}
}

// CheckReleasable applies the status gate and then the dispute gate.
func (r *Releaser) CheckReleasable(ctx context.Context, tx *gorm.DB, order *models.EscrowOrder) error {
	if err := CheckStatus(order); err != nil {
		return err
	}
	blocked, err := r.orders.WithTx(tx).HasBlockingDispute(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check disputes")
	}
	if blocked {
		return pkgerrors.StateConflict(ReasonDisputeActive, "escrow order has an active dispute")
	}
	return nil
}

// Release transfers the order's XP on tx: it flips the order to completed,
// credits seller and platform wallets with their ledger entries, completes the
// purchase, notifies the seller and emits escrow_released. Callers must have
// run CheckReleasable on the locked order first.
func (r *Releaser) Release(ctx context.Context, tx *gorm.DB, order *models.EscrowOrder, actorID uuid.UUID, method string) (*Outcome, error) {
	at := r.now()
	split := SplitTotal(order.TotalXP, r.feeRate)

	ok, err := r.orders.WithTx(tx).MarkReleased(ctx, Released{
		OrderID:          order.ID,
		ReleasedBy:       actorID,
		PlatformFeeXP:    split.PlatformFee,
		SellerReceivedXP: split.SellerAmount,
		At:               at,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark escrow released")
	}
	if !ok {
		return nil, pkgerrors.StateConflict(ReasonAlreadyCompleted, "escrow order already released")
	}

	orderID := order.ID
	meta := map[string]any{"purchase_id": order.PurchaseID.String(), "method": method}
	if _, err := r.ledger.Post(ctx, tx, ledger.Posting{
		UserID:        order.SellerID,
		Currency:      enums.CurrencyXP,
		Amount:        split.SellerAmount,
		Type:          enums.LedgerTxnEscrowRelease,
		ReferenceID:   &orderID,
		ReferenceType: referenceTypeEscrowOrder,
		Metadata:      meta,
	}); err != nil {
		return nil, err
	}
	if _, err := r.ledger.Post(ctx, tx, ledger.Posting{
		UserID:        r.platformAccountID,
		Currency:      enums.CurrencyXP,
		Amount:        split.PlatformFee,
		Type:          enums.LedgerTxnPlatformFee,
		ReferenceID:   &orderID,
		ReferenceType: referenceTypeEscrowOrder,
		Metadata:      meta,
	}); err != nil {
		return nil, err
	}

	completed, err := r.purchases.WithTx(tx).MarkCompleted(ctx, order.PurchaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "complete purchase")
	}
	if !completed && r.logg != nil {
		r.logg.Warn(r.logg.WithField(ctx, "purchase_id", order.PurchaseID.String()), "escrow released but purchase was not in a completable state")
	}

	if err := r.notifications.Notify(ctx, tx, notifications.NotifyInput{
		UserID:  order.SellerID,
		Type:    enums.NotificationTypeEscrowReleased,
		Title:   "Payment released",
		Message: fmt.Sprintf("%d XP has been released to your wallet.", split.SellerAmount),
		Link:    "/wallet",
	}); err != nil {
		return nil, err
	}

	if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventEscrowReleased,
		AggregateType: enums.AggregateEscrowOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: "buyer"},
		OccurredAt:    at,
		Data: outbox.EscrowReleasedEvent{
			OrderID:          order.ID,
			SellerID:         order.SellerID,
			ReleasedBy:       actorID,
			TotalXP:          order.TotalXP,
			PlatformFeeXP:    split.PlatformFee,
			SellerReceivedXP: split.SellerAmount,
			Method:           method,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit escrow released")
	}

	return &Outcome{
		OrderID:          order.ID,
		SellerID:         order.SellerID,
		TotalXP:          order.TotalXP,
		PlatformFeeXP:    split.PlatformFee,
		SellerReceivedXP: split.SellerAmount,
		Method:           method,
	}, nil
}
