package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hotmess/hotmess-backend/internal/catalog"
	"github.com/hotmess/hotmess-backend/internal/escrow"
	"github.com/hotmess/hotmess-backend/internal/notifications"
	"github.com/hotmess/hotmess-backend/internal/purchases"
	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/logger"
	"github.com/hotmess/hotmess-backend/pkg/outbox"
)

// Result labels reported to metrics and returned in Outcome.
const (
	ResultApplied  = "applied"
	ResultSkipped  = "skipped"
	ResultMissing  = "missing"
	ResultOversold = "oversold"
	ResultFailed   = "failed"

	ResultRefundRequired = "refund_required"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type settlementMetrics interface {
	Settlement(purchaseType, result string)
}

// PaymentSucceeded is a verified provider report that money was captured.
// PurchaseID comes from checkout metadata; SessionID is the fallback key.
type PaymentSucceeded struct {
	PurchaseID      uuid.UUID
	SessionID       string
	PaymentIntentID string
}

// PaymentFailed is a verified provider report that payment did not complete.
type PaymentFailed struct {
	PurchaseID uuid.UUID
	SessionID  string
	Reason     string
}

// Outcome describes what an apply call did.
type Outcome struct {
	PurchaseID    uuid.UUID
	Result        string
	EscrowOrderID *uuid.UUID
}

// Applier transitions purchases on payment outcomes. Every method is safe to
// re-run: a purchase that already left pending is skipped without side effects.
type Applier interface {
	ApplySuccess(ctx context.Context, event PaymentSucceeded) (*Outcome, error)
	ApplyFailure(ctx context.Context, event PaymentFailed) (*Outcome, error)
}

// ApplierParams wires the applier.
type ApplierParams struct {
	TransactionRunner txRunner
	Purchases         purchases.Repository
	Catalog           catalog.Repository
	Orders            escrow.Repository
	Notifications     notifications.Service
	Outbox            outboxPublisher
	XPPerMinorUnit    int64
	Metrics           settlementMetrics
	Logger            *logger.Logger
	Clock             func() time.Time
}

type applier struct {
	tx            txRunner
	purchases     purchases.Repository
	catalog       catalog.Repository
	orders        escrow.Repository
	notifications notifications.Service
	outbox        outboxPublisher
	xpPerMinor    int64
	metrics       settlementMetrics
	logg          *logger.Logger
	now           func() time.Time
}

// NewApplier builds the settlement applier.
func NewApplier(params ApplierParams) (Applier, error) {
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchases repository required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repository required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "escrow repository required")
	}
	if params.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifications service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.XPPerMinorUnit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "xp per minor unit must be positive")
	}
	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &applier{
		tx:            params.TransactionRunner,
		purchases:     params.Purchases,
		catalog:       params.Catalog,
		orders:        params.Orders,
		notifications: params.Notifications,
		outbox:        params.Outbox,
		xpPerMinor:    params.XPPerMinorUnit,
		metrics:       params.Metrics,
		logg:          params.Logger,
		now:           now,
	}, nil
}

func (a *applier) ApplySuccess(ctx context.Context, event PaymentSucceeded) (*Outcome, error) {
	outcome := &Outcome{PurchaseID: event.PurchaseID}
	purchaseType := ""

	err := a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		*outcome = Outcome{PurchaseID: event.PurchaseID}
		repo := a.purchases.WithTx(tx)

		id, err := a.resolve(ctx, repo, event.PurchaseID, event.SessionID)
		if err != nil {
			return err
		}
		if id == uuid.Nil {
			outcome.Result = ResultMissing
			return nil
		}
		outcome.PurchaseID = id

		at := a.now()
		transitioned, err := repo.MarkPaid(ctx, id, event.PaymentIntentID, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark purchase paid")
		}
		purchase, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase")
		}
		if purchase == nil {
			outcome.Result = ResultMissing
			return nil
		}
		purchaseType = string(purchase.PurchaseType)
		if !transitioned {
			if purchase.Status == enums.PurchaseStatusPaymentFailed {
				return a.flagRefund(ctx, tx, purchase, event.PaymentIntentID, at, outcome)
			}
			outcome.Result = ResultSkipped
			a.logSkip(ctx, purchase)
			return nil
		}

		outcome.Result = ResultApplied
		switch purchase.PurchaseType {
		case enums.PurchaseTypeTicket:
			err = a.settleTicket(ctx, tx, purchase, at, outcome)
		case enums.PurchaseTypeProduct:
			err = a.settleProduct(ctx, tx, purchase, outcome)
		case enums.PurchaseTypeCredits:
			err = a.settleCredits(ctx, tx, purchase)
		default:
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unsupported purchase type %q", purchase.PurchaseType))
		}
		if err != nil {
			return err
		}

		if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchasePaid,
			AggregateType: enums.AggregatePurchase,
			AggregateID:   purchase.ID,
			OccurredAt:    at,
			Data: outbox.PurchasePaidEvent{
				PurchaseID:    purchase.ID,
				PurchaseType:  string(purchase.PurchaseType),
				ReferenceID:   purchase.ReferenceID,
				BuyerID:       purchase.BuyerID,
				SellerID:      purchase.SellerID,
				AmountCents:   purchase.AmountCents,
				Currency:      purchase.Currency,
				EscrowOrderID: outcome.EscrowOrderID,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit purchase paid")
		}
		return nil
	})
	if err != nil {
		a.record(purchaseType, ResultFailed)
		return nil, err
	}

	a.record(purchaseType, outcome.Result)
	if outcome.Result == ResultMissing {
		a.warn(ctx, outcome.PurchaseID, event.SessionID, "payment succeeded for unknown purchase")
	}
	return outcome, nil
}

func (a *applier) ApplyFailure(ctx context.Context, event PaymentFailed) (*Outcome, error) {
	outcome := &Outcome{PurchaseID: event.PurchaseID}
	purchaseType := ""

	err := a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		*outcome = Outcome{PurchaseID: event.PurchaseID}
		repo := a.purchases.WithTx(tx)

		id, err := a.resolve(ctx, repo, event.PurchaseID, event.SessionID)
		if err != nil {
			return err
		}
		if id == uuid.Nil {
			outcome.Result = ResultMissing
			return nil
		}
		outcome.PurchaseID = id

		at := a.now()
		transitioned, err := repo.MarkFailed(ctx, id, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark purchase failed")
		}
		purchase, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase")
		}
		if purchase == nil {
			outcome.Result = ResultMissing
			return nil
		}
		purchaseType = string(purchase.PurchaseType)
		if !transitioned {
			outcome.Result = ResultSkipped
			a.logSkip(ctx, purchase)
			return nil
		}

		outcome.Result = ResultFailed
		return a.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseFailed,
			AggregateType: enums.AggregatePurchase,
			AggregateID:   purchase.ID,
			OccurredAt:    at,
			Data: outbox.PurchaseFailedEvent{
				PurchaseID: purchase.ID,
				BuyerID:    purchase.BuyerID,
				Reason:     event.Reason,
			},
		})
	})
	if err != nil {
		a.record(purchaseType, ResultFailed)
		return nil, err
	}

	a.record(purchaseType, outcome.Result)
	if outcome.Result == ResultMissing {
		a.warn(ctx, outcome.PurchaseID, event.SessionID, "payment failed for unknown purchase")
	}
	return outcome, nil
}

// flagRefund handles money captured after the purchase already failed. The
// purchase stays failed; the first report emits a refund request.
func (a *applier) flagRefund(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, paymentIntentID string, at time.Time, outcome *Outcome) error {
	flagged, err := a.purchases.WithTx(tx).FlagRefund(ctx, purchase.ID, paymentIntentID, at)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flag purchase refund")
	}
	if !flagged {
		outcome.Result = ResultSkipped
		a.logSkip(ctx, purchase)
		return nil
	}

	outcome.Result = ResultRefundRequired
	a.warn(ctx, purchase.ID, "", "payment captured for a failed purchase; flagged for refund")
	if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPurchaseRefundRequired,
		AggregateType: enums.AggregatePurchase,
		AggregateID:   purchase.ID,
		OccurredAt:    at,
		Data: outbox.PurchaseRefundRequiredEvent{
			PurchaseID:      purchase.ID,
			BuyerID:         purchase.BuyerID,
			AmountCents:     purchase.AmountCents,
			Currency:        purchase.Currency,
			PaymentIntentID: paymentIntentID,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit purchase refund required")
	}
	return nil
}

func (a *applier) resolve(ctx context.Context, repo purchases.Repository, id uuid.UUID, sessionID string) (uuid.UUID, error) {
	if id != uuid.Nil {
		return id, nil
	}
	if sessionID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id or session id required")
	}
	purchase, err := repo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load purchase by session")
	}
	if purchase == nil {
		return uuid.Nil, nil
	}
	return purchase.ID, nil
}

func (a *applier) settleTicket(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, at time.Time, outcome *Outcome) error {
	catalogRepo := a.catalog.WithTx(tx)
	sold, err := catalogRepo.MarkListingSold(ctx, purchase.ReferenceID, purchase.BuyerID, at)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark listing sold")
	}
	if !sold {
		listing, err := catalogRepo.FindListing(ctx, purchase.ReferenceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing")
		}
		if listing == nil || listing.BuyerID == nil || *listing.BuyerID != purchase.BuyerID {
			outcome.Result = ResultOversold
			a.warn(ctx, purchase.ID, "", "ticket listing no longer available; flagged for refund")
			return a.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPurchaseOversold,
				AggregateType: enums.AggregatePurchase,
				AggregateID:   purchase.ID,
				OccurredAt:    at,
				Data: outbox.PurchaseOversoldEvent{
					PurchaseID:  purchase.ID,
					ListingID:   purchase.ReferenceID,
					BuyerID:     purchase.BuyerID,
					AmountCents: purchase.AmountCents,
				},
			})
		}
	}
	return a.openEscrow(ctx, tx, purchase, outcome)
}

func (a *applier) settleProduct(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, outcome *Outcome) error {
	catalogRepo := a.catalog.WithTx(tx)
	product, err := catalogRepo.FindProduct(ctx, purchase.ReferenceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if product == nil {
		a.warn(ctx, purchase.ID, "", "paid product no longer exists")
		return nil
	}

	if err := catalogRepo.DecrementInventory(ctx, product.ID, purchase.Quantity); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement inventory")
	}
	if product.IsDigital {
		if _, err := a.purchases.WithTx(tx).MarkDelivered(ctx, purchase.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark digital delivered")
		}
		return nil
	}
	return a.openEscrow(ctx, tx, purchase, outcome)
}

func (a *applier) settleCredits(ctx context.Context, tx *gorm.DB, purchase *models.Purchase) error {
	ok, err := a.catalog.WithTx(tx).AddCredits(ctx, purchase.ReferenceID, int64(purchase.Quantity))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add business credits")
	}
	if !ok {
		a.warn(ctx, purchase.ID, "", "credit purchase references a missing business")
	}
	return nil
}

// openEscrow holds the purchase value for the seller. Platform-sold items
// (no seller) settle immediately and never enter escrow.
func (a *applier) openEscrow(ctx context.Context, tx *gorm.DB, purchase *models.Purchase, outcome *Outcome) error {
	if purchase.SellerID == nil {
		return nil
	}
	orders := a.orders.WithTx(tx)
	existing, err := orders.FindByPurchaseID(ctx, purchase.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load escrow order")
	}
	if existing != nil {
		outcome.EscrowOrderID = &existing.ID
		return nil
	}

	order := &models.EscrowOrder{
		ID:         uuid.New(),
		PurchaseID: purchase.ID,
		BuyerID:    purchase.BuyerID,
		BuyerEmail: purchase.BuyerEmail,
		SellerID:   *purchase.SellerID,
		TotalXP:    purchase.AmountCents * a.xpPerMinor,
		Status:     enums.EscrowStatusEscrow,
	}
	if err := orders.Create(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create escrow order")
	}
	outcome.EscrowOrderID = &order.ID

	if err := a.notifications.Notify(ctx, tx, notifications.NotifyInput{
		UserID:  order.SellerID,
		Type:    enums.NotificationTypeOrderPaid,
		Title:   "New paid order",
		Message: fmt.Sprintf("%d XP is held in escrow until the buyer confirms receipt.", order.TotalXP),
		Link:    "/orders/" + order.ID.String(),
	}); err != nil {
		return err
	}

	if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventEscrowOpened,
		AggregateType: enums.AggregateEscrowOrder,
		AggregateID:   order.ID,
		Data: outbox.EscrowOpenedEvent{
			OrderID:    order.ID,
			PurchaseID: purchase.ID,
			BuyerID:    order.BuyerID,
			SellerID:   order.SellerID,
			TotalXP:    order.TotalXP,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit escrow opened")
	}
	return nil
}

func (a *applier) logSkip(ctx context.Context, purchase *models.Purchase) {
	if a.logg == nil {
		return
	}
	ctx = a.logg.WithPurchaseID(ctx, purchase.ID.String())
	a.logg.Info(a.logg.WithField(ctx, "status", purchase.Status), "purchase already settled; skipping side effects")
}

func (a *applier) warn(ctx context.Context, purchaseID uuid.UUID, sessionID, msg string) {
	if a.logg == nil {
		return
	}
	ctx = a.logg.WithPurchaseID(ctx, purchaseID.String())
	if sessionID != "" {
		ctx = a.logg.WithField(ctx, "session_id", sessionID)
	}
	a.logg.Warn(ctx, msg)
}

func (a *applier) record(purchaseType, result string) {
	if a.metrics == nil {
		return
	}
	if purchaseType == "" {
		purchaseType = "unknown"
	}
	a.metrics.Settlement(purchaseType, result)
}
