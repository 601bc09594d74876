package pickups

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hotmess/hotmess-backend/internal/escrow"
	"github.com/hotmess/hotmess-backend/internal/ledger"
	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/logger"
	"github.com/hotmess/hotmess-backend/pkg/outbox"
)

// State-conflict reasons specific to pickups.
const (
	ReasonAlreadyPickedUp = "already_picked_up"
	ReasonExpired         = "expired"
	ReasonTooFar          = "too_far"
)

const (
	maxBeaconMinutes   = 24 * 60
	qrCodePrefix       = "hm_"
	referenceTypeOrder = "escrow_order"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type releaseMetrics interface {
	Released(method string, sellerXP, feeXP int64)
	ReleaseRejected(reason string)
}

// Service manages pickup beacons and QR pickup confirmation.
type Service interface {
	CreateBeacon(ctx context.Context, input CreateBeaconInput) (*BeaconResult, error)
	Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error)
	ExpireStale(ctx context.Context, limit int) (int64, error)
}

// CreateBeaconInput is a seller registering a hand-off point.
type CreateBeaconInput struct {
	OrderID          uuid.UUID
	SellerID         uuid.UUID
	Location         Coordinates
	ExpiresInMinutes int
}

// BeaconResult is returned to the seller; the QR code is shown to the buyer.
type BeaconResult struct {
	BeaconID  uuid.UUID `json:"beacon_id"`
	QRCode    string    `json:"qr_code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConfirmInput is a buyer scanning a beacon's QR code on site.
type ConfirmInput struct {
	QRCode   string
	CallerID uuid.UUID
	Location Coordinates
	PhotoURL string
}

// ConfirmResult reports a completed pickup.
type ConfirmResult struct {
	Success        bool      `json:"success"`
	OrderCompleted bool      `json:"order_completed"`
	OrderID        uuid.UUID `json:"order_id"`
}

// ServiceParams wires the pickup service.
type ServiceParams struct {
	TransactionRunner txRunner
	Beacons           Repository
	Orders            escrow.Repository
	Releaser          *escrow.Releaser
	Ledger            ledger.Service
	Outbox            outboxPublisher
	RadiusMeters      float64
	BeaconTTL         time.Duration
	Metrics           releaseMetrics
	Logger            *logger.Logger
	Clock             func() time.Time
}

type service struct {
	tx       txRunner
	beacons  Repository
	orders   escrow.Repository
	releaser *escrow.Releaser
	ledger   ledger.Service
	outbox   outboxPublisher
	radius   float64
	ttl      time.Duration
	metrics  releaseMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the pickup service.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Beacons == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "beacon repository required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "escrow repository required")
	}
	if params.Releaser == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "releaser required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.RadiusMeters <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "pickup radius must be positive")
	}
	if params.BeaconTTL <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "beacon ttl must be positive")
	}
	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		tx:       params.TransactionRunner,
		beacons:  params.Beacons,
		orders:   params.Orders,
		releaser: params.Releaser,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		radius:   params.RadiusMeters,
		ttl:      params.BeaconTTL,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) CreateBeacon(ctx context.Context, input CreateBeaconInput) (*BeaconResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !input.Location.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lat/lng out of range")
	}
	ttl := s.ttl
	if input.ExpiresInMinutes != 0 {
		if input.ExpiresInMinutes < 1 || input.ExpiresInMinutes > maxBeaconMinutes {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "expires_in_minutes must be between 1 and 1440")
		}
		ttl = time.Duration(input.ExpiresInMinutes) * time.Minute
	}

	now := s.now()
	beacon := &models.PickupBeacon{
		ID:        uuid.New(),
		OrderID:   input.OrderID,
		QRCode:    newQRCode(),
		Lat:       input.Location.Lat,
		Lng:       input.Location.Lng,
		Status:    enums.BeaconStatusActive,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load escrow order")
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "escrow order not found")
		}
		if order.SellerID != input.SellerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can create a pickup beacon")
		}
		if err := escrow.CheckStatus(order); err != nil {
			return err
		}

		beacons := s.beacons.WithTx(tx)
		existing, err := beacons.FindActiveByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load active beacon")
		}
		if existing != nil {
			if now.Before(existing.ExpiresAt) {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already has an active pickup beacon")
			}
			if _, err := beacons.MarkExpired(ctx, existing.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expire stale beacon")
			}
		}
		if err := beacons.Create(ctx, beacon); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create pickup beacon")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &BeaconResult{BeaconID: beacon.ID, QRCode: beacon.QRCode, ExpiresAt: beacon.ExpiresAt}, nil
}

func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*ConfirmResult, error) {
	qrCode := strings.TrimSpace(input.QRCode)
	if qrCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qr_code is required")
	}
	if input.CallerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !input.Location.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lat/lng out of range")
	}

	var (
		outcome    *escrow.Outcome
		expiredErr error
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		beacons := s.beacons.WithTx(tx)
		found, err := beacons.FindByQRCode(ctx, qrCode)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pickup beacon")
		}
		if found == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "pickup beacon not found")
		}

		// order before beacon, the same order CreateBeacon locks in
		order, err := s.releaser.LockOrder(ctx, tx, found.OrderID)
		if err != nil {
			return err
		}
		beacon, err := beacons.FindByIDForUpdate(ctx, found.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock pickup beacon")
		}
		if beacon == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "pickup beacon not found")
		}
		if order.BuyerID != input.CallerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can confirm this pickup")
		}

		now := s.now()
		switch {
		case beacon.Status == enums.BeaconStatusPickedUp:
			return pkgerrors.StateConflict(ReasonAlreadyPickedUp, "pickup already confirmed")
		case beacon.Status == enums.BeaconStatusExpired:
			expiredErr = pkgerrors.StateConflict(ReasonExpired, "pickup beacon has expired")
			return nil
		case !now.Before(beacon.ExpiresAt):
			if _, err := beacons.MarkExpired(ctx, beacon.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expire pickup beacon")
			}
			// commit the expiry, then report it
			expiredErr = pkgerrors.StateConflict(ReasonExpired, "pickup beacon has expired")
			return nil
		}

		point := Coordinates{Lat: beacon.Lat, Lng: beacon.Lng}
		if !WithinRadius(input.Location, point, s.radius) {
			return pkgerrors.StateConflict(ReasonTooFar, "you are too far from the pickup point")
		}
		distance := DistanceMeters(input.Location, point)

		if err := s.releaser.CheckReleasable(ctx, tx, order); err != nil {
			return err
		}

		var photo *string
		if p := strings.TrimSpace(input.PhotoURL); p != "" {
			photo = &p
		}
		ok, err := beacons.MarkPickedUp(ctx, beacon.ID, input.CallerID, photo, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consume pickup beacon")
		}
		if !ok {
			return pkgerrors.StateConflict(ReasonAlreadyPickedUp, "pickup already confirmed")
		}

		outcome, err = s.releaser.Release(ctx, tx, order, input.CallerID, escrow.MethodPickup)
		if err != nil {
			return err
		}

		if order.SecondaryCurrency != nil && order.SecondaryAmount > 0 {
			currency := enums.NormalizeCurrency(*order.SecondaryCurrency)
			if currency != "" && !currency.IsPrimary() {
				orderID := order.ID
				if _, err := s.ledger.Post(ctx, tx, ledger.Posting{
					UserID:        order.SellerID,
					Currency:      currency,
					Amount:        order.SecondaryAmount,
					Type:          enums.LedgerTxnScan,
					ReferenceID:   &orderID,
					ReferenceType: referenceTypeOrder,
					Metadata:      map[string]any{"beacon_id": beacon.ID.String()},
				}); err != nil {
					return err
				}
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPickupConfirmed,
			AggregateType: enums.AggregateEscrowOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.CallerID, Role: "buyer"},
			OccurredAt:    now,
			Data: outbox.PickupConfirmedEvent{
				OrderID:        order.ID,
				BeaconID:       beacon.ID,
				BuyerID:        input.CallerID,
				DistanceMeters: distance,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit pickup confirmed")
		}
		return nil
	})
	if err == nil {
		err = expiredErr
	}
	if err != nil {
		if reason := pkgerrors.Reason(err); reason != "" && s.metrics != nil {
			s.metrics.ReleaseRejected(reason)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Released(outcome.Method, outcome.SellerReceivedXP, outcome.PlatformFeeXP)
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":           outcome.OrderID.String(),
			"seller_received_xp": outcome.SellerReceivedXP,
			"platform_fee_xp":    outcome.PlatformFeeXP,
		}), "pickup confirmed")
	}
	return &ConfirmResult{Success: true, OrderCompleted: true, OrderID: outcome.OrderID}, nil
}

func (s *service) ExpireStale(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	count, err := s.beacons.ExpireBefore(ctx, s.now(), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expire pickup beacons")
	}
	return count, nil
}

func newQRCode() string {
	return qrCodePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
