package pickups

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hotmess/hotmess-backend/internal/escrow"
	"github.com/hotmess/hotmess-backend/internal/ledger"
	"github.com/hotmess/hotmess-backend/internal/notifications"
	"github.com/hotmess/hotmess-backend/internal/purchases"
	"github.com/hotmess/hotmess-backend/pkg/db"
	"github.com/hotmess/hotmess-backend/pkg/db/dbtest"
	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/outbox"
)

var (
	platformAccount = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	venue           = Coordinates{Lat: 51.5136, Lng: -0.1365}
)

type harness struct {
	conn *gorm.DB
	svc  Service
	now  time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

// newHarnessWith records row-lock acquisitions into locks when it is set.
func newHarnessWith(t *testing.T, locks *lockLog) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	h := &harness{conn: conn, now: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	notifySvc, err := notifications.NewService(notifications.NewRepository(conn))
	require.NoError(t, err)
	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	orders := escrow.NewRepository(conn)
	beacons := NewRepository(conn)
	if locks != nil {
		orders = recordingOrders{Repository: orders, locks: locks}
		beacons = recordingBeacons{Repository: beacons, locks: locks}
	}

	releaser, err := escrow.NewReleaser(escrow.ReleaserParams{
		Orders:            orders,
		Purchases:         purchases.NewRepository(conn),
		Ledger:            ledgerSvc,
		Notifications:     notifySvc,
		Outbox:            publisher,
		FeeRate:           decimal.RequireFromString("0.10"),
		PlatformAccountID: platformAccount,
		Clock:             clock,
	})
	require.NoError(t, err)

	h.svc, err = NewService(ServiceParams{
		TransactionRunner: db.FromConn(conn),
		Beacons:           beacons,
		Orders:            orders,
		Releaser:          releaser,
		Ledger:            ledgerSvc,
		Outbox:            publisher,
		RadiusMeters:      50,
		BeaconTTL:         2 * time.Hour,
		Clock:             clock,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) seedOrder(t *testing.T, total int64, secondary string, secondaryAmount int64) *models.EscrowOrder {
	t.Helper()
	purchase := &models.Purchase{
		ID:           uuid.New(),
		BuyerID:      uuid.New(),
		BuyerEmail:   "buyer@example.com",
		PurchaseType: enums.PurchaseTypeProduct,
		ReferenceID:  uuid.New(),
		Quantity:     1,
		AmountCents:  total,
		Currency:     "gbp",
		Status:       enums.PurchaseStatusPaid,
	}
	require.NoError(t, h.conn.Create(purchase).Error)
	order := &models.EscrowOrder{
		ID:              uuid.New(),
		PurchaseID:      purchase.ID,
		BuyerID:         purchase.BuyerID,
		BuyerEmail:      purchase.BuyerEmail,
		SellerID:        uuid.New(),
		TotalXP:         total,
		Status:          enums.EscrowStatusEscrow,
		SecondaryAmount: secondaryAmount,
	}
	if secondary != "" {
		order.SecondaryCurrency = &secondary
	}
	require.NoError(t, h.conn.Create(order).Error)
	return order
}

func (h *harness) beacon(t *testing.T, order *models.EscrowOrder) *BeaconResult {
	t.Helper()
	res, err := h.svc.CreateBeacon(context.Background(), CreateBeaconInput{OrderID: order.ID, SellerID: order.SellerID, Location: venue})
	require.NoError(t, err)
	return res
}

func (h *harness) beaconStatus(t *testing.T, id uuid.UUID) enums.BeaconStatus {
	t.Helper()
	var stored models.PickupBeacon
	require.NoError(t, h.conn.First(&stored, "id = ?", id).Error)
	return stored.Status
}

func (h *harness) balance(t *testing.T, userID uuid.UUID, currency enums.Currency) int64 {
	t.Helper()
	var balance int64
	require.NoError(t, h.conn.Model(&models.Wallet{}).Where("user_id = ? AND currency = ?", userID, currency).Pluck("balance", &balance).Error)
	return balance
}

func TestCreateBeacon(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.seedOrder(t, 1000, "", 0)

	_, err := h.svc.CreateBeacon(ctx, CreateBeaconInput{OrderID: order.ID, SellerID: order.BuyerID, Location: venue})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = h.svc.CreateBeacon(ctx, CreateBeaconInput{OrderID: uuid.New(), SellerID: order.SellerID, Location: venue})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.CreateBeacon(ctx, CreateBeaconInput{OrderID: order.ID, SellerID: order.SellerID, Location: Coordinates{Lat: 95}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	res := h.beacon(t, order)
	assert.Contains(t, res.QRCode, qrCodePrefix)
	assert.Equal(t, h.now.Add(2*time.Hour), res.ExpiresAt)

	_, err = h.svc.CreateBeacon(ctx, CreateBeaconInput{OrderID: order.ID, SellerID: order.SellerID, Location: venue})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "one active beacon per order")

	h.now = h.now.Add(3 * time.Hour)
	replacement, err := h.svc.CreateBeacon(ctx, CreateBeaconInput{OrderID: order.ID, SellerID: order.SellerID, Location: venue, ExpiresInMinutes: 30})
	require.NoError(t, err)
	assert.Equal(t, h.now.Add(30*time.Minute), replacement.ExpiresAt)
	assert.Equal(t, enums.BeaconStatusExpired, h.beaconStatus(t, res.BeaconID))
}

func TestConfirmReleasesEscrowAndCreditsSecondaryCurrency(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.seedOrder(t, 1000, "Tokens", 25)
	res := h.beacon(t, order)

	nearby := Coordinates{Lat: venue.Lat + 0.0002, Lng: venue.Lng}
	got, err := h.svc.Confirm(ctx, ConfirmInput{QRCode: res.QRCode, CallerID: order.BuyerID, Location: nearby, PhotoURL: "https://cdn.example.com/p.jpg"})
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.True(t, got.OrderCompleted)
	assert.Equal(t, order.ID, got.OrderID)

	assert.Equal(t, int64(900), h.balance(t, order.SellerID, enums.CurrencyXP))
	assert.Equal(t, int64(100), h.balance(t, platformAccount, enums.CurrencyXP))
	assert.Equal(t, int64(25), h.balance(t, order.SellerID, enums.Currency("tokens")))
	assert.Equal(t, enums.BeaconStatusPickedUp, h.beaconStatus(t, res.BeaconID))

	var scans int64
	require.NoError(t, h.conn.Model(&models.LedgerEntry{}).Where("reference_id = ? AND transaction_type = ?", order.ID, enums.LedgerTxnScan).Count(&scans).Error)
	assert.Equal(t, int64(1), scans)

	var events []models.OutboxEvent
	require.NoError(t, h.conn.Where("aggregate_id = ?", order.ID).Order("event_type").Find(&events).Error)
	require.Len(t, events, 2)
	assert.Equal(t, enums.EventEscrowReleased, events[0].EventType)
	assert.Equal(t, enums.EventPickupConfirmed, events[1].EventType)

	_, err = h.svc.Confirm(ctx, ConfirmInput{QRCode: res.QRCode, CallerID: order.BuyerID, Location: nearby})
	assert.Equal(t, ReasonAlreadyPickedUp, pkgerrors.Reason(err))
	assert.Equal(t, int64(900), h.balance(t, order.SellerID, enums.CurrencyXP))
}

func TestConfirmRejectsDistantBuyer(t *testing.T) {
	h := newHarness(t)
	order := h.seedOrder(t, 1000, "", 0)
	res := h.beacon(t, order)

	far := Coordinates{Lat: venue.Lat + 0.001, Lng: venue.Lng}
	_, err := h.svc.Confirm(context.Background(), ConfirmInput{QRCode: res.QRCode, CallerID: order.BuyerID, Location: far})
	require.Error(t, err)
	assert.Equal(t, ReasonTooFar, pkgerrors.Reason(err))
	assert.Equal(t, enums.BeaconStatusActive, h.beaconStatus(t, res.BeaconID))
	assert.Zero(t, h.balance(t, order.SellerID, enums.CurrencyXP))
}

func TestConfirmExpiredBeaconCommitsExpiry(t *testing.T) {
	h := newHarness(t)
	order := h.seedOrder(t, 1000, "", 0)
	res := h.beacon(t, order)

	h.now = res.ExpiresAt
	_, err := h.svc.Confirm(context.Background(), ConfirmInput{QRCode: res.QRCode, CallerID: order.BuyerID, Location: venue})
	require.Error(t, err)
	assert.Equal(t, ReasonExpired, pkgerrors.Reason(err))
	assert.Equal(t, enums.BeaconStatusExpired, h.beaconStatus(t, res.BeaconID))

	_, err = h.svc.Confirm(context.Background(), ConfirmInput{QRCode: res.QRCode, CallerID: order.BuyerID, Location: venue})
	assert.Equal(t, ReasonExpired, pkgerrors.Reason(err))
	assert.Zero(t, h.balance(t, order.SellerID, enums.CurrencyXP))
}

func TestConfirmGates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.seedOrder(t, 1000, "", 0)
	res := h.beacon(t, order)

	_, err := h.svc.Confirm(ctx, ConfirmInput{QRCode: "hm_unknown", CallerID: order.BuyerID, Location: venue})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.Confirm(ctx, ConfirmInput{QRCode: res.QRCode, CallerID: order.SellerID, Location: venue})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	require.NoError(t, h.conn.Create(&models.Dispute{ID: uuid.New(), OrderID: order.ID, Status: enums.DisputeStatusOpen, CreatedAt: h.now}).Error)
	_, err = h.svc.Confirm(ctx, ConfirmInput{QRCode: res.QRCode, CallerID: order.BuyerID, Location: venue})
	assert.Equal(t, escrow.ReasonDisputeActive, pkgerrors.Reason(err))
	assert.Equal(t, enums.BeaconStatusActive, h.beaconStatus(t, res.BeaconID), "beacon consumption rolls back with the rejected release")
}

func TestExpireStale(t *testing.T) {
	h := newHarness(t)
	first := h.beacon(t, h.seedOrder(t, 100, "", 0))
	second := h.beacon(t, h.seedOrder(t, 100, "", 0))

	h.now = h.now.Add(2*time.Hour + time.Second)
	count, err := h.svc.ExpireStale(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, enums.BeaconStatusExpired, h.beaconStatus(t, first.BeaconID))
	assert.Equal(t, enums.BeaconStatusExpired, h.beaconStatus(t, second.BeaconID))

	count, err = h.svc.ExpireStale(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, count)
}

type lockLog struct {
	mu    sync.Mutex
	order []string
}

func (l *lockLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, name)
}

func (l *lockLog) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.order
	l.order = nil
	return out
}

type recordingOrders struct {
	escrow.Repository
	locks *lockLog
}

func (r recordingOrders) WithTx(tx *gorm.DB) escrow.Repository {
	return recordingOrders{Repository: r.Repository.WithTx(tx), locks: r.locks}
}

func (r recordingOrders) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.EscrowOrder, error) {
	r.locks.add("order")
	return r.Repository.FindByIDForUpdate(ctx, id)
}

type recordingBeacons struct {
	Repository
	locks *lockLog
}

func (r recordingBeacons) WithTx(tx *gorm.DB) Repository {
	return recordingBeacons{Repository: r.Repository.WithTx(tx), locks: r.locks}
}

func (r recordingBeacons) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PickupBeacon, error) {
	r.locks.add("beacon")
	return r.Repository.FindByIDForUpdate(ctx, id)
}

func (r recordingBeacons) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	r.locks.add("beacon")
	return r.Repository.MarkExpired(ctx, id)
}

func TestCreateAndConfirmLockOrderBeforeBeacon(t *testing.T) {
	locks := &lockLog{}
	h := newHarnessWith(t, locks)
	ctx := context.Background()
	order := h.seedOrder(t, 1000, "", 0)
	stale := h.beacon(t, order)

	h.now = stale.ExpiresAt.Add(time.Minute)
	locks.take()
	fresh, err := h.svc.CreateBeacon(ctx, CreateBeaconInput{OrderID: order.ID, SellerID: order.SellerID, Location: venue})
	require.NoError(t, err)
	assert.Equal(t, []string{"order", "beacon"}, locks.take(), "replacing a stale beacon")

	_, err = h.svc.Confirm(ctx, ConfirmInput{QRCode: fresh.QRCode, CallerID: order.BuyerID, Location: venue})
	require.NoError(t, err)
	got := locks.take()
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, []string{"order", "beacon"}, got[:2], "confirming a pickup")
}
