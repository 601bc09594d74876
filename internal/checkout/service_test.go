package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hotmess/hotmess-backend/internal/catalog"
	"github.com/hotmess/hotmess-backend/internal/purchases"
	"github.com/hotmess/hotmess-backend/pkg/db"
	"github.com/hotmess/hotmess-backend/pkg/db/dbtest"
	"github.com/hotmess/hotmess-backend/pkg/db/models"
	"github.com/hotmess/hotmess-backend/pkg/enums"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
	"github.com/hotmess/hotmess-backend/pkg/stripe"
)

type fakeStripe struct {
	created   []stripe.CheckoutSessionInput
	expired   []string
	createErr error
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, in stripe.CheckoutSessionInput) (*stripe.CheckoutSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	return &stripe.CheckoutSession{ID: "cs_test_" + in.PurchaseID, URL: "https://checkout.stripe.test/" + in.PurchaseID}, nil
}

func (f *fakeStripe) ExpireCheckoutSession(_ context.Context, id string) error {
	f.expired = append(f.expired, id)
	return nil
}

type failingPurchases struct {
	purchases.Repository
}

func (f failingPurchases) WithTx(*gorm.DB) purchases.Repository { return f }

func (f failingPurchases) Create(context.Context, *models.Purchase) error {
	return errors.New("insert failed")
}

type harness struct {
	conn   *gorm.DB
	stripe *fakeStripe
	svc    Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	fake := &fakeStripe{}
	return &harness{conn: conn, stripe: fake, svc: buildService(t, conn, purchases.NewRepository(conn), fake)}
}

func buildService(t *testing.T, conn *gorm.DB, repo purchases.Repository, client sessionClient) Service {
	t.Helper()
	pricer, err := NewPricer(catalog.NewRepository(conn), decimal.NewFromInt(10), 10000, "GBP")
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		TransactionRunner: db.FromConn(conn),
		Pricer:            pricer,
		Purchases:         repo,
		Stripe:            client,
	})
	require.NoError(t, err)
	return svc
}

func (h *harness) create(t *testing.T, row any) {
	t.Helper()
	require.NoError(t, h.conn.Create(row).Error)
}

func TestStartTicketUsesListingPrice(t *testing.T) {
	h := newHarness(t)
	seller, buyer := uuid.New(), uuid.New()
	listing := &models.TicketListing{ID: uuid.New(), SellerID: seller, EventName: "Warehouse", PriceCents: 2500, Currency: "GBP", Status: enums.ListingStatusActive}
	h.create(t, listing)

	res, err := h.svc.Start(context.Background(), StartInput{
		BuyerID: buyer, BuyerEmail: "buyer@example.com", PurchaseType: enums.PurchaseTypeTicket, ReferenceID: listing.ID, Quantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), res.AmountCents)
	assert.Equal(t, "gbp", res.Currency)
	assert.Equal(t, "cs_test_"+res.PurchaseID.String(), res.SessionID)

	require.Len(t, h.stripe.created, 1)
	sent := h.stripe.created[0]
	assert.Equal(t, "checkout:"+res.PurchaseID.String(), sent.IdempotencyKey)
	assert.Equal(t, "ticket", sent.PurchaseType)
	assert.Equal(t, listing.ID.String(), sent.ReferenceID)

	var stored models.Purchase
	require.NoError(t, h.conn.First(&stored, "id = ?", res.PurchaseID).Error)
	assert.Equal(t, enums.PurchaseStatusPending, stored.Status)
	assert.Equal(t, 1, stored.Quantity)
	require.NotNil(t, stored.SellerID)
	assert.Equal(t, seller, *stored.SellerID)
	require.NotNil(t, stored.StripeSessionID)
	assert.Equal(t, res.SessionID, *stored.StripeSessionID)
}

func TestStartTicketRejections(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	sold := &models.TicketListing{ID: uuid.New(), SellerID: seller, EventName: "Sold out", PriceCents: 100, Currency: "gbp", Status: enums.ListingStatusSold}
	own := &models.TicketListing{ID: uuid.New(), SellerID: seller, EventName: "Mine", PriceCents: 100, Currency: "gbp", Status: enums.ListingStatusActive}
	h.create(t, sold)
	h.create(t, own)

	_, err := h.svc.Start(context.Background(), StartInput{BuyerID: uuid.New(), BuyerEmail: "a@b.co", PurchaseType: enums.PurchaseTypeTicket, ReferenceID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.Start(context.Background(), StartInput{BuyerID: uuid.New(), BuyerEmail: "a@b.co", PurchaseType: enums.PurchaseTypeTicket, ReferenceID: sold.ID})
	assert.Equal(t, ReasonListingUnavailable, pkgerrors.Reason(err))

	_, err = h.svc.Start(context.Background(), StartInput{BuyerID: seller, BuyerEmail: "a@b.co", PurchaseType: enums.PurchaseTypeTicket, ReferenceID: own.ID})
	assert.Equal(t, ReasonOwnListing, pkgerrors.Reason(err))

	assert.Empty(t, h.stripe.created)
}

func TestStartProductPricing(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	physical := &models.Product{ID: uuid.New(), SellerID: &seller, Name: "Tee", PriceCents: 1500, ShippingCents: 395, Currency: "gbp", InventoryCount: 3, Status: enums.ProductStatusActive}
	digital := &models.Product{ID: uuid.New(), Name: "Mix", PriceCents: 500, ShippingCents: 395, Currency: "gbp", IsDigital: true, Status: enums.ProductStatusActive}
	h.create(t, physical)
	h.create(t, digital)

	res, err := h.svc.Start(context.Background(), StartInput{BuyerID: uuid.New(), BuyerEmail: "a@b.co", PurchaseType: enums.PurchaseTypeProduct, ReferenceID: physical.ID, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2*1500+395), res.AmountCents)

	res, err = h.svc.Start(context.Background(), StartInput{BuyerID: uuid.New(), BuyerEmail: "a@b.co", PurchaseType: enums.PurchaseTypeProduct, ReferenceID: digital.ID, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), res.AmountCents)

	var stored models.Purchase
	require.NoError(t, h.conn.First(&stored, "id = ?", res.PurchaseID).Error)
	assert.Nil(t, stored.SellerID)

	_, err = h.svc.Start(context.Background(), StartInput{BuyerID: uuid.New(), BuyerEmail: "a@b.co", PurchaseType: enums.PurchaseTypeProduct, ReferenceID: physical.ID, Quantity: 4})
	assert.Equal(t, ReasonInsufficientInventory, pkgerrors.Reason(err))
}

func TestStartCreditsRequiresOwner(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	biz := &models.Business{ID: uuid.New(), OwnerID: owner, Name: "Club"}
	h.create(t, biz)

	res, err := h.svc.Start(context.Background(), StartInput{BuyerID: owner, BuyerEmail: "owner@club.co", PurchaseType: enums.PurchaseTypeCredits, ReferenceID: biz.ID, Quantity: 250})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), res.AmountCents)
	assert.Equal(t, "gbp", res.Currency)

	_, err = h.svc.Start(context.Background(), StartInput{BuyerID: uuid.New(), BuyerEmail: "x@club.co", PurchaseType: enums.PurchaseTypeCredits, ReferenceID: biz.ID, Quantity: 10})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = h.svc.Start(context.Background(), StartInput{BuyerID: owner, BuyerEmail: "owner@club.co", PurchaseType: enums.PurchaseTypeCredits, ReferenceID: biz.ID, Quantity: 10001})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.Start(context.Background(), StartInput{BuyerID: owner, BuyerEmail: "owner@club.co", PurchaseType: enums.PurchaseTypeCredits, ReferenceID: uuid.New(), Quantity: 10})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestStartFailsClosedWithoutStripe(t *testing.T) {
	conn := dbtest.Open(t)
	svc := buildService(t, conn, purchases.NewRepository(conn), nil)

	_, err := svc.Start(context.Background(), StartInput{BuyerID: uuid.New(), BuyerEmail: "a@b.co", PurchaseType: enums.PurchaseTypeTicket, ReferenceID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestStartProviderErrorIsDependency(t *testing.T) {
	h := newHarness(t)
	h.stripe.createErr = errors.New("stripe down")
	listing := &models.TicketListing{ID: uuid.New(), SellerID: uuid.New(), EventName: "Rave", PriceCents: 900, Currency: "gbp", Status: enums.ListingStatusActive}
	h.create(t, listing)

	_, err := h.svc.Start(context.Background(), StartInput{BuyerID: uuid.New(), BuyerEmail: "a@b.co", PurchaseType: enums.PurchaseTypeTicket, ReferenceID: listing.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	var n int64
	require.NoError(t, h.conn.Model(&models.Purchase{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestStartExpiresSessionWhenInsertFails(t *testing.T) {
	conn := dbtest.Open(t)
	fake := &fakeStripe{}
	svc := buildService(t, conn, failingPurchases{}, fake)
	listing := &models.TicketListing{ID: uuid.New(), SellerID: uuid.New(), EventName: "Rave", PriceCents: 900, Currency: "gbp", Status: enums.ListingStatusActive}
	require.NoError(t, conn.Create(listing).Error)

	_, err := svc.Start(context.Background(), StartInput{BuyerID: uuid.New(), BuyerEmail: "a@b.co", PurchaseType: enums.PurchaseTypeTicket, ReferenceID: listing.ID})
	require.Error(t, err)
	require.Len(t, fake.created, 1)
	assert.Equal(t, []string{"cs_test_" + fake.created[0].PurchaseID}, fake.expired)
}

func TestStartValidatesInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Start(context.Background(), StartInput{BuyerID: uuid.New(), BuyerEmail: "not-an-email", PurchaseType: enums.PurchaseTypeTicket, ReferenceID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.Start(context.Background(), StartInput{BuyerID: uuid.New(), BuyerEmail: "a@b.co", PurchaseType: "membership", ReferenceID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
