package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hotmess/hotmess-backend/internal/catalog"
	"github.com/hotmess/hotmess-backend/pkg/enums"
	pkgerrors "github.com/hotmess/hotmess-backend/pkg/errors"
)

// State-conflict reasons raised while pricing a purchase.
const (
	ReasonListingUnavailable    = "listing_unavailable"
	ReasonProductUnavailable    = "product_unavailable"
	ReasonInsufficientInventory = "insufficient_inventory"
	ReasonOwnListing            = "own_listing"
)

const maxProductQuantity = 100

// Quote is the server-side price of a purchase. Client-supplied amounts are
// never trusted.
type Quote struct {
	AmountCents int64
	Currency    string
	Quantity    int
	SellerID    *uuid.UUID
	Description string
}

// Pricer computes authoritative quotes from catalog rows.
type Pricer struct {
	catalog         catalog.Repository
	creditPrice     decimal.Decimal
	creditMax       int64
	defaultCurrency string
}

// NewPricer builds a pricer over the catalog.
func NewPricer(repo catalog.Repository, creditPrice decimal.Decimal, creditMax int64, defaultCurrency string) (*Pricer, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repository required")
	}
	if !creditPrice.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "credit price must be positive")
	}
	if creditMax <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "credit max must be positive")
	}
	if strings.TrimSpace(defaultCurrency) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "default currency required")
	}
	return &Pricer{
		catalog:         repo,
		creditPrice:     creditPrice,
		creditMax:       creditMax,
		defaultCurrency: strings.ToLower(defaultCurrency),
	}, nil
}

// Quote prices a purchase of quantity units of reference for buyer.
func (p *Pricer) Quote(ctx context.Context, kind enums.PurchaseType, reference, buyer uuid.UUID, quantity int) (*Quote, error) {
	switch kind {
	case enums.PurchaseTypeTicket:
		return p.quoteTicket(ctx, reference, buyer)
	case enums.PurchaseTypeProduct:
		return p.quoteProduct(ctx, reference, buyer, quantity)
	case enums.PurchaseTypeCredits:
		return p.quoteCredits(ctx, reference, buyer, quantity)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase_type must be ticket, product or credits")
	}
}

func (p *Pricer) quoteTicket(ctx context.Context, id, buyer uuid.UUID) (*Quote, error) {
	listing, err := p.catalog.FindListing(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ticket listing")
	}
	if listing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket listing not found")
	}
	if listing.Status != enums.ListingStatusActive {
		return nil, pkgerrors.StateConflict(ReasonListingUnavailable, "ticket listing is no longer available")
	}
	if listing.SellerID == buyer {
		return nil, pkgerrors.StateConflict(ReasonOwnListing, "you cannot buy your own listing")
	}
	seller := listing.SellerID
	return &Quote{
		AmountCents: listing.PriceCents,
		Currency:    strings.ToLower(listing.Currency),
		Quantity:    1,
		SellerID:    &seller,
		Description: "Ticket: " + listing.EventName,
	}, nil
}

func (p *Pricer) quoteProduct(ctx context.Context, id, buyer uuid.UUID, quantity int) (*Quote, error) {
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 || quantity > maxProductQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", maxProductQuantity))
	}
	product, err := p.catalog.FindProduct(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if product.Status != enums.ProductStatusActive {
		return nil, pkgerrors.StateConflict(ReasonProductUnavailable, "product is not available")
	}
	if product.SellerID != nil && *product.SellerID == buyer {
		return nil, pkgerrors.StateConflict(ReasonOwnListing, "you cannot buy your own product")
	}
	if !product.IsDigital && product.InventoryCount < quantity {
		return nil, pkgerrors.StateConflict(ReasonInsufficientInventory, "not enough stock for this quantity")
	}

	amount := product.PriceCents * int64(quantity)
	if !product.IsDigital {
		amount += product.ShippingCents
	}
	return &Quote{
		AmountCents: amount,
		Currency:    strings.ToLower(product.Currency),
		Quantity:    quantity,
		SellerID:    product.SellerID,
		Description: product.Name,
	}, nil
}

func (p *Pricer) quoteCredits(ctx context.Context, businessID, buyer uuid.UUID, credits int) (*Quote, error) {
	if credits < 1 || int64(credits) > p.creditMax {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("credits must be between 1 and %d", p.creditMax))
	}
	business, err := p.catalog.FindBusiness(ctx, businessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load business")
	}
	if business == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
	}
	if business.OwnerID != buyer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the business owner can buy credits")
	}
	amount := decimal.NewFromInt(int64(credits)).Mul(p.creditPrice).Round(0).IntPart()
	return &Quote{
		AmountCents: amount,
		Currency:    p.defaultCurrency,
		Quantity:    credits,
		Description: fmt.Sprintf("%d advertising credits for %s", credits, business.Name),
	}, nil
}
