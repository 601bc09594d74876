package outbox

import "github.com/google/uuid"

// PurchasePaidEvent is emitted once per purchase when payment succeeds.
type PurchasePaidEvent struct {
	PurchaseID    uuid.UUID  `json:"purchaseId"`
	PurchaseType  string     `json:"purchaseType"`
	ReferenceID   uuid.UUID  `json:"referenceId"`
	BuyerID       uuid.UUID  `json:"buyerId"`
	SellerID      *uuid.UUID `json:"sellerId,omitempty"`
	AmountCents   int64      `json:"amountCents"`
	Currency      string     `json:"currency"`
	EscrowOrderID *uuid.UUID `json:"escrowOrderId,omitempty"`
}

// PurchaseFailedEvent is emitted when the provider reports a failed payment.
type PurchaseFailedEvent struct {
	PurchaseID uuid.UUID `json:"purchaseId"`
	BuyerID    uuid.UUID `json:"buyerId"`
	Reason     string    `json:"reason,omitempty"`
}

// PurchaseOversoldEvent flags a paid ticket purchase whose listing was already
// sold to another buyer. Support refunds these manually.
type PurchaseOversoldEvent struct {
	PurchaseID  uuid.UUID `json:"purchaseId"`
	ListingID   uuid.UUID `json:"listingId"`
	BuyerID     uuid.UUID `json:"buyerId"`
	AmountCents int64     `json:"amountCents"`
}

// PurchaseRefundRequiredEvent flags money captured for a purchase that had
// already failed. Support refunds these manually.
type PurchaseRefundRequiredEvent struct {
	PurchaseID      uuid.UUID `json:"purchaseId"`
	BuyerID         uuid.UUID `json:"buyerId"`
	AmountCents     int64     `json:"amountCents"`
	Currency        string    `json:"currency"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
}

// EscrowOpenedEvent announces XP held for a seller.
type EscrowOpenedEvent struct {
	OrderID    uuid.UUID `json:"orderId"`
	PurchaseID uuid.UUID `json:"purchaseId"`
	BuyerID    uuid.UUID `json:"buyerId"`
	SellerID   uuid.UUID `json:"sellerId"`
	TotalXP    int64     `json:"totalXp"`
}

// EscrowReleasedEvent announces a completed release.
type EscrowReleasedEvent struct {
	OrderID          uuid.UUID `json:"orderId"`
	SellerID         uuid.UUID `json:"sellerId"`
	ReleasedBy       uuid.UUID `json:"releasedBy"`
	TotalXP          int64     `json:"totalXp"`
	PlatformFeeXP    int64     `json:"platformFeeXp"`
	SellerReceivedXP int64     `json:"sellerReceivedXp"`
	Method           string    `json:"method"`
}

// PickupConfirmedEvent is emitted alongside EscrowReleasedEvent for QR pickups.
type PickupConfirmedEvent struct {
	OrderID        uuid.UUID `json:"orderId"`
	BeaconID       uuid.UUID `json:"beaconId"`
	BuyerID        uuid.UUID `json:"buyerId"`
	DistanceMeters float64   `json:"distanceMeters"`
}

// ConnectOnboardedEvent is emitted when a seller's Connect account can take charges.
type ConnectOnboardedEvent struct {
	SellerID        uuid.UUID `json:"sellerId"`
	StripeAccountID string    `json:"stripeAccountId"`
}
