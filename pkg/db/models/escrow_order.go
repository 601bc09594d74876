package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hotmess/hotmess-backend/pkg/enums"
)

// EscrowOrder holds a paid purchase's XP until the buyer releases it.
type EscrowOrder struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseID        uuid.UUID          `gorm:"column:purchase_id;type:uuid;not null"`
	BuyerID           uuid.UUID          `gorm:"column:buyer_id;type:uuid;not null"`
	BuyerEmail        string             `gorm:"column:buyer_email;not null"`
	SellerID          uuid.UUID          `gorm:"column:seller_id;type:uuid;not null"`
	TotalXP           int64              `gorm:"column:total_xp;not null"`
	Status            enums.EscrowStatus `gorm:"column:status;type:escrow_status;not null"`
	SecondaryCurrency *string            `gorm:"column:secondary_currency"`
	SecondaryAmount   int64              `gorm:"column:secondary_amount;not null;default:0"`
	EscrowReleasedAt  *time.Time         `gorm:"column:escrow_released_at"`
	EscrowReleasedBy  *uuid.UUID         `gorm:"column:escrow_released_by;type:uuid"`
	PlatformFeeXP     *int64             `gorm:"column:platform_fee_xp"`
	SellerReceivedXP  *int64             `gorm:"column:seller_received_xp"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// Dispute is owned by the support tooling; only order and status are read here.
type Dispute struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	Status    enums.DisputeStatus `gorm:"column:status;not null"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// PickupBeacon is a seller-registered hand-off point for an escrow order.
type PickupBeacon struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	QRCode     string             `gorm:"column:qr_code;not null"`
	Lat        float64            `gorm:"column:lat;not null"`
	Lng        float64            `gorm:"column:lng;not null"`
	Status     enums.BeaconStatus `gorm:"column:status;type:pickup_beacon_status;not null"`
	ExpiresAt  time.Time          `gorm:"column:expires_at;not null"`
	PickedUpAt *time.Time         `gorm:"column:picked_up_at"`
	PickedUpBy *uuid.UUID         `gorm:"column:picked_up_by;type:uuid"`
	PhotoURL   *string            `gorm:"column:photo_url"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}
