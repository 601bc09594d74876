package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hotmess/hotmess-backend/pkg/enums"
)

// TicketListing is a resale ticket offered by a seller.
type TicketListing struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerID   uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	EventName  string              `gorm:"column:event_name;not null"`
	PriceCents int64               `gorm:"column:price_cents;not null"`
	Currency   string              `gorm:"column:currency;not null"`
	Status     enums.ListingStatus `gorm:"column:status;type:ticket_listing_status;not null"`
	BuyerID    *uuid.UUID          `gorm:"column:buyer_id;type:uuid"`
	SoldAt     *time.Time          `gorm:"column:sold_at"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Product is a shop item. SellerID is nil for items sold by the platform itself.
type Product struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerID       *uuid.UUID          `gorm:"column:seller_id;type:uuid"`
	Name           string              `gorm:"column:name;not null"`
	PriceCents     int64               `gorm:"column:price_cents;not null"`
	ShippingCents  int64               `gorm:"column:shipping_cents;not null;default:0"`
	Currency       string              `gorm:"column:currency;not null"`
	InventoryCount int                 `gorm:"column:inventory_count;not null;default:0"`
	IsDigital      bool                `gorm:"column:is_digital;not null;default:false"`
	Status         enums.ProductStatus `gorm:"column:status;type:product_status;not null"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Business holds a venue's advertising credit balance.
type Business struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID       uuid.UUID `gorm:"column:owner_id;type:uuid;not null"`
	Name          string    `gorm:"column:name;not null"`
	CreditBalance int64     `gorm:"column:credit_balance;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
