package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hotmess/hotmess-backend/pkg/enums"
)

// Purchase is a buyer's attempt to pay for a ticket, product or credit bundle.
type Purchase struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID               uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null"`
	BuyerEmail            string               `gorm:"column:buyer_email;not null"`
	SellerID              *uuid.UUID           `gorm:"column:seller_id;type:uuid"`
	PurchaseType          enums.PurchaseType   `gorm:"column:purchase_type;type:purchase_type;not null"`
	ReferenceID           uuid.UUID            `gorm:"column:reference_id;type:uuid;not null"`
	Quantity              int                  `gorm:"column:quantity;not null;default:1"`
	AmountCents           int64                `gorm:"column:amount_cents;not null"`
	Currency              string               `gorm:"column:currency;not null"`
	Status                enums.PurchaseStatus `gorm:"column:status;type:purchase_status;not null;default:'pending'"`
	DigitalDelivered      bool                 `gorm:"column:digital_delivered;not null;default:false"`
	StripeSessionID       *string              `gorm:"column:stripe_session_id"`
	StripePaymentIntentID *string              `gorm:"column:stripe_payment_intent_id"`
	PaidAt                *time.Time           `gorm:"column:paid_at"`
	FailedAt              *time.Time           `gorm:"column:failed_at"`
	RefundFlaggedAt       *time.Time           `gorm:"column:refund_flagged_at"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
