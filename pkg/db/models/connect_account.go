package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hotmess/hotmess-backend/pkg/enums"
)

// SellerConnectAccount links a seller to their Stripe Connect account.
type SellerConnectAccount struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	SellerID         uuid.UUID              `gorm:"column:seller_id;type:uuid;not null"`
	StripeAccountID  string                 `gorm:"column:stripe_account_id;not null"`
	OnboardingStatus enums.OnboardingStatus `gorm:"column:onboarding_status;not null"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
