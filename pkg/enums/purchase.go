package enums

import "fmt"

// PurchaseType identifies what a purchase settles against.
type PurchaseType string

const (
	PurchaseTypeTicket  PurchaseType = "ticket"
	PurchaseTypeProduct PurchaseType = "product"
	PurchaseTypeCredits PurchaseType = "credits"
)

var validPurchaseTypes = []PurchaseType{
	PurchaseTypeTicket,
	PurchaseTypeProduct,
	PurchaseTypeCredits,
}

// IsValid reports whether the value matches the canonical purchase type enum.
func (v PurchaseType) IsValid() bool {
	for _, candidate := range validPurchaseTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParsePurchaseType converts raw input into PurchaseType.
func ParsePurchaseType(value string) (PurchaseType, error) {
	for _, candidate := range validPurchaseTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase type %q", value)
}

// PurchaseStatus maps to the purchase_status enum in Postgres.
type PurchaseStatus string

const (
	PurchaseStatusPending       PurchaseStatus = "pending"
	PurchaseStatusPaid          PurchaseStatus = "paid"
	PurchaseStatusDelivered     PurchaseStatus = "delivered"
	PurchaseStatusCompleted     PurchaseStatus = "completed"
	PurchaseStatusPaymentFailed PurchaseStatus = "payment_failed"
)

var validPurchaseStatuses = []PurchaseStatus{
	PurchaseStatusPending,
	PurchaseStatusPaid,
	PurchaseStatusDelivered,
	PurchaseStatusCompleted,
	PurchaseStatusPaymentFailed,
}

// IsValid reports whether the value matches the canonical purchase status enum.
func (v PurchaseStatus) IsValid() bool {
	for _, candidate := range validPurchaseStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParsePurchaseStatus converts raw input into PurchaseStatus.
func ParsePurchaseStatus(value string) (PurchaseStatus, error) {
	for _, candidate := range validPurchaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase status %q", value)
}

// IsTerminal reports whether no further settlement transition applies.
func (v PurchaseStatus) IsTerminal() bool {
	return v == PurchaseStatusCompleted || v == PurchaseStatusPaymentFailed
}
