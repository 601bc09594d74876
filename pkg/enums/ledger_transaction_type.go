package enums

import "fmt"

// LedgerTransactionType maps to the ledger_transaction_type enum in Postgres.
type LedgerTransactionType string

const (
	LedgerTxnEscrowRelease LedgerTransactionType = "escrow_release"
	LedgerTxnPlatformFee   LedgerTransactionType = "platform_fee"
	LedgerTxnPurchase      LedgerTransactionType = "purchase"
	LedgerTxnPayout        LedgerTransactionType = "payout"
	LedgerTxnScan          LedgerTransactionType = "scan"
	LedgerTxnAdjustment    LedgerTransactionType = "adjustment"
)

var validLedgerTransactionTypes = []LedgerTransactionType{
	LedgerTxnEscrowRelease,
	LedgerTxnPlatformFee,
	LedgerTxnPurchase,
	LedgerTxnPayout,
	LedgerTxnScan,
	LedgerTxnAdjustment,
}

// IsValid reports whether the value matches the canonical ledger transaction type enum.
func (v LedgerTransactionType) IsValid() bool {
	for _, candidate := range validLedgerTransactionTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseLedgerTransactionType converts raw input into LedgerTransactionType.
func ParseLedgerTransactionType(value string) (LedgerTransactionType, error) {
	for _, candidate := range validLedgerTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger transaction type %q", value)
}
