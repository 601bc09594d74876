package enums

import "strings"

// Currency names a wallet balance. CurrencyXP is the primary platform currency;
// anything else is a secondary balance (event tokens, scan rewards).
type Currency string

const CurrencyXP Currency = "xp"

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsPrimary reports whether the currency is the platform XP balance.
func (c Currency) IsPrimary() bool {
	return c == CurrencyXP
}

// NormalizeCurrency lowercases and trims a currency code. Empty input yields "".
func NormalizeCurrency(value string) Currency {
	return Currency(strings.ToLower(strings.TrimSpace(value)))
}
