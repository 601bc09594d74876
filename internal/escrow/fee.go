package escrow

import "github.com/shopspring/decimal"

// Split is the division of an order's XP between platform and seller.
type Split struct {
	PlatformFee  int64
	SellerAmount int64
}

// SplitTotal rounds total×rate half-up to whole XP for the platform and gives
// the remainder to the seller, so the two parts always sum to total.
func SplitTotal(total int64, rate decimal.Decimal) Split {
	if total <= 0 {
		return Split{}
	}
	fee := decimal.NewFromInt(total).Mul(rate).Round(0).IntPart()
	if fee < 0 {
		fee = 0
	}
	if fee > total {
		fee = total
	}
	return Split{PlatformFee: fee, SellerAmount: total - fee}
}
