package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType is how a voucher discount is applied
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// Voucher is a discount credential issued by the booking backend. ID is the
// redemption id sent back when the voucher is used.
type Voucher struct {
	ID            string          `json:"id"`
	Code          string          `json:"code,omitempty"`
	Name          string          `json:"name,omitempty"`
	DiscountType  DiscountType    `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	ExpiryDate    *time.Time      `json:"expiryDate,omitempty"`
}

// Validate checks the voucher shape
func (v Voucher) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidVoucher)
	}
	switch v.DiscountType {
	case DiscountPercentage, DiscountFixed:
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidVoucher, v.DiscountType)
	}
	if v.DiscountValue.IsNegative() {
		return fmt.Errorf("%w: negative discount", ErrInvalidVoucher)
	}
	return nil
}

// IsExpired reports whether the voucher expired before now. A voucher
// without an expiry date never expires.
func (v Voucher) IsExpired(now time.Time) bool {
	return v.ExpiryDate != nil && now.After(*v.ExpiryDate)
}

// Apply discounts subtotal. Percentage discounts round to cents, fixed
// discounts never go below zero.
func (v Voucher) Apply(subtotal decimal.Decimal) decimal.Decimal {
	var total decimal.Decimal
	switch v.DiscountType {
	case DiscountPercentage:
		factor := decimal.NewFromInt(1).Sub(v.DiscountValue.Div(decimal.NewFromInt(100)))
		total = subtotal.Mul(factor).Round(2)
	case DiscountFixed:
		total = subtotal.Sub(v.DiscountValue)
	default:
		total = subtotal
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// FindVoucher returns the voucher with the given id from a snapshot
func FindVoucher(vouchers []Voucher, id string) (Voucher, bool) {
	for _, v := range vouchers {
		if v.ID == id {
			return v, true
		}
	}
	return Voucher{}, false
}
