package service

import (
	"github.com/shopspring/decimal"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
)

// PriceList holds the configurable add-on unit prices
type PriceList struct {
	PaddleUnitPrice decimal.Decimal
	BallSetPrice    decimal.Decimal
}

// DefaultPriceList returns the reference add-on prices
func DefaultPriceList() PriceList {
	return PriceList{
		PaddleUnitPrice: decimal.NewFromInt(5),
		BallSetPrice:    decimal.NewFromInt(12),
	}
}

// PriceCalculator computes payable totals. It holds no mutable state.
type PriceCalculator struct {
	prices PriceList
}

// NewPriceCalculator creates a calculator for the given add-on prices
func NewPriceCalculator(prices PriceList) *PriceCalculator {
	return &PriceCalculator{prices: prices}
}

// Prices returns the add-on price list
func (p *PriceCalculator) Prices() PriceList {
	return p.prices
}

// EquipmentSurcharge prices paddles and the ball set
func (p *PriceCalculator) EquipmentSurcharge(eq domain.EquipmentSelection) decimal.Decimal {
	total := p.prices.PaddleUnitPrice.Mul(decimal.NewFromInt(int64(eq.NumPaddles)))
	if eq.BuyBallSet {
		total = total.Add(p.prices.BallSetPrice)
	}
	return total
}

// ComputeTotal prices a booking target with add-ons and an optional voucher.
// Vouchers are rejected for every target except court bookings, and add-ons
// for targets that do not take equipment.
func (p *PriceCalculator) ComputeTotal(target domain.BookingTarget, eq domain.EquipmentSelection, voucher *domain.Voucher) (domain.Quote, error) {
	if err := target.Validate(); err != nil {
		return domain.Quote{}, err
	}
	if err := eq.Validate(); err != nil {
		return domain.Quote{}, err
	}
	if !eq.IsEmpty() && !target.AcceptsEquipment() {
		return domain.Quote{}, domain.ErrEquipmentNotApplicable
	}
	if voucher != nil {
		if !target.AcceptsVoucher() {
			return domain.Quote{}, domain.ErrVoucherNotApplicable
		}
		if err := voucher.Validate(); err != nil {
			return domain.Quote{}, err
		}
	}

	base := target.BaseAmount()
	equipment := p.EquipmentSurcharge(eq)
	subtotal := base.Add(equipment)

	total := subtotal
	voucherID := ""
	if voucher != nil {
		total = voucher.Apply(subtotal)
		voucherID = voucher.ID
	}
	if total.IsNegative() {
		total = decimal.Zero
	}

	return domain.Quote{
		Base:      base,
		Equipment: equipment,
		Subtotal:  subtotal,
		Discount:  subtotal.Sub(total),
		Total:     total,
		VoucherID: voucherID,
	}, nil
}
