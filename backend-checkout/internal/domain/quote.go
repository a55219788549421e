package domain

import "github.com/shopspring/decimal"

// Quote is the price breakdown of a booking attempt
type Quote struct {
	Base      decimal.Decimal `json:"base"`
	Equipment decimal.Decimal `json:"equipment"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	VoucherID string          `json:"voucherId,omitempty"`
}

// BookingResult is what the backend reports for a successful submission.
// Amounts and loyalty balances are authoritative and kept verbatim.
type BookingResult struct {
	BookingID                 string          `json:"bookingId,omitempty"`
	RegistrationIDs           []string        `json:"registrationIds,omitempty"`
	TotalAmount               decimal.Decimal `json:"totalAmount"`
	PointsEarned              int64           `json:"pointsEarned"`
	CurrentTierPointBalance   int64           `json:"currentTierPointBalance"`
	CurrentRewardPointBalance int64           `json:"currentRewardPointBalance"`
	Message                   string          `json:"message,omitempty"`
}
