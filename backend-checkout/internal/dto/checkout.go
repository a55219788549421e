package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
)

// TargetRequest names what is being paid for. Class-session and group
// targets are resolved against the backend; the other kinds carry their own
// price.
type TargetRequest struct {
	Kind        string              `json:"kind" binding:"required,oneof=court class_session session_group event replacement"`
	SessionID   string              `json:"session_id,omitempty"`
	GroupKey    string              `json:"group_key,omitempty"`
	From        *time.Time          `json:"from,omitempty"`
	To          *time.Time          `json:"to,omitempty"`
	Court       *CourtRequest       `json:"court,omitempty"`
	Event       *EventRequest       `json:"event,omitempty"`
	Replacement *ReplacementRequest `json:"replacement,omitempty"`
}

// CourtRequest describes a court booking
type CourtRequest struct {
	SlotIDs         []string        `json:"slot_ids" binding:"required,min=1"`
	Purpose         string          `json:"purpose"`
	NumberOfPlayers int             `json:"number_of_players" binding:"min=0"`
	DurationHours   int             `json:"duration_hours" binding:"min=0"`
	Price           decimal.Decimal `json:"price"`
}

// EventRequest describes an event registration
type EventRequest struct {
	EventID string          `json:"event_id" binding:"required"`
	Name    string          `json:"name,omitempty"`
	Fee     decimal.Decimal `json:"fee"`
}

// ReplacementRequest describes a replacement-session payment
type ReplacementRequest struct {
	SessionID string          `json:"session_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// EquipmentRequest selects add-ons
type EquipmentRequest struct {
	NumPaddles int  `json:"num_paddles" binding:"min=0"`
	BuyBallSet bool `json:"buy_ball_set"`
}

// ToDomain converts the request to a selection
func (r EquipmentRequest) ToDomain() domain.EquipmentSelection {
	return domain.EquipmentSelection{NumPaddles: r.NumPaddles, BuyBallSet: r.BuyBallSet}
}

// StartCheckoutRequest opens a checkout
type StartCheckoutRequest struct {
	Target    TargetRequest    `json:"target" binding:"required"`
	Equipment EquipmentRequest `json:"equipment"`
}

// QuoteRequest previews a price without opening a checkout
type QuoteRequest struct {
	Target    TargetRequest    `json:"target" binding:"required"`
	Equipment EquipmentRequest `json:"equipment"`
	VoucherID string           `json:"voucher_id,omitempty"`
}

// SelectVoucherRequest applies one of the checkout's vouchers
type SelectVoucherRequest struct {
	VoucherID string `json:"voucher_id" binding:"required"`
}

// SelectFundingMethodRequest chooses how to pay
type SelectFundingMethodRequest struct {
	Method string `json:"method" binding:"required,oneof=wallet card"`
}

// QuoteResponse is a price breakdown
type QuoteResponse struct {
	Base      string `json:"base"`
	Equipment string `json:"equipment"`
	Subtotal  string `json:"subtotal"`
	Discount  string `json:"discount"`
	Total     string `json:"total"`
	Currency  string `json:"currency"`
	VoucherID string `json:"voucher_id,omitempty"`
}

// NewQuoteResponse converts a quote
func NewQuoteResponse(q domain.Quote, currency string) QuoteResponse {
	return QuoteResponse{
		Base:      q.Base.StringFixed(2),
		Equipment: q.Equipment.StringFixed(2),
		Subtotal:  q.Subtotal.StringFixed(2),
		Discount:  q.Discount.StringFixed(2),
		Total:     q.Total.StringFixed(2),
		Currency:  currency,
		VoucherID: q.VoucherID,
	}
}

// VoucherResponse is a voucher in API responses
type VoucherResponse struct {
	ID            string     `json:"id"`
	Code          string     `json:"code,omitempty"`
	Name          string     `json:"name,omitempty"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue string     `json:"discount_value"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
}

func newVoucherResponse(v domain.Voucher) VoucherResponse {
	return VoucherResponse{
		ID:            v.ID,
		Code:          v.Code,
		Name:          v.Name,
		DiscountType:  string(v.DiscountType),
		DiscountValue: v.DiscountValue.String(),
		ExpiryDate:    v.ExpiryDate,
	}
}

// TargetResponse summarizes the booking target
type TargetResponse struct {
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	GroupKey    string   `json:"group_key,omitempty"`
	SessionIDs  []string `json:"session_ids,omitempty"`
	DateRange   string   `json:"date_range,omitempty"`
}

// ResultResponse is the backend's confirmation
type ResultResponse struct {
	BookingID                 string   `json:"booking_id,omitempty"`
	RegistrationIDs           []string `json:"registration_ids,omitempty"`
	TotalAmount               string   `json:"total_amount"`
	PointsEarned              int64    `json:"points_earned"`
	CurrentTierPointBalance   int64    `json:"current_tier_point_balance"`
	CurrentRewardPointBalance int64    `json:"current_reward_point_balance"`
}

// CheckoutResponse is a checkout in API responses
type CheckoutResponse struct {
	ID            string            `json:"id"`
	State         string            `json:"state"`
	Reason        string            `json:"reason,omitempty"`
	Message       string            `json:"message,omitempty"`
	Target        TargetResponse    `json:"target"`
	Equipment     EquipmentRequest  `json:"equipment"`
	UseVoucher    bool              `json:"use_voucher"`
	VoucherID     string            `json:"voucher_id,omitempty"`
	Vouchers      []VoucherResponse `json:"vouchers"`
	Method        string            `json:"method"`
	WalletBalance *string           `json:"wallet_balance"`
	Quote         QuoteResponse     `json:"quote"`
	Result        *ResultResponse   `json:"result,omitempty"`
	Attempts      int               `json:"attempts"`
	Editable      bool              `json:"editable"`
	ExpiresAt     time.Time         `json:"expires_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewCheckoutResponse converts a checkout. A nil wallet balance means the
// balance is unknown.
func NewCheckoutResponse(c *domain.Checkout) *CheckoutResponse {
	resp := &CheckoutResponse{
		ID:      c.ID,
		State:   string(c.State),
		Reason:  string(c.Reason),
		Message: c.Message,
		Target: TargetResponse{
			Kind:        string(c.Target.Kind),
			Description: c.Target.Description(),
			GroupKey:    c.Target.GroupKey,
		},
		Equipment:  EquipmentRequest{NumPaddles: c.Equipment.NumPaddles, BuyBallSet: c.Equipment.BuyBallSet},
		UseVoucher: c.UseVoucher,
		Vouchers:   make([]VoucherResponse, 0, len(c.Vouchers)),
		Method:     string(c.Method),
		Quote:      NewQuoteResponse(c.Quote, c.Currency),
		Attempts:   c.Attempts,
		Editable:   c.IsEditable(),
		ExpiresAt:  c.ExpiresAt,
		UpdatedAt:  c.UpdatedAt,
	}

	if g, err := c.Target.Group(); err == nil {
		resp.Target.SessionIDs = g.IDs()
		resp.Target.DateRange = g.DateRange().String()
	}
	if c.Voucher != nil {
		resp.VoucherID = c.Voucher.ID
	}
	for _, v := range c.Vouchers {
		resp.Vouchers = append(resp.Vouchers, newVoucherResponse(v))
	}
	if c.WalletBalance != nil {
		balance := c.WalletBalance.StringFixed(2)
		resp.WalletBalance = &balance
	}
	if c.Result != nil {
		resp.Result = &ResultResponse{
			BookingID:                 c.Result.BookingID,
			RegistrationIDs:           c.Result.RegistrationIDs,
			TotalAmount:               c.Result.TotalAmount.String(),
			PointsEarned:              c.Result.PointsEarned,
			CurrentTierPointBalance:   c.Result.CurrentTierPointBalance,
			CurrentRewardPointBalance: c.Result.CurrentRewardPointBalance,
		}
	}
	return resp
}
