package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
)

// BookingBackend is the authoritative booking system. It owns capacity,
// registrations, wallet balances and voucher redemption. Every call acts on
// behalf of the member whose credential is attached to ctx.
type BookingBackend interface {
	// ListAvailableSessions fetches occurrences starting within [start, end]
	ListAvailableSessions(ctx context.Context, start, end time.Time) ([]domain.ClassSessionOccurrence, error)

	// GetWalletBalance reads the member's wallet balance
	GetWalletBalance(ctx context.Context) (decimal.Decimal, error)

	// ListActiveVouchers lists the member's redeemable vouchers
	ListActiveVouchers(ctx context.Context) ([]domain.Voucher, error)

	// RegisterSession registers for a single occurrence
	RegisterSession(ctx context.Context, req *SessionRegistrationRequest) (*domain.BookingResult, error)

	// RegisterSessions registers for every occurrence of a group atomically
	RegisterSessions(ctx context.Context, req *MultiSessionRegistrationRequest) (*domain.BookingResult, error)

	// CreateCourtBooking books court slots
	CreateCourtBooking(ctx context.Context, req *CourtBookingRequest) (*domain.BookingResult, error)

	// RegisterEvent registers for an event
	RegisterEvent(ctx context.Context, req *EventRegistrationRequest) (*domain.BookingResult, error)

	// PayReplacementSession pays for a replacement session
	PayReplacementSession(ctx context.Context, req *ReplacementPaymentRequest) (*domain.BookingResult, error)
}

// SessionRegistrationRequest is the body of POST /class-sessions/{id}/register
type SessionRegistrationRequest struct {
	SessionID           string `json:"-"`
	UseWallet           bool   `json:"useWallet"`
	UseVoucher          bool   `json:"useVoucher"`
	VoucherRedemptionID string `json:"voucherRedemptionId,omitempty"`
	NumPaddles          int    `json:"numPaddles"`
	BuyBallSet          bool   `json:"buyBallSet"`
}

// MultiSessionRegistrationRequest is the body of POST /class-sessions/register-multi
type MultiSessionRegistrationRequest struct {
	SessionIDs    []string `json:"sessionIds"`
	PaymentMethod string   `json:"paymentMethod"`
	NumPaddles    int      `json:"numPaddles"`
	BuyBallSet    bool     `json:"buyBallSet"`
}

// CourtBookingRequest is the body of POST /member/bookings
type CourtBookingRequest struct {
	SlotIDs             []string `json:"slotIds"`
	Purpose             string   `json:"purpose"`
	NumberOfPlayers     int      `json:"numberOfPlayers"`
	NumPaddles          int      `json:"numPaddles"`
	BuyBallSet          bool     `json:"buyBallSet"`
	DurationHours       int      `json:"durationHours"`
	UseWallet           bool     `json:"useWallet"`
	UseVoucher          bool     `json:"useVoucher"`
	VoucherRedemptionID string   `json:"voucherRedemptionId,omitempty"`
}

// EventRegistrationRequest is the body of POST /event-registration/register
type EventRegistrationRequest struct {
	EventID   string `json:"eventId"`
	UseWallet bool   `json:"useWallet"`
}

// ReplacementPaymentRequest is the body of POST /member/replacement-session-payment.
// Amount is sent as a plain JSON number in the backend's own precision.
type ReplacementPaymentRequest struct {
	SessionID           string      `json:"sessionId"`
	Amount              json.Number `json:"amount"`
	UseWallet           bool        `json:"useWallet"`
	UseVoucher          bool        `json:"useVoucher"`
	VoucherRedemptionID string      `json:"voucherRedemptionId,omitempty"`
}

// RequestFor maps an intent to the one backend request its shape allows.
// The returned value is one of the *Request types in this package.
func RequestFor(intent domain.BookingIntent) (interface{}, error) {
	useWallet := intent.Method() == domain.FundingWallet

	switch in := intent.(type) {
	case domain.CourtBookingIntent:
		return &CourtBookingRequest{
			SlotIDs:             in.SlotIDs,
			Purpose:             in.Purpose,
			NumberOfPlayers:     in.NumberOfPlayers,
			NumPaddles:          in.Equipment.NumPaddles,
			BuyBallSet:          in.Equipment.BuyBallSet,
			DurationHours:       in.DurationHours,
			UseWallet:           useWallet,
			UseVoucher:          in.UsesVoucher(),
			VoucherRedemptionID: in.VoucherRedemptionID,
		}, nil
	case domain.ClassSessionIntent:
		return &SessionRegistrationRequest{
			SessionID:  in.SessionID,
			UseWallet:  useWallet,
			NumPaddles: in.Equipment.NumPaddles,
			BuyBallSet: in.Equipment.BuyBallSet,
		}, nil
	case domain.GroupSessionIntent:
		return &MultiSessionRegistrationRequest{
			SessionIDs:    in.SessionIDs,
			PaymentMethod: string(in.Method()),
			NumPaddles:    in.Equipment.NumPaddles,
			BuyBallSet:    in.Equipment.BuyBallSet,
		}, nil
	case domain.EventRegistrationIntent:
		return &EventRegistrationRequest{EventID: in.EventID, UseWallet: useWallet}, nil
	case domain.ReplacementPaymentIntent:
		return &ReplacementPaymentRequest{
			SessionID: in.SessionID,
			Amount:    json.Number(in.Amount.String()),
			UseWallet: useWallet,
		}, nil
	default:
		return nil, domain.ErrInvalidTarget
	}
}

// Submit sends intent to exactly one backend endpoint
func Submit(ctx context.Context, backend BookingBackend, intent domain.BookingIntent) (*domain.BookingResult, error) {
	req, err := RequestFor(intent)
	if err != nil {
		return nil, err
	}
	switch r := req.(type) {
	case *CourtBookingRequest:
		return backend.CreateCourtBooking(ctx, r)
	case *SessionRegistrationRequest:
		return backend.RegisterSession(ctx, r)
	case *MultiSessionRegistrationRequest:
		return backend.RegisterSessions(ctx, r)
	case *EventRegistrationRequest:
		return backend.RegisterEvent(ctx, r)
	case *ReplacementPaymentRequest:
		return backend.PayReplacementSession(ctx, r)
	default:
		return nil, domain.ErrInvalidTarget
	}
}
