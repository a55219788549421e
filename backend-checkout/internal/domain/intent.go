package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundingMethod is how the member pays
type FundingMethod string

const (
	FundingWallet FundingMethod = "wallet"
	FundingCard   FundingMethod = "card"
)

// Valid reports whether the method is known
func (m FundingMethod) Valid() bool {
	return m == FundingWallet || m == FundingCard
}

// ParseFundingMethod parses a client supplied method
func ParseFundingMethod(s string) (FundingMethod, error) {
	m := FundingMethod(s)
	if s == "" {
		return "", ErrFundingMethodRequired
	}
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFundingMethod, s)
	}
	return m, nil
}

// BookingIntent is the submission-ready request for one payment attempt.
// Each implementation maps to exactly one backend endpoint. Intents are
// built fresh per attempt and are never modified afterwards.
type BookingIntent interface {
	IntentID() string
	Kind() TargetKind
	Method() FundingMethod
	bookingIntent()
}

type intentBase struct {
	id     string
	method FundingMethod
}

func (b intentBase) IntentID() string      { return b.id }
func (b intentBase) Method() FundingMethod { return b.method }
func (intentBase) bookingIntent()          {}

// UsesWallet reports whether the wallet is debited
func (b intentBase) UsesWallet() bool { return b.method == FundingWallet }

// CourtBookingIntent books court slots, optionally with a voucher
type CourtBookingIntent struct {
	intentBase
	SlotIDs             []string
	Purpose             string
	NumberOfPlayers     int
	DurationHours       int
	Equipment           EquipmentSelection
	VoucherRedemptionID string
}

func (CourtBookingIntent) Kind() TargetKind { return TargetCourt }

// UsesVoucher reports whether a voucher is redeemed
func (i CourtBookingIntent) UsesVoucher() bool { return i.VoucherRedemptionID != "" }

// ClassSessionIntent registers for one occurrence
type ClassSessionIntent struct {
	intentBase
	SessionID string
	Equipment EquipmentSelection
}

func (ClassSessionIntent) Kind() TargetKind { return TargetClassSession }

// GroupSessionIntent registers for every occurrence of a group in one request
type GroupSessionIntent struct {
	intentBase
	SessionIDs []string
	Equipment  EquipmentSelection
}

func (GroupSessionIntent) Kind() TargetKind { return TargetSessionGroup }

// EventRegistrationIntent registers for an event
type EventRegistrationIntent struct {
	intentBase
	EventID string
}

func (EventRegistrationIntent) Kind() TargetKind { return TargetEvent }

// ReplacementPaymentIntent pays for a replacement session
type ReplacementPaymentIntent struct {
	intentBase
	SessionID string
	Amount    decimal.Decimal
}

func (ReplacementPaymentIntent) Kind() TargetKind { return TargetReplacement }

func newBase(method FundingMethod) (intentBase, error) {
	if !method.Valid() {
		return intentBase{}, ErrFundingMethodRequired
	}
	return intentBase{id: uuid.NewString(), method: method}, nil
}

// NewCourtBookingIntent builds the court booking shape
func NewCourtBookingIntent(sel CourtSelection, eq EquipmentSelection, method FundingMethod, voucher *Voucher) (CourtBookingIntent, error) {
	base, err := newBase(method)
	if err != nil {
		return CourtBookingIntent{}, err
	}
	intent := CourtBookingIntent{
		intentBase:      base,
		SlotIDs:         append([]string(nil), sel.SlotIDs...),
		Purpose:         sel.Purpose,
		NumberOfPlayers: sel.NumberOfPlayers,
		DurationHours:   sel.DurationHours,
		Equipment:       eq,
	}
	if voucher != nil {
		intent.VoucherRedemptionID = voucher.ID
	}
	return intent, nil
}

// NewClassSessionIntent builds the single-session registration shape
func NewClassSessionIntent(sessionID string, eq EquipmentSelection, method FundingMethod) (ClassSessionIntent, error) {
	base, err := newBase(method)
	if err != nil {
		return ClassSessionIntent{}, err
	}
	return ClassSessionIntent{intentBase: base, SessionID: sessionID, Equipment: eq}, nil
}

// NewGroupSessionIntent builds the multi-session registration shape
func NewGroupSessionIntent(sessionIDs []string, eq EquipmentSelection, method FundingMethod) (GroupSessionIntent, error) {
	base, err := newBase(method)
	if err != nil {
		return GroupSessionIntent{}, err
	}
	if len(sessionIDs) == 0 {
		return GroupSessionIntent{}, ErrEmptySessionGroup
	}
	return GroupSessionIntent{
		intentBase: base,
		SessionIDs: append([]string(nil), sessionIDs...),
		Equipment:  eq,
	}, nil
}

// NewEventRegistrationIntent builds the event registration shape
func NewEventRegistrationIntent(eventID string, method FundingMethod) (EventRegistrationIntent, error) {
	base, err := newBase(method)
	if err != nil {
		return EventRegistrationIntent{}, err
	}
	return EventRegistrationIntent{intentBase: base, EventID: eventID}, nil
}

// NewReplacementPaymentIntent builds the replacement-session payment shape
func NewReplacementPaymentIntent(r ReplacementSession, method FundingMethod) (ReplacementPaymentIntent, error) {
	base, err := newBase(method)
	if err != nil {
		return ReplacementPaymentIntent{}, err
	}
	return ReplacementPaymentIntent{intentBase: base, SessionID: r.SessionID, Amount: r.Amount}, nil
}

// BuildIntent selects the one intent shape matching the target. Vouchers and
// equipment must already have been validated against the target.
func BuildIntent(target BookingTarget, eq EquipmentSelection, method FundingMethod, voucher *Voucher) (BookingIntent, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if voucher != nil && !target.AcceptsVoucher() {
		return nil, ErrVoucherNotApplicable
	}
	if !eq.IsEmpty() && !target.AcceptsEquipment() {
		return nil, ErrEquipmentNotApplicable
	}

	var (
		intent BookingIntent
		err    error
	)
	switch target.Kind {
	case TargetCourt:
		intent, err = NewCourtBookingIntent(*target.Court, eq, method, voucher)
	case TargetClassSession:
		intent, err = NewClassSessionIntent(target.Occurrences[0].ID, eq, method)
	case TargetSessionGroup:
		intent, err = NewGroupSessionIntent(target.SessionIDs(), eq, method)
	case TargetEvent:
		intent, err = NewEventRegistrationIntent(target.Event.EventID, method)
	case TargetReplacement:
		intent, err = NewReplacementPaymentIntent(*target.Replacement, method)
	default:
		err = fmt.Errorf("%w: kind %q", ErrInvalidTarget, target.Kind)
	}
	if err != nil {
		return nil, err
	}
	return intent, nil
}
