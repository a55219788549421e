package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TargetKind identifies what is being paid for
type TargetKind string

const (
	TargetCourt        TargetKind = "court"
	TargetClassSession TargetKind = "class_session"
	TargetSessionGroup TargetKind = "session_group"
	TargetEvent        TargetKind = "event"
	TargetReplacement  TargetKind = "replacement"
)

// CourtSelection is a court booking priced by the caller's slot selection
type CourtSelection struct {
	SlotIDs         []string        `json:"slotIds"`
	Purpose         string          `json:"purpose"`
	NumberOfPlayers int             `json:"numberOfPlayers"`
	DurationHours   int             `json:"durationHours"`
	Price           decimal.Decimal `json:"price"`
}

// EventSelection is an event registration with its fee
type EventSelection struct {
	EventID string          `json:"eventId"`
	Name    string          `json:"name,omitempty"`
	Fee     decimal.Decimal `json:"fee"`
}

// ReplacementSession is a make-up session the member pays for. It is passed
// in explicitly by the caller that created the replacement.
type ReplacementSession struct {
	SessionID string          `json:"sessionId"`
	Amount    decimal.Decimal `json:"amount"`
}

// BookingTarget is a tagged union: exactly the field matching Kind is set.
// Occurrences holds the single occurrence for TargetClassSession and every
// member, date-ascending, for TargetSessionGroup.
type BookingTarget struct {
	Kind        TargetKind               `json:"kind"`
	GroupKey    string                   `json:"groupKey,omitempty"`
	Occurrences []ClassSessionOccurrence `json:"occurrences,omitempty"`
	Court       *CourtSelection          `json:"court,omitempty"`
	Event       *EventSelection          `json:"event,omitempty"`
	Replacement *ReplacementSession      `json:"replacement,omitempty"`
}

// NewCourtTarget builds a court booking target
func NewCourtTarget(sel CourtSelection) (BookingTarget, error) {
	if len(sel.SlotIDs) == 0 {
		return BookingTarget{}, fmt.Errorf("%w: court booking needs at least one slot", ErrInvalidTarget)
	}
	if sel.Price.IsNegative() {
		return BookingTarget{}, fmt.Errorf("%w: negative court price", ErrInvalidTarget)
	}
	sel.SlotIDs = append([]string(nil), sel.SlotIDs...)
	return BookingTarget{Kind: TargetCourt, Court: &sel}, nil
}

// NewClassSessionTarget builds a single-occurrence registration target
func NewClassSessionTarget(o ClassSessionOccurrence) (BookingTarget, error) {
	if strings.TrimSpace(o.ID) == "" {
		return BookingTarget{}, fmt.Errorf("%w: class session id is required", ErrInvalidTarget)
	}
	return BookingTarget{
		Kind:        TargetClassSession,
		GroupKey:    o.RecurringGroupID,
		Occurrences: []ClassSessionOccurrence{o},
	}, nil
}

// NewGroupTarget builds a multi-session registration target for a whole group
func NewGroupTarget(g SessionGroup) (BookingTarget, error) {
	if g.Len() == 0 {
		return BookingTarget{}, ErrEmptySessionGroup
	}
	return BookingTarget{
		Kind:        TargetSessionGroup,
		GroupKey:    g.Key(),
		Occurrences: g.Occurrences(),
	}, nil
}

// NewEventTarget builds an event registration target
func NewEventTarget(sel EventSelection) (BookingTarget, error) {
	if strings.TrimSpace(sel.EventID) == "" {
		return BookingTarget{}, fmt.Errorf("%w: event id is required", ErrInvalidTarget)
	}
	if sel.Fee.IsNegative() {
		return BookingTarget{}, fmt.Errorf("%w: negative event fee", ErrInvalidTarget)
	}
	return BookingTarget{Kind: TargetEvent, Event: &sel}, nil
}

// NewReplacementTarget builds a replacement-session payment target
func NewReplacementTarget(r ReplacementSession) (BookingTarget, error) {
	if strings.TrimSpace(r.SessionID) == "" {
		return BookingTarget{}, fmt.Errorf("%w: replacement session id is required", ErrInvalidTarget)
	}
	if r.Amount.IsNegative() {
		return BookingTarget{}, fmt.Errorf("%w: negative replacement amount", ErrInvalidTarget)
	}
	return BookingTarget{Kind: TargetReplacement, Replacement: &r}, nil
}

// Validate checks that exactly the variant named by Kind is populated
func (t BookingTarget) Validate() error {
	hasOcc, hasCourt, hasEvent, hasRepl := len(t.Occurrences) > 0, t.Court != nil, t.Event != nil, t.Replacement != nil
	ok := false
	switch t.Kind {
	case TargetCourt:
		ok = hasCourt && !hasOcc && !hasEvent && !hasRepl
	case TargetClassSession:
		ok = len(t.Occurrences) == 1 && !hasCourt && !hasEvent && !hasRepl
	case TargetSessionGroup:
		ok = hasOcc && !hasCourt && !hasEvent && !hasRepl
	case TargetEvent:
		ok = hasEvent && !hasOcc && !hasCourt && !hasRepl
	case TargetReplacement:
		ok = hasRepl && !hasOcc && !hasCourt && !hasEvent
	}
	if !ok {
		return fmt.Errorf("%w: kind %q", ErrInvalidTarget, t.Kind)
	}
	return nil
}

// Group rebuilds the session group of a class-session or group target
func (t BookingTarget) Group() (SessionGroup, error) {
	switch t.Kind {
	case TargetSessionGroup:
		return NewSessionGroup(t.GroupKey, t.Occurrences)
	case TargetClassSession:
		return NewSessionGroup(SingletonKey(t.Occurrences[0].ID), t.Occurrences)
	default:
		return SessionGroup{}, fmt.Errorf("%w: %s target has no sessions", ErrInvalidTarget, t.Kind)
	}
}

// BaseAmount is the exact sum of prices before add-ons and discounts
func (t BookingTarget) BaseAmount() decimal.Decimal {
	switch t.Kind {
	case TargetCourt:
		return t.Court.Price
	case TargetEvent:
		return t.Event.Fee
	case TargetReplacement:
		return t.Replacement.Amount
	default:
		total := decimal.Zero
		for _, o := range t.Occurrences {
			total = total.Add(o.Price)
		}
		return total
	}
}

// AcceptsVoucher reports whether a voucher may be applied; only court bookings take one.
func (t BookingTarget) AcceptsVoucher() bool {
	return t.Kind == TargetCourt
}

// AcceptsEquipment reports whether paddles and ball sets can be added
func (t BookingTarget) AcceptsEquipment() bool {
	switch t.Kind {
	case TargetCourt, TargetClassSession, TargetSessionGroup:
		return true
	default:
		return false
	}
}

// SessionIDs returns the occurrence ids of a class-session or group target
func (t BookingTarget) SessionIDs() []string {
	ids := make([]string, len(t.Occurrences))
	for i, o := range t.Occurrences {
		ids[i] = o.ID
	}
	return ids
}

// Description is a short human label for logs and events
func (t BookingTarget) Description() string {
	switch t.Kind {
	case TargetCourt:
		return fmt.Sprintf("court booking (%d slots)", len(t.Court.SlotIDs))
	case TargetEvent:
		return "event " + t.Event.EventID
	case TargetReplacement:
		return "replacement session " + t.Replacement.SessionID
	case TargetSessionGroup:
		return fmt.Sprintf("%s (%d sessions)", t.Occurrences[0].DisplayTitle(), len(t.Occurrences))
	case TargetClassSession:
		return t.Occurrences[0].DisplayTitle()
	default:
		return string(t.Kind)
	}
}
