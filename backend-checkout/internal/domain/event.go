package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutEventType is the type of a checkout outcome event
type CheckoutEventType string

const (
	CheckoutEventSucceeded          CheckoutEventType = "checkout.succeeded"
	CheckoutEventRecoverableFailure CheckoutEventType = "checkout.recoverable_failure"
	CheckoutEventFailed             CheckoutEventType = "checkout.failed"
)

// CheckoutEvent is published when an attempt reaches an outcome
type CheckoutEvent struct {
	EventID     string            `json:"event_id"`
	EventType   CheckoutEventType `json:"event_type"`
	CheckoutID  string            `json:"checkout_id"`
	IntentID    string            `json:"intent_id,omitempty"`
	UserID      UserID            `json:"user_id"`
	TargetKind  TargetKind        `json:"target_kind"`
	SessionIDs  []string          `json:"session_ids,omitempty"`
	Method      FundingMethod     `json:"method"`
	State       CheckoutState     `json:"state"`
	Reason      ReasonCode        `json:"reason,omitempty"`
	Message     string            `json:"message,omitempty"`
	QuotedTotal decimal.Decimal   `json:"quoted_total"`
	PaidTotal   *decimal.Decimal  `json:"paid_total,omitempty"`
	Attempt     int               `json:"attempt"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// EventTypeFor maps a checkout outcome state to its event type
func EventTypeFor(state CheckoutState) (CheckoutEventType, bool) {
	switch state {
	case CheckoutSucceeded:
		return CheckoutEventSucceeded, true
	case CheckoutFailedRecoverable:
		return CheckoutEventRecoverableFailure, true
	case CheckoutFailedFatal:
		return CheckoutEventFailed, true
	default:
		return "", false
	}
}

// NewCheckoutEvent snapshots a checkout outcome
func NewCheckoutEvent(c *Checkout, eventID string, now time.Time) (*CheckoutEvent, bool) {
	eventType, ok := EventTypeFor(c.State)
	if !ok {
		return nil, false
	}
	event := &CheckoutEvent{
		EventID:     eventID,
		EventType:   eventType,
		CheckoutID:  c.ID,
		IntentID:    c.IntentID,
		UserID:      c.UserID,
		TargetKind:  c.Target.Kind,
		SessionIDs:  c.Target.SessionIDs(),
		Method:      c.Method,
		State:       c.State,
		Reason:      c.Reason,
		Message:     c.Message,
		QuotedTotal: c.Quote.Total,
		Attempt:     c.Attempts,
		OccurredAt:  now,
	}
	if c.Result != nil {
		paid := c.Result.TotalAmount
		event.PaidTotal = &paid
	}
	return event, true
}
