package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutState is the payment orchestration state of a checkout
type CheckoutState string

const (
	CheckoutIdle              CheckoutState = "IDLE"
	CheckoutValidating        CheckoutState = "VALIDATING"
	CheckoutSubmitting        CheckoutState = "SUBMITTING"
	CheckoutSucceeded         CheckoutState = "SUCCEEDED"
	CheckoutFailedRecoverable CheckoutState = "FAILED_RECOVERABLE"
	CheckoutFailedFatal       CheckoutState = "FAILED_FATAL"
)

// ReasonCode is the machine-checkable cause of a failed attempt
type ReasonCode string

const (
	ReasonWalletEmpty        ReasonCode = "WALLET_EMPTY"
	ReasonWalletInsufficient ReasonCode = "WALLET_INSUFFICIENT"
	ReasonSessionUnavailable ReasonCode = "SESSION_UNAVAILABLE"
	ReasonAlreadyRegistered  ReasonCode = "ALREADY_REGISTERED"
	ReasonUnauthorized       ReasonCode = "UNAUTHORIZED"
	ReasonBackendError       ReasonCode = "BACKEND_ERROR"
)

// Checkout is one member's booking attempt for one target. Wallet balance
// and vouchers are snapshots from the backend and are only ever replaced by
// a fresh backend read.
type Checkout struct {
	ID            string             `json:"id"`
	UserID        UserID             `json:"userId"`
	Target        BookingTarget      `json:"target"`
	Equipment     EquipmentSelection `json:"equipment"`
	UseVoucher    bool               `json:"useVoucher"`
	Voucher       *Voucher           `json:"voucher,omitempty"`
	Method        FundingMethod      `json:"method,omitempty"`
	WalletBalance *decimal.Decimal   `json:"walletBalance,omitempty"`
	Vouchers      []Voucher          `json:"vouchers,omitempty"`
	Quote         Quote              `json:"quote"`
	Currency      string             `json:"currency"`

	State    CheckoutState  `json:"state"`
	Reason   ReasonCode     `json:"reason,omitempty"`
	Message  string         `json:"message,omitempty"`
	Result   *BookingResult `json:"result,omitempty"`
	IntentID string         `json:"intentId,omitempty"`
	Attempts int            `json:"attempts"`

	// resumeState is where a cancelled or rejected attempt returns to
	ResumeState CheckoutState `json:"resumeState,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewCheckout creates an IDLE checkout. The funding method defaults to the
// wallet when a balance is known and to card otherwise.
func NewCheckout(userID UserID, target BookingTarget, eq EquipmentSelection, wallet *decimal.Decimal, vouchers []Voucher, currency string, now time.Time, ttl time.Duration) (*Checkout, error) {
	if userID.IsZero() {
		return nil, ErrInvalidUserID
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if err := eq.Validate(); err != nil {
		return nil, err
	}

	method := FundingCard
	if wallet != nil {
		method = FundingWallet
	}

	return &Checkout{
		ID:            uuid.NewString(),
		UserID:        userID,
		Target:        target,
		Equipment:     eq,
		Method:        method,
		WalletBalance: wallet,
		Vouchers:      append([]Voucher(nil), vouchers...),
		Currency:      currency,
		State:         CheckoutIdle,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}, nil
}

// IsTerminal reports whether no further attempt is possible
func (c *Checkout) IsTerminal() bool {
	return c.State == CheckoutSucceeded || c.State == CheckoutFailedFatal
}

// IsEditable reports whether inputs may still change
func (c *Checkout) IsEditable() bool {
	return c.State == CheckoutIdle || c.State == CheckoutFailedRecoverable
}

// IsExpired reports whether the checkout outlived its TTL without finishing
func (c *Checkout) IsExpired(now time.Time) bool {
	return !c.IsTerminal() && c.State != CheckoutSubmitting && now.After(c.ExpiresAt)
}

// BelongsTo reports whether userID owns the checkout
func (c *Checkout) BelongsTo(userID UserID) bool {
	return c.UserID == userID
}

// HasWalletBalance reports whether a balance snapshot is known
func (c *Checkout) HasWalletBalance() bool {
	return c.WalletBalance != nil
}

// ApplyWalletBalance replaces the balance snapshot with a fresh backend read;
// nil marks the balance as unknown.
func (c *Checkout) ApplyWalletBalance(balance *decimal.Decimal, now time.Time) {
	c.WalletBalance = balance
	c.UpdatedAt = now
}

// BeginValidation starts an attempt from IDLE or FAILED_RECOVERABLE
func (c *Checkout) BeginValidation(now time.Time) error {
	switch c.State {
	case CheckoutIdle, CheckoutFailedRecoverable:
	case CheckoutSubmitting, CheckoutValidating:
		return ErrSubmissionInProgress
	case CheckoutSucceeded:
		return ErrAlreadySubmitted
	default:
		return fmt.Errorf("%w: %s -> %s", ErrCheckoutClosed, c.State, CheckoutValidating)
	}
	c.ResumeState = c.State
	c.State = CheckoutValidating
	c.UpdatedAt = now
	return nil
}

// AbortValidation returns to the state the attempt started from. Used when
// local input validation blocks submission.
func (c *Checkout) AbortValidation(now time.Time) error {
	if c.State != CheckoutValidating {
		return fmt.Errorf("%w: abort from %s", ErrInvalidTransition, c.State)
	}
	c.State = c.resume()
	c.UpdatedAt = now
	return nil
}

// BeginSubmission records the intent about to be sent
func (c *Checkout) BeginSubmission(intentID string, now time.Time) error {
	if c.State != CheckoutValidating {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, CheckoutSubmitting)
	}
	c.State = CheckoutSubmitting
	c.IntentID = intentID
	c.Attempts++
	c.UpdatedAt = now
	return nil
}

// CancelSubmission discards a pending attempt without any local booking
// change; the checkout resumes where the attempt started.
func (c *Checkout) CancelSubmission(now time.Time) error {
	if c.State != CheckoutSubmitting {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, c.State)
	}
	c.State = c.resume()
	c.IntentID = ""
	c.UpdatedAt = now
	return nil
}

// Succeed records the backend's confirmation
func (c *Checkout) Succeed(result BookingResult, now time.Time) error {
	if c.State != CheckoutSubmitting {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, CheckoutSucceeded)
	}
	c.State = CheckoutSucceeded
	c.Reason = ""
	c.Message = result.Message
	c.Result = &result
	c.ResumeState = ""
	c.UpdatedAt = now
	c.CompletedAt = &now
	return nil
}

// FailRecoverable records a failure the member can fix and resubmit
func (c *Checkout) FailRecoverable(reason ReasonCode, message string, now time.Time) error {
	if c.State != CheckoutValidating && c.State != CheckoutSubmitting {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, CheckoutFailedRecoverable)
	}
	c.State = CheckoutFailedRecoverable
	c.Reason = reason
	c.Message = message
	c.ResumeState = ""
	c.UpdatedAt = now
	return nil
}

// FailFatal records a failure that ends the checkout
func (c *Checkout) FailFatal(reason ReasonCode, message string, now time.Time) error {
	if c.State != CheckoutValidating && c.State != CheckoutSubmitting {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.State, CheckoutFailedFatal)
	}
	c.State = CheckoutFailedFatal
	c.Reason = reason
	c.Message = message
	c.ResumeState = ""
	c.UpdatedAt = now
	c.CompletedAt = &now
	return nil
}

// ForceMethod switches the funding method during failure handling
func (c *Checkout) ForceMethod(m FundingMethod) {
	c.Method = m
}

func (c *Checkout) resume() CheckoutState {
	if c.ResumeState == CheckoutFailedRecoverable {
		return CheckoutFailedRecoverable
	}
	return CheckoutIdle
}
