package domain

import "errors"

// Domain errors
var (
	// Checkout errors
	ErrCheckoutNotFound      = errors.New("checkout not found")
	ErrCheckoutExpired       = errors.New("checkout has expired")
	ErrCheckoutClosed        = errors.New("checkout is closed")
	ErrCheckoutNotEditable   = errors.New("checkout cannot be changed in its current state")
	ErrCheckoutOwnerMismatch = errors.New("checkout does not belong to this user")
	ErrInvalidTransition     = errors.New("invalid checkout state transition")
	ErrSubmissionInProgress  = errors.New("a submission for this checkout is already in progress")
	ErrAlreadySubmitted      = errors.New("checkout has already been paid")

	// Validation errors
	ErrInvalidUserID          = errors.New("invalid user id")
	ErrInvalidTarget          = errors.New("invalid booking target")
	ErrEmptySessionGroup      = errors.New("session group must contain at least one occurrence")
	ErrInvalidEquipment       = errors.New("number of paddles cannot be negative")
	ErrEquipmentNotApplicable = errors.New("equipment add-ons are not available for this booking type")
	ErrInvalidVoucher         = errors.New("invalid voucher")
	ErrFundingMethodRequired  = errors.New("a funding method must be selected")
	ErrInvalidFundingMethod   = errors.New("unknown funding method")
	ErrVoucherRequired        = errors.New("use voucher is checked but no voucher is selected")
	ErrWalletBalanceUnknown   = errors.New("wallet balance is unknown, refresh it or pay by card")
	ErrInvalidDateRange       = errors.New("invalid date range")

	// Voucher errors
	ErrVoucherNotApplicable = errors.New("vouchers can only be applied to court bookings")
	ErrVoucherNotFound      = errors.New("voucher not found among active vouchers")
	ErrVoucherExpired       = errors.New("voucher has expired")

	// Eligibility errors
	ErrSessionNotFound = errors.New("class session not found")
	ErrGroupNotFound   = errors.New("session group not found")
	ErrAlreadyBooked   = errors.New("you are already registered for this session")
	ErrGroupFull       = errors.New("every session in this group is full")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrCheckoutNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrVoucherNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidTarget) ||
		errors.Is(err, ErrEmptySessionGroup) ||
		errors.Is(err, ErrInvalidEquipment) ||
		errors.Is(err, ErrEquipmentNotApplicable) ||
		errors.Is(err, ErrInvalidVoucher) ||
		errors.Is(err, ErrFundingMethodRequired) ||
		errors.Is(err, ErrInvalidFundingMethod) ||
		errors.Is(err, ErrVoucherRequired) ||
		errors.Is(err, ErrWalletBalanceUnknown) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrVoucherNotApplicable) ||
		errors.Is(err, ErrVoucherExpired)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCheckoutNotEditable) ||
		errors.Is(err, ErrCheckoutClosed) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrSubmissionInProgress) ||
		errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrAlreadyBooked) ||
		errors.Is(err, ErrGroupFull)
}

// IsExpiredError checks if the error is an expiration error
func IsExpiredError(err error) bool {
	return errors.Is(err, ErrCheckoutExpired)
}
