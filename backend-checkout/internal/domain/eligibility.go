package domain

// EligibilityState is the derived booking permission of a user for a group
type EligibilityState string

const (
	EligibilityBookable      EligibilityState = "BOOKABLE"
	EligibilityAlreadyBooked EligibilityState = "ALREADY_BOOKED"
	EligibilityFull          EligibilityState = "FULL"
)

// CanBook reports whether the state allows starting a checkout
func (s EligibilityState) CanBook() bool {
	return s == EligibilityBookable
}

// Err maps a blocking state to its domain error
func (s EligibilityState) Err() error {
	switch s {
	case EligibilityAlreadyBooked:
		return ErrAlreadyBooked
	case EligibilityFull:
		return ErrGroupFull
	default:
		return nil
	}
}
