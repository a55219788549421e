package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus is the server-computed status of an occurrence
type SessionStatus string

const (
	SessionStatusAvailable SessionStatus = "AVAILABLE"
	SessionStatusFull      SessionStatus = "FULL"
	SessionStatusConfirmed SessionStatus = "CONFIRMED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// Registration is one user's enrollment in one occurrence
type Registration struct {
	RegistrationID string `json:"registrationId"`
	UserID         UserID `json:"userId"`
	MemberName     string `json:"memberName"`
}

// ClassSessionOccurrence is one concrete bookable class-session time slot.
// Status FULL is a cached view of capacity and may lag the live counts.
type ClassSessionOccurrence struct {
	ID                  string          `json:"id"`
	RecurringGroupID    string          `json:"recurringGroupId,omitempty"`
	CoachID             string          `json:"coachId"`
	CoachName           string          `json:"coachName"`
	VenueName           string          `json:"venueName"`
	VenueState          string          `json:"venueState"`
	CourtName           string          `json:"courtName"`
	Title               string          `json:"title"`
	Type                string          `json:"type"`
	StartTime           time.Time       `json:"startTime"`
	EndTime             time.Time       `json:"endTime"`
	Price               decimal.Decimal `json:"price"`
	Status              SessionStatus   `json:"status"`
	CurrentParticipants int             `json:"currentParticipants"`
	MaxParticipants     int             `json:"maxParticipants"`
	Registrations       []Registration  `json:"registrations"`
}

// AtCapacity checks both the cached status and the live counts
func (o ClassSessionOccurrence) AtCapacity() bool {
	return o.Status == SessionStatusFull || o.CurrentParticipants >= o.MaxParticipants
}

// SeatsLeft returns the remaining capacity, never negative
func (o ClassSessionOccurrence) SeatsLeft() int {
	if o.Status == SessionStatusFull || o.CurrentParticipants >= o.MaxParticipants {
		return 0
	}
	return o.MaxParticipants - o.CurrentParticipants
}

// IsRegistered reports whether userID holds a registration on this occurrence
func (o ClassSessionOccurrence) IsRegistered(userID UserID) bool {
	if userID.IsZero() {
		return false
	}
	for _, r := range o.Registrations {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// DisplayTitle prefers the title and falls back to the session type
func (o ClassSessionOccurrence) DisplayTitle() string {
	if o.Title != "" {
		return o.Title
	}
	return o.Type
}
