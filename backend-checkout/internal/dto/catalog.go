package dto

import (
	"time"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
)

// ListGroupsQuery filters the class group listing
type ListGroupsQuery struct {
	Start *time.Time `form:"start" time_format:"2006-01-02"`
	End   *time.Time `form:"end" time_format:"2006-01-02"`
}

// OccurrenceResponse is one session inside a group
type OccurrenceResponse struct {
	ID                  string    `json:"id"`
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	Price               string    `json:"price"`
	Status              string    `json:"status"`
	CurrentParticipants int       `json:"current_participants"`
	MaxParticipants     int       `json:"max_participants"`
	SeatsLeft           int       `json:"seats_left"`
}

// GroupResponse is a bookable class group with the caller's eligibility
type GroupResponse struct {
	Key         string               `json:"key"`
	Recurring   bool                 `json:"recurring"`
	Title       string               `json:"title"`
	CoachName   string               `json:"coach_name"`
	VenueName   string               `json:"venue_name"`
	VenueState  string               `json:"venue_state"`
	CourtName   string               `json:"court_name"`
	DateRange   string               `json:"date_range"`
	Sessions    int                  `json:"sessions"`
	TotalPrice  string               `json:"total_price"`
	Eligibility string               `json:"eligibility"`
	SeatsLeft   int                  `json:"seats_left"`
	Occurrences []OccurrenceResponse `json:"occurrences"`
}

// NewGroupResponse converts a group and its eligibility. SeatsLeft is the
// smallest remaining capacity across the group's sessions.
func NewGroupResponse(g domain.SessionGroup, state domain.EligibilityState) GroupResponse {
	first := g.First()
	resp := GroupResponse{
		Key:         g.Key(),
		Recurring:   g.IsRecurring(),
		Title:       first.DisplayTitle(),
		CoachName:   first.CoachName,
		VenueName:   first.VenueName,
		VenueState:  first.VenueState,
		CourtName:   first.CourtName,
		DateRange:   g.DateRange().String(),
		Sessions:    g.Len(),
		TotalPrice:  g.TotalPrice().StringFixed(2),
		Eligibility: string(state),
	}

	for i, o := range g.Occurrences() {
		left := o.SeatsLeft()
		if i == 0 || left < resp.SeatsLeft {
			resp.SeatsLeft = left
		}
		resp.Occurrences = append(resp.Occurrences, OccurrenceResponse{
			ID:                  o.ID,
			StartTime:           o.StartTime,
			EndTime:             o.EndTime,
			Price:               o.Price.StringFixed(2),
			Status:              string(o.Status),
			CurrentParticipants: o.CurrentParticipants,
			MaxParticipants:     o.MaxParticipants,
			SeatsLeft:           left,
		})
	}
	return resp
}
