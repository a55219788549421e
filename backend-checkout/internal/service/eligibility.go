package service

import (
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
)

// EvaluateEligibility derives whether userID may book the group. A
// registration on any occurrence wins over capacity, so a member who already
// holds a seat is never reported as blocked by a full group.
func EvaluateEligibility(group domain.SessionGroup, userID domain.UserID) domain.EligibilityState {
	occurrences := group.Occurrences()

	for _, o := range occurrences {
		if o.IsRegistered(userID) {
			return domain.EligibilityAlreadyBooked
		}
	}

	if len(occurrences) == 0 {
		return domain.EligibilityBookable
	}
	for _, o := range occurrences {
		if !o.AtCapacity() {
			return domain.EligibilityBookable
		}
	}
	return domain.EligibilityFull
}

// GroupEligibility pairs a group with the acting user's booking state
type GroupEligibility struct {
	Group domain.SessionGroup
	State domain.EligibilityState
}

// EvaluateGroups annotates every group for the acting user
func EvaluateGroups(groups []domain.SessionGroup, userID domain.UserID) []GroupEligibility {
	out := make([]GroupEligibility, len(groups))
	for i, g := range groups {
		out[i] = GroupEligibility{Group: g, State: EvaluateEligibility(g, userID)}
	}
	return out
}
