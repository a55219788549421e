package service

import (
	"sort"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
)

// GroupSessions partitions occurrences into bookable groups. Occurrences that
// share a recurring group id form one group; every other occurrence gets its
// own singleton group. Groups are returned ordered by their earliest start
// time, then key, so the result is deterministic for a given input.
func GroupSessions(occurrences []domain.ClassSessionOccurrence) []domain.SessionGroup {
	order := make([]string, 0, len(occurrences))
	buckets := make(map[string][]domain.ClassSessionOccurrence, len(occurrences))

	for _, o := range occurrences {
		key := groupKey(o)
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], o)
	}

	groups := make([]domain.SessionGroup, 0, len(order))
	for _, key := range order {
		g, err := domain.NewSessionGroup(key, buckets[key])
		if err != nil {
			continue
		}
		groups = append(groups, g)
	}

	sortGroups(groups)
	return groups
}

// FindGroup returns the group with the given key
func FindGroup(groups []domain.SessionGroup, key string) (domain.SessionGroup, bool) {
	for _, g := range groups {
		if g.Key() == key {
			return g, true
		}
	}
	return domain.SessionGroup{}, false
}

// FindOccurrence returns an occurrence by id along with the group holding it
func FindOccurrence(groups []domain.SessionGroup, occurrenceID string) (domain.ClassSessionOccurrence, domain.SessionGroup, bool) {
	for _, g := range groups {
		for _, o := range g.Occurrences() {
			if o.ID == occurrenceID {
				return o, g, true
			}
		}
	}
	return domain.ClassSessionOccurrence{}, domain.SessionGroup{}, false
}

func groupKey(o domain.ClassSessionOccurrence) string {
	if o.RecurringGroupID != "" {
		return o.RecurringGroupID
	}
	return domain.SingletonKey(o.ID)
}

func sortGroups(groups []domain.SessionGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		si, sj := groups[i].First().StartTime, groups[j].First().StartTime
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return groups[i].Key() < groups[j].Key()
	})
}
