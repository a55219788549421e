package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SingletonKeyPrefix prefixes the key of a group built from a standalone occurrence
const SingletonKeyPrefix = "single_"

// SingletonKey returns the group key for a standalone occurrence
func SingletonKey(occurrenceID string) string {
	return SingletonKeyPrefix + occurrenceID
}

// SessionGroup is an immutable, date-ascending set of occurrences booked
// together: a recurring series or a single standalone occurrence.
type SessionGroup struct {
	key         string
	occurrences []ClassSessionOccurrence
}

// NewSessionGroup copies and orders occurrences by start time, then id.
func NewSessionGroup(key string, occurrences []ClassSessionOccurrence) (SessionGroup, error) {
	if len(occurrences) == 0 {
		return SessionGroup{}, ErrEmptySessionGroup
	}
	if key == "" {
		return SessionGroup{}, fmt.Errorf("%w: empty group key", ErrInvalidTarget)
	}

	sorted := make([]ClassSessionOccurrence, len(occurrences))
	copy(sorted, occurrences)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].StartTime.Equal(sorted[j].StartTime) {
			return sorted[i].StartTime.Before(sorted[j].StartTime)
		}
		return sorted[i].ID < sorted[j].ID
	})

	return SessionGroup{key: key, occurrences: sorted}, nil
}

// Key returns the recurring group id, or single_<id> for a standalone occurrence
func (g SessionGroup) Key() string {
	return g.key
}

// IsRecurring reports whether the group came from a recurring series
func (g SessionGroup) IsRecurring() bool {
	return !strings.HasPrefix(g.key, SingletonKeyPrefix)
}

// Len returns the number of occurrences
func (g SessionGroup) Len() int {
	return len(g.occurrences)
}

// Occurrences returns a copy of the members in date-ascending order
func (g SessionGroup) Occurrences() []ClassSessionOccurrence {
	out := make([]ClassSessionOccurrence, len(g.occurrences))
	copy(out, g.occurrences)
	return out
}

// First returns the earliest occurrence; venue, coach and title are read from it.
func (g SessionGroup) First() ClassSessionOccurrence {
	return g.occurrences[0]
}

// IDs returns member ids in date-ascending order
func (g SessionGroup) IDs() []string {
	ids := make([]string, len(g.occurrences))
	for i, o := range g.occurrences {
		ids[i] = o.ID
	}
	return ids
}

// Contains reports whether the group has an occurrence with the given id
func (g SessionGroup) Contains(occurrenceID string) bool {
	for _, o := range g.occurrences {
		if o.ID == occurrenceID {
			return true
		}
	}
	return false
}

// TotalPrice sums member prices exactly
func (g SessionGroup) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, o := range g.occurrences {
		total = total.Add(o.Price)
	}
	return total
}

// DateRange returns the first and last start dates of the group
func (g SessionGroup) DateRange() DateRange {
	r := DateRange{Start: g.occurrences[0].StartTime, End: g.occurrences[0].StartTime}
	for _, o := range g.occurrences[1:] {
		if o.StartTime.Before(r.Start) {
			r.Start = o.StartTime
		}
		if o.StartTime.After(r.End) {
			r.End = o.StartTime
		}
	}
	return r
}

// DateRange is an inclusive range of session dates
type DateRange struct {
	Start time.Time
	End   time.Time
}

// DateLayout is the display layout of a single session date
const DateLayout = "02 Jan 2006"

// String formats the range as a single date or "start - end"
func (r DateRange) String() string {
	start, end := r.Start.Format(DateLayout), r.End.Format(DateLayout)
	if start == end {
		return start
	}
	return start + " - " + end
}
