package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
)

func TestGroupSessions(t *testing.T) {
	occurrences := []domain.ClassSessionOccurrence{
		occurrence("s3", "rg-1", 2, 20),
		occurrence("solo", "", 1, 30),
		occurrence("s1", "rg-1", 0, 20),
		occurrence("s2", "rg-1", 1, 25),
	}

	groups := GroupSessions(occurrences)
	require.Len(t, groups, 2)

	assert.Equal(t, "rg-1", groups[0].Key())
	assert.True(t, groups[0].IsRecurring())
	assert.Equal(t, []string{"s1", "s2", "s3"}, groups[0].IDs())
	assert.Equal(t, "02 Mar 2026 - 16 Mar 2026", groups[0].DateRange().String())
	assert.Equal(t, "65", groups[0].TotalPrice().String())

	assert.Equal(t, domain.SingletonKey("solo"), groups[1].Key())
	assert.False(t, groups[1].IsRecurring())
	assert.Equal(t, 1, groups[1].Len())
}

func TestGroupSessions_PartitionsEveryOccurrence(t *testing.T) {
	occurrences := []domain.ClassSessionOccurrence{
		occurrence("a1", "rg-a", 0, 10),
		occurrence("b1", "rg-b", 0, 10),
		occurrence("a2", "rg-a", 1, 10),
		occurrence("x", "", 3, 10),
		occurrence("y", "", 3, 10),
	}

	groups := GroupSessions(occurrences)

	seen := map[string]int{}
	for _, g := range groups {
		for _, id := range g.IDs() {
			seen[id]++
		}
	}
	assert.Len(t, seen, len(occurrences))
	for id, n := range seen {
		assert.Equal(t, 1, n, "occurrence %s", id)
	}
	// equal start times fall back to key order
	assert.Equal(t, []string{"rg-a", "rg-b", "single_x", "single_y"}, keys(groups))
}

func TestGroupSessions_Empty(t *testing.T) {
	assert.Empty(t, GroupSessions(nil))
}

func TestFindGroupAndOccurrence(t *testing.T) {
	groups := GroupSessions(append(referenceGroup(), occurrence("solo", "", 5, 30)))

	g, ok := FindGroup(groups, "rg-1")
	require.True(t, ok)
	assert.Equal(t, 3, g.Len())

	_, ok = FindGroup(groups, "missing")
	assert.False(t, ok)

	o, owner, ok := FindOccurrence(groups, "s2")
	require.True(t, ok)
	assert.Equal(t, "s2", o.ID)
	assert.Equal(t, "rg-1", owner.Key())

	_, _, ok = FindOccurrence(groups, "nope")
	assert.False(t, ok)
}

func keys(groups []domain.SessionGroup) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Key()
	}
	return out
}
