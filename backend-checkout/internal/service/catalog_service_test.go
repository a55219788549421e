package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/dto"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/gateway"
)

func TestCatalogService_ListGroups(t *testing.T) {
	s1 := occurrence("s1", "rg-1", 0, 20)
	s1.Registrations = []domain.Registration{{RegistrationID: "r1", UserID: "42"}}
	solo := occurrence("solo", "", 1, 30)
	solo.CurrentParticipants = 8

	var gotStart, gotEnd time.Time
	backend := &MockBookingBackend{
		ListAvailableSessionsFunc: func(ctx context.Context, start, end time.Time) ([]domain.ClassSessionOccurrence, error) {
			gotStart, gotEnd = start, end
			return []domain.ClassSessionOccurrence{s1, occurrence("s2", "rg-1", 1, 25), solo}, nil
		},
	}
	svc := NewCatalogService(backend, nil)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	groups, err := svc.ListGroups(context.Background(), "42", &dto.ListGroupsQuery{Start: &start, End: &end})
	require.NoError(t, err)

	assert.Equal(t, start, gotStart)
	assert.Equal(t, end, gotEnd)
	require.Len(t, groups, 2)

	assert.Equal(t, "rg-1", groups[0].Key)
	assert.Equal(t, string(domain.EligibilityAlreadyBooked), groups[0].Eligibility)
	assert.Equal(t, 2, groups[0].Sessions)
	assert.Equal(t, "45.00", groups[0].TotalPrice)
	assert.Equal(t, "02 Mar 2026 - 09 Mar 2026", groups[0].DateRange)
	assert.Equal(t, "Coach Lee", groups[0].CoachName)

	assert.Equal(t, "single_solo", groups[1].Key)
	assert.Equal(t, string(domain.EligibilityFull), groups[1].Eligibility)
	assert.Equal(t, 0, groups[1].SeatsLeft)
}

func TestCatalogService_ListGroupsValidation(t *testing.T) {
	svc := NewCatalogService(&MockBookingBackend{}, nil)

	_, err := svc.ListGroups(context.Background(), "", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)
	_, err = svc.ListGroups(context.Background(), "42", &dto.ListGroupsQuery{Start: &start, End: &end})
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}

func TestCatalogService_BackendFailure(t *testing.T) {
	backend := &MockBookingBackend{
		ListAvailableSessionsFunc: func(ctx context.Context, start, end time.Time) ([]domain.ClassSessionOccurrence, error) {
			return nil, gateway.ErrBackendUnavailable
		},
	}
	_, err := NewCatalogService(backend, nil).ListGroups(context.Background(), "42", nil)
	assert.ErrorIs(t, err, gateway.ErrBackendUnavailable)
}

func TestSearchWindow(t *testing.T) {
	now := time.Date(2026, 3, 5, 15, 30, 0, 0, time.UTC)

	from, to, err := searchWindow(now, 48*time.Hour, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), to)

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	from, to, err = searchWindow(now, 24*time.Hour, &start, nil)
	require.NoError(t, err)
	assert.Equal(t, start, from)
	assert.Equal(t, start.Add(24*time.Hour), to)
}
