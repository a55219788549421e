package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/dto"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/gateway"
	"github.com/prohmpiriya/class-checkout/pkg/telemetry"
)

// CatalogService lists bookable class groups
type CatalogService interface {
	// ListGroups returns the groups starting in the query window with the
	// acting user's eligibility for each
	ListGroups(ctx context.Context, userID string, query *dto.ListGroupsQuery) ([]dto.GroupResponse, error)
}

type catalogService struct {
	backend gateway.BookingBackend
	window  time.Duration
	now     func() time.Time
}

// CatalogServiceConfig contains configuration for the catalog service
type CatalogServiceConfig struct {
	// Window is the listing span used when the query has no end date
	Window time.Duration
}

// NewCatalogService creates a catalog service
func NewCatalogService(backend gateway.BookingBackend, cfg *CatalogServiceConfig) CatalogService {
	window := 30 * 24 * time.Hour
	if cfg != nil && cfg.Window > 0 {
		window = cfg.Window
	}
	return &catalogService{backend: backend, window: window, now: time.Now}
}

func (s *catalogService) ListGroups(ctx context.Context, userID string, query *dto.ListGroupsQuery) ([]dto.GroupResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.catalog.list_groups")
	defer span.End()

	uid := domain.NormalizeUserID(userID)
	if uid.IsZero() {
		return nil, domain.ErrInvalidUserID
	}

	var start, end *time.Time
	if query != nil {
		start, end = query.Start, query.End
	}
	from, to, err := searchWindow(s.now(), s.window, start, end)
	if err != nil {
		return nil, err
	}

	groups, err := fetchGroups(ctx, s.backend, from, to)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("group_count", len(groups)))

	evaluated := EvaluateGroups(groups, uid)
	out := make([]dto.GroupResponse, 0, len(evaluated))
	for _, ge := range evaluated {
		out = append(out, dto.NewGroupResponse(ge.Group, ge.State))
	}
	return out, nil
}

// searchWindow fills in a missing bound. Without a start the window opens at
// the beginning of today; without an end it spans window from the start.
func searchWindow(now time.Time, window time.Duration, start, end *time.Time) (time.Time, time.Time, error) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if start != nil {
		from = *start
	}
	to := from.Add(window)
	if end != nil {
		to = *end
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end is before start", domain.ErrInvalidDateRange)
	}
	return from, to, nil
}

// fetchGroups reads occurrences from the backend and aggregates them
func fetchGroups(ctx context.Context, backend gateway.BookingBackend, from, to time.Time) ([]domain.SessionGroup, error) {
	occurrences, err := backend.ListAvailableSessions(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return GroupSessions(occurrences), nil
}
