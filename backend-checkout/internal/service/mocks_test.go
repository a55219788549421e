package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/gateway"
)

// MockBookingBackend is a mock implementation of gateway.BookingBackend
type MockBookingBackend struct {
	ListAvailableSessionsFunc func(ctx context.Context, start, end time.Time) ([]domain.ClassSessionOccurrence, error)
	GetWalletBalanceFunc      func(ctx context.Context) (decimal.Decimal, error)
	ListActiveVouchersFunc    func(ctx context.Context) ([]domain.Voucher, error)
	RegisterSessionFunc       func(ctx context.Context, req *gateway.SessionRegistrationRequest) (*domain.BookingResult, error)
	RegisterSessionsFunc      func(ctx context.Context, req *gateway.MultiSessionRegistrationRequest) (*domain.BookingResult, error)
	CreateCourtBookingFunc    func(ctx context.Context, req *gateway.CourtBookingRequest) (*domain.BookingResult, error)
	RegisterEventFunc         func(ctx context.Context, req *gateway.EventRegistrationRequest) (*domain.BookingResult, error)
	PayReplacementFunc        func(ctx context.Context, req *gateway.ReplacementPaymentRequest) (*domain.BookingResult, error)

	submissions atomic.Int32
}

// Submissions counts calls to any registration or payment endpoint
func (m *MockBookingBackend) Submissions() int {
	return int(m.submissions.Load())
}

func (m *MockBookingBackend) ListAvailableSessions(ctx context.Context, start, end time.Time) ([]domain.ClassSessionOccurrence, error) {
	if m.ListAvailableSessionsFunc != nil {
		return m.ListAvailableSessionsFunc(ctx, start, end)
	}
	return nil, nil
}

func (m *MockBookingBackend) GetWalletBalance(ctx context.Context) (decimal.Decimal, error) {
	if m.GetWalletBalanceFunc != nil {
		return m.GetWalletBalanceFunc(ctx)
	}
	return decimal.NewFromInt(100), nil
}

func (m *MockBookingBackend) ListActiveVouchers(ctx context.Context) ([]domain.Voucher, error) {
	if m.ListActiveVouchersFunc != nil {
		return m.ListActiveVouchersFunc(ctx)
	}
	return nil, nil
}

func (m *MockBookingBackend) RegisterSession(ctx context.Context, req *gateway.SessionRegistrationRequest) (*domain.BookingResult, error) {
	m.submissions.Add(1)
	if m.RegisterSessionFunc != nil {
		return m.RegisterSessionFunc(ctx, req)
	}
	return &domain.BookingResult{RegistrationIDs: []string{"reg-1"}}, nil
}

func (m *MockBookingBackend) RegisterSessions(ctx context.Context, req *gateway.MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
	m.submissions.Add(1)
	if m.RegisterSessionsFunc != nil {
		return m.RegisterSessionsFunc(ctx, req)
	}
	return &domain.BookingResult{RegistrationIDs: req.SessionIDs}, nil
}

func (m *MockBookingBackend) CreateCourtBooking(ctx context.Context, req *gateway.CourtBookingRequest) (*domain.BookingResult, error) {
	m.submissions.Add(1)
	if m.CreateCourtBookingFunc != nil {
		return m.CreateCourtBookingFunc(ctx, req)
	}
	return &domain.BookingResult{BookingID: "bk-1"}, nil
}

func (m *MockBookingBackend) RegisterEvent(ctx context.Context, req *gateway.EventRegistrationRequest) (*domain.BookingResult, error) {
	m.submissions.Add(1)
	if m.RegisterEventFunc != nil {
		return m.RegisterEventFunc(ctx, req)
	}
	return &domain.BookingResult{BookingID: "ev-1"}, nil
}

func (m *MockBookingBackend) PayReplacementSession(ctx context.Context, req *gateway.ReplacementPaymentRequest) (*domain.BookingResult, error) {
	m.submissions.Add(1)
	if m.PayReplacementFunc != nil {
		return m.PayReplacementFunc(ctx, req)
	}
	return &domain.BookingResult{BookingID: "rp-1"}, nil
}

// MockEventPublisher records published outcomes
type MockEventPublisher struct {
	mu         sync.Mutex
	published  []domain.Checkout
	publishErr error
}

func (m *MockEventPublisher) PublishOutcome(ctx context.Context, checkout *domain.Checkout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, *checkout)
	return nil
}

func (m *MockEventPublisher) Close() error {
	return nil
}

func (m *MockEventPublisher) Published() []domain.Checkout {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Checkout(nil), m.published...)
}

// fixtures

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func occurrence(id, group string, week int, price int64) domain.ClassSessionOccurrence {
	start := testStart.AddDate(0, 0, 7*week)
	return domain.ClassSessionOccurrence{
		ID:               id,
		RecurringGroupID: group,
		CoachName:        "Coach Lee",
		VenueName:        "Central Courts",
		Title:            "Beginner Pickleball",
		StartTime:        start,
		EndTime:          start.Add(time.Hour),
		Price:            decimal.NewFromInt(price),
		Status:           domain.SessionStatusAvailable,
		MaxParticipants:  8,
	}
}

func referenceGroup() []domain.ClassSessionOccurrence {
	return []domain.ClassSessionOccurrence{
		occurrence("s1", "rg-1", 0, 20),
		occurrence("s2", "rg-1", 1, 25),
		occurrence("s3", "rg-1", 2, 20),
	}
}

func groupTarget(t *testing.T) domain.BookingTarget {
	t.Helper()
	g, err := domain.NewSessionGroup("rg-1", referenceGroup())
	require.NoError(t, err)
	target, err := domain.NewGroupTarget(g)
	require.NoError(t, err)
	return target
}

func decimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
