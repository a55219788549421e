package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/pkg/middleware"
)

// MockConfig configures the in-memory booking backend
type MockConfig struct {
	PaddleUnitPrice decimal.Decimal
	BallSetPrice    decimal.Decimal
	// StartingBalance funds the wallet of a member seen for the first time
	StartingBalance decimal.Decimal
	// Vouchers are issued to every member seen for the first time
	Vouchers []domain.Voucher
}

type mockWallet struct {
	balance      decimal.Decimal
	tierPoints   int64
	rewardPoints int64
	vouchers     []domain.Voucher
}

// MockBookingBackend is an in-memory booking backend. It enforces capacity,
// one registration per member, wallet debits and single-use vouchers, and
// applies group registrations all-or-nothing.
type MockBookingBackend struct {
	mu           sync.Mutex
	cfg          MockConfig
	sessions     map[string]*domain.ClassSessionOccurrence
	wallets      map[domain.UserID]*mockWallet
	events       map[string]decimal.Decimal
	eventMembers map[string]map[domain.UserID]bool
	courtSlots   map[string]decimal.Decimal
	bookedSlots  map[string]bool
	calls        map[string]int
}

// NewMockBookingBackend creates an empty in-memory backend
func NewMockBookingBackend(cfg MockConfig) *MockBookingBackend {
	return &MockBookingBackend{
		cfg:          cfg,
		sessions:     make(map[string]*domain.ClassSessionOccurrence),
		wallets:      make(map[domain.UserID]*mockWallet),
		events:       make(map[string]decimal.Decimal),
		eventMembers: make(map[string]map[domain.UserID]bool),
		courtSlots:   make(map[string]decimal.Decimal),
		bookedSlots:  make(map[string]bool),
		calls:        make(map[string]int),
	}
}

// AddSession stores an occurrence
func (m *MockBookingBackend) AddSession(o domain.ClassSessionOccurrence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.Registrations = append([]domain.Registration(nil), o.Registrations...)
	m.sessions[o.ID] = &o
}

// AddEvent stores an event with its fee
func (m *MockBookingBackend) AddEvent(eventID string, fee decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[eventID] = fee
}

// AddCourtSlot stores a bookable court slot
func (m *MockBookingBackend) AddCourtSlot(slotID string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courtSlots[slotID] = price
}

// SetWalletBalance overrides a member's wallet balance
func (m *MockBookingBackend) SetWalletBalance(userID domain.UserID, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallet(userID).balance = balance
}

// IssueVoucher gives a member an extra voucher
func (m *MockBookingBackend) IssueVoucher(userID domain.UserID, v domain.Voucher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.wallet(userID)
	w.vouchers = append(w.vouchers, v)
}

// Calls returns how many times an endpoint was called
func (m *MockBookingBackend) Calls(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[endpoint]
}

// ListAvailableSessions returns occurrences starting within [start, end]
func (m *MockBookingBackend) ListAvailableSessions(ctx context.Context, start, end time.Time) ([]domain.ClassSessionOccurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[EndpointListSessions]++

	out := make([]domain.ClassSessionOccurrence, 0, len(m.sessions))
	for _, o := range m.sessions {
		if o.Status == domain.SessionStatusCancelled {
			continue
		}
		if o.StartTime.Before(start) || o.StartTime.After(end) {
			continue
		}
		cp := *o
		cp.Registrations = append([]domain.Registration(nil), o.Registrations...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetWalletBalance returns the acting member's balance
func (m *MockBookingBackend) GetWalletBalance(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[EndpointWalletBalance]++

	userID, err := actingUser(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return m.wallet(userID).balance, nil
}

// ListActiveVouchers returns the acting member's unredeemed vouchers
func (m *MockBookingBackend) ListActiveVouchers(ctx context.Context) ([]domain.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[EndpointActiveVouchers]++

	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var out []domain.Voucher
	for _, v := range m.wallet(userID).vouchers {
		if !v.IsExpired(now) {
			out = append(out, v)
		}
	}
	return out, nil
}

// RegisterSession registers the acting member for one occurrence
func (m *MockBookingBackend) RegisterSession(ctx context.Context, req *SessionRegistrationRequest) (*domain.BookingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[EndpointRegisterSession]++

	if req.UseVoucher {
		return nil, badRequest("Vouchers cannot be used for class sessions")
	}
	return m.registerLocked(ctx, []string{req.SessionID}, req.UseWallet, domain.EquipmentSelection{
		NumPaddles: req.NumPaddles,
		BuyBallSet: req.BuyBallSet,
	})
}

// RegisterSessions registers the acting member for every listed occurrence or none
func (m *MockBookingBackend) RegisterSessions(ctx context.Context, req *MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[EndpointRegisterMulti]++

	if len(req.SessionIDs) == 0 {
		return nil, badRequest("sessionIds is required")
	}
	method := strings.ToLower(req.PaymentMethod)
	if method != string(domain.FundingWallet) && method != string(domain.FundingCard) {
		return nil, badRequest("Unsupported payment method")
	}
	return m.registerLocked(ctx, req.SessionIDs, method == string(domain.FundingWallet), domain.EquipmentSelection{
		NumPaddles: req.NumPaddles,
		BuyBallSet: req.BuyBallSet,
	})
}

// CreateCourtBooking books court slots for the acting member
func (m *MockBookingBackend) CreateCourtBooking(ctx context.Context, req *CourtBookingRequest) (*domain.BookingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[EndpointCourtBooking]++

	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	if len(req.SlotIDs) == 0 {
		return nil, badRequest("slotIds is required")
	}

	base := decimal.Zero
	for _, id := range req.SlotIDs {
		price, ok := m.courtSlots[id]
		if !ok {
			return nil, &BackendError{Status: http.StatusNotFound, Message: "Court slot not found"}
		}
		if m.bookedSlots[id] {
			return nil, conflict("SLOT_UNAVAILABLE", "Selected slot is no longer available")
		}
		base = base.Add(price)
	}
	total := base.Add(m.equipment(domain.EquipmentSelection{NumPaddles: req.NumPaddles, BuyBallSet: req.BuyBallSet}))

	w := m.wallet(userID)
	voucherIdx := -1
	if req.UseVoucher {
		idx, v, err := m.redeemable(w, req.VoucherRedemptionID)
		if err != nil {
			return nil, err
		}
		voucherIdx = idx
		total = v.Apply(total)
	}
	if err := m.debitLocked(w, req.UseWallet, total); err != nil {
		return nil, err
	}

	for _, id := range req.SlotIDs {
		m.bookedSlots[id] = true
	}
	if voucherIdx >= 0 {
		w.vouchers = append(w.vouchers[:voucherIdx], w.vouchers[voucherIdx+1:]...)
	}
	return m.resultLocked(w, total, "Court booked successfully"), nil
}

// RegisterEvent registers the acting member for an event
func (m *MockBookingBackend) RegisterEvent(ctx context.Context, req *EventRegistrationRequest) (*domain.BookingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[EndpointRegisterEvent]++

	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	fee, ok := m.events[req.EventID]
	if !ok {
		return nil, &BackendError{Status: http.StatusNotFound, Message: "Event not found"}
	}
	if m.eventMembers[req.EventID][userID] {
		return nil, conflict("ALREADY_REGISTERED", "You are already registered for this event")
	}

	w := m.wallet(userID)
	if err := m.debitLocked(w, req.UseWallet, fee); err != nil {
		return nil, err
	}
	if m.eventMembers[req.EventID] == nil {
		m.eventMembers[req.EventID] = make(map[domain.UserID]bool)
	}
	m.eventMembers[req.EventID][userID] = true
	return m.resultLocked(w, fee, "Registered for event"), nil
}

// PayReplacementSession charges the acting member for a replacement session
func (m *MockBookingBackend) PayReplacementSession(ctx context.Context, req *ReplacementPaymentRequest) (*domain.BookingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[EndpointReplacementPayment]++

	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil || amount.IsNegative() {
		return nil, badRequest("Invalid amount")
	}
	if req.UseVoucher {
		return nil, badRequest("Vouchers cannot be used for replacement sessions")
	}

	w := m.wallet(userID)
	if err := m.debitLocked(w, req.UseWallet, amount); err != nil {
		return nil, err
	}
	return m.resultLocked(w, amount, "Replacement session paid"), nil
}

func (m *MockBookingBackend) registerLocked(ctx context.Context, sessionIDs []string, useWallet bool, eq domain.EquipmentSelection) (*domain.BookingResult, error) {
	userID, err := actingUser(ctx)
	if err != nil {
		return nil, err
	}

	base := decimal.Zero
	for _, id := range sessionIDs {
		o, ok := m.sessions[id]
		if !ok || o.Status == domain.SessionStatusCancelled {
			return nil, conflict("SESSION_UNAVAILABLE", "Session is no longer available")
		}
		if o.IsRegistered(userID) {
			return nil, conflict("ALREADY_REGISTERED", "You are already registered for this session")
		}
		if o.AtCapacity() {
			return nil, conflict("SESSION_FULL", "Session is full")
		}
		base = base.Add(o.Price)
	}
	total := base.Add(m.equipment(eq))

	w := m.wallet(userID)
	if err := m.debitLocked(w, useWallet, total); err != nil {
		return nil, err
	}

	result := m.resultLocked(w, total, "Registration successful")
	for _, id := range sessionIDs {
		o := m.sessions[id]
		regID := uuid.NewString()
		o.Registrations = append(o.Registrations, domain.Registration{RegistrationID: regID, UserID: userID})
		o.CurrentParticipants++
		if o.CurrentParticipants >= o.MaxParticipants {
			o.Status = domain.SessionStatusFull
		}
		result.RegistrationIDs = append(result.RegistrationIDs, regID)
	}
	return result, nil
}

func (m *MockBookingBackend) debitLocked(w *mockWallet, useWallet bool, total decimal.Decimal) error {
	if !useWallet {
		return nil
	}
	if w.balance.LessThan(total) {
		return badRequest("Insufficient wallet balance")
	}
	w.balance = w.balance.Sub(total)
	return nil
}

func (m *MockBookingBackend) resultLocked(w *mockWallet, total decimal.Decimal, message string) *domain.BookingResult {
	points := total.IntPart()
	w.tierPoints += points
	w.rewardPoints += points
	return &domain.BookingResult{
		BookingID:                 uuid.NewString(),
		TotalAmount:               total,
		PointsEarned:              points,
		CurrentTierPointBalance:   w.tierPoints,
		CurrentRewardPointBalance: w.rewardPoints,
		Message:                   message,
	}
}

func (m *MockBookingBackend) redeemable(w *mockWallet, redemptionID string) (int, domain.Voucher, error) {
	if redemptionID == "" {
		return -1, domain.Voucher{}, badRequest("voucherRedemptionId is required when useVoucher is true")
	}
	for i, v := range w.vouchers {
		if v.ID != redemptionID {
			continue
		}
		if v.IsExpired(time.Now()) {
			return -1, domain.Voucher{}, badRequest("Voucher has expired")
		}
		return i, v, nil
	}
	return -1, domain.Voucher{}, badRequest("Voucher is not valid")
}

func (m *MockBookingBackend) equipment(eq domain.EquipmentSelection) decimal.Decimal {
	total := m.cfg.PaddleUnitPrice.Mul(decimal.NewFromInt(int64(eq.NumPaddles)))
	if eq.BuyBallSet {
		total = total.Add(m.cfg.BallSetPrice)
	}
	return total
}

func (m *MockBookingBackend) wallet(userID domain.UserID) *mockWallet {
	w, ok := m.wallets[userID]
	if !ok {
		w = &mockWallet{balance: m.cfg.StartingBalance}
		for _, v := range m.cfg.Vouchers {
			v.ID = fmt.Sprintf("%s-%s", v.ID, userID)
			w.vouchers = append(w.vouchers, v)
		}
		m.wallets[userID] = w
	}
	return w
}

func actingUser(ctx context.Context) (domain.UserID, error) {
	userID := domain.NormalizeUserID(middleware.UserIDFromContext(ctx))
	if userID.IsZero() {
		return "", &BackendError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "Unauthorized"}
	}
	return userID, nil
}

func badRequest(message string) *BackendError {
	return &BackendError{Status: http.StatusBadRequest, Message: message}
}

func conflict(code, message string) *BackendError {
	return &BackendError{Status: http.StatusConflict, Code: code, Message: message}
}
