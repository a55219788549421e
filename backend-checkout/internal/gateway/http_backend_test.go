package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/pkg/middleware"
	"github.com/prohmpiriya/class-checkout/pkg/retry"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *HTTPBookingBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	b, err := NewHTTPBookingBackend(&HTTPConfig{
		BaseURL: srv.URL + "/",
		Timeout: 2 * time.Second,
		ReadRetry: &retry.Config{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			Multiplier:      1.5,
		},
	})
	require.NoError(t, err)
	return b
}

func authCtx() context.Context {
	ctx := middleware.ContextWithToken(context.Background(), "tok-123")
	return middleware.ContextWithUserID(ctx, "42")
}

func TestNewHTTPBookingBackend_RequiresURL(t *testing.T) {
	_, err := NewHTTPBookingBackend(&HTTPConfig{})
	assert.Error(t, err)
	_, err = NewHTTPBookingBackend(nil)
	assert.Error(t, err)
}

func TestHTTPBookingBackend_ListAvailableSessions(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/class-sessions/available", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("start"))
		assert.NotEmpty(t, r.URL.Query().Get("end"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		_, _ = io.WriteString(w, `{"success":true,"data":[{
			"id": 101, "recurringGroupId": "rg-1", "coachId": 7, "title": "Drills",
			"startTime": "2026-03-02T09:00:00Z", "endTime": "2026-03-02T10:00:00Z",
			"price": "20.00", "status": "available", "currentParticipants": 3, "maxParticipants": 8,
			"registrations": [{"registrationId": 9, "userId": 42, "memberName": "Ana"}]
		}]}`)
	})

	sessions, err := b.ListAvailableSessions(authCtx(), time.Now(), time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	s := sessions[0]
	assert.Equal(t, "101", s.ID)
	assert.Equal(t, "rg-1", s.RecurringGroupID)
	assert.Equal(t, "7", s.CoachID)
	assert.Equal(t, domain.SessionStatusAvailable, s.Status)
	assert.True(t, s.Price.Equal(decimal.NewFromInt(20)))
	assert.True(t, s.IsRegistered(domain.NormalizeUserID("42")))
}

func TestHTTPBookingBackend_ReadRetriesServerErrors(t *testing.T) {
	var calls int32
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"balance": 55.5}`)
	})

	balance, err := b.GetWalletBalance(authCtx())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("55.5")))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPBookingBackend_ReadDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Token expired"}`)
	})

	_, err := b.ListActiveVouchers(authCtx())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPBookingBackend_ListActiveVouchers(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id": 5, "redemptionId": "red-5", "discountType": "fixed", "discountValue": 10, "expiryDate": "2030-01-31"}]`)
	})

	vouchers, err := b.ListActiveVouchers(authCtx())
	require.NoError(t, err)
	require.Len(t, vouchers, 1)
	assert.Equal(t, "red-5", vouchers[0].ID)
	assert.Equal(t, domain.DiscountFixed, vouchers[0].DiscountType)
	require.NotNil(t, vouchers[0].ExpiryDate)
	assert.Equal(t, 2030, vouchers[0].ExpiryDate.Year())
}

func TestHTTPBookingBackend_SubmitIsNotRetried(t *testing.T) {
	var calls int32
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"message":"database down"}`)
	})

	_, err := b.RegisterSessions(authCtx(), &MultiSessionRegistrationRequest{SessionIDs: []string{"1", "2"}, PaymentMethod: "card"})
	require.Error(t, err)
	be, ok := AsBackendError(err)
	require.True(t, ok)
	assert.Equal(t, "database down", be.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPBookingBackend_RegisterSession(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/class-sessions/s-1/register", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["useWallet"])
		assert.Equal(t, false, body["useVoucher"])
		assert.Equal(t, float64(2), body["numPaddles"])
		assert.Equal(t, true, body["buyBallSet"])
		assert.NotContains(t, body, "voucherRedemptionId")

		_, _ = io.WriteString(w, `{"data":{"id":77,"totalAmount":42,"pointsEarned":42,"currentTierPointBalance":142,"currentRewardPointBalance":90}}`)
	})

	res, err := b.RegisterSession(authCtx(), &SessionRegistrationRequest{
		SessionID:  "s-1",
		UseWallet:  true,
		NumPaddles: 2,
		BuyBallSet: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "77", res.BookingID)
	assert.True(t, res.TotalAmount.Equal(decimal.NewFromInt(42)))
	assert.Equal(t, int64(142), res.CurrentTierPointBalance)
	assert.Equal(t, int64(90), res.CurrentRewardPointBalance)
}

func TestHTTPBookingBackend_ReplacementAmountIsNumber(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(raw), `"amount":25.5`)
		_, _ = io.WriteString(w, `{"amount": 25.5}`)
	})

	intent, err := domain.NewReplacementPaymentIntent(domain.ReplacementSession{SessionID: "r1", Amount: decimal.RequireFromString("25.5")}, domain.FundingCard)
	require.NoError(t, err)
	res, err := Submit(authCtx(), b, intent)
	require.NoError(t, err)
	assert.True(t, res.TotalAmount.Equal(decimal.RequireFromString("25.5")))
}

func TestRequestFor(t *testing.T) {
	court, err := domain.NewCourtBookingIntent(domain.CourtSelection{SlotIDs: []string{"a"}, Purpose: "social", NumberOfPlayers: 4, DurationHours: 2},
		domain.EquipmentSelection{NumPaddles: 1}, domain.FundingWallet, &domain.Voucher{ID: "red-1"})
	require.NoError(t, err)
	req, err := RequestFor(court)
	require.NoError(t, err)
	cr, ok := req.(*CourtBookingRequest)
	require.True(t, ok)
	assert.True(t, cr.UseWallet)
	assert.True(t, cr.UseVoucher)
	assert.Equal(t, "red-1", cr.VoucherRedemptionID)
	assert.Equal(t, 2, cr.DurationHours)

	group, err := domain.NewGroupSessionIntent([]string{"1", "2"}, domain.EquipmentSelection{}, domain.FundingWallet)
	require.NoError(t, err)
	req, err = RequestFor(group)
	require.NoError(t, err)
	mr, ok := req.(*MultiSessionRegistrationRequest)
	require.True(t, ok)
	assert.Equal(t, "wallet", mr.PaymentMethod)

	event, err := domain.NewEventRegistrationIntent("e1", domain.FundingCard)
	require.NoError(t, err)
	req, err = RequestFor(event)
	require.NoError(t, err)
	er, ok := req.(*EventRegistrationRequest)
	require.True(t, ok)
	assert.False(t, er.UseWallet)
}
