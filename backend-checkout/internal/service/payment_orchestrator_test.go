package service

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/gateway"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/repository"
	"github.com/prohmpiriya/class-checkout/pkg/logger"
)

type orchestratorFixture struct {
	repo    *repository.MemoryCheckoutRepository
	backend *MockBookingBackend
	events  *MockEventPublisher
	orch    *PaymentOrchestrator
}

func newOrchestratorFixture() *orchestratorFixture {
	f := &orchestratorFixture{
		repo:    repository.NewMemoryCheckoutRepository(),
		backend: &MockBookingBackend{},
		events:  &MockEventPublisher{},
	}
	f.orch = NewPaymentOrchestrator(f.repo, f.backend, NewPriceCalculator(DefaultPriceList()), f.events, &OrchestratorConfig{
		SubmitLockTTL: 5 * time.Second,
		Logger:        logger.Nop(),
	})
	return f
}

// seed stores an IDLE group checkout with two paddles and a ball set (87.00)
func (f *orchestratorFixture) seed(t *testing.T, wallet *decimal.Decimal) *domain.Checkout {
	t.Helper()
	c, err := domain.NewCheckout("42", groupTarget(t), domain.EquipmentSelection{NumPaddles: 2, BuyBallSet: true}, wallet, nil, "MYR", time.Now(), 15*time.Minute)
	require.NoError(t, err)
	require.NoError(t, f.repo.Save(context.Background(), c))
	return c
}

func (f *orchestratorFixture) stored(t *testing.T, id string) *domain.Checkout {
	t.Helper()
	c, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return c
}

func TestPaymentOrchestrator_Succeeds(t *testing.T) {
	f := newOrchestratorFixture()
	c := f.seed(t, decimalPtr(100))

	var sent *gateway.MultiSessionRegistrationRequest
	f.backend.RegisterSessionsFunc = func(ctx context.Context, req *gateway.MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
		sent = req
		return &domain.BookingResult{
			RegistrationIDs: []string{"r1", "r2", "r3"},
			TotalAmount:     decimal.NewFromInt(87),
			PointsEarned:    87,
		}, nil
	}
	f.backend.GetWalletBalanceFunc = func(ctx context.Context) (decimal.Decimal, error) {
		return decimal.NewFromInt(13), nil
	}

	result, err := f.orch.Submit(context.Background(), c.ID, "42")
	require.NoError(t, err)

	assert.Equal(t, domain.CheckoutSucceeded, result.State)
	assert.Equal(t, "87.00", result.Quote.Total.StringFixed(2))
	require.NotNil(t, result.Result)
	assert.Equal(t, []string{"r1", "r2", "r3"}, result.Result.RegistrationIDs)
	assert.Equal(t, 1, result.Attempts)
	require.NotNil(t, result.WalletBalance)
	assert.True(t, result.WalletBalance.Equal(decimal.NewFromInt(13)))

	require.NotNil(t, sent)
	assert.Equal(t, []string{"s1", "s2", "s3"}, sent.SessionIDs)
	assert.Equal(t, "wallet", sent.PaymentMethod)
	assert.Equal(t, 2, sent.NumPaddles)
	assert.True(t, sent.BuyBallSet)

	assert.Equal(t, domain.CheckoutSucceeded, f.stored(t, c.ID).State)
	published := f.events.Published()
	require.Len(t, published, 1)
	assert.Equal(t, domain.CheckoutSucceeded, published[0].State)
}

func TestPaymentOrchestrator_WalletShortfallNeverReachesBackend(t *testing.T) {
	tests := []struct {
		name   string
		wallet int64
		reason domain.ReasonCode
	}{
		{name: "insufficient", wallet: 50, reason: domain.ReasonWalletInsufficient},
		{name: "empty", wallet: 0, reason: domain.ReasonWalletEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchestratorFixture()
			c := f.seed(t, decimalPtr(tt.wallet))

			result, err := f.orch.Submit(context.Background(), c.ID, "42")
			require.NoError(t, err)

			assert.Equal(t, domain.CheckoutFailedRecoverable, result.State)
			assert.Equal(t, tt.reason, result.Reason)
			assert.Equal(t, 0, f.backend.Submissions())
			assert.Equal(t, 0, result.Attempts)
			assert.Len(t, f.events.Published(), 1)
		})
	}
}

func TestPaymentOrchestrator_ConcurrentSubmitReachesBackendOnce(t *testing.T) {
	f := newOrchestratorFixture()
	c := f.seed(t, decimalPtr(100))

	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.RegisterSessionsFunc = func(ctx context.Context, req *gateway.MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
		close(entered)
		<-release
		return &domain.BookingResult{TotalAmount: decimal.NewFromInt(87)}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Submit(context.Background(), c.ID, "42")
		done <- err
	}()

	<-entered
	_, err := f.orch.Submit(context.Background(), c.ID, "42")
	assert.ErrorIs(t, err, domain.ErrSubmissionInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.backend.Submissions())

	_, err = f.orch.Submit(context.Background(), c.ID, "42")
	assert.ErrorIs(t, err, domain.ErrAlreadySubmitted)
	assert.Equal(t, 1, f.backend.Submissions())
}

func TestPaymentOrchestrator_BackendInsufficientBalanceSwitchesToCard(t *testing.T) {
	f := newOrchestratorFixture()
	c := f.seed(t, decimalPtr(100))

	var calls atomic.Int32
	var methods []string
	f.backend.RegisterSessionsFunc = func(ctx context.Context, req *gateway.MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
		methods = append(methods, req.PaymentMethod)
		if calls.Add(1) == 1 {
			return nil, &gateway.BackendError{Status: http.StatusBadRequest, Message: "Insufficient wallet balance"}
		}
		return &domain.BookingResult{TotalAmount: decimal.NewFromInt(87)}, nil
	}

	result, err := f.orch.Submit(context.Background(), c.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutFailedRecoverable, result.State)
	assert.Equal(t, domain.ReasonWalletInsufficient, result.Reason)
	assert.Equal(t, "Insufficient wallet balance", result.Message)
	assert.Equal(t, domain.FundingCard, result.Method)

	result, err = f.orch.Submit(context.Background(), c.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutSucceeded, result.State)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, []string{"wallet", "card"}, methods)
}

func TestPaymentOrchestrator_RecoverableBackendFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason domain.ReasonCode
	}{
		{
			name:   "session filled concurrently",
			err:    &gateway.BackendError{Status: http.StatusConflict, Code: "SESSION_FULL", Message: "Session is full"},
			reason: domain.ReasonSessionUnavailable,
		},
		{
			name:   "already registered",
			err:    &gateway.BackendError{Status: http.StatusConflict, Message: "You are already registered for this session"},
			reason: domain.ReasonAlreadyRegistered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchestratorFixture()
			c := f.seed(t, nil)
			f.backend.RegisterSessionsFunc = func(ctx context.Context, req *gateway.MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
				return nil, tt.err
			}

			result, err := f.orch.Submit(context.Background(), c.ID, "42")
			require.NoError(t, err)
			assert.Equal(t, domain.CheckoutFailedRecoverable, result.State)
			assert.Equal(t, tt.reason, result.Reason)
			assert.True(t, result.IsEditable())
		})
	}
}

func TestPaymentOrchestrator_FatalFailureKeepsBackendMessage(t *testing.T) {
	f := newOrchestratorFixture()
	c := f.seed(t, nil)
	f.backend.RegisterSessionsFunc = func(ctx context.Context, req *gateway.MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
		return nil, &gateway.BackendError{Status: http.StatusInternalServerError, Message: "Ledger write failed (ref 7781)"}
	}

	result, err := f.orch.Submit(context.Background(), c.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutFailedFatal, result.State)
	assert.Equal(t, domain.ReasonBackendError, result.Reason)
	assert.Equal(t, "Ledger write failed (ref 7781)", result.Message)

	_, err = f.orch.Submit(context.Background(), c.ID, "42")
	assert.ErrorIs(t, err, domain.ErrCheckoutClosed)
	assert.Equal(t, 1, f.backend.Submissions())

	published := f.events.Published()
	require.Len(t, published, 1)
	assert.Equal(t, domain.CheckoutFailedFatal, published[0].State)
}

func TestPaymentOrchestrator_ServerErrorTextIsNotSessionLoss(t *testing.T) {
	f := newOrchestratorFixture()
	c := f.seed(t, nil)
	f.backend.RegisterSessionsFunc = func(ctx context.Context, req *gateway.MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
		return nil, &gateway.BackendError{Status: http.StatusServiceUnavailable, Message: "Service Unavailable"}
	}

	result, err := f.orch.Submit(context.Background(), c.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutFailedFatal, result.State)
	assert.Equal(t, domain.ReasonBackendError, result.Reason)
	assert.Equal(t, "Service Unavailable", result.Message)
}

func TestPaymentOrchestrator_UnauthorizedSkipsRefresh(t *testing.T) {
	f := newOrchestratorFixture()
	c := f.seed(t, decimalPtr(100))

	var balanceReads atomic.Int32
	f.backend.GetWalletBalanceFunc = func(ctx context.Context) (decimal.Decimal, error) {
		balanceReads.Add(1)
		return decimal.NewFromInt(100), nil
	}
	f.backend.RegisterSessionsFunc = func(ctx context.Context, req *gateway.MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
		return nil, &gateway.BackendError{Status: http.StatusUnauthorized, Message: "Token expired"}
	}

	result, err := f.orch.Submit(context.Background(), c.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutFailedFatal, result.State)
	assert.Equal(t, domain.ReasonUnauthorized, result.Reason)
	assert.Equal(t, int32(0), balanceReads.Load())
}

func TestPaymentOrchestrator_FailedRefreshLeavesBalanceUnknown(t *testing.T) {
	f := newOrchestratorFixture()
	c := f.seed(t, decimalPtr(100))

	f.backend.RegisterSessionsFunc = func(ctx context.Context, req *gateway.MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
		return nil, &gateway.BackendError{Status: http.StatusGone, Message: "Session is no longer available"}
	}
	f.backend.GetWalletBalanceFunc = func(ctx context.Context) (decimal.Decimal, error) {
		return decimal.Zero, gateway.ErrBackendUnavailable
	}

	result, err := f.orch.Submit(context.Background(), c.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonSessionUnavailable, result.Reason)
	assert.Nil(t, result.WalletBalance)
	assert.Nil(t, f.stored(t, c.ID).WalletBalance)
}

func TestPaymentOrchestrator_CancelledSubmissionResumes(t *testing.T) {
	f := newOrchestratorFixture()
	c := f.seed(t, decimalPtr(100))

	ctx, cancel := context.WithCancel(context.Background())
	f.backend.RegisterSessionsFunc = func(ctx context.Context, req *gateway.MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
		cancel()
		return nil, ctx.Err()
	}

	_, err := f.orch.Submit(ctx, c.ID, "42")
	assert.ErrorIs(t, err, context.Canceled)

	stored := f.stored(t, c.ID)
	assert.Equal(t, domain.CheckoutIdle, stored.State)
	assert.Empty(t, stored.IntentID)
	assert.Nil(t, stored.Result)
	assert.Empty(t, f.events.Published())
}

func TestPaymentOrchestrator_ConfirmedBookingSurvivesCancel(t *testing.T) {
	f := newOrchestratorFixture()
	c := f.seed(t, decimalPtr(100))

	ctx, cancel := context.WithCancel(context.Background())
	f.backend.RegisterSessionsFunc = func(ctx context.Context, req *gateway.MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
		cancel()
		return &domain.BookingResult{RegistrationIDs: req.SessionIDs, TotalAmount: decimal.RequireFromString("87.00")}, nil
	}

	result, err := f.orch.Submit(ctx, c.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutSucceeded, result.State)

	stored := f.stored(t, c.ID)
	assert.Equal(t, domain.CheckoutSucceeded, stored.State)
	require.NotNil(t, stored.Result)
	assert.Len(t, f.events.Published(), 1)

	_, err = f.orch.Submit(context.Background(), c.ID, "42")
	assert.ErrorIs(t, err, domain.ErrAlreadySubmitted)
	assert.Equal(t, 1, f.backend.Submissions())
}

func TestPaymentOrchestrator_RejectsBeforeSubmitting(t *testing.T) {
	t.Run("other member", func(t *testing.T) {
		f := newOrchestratorFixture()
		c := f.seed(t, decimalPtr(100))
		_, err := f.orch.Submit(context.Background(), c.ID, "7")
		assert.ErrorIs(t, err, domain.ErrCheckoutOwnerMismatch)
	})

	t.Run("unknown checkout", func(t *testing.T) {
		f := newOrchestratorFixture()
		_, err := f.orch.Submit(context.Background(), "missing", "42")
		assert.ErrorIs(t, err, domain.ErrCheckoutNotFound)
	})

	t.Run("wallet with unknown balance", func(t *testing.T) {
		f := newOrchestratorFixture()
		c := f.seed(t, nil)
		c.Method = domain.FundingWallet
		require.NoError(t, f.repo.Save(context.Background(), c))

		_, err := f.orch.Submit(context.Background(), c.ID, "42")
		assert.ErrorIs(t, err, domain.ErrWalletBalanceUnknown)
		assert.Equal(t, domain.CheckoutIdle, f.stored(t, c.ID).State)
		assert.Equal(t, 0, f.backend.Submissions())
	})

	t.Run("voucher checked without selection", func(t *testing.T) {
		f := newOrchestratorFixture()
		c := f.seed(t, decimalPtr(100))
		c.UseVoucher = true
		require.NoError(t, f.repo.Save(context.Background(), c))

		_, err := f.orch.Submit(context.Background(), c.ID, "42")
		assert.ErrorIs(t, err, domain.ErrVoucherRequired)
		assert.Equal(t, 0, f.backend.Submissions())
	})

	t.Run("expired checkout", func(t *testing.T) {
		f := newOrchestratorFixture()
		c, err := domain.NewCheckout("42", groupTarget(t), domain.EquipmentSelection{}, nil, nil, "MYR", time.Now().Add(-time.Hour), time.Minute)
		require.NoError(t, err)
		require.NoError(t, f.repo.Save(context.Background(), c))

		_, err = f.orch.Submit(context.Background(), c.ID, "42")
		assert.ErrorIs(t, err, domain.ErrCheckoutExpired)
	})
}

func TestPaymentOrchestrator_PublishFailureDoesNotChangeOutcome(t *testing.T) {
	f := newOrchestratorFixture()
	f.events.publishErr = errors.New("broker down")
	c := f.seed(t, decimalPtr(100))

	result, err := f.orch.Submit(context.Background(), c.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutSucceeded, result.State)
}

func TestWalletShortfall(t *testing.T) {
	total := decimal.NewFromInt(82)

	reason, ok := walletShortfall(decimal.NewFromInt(100), total)
	assert.True(t, ok)
	assert.Empty(t, reason)

	reason, ok = walletShortfall(decimal.NewFromInt(82), total)
	assert.True(t, ok)
	assert.Empty(t, reason)

	reason, ok = walletShortfall(decimal.RequireFromString("81.99"), total)
	assert.False(t, ok)
	assert.Equal(t, domain.ReasonWalletInsufficient, reason)

	reason, ok = walletShortfall(decimal.Zero, total)
	assert.False(t, ok)
	assert.Equal(t, domain.ReasonWalletEmpty, reason)

	reason, ok = walletShortfall(decimal.Zero, decimal.Zero)
	assert.True(t, ok)
	assert.Empty(t, reason)
}
