package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/gateway"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/metrics"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/repository"
	"github.com/prohmpiriya/class-checkout/pkg/logger"
	"github.com/prohmpiriya/class-checkout/pkg/telemetry"
)

// PaymentOrchestrator drives one payment attempt per Submit call:
// IDLE -> VALIDATING -> SUBMITTING -> SUCCEEDED | FAILED_RECOVERABLE | FAILED_FATAL.
// Nothing is marked booked until the backend confirms.
type PaymentOrchestrator struct {
	repo     repository.CheckoutRepository
	backend  gateway.BookingBackend
	pricing  *PriceCalculator
	events   EventPublisher
	log      *logger.Logger
	lockTTL  time.Duration
	inflight sync.Map
	now      func() time.Time
}

// OrchestratorConfig contains configuration for the orchestrator
type OrchestratorConfig struct {
	// SubmitLockTTL bounds how long a crashed submission blocks retries
	SubmitLockTTL time.Duration
	Logger        *logger.Logger
}

// NewPaymentOrchestrator creates a payment orchestrator
func NewPaymentOrchestrator(
	repo repository.CheckoutRepository,
	backend gateway.BookingBackend,
	pricing *PriceCalculator,
	events EventPublisher,
	cfg *OrchestratorConfig,
) *PaymentOrchestrator {
	lockTTL := 60 * time.Second
	log := logger.Get()
	if cfg != nil {
		if cfg.SubmitLockTTL > 0 {
			lockTTL = cfg.SubmitLockTTL
		}
		if cfg.Logger != nil {
			log = cfg.Logger
		}
	}
	if events == nil {
		events = NewNoOpEventPublisher()
	}
	return &PaymentOrchestrator{
		repo:    repo,
		backend: backend,
		pricing: pricing,
		events:  events,
		log:     log,
		lockTTL: lockTTL,
		now:     time.Now,
	}
}

// Submit validates and submits the checkout. A second call while an attempt
// is pending returns ErrSubmissionInProgress without contacting the backend.
// Failures the member can act on are reported through the returned
// checkout's state and reason, not as an error.
func (o *PaymentOrchestrator) Submit(ctx context.Context, checkoutID string, userID domain.UserID) (*domain.Checkout, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.orchestrator.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("checkout_id", checkoutID),
		attribute.String("user_id", userID.String()),
	)

	if _, busy := o.inflight.LoadOrStore(checkoutID, struct{}{}); busy {
		return nil, domain.ErrSubmissionInProgress
	}
	defer o.inflight.Delete(checkoutID)

	token := uuid.NewString()
	locked, err := o.repo.AcquireSubmitLock(ctx, checkoutID, token, o.lockTTL)
	if err != nil {
		span.SetStatus(codes.Error, "lock failed")
		return nil, fmt.Errorf("failed to lock checkout: %w", err)
	}
	if !locked {
		return nil, domain.ErrSubmissionInProgress
	}
	defer func() {
		if err := o.repo.ReleaseSubmitLock(context.WithoutCancel(ctx), checkoutID, token); err != nil {
			o.log.WarnContext(ctx, "failed to release submit lock", zap.String("checkout_id", checkoutID), zap.Error(err))
		}
	}()

	c, err := o.repo.Get(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if !c.BelongsTo(userID) {
		return nil, domain.ErrCheckoutOwnerMismatch
	}
	if c.IsExpired(o.now()) {
		return nil, domain.ErrCheckoutExpired
	}

	if c.State == domain.CheckoutSubmitting {
		// holding the lock means the instance that left it SUBMITTING is gone
		o.log.WarnContext(ctx, "discarding abandoned submission",
			zap.String("checkout_id", c.ID),
			zap.String("intent_id", c.IntentID),
		)
		_ = c.CancelSubmission(o.now())
	}

	if err := c.BeginValidation(o.now()); err != nil {
		return nil, err
	}

	voucher, err := o.validate(c)
	if err != nil {
		_ = c.AbortValidation(o.now())
		metrics.RecordSubmitRejection(rejectionLabel(err))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if c.Method == domain.FundingWallet {
		if reason, ok := walletShortfall(*c.WalletBalance, c.Quote.Total); !ok {
			_ = c.FailRecoverable(reason, walletMessage(reason), o.now())
			metrics.RecordSubmitRejection(string(reason))
			return o.finish(ctx, c)
		}
	}

	intent, err := domain.BuildIntent(c.Target, c.Equipment, c.Method, voucher)
	if err != nil {
		_ = c.AbortValidation(o.now())
		return nil, err
	}
	if err := c.BeginSubmission(intent.IntentID(), o.now()); err != nil {
		return nil, err
	}
	if err := o.repo.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}

	o.log.InfoContext(ctx, "submitting booking intent",
		zap.String("checkout_id", c.ID),
		zap.String("intent_id", intent.IntentID()),
		zap.String("target", string(intent.Kind())),
		zap.String("method", string(intent.Method())),
		zap.String("quoted_total", c.Quote.Total.StringFixed(2)),
	)

	result, submitErr := gateway.Submit(ctx, o.backend, intent)

	if submitErr != nil && ctx.Err() != nil {
		// the caller went away before the backend answered; the pending
		// result is discarded and nothing is sent to undo it. A confirmed
		// booking is always recorded below.
		_ = c.CancelSubmission(o.now())
		if err := o.repo.Save(context.WithoutCancel(ctx), c); err != nil {
			o.log.ErrorContext(ctx, "failed to save cancelled checkout", zap.String("checkout_id", c.ID), zap.Error(err))
		}
		return nil, ctx.Err()
	}

	o.applyOutcome(c, result, submitErr)
	o.refreshSnapshots(context.WithoutCancel(ctx), c)
	return o.finish(ctx, c)
}

// validate recomputes the quote and checks the inputs that must be settled
// before anything is sent. It returns the voucher to redeem, if any.
func (o *PaymentOrchestrator) validate(c *domain.Checkout) (*domain.Voucher, error) {
	if !c.Method.Valid() {
		return nil, domain.ErrFundingMethodRequired
	}

	var voucher *domain.Voucher
	if c.UseVoucher {
		if c.Voucher == nil {
			return nil, domain.ErrVoucherRequired
		}
		if c.Voucher.IsExpired(o.now()) {
			return nil, domain.ErrVoucherExpired
		}
		voucher = c.Voucher
	}

	quote, err := o.pricing.ComputeTotal(c.Target, c.Equipment, voucher)
	if err != nil {
		return nil, err
	}
	c.Quote = quote

	if c.Method == domain.FundingWallet && !c.HasWalletBalance() {
		return nil, domain.ErrWalletBalanceUnknown
	}
	return voucher, nil
}

func (o *PaymentOrchestrator) applyOutcome(c *domain.Checkout, result *domain.BookingResult, err error) {
	now := o.now()
	if err == nil {
		if result == nil {
			result = &domain.BookingResult{}
		}
		_ = c.Succeed(*result, now)
		return
	}

	message := err.Error()
	if be, ok := gateway.AsBackendError(err); ok {
		message = be.Message
	}

	switch {
	case gateway.IsInsufficientBalance(err):
		_ = c.FailRecoverable(domain.ReasonWalletInsufficient, message, now)
		c.ForceMethod(domain.FundingCard)
	case gateway.IsAlreadyRegistered(err):
		_ = c.FailRecoverable(domain.ReasonAlreadyRegistered, message, now)
	case gateway.IsSessionUnavailable(err):
		_ = c.FailRecoverable(domain.ReasonSessionUnavailable, message, now)
	case gateway.IsUnauthorized(err):
		_ = c.FailFatal(domain.ReasonUnauthorized, message, now)
	default:
		_ = c.FailFatal(domain.ReasonBackendError, message, now)
	}
}

// refreshSnapshots re-reads wallet balance and vouchers after an attempt. A
// failed balance read leaves the balance unknown rather than stale.
func (o *PaymentOrchestrator) refreshSnapshots(ctx context.Context, c *domain.Checkout) {
	if c.Reason == domain.ReasonUnauthorized {
		return
	}

	balance, err := o.backend.GetWalletBalance(ctx)
	if err != nil {
		o.log.WarnContext(ctx, "wallet balance refresh failed", zap.String("checkout_id", c.ID), zap.Error(err))
		c.ApplyWalletBalance(nil, o.now())
	} else {
		c.ApplyWalletBalance(&balance, o.now())
	}

	if !c.Target.AcceptsVoucher() {
		return
	}
	vouchers, err := o.backend.ListActiveVouchers(ctx)
	if err != nil {
		o.log.WarnContext(ctx, "voucher refresh failed", zap.String("checkout_id", c.ID), zap.Error(err))
		return
	}
	c.Vouchers = vouchers
}

// finish stores the outcome, then publishes and records it
func (o *PaymentOrchestrator) finish(ctx context.Context, c *domain.Checkout) (*domain.Checkout, error) {
	saveCtx := context.WithoutCancel(ctx)
	if err := o.repo.Save(saveCtx, c); err != nil {
		o.log.ErrorContext(ctx, "failed to save checkout outcome",
			zap.String("checkout_id", c.ID),
			zap.String("state", string(c.State)),
			zap.Error(err),
		)
		return c, fmt.Errorf("failed to save checkout outcome: %w", err)
	}

	if err := o.events.PublishOutcome(saveCtx, c); err != nil {
		metrics.EventPublishFailures.Inc()
		o.log.WarnContext(ctx, "failed to publish checkout outcome", zap.String("checkout_id", c.ID), zap.Error(err))
	}
	metrics.RecordCheckoutOutcome(string(c.State), string(c.Reason))

	fields := []zap.Field{
		zap.String("checkout_id", c.ID),
		zap.String("state", string(c.State)),
		zap.String("reason", string(c.Reason)),
		zap.Int("attempt", c.Attempts),
	}
	switch c.State {
	case domain.CheckoutSucceeded:
		o.log.InfoContext(ctx, "checkout succeeded", append(fields, zap.String("paid_total", c.Result.TotalAmount.String()))...)
	case domain.CheckoutFailedRecoverable:
		o.log.WarnContext(ctx, "checkout attempt failed, member can retry", append(fields, zap.String("message", c.Message))...)
	default:
		o.log.ErrorContext(ctx, "checkout failed", append(fields, zap.String("message", c.Message))...)
	}
	return c, nil
}

// walletShortfall checks a known balance against the total. A free booking
// needs no funds.
func walletShortfall(balance, total decimal.Decimal) (domain.ReasonCode, bool) {
	switch {
	case total.Sign() <= 0:
		return "", true
	case balance.Sign() <= 0:
		return domain.ReasonWalletEmpty, false
	case balance.LessThan(total):
		return domain.ReasonWalletInsufficient, false
	default:
		return "", true
	}
}

func walletMessage(reason domain.ReasonCode) string {
	if reason == domain.ReasonWalletEmpty {
		return "Your wallet is empty. Top up or pay by card."
	}
	return "Your wallet balance is not enough for this booking. Top up or pay by card."
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrFundingMethodRequired):
		return "NO_FUNDING_METHOD"
	case errors.Is(err, domain.ErrVoucherRequired):
		return "NO_VOUCHER"
	case errors.Is(err, domain.ErrVoucherExpired):
		return "VOUCHER_EXPIRED"
	case errors.Is(err, domain.ErrWalletBalanceUnknown):
		return "WALLET_UNKNOWN"
	default:
		return "INVALID_INPUT"
	}
}
