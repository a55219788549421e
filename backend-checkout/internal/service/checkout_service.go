package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/dto"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/gateway"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/metrics"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/repository"
	"github.com/prohmpiriya/class-checkout/pkg/logger"
	"github.com/prohmpiriya/class-checkout/pkg/telemetry"
)

// CheckoutService defines the interface for checkout business logic
type CheckoutService interface {
	// StartCheckout opens a checkout for a booking target
	StartCheckout(ctx context.Context, userID string, req *dto.StartCheckoutRequest) (*dto.CheckoutResponse, error)

	// GetCheckout retrieves a checkout owned by the user
	GetCheckout(ctx context.Context, checkoutID, userID string) (*dto.CheckoutResponse, error)

	// UpdateEquipment replaces the add-on selection
	UpdateEquipment(ctx context.Context, checkoutID, userID string, req *dto.EquipmentRequest) (*dto.CheckoutResponse, error)

	// SelectVoucher applies a voucher from the checkout's snapshot
	SelectVoucher(ctx context.Context, checkoutID, userID string, req *dto.SelectVoucherRequest) (*dto.CheckoutResponse, error)

	// ClearVoucher removes the applied voucher
	ClearVoucher(ctx context.Context, checkoutID, userID string) (*dto.CheckoutResponse, error)

	// SelectFundingMethod chooses wallet or card
	SelectFundingMethod(ctx context.Context, checkoutID, userID string, req *dto.SelectFundingMethodRequest) (*dto.CheckoutResponse, error)

	// RefreshWallet re-reads the wallet balance and vouchers from the backend
	RefreshWallet(ctx context.Context, checkoutID, userID string) (*dto.CheckoutResponse, error)

	// Submit pays for the checkout
	Submit(ctx context.Context, checkoutID, userID string) (*dto.CheckoutResponse, error)

	// Abandon discards the checkout
	Abandon(ctx context.Context, checkoutID, userID string) error

	// Quote prices a target without opening a checkout
	Quote(ctx context.Context, userID string, req *dto.QuoteRequest) (*dto.QuoteResponse, error)
}

// CheckoutSubmitter runs one payment attempt
type CheckoutSubmitter interface {
	Submit(ctx context.Context, checkoutID string, userID domain.UserID) (*domain.Checkout, error)
}

// checkoutService implements CheckoutService
type checkoutService struct {
	repo         repository.CheckoutRepository
	backend      gateway.BookingBackend
	pricing      *PriceCalculator
	submitter    CheckoutSubmitter
	log          *logger.Logger
	ttl          time.Duration
	editLockTTL  time.Duration
	searchWindow time.Duration
	currency     string
	now          func() time.Time
}

// CheckoutServiceConfig contains configuration for the checkout service
type CheckoutServiceConfig struct {
	CheckoutTTL time.Duration
	// EditLockTTL bounds how long an edit holds the submit lock
	EditLockTTL     time.Duration
	SearchWindow    time.Duration
	DefaultCurrency string
	Logger          *logger.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	repo repository.CheckoutRepository,
	backend gateway.BookingBackend,
	pricing *PriceCalculator,
	submitter CheckoutSubmitter,
	cfg *CheckoutServiceConfig,
) CheckoutService {
	ttl := 15 * time.Minute
	editLockTTL := 60 * time.Second
	window := 30 * 24 * time.Hour
	currency := "MYR"
	log := logger.Get()
	if cfg != nil {
		if cfg.CheckoutTTL > 0 {
			ttl = cfg.CheckoutTTL
		}
		if cfg.EditLockTTL > 0 {
			editLockTTL = cfg.EditLockTTL
		}
		if cfg.SearchWindow > 0 {
			window = cfg.SearchWindow
		}
		if cfg.DefaultCurrency != "" {
			currency = cfg.DefaultCurrency
		}
		if cfg.Logger != nil {
			log = cfg.Logger
		}
	}
	return &checkoutService{
		repo:         repo,
		backend:      backend,
		pricing:      pricing,
		submitter:    submitter,
		log:          log,
		ttl:          ttl,
		editLockTTL:  editLockTTL,
		searchWindow: window,
		currency:     currency,
		now:          time.Now,
	}
}

// StartCheckout resolves the target, snapshots wallet and vouchers and
// stores an IDLE checkout with its initial quote
func (s *checkoutService) StartCheckout(ctx context.Context, userID string, req *dto.StartCheckoutRequest) (*dto.CheckoutResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.checkout.start")
	defer span.End()

	uid := domain.NormalizeUserID(userID)
	if uid.IsZero() {
		return nil, domain.ErrInvalidUserID
	}
	if req == nil {
		return nil, domain.ErrInvalidTarget
	}
	eq := req.Equipment.ToDomain()
	if err := eq.Validate(); err != nil {
		return nil, err
	}

	target, state, err := s.resolveTarget(ctx, uid, &req.Target)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !state.CanBook() {
		span.SetStatus(codes.Error, string(state))
		return nil, state.Err()
	}
	span.SetAttributes(
		attribute.String("user_id", uid.String()),
		attribute.String("target_kind", string(target.Kind)),
	)

	wallet := s.readWallet(ctx)
	vouchers := s.readVouchers(ctx, target)

	c, err := domain.NewCheckout(uid, target, eq, wallet, vouchers, s.currency, s.now(), s.ttl)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricing.ComputeTotal(c.Target, c.Equipment, nil)
	if err != nil {
		return nil, err
	}
	c.Quote = quote
	metrics.QuotesComputed.WithLabelValues(string(target.Kind)).Inc()

	if err := s.repo.Save(ctx, c); err != nil {
		span.SetStatus(codes.Error, "save failed")
		return nil, fmt.Errorf("failed to save checkout: %w", err)
	}
	metrics.CheckoutsStarted.WithLabelValues(string(target.Kind)).Inc()

	s.log.InfoContext(ctx, "checkout started",
		zap.String("checkout_id", c.ID),
		zap.String("user_id", uid.String()),
		zap.String("target", target.Description()),
		zap.String("method", string(c.Method)),
		zap.String("total", c.Quote.Total.StringFixed(2)),
	)
	return dto.NewCheckoutResponse(c), nil
}

// GetCheckout retrieves a checkout owned by the user
func (s *checkoutService) GetCheckout(ctx context.Context, checkoutID, userID string) (*dto.CheckoutResponse, error) {
	c, err := s.load(ctx, checkoutID, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewCheckoutResponse(c), nil
}

// UpdateEquipment replaces the add-on selection and re-prices
func (s *checkoutService) UpdateEquipment(ctx context.Context, checkoutID, userID string, req *dto.EquipmentRequest) (*dto.CheckoutResponse, error) {
	if req == nil {
		return nil, domain.ErrInvalidEquipment
	}
	eq := req.ToDomain()
	return s.edit(ctx, checkoutID, userID, func(c *domain.Checkout) error {
		if err := eq.Validate(); err != nil {
			return err
		}
		c.Equipment = eq
		return nil
	})
}

// SelectVoucher applies a voucher. Only vouchers in the checkout's snapshot
// that have not expired are accepted, and only court bookings take one.
func (s *checkoutService) SelectVoucher(ctx context.Context, checkoutID, userID string, req *dto.SelectVoucherRequest) (*dto.CheckoutResponse, error) {
	if req == nil || req.VoucherID == "" {
		return nil, domain.ErrVoucherRequired
	}
	return s.edit(ctx, checkoutID, userID, func(c *domain.Checkout) error {
		if !c.Target.AcceptsVoucher() {
			return domain.ErrVoucherNotApplicable
		}
		v, ok := domain.FindVoucher(c.Vouchers, req.VoucherID)
		if !ok {
			return domain.ErrVoucherNotFound
		}
		if v.IsExpired(s.now()) {
			return domain.ErrVoucherExpired
		}
		c.Voucher = &v
		c.UseVoucher = true
		return nil
	})
}

// ClearVoucher removes the applied voucher
func (s *checkoutService) ClearVoucher(ctx context.Context, checkoutID, userID string) (*dto.CheckoutResponse, error) {
	return s.edit(ctx, checkoutID, userID, func(c *domain.Checkout) error {
		c.Voucher = nil
		c.UseVoucher = false
		return nil
	})
}

// SelectFundingMethod chooses how the checkout is paid. Selecting the wallet
// while its balance is unknown is allowed here and rejected at submit.
func (s *checkoutService) SelectFundingMethod(ctx context.Context, checkoutID, userID string, req *dto.SelectFundingMethodRequest) (*dto.CheckoutResponse, error) {
	if req == nil {
		return nil, domain.ErrFundingMethodRequired
	}
	method, err := domain.ParseFundingMethod(req.Method)
	if err != nil {
		return nil, err
	}
	return s.edit(ctx, checkoutID, userID, func(c *domain.Checkout) error {
		c.Method = method
		return nil
	})
}

// RefreshWallet replaces the wallet and voucher snapshots with fresh reads.
// A failed balance read leaves the balance unknown. A selected voucher that
// is no longer active is dropped. The reads run before the lock is taken so
// a slow backend never holds it.
func (s *checkoutService) RefreshWallet(ctx context.Context, checkoutID, userID string) (*dto.CheckoutResponse, error) {
	current, err := s.load(ctx, checkoutID, userID)
	if err != nil {
		return nil, err
	}
	if !current.IsEditable() {
		return nil, domain.ErrCheckoutNotEditable
	}

	balance := s.readWallet(ctx)
	var vouchers []domain.Voucher
	vouchersRead := false
	if current.Target.AcceptsVoucher() {
		vouchers, err = s.backend.ListActiveVouchers(ctx)
		if err != nil {
			s.log.WarnContext(ctx, "voucher refresh failed", zap.String("checkout_id", checkoutID), zap.Error(err))
		} else {
			vouchersRead = true
		}
	}

	return s.edit(ctx, checkoutID, userID, func(c *domain.Checkout) error {
		c.ApplyWalletBalance(balance, s.now())
		if !vouchersRead {
			return nil
		}
		c.Vouchers = vouchers
		if c.Voucher != nil {
			if _, ok := domain.FindVoucher(vouchers, c.Voucher.ID); !ok {
				c.Voucher = nil
				c.UseVoucher = false
			}
		}
		return nil
	})
}

// Submit pays for the checkout
func (s *checkoutService) Submit(ctx context.Context, checkoutID, userID string) (*dto.CheckoutResponse, error) {
	uid := domain.NormalizeUserID(userID)
	if uid.IsZero() {
		return nil, domain.ErrInvalidUserID
	}
	c, err := s.submitter.Submit(ctx, checkoutID, uid)
	if err != nil {
		return nil, err
	}
	return dto.NewCheckoutResponse(c), nil
}

// Abandon discards the checkout without contacting the backend. An expired
// checkout can still be abandoned.
func (s *checkoutService) Abandon(ctx context.Context, checkoutID, userID string) error {
	uid := domain.NormalizeUserID(userID)
	if uid.IsZero() {
		return domain.ErrInvalidUserID
	}

	token := uuid.NewString()
	locked, err := s.repo.AcquireSubmitLock(ctx, checkoutID, token, s.editLockTTL)
	if err != nil {
		return fmt.Errorf("failed to lock checkout: %w", err)
	}
	if !locked {
		return domain.ErrSubmissionInProgress
	}
	defer s.unlock(ctx, checkoutID, token)

	c, err := s.repo.Get(ctx, checkoutID)
	if err != nil {
		return err
	}
	if !c.BelongsTo(uid) {
		return domain.ErrCheckoutOwnerMismatch
	}
	if err := s.repo.Delete(ctx, checkoutID); err != nil {
		return fmt.Errorf("failed to delete checkout: %w", err)
	}

	s.log.InfoContext(ctx, "checkout abandoned",
		zap.String("checkout_id", checkoutID),
		zap.String("state", string(c.State)),
	)
	return nil
}

// Quote prices a target without storing anything. A voucher is looked up in
// the member's live active vouchers.
func (s *checkoutService) Quote(ctx context.Context, userID string, req *dto.QuoteRequest) (*dto.QuoteResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.checkout.quote")
	defer span.End()

	uid := domain.NormalizeUserID(userID)
	if uid.IsZero() {
		return nil, domain.ErrInvalidUserID
	}
	if req == nil {
		return nil, domain.ErrInvalidTarget
	}

	target, _, err := s.resolveTarget(ctx, uid, &req.Target)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var voucher *domain.Voucher
	if req.VoucherID != "" {
		if !target.AcceptsVoucher() {
			return nil, domain.ErrVoucherNotApplicable
		}
		vouchers, err := s.backend.ListActiveVouchers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list vouchers: %w", err)
		}
		v, ok := domain.FindVoucher(vouchers, req.VoucherID)
		if !ok {
			return nil, domain.ErrVoucherNotFound
		}
		if v.IsExpired(s.now()) {
			return nil, domain.ErrVoucherExpired
		}
		voucher = &v
	}

	quote, err := s.pricing.ComputeTotal(target, req.Equipment.ToDomain(), voucher)
	if err != nil {
		return nil, err
	}
	metrics.QuotesComputed.WithLabelValues(string(target.Kind)).Inc()

	resp := dto.NewQuoteResponse(quote, s.currency)
	return &resp, nil
}

// load fetches a live checkout owned by the user
func (s *checkoutService) load(ctx context.Context, checkoutID, userID string) (*domain.Checkout, error) {
	uid := domain.NormalizeUserID(userID)
	if uid.IsZero() {
		return nil, domain.ErrInvalidUserID
	}
	c, err := s.repo.Get(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if !c.BelongsTo(uid) {
		return nil, domain.ErrCheckoutOwnerMismatch
	}
	if c.IsExpired(s.now()) {
		return nil, domain.ErrCheckoutExpired
	}
	return c, nil
}

// edit applies a change to an editable checkout under the submit lock and
// re-prices it. The checkout is loaded after the lock is taken and apply must
// not call the backend. Nothing is stored when the change or the re-pricing
// fails.
func (s *checkoutService) edit(ctx context.Context, checkoutID, userID string, apply func(c *domain.Checkout) error) (*dto.CheckoutResponse, error) {
	token := uuid.NewString()
	locked, err := s.repo.AcquireSubmitLock(ctx, checkoutID, token, s.editLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock checkout: %w", err)
	}
	if !locked {
		return nil, domain.ErrSubmissionInProgress
	}
	defer s.unlock(ctx, checkoutID, token)

	c, err := s.load(ctx, checkoutID, userID)
	if err != nil {
		return nil, err
	}
	if !c.IsEditable() {
		return nil, domain.ErrCheckoutNotEditable
	}

	if err := apply(c); err != nil {
		return nil, err
	}

	var voucher *domain.Voucher
	if c.UseVoucher {
		voucher = c.Voucher
	}
	quote, err := s.pricing.ComputeTotal(c.Target, c.Equipment, voucher)
	if err != nil {
		return nil, err
	}
	c.Quote = quote
	c.UpdatedAt = s.now()
	metrics.QuotesComputed.WithLabelValues(string(c.Target.Kind)).Inc()

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save checkout: %w", err)
	}
	return dto.NewCheckoutResponse(c), nil
}

func (s *checkoutService) unlock(ctx context.Context, checkoutID, token string) {
	err := s.repo.ReleaseSubmitLock(context.WithoutCancel(ctx), checkoutID, token)
	if err != nil && !errors.Is(err, repository.ErrLockNotHeld) {
		s.log.WarnContext(ctx, "failed to release checkout lock", zap.String("checkout_id", checkoutID), zap.Error(err))
	}
}

// resolveTarget builds a booking target from the request. Class-session and
// group targets are read fresh from the backend and carry the acting user's
// eligibility; every other kind is bookable as given.
func (s *checkoutService) resolveTarget(ctx context.Context, uid domain.UserID, req *dto.TargetRequest) (domain.BookingTarget, domain.EligibilityState, error) {
	switch domain.TargetKind(req.Kind) {
	case domain.TargetClassSession:
		if req.SessionID == "" {
			return domain.BookingTarget{}, "", fmt.Errorf("%w: session_id is required", domain.ErrInvalidTarget)
		}
		groups, err := s.fetch(ctx, req)
		if err != nil {
			return domain.BookingTarget{}, "", err
		}
		o, _, ok := FindOccurrence(groups, req.SessionID)
		if !ok {
			return domain.BookingTarget{}, "", domain.ErrSessionNotFound
		}
		target, err := domain.NewClassSessionTarget(o)
		if err != nil {
			return domain.BookingTarget{}, "", err
		}
		single, err := target.Group()
		if err != nil {
			return domain.BookingTarget{}, "", err
		}
		return target, EvaluateEligibility(single, uid), nil

	case domain.TargetSessionGroup:
		if req.GroupKey == "" {
			return domain.BookingTarget{}, "", fmt.Errorf("%w: group_key is required", domain.ErrInvalidTarget)
		}
		groups, err := s.fetch(ctx, req)
		if err != nil {
			return domain.BookingTarget{}, "", err
		}
		g, ok := FindGroup(groups, req.GroupKey)
		if !ok {
			return domain.BookingTarget{}, "", domain.ErrGroupNotFound
		}
		target, err := domain.NewGroupTarget(g)
		if err != nil {
			return domain.BookingTarget{}, "", err
		}
		return target, EvaluateEligibility(g, uid), nil

	case domain.TargetCourt:
		if req.Court == nil {
			return domain.BookingTarget{}, "", fmt.Errorf("%w: court details are required", domain.ErrInvalidTarget)
		}
		target, err := domain.NewCourtTarget(domain.CourtSelection{
			SlotIDs:         req.Court.SlotIDs,
			Purpose:         req.Court.Purpose,
			NumberOfPlayers: req.Court.NumberOfPlayers,
			DurationHours:   req.Court.DurationHours,
			Price:           req.Court.Price,
		})
		return target, domain.EligibilityBookable, err

	case domain.TargetEvent:
		if req.Event == nil {
			return domain.BookingTarget{}, "", fmt.Errorf("%w: event details are required", domain.ErrInvalidTarget)
		}
		target, err := domain.NewEventTarget(domain.EventSelection{
			EventID: req.Event.EventID,
			Name:    req.Event.Name,
			Fee:     req.Event.Fee,
		})
		return target, domain.EligibilityBookable, err

	case domain.TargetReplacement:
		if req.Replacement == nil {
			return domain.BookingTarget{}, "", fmt.Errorf("%w: replacement details are required", domain.ErrInvalidTarget)
		}
		target, err := domain.NewReplacementTarget(domain.ReplacementSession{
			SessionID: req.Replacement.SessionID,
			Amount:    req.Replacement.Amount,
		})
		return target, domain.EligibilityBookable, err

	default:
		return domain.BookingTarget{}, "", fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidTarget, req.Kind)
	}
}

func (s *checkoutService) fetch(ctx context.Context, req *dto.TargetRequest) ([]domain.SessionGroup, error) {
	from, to, err := searchWindow(s.now(), s.searchWindow, req.From, req.To)
	if err != nil {
		return nil, err
	}
	return fetchGroups(ctx, s.backend, from, to)
}

// readWallet snapshots the balance; nil means unknown
func (s *checkoutService) readWallet(ctx context.Context) *decimal.Decimal {
	balance, err := s.backend.GetWalletBalance(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "wallet balance unavailable", zap.Error(err))
		return nil
	}
	return &balance
}

func (s *checkoutService) readVouchers(ctx context.Context, target domain.BookingTarget) []domain.Voucher {
	if !target.AcceptsVoucher() {
		return nil
	}
	vouchers, err := s.backend.ListActiveVouchers(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "active vouchers unavailable", zap.Error(err))
		return nil
	}
	return vouchers
}
