package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/metrics"
	"github.com/prohmpiriya/class-checkout/pkg/logger"
	"github.com/prohmpiriya/class-checkout/pkg/middleware"
	"github.com/prohmpiriya/class-checkout/pkg/retry"
	"github.com/prohmpiriya/class-checkout/pkg/telemetry"
)

const maxResponseBytes = 1 << 20

// Backend endpoint names used for spans and metrics
const (
	EndpointListSessions       = "list_sessions"
	EndpointWalletBalance      = "wallet_balance"
	EndpointActiveVouchers     = "active_vouchers"
	EndpointRegisterSession    = "register_session"
	EndpointRegisterMulti      = "register_multi"
	EndpointCourtBooking       = "court_booking"
	EndpointRegisterEvent      = "register_event"
	EndpointReplacementPayment = "replacement_payment"
)

// HTTPConfig configures the REST client
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	// ReadRetry applies to GET requests only; registrations and payments are
	// never retried.
	ReadRetry  *retry.Config
	HTTPClient *http.Client
}

// HTTPBookingBackend talks to the booking backend over REST
type HTTPBookingBackend struct {
	baseURL   string
	client    *http.Client
	readRetry *retry.Config
	reads     singleflight.Group
}

// NewHTTPBookingBackend creates a REST booking backend client
func NewHTTPBookingBackend(cfg *HTTPConfig) (*HTTPBookingBackend, error) {
	if cfg == nil || strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("booking backend base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid booking backend base URL: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	readRetry := cfg.ReadRetry
	if readRetry == nil {
		readRetry = &retry.Config{
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		}
	}
	rc := *readRetry
	rc.ShouldRetry = isRetryableRead

	return &HTTPBookingBackend{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    client,
		readRetry: &rc,
	}, nil
}

// ListAvailableSessions fetches occurrences via GET /class-sessions/available
func (b *HTTPBookingBackend) ListAvailableSessions(ctx context.Context, start, end time.Time) ([]domain.ClassSessionOccurrence, error) {
	query := url.Values{}
	query.Set("start", start.UTC().Format(time.RFC3339))
	query.Set("end", end.UTC().Format(time.RFC3339))

	body, err := b.get(ctx, EndpointListSessions, "/class-sessions/available", query)
	if err != nil {
		return nil, err
	}

	var payload []sessionPayload
	if err := decodeData(body, &payload); err != nil {
		return nil, err
	}
	out := make([]domain.ClassSessionOccurrence, 0, len(payload))
	for _, p := range payload {
		out = append(out, p.toDomain())
	}
	return out, nil
}

// GetWalletBalance reads GET /wallet/balance
func (b *HTTPBookingBackend) GetWalletBalance(ctx context.Context) (decimal.Decimal, error) {
	body, err := b.get(ctx, EndpointWalletBalance, "/wallet/balance", nil)
	if err != nil {
		return decimal.Zero, err
	}
	var payload balancePayload
	if err := decodeData(body, &payload); err != nil {
		return decimal.Zero, err
	}
	return payload.Balance, nil
}

// ListActiveVouchers reads GET /vouchers/active
func (b *HTTPBookingBackend) ListActiveVouchers(ctx context.Context) ([]domain.Voucher, error) {
	body, err := b.get(ctx, EndpointActiveVouchers, "/vouchers/active", nil)
	if err != nil {
		return nil, err
	}
	var payload []voucherPayload
	if err := decodeData(body, &payload); err != nil {
		return nil, err
	}
	out := make([]domain.Voucher, 0, len(payload))
	for _, p := range payload {
		out = append(out, p.toDomain())
	}
	return out, nil
}

// RegisterSession posts to /class-sessions/{id}/register
func (b *HTTPBookingBackend) RegisterSession(ctx context.Context, req *SessionRegistrationRequest) (*domain.BookingResult, error) {
	path := "/class-sessions/" + url.PathEscape(req.SessionID) + "/register"
	return b.submit(ctx, EndpointRegisterSession, path, req)
}

// RegisterSessions posts to /class-sessions/register-multi
func (b *HTTPBookingBackend) RegisterSessions(ctx context.Context, req *MultiSessionRegistrationRequest) (*domain.BookingResult, error) {
	return b.submit(ctx, EndpointRegisterMulti, "/class-sessions/register-multi", req)
}

// CreateCourtBooking posts to /member/bookings
func (b *HTTPBookingBackend) CreateCourtBooking(ctx context.Context, req *CourtBookingRequest) (*domain.BookingResult, error) {
	return b.submit(ctx, EndpointCourtBooking, "/member/bookings", req)
}

// RegisterEvent posts to /event-registration/register
func (b *HTTPBookingBackend) RegisterEvent(ctx context.Context, req *EventRegistrationRequest) (*domain.BookingResult, error) {
	return b.submit(ctx, EndpointRegisterEvent, "/event-registration/register", req)
}

// PayReplacementSession posts to /member/replacement-session-payment
func (b *HTTPBookingBackend) PayReplacementSession(ctx context.Context, req *ReplacementPaymentRequest) (*domain.BookingResult, error) {
	return b.submit(ctx, EndpointReplacementPayment, "/member/replacement-session-payment", req)
}

// get performs a retried GET. Identical concurrent reads made with the same
// credential share one request.
func (b *HTTPBookingBackend) get(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	key := middleware.TokenFromContext(ctx) + " " + target

	v, err, _ := b.reads.Do(key, func() (interface{}, error) {
		body, result := retry.DoValue(ctx, b.readRetry, func(ctx context.Context) ([]byte, error) {
			return b.do(ctx, endpoint, http.MethodGet, target, nil)
		})
		if result.Err != nil {
			return nil, result.Err
		}
		if result.Attempts > 1 {
			logger.Get().WarnContext(ctx, "booking backend read succeeded after retry",
				zap.String("endpoint", endpoint),
				zap.Int("attempts", result.Attempts),
			)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// submit sends a registration or payment exactly once
func (b *HTTPBookingBackend) submit(ctx context.Context, endpoint, path string, payload interface{}) (*domain.BookingResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", endpoint, err)
	}
	body, err := b.do(ctx, endpoint, http.MethodPost, path, data)
	if err != nil {
		return nil, err
	}
	var result resultPayload
	if len(bytes.TrimSpace(body)) > 0 {
		if err := decodeData(body, &result); err != nil {
			return nil, err
		}
	}
	return result.toDomain(), nil
}

func (b *HTTPBookingBackend) do(ctx context.Context, endpoint, method, path string, payload []byte) (body []byte, err error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway.backend."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.ObserveBackendCall(endpoint, start, err)
		if err != nil {
			telemetry.SetSpanError(ctx, err)
		}
	}()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := middleware.TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	telemetry.InjectHTTPHeaders(ctx, req.Header)

	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrBackendUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeBackendError(resp.StatusCode, body)
	}
	return body, nil
}

// isRetryableRead retries transport failures, 429 and 5xx answers
func isRetryableRead(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	be, ok := AsBackendError(err)
	if !ok {
		return true
	}
	return be.Status == http.StatusTooManyRequests || be.Status >= http.StatusInternalServerError
}
