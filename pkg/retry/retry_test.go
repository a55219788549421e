package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:      maxRetries,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Multiplier:      2.0,
		JitterFactor:    0,
	}
}

func TestNew_AppliesDefaultsWithoutMutatingInput(t *testing.T) {
	in := &Config{}
	r := New(in)

	assert.Equal(t, time.Second, r.config.InitialInterval)
	assert.Equal(t, 30*time.Second, r.config.MaxInterval)
	assert.Equal(t, 2.0, r.config.Multiplier)
	assert.Zero(t, in.InitialInterval)

	assert.NotNil(t, New(nil))
}

func TestRetrier_Do(t *testing.T) {
	transient := errors.New("temporary error")

	tests := []struct {
		name         string
		config       *Config
		failures     int
		failWith     error
		wantAttempts int
		wantErr      error
	}{
		{name: "success first try", config: fastConfig(3), wantAttempts: 1},
		{name: "success after retries", config: fastConfig(5), failures: 2, failWith: transient, wantAttempts: 3},
		{name: "max retries exceeded", config: fastConfig(3), failures: 10, failWith: transient, wantAttempts: 4, wantErr: ErrMaxRetriesExceeded},
		{name: "no retries", config: fastConfig(0), failures: 10, failWith: transient, wantAttempts: 1, wantErr: ErrMaxRetriesExceeded},
		{name: "permanent stops immediately", config: fastConfig(5), failures: 10, failWith: Permanent(transient), wantAttempts: 1, wantErr: transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			result := New(tt.config).Do(context.Background(), func(ctx context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			assert.Equal(t, tt.wantAttempts, result.Attempts)
			assert.Equal(t, tt.wantAttempts, calls)
			if tt.wantErr == nil {
				assert.NoError(t, result.Err)
			} else {
				assert.ErrorIs(t, result.Err, tt.wantErr)
			}
		})
	}
}

func TestRetrier_Do_MaxRetriesWrapsLastError(t *testing.T) {
	cause := errors.New("backend 503")
	result := Do(context.Background(), fastConfig(1), func(ctx context.Context) error { return cause })

	assert.ErrorIs(t, result.Err, ErrMaxRetriesExceeded)
	assert.ErrorIs(t, result.Err, cause)
	assert.Equal(t, cause, result.LastError)
}

func TestRetrier_Do_ShouldRetry(t *testing.T) {
	notRetryable := errors.New("bad request")
	cfg := fastConfig(5)
	cfg.ShouldRetry = func(err error) bool { return !errors.Is(err, notRetryable) }

	calls := 0
	result := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return notRetryable
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, notRetryable, result.Err)
}

func TestRetrier_Do_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.InitialInterval = time.Second
	cfg.MaxInterval = time.Second

	calls := 0
	result := Do(ctx, cfg, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("temporary")
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, result.Err, ErrContextCanceled)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestRetrier_DoWithCallback(t *testing.T) {
	var seen []int
	calls := 0
	result := New(fastConfig(3)).DoWithCallback(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	}, func(attempt int, err error, next time.Duration) {
		seen = append(seen, attempt)
		assert.Error(t, err)
		assert.Positive(t, next)
	})

	require.NoError(t, result.Err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestCalculateInterval(t *testing.T) {
	r := New(&Config{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
	})

	assert.Equal(t, 100*time.Millisecond, r.calculateInterval(0))
	assert.Equal(t, 200*time.Millisecond, r.calculateInterval(1))
	assert.Equal(t, 400*time.Millisecond, r.calculateInterval(2))
	assert.Equal(t, time.Second, r.calculateInterval(10))
}

func TestCalculateInterval_WithJitter(t *testing.T) {
	r := New(&Config{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	})

	for i := 0; i < 50; i++ {
		d := r.calculateInterval(0)
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
}

func TestDoValue(t *testing.T) {
	calls := 0
	v, result := DoValue(context.Background(), fastConfig(3), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, result.Attempts)
}
