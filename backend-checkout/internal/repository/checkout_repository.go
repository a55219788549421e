package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
	"github.com/prohmpiriya/class-checkout/pkg/redis"
)

// minRetention keeps a checkout readable for a while after its TTL so an
// in-flight submission can still record its outcome.
const minRetention = time.Minute

// ErrLockNotHeld is returned when a submit lock is released by a non-owner
var ErrLockNotHeld = errors.New("submit lock not held")

// CheckoutRepository stores checkout snapshots
type CheckoutRepository interface {
	// Save stores the checkout until it expires
	Save(ctx context.Context, c *domain.Checkout) error
	// Get loads a checkout by id
	Get(ctx context.Context, id string) (*domain.Checkout, error)
	// Delete removes a checkout
	Delete(ctx context.Context, id string) error
	// AcquireSubmitLock takes the per-checkout submit lock for token
	AcquireSubmitLock(ctx context.Context, checkoutID, token string, ttl time.Duration) (bool, error)
	// ReleaseSubmitLock releases the submit lock if token still holds it
	ReleaseSubmitLock(ctx context.Context, checkoutID, token string) error
}

func storageTTL(c *domain.Checkout, now time.Time) time.Duration {
	ttl := c.ExpiresAt.Sub(now)
	if ttl < minRetention {
		ttl = minRetention
	}
	return ttl
}

// --- Redis ---

const (
	checkoutKeyPrefix   = "checkout:"
	submitLockKeyPrefix = "checkout:lock:"
)

// RedisCheckoutRepository stores checkouts as JSON with a TTL
type RedisCheckoutRepository struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisCheckoutRepository creates a Redis-backed checkout store
func NewRedisCheckoutRepository(client *redis.Client) *RedisCheckoutRepository {
	return &RedisCheckoutRepository{client: client, now: time.Now}
}

func checkoutKey(id string) string {
	return checkoutKeyPrefix + id
}

func submitLockKey(id string) string {
	return submitLockKeyPrefix + id
}

// Save stores the checkout snapshot
func (r *RedisCheckoutRepository) Save(ctx context.Context, c *domain.Checkout) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode checkout: %w", err)
	}
	if err := r.client.Set(ctx, checkoutKey(c.ID), string(data), storageTTL(c, r.now())).Err(); err != nil {
		return fmt.Errorf("failed to save checkout %s: %w", c.ID, err)
	}
	return nil
}

// Get loads a checkout snapshot
func (r *RedisCheckoutRepository) Get(ctx context.Context, id string) (*domain.Checkout, error) {
	raw, err := r.client.Get(ctx, checkoutKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCheckoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout %s: %w", id, err)
	}

	var c domain.Checkout
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("failed to decode checkout %s: %w", id, err)
	}
	return &c, nil
}

// Delete removes a checkout
func (r *RedisCheckoutRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, checkoutKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete checkout %s: %w", id, err)
	}
	return nil
}

// AcquireSubmitLock takes the submit lock shared by every service instance
func (r *RedisCheckoutRepository) AcquireSubmitLock(ctx context.Context, checkoutID, token string, ttl time.Duration) (bool, error) {
	return r.client.AcquireLock(ctx, submitLockKey(checkoutID), token, ttl)
}

// ReleaseSubmitLock releases the submit lock
func (r *RedisCheckoutRepository) ReleaseSubmitLock(ctx context.Context, checkoutID, token string) error {
	err := r.client.ReleaseLock(ctx, submitLockKey(checkoutID), token)
	if errors.Is(err, redis.ErrLockNotHeld) {
		return ErrLockNotHeld
	}
	return err
}

// --- Memory ---

type memoryEntry struct {
	data     []byte
	deadline time.Time
}

type memoryLock struct {
	token    string
	deadline time.Time
}

// MemoryCheckoutRepository keeps checkouts in process. Snapshots are stored
// encoded so callers never share mutable state.
type MemoryCheckoutRepository struct {
	mu        sync.Mutex
	checkouts map[string]memoryEntry
	locks     map[string]memoryLock
	now       func() time.Time
}

// NewMemoryCheckoutRepository creates an in-process checkout store
func NewMemoryCheckoutRepository() *MemoryCheckoutRepository {
	return &MemoryCheckoutRepository{
		checkouts: make(map[string]memoryEntry),
		locks:     make(map[string]memoryLock),
		now:       time.Now,
	}
}

// Save stores the checkout snapshot
func (r *MemoryCheckoutRepository) Save(ctx context.Context, c *domain.Checkout) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode checkout: %w", err)
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkouts[c.ID] = memoryEntry{data: data, deadline: now.Add(storageTTL(c, now))}
	return nil
}

// Get loads a checkout snapshot
func (r *MemoryCheckoutRepository) Get(ctx context.Context, id string) (*domain.Checkout, error) {
	r.mu.Lock()
	entry, ok := r.checkouts[id]
	if ok && r.now().After(entry.deadline) {
		delete(r.checkouts, id)
		ok = false
	}
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrCheckoutNotFound
	}

	var c domain.Checkout
	if err := json.Unmarshal(entry.data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode checkout %s: %w", id, err)
	}
	return &c, nil
}

// Delete removes a checkout
func (r *MemoryCheckoutRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checkouts, id)
	return nil
}

// AcquireSubmitLock takes the submit lock
func (r *MemoryCheckoutRepository) AcquireSubmitLock(ctx context.Context, checkoutID, token string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if l, held := r.locks[checkoutID]; held && now.Before(l.deadline) {
		return false, nil
	}
	r.locks[checkoutID] = memoryLock{token: token, deadline: now.Add(ttl)}
	return true, nil
}

// ReleaseSubmitLock releases the submit lock
func (r *MemoryCheckoutRepository) ReleaseSubmitLock(ctx context.Context, checkoutID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, held := r.locks[checkoutID]
	if !held || l.token != token {
		return ErrLockNotHeld
	}
	delete(r.locks, checkoutID)
	return nil
}

// Prune drops expired checkouts and locks
func (r *MemoryCheckoutRepository) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for id, e := range r.checkouts {
		if now.After(e.deadline) {
			delete(r.checkouts, id)
			removed++
		}
	}
	for id, l := range r.locks {
		if now.After(l.deadline) {
			delete(r.locks, id)
		}
	}
	return removed
}
