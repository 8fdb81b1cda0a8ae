package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/estimator-bff-go/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var perMinute5 = ratelimit.Config{Window: time.Minute, MaxRequests: 5}

func TestCheck_FixedWindow(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := l.Check(ctx, "1.2.3.4", "estimates", perMinute5)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 4-i, res.Remaining, "request %d", i+1)
		assert.Equal(t, clock.Now().Add(time.Minute), res.ResetTime)
	}

	res, err := l.Check(ctx, "1.2.3.4", "estimates", perMinute5)
	require.NoError(t, err)
	assert.False(t, res.Allowed, "6th request in the window")
	assert.Equal(t, 0, res.Remaining)

	clock.Advance(61 * time.Second)

	res, err = l.Check(ctx, "1.2.3.4", "estimates", perMinute5)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "6th request after 61s")
	assert.Equal(t, 4, res.Remaining)
}

func TestCheck_ResetIsStrictlyAfter(t *testing.T) {
	clock := newFakeClock()
	l := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.WithClock(clock.Now))
	one := ratelimit.Config{Window: time.Minute, MaxRequests: 1}
	ctx := context.Background()

	_, err := l.Check(ctx, "a", "x", one)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	res, err := l.Check(ctx, "a", "x", one)
	require.NoError(t, err)
	assert.False(t, res.Allowed, "now == resetTime is still inside the window")

	clock.Advance(time.Millisecond)
	res, err = l.Check(ctx, "a", "x", one)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l := ratelimit.New(ratelimit.NewMemoryStore())
	one := ratelimit.Config{Window: time.Minute, MaxRequests: 1}
	ctx := context.Background()

	for _, tc := range []struct{ id, endpoint string }{
		{"a", "clients"}, {"b", "clients"}, {"a", "estimates"},
	} {
		res, err := l.Check(ctx, tc.id, tc.endpoint, one)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "%s:%s", tc.endpoint, tc.id)
	}

	res, err := l.Check(ctx, "a", "clients", one)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestCheck_ConcurrentIncrementsAreNotLost(t *testing.T) {
	l := ratelimit.New(ratelimit.NewMemoryStore())
	cfg := ratelimit.Config{Window: time.Hour, MaxRequests: 100}
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Check(ctx, "shared", "api", cfg)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
}

// stallingStore blocks Get for one key until release is closed.
type stallingStore struct {
	*ratelimit.MemoryStore
	key     string
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStore) Get(ctx context.Context, key string) (ratelimit.Entry, bool, error) {
	if key == s.key {
		close(s.entered)
		<-s.release
	}
	return s.MemoryStore.Get(ctx, key)
}

func TestCheck_SlowKeyDoesNotBlockOthers(t *testing.T) {
	store := &stallingStore{
		MemoryStore: ratelimit.NewMemoryStore(),
		key:         ratelimit.Key("api", "slow"),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	l := ratelimit.New(store)
	ctx := context.Background()

	slowDone := make(chan error, 1)
	go func() {
		_, err := l.Check(ctx, "slow", "api", perMinute5)
		slowDone <- err
	}()
	<-store.entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := l.Check(ctx, "fast", "api", perMinute5)
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("check for another key waited on the stalled one")
	}

	close(store.release)
	require.NoError(t, <-slowDone)
}

func TestCheck_InvalidConfig(t *testing.T) {
	l := ratelimit.New(ratelimit.NewMemoryStore())
	_, err := l.Check(context.Background(), "a", "x", ratelimit.Config{})
	assert.Error(t, err)
}

type failingStore struct{ ratelimit.MemoryStore }

func (*failingStore) Get(context.Context, string) (ratelimit.Entry, bool, error) {
	return ratelimit.Entry{}, false, errors.New("connection refused")
}

func TestCheck_StoreError(t *testing.T) {
	l := ratelimit.New(&failingStore{})
	_, err := l.Check(context.Background(), "a", "x", perMinute5)
	assert.ErrorContains(t, err, "connection refused")
}

func TestSweep_RemovesExpiredOnly(t *testing.T) {
	clock := newFakeClock()
	store := ratelimit.NewMemoryStore()
	l := ratelimit.New(store, ratelimit.WithClock(clock.Now))
	ctx := context.Background()

	_, err := l.Check(ctx, "old", "api", ratelimit.Config{Window: time.Second, MaxRequests: 1})
	require.NoError(t, err)
	_, err = l.Check(ctx, "new", "api", ratelimit.Config{Window: time.Hour, MaxRequests: 1})
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	clock.Advance(2 * time.Second)
	l.Sweep(ctx)

	assert.Equal(t, 1, store.Len())
}

func TestStartClose_StopsSweeper(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := ratelimit.NewMemoryStore()
	clock := newFakeClock()
	l := ratelimit.New(store, ratelimit.WithClock(clock.Now), ratelimit.WithSweepInterval(5*time.Millisecond))

	_, err := l.Check(context.Background(), "a", "api", ratelimit.Config{Window: time.Second, MaxRequests: 1})
	require.NoError(t, err)
	clock.Advance(time.Hour)

	l.Start()
	l.Start()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}

func TestTiers(t *testing.T) {
	tiers := ratelimit.DefaultTiers()

	auth, err := tiers.Get(ratelimit.TierAuth)
	require.NoError(t, err)
	assert.Equal(t, ratelimit.Config{Window: 15 * time.Minute, MaxRequests: 5}, auth)

	require.NoError(t, tiers.Override(ratelimit.TierAPI, ratelimit.Config{MaxRequests: 120}))
	assert.Equal(t, ratelimit.Config{Window: time.Minute, MaxRequests: 120}, tiers.API)

	for _, name := range ratelimit.TierNames() {
		_, err := tiers.Get(name)
		assert.NoError(t, err, name)
	}

	assert.Error(t, tiers.Override("bulk", ratelimit.Config{MaxRequests: 1}))
	assert.Error(t, tiers.Override(ratelimit.TierAPI, ratelimit.Config{MaxRequests: -1}))
}
