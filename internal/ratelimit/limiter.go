// Package ratelimit implements a fixed-window request counter keyed by
// endpoint and client identifier.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config bounds one endpoint: at most MaxRequests per Window.
type Config struct {
	Window      time.Duration
	MaxRequests int
}

// Result is the outcome of a single check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// Entry is the persisted state of one window.
type Entry struct {
	Count     int       `json:"count"`
	ResetTime time.Time `json:"reset_time"`
}

// Store persists window entries. Implementations must be safe for
// concurrent use; the Limiter serialises Get/Set pairs per key itself.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	// Sweep drops entries whose window ended before now and reports how
	// many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// DefaultSweepInterval is how often expired entries are purged.
const DefaultSweepInterval = time.Minute

// Limiter applies the fixed-window algorithm over a Store.
type Limiter struct {
	store         Store
	now           func() time.Time
	sweepInterval time.Duration
	logger        *zap.Logger

	keys keyLocks

	lifecycle sync.Mutex
	stop      chan struct{}
	done      chan struct{}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSweepInterval sets how often Start's sweeper runs.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.sweepInterval = d
		}
	}
}

// WithLogger attaches a logger for sweeper diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New creates a limiter over store. Call Start to enable periodic sweeping
// and Close to stop it.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:         store,
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key builds the store key for an endpoint and identifier.
func Key(endpoint, identifier string) string {
	return endpoint + ":" + identifier
}

// Check counts one request for identifier against endpoint.
func (l *Limiter) Check(ctx context.Context, identifier, endpoint string, cfg Config) (Result, error) {
	if cfg.MaxRequests <= 0 || cfg.Window <= 0 {
		return Result{}, fmt.Errorf("ratelimit: invalid config for %s: %+v", endpoint, cfg)
	}
	key := Key(endpoint, identifier)

	unlock := l.keys.lock(key)
	defer unlock()

	now := l.now()
	entry, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: get %s: %w", key, err)
	}

	if !ok || now.After(entry.ResetTime) {
		entry = Entry{Count: 1, ResetTime: now.Add(cfg.Window)}
		if err := l.store.Set(ctx, key, entry); err != nil {
			return Result{}, fmt.Errorf("ratelimit: set %s: %w", key, err)
		}
		return Result{Allowed: true, Remaining: cfg.MaxRequests - 1, ResetTime: entry.ResetTime}, nil
	}

	if entry.Count >= cfg.MaxRequests {
		return Result{Allowed: false, Remaining: 0, ResetTime: entry.ResetTime}, nil
	}

	entry.Count++
	if err := l.store.Set(ctx, key, entry); err != nil {
		return Result{}, fmt.Errorf("ratelimit: set %s: %w", key, err)
	}
	return Result{Allowed: true, Remaining: cfg.MaxRequests - entry.Count, ResetTime: entry.ResetTime}, nil
}

// keyLocks hands out one mutex per key, so a slow store round trip only
// delays requests sharing that key. Entries are dropped once unreferenced.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	kl, ok := k.locks[key]
	if !ok {
		kl = &keyLock{}
		k.locks[key] = kl
	}
	kl.refs++
	k.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		k.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Now returns the limiter's clock reading.
func (l *Limiter) Now() time.Time {
	return l.now()
}

// Start launches the background sweeper. Calling Start twice is a no-op.
func (l *Limiter) Start() {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.stop != nil {
		return
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.sweepLoop(l.stop, l.done)
}

// Close stops the sweeper and waits for it to exit.
func (l *Limiter) Close() error {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.stop == nil {
		return nil
	}
	close(l.stop)
	<-l.done
	l.stop, l.done = nil, nil
	return nil
}

func (l *Limiter) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Sweep(context.Background())
		}
	}
}

// Sweep purges expired entries once.
func (l *Limiter) Sweep(ctx context.Context) {
	n, err := l.store.Sweep(ctx, l.now())
	if err != nil {
		l.logger.Warn("ratelimit: sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		l.logger.Debug("ratelimit: swept expired entries", zap.Int("removed", n))
	}
}
