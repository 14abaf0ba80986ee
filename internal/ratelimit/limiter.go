package ratelimit

import (
	"errors"
	"hash/maphash"
	"sync"
	"time"
)

const defaultShards = 16

// ErrRateLimited is reported when an identity has exhausted its window.
var ErrRateLimited = errors.New("rate limit exceeded")

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the identity's current window elapses.
	ResetAt time.Time
}

// RetryAfter returns how long a rejected caller should wait, never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// window is the fixed-window state for one identity.
type window struct {
	count int
	start time.Time
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// Options configures a Limiter.
type Options struct {
	// Max is the number of requests admitted per identity per window.
	Max int
	// Window is the fixed window length.
	Window time.Duration
	// Shards is the number of lock partitions. Defaults to 16.
	Shards int
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Limiter is an in-process fixed-window rate limiter keyed by client identity.
// Requests from one identity are counted under that identity's shard lock,
// so concurrent increments are never lost.
type Limiter struct {
	shards []*shard
	seed   maphash.Seed
	max    int
	window time.Duration
	now    func() time.Time
}

// New builds a Limiter. Window must be positive.
func New(opts Options) (*Limiter, error) {
	if opts.Window <= 0 {
		return nil, errors.New("rate limit window must be positive")
	}
	if opts.Max < 0 {
		return nil, errors.New("rate limit max must not be negative")
	}

	n := opts.Shards
	if n <= 0 {
		n = defaultShards
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{windows: make(map[string]*window)}
	}

	return &Limiter{
		shards: shards,
		seed:   maphash.MakeSeed(),
		max:    opts.Max,
		window: opts.Window,
		now:    now,
	}, nil
}

// Max returns the per-window request allowance.
func (l *Limiter) Max() int { return l.max }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Now returns the limiter's current time.
func (l *Limiter) Now() time.Time { return l.now() }

func (l *Limiter) shardFor(identity string) *shard {
	h := maphash.String(l.seed, identity)
	return l.shards[h%uint64(len(l.shards))]
}

// Allow records a request from identity and reports whether it is admitted.
// A rejected request does not increment the count.
func (l *Limiter) Allow(identity string) Decision {
	now := l.now()
	s := l.shardFor(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[identity]
	if !ok || now.Sub(w.start) >= l.window {
		w = &window{start: now}
		s.windows[identity] = w
	}

	d := Decision{
		Limit:   l.max,
		ResetAt: w.start.Add(l.window),
	}

	if w.count >= l.max {
		return d
	}

	w.count++
	d.Allowed = true
	d.Remaining = l.max - w.count
	return d
}

// Sweep drops windows that have elapsed and reports how many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for id, w := range s.windows {
			if now.Sub(w.start) >= l.window {
				delete(s.windows, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Tracked returns the number of identities currently holding a window.
func (l *Limiter) Tracked() int {
	total := 0
	for _, s := range l.shards {
		s.mu.Lock()
		total += len(s.windows)
		s.mu.Unlock()
	}
	return total
}
