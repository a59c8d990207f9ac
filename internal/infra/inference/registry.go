package inference

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Clock provides an abstraction for time operations to enable testing.
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// EndpointState is a point-in-time view of one endpoint in the registry.
type EndpointState struct {
	Name          string
	Available     bool
	CooldownUntil time.Time
}

// Registry holds the ordered endpoint list, each endpoint's cooldown deadline
// and the rotation cursor.
//
// All state lives behind one mutex that is held only for the state transition
// itself, never across a network call. The cursor is always in [0, Len()).
type Registry struct {
	mu            sync.Mutex
	names         []string
	cooldownUntil []time.Time
	cursor        int

	clock   Clock
	logger  *slog.Logger
	metrics MetricsRecorder
}

// NewRegistry creates a registry for the named endpoints, in failover order.
func NewRegistry(names []string, clock Clock, logger *slog.Logger, metrics MetricsRecorder) (*Registry, error) {
	if len(names) == 0 {
		return nil, ErrNoEndpoints
	}
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate endpoint name %q", name)
		}
		seen[name] = struct{}{}
	}

	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	r := &Registry{
		names:         append([]string(nil), names...),
		cooldownUntil: make([]time.Time, len(names)),
		clock:         clock,
		logger:        logger,
		metrics:       metrics,
	}
	for _, name := range names {
		metrics.SetEndpointAvailable(name, true)
	}
	return r, nil
}

// Len returns the number of endpoints.
func (r *Registry) Len() int {
	return len(r.names)
}

// Name returns the name of the endpoint at position i.
func (r *Registry) Name(i int) string {
	return r.names[i]
}

// Cursor returns the current rotation position.
func (r *Registry) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// IsAvailable reports whether endpoint i is out of cooldown.
// An expired deadline counts as available without an explicit reset.
func (r *Registry) IsAvailable(i int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.availableLocked(i, r.clock.Now())
}

func (r *Registry) availableLocked(i int, now time.Time) bool {
	until := r.cooldownUntil[i]
	return until.IsZero() || !now.Before(until)
}

// MarkRateLimited puts endpoint i into cooldown for d and returns the deadline.
func (r *Registry) MarkRateLimited(i int, d time.Duration) time.Time {
	r.mu.Lock()
	until := r.clock.Now().Add(d)
	r.cooldownUntil[i] = until
	r.mu.Unlock()

	r.metrics.RecordCooldown(r.names[i])
	r.metrics.SetEndpointAvailable(r.names[i], false)
	r.logger.Warn("endpoint rate limited, entering cooldown",
		slog.String("endpoint", r.names[i]),
		slog.Duration("cooldown", d),
		slog.Time("until", until))
	return until
}

// ClearCooldown removes endpoint i's cooldown deadline. It reports whether one was set.
// Only the endpoint's own success clears its cooldown; other endpoints are untouched.
func (r *Registry) ClearCooldown(i int) bool {
	r.mu.Lock()
	wasSet := !r.cooldownUntil[i].IsZero()
	r.cooldownUntil[i] = time.Time{}
	r.mu.Unlock()

	r.metrics.SetEndpointAvailable(r.names[i], true)
	if wasSet {
		r.logger.Info("endpoint cooldown cleared",
			slog.String("endpoint", r.names[i]))
	}
	return wasSet
}

// NextAvailable scans at most Len() positions from start, wrapping, and returns
// the first endpoint out of cooldown. When that position differs from start the
// cursor moves to it. It returns false when every endpoint is cooling down.
func (r *Registry) NextAvailable(start int) (int, bool) {
	return r.nextAvailable(start, nil)
}

// nextUntried is NextAvailable starting at the cursor and skipping positions
// already attempted by the current call.
func (r *Registry) nextUntried(tried []bool) (int, bool) {
	return r.nextAvailable(-1, tried)
}

func (r *Registry) nextAvailable(start int, skip []bool) (int, bool) {
	r.mu.Lock()
	now := r.clock.Now()
	expired := r.expireLocked(now)

	n := len(r.names)
	if start < 0 {
		start = r.cursor
	}
	start = ((start % n) + n) % n

	pos, found := 0, false
	for offset := 0; offset < n; offset++ {
		p := (start + offset) % n
		if skip != nil && skip[p] {
			continue
		}
		if !r.availableLocked(p, now) {
			continue
		}
		if p != start {
			r.cursor = p
		}
		pos, found = p, true
		break
	}
	r.mu.Unlock()

	r.announceExpired(expired)
	return pos, found
}

// expireLocked drops deadlines that have passed and returns the positions
// that just left cooldown.
func (r *Registry) expireLocked(now time.Time) []int {
	var expired []int
	for i, until := range r.cooldownUntil {
		if !until.IsZero() && !now.Before(until) {
			r.cooldownUntil[i] = time.Time{}
			expired = append(expired, i)
		}
	}
	return expired
}

func (r *Registry) announceExpired(positions []int) {
	for _, i := range positions {
		r.metrics.SetEndpointAvailable(r.names[i], true)
		r.logger.Info("endpoint cooldown expired",
			slog.String("endpoint", r.names[i]))
	}
}

// AdvanceFrom moves the cursor one step past pos, but only if the cursor still
// points at pos. Concurrent failures on the same endpoint advance it once.
func (r *Registry) AdvanceFrom(pos int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor == pos {
		r.cursor = (pos + 1) % len(r.names)
	}
}

// Snapshot returns the current state of every endpoint in registry order.
// Deadlines that have passed are dropped and reported as available again.
func (r *Registry) Snapshot() []EndpointState {
	r.mu.Lock()
	now := r.clock.Now()
	expired := r.expireLocked(now)
	defer r.announceExpired(expired)
	defer r.mu.Unlock()

	states := make([]EndpointState, len(r.names))
	for i, name := range r.names {
		available := r.availableLocked(i, now)
		state := EndpointState{Name: name, Available: available}
		if !available {
			state.CooldownUntil = r.cooldownUntil[i]
		}
		states[i] = state
	}
	return states
}
