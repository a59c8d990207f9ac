package chat

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepThreshold is the number of tracked users above which idle limiters are dropped.
const sweepThreshold = 10000

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// userThrottle allows one request per user every cooldown.
type userThrottle struct {
	mu       sync.Mutex
	cooldown time.Duration
	users    map[int64]*userLimiter
}

func newUserThrottle(cooldown time.Duration) *userThrottle {
	return &userThrottle{cooldown: cooldown, users: make(map[int64]*userLimiter)}
}

// reserve takes the user's token at now. When none is left it returns how
// long the user still has to wait and consumes nothing.
func (t *userThrottle) reserve(userID int64, now time.Time) (time.Duration, bool) {
	if t == nil || t.cooldown <= 0 {
		return 0, true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.users[userID]
	if !ok {
		if len(t.users) >= sweepThreshold {
			t.sweepLocked(now)
		}
		u = &userLimiter{limiter: rate.NewLimiter(rate.Every(t.cooldown), 1)}
		t.users[userID] = u
	}
	u.lastSeen = now

	r := u.limiter.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return d, false
	}
	return 0, true
}

// sweepLocked forgets users idle for longer than the cooldown; their
// limiters are full again so a fresh one behaves the same.
func (t *userThrottle) sweepLocked(now time.Time) {
	for id, u := range t.users {
		if now.Sub(u.lastSeen) > t.cooldown {
			delete(t.users, id)
		}
	}
}
