package services

import (
	"sync"
	"time"

	"swapbot/internal/domain/models"
)

// RateDecision is the outcome of the rate gates for one submission.
type RateDecision struct {
	Allowed bool
	// RetryAfter is how long the user has to wait, for user messaging.
	// Zero for burst rejections, which carry no meaningful wait.
	RetryAfter time.Duration
}

// RateLimiter combines the per-user cooldown gate and the burst
// suppression gate. The burst state is process-local and intentionally
// non-persistent: it is a soft anti-spam measure, not a security
// boundary. A multi-instance deployment needs a shared keyed store
// behind it if strict limits matter.
type RateLimiter struct {
	mu           sync.Mutex
	lastAccepted map[int64]time.Time
	lastGroup    map[int64]string

	cooldown    time.Duration
	burstWindow time.Duration
	clock       Clock
}

func NewRateLimiter(cooldown, burstWindow time.Duration, clock Clock) *RateLimiter {
	return &RateLimiter{
		lastAccepted: make(map[int64]time.Time),
		lastGroup:    make(map[int64]string),
		cooldown:     cooldown,
		burstWindow:  burstWindow,
		clock:        clock,
	}
}

// Allow applies both gates. The burst window is measured from the last
// fully accepted submission: a rejection, whichever gate produced it,
// leaves the burst state untouched so the user's retry is judged on the
// same terms.
func (l *RateLimiter) Allow(user *models.User, groupID string) RateDecision {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if groupID != "" && l.lastGroup[user.ID] == groupID {
		return RateDecision{Allowed: false}
	}

	if last, ok := l.lastAccepted[user.ID]; ok && now.Sub(last) < l.burstWindow {
		return RateDecision{Allowed: false}
	}

	if ok, wait := l.checkCooldown(user, now); !ok {
		return RateDecision{Allowed: false, RetryAfter: wait}
	}

	l.lastAccepted[user.ID] = now
	if groupID != "" {
		l.lastGroup[user.ID] = groupID
	}
	return RateDecision{Allowed: true}
}

// checkCooldown enforces the minimum spacing between accepted requests.
// Premium users bypass it entirely.
func (l *RateLimiter) checkCooldown(user *models.User, now time.Time) (bool, time.Duration) {
	if user.IsPremium() {
		return true, 0
	}

	elapsed := now.Sub(user.LastRequestAt)
	if elapsed < l.cooldown {
		return false, l.cooldown - elapsed
	}
	return true, 0
}
