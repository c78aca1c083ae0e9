package auth

import (
	"sync"
	"time"
)

var (
	loginWindow   = 15 * time.Minute
	lockDuration  = 10 * time.Minute
	sweepInterval = time.Minute
)

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// stale はロックが明けたか、ロックされないまま集計期間を過ぎた状態を表します。
func (s *attemptState) stale(now time.Time) bool {
	if !s.lockedUntil.IsZero() {
		return !now.Before(s.lockedUntil)
	}
	return now.Sub(s.firstAttempt) > loginWindow
}

// throttle はクライアントIPごとのログイン失敗回数を数えます。
// maxAttempts が0以下なら何も制限しません。
type throttle struct {
	maxAttempts int
	now         func() time.Time

	lock      sync.Mutex
	attempts  map[string]*attemptState
	lastSweep time.Time
}

func newThrottle(maxAttempts int) *throttle {
	return &throttle{
		maxAttempts: maxAttempts,
		now:         time.Now,
		attempts:    make(map[string]*attemptState),
	}
}

func (t *throttle) enabled() bool {
	return t != nil && t.maxAttempts > 0
}

// checkLock はロック中なら残り時間を返します。
func (t *throttle) checkLock(ip string) time.Duration {
	if !t.enabled() {
		return 0
	}
	t.lock.Lock()
	defer t.lock.Unlock()

	state, ok := t.attempts[ip]
	if !ok {
		return 0
	}
	now := t.now()
	if state.stale(now) {
		delete(t.attempts, ip)
		return 0
	}
	if !now.Before(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

// recordFailure は失敗を記録し、ロックまでの残り回数を返します。
func (t *throttle) recordFailure(ip string) int {
	if !t.enabled() {
		return 0
	}
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.now()
	t.sweep(now)

	state, ok := t.attempts[ip]
	if !ok || state.stale(now) {
		state = &attemptState{firstAttempt: now}
		t.attempts[ip] = state
	}

	state.count++
	if state.count >= t.maxAttempts {
		state.lockedUntil = now.Add(lockDuration)
		state.count = t.maxAttempts
	}

	remaining := t.maxAttempts - state.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// sweep は古くなったエントリを捨てます。呼び出し側でロックを取っていること。
func (t *throttle) sweep(now time.Time) {
	if now.Sub(t.lastSweep) < sweepInterval {
		return
	}
	t.lastSweep = now
	for ip, state := range t.attempts {
		if state.stale(now) {
			delete(t.attempts, ip)
		}
	}
}

func (t *throttle) size() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.attempts)
}

func (t *throttle) reset(ip string) {
	if !t.enabled() {
		return
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	delete(t.attempts, ip)
}
