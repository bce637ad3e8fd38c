package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scriptrpc/scriptrpc"
)

// minFollowBackoffMs is the floor applied to the sleep after a transient
// poll error, per the follow driver's back-off contract.
const minFollowBackoffMs = 250

// Follower runs one background polling activity against a Session,
// delivering events to its EventSink in strictly ascending seq order. At
// most one follow activity runs per Follower; StartFollow first stops a
// previous one.
type Follower struct {
	session *Session

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFollower builds a Follower driving s.
func NewFollower(s *Session) *Follower {
	return &Follower{session: s}
}

// StartFollow launches the background poll loop at the given interval. If a
// previous follow activity is running, it is stopped first.
func (f *Follower) StartFollow(intervalMs int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	f.running.Store(true)

	go f.loop(ctx, intervalMs, f.done)
}

// StopFollow clears the running flag, interrupts the sleep, and waits
// (best-effort) for the loop goroutine to exit.
func (f *Follower) StopFollow() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked()
}

func (f *Follower) stopLocked() {
	if !f.running.Load() {
		return
	}
	f.running.Store(false)
	if f.cancel != nil {
		f.cancel()
	}
	if f.done != nil {
		<-f.done
	}
	f.cancel = nil
	f.done = nil
}

func (f *Follower) loop(ctx context.Context, intervalMs int, done chan struct{}) {
	defer close(done)

	sleepMs := intervalMs
	for f.running.Load() {
		if err := f.session.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			f.session.Logger.Errorf("%v", &scriptrpc.FollowTransient{Err: err})
			if !sleepOrCancel(ctx, backoffMs(intervalMs)) {
				return
			}
			continue
		}
		if !sleepOrCancel(ctx, sleepMs) {
			return
		}
	}
}

func backoffMs(intervalMs int) int {
	if intervalMs > minFollowBackoffMs {
		return intervalMs
	}
	return minFollowBackoffMs
}

// sleepOrCancel sleeps for ms milliseconds, returning false early if ctx is
// cancelled during the sleep.
func sleepOrCancel(ctx context.Context, ms int) bool {
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
