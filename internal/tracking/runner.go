package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/Fabian12Florin/KeepUp/internal/workout"
)

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

type realTicker struct {
	t *time.Ticker
}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Runner drives a Session from a location source and a one-second ticker.
// Elapsed time is derived from accumulated Active wall-clock time, so late or
// dropped ticks are caught up on the next one instead of being lost.
type Runner struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	session  *Session
	clock    Clock
	observer func(Snapshot)

	activeFor time.Duration
	resumedAt time.Time
	running   bool
	ticked    int64
}

type RunnerOption func(*Runner)

func WithClock(clock Clock) RunnerOption {
	return func(r *Runner) { r.clock = clock }
}

// WithObserver registers fn to receive a snapshot after every change.
func WithObserver(fn func(Snapshot)) RunnerOption {
	return func(r *Runner) { r.observer = fn }
}

func NewRunner(session *Session, opts ...RunnerOption) *Runner {
	r := &Runner{session: session, clock: realClock{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Session() *Session {
	return r.session
}

func (r *Runner) Start() (Snapshot, error) {
	r.mu.Lock()
	if err := r.session.Start(); err != nil {
		r.mu.Unlock()
		return Snapshot{}, err
	}
	if !r.running {
		r.resumedAt = r.clock.Now()
		r.running = true
	}
	snap := r.session.Snapshot()
	r.unlockAndNotify(snap)
	return snap, nil
}

func (r *Runner) Stop() Snapshot {
	r.mu.Lock()
	r.pause(r.clock.Now())
	r.session.Stop()
	snap := r.session.Snapshot()
	r.unlockAndNotify(snap)
	return snap
}

func (r *Runner) Ingest(sample Sample) bool {
	r.mu.Lock()
	applied := r.session.Ingest(sample)
	if !applied {
		r.mu.Unlock()
		return false
	}
	r.unlockAndNotify(r.session.Snapshot())
	return true
}

// Advance issues every Tick that is due at the current clock time and returns
// how many were issued.
func (r *Runner) Advance() int {
	r.mu.Lock()
	n := r.advance(r.clock.Now())
	if n == 0 {
		r.mu.Unlock()
		return 0
	}
	r.unlockAndNotify(r.session.Snapshot())
	return n
}

func (r *Runner) End() (workout.Record, error) {
	r.mu.Lock()
	r.pause(r.clock.Now())
	rec, err := r.session.End()
	if err != nil {
		r.mu.Unlock()
		return workout.Record{}, err
	}
	r.unlockAndNotify(r.session.Snapshot())
	return rec, nil
}

// Run consumes samples and ticks until ctx is done. A closed source only stops
// sample intake; time keeps advancing while the session is Active.
func (r *Runner) Run(ctx context.Context, source <-chan Sample) error {
	ticker := r.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sample, ok := <-source:
			if !ok {
				source = nil
				continue
			}
			r.Ingest(sample)
		case <-ticker.C():
			r.Advance()
		}
	}
}

func (r *Runner) advance(now time.Time) int {
	if !r.running {
		return 0
	}
	total := r.activeFor + now.Sub(r.resumedAt)
	due := int64(total/time.Second) - r.ticked
	for i := int64(0); i < due; i++ {
		r.session.Tick()
	}
	if due < 0 {
		return 0
	}
	r.ticked += due
	return int(due)
}

func (r *Runner) pause(now time.Time) {
	if !r.running {
		return
	}
	r.advance(now)
	r.activeFor += now.Sub(r.resumedAt)
	r.running = false
}

// unlockAndNotify releases r.mu and hands snap to the observer. notifyMu is
// taken before r.mu is released so observers see snapshots in the order the
// events were applied. Observers must not call back into the Runner.
func (r *Runner) unlockAndNotify(snap Snapshot) {
	r.notifyMu.Lock()
	r.mu.Unlock()
	defer r.notifyMu.Unlock()
	if r.observer != nil {
		r.observer(snap)
	}
}
