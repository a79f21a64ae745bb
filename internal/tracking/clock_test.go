package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Fabian12Florin/KeepUp/internal/workout"
)

var errTest = errors.New("boom")

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) NewTicker(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeClock) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func (f *fakeClock) ticker(i int) *fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.tickers) {
		return nil
	}
	return f.tickers[i]
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped = true }

type memoryRepo struct {
	mu      sync.Mutex
	records []workout.Record
	err     error
}

func (m *memoryRepo) Save(_ context.Context, rec workout.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.records = append(m.records, rec)
	return rec.ID, nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (workout.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return workout.Record{}, workout.ErrNotFound
}

func (m *memoryRepo) List(context.Context, int) ([]workout.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]workout.Record(nil), m.records...), nil
}

func (m *memoryRepo) saved() []workout.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]workout.Record(nil), m.records...)
}

type recordingHub struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newRecordingHub() *recordingHub {
	return &recordingHub{messages: map[string][][]byte{}}
}

func (h *recordingHub) Broadcast(sessionID string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages[sessionID] = append(h.messages[sessionID], payload)
}

func (h *recordingHub) count(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages[sessionID])
}

type recordingNotifier struct {
	mu    sync.Mutex
	saved []workout.Record
	err   error
}

func (n *recordingNotifier) WorkoutSaved(_ context.Context, rec workout.Record) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.saved = append(n.saved, rec)
	return n.err
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
