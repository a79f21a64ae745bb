package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Fabian12Florin/KeepUp/internal/activity"
	"github.com/Fabian12Florin/KeepUp/internal/workout"

	"github.com/google/uuid"
)

const saveTimeout = 10 * time.Second

// Broadcaster fans live snapshots out to subscribers of a session.
type Broadcaster interface {
	Broadcast(sessionID string, payload []byte)
}

// Notifier is told about every workout that was persisted successfully.
type Notifier interface {
	WorkoutSaved(ctx context.Context, rec workout.Record) error
}

type liveSession struct {
	runner *Runner
	cancel context.CancelFunc
}

type Service struct {
	repo      workout.Repository
	hub       Broadcaster
	notifiers []Notifier
	report    func(error)
	clock     Clock
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*liveSession

	ctx    context.Context
	cancel context.CancelFunc
	saves  sync.WaitGroup
}

type ServiceOption func(*Service)

func WithNotifiers(notifiers ...Notifier) ServiceOption {
	return func(s *Service) { s.notifiers = append(s.notifiers, notifiers...) }
}

// WithErrorReporter receives failures from background persistence.
func WithErrorReporter(report func(error)) ServiceOption {
	return func(s *Service) { s.report = report }
}

func WithServiceClock(clock Clock) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func NewService(repo workout.Repository, hub Broadcaster, opts ...ServiceOption) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		repo:     repo,
		hub:      hub,
		report:   func(error) {},
		clock:    realClock{},
		logger:   slog.Default(),
		sessions: map[string]*liveSession{},
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open registers a new Idle session and starts its timer loop.
func (s *Service) Open(kind activity.Kind) Snapshot {
	session := NewSession(kind, WithNow(s.clock.Now), WithLogger(s.logger))
	runner := NewRunner(session, WithClock(s.clock), WithObserver(s.broadcast))

	ctx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.sessions[session.ID()] = &liveSession{runner: runner, cancel: cancel}
	s.mu.Unlock()

	go func() {
		_ = runner.Run(ctx, nil)
	}()

	snap := session.Snapshot()
	s.broadcast(snap)
	s.logger.Info("session opened", "session_id", snap.ID, "kind", kind.String())
	return snap
}

func (s *Service) Start(id string) (Snapshot, error) {
	live, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return live.runner.Start()
}

func (s *Service) Stop(id string) (Snapshot, error) {
	live, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return live.runner.Stop(), nil
}

func (s *Service) Ingest(id string, sample Sample) (bool, error) {
	live, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = s.clock.Now()
	}
	return live.runner.Ingest(sample), nil
}

func (s *Service) Snapshot(id string) (Snapshot, error) {
	live, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return live.runner.Session().Snapshot(), nil
}

// Sessions lists live sessions ordered by id.
func (s *Service) Sessions() []Snapshot {
	s.mu.RLock()
	snaps := make([]Snapshot, 0, len(s.sessions))
	for _, live := range s.sessions {
		snaps = append(snaps, live.runner.Session().Snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps
}

// End finalizes the session, drops it from the registry and hands the record to
// the repository in the background. The returned record already carries the id
// it will be stored under.
func (s *Service) End(id string) (workout.Record, error) {
	live, err := s.lookup(id)
	if err != nil {
		return workout.Record{}, err
	}

	rec, err := live.runner.End()
	if err != nil {
		return workout.Record{}, err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	live.cancel()

	rec.ID = uuid.NewString()
	s.persist(rec)
	s.logger.Info("session ended",
		"session_id", id,
		"workout_id", rec.ID,
		"distance_km", rec.DistanceKm,
		"elapsed", rec.ElapsedTime,
	)
	return rec, nil
}

// Wait blocks until every background save has finished.
func (s *Service) Wait() {
	s.saves.Wait()
}

// Close stops all session timers and waits for pending saves.
func (s *Service) Close() {
	s.cancel()
	s.Wait()
}

func (s *Service) lookup(id string) (*liveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	live, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return live, nil
}

func (s *Service) persist(rec workout.Record) {
	if s.repo == nil {
		s.logger.Warn("no workout repository configured, dropping record", "workout_id", rec.ID)
		return
	}

	s.saves.Add(1)
	go func() {
		defer s.saves.Done()

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		id, err := s.repo.Save(ctx, rec)
		if err != nil {
			err = fmt.Errorf("save workout %s: %w", rec.ID, err)
			s.logger.Error("workout save failed", "workout_id", rec.ID, "error", err)
			s.report(err)
			return
		}
		rec.ID = id

		for _, n := range s.notifiers {
			if err := n.WorkoutSaved(ctx, rec); err != nil {
				s.logger.Error("workout notification failed", "workout_id", rec.ID, "error", err)
				s.report(err)
			}
		}
	}()
}

func (s *Service) broadcast(snap Snapshot) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("encode snapshot", "session_id", snap.ID, "error", err)
		return
	}
	s.hub.Broadcast(snap.ID, payload)
}
