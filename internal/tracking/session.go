package tracking

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Fabian12Florin/KeepUp/internal/activity"
	"github.com/Fabian12Florin/KeepUp/internal/shared/geo"
	"github.com/Fabian12Florin/KeepUp/internal/workout"

	"github.com/google/uuid"
)

// Session accumulates one attempt at an activity. All methods are safe for
// concurrent use; callers still need a single logical owner to get a
// meaningful ordering of samples and ticks.
type Session struct {
	mu sync.Mutex

	id        string
	kind      activity.Kind
	state     State
	startedAt time.Time

	path            []Sample
	previous        *Sample
	elapsedSeconds  int64
	distanceKm      float64
	currentSpeedMps float64
	maxSpeedMps     float64
	altitudeChangeM float64
	altitudeGainM   float64
	rejected        int

	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Session)

func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

func WithNow(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

func NewSession(kind activity.Kind, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		kind:   kind,
		state:  Idle,
		path:   []Sample{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Kind() activity.Kind {
	return s.kind
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start moves an Idle session to Active. Resuming clears the previous sample so
// no distance is credited across the paused gap.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Ended:
		return ErrInvalidState
	case Active:
		return nil
	}
	if s.startedAt.IsZero() {
		s.startedAt = s.now()
	}
	s.state = Active
	s.previous = nil
	return nil
}

// Stop pauses an Active session and keeps everything accumulated so far.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Active {
		s.state = Idle
	}
}

// Ingest applies a sample while Active and reports whether it was used.
// Non-finite or out-of-range samples are counted and dropped.
func (s *Session) Ingest(sample Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active || !s.kind.Tracked() {
		return false
	}
	if !validSample(sample) {
		s.rejected++
		s.logger.Warn("dropping malformed sample",
			"session_id", s.id,
			"lat", sample.Lat,
			"lng", sample.Lng,
			"speed_mps", sample.SpeedMps,
		)
		return false
	}

	s.path = append(s.path, sample)
	if prev := s.previous; prev != nil {
		s.distanceKm += geo.HaversineKm(prev.Lat, prev.Lng, sample.Lat, sample.Lng)
		delta := sample.AltitudeM - prev.AltitudeM
		s.altitudeChangeM += delta
		if delta > 0 {
			s.altitudeGainM += delta
		}
	}

	s.currentSpeedMps = sample.SpeedMps
	if sample.SpeedMps > s.maxSpeedMps {
		s.maxSpeedMps = sample.SpeedMps
	}
	last := sample
	s.previous = &last
	return true
}

// Tick credits one second of Active time.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Active {
		s.elapsedSeconds++
	}
}

// End freezes the session and returns the workout record. A second call fails
// with ErrInvalidState.
func (s *Session) End() (workout.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Ended {
		return workout.Record{}, ErrInvalidState
	}
	s.state = Ended
	s.previous = nil

	avgSpeedKmh := 0.0
	if s.elapsedSeconds > 0 {
		avgSpeedKmh = s.distanceKm / (float64(s.elapsedSeconds) / 3600)
	}

	path := make([]workout.PathPoint, 0, len(s.path))
	for _, p := range s.path {
		path = append(path, workout.PathPoint{Lat: p.Lat, Lng: p.Lng})
	}

	now := s.now()
	return workout.Record{
		Kind:            s.kind.String(),
		Date:            workout.DateOf(now),
		ElapsedTime:     workout.FormatElapsed(s.elapsedSeconds),
		ElapsedSeconds:  s.elapsedSeconds,
		DistanceKm:      s.distanceKm,
		AvgSpeedKmh:     avgSpeedKmh,
		MaxSpeedKmh:     workout.MpsToKmh(s.maxSpeedMps),
		AltitudeChangeM: s.altitudeChangeM,
		Points:          activity.Points(s.distanceKm, s.elapsedSeconds),
		Path:            path,
		CreatedAt:       now,
	}, nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := make([]Sample, len(s.path))
	copy(path, s.path)
	return Snapshot{
		ID:              s.id,
		Kind:            s.kind,
		State:           s.state,
		StartedAt:       s.startedAt,
		ElapsedSeconds:  s.elapsedSeconds,
		ElapsedTime:     workout.FormatElapsed(s.elapsedSeconds),
		DistanceKm:      s.distanceKm,
		CurrentSpeedMps: s.currentSpeedMps,
		MaxSpeedMps:     s.maxSpeedMps,
		AltitudeChangeM: s.altitudeChangeM,
		AltitudeGainM:   s.altitudeGainM,
		Rejected:        s.rejected,
		Path:            path,
	}
}

func validSample(sample Sample) bool {
	if !geo.ValidCoordinate(sample.Lat, sample.Lng) {
		return false
	}
	if math.IsNaN(sample.AltitudeM) || math.IsInf(sample.AltitudeM, 0) {
		return false
	}
	return !math.IsNaN(sample.SpeedMps) && !math.IsInf(sample.SpeedMps, 0) && sample.SpeedMps >= 0
}
