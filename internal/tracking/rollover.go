package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Fabian12Florin/KeepUp/internal/activity"
)

// DailyRollover keeps one background Walking session running and closes it out
// once per day at the configured minute, replacing it with a fresh one.
type DailyRollover struct {
	svc    *Service
	clock  Clock
	logger *slog.Logger
	hour   int
	minute int

	mu         sync.RWMutex
	current    string
	lastRolled string
}

func NewDailyRollover(svc *Service, clock Clock, logger *slog.Logger) *DailyRollover {
	if clock == nil {
		clock = realClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyRollover{svc: svc, clock: clock, logger: logger, hour: 23, minute: 59}
}

func (d *DailyRollover) SessionID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// Run opens the first session and checks the clock every minute until ctx is done.
func (d *DailyRollover) Run(ctx context.Context) error {
	if err := d.open(); err != nil {
		return err
	}

	ticker := d.clock.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			d.check(d.clock.Now())
		}
	}
}

func (d *DailyRollover) check(now time.Time) {
	if now.Hour() != d.hour || now.Minute() != d.minute {
		return
	}
	day := now.Format("2006-01-02")

	d.mu.Lock()
	if d.lastRolled == day {
		d.mu.Unlock()
		return
	}
	d.lastRolled = day
	id := d.current
	d.mu.Unlock()

	rec, err := d.svc.End(id)
	if err != nil {
		d.logger.Error("daily rollover end failed", "session_id", id, "error", err)
	} else {
		d.logger.Info("daily walk closed", "session_id", id, "workout_id", rec.ID, "distance_km", rec.DistanceKm)
	}

	if err := d.open(); err != nil {
		d.logger.Error("daily rollover open failed", "error", err)
	}
}

func (d *DailyRollover) open() error {
	snap := d.svc.Open(activity.Walking)
	if _, err := d.svc.Start(snap.ID); err != nil {
		return err
	}
	d.mu.Lock()
	d.current = snap.ID
	d.mu.Unlock()
	return nil
}
