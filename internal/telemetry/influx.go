package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/Fabian12Florin/KeepUp/internal/workout"

	client "github.com/influxdata/influxdb1-client/v2"
)

const workoutMeasurement = "workout"

// InfluxRecorder writes one point per saved workout so dashboards can chart
// distance and effort over time.
type InfluxRecorder struct {
	client   client.Client
	database string
}

func NewInfluxRecorder(addr, database string) (*InfluxRecorder, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:    addr,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create influxdb client: %w", err)
	}
	return &InfluxRecorder{client: c, database: database}, nil
}

func (r *InfluxRecorder) WorkoutSaved(ctx context.Context, rec workout.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	at := rec.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	tags := map[string]string{
		"type": rec.Kind,
	}
	fields := map[string]interface{}{
		"workout_id":        rec.ID,
		"distance_km":       rec.DistanceKm,
		"elapsed_seconds":   rec.ElapsedSeconds,
		"avg_speed_kmh":     rec.AvgSpeedKmh,
		"max_speed_kmh":     rec.MaxSpeedKmh,
		"altitude_change_m": rec.AltitudeChangeM,
		"points":            rec.Points,
	}

	pt, err := client.NewPoint(workoutMeasurement, tags, fields, at)
	if err != nil {
		return fmt.Errorf("create influx point: %w", err)
	}
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  r.database,
		Precision: "s",
	})
	if err != nil {
		return fmt.Errorf("create influx batch: %w", err)
	}
	bp.AddPoint(pt)

	if err := r.client.Write(bp); err != nil {
		return fmt.Errorf("write influx point: %w", err)
	}
	return nil
}

// Ping reports whether InfluxDB answers within timeout.
func (r *InfluxRecorder) Ping(timeout time.Duration) error {
	_, _, err := r.client.Ping(timeout)
	return err
}

func (r *InfluxRecorder) Close() error {
	return r.client.Close()
}
