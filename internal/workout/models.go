package workout

import "time"

// Record is the immutable result of a finished tracking session.
type Record struct {
	ID              string      `json:"id"`
	Kind            string      `json:"type"`
	Date            string      `json:"date"`
	ElapsedTime     string      `json:"elapsed_time"`
	ElapsedSeconds  int64       `json:"elapsed_seconds"`
	DistanceKm      float64     `json:"distance_km"`
	AvgSpeedKmh     float64     `json:"avg_speed_kmh"`
	MaxSpeedKmh     float64     `json:"max_speed_kmh"`
	AltitudeChangeM float64     `json:"altitude_change_m"`
	Points          int         `json:"points"`
	Path            []PathPoint `json:"path"`
	CreatedAt       time.Time   `json:"created_at"`
}

type PathPoint struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

const dateLayout = "2006-01-02"

// DateOf formats t as the ISO calendar date stored with each record.
func DateOf(t time.Time) string {
	return t.Format(dateLayout)
}
