package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Fabian12Florin/KeepUp/internal/activity"
)

var (
	ErrInvalidState    = errors.New("invalid session state")
	ErrSessionNotFound = errors.New("session not found")
)

type State int

const (
	Idle State = iota
	Active
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Ended:
		return "ended"
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, st := range []State{Idle, Active, Ended} {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", name)
}

// Sample is a single GPS fix as delivered by the location source.
type Sample struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AltitudeM  float64   `json:"altitude_m"`
	SpeedMps   float64   `json:"speed_mps"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Snapshot is a point-in-time copy of a session; it shares no memory with it.
type Snapshot struct {
	ID              string        `json:"id"`
	Kind            activity.Kind `json:"kind"`
	State           State         `json:"state"`
	StartedAt       time.Time     `json:"started_at,omitempty"`
	ElapsedSeconds  int64         `json:"elapsed_seconds"`
	ElapsedTime     string        `json:"elapsed_time"`
	DistanceKm      float64       `json:"distance_km"`
	CurrentSpeedMps float64       `json:"current_speed_mps"`
	MaxSpeedMps     float64       `json:"max_speed_mps"`
	AltitudeChangeM float64       `json:"altitude_change_m"`
	AltitudeGainM   float64       `json:"altitude_gain_m"`
	Rejected        int           `json:"rejected_samples"`
	Path            []Sample      `json:"path"`
}
