package activity

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"
)

type Kind int

const (
	Running Kind = iota
	Cycling
	Walking
	Yoga
)

var ErrUnknownKind = errors.New("unknown activity kind")

var kindNames = map[Kind]string{
	Running: "Running",
	Cycling: "Cycling",
	Walking: "Walking",
	Yoga:    "Yoga",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseKind accepts the display name in any letter case.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, ErrUnknownKind
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// LocationRequest describes how often the client should deliver GPS fixes.
// On the wire the interval is whole milliseconds.
type LocationRequest struct {
	MinInterval     time.Duration
	MinDisplacement float64
}

type locationRequestJSON struct {
	MinIntervalMs   int64   `json:"min_interval_ms"`
	MinDisplacement float64 `json:"min_displacement_m"`
}

func (r LocationRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(locationRequestJSON{
		MinIntervalMs:   r.MinInterval.Milliseconds(),
		MinDisplacement: r.MinDisplacement,
	})
}

func (r *LocationRequest) UnmarshalJSON(data []byte) error {
	var raw locationRequestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.MinInterval = time.Duration(raw.MinIntervalMs) * time.Millisecond
	r.MinDisplacement = raw.MinDisplacement
	return nil
}

// Tracked reports whether the kind consumes location samples at all.
func (k Kind) Tracked() bool {
	return k != Yoga
}

func (k Kind) LocationRequest() LocationRequest {
	req := LocationRequest{MinInterval: time.Second}
	switch k {
	case Running:
		req.MinDisplacement = 5
	case Walking:
		req.MinDisplacement = 1
	case Cycling:
		req.MinDisplacement = 0
	}
	return req
}

const (
	pointsPerKm     = 10
	pointsPerMinute = 1
)

// Points is the reward for a finished workout: 10 per whole km and 1 per whole active minute.
func Points(distanceKm float64, elapsedSeconds int64) int {
	if distanceKm < 0 || math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) {
		distanceKm = 0
	}
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	return int(distanceKm)*pointsPerKm + int(elapsedSeconds/60)*pointsPerMinute
}
