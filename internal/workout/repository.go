package workout

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("workout not found")

const defaultListLimit = 50

// Repository persists finished workouts. Save returns the generated identifier.
type Repository interface {
	Save(ctx context.Context, rec Record) (string, error)
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultListLimit
	}
	return limit
}
