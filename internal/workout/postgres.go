package workout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Fabian12Florin/KeepUp/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresRepository struct {
	db db.Querier
}

func NewPostgresRepository(db db.Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the workouts table when it does not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workouts (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			date DATE NOT NULL,
			elapsed_time TEXT NOT NULL,
			elapsed_seconds BIGINT NOT NULL,
			distance_km DOUBLE PRECISION NOT NULL,
			avg_speed_kmh DOUBLE PRECISION NOT NULL,
			max_speed_kmh DOUBLE PRECISION NOT NULL,
			altitude_change_m DOUBLE PRECISION NOT NULL,
			points INTEGER NOT NULL DEFAULT 0,
			path JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS workouts_date_idx ON workouts (date DESC, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("ensure workouts schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	path, err := json.Marshal(nonNilPath(rec.Path))
	if err != nil {
		return "", fmt.Errorf("encode path: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO workouts (id, kind, date, elapsed_time, elapsed_seconds, distance_km, avg_speed_kmh, max_speed_kmh, altitude_change_m, points, path)
		VALUES ($1,$2,$3::date,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, rec.ID, rec.Kind, rec.Date, rec.ElapsedTime, rec.ElapsedSeconds, rec.DistanceKm, rec.AvgSpeedKmh, rec.MaxSpeedKmh, rec.AltitudeChangeM, rec.Points, path)
	var id string
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("insert workout: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, kind, to_char(date, 'YYYY-MM-DD'), elapsed_time, elapsed_seconds, distance_km, avg_speed_kmh, max_speed_kmh, altitude_change_m, points, path, created_at
		FROM workouts WHERE id=$1
	`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, kind, to_char(date, 'YYYY-MM-DD'), elapsed_time, elapsed_seconds, distance_km, avg_speed_kmh, max_speed_kmh, altitude_change_m, points, path, created_at
		FROM workouts
		ORDER BY date DESC, created_at DESC
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec       Record
		path      []byte
		createdAt time.Time
	)
	if err := row.Scan(&rec.ID, &rec.Kind, &rec.Date, &rec.ElapsedTime, &rec.ElapsedSeconds, &rec.DistanceKm, &rec.AvgSpeedKmh, &rec.MaxSpeedKmh, &rec.AltitudeChangeM, &rec.Points, &path, &createdAt); err != nil {
		return Record{}, err
	}
	rec.CreatedAt = createdAt
	rec.Path = []PathPoint{}
	if len(path) > 0 {
		if err := json.Unmarshal(path, &rec.Path); err != nil {
			return Record{}, fmt.Errorf("decode path: %w", err)
		}
	}
	return rec, nil
}

func nonNilPath(path []PathPoint) []PathPoint {
	if path == nil {
		return []PathPoint{}
	}
	return path
}
