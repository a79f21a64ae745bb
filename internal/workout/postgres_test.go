package workout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var recordColumns = []string{"id", "kind", "date", "elapsed_time", "elapsed_seconds", "distance_km", "avg_speed_kmh", "max_speed_kmh", "altitude_change_m", "points", "path", "created_at"}

func TestPostgresSaveGetList(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectQuery(`INSERT INTO workouts`).
		WithArgs(pgxmock.AnyArg(), "Running", "2024-05-01", "00:10:00", int64(600), 1.5, 9.0, 12.0, 4.0, 25, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("workout-1"))

	id, err := repo.Save(context.Background(), Record{
		Kind:            "Running",
		Date:            "2024-05-01",
		ElapsedTime:     "00:10:00",
		ElapsedSeconds:  600,
		DistanceKm:      1.5,
		AvgSpeedKmh:     9,
		MaxSpeedKmh:     12,
		AltitudeChangeM: 4,
		Points:          25,
		Path:            []PathPoint{{Lat: 45, Lng: 25}},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id != "workout-1" {
		t.Fatalf("unexpected id %q", id)
	}

	now := time.Now()
	mock.ExpectQuery(`SELECT id, kind, to_char\(date, 'YYYY-MM-DD'\)`).
		WithArgs("workout-1").
		WillReturnRows(pgxmock.NewRows(recordColumns).
			AddRow("workout-1", "Running", "2024-05-01", "00:10:00", int64(600), 1.5, 9.0, 12.0, 4.0, 25, []byte(`[{"latitude":45,"longitude":25}]`), now))

	rec, err := repo.Get(context.Background(), "workout-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Kind != "Running" || len(rec.Path) != 1 || rec.Path[0].Lat != 45 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	mock.ExpectQuery(`ORDER BY date DESC, created_at DESC`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows(recordColumns).
			AddRow("workout-2", "Cycling", "2024-05-02", "01:00:00", int64(3600), 20.0, 20.0, 35.0, -12.0, 260, []byte(`[]`), now).
			AddRow("workout-1", "Running", "2024-05-01", "00:10:00", int64(600), 1.5, 9.0, 12.0, 4.0, 25, []byte(nil), now))

	records, err := repo.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].ID != "workout-2" {
		t.Fatalf("unexpected list: %+v", records)
	}
	if records[1].Path == nil {
		t.Fatalf("expected empty path, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, kind`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresRepository(mock).Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgresSaveError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	args := make([]interface{}, 11)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectQuery(`INSERT INTO workouts`).
		WithArgs(args...).
		WillReturnError(errStore)

	_, err = NewPostgresRepository(mock).Save(context.Background(), Record{Kind: "Walking", Date: "2024-05-01"})
	if !errors.Is(err, errStore) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresListQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM workouts`).
		WithArgs(10).
		WillReturnError(errStore)

	if _, err := NewPostgresRepository(mock).List(context.Background(), 10); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPostgresGetBadPath(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, kind`).
		WithArgs("workout-3").
		WillReturnRows(pgxmock.NewRows(recordColumns).
			AddRow("workout-3", "Running", "2024-05-01", "00:00:00", int64(0), 0.0, 0.0, 0.0, 0.0, 0, []byte(`{`), time.Now()))

	if _, err := NewPostgresRepository(mock).Get(context.Background(), "workout-3"); err == nil {
		t.Fatalf("expected decode error")
	}
}

var errStore = errors.New("store error")

func TestPostgresEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS workouts`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS workouts`).
		WillReturnError(errStore)

	repo := NewPostgresRepository(mock)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := repo.EnsureSchema(context.Background()); !errors.Is(err, errStore) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
