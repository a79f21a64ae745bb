package workout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

type memoryRepo struct {
	records map[string]Record
	order   []string
	err     error
	limit   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: map[string]Record{}}
}

func (m *memoryRepo) Save(_ context.Context, rec Record) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.records[rec.ID] = rec
	m.order = append([]string{rec.ID}, m.order...)
	return rec.ID, nil
}

func (m *memoryRepo) Get(_ context.Context, id string) (Record, error) {
	if m.err != nil {
		return Record{}, m.err
	}
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *memoryRepo) List(_ context.Context, limit int) ([]Record, error) {
	m.limit = limit
	if m.err != nil {
		return nil, m.err
	}
	out := []Record{}
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out, nil
}

func TestWorkoutHandlers(t *testing.T) {
	repo := newMemoryRepo()
	_, _ = repo.Save(context.Background(), Record{ID: "w1", Kind: "Running", Date: "2024-05-01"})
	_, _ = repo.Save(context.Background(), Record{ID: "w2", Kind: "Cycling", Date: "2024-05-02"})

	app := fiber.New()
	RegisterRoutes(app.Group("/workouts"), repo)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/workouts?limit=5", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %v", err)
	}
	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 2 || records[0].ID != "w2" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if repo.limit != 5 {
		t.Fatalf("expected limit 5, got %d", repo.limit)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/workouts/w1", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get status: %v", err)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/workouts/missing", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found, got %d", resp.StatusCode)
	}
}

func TestWorkoutHandlersErrors(t *testing.T) {
	repo := newMemoryRepo()
	repo.err = errStore

	app := fiber.New()
	RegisterRoutes(app.Group("/workouts"), repo)

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/workouts", nil))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/workouts/w1", nil))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}
