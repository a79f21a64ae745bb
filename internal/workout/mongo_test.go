package workout

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		repo := NewMongoRepository(mt.Coll)
		id, err := repo.Save(context.Background(), Record{Kind: "Cycling", Date: "2024-05-01"})
		if err != nil {
			mt.Fatalf("save: %v", err)
		}
		if id == "" {
			mt.Fatalf("expected generated id")
		}
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		if err := NewMongoRepository(mt.Coll).EnsureIndexes(context.Background()); err != nil {
			mt.Fatalf("ensure indexes: %v", err)
		}

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Message: "unauthorized"}))
		if err := NewMongoRepository(mt.Coll).EnsureIndexes(context.Background()); err == nil {
			mt.Fatalf("expected index error")
		}
	})

	mt.Run("save error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		repo := NewMongoRepository(mt.Coll)
		if _, err := repo.Save(context.Background(), Record{ID: "dup"}); err == nil {
			mt.Fatalf("expected error")
		}
	})

	mt.Run("get", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "workout-1"},
			{Key: "type", Value: "Walking"},
			{Key: "date", Value: "2024-05-01"},
			{Key: "elapsedTime", Value: "00:30:00"},
			{Key: "elapsedSeconds", Value: int64(1800)},
			{Key: "distance", Value: 2.5},
			{Key: "points", Value: 50},
			{Key: "path", Value: bson.A{
				bson.D{{Key: "latitude", Value: 45.0}, {Key: "longitude", Value: 25.0}},
			}},
			{Key: "createdAt", Value: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		}))

		rec, err := NewMongoRepository(mt.Coll).Get(context.Background(), "workout-1")
		if err != nil {
			mt.Fatalf("get: %v", err)
		}
		if rec.Kind != "Walking" || rec.DistanceKm != 2.5 || len(rec.Path) != 1 {
			mt.Fatalf("unexpected record: %+v", rec)
		}
	})

	mt.Run("get not found", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewMongoRepository(mt.Coll).Get(context.Background(), "missing")
		if !errors.Is(err, ErrNotFound) {
			mt.Fatalf("expected not found, got %v", err)
		}
	})

	mt.Run("list", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		first := mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "workout-2"}, {Key: "type", Value: "Running"}, {Key: "date", Value: "2024-05-02"}},
			bson.D{{Key: "_id", Value: "workout-1"}, {Key: "type", Value: "Walking"}, {Key: "date", Value: "2024-05-01"}},
		)
		end := mtest.CreateCursorResponse(0, ns, mtest.NextBatch)
		mt.AddMockResponses(first, end)

		records, err := NewMongoRepository(mt.Coll).List(context.Background(), 10)
		if err != nil {
			mt.Fatalf("list: %v", err)
		}
		if len(records) != 2 || records[0].ID != "workout-2" {
			mt.Fatalf("unexpected records: %+v", records)
		}
	})
}

func TestDocumentConversion(t *testing.T) {
	rec := Record{
		ID:         "workout-9",
		Kind:       "Running",
		DistanceKm: 3,
		Path:       []PathPoint{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}},
	}
	back := fromDocument(toDocument(rec))
	if back.ID != rec.ID || back.DistanceKm != rec.DistanceKm || len(back.Path) != 2 || back.Path[1].Lng != 4 {
		t.Fatalf("unexpected conversion: %+v", back)
	}
}
