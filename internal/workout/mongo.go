package workout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// workoutDocument keeps the field names the mobile client already reads.
type workoutDocument struct {
	ID              string         `bson:"_id"`
	Kind            string         `bson:"type"`
	Date            string         `bson:"date"`
	ElapsedTime     string         `bson:"elapsedTime"`
	ElapsedSeconds  int64          `bson:"elapsedSeconds"`
	DistanceKm      float64        `bson:"distance"`
	AvgSpeedKmh     float64        `bson:"avgSpeed"`
	MaxSpeedKmh     float64        `bson:"maxSpeed"`
	AltitudeChangeM float64        `bson:"altitudeChange"`
	Points          int            `bson:"points"`
	Path            []pathDocument `bson:"path"`
	CreatedAt       time.Time      `bson:"createdAt"`
}

type pathDocument struct {
	Lat float64 `bson:"latitude"`
	Lng float64 `bson:"longitude"`
}

type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll, now: time.Now}
}

// EnsureIndexes creates the index backing List's date ordering.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("ensure workout indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Save(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, toDocument(rec)); err != nil {
		return "", fmt.Errorf("insert workout: %w", err)
	}
	return rec.ID, nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (Record, error) {
	var doc workoutDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return fromDocument(doc), nil
}

func (r *MongoRepository) List(ctx context.Context, limit int) ([]Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}}).
		SetLimit(int64(normalizeLimit(limit)))

	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []workoutDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromDocument(doc))
	}
	return records, nil
}

func toDocument(rec Record) workoutDocument {
	path := make([]pathDocument, 0, len(rec.Path))
	for _, p := range rec.Path {
		path = append(path, pathDocument{Lat: p.Lat, Lng: p.Lng})
	}
	return workoutDocument{
		ID:              rec.ID,
		Kind:            rec.Kind,
		Date:            rec.Date,
		ElapsedTime:     rec.ElapsedTime,
		ElapsedSeconds:  rec.ElapsedSeconds,
		DistanceKm:      rec.DistanceKm,
		AvgSpeedKmh:     rec.AvgSpeedKmh,
		MaxSpeedKmh:     rec.MaxSpeedKmh,
		AltitudeChangeM: rec.AltitudeChangeM,
		Points:          rec.Points,
		Path:            path,
		CreatedAt:       rec.CreatedAt,
	}
}

func fromDocument(doc workoutDocument) Record {
	path := make([]PathPoint, 0, len(doc.Path))
	for _, p := range doc.Path {
		path = append(path, PathPoint{Lat: p.Lat, Lng: p.Lng})
	}
	return Record{
		ID:              doc.ID,
		Kind:            doc.Kind,
		Date:            doc.Date,
		ElapsedTime:     doc.ElapsedTime,
		ElapsedSeconds:  doc.ElapsedSeconds,
		DistanceKm:      doc.DistanceKm,
		AvgSpeedKmh:     doc.AvgSpeedKmh,
		MaxSpeedKmh:     doc.MaxSpeedKmh,
		AltitudeChangeM: doc.AltitudeChangeM,
		Points:          doc.Points,
		Path:            path,
		CreatedAt:       doc.CreatedAt,
	}
}
