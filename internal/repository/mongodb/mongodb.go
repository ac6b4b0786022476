// Package mongodb implements the repository interfaces on MongoDB.
//
// Documents are stored flat, exactly as clients see them: the typed fields
// (owner email, difficulty, grade fields) sit next to the free-form
// attributes, with camelCase createdAt/updatedAt timestamps and an ObjectID
// _id. Collections are "assignments" and "submitted_assignment".
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sakif/group-study/internal/apperror"
	"github.com/sakif/group-study/internal/repository"
)

const (
	DefaultDatabase = "groupStudy"

	assignmentsCollection = "assignments"
	submissionsCollection = "submitted_assignment"

	connectTimeout    = 10 * time.Second
	disconnectTimeout = 5 * time.Second
)

var _ repository.Store = (*DB)(nil)

// DB holds one client and the database both repositories use.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to uri, pings the primary and ensures the indexes listings
// filter on. An empty database name selects DefaultDatabase.
func New(ctx context.Context, uri, database string) (*DB, error) {
	if database == "" {
		database = DefaultDatabase
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connecting: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: pinging primary: %w", err)
	}

	db := &DB{client: client, db: client.Database(database)}
	if err := db.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: creating indexes: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return db.client.Disconnect(ctx)
}

func (db *DB) Assignments() repository.AssignmentRepository {
	return &AssignmentStore{coll: db.db.Collection(assignmentsCollection)}
}

func (db *DB) Submissions() repository.SubmissionRepository {
	return &SubmissionStore{coll: db.db.Collection(submissionsCollection)}
}

// Drop removes the whole database. Tests use it to clean up.
func (db *DB) Drop(ctx context.Context) error {
	return db.db.Drop(ctx)
}

func (db *DB) ensureIndexes(ctx context.Context) error {
	_, err := db.db.Collection(assignmentsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: keyDifficulty, Value: 1}}},
		{Keys: bson.D{{Key: keyCreatedAt, Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", assignmentsCollection, err)
	}
	_, err = db.db.Collection(submissionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: keyUserEmail, Value: 1}}},
		{Keys: bson.D{{Key: keyStatus, Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", submissionsCollection, err)
	}
	return nil
}

// parseID turns a hex string into the ObjectID stored in _id. Anything else
// is a client error, not a storage failure.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperror.InvalidArgument("id", fmt.Sprintf("invalid id %q", id))
	}
	return oid, nil
}

// insertionOrder sorts by creation time, ties broken by _id.
var insertionOrder = bson.D{{Key: keyCreatedAt, Value: 1}, {Key: "_id", Value: 1}}

// normalize converts decoded BSON into the plain Go values the JSON encoder
// and the model package expect: ObjectIDs become hex strings, dates become
// time.Time, embedded documents become maps and arrays become slices.
func normalize(v any) any {
	switch v := v.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC()
	case primitive.M:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(v))
		for _, e := range v {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return v
	}
}

// normalizeDoc is normalize for a top-level document.
func normalizeDoc(raw bson.M) map[string]any {
	doc, _ := normalize(raw).(map[string]any)
	return doc
}

func timeField(doc map[string]any, key string) time.Time {
	t, _ := doc[key].(time.Time)
	return t
}

func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

// setAndUnset splits attribute changes into $set and $unset documents: a nil
// value removes the key.
func setAndUnset(attrs map[string]any) (set, unset bson.M) {
	set, unset = bson.M{}, bson.M{}
	for k, v := range attrs {
		if v == nil {
			unset[k] = ""
			continue
		}
		set[k] = v
	}
	return set, unset
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
