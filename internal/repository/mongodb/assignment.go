package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/group-study/internal/apperror"
	"github.com/sakif/group-study/internal/model"
	"github.com/sakif/group-study/internal/repository"
)

const (
	keyEmail      = model.KeyEmail
	keyDifficulty = model.KeyDifficulty
	keyCreatedAt  = model.KeyCreatedAt
	keyUpdatedAt  = model.KeyUpdatedAt
)

var _ repository.AssignmentRepository = (*AssignmentStore)(nil)

// AssignmentStore keeps assignments in the "assignments" collection.
type AssignmentStore struct {
	coll *mongo.Collection
}

func (s *AssignmentStore) Create(ctx context.Context, a *model.Assignment) error {
	oid := primitive.NewObjectID()
	now := time.Now().UTC().Truncate(time.Millisecond)

	doc := bson.M{}
	for k, v := range a.Attributes {
		doc[k] = v
	}
	doc["_id"] = oid
	doc[keyEmail] = a.Email
	doc[keyDifficulty] = a.Difficulty
	doc[keyCreatedAt] = now
	doc[keyUpdatedAt] = now

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return apperror.Storage("creating assignment", fmt.Errorf("mongodb: %w", err))
	}
	a.ID = oid.Hex()
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (s *AssignmentStore) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var raw bson.M
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&raw)
	if isNoDocuments(err) {
		return nil, apperror.NotFound("assignment", id)
	}
	if err != nil {
		return nil, apperror.Storage("getting assignment", fmt.Errorf("mongodb: getting assignment %s: %w", id, err))
	}
	a := assignmentFromDoc(raw)
	return &a, nil
}

func (s *AssignmentStore) List(ctx context.Context, filter model.AssignmentFilter, opts repository.ListOptions) ([]model.Assignment, error) {
	cur, err := s.coll.Find(ctx, assignmentFilter(filter), options.Find().
		SetSort(insertionOrder).
		SetSkip(int64(opts.Offset)).
		SetLimit(int64(opts.Limit)),
	)
	if err != nil {
		return nil, apperror.Storage("listing assignments", fmt.Errorf("mongodb: %w", err))
	}
	defer cur.Close(ctx)

	items := make([]model.Assignment, 0, opts.Limit)
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, apperror.Storage("listing assignments", fmt.Errorf("mongodb: decoding assignment: %w", err))
		}
		items = append(items, assignmentFromDoc(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, apperror.Storage("listing assignments", fmt.Errorf("mongodb: iterating assignments: %w", err))
	}
	return items, nil
}

func (s *AssignmentStore) Count(ctx context.Context, filter model.AssignmentFilter) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, assignmentFilter(filter))
	if err != nil {
		return 0, apperror.Storage("counting assignments", fmt.Errorf("mongodb: %w", err))
	}
	return n, nil
}

// Update reads the stored owner, runs check, then issues an UpdateOne whose
// filter repeats that owner. Zero matches at that point means the document
// changed hands or disappeared in between.
func (s *AssignmentStore) Update(ctx context.Context, id, owner string, changes model.AssignmentChanges, check repository.OwnerCheck) (*model.UpdateResult, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	stored, err := s.ownerOf(ctx, oid)
	if isNoDocuments(err) {
		return s.upsert(ctx, oid, owner, changes)
	}
	if err != nil {
		return nil, apperror.Storage("updating assignment", fmt.Errorf("mongodb: loading owner of %s: %w", id, err))
	}

	if err := check(stored); err != nil {
		return nil, err
	}

	set, unset := setAndUnset(changes.Attributes)
	if changes.Difficulty != nil {
		set[keyDifficulty] = *changes.Difficulty
	}
	set[keyUpdatedAt] = time.Now().UTC()
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid, keyEmail: stored}, update)
	if err != nil {
		return nil, apperror.Storage("updating assignment", fmt.Errorf("mongodb: updating assignment %s: %w", id, err))
	}
	if res.MatchedCount == 0 {
		return nil, apperror.Conflict("assignment", id)
	}
	return &model.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}, nil
}

func (s *AssignmentStore) upsert(ctx context.Context, oid primitive.ObjectID, owner string, changes model.AssignmentChanges) (*model.UpdateResult, error) {
	if owner == "" {
		return nil, apperror.InvalidArgument("email", "email is required to create an assignment")
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := bson.M{}
	for k, v := range changes.Attributes {
		if v != nil {
			doc[k] = v
		}
	}
	doc["_id"] = oid
	doc[keyEmail] = owner
	doc[keyDifficulty] = ""
	if changes.Difficulty != nil {
		doc[keyDifficulty] = *changes.Difficulty
	}
	doc[keyCreatedAt] = now
	doc[keyUpdatedAt] = now

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperror.Conflict("assignment", oid.Hex())
		}
		return nil, apperror.Storage("updating assignment", fmt.Errorf("mongodb: upserting assignment %s: %w", oid.Hex(), err))
	}
	return model.Upserted(oid.Hex()), nil
}

func (s *AssignmentStore) Delete(ctx context.Context, id string, check repository.OwnerCheck) (*model.DeleteResult, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	stored, err := s.ownerOf(ctx, oid)
	if isNoDocuments(err) {
		return nil, apperror.NotFound("assignment", id)
	}
	if err != nil {
		return nil, apperror.Storage("deleting assignment", fmt.Errorf("mongodb: loading owner of %s: %w", id, err))
	}

	if err := check(stored); err != nil {
		return nil, err
	}

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid, keyEmail: stored})
	if err != nil {
		return nil, apperror.Storage("deleting assignment", fmt.Errorf("mongodb: deleting assignment %s: %w", id, err))
	}
	if res.DeletedCount == 0 {
		return nil, apperror.Conflict("assignment", id)
	}
	return &model.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}

func (s *AssignmentStore) ownerOf(ctx context.Context, oid primitive.ObjectID) (string, error) {
	var stored struct {
		Email string `bson:"email"`
	}
	err := s.coll.FindOne(ctx, bson.M{"_id": oid},
		options.FindOne().SetProjection(bson.M{keyEmail: 1}),
	).Decode(&stored)
	return stored.Email, err
}

func assignmentFilter(filter model.AssignmentFilter) bson.M {
	if filter.Difficulty == "" {
		return bson.M{}
	}
	return bson.M{keyDifficulty: filter.Difficulty}
}

func assignmentFromDoc(raw bson.M) model.Assignment {
	doc := normalizeDoc(raw)
	a := model.AssignmentFromFields(doc)
	a.ID = stringField(doc, "_id")
	a.CreatedAt = timeField(doc, keyCreatedAt)
	a.UpdatedAt = timeField(doc, keyUpdatedAt)
	return a
}
