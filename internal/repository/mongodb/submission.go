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
	keyUserEmail   = model.KeyUserEmail
	keyStatus      = model.KeyStatus
	keyObtainMarks = model.KeyObtainMarks
	keyFeedback    = model.KeyFeedback
)

var _ repository.SubmissionRepository = (*SubmissionStore)(nil)

// SubmissionStore keeps submissions in the "submitted_assignment" collection.
type SubmissionStore struct {
	coll *mongo.Collection
}

func (s *SubmissionStore) Create(ctx context.Context, sub *model.Submission) error {
	oid := primitive.NewObjectID()
	now := time.Now().UTC().Truncate(time.Millisecond)

	doc := bson.M{}
	for k, v := range sub.Attributes {
		doc[k] = v
	}
	doc["_id"] = oid
	doc[keyUserEmail] = sub.UserEmail
	doc[keyStatus] = sub.Status
	if sub.ObtainMarks != nil {
		doc[keyObtainMarks] = *sub.ObtainMarks
	}
	if sub.Feedback != nil {
		doc[keyFeedback] = *sub.Feedback
	}
	doc[keyCreatedAt] = now
	doc[keyUpdatedAt] = now

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return apperror.Storage("creating submission", fmt.Errorf("mongodb: %w", err))
	}
	sub.ID = oid.Hex()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return nil
}

func (s *SubmissionStore) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var raw bson.M
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&raw)
	if isNoDocuments(err) {
		return nil, apperror.NotFound("submission", id)
	}
	if err != nil {
		return nil, apperror.Storage("getting submission", fmt.Errorf("mongodb: getting submission %s: %w", id, err))
	}
	sub := submissionFromDoc(raw)
	return &sub, nil
}

func (s *SubmissionStore) List(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	query := bson.M{}
	if filter.Status != "" {
		query[keyStatus] = filter.Status
	}
	if filter.UserEmail != "" {
		query[keyUserEmail] = filter.UserEmail
	}

	cur, err := s.coll.Find(ctx, query, options.Find().SetSort(insertionOrder))
	if err != nil {
		return nil, apperror.Storage("listing submissions", fmt.Errorf("mongodb: %w", err))
	}
	defer cur.Close(ctx)

	items := make([]model.Submission, 0)
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, apperror.Storage("listing submissions", fmt.Errorf("mongodb: decoding submission: %w", err))
		}
		items = append(items, submissionFromDoc(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, apperror.Storage("listing submissions", fmt.Errorf("mongodb: iterating submissions: %w", err))
	}
	return items, nil
}

// Grade is a single upserting UpdateOne that $sets the non-nil grade fields.
// On insert only those fields and the timestamps are written.
func (s *SubmissionStore) Grade(ctx context.Context, id string, grade model.Grade) (*model.UpdateResult, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		gradeUpdate(grade, now),
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, apperror.Storage("grading submission", fmt.Errorf("mongodb: grading submission %s: %w", id, err))
	}
	if res.UpsertedID != nil {
		return model.Upserted(id), nil
	}
	return &model.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
	}, nil
}

func gradeUpdate(grade model.Grade, now time.Time) bson.M {
	set := bson.M{keyUpdatedAt: now}
	if grade.ObtainMarks != nil {
		set[keyObtainMarks] = *grade.ObtainMarks
	}
	if grade.Feedback != nil {
		set[keyFeedback] = *grade.Feedback
	}
	if grade.Status != nil {
		set[keyStatus] = *grade.Status
	}
	return bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{keyCreatedAt: now},
	}
}

func submissionFromDoc(raw bson.M) model.Submission {
	doc := normalizeDoc(raw)
	sub := model.SubmissionFromFields(doc)
	sub.ID = stringField(doc, "_id")
	sub.CreatedAt = timeField(doc, keyCreatedAt)
	sub.UpdatedAt = timeField(doc, keyUpdatedAt)
	return sub
}
