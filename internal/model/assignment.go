// Package model defines the data structures used throughout the application.
package model

import (
	"encoding/json"
	"time"

	"github.com/sakif/group-study/internal/apperror"
)

// Assignment wire keys managed by the server. Every other key of an
// assignment document is a free-form attribute.
const (
	KeyID         = "_id"
	KeyEmail      = "email"
	KeyDifficulty = "difficulty"
	KeyCreatedAt  = "createdAt"
	KeyUpdatedAt  = "updatedAt"
)

// Assignment is a study task published by its owner.
//
// Email is the owner identity: set at creation, never changed by updates.
// Difficulty is a free-form level ("easy", "medium", "hard" in practice).
// Attributes holds the descriptive fields the client sends (title,
// description, marks, thumbnail, dueDate, ...) and is flattened into the
// JSON document, so a stored assignment reads back exactly like it was posted:
//
//	{"_id":"cv37rs3pp9olc6atsptg","email":"x@y.com","difficulty":"easy","title":"Graphs",...}
type Assignment struct {
	ID         string
	Email      string
	Difficulty string
	Attributes map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (a Assignment) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(a.Attributes)+5)
	for k, v := range a.Attributes {
		doc[k] = v
	}
	doc[KeyID] = a.ID
	doc[KeyEmail] = a.Email
	if _, kept := doc[KeyDifficulty]; !kept || a.Difficulty != "" {
		doc[KeyDifficulty] = a.Difficulty
	}
	if !a.CreatedAt.IsZero() {
		doc[KeyCreatedAt] = a.CreatedAt
	}
	if !a.UpdatedAt.IsZero() {
		doc[KeyUpdatedAt] = a.UpdatedAt
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads a client payload. Server-managed keys (_id and the
// timestamps) are dropped; they are never taken from clients.
func (a *Assignment) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if _, err := difficultyValue(doc[KeyDifficulty]); err != nil {
		return err
	}
	*a = AssignmentFromFields(doc)
	return nil
}

// AssignmentFromFields splits a decoded document into typed fields and
// attributes. A stored difficulty that is not a string stays an attribute.
func AssignmentFromFields(doc map[string]any) Assignment {
	var a Assignment
	a.Email, _ = doc[KeyEmail].(string)
	a.Attributes = make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case KeyID, KeyEmail, KeyCreatedAt, KeyUpdatedAt:
			continue
		case KeyDifficulty:
			if s, ok := v.(string); ok {
				a.Difficulty = s
				continue
			}
			if v == nil {
				continue
			}
		}
		a.Attributes[k] = v
	}
	return a
}

var errDifficultyType = apperror.InvalidArgument(KeyDifficulty, "difficulty must be a string")

// difficultyValue reads a client-sent difficulty. JSON null means none.
func difficultyValue(v any) (string, error) {
	switch d := v.(type) {
	case nil:
		return "", nil
	case string:
		return d, nil
	default:
		return "", errDifficultyType
	}
}

// AssignmentChanges is a partial update: only the keys present are written.
// The owner email and _id can never appear here.
type AssignmentChanges struct {
	Difficulty *string
	// Attributes to set. A nil value removes the attribute.
	Attributes map[string]any
}

// AssignmentChangesFromFields builds AssignmentChanges from a decoded update
// payload, discarding the identity and server-managed keys. A null
// difficulty clears it; any other non-string is InvalidArgument.
func AssignmentChangesFromFields(doc map[string]any) (AssignmentChanges, error) {
	c := AssignmentChanges{Attributes: make(map[string]any, len(doc))}
	for k, v := range doc {
		switch k {
		case KeyID, KeyEmail, KeyCreatedAt, KeyUpdatedAt:
			continue
		case KeyDifficulty:
			s, err := difficultyValue(v)
			if err != nil {
				return AssignmentChanges{}, err
			}
			c.Difficulty = &s
			continue
		}
		c.Attributes[k] = v
	}
	return c, nil
}

// AssignmentFilter narrows List. Zero values mean "no filter".
type AssignmentFilter struct {
	Difficulty string
}

// AssignmentPage is the paginated list envelope.
type AssignmentPage struct {
	Items      []Assignment `json:"items"`
	TotalCount int64        `json:"totalCount"`
}
