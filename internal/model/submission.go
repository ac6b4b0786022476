package model

import (
	"encoding/json"
	"time"
)

// Submission wire keys managed by the server or by grading.
const (
	KeyUserEmail   = "userEmail"
	KeyStatus      = "status"
	KeyObtainMarks = "obtainMarks"
	KeyFeedback    = "feedback"
)

// Submission statuses the frontend sends. Status is compared as a plain
// string; nothing restricts it to these values.
const (
	StatusPending = "pending"
	StatusGraded  = "graded"
)

// Submission is a student's answer to an assignment.
//
// UserEmail is the submitter identity and never changes after creation.
// ObtainMarks and Feedback stay nil until a grade update sets them.
// Attributes carries everything else the client sent (assignment id, title,
// pdf link, note, ...). Nothing checks that the referenced assignment exists.
type Submission struct {
	ID          string
	UserEmail   string
	Status      string
	ObtainMarks *float64
	Feedback    *string
	Attributes  map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s Submission) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(s.Attributes)+7)
	for k, v := range s.Attributes {
		doc[k] = v
	}
	doc[KeyID] = s.ID
	if s.UserEmail != "" {
		doc[KeyUserEmail] = s.UserEmail
	}
	if s.Status != "" {
		doc[KeyStatus] = s.Status
	}
	if s.ObtainMarks != nil {
		doc[KeyObtainMarks] = *s.ObtainMarks
	}
	if s.Feedback != nil {
		doc[KeyFeedback] = *s.Feedback
	}
	if !s.CreatedAt.IsZero() {
		doc[KeyCreatedAt] = s.CreatedAt
	}
	if !s.UpdatedAt.IsZero() {
		doc[KeyUpdatedAt] = s.UpdatedAt
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads a client payload, dropping server-managed keys.
func (s *Submission) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*s = SubmissionFromFields(doc)
	return nil
}

// SubmissionFromFields splits a decoded document into typed fields and attributes.
func SubmissionFromFields(doc map[string]any) Submission {
	var s Submission
	s.UserEmail, _ = doc[KeyUserEmail].(string)
	s.Status, _ = doc[KeyStatus].(string)
	if v, ok := doc[KeyObtainMarks].(float64); ok {
		s.ObtainMarks = &v
	}
	if v, ok := doc[KeyFeedback].(string); ok {
		s.Feedback = &v
	}
	s.Attributes = make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case KeyID, KeyUserEmail, KeyStatus, KeyObtainMarks, KeyFeedback, KeyCreatedAt, KeyUpdatedAt:
			continue
		}
		s.Attributes[k] = v
	}
	return s
}

// Grade is the only payload a grade update accepts. Any other key a client
// sends is dropped while decoding.
type Grade struct {
	ObtainMarks *float64 `json:"obtainMarks" validate:"omitempty,gte=0"`
	Feedback    *string  `json:"feedback" validate:"omitempty,max=5000"`
	Status      *string  `json:"status" validate:"omitempty,max=64"`
}

// SubmissionFilter narrows List. Zero values mean "no filter"; both filters
// combine with AND.
type SubmissionFilter struct {
	Status    string
	UserEmail string
}
