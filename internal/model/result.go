package model

// Write results are reported in the same shape the previous document-store
// API returned them, so existing clients keep working.

// InsertResult is returned by create operations.
type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

// UpdateResult is returned by update and grade operations. UpsertedID is set
// when the target did not exist and a new document was inserted instead.
type UpdateResult struct {
	Acknowledged  bool    `json:"acknowledged"`
	MatchedCount  int64   `json:"matchedCount"`
	ModifiedCount int64   `json:"modifiedCount"`
	UpsertedCount int64   `json:"upsertedCount"`
	UpsertedID    *string `json:"upsertedId"`
}

// DeleteResult is returned by delete operations.
type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

// Upserted builds the result of an update that inserted id.
func Upserted(id string) *UpdateResult {
	return &UpdateResult{Acknowledged: true, UpsertedCount: 1, UpsertedID: &id}
}

// Modified builds the result of an update that matched one existing document.
func Modified() *UpdateResult {
	return &UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}
}
