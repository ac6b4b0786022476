// Package repository declares the storage contracts for assignments and
// submissions. Implementations live in the sqlite and mongo subpackages; the
// service layer only sees these interfaces.
package repository

import (
	"context"

	"github.com/sakif/group-study/internal/model"
)

// OwnerCheck decides whether a write may proceed given the owner identity
// stored on the target resource. Implementations must call it after loading
// the resource and before writing, and must make the write conditional on the
// owner it was called with; a lost race is reported as apperror.ErrConflict.
type OwnerCheck func(owner string) error

// ListOptions is the pagination window: Offset = (page-1)*Limit.
type ListOptions struct {
	Limit  int
	Offset int
}

type AssignmentRepository interface {
	// Create stores a new assignment, assigning its ID and timestamps in place.
	Create(ctx context.Context, a *model.Assignment) error
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	// List returns one page of assignments in insertion order.
	List(ctx context.Context, filter model.AssignmentFilter, opts ListOptions) ([]model.Assignment, error)
	// Count counts the assignments matching filter; a zero filter counts all.
	Count(ctx context.Context, filter model.AssignmentFilter) (int64, error)
	// Update applies changes to the assignment owned according to check. When
	// id matches nothing, a new assignment owned by owner is inserted with
	// that id instead and check is not consulted. An empty owner makes that
	// insert fail with InvalidArgument.
	Update(ctx context.Context, id, owner string, changes model.AssignmentChanges, check OwnerCheck) (*model.UpdateResult, error)
	// Delete removes the assignment once check accepts its owner.
	Delete(ctx context.Context, id string, check OwnerCheck) (*model.DeleteResult, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, s *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	// List returns every submission matching filter in insertion order.
	List(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error)
	// Grade writes only the grade fields. When id matches nothing, a document
	// holding only those fields is inserted with that id.
	Grade(ctx context.Context, id string, grade model.Grade) (*model.UpdateResult, error)
}

// Store bundles both repositories with the lifecycle of the connection they
// share. server.Server owns one Store and closes it on shutdown.
type Store interface {
	Assignments() AssignmentRepository
	Submissions() SubmissionRepository
	Close() error
}
