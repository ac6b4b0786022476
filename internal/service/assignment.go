// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the store
//
// Services take repository interfaces, never a concrete store, so the same
// rules run over SQLite, MongoDB, or the in-memory fakes used in tests.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/sakif/group-study/internal/apperror"
	"github.com/sakif/group-study/internal/auth"
	"github.com/sakif/group-study/internal/model"
	"github.com/sakif/group-study/internal/repository"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// ListAssignmentsQuery is one page request. Nil Page and Limit mean "use the
// default"; an explicit value below 1 is rejected.
type ListAssignmentsQuery struct {
	Page       *int   `json:"page" validate:"omitempty,min=1"`
	Limit      *int   `json:"limit" validate:"omitempty,min=1"`
	Difficulty string `json:"difficulty" validate:"max=64"`
}

// AssignmentOptions tunes listing behaviour.
type AssignmentOptions struct {
	// FilteredCount makes totalCount count only the items matching the
	// filter. By default it counts the whole collection, which is what
	// existing clients were built against.
	FilteredCount bool
	// DefaultLimit is the page size when the request names none.
	DefaultLimit int
}

// AssignmentService handles the business logic for assignments.
type AssignmentService struct {
	repo   repository.AssignmentRepository
	opts   AssignmentOptions
	logger *slog.Logger
}

func NewAssignmentService(repo repository.AssignmentRepository, opts AssignmentOptions, logger *slog.Logger) *AssignmentService {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultListLimit
	}
	if opts.DefaultLimit > MaxListLimit {
		opts.DefaultLimit = MaxListLimit
	}
	return &AssignmentService{
		repo:   repo,
		opts:   opts,
		logger: logger,
	}
}

// List returns one page of assignments in insertion order. Limits above
// MaxListLimit are clamped.
func (s *AssignmentService) List(ctx context.Context, q ListAssignmentsQuery) (*model.AssignmentPage, error) {
	if err := validateStruct(q); err != nil {
		return nil, err
	}

	page, limit := 1, s.opts.DefaultLimit
	if q.Page != nil {
		page = *q.Page
	}
	if q.Limit != nil {
		limit = min(*q.Limit, MaxListLimit)
	}
	if page-1 > math.MaxInt/limit {
		return nil, apperror.InvalidArgument("page", "page is too large")
	}

	filter := model.AssignmentFilter{Difficulty: q.Difficulty}
	items, err := s.repo.List(ctx, filter, repository.ListOptions{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		s.logger.Error("failed to list assignments", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing assignments: %w", err)
	}

	countFilter := model.AssignmentFilter{}
	if s.opts.FilteredCount {
		countFilter = filter
	}
	total, err := s.repo.Count(ctx, countFilter)
	if err != nil {
		s.logger.Error("failed to count assignments", slog.String("error", err.Error()))
		return nil, fmt.Errorf("counting assignments: %w", err)
	}

	return &model.AssignmentPage{Items: items, TotalCount: total}, nil
}

func (s *AssignmentService) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	if id == "" {
		return nil, apperror.InvalidArgument("id", "id is required")
	}
	return s.repo.GetByID(ctx, id)
}

// Create stores the assignment as given. Anyone may create one, and the
// owner is whatever email the payload carries.
func (s *AssignmentService) Create(ctx context.Context, a *model.Assignment) (*model.InsertResult, error) {
	if err := s.repo.Create(ctx, a); err != nil {
		s.logger.Error("failed to create assignment", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating assignment: %w", err)
	}

	s.logger.Info("assignment created",
		slog.String("id", a.ID),
		slog.String("owner", a.Email),
	)
	return &model.InsertResult{Acknowledged: true, InsertedID: a.ID}, nil
}

// Update applies payload to the assignment id on behalf of requester, who
// must be its owner. The payload's _id, email and timestamps are ignored.
//
// When id matches nothing the update becomes an insert; the new assignment
// is owned by the payload's email, or by requester when the payload has none.
// With neither, the insert is rejected as InvalidArgument.
func (s *AssignmentService) Update(ctx context.Context, id, requester string, payload map[string]any) (*model.UpdateResult, error) {
	if id == "" {
		return nil, apperror.InvalidArgument("id", "id is required")
	}

	owner, _ := payload[model.KeyEmail].(string)
	if owner == "" {
		owner = requester
	}
	changes, err := model.AssignmentChangesFromFields(payload)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.Update(ctx, id, owner, changes, auth.OwnerCheck(auth.ActionUpdate, requester))
	if err != nil {
		s.logFailure("update", id, requester, err)
		return nil, fmt.Errorf("updating assignment %s: %w", id, err)
	}

	if result.UpsertedID != nil {
		s.logger.Info("assignment upserted", slog.String("id", id), slog.String("owner", owner))
	} else {
		s.logger.Info("assignment updated", slog.String("id", id), slog.String("owner", requester))
	}
	return result, nil
}

// Delete removes the assignment id if requester owns it.
func (s *AssignmentService) Delete(ctx context.Context, id, requester string) (*model.DeleteResult, error) {
	if id == "" {
		return nil, apperror.InvalidArgument("id", "id is required")
	}

	result, err := s.repo.Delete(ctx, id, auth.OwnerCheck(auth.ActionDelete, requester))
	if err != nil {
		s.logFailure("delete", id, requester, err)
		return nil, fmt.Errorf("deleting assignment %s: %w", id, err)
	}

	s.logger.Info("assignment deleted", slog.String("id", id), slog.String("owner", requester))
	return result, nil
}

// logFailure logs a rejected or failed write at a level matching its cause.
func (s *AssignmentService) logFailure(action, id, requester string, err error) {
	attrs := []any{
		slog.String("id", id),
		slog.String("requester", requester),
		slog.String("error", err.Error()),
	}
	switch {
	case errors.Is(err, apperror.ErrUnauthorized), errors.Is(err, apperror.ErrConflict):
		s.logger.Warn("assignment "+action+" rejected", attrs...)
	case errors.Is(err, apperror.ErrNotFound), errors.Is(err, apperror.ErrInvalidArgument):
		s.logger.Info("assignment "+action+" rejected", attrs...)
	default:
		s.logger.Error("failed to "+action+" assignment", attrs...)
	}
}
