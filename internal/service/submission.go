package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/group-study/internal/apperror"
	"github.com/sakif/group-study/internal/auth"
	"github.com/sakif/group-study/internal/model"
	"github.com/sakif/group-study/internal/repository"
)

// SubmissionService handles the business logic for submissions and grading.
type SubmissionService struct {
	repo   repository.SubmissionRepository
	logger *slog.Logger
}

func NewSubmissionService(repo repository.SubmissionRepository, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		repo:   repo,
		logger: logger,
	}
}

// List returns every submission matching filter. Callers must already hold
// a session; which submissions they may see is not restricted further.
func (s *SubmissionService) List(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list submissions", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	return items, nil
}

// ListMine returns the submissions of target, provided target is the
// session's own identity.
func (s *SubmissionService) ListMine(ctx context.Context, sessionIdentity, target string) ([]model.Submission, error) {
	if err := auth.MatchIdentity(sessionIdentity, target); err != nil {
		s.logger.Warn("submission listing denied",
			slog.String("session", sessionIdentity),
			slog.String("target", target),
		)
		return nil, err
	}
	return s.List(ctx, model.SubmissionFilter{UserEmail: target})
}

func (s *SubmissionService) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	if id == "" {
		return nil, apperror.InvalidArgument("id", "id is required")
	}
	return s.repo.GetByID(ctx, id)
}

// Create stores a submission unconditionally; nothing checks that the
// referenced assignment exists.
func (s *SubmissionService) Create(ctx context.Context, sub *model.Submission) (*model.InsertResult, error) {
	if err := s.repo.Create(ctx, sub); err != nil {
		s.logger.Error("failed to create submission", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating submission: %w", err)
	}

	s.logger.Info("submission created",
		slog.String("id", sub.ID),
		slog.String("userEmail", sub.UserEmail),
	)
	return &model.InsertResult{Acknowledged: true, InsertedID: sub.ID}, nil
}

// Grade writes the grade fields of submission id and nothing else. An id
// that matches nothing gets a new submission holding only the grade.
func (s *SubmissionService) Grade(ctx context.Context, id string, grade model.Grade) (*model.UpdateResult, error) {
	if id == "" {
		return nil, apperror.InvalidArgument("id", "id is required")
	}
	if err := validateStruct(grade); err != nil {
		return nil, err
	}

	result, err := s.repo.Grade(ctx, id, grade)
	if err != nil {
		if errors.Is(err, apperror.ErrStorage) {
			s.logger.Error("failed to grade submission", slog.String("id", id), slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("grading submission %s: %w", id, err)
	}

	s.logger.Info("submission graded",
		slog.String("id", id),
		slog.Bool("upserted", result.UpsertedID != nil),
	)
	return result, nil
}
