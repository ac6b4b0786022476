package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sakif/group-study/internal/apperror"
	"github.com/sakif/group-study/internal/model"
	"github.com/sakif/group-study/internal/repository"
)

// fakeAssignmentRepo is an in-memory repository.AssignmentRepository that
// keeps insertion order in a slice.
type fakeAssignmentRepo struct {
	mu    sync.Mutex
	items []*model.Assignment
	next  int

	// set to simulate a store failure on every call
	err error
	// records the last list request
	lastList repository.ListOptions
	// records the last count filter
	lastCount *model.AssignmentFilter
}

func (f *fakeAssignmentRepo) Create(_ context.Context, a *model.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.next++
	a.ID = fmt.Sprintf("a%d", f.next)
	stored := *a
	f.items = append(f.items, &stored)
	return nil
}

func (f *fakeAssignmentRepo) find(id string) *model.Assignment {
	for _, a := range f.items {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (f *fakeAssignmentRepo) GetByID(_ context.Context, id string) (*model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a := f.find(id); a != nil {
		out := *a
		return &out, nil
	}
	return nil, apperror.NotFound("assignment", id)
}

func (f *fakeAssignmentRepo) matching(filter model.AssignmentFilter) []model.Assignment {
	out := make([]model.Assignment, 0)
	for _, a := range f.items {
		if filter.Difficulty == "" || a.Difficulty == filter.Difficulty {
			out = append(out, *a)
		}
	}
	return out
}

func (f *fakeAssignmentRepo) List(_ context.Context, filter model.AssignmentFilter, opts repository.ListOptions) ([]model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.lastList = opts
	all := f.matching(filter)
	if opts.Offset >= len(all) {
		return []model.Assignment{}, nil
	}
	all = all[opts.Offset:]
	if opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (f *fakeAssignmentRepo) Count(_ context.Context, filter model.AssignmentFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.lastCount = &filter
	return int64(len(f.matching(filter))), nil
}

func (f *fakeAssignmentRepo) Update(_ context.Context, id, owner string, changes model.AssignmentChanges, check repository.OwnerCheck) (*model.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a := f.find(id)
	if a == nil {
		if owner == "" {
			return nil, apperror.InvalidArgument("email", "email is required to create an assignment")
		}
		a = &model.Assignment{ID: id, Email: owner, Attributes: map[string]any{}}
		f.items = append(f.items, a)
		apply(a, changes)
		return model.Upserted(id), nil
	}
	if err := check(a.Email); err != nil {
		return nil, err
	}
	apply(a, changes)
	return model.Modified(), nil
}

func apply(a *model.Assignment, changes model.AssignmentChanges) {
	if changes.Difficulty != nil {
		a.Difficulty = *changes.Difficulty
	}
	for k, v := range changes.Attributes {
		if v == nil {
			delete(a.Attributes, k)
			continue
		}
		a.Attributes[k] = v
	}
}

func (f *fakeAssignmentRepo) Delete(_ context.Context, id string, check repository.OwnerCheck) (*model.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for i, a := range f.items {
		if a.ID != id {
			continue
		}
		if err := check(a.Email); err != nil {
			return nil, err
		}
		f.items = append(f.items[:i], f.items[i+1:]...)
		return &model.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
	}
	return nil, apperror.NotFound("assignment", id)
}

// fakeSubmissionRepo is an in-memory repository.SubmissionRepository.
type fakeSubmissionRepo struct {
	mu    sync.Mutex
	items []*model.Submission
	next  int
	err   error
}

func (f *fakeSubmissionRepo) Create(_ context.Context, s *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.next++
	s.ID = fmt.Sprintf("s%d", f.next)
	stored := *s
	f.items = append(f.items, &stored)
	return nil
}

func (f *fakeSubmissionRepo) GetByID(_ context.Context, id string) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.items {
		if s.ID == id {
			out := *s
			return &out, nil
		}
	}
	return nil, apperror.NotFound("submission", id)
}

func (f *fakeSubmissionRepo) List(_ context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Submission, 0)
	for _, s := range f.items {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.UserEmail != "" && s.UserEmail != filter.UserEmail {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSubmissionRepo) Grade(_ context.Context, id string, grade model.Grade) (*model.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var target *model.Submission
	for _, s := range f.items {
		if s.ID == id {
			target = s
		}
	}
	result := model.Modified()
	if target == nil {
		target = &model.Submission{ID: id}
		f.items = append(f.items, target)
		result = model.Upserted(id)
	}
	if grade.ObtainMarks != nil {
		target.ObtainMarks = grade.ObtainMarks
	}
	if grade.Feedback != nil {
		target.Feedback = grade.Feedback
	}
	if grade.Status != nil {
		target.Status = *grade.Status
	}
	return result, nil
}
