package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/group-study/internal/apperror"
	"github.com/sakif/group-study/internal/model"
	"github.com/sakif/group-study/internal/repository"
)

var _ repository.AssignmentRepository = (*AssignmentDB)(nil)

// AssignmentDB stores assignments in the "assignments" table.
type AssignmentDB struct {
	conn *sql.DB
}

// errNoOwner rejects an upsert that would create an assignment nobody can
// ever update or delete.
var errNoOwner = apperror.InvalidArgument("email", "email is required to create an assignment")

const assignmentColumns = `id, email, difficulty, attributes, created_at, updated_at`

// Create inserts a new assignment. The ID is an xid: 20 URL-safe characters
// that sort by creation time.
func (r *AssignmentDB) Create(ctx context.Context, a *model.Assignment) error {
	attrs, err := encodeAttributes(a.Attributes)
	if err != nil {
		return apperror.Storage("creating assignment", err)
	}

	a.ID = xid.New().String()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err = r.conn.ExecContext(ctx,
		`INSERT INTO assignments (`+assignmentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.Difficulty, attrs, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return apperror.Storage("creating assignment", fmt.Errorf("sqlite: %w", err))
	}
	return nil
}

func (r *AssignmentDB) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	a, err := scanAssignment(r.conn.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("assignment", id)
		}
		return nil, apperror.Storage("getting assignment", fmt.Errorf("sqlite: getting assignment %s: %w", id, err))
	}
	return a, nil
}

// List returns one page in insertion order (rowid). The caller has already
// validated and clamped opts.
func (r *AssignmentDB) List(ctx context.Context, filter model.AssignmentFilter, opts repository.ListOptions) ([]model.Assignment, error) {
	where, args := assignmentWhere(filter)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments`+where+`
		 ORDER BY rowid
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, apperror.Storage("listing assignments", fmt.Errorf("sqlite: %w", err))
	}
	defer rows.Close()

	items := make([]model.Assignment, 0, opts.Limit)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, apperror.Storage("listing assignments", fmt.Errorf("sqlite: scanning assignment row: %w", err))
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("listing assignments", fmt.Errorf("sqlite: iterating assignments: %w", err))
	}
	return items, nil
}

func (r *AssignmentDB) Count(ctx context.Context, filter model.AssignmentFilter) (int64, error) {
	where, args := assignmentWhere(filter)

	var n int64
	if err := r.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments`+where, args...).Scan(&n); err != nil {
		return 0, apperror.Storage("counting assignments", fmt.Errorf("sqlite: %w", err))
	}
	return n, nil
}

// Update merges changes into the stored assignment.
//
// The owner is read first and handed to check; the UPDATE then repeats the
// owner in its WHERE clause, so a row whose owner changed in between is left
// alone and reported as a conflict. Attribute changes follow top-level $set
// semantics: a key is replaced wholesale, a null value removes it.
func (r *AssignmentDB) Update(ctx context.Context, id, owner string, changes model.AssignmentChanges, check repository.OwnerCheck) (*model.UpdateResult, error) {
	stored, err := r.ownerOf(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return r.upsert(ctx, id, owner, changes)
	}
	if err != nil {
		return nil, apperror.Storage("updating assignment", fmt.Errorf("sqlite: loading owner of %s: %w", id, err))
	}

	if err := check(stored); err != nil {
		return nil, err
	}

	reset, patch, err := encodePatch(changes.Attributes)
	if err != nil {
		return nil, apperror.Storage("updating assignment", err)
	}
	var difficulty any
	if changes.Difficulty != nil {
		difficulty = *changes.Difficulty
	}

	// The first json_patch drops keys whose new value is an object, so the
	// second one replaces them instead of merging into the old object.
	result, err := r.conn.ExecContext(ctx,
		`UPDATE assignments
		 SET difficulty = COALESCE(?, difficulty),
		     attributes = json_patch(json_patch(attributes, ?), ?),
		     updated_at = ?
		 WHERE id = ? AND email = ?`,
		difficulty, reset, patch, time.Now().UTC(), id, stored,
	)
	if err != nil {
		return nil, apperror.Storage("updating assignment", fmt.Errorf("sqlite: updating assignment %s: %w", id, err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, apperror.Storage("updating assignment", fmt.Errorf("sqlite: checking rows affected: %w", err))
	}
	if n == 0 {
		return nil, apperror.Conflict("assignment", id)
	}
	return model.Modified(), nil
}

// upsert inserts the assignment an update targeted but did not find.
func (r *AssignmentDB) upsert(ctx context.Context, id, owner string, changes model.AssignmentChanges) (*model.UpdateResult, error) {
	if owner == "" {
		return nil, errNoOwner
	}
	attrs, err := encodeAttributes(dropNulls(changes.Attributes))
	if err != nil {
		return nil, apperror.Storage("updating assignment", err)
	}
	var difficulty string
	if changes.Difficulty != nil {
		difficulty = *changes.Difficulty
	}
	now := time.Now().UTC()

	result, err := r.conn.ExecContext(ctx,
		`INSERT INTO assignments (`+assignmentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, owner, difficulty, attrs, now, now,
	)
	if err != nil {
		return nil, apperror.Storage("updating assignment", fmt.Errorf("sqlite: upserting assignment %s: %w", id, err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, apperror.Storage("updating assignment", fmt.Errorf("sqlite: checking rows affected: %w", err))
	}
	// Somebody else inserted the same id between our read and this insert.
	if n == 0 {
		return nil, apperror.Conflict("assignment", id)
	}
	return model.Upserted(id), nil
}

// Delete removes the assignment after check accepts its stored owner. Like
// Update, the DELETE is conditional on the owner that was checked.
func (r *AssignmentDB) Delete(ctx context.Context, id string, check repository.OwnerCheck) (*model.DeleteResult, error) {
	stored, err := r.ownerOf(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("assignment", id)
	}
	if err != nil {
		return nil, apperror.Storage("deleting assignment", fmt.Errorf("sqlite: loading owner of %s: %w", id, err))
	}

	if err := check(stored); err != nil {
		return nil, err
	}

	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM assignments WHERE id = ? AND email = ?`, id, stored,
	)
	if err != nil {
		return nil, apperror.Storage("deleting assignment", fmt.Errorf("sqlite: deleting assignment %s: %w", id, err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, apperror.Storage("deleting assignment", fmt.Errorf("sqlite: checking rows affected: %w", err))
	}
	if n == 0 {
		return nil, apperror.Conflict("assignment", id)
	}
	return &model.DeleteResult{Acknowledged: true, DeletedCount: n}, nil
}

func (r *AssignmentDB) ownerOf(ctx context.Context, id string) (string, error) {
	var email string
	err := r.conn.QueryRowContext(ctx, `SELECT email FROM assignments WHERE id = ?`, id).Scan(&email)
	return email, err
}

func assignmentWhere(filter model.AssignmentFilter) (string, []any) {
	if filter.Difficulty == "" {
		return "", nil
	}
	return ` WHERE difficulty = ?`, []any{filter.Difficulty}
}

func scanAssignment(row rowScanner) (*model.Assignment, error) {
	var (
		a     model.Assignment
		attrs string
	)
	if err := row.Scan(&a.ID, &a.Email, &a.Difficulty, &attrs, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attrs), &a.Attributes); err != nil {
		return nil, fmt.Errorf("decoding attributes of %s: %w", a.ID, err)
	}
	return &a, nil
}

// encodeAttributes renders attributes as the JSON object stored in the
// attributes column. A nil map is stored as {}.
func encodeAttributes(attrs map[string]any) (string, error) {
	if attrs == nil {
		return "{}", nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encoding attributes: %w", err)
	}
	return string(data), nil
}

// encodePatch builds the two merge patches Update applies. reset nulls out
// every key whose new value is a JSON object; patch is the change set itself.
func encodePatch(changes map[string]any) (reset, patch string, err error) {
	nulls := make(map[string]any)
	for k, v := range changes {
		if _, ok := v.(map[string]any); ok {
			nulls[k] = nil
		}
	}
	if reset, err = encodeAttributes(nulls); err != nil {
		return "", "", err
	}
	if patch, err = encodeAttributes(changes); err != nil {
		return "", "", err
	}
	return reset, patch, nil
}

func dropNulls(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
