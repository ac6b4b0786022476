package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/group-study/internal/apperror"
	"github.com/sakif/group-study/internal/model"
	"github.com/sakif/group-study/internal/repository"
)

var _ repository.SubmissionRepository = (*SubmissionDB)(nil)

// SubmissionDB stores submissions in the "submissions" table.
type SubmissionDB struct {
	conn *sql.DB
}

const submissionColumns = `id, user_email, status, obtain_marks, feedback, attributes, created_at, updated_at`

func (r *SubmissionDB) Create(ctx context.Context, s *model.Submission) error {
	attrs, err := encodeAttributes(s.Attributes)
	if err != nil {
		return apperror.Storage("creating submission", err)
	}

	s.ID = xid.New().String()
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err = r.conn.ExecContext(ctx,
		`INSERT INTO submissions (`+submissionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserEmail, s.Status, nullFloat(s.ObtainMarks), nullString(s.Feedback),
		attrs, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return apperror.Storage("creating submission", fmt.Errorf("sqlite: %w", err))
	}
	return nil
}

func (r *SubmissionDB) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	s, err := scanSubmission(r.conn.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("submission", id)
		}
		return nil, apperror.Storage("getting submission", fmt.Errorf("sqlite: getting submission %s: %w", id, err))
	}
	return s, nil
}

// List returns every matching submission in insertion order. Submission
// listings are not paginated.
func (r *SubmissionDB) List(ctx context.Context, filter model.SubmissionFilter) ([]model.Submission, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.UserEmail != "" {
		conds = append(conds, "user_email = ?")
		args = append(args, filter.UserEmail)
	}
	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY rowid`

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Storage("listing submissions", fmt.Errorf("sqlite: %w", err))
	}
	defer rows.Close()

	items := make([]model.Submission, 0)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, apperror.Storage("listing submissions", fmt.Errorf("sqlite: scanning submission row: %w", err))
		}
		items = append(items, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("listing submissions", fmt.Errorf("sqlite: iterating submissions: %w", err))
	}
	return items, nil
}

// Grade writes the non-nil grade fields. COALESCE keeps the stored value for
// every field the grade leaves out; nothing else on the row is touched.
//
// When no row has this id, a row holding only the grade fields is inserted.
func (r *SubmissionDB) Grade(ctx context.Context, id string, grade model.Grade) (*model.UpdateResult, error) {
	now := time.Now().UTC()
	marks, feedback, status := nullFloat(grade.ObtainMarks), nullString(grade.Feedback), nullString(grade.Status)

	result, err := r.conn.ExecContext(ctx,
		`UPDATE submissions
		 SET obtain_marks = COALESCE(?, obtain_marks),
		     feedback     = COALESCE(?, feedback),
		     status       = COALESCE(?, status),
		     updated_at   = ?
		 WHERE id = ?`,
		marks, feedback, status, now, id,
	)
	if err != nil {
		return nil, apperror.Storage("grading submission", fmt.Errorf("sqlite: grading submission %s: %w", id, err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, apperror.Storage("grading submission", fmt.Errorf("sqlite: checking rows affected: %w", err))
	}
	if n > 0 {
		return model.Modified(), nil
	}

	var statusValue string
	if grade.Status != nil {
		statusValue = *grade.Status
	}
	result, err = r.conn.ExecContext(ctx,
		`INSERT INTO submissions (id, status, obtain_marks, feedback, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, statusValue, marks, feedback, now, now,
	)
	if err != nil {
		return nil, apperror.Storage("grading submission", fmt.Errorf("sqlite: upserting submission %s: %w", id, err))
	}
	if n, err = result.RowsAffected(); err != nil {
		return nil, apperror.Storage("grading submission", fmt.Errorf("sqlite: checking rows affected: %w", err))
	}
	if n == 0 {
		return nil, apperror.Conflict("submission", id)
	}
	return model.Upserted(id), nil
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	var (
		s        model.Submission
		marks    sql.NullFloat64
		feedback sql.NullString
		attrs    string
	)
	if err := row.Scan(&s.ID, &s.UserEmail, &s.Status, &marks, &feedback, &attrs, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if marks.Valid {
		s.ObtainMarks = &marks.Float64
	}
	if feedback.Valid {
		s.Feedback = &feedback.String
	}
	if err := json.Unmarshal([]byte(attrs), &s.Attributes); err != nil {
		return nil, fmt.Errorf("decoding attributes of %s: %w", s.ID, err)
	}
	return &s, nil
}

// nullFloat and nullString turn optional fields into SQL NULL when unset.
func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
