// Package sqlite implements the repository interfaces on SQLite, the default
// storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite: no C compiler is
// needed and cross-compilation works everywhere Go works. It ships the JSON1
// functions, which the assignment update relies on (json_patch merges the
// attribute document inside the UPDATE statement itself).
//
// Free-form resource attributes are stored as a JSON object in an
// "attributes" column next to the typed columns that queries filter on.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/group-study/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and hands out the two repositories that
// share it.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database and runs migrations.
//
// dbPath examples:
//   - "data/groupstudy.db" → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
//
// sql.Open does not connect; Ping forces the first connection so a bad path
// or permissions issue fails here instead of on the first request.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database.
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	// Concurrent writers wait for the lock instead of failing with SQLITE_BUSY.
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Assignments returns the assignment repository backed by this database.
func (db *DB) Assignments() repository.AssignmentRepository {
	return &AssignmentDB{conn: db.conn}
}

// Submissions returns the submission repository backed by this database.
func (db *DB) Submissions() repository.SubmissionRepository {
	return &SubmissionDB{conn: db.conn}
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
//
// Both tables keep their implicit rowid, which gives the insertion order
// that listings are sorted by.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS assignments (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL DEFAULT '',
			difficulty TEXT NOT NULL DEFAULT '',
			attributes TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_assignments_difficulty ON assignments(difficulty);
	`)
	if err != nil {
		return fmt.Errorf("creating assignments table: %w", err)
	}

	// obtain_marks and feedback stay NULL until the submission is graded.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS submissions (
			id           TEXT PRIMARY KEY,
			user_email   TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT '',
			obtain_marks REAL,
			feedback     TEXT,
			attributes   TEXT NOT NULL DEFAULT '{}',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_submissions_user_email ON submissions(user_email);
		CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
	`)
	if err != nil {
		return fmt.Errorf("creating submissions table: %w", err)
	}

	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
