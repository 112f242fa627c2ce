// Package index maintains the global work-package index in SQLite: the
// cross-idea record of every work package, the tasks assigned to each,
// and the counters behind global WP numbering. The index is what makes
// the task-uniqueness guarantee cheap to enforce and lets the scheduler
// re-check its view right before committing a batch.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/planforge/planforge/internal/domain"
	"github.com/planforge/planforge/internal/errors"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// PackageRecord is one work package as the index sees it. The artifact
// store keeps the full document; the index keeps only what scheduling
// and lifecycle decisions need.
type PackageRecord struct {
	ID        domain.WorkPackageID
	IdeaID    string
	Status    domain.WPStatus
	Goal      string
	Tasks     []domain.TaskID
	Points    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Index is the SQLite-backed work-package index.
type Index struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the index database at path and runs
// migrations.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexOpen,
			fmt.Sprintf("cannot create index directory for %s", path), err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexOpen,
			fmt.Sprintf("cannot open work-package index at %s", path), err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.Wrap(errors.ErrCodeIndexOpen, fmt.Sprintf("pragma %q", p), err)
		}
	}

	idx := &Index{db: db, path: path}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the underlying database.
func (x *Index) Close() error { return x.db.Close() }

// Path returns the database file path.
func (x *Index) Path() string { return x.path }

func (x *Index) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS workpackages (
			id         TEXT PRIMARY KEY,
			idea_id    TEXT NOT NULL,
			status     TEXT NOT NULL,
			goal       TEXT NOT NULL DEFAULT '',
			points     INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_wp_idea_status
			ON workpackages(idea_id, status);

		CREATE TABLE IF NOT EXISTS assignments (
			idea_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			wp_id   TEXT NOT NULL REFERENCES workpackages(id) ON DELETE CASCADE,
			UNIQUE(idea_id, task_id)
		);

		CREATE TABLE IF NOT EXISTS counters (
			name  TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);

		INSERT OR IGNORE INTO counters(name, value) VALUES ('wp_seq', 0);
		INSERT OR IGNORE INTO counters(name, value) VALUES ('generation', 0);
	`
	if _, err := x.db.Exec(schema); err != nil {
		return errors.Wrap(errors.ErrCodeIndexOpen, "schema migration failed", err)
	}
	return nil
}

// Generation returns the index's mutation counter. It bumps on every
// write, so a scheduler can detect that the index moved between its
// read and its insert.
func (x *Index) Generation() (int64, error) {
	var gen int64
	err := x.db.QueryRow(`SELECT value FROM counters WHERE name = 'generation'`).Scan(&gen)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeIndexQuery, "cannot read index generation", err)
	}
	return gen, nil
}

// NextWorkPackageID allocates the next WP number from the global
// sequence. Numbers are never reused, even when a package is later
// removed.
func (x *Index) NextWorkPackageID() (domain.WorkPackageID, error) {
	tx, err := x.db.Begin()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeIndexQuery, "cannot begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE counters SET value = value + 1 WHERE name = 'wp_seq'`); err != nil {
		return "", errors.Wrap(errors.ErrCodeIndexQuery, "cannot advance WP sequence", err)
	}
	var seq int
	if err := tx.QueryRow(`SELECT value FROM counters WHERE name = 'wp_seq'`).Scan(&seq); err != nil {
		return "", errors.Wrap(errors.ErrCodeIndexQuery, "cannot read WP sequence", err)
	}
	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(errors.ErrCodeIndexQuery, "cannot commit WP sequence", err)
	}
	return domain.FormatWorkPackageID(seq), nil
}

// RecordPackage inserts a work package and its task assignments in one
// transaction. expectedGen is the generation the caller planned
// against: if the index has moved since, nothing is written and a
// SCHED-002 conflict comes back so the caller can re-read and retry. A
// task already assigned elsewhere yields a SCHED-001 duplicate error.
func (x *Index) RecordPackage(rec PackageRecord, expectedGen int64) error {
	tx, err := x.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeIndexQuery, "cannot begin transaction", err)
	}
	defer tx.Rollback()

	var gen int64
	if err := tx.QueryRow(`SELECT value FROM counters WHERE name = 'generation'`).Scan(&gen); err != nil {
		return errors.Wrap(errors.ErrCodeIndexQuery, "cannot read index generation", err)
	}
	if gen != expectedGen {
		return errors.New(errors.ErrCodeSchedIndexConflict,
			fmt.Sprintf("index moved from generation %d to %d while planning %s", expectedGen, gen, rec.ID)).
			WithSuggestion("re-read the index and re-plan the batch")
	}

	for _, taskID := range rec.Tasks {
		var existing string
		err := tx.QueryRow(
			`SELECT wp_id FROM assignments WHERE idea_id = ? AND task_id = ?`,
			rec.IdeaID, taskID.String(),
		).Scan(&existing)
		switch {
		case err == nil:
			return errors.NewDuplicateAssignmentError(taskID.String(), existing)
		case err != sql.ErrNoRows:
			return errors.Wrap(errors.ErrCodeIndexQuery,
				fmt.Sprintf("cannot check assignment of %s", taskID), err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(
		`INSERT INTO workpackages(id, idea_id, status, goal, points, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.IdeaID, rec.Status.String(), rec.Goal, rec.Points, now, now,
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIndexQuery,
			fmt.Sprintf("cannot insert work package %s", rec.ID), err)
	}

	for _, taskID := range rec.Tasks {
		_, err = tx.Exec(
			`INSERT INTO assignments(idea_id, task_id, wp_id) VALUES (?, ?, ?)`,
			rec.IdeaID, taskID.String(), rec.ID.String(),
		)
		if err != nil {
			// Someone else grabbed the task between the check above and
			// this insert. Same contract as the pre-check.
			return errors.NewDuplicateAssignmentError(taskID.String(), rec.ID.String())
		}
	}

	if _, err := tx.Exec(`UPDATE counters SET value = value + 1 WHERE name = 'generation'`); err != nil {
		return errors.Wrap(errors.ErrCodeIndexQuery, "cannot advance index generation", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeIndexQuery,
			fmt.Sprintf("cannot commit work package %s", rec.ID), err)
	}
	return nil
}

// UpdateStatus moves a work package to the given status and bumps the
// index generation. The transition itself must already have been
// validated by the lifecycle controller.
func (x *Index) UpdateStatus(wpID domain.WorkPackageID, status domain.WPStatus) error {
	tx, err := x.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeIndexQuery, "cannot begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.Exec(
		`UPDATE workpackages SET status = ?, updated_at = ? WHERE id = ?`,
		status.String(), now, wpID.String(),
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIndexQuery,
			fmt.Sprintf("cannot update status of %s", wpID), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeIndexQuery,
			fmt.Sprintf("work package %s is not in the index", wpID))
	}
	if _, err := tx.Exec(`UPDATE counters SET value = value + 1 WHERE name = 'generation'`); err != nil {
		return errors.Wrap(errors.ErrCodeIndexQuery, "cannot advance index generation", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeIndexQuery,
			fmt.Sprintf("cannot commit status of %s", wpID), err)
	}
	return nil
}

// AssignedTasks returns every task of the idea that already belongs to
// a work package, with the owning package's current status. The
// scheduler treats these as unavailable; the dependency graph treats
// non-blocked ones as in flight.
func (x *Index) AssignedTasks(ideaID string) (map[domain.TaskID]domain.WPStatus, error) {
	rows, err := x.db.Query(
		`SELECT a.task_id, w.status
		   FROM assignments a JOIN workpackages w ON a.wp_id = w.id
		  WHERE a.idea_id = ?`, ideaID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexQuery, "cannot list assigned tasks", err)
	}
	defer rows.Close()

	assigned := make(map[domain.TaskID]domain.WPStatus)
	for rows.Next() {
		var taskID, status string
		if err := rows.Scan(&taskID, &status); err != nil {
			return nil, errors.Wrap(errors.ErrCodeIndexQuery, "cannot scan assignment row", err)
		}
		assigned[domain.TaskID(taskID)] = domain.WPStatus(status)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexQuery, "assignment rows", err)
	}
	return assigned, nil
}

// Packages returns the idea's work packages, oldest first by ID.
func (x *Index) Packages(ideaID string) ([]PackageRecord, error) {
	rows, err := x.db.Query(
		`SELECT id, idea_id, status, goal, points, created_at, updated_at
		   FROM workpackages WHERE idea_id = ? ORDER BY id`, ideaID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexQuery, "cannot list work packages", err)
	}
	defer rows.Close()

	var records []PackageRecord
	for rows.Next() {
		rec, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexQuery, "work package rows", err)
	}

	for i := range records {
		tasks, err := x.packageTasks(records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Tasks = tasks
	}
	return records, nil
}

// PackagesByStatus returns the idea's work packages in the given
// status, oldest first by ID.
func (x *Index) PackagesByStatus(ideaID string, status domain.WPStatus) ([]PackageRecord, error) {
	all, err := x.Packages(ideaID)
	if err != nil {
		return nil, err
	}
	var out []PackageRecord
	for _, rec := range all {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

// InProgress returns the idea's in-progress package, or nil when there
// is none. At most one package per idea may be in progress; if the
// index somehow holds more, the lowest ID wins and the caller's guard
// will refuse to start another.
func (x *Index) InProgress(ideaID string) (*PackageRecord, error) {
	recs, err := x.PackagesByStatus(ideaID, domain.StatusInProgress)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// Get returns one work package record by ID.
func (x *Index) Get(wpID domain.WorkPackageID) (*PackageRecord, error) {
	row := x.db.QueryRow(
		`SELECT id, idea_id, status, goal, points, created_at, updated_at
		   FROM workpackages WHERE id = ?`, wpID.String())
	rec, err := scanPackage(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeIndexQuery,
			fmt.Sprintf("work package %s is not in the index", wpID))
	}
	if err != nil {
		return nil, err
	}
	rec.Tasks, err = x.packageTasks(rec.ID)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (x *Index) packageTasks(wpID domain.WorkPackageID) ([]domain.TaskID, error) {
	rows, err := x.db.Query(`SELECT task_id FROM assignments WHERE wp_id = ?`, wpID.String())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexQuery,
			fmt.Sprintf("cannot list tasks of %s", wpID), err)
	}
	defer rows.Close()

	var tasks []domain.TaskID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(errors.ErrCodeIndexQuery, "cannot scan task row", err)
		}
		tasks = append(tasks, domain.TaskID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIndexQuery, "task rows", err)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i] < tasks[j] })
	return tasks, nil
}

type rowLike interface {
	Scan(dest ...any) error
}

func scanPackage(row rowLike) (PackageRecord, error) {
	var rec PackageRecord
	var id, ideaID, status, goal, createdAt, updatedAt string
	err := row.Scan(&id, &ideaID, &status, &goal, &rec.Points, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return rec, err
	}
	if err != nil {
		return rec, errors.Wrap(errors.ErrCodeIndexQuery, "cannot scan work package row", err)
	}
	rec.ID = domain.WorkPackageID(id)
	rec.IdeaID = ideaID
	rec.Status = domain.WPStatus(status)
	rec.Goal = goal
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return rec, nil
}
