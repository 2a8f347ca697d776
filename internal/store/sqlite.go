package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"boardflow/internal/board"
	"boardflow/internal/rule"
)

//go:embed schema.sql
var schemaSQL string

// DB is the durable SQLite backend. It exposes the three store contracts as
// facets over a single connection.
//
// The database is configured with WAL mode for concurrent reads, NORMAL
// synchronous mode, a 5-second busy timeout, and a single connection - SQLite
// supports one writer at a time and the engine is single-writer by contract
// anyway.
type DB struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and applies
// pragmas and the schema. Idempotent.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Tasks returns the TaskStore facet.
func (d *DB) Tasks() TaskStore { return &sqliteTasks{db: d.db} }

// Sections returns the SectionStore facet.
func (d *DB) Sections() SectionStore { return &sqliteSections{db: d.db} }

// Rules returns the RuleStore facet.
func (d *DB) Rules() RuleStore { return &sqliteRules{db: d.db} }

// PutSection inserts or replaces a section. Section CRUD is outside the
// engine contract but the CLI needs a way to seed boards.
func (d *DB) PutSection(s *board.Section) error {
	_, err := d.db.Exec(`
		INSERT INTO sections (id, project_id, name, ord, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, ord = excluded.ord`,
		s.ID, s.ProjectID, s.Name, s.Order, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("put section %s: %w", s.ID, err)
	}
	return nil
}

// DeleteSection removes a section row. Callers are expected to follow up
// with the broken-rule scan.
func (d *DB) DeleteSection(id string) error {
	_, err := d.db.Exec("DELETE FROM sections WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete section %s: %w", id, err)
	}
	return nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

type sqliteTasks struct {
	db *sql.DB
}

const taskColumns = `id, project_id, section_id, title, ord, completed,
	completed_at, due_date, parent_id, created_at, updated_at, moved_to_section_at`

func (s *sqliteTasks) FindByID(id string) (*board.Task, error) {
	row := s.db.QueryRow("SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

func (s *sqliteTasks) FindAll() ([]*board.Task, error) {
	rows, err := s.db.Query("SELECT " + taskColumns + " FROM tasks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*board.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteTasks) FindBySectionID(sectionID string) ([]*board.Task, error) {
	return s.queryTasks("SELECT "+taskColumns+" FROM tasks WHERE section_id = ? ORDER BY ord", sectionID)
}

func (s *sqliteTasks) FindByParentID(parentID string) ([]*board.Task, error) {
	return s.queryTasks("SELECT "+taskColumns+" FROM tasks WHERE parent_id = ? ORDER BY id", parentID)
}

func (s *sqliteTasks) queryTasks(query string, args ...any) ([]*board.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*board.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteTasks) Create(t *board.Task) error {
	_, err := s.db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.SectionID, t.Title, t.Order, boolToInt(t.Completed),
		nullableInt64(t.CompletedAt), nullableInt64(t.DueDate), t.ParentID,
		t.CreatedAt, t.UpdatedAt, t.MovedToSectionAt)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	return nil
}

func (s *sqliteTasks) Update(id string, patch TaskPatch) error {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.SectionID != nil {
		add("section_id", *patch.SectionID)
	}
	if patch.Order != nil {
		add("ord", *patch.Order)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Completed != nil {
		add("completed", boolToInt(*patch.Completed))
	}
	if patch.SetCompletedAt {
		add("completed_at", nullableInt64(patch.CompletedAt))
	}
	if patch.SetDueDate {
		add("due_date", nullableInt64(patch.DueDate))
	}
	if patch.MovedToSectionAt != nil {
		add("moved_to_section_at", *patch.MovedToSectionAt)
	}
	if patch.UpdatedAt != nil {
		add("updated_at", *patch.UpdatedAt)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := s.db.Exec("UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	return requireRow(res, "task", id)
}

func (s *sqliteTasks) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return requireRow(res, "task", id)
}

type sqliteSections struct {
	db *sql.DB
}

func (s *sqliteSections) FindByID(id string) (*board.Section, error) {
	var sec board.Section
	err := s.db.QueryRow(
		"SELECT id, project_id, name, ord, created_at FROM sections WHERE id = ?", id).
		Scan(&sec.ID, &sec.ProjectID, &sec.Name, &sec.Order, &sec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("section %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query section %s: %w", id, err)
	}
	return &sec, nil
}

func (s *sqliteSections) FindAll() ([]*board.Section, error) {
	rows, err := s.db.Query("SELECT id, project_id, name, ord, created_at FROM sections ORDER BY ord, id")
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	var out []*board.Section
	for rows.Next() {
		var sec board.Section
		if err := rows.Scan(&sec.ID, &sec.ProjectID, &sec.Name, &sec.Order, &sec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		out = append(out, &sec)
	}
	return out, rows.Err()
}

type sqliteRules struct {
	db *sql.DB
}

const ruleColumns = `id, project_id, name, trigger_spec, filters, action, enabled,
	broken_reason, execution_count, last_executed_at, recent_executions, ord,
	created_at, updated_at`

func (s *sqliteRules) FindByID(id string) (*rule.Rule, error) {
	row := s.db.QueryRow("SELECT "+ruleColumns+" FROM rules WHERE id = ?", id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return r, err
}

func (s *sqliteRules) FindAll() ([]*rule.Rule, error) {
	return s.queryRules("SELECT " + ruleColumns + " FROM rules ORDER BY ord, id")
}

func (s *sqliteRules) FindByProjectID(projectID string) ([]*rule.Rule, error) {
	return s.queryRules(
		"SELECT "+ruleColumns+" FROM rules WHERE project_id = ? ORDER BY ord, id", projectID)
}

func (s *sqliteRules) queryRules(query string, args ...any) ([]*rule.Rule, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []*rule.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteRules) Create(r *rule.Rule) error {
	trigger, filters, action, executions, err := marshalRuleColumns(r)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProjectID, r.Name, trigger, filters, action, boolToInt(r.Enabled),
		r.BrokenReason, r.ExecutionCount, nullableInt64(r.LastExecutedAt),
		executions, r.Order, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create rule %s: %w", r.ID, err)
	}
	return nil
}

// Update applies a partial update. LastEvaluatedAt lives inside the trigger
// JSON, so patches touching it re-marshal the trigger column via a
// read-modify-write; the single-connection setup keeps that race-free.
func (s *sqliteRules) Update(id string, patch RulePatch) error {
	if patch.LastEvaluatedAt != nil {
		r, err := s.FindByID(id)
		if err != nil {
			return err
		}
		v := *patch.LastEvaluatedAt
		r.Trigger.LastEvaluatedAt = &v
		trigger, err := json.Marshal(r.Trigger)
		if err != nil {
			return fmt.Errorf("marshal trigger for rule %s: %w", id, err)
		}
		if _, err := s.db.Exec("UPDATE rules SET trigger_spec = ? WHERE id = ?", string(trigger), id); err != nil {
			return fmt.Errorf("update rule %s trigger: %w", id, err)
		}
	}

	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if patch.Enabled != nil {
		add("enabled", boolToInt(*patch.Enabled))
	}
	if patch.BrokenReason != nil {
		add("broken_reason", *patch.BrokenReason)
	}
	if patch.ExecutionCount != nil {
		add("execution_count", *patch.ExecutionCount)
	}
	if patch.LastExecutedAt != nil {
		add("last_executed_at", *patch.LastExecutedAt)
	}
	if patch.RecentExecutions != nil {
		data, err := json.Marshal(*patch.RecentExecutions)
		if err != nil {
			return fmt.Errorf("marshal executions for rule %s: %w", id, err)
		}
		add("recent_executions", string(data))
	}
	if patch.UpdatedAt != nil {
		add("updated_at", *patch.UpdatedAt)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := s.db.Exec("UPDATE rules SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update rule %s: %w", id, err)
	}
	return requireRow(res, "rule", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*board.Task, error) {
	var t board.Task
	var completed int
	var completedAt, dueDate sql.NullInt64
	err := row.Scan(&t.ID, &t.ProjectID, &t.SectionID, &t.Title, &t.Order,
		&completed, &completedAt, &dueDate, &t.ParentID,
		&t.CreatedAt, &t.UpdatedAt, &t.MovedToSectionAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.Completed = completed != 0
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Int64
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Int64
	}
	return &t, nil
}

func scanRule(row rowScanner) (*rule.Rule, error) {
	var r rule.Rule
	var enabled int
	var lastExecutedAt sql.NullInt64
	var trigger, filters, action, executions string
	err := row.Scan(&r.ID, &r.ProjectID, &r.Name, &trigger, &filters, &action,
		&enabled, &r.BrokenReason, &r.ExecutionCount, &lastExecutedAt,
		&executions, &r.Order, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	r.Enabled = enabled != 0
	if lastExecutedAt.Valid {
		r.LastExecutedAt = &lastExecutedAt.Int64
	}
	if err := json.Unmarshal([]byte(trigger), &r.Trigger); err != nil {
		return nil, fmt.Errorf("unmarshal trigger for rule %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(filters), &r.Filters); err != nil {
		return nil, fmt.Errorf("unmarshal filters for rule %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(action), &r.Action); err != nil {
		return nil, fmt.Errorf("unmarshal action for rule %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(executions), &r.RecentExecutions); err != nil {
		return nil, fmt.Errorf("unmarshal executions for rule %s: %w", r.ID, err)
	}
	return &r, nil
}

func marshalRuleColumns(r *rule.Rule) (trigger, filters, action, executions string, err error) {
	t, err := json.Marshal(r.Trigger)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshal trigger: %w", err)
	}
	f, err := json.Marshal(r.Filters)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshal filters: %w", err)
	}
	a, err := json.Marshal(r.Action)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshal action: %w", err)
	}
	e, err := json.Marshal(r.RecentExecutions)
	if err != nil {
		return "", "", "", "", fmt.Errorf("marshal executions: %w", err)
	}
	if r.Filters == nil {
		f = []byte("[]")
	}
	if r.RecentExecutions == nil {
		e = []byte("[]")
	}
	return string(t), string(f), string(a), string(e), nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
