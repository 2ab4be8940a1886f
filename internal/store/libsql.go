package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/verdict/pkg/schema"
)

// ErrNotFound is the cause of errors returned for missing keys or versions.
var ErrNotFound = errors.New("decision not found")

// LibSQLStore implements Store using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/decisions.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows, so they go through QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Open opens the database at dbPath and applies pending migrations.
func Open(ctx context.Context, dbPath string) (*LibSQLStore, error) {
	s, err := NewLibSQLStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Put stores content as the next version of key, starting at 1.
func (s *LibSQLStore) Put(ctx context.Context, key string, content *schema.DecisionContent, description string) (*Decision, error) {
	if key == "" {
		return nil, schema.NewError(schema.ErrLoader, "decision key is empty")
	}
	if content == nil {
		return nil, schema.NewErrorf(schema.ErrLoader, "decision %s has no content", key)
	}
	doc, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal decision %s: %w", key, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM decisions WHERE decision_key = ?`, key,
	).Scan(&version)
	if err != nil {
		return nil, fmt.Errorf("get next version: %w", err)
	}

	createdAt := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO decisions (decision_key, version, description, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		key, version, nullStr(description), string(doc), createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert decision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit decision: %w", err)
	}

	return &Decision{Key: key, Version: version, Description: description, Content: content, CreatedAt: createdAt}, nil
}

// Get returns the latest version of key.
func (s *LibSQLStore) Get(ctx context.Context, key string) (*Decision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT decision_key, version, description, content, created_at FROM decisions
		 WHERE decision_key = ? ORDER BY version DESC LIMIT 1`, key,
	)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(key)
	}
	return d, err
}

// GetVersion returns one specific version of key.
func (s *LibSQLStore) GetVersion(ctx context.Context, key string, version int) (*Decision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT decision_key, version, description, content, created_at FROM decisions
		 WHERE decision_key = ? AND version = ?`, key, version,
	)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(fmt.Sprintf("%s@%d", key, version))
	}
	return d, err
}

// List returns the latest version of every key matching filter, ordered by key.
func (s *LibSQLStore) List(ctx context.Context, filter Filter) ([]*Decision, error) {
	var where []string
	var args []any

	if filter.Prefix != "" {
		where = append(where, "d.decision_key LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(filter.Prefix)+"%")
	}

	query := `SELECT d.decision_key, d.version, d.description, d.content, d.created_at FROM decisions d
		WHERE d.version = (SELECT MAX(version) FROM decisions WHERE decision_key = d.decision_key)`
	if len(where) > 0 {
		query += " AND " + strings.Join(where, " AND ")
	}
	query += " ORDER BY d.decision_key"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	return s.query(ctx, query, args...)
}

// Versions returns every version of key, newest first.
func (s *LibSQLStore) Versions(ctx context.Context, key string) ([]*Decision, error) {
	return s.query(ctx,
		`SELECT decision_key, version, description, content, created_at FROM decisions
		 WHERE decision_key = ? ORDER BY version DESC`, key,
	)
}

// Delete removes every version of key.
func (s *LibSQLStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE decision_key = ?`, key)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, key)
}

// Load implements capability.Loader.
func (s *LibSQLStore) Load(ctx context.Context, key string) (*schema.DecisionContent, error) {
	d, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return d.Content, nil
}

func (s *LibSQLStore) query(ctx context.Context, query string, args ...any) ([]*Decision, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDecision(sc scanner) (*Decision, error) {
	d := &Decision{}
	var desc sql.NullString
	var doc string
	if err := sc.Scan(&d.Key, &d.Version, &desc, &doc, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Description = desc.String
	if err := json.Unmarshal([]byte(doc), &d.Content); err != nil {
		return nil, schema.NewErrorf(schema.ErrLoader, "decision %s@%d: stored content is corrupt", d.Key, d.Version).WithCause(err)
	}
	return d, nil
}

// --- Helpers ---

func notFound(key string) *schema.EngineError {
	return schema.NewErrorf(schema.ErrLoader, "decision %q not found", key).WithCause(ErrNotFound)
}

func checkRowsAffected(res sql.Result, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(key)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ Store = (*LibSQLStore)(nil)
