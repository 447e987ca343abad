package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/foodcanon/pkg/foodcanon/internalerr"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode and foreign keys
// enabled on every pooled connection.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, internalerr.ErrStoreUnavailable)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %v: %w", path, err, internalerr.ErrStoreUnavailable)
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS canonical_results (
	external_id INTEGER NOT NULL,
	level TEXT NOT NULL,
	name TEXT NOT NULL,
	slug TEXT NOT NULL,
	description TEXT,
	data_type TEXT,
	removed_tokens TEXT,
	rule_version TEXT NOT NULL,
	PRIMARY KEY(external_id, level)
);

CREATE INDEX IF NOT EXISTS idx_canonical_slug ON canonical_results(slug);

CREATE TABLE IF NOT EXISTS mapping_runs (
	id TEXT PRIMARY KEY,
	config_hash TEXT NOT NULL,
	status TEXT NOT NULL,
	strategy TEXT,
	tokenizer_version TEXT,
	rule_version TEXT,
	catalog_size INTEGER NOT NULL DEFAULT 0,
	ingredients INTEGER NOT NULL DEFAULT 0,
	mapped INTEGER NOT NULL DEFAULT 0,
	needs_review INTEGER NOT NULL DEFAULT 0,
	no_match INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_winners (
	run_id TEXT NOT NULL,
	ingredient_key TEXT NOT NULL,
	ingredient_text TEXT NOT NULL,
	frequency INTEGER NOT NULL DEFAULT 0,
	matched_external_id INTEGER,
	score REAL NOT NULL,
	status TEXT NOT NULL,
	reason_codes TEXT,
	PRIMARY KEY(run_id, ingredient_key),
	FOREIGN KEY(run_id) REFERENCES mapping_runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS run_breakdowns (
	run_id TEXT NOT NULL,
	ingredient_key TEXT NOT NULL,
	overlap REAL NOT NULL,
	jw_raw REAL NOT NULL,
	jw_gated REAL NOT NULL,
	gated INTEGER NOT NULL,
	segment REAL NOT NULL,
	segment_level TEXT NOT NULL,
	affinity REAL NOT NULL,
	synonym REAL NOT NULL,
	PRIMARY KEY(run_id, ingredient_key),
	FOREIGN KEY(run_id, ingredient_key) REFERENCES run_winners(run_id, ingredient_key) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS run_near_ties (
	run_id TEXT NOT NULL,
	ingredient_key TEXT NOT NULL,
	rank INTEGER NOT NULL,
	external_id INTEGER NOT NULL,
	score REAL NOT NULL,
	PRIMARY KEY(run_id, ingredient_key, rank),
	FOREIGN KEY(run_id, ingredient_key) REFERENCES run_winners(run_id, ingredient_key) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS current_run (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	run_id TEXT NOT NULL,
	promoted_at TEXT NOT NULL,
	FOREIGN KEY(run_id) REFERENCES mapping_runs(id)
);

CREATE TABLE IF NOT EXISTS identities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL,
	name TEXT NOT NULL,
	level TEXT NOT NULL,
	rank INTEGER NOT NULL DEFAULT 0,
	version INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(slug, version)
);

CREATE TABLE IF NOT EXISTS memberships (
	identity_id INTEGER NOT NULL,
	external_id INTEGER NOT NULL,
	reason TEXT NOT NULL,
	weight REAL NOT NULL,
	PRIMARY KEY(identity_id, external_id, reason),
	FOREIGN KEY(identity_id) REFERENCES identities(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS aliases (
	alias TEXT PRIMARY KEY,
	identity_id INTEGER NOT NULL,
	run_id TEXT,
	FOREIGN KEY(identity_id) REFERENCES identities(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS nutrient_amounts (
	external_id INTEGER NOT NULL,
	nutrient_id INTEGER NOT NULL,
	name TEXT,
	unit TEXT NOT NULL,
	amount REAL NOT NULL,
	PRIMARY KEY(external_id, nutrient_id)
);

CREATE TABLE IF NOT EXISTS nutrient_boundaries (
	identity_id INTEGER NOT NULL,
	nutrient_id INTEGER NOT NULL,
	name TEXT,
	unit TEXT NOT NULL,
	median REAL NOT NULL,
	p10 REAL,
	p25 REAL,
	p75 REAL,
	p90 REAL,
	min REAL NOT NULL,
	max REAL NOT NULL,
	sample_count INTEGER NOT NULL,
	total_member_count INTEGER NOT NULL,
	PRIMARY KEY(identity_id, nutrient_id),
	FOREIGN KEY(identity_id) REFERENCES identities(id) ON DELETE CASCADE
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// PutCanonical upserts canonical results in one transaction.
func (s *sqliteStore) PutCanonical(ctx context.Context, recs []store.CanonicalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO canonical_results (external_id, level, name, slug, description, data_type, removed_tokens, rule_version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(external_id, level) DO UPDATE SET
	name=excluded.name,
	slug=excluded.slug,
	description=excluded.description,
	data_type=excluded.data_type,
	removed_tokens=excluded.removed_tokens,
	rule_version=excluded.rule_version
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		removed, err := encodeStrings(r.RemovedTokens)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.ExternalID, string(r.Level), r.Name, r.Slug,
			r.Description, r.DataType, removed, r.RuleVersion); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const canonicalColumns = `external_id, level, name, slug, description, data_type, removed_tokens, rule_version`

// GetCanonical returns one canonical result.
func (s *sqliteStore) GetCanonical(ctx context.Context, externalID int64, level store.Level) (store.CanonicalRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_results WHERE external_id = ? AND level = ?`,
		externalID, string(level))
	r, err := scanCanonical(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.CanonicalRecord{}, fmt.Errorf("canonical %d/%s: %w", externalID, level, internalerr.ErrNotFound)
	}
	return r, err
}

// CanonicalRecords returns every canonical result.
func (s *sqliteStore) CanonicalRecords(ctx context.Context) ([]store.CanonicalRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_results ORDER BY external_id, level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.CanonicalRecord
	for rows.Next() {
		r, err := scanCanonical(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCanonical(sc scanner) (store.CanonicalRecord, error) {
	var (
		r                             store.CanonicalRecord
		level                         string
		description, dataType, tokens sql.NullString
	)
	if err := sc.Scan(&r.ExternalID, &level, &r.Name, &r.Slug, &description, &dataType, &tokens, &r.RuleVersion); err != nil {
		return store.CanonicalRecord{}, err
	}
	r.Level = store.Level(level)
	r.Description = description.String
	r.DataType = dataType.String
	removed, err := decodeStrings(tokens.String)
	if err != nil {
		return store.CanonicalRecord{}, err
	}
	r.RemovedTokens = removed
	return r, nil
}

func encodeStrings(items []string) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStrings(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
