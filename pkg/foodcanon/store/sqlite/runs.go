package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cognicore/foodcanon/pkg/foodcanon/internalerr"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
)

// SaveRun writes a run, its winners, breakdowns and near-ties in a single
// transaction. Any failure rolls the whole run back.
func (s *sqliteStore) SaveRun(ctx context.Context, batch store.RunBatch) error {
	run := batch.Run
	if run.ID == "" {
		return fmt.Errorf("save run: empty id: %w", internalerr.ErrInvalidInput)
	}
	if run.Status == "" {
		run.Status = store.RunStaging
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO mapping_runs (id, config_hash, status, strategy, tokenizer_version, rule_version,
	catalog_size, ingredients, mapped, needs_review, no_match, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ConfigHash, string(run.Status), run.Strategy, run.TokenizerVersion, run.RuleVersion,
		run.CatalogSize, run.Summary.Ingredients, run.Summary.Mapped, run.Summary.NeedsReview,
		run.Summary.NoMatch, formatTime(run.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	if err := insertWinners(ctx, tx, run.ID, batch.Winners); err != nil {
		return err
	}
	if err := insertNearTies(ctx, tx, run.ID, batch.NearTies); err != nil {
		return err
	}

	return tx.Commit()
}

func insertWinners(ctx context.Context, tx *sql.Tx, runID string, winners []store.Winner) error {
	if len(winners) == 0 {
		return nil
	}
	wStmt, err := tx.PrepareContext(ctx, `
INSERT INTO run_winners (run_id, ingredient_key, ingredient_text, frequency, matched_external_id, score, status, reason_codes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer wStmt.Close()

	bStmt, err := tx.PrepareContext(ctx, `
INSERT INTO run_breakdowns (run_id, ingredient_key, overlap, jw_raw, jw_gated, gated, segment, segment_level, affinity, synonym)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer bStmt.Close()

	for _, w := range winners {
		codes, err := encodeStrings(w.ReasonCodes)
		if err != nil {
			return err
		}
		var matched sql.NullInt64
		if w.MatchedExternalID != nil {
			matched = sql.NullInt64{Int64: *w.MatchedExternalID, Valid: true}
		}
		if _, err := wStmt.ExecContext(ctx, runID, w.IngredientKey, w.IngredientText, w.Frequency,
			matched, w.Score, string(w.Status), codes); err != nil {
			return fmt.Errorf("insert winner %s: %w", w.IngredientKey, err)
		}
		if b := w.Breakdown; b != nil {
			if _, err := bStmt.ExecContext(ctx, runID, w.IngredientKey, b.Overlap, b.JWRaw, b.JWGated,
				b.Gated, b.Segment, b.SegmentLevel, b.Affinity, b.Synonym); err != nil {
				return fmt.Errorf("insert breakdown %s: %w", w.IngredientKey, err)
			}
		}
	}
	return nil
}

func insertNearTies(ctx context.Context, tx *sql.Tx, runID string, ties []store.NearTie) error {
	if len(ties) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO run_near_ties (run_id, ingredient_key, rank, external_id, score)
VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range ties {
		if _, err := stmt.ExecContext(ctx, runID, t.IngredientKey, t.Rank, t.ExternalID, t.Score); err != nil {
			return fmt.Errorf("insert near-tie %s/%d: %w", t.IngredientKey, t.Rank, err)
		}
	}
	return nil
}

const runColumns = `id, config_hash, status, strategy, tokenizer_version, rule_version,
	catalog_size, ingredients, mapped, needs_review, no_match, created_at`

func scanRun(sc scanner) (store.MappingRun, error) {
	var (
		r                                 store.MappingRun
		status, createdAt                 string
		strategy, tokVersion, ruleVersion sql.NullString
	)
	err := sc.Scan(&r.ID, &r.ConfigHash, &status, &strategy, &tokVersion, &ruleVersion,
		&r.CatalogSize, &r.Summary.Ingredients, &r.Summary.Mapped, &r.Summary.NeedsReview,
		&r.Summary.NoMatch, &createdAt)
	if err != nil {
		return store.MappingRun{}, err
	}
	r.Status = store.RunStatus(status)
	r.Strategy = strategy.String
	r.TokenizerVersion = tokVersion.String
	r.RuleVersion = ruleVersion.String
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

// GetRun returns a run by id.
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.MappingRun, error) {
	return getRun(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getRun(ctx context.Context, q querier, id string) (store.MappingRun, error) {
	row := q.QueryRowContext(ctx, `SELECT `+runColumns+` FROM mapping_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.MappingRun{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	return r, err
}

// ListRuns returns all runs, oldest first.
func (s *sqliteStore) ListRuns(ctx context.Context) ([]store.MappingRun, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM mapping_runs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.MappingRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetRunStatus moves a run from one status to another with a conditional
// update, so concurrent transitions cannot both succeed.
func (s *sqliteStore) SetRunStatus(ctx context.Context, id string, from, to store.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE mapping_runs SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("run %s is %s, want %s: %w", id, run.Status, from, internalerr.ErrInvalidState)
}

// Winners returns a run's winners ordered by ingredient key.
func (s *sqliteStore) Winners(ctx context.Context, runID string) ([]store.Winner, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return loadWinners(ctx, s.db, runID)
}

func loadWinners(ctx context.Context, q querier, runID string) ([]store.Winner, error) {
	rows, err := q.QueryContext(ctx, `
SELECT w.ingredient_key, w.ingredient_text, w.frequency, w.matched_external_id, w.score, w.status, w.reason_codes,
	b.overlap, b.jw_raw, b.jw_gated, b.gated, b.segment, b.segment_level, b.affinity, b.synonym
FROM run_winners w
LEFT JOIN run_breakdowns b ON b.run_id = w.run_id AND b.ingredient_key = w.ingredient_key
WHERE w.run_id = ?
ORDER BY w.ingredient_key`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Winner
	for rows.Next() {
		var (
			w                          store.Winner
			matched                    sql.NullInt64
			status                     string
			codes                      sql.NullString
			overlap, jwRaw, jwGated    sql.NullFloat64
			segment, affinity, synonym sql.NullFloat64
			gated                      sql.NullBool
			segmentLevel               sql.NullString
		)
		if err := rows.Scan(&w.IngredientKey, &w.IngredientText, &w.Frequency, &matched, &w.Score, &status, &codes,
			&overlap, &jwRaw, &jwGated, &gated, &segment, &segmentLevel, &affinity, &synonym); err != nil {
			return nil, err
		}
		w.RunID = runID
		w.Status = store.MatchStatus(status)
		if matched.Valid {
			id := matched.Int64
			w.MatchedExternalID = &id
		}
		if w.ReasonCodes, err = decodeStrings(codes.String); err != nil {
			return nil, err
		}
		if overlap.Valid {
			w.Breakdown = &store.Breakdown{
				Overlap:      overlap.Float64,
				JWRaw:        jwRaw.Float64,
				JWGated:      jwGated.Float64,
				Gated:        gated.Bool,
				Segment:      segment.Float64,
				SegmentLevel: segmentLevel.String,
				Affinity:     affinity.Float64,
				Synonym:      synonym.Float64,
			}
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// NearTies returns an ingredient's near-ties in rank order.
func (s *sqliteStore) NearTies(ctx context.Context, runID, ingredientKey string) ([]store.NearTie, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT rank, external_id, score FROM run_near_ties
WHERE run_id = ? AND ingredient_key = ?
ORDER BY rank`, runID, ingredientKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.NearTie
	for rows.Next() {
		t := store.NearTie{RunID: runID, IngredientKey: ingredientKey}
		if err := rows.Scan(&t.Rank, &t.ExternalID, &t.Score); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Promote points the single-row current_run table at a validated run.
func (s *sqliteStore) Promote(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	run, err := getRun(ctx, tx, runID)
	if err != nil {
		return err
	}
	if run.Status != store.RunValidated {
		return fmt.Errorf("promote run %s: status %s: %w", runID, run.Status, internalerr.ErrInvalidState)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO current_run (id, run_id, promoted_at) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET run_id=excluded.run_id, promoted_at=excluded.promoted_at`,
		runID, formatTime(time.Now()))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// CurrentRun returns the promoted run.
func (s *sqliteStore) CurrentRun(ctx context.Context) (store.MappingRun, error) {
	return currentRun(ctx, s.db)
}

func currentRun(ctx context.Context, q querier) (store.MappingRun, error) {
	var runID string
	err := q.QueryRowContext(ctx, `SELECT run_id FROM current_run WHERE id = 1`).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.MappingRun{}, fmt.Errorf("current run: %w", internalerr.ErrNotFound)
	}
	if err != nil {
		return store.MappingRun{}, err
	}
	return getRun(ctx, q, runID)
}

// CurrentWinners reads the pointer and the winners it names inside one
// read transaction, so a concurrent Promote is seen entirely or not at all.
func (s *sqliteStore) CurrentWinners(ctx context.Context) (store.MappingRun, []store.Winner, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return store.MappingRun{}, nil, err
	}
	defer tx.Rollback()

	run, err := currentRun(ctx, tx)
	if err != nil {
		return store.MappingRun{}, nil, err
	}
	winners, err := loadWinners(ctx, tx, run.ID)
	if err != nil {
		return store.MappingRun{}, nil, err
	}
	return run, winners, tx.Commit()
}
