package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
)

// PutNutrientAmounts upserts amounts keyed by (external id, nutrient id).
func (s *sqliteStore) PutNutrientAmounts(ctx context.Context, amounts []store.NutrientAmount) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO nutrient_amounts (external_id, nutrient_id, name, unit, amount) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(external_id, nutrient_id) DO UPDATE SET
	name=excluded.name,
	unit=excluded.unit,
	amount=excluded.amount`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range amounts {
		if _, err := stmt.ExecContext(ctx, a.ExternalID, a.NutrientID, a.Name, a.Unit, a.Amount); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// NutrientAmounts returns the amounts of the given catalog entries ordered
// by external id, then nutrient id.
func (s *sqliteStore) NutrientAmounts(ctx context.Context, externalIDs []int64) ([]store.NutrientAmount, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(externalIDs))
	for i, id := range externalIDs {
		args[i] = id
	}
	query := fmt.Sprintf(`
SELECT external_id, nutrient_id, name, unit, amount FROM nutrient_amounts
WHERE external_id IN (%s)
ORDER BY external_id, nutrient_id`, placeholders(len(externalIDs)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.NutrientAmount
	for rows.Next() {
		var (
			a    store.NutrientAmount
			name sql.NullString
		)
		if err := rows.Scan(&a.ExternalID, &a.NutrientID, &name, &a.Unit, &a.Amount); err != nil {
			return nil, err
		}
		a.Name = name.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReplaceBoundaries replaces every boundary of an identity in one
// transaction; boundaries are recomputed wholesale, never patched.
func (s *sqliteStore) ReplaceBoundaries(ctx context.Context, identityID int64, bounds []store.NutrientBoundary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := identityExists(ctx, tx, identityID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nutrient_boundaries WHERE identity_id = ?`, identityID); err != nil {
		return err
	}
	if len(bounds) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO nutrient_boundaries (identity_id, nutrient_id, name, unit, median, p10, p25, p75, p90,
	min, max, sample_count, total_member_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, b := range bounds {
			if _, err := stmt.ExecContext(ctx, identityID, b.NutrientID, b.Name, b.Unit, b.Median,
				nullFloat(b.P10), nullFloat(b.P25), nullFloat(b.P75), nullFloat(b.P90),
				b.Min, b.Max, b.SampleCount, b.TotalMemberCount); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Boundaries returns an identity's boundaries ordered by nutrient id.
func (s *sqliteStore) Boundaries(ctx context.Context, identityID int64) ([]store.NutrientBoundary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT nutrient_id, name, unit, median, p10, p25, p75, p90, min, max, sample_count, total_member_count
FROM nutrient_boundaries
WHERE identity_id = ?
ORDER BY nutrient_id`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.NutrientBoundary
	for rows.Next() {
		var (
			b                  store.NutrientBoundary
			name               sql.NullString
			p10, p25, p75, p90 sql.NullFloat64
		)
		if err := rows.Scan(&b.NutrientID, &name, &b.Unit, &b.Median, &p10, &p25, &p75, &p90,
			&b.Min, &b.Max, &b.SampleCount, &b.TotalMemberCount); err != nil {
			return nil, err
		}
		b.IdentityID = identityID
		b.Name = name.String
		b.P10 = floatPtr(p10)
		b.P25 = floatPtr(p25)
		b.P75 = floatPtr(p75)
		b.P90 = floatPtr(p90)
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
