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

const identityColumns = `id, slug, name, level, rank, version, created_at`

func scanIdentity(sc scanner) (store.Identity, error) {
	var (
		id             store.Identity
		level, created string
	)
	if err := sc.Scan(&id.ID, &id.Slug, &id.Name, &level, &id.Rank, &id.Version, &created); err != nil {
		return store.Identity{}, err
	}
	id.Level = store.Level(level)
	id.CreatedAt = parseTime(created)
	return id, nil
}

func liveIdentity(ctx context.Context, q querier, slug string) (store.Identity, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE slug = ? ORDER BY version DESC LIMIT 1`, slug)
	id, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Identity{}, fmt.Errorf("identity %s: %w", slug, internalerr.ErrNotFound)
	}
	return id, err
}

// UpsertIdentity creates an identity, updates the rank of an unchanged
// one, or inserts a new version when the name changed. Existing rows are
// never renamed.
func (s *sqliteStore) UpsertIdentity(ctx context.Context, id store.Identity) (store.Identity, error) {
	if id.Slug == "" {
		return store.Identity{}, fmt.Errorf("upsert identity: empty slug: %w", internalerr.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Identity{}, err
	}
	defer tx.Rollback()

	live, err := liveIdentity(ctx, tx, id.Slug)
	switch {
	case err == nil && live.Name == id.Name:
		if _, err := tx.ExecContext(ctx, `UPDATE identities SET rank = ?, level = ? WHERE id = ?`,
			id.Rank, string(id.Level), live.ID); err != nil {
			return store.Identity{}, err
		}
		live.Rank = id.Rank
		live.Level = id.Level
		return live, tx.Commit()
	case err == nil:
		id.Version = live.Version + 1
	case errors.Is(err, internalerr.ErrNotFound):
		id.Version = 1
	default:
		return store.Identity{}, err
	}

	if id.CreatedAt.IsZero() {
		id.CreatedAt = time.Now().UTC()
	}
	err = tx.QueryRowContext(ctx, `
INSERT INTO identities (slug, name, level, rank, version, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`,
		id.Slug, id.Name, string(id.Level), id.Rank, id.Version, formatTime(id.CreatedAt)).Scan(&id.ID)
	if err != nil {
		return store.Identity{}, err
	}
	return id, tx.Commit()
}

// IdentityBySlug returns the live version of an identity.
func (s *sqliteStore) IdentityBySlug(ctx context.Context, slug string) (store.Identity, error) {
	return liveIdentity(ctx, s.db, slug)
}

// Identities returns the live identities ordered by rank, then slug.
func (s *sqliteStore) Identities(ctx context.Context) ([]store.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+identityColumns+` FROM identities i
WHERE version = (SELECT MAX(version) FROM identities WHERE slug = i.slug)
ORDER BY rank, slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func identityExists(ctx context.Context, q querier, identityID int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM identities WHERE id = ?`, identityID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("identity %d: %w", identityID, internalerr.ErrNotFound)
	}
	return err
}

// ReplaceMembers replaces an identity's membership set.
func (s *sqliteStore) ReplaceMembers(ctx context.Context, identityID int64, members []store.Membership) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := identityExists(ctx, tx, identityID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memberships WHERE identity_id = ?`, identityID); err != nil {
		return err
	}
	if len(members) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO memberships (identity_id, external_id, reason, weight) VALUES (?, ?, ?, ?)
ON CONFLICT(identity_id, external_id, reason) DO UPDATE SET weight=excluded.weight`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, m := range members {
			if _, err := stmt.ExecContext(ctx, identityID, m.ExternalID, m.Reason, m.Weight); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Members returns an identity's memberships ordered by external id.
func (s *sqliteStore) Members(ctx context.Context, identityID int64) ([]store.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT external_id, reason, weight FROM memberships
WHERE identity_id = ?
ORDER BY external_id, reason`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Membership
	for rows.Next() {
		m := store.Membership{IdentityID: identityID}
		if err := rows.Scan(&m.ExternalID, &m.Reason, &m.Weight); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertAlias points an alias at an identity.
func (s *sqliteStore) UpsertAlias(ctx context.Context, a store.Alias) error {
	if err := identityExists(ctx, s.db, a.IdentityID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO aliases (alias, identity_id, run_id) VALUES (?, ?, ?)
ON CONFLICT(alias) DO UPDATE SET identity_id=excluded.identity_id, run_id=excluded.run_id`,
		a.Alias, a.IdentityID, a.RunID)
	return err
}

// ResolveAlias returns the identity an alias points at.
func (s *sqliteStore) ResolveAlias(ctx context.Context, alias string) (store.Identity, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT i.id, i.slug, i.name, i.level, i.rank, i.version, i.created_at
FROM aliases a JOIN identities i ON i.id = a.identity_id
WHERE a.alias = ?`, alias)
	id, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Identity{}, fmt.Errorf("alias %s: %w", alias, internalerr.ErrNotFound)
	}
	return id, err
}
