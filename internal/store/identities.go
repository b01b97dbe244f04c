package store

import (
	"context"
	"database/sql"
	"fmt"

	"breachwatch/internal/models"
)

// CountIdentities returns the number of stored identities. Zero means the
// mirror has never been bootstrapped.
func (s *Store) CountIdentities(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// InsertIdentities inserts every email not already stored, in one transaction.
// Blank entries are skipped. It returns the number of rows inserted.
func (s *Store) InsertIdentities(ctx context.Context, emails []string) (int, error) {
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, raw := range emails {
			email := models.NormalizeEmail(raw)
			if email == "" {
				continue
			}
			exists, err := rowExists(ctx, tx, "SELECT 1 FROM identities WHERE email = ? LIMIT 1", email)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO identities (email) VALUES (?)", email); err != nil {
				return fmt.Errorf("insert identity %q: %w", email, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListIdentities returns all identities ordered by id.
func (s *Store) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, email FROM identities ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Identity
	for rows.Next() {
		var identity models.Identity
		if err := rows.Scan(&identity.ID, &identity.Email); err != nil {
			return nil, err
		}
		out = append(out, identity)
	}
	return out, rows.Err()
}

// GetIdentityByEmail returns the identity with the given email, or nil if none.
func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	var identity models.Identity
	err := s.db.QueryRowContext(ctx, "SELECT id, email FROM identities WHERE email = ?", models.NormalizeEmail(email)).
		Scan(&identity.ID, &identity.Email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func rowExists(ctx context.Context, q queryRower, query string, args ...any) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx, query, args...).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
