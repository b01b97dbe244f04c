package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"breachwatch/internal/models"
)

const breachColumns = `id, name, title, domain, breach_date, added_date, modified_date, pwn_count,
	description, data_classes, is_verified, is_fabricated, is_sensitive, is_retired, is_spam_list, logo_path`

// InsertBreaches inserts catalog entries whose names are not yet stored, in one
// transaction. Existing rows are never modified. It returns the number inserted.
func (s *Store) InsertBreaches(ctx context.Context, breaches []models.Breach) (int, error) {
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, b := range breaches {
			name := strings.TrimSpace(b.Name)
			if name == "" {
				return fmt.Errorf("breach name is required")
			}
			exists, err := rowExists(ctx, tx, "SELECT 1 FROM breaches WHERE name = ? LIMIT 1", name)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			classes := b.DataClasses
			if classes == nil {
				classes = []string{}
			}
			encoded, err := json.Marshal(classes)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO breaches (
					name, title, domain, breach_date, added_date, modified_date, pwn_count,
					description, data_classes, is_verified, is_fabricated, is_sensitive, is_retired, is_spam_list, logo_path
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				name,
				b.Title,
				b.Domain,
				nullIfEmpty(b.BreachDate),
				nullIfEmpty(b.AddedDate),
				nullIfEmpty(b.ModifiedDate),
				b.PwnCount,
				b.Description,
				string(encoded),
				boolToInt(b.IsVerified),
				boolToInt(b.IsFabricated),
				boolToInt(b.IsSensitive),
				boolToInt(b.IsRetired),
				boolToInt(b.IsSpamList),
				b.LogoPath,
			)
			if err != nil {
				return fmt.Errorf("insert breach %q: %w", name, err)
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

// GetBreachByName returns the breach with the given unique name, or nil if none.
func (s *Store) GetBreachByName(ctx context.Context, name string) (*models.Breach, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+breachColumns+" FROM breaches WHERE name = ?", name)
	return scanBreach(row)
}

// CountBreaches returns the number of catalogued breaches.
func (s *Store) CountBreaches(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM breaches").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListIdentityBreachIDs returns the ids of breaches already linked to an identity.
func (s *Store) ListIdentityBreachIDs(ctx context.Context, identityID int64) ([]int64, error) {
	return queryIDs(ctx, s.db, "SELECT breach_id FROM identity_breaches WHERE identity_id = ? ORDER BY breach_id", identityID)
}

// ListIdentityBreaches returns the breaches linked to an identity, ordered by name.
func (s *Store) ListIdentityBreaches(ctx context.Context, identityID int64) ([]models.Breach, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("b.", breachColumns)+`
		FROM breaches b
		JOIN identity_breaches ib ON ib.breach_id = b.id
		WHERE ib.identity_id = ?
		ORDER BY b.name
	`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Breach
	for rows.Next() {
		b, err := scanBreach(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// AddIdentityBreaches links the given breaches to an identity in one
// transaction. Pairs that already exist are skipped, so the call never creates
// a duplicate edge. It returns the number of links created.
func (s *Store) AddIdentityBreaches(ctx context.Context, identityID int64, breachIDs []int64) (int, error) {
	if len(breachIDs) == 0 {
		return 0, nil
	}
	added := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, breachID := range breachIDs {
			exists, err := rowExists(ctx, tx,
				"SELECT 1 FROM identity_breaches WHERE identity_id = ? AND breach_id = ? LIMIT 1", identityID, breachID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO identity_breaches (identity_id, breach_id) VALUES (?, ?)", identityID, breachID); err != nil {
				return fmt.Errorf("link identity %d to breach %d: %w", identityID, breachID, err)
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// InsertDataClasses inserts every data class name not already stored, in one
// transaction. It returns the number inserted.
func (s *Store) InsertDataClasses(ctx context.Context, names []string) (int, error) {
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, raw := range names {
			name := strings.TrimSpace(raw)
			if name == "" {
				continue
			}
			exists, err := rowExists(ctx, tx, "SELECT 1 FROM data_classes WHERE name = ? LIMIT 1", name)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO data_classes (name) VALUES (?)", name); err != nil {
				return fmt.Errorf("insert data class %q: %w", name, err)
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

// ListDataClasses returns all data class names in alphabetical order.
func (s *Store) ListDataClasses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM data_classes ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func scanBreach(scanner interface {
	Scan(dest ...any) error
}) (*models.Breach, error) {
	var b models.Breach
	var breachDate, addedDate, modifiedDate sql.NullString
	var classes string
	var verified, fabricated, sensitive, retired, spam int

	err := scanner.Scan(
		&b.ID,
		&b.Name,
		&b.Title,
		&b.Domain,
		&breachDate,
		&addedDate,
		&modifiedDate,
		&b.PwnCount,
		&b.Description,
		&classes,
		&verified,
		&fabricated,
		&sensitive,
		&retired,
		&spam,
		&b.LogoPath,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	b.BreachDate = breachDate.String
	b.AddedDate = addedDate.String
	b.ModifiedDate = modifiedDate.String
	b.IsVerified = verified != 0
	b.IsFabricated = fabricated != 0
	b.IsSensitive = sensitive != 0
	b.IsRetired = retired != 0
	b.IsSpamList = spam != 0
	if classes != "" {
		if err := json.Unmarshal([]byte(classes), &b.DataClasses); err != nil {
			return nil, fmt.Errorf("decode data classes for %q: %w", b.Name, err)
		}
	}
	return &b, nil
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = prefix + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryIDs(ctx context.Context, q queryer, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
