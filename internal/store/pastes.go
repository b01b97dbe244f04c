package store

import (
	"context"
	"database/sql"
	"fmt"

	"breachwatch/internal/models"
)

// PasteLinkResult reports what AddIdentityPastes wrote.
type PasteLinkResult struct {
	PastesCreated int
	LinksAdded    int
}

// AddIdentityPastes links pastes to an identity in one transaction. Paste rows
// are looked up by (source, paste_id) and created when missing; links that
// already exist are skipped.
func (s *Store) AddIdentityPastes(ctx context.Context, identityID int64, pastes []models.Paste) (PasteLinkResult, error) {
	var result PasteLinkResult
	if len(pastes) == 0 {
		return result, nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range pastes {
			pasteRowID, created, err := ensurePaste(ctx, tx, p)
			if err != nil {
				return err
			}
			if created {
				result.PastesCreated++
			}

			exists, err := rowExists(ctx, tx,
				"SELECT 1 FROM identity_pastes WHERE identity_id = ? AND paste_id = ? LIMIT 1", identityID, pasteRowID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO identity_pastes (identity_id, paste_id) VALUES (?, ?)", identityID, pasteRowID); err != nil {
				return fmt.Errorf("link identity %d to paste %s: %w", identityID, p.Key(), err)
			}
			result.LinksAdded++
		}
		return nil
	})
	if err != nil {
		return PasteLinkResult{}, err
	}
	return result, nil
}

// ListIdentityPastes returns the pastes linked to an identity.
func (s *Store) ListIdentityPastes(ctx context.Context, identityID int64) ([]models.Paste, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.source, p.paste_id, p.title, p.date, p.email_count
		FROM pastes p
		JOIN identity_pastes ip ON ip.paste_id = p.id
		WHERE ip.identity_id = ?
		ORDER BY p.source, p.paste_id
	`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Paste
	for rows.Next() {
		var p models.Paste
		var title, date sql.NullString
		if err := rows.Scan(&p.ID, &p.Source, &p.PasteID, &title, &date, &p.EmailCount); err != nil {
			return nil, err
		}
		p.Title = title.String
		p.Date = date.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountPastes returns the number of stored pastes.
func (s *Store) CountPastes(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pastes").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func ensurePaste(ctx context.Context, tx *sql.Tx, p models.Paste) (int64, bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM pastes WHERE source = ? AND paste_id = ?", p.Source, p.PasteID).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO pastes (source, paste_id, title, date, email_count) VALUES (?, ?, ?, ?, ?)
	`, p.Source, p.PasteID, nullIfEmpty(p.Title), nullIfEmpty(p.Date), p.EmailCount)
	if err != nil {
		return 0, false, fmt.Errorf("insert paste %s: %w", p.Key(), err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
