package models

import (
	"fmt"
	"strings"
)

// Paste is a public text dump that referenced a monitored identity.
type Paste struct {
	ID         int64  `json:"id"`
	Source     string `json:"source"`
	PasteID    string `json:"paste_id"`
	Title      string `json:"title"`
	Date       string `json:"date"`
	EmailCount int64  `json:"email_count"`
}

// PasteKey is the natural key of a paste.
type PasteKey struct {
	Source  string
	PasteID string
}

func (k PasteKey) String() string {
	return k.Source + "/" + k.PasteID
}

// Key returns the natural key of a paste.
func (p Paste) Key() PasteKey {
	return PasteKey{Source: p.Source, PasteID: p.PasteID}
}

// PasteFromRecord builds a Paste from a raw feed record. The feed names the
// paste identifier "Id", which lands in the paste_id column.
func PasteFromRecord(record map[string]any) (Paste, error) {
	cols := NormalizeKeys(record)

	var p Paste
	var err error
	if p.Source, err = stringField(cols, "source"); err != nil {
		return Paste{}, err
	}
	if p.PasteID, err = stringField(cols, "id"); err != nil {
		return Paste{}, err
	}
	p.Source = strings.TrimSpace(p.Source)
	p.PasteID = strings.TrimSpace(p.PasteID)
	if p.Source == "" || p.PasteID == "" {
		return Paste{}, fmt.Errorf("paste source and id are required")
	}
	if p.Title, err = stringField(cols, "title"); err != nil {
		return Paste{}, fmt.Errorf("paste %s: %w", p.Key(), err)
	}
	if p.Date, err = stringField(cols, "date"); err != nil {
		return Paste{}, fmt.Errorf("paste %s: %w", p.Key(), err)
	}
	if p.EmailCount, err = intField(cols, "email_count"); err != nil {
		return Paste{}, fmt.Errorf("paste %s: %w", p.Key(), err)
	}
	return p, nil
}
