package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Breach is a catalogued security incident as reported by the feed.
type Breach struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	Domain       string   `json:"domain"`
	BreachDate   string   `json:"breach_date"`
	AddedDate    string   `json:"added_date"`
	ModifiedDate string   `json:"modified_date"`
	PwnCount     int64    `json:"pwn_count"`
	Description  string   `json:"description"`
	DataClasses  []string `json:"data_classes"`
	IsVerified   bool     `json:"is_verified"`
	IsFabricated bool     `json:"is_fabricated"`
	IsSensitive  bool     `json:"is_sensitive"`
	IsRetired    bool     `json:"is_retired"`
	IsSpamList   bool     `json:"is_spam_list"`
	LogoPath     string   `json:"logo_path"`
}

// DataClass is a category of personal data exposed in a breach.
type DataClass struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BreachFromRecord builds a Breach from a raw feed record. Keys are translated
// with SnakeCase first; keys without a matching column are ignored.
func BreachFromRecord(record map[string]any) (Breach, error) {
	cols := NormalizeKeys(record)

	var b Breach
	var err error
	if b.Name, err = stringField(cols, "name"); err != nil {
		return Breach{}, err
	}
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return Breach{}, fmt.Errorf("breach name is required")
	}

	for col, dst := range map[string]*string{
		"title":         &b.Title,
		"domain":        &b.Domain,
		"breach_date":   &b.BreachDate,
		"added_date":    &b.AddedDate,
		"modified_date": &b.ModifiedDate,
		"description":   &b.Description,
		"logo_path":     &b.LogoPath,
	} {
		if *dst, err = stringField(cols, col); err != nil {
			return Breach{}, fmt.Errorf("breach %s: %w", b.Name, err)
		}
	}

	for col, dst := range map[string]*bool{
		"is_verified":   &b.IsVerified,
		"is_fabricated": &b.IsFabricated,
		"is_sensitive":  &b.IsSensitive,
		"is_retired":    &b.IsRetired,
		"is_spam_list":  &b.IsSpamList,
	} {
		if *dst, err = boolField(cols, col); err != nil {
			return Breach{}, fmt.Errorf("breach %s: %w", b.Name, err)
		}
	}

	if b.PwnCount, err = intField(cols, "pwn_count"); err != nil {
		return Breach{}, fmt.Errorf("breach %s: %w", b.Name, err)
	}
	if b.DataClasses, err = stringListField(cols, "data_classes"); err != nil {
		return Breach{}, fmt.Errorf("breach %s: %w", b.Name, err)
	}

	return b, nil
}

// BreachName extracts only the breach name from a feed record. Account lookups
// may return truncated records that carry nothing else.
func BreachName(record map[string]any) string {
	name, _ := stringField(NormalizeKeys(record), "name")
	return strings.TrimSpace(name)
}

func stringField(cols map[string]any, key string) (string, error) {
	raw, ok := cols[key]
	if !ok || raw == nil {
		return "", nil
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("%s: expected string, got %T", key, raw)
	}
}

func boolField(cols map[string]any, key string) (bool, error) {
	raw, ok := cols[key]
	if !ok || raw == nil {
		return false, nil
	}
	v, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%s: expected bool, got %T", key, raw)
	}
	return v, nil
}

func intField(cols map[string]any, key string) (int64, error) {
	raw, ok := cols[key]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return int64(math.Round(f)), nil
	case float64:
		return int64(math.Round(v)), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s: expected number, got %T", key, raw)
	}
}

func stringListField(cols map[string]any, key string) ([]string, error) {
	raw, ok := cols[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: expected string items, got %T", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: expected list, got %T", key, raw)
	}
}
