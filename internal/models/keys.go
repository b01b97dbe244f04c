package models

import "strings"

// SnakeCase converts a CamelCase feed key to the snake_case column name used by
// the store. An underscore is inserted before every ASCII uppercase letter that
// is not the first character, then the result is lowercased:
//
//	IsVerified -> is_verified
//	PwnCount   -> pwn_count
//	Id         -> id
func SnakeCase(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for i, r := range key {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// NormalizeKeys returns a copy of record with every key passed through SnakeCase.
func NormalizeKeys(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[SnakeCase(k)] = v
	}
	return out
}
