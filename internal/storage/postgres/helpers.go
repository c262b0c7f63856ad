package postgres

import "strings"

// likePattern escapes LIKE metacharacters in query and wraps it for a
// substring match.
func likePattern(query string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(query)) + "%"
}

// nullIfEmpty returns nil for an empty string so optional filters collapse
// to NULL in SQL.
func nullIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
