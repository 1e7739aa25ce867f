// Package security provides identifier hygiene for Strata
// Generated storage identifiers become table names and are held to full SQL
// identifier rules. Field names only ever become JSONB document keys, so
// they share the syntax and length rules but not the reserved-word list.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidIdentifierRegex matches valid PostgreSQL identifiers
// Only allows lowercase letters, digits, and underscores, starting with a letter or underscore
var ValidIdentifierRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var slugStripRegex = regexp.MustCompile(`[^a-z0-9_]+`)

// ValidateIdentifier checks if a string is a valid SQL identifier
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("identifier too long (max 63 characters)")
	}
	if !ValidIdentifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier: must contain only lowercase letters, numbers, and underscores, starting with a letter or underscore")
	}
	if isReservedWord(name) {
		return fmt.Errorf("'%s' is a reserved SQL keyword", name)
	}
	return nil
}

// ValidateFieldName checks a dynamic field name. Field names are JSONB
// document keys, never SQL identifiers, so reserved words like "order" or
// "user" are fine; only the syntax and length rules apply.
func ValidateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("field name too long (max 63 characters)")
	}
	if !ValidIdentifierRegex.MatchString(name) {
		return fmt.Errorf("invalid field name: must contain only lowercase letters, numbers, and underscores, starting with a letter or underscore")
	}
	return nil
}

// QuoteIdentifier safely quotes a PostgreSQL identifier
// This should only be used AFTER validation
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

// Slugify lowercases a display name into identifier form: spaces and
// hyphens become underscores, everything else non-alphanumeric is dropped.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "_")
	slug = strings.ReplaceAll(slug, "-", "_")
	slug = slugStripRegex.ReplaceAllString(slug, "")
	slug = strings.Trim(slug, "_")
	for strings.Contains(slug, "__") {
		slug = strings.ReplaceAll(slug, "__", "_")
	}
	return slug
}

// isReservedWord checks if a word is a PostgreSQL reserved word
func isReservedWord(word string) bool {
	reserved := map[string]bool{
		"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
		"array": true, "as": true, "asc": true, "asymmetric": true, "both": true,
		"case": true, "cast": true, "check": true, "collate": true, "column": true,
		"constraint": true, "create": true, "current_catalog": true, "current_date": true,
		"current_role": true, "current_time": true, "current_timestamp": true,
		"current_user": true, "default": true, "deferrable": true, "desc": true,
		"distinct": true, "do": true, "else": true, "end": true, "except": true,
		"false": true, "fetch": true, "for": true, "foreign": true, "from": true,
		"grant": true, "group": true, "having": true, "in": true, "initially": true,
		"intersect": true, "into": true, "lateral": true, "leading": true, "limit": true,
		"localtime": true, "localtimestamp": true, "not": true, "null": true, "offset": true,
		"on": true, "only": true, "or": true, "order": true, "placing": true,
		"primary": true, "references": true, "returning": true, "select": true,
		"session_user": true, "some": true, "symmetric": true, "table": true,
		"then": true, "to": true, "trailing": true, "true": true, "union": true,
		"unique": true, "user": true, "using": true, "variadic": true, "when": true,
		"where": true, "window": true, "with": true,
	}
	return reserved[strings.ToLower(word)]
}
