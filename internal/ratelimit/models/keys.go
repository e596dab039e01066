package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in counter key segments
// to prevent key collision attacks where user-controlled identifiers
// containing ':' could manipulate adjacent counters.
//
// Example: a scope key "user:admin" becomes "user_admin", preventing it
// from being interpreted as a separate key segment.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
