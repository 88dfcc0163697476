package utils

import "strings"

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	return Truncate(s, limit, "...")
}

// Truncate cuts s to at most limit runes and appends suffix when something was cut.
// A non-positive limit disables truncation.
func Truncate(s string, limit int, suffix string) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + suffix
}

// CollapseSpaces replaces every run of whitespace (including newlines) with a single space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
