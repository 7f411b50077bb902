package common

import "strings"

// ContainsFold reports whether s contains sub, ignoring case.
func ContainsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// StripStars removes literal asterisks from text and trims surrounding
// whitespace. Model-generated advisory text tends to arrive with markdown
// emphasis markers that should never reach the client.
func StripStars(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "*", ""))
}
