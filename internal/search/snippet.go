package search

// Snippet truncates chunk content for display, cutting on a rune
// boundary and appending an ellipsis. Non-positive maxLen disables
// truncation.
func Snippet(content string, maxLen int) string {
	if maxLen <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen]) + "..."
}
