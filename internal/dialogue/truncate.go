package dialogue

// Truncate caps s at max runes. Counting runes rather than bytes keeps
// accented Portuguese text from being split mid-character. Truncating an
// already-truncated string is a no-op.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
