package cleaner

import "unicode/utf8"

// EstimateTokens gives a rough prompt-size figure for logs: rune count / 3,
// which over-estimates English slightly and under-estimates CJK.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	if est := n / 3; est > 0 {
		return est
	}
	return 1
}
