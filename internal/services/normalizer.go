package services

import "strings"

// maxMessageRunes caps normalized inbound text length
const maxMessageRunes = 2000

// Zero-width and invisible code points stripped from inbound text.
// Users pasting from chat apps frequently carry these over and they break
// keyword matching.
var zeroWidthRunes = map[rune]struct{}{
	'\u200B': {}, // zero-width space
	'\u200C': {}, // zero-width non-joiner
	'\u200D': {}, // zero-width joiner
	'\u2060': {}, // word joiner
	'\uFEFF': {}, // byte-order mark
}

// NormalizeText cleans raw incoming message text: strips zero-width
// characters, truncates to maxMessageRunes, trims surrounding whitespace.
// Never fails; empty input yields empty output.
func NormalizeText(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if _, ok := zeroWidthRunes[r]; ok {
			return -1
		}
		return r
	}, raw)

	if runes := []rune(cleaned); len(runes) > maxMessageRunes {
		cleaned = string(runes[:maxMessageRunes])
	}

	return strings.TrimSpace(cleaned)
}

// truncateRunes cuts s to at most n runes. Used for outbound reply bodies
// which must stay under the platform's 5000-character limit.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
