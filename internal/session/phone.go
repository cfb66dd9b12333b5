package session

import "strings"

// NormalizePhone strips whitespace and the punctuation people type into phone
// numbers, so "+1 (555) 123-4567" and "+15551234567" compare equal. Sessions
// store numbers in this form; lookups by phone must normalize first.
func NormalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-', '.', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
