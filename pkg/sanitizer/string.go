package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims the string and collapses any run of
// whitespace, including newlines, into a single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizePurpose cleans the free-text purpose of a booking request.
func NormalizePurpose(purpose string) string {
	return TrimAndNormalize(purpose)
}

// NormalizeEmail lowercases and trims an email address for use as a
// stable ownership key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
