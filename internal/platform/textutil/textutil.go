package textutil

import (
	"errors"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// ErrTooLong is returned when sanitised text exceeds the configured rune limit.
var ErrTooLong = errors.New("textutil: text too long")

// NoteSanitizer turns free-text customer input into plain text.
type NoteSanitizer struct {
	policy   *bluemonday.Policy
	maxRunes int
}

// NewNoteSanitizer returns a sanitizer rejecting notes longer than maxRunes. Zero disables the limit.
func NewNoteSanitizer(maxRunes int) *NoteSanitizer {
	if maxRunes < 0 {
		maxRunes = 0
	}
	return &NoteSanitizer{policy: bluemonday.StrictPolicy(), maxRunes: maxRunes}
}

// Sanitize strips markup, collapses whitespace runs into single spaces and trims the result.
func (s *NoteSanitizer) Sanitize(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	stripped := html.UnescapeString(s.policy.Sanitize(text))
	cleaned := strings.Join(strings.Fields(stripped), " ")
	if s.maxRunes > 0 && utf8.RuneCountInString(cleaned) > s.maxRunes {
		return "", ErrTooLong
	}
	return cleaned, nil
}

// NormalizeAttributes trims keys and values and drops entries where either is empty.
func NormalizeAttributes(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		k := strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		if k == "" || v == "" {
			continue
		}
		result[k] = v
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
