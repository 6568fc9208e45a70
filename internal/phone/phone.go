// Package phone provides canonicalisation helpers for dialable phone
// numbers. All directory and conversation comparisons in this codebase run on
// the canonical form produced here: a `+`-prefixed digit string.
package phone

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidPhone is returned when a phone number is not E.164 compliant.
var ErrInvalidPhone = errors.New("invalid e164 phone number")

var (
	e164Pattern     = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	nonDialPattern  = regexp.MustCompile(`[^\d+]`)
	tenDigitPattern = regexp.MustCompile(`^\d{10}$`)
)

// Normalize converts a free-text phone substring to canonical dialable form.
// It strips everything except digits and a leading `+`, then recovers common
// US formats: an 11-digit number starting with 1 gains a `+`, a bare 10-digit
// number is assumed US and gains `+1`, and an already `+`-prefixed number is
// kept. Anything else is returned untouched so a malformed entry degrades to
// a non-matching value instead of aborting directory parsing.
func Normalize(raw string) string {
	cleaned := nonDialPattern.ReplaceAllString(raw, "")

	switch {
	case strings.HasPrefix(cleaned, "1") && len(cleaned) == 11:
		return "+" + cleaned
	case tenDigitPattern.MatchString(cleaned):
		return "+1" + cleaned
	case strings.HasPrefix(cleaned, "+"):
		return cleaned
	default:
		return raw
	}
}

// ValidateE164 checks a phone number against the strict E.164 format and
// returns the trimmed representation.
func ValidateE164(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidPhone)
	}
	if !e164Pattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, trimmed)
	}
	return trimmed, nil
}

// IsUSCanada reports whether a canonical number carries the +1 calling code.
// Group MMS delivery is restricted to these numbers by the transport.
func IsUSCanada(number string) bool {
	return strings.HasPrefix(number, "+1")
}
