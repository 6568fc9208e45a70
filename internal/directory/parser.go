package directory

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/phone"
)

// reservedHeaders are section titles that sometimes appear inside directory
// documents and must never be treated as contact lines.
var reservedHeaders = map[string]struct{}{
	"phone directory": {},
	"contacts":        {},
	"numbers":         {},
}

// Parse converts raw directory document text into an ordered contact list.
// The expected shape is one "Name: Phone" entry per line, but the parser is
// resilient to formatting drift: extra whitespace, dash separators, varied
// phone formats and interleaved headers. A malformed line never aborts the
// parse; it is dropped with a debug log entry. Parse is pure and restartable.
func Parse(text string, logger zerolog.Logger) []Contact {
	var contacts []Contact

	for _, rawLine := range strings.Split(strings.TrimSpace(text), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "---") {
			continue
		}
		if _, reserved := reservedHeaders[strings.ToLower(line)]; reserved {
			continue
		}

		namePart, phonePart, ok := splitContactLine(line)
		if !ok {
			logger.Debug().Str("line", line).Msg("could not parse directory line")
			continue
		}

		if utf8.RuneCountInString(namePart) < 2 {
			continue
		}
		if !strings.ContainsFunc(phonePart, unicode.IsDigit) {
			continue
		}

		contacts = append(contacts, Contact{
			Name:         namePart,
			PhoneNumber:  phone.Normalize(phonePart),
			OriginalLine: line,
		})
	}

	logger.Debug().Int("count", len(contacts)).Msg("parsed phone directory")
	return contacts
}

// splitContactLine splits a line at the last plausible name/phone separator.
// Colons, en-dashes and em-dashes always qualify; a plain hyphen only
// qualifies when it touches whitespace, so the hyphens inside a formatted
// phone number ("555-123-4567") never shear the line apart. Taking the last
// qualifying separator keeps separators inside the name ("Anne - Marie - …")
// attached to the name.
func splitContactLine(line string) (name, phonePart string, ok bool) {
	runes := []rune(line)
	sep := -1
	for i, r := range runes {
		switch r {
		case ':', '–', '—':
			sep = i
		case '-':
			prevSpace := i > 0 && unicode.IsSpace(runes[i-1])
			nextSpace := i+1 < len(runes) && unicode.IsSpace(runes[i+1])
			if prevSpace || nextSpace {
				sep = i
			}
		}
	}
	if sep <= 0 {
		return "", "", false
	}

	name = strings.TrimSpace(string(runes[:sep]))
	phonePart = strings.TrimSpace(string(runes[sep+1:]))
	if name == "" || phonePart == "" {
		return "", "", false
	}
	return name, phonePart, true
}
