package directory

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
)

// ErrContactNotFound is returned by name lookups with no match.
var ErrContactNotFound = errors.New("contact not found")

// Service fetches and parses the phone directory on demand. It holds no
// cache: every call re-reads the document so directory edits apply
// immediately. A fetch failure degrades to an empty contact list, which
// callers must treat as "no authorization possible".
type Service struct {
	reader Reader
	logger zerolog.Logger
}

// NewService constructs a directory service around the supplied reader.
func NewService(reader Reader, logger zerolog.Logger) (*Service, error) {
	if reader == nil {
		return nil, errors.New("directory service: reader dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Service{reader: reader, logger: logger}, nil
}

// ListContacts returns the current allowed contacts. The result is empty both
// when the fetch fails and when the document genuinely holds no parsable
// entries; the two cases are indistinguishable to callers.
func (s *Service) ListContacts(ctx context.Context) []Contact {
	text, err := s.reader.DirectoryText(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch phone directory")
		return nil
	}

	contacts := Parse(text, s.logger)
	s.logger.Info().Int("count", len(contacts)).Msg("retrieved allowed contacts from phone directory")
	return contacts
}

// FindByName looks a contact up by name, case-insensitively. An exact match
// wins; otherwise the first contact whose name contains the query is
// returned.
func (s *Service) FindByName(ctx context.Context, name string) (Contact, error) {
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" {
		return Contact{}, errors.New("directory service: name is required")
	}

	contacts := s.ListContacts(ctx)
	for _, c := range contacts {
		if strings.ToLower(c.Name) == query {
			return c, nil
		}
	}
	for _, c := range contacts {
		if strings.Contains(strings.ToLower(c.Name), query) {
			return c, nil
		}
	}
	return Contact{}, ErrContactNotFound
}

// FindByNumber returns the first contact holding the given canonical number.
func (s *Service) FindByNumber(ctx context.Context, number string) (Contact, error) {
	for _, c := range s.ListContacts(ctx) {
		if c.PhoneNumber == number {
			return c, nil
		}
	}
	return Contact{}, ErrContactNotFound
}
