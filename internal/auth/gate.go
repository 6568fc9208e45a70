// Package auth validates candidate phone numbers against the contact
// directory. Authorization is fail-closed: without a directory, nothing is
// allowed.
package auth

import (
	"context"
	"errors"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/directory"
)

// ContactLister supplies the current allowed contacts.
type ContactLister interface {
	ListContacts(ctx context.Context) []directory.Contact
}

// Result partitions candidate numbers into authorized and unauthorized sets.
// Input order is preserved and duplicates are kept; every valid number has a
// corresponding contact at the same position in MatchingContacts.
type Result struct {
	ValidNumbers     []string
	InvalidNumbers   []string
	MatchingContacts []directory.Contact
}

// Gate checks candidate numbers against the directory.
type Gate struct {
	contacts ContactLister
	logger   zerolog.Logger
}

// NewGate constructs an authorization gate.
func NewGate(contacts ContactLister, logger zerolog.Logger) (*Gate, error) {
	if contacts == nil {
		return nil, errors.New("auth gate: contact lister dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Gate{contacts: contacts, logger: logger}, nil
}

// Authorize partitions the candidates against the current directory.
// Comparison is exact-string against the normalized directory values, so
// candidates must already be in canonical form. An empty directory marks
// every candidate invalid.
func (g *Gate) Authorize(ctx context.Context, candidates []string) Result {
	contacts := g.contacts.ListContacts(ctx)
	if len(contacts) == 0 {
		g.logger.Warn().Msg("no allowed contacts found, authorization will fail")
		return Result{InvalidNumbers: append([]string(nil), candidates...)}
	}

	allowed := make(map[string]directory.Contact, len(contacts))
	for _, c := range contacts {
		if _, seen := allowed[c.PhoneNumber]; !seen {
			allowed[c.PhoneNumber] = c
		}
	}

	var res Result
	for _, candidate := range candidates {
		if contact, ok := allowed[candidate]; ok {
			res.ValidNumbers = append(res.ValidNumbers, candidate)
			res.MatchingContacts = append(res.MatchingContacts, contact)
		} else {
			res.InvalidNumbers = append(res.InvalidNumbers, candidate)
		}
	}

	g.logger.Info().
		Int("valid", len(res.ValidNumbers)).
		Int("invalid", len(res.InvalidNumbers)).
		Msg("phone number validation complete")
	return res
}

// AllContacts exposes the full directory for error reporting.
func (g *Gate) AllContacts(ctx context.Context) []directory.Contact {
	return g.contacts.ListContacts(ctx)
}
