package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestService(t *testing.T, reader Reader) *Service {
	t.Helper()
	svc, err := NewService(reader, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error constructing service: %v", err)
	}
	return svc
}

func TestListContactsParsesReaderText(t *testing.T) {
	svc := newTestService(t, StaticReader{Text: "Ryan: +12035839125\nAlice: +12031112222\n"})

	contacts := svc.ListContacts(context.Background())
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(contacts))
	}
}

func TestListContactsDegradesToEmptyOnReaderFailure(t *testing.T) {
	svc := newTestService(t, ReaderFunc(func(context.Context) (string, error) {
		return "", errors.New("document store unavailable")
	}))

	if contacts := svc.ListContacts(context.Background()); len(contacts) != 0 {
		t.Fatalf("expected empty contact list on reader failure, got %+v", contacts)
	}
}

// A failed fetch and a genuinely empty directory both surface as an empty
// list; callers cannot tell them apart and must fail closed either way.
func TestListContactsConflatesEmptyAndFailedFetch(t *testing.T) {
	failed := newTestService(t, ReaderFunc(func(context.Context) (string, error) {
		return "", errors.New("boom")
	}))
	empty := newTestService(t, StaticReader{Text: "# nothing but headers\n"})

	a := failed.ListContacts(context.Background())
	b := empty.ListContacts(context.Background())
	if len(a) != 0 || len(b) != 0 {
		t.Fatalf("expected both services to return empty lists, got %d and %d", len(a), len(b))
	}
}

func TestFindByNamePrefersExactMatch(t *testing.T) {
	svc := newTestService(t, StaticReader{Text: "Ryan Senior: +15550000001\nRyan: +12035839125\n"})

	c, err := svc.FindByName(context.Background(), "ryan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.PhoneNumber != "+12035839125" {
		t.Fatalf("expected exact match to win, got %+v", c)
	}

	c, err = svc.FindByName(context.Background(), "senior")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "Ryan Senior" {
		t.Fatalf("expected partial match, got %+v", c)
	}

	if _, err := svc.FindByName(context.Background(), "nobody"); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected ErrContactNotFound, got %v", err)
	}
}

func TestFindByNumber(t *testing.T) {
	svc := newTestService(t, StaticReader{Text: "Ryan: +12035839125\n"})

	c, err := svc.FindByNumber(context.Background(), "+12035839125")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "Ryan" {
		t.Fatalf("unexpected contact: %+v", c)
	}

	if _, err := svc.FindByNumber(context.Background(), "+19998887777"); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected ErrContactNotFound, got %v", err)
	}
}

func TestFormatContactList(t *testing.T) {
	out := FormatContactList([]Contact{
		{Name: "zoe", PhoneNumber: "+15550000002"},
		{Name: "Alice", PhoneNumber: "+12031112222"},
	})
	if !strings.HasPrefix(out, "Available contacts:") {
		t.Fatalf("unexpected prefix: %q", out)
	}
	if strings.Index(out, "Alice") > strings.Index(out, "zoe") {
		t.Fatalf("expected case-insensitive name ordering: %q", out)
	}

	if out := FormatContactList(nil); !strings.Contains(out, "No contacts available") {
		t.Fatalf("unexpected empty-list message: %q", out)
	}
}
