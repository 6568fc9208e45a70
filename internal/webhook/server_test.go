package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func postForm(t *testing.T, router http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleMessage(t *testing.T) {
	var got InboundMessage
	srv, err := New(":0", HandlerFunc(func(_ context.Context, msg InboundMessage) error {
		got = msg
		return nil
	}), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := postForm(t, srv.Router(), url.Values{
		"MessageSid": {"SM123"},
		"From":       {"+12035839125"},
		"To":         {"+15550001111"},
		"Body":       {"hello"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if got.MessageSID != "SM123" || got.From != "+12035839125" || got.Body != "hello" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "<Response></Response>") {
		t.Fatalf("expected empty TwiML, got %q", body)
	}
}

func TestHandlerErrorStillRepliesEmptyTwiML(t *testing.T) {
	srv, err := New(":0", HandlerFunc(func(context.Context, InboundMessage) error {
		return errors.New("pipeline down")
	}), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := postForm(t, srv.Router(), url.Values{
		"MessageSid": {"SM123"},
		"From":       {"+12035839125"},
		"Body":       {"hello"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("handler errors must not change the response, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "<Response></Response>") {
		t.Fatalf("expected empty TwiML, got %q", body)
	}
}

func TestMissingSenderSkipsHandler(t *testing.T) {
	called := false
	srv, err := New(":0", HandlerFunc(func(context.Context, InboundMessage) error {
		called = true
		return nil
	}), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := postForm(t, srv.Router(), url.Values{"Body": {"hello"}})

	if called {
		t.Fatal("handler must not run without a sender")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestEmptyPayloadSkipsHandler(t *testing.T) {
	called := false
	srv, err := New(":0", HandlerFunc(func(context.Context, InboundMessage) error {
		called = true
		return nil
	}), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := postForm(t, srv.Router(), url.Values{"From": {"+12035839125"}})

	if called {
		t.Fatal("handler must not run for a contentless payload")
	}
	if body := rec.Body.String(); !strings.Contains(body, "<Response></Response>") {
		t.Fatalf("expected empty TwiML, got %q", body)
	}
}

func TestHealth(t *testing.T) {
	srv, err := New(":0", HandlerFunc(func(context.Context, InboundMessage) error { return nil }), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"status":"ok"`) {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New("", HandlerFunc(func(context.Context, InboundMessage) error { return nil }), zerolog.Nop()); err == nil {
		t.Fatal("expected error for empty address")
	}
	if _, err := New(":0", nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error for nil handler")
	}
}
