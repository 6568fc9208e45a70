// Package webhook receives inbound Twilio message callbacks and hands them to
// the assistant pipeline. Replies to the sender go out through the normal
// dispatch path, so every webhook response is an empty TwiML document.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	defaultMaxConcurrent = 4
	requestTimeout       = 60 * time.Second

	emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

// InboundMessage is the subset of Twilio's webhook form fields the assistant
// acts on.
type InboundMessage struct {
	MessageSID string
	From       string
	To         string
	Body       string
	NumMedia   string
}

// Handler processes one inbound message. Errors are logged, never surfaced to
// Twilio.
type Handler interface {
	HandleMessage(ctx context.Context, msg InboundMessage) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg InboundMessage) error

// HandleMessage implements Handler.
func (f HandlerFunc) HandleMessage(ctx context.Context, msg InboundMessage) error {
	return f(ctx, msg)
}

// Server serves the webhook endpoints over HTTP.
type Server struct {
	handler Handler
	logger  zerolog.Logger
	sem     *semaphore.Weighted
	httpSrv *http.Server
}

// Option customises the server during construction.
type Option func(*Server)

// WithMaxConcurrent caps the number of messages processed at once. Requests
// beyond the cap wait rather than drop.
func WithMaxConcurrent(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(n)
		}
	}
}

// New constructs a webhook server listening on the supplied address.
func New(addr string, handler Handler, logger zerolog.Logger, opts ...Option) (*Server, error) {
	if addr == "" {
		return nil, errors.New("webhook server: listen address is required")
	}
	if handler == nil {
		return nil, errors.New("webhook server: handler is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	s := &Server{
		handler: handler,
		logger:  logger,
		sem:     semaphore.NewWeighted(defaultMaxConcurrent),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Router builds the chi routing tree. Exposed separately so tests can drive
// it with httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/", s.handleHealth)
	r.Post("/message", s.handleMessage)
	return r
}

// ListenAndServe blocks serving HTTP until Shutdown is called or the listener
// fails.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.httpSrv.Addr).Msg("webhook server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("webhook server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleMessage parses the Twilio form payload and runs the handler under the
// concurrency cap. The response body is always empty TwiML: anything else
// would be texted back to the sender verbatim.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.logger.Error().Err(err).Msg("failed to parse webhook form")
		s.writeTwiML(w)
		return
	}

	msg := InboundMessage{
		MessageSID: r.PostFormValue("MessageSid"),
		From:       r.PostFormValue("From"),
		To:         r.PostFormValue("To"),
		Body:       r.PostFormValue("Body"),
		NumMedia:   r.PostFormValue("NumMedia"),
	}

	logger := s.logger.With().
		Str("message_sid", msg.MessageSID).
		Str("from", msg.From).
		Logger()

	if msg.From == "" {
		logger.Warn().Msg("webhook payload missing sender, ignoring")
		s.writeTwiML(w)
		return
	}
	if msg.Body == "" && msg.NumMedia == "" {
		logger.Info().Msg("webhook payload has no content, ignoring")
		s.writeTwiML(w)
		return
	}

	ctx := r.Context()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		logger.Warn().Err(err).Msg("request cancelled while waiting for processing slot")
		s.writeTwiML(w)
		return
	}
	defer s.sem.Release(1)

	logger.Info().Msg("processing inbound message")
	if err := s.handler.HandleMessage(ctx, msg); err != nil {
		logger.Error().Err(err).Msg("inbound message handling failed")
	}

	s.writeTwiML(w)
}

func (s *Server) writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}
