// Package twilio implements the thin REST surface of the messaging
// transport: the Messages API for individual SMS and the Conversations API
// for group MMS threads.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/config"
)

const (
	defaultAPIBaseURL           = "https://api.twilio.com/2010-04-01"
	defaultConversationsBaseURL = "https://conversations.twilio.com/v1"
	defaultBodyLimit            = 64 * 1024
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customises the client during construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used to talk to the API.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIBaseURL sets the Messages API base URL. Useful for tests.
func WithAPIBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.apiBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithConversationsBaseURL sets the Conversations API base URL.
func WithConversationsBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.convBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithBodyLimit adjusts how many bytes are read from API response bodies.
func WithBodyLimit(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxBodyBytes = limit
		}
	}
}

// Client is a minimal Twilio REST client covering the operations this
// assistant needs.
type Client struct {
	logger       zerolog.Logger
	accountSID   string
	authToken    string
	httpClient   HTTPClient
	apiBaseURL   string
	convBaseURL  string
	now          func() time.Time
	maxBodyBytes int64
}

// NewClient constructs a Twilio client from configuration.
func NewClient(cfg config.TwilioConfig, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" {
		return nil, errors.New("twilio client: account SID is required")
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("twilio client: auth token is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	c := &Client{
		logger:       logger,
		accountSID:   strings.TrimSpace(cfg.AccountSID),
		authToken:    strings.TrimSpace(cfg.AuthToken),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		apiBaseURL:   defaultAPIBaseURL,
		convBaseURL:  defaultConversationsBaseURL,
		now:          time.Now,
		maxBodyBytes: defaultBodyLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// APIError is a structured error payload returned by the API.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("twilio: error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("twilio: http %d: %s", e.HTTPStatus, e.Message)
}

// StatusCode returns the HTTP status of the failed call.
func (e *APIError) StatusCode() int { return e.HTTPStatus }

func (c *Client) postForm(ctx context.Context, endpoint string, params url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("twilio client: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, target)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, target any) error {
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("twilio client: new request: %w", err)
	}
	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target any) error {
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio client: http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp.StatusCode, body)
	}

	if target == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("twilio client: decode response: %w", err)
	}
	return nil
}

func (c *Client) readBody(rc io.ReadCloser) ([]byte, error) {
	if rc == nil {
		return nil, nil
	}
	limit := c.maxBodyBytes
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return nil, fmt.Errorf("twilio client: read body: %w", err)
	}
	return data, nil
}

func (c *Client) apiError(status int, body []byte) error {
	apiErr := &APIError{HTTPStatus: status, Message: http.StatusText(status)}

	var parsed struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		if parsed.Code != 0 {
			apiErr.Code = parsed.Code
		}
		if strings.TrimSpace(parsed.Message) != "" {
			apiErr.Message = parsed.Message
		}
	}
	return apiErr
}
