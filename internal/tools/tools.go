// Package tools exposes the assistant's messaging operations as MCP tools.
// Every handler renders its outcome as a JSON text result; failures become a
// {"error": ...} payload rather than a protocol-level error so the calling
// model can read and relay them.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/conversation"
	"github.com/beauchbot/beauchbot-go/internal/directory"
	"github.com/beauchbot/beauchbot-go/internal/dispatch"
	"github.com/beauchbot/beauchbot-go/internal/events"
	"github.com/beauchbot/beauchbot-go/internal/phone"
)

// Sender is the dispatch surface the tools need.
type Sender interface {
	Send(ctx context.Context, toNumbers []string, message string) *dispatch.SendResult
	TextMe(ctx context.Context, message string) *dispatch.SendResult
	DryRun(toNumbers []string, message string) *dispatch.SendResult
}

// ContactFinder looks contacts up in the phone directory.
type ContactFinder interface {
	ListContacts(ctx context.Context) []directory.Contact
	FindByName(ctx context.Context, name string) (directory.Contact, error)
	FindByNumber(ctx context.Context, number string) (directory.Contact, error)
}

// HistoryFetcher retrieves recent messages for a number or conversation SID.
type HistoryFetcher interface {
	Fetch(ctx context.Context, identifier string, limit int) ([]conversation.Entry, error)
}

// EventPublisher receives one dispatch event per send attempt.
type EventPublisher interface {
	PublishDispatch(ctx context.Context, event events.DispatchEvent) error
}

// Deps bundles the collaborators behind the tool handlers. Publisher may be
// nil when event emission is disabled.
type Deps struct {
	Sender    Sender
	Directory ContactFinder
	History   HistoryFetcher
	Publisher EventPublisher
}

// Registry owns the tool handlers and registers them on an MCP server.
type Registry struct {
	sender    Sender
	directory ContactFinder
	history   HistoryFetcher
	publisher EventPublisher
	logger    zerolog.Logger
	now       func() time.Time
}

// Option customises the registry during construction.
type Option func(*Registry)

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry validates the dependency set and builds a Registry.
func NewRegistry(deps Deps, logger zerolog.Logger, opts ...Option) (*Registry, error) {
	if deps.Sender == nil {
		return nil, errors.New("tools: sender is required")
	}
	if deps.Directory == nil {
		return nil, errors.New("tools: directory is required")
	}
	if deps.History == nil {
		return nil, errors.New("tools: history is required")
	}

	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	r := &Registry{
		sender:    deps.Sender,
		directory: deps.Directory,
		history:   deps.History,
		publisher: deps.Publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// NewServer builds an MCP server with every tool registered.
func NewServer(name, version string, reg *Registry) *server.MCPServer {
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	reg.Register(s)
	return s
}

// Register attaches all tool definitions and handlers to the server.
func (r *Registry) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("send_text",
		mcp.WithDescription("Send a text message to one or more phone numbers. Two or more numbers start or reuse a group conversation."),
		mcp.WithArray("to_numbers",
			mcp.Required(),
			mcp.Description("Recipient phone numbers in E.164 format"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The message body to send"),
		),
	), r.handleSendText)

	s.AddTool(mcp.NewTool("send_text_dry",
		mcp.WithDescription("Preview a send without contacting the messaging provider. Reports the normalized recipients and message."),
		mcp.WithArray("to_numbers",
			mcp.Required(),
			mcp.Description("Recipient phone numbers in E.164 format"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The message body that would be sent"),
		),
	), r.handleSendTextDry)

	s.AddTool(mcp.NewTool("text_me",
		mcp.WithDescription("Send a text message to the owner's phone number."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The message body to send"),
		),
	), r.handleTextMe)

	s.AddTool(mcp.NewTool("get_phone_numbers",
		mcp.WithDescription("List every contact in the phone directory."),
	), r.handleGetPhoneNumbers)

	s.AddTool(mcp.NewTool("get_contact",
		mcp.WithDescription("Look up a single contact by name or phone number."),
		mcp.WithString("name",
			mcp.Description("Contact name, matched case-insensitively"),
		),
		mcp.WithString("phone_number",
			mcp.Description("Contact phone number in any common format"),
		),
	), r.handleGetContact)

	s.AddTool(mcp.NewTool("get_conversation_history",
		mcp.WithDescription("Fetch recent messages exchanged with a phone number, or in a group conversation when given a conversation SID."),
		mcp.WithString("identifier",
			mcp.Required(),
			mcp.Description("A phone number or a CHxxxx conversation SID"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of messages to return"),
		),
	), r.handleGetConversationHistory)

	s.AddTool(mcp.NewTool("get_current_time",
		mcp.WithDescription("Return the current date and time."),
	), r.handleGetCurrentTime)
}

func (r *Registry) handleSendText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	numbers := req.GetStringSlice("to_numbers", nil)
	message := req.GetString("message", "")

	result := r.sender.Send(ctx, numbers, message)
	r.publishDispatch(ctx, numbers, result)
	return jsonResult(result)
}

func (r *Registry) handleSendTextDry(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	numbers := req.GetStringSlice("to_numbers", nil)
	message := req.GetString("message", "")

	return jsonResult(r.sender.DryRun(numbers, message))
}

func (r *Registry) handleTextMe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message := req.GetString("message", "")

	result := r.sender.TextMe(ctx, message)
	r.publishDispatch(ctx, nil, result)
	return jsonResult(result)
}

func (r *Registry) handleGetPhoneNumbers(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contacts := r.directory.ListContacts(ctx)
	return jsonResult(map[string]any{
		"contacts": contacts,
		"count":    len(contacts),
	})
}

func (r *Registry) handleGetContact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	number := req.GetString("phone_number", "")

	switch {
	case name != "":
		contact, err := r.directory.FindByName(ctx, name)
		if err != nil {
			return errorResult("No contact found matching name: %s", name)
		}
		return jsonResult(contact)
	case number != "":
		contact, err := r.directory.FindByNumber(ctx, phone.Normalize(number))
		if err != nil {
			return errorResult("No contact found with phone number: %s", number)
		}
		return jsonResult(contact)
	default:
		return errorResult("Either name or phone_number is required")
	}
}

func (r *Registry) handleGetConversationHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identifier := req.GetString("identifier", "")
	limit := req.GetInt("limit", conversation.DefaultHistoryLimit)

	entries, err := r.history.Fetch(ctx, identifier, limit)
	if err != nil {
		return errorResult("Failed to fetch conversation history: %s", err)
	}
	return jsonResult(map[string]any{
		"identifier": identifier,
		"messages":   entries,
		"count":      len(entries),
	})
}

func (r *Registry) handleGetCurrentTime(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := r.now()
	return jsonResult(map[string]any{
		"iso":      now.Format(time.RFC3339),
		"readable": now.Format("Monday, January 2, 2006 at 3:04 PM MST"),
		"unix":     now.Unix(),
	})
}

// publishDispatch emits a dispatch event when a publisher is configured.
// Publish failures are logged and swallowed so event plumbing never breaks a
// send that already happened.
func (r *Registry) publishDispatch(ctx context.Context, numbers []string, result *dispatch.SendResult) {
	if r.publisher == nil {
		return
	}
	event := events.NewDispatchEvent(numbers, result)
	if err := r.publisher.PublishDispatch(ctx, event); err != nil {
		r.logger.Error().Err(err).Str("event_id", event.EventID).Msg("failed to publish dispatch event")
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return errorResult("Failed to encode result: %s", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func errorResult(format string, args ...any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(map[string]string{"error": fmt.Sprintf(format, args...)})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}
