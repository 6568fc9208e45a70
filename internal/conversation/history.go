package conversation

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/twilio"
)

// DefaultHistoryLimit caps history listings when the caller does not supply
// a limit.
const DefaultHistoryLimit = 20

// MessageLister is the slice of the transport history retrieval needs.
type MessageLister interface {
	ListMessages(ctx context.Context, p twilio.ListMessagesParams) ([]twilio.Message, error)
	ListConversationMessages(ctx context.Context, conversationSID string, limit int) ([]twilio.ConversationMessage, error)
}

// Entry is one message of a conversation history, flattened for the tool
// layer. Individual entries carry from/to/direction; group entries carry
// author and conversation SID.
type Entry struct {
	MessageSID      string `json:"message_sid"`
	ConversationSID string `json:"conversation_sid,omitempty"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	Author          string `json:"author,omitempty"`
	ParticipantSID  string `json:"participant_sid,omitempty"`
	Body            string `json:"body"`
	Direction       string `json:"direction,omitempty"`
	Status          string `json:"status,omitempty"`
	DateCreated     string `json:"date_created,omitempty"`
	DateSent        string `json:"date_sent,omitempty"`
	Type            string `json:"type"`
}

// History retrieves message history for individual numbers and group
// conversations.
type History struct {
	transport  MessageLister
	fromNumber string
	logger     zerolog.Logger
}

// NewHistory constructs a history service. fromNumber is the assistant's own
// phone number, used to pair individual threads and classify direction.
func NewHistory(transport MessageLister, fromNumber string, logger zerolog.Logger) (*History, error) {
	if transport == nil {
		return nil, errors.New("history: message transport dependency is required")
	}
	if strings.TrimSpace(fromNumber) == "" {
		return nil, errors.New("history: from number is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &History{transport: transport, fromNumber: fromNumber, logger: logger}, nil
}

// IsConversationSID reports whether an identifier names a group conversation
// rather than a phone number.
func IsConversationSID(identifier string) bool {
	return strings.HasPrefix(identifier, "CH") && len(identifier) == 34
}

// Fetch returns conversation history for either a phone number (individual
// thread) or a CH-prefixed conversation SID (group thread), newest first.
func (h *History) Fetch(ctx context.Context, identifier string, limit int) ([]Entry, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, errors.New("history: phone number or conversation SID is required")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	if IsConversationSID(identifier) {
		return h.group(ctx, identifier, limit)
	}
	return h.individual(ctx, identifier, limit)
}

func (h *History) individual(ctx context.Context, number string, limit int) ([]Entry, error) {
	inbound, err := h.transport.ListMessages(ctx, twilio.ListMessagesParams{From: number, To: h.fromNumber, Limit: limit})
	if err != nil {
		return nil, err
	}
	outbound, err := h.transport.ListMessages(ctx, twilio.ListMessagesParams{From: h.fromNumber, To: number, Limit: limit})
	if err != nil {
		return nil, err
	}

	merged := append(append([]twilio.Message(nil), inbound...), outbound...)
	sort.SliceStable(merged, func(i, j int) bool {
		ti, _ := merged[i].CreatedTime()
		tj, _ := merged[j].CreatedTime()
		return ti.After(tj)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	entries := make([]Entry, 0, len(merged))
	for _, msg := range merged {
		direction := "inbound"
		if msg.From == h.fromNumber {
			direction = "outbound"
		}
		entries = append(entries, Entry{
			MessageSID:  msg.SID,
			From:        msg.From,
			To:          msg.To,
			Body:        msg.Body,
			Direction:   direction,
			Status:      msg.Status,
			DateCreated: isoTime(msg.DateCreated),
			DateSent:    isoTime(msg.DateSent),
			Type:        "individual",
		})
	}

	h.logger.Info().Int("count", len(entries)).Str("number", number).Msg("retrieved individual message history")
	return entries, nil
}

func (h *History) group(ctx context.Context, conversationSID string, limit int) ([]Entry, error) {
	messages, err := h.transport.ListConversationMessages(ctx, conversationSID, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, Entry{
			MessageSID:      msg.SID,
			ConversationSID: conversationSID,
			Author:          msg.Author,
			ParticipantSID:  msg.ParticipantSID,
			Body:            msg.Body,
			DateCreated:     isoTime(msg.DateCreated),
			Type:            "group",
		})
	}

	h.logger.Info().Int("count", len(entries)).Str("conversation_sid", conversationSID).Msg("retrieved group message history")
	return entries, nil
}

// isoTime re-renders an API timestamp as RFC 3339 when it parses; the raw
// value is passed through otherwise.
func isoTime(value string) string {
	if ts, ok := parseTime(value); ok {
		return ts.Format(time.RFC3339)
	}
	return value
}

func parseTime(value string) (time.Time, bool) {
	m := twilio.Message{DateCreated: value}
	return m.CreatedTime()
}
