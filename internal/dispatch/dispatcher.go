// Package dispatch routes outbound messages: individual SMS for a single
// recipient, group MMS through the conversation store for several. Every
// recipient must pass the directory authorization gate before any remote
// call is made.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/auth"
	"github.com/beauchbot/beauchbot-go/internal/conversation"
	"github.com/beauchbot/beauchbot-go/internal/directory"
	"github.com/beauchbot/beauchbot-go/internal/phone"
	"github.com/beauchbot/beauchbot-go/internal/twilio"
)

// Authorizer validates candidate numbers against the contact directory.
type Authorizer interface {
	Authorize(ctx context.Context, candidates []string) auth.Result
	AllContacts(ctx context.Context) []directory.Contact
}

// Reconciler finds an existing group conversation matching a participant set.
type Reconciler interface {
	FindMatching(ctx context.Context, targets []string) (*conversation.Match, bool)
}

// ConversationTransport is the mutating slice of the conversation store the
// dispatcher needs.
type ConversationTransport interface {
	CreateConversation(ctx context.Context, friendlyName string) (*twilio.Conversation, error)
	AddParticipant(ctx context.Context, conversationSID string, p twilio.ParticipantParams) (*twilio.Participant, error)
	PostConversationMessage(ctx context.Context, conversationSID, body, author string) (*twilio.ConversationMessage, error)
}

// SMSSender delivers individual SMS messages.
type SMSSender interface {
	SendMessage(ctx context.Context, from, to, body string) (*twilio.Message, error)
}

// Option customises the dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the clock used for fallback timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// Dispatcher is the top-level send operation invoked by the tool layer. It
// never returns a Go error: every failure, from an unauthorized recipient to
// a transport outage, is reported as the error variant of SendResult so the
// agent layer can reason over it as data.
type Dispatcher struct {
	gate          Authorizer
	reconciler    Reconciler
	conversations ConversationTransport
	sms           SMSSender

	fromNumber        string
	ownerNumber       string
	assistantIdentity string

	logger zerolog.Logger
	now    func() time.Time
}

// Deps bundles the dispatcher's collaborators.
type Deps struct {
	Gate          Authorizer
	Reconciler    Reconciler
	Conversations ConversationTransport
	SMS           SMSSender
}

// New constructs a dispatcher. fromNumber is the assistant's own phone
// number; ownerNumber (optional) enables TextMe.
func New(deps Deps, fromNumber, ownerNumber, assistantIdentity string, logger zerolog.Logger, opts ...Option) (*Dispatcher, error) {
	if deps.Gate == nil {
		return nil, errors.New("dispatcher: authorization gate dependency is required")
	}
	if deps.Reconciler == nil {
		return nil, errors.New("dispatcher: reconciler dependency is required")
	}
	if deps.Conversations == nil {
		return nil, errors.New("dispatcher: conversation transport dependency is required")
	}
	if deps.SMS == nil {
		return nil, errors.New("dispatcher: sms sender dependency is required")
	}
	if strings.TrimSpace(fromNumber) == "" {
		return nil, errors.New("dispatcher: from number is required")
	}
	if strings.TrimSpace(assistantIdentity) == "" {
		return nil, errors.New("dispatcher: assistant identity is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	d := &Dispatcher{
		gate:              deps.Gate,
		reconciler:        deps.Reconciler,
		conversations:     deps.Conversations,
		sms:               deps.SMS,
		fromNumber:        strings.TrimSpace(fromNumber),
		ownerNumber:       strings.TrimSpace(ownerNumber),
		assistantIdentity: assistantIdentity,
		logger:            logger,
		now:               time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Send delivers message to the given recipients. One authorized recipient
// gets a standard SMS; two or more get a group MMS conversation, reusing an
// existing thread with the same participant set when one exists. The gate is
// all-or-nothing: a single unauthorized recipient refuses the whole send.
func (d *Dispatcher) Send(ctx context.Context, toNumbers []string, message string) *SendResult {
	if len(toNumbers) == 0 {
		return errorResult("At least one phone number is required")
	}

	res := d.gate.Authorize(ctx, toNumbers)
	if len(res.InvalidNumbers) > 0 {
		contactList := directory.FormatContactList(d.gate.AllContacts(ctx))
		return errorResult("Cannot send messages to unauthorized phone numbers: %s\n\n%s",
			strings.Join(res.InvalidNumbers, ", "), contactList)
	}
	if len(res.ValidNumbers) == 0 {
		return errorResult("No valid phone numbers provided")
	}

	names := make([]string, 0, len(res.MatchingContacts))
	for _, c := range res.MatchingContacts {
		names = append(names, c.Name)
	}
	d.logger.Info().Strs("contacts", names).Msg("sending message to validated contacts")

	if len(res.ValidNumbers) == 1 {
		return d.sendIndividual(ctx, res.ValidNumbers[0], message, TypeIndividual)
	}
	return d.sendGroup(ctx, res.ValidNumbers, message)
}

// TextMe sends message to the operator's own phone number. The recipient is
// fixed by configuration and bypasses the directory gate.
func (d *Dispatcher) TextMe(ctx context.Context, message string) *SendResult {
	if strings.TrimSpace(message) == "" {
		return errorResult("Message content is required")
	}
	if d.ownerNumber == "" {
		return errorResult("MY_PHONE_NUMBER environment variable is required")
	}
	return d.sendIndividual(ctx, d.ownerNumber, message, TypeTextMe)
}

// DryRun reports what a send would look like without touching any remote
// service.
func (d *Dispatcher) DryRun(toNumbers []string, message string) *SendResult {
	return &SendResult{
		Type:      TypeDryRun,
		Debug:     "This is a dry run tool that will not send a message to the group.",
		ToNumbers: append([]string(nil), toNumbers...),
		Message:   message,
		Status:    "dry_run",
	}
}

func (d *Dispatcher) sendIndividual(ctx context.Context, to, message, resultType string) *SendResult {
	msg, err := d.sms.SendMessage(ctx, d.fromNumber, to, message)
	if err != nil {
		d.logger.Error().Err(err).Str("to", to).Msg("failed to send individual sms")
		return errorResult("Failed to send text: %s", err)
	}

	d.logger.Info().Str("to", to).Str("message_sid", msg.SID).Msg("individual sms sent")
	return &SendResult{
		Type:        resultType,
		MessageSID:  msg.SID,
		To:          to,
		From:        d.fromNumber,
		Body:        message,
		Status:      msg.Status,
		DateCreated: d.timestamp(msg.CreatedTime()),
	}
}

func (d *Dispatcher) sendGroup(ctx context.Context, toNumbers []string, message string) *SendResult {
	// Group MMS is restricted to US/Canada numbers by the transport.
	for _, number := range toNumbers {
		if !phone.IsUSCanada(number) {
			return errorResult("Group MMS only supports US/Canada (+1) numbers. Invalid: %s", number)
		}
	}

	if match, found := d.reconciler.FindMatching(ctx, toNumbers); found {
		if result, ok := d.postToExisting(ctx, match, message); ok {
			return result
		}
		d.logger.Info().Msg("falling back to creating new conversation")
	}

	return d.createAndSend(ctx, toNumbers, message)
}

// postToExisting posts into a matched conversation, adding the assistant
// participant first when it is missing. Any failure reports not-ok so the
// caller can fall back to creating a fresh conversation.
func (d *Dispatcher) postToExisting(ctx context.Context, match *conversation.Match, message string) (*SendResult, bool) {
	sid := match.Conversation.SID

	if !match.HasAssistant {
		d.logger.Info().Str("conversation_sid", sid).Msg("adding assistant participant to existing conversation")
		if _, err := d.conversations.AddParticipant(ctx, sid, twilio.ParticipantParams{
			Identity:         d.assistantIdentity,
			ProjectedAddress: d.fromNumber,
		}); err != nil {
			d.logger.Error().Err(err).Str("conversation_sid", sid).Msg("failed to add assistant to existing conversation")
			return nil, false
		}
	}

	msg, err := d.conversations.PostConversationMessage(ctx, sid, message, d.assistantIdentity)
	if err != nil {
		d.logger.Error().Err(err).Str("conversation_sid", sid).Msg("failed to post to existing conversation")
		return nil, false
	}

	d.logger.Info().Str("conversation_sid", sid).Str("message_sid", msg.SID).Msg("group message sent to existing conversation")
	return &SendResult{
		Type:                 TypeGroup,
		ConversationSID:      sid,
		MessageSID:           msg.SID,
		ReusedExisting:       boolPtr(true),
		ExistingParticipants: match.Participants,
		Body:                 message,
		DateCreated:          d.timestamp(msg.CreatedTime()),
	}, true
}

func (d *Dispatcher) createAndSend(ctx context.Context, toNumbers []string, message string) *SendResult {
	d.logger.Info().Int("participants", len(toNumbers)).Msg("creating new group conversation")

	conv, err := d.conversations.CreateConversation(ctx, fmt.Sprintf("Group conversation %d participants", len(toNumbers)))
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to create conversation")
		return errorResult("Failed to send group text: %s", err)
	}

	var added, failed []ParticipantOutcome
	for _, number := range toNumbers {
		// Group MMS participants carry only a bound address; a proxy
		// address here would split the thread into individual sessions.
		participant, err := d.conversations.AddParticipant(ctx, conv.SID, twilio.ParticipantParams{Address: number})
		if err != nil {
			d.logger.Error().Err(err).Str("phone_number", number).Msg("failed to add participant")
			failed = append(failed, ParticipantOutcome{PhoneNumber: number, Error: err.Error()})
			continue
		}
		added = append(added, ParticipantOutcome{PhoneNumber: number, ParticipantSID: participant.SID})
	}

	assistant, err := d.conversations.AddParticipant(ctx, conv.SID, twilio.ParticipantParams{
		Identity:         d.assistantIdentity,
		ProjectedAddress: d.fromNumber,
	})
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to add assistant participant")
		failed = append(failed, ParticipantOutcome{PhoneNumber: d.assistantIdentity, Error: err.Error()})
	} else {
		added = append(added, ParticipantOutcome{
			PhoneNumber:    fmt.Sprintf("%s (projected: %s)", d.assistantIdentity, d.fromNumber),
			ParticipantSID: assistant.SID,
		})
	}

	if len(added) == 0 {
		return errorResult("Failed to add any participants to the group conversation")
	}

	msg, err := d.conversations.PostConversationMessage(ctx, conv.SID, message, d.assistantIdentity)
	if err != nil {
		d.logger.Error().Err(err).Str("conversation_sid", conv.SID).Msg("failed to post group message")
		return errorResult("Failed to send group text: %s", err)
	}

	d.logger.Info().Str("conversation_sid", conv.SID).Str("message_sid", msg.SID).Msg("group message sent to new conversation")
	return &SendResult{
		Type:               TypeGroup,
		ConversationSID:    conv.SID,
		MessageSID:         msg.SID,
		ReusedExisting:     boolPtr(false),
		ParticipantsAdded:  added,
		ParticipantsFailed: failed,
		Body:               message,
		DateCreated:        d.timestamp(msg.CreatedTime()),
	}
}

func (d *Dispatcher) timestamp(ts time.Time, ok bool) string {
	if !ok {
		ts = d.now()
	}
	return ts.Format(time.RFC3339)
}
