// Package conversation implements group-thread reconciliation and message
// history retrieval against the remote conversation store.
package conversation

import (
	"context"
	"errors"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/twilio"
)

// searchPageSize bounds the reconciliation search to the most recent
// conversations. The search is deliberately recency-biased and best-effort;
// no further pages are fetched.
const searchPageSize = 50

// Lister is the read-only slice of the conversation transport the
// reconciler needs.
type Lister interface {
	ListConversations(ctx context.Context, pageSize int) ([]twilio.Conversation, error)
	ListParticipants(ctx context.Context, conversationSID string) ([]twilio.Participant, error)
}

// Match describes an existing conversation whose participant addresses
// exactly equal a target set.
type Match struct {
	Conversation twilio.Conversation
	Participants []string
	HasAssistant bool
}

// Reconciler searches existing group conversations so a send to the same
// participant set reuses the established thread instead of creating a
// duplicate.
type Reconciler struct {
	transport         Lister
	assistantIdentity string
	logger            zerolog.Logger
}

// NewReconciler constructs a reconciler.
func NewReconciler(transport Lister, assistantIdentity string, logger zerolog.Logger) (*Reconciler, error) {
	if transport == nil {
		return nil, errors.New("reconciler: conversation transport dependency is required")
	}
	if assistantIdentity == "" {
		return nil, errors.New("reconciler: assistant identity is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Reconciler{
		transport:         transport,
		assistantIdentity: assistantIdentity,
		logger:            logger,
	}, nil
}

// FindMatching returns the most recent active conversation whose
// participant-address set exactly equals the target set. The assistant
// participant is excluded from the address comparison but reported via
// Match.HasAssistant. Address comparison is exact-string on canonical
// numbers; no case folding is applied. Any transport failure degrades to a
// not-found result so the caller can always fall back to creating a new
// conversation.
func (r *Reconciler) FindMatching(ctx context.Context, targets []string) (*Match, bool) {
	targetSet := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		targetSet[t] = struct{}{}
	}

	conversations, err := r.transport.ListConversations(ctx, searchPageSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list conversations, treating as no match")
		return nil, false
	}

	for _, conv := range conversations {
		if conv.State != twilio.ConversationStateActive {
			continue
		}

		participants, err := r.transport.ListParticipants(ctx, conv.SID)
		if err != nil {
			r.logger.Warn().Err(err).Str("conversation_sid", conv.SID).Msg("failed to check conversation participants")
			continue
		}

		addresses := make(map[string]struct{})
		hasAssistant := false
		for _, p := range participants {
			if addr := p.BoundAddress(); addr != "" {
				addresses[addr] = struct{}{}
			}
			if p.Identity == r.assistantIdentity {
				hasAssistant = true
			}
		}

		if !sameSet(addresses, targetSet) {
			continue
		}

		r.logger.Info().
			Str("conversation_sid", conv.SID).
			Bool("has_assistant", hasAssistant).
			Msg("found matching conversation")
		return &Match{
			Conversation: conv,
			Participants: setToSlice(addresses),
			HasAssistant: hasAssistant,
		}, true
	}

	r.logger.Info().Msg("no existing conversation found with matching participants")
	return nil, false
}

func sameSet(a map[string]struct{}, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
