package conversation

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/twilio"
)

type fakeLister struct {
	conversations []twilio.Conversation
	listErr       error
	participants  map[string][]twilio.Participant
	participErrs  map[string]error
	pageSizes     []int
}

func (f *fakeLister) ListConversations(_ context.Context, pageSize int) ([]twilio.Conversation, error) {
	f.pageSizes = append(f.pageSizes, pageSize)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.conversations, nil
}

func (f *fakeLister) ListParticipants(_ context.Context, sid string) ([]twilio.Participant, error) {
	if err, ok := f.participErrs[sid]; ok {
		return nil, err
	}
	return f.participants[sid], nil
}

func smsParticipant(address string) twilio.Participant {
	return twilio.Participant{MessagingBinding: &twilio.MessagingBinding{Address: address}}
}

func assistantParticipant(identity string) twilio.Participant {
	return twilio.Participant{
		Identity:         identity,
		MessagingBinding: &twilio.MessagingBinding{ProjectedAddress: "+15550001111"},
	}
}

func newReconciler(t *testing.T, transport Lister) *Reconciler {
	t.Helper()
	r, err := NewReconciler(transport, "beauchbot_assistant", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error constructing reconciler: %v", err)
	}
	return r
}

func TestFindMatchingExactSet(t *testing.T) {
	transport := &fakeLister{
		conversations: []twilio.Conversation{
			{SID: "CH1", State: "active"},
			{SID: "CH2", State: "active"},
		},
		participants: map[string][]twilio.Participant{
			"CH1": {smsParticipant("+12035839125")},
			"CH2": {
				smsParticipant("+12035839125"),
				smsParticipant("+14445556666"),
				assistantParticipant("beauchbot_assistant"),
			},
		},
	}
	r := newReconciler(t, transport)

	match, found := r.FindMatching(context.Background(), []string{"+12035839125", "+14445556666"})
	if !found {
		t.Fatal("expected a match")
	}
	if match.Conversation.SID != "CH2" {
		t.Fatalf("unexpected conversation: %+v", match.Conversation)
	}
	if !match.HasAssistant {
		t.Fatal("expected assistant participant to be detected")
	}
	got := append([]string(nil), match.Participants...)
	sort.Strings(got)
	if got[0] != "+12035839125" || got[1] != "+14445556666" {
		t.Fatalf("unexpected participant set: %v", got)
	}
	if transport.pageSizes[0] != 50 {
		t.Fatalf("expected page size 50, got %d", transport.pageSizes[0])
	}
}

func TestFindMatchingRejectsSubsetsAndSupersets(t *testing.T) {
	transport := &fakeLister{
		conversations: []twilio.Conversation{
			{SID: "CH1", State: "active"},
			{SID: "CH2", State: "active"},
		},
		participants: map[string][]twilio.Participant{
			// Subset of the target.
			"CH1": {smsParticipant("+12035839125")},
			// Superset of the target.
			"CH2": {
				smsParticipant("+12035839125"),
				smsParticipant("+14445556666"),
				smsParticipant("+17778889999"),
			},
		},
	}
	r := newReconciler(t, transport)

	if _, found := r.FindMatching(context.Background(), []string{"+12035839125", "+14445556666"}); found {
		t.Fatal("expected no match for subset/superset conversations")
	}
}

func TestFindMatchingSkipsInactiveConversations(t *testing.T) {
	transport := &fakeLister{
		conversations: []twilio.Conversation{
			{SID: "CH1", State: "closed"},
			{SID: "CH2", State: "inactive"},
		},
		participants: map[string][]twilio.Participant{
			"CH1": {smsParticipant("+12035839125"), smsParticipant("+14445556666")},
			"CH2": {smsParticipant("+12035839125"), smsParticipant("+14445556666")},
		},
	}
	r := newReconciler(t, transport)

	if _, found := r.FindMatching(context.Background(), []string{"+12035839125", "+14445556666"}); found {
		t.Fatal("expected inactive conversations to be skipped")
	}
}

func TestFindMatchingExcludesAssistantFromAddressSet(t *testing.T) {
	transport := &fakeLister{
		conversations: []twilio.Conversation{{SID: "CH1", State: "active"}},
		participants: map[string][]twilio.Participant{
			"CH1": {
				smsParticipant("+12035839125"),
				smsParticipant("+14445556666"),
				assistantParticipant("beauchbot_assistant"),
			},
		},
	}
	r := newReconciler(t, transport)

	// The assistant has no bound address, so it must not count towards the
	// participant set the targets are compared against.
	match, found := r.FindMatching(context.Background(), []string{"+12035839125", "+14445556666"})
	if !found {
		t.Fatal("expected match despite assistant participant")
	}
	if len(match.Participants) != 2 {
		t.Fatalf("assistant leaked into address set: %v", match.Participants)
	}
}

func TestFindMatchingDegradesToNotFoundOnListError(t *testing.T) {
	transport := &fakeLister{listErr: errors.New("transport down")}
	r := newReconciler(t, transport)

	if _, found := r.FindMatching(context.Background(), []string{"+12035839125", "+14445556666"}); found {
		t.Fatal("expected not-found on transport failure")
	}
}

func TestFindMatchingSkipsConversationsWithParticipantErrors(t *testing.T) {
	transport := &fakeLister{
		conversations: []twilio.Conversation{
			{SID: "CH1", State: "active"},
			{SID: "CH2", State: "active"},
		},
		participants: map[string][]twilio.Participant{
			"CH2": {smsParticipant("+12035839125"), smsParticipant("+14445556666")},
		},
		participErrs: map[string]error{"CH1": errors.New("boom")},
	}
	r := newReconciler(t, transport)

	match, found := r.FindMatching(context.Background(), []string{"+12035839125", "+14445556666"})
	if !found || match.Conversation.SID != "CH2" {
		t.Fatalf("expected CH2 match after skipping CH1, got %v %v", match, found)
	}
}

func TestFindMatchingReturnsFirstListedMatch(t *testing.T) {
	transport := &fakeLister{
		conversations: []twilio.Conversation{
			{SID: "CHnewer", State: "active"},
			{SID: "CHolder", State: "active"},
		},
		participants: map[string][]twilio.Participant{
			"CHnewer": {smsParticipant("+12035839125"), smsParticipant("+14445556666")},
			"CHolder": {smsParticipant("+12035839125"), smsParticipant("+14445556666")},
		},
	}
	r := newReconciler(t, transport)

	match, found := r.FindMatching(context.Background(), []string{"+12035839125", "+14445556666"})
	if !found || match.Conversation.SID != "CHnewer" {
		t.Fatalf("expected the most recently listed conversation, got %+v", match)
	}
}
