package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/twilio"
)

type fakeMessageLister struct {
	byDirection map[string][]twilio.Message
	groupMsgs   []twilio.ConversationMessage
	groupErr    error
}

func (f *fakeMessageLister) ListMessages(_ context.Context, p twilio.ListMessagesParams) ([]twilio.Message, error) {
	return f.byDirection[p.From+">"+p.To], nil
}

func (f *fakeMessageLister) ListConversationMessages(_ context.Context, sid string, limit int) ([]twilio.ConversationMessage, error) {
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	return f.groupMsgs, nil
}

func TestIsConversationSID(t *testing.T) {
	if !IsConversationSID("CH" + "0123456789abcdef0123456789abcdef") {
		t.Fatal("expected CH-prefixed 34-char identifier to be a conversation SID")
	}
	if IsConversationSID("+12035839125") {
		t.Fatal("phone number misclassified as conversation SID")
	}
	if IsConversationSID("CH123") {
		t.Fatal("short CH identifier misclassified")
	}
}

func TestFetchIndividualMergesAndSortsBothDirections(t *testing.T) {
	transport := &fakeMessageLister{byDirection: map[string][]twilio.Message{
		"+12035839125>+15550001111": {
			{SID: "SMin", From: "+12035839125", To: "+15550001111", Body: "hello", DateCreated: "Mon, 02 Jan 2006 15:04:05 +0000"},
		},
		"+15550001111>+12035839125": {
			{SID: "SMout", From: "+15550001111", To: "+12035839125", Body: "hi back", DateCreated: "Tue, 03 Jan 2006 15:04:05 +0000"},
		},
	}}
	h, err := NewHistory(transport, "+15550001111", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := h.Fetch(context.Background(), "+12035839125", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].MessageSID != "SMout" {
		t.Fatalf("expected newest message first, got %+v", entries[0])
	}
	if entries[0].Direction != "outbound" || entries[1].Direction != "inbound" {
		t.Fatalf("unexpected directions: %+v", entries)
	}
	if entries[0].Type != "individual" {
		t.Fatalf("unexpected type: %q", entries[0].Type)
	}
}

func TestFetchGroupByConversationSID(t *testing.T) {
	sid := "CH0123456789abcdef0123456789abcdef"
	transport := &fakeMessageLister{groupMsgs: []twilio.ConversationMessage{
		{SID: "IM1", Author: "beauchbot_assistant", Body: "group hello"},
	}}
	h, err := NewHistory(transport, "+15550001111", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := h.Fetch(context.Background(), sid, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ConversationSID != sid || entries[0].Type != "group" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestFetchRejectsEmptyIdentifier(t *testing.T) {
	h, err := NewHistory(&fakeMessageLister{}, "+15550001111", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := h.Fetch(context.Background(), "  ", 10); err == nil {
		t.Fatal("expected error for empty identifier")
	}
}

func TestFetchGroupPropagatesTransportError(t *testing.T) {
	h, err := NewHistory(&fakeMessageLister{groupErr: errors.New("boom")}, "+15550001111", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := h.Fetch(context.Background(), "CH0123456789abcdef0123456789abcdef", 10); err == nil {
		t.Fatal("expected transport error to propagate")
	}
}
