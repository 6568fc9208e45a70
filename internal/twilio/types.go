package twilio

import "time"

// ConversationStateActive is the only conversation state eligible for group
// thread reuse.
const ConversationStateActive = "active"

// Message is an SMS/MMS message resource from the Messages API.
type Message struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	To           string `json:"to"`
	From         string `json:"from"`
	Body         string `json:"body"`
	Direction    string `json:"direction"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	DateCreated  string `json:"date_created"`
	DateSent     string `json:"date_sent"`
}

// CreatedTime parses the message creation timestamp. The API emits RFC 2822
// style dates; zero time and false are returned when parsing fails.
func (m *Message) CreatedTime() (time.Time, bool) {
	return parseAPITime(m.DateCreated)
}

// Conversation is a group thread resource from the Conversations API. The
// remote provider owns this state; it is never cached across calls.
type Conversation struct {
	SID          string `json:"sid"`
	State        string `json:"state"`
	FriendlyName string `json:"friendly_name"`
	DateCreated  string `json:"date_created"`
}

// MessagingBinding carries the addressing of an SMS-bound participant.
// Assistant participants have an identity instead of a bound address.
type MessagingBinding struct {
	Address          string `json:"address"`
	ProxyAddress     string `json:"proxy_address"`
	ProjectedAddress string `json:"projected_address"`
}

// Participant is a member of a conversation.
type Participant struct {
	SID              string            `json:"sid"`
	Identity         string            `json:"identity"`
	MessagingBinding *MessagingBinding `json:"messaging_binding"`
}

// BoundAddress returns the participant's SMS address, if any.
func (p *Participant) BoundAddress() string {
	if p.MessagingBinding == nil {
		return ""
	}
	return p.MessagingBinding.Address
}

// ConversationMessage is a message posted inside a conversation.
type ConversationMessage struct {
	SID            string `json:"sid"`
	Author         string `json:"author"`
	Body           string `json:"body"`
	ParticipantSID string `json:"participant_sid"`
	DateCreated    string `json:"date_created"`
}

// CreatedTime parses the message creation timestamp.
func (m *ConversationMessage) CreatedTime() (time.Time, bool) {
	return parseAPITime(m.DateCreated)
}

// ParticipantParams describes a participant to add to a conversation.
// Exactly one of the two binding styles applies: a plain address for SMS
// participants, or an identity plus projected address for the assistant.
type ParticipantParams struct {
	Address          string
	Identity         string
	ProjectedAddress string
}

// ListMessagesParams filters a Messages API listing.
type ListMessagesParams struct {
	To    string
	From  string
	Limit int
}

func parseAPITime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC3339, time.RFC3339Nano} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
