package dispatch

import "fmt"

// Result types reported to the tool layer.
const (
	TypeIndividual = "individual"
	TypeGroup      = "group"
	TypeTextMe     = "text_me"
	TypeDryRun     = "dry_run"
)

// ParticipantOutcome records the fate of one participant while assembling a
// group conversation.
type ParticipantOutcome struct {
	PhoneNumber    string `json:"phone_number"`
	ParticipantSID string `json:"participant_sid,omitempty"`
	Error          string `json:"error,omitempty"`
}

// SendResult is the externally observable outcome of a dispatch. It is a
// tagged union: either Error is set, or Type selects which of the remaining
// fields are meaningful. The JSON shape is consumed directly by the
// tool-calling agent layer, which keys its retry reasoning off the `error`
// field.
type SendResult struct {
	Type  string `json:"type,omitempty"`
	Error string `json:"error,omitempty"`

	// Individual / text_me fields.
	MessageSID  string `json:"message_sid,omitempty"`
	To          string `json:"to,omitempty"`
	From        string `json:"from,omitempty"`
	Body        string `json:"body,omitempty"`
	Status      string `json:"status,omitempty"`
	DateCreated string `json:"date_created,omitempty"`

	// Group fields.
	ConversationSID      string               `json:"conversation_sid,omitempty"`
	ReusedExisting       *bool                `json:"reused_existing,omitempty"`
	ExistingParticipants []string             `json:"existing_participants,omitempty"`
	ParticipantsAdded    []ParticipantOutcome `json:"participants_added,omitempty"`
	ParticipantsFailed   []ParticipantOutcome `json:"participants_failed,omitempty"`

	// Dry-run fields.
	Debug     string   `json:"debug,omitempty"`
	ToNumbers []string `json:"to_numbers,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// IsError reports whether the result is the error variant.
func (r *SendResult) IsError() bool {
	return r != nil && r.Error != ""
}

func errorResult(format string, args ...any) *SendResult {
	return &SendResult{Error: fmt.Sprintf(format, args...)}
}

func boolPtr(v bool) *bool { return &v }
