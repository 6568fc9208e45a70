package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ListConversations fetches the first page of conversations, most recent
// first. No pagination is attempted beyond the requested page size.
func (c *Client) ListConversations(ctx context.Context, pageSize int) ([]Conversation, error) {
	query := url.Values{}
	if pageSize > 0 {
		query.Set("PageSize", strconv.Itoa(pageSize))
	}

	var payload struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.getJSON(ctx, c.convBaseURL+"/Conversations", query, &payload); err != nil {
		return nil, err
	}
	return payload.Conversations, nil
}

// ListParticipants fetches every participant of a conversation.
func (c *Client) ListParticipants(ctx context.Context, conversationSID string) ([]Participant, error) {
	if strings.TrimSpace(conversationSID) == "" {
		return nil, errors.New("twilio client: conversation SID is required")
	}

	endpoint := fmt.Sprintf("%s/Conversations/%s/Participants", c.convBaseURL, url.PathEscape(conversationSID))

	var payload struct {
		Participants []Participant `json:"participants"`
	}
	if err := c.getJSON(ctx, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Participants, nil
}

// CreateConversation creates a new empty conversation.
func (c *Client) CreateConversation(ctx context.Context, friendlyName string) (*Conversation, error) {
	params := url.Values{}
	if strings.TrimSpace(friendlyName) != "" {
		params.Set("FriendlyName", friendlyName)
	}

	var conv Conversation
	if err := c.postForm(ctx, c.convBaseURL+"/Conversations", params, &conv); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("conversation_sid", conv.SID).
		Str("friendly_name", conv.FriendlyName).
		Msg("conversation created")
	return &conv, nil
}

// AddParticipant attaches a participant to a conversation. SMS participants
// carry only a bound address; the assistant carries an identity plus a
// projected address. The two styles are mutually exclusive.
func (c *Client) AddParticipant(ctx context.Context, conversationSID string, p ParticipantParams) (*Participant, error) {
	if strings.TrimSpace(conversationSID) == "" {
		return nil, errors.New("twilio client: conversation SID is required")
	}

	params := url.Values{}
	switch {
	case p.Address != "" && p.Identity == "":
		params.Set("MessagingBinding.Address", p.Address)
	case p.Identity != "" && p.Address == "":
		params.Set("Identity", p.Identity)
		if p.ProjectedAddress != "" {
			params.Set("MessagingBinding.ProjectedAddress", p.ProjectedAddress)
		}
	default:
		return nil, errors.New("twilio client: participant needs either an address or an identity, not both")
	}

	endpoint := fmt.Sprintf("%s/Conversations/%s/Participants", c.convBaseURL, url.PathEscape(conversationSID))

	var participant Participant
	if err := c.postForm(ctx, endpoint, params, &participant); err != nil {
		return nil, err
	}
	return &participant, nil
}

// PostConversationMessage posts a message into a conversation as the given
// author identity.
func (c *Client) PostConversationMessage(ctx context.Context, conversationSID, body, author string) (*ConversationMessage, error) {
	if strings.TrimSpace(conversationSID) == "" {
		return nil, errors.New("twilio client: conversation SID is required")
	}

	params := url.Values{}
	params.Set("Body", body)
	if strings.TrimSpace(author) != "" {
		params.Set("Author", author)
	}

	endpoint := fmt.Sprintf("%s/Conversations/%s/Messages", c.convBaseURL, url.PathEscape(conversationSID))

	var msg ConversationMessage
	if err := c.postForm(ctx, endpoint, params, &msg); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("conversation_sid", conversationSID).
		Str("message_sid", msg.SID).
		Msg("conversation message posted")
	return &msg, nil
}

// ListConversationMessages fetches recent messages from a conversation,
// newest first.
func (c *Client) ListConversationMessages(ctx context.Context, conversationSID string, limit int) ([]ConversationMessage, error) {
	if strings.TrimSpace(conversationSID) == "" {
		return nil, errors.New("twilio client: conversation SID is required")
	}

	query := url.Values{}
	query.Set("Order", "desc")
	if limit > 0 {
		query.Set("PageSize", strconv.Itoa(limit))
	}

	endpoint := fmt.Sprintf("%s/Conversations/%s/Messages", c.convBaseURL, url.PathEscape(conversationSID))

	var payload struct {
		Messages []ConversationMessage `json:"messages"`
	}
	if err := c.getJSON(ctx, endpoint, query, &payload); err != nil {
		return nil, err
	}
	return payload.Messages, nil
}
