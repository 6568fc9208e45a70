package twilio

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SendMessage delivers a single outbound SMS via the Messages API.
func (c *Client) SendMessage(ctx context.Context, from, to, body string) (*Message, error) {
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("twilio client: from number is required")
	}
	if strings.TrimSpace(to) == "" {
		return nil, errors.New("twilio client: to number is required")
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.apiBaseURL, url.PathEscape(c.accountSID))
	params := url.Values{}
	params.Set("From", from)
	params.Set("To", to)
	params.Set("Body", body)

	var msg Message
	if err := c.postForm(ctx, endpoint, params, &msg); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("message_sid", msg.SID).
		Str("to", to).
		Str("status", msg.Status).
		Msg("sms sent")
	return &msg, nil
}

// ListMessages retrieves recent messages matching the supplied filters,
// most recent first as returned by the API.
func (c *Client) ListMessages(ctx context.Context, p ListMessagesParams) ([]Message, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.apiBaseURL, url.PathEscape(c.accountSID))

	query := url.Values{}
	if p.To != "" {
		query.Set("To", p.To)
	}
	if p.From != "" {
		query.Set("From", p.From)
	}
	if p.Limit > 0 {
		query.Set("PageSize", strconv.Itoa(p.Limit))
	}

	var payload struct {
		Messages []Message `json:"messages"`
	}
	if err := c.getJSON(ctx, endpoint, query, &payload); err != nil {
		return nil, err
	}
	return payload.Messages, nil
}
