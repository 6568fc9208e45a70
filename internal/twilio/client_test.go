package twilio

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/config"
)

type fakeHTTPClient struct {
	requests []*http.Request
	respond  func(req *http.Request) (*http.Response, error)
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	return f.respond(req)
}

func jsonResponse(status int, body string) (*http.Response, error) {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}, nil
}

func newTestClient(t *testing.T, fake *fakeHTTPClient) *Client {
	t.Helper()
	client, err := NewClient(config.TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "token",
	}, zerolog.Nop(),
		WithHTTPClient(fake),
		WithAPIBaseURL("https://api.test"),
		WithConversationsBaseURL("https://conversations.test"),
	)
	if err != nil {
		t.Fatalf("unexpected error constructing client: %v", err)
	}
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(config.TwilioConfig{AuthToken: "x"}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing account SID")
	}
	if _, err := NewClient(config.TwilioConfig{AccountSID: "AC1"}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing auth token")
	}
}

func TestSendMessage(t *testing.T) {
	fake := &fakeHTTPClient{respond: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusCreated, `{"sid":"SM1","status":"queued","to":"+12035839125","from":"+15550001111","body":"hi"}`)
	}}
	client := newTestClient(t, fake)

	msg, err := client.SendMessage(context.Background(), "+15550001111", "+12035839125", "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.SID != "SM1" || msg.Status != "queued" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	req := fake.requests[0]
	if req.URL.String() != "https://api.test/Accounts/AC123/Messages.json" {
		t.Fatalf("unexpected endpoint: %s", req.URL)
	}
	if user, pass, ok := req.BasicAuth(); !ok || user != "AC123" || pass != "token" {
		t.Fatalf("expected basic auth credentials, got %q/%q", user, pass)
	}
	payload, _ := io.ReadAll(req.Body)
	form := string(payload)
	for _, want := range []string{"To=%2B12035839125", "From=%2B15550001111", "Body=hi"} {
		if !strings.Contains(form, want) {
			t.Fatalf("form body missing %q: %s", want, form)
		}
	}
}

func TestSendMessageSurfacesAPIError(t *testing.T) {
	fake := &fakeHTTPClient{respond: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"code":21211,"message":"Invalid 'To' Phone Number"}`)
	}}
	client := newTestClient(t, fake)

	_, err := client.SendMessage(context.Background(), "+15550001111", "bogus", "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 21211 || apiErr.StatusCode() != http.StatusBadRequest {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestListConversations(t *testing.T) {
	fake := &fakeHTTPClient{respond: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"conversations":[{"sid":"CH1","state":"active"},{"sid":"CH2","state":"closed"}]}`)
	}}
	client := newTestClient(t, fake)

	convs, err := client.ListConversations(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(convs) != 2 || convs[0].SID != "CH1" {
		t.Fatalf("unexpected conversations: %+v", convs)
	}
	if got := fake.requests[0].URL.Query().Get("PageSize"); got != "50" {
		t.Fatalf("expected PageSize=50, got %q", got)
	}
}

func TestAddParticipantBindingStyles(t *testing.T) {
	fake := &fakeHTTPClient{respond: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusCreated, `{"sid":"MB1"}`)
	}}
	client := newTestClient(t, fake)

	if _, err := client.AddParticipant(context.Background(), "CH1", ParticipantParams{Address: "+12035839125"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, _ := io.ReadAll(fake.requests[0].Body)
	if !strings.Contains(string(payload), "MessagingBinding.Address=%2B12035839125") {
		t.Fatalf("expected address binding, got %s", payload)
	}
	if strings.Contains(string(payload), "ProxyAddress") {
		t.Fatalf("group participants must not carry a proxy address: %s", payload)
	}

	if _, err := client.AddParticipant(context.Background(), "CH1", ParticipantParams{
		Identity:         "beauchbot_assistant",
		ProjectedAddress: "+15550001111",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, _ = io.ReadAll(fake.requests[1].Body)
	form := string(payload)
	if !strings.Contains(form, "Identity=beauchbot_assistant") || !strings.Contains(form, "MessagingBinding.ProjectedAddress=%2B15550001111") {
		t.Fatalf("expected identity binding, got %s", form)
	}

	if _, err := client.AddParticipant(context.Background(), "CH1", ParticipantParams{}); err == nil {
		t.Fatal("expected error for empty participant params")
	}
}

func TestListParticipantsParsesBindings(t *testing.T) {
	fake := &fakeHTTPClient{respond: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"participants":[
			{"sid":"MB1","messaging_binding":{"address":"+12035839125"}},
			{"sid":"MB2","identity":"beauchbot_assistant","messaging_binding":{"projected_address":"+15550001111"}}
		]}`)
	}}
	client := newTestClient(t, fake)

	parts, err := client.ListParticipants(context.Background(), "CH1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(parts))
	}
	if parts[0].BoundAddress() != "+12035839125" {
		t.Fatalf("unexpected bound address: %q", parts[0].BoundAddress())
	}
	if parts[1].BoundAddress() != "" || parts[1].Identity != "beauchbot_assistant" {
		t.Fatalf("assistant participant misparsed: %+v", parts[1])
	}
}

func TestDoWrapsTransportFailure(t *testing.T) {
	fake := &fakeHTTPClient{respond: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}
	client := newTestClient(t, fake)

	if _, err := client.ListConversations(context.Background(), 10); err == nil {
		t.Fatal("expected transport error to propagate")
	}
}
