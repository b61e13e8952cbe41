package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the external conversational agent (an automation webhook).
type Client struct {
	url    string
	client *http.Client
}

// NewClient constructs a client posting to the provided webhook URL.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sender identifies the user talking to the agent.
type Sender struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Request is the payload sent for every user message.
type Request struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	User      Sender `json:"user"`
	History   []Turn `json:"history,omitempty"`
}

// TicketDraft is a ticket the agent decided to file on the user's behalf.
type TicketDraft struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Priority         string `json:"priority"`
	Type             string `json:"type"`
	URL              string `json:"url"`
	ExpectedDoneDate string `json:"expectedDoneDate"`
	ProjectID        string `json:"projectId"`
	Assignee         string `json:"assignee"`
}

// Reply is the agent's answer.
type Reply struct {
	Reply   string        `json:"reply"`
	Tickets []TicketDraft `json:"tickets"`
}

// Send forwards a user message and returns the agent's reply. Some automation
// tools wrap single results in a one-element array; both shapes are accepted.
func (c *Client) Send(ctx context.Context, in Request) (*Reply, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent webhook failed: %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var many []Reply
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, err
		}
		if len(many) == 0 {
			return &Reply{}, nil
		}
		return &many[0], nil
	}
	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}
