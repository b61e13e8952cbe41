package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/example/helpdesk/internal/models"
)

// WebhookDispatcher posts messages as JSON to an incoming-webhook URL.
type WebhookDispatcher struct {
	url    string
	client *http.Client
}

// NewWebhookDispatcher targets url.
func NewWebhookDispatcher(url string, timeout time.Duration) *WebhookDispatcher {
	return &WebhookDispatcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Dispatch posts msg and treats any non-2xx answer as a failure.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}
	return nil
}

// Publisher is the subset of the message-queue publisher used here.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// QueueDispatcher hands messages to the message queue; a relay worker
// forwards them to the webhook.
type QueueDispatcher struct {
	publisher Publisher
}

// NewQueueDispatcher wraps publisher.
func NewQueueDispatcher(publisher Publisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

// Dispatch publishes msg under its event name.
func (d *QueueDispatcher) Dispatch(ctx context.Context, msg Message) error {
	return d.publisher.Publish(ctx, msg.Event, msg)
}

// LogDispatcher only logs; used when no channel is configured.
type LogDispatcher struct {
	log *slog.Logger
}

// NewLogDispatcher builds a LogDispatcher.
func NewLogDispatcher(log *slog.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

// Dispatch logs msg.
func (d *LogDispatcher) Dispatch(_ context.Context, msg Message) error {
	d.log.Info("ticket notification (no channel configured)", "event", msg.Event, "tickets", msg.TicketIDs)
	return nil
}

// StoredHandles mentions users by the chat handle stored on their row.
type StoredHandles struct{}

// Mention returns the stored handle, or "" when none is set.
func (StoredHandles) Mention(_ context.Context, user *models.User) (string, error) {
	return user.ChatHandle, nil
}

// SlackDirectory looks users up by email through the Slack Web API. A handle
// stored on the user row takes precedence over the lookup.
type SlackDirectory struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewSlackDirectory builds a directory using a bot token.
func NewSlackDirectory(token string, timeout time.Duration) *SlackDirectory {
	return &SlackDirectory{
		token:   token,
		baseURL: "https://slack.com/api",
		client:  &http.Client{Timeout: timeout},
	}
}

// Mention returns "<@MEMBERID>" for the user's email.
func (d *SlackDirectory) Mention(ctx context.Context, user *models.User) (string, error) {
	if user.ChatHandle != "" {
		return user.ChatHandle, nil
	}
	if user.Email == "" {
		return "", fmt.Errorf("user %s has no email", user.ID)
	}
	endpoint := fmt.Sprintf("%s/users.lookupByEmail?email=%s", d.baseURL, url.QueryEscape(user.Email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("slack lookup failed: %s", resp.Status)
	}

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if !result.OK || result.User.ID == "" {
		return "", fmt.Errorf("slack lookup for %s: %s", user.Email, result.Error)
	}
	return "<@" + result.User.ID + ">", nil
}
