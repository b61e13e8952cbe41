// Package notify announces newly created ticket batches on an external
// channel. Delivery is best-effort: every failure is logged and dropped.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/helpdesk/internal/goroutine"
	"github.com/example/helpdesk/internal/models"
)

// EventTicketsCreated is the event name and routing key of a batch announcement.
const EventTicketsCreated = "ticket.created"

// CreatedTicket summarizes one ticket of a batch.
type CreatedTicket struct {
	DisplayID string
	Title     string
	Type      string
	Priority  string
}

// BatchCreated describes a batch that has been durably inserted.
type BatchCreated struct {
	Requester models.User
	Assignee  *models.User
	Project   string
	Tickets   []CreatedTicket
}

// Message is what dispatchers deliver.
type Message struct {
	Event      string    `json:"event"`
	Text       string    `json:"text"`
	TicketIDs  []string  `json:"ticketIds"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Dispatcher delivers a message to a channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// Directory resolves a user to the handle used to mention them on the channel.
type Directory interface {
	Mention(ctx context.Context, user *models.User) (string, error)
}

// Notifier fires one detached delivery per batch.
type Notifier struct {
	dispatcher Dispatcher
	directory  Directory
	log        *slog.Logger
	timeout    time.Duration
	now        func() time.Time
	inflight   sync.WaitGroup
}

// New builds a Notifier. directory may be nil, in which case assignees are
// mentioned by name.
func New(dispatcher Dispatcher, directory Directory, log *slog.Logger, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		dispatcher: dispatcher,
		directory:  directory,
		log:        log,
		timeout:    timeout,
		now:        time.Now,
	}
}

// TicketsCreated returns immediately; the announcement runs in the
// background, detached from ctx's cancellation.
func (n *Notifier) TicketsCreated(ctx context.Context, ev BatchCreated) {
	if n == nil || n.dispatcher == nil || len(ev.Tickets) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	n.inflight.Add(1)
	goroutine.SafeGo(n.log, "notify.tickets_created", func() {
		defer n.inflight.Done()
		n.deliver(ctx, ev)
	})
}

// Wait blocks until in-flight deliveries have finished.
func (n *Notifier) Wait() {
	if n != nil {
		n.inflight.Wait()
	}
}

func (n *Notifier) deliver(ctx context.Context, ev BatchCreated) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	mention := ""
	if ev.Assignee != nil {
		mention = ev.Assignee.Name
		if n.directory != nil {
			handle, err := n.directory.Mention(ctx, ev.Assignee)
			if err != nil {
				n.log.Warn("resolve assignee handle failed", "assignee", ev.Assignee.ID, "error", err)
			} else if handle != "" {
				mention = handle
			}
		}
	}

	ids := make([]string, len(ev.Tickets))
	for i, t := range ev.Tickets {
		ids[i] = t.DisplayID
	}
	msg := Message{
		Event:      EventTicketsCreated,
		Text:       Format(ev, mention),
		TicketIDs:  ids,
		OccurredAt: n.now().UTC(),
	}
	if err := n.dispatcher.Dispatch(ctx, msg); err != nil {
		n.log.Error("ticket notification failed", "tickets", ids, "error", err)
		return
	}
	n.log.Debug("ticket notification sent", "tickets", ids)
}

// Format renders the human-readable announcement.
func Format(ev BatchCreated, assigneeMention string) string {
	who := ev.Requester.Name
	if who == "" {
		who = ev.Requester.Email
	}
	if who == "" {
		who = "Someone"
	}
	noun := "tickets"
	if len(ev.Tickets) == 1 {
		noun = "ticket"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s created %d %s", who, len(ev.Tickets), noun)
	if ev.Project != "" {
		fmt.Fprintf(&b, " in %s", ev.Project)
	}
	b.WriteString(":\n")
	for _, t := range ev.Tickets {
		fmt.Fprintf(&b, "• %s %s (%s, %s)\n", t.DisplayID, t.Title, t.Type, t.Priority)
	}
	if assigneeMention != "" {
		fmt.Fprintf(&b, "Assignee: %s", assigneeMention)
	} else {
		b.WriteString("Assignee: Unassigned")
	}
	return b.String()
}
