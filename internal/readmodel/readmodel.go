// Package readmodel turns normalized ticket rows into the denormalized shape
// served to clients: joined project and user names, display-form enums and
// flattened attachment links.
package readmodel

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/helpdesk/internal/models"
)

// Identity is the part of a user row shown next to a ticket.
type Identity struct {
	Name  string
	Image string
}

// ProjectNames resolves project ids to names. A miss yields "".
type ProjectNames map[uuid.UUID]string

// Users resolves user ids to identities. A miss yields the zero Identity.
type Users map[string]Identity

// Row is the externally visible form of a ticket. Name fields are never null:
// a missing foreign key and a dangling one both render as "".
type Row struct {
	ID             uuid.UUID      `json:"id"`
	DisplayID      string         `json:"displayId"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	ProjectID      string         `json:"projectId"`
	Project        string         `json:"project"`
	RequesterID    string         `json:"requesterId"`
	Requester      string         `json:"requester"`
	RequesterImage string         `json:"requesterImage"`
	AssigneeID     string         `json:"assigneeId"`
	Assignee       string         `json:"assignee"`
	AssigneeImage  string         `json:"assigneeImage"`
	Priority       string         `json:"priority"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	AssignedAt     *time.Time     `json:"assignedAt"`
	StartedAt      *time.Time     `json:"startedAt"`
	CompletedAt    *time.Time     `json:"completedAt"`
	UpdatedAt      *time.Time     `json:"updatedAt"`
	DueDate        *time.Time     `json:"dueDate"`
	Links          string         `json:"links"`
	LinkList       []string       `json:"linkList"`
	Meta           map[string]any `json:"meta"`
}

// Assemble converts tickets in the order given. It never fails: unknown enum
// values take their defaults and unreadable links become empty.
func Assemble(tickets []models.Ticket, projects ProjectNames, users Users) []Row {
	rows := make([]Row, 0, len(tickets))
	for i := range tickets {
		rows = append(rows, AssembleOne(&tickets[i], projects, users))
	}
	return rows
}

// AssembleOne converts a single ticket.
func AssembleOne(t *models.Ticket, projects ProjectNames, users Users) Row {
	links := ParseLinks(t.Links)
	row := Row{
		ID:          t.ID,
		DisplayID:   t.DisplayID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority.Label(),
		Type:        t.Type.Label(),
		Status:      t.Status.Label(),
		CreatedAt:   t.CreatedAt,
		AssignedAt:  t.AssignedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		UpdatedAt:   t.UpdatedAt,
		DueDate:     t.DueDate,
		Links:       strings.Join(links, "\n"),
		LinkList:    links,
		Meta:        map[string]any(t.Meta),
	}
	if row.Meta == nil {
		row.Meta = map[string]any{}
	}
	if t.ProjectID != nil {
		row.ProjectID = t.ProjectID.String()
		row.Project = projects[*t.ProjectID]
	}
	if t.RequesterID != nil {
		who := users[*t.RequesterID]
		row.RequesterID = *t.RequesterID
		row.Requester, row.RequesterImage = who.Name, who.Image
	}
	if t.AssigneeID != nil {
		who := users[*t.AssigneeID]
		row.AssigneeID = *t.AssigneeID
		row.Assignee, row.AssigneeImage = who.Name, who.Image
	}
	return row
}

// FlattenLinks renders a stored links value as newline separated URLs.
func FlattenLinks(raw []byte) string {
	return strings.Join(ParseLinks(raw), "\n")
}

// ParseLinks accepts a JSON array of strings or a single JSON string (the
// legacy shape). Entries are trimmed and empty ones dropped. Anything else,
// including malformed JSON, yields an empty list.
func ParseLinks(raw []byte) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, v := range list {
			if s, ok := v.(string); ok {
				out = appendLink(out, s)
			}
		}
		return out
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return appendLink(out, single)
	}
	return out
}

func appendLink(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

// EncodeLinks is the inverse used when writing new tickets.
func EncodeLinks(urls ...string) []byte {
	clean := []string{}
	for _, u := range urls {
		clean = appendLink(clean, u)
	}
	b, _ := json.Marshal(clean)
	return b
}
