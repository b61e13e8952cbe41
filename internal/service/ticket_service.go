package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/helpdesk/internal/apperr"
	"github.com/example/helpdesk/internal/models"
	"github.com/example/helpdesk/internal/notify"
	"github.com/example/helpdesk/internal/readmodel"
	"github.com/example/helpdesk/internal/repository"
	"github.com/example/helpdesk/internal/ticketid"
)

// TicketStore is the storage used by the allocator and the read model.
type TicketStore interface {
	RecentDisplayIDs(ctx context.Context, limit int) ([]string, error)
	InsertBatch(ctx context.Context, tickets []models.Ticket) (int64, error)
	List(ctx context.Context, filter repository.TicketFilter) ([]models.Ticket, error)
	FindByDisplayID(ctx context.Context, displayID string) (*models.Ticket, error)
}

// UserStore resolves identity rows.
type UserStore interface {
	Resolve(ctx context.Context, ref string) (*models.User, error)
	ByID(ctx context.Context, ids []string) (map[string]models.User, error)
}

// ProjectStore resolves projects.
type ProjectStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	NamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// BatchNotifier is told about every successfully inserted batch.
type BatchNotifier interface {
	TicketsCreated(ctx context.Context, ev notify.BatchCreated)
}

// HTMLRenderer renders ticket descriptions.
type HTMLRenderer interface {
	ToHTML(text string) (string, error)
}

// Draft is one ticket of a creation batch, as submitted.
type Draft struct {
	Title            string
	Description      string
	Priority         string
	Type             string
	URL              string
	ExpectedDoneDate string
}

// BatchRequest creates 1..N tickets sharing requester, project and assignee.
type BatchRequest struct {
	Requester string
	Tickets   []Draft
	ProjectID string
	Assignee  string
}

// BatchResult lists assigned display ids in input order.
type BatchResult struct {
	Message   string   `json:"message"`
	TicketIDs []string `json:"ticketIds"`
}

// TicketDetail is a read-model row with its rendered description.
type TicketDetail struct {
	readmodel.Row
	DescriptionHTML string `json:"descriptionHtml"`
}

// TicketOptions tunes allocation.
type TicketOptions struct {
	// ScanWindow caps how many recent ids are scanned; <= 0 scans all.
	ScanWindow int
	// ConflictRetries bounds re-allocation after a display id collision.
	ConflictRetries int
}

// TicketService allocates display ids, inserts batches and assembles the read model.
type TicketService struct {
	tickets  TicketStore
	users    UserStore
	projects ProjectStore
	notifier BatchNotifier
	renderer HTMLRenderer
	seq      *ticketid.Sequence
	opts     TicketOptions
	log      *slog.Logger
	now      func() time.Time
}

// NewTicketService builds a service with dependencies. notifier and renderer may be nil.
func NewTicketService(tickets TicketStore, users UserStore, projects ProjectStore, notifier BatchNotifier, renderer HTMLRenderer, seq *ticketid.Sequence, opts TicketOptions, log *slog.Logger) *TicketService {
	return &TicketService{
		tickets:  tickets,
		users:    users,
		projects: projects,
		notifier: notifier,
		renderer: renderer,
		seq:      seq,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Sequence exposes the identifier format in use.
func (s *TicketService) Sequence() *ticketid.Sequence {
	return s.seq
}

type preparedDraft struct {
	draft Draft
	due   *time.Time
}

// CreateBatch validates the drafts, allocates PREFIX-k..PREFIX-(k+N-1) and
// inserts all rows in one statement. Either every draft gets an id and a row
// or none does.
func (s *TicketService) CreateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	drafts, err := validateDrafts(req.Tickets)
	if err != nil {
		return nil, err
	}

	requester, err := s.resolveUser(ctx, req.Requester, "requester")
	if err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, apperr.Validation("requester is required")
	}
	assignee, err := s.resolveUser(ctx, req.Assignee, "assignee")
	if err != nil {
		return nil, err
	}
	project, err := s.resolveProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	var rows []models.Ticket
	for attempt := 0; ; attempt++ {
		ids, err := s.tickets.RecentDisplayIDs(ctx, s.opts.ScanWindow)
		if err != nil {
			return nil, errors.Wrap(err, "scan existing ticket ids")
		}
		rows = s.buildRows(drafts, s.seq.Next(ids), requester, assignee, project)

		n, err := s.tickets.InsertBatch(ctx, rows)
		if err != nil {
			if apperr.IsDuplicateKey(err) && attempt < s.opts.ConflictRetries {
				s.log.Warn("ticket id collision, reallocating", "first", rows[0].DisplayID, "attempt", attempt+1)
				continue
			}
			return nil, errors.Wrap(err, "insert tickets")
		}
		if n != int64(len(rows)) {
			return nil, apperr.Integrity("storage accepted %d of %d tickets", n, len(rows))
		}
		break
	}

	result := &BatchResult{TicketIDs: make([]string, len(rows))}
	created := make([]notify.CreatedTicket, len(rows))
	for i, row := range rows {
		result.TicketIDs[i] = row.DisplayID
		created[i] = notify.CreatedTicket{
			DisplayID: row.DisplayID,
			Title:     row.Title,
			Type:      row.Type.Label(),
			Priority:  row.Priority.Label(),
		}
	}
	if len(rows) == 1 {
		result.Message = fmt.Sprintf("Ticket %s created", rows[0].DisplayID)
	} else {
		result.Message = fmt.Sprintf("%d tickets created", len(rows))
	}
	s.log.Info("tickets created", "ids", result.TicketIDs, "requester", requester.ID)

	if s.notifier != nil {
		ev := notify.BatchCreated{Requester: *requester, Assignee: assignee, Tickets: created}
		if project != nil {
			ev.Project = project.Name
		}
		s.notifier.TicketsCreated(ctx, ev)
	}
	return result, nil
}

func validateDrafts(in []Draft) ([]preparedDraft, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("at least one ticket is required")
	}
	out := make([]preparedDraft, len(in))
	for i, d := range in {
		d.Title = strings.TrimSpace(d.Title)
		if d.Title == "" {
			return nil, apperr.Validation("tickets[%d]: title is required", i)
		}
		due, err := parseDueDate(d.ExpectedDoneDate)
		if err != nil {
			return nil, apperr.Validation("tickets[%d]: expectedDoneDate %q is not a date", i, d.ExpectedDoneDate)
		}
		out[i] = preparedDraft{draft: d, due: due}
	}
	return out, nil
}

func parseDueDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", v)
}

func (s *TicketService) buildRows(drafts []preparedDraft, start int, requester, assignee *models.User, project *models.Project) []models.Ticket {
	now := s.now().UTC()
	rows := make([]models.Ticket, len(drafts))
	for i, p := range drafts {
		row := models.Ticket{
			ID:          uuid.New(),
			DisplayID:   s.seq.Format(start + i),
			Title:       p.draft.Title,
			Description: strings.TrimSpace(p.draft.Description),
			RequesterID: &requester.ID,
			Priority:    models.ParsePriority(p.draft.Priority),
			Type:        models.ParseType(p.draft.Type),
			Status:      models.StatusOpen,
			// Later drafts sort as newer so the feed shows the batch highest id first.
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			DueDate:   p.due,
			Links:     readmodel.EncodeLinks(p.draft.URL),
		}
		if assignee != nil {
			row.AssigneeID = &assignee.ID
			assignedAt := now
			row.AssignedAt = &assignedAt
		}
		if project != nil {
			row.ProjectID = &project.ID
		}
		rows[i] = row
	}
	return rows
}

func (s *TicketService) resolveUser(ctx context.Context, ref, role string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	user, err := s.users.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation("unknown %s %q", role, ref)
		}
		return nil, errors.Wrapf(err, "load %s", role)
	}
	return user, nil
}

func (s *TicketService) resolveProject(ctx context.Context, ref string) (*models.Project, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, apperr.Validation("projectId %q is not a valid id", ref)
	}
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation("unknown project %q", ref)
		}
		return nil, errors.Wrap(err, "load project")
	}
	return project, nil
}

// List assembles the read model for tickets matching filter, in storage order.
func (s *TicketService) List(ctx context.Context, filter repository.TicketFilter) ([]readmodel.Row, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list tickets")
	}
	projects, users, err := s.lookups(ctx, tickets)
	if err != nil {
		return nil, err
	}
	return readmodel.Assemble(tickets, projects, users), nil
}

// Get returns one ticket by display id with its description rendered.
func (s *TicketService) Get(ctx context.Context, displayID string) (*TicketDetail, error) {
	if _, ok := s.seq.Parse(displayID); !ok {
		return nil, apperr.NotFound("ticket %s not found", displayID)
	}
	ticket, err := s.tickets.FindByDisplayID(ctx, displayID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("ticket %s not found", displayID)
		}
		return nil, errors.Wrap(err, "load ticket")
	}
	list := []models.Ticket{*ticket}
	projects, users, err := s.lookups(ctx, list)
	if err != nil {
		return nil, err
	}
	detail := &TicketDetail{Row: readmodel.AssembleOne(ticket, projects, users)}
	if s.renderer != nil && ticket.Description != "" {
		html, err := s.renderer.ToHTML(ticket.Description)
		if err != nil {
			s.log.Warn("render ticket description", "ticket", ticket.DisplayID, "error", err)
		} else {
			detail.DescriptionHTML = html
		}
	}
	return detail, nil
}

func (s *TicketService) lookups(ctx context.Context, tickets []models.Ticket) (readmodel.ProjectNames, readmodel.Users, error) {
	projectIDs := make([]uuid.UUID, 0)
	userIDs := make([]string, 0)
	seenProject := make(map[uuid.UUID]bool)
	seenUser := make(map[string]bool)
	addUser := func(id *string) {
		if id != nil && *id != "" && !seenUser[*id] {
			seenUser[*id] = true
			userIDs = append(userIDs, *id)
		}
	}
	for _, t := range tickets {
		if t.ProjectID != nil && !seenProject[*t.ProjectID] {
			seenProject[*t.ProjectID] = true
			projectIDs = append(projectIDs, *t.ProjectID)
		}
		addUser(t.RequesterID)
		addUser(t.AssigneeID)
	}

	names, err := s.projects.NamesByID(ctx, projectIDs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load projects")
	}
	rows, err := s.users.ByID(ctx, userIDs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load users")
	}
	users := make(readmodel.Users, len(rows))
	for id, u := range rows {
		users[id] = readmodel.Identity{Name: u.Name, Image: u.Image}
	}
	return readmodel.ProjectNames(names), users, nil
}
