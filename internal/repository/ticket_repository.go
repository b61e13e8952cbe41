package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/helpdesk/internal/models"
)

// TicketFilter narrows a ticket listing. Zero values mean "no constraint".
type TicketFilter struct {
	Status      models.TicketStatus
	Type        models.TicketType
	Priority    models.TicketPriority
	ProjectID   *uuid.UUID
	AssigneeID  string
	RequesterID string
	Query       string
	Limit       int
}

// TicketRepository provides persistence access for Ticket entities.
type TicketRepository struct {
	db *gorm.DB
}

// NewTicketRepository constructs a repository using the provided gorm DB.
func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// RecentDisplayIDs returns display ids newest first. limit <= 0 scans the
// whole table.
func (r *TicketRepository) RecentDisplayIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	q := r.db.WithContext(ctx).Model(&models.Ticket{}).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Pluck("display_id", &ids).Error
	return ids, errors.WithStack(err)
}

// InsertBatch writes all tickets in a single INSERT statement and returns the
// number of rows the database reported.
func (r *TicketRepository) InsertBatch(ctx context.Context, tickets []models.Ticket) (int64, error) {
	if len(tickets) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Create(&tickets)
	return res.RowsAffected, errors.WithStack(res.Error)
}

// FindByDisplayID returns the ticket by its human-readable id.
func (r *TicketRepository) FindByDisplayID(ctx context.Context, displayID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).First(&ticket, "upper(display_id) = ?", strings.ToUpper(displayID)).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &ticket, nil
}

// List returns tickets matching filter ordered by creation time descending.
func (r *TicketRepository) List(ctx context.Context, filter TicketFilter) ([]models.Ticket, error) {
	q := r.db.WithContext(ctx).Model(&models.Ticket{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}
	if filter.ProjectID != nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.AssigneeID != "" {
		q = q.Where("assignee_id = ?", filter.AssigneeID)
	}
	if filter.RequesterID != "" {
		q = q.Where("requester_id = ?", filter.RequesterID)
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(lower(title) LIKE ? OR lower(display_id) LIKE ? OR lower(description) LIKE ?)", like, like, like)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var tickets []models.Ticket
	err := q.Order("created_at desc").Order("id desc").Find(&tickets).Error
	return tickets, errors.WithStack(err)
}
