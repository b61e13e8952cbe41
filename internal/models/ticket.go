package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ticket is a helpdesk ticket as stored in the tickets table. Enum columns hold
// the lower snake case storage form; the read model converts them for display.
type Ticket struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayID   string            `gorm:"size:32;not null;uniqueIndex" json:"displayId"`
	Title       string            `gorm:"not null" json:"title"`
	Description string            `json:"description"`
	ProjectID   *uuid.UUID        `gorm:"type:uuid;index" json:"projectId"`
	RequesterID *string           `gorm:"size:128;index" json:"requesterId"`
	AssigneeID  *string           `gorm:"size:128;index" json:"assigneeId"`
	Priority    TicketPriority    `gorm:"size:16" json:"priority"`
	Type        TicketType        `gorm:"size:16" json:"type"`
	Status      TicketStatus      `gorm:"size:16;index" json:"status"`
	CreatedAt   time.Time         `gorm:"index" json:"createdAt"`
	AssignedAt  *time.Time        `json:"assignedAt"`
	StartedAt   *time.Time        `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt"`
	UpdatedAt   *time.Time        `gorm:"autoUpdateTime:false" json:"updatedAt"`
	DueDate     *time.Time        `gorm:"type:date" json:"dueDate"`
	Links       datatypes.JSON    `json:"links"`
	Meta        datatypes.JSONMap `json:"meta"`
}

// BeforeCreate is a GORM hook that populates the primary key and defaults.
func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Type == "" {
		t.Type = TypeRequest
	}
	return nil
}
