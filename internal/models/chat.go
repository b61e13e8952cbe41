package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatSession is one conversation between a user and the support agent.
type ChatSession struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"size:128;index" json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChatMessage is a single turn. TicketIDs lists display ids filed by the agent
// while producing this message.
type ChatMessage struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID      `gorm:"type:uuid;index" json:"sessionId"`
	Role      ChatRole       `gorm:"size:16" json:"role"`
	Content   string         `json:"content"`
	TicketIDs datatypes.JSON `json:"ticketIds,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}

// ChatFeedback records a thumbs up/down on an assistant message.
type ChatFeedback struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;index" json:"messageId"`
	UserID    string    `gorm:"size:128" json:"userId"`
	Rating    string    `gorm:"size:8" json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName keeps the singular table name used by the portal.
func (ChatFeedback) TableName() string { return "chat_feedback" }

// BeforeCreate is a GORM hook that populates the primary key.
func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// BeforeCreate is a GORM hook that populates the primary key.
func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// BeforeCreate is a GORM hook that populates the primary key.
func (f *ChatFeedback) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// All lists every model managed by migrations.
func All() []any {
	return []any{
		&Project{},
		&User{},
		&Ticket{},
		&Asset{},
		&ChatSession{},
		&ChatMessage{},
		&ChatFeedback{},
	}
}
