package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/helpdesk/internal/models"
)

// ChatRepository persists chat sessions, messages and feedback.
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a repository using the provided gorm DB.
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateSession persists a new session.
func (r *ChatRepository) CreateSession(ctx context.Context, session *models.ChatSession) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(session).Error)
}

// FindSession returns a session owned by userID.
func (r *ChatRepository) FindSession(ctx context.Context, id uuid.UUID, userID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.WithContext(ctx).First(&session, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &session, nil
}

// ListSessions returns the user's sessions, most recently active first.
func (r *ChatRepository) ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at desc").Find(&sessions).Error
	return sessions, errors.WithStack(err)
}

// TouchSession bumps the session's activity time.
func (r *ChatRepository) TouchSession(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&models.ChatSession{}).Where("id = ?", id).Update("updated_at", time.Now()).Error
	return errors.WithStack(err)
}

// RenameSession sets the session title.
func (r *ChatRepository) RenameSession(ctx context.Context, id uuid.UUID, title string) error {
	err := r.db.WithContext(ctx).Model(&models.ChatSession{}).Where("id = ?", id).Update("title", title).Error
	return errors.WithStack(err)
}

// AddMessage persists a chat message.
func (r *ChatRepository) AddMessage(ctx context.Context, msg *models.ChatMessage) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(msg).Error)
}

// Messages returns the session transcript in chronological order.
func (r *ChatRepository) Messages(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at asc").Find(&msgs).Error
	return msgs, errors.WithStack(err)
}

// FindMessage returns a message by id.
func (r *ChatRepository) FindMessage(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return &msg, nil
}

// AddFeedback persists feedback on a message.
func (r *ChatRepository) AddFeedback(ctx context.Context, fb *models.ChatFeedback) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(fb).Error)
}
