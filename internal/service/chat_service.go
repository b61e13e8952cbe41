package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/helpdesk/internal/agent"
	"github.com/example/helpdesk/internal/apperr"
	"github.com/example/helpdesk/internal/models"
)

const (
	sessionTitleLimit = 60
	historyLimit      = 20
)

// ChatStore persists sessions, transcripts and feedback.
type ChatStore interface {
	CreateSession(ctx context.Context, session *models.ChatSession) error
	FindSession(ctx context.Context, id uuid.UUID, userID string) (*models.ChatSession, error)
	ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error)
	TouchSession(ctx context.Context, id uuid.UUID) error
	RenameSession(ctx context.Context, id uuid.UUID, title string) error
	AddMessage(ctx context.Context, msg *models.ChatMessage) error
	Messages(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error)
	FindMessage(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error)
	AddFeedback(ctx context.Context, fb *models.ChatFeedback) error
}

// Agent answers chat messages.
type Agent interface {
	Send(ctx context.Context, in agent.Request) (*agent.Reply, error)
}

// BatchCreator files tickets; satisfied by TicketService.
type BatchCreator interface {
	CreateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error)
}

// Exchange is the pair of messages produced by one user turn.
type Exchange struct {
	Question models.ChatMessage `json:"question"`
	Answer   models.ChatMessage `json:"answer"`
}

// ChatService relays user messages to the agent and files the tickets it drafts.
type ChatService struct {
	store   ChatStore
	agent   Agent
	tickets BatchCreator
	log     *slog.Logger
}

// NewChatService builds a chat service. agent may be nil when no agent is configured.
func NewChatService(store ChatStore, a Agent, tickets BatchCreator, log *slog.Logger) *ChatService {
	return &ChatService{store: store, agent: a, tickets: tickets, log: log}
}

// CreateSession opens a session for user.
func (s *ChatService) CreateSession(ctx context.Context, user *models.User, title string) (*models.ChatSession, error) {
	session := &models.ChatSession{UserID: user.ID, Title: truncate(strings.TrimSpace(title), sessionTitleLimit)}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, errors.Wrap(err, "create chat session")
	}
	return session, nil
}

// Sessions lists the user's sessions.
func (s *ChatService) Sessions(ctx context.Context, user *models.User) ([]models.ChatSession, error) {
	sessions, err := s.store.ListSessions(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list chat sessions")
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	return sessions, nil
}

// Messages returns the transcript of a session owned by user.
func (s *ChatService) Messages(ctx context.Context, user *models.User, sessionID uuid.UUID) ([]models.ChatMessage, error) {
	if _, err := s.session(ctx, user, sessionID); err != nil {
		return nil, err
	}
	msgs, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load chat messages")
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return msgs, nil
}

// Post stores the user's message, asks the agent and stores its answer. Ticket
// drafts in the answer are filed with the user as requester; filing failures
// are reported inside the answer rather than failing the turn.
func (s *ChatService) Post(ctx context.Context, user *models.User, sessionID uuid.UUID, content string) (*Exchange, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("message content is required")
	}
	if s.agent == nil {
		return nil, apperr.Upstream("chat agent is not configured", nil)
	}
	session, err := s.session(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load chat history")
	}

	question := models.ChatMessage{SessionID: sessionID, Role: models.ChatRoleUser, Content: content}
	if err := s.store.AddMessage(ctx, &question); err != nil {
		return nil, errors.Wrap(err, "store chat message")
	}
	if session.Title == "" {
		if err := s.store.RenameSession(ctx, sessionID, truncate(content, sessionTitleLimit)); err != nil {
			s.log.Warn("title chat session", "session", sessionID, "error", err)
		}
	}

	reply, err := s.agent.Send(ctx, agent.Request{
		SessionID: sessionID.String(),
		Message:   content,
		User:      agent.Sender{ID: user.ID, Email: user.Email, Name: user.Name},
		History:   turns(history),
	})
	if err != nil {
		return nil, apperr.Upstream("chat agent request failed", err)
	}

	text := strings.TrimSpace(reply.Reply)
	ids, fileErr := s.fileDrafts(ctx, user, reply.Tickets)
	if fileErr != nil {
		s.log.Warn("agent ticket drafts not filed", "session", sessionID, "error", fileErr)
		text = strings.TrimSpace(text + "\n\nI could not file the ticket(s): " + errorMessage(fileErr))
	} else if len(ids) > 0 && !mentionsAll(text, ids) {
		text = strings.TrimSpace(text + "\n\nFiled: " + strings.Join(ids, ", "))
	}

	answer := models.ChatMessage{SessionID: sessionID, Role: models.ChatRoleAssistant, Content: text}
	if len(ids) > 0 {
		raw, _ := json.Marshal(ids)
		answer.TicketIDs = datatypes.JSON(raw)
	}
	if err := s.store.AddMessage(ctx, &answer); err != nil {
		return nil, errors.Wrap(err, "store agent reply")
	}
	if err := s.store.TouchSession(ctx, sessionID); err != nil {
		s.log.Warn("touch chat session", "session", sessionID, "error", err)
	}
	return &Exchange{Question: question, Answer: answer}, nil
}

// fileDrafts groups drafts sharing project and assignee into one batch each,
// keeping the agent's order.
func (s *ChatService) fileDrafts(ctx context.Context, user *models.User, drafts []agent.TicketDraft) ([]string, error) {
	if len(drafts) == 0 || s.tickets == nil {
		return nil, nil
	}
	type key struct{ project, assignee string }
	var order []key
	groups := make(map[key][]Draft)
	for _, d := range drafts {
		k := key{strings.TrimSpace(d.ProjectID), strings.TrimSpace(d.Assignee)}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], Draft{
			Title:            d.Title,
			Description:      d.Description,
			Priority:         d.Priority,
			Type:             d.Type,
			URL:              d.URL,
			ExpectedDoneDate: d.ExpectedDoneDate,
		})
	}

	var ids []string
	for _, k := range order {
		res, err := s.tickets.CreateBatch(ctx, BatchRequest{
			Requester: user.ID,
			Tickets:   groups[k],
			ProjectID: k.project,
			Assignee:  k.assignee,
		})
		if err != nil {
			return ids, err
		}
		ids = append(ids, res.TicketIDs...)
	}
	return ids, nil
}

// Feedback records a rating on an assistant message in one of user's sessions.
func (s *ChatService) Feedback(ctx context.Context, user *models.User, messageID uuid.UUID, rating, comment string) (*models.ChatFeedback, error) {
	rating = strings.ToLower(strings.TrimSpace(rating))
	if rating != "up" && rating != "down" {
		return nil, apperr.Validation("rating must be up or down")
	}
	msg, err := s.store.FindMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("message %s not found", messageID)
		}
		return nil, errors.Wrap(err, "load chat message")
	}
	if _, err := s.session(ctx, user, msg.SessionID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("message %s not found", messageID)
		}
		return nil, err
	}
	if msg.Role != models.ChatRoleAssistant {
		return nil, apperr.Validation("only assistant messages can be rated")
	}
	fb := &models.ChatFeedback{MessageID: messageID, UserID: user.ID, Rating: rating, Comment: strings.TrimSpace(comment)}
	if err := s.store.AddFeedback(ctx, fb); err != nil {
		return nil, errors.Wrap(err, "store chat feedback")
	}
	return fb, nil
}

func (s *ChatService) session(ctx context.Context, user *models.User, id uuid.UUID) (*models.ChatSession, error) {
	session, err := s.store.FindSession(ctx, id, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("chat session %s not found", id)
		}
		return nil, errors.Wrap(err, "load chat session")
	}
	return session, nil
}

func turns(history []models.ChatMessage) []agent.Turn {
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	out := make([]agent.Turn, len(history))
	for i, m := range history {
		out[i] = agent.Turn{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func mentionsAll(text string, ids []string) bool {
	upper := strings.ToUpper(text)
	for _, id := range ids {
		if !strings.Contains(upper, strings.ToUpper(id)) {
			return false
		}
	}
	return true
}

func errorMessage(err error) string {
	if e, ok := apperr.As(err); ok {
		return e.Message
	}
	return fmt.Sprintf("%v", errors.Cause(err))
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit])) + "…"
}
