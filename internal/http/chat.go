package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/example/helpdesk/internal/apperr"
	"github.com/example/helpdesk/internal/auth"
	"github.com/example/helpdesk/internal/models"
)

func principal(c *gin.Context) (*models.User, error) {
	user, ok := auth.UserFrom(c)
	if !ok {
		return nil, apperr.Unauthorized("sign in required")
	}
	return user, nil
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.NotFound("%s not found", c.Param(name))
	}
	return id, nil
}

func (s *Server) createChatSession(c *gin.Context) {
	user, err := principal(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	var payload struct {
		Title string `json:"title" binding:"max=200"`
	}
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &payload); err != nil {
			s.respondError(c, err)
			return
		}
	}
	session, err := s.deps.Chat.CreateSession(c.Request.Context(), user, payload.Title)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) listChatSessions(c *gin.Context) {
	user, err := principal(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	sessions, err := s.deps.Chat.Sessions(c.Request.Context(), user)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (s *Server) listChatMessages(c *gin.Context) {
	user, err := principal(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}
	msgs, err := s.deps.Chat.Messages(c.Request.Context(), user, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) postChatMessage(c *gin.Context) {
	user, err := principal(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var payload struct {
		Content string `json:"content" binding:"required"`
	}
	if err := bindJSON(c, &payload); err != nil {
		s.respondError(c, err)
		return
	}
	exchange, err := s.deps.Chat.Post(c.Request.Context(), user, id, payload.Content)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exchange)
}

func (s *Server) chatFeedback(c *gin.Context) {
	user, err := principal(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	id, err := pathUUID(c, "id")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var payload struct {
		Rating  string `json:"rating" binding:"required"`
		Comment string `json:"comment" binding:"max=2000"`
	}
	if err := bindJSON(c, &payload); err != nil {
		s.respondError(c, err)
		return
	}
	fb, err := s.deps.Chat.Feedback(c.Request.Context(), user, id, payload.Rating, payload.Comment)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fb)
}
