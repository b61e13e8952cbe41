package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/example/helpdesk/internal/apperr"
	"github.com/example/helpdesk/internal/etag"
	"github.com/example/helpdesk/internal/models"
	"github.com/example/helpdesk/internal/repository"
	"github.com/example/helpdesk/internal/service"
)

type ticketDraftPayload struct {
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	Priority         string `json:"priority"`
	Type             string `json:"type"`
	URL              string `json:"url" binding:"omitempty,url"`
	ExpectedDoneDate string `json:"expectedDoneDate"`
}

type createTicketsPayload struct {
	Requester string               `json:"requester" binding:"required"`
	Tickets   []ticketDraftPayload `json:"tickets" binding:"required,min=1,dive"`
	ProjectID string               `json:"projectId"`
	Assignee  string               `json:"assignee"`
}

func (s *Server) createTickets(c *gin.Context) {
	var payload createTicketsPayload
	if err := bindJSON(c, &payload); err != nil {
		s.respondError(c, err)
		return
	}

	drafts := make([]service.Draft, len(payload.Tickets))
	for i, t := range payload.Tickets {
		drafts[i] = service.Draft{
			Title:            t.Title,
			Description:      t.Description,
			Priority:         t.Priority,
			Type:             t.Type,
			URL:              t.URL,
			ExpectedDoneDate: t.ExpectedDoneDate,
		}
	}
	res, err := s.deps.Tickets.CreateBatch(c.Request.Context(), service.BatchRequest{
		Requester: payload.Requester,
		Tickets:   drafts,
		ProjectID: payload.ProjectID,
		Assignee:  payload.Assignee,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// listTickets serves the feed with a content validator. A matching
// If-None-Match short-circuits to 304 without a body.
func (s *Server) listTickets(c *gin.Context) {
	filter, err := ticketFilter(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	rows, err := s.deps.Tickets.List(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	body, tag, err := etag.Encode(rows)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("ETag", tag)
	c.Header("Cache-Control", s.cacheControl())
	if etag.NotModified(c.GetHeader("If-None-Match"), tag) {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (s *Server) cacheControl() string {
	return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d",
		int(s.deps.Cache.MaxAge.Seconds()), int(s.deps.Cache.StaleWindow.Seconds()))
}

func ticketFilter(c *gin.Context) (repository.TicketFilter, error) {
	var f repository.TicketFilter
	if v := c.Query("status"); v != "" {
		status, ok := models.LookupStatus(v)
		if !ok {
			return f, apperr.Validation("unknown status %q", v)
		}
		f.Status = status
	}
	if v := c.Query("type"); v != "" {
		typ, ok := models.LookupType(v)
		if !ok {
			return f, apperr.Validation("unknown type %q", v)
		}
		f.Type = typ
	}
	if v := c.Query("priority"); v != "" {
		priority, ok := models.LookupPriority(v)
		if !ok {
			return f, apperr.Validation("unknown priority %q", v)
		}
		f.Priority = priority
	}
	if v := c.Query("projectId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, apperr.Validation("projectId %q is not a valid id", v)
		}
		f.ProjectID = &id
	}
	f.AssigneeID = strings.TrimSpace(c.Query("assigneeId"))
	f.RequesterID = strings.TrimSpace(c.Query("requesterId"))
	f.Query = c.Query("q")
	return f, nil
}

func (s *Server) getTicket(c *gin.Context) {
	detail, err := s.deps.Tickets.Get(c.Request.Context(), c.Param("displayId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
