package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/helpdesk/internal/rewrite"
)

type rewriteResponse struct {
	Text      string `json:"text"`
	Rewritten bool   `json:"rewritten"`
}

// rewrite never fails because of the model: the original text comes back
// with rewritten=false instead.
func (s *Server) rewrite(c *gin.Context) {
	var payload struct {
		Text  string `json:"text" binding:"required,max=20000"`
		Style string `json:"style" binding:"omitempty,oneof=clear formal brief"`
	}
	if err := bindJSON(c, &payload); err != nil {
		s.respondError(c, err)
		return
	}
	if s.deps.Rewriter == nil {
		c.JSON(http.StatusOK, rewriteResponse{Text: payload.Text})
		return
	}
	out, err := s.deps.Rewriter.Rewrite(c.Request.Context(), payload.Text, rewrite.Style(payload.Style))
	if err != nil || out == "" {
		if err != nil {
			s.log.Warn("rewrite failed, returning original text", "error", err)
		}
		c.JSON(http.StatusOK, rewriteResponse{Text: payload.Text})
		return
	}
	c.JSON(http.StatusOK, rewriteResponse{Text: out, Rewritten: true})
}
