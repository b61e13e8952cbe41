package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/helpdesk/internal/repository"
)

func (s *Server) listProjects(c *gin.Context) {
	projects, err := s.deps.Projects.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(projects))
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.deps.Users.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(users))
}

func (s *Server) listAssets(c *gin.Context) {
	assets, err := s.deps.Assets.List(c.Request.Context(), repository.AssetFilter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(assets))
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
