package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"

	"github.com/example/helpdesk/internal/auth"
	"github.com/example/helpdesk/internal/repository"
	"github.com/example/helpdesk/internal/rewrite"
	"github.com/example/helpdesk/internal/service"
)

// Rewriter polishes free text.
type Rewriter interface {
	Rewrite(ctx context.Context, text string, style rewrite.Style) (string, error)
}

// CachePolicy drives the Cache-Control header of the ticket feed.
type CachePolicy struct {
	MaxAge      time.Duration
	StaleWindow time.Duration
}

// Deps are the collaborators needed to handle API requests. Rewriter and
// Health may be nil.
type Deps struct {
	Tickets  *service.TicketService
	Chat     *service.ChatService
	Projects *repository.ProjectRepository
	Users    *repository.UserRepository
	Assets   *repository.AssetRepository
	Rewriter Rewriter
	Auth     *auth.Handler
	Health   func(ctx context.Context) error
	Cache    CachePolicy
	Log      *slog.Logger
}

// Server wraps the gin engine and collaborators needed to handle API requests.
type Server struct {
	Engine *gin.Engine
	deps   Deps
	log    *slog.Logger
}

// NewServer constructs a new API server and registers routes.
func NewServer(deps Deps) *Server {
	router := gin.New()
	router.Use(recovery(deps.Log), requestLogger(deps.Log))
	srv := &Server{Engine: router, deps: deps, log: deps.Log}
	srv.registerRoutes()
	return srv
}

// Handler returns the engine behind transparent gzip compression.
func (s *Server) Handler() http.Handler {
	return gzhttp.GzipHandler(s.Engine)
}

func (s *Server) registerRoutes() {
	s.Engine.GET("/healthz", s.healthz)
	s.deps.Auth.Register(s.Engine)

	api := s.Engine.Group("/api", s.deps.Auth.RequireUser())
	api.GET("/tickets", s.listTickets)
	api.POST("/tickets", s.createTickets)
	api.GET("/tickets/:displayId", s.getTicket)

	api.GET("/projects", s.listProjects)
	api.GET("/users", s.listUsers)
	api.GET("/assets", s.listAssets)

	api.POST("/chat/sessions", s.createChatSession)
	api.GET("/chat/sessions", s.listChatSessions)
	api.GET("/chat/sessions/:id/messages", s.listChatMessages)
	api.POST("/chat/sessions/:id/messages", s.postChatMessage)
	api.POST("/chat/messages/:id/feedback", s.chatFeedback)

	api.POST("/rewrite", s.rewrite)
}

func (s *Server) healthz(c *gin.Context) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Health(ctx); err != nil {
			s.log.Warn("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
