package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/example/helpdesk/internal/apperr"
	"github.com/example/helpdesk/internal/models"
)

// SessionCookie carries the session token.
const SessionCookie = "helpdesk_session"

const principalKey = "principal"

// Provider is the identity provider used for sign-in.
type Provider interface {
	AuthURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*Identity, error)
}

// UserStore persists signed-in users.
type UserStore interface {
	Resolve(ctx context.Context, ref string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
}

// Options configures the sign-in handlers.
type Options struct {
	AllowedDomains []string
	// AfterLogin is where the browser lands after a successful callback.
	AfterLogin   string
	SecureCookie bool
}

// Handler serves /auth routes and guards the API.
type Handler struct {
	provider Provider
	states   StateStore
	sessions *Sessions
	users    UserStore
	opts     Options
	log      *slog.Logger
}

// NewHandler wires the sign-in flow.
func NewHandler(provider Provider, states StateStore, sessions *Sessions, users UserStore, opts Options, log *slog.Logger) *Handler {
	if opts.AfterLogin == "" {
		opts.AfterLogin = "/"
	}
	return &Handler{provider: provider, states: states, sessions: sessions, users: users, opts: opts, log: log}
}

// Register mounts the /auth routes on r.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/auth")
	g.GET("/login", h.login)
	g.GET("/callback", h.callback)
	g.POST("/logout", h.logout)
	g.GET("/me", h.RequireUser(), h.me)
}

// RequireUser rejects requests without a valid session cookie or bearer token
// and stores the principal on the context.
func (h *Handler) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(SessionCookie)
		if token == "" {
			if header := c.GetHeader("Authorization"); header != "" {
				scheme, value, ok := strings.Cut(header, " ")
				if !ok || !strings.EqualFold(scheme, "Bearer") {
					abort(c, apperr.Unauthorized("invalid authorization header format"))
					return
				}
				token = strings.TrimSpace(value)
			}
		}
		if token == "" {
			abort(c, apperr.Unauthorized("sign in required"))
			return
		}
		claims, err := h.sessions.Verify(token)
		if err != nil {
			h.log.Debug("rejected session token", "error", err)
			abort(c, apperr.Unauthorized("invalid or expired session"))
			return
		}
		if !EmailAllowed(claims.Email, h.opts.AllowedDomains) {
			abort(c, apperr.Forbidden("account is not allowed"))
			return
		}
		c.Set(principalKey, claims.User())
		c.Next()
	}
}

// UserFrom returns the principal stored by RequireUser.
func UserFrom(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

func (h *Handler) login(c *gin.Context) {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	if err := h.states.Save(c.Request.Context(), state, verifier); err != nil {
		h.log.Error("save oauth state", "error", err)
		abort(c, apperr.Upstream("sign-in is unavailable", err))
		return
	}
	c.Redirect(http.StatusFound, h.provider.AuthURL(state, verifier))
}

func (h *Handler) callback(c *gin.Context) {
	ctx := c.Request.Context()
	if e := c.Query("error"); e != "" {
		abort(c, apperr.Unauthorized("sign-in was cancelled: "+e))
		return
	}
	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		abort(c, apperr.Validation("state and code are required"))
		return
	}
	verifier, err := h.states.Take(ctx, state)
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) {
			h.log.Error("load oauth state", "error", err)
		}
		abort(c, apperr.Unauthorized("sign-in expired, please try again"))
		return
	}

	id, err := h.provider.Exchange(ctx, code, verifier)
	if err != nil {
		h.log.Warn("oauth exchange failed", "error", err)
		abort(c, apperr.Upstream("sign-in failed", err))
		return
	}
	if !id.EmailVerified || !EmailAllowed(id.Email, h.opts.AllowedDomains) {
		h.log.Info("sign-in refused", "email", id.Email)
		abort(c, apperr.Forbidden("account is not allowed"))
		return
	}

	user, err := h.upsert(ctx, id)
	if err != nil {
		h.log.Error("store signed-in user", "email", id.Email, "error", err)
		abort(c, &apperr.Error{Kind: apperr.KindIntegrity, Message: "could not store user", Err: err})
		return
	}
	token, _, err := h.sessions.Issue(user)
	if err != nil {
		abort(c, &apperr.Error{Kind: apperr.KindIntegrity, Message: "could not start session", Err: err})
		return
	}
	h.setCookie(c, token, int(h.sessions.TTL().Seconds()))
	h.log.Info("user signed in", "user", user.ID, "email", user.Email)
	c.Redirect(http.StatusFound, h.opts.AfterLogin)
}

// upsert keeps an existing row matched by email so seeded users keep their id.
func (h *Handler) upsert(ctx context.Context, id *Identity) (*models.User, error) {
	user := &models.User{ID: id.Subject, Email: id.Email, Name: id.Name, Image: id.Picture}
	existing, err := h.users.Resolve(ctx, id.Email)
	switch {
	case err == nil:
		user.ID = existing.ID
		user.ChatHandle = existing.ChatHandle
		user.CreatedAt = existing.CreatedAt
		if user.Name == "" {
			user.Name = existing.Name
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	if err := h.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (h *Handler) logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	user, _ := UserFrom(c)
	c.JSON(http.StatusOK, user)
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, value, maxAge, "/", "", h.opts.SecureCookie, true)
}

func abort(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(err.Status(), gin.H{"error": err.Message})
}
