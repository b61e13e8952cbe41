package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/example/helpdesk/internal/dbtest"
	"github.com/example/helpdesk/internal/logger"
	"github.com/example/helpdesk/internal/models"
	"github.com/example/helpdesk/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestEmailAllowed(t *testing.T) {
	domains := []string{"example.com", "@Corp.io"}
	assert.True(t, EmailAllowed("ada@example.com", domains))
	assert.True(t, EmailAllowed("bob@CORP.IO", domains))
	assert.False(t, EmailAllowed("eve@evil.com", domains))
	assert.False(t, EmailAllowed("eve@sub.example.com", domains))
	assert.False(t, EmailAllowed("not-an-email", domains))
	assert.False(t, EmailAllowed("trailing@", domains))
	assert.True(t, EmailAllowed("anyone@anywhere.org", nil))
}

func TestSessions(t *testing.T) {
	s := NewSessions("secret", time.Hour)
	user := &models.User{ID: "u-1", Email: "ada@example.com", Name: "Ada"}

	token, exp, err := s.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.User().ID)
	assert.Equal(t, "Ada", claims.User().Name)

	_, err = NewSessions("other", time.Hour).Verify(token)
	assert.Error(t, err, "wrong secret")

	expired := NewSessions("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue(user)
	require.NoError(t, err)
	_, err = s.Verify(old)
	assert.Error(t, err, "expired")
}

func TestMemoryStateStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStateStore(time.Minute)
	require.NoError(t, s.Save(ctx, "st", "verifier"))

	v, err := s.Take(ctx, "st")
	require.NoError(t, err)
	assert.Equal(t, "verifier", v)

	_, err = s.Take(ctx, "st")
	assert.ErrorIs(t, err, ErrStateNotFound, "one-shot")

	require.NoError(t, s.Save(ctx, "late", "v"))
	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.Take(ctx, "late")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

type fakeProvider struct {
	identity *Identity
	verifier string
}

func (p *fakeProvider) AuthURL(state, verifier string) string {
	return "https://accounts.example/auth?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code, verifier string) (*Identity, error) {
	p.verifier = verifier
	return p.identity, nil
}

func newAuthRouter(t *testing.T, id *Identity) (*gin.Engine, *Handler, *repository.UserRepository) {
	t.Helper()
	users := repository.NewUserRepository(dbtest.Open(t))
	h := NewHandler(&fakeProvider{identity: id}, NewMemoryStateStore(time.Minute), NewSessions("secret", time.Hour), users,
		Options{AllowedDomains: []string{"example.com"}, AfterLogin: "/portal"}, logger.Discard())
	r := gin.New()
	h.Register(r)
	return r, h, users
}

func login(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestLoginCallbackMe(t *testing.T) {
	r, _, users := newAuthRouter(t, &Identity{Subject: "g-123", Email: "ada@example.com", EmailVerified: true, Name: "Ada", Picture: "https://img/ada"})
	state := login(t, r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code=abc", nil))
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/portal", w.Header().Get("Location"))

	var session *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == SessionCookie {
			session = ck
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	stored, err := users.FindByID(context.Background(), "g-123")
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.Name)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "g-123", me.ID)
	assert.Equal(t, "ada@example.com", me.Email)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code=abc", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "state is single use")
}

func TestCallbackKeepsSeededUserID(t *testing.T) {
	r, _, users := newAuthRouter(t, &Identity{Subject: "g-999", Email: "bob@example.com", EmailVerified: true, Name: "Robert"})
	require.NoError(t, users.Upsert(context.Background(), &models.User{ID: "u-bob", Email: "bob@example.com", Name: "Bob", ChatHandle: "<@U1>"}))

	state := login(t, r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code=abc", nil))
	require.Equal(t, http.StatusFound, w.Code)

	stored, err := users.FindByID(context.Background(), "u-bob")
	require.NoError(t, err)
	assert.Equal(t, "Robert", stored.Name)
	assert.Equal(t, "<@U1>", stored.ChatHandle)
}

func TestCallbackRejectsForeignDomain(t *testing.T) {
	r, _, _ := newAuthRouter(t, &Identity{Subject: "g-1", Email: "eve@evil.com", EmailVerified: true})
	state := login(t, r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code=abc", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestRequireUser(t *testing.T) {
	_, h, _ := newAuthRouter(t, nil)
	r := gin.New()
	r.GET("/private", h.RequireUser(), func(c *gin.Context) {
		u, ok := UserFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, u.ID)
	})

	token, _, err := h.sessions.Issue(&models.User{ID: "u-1", Email: "ada@example.com"})
	require.NoError(t, err)
	foreign, _, err := h.sessions.Issue(&models.User{ID: "u-2", Email: "eve@evil.com"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"no credentials", "", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"foreign domain", "Bearer " + foreign, http.StatusForbidden},
		{"valid bearer", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestGoogleProviderExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "the-code", r.Form.Get("code"))
			assert.Equal(t, "the-verifier", r.Form.Get("code_verifier"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id":"g-1","email":"Ada@Example.com","verified_email":true,"name":"Ada"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewGoogleProvider(GoogleConfig{ClientID: "cid", ClientSecret: "cs", RedirectURL: "http://localhost/auth/callback"})
	p.config.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	p.userInfoURL = srv.URL + "/userinfo"
	assert.True(t, p.Configured())

	authURL, err := url.Parse(p.AuthURL("st", "the-verifier"))
	require.NoError(t, err)
	assert.Equal(t, "S256", authURL.Query().Get("code_challenge_method"))
	assert.Equal(t, "st", authURL.Query().Get("state"))

	id, err := p.Exchange(context.Background(), "the-code", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "g-1", id.Subject)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.True(t, id.EmailVerified)
}
