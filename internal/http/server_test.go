package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/helpdesk/internal/agent"
	"github.com/example/helpdesk/internal/auth"
	"github.com/example/helpdesk/internal/dbtest"
	"github.com/example/helpdesk/internal/logger"
	"github.com/example/helpdesk/internal/markdown"
	"github.com/example/helpdesk/internal/models"
	"github.com/example/helpdesk/internal/notify"
	"github.com/example/helpdesk/internal/readmodel"
	"github.com/example/helpdesk/internal/repository"
	"github.com/example/helpdesk/internal/rewrite"
	"github.com/example/helpdesk/internal/service"
	"github.com/example/helpdesk/internal/ticketid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingNotifier struct {
	mu sync.Mutex
	n  int
}

func (c *countingNotifier) TicketsCreated(context.Context, notify.BatchCreated) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

type fakeRewriter struct {
	out string
	err error
}

func (f fakeRewriter) Rewrite(context.Context, string, rewrite.Style) (string, error) {
	return f.out, f.err
}

type echoAgent struct{}

func (echoAgent) Send(_ context.Context, in agent.Request) (*agent.Reply, error) {
	reply := &agent.Reply{Reply: "You said: " + in.Message}
	if strings.Contains(in.Message, "file") {
		reply.Tickets = []agent.TicketDraft{{Title: "Filed from chat"}}
	}
	return reply, nil
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	notifier *countingNotifier
	token    string
	user     models.User
	project  models.Project
}

func newEnv(t *testing.T, rw Rewriter) *testEnv {
	t.Helper()
	db := dbtest.Open(t)
	env := &testEnv{
		notifier: &countingNotifier{},
		user:     models.User{ID: "u-ada", Email: "ada@example.com", Name: "Ada"},
		project:  models.Project{Name: "Facilities"},
	}
	require.NoError(t, db.Create(&env.user).Error)
	require.NoError(t, db.Create(&env.project).Error)

	log := logger.Discard()
	seq := ticketid.New("TKT")
	users := repository.NewUserRepository(db)
	projects := repository.NewProjectRepository(db)
	tickets := service.NewTicketService(repository.NewTicketRepository(db), users, projects, env.notifier,
		markdown.NewRenderer(seq, "https://portal.example"), seq, service.TicketOptions{ConflictRetries: 3}, log)
	chat := service.NewChatService(repository.NewChatRepository(db), echoAgent{}, tickets, log)

	sessions := auth.NewSessions("test-secret", time.Hour)
	authHandler := auth.NewHandler(nil, auth.NewMemoryStateStore(time.Minute), sessions, users, auth.Options{}, log)

	env.server = NewServer(Deps{
		Tickets:  tickets,
		Chat:     chat,
		Projects: projects,
		Users:    users,
		Assets:   repository.NewAssetRepository(db),
		Rewriter: rw,
		Auth:     authHandler,
		Health:   func(ctx context.Context) error { return nil },
		Cache:    CachePolicy{MaxAge: 10 * time.Second, StaleWindow: time.Minute},
		Log:      log,
	})
	env.handler = env.server.Handler()

	token, _, err := sessions.Issue(&env.user)
	require.NoError(t, err)
	env.token = token
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestAPIRequiresPrincipal(t *testing.T) {
	env := newEnv(t, nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tickets", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)

	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndListTickets(t *testing.T) {
	env := newEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/tickets", map[string]any{
		"requester": "ada@example.com",
		"projectId": env.project.ID.String(),
		"tickets": []map[string]any{
			{"title": "Projector broken", "priority": "urgent", "type": "Bug", "url": "https://example.com/photo.jpg"},
			{"title": "Order chairs", "expectedDoneDate": "2026-12-01"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[service.BatchResult](t, w)
	assert.Equal(t, []string{"TKT-1", "TKT-2"}, created.TicketIDs)
	assert.NotEmpty(t, created.Message)
	assert.Equal(t, 1, env.notifier.n)

	w = env.do(t, http.MethodGet, "/api/tickets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tag := w.Header().Get("ETag")
	assert.Regexp(t, `^"[0-9a-f]{32}"$`, tag)
	assert.Equal(t, "public, s-maxage=10, stale-while-revalidate=60", w.Header().Get("Cache-Control"))

	rows := decode[[]readmodel.Row](t, w)
	require.Len(t, rows, 2)
	assert.Equal(t, "TKT-2", rows[0].DisplayID)
	assert.Equal(t, "Medium", rows[0].Priority)
	assert.Equal(t, "Request", rows[0].Type)
	assert.Equal(t, "Urgent", rows[1].Priority)
	assert.Equal(t, "Bug", rows[1].Type)
	assert.Equal(t, "Open", rows[1].Status)
	assert.Equal(t, "Facilities", rows[1].Project)
	assert.Equal(t, "Ada", rows[1].Requester)
	assert.Equal(t, "https://example.com/photo.jpg", rows[1].Links)

	t.Run("matching validator is 304 without body", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/tickets", nil, "If-None-Match", tag)
		assert.Equal(t, http.StatusNotModified, w.Code)
		assert.Empty(t, w.Body.Bytes())
		assert.Equal(t, tag, w.Header().Get("ETag"))
	})

	t.Run("stale validator gets the payload", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/tickets", nil, "If-None-Match", `"deadbeef"`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("validator changes with content", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/tickets", map[string]any{
			"requester": "u-ada",
			"tickets":   []map[string]any{{"title": "Third"}},
		})
		require.Equal(t, http.StatusCreated, w.Code)
		w = env.do(t, http.MethodGet, "/api/tickets", nil, "If-None-Match", tag)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEqual(t, tag, w.Header().Get("ETag"))
	})

	t.Run("filters", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/tickets?priority=URGENT", nil)
		require.Equal(t, http.StatusOK, w.Code)
		rows := decode[[]readmodel.Row](t, w)
		require.Len(t, rows, 1)
		assert.Equal(t, "TKT-1", rows[0].DisplayID)

		w = env.do(t, http.MethodGet, "/api/tickets?q=chairs", nil)
		require.Len(t, decode[[]readmodel.Row](t, w), 1)

		w = env.do(t, http.MethodGet, "/api/tickets?status=archived", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unknown status")
	})
}

func TestCreateTicketsValidation(t *testing.T) {
	env := newEnv(t, nil)
	cases := []struct {
		name string
		body any
		want string
	}{
		{"empty batch", map[string]any{"requester": "u-ada", "tickets": []any{}}, "tickets must contain at least 1 item(s)"},
		{"missing title", map[string]any{"requester": "u-ada", "tickets": []map[string]any{{"title": "ok"}, {"description": "x"}}}, "tickets[1].title is required"},
		{"missing requester", map[string]any{"tickets": []map[string]any{{"title": "ok"}}}, "requester is required"},
		{"unknown requester", map[string]any{"requester": "nobody", "tickets": []map[string]any{{"title": "ok"}}}, "unknown requester"},
		{"bad url", map[string]any{"requester": "u-ada", "tickets": []map[string]any{{"title": "ok", "url": "not a url"}}}, "tickets[0].url must be a valid URL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/tickets", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[map[string]string](t, w)["error"], tc.want)
		})
	}
	assert.Zero(t, env.notifier.n)

	w := env.do(t, http.MethodGet, "/api/tickets", nil)
	assert.Equal(t, "[]", w.Body.String())
}

func TestGetTicket(t *testing.T) {
	env := newEnv(t, nil)
	w := env.do(t, http.MethodPost, "/api/tickets", map[string]any{
		"requester": "u-ada",
		"tickets": []map[string]any{
			{"title": "First"},
			{"title": "Second", "description": "Follow-up to TKT-1, see **logs**"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/tickets/tkt-2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[map[string]any](t, w)
	assert.Equal(t, "TKT-2", detail["displayId"])
	html, _ := detail["descriptionHtml"].(string)
	assert.Contains(t, html, `<a href="https://portal.example/tickets/TKT-1"`)
	assert.Contains(t, html, "<strong>logs</strong>")

	w = env.do(t, http.MethodGet, "/api/tickets/TKT-404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResponsesAreCompressed(t *testing.T) {
	env := newEnv(t, nil)
	tickets := make([]map[string]any, 12)
	for i := range tickets {
		tickets[i] = map[string]any{"title": "Ticket", "description": strings.Repeat("padding ", 40)}
	}
	w := env.do(t, http.MethodPost, "/api/tickets", map[string]any{"requester": "u-ada", "tickets": tickets})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/tickets", nil, "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	var rows []readmodel.Row
	require.NoError(t, json.NewDecoder(zr).Decode(&rows))
	assert.Len(t, rows, 12)
}

func TestDirectoryEndpoints(t *testing.T) {
	env := newEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Project](t, w), 1)

	w = env.do(t, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.User](t, w), 1)

	w = env.do(t, http.MethodGet, "/api/assets?category=laptop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestChatEndpoints(t *testing.T) {
	env := newEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/chat/sessions", map[string]any{})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	session := decode[models.ChatSession](t, w)

	w = env.do(t, http.MethodPost, "/api/chat/sessions/"+session.ID.String()+"/messages", map[string]any{"content": "please file a ticket"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ex := decode[service.Exchange](t, w)
	assert.Contains(t, ex.Answer.Content, "TKT-1")
	assert.JSONEq(t, `["TKT-1"]`, string(ex.Answer.TicketIDs))

	w = env.do(t, http.MethodGet, "/api/chat/sessions/"+session.ID.String()+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ChatMessage](t, w), 2)

	w = env.do(t, http.MethodPost, "/api/chat/messages/"+ex.Answer.ID.String()+"/feedback", map[string]any{"rating": "up"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/chat/sessions/not-a-uuid/messages", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/chat/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ChatSession](t, w), 1)
}

func TestRewriteEndpoint(t *testing.T) {
	t.Run("rewritten", func(t *testing.T) {
		env := newEnv(t, fakeRewriter{out: "Polished."})
		w := env.do(t, http.MethodPost, "/api/rewrite", map[string]any{"text": "pls fix", "style": "formal"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"text":"Polished.","rewritten":true}`, w.Body.String())
	})

	t.Run("model failure returns original", func(t *testing.T) {
		env := newEnv(t, fakeRewriter{err: errors.New("overloaded")})
		w := env.do(t, http.MethodPost, "/api/rewrite", map[string]any{"text": "pls fix"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"text":"pls fix","rewritten":false}`, w.Body.String())
	})

	t.Run("bad style", func(t *testing.T) {
		env := newEnv(t, fakeRewriter{out: "x"})
		w := env.do(t, http.MethodPost, "/api/rewrite", map[string]any{"text": "pls fix", "style": "pirate"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
