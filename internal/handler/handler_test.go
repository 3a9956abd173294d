package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"support_chat/internal/config"
	"support_chat/internal/domain"
	"support_chat/internal/identity"
	"support_chat/internal/middleware"
	"support_chat/internal/realtime"
	"support_chat/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testHeader   = "X-Chat-User-ID"
	testAdminKey = "admin-secret"
)

var testAgentID = uuid.MustParse("6f1c1a52-33a3-4cf4-9e0d-6a4e3c1d9b10")

type testEnv struct {
	chat   *fakeChat
	auth   *fakeAuth
	hub    *realtime.Hub
	router *gin.Engine
}

// fakeAgent подставляет агента вместо проверки JWT
func fakeAgent(c *gin.Context) {
	c.Set("agent_id", testAgentID)
	c.Next()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.NewNop()
	hub := realtime.NewHub(16, log)
	t.Cleanup(hub.Close)

	env := &testEnv{
		chat: newFakeChat(hub),
		auth: &fakeAuth{},
		hub:  hub,
	}

	ws := NewWebSocketHandler(env.chat, env.chat, hub, []string{"http://localhost:3000"}, time.Second, log)
	convs := NewConversationHandler(env.chat, env.chat, log)
	agentConvs := NewAgentConversationHandler(env.chat, env.chat, log)
	auth := NewAgentAuthHandler(env.auth, testAdminKey, log)

	identityMW := middleware.Identity(config.IdentityConfig{
		CookieName:   "chat_user_id",
		HeaderName:   testHeader,
		CookieMaxAge: time.Hour,
	})

	r := gin.New()
	r.Use(middleware.ErrorHandler())

	customer := r.Group("/api/v1/conversations", identityMW)
	customer.POST("", convs.Create)
	customer.GET("", convs.List)
	customer.GET("/:id", convs.Get)
	customer.GET("/:id/messages", convs.ListMessages)
	customer.POST("/:id/messages", convs.SendMessage)
	customer.POST("/:id/read", convs.MarkRead)

	r.POST("/api/v1/agents/register", auth.Register)
	r.POST("/api/v1/agents/login", auth.Login)

	agent := r.Group("/api/v1/agent", fakeAgent)
	agent.GET("/conversations", agentConvs.List)
	agent.POST("/conversations/:id/assign", agentConvs.Assign)
	agent.PUT("/conversations/:id/status", agentConvs.UpdateStatus)
	agent.POST("/conversations/:id/messages", agentConvs.SendMessage)
	agent.POST("/conversations/:id/read", agentConvs.MarkRead)

	r.GET("/ws/conversations", identityMW, ws.CustomerConversations)
	r.GET("/ws/conversations/:id", identityMW, ws.CustomerConversation)
	r.GET("/ws/agent/conversations", fakeAgent, ws.AgentConversations)

	env.router = r
	return env
}

func newCustomerID(t *testing.T) string {
	t.Helper()
	id := identity.NewUserID(time.Now())
	if !identity.IsValidUserID(id) {
		t.Fatalf("generated invalid user id %q", id)
	}
	return id
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body interface{}, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(testHeader, userID)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCustomerConversationFlow(t *testing.T) {
	env := newTestEnv(t)
	customer := newCustomerID(t)

	w := env.do(t, http.MethodPost, "/api/v1/conversations", customer, CreateConversationRequest{DisplayName: "  Billing  "})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", w.Code, w.Body.String())
	}
	conv := decode[domain.Conversation](t, w)
	if conv.CustomerID != customer || conv.Status != domain.StatusWaiting {
		t.Fatalf("unexpected conversation %+v", conv)
	}
	if conv.Name == nil || *conv.Name != "Billing" {
		t.Fatalf("display name not trimmed: %v", conv.Name)
	}

	base := "/api/v1/conversations/" + conv.ID.String()

	w = env.do(t, http.MethodPost, base+"/messages", customer, SendMessageRequest{Content: "   "})
	if w.Code != http.StatusNoContent {
		t.Fatalf("empty message: status %d, want 204", w.Code)
	}

	w = env.do(t, http.MethodPost, base+"/messages", customer, SendMessageRequest{Content: "hello"})
	if w.Code != http.StatusCreated {
		t.Fatalf("send: status %d, body %s", w.Code, w.Body.String())
	}
	msg := decode[domain.Message](t, w)
	if msg.SenderType != domain.RoleUser || msg.SenderID != customer || msg.Content != "hello" {
		t.Fatalf("unexpected message %+v", msg)
	}

	w = env.do(t, http.MethodGet, base, customer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	if got := decode[domain.Conversation](t, w); len(got.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(got.Messages))
	}

	w = env.do(t, http.MethodGet, "/api/v1/conversations?search=bill", customer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	summaries := decode[[]domain.ConversationSummary](t, w)
	if len(summaries) != 1 || summaries[0].ID != conv.ID {
		t.Fatalf("unexpected summaries %+v", summaries)
	}
}

func TestCustomerCannotSeeForeignConversation(t *testing.T) {
	env := newTestEnv(t)
	owner := newCustomerID(t)
	stranger := newCustomerID(t)

	conv, _ := env.chat.CreateConversation(context.Background(), owner, "")
	base := "/api/v1/conversations/" + conv.ID.String()

	for _, tc := range []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodGet, base, nil},
		{http.MethodGet, base + "/messages", nil},
		{http.MethodPost, base + "/messages", SendMessageRequest{Content: "hi"}},
		{http.MethodPost, base + "/read", nil},
	} {
		w := env.do(t, tc.method, tc.path, stranger, tc.body)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: status %d, want 404", tc.method, tc.path, w.Code)
		}
	}

	if w := env.do(t, http.MethodGet, "/api/v1/conversations/not-a-uuid", owner, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status %d, want 400", w.Code)
	}
}

func TestMarkReadFlipsOtherSide(t *testing.T) {
	env := newTestEnv(t)
	customer := newCustomerID(t)
	ctx := context.Background()

	conv, _ := env.chat.CreateConversation(ctx, customer, "")
	_, _ = env.chat.SendMessage(ctx, conv.ID, domain.RoleUser, customer, "question")
	_, _ = env.chat.SendMessage(ctx, conv.ID, domain.RoleAgent, testAgentID.String(), "answer 1")
	_, _ = env.chat.SendMessage(ctx, conv.ID, domain.RoleAgent, testAgentID.String(), "answer 2")

	w := env.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID.String()+"/read", customer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if got := decode[map[string]int](t, w); got["marked"] != 2 {
		t.Fatalf("marked %d, want 2", got["marked"])
	}

	w = env.do(t, http.MethodPost, "/api/v1/agent/conversations/"+conv.ID.String()+"/read", "", nil)
	if got := decode[map[string]int](t, w); got["marked"] != 1 {
		t.Fatalf("agent marked %d, want 1", got["marked"])
	}
}

func TestAgentListFiltersAndCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	waiting, _ := env.chat.CreateConversation(ctx, newCustomerID(t), "Refund")
	active, _ := env.chat.CreateConversation(ctx, newCustomerID(t), "Login issue")
	if _, err := env.chat.AssignAgent(ctx, active.ID, testAgentID); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/api/v1/agent/conversations?status=waiting", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	list := decode[AgentConversationList](t, w)
	if len(list.Conversations) != 1 || list.Conversations[0].ID != waiting.ID {
		t.Fatalf("unexpected filtered list %+v", list.Conversations)
	}
	if list.Stats.Total != 2 || list.Stats.Waiting != 1 || list.Stats.Active != 1 {
		t.Fatalf("stats must count the whole list: %+v", list.Stats)
	}

	w = env.do(t, http.MethodGet, "/api/v1/agent/conversations?status=bogus", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bogus status filter: %d, want 400", w.Code)
	}
}

func TestAgentAssignAndStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	conv, _ := env.chat.CreateConversation(ctx, newCustomerID(t), "")
	base := "/api/v1/agent/conversations/" + conv.ID.String()

	w := env.do(t, http.MethodPost, base+"/assign", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("assign: status %d, body %s", w.Code, w.Body.String())
	}
	got := decode[domain.Conversation](t, w)
	if got.AgentID == nil || *got.AgentID != testAgentID || got.Status != domain.StatusActive {
		t.Fatalf("assign should default to caller and activate: %+v", got)
	}

	w = env.do(t, http.MethodPut, base+"/status", "", UpdateStatusRequest{Status: "resolved"})
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: status %d", w.Code)
	}

	w = env.do(t, http.MethodPut, base+"/status", "", UpdateStatusRequest{Status: "waiting"})
	if w.Code != http.StatusConflict {
		t.Fatalf("resolved -> waiting: status %d, want 409", w.Code)
	}

	w = env.do(t, http.MethodPut, base+"/status", "", UpdateStatusRequest{Status: "closed"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodPost, base+"/messages", "", SendMessageRequest{Content: "on it"})
	if w.Code != http.StatusCreated {
		t.Fatalf("agent send: status %d", w.Code)
	}
	if msg := decode[domain.Message](t, w); msg.SenderType != domain.RoleAgent || msg.SenderID != testAgentID.String() {
		t.Fatalf("unexpected sender %+v", msg)
	}
}

func TestStoreErrorsAreHidden(t *testing.T) {
	env := newTestEnv(t)
	env.chat.failReads = true

	w := env.do(t, http.MethodGet, "/api/v1/agent/conversations", "", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", w.Code)
	}
	if got := decode[map[string]string](t, w); got["error"] != "store read failed" {
		t.Fatalf("error %q", got["error"])
	}
}

func TestRegisterRequiresAdminKey(t *testing.T) {
	env := newTestEnv(t)
	body := RegisterAgentRequest{Name: "Ann", Email: "ann@example.com", Password: "password123"}

	if w := env.do(t, http.MethodPost, "/api/v1/agents/register", "", body); w.Code != http.StatusForbidden {
		t.Fatalf("no key: status %d, want 403", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/agents/register", "", body, adminKeyHeader, "wrong"); w.Code != http.StatusForbidden {
		t.Fatalf("wrong key: status %d, want 403", w.Code)
	}
	if len(env.auth.registered) != 0 {
		t.Fatalf("service called without a valid key")
	}

	w := env.do(t, http.MethodPost, "/api/v1/agents/register", "", body, adminKeyHeader, testAdminKey)
	if w.Code != http.StatusCreated {
		t.Fatalf("valid key: status %d, body %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/v1/agents/login", "", LoginRequest{Email: "ann@example.com", Password: "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("login: status %d, want 401", w.Code)
	}
}

func TestRegistrationDisabledWithoutKey(t *testing.T) {
	h := NewAgentAuthHandler(&fakeAuth{}, "", logger.NewNop())
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.POST("/register", h.Register)

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(`{}`))
	req.Header.Set(adminKeyHeader, "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", w.Code)
	}
}

func TestHealthReportsDependencies(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	r := gin.New()
	r.GET("/health", h.Check)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", w.Code)
	}

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" || body.Dependencies["postgres"] != "ok" {
		t.Fatalf("unexpected body %+v", body)
	}
}
