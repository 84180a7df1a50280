package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgadapter "github.com/lorrc/project-hub-backend/internal/adapters/secondary/postgres"
	redisadapter "github.com/lorrc/project-hub-backend/internal/adapters/secondary/redis"
	"github.com/lorrc/project-hub-backend/internal/auth"
	"github.com/lorrc/project-hub-backend/internal/config"
	"github.com/lorrc/project-hub-backend/internal/core/domain"
	"github.com/lorrc/project-hub-backend/internal/core/services"
	"github.com/lorrc/project-hub-backend/internal/infrastructure/eventbus"
	"github.com/lorrc/project-hub-backend/internal/infrastructure/logging"
)

const cachePrefix = "test:"

type testEnv struct {
	server *httptest.Server
	bus    *eventbus.Bus
	redis  *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logging.Discard()
	store := pgadapter.NewStore(testPool)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := redisadapter.NewCache(client, cachePrefix)

	bus := eventbus.New(16, logger)
	t.Cleanup(bus.Close)

	tokens := auth.NewTokenManager("router-test-secret-0123456789abcdef", time.Hour)
	gateway := services.NewGateway(store, bus, cache, logger)
	queries := services.NewQueryService(store, cache, time.Minute, logger)
	sessions := services.NewSessionManager(services.NewTenantAuthorizer(tokens, store.Organizations), bus, logger)

	cfg := &config.Config{
		App: config.AppConfig{Environment: "development"},
		WebSocket: config.WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongWait:        60 * time.Second,
			WriteWait:       10 * time.Second,
		},
	}

	eh := NewErrorHandler(logger)
	router := NewRouter(Handlers{
		Auth:          NewAuthHandler(services.NewAuthService(store.Users), tokens, eh, logger),
		Organizations: NewOrganizationHandler(services.NewOrganizationService(store), gateway, queries, eh, logger),
		Projects:      NewProjectHandler(gateway, queries, eh, logger),
		Tasks:         NewTaskHandler(gateway, queries, eh, logger),
		Comments:      NewCommentHandler(gateway, eh, logger),
		WebSocket:     NewWebSocketHandler(sessions, cfg, eh, logger),
		Events:        NewSSEHandler(sessions, time.Minute, eh, logger),
		Health:        NewHealthHandler(pgadapter.NewPinger(testPool), cache, bus, "test"),
	}, RouterOptions{
		Tokens:             tokens,
		CORSAllowedOrigins: []string{"*"},
		Logger:             logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, bus: bus, redis: mr}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := stdhttp.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

// register creates a fresh account and returns its token.
func (e *testEnv) register(t *testing.T) TokenResponse {
	t.Helper()
	status, body := e.do(t, "POST", "/api/v1/auth/register", "", RegisterRequest{
		Email:    "user-" + uuid.NewString()[:8] + "@example.com",
		FullName: "Test User",
		Password: "password123",
	})
	require.Equal(t, stdhttp.StatusCreated, status, string(body))
	return decode[TokenResponse](t, body)
}

func (e *testEnv) createOrganization(t *testing.T, token string) OrganizationDTO {
	t.Helper()
	status, body := e.do(t, "POST", "/api/v1/organizations", token, CreateOrganizationRequest{
		Name:         "Acme",
		Slug:         "acme-" + uuid.NewString()[:8],
		ContactEmail: "ops@acme.test",
	})
	require.Equal(t, stdhttp.StatusCreated, status, string(body))
	return decode[OrganizationDTO](t, body)
}

func (e *testEnv) createProject(t *testing.T, token, orgID, name string) ProjectDTO {
	t.Helper()
	status, body := e.do(t, "POST", "/api/v1/organizations/"+orgID+"/projects", token, map[string]any{
		"name": name,
	})
	require.Equal(t, stdhttp.StatusCreated, status, string(body))
	return decode[ProjectDTO](t, body)
}

func TestAPI_Auth(t *testing.T) {
	env := newTestEnv(t)

	email := "auth-" + uuid.NewString()[:8] + "@example.com"
	register := RegisterRequest{Email: email, FullName: "Ada", Password: "password123"}

	status, body := env.do(t, "POST", "/api/v1/auth/register", "", register)
	require.Equal(t, stdhttp.StatusCreated, status, string(body))
	registered := decode[TokenResponse](t, body)
	assert.NotEmpty(t, registered.AccessToken)
	assert.Equal(t, "Bearer", registered.TokenType)
	assert.Equal(t, email, registered.User.Email)

	t.Run("duplicate email conflicts", func(t *testing.T) {
		status, _ := env.do(t, "POST", "/api/v1/auth/register", "", register)
		assert.Equal(t, stdhttp.StatusConflict, status)
	})

	t.Run("weak password is rejected", func(t *testing.T) {
		status, _ := env.do(t, "POST", "/api/v1/auth/register", "", RegisterRequest{
			Email: "weak-" + uuid.NewString()[:8] + "@example.com", FullName: "Weak", Password: "short",
		})
		assert.Contains(t, []int{stdhttp.StatusBadRequest, stdhttp.StatusUnprocessableEntity}, status)
	})

	t.Run("login", func(t *testing.T) {
		status, body := env.do(t, "POST", "/api/v1/auth/login", "", LoginRequest{Email: email, Password: "password123"})
		require.Equal(t, stdhttp.StatusOK, status, string(body))
		assert.NotEmpty(t, decode[TokenResponse](t, body).AccessToken)

		status, _ = env.do(t, "POST", "/api/v1/auth/login", "", LoginRequest{Email: email, Password: "wrongpass1"})
		assert.Equal(t, stdhttp.StatusUnauthorized, status)
	})

	t.Run("me", func(t *testing.T) {
		status, body := env.do(t, "GET", "/api/v1/auth/me", registered.AccessToken, nil)
		require.Equal(t, stdhttp.StatusOK, status, string(body))
		assert.Equal(t, registered.User.ID, decode[UserDTO](t, body).ID)

		status, _ = env.do(t, "GET", "/api/v1/auth/me", "", nil)
		assert.Equal(t, stdhttp.StatusUnauthorized, status)
	})
}

func TestAPI_ProjectLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t).AccessToken
	org := env.createOrganization(t, token)

	project := env.createProject(t, token, org.ID, "Launch")
	assert.Equal(t, "ACTIVE", project.Status)
	assert.Equal(t, org.ID, project.OrganizationID)

	status, body := env.do(t, "POST", "/api/v1/projects/"+project.ID+"/tasks", token, map[string]any{
		"title": "Write docs",
	})
	require.Equal(t, stdhttp.StatusCreated, status, string(body))
	task := decode[TaskDTO](t, body)
	assert.Equal(t, "TODO", task.Status)

	status, body = env.do(t, "PATCH", "/api/v1/tasks/"+task.ID, token, map[string]any{"status": "DONE"})
	require.Equal(t, stdhttp.StatusOK, status, string(body))
	assert.Equal(t, "DONE", decode[TaskDTO](t, body).Status)

	status, body = env.do(t, "GET", "/api/v1/organizations/"+org.ID+"/projects", token, nil)
	require.Equal(t, stdhttp.StatusOK, status, string(body))
	list := decode[ListResponse[ProjectDTO]](t, body)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, 1, list.Data[0].TaskCount)
	assert.Equal(t, 1, list.Data[0].CompletedTasks)

	status, body = env.do(t, "POST", "/api/v1/tasks/"+task.ID+"/comments", token, map[string]any{"content": "done!"})
	require.Equal(t, stdhttp.StatusCreated, status, string(body))
	comment := decode[CommentDTO](t, body)

	status, body = env.do(t, "GET", "/api/v1/tasks/"+task.ID+"/comments", token, nil)
	require.Equal(t, stdhttp.StatusOK, status, string(body))
	assert.Equal(t, 1, decode[ListResponse[CommentDTO]](t, body).Count)

	status, _ = env.do(t, "DELETE", "/api/v1/comments/"+comment.ID, token, nil)
	assert.Equal(t, stdhttp.StatusNoContent, status)

	status, body = env.do(t, "PATCH", "/api/v1/projects/"+project.ID, token, map[string]any{
		"name":    "Launch v2",
		"dueDate": "2030-01-15",
	})
	require.Equal(t, stdhttp.StatusOK, status, string(body))
	patched := decode[ProjectDTO](t, body)
	assert.Equal(t, "Launch v2", patched.Name)
	require.NotNil(t, patched.DueDate)

	status, body = env.do(t, "PATCH", "/api/v1/projects/"+project.ID, token, map[string]any{"dueDate": nil})
	require.Equal(t, stdhttp.StatusOK, status, string(body))
	cleared := decode[ProjectDTO](t, body)
	assert.Nil(t, cleared.DueDate)
	assert.Equal(t, "Launch v2", cleared.Name)

	status, _ = env.do(t, "DELETE", "/api/v1/projects/"+project.ID, token, nil)
	assert.Equal(t, stdhttp.StatusNoContent, status)

	status, _ = env.do(t, "GET", "/api/v1/projects/"+project.ID, token, nil)
	assert.Equal(t, stdhttp.StatusNotFound, status)
	status, _ = env.do(t, "GET", "/api/v1/tasks/"+task.ID, token, nil)
	assert.Equal(t, stdhttp.StatusNotFound, status)
}

func TestAPI_ValidationAndRouting(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t).AccessToken
	org := env.createOrganization(t, token)

	status, _ := env.do(t, "POST", "/api/v1/organizations/"+org.ID+"/projects", token, map[string]any{"name": ""})
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, status)

	status, _ = env.do(t, "POST", "/api/v1/organizations/"+org.ID+"/projects", token, map[string]any{
		"name": "x", "unknown": true,
	})
	assert.Equal(t, stdhttp.StatusBadRequest, status)

	status, _ = env.do(t, "GET", "/api/v1/projects/not-a-uuid", token, nil)
	assert.Equal(t, stdhttp.StatusBadRequest, status)

	status, _ = env.do(t, "POST", "/api/v1/organizations", token, CreateOrganizationRequest{
		Name: "Dup", Slug: org.Slug, ContactEmail: "a@b.test",
	})
	assert.Equal(t, stdhttp.StatusConflict, status)
}

func TestAPI_TenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t).AccessToken
	other := env.register(t).AccessToken
	org := env.createOrganization(t, owner)
	project := env.createProject(t, owner, org.ID, "Secret")

	status, _ := env.do(t, "GET", "/api/v1/organizations/"+org.ID, other, nil)
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, _ = env.do(t, "GET", "/api/v1/projects/"+project.ID, other, nil)
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, _ = env.do(t, "POST", "/api/v1/organizations/"+org.ID+"/projects", other, map[string]any{"name": "Intruder"})
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, body := env.do(t, "GET", "/api/v1/organizations", other, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, 0, decode[ListResponse[OrganizationDTO]](t, body).Count)

	status, _ = env.do(t, "GET", "/api/v1/organizations/"+uuid.NewString(), owner, nil)
	assert.Equal(t, stdhttp.StatusNotFound, status)
}

func TestAPI_StatsCacheInvalidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t).AccessToken
	org := env.createOrganization(t, token)
	env.createProject(t, token, org.ID, "One")

	orgID := uuid.MustParse(org.ID)
	key := cachePrefix + services.StatsCacheKey(orgID)

	status, body := env.do(t, "GET", "/api/v1/organizations/"+org.ID+"/stats", token, nil)
	require.Equal(t, stdhttp.StatusOK, status, string(body))
	assert.Equal(t, 1, decode[domain.ProjectStats](t, body).TotalProjects)
	assert.True(t, env.redis.Exists(key))

	env.createProject(t, token, org.ID, "Two")
	assert.False(t, env.redis.Exists(key))

	status, body = env.do(t, "GET", "/api/v1/organizations/"+org.ID+"/stats", token, nil)
	require.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, 2, decode[domain.ProjectStats](t, body).TotalProjects)
}

func TestAPI_EventStream(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t).AccessToken
	org := env.createOrganization(t, token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := stdhttp.NewRequestWithContext(ctx, "GET",
		env.server.URL+"/api/v1/organizations/"+org.ID+"/events?token="+token, nil)
	require.NoError(t, err)
	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return env.bus.TotalSubscribers() == 1 }, time.Second, 10*time.Millisecond)

	project := env.createProject(t, token, org.ID, "Streamed")

	reader := bufio.NewReader(resp.Body)
	var line string
	for !strings.HasPrefix(line, "data: ") {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
	}

	event := decode[domain.ChangeEvent](t, []byte(strings.TrimSpace(strings.TrimPrefix(line, "data: "))))
	assert.Equal(t, domain.EventCreated, event.EventType)
	assert.Equal(t, domain.EntityProject, event.EntityType)
	assert.Equal(t, project.ID, event.EntityID.String())
	assert.Equal(t, org.ID, event.OrganizationID.String())

	cancel()
	assert.Eventually(t, func() bool { return env.bus.TotalSubscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestAPI_EventStreamRejectsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t).AccessToken
	other := env.register(t).AccessToken
	org := env.createOrganization(t, owner)

	status, _ := env.do(t, "GET", "/api/v1/organizations/"+org.ID+"/events", "", nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, status)

	status, _ = env.do(t, "GET", "/api/v1/organizations/"+org.ID+"/events", "garbage", nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, status)

	status, _ = env.do(t, "GET", "/api/v1/organizations/"+org.ID+"/events", other, nil)
	assert.Equal(t, stdhttp.StatusForbidden, status)

	status, _ = env.do(t, "GET", "/api/v1/organizations/"+uuid.NewString()+"/events", owner, nil)
	assert.Equal(t, stdhttp.StatusNotFound, status)

	assert.Equal(t, 0, env.bus.TotalSubscribers())
}

func TestAPI_WebSocketStream(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t).AccessToken
	org := env.createOrganization(t, token)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/v1/ws?token=" + token + "&organizationId=" + org.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	project := env.createProject(t, token, org.ID, "Live")
	status, _ := env.do(t, "DELETE", "/api/v1/projects/"+project.ID, token, nil)
	require.Equal(t, stdhttp.StatusNoContent, status)

	var created, deleted domain.ChangeEvent
	require.NoError(t, conn.ReadJSON(&created))
	require.NoError(t, conn.ReadJSON(&deleted))
	assert.Equal(t, domain.EventCreated, created.EventType)
	assert.Equal(t, domain.EventDeleted, deleted.EventType)
	assert.Equal(t, project.ID, deleted.EntityID.String())

	t.Run("rejected before upgrade", func(t *testing.T) {
		other := env.register(t).AccessToken
		badURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/v1/ws?token=" + other + "&organizationId=" + org.ID
		_, resp, err := websocket.DefaultDialer.Dial(badURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, stdhttp.StatusForbidden, resp.StatusCode)
	})
}

func TestAPI_Health(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, "GET", "/health/ready", "", nil)
	require.Equal(t, stdhttp.StatusOK, status, string(body))
	ready := decode[HealthResponse](t, body)
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "healthy", ready.Checks["store"].Status)
	assert.Equal(t, "healthy", ready.Checks["cache"].Status)

	status, _ = env.do(t, "GET", "/health/live", "", nil)
	assert.Equal(t, stdhttp.StatusOK, status)

	env.redis.SetError("down")
	status, body = env.do(t, "GET", "/health", "", nil)
	assert.Equal(t, stdhttp.StatusServiceUnavailable, status)
	assert.Equal(t, "unhealthy", decode[HealthResponse](t, body).Checks["cache"].Status)
}
