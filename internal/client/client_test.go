package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "secret-token")
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsNonHTTPURL(t *testing.T) {
	_, err := New("ftp://example.com", "")
	assert.Error(t, err)
}

func TestClient_ListProjectsAndStats(t *testing.T) {
	orgID := uuid.New()
	projectID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/organizations/{orgID}/projects", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, orgID.String(), r.PathValue("orgID"))
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{{
				"id": projectID, "organizationId": orgID, "name": "Launch",
				"status": "ACTIVE", "taskCount": 3, "completedTasks": 1,
			}},
			"count": 1,
		})
	})
	mux.HandleFunc("GET /api/v1/organizations/{orgID}/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.ProjectStats{TotalProjects: 1, TotalTasks: 3, CompletedTasks: 1, CompletionRate: 33.3})
	})

	c := newTestClient(t, mux)
	ctx := context.Background()

	projects, err := c.ListProjects(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, projectID, projects[0].ID)
	assert.Equal(t, 3, projects[0].TaskCount)

	stats, err := c.Stats(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, 33.3, stats.CompletionRate)
}

func TestClient_APIErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "project not found", "code": "NOT_FOUND"})
	})
	mux.HandleFunc("GET /api/v1/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	c := newTestClient(t, mux)

	_, err := c.GetProject(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "project not found", apiErr.Message)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)

	_, err = c.GetTask(context.Background(), uuid.New())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.False(t, IsNotFound(err))
}

func TestClient_LoginStoresToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])
		writeJSON(w, http.StatusOK, map[string]any{"accessToken": "fresh"})
	})
	mux.HandleFunc("GET /api/v1/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "title": "t", "status": "TODO"})
	})

	c := newTestClient(t, mux)
	token, err := c.Login(context.Background(), "ada@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)

	task, err := c.GetTask(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "TODO", task.Status)
}

func TestSubscribe_StreamsEventsAndSkipsControlMessages(t *testing.T) {
	orgID := uuid.New()
	event := domain.NewChangeEvent(domain.EventCreated, domain.EntityTask, uuid.New(), orgID)

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/ws", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-token", r.URL.Query().Get("token"))
		assert.Equal(t, orgID.String(), r.URL.Query().Get("organizationId"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(map[string]string{"type": "PONG"})
		_ = conn.WriteJSON(event)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscription closed"))
		// Wait for the client's close reply.
		_, _, _ = conn.ReadMessage()
	})

	c := newTestClient(t, mux)
	sub, err := c.Subscribe(context.Background(), orgID)
	require.NoError(t, err)
	defer sub.Close()

	var got []domain.ChangeEvent
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				done = true
				break
			}
			got = append(got, e)
		case <-timeout:
			t.Fatal("feed did not end")
		}
	}

	assert.Equal(t, []domain.ChangeEvent{event}, got)
	assert.True(t, ShouldResubscribe(sub.Err()), "got %v", sub.Err())
}

func TestSubscribe_RejectedBeforeUpgrade(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/ws", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden", "code": "FORBIDDEN"})
	})

	c := newTestClient(t, mux)
	_, err := c.Subscribe(context.Background(), uuid.New())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.False(t, ShouldResubscribe(err))
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := newTestClient(t, mux)
	sub, err := c.Subscribe(context.Background(), uuid.New())
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
	assert.NoError(t, sub.Err())
}

func TestAPIError_Temporary(t *testing.T) {
	tests := []struct {
		status    int
		temporary bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.temporary, (&APIError{StatusCode: tt.status}).Temporary())
		})
	}
}
