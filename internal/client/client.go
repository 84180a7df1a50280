// Package client talks to the project hub API: REST reads and the
// WebSocket change feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/project-hub-backend/internal/core/domain"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Code       string `json:"code"`
}

// Error formats the status and the server message.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the request later may succeed: rate
// limiting and server-side failures. Authentication, authorization and
// missing resources are permanent.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Project struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
	DueDate        *string   `json:"dueDate"`
	TaskCount      int       `json:"taskCount"`
	CompletedTasks int       `json:"completedTasks"`
}

type Task struct {
	ID            uuid.UUID `json:"id"`
	ProjectID     uuid.UUID `json:"projectId"`
	Title         string    `json:"title"`
	Status        string    `json:"status"`
	AssigneeEmail string    `json:"assigneeEmail"`
	DueDate       *string   `json:"dueDate"`
}

type listResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// Client is safe for concurrent use once the token is set.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL, token string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", baseURL)
	}
	return &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", body, &resp); err != nil {
		return "", err
	}
	c.token = resp.AccessToken
	return resp.AccessToken, nil
}

// ListProjects fetches an organization's projects with task counts.
func (c *Client) ListProjects(ctx context.Context, orgID uuid.UUID) ([]Project, error) {
	var resp listResponse[Project]
	if err := c.do(ctx, http.MethodGet, "/api/v1/organizations/"+orgID.String()+"/projects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Stats fetches an organization's project stats.
func (c *Client) Stats(ctx context.Context, orgID uuid.UUID) (*domain.ProjectStats, error) {
	var stats domain.ProjectStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/organizations/"+orgID.String()+"/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	var project Project
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+id.String(), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetTask fetches one task.
func (c *Client) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+id.String(), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		// Best effort: the body may not be JSON.
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
