// Package techfixersdk is a small client for the Techfixer HTTP API.
package techfixersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Techfixer HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base
// path, for example http://127.0.0.1:8080/v1.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Process struct {
	ID          int64     `json:"id"`
	TaskID      int64     `json:"task_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Author      Ref       `json:"author"`
}

// Task represents the API task model.
type Task struct {
	ID          int64      `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Description string     `json:"description"`
	Department  *Ref       `json:"department,omitempty"`
	Author      Ref        `json:"author"`
	Owner       *Ref       `json:"owner,omitempty"`
	StateID     int64      `json:"state_id"`
	StateName   string     `json:"state_name"`
	Processes   []Process  `json:"processes"`
}

type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Role        Ref    `json:"role"`
	Departments []Ref  `json:"departments"`
}

type Department struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Users []Ref  `json:"users"`
}

// PendingTasks groups an owner's open tasks by state.
type PendingTasks struct {
	Active     []Task `json:"active"`
	InProgress []Task `json:"in_progress"`
	Paused     []Task `json:"paused"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   int64          `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

type ProcessInput struct {
	Description string `json:"description"`
	AuthorID    *int64 `json:"author_id,omitempty"`
}

type CreateTaskInput struct {
	Description  string         `json:"description,omitempty"`
	DepartmentID *int64         `json:"department_id,omitempty"`
	AuthorID     *int64         `json:"author_id,omitempty"`
	OwnerID      *int64         `json:"owner_id,omitempty"`
	StateID      *int64         `json:"state_id,omitempty"`
	Processes    []ProcessInput `json:"processes,omitempty"`
}

// UpdateTaskInput replaces department and owner: leaving either nil clears it.
type UpdateTaskInput struct {
	Description  *string        `json:"description,omitempty"`
	DepartmentID *int64         `json:"department_id,omitempty"`
	OwnerID      *int64         `json:"owner_id,omitempty"`
	StateID      *int64         `json:"state_id,omitempty"`
	Processes    []ProcessInput `json:"processes,omitempty"`
}

type TimeRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

type TaskFilter struct {
	AuthorID     *int64    `json:"author_id,omitempty"`
	OwnerID      *int64    `json:"owner_id,omitempty"`
	StateID      *int64    `json:"state_id,omitempty"`
	DepartmentID *int64    `json:"department_id,omitempty"`
	Created      TimeRange `json:"created,omitempty"`
	Completed    TimeRange `json:"completed,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (User, error) {
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Register creates a user with the default role.
func (c *Client) Register(ctx context.Context, username, password string, departmentIDs ...int64) (User, error) {
	body := map[string]any{"username": username, "password": password}
	if len(departmentIDs) > 0 {
		body["department_ids"] = departmentIDs
	}
	var resp User
	err := c.do(ctx, http.MethodPost, "auth/register", body, &resp)
	return resp, err
}

// CreateTask creates a task. The author defaults to the logged in user.
func (c *Client) CreateTask(ctx context.Context, in CreateTaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", in, &resp)
	return resp, err
}

func (c *Client) UpdateTask(ctx context.Context, id int64, in UpdateTaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("tasks/%d", id), in, &resp)
	return resp, err
}

func (c *Client) GetTask(ctx context.Context, id int64) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("tasks/%d", id), nil, &resp)
	return resp, err
}

// AddProcess appends a log entry to a task.
func (c *Client) AddProcess(ctx context.Context, taskID int64, in ProcessInput) (Process, error) {
	var resp Process
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%d/processes", taskID), in, &resp)
	return resp, err
}

func (c *Client) FilterTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodPost, "tasks/filter", f, &resp)
	return resp, err
}

// PendingTasks returns the user's owned tasks that are not finished or cancelled.
func (c *Client) PendingTasks(ctx context.Context, userID int64) (PendingTasks, error) {
	var resp struct {
		Tasks PendingTasks `json:"tasks"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("users/%d/tasks/pending", userID), nil, &resp)
	return resp.Tasks, err
}

func (c *Client) Departments(ctx context.Context) ([]Department, error) {
	var resp []Department
	err := c.do(ctx, http.MethodGet, "departments", nil, &resp)
	return resp, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
