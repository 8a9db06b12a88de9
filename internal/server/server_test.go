package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techfixer/internal/app"
	"techfixer/internal/config"
	"techfixer/internal/domain"
	"techfixer/internal/engine"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	for _, fn := range mutate {
		fn(cfg)
	}
	e, conn, err := app.Open(context.Background(), t.TempDir(), cfg)
	require.NoError(t, err, "open app")
	handler, err := New(Config{Engine: e, BasePath: "/v1"})
	require.NoError(t, err, "build handler")
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err, "listen")
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
		conn.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String() + "/v1", Engine: e, client: &http.Client{}}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	reader := bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err, "marshal body")
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err, "new request")
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	require.NoError(t, err, "do request")
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err, "read body")
	return res, data
}

// call issues an authenticated request and decodes a JSON response into out.
func (s *testServer) call(t *testing.T, token, method, path string, body any, wantStatus int, out any) []byte {
	t.Helper()
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	res, data := doJSON(t, s.client, method, s.URL+path, body, headers)
	require.Equal(t, wantStatus, res.StatusCode, "%s %s: %s", method, path, string(data))
	if out != nil {
		require.NoError(t, json.Unmarshal(data, out), "decode %s", string(data))
	}
	return data
}

// signup registers a user and returns it with a fresh bearer token.
func (s *testServer) signup(t *testing.T, username string) (domain.User, string) {
	t.Helper()
	var u domain.User
	s.call(t, "", http.MethodPost, "/auth/register", map[string]any{"username": username, "password": "pw-" + username}, http.StatusCreated, &u)
	var tok TokenResponse
	s.call(t, "", http.MethodPost, "/auth/login", map[string]any{"username": username, "password": "pw-" + username}, http.StatusOK, &tok)
	require.NotEmpty(t, tok.Token)
	return u, tok.Token
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(data, &env), "decode error %s", string(data))
	return env.Error.Code
}

func TestHealthIsPublicAndAPIRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	var health map[string]string
	srv.call(t, "", http.MethodGet, "/health", nil, http.StatusOK, &health)
	assert.Equal(t, "ok", health["status"])

	data := srv.call(t, "", http.MethodGet, "/tasks", nil, http.StatusUnauthorized, nil)
	assert.Equal(t, "unauthorized", errorCode(t, data))

	data = srv.call(t, "not-a-jwt", http.MethodGet, "/tasks", nil, http.StatusUnauthorized, nil)
	assert.Equal(t, "invalid_credentials", errorCode(t, data))
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "alice")

	data := srv.call(t, "", http.MethodPost, "/auth/login", map[string]any{"username": "alice", "password": "nope"}, http.StatusUnauthorized, nil)
	assert.Equal(t, "invalid_credentials", errorCode(t, data))
	data = srv.call(t, "", http.MethodPost, "/auth/login", map[string]any{"username": "ghost", "password": "nope"}, http.StatusUnauthorized, nil)
	assert.Equal(t, "invalid_credentials", errorCode(t, data))
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "alice")

	data := srv.call(t, "", http.MethodPost, "/auth/register", map[string]any{"username": "bob"}, http.StatusBadRequest, nil)
	assert.Equal(t, "missing_required_field", errorCode(t, data))

	data = srv.call(t, "", http.MethodPost, "/auth/register", map[string]any{"username": "alice", "password": "x"}, http.StatusConflict, nil)
	assert.Equal(t, "already_exists", errorCode(t, data))
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)
	u, token := srv.signup(t, "alice")

	var me MeResponse
	srv.call(t, token, http.MethodGet, "/me", nil, http.StatusOK, &me)
	assert.Equal(t, u.ID, me.UserID)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "standard", me.Role)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	alice, token := srv.signup(t, "alice")

	var created domain.Task
	srv.call(t, token, http.MethodPost, "/tasks", map[string]any{
		"description": "Printer jams on tray 2",
		"owner_id":    alice.ID,
		"processes":   []map[string]any{{"description": "Reported by phone"}},
	}, http.StatusCreated, &created)
	assert.Equal(t, domain.StateActive, created.State)
	assert.Equal(t, alice.ID, created.Author.ID)
	require.NotNil(t, created.Owner)
	require.Len(t, created.Processes, 1)
	assert.Equal(t, alice.ID, created.Processes[0].Author.ID)
	assert.Nil(t, created.CompletedAt)

	path := fmt.Sprintf("/tasks/%d", created.ID)
	var updated domain.Task
	srv.call(t, token, http.MethodPut, path, map[string]any{
		"owner_id": alice.ID,
		"state_id": int64(domain.StateFinished),
	}, http.StatusOK, &updated)
	assert.Equal(t, domain.StateFinished, updated.State)
	assert.NotNil(t, updated.CompletedAt)

	data := srv.call(t, token, http.MethodPut, path, map[string]any{"description": "again"}, http.StatusConflict, nil)
	assert.Equal(t, "terminal_state", errorCode(t, data))
	data = srv.call(t, token, http.MethodPost, path+"/processes", map[string]any{"description": "late note"}, http.StatusConflict, nil)
	assert.Equal(t, "terminal_state", errorCode(t, data))

	var fetched domain.Task
	srv.call(t, token, http.MethodGet, path, nil, http.StatusOK, &fetched)
	assert.Equal(t, domain.StateFinished, fetched.State)
	assert.Len(t, fetched.Processes, 1)

	srv.call(t, token, http.MethodDelete, path, nil, http.StatusNoContent, nil)
	data = srv.call(t, token, http.MethodGet, path, nil, http.StatusNotFound, nil)
	assert.Equal(t, "not_found", errorCode(t, data))
}

func TestCreateTaskUnknownOwner(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.signup(t, "alice")

	data := srv.call(t, token, http.MethodPost, "/tasks", map[string]any{"description": "x", "owner_id": 999}, http.StatusNotFound, nil)
	assert.Equal(t, "not_found", errorCode(t, data))
	var tasks []domain.Task
	srv.call(t, token, http.MethodGet, "/tasks", nil, http.StatusOK, &tasks)
	assert.Empty(t, tasks)
}

func TestCreateTaskAuthorDefaultsToCaller(t *testing.T) {
	srv := newTestServer(t)
	alice, _ := srv.signup(t, "alice")
	bob, token := srv.signup(t, "bob")

	var own domain.Task
	srv.call(t, token, http.MethodPost, "/tasks", map[string]any{"description": "mine"}, http.StatusCreated, &own)
	assert.Equal(t, bob.ID, own.Author.ID)

	var onBehalf domain.Task
	srv.call(t, token, http.MethodPost, "/tasks", map[string]any{"description": "for alice", "author_id": alice.ID}, http.StatusCreated, &onBehalf)
	assert.Equal(t, alice.ID, onBehalf.Author.ID)

	data := srv.call(t, token, http.MethodPost, "/tasks", map[string]any{"description": "ghost", "author_id": 999}, http.StatusNotFound, nil)
	assert.Equal(t, "not_found", errorCode(t, data))

	var doc map[string]any
	srv.call(t, "", http.MethodGet, "/openapi.json", nil, http.StatusOK, &doc)
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	item, ok := paths["/v1/tasks"].(map[string]any)
	require.True(t, ok)
	post, ok := item["post"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, post["description"], "defaults to the authenticated user")
}

func TestUpdateTaskClearsOmittedOwner(t *testing.T) {
	srv := newTestServer(t)
	alice, token := srv.signup(t, "alice")

	var created domain.Task
	srv.call(t, token, http.MethodPost, "/tasks", map[string]any{"description": "x", "owner_id": alice.ID, "department_id": 1}, http.StatusCreated, &created)
	require.NotNil(t, created.Department)

	var updated domain.Task
	srv.call(t, token, http.MethodPut, fmt.Sprintf("/tasks/%d", created.ID), map[string]any{"state_id": int64(domain.StateInProgress)}, http.StatusOK, &updated)
	assert.Nil(t, updated.Owner)
	assert.Nil(t, updated.Department)
	assert.Equal(t, domain.StateInProgress, updated.State)
}

func TestPendingAndFilter(t *testing.T) {
	srv := newTestServer(t)
	alice, token := srv.signup(t, "alice")

	for _, state := range []domain.StateID{domain.StateActive, domain.StatePaused, domain.StateCancelled, domain.StateActive} {
		srv.call(t, token, http.MethodPost, "/tasks", map[string]any{
			"description": "task in " + state.String(),
			"owner_id":    alice.ID,
			"state_id":    int64(state),
		}, http.StatusCreated, nil)
	}

	var pending PendingTasksResponse
	srv.call(t, token, http.MethodGet, fmt.Sprintf("/users/%d/tasks/pending", alice.ID), nil, http.StatusOK, &pending)
	assert.Equal(t, alice.ID, pending.UserID)
	require.Len(t, pending.Tasks.Active, 2)
	assert.Empty(t, pending.Tasks.InProgress)
	assert.Len(t, pending.Tasks.Paused, 1)
	assert.Greater(t, pending.Tasks.Active[0].ID, pending.Tasks.Active[1].ID, "newest first")

	srv.call(t, token, http.MethodGet, "/users/999/tasks/pending", nil, http.StatusNotFound, nil)

	var filtered []domain.Task
	srv.call(t, token, http.MethodPost, "/tasks/filter", map[string]any{"state_id": int64(domain.StateCancelled)}, http.StatusOK, &filtered)
	require.Len(t, filtered, 1)
	assert.Equal(t, domain.StateCancelled, filtered[0].State)

	srv.call(t, token, http.MethodPost, "/tasks/filter", map[string]any{}, http.StatusOK, &filtered)
	assert.Len(t, filtered, 4)

	srv.call(t, token, http.MethodPost, "/tasks/filter", map[string]any{"author_id": alice.ID, "owner_id": 999}, http.StatusOK, &filtered)
	assert.Empty(t, filtered)
}

func TestDepartmentsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	alice, token := srv.signup(t, "alice")

	var seeded []domain.Department
	srv.call(t, token, http.MethodGet, "/departments", nil, http.StatusOK, &seeded)
	require.Len(t, seeded, 3)

	var dept domain.Department
	srv.call(t, token, http.MethodPost, "/departments", map[string]any{"name": "Soporte", "user_ids": []int64{alice.ID}}, http.StatusCreated, &dept)
	require.Len(t, dept.Users, 1)
	assert.Equal(t, alice.ID, dept.Users[0].ID)

	data := srv.call(t, token, http.MethodPost, "/departments", map[string]any{"name": "Soporte"}, http.StatusConflict, nil)
	assert.Equal(t, "already_exists", errorCode(t, data))
	data = srv.call(t, token, http.MethodPost, "/departments", map[string]any{"user_ids": []int64{alice.ID}}, http.StatusBadRequest, nil)
	assert.Equal(t, "missing_required_field", errorCode(t, data))

	path := fmt.Sprintf("/departments/%d", dept.ID)
	data = srv.call(t, token, http.MethodDelete, path, nil, http.StatusConflict, nil)
	assert.Equal(t, "delete_conflict", errorCode(t, data))

	srv.call(t, token, http.MethodDelete, fmt.Sprintf("%s/members/%d", path, alice.ID), nil, http.StatusOK, &dept)
	assert.Empty(t, dept.Users)
	srv.call(t, token, http.MethodPut, fmt.Sprintf("%s/members/%d", path, alice.ID), nil, http.StatusOK, &dept)
	assert.Len(t, dept.Users, 1)

	var user domain.User
	srv.call(t, token, http.MethodPut, fmt.Sprintf("/users/%d", alice.ID), map[string]any{}, http.StatusOK, &user)
	assert.Empty(t, user.Departments, "omitted department_ids clears memberships")

	srv.call(t, token, http.MethodDelete, path, nil, http.StatusNoContent, nil)
}

func TestCatalogAndEvents(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.signup(t, "alice")

	var states []domain.State
	srv.call(t, token, http.MethodGet, "/states", nil, http.StatusOK, &states)
	assert.Equal(t, domain.StateRows, states)

	var roles []domain.Role
	srv.call(t, token, http.MethodGet, "/roles", nil, http.StatusOK, &roles)
	assert.Len(t, roles, 2)

	srv.call(t, token, http.MethodPost, "/tasks", map[string]any{"description": "a"}, http.StatusCreated, nil)
	srv.call(t, token, http.MethodPost, "/tasks", map[string]any{"description": "b"}, http.StatusCreated, nil)

	var page paginatedEvents
	srv.call(t, token, http.MethodGet, "/events?limit=1&entity_kind=task", nil, http.StatusOK, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "task.created", page.Items[0].Type)
	assert.Equal(t, "b", page.Items[0].Payload["description"])
	require.NotEmpty(t, page.NextCursor)

	srv.call(t, token, http.MethodGet, "/events?limit=1&entity_kind=task&cursor="+page.NextCursor, nil, http.StatusOK, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a", page.Items[0].Payload["description"])
	assert.Empty(t, page.NextCursor)

	data := srv.call(t, token, http.MethodGet, "/events?cursor=abc", nil, http.StatusBadRequest, nil)
	assert.Equal(t, "bad_request", errorCode(t, data))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.call(t, "", http.MethodGet, "/health", nil, http.StatusOK, nil)

	res, data := doJSON(t, srv.client, http.MethodGet, strings.TrimSuffix(srv.URL, "/v1")+"/metrics", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "techfixer_http_requests_total")
}

func TestOpenAPIDocument(t *testing.T) {
	srv := newTestServer(t)
	var doc map[string]any
	srv.call(t, "", http.MethodGet, "/openapi.json", nil, http.StatusOK, &doc)
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/v1/tasks/filter")
	assert.Contains(t, paths, "/v1/users/{id}/tasks/pending")
}

func TestWebhookDispatcherDeliversMatchingEvents(t *testing.T) {
	var (
		mu       sync.Mutex
		received []webhookEvent
		sigs     []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		received = append(received, evt)
		sigs = append(sigs, r.Header.Get("X-Techfixer-Signature"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL, Secret: "s3cret", Events: []string{"task.*"}}}
	})
	d := newWebhookDispatcher(srv.Engine, nil)
	require.NotNil(t, d)
	ctx := context.Background()
	d.dispatchAll(ctx)

	_, token := srv.signup(t, "alice")
	srv.call(t, token, http.MethodPost, "/tasks", map[string]any{"description": "a"}, http.StatusCreated, nil)
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "task.created", received[0].Type)
	assert.True(t, strings.HasPrefix(sigs[0], "sha256="))
	assert.Equal(t, "sha256="+signPayload("s3cret", mustJSON(t, received[0])), sigs[0])
}

func TestEventFilter(t *testing.T) {
	f := newEventFilter([]string{"task.*", "user.deleted"})
	assert.True(t, f.match("task.updated"))
	assert.True(t, f.match("user.deleted"))
	assert.False(t, f.match("user.registered"))
	assert.True(t, newEventFilter(nil).match("anything"))
	assert.True(t, newEventFilter([]string{"*"}).match("anything"))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
