package handlers_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tasker/internal/app"
	"tasker/internal/config"
	"tasker/internal/database"
	"tasker/internal/handlers"
	"tasker/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testEnv struct {
	app *app.App
	db  *gorm.DB
}

// setupApp builds the application over a private in-memory SQLite database.
func setupApp(t *testing.T, csrfEnabled bool) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.Open(database.DriverSQLite, dsn, log)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	cfg := &config.Config{
		SecretKey:      "test_secret_key",
		DatabaseDriver: database.DriverSQLite,
		DatabaseDSN:    dsn,
		SessionTTL:     time.Hour,
		CSRFEnabled:    csrfEnabled,
		BcryptCost:     bcrypt.MinCost,
	}
	return &testEnv{
		app: app.New(app.Deps{Config: cfg, DB: db, Log: log}),
		db:  db,
	}
}

// client is a browser stand-in that keeps cookies between requests.
type client struct {
	t       *testing.T
	env     *testEnv
	cookies map[string]string
}

func (e *testEnv) newClient(t *testing.T) *client {
	return &client{t: t, env: e, cookies: map[string]string{}}
}

type response struct {
	status   int
	location string
	body     string
}

func (c *client) do(method, path string, form url.Values) response {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.env.app.Fiber.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	for _, cookie := range resp.Cookies() {
		if cookie.Value == "" || (!cookie.Expires.IsZero() && cookie.Expires.Before(time.Now())) {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie.Value
	}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return response{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(raw)}
}

func (c *client) get(path string) response {
	return c.do(http.MethodGet, path, nil)
}

func (c *client) post(path string, form url.Values) response {
	if form == nil {
		form = url.Values{}
	}
	if token, ok := c.cookies["csrf_"]; ok {
		form.Set("csrf_token", token)
	}
	return c.do(http.MethodPost, path, form)
}

func (c *client) register(username, email, password string) response {
	return c.post("/register", url.Values{
		"username":         {username},
		"email":            {email},
		"password":         {password},
		"confirm_password": {password},
	})
}

func (c *client) login(email, password string) response {
	return c.post("/login", url.Values{"email": {email}, "password": {password}})
}

func (c *client) signUpAndLogin(username, password string) {
	c.t.Helper()
	email := username + "@example.com"
	require.Equal(c.t, http.StatusFound, c.register(username, email, password).status)
	require.Equal(c.t, http.StatusFound, c.login(email, password).status)
}

func (e *testEnv) tasksOf(t *testing.T, username string) []models.Task {
	t.Helper()
	var user models.User
	require.NoError(t, e.db.First(&user, "username = ?", username).Error)
	tasks, err := e.app.Tasks.ListTasks(user.ID)
	require.NoError(t, err)
	return tasks
}

func TestTaskLifecycle(t *testing.T) {
	env := setupApp(t, false)
	alice := env.newClient(t)

	resp := alice.register("alice", "alice@example.com", "pw123")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/login?notice=registered", resp.location)

	resp = alice.login("alice@example.com", "pw123")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/tasks", resp.location)
	require.Contains(t, alice.cookies, "session")

	user, err := env.app.Auth.ResolveSession(alice.cookies["session"])
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	resp = alice.post("/tasks", url.Values{"title": {"Buy milk"}, "content": {"2%"}})
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/tasks?notice=created", resp.location)

	resp = alice.get("/tasks?notice=created")
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "Task created!")
	assert.Contains(t, resp.body, "Buy milk")
	assert.Contains(t, resp.body, "2%")

	tasks := env.tasksOf(t, "alice")
	require.Len(t, tasks, 1)
	taskID := tasks[0].ID

	resp = alice.get("/task/" + taskID + "/update")
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, `value="Buy milk"`)

	resp = alice.post("/task/"+taskID+"/update", url.Values{"title": {"Buy milk"}, "content": {"whole"}})
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/tasks?notice=updated", resp.location)

	resp = alice.get("/tasks")
	assert.Contains(t, resp.body, "whole")
	assert.NotContains(t, resp.body, "2%")

	resp = alice.post("/task/"+taskID+"/delete", nil)
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/tasks?notice=deleted", resp.location)

	resp = alice.get("/tasks")
	assert.Contains(t, resp.body, "No tasks yet.")
	assert.Empty(t, env.tasksOf(t, "alice"))
}

func TestRegister_DuplicateEmailRejected(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)

	require.Equal(t, http.StatusFound, c.register("alice", "alice@example.com", "pw123").status)

	resp := c.register("alice2", "alice@example.com", "pw456")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Contains(t, resp.body, "That email is already registered.")
	assert.Contains(t, resp.body, `value="alice2"`, "submitted values are re-displayed")

	resp = c.register("alice", "other@example.com", "pw456")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Contains(t, resp.body, "That username is taken.")

	var count int64
	require.NoError(t, env.db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRegister_ValidationErrors(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)

	resp := c.post("/register", url.Values{
		"username":         {"a"},
		"email":            {"not-an-email"},
		"password":         {"pw123"},
		"confirm_password": {"pw124"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Contains(t, resp.body, "Field must be between 2 and 20 characters long.")
	assert.Contains(t, resp.body, "Invalid email address.")
	assert.Contains(t, resp.body, "Field must be equal to password.")
	assert.NotContains(t, resp.body, "pw123", "passwords are never echoed back")

	var count int64
	require.NoError(t, env.db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)

	resp := c.register("alice", "alice@example.com", strings.Repeat("a", 80))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Contains(t, resp.body, "Field cannot be longer than 72 bytes.")
	assert.Contains(t, resp.body, `value="alice"`)

	var count int64
	require.NoError(t, env.db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	resp = c.register("alice", "alice@example.com", strings.Repeat("a", 72))
	assert.Equal(t, http.StatusFound, resp.status)
}

func TestLogin_GenericFailure(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)
	require.Equal(t, http.StatusFound, c.register("alice", "alice@example.com", "pw123").status)

	unknown := c.login("nobody@example.com", "pw123")
	wrong := c.login("alice@example.com", "wrong")

	assert.Equal(t, http.StatusUnauthorized, unknown.status)
	assert.Equal(t, http.StatusUnauthorized, wrong.status)
	assert.Contains(t, unknown.body, handlers.LoginFailedMessage)
	assert.Contains(t, wrong.body, handlers.LoginFailedMessage)
	assert.Equal(t,
		strings.Replace(unknown.body, "nobody@example.com", "alice@example.com", 1),
		wrong.body,
		"apart from the echoed email both failures render the same page")
	assert.NotContains(t, c.cookies, "session")
}

func TestProtectedRoutesRedirectAnonymous(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)

	resp := c.get("/tasks")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/login?next=%2Ftasks", resp.location)

	resp = c.post("/task/"+uuid.New().String()+"/delete", nil)
	assert.Equal(t, http.StatusFound, resp.status)
	assert.True(t, strings.HasPrefix(resp.location, "/login?next="))
}

func TestLogin_RedirectsToNext(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)
	require.Equal(t, http.StatusFound, c.register("alice", "alice@example.com", "pw123").status)

	resp := c.post("/login?next=%2Ftasks%3Fnotice%3Dcreated", url.Values{"email": {"alice@example.com"}, "password": {"pw123"}})
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/tasks?notice=created", resp.location)

	other := env.newClient(t)
	resp = other.post("/login?next=%2F%2Fevil.example.com", url.Values{"email": {"alice@example.com"}, "password": {"pw123"}})
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/tasks", resp.location)
}

func TestAuthenticatedUsersSkipAuthPages(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)
	c.signUpAndLogin("alice", "pw123")

	for _, path := range []string{"/register", "/login"} {
		resp := c.get(path)
		assert.Equal(t, http.StatusFound, resp.status, path)
		assert.Equal(t, "/tasks", resp.location, path)
	}
}

func TestLogout_InvalidatesSession(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)
	c.signUpAndLogin("alice", "pw123")
	stolen := c.cookies["session"]

	resp := c.get("/logout")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/", resp.location)
	assert.NotContains(t, c.cookies, "session")

	// Replaying the old cookie no longer authenticates.
	replay := env.newClient(t)
	replay.cookies["session"] = stolen
	resp = replay.get("/tasks")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.True(t, strings.HasPrefix(resp.location, "/login"))
}

func TestTamperedSessionIsAnonymous(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)
	c.signUpAndLogin("alice", "pw123")

	c.cookies["session"] += "x"
	resp := c.get("/tasks")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.NotContains(t, c.cookies, "session", "invalid cookie is cleared")
}

func TestExpiredSessionIsPurged(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)
	c.signUpAndLogin("alice", "pw123")

	require.NoError(t, env.db.Model(&models.Session{}).Where("1 = 1").
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	resp := c.get("/tasks")
	assert.Equal(t, http.StatusFound, resp.status)
	assert.Equal(t, "/login?next=%2Ftasks", resp.location)

	var count int64
	require.NoError(t, env.db.Model(&models.Session{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestOwnershipEnforced(t *testing.T) {
	env := setupApp(t, false)
	alice := env.newClient(t)
	alice.signUpAndLogin("alice", "pw123")
	bob := env.newClient(t)
	bob.signUpAndLogin("bob", "pw456")

	require.Equal(t, http.StatusFound, alice.post("/tasks", url.Values{"title": {"Secret plan"}, "content": {"hidden details"}}).status)
	require.Equal(t, http.StatusFound, bob.post("/tasks", url.Values{"title": {"Bob's chores"}, "content": {"laundry"}}).status)
	taskID := env.tasksOf(t, "alice")[0].ID

	resp := bob.get("/task/" + taskID + "/update")
	assert.Equal(t, http.StatusForbidden, resp.status)
	assert.NotContains(t, resp.body, "Secret plan")
	assert.NotContains(t, resp.body, "hidden details")

	resp = bob.post("/task/"+taskID+"/update", url.Values{"title": {"Hijacked"}, "content": {"mine now"}})
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = bob.post("/task/"+taskID+"/delete", nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	tasks := env.tasksOf(t, "alice")
	require.Len(t, tasks, 1)
	assert.Equal(t, "Secret plan", tasks[0].Title)
	assert.Equal(t, "hidden details", tasks[0].Content)

	// Each list shows only its owner's tasks.
	resp = bob.get("/tasks")
	assert.Contains(t, resp.body, "laundry")
	assert.NotContains(t, resp.body, "Secret plan")
	resp = alice.get("/tasks")
	assert.Contains(t, resp.body, "Secret plan")
	assert.NotContains(t, resp.body, "laundry")
}

func TestMissingTaskIsNotFound(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)
	c.signUpAndLogin("alice", "pw123")

	missing := uuid.New().String()
	assert.Equal(t, http.StatusNotFound, c.get("/task/"+missing+"/update").status)
	assert.Equal(t, http.StatusNotFound, c.post("/task/"+missing+"/update", url.Values{"title": {"t"}, "content": {"c"}}).status)
	assert.Equal(t, http.StatusNotFound, c.post("/task/"+missing+"/delete", nil).status)
}

func TestCreateTask_EmptyFieldsRejected(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)
	c.signUpAndLogin("alice", "pw123")
	require.Equal(t, http.StatusFound, c.post("/tasks", url.Values{"title": {"Keep"}, "content": {"me"}}).status)

	resp := c.post("/tasks", url.Values{"title": {""}, "content": {"something"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Contains(t, resp.body, "This field is required.")
	assert.Contains(t, resp.body, "something", "submitted content is kept")

	resp = c.post("/tasks", url.Values{"title": {"Title"}, "content": {"   "}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)

	assert.Len(t, env.tasksOf(t, "alice"), 1)
}

func TestUpdateTask_EmptyFieldsRejected(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)
	c.signUpAndLogin("alice", "pw123")
	require.Equal(t, http.StatusFound, c.post("/tasks", url.Values{"title": {"Buy milk"}, "content": {"2%"}}).status)
	taskID := env.tasksOf(t, "alice")[0].ID

	resp := c.post("/task/"+taskID+"/update", url.Values{"title": {"Buy milk"}, "content": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.status)
	assert.Contains(t, resp.body, "This field is required.")

	tasks := env.tasksOf(t, "alice")
	require.Len(t, tasks, 1)
	assert.Equal(t, "2%", tasks[0].Content)
}

func TestHomeAndHealth(t *testing.T) {
	env := setupApp(t, false)
	c := env.newClient(t)

	for _, path := range []string{"/", "/home"} {
		resp := c.get(path)
		assert.Equal(t, http.StatusOK, resp.status, path)
		assert.Contains(t, resp.body, "Create an account", path)
	}
	assert.Equal(t, http.StatusOK, c.post("/home", nil).status)

	resp := c.get("/health")
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, `"status":"healthy"`)
	assert.Contains(t, resp.body, `"database":"up"`)
}

func TestCSRFProtection(t *testing.T) {
	env := setupApp(t, true)
	c := env.newClient(t)

	// A POST without a token is refused before reaching the handler.
	resp := c.do(http.MethodPost, "/register", url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"password":         {"pw123"},
		"confirm_password": {"pw123"},
	})
	assert.Equal(t, http.StatusForbidden, resp.status)

	var count int64
	require.NoError(t, env.db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	// Fetching the form issues the token which the form then echoes back.
	resp = c.get("/register")
	require.Equal(t, http.StatusOK, resp.status)
	token := c.cookies["csrf_"]
	require.NotEmpty(t, token)
	assert.Contains(t, resp.body, `name="csrf_token" value="`+token+`"`)

	resp = c.register("alice", "alice@example.com", "pw123")
	assert.Equal(t, http.StatusFound, resp.status)
}
