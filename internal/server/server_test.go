package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tasklist/internal/auth"
	"tasklist/internal/domain/errors"
	"tasklist/internal/domain/models"
	storage "tasklist/repository/inmemory"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) GetTaskByOwner(ctx context.Context, id, ownerID string) (*models.Task, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskRepository) ListTasks(ctx context.Context, ownerID string, opts models.ListOptions) ([]models.Task, error) {
	args := m.Called(ctx, ownerID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Task), args.Error(1)
}

func (m *MockTaskRepository) CountTasks(ctx context.Context, ownerID string) (models.TaskCounts, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(models.TaskCounts), args.Error(1)
}

func (m *MockTaskRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *MockTaskRepository) DeleteTask(ctx context.Context, id, ownerID string) error {
	args := m.Called(ctx, id, ownerID)
	return args.Error(0)
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  []errors.FieldError `json:"errors"`
	Error   string              `json:"error"`
}

func testConfig() *Config {
	return &Config{JWTSecret: testSecret, BcryptCost: 4}
}

func newTestAPI(t *testing.T) *TaskAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewStorage()
	api := NewTaskAPI(store, store, testConfig())
	require.NotNil(t, api)
	return api
}

func doRequest(api *TaskAPI, method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		jsonData, _ := json.Marshal(b)
		reader = bytes.NewReader(jsonData)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	api.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// registerUser signs a user up and returns the user id and bearer token.
func registerUser(t *testing.T, api *TaskAPI, email string) (string, string) {
	t.Helper()

	w := doRequest(api, http.MethodPost, "/api/auth/register", models.RegisterRequest{
		Name: "Test User", Email: email, Password: "Secret1",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result models.AuthResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &result))
	return result.User.ID, result.Token
}

func createTask(t *testing.T, api *TaskAPI, token, title string) models.Task {
	t.Helper()

	w := doRequest(api, http.MethodPost, "/api/tasks", models.CreateTaskRequest{Title: title}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		Task models.Task `json:"task"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	return data.Task
}

func TestNewTaskAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := storage.NewStorage()

	assert.Nil(t, NewTaskAPI(nil, store, testConfig()))
	assert.Nil(t, NewTaskAPI(store, nil, testConfig()))

	api := NewTaskAPI(store, store, nil)
	require.NotNil(t, api)
	assert.NotNil(t, api.httpSrv)
	assert.Equal(t, "0.0.0.0:8080", api.httpSrv.Addr)
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		request any
		setup   func(*testing.T, *TaskAPI)
		want    struct {
			statusCode int
			message    string
			fields     []string
		}
	}{
		{
			name:    "successful registration",
			request: models.RegisterRequest{Name: "Ann Smith", Email: "ann@example.com", Password: "Secret1"},
			setup:   func(*testing.T, *TaskAPI) {},
			want: struct {
				statusCode int
				message    string
				fields     []string
			}{statusCode: http.StatusCreated, message: "user registered successfully"},
		},
		{
			name:    "duplicate email",
			request: models.RegisterRequest{Name: "Ann Smith", Email: "ANN@example.com", Password: "Secret1"},
			setup: func(t *testing.T, api *TaskAPI) {
				registerUser(t, api, "ann@example.com")
			},
			want: struct {
				statusCode int
				message    string
				fields     []string
			}{statusCode: http.StatusBadRequest, message: errors.ErrDuplicateEmail.Error()},
		},
		{
			name:    "invalid input data",
			request: models.RegisterRequest{Name: "R2D2", Email: "invalid-email", Password: "123"},
			setup:   func(*testing.T, *TaskAPI) {},
			want: struct {
				statusCode int
				message    string
				fields     []string
			}{
				statusCode: http.StatusBadRequest,
				message:    errors.ErrValidationFailed.Error(),
				fields:     []string{"name", "email", "password"},
			},
		},
		{
			name:    "weak password",
			request: models.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "secret1"},
			setup:   func(*testing.T, *TaskAPI) {},
			want: struct {
				statusCode int
				message    string
				fields     []string
			}{
				statusCode: http.StatusBadRequest,
				message:    errors.ErrValidationFailed.Error(),
				fields:     []string{"password"},
			},
		},
		{
			name:    "invalid JSON in request",
			request: "invalid json",
			setup:   func(*testing.T, *TaskAPI) {},
			want: struct {
				statusCode int
				message    string
				fields     []string
			}{statusCode: http.StatusBadRequest, message: "invalid user data"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			tt.setup(t, api)

			w := doRequest(api, http.MethodPost, "/api/auth/register", tt.request, "")

			assert.Equal(t, tt.want.statusCode, w.Code)
			env := decode(t, w)
			assert.Equal(t, tt.want.statusCode == http.StatusCreated, env.Success)
			assert.Equal(t, tt.want.message, env.Message)
			assert.NotContains(t, w.Body.String(), "$2a$", "password hash must not leak")

			var fields []string
			for _, f := range env.Errors {
				fields = append(fields, f.Field)
				if f.Field == "password" {
					assert.Nil(t, f.Value)
				}
			}
			assert.Equal(t, tt.want.fields, fields)

			if env.Success {
				var result models.AuthResult
				require.NoError(t, json.Unmarshal(env.Data, &result))
				assert.NotEmpty(t, result.Token)
				assert.Equal(t, "ann@example.com", result.User.Email)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t)
	userID, _ := registerUser(t, api, "ann@example.com")

	tests := []struct {
		name    string
		request any
		want    struct {
			statusCode int
			message    string
		}
	}{
		{
			name:    "successful login",
			request: models.LoginRequest{Email: "Ann@Example.com", Password: "Secret1"},
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusOK, message: "login successful"},
		},
		{
			name:    "wrong password",
			request: models.LoginRequest{Email: "ann@example.com", Password: "Wrong1"},
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusUnauthorized, message: errors.ErrInvalidCredentials.Error()},
		},
		{
			name:    "unknown email",
			request: models.LoginRequest{Email: "bob@example.com", Password: "Secret1"},
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusUnauthorized, message: errors.ErrInvalidCredentials.Error()},
		},
		{
			name:    "missing password",
			request: map[string]string{"email": "ann@example.com"},
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusBadRequest, message: errors.ErrValidationFailed.Error()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(api, http.MethodPost, "/api/auth/login", tt.request, "")

			assert.Equal(t, tt.want.statusCode, w.Code)
			env := decode(t, w)
			assert.Equal(t, tt.want.message, env.Message)

			if tt.want.statusCode == http.StatusOK {
				var result models.AuthResult
				require.NoError(t, json.Unmarshal(env.Data, &result))
				assert.Equal(t, userID, result.User.ID)

				profile := doRequest(api, http.MethodGet, "/api/auth/profile", nil, result.Token)
				assert.Equal(t, http.StatusOK, profile.Code)
			}
		})
	}
}

func TestAuthGuard(t *testing.T) {
	api := newTestAPI(t)
	userID, token := registerUser(t, api, "ann@example.com")

	expired, err := auth.NewTokenService([]byte(testSecret), time.Hour).
		WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }).
		Issue(userID)
	require.NoError(t, err)
	foreignSigned, err := auth.NewTokenService([]byte("other-secret"), time.Hour).Issue(userID)
	require.NoError(t, err)
	unknownUser, err := auth.NewTokenService([]byte(testSecret), time.Hour).Issue(uuid.New().String())
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   struct {
			statusCode int
			message    string
		}
	}{
		{
			name:   "valid token",
			header: "Bearer " + token,
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusOK, message: "profile retrieved successfully"},
		},
		{
			name:   "missing header",
			header: "",
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusUnauthorized, message: errors.ErrMissingAuthHeader.Error()},
		},
		{
			name:   "wrong scheme",
			header: "Token " + token,
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusUnauthorized, message: errors.ErrMalformedAuthHeader.Error()},
		},
		{
			name:   "empty token",
			header: "Bearer    ",
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusUnauthorized, message: errors.ErrEmptyToken.Error()},
		},
		{
			name:   "garbage token",
			header: "Bearer not.a.token",
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusUnauthorized, message: errors.ErrInvalidToken.Error()},
		},
		{
			name:   "token signed with another secret",
			header: "Bearer " + foreignSigned,
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusUnauthorized, message: errors.ErrInvalidToken.Error()},
		},
		{
			name:   "expired token",
			header: "Bearer " + expired,
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusUnauthorized, message: errors.ErrTokenExpired.Error()},
		},
		{
			name:   "token of unknown user",
			header: "Bearer " + unknownUser,
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusUnauthorized, message: errors.ErrTokenUserNotFound.Error()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/api/auth/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			api.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.want.statusCode, w.Code)
			env := decode(t, w)
			assert.Equal(t, tt.want.message, env.Message)

			if tt.want.statusCode == http.StatusOK {
				var data struct {
					User models.User `json:"user"`
				}
				require.NoError(t, json.Unmarshal(env.Data, &data))
				assert.Equal(t, userID, data.User.ID)
				assert.Empty(t, data.User.Password)
			}
		})
	}
}

func TestOptionalGuard(t *testing.T) {
	api := newTestAPI(t)
	userID, token := registerUser(t, api, "ann@example.com")

	router, ok := api.Handler().(*gin.Engine)
	require.True(t, ok)
	router.GET("/test/optional", api.guard.Optional(), func(ctx *gin.Context) {
		id, _ := auth.UserIDFromContext(ctx.Request.Context())
		ctx.JSON(http.StatusOK, gin.H{"userId": id})
	})

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "authenticated", token: token, want: userID},
		{name: "invalid token continues anonymously", token: "garbage", want: ""},
		{name: "no token", token: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(api, http.MethodGet, "/test/optional", nil, tt.token)
			require.Equal(t, http.StatusOK, w.Code)

			var got map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got["userId"])
		})
	}
}

func TestTaskLifecycle(t *testing.T) {
	api := newTestAPI(t)
	userID, token := registerUser(t, api, "ann@example.com")

	task := createTask(t, api, token, "  Buy milk  ")
	assert.Equal(t, "Buy milk", task.Title)
	assert.Equal(t, userID, task.OwnerID)
	assert.False(t, task.Completed)

	w := doRequest(api, http.MethodGet, "/api/tasks/"+task.ID, nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "task retrieved successfully", decode(t, w).Message)

	w = doRequest(api, http.MethodPut, "/api/tasks/"+task.ID, map[string]any{"description": "oat", "completed": true}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated struct {
		Task models.Task `json:"task"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &updated))
	assert.Equal(t, "Buy milk", updated.Task.Title)
	assert.Equal(t, "oat", updated.Task.Description)
	assert.True(t, updated.Task.Completed)

	w = doRequest(api, http.MethodPatch, "/api/tasks/"+task.ID+"/toggle", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "task marked as pending", decode(t, w).Message)

	w = doRequest(api, http.MethodPatch, "/api/tasks/"+task.ID+"/toggle", nil, token)
	assert.Equal(t, "task marked as completed", decode(t, w).Message)

	w = doRequest(api, http.MethodDelete, "/api/tasks/"+task.ID, nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "task deleted successfully", decode(t, w).Message)

	w = doRequest(api, http.MethodGet, "/api/tasks/"+task.ID, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrTaskNotFound.Error(), decode(t, w).Message)
}

func TestTaskIsolation(t *testing.T) {
	api := newTestAPI(t)
	_, aliceToken := registerUser(t, api, "alice@example.com")
	_, bobToken := registerUser(t, api, "bob@example.com")

	task := createTask(t, api, aliceToken, "Alice only")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "get", method: http.MethodGet, path: "/api/tasks/" + task.ID},
		{name: "update", method: http.MethodPut, path: "/api/tasks/" + task.ID, body: map[string]string{"title": "Bob's"}},
		{name: "toggle", method: http.MethodPatch, path: "/api/tasks/" + task.ID + "/toggle"},
		{name: "delete", method: http.MethodDelete, path: "/api/tasks/" + task.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(api, tt.method, tt.path, tt.body, bobToken)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, errors.ErrTaskNotFound.Error(), decode(t, w).Message)
		})
	}

	w := doRequest(api, http.MethodGet, "/api/tasks", nil, bobToken)
	require.Equal(t, http.StatusOK, w.Code)
	var page models.TaskPage
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &page))
	assert.Empty(t, page.Tasks)
	assert.Equal(t, 0, page.Pagination.Total)

	w = doRequest(api, http.MethodGet, "/api/tasks/"+task.ID, nil, aliceToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Alice only")
	assert.NotContains(t, w.Body.String(), `"completed":true`)
}

func TestTaskValidation(t *testing.T) {
	api := newTestAPI(t)
	_, token := registerUser(t, api, "ann@example.com")
	task := createTask(t, api, token, "Existing")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   struct {
			statusCode int
			fields     []string
		}
	}{
		{
			name:   "missing title",
			method: http.MethodPost,
			path:   "/api/tasks",
			body:   map[string]string{"description": "no title"},
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest, fields: []string{"title"}},
		},
		{
			name:   "blank title",
			method: http.MethodPost,
			path:   "/api/tasks",
			body:   map[string]string{"title": "   "},
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest, fields: []string{"title"}},
		},
		{
			name:   "title of 201 characters",
			method: http.MethodPost,
			path:   "/api/tasks",
			body:   map[string]string{"title": strings.Repeat("a", 201)},
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest, fields: []string{"title"}},
		},
		{
			name:   "title of 200 characters",
			method: http.MethodPost,
			path:   "/api/tasks",
			body:   map[string]string{"title": strings.Repeat("a", 200)},
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusCreated},
		},
		{
			name:   "update with blank title",
			method: http.MethodPut,
			path:   "/api/tasks/" + task.ID,
			body:   map[string]string{"title": " "},
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest, fields: []string{"title"}},
		},
		{
			name:   "malformed task id",
			method: http.MethodGet,
			path:   "/api/tasks/not-a-uuid",
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest, fields: []string{"id"}},
		},
		{
			name:   "non numeric page",
			method: http.MethodGet,
			path:   "/api/tasks?page=abc",
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest, fields: []string{"page"}},
		},
		{
			name:   "zero limit",
			method: http.MethodGet,
			path:   "/api/tasks?limit=0",
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest, fields: []string{"limit"}},
		},
		{
			name:   "limit above maximum",
			method: http.MethodGet,
			path:   "/api/tasks?limit=101",
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest, fields: []string{"limit"}},
		},
		{
			name:   "unknown sort field",
			method: http.MethodGet,
			path:   "/api/tasks?sortBy=password&sortOrder=up",
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest, fields: []string{"sortBy", "sortOrder"}},
		},
		{
			name:   "page whose offset overflows",
			method: http.MethodGet,
			path:   "/api/tasks?page=9223372036854775807&limit=100",
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest, fields: []string{"page"}},
		},
		{
			name:   "non boolean completed",
			method: http.MethodPut,
			path:   "/api/tasks/" + task.ID,
			body:   map[string]any{"completed": "yes"},
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest, fields: []string{"completed"}},
		},
		{
			name:   "numeric title",
			method: http.MethodPost,
			path:   "/api/tasks",
			body:   map[string]any{"title": 42},
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest, fields: []string{"title"}},
		},
		{
			name:   "malformed json",
			method: http.MethodPost,
			path:   "/api/tasks",
			body:   `{"title":`,
			want: struct {
				statusCode int
				fields     []string
			}{statusCode: http.StatusBadRequest},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(api, tt.method, tt.path, tt.body, token)

			assert.Equal(t, tt.want.statusCode, w.Code, w.Body.String())
			env := decode(t, w)
			var fields []string
			for _, f := range env.Errors {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.want.fields, fields)
		})
	}
}

func TestUpdateTaskTypeMismatch(t *testing.T) {
	api := newTestAPI(t)
	_, token := registerUser(t, api, "ann@example.com")
	task := createTask(t, api, token, "Existing")

	w := doRequest(api, http.MethodPut, "/api/tasks/"+task.ID, map[string]any{"completed": "yes"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)

	env := decode(t, w)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "completed", env.Errors[0].Field)
	assert.Equal(t, "completed must be a boolean", env.Errors[0].Message)

	w = doRequest(api, http.MethodGet, "/api/tasks/"+task.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Task models.Task `json:"task"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.False(t, data.Task.Completed, "rejected update leaves the task untouched")
}

func TestGetTasksPagination(t *testing.T) {
	api := newTestAPI(t)
	_, token := registerUser(t, api, "ann@example.com")

	for i := 0; i < 12; i++ {
		task := createTask(t, api, token, string(rune('A'+i))+" task")
		if i < 4 {
			w := doRequest(api, http.MethodPatch, "/api/tasks/"+task.ID+"/toggle", nil, token)
			require.Equal(t, http.StatusOK, w.Code)
		}
	}

	w := doRequest(api, http.MethodGet, "/api/tasks?page=2&limit=5&sortBy=title&sortOrder=asc", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env := decode(t, w)
	assert.Equal(t, "tasks retrieved successfully", env.Message)

	var page models.TaskPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Tasks, 5)
	for i, task := range page.Tasks {
		assert.Equal(t, string(rune('F'+i))+" task", task.Title)
	}
	assert.Equal(t, models.Pagination{Total: 12, Completed: 4, Pending: 8, Page: 2, Limit: 5}, page.Pagination)

	w = doRequest(api, http.MethodGet, "/api/tasks", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &page))
	assert.Len(t, page.Tasks, 10)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 10, page.Pagination.Limit)
}

func TestServerErrorHandling(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        struct {
			detail bool
		}
	}{
		{
			name:        "development exposes detail",
			environment: EnvDevelopment,
			want: struct {
				detail bool
			}{detail: true},
		},
		{
			name:        "production hides detail",
			environment: EnvProduction,
			want: struct {
				detail bool
			}{detail: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gin.SetMode(gin.TestMode)
			gin.SetMode(gin.TestMode)

			users := storage.NewStorage()
			tasks := &MockTaskRepository{}
			tasks.On("CreateTask", mock.Anything, mock.AnythingOfType("*models.Task")).
				Return(stderrors.New("connection reset by peer"))

			cfg := testConfig()
			cfg.Environment = tt.environment
			api := NewTaskAPI(users, tasks, cfg)
			require.NotNil(t, api)
			_, token := registerUser(t, api, "ann@example.com")

			w := doRequest(api, http.MethodPost, "/api/tasks", models.CreateTaskRequest{Title: "Doomed"}, token)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, errors.ErrInternalServer.Error(), env.Message)
			if tt.want.detail {
				assert.Contains(t, env.Error, "connection reset by peer")
			} else {
				assert.Empty(t, env.Error)
			}
			tasks.AssertExpectations(t)
		})
	}
}

func TestRoutingFallbacks(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   struct {
			statusCode int
			message    string
		}
	}{
		{
			name:   "unknown route",
			method: http.MethodGet,
			path:   "/api/unknown",
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusNotFound, message: "route /api/unknown not found"},
		},
		{
			name:   "method not allowed",
			method: http.MethodDelete,
			path:   "/api/tasks",
			want: struct {
				statusCode int
				message    string
			}{statusCode: http.StatusMethodNotAllowed, message: "method DELETE not allowed on /api/tasks"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(api, tt.method, tt.path, nil, "")

			assert.Equal(t, tt.want.statusCode, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, tt.want.message, env.Message)
		})
	}
}

func TestIndexAndHealth(t *testing.T) {
	api := newTestAPI(t)

	w := doRequest(api, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "PATCH /api/tasks/:id/toggle")

	w = doRequest(api, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "server is running", env.Message)

	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, EnvDevelopment, data["environment"])
	_, err := time.Parse(time.RFC3339, data["timestamp"])
	assert.NoError(t, err)
}

func TestServerShutdown(t *testing.T) {
	api := newTestAPI(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, api.Shutdown(ctx))
}

func BenchmarkGetTasks(b *testing.B) {
	gin.SetMode(gin.TestMode)
	store := storage.NewStorage()
	api := NewTaskAPI(store, store, testConfig())

	user := &models.User{Name: "Bench", Email: "bench@example.com", Password: "x"}
	_ = store.CreateUser(context.Background(), user)
	for i := 0; i < 50; i++ {
		_ = store.CreateTask(context.Background(), &models.Task{Title: "Task", OwnerID: user.ID})
	}
	token, _ := auth.NewTokenService([]byte(testSecret), time.Hour).Issue(user.ID)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doRequest(api, http.MethodGet, "/api/tasks", nil, token)
	}
}
