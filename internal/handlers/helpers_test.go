package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/todo-api/internal/auth"
	"github.com/yukikurage/todo-api/internal/models"
	"github.com/yukikurage/todo-api/internal/repository"
	"github.com/yukikurage/todo-api/internal/services"
	"github.com/yukikurage/todo-api/internal/testutil"
	"github.com/yukikurage/todo-api/internal/validation"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	testNow   = time.Date(2026, time.October, 14, 10, 30, 0, 0, time.UTC)
	testToday = models.DateOf(testNow)
)

type testServer struct {
	db     *gorm.DB
	router *gin.Engine
	tokens *auth.Manager
}

// newTestServer wires the full router against an in-memory database.
// Services see a fixed clock; tokens use the real one.
func newTestServer(t *testing.T, suggester services.TaskSuggester) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Register()

	db := testutil.NewTestDB(t)
	tokens := auth.NewManager(auth.Config{
		SecretKey:            "test-secret",
		Issuer:               "todo-api-test",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: time.Hour,
	}, nil)
	clock := func() time.Time { return testNow }

	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)

	r := gin.New()
	RegisterRoutes(r, Dependencies{
		AuthService:  services.NewAuthService(userRepo, tokens, auth.NewPasswordHasher(bcrypt.MinCost), nil),
		TaskService:  services.NewTaskService(taskRepo, nil, suggester, clock),
		StatsService: services.NewStatsService(taskRepo, nil, clock),
		Verifier:     tokens,
	})

	return &testServer{db: db, router: r, tokens: tokens}
}

func (s *testServer) tokenFor(t *testing.T, user *models.User) string {
	t.Helper()
	pair, err := s.tokens.IssuePair(identityOf(user))
	require.NoError(t, err)
	return pair.AccessToken
}

func identityOf(user *models.User) auth.Identity {
	return auth.Identity{UserID: user.ID, Username: user.Username}
}

// do sends body (marshalled unless it is a string) with an optional bearer token.
func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type errorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details"`
}

type taskBody struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
	Order       int    `json:"order"`
	Owner       string `json:"owner"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type listBody struct {
	Tasks      []taskBody `json:"tasks"`
	Pagination struct {
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Total int64 `json:"total"`
	} `json:"pagination"`
}
