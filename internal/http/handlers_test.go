package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/time/rate"
	gormlogger "gorm.io/gorm/logger"

	"github.com/screamboard/screamboard/internal/config"
	"github.com/screamboard/screamboard/internal/db"
	"github.com/screamboard/screamboard/internal/identity"
	"github.com/screamboard/screamboard/internal/scream"
	"github.com/screamboard/screamboard/internal/ws"
)

type stubMemes struct{}

func (stubMemes) Generate(_ context.Context, text string) (string, error) {
	return "https://i.imgflip.com/stub.jpg", nil
}

type HandlerSuite struct {
	suite.Suite
	router *gin.Engine
	board  *scream.Service
	hasher *identity.Hasher
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	database, err := db.Open(sqlite.Open(dsn), gormlogger.Silent)
	s.Require().NoError(err)
	sqlDB, err := database.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.T().Cleanup(func() { _ = sqlDB.Close() })
	s.Require().NoError(db.Migrate(database))

	// Wednesday of ISO week 2025-18.
	s.now = time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC)
	s.hasher = identity.NewHasher("test-salt")
	s.board = scream.NewService(database, scream.Options{
		Memes:        stubMemes{},
		ArchiveLimit: 10,
		Clock:        func() time.Time { return s.now },
	})

	env := &Env{Board: s.board, Hasher: s.hasher, Top: config.TopConfig{DefaultN: 3, MaxN: 5}}
	s.router = gin.New()
	SetupRoutes(s.router, env, ws.NewHub(), NewIPRateLimiter(rate.Inf, 1), "*")

	id := s.identity("1000")
	_, err = s.board.EnsureAdmin(context.Background(), id)
	s.Require().NoError(err)
}

func (s *HandlerSuite) identity(raw string) string {
	id, err := s.hasher.Hash(raw)
	s.Require().NoError(err)
	return id
}

func (s *HandlerSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder, dst interface{}) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), dst))
}

func (s *HandlerSuite) createScream(userID interface{}, content string) uint {
	w := s.do(http.MethodPost, "/api/screams", map[string]interface{}{"user_id": userID, "content": content})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		ScreamID uint `json:"scream_id"`
	}
	s.decode(w, &resp)
	return resp.ScreamID
}

func (s *HandlerSuite) TestPostReactAndTop() {
	id := s.createScream(111, "hello")

	w := s.do(http.MethodPost, "/api/react", map[string]interface{}{"user_id": 222, "scream_id": id, "emoji": "🔥"})
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/react", map[string]interface{}{"user_id": "222", "scream_id": id, "emoji": "👍"})
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/react", map[string]interface{}{"user_id": 222, "scream_id": 999, "emoji": "👍"})
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/top?n=1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var top struct {
		Screams []scream.TopPost `json:"screams"`
	}
	s.decode(w, &top)
	s.Require().Len(top.Screams, 1)
	s.Equal("hello", top.Screams[0].Content)
	s.EqualValues(1, top.Screams[0].Votes)
	s.Equal("https://i.imgflip.com/stub.jpg", top.Screams[0].MemeURL)

	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodGet, "/api/top?n=abc", nil).Code)
}

func (s *HandlerSuite) TestTopScreamsForPastDay() {
	id := s.createScream(111, "yesterday")
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/react", map[string]interface{}{"user_id": 222, "scream_id": id, "emoji": "🔥"}).Code)

	s.now = s.now.Add(24 * time.Hour)
	var top struct {
		Screams []scream.TopPost `json:"screams"`
	}

	w := s.do(http.MethodGet, "/api/top", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &top)
	s.Empty(top.Screams)

	w = s.do(http.MethodGet, "/api/top?start=2025-04-30", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(w, &top)
	s.Require().Len(top.Screams, 1)
	s.Equal("yesterday", top.Screams[0].Content)

	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodGet, "/api/top?start=30-04-2025", nil).Code)
}

func (s *HandlerSuite) TestCreateScreamValidation() {
	w := s.do(http.MethodPost, "/api/screams", map[string]interface{}{"user_id": 1, "content": ""})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/screams", map[string]interface{}{"content": "no user"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestFeed() {
	s.createScream(111, "mine")

	w := s.do(http.MethodGet, "/api/feed/111", nil)
	s.Equal(http.StatusNotFound, w.Code)
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	s.decode(w, &apiErr)
	s.Equal("NOT_FOUND", apiErr.Code)
	s.Equal("no more screams", apiErr.Message)

	w = s.do(http.MethodGet, "/api/feed/222", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var post ScreamResponse
	s.decode(w, &post)
	s.Equal("mine", post.Content)
}

func (s *HandlerSuite) TestStats() {
	s.createScream(111, "hello")

	w := s.do(http.MethodGet, "/api/stats/111", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var stats scream.UserStats
	s.decode(w, &stats)
	s.EqualValues(1, stats.PostsTotal)
	s.Equal(scream.NoReactionsLabel, stats.Emojis[0].Emoji)

	w = s.do(http.MethodGet, "/api/stress", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var series scream.DailySeries
	s.decode(w, &series)
	s.EqualValues(1, series.Counts[6])
}

func (s *HandlerSuite) TestAdminGate() {
	w := s.do(http.MethodPost, "/api/admin/screams", map[string]interface{}{})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/admin/screams", map[string]interface{}{"user_id": 5})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/history/2025-18", map[string]interface{}{"user_id": 5})
	s.Equal(http.StatusForbidden, w.Code)

	s.createScream(111, "pending")
	w = s.do(http.MethodPost, "/api/admin/screams", map[string]interface{}{"user_id": 1000})
	s.Require().Equal(http.StatusOK, w.Code)
	var list struct {
		Screams []ScreamResponse `json:"screams"`
	}
	s.decode(w, &list)
	s.Len(list.Screams, 1)
}

func (s *HandlerSuite) TestCreateAdmin() {
	body := map[string]interface{}{"user_id": 1000, "target_id": 2000}
	w := s.do(http.MethodPost, "/api/admin/create", body)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/admin/create", body)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"alreadyAdmin"}`, w.Body.String())

	ok, err := s.board.IsAdmin(context.Background(), s.identity("2000"))
	s.Require().NoError(err)
	s.True(ok)
}

func (s *HandlerSuite) TestModerationFlow() {
	id := s.createScream(111, "to delete")
	keep := s.createScream(111, "to confirm")

	w := s.do(http.MethodPost, "/api/admin/delete", map[string]interface{}{"user_id": 1000, "scream_id": id})
	s.Equal(http.StatusOK, w.Code)
	w = s.do(http.MethodPost, "/api/admin/delete", map[string]interface{}{"user_id": 1000, "scream_id": id})
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/admin/review/start", map[string]interface{}{"user_id": 1000})
	s.Require().Equal(http.StatusOK, w.Code)
	var item struct {
		Status string         `json:"status"`
		Scream ScreamResponse `json:"scream"`
		Total  int            `json:"total"`
	}
	s.decode(w, &item)
	s.Equal(keep, item.Scream.ID)
	s.Equal(1, item.Total)

	w = s.do(http.MethodPost, "/api/admin/review/step", map[string]interface{}{"user_id": 1000, "step": 2})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/admin/review/resolve", map[string]interface{}{"user_id": 1000, "action": "approve"})
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/api/admin/review/resolve", map[string]interface{}{"user_id": 1000, "action": "confirm"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"done"}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/admin/review/current", map[string]interface{}{"user_id": 1000})
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestArchiveEndpoints() {
	id := s.createScream(111, "best")
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/api/react", map[string]interface{}{"user_id": 222, "scream_id": id, "emoji": "🔥"}).Code)

	w := s.do(http.MethodPost, "/api/history/2025-18", map[string]interface{}{"user_id": 1000})
	s.Require().Equal(http.StatusCreated, w.Code)
	s.JSONEq(`{"status":"ok","week_id":"2025-18","archived":1}`, w.Body.String())

	for _, alias := range []string{"2025-18", "202518", "2025-W18"} {
		w = s.do(http.MethodPost, "/api/history/"+alias, map[string]interface{}{"user_id": 1000})
		s.Equal(http.StatusConflict, w.Code, alias)
	}

	w = s.do(http.MethodGet, "/api/history", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"weekId":"2025-18"`)

	w = s.do(http.MethodGet, "/api/history/2025-18", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"content":"best"`)

	w = s.do(http.MethodGet, "/api/history/2025W18", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"week_id":"2025-18"`)

	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodPost, "/api/history/2025-99", map[string]interface{}{"user_id": 1000}).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/history/2024-01", nil).Code)
	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodGet, "/api/history/nope", nil).Code)
}

func (s *HandlerSuite) TestOpsEndpoints() {
	w := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get("X-Request-ID"))
	s.Equal("DENY", w.Header().Get("X-Frame-Options"))

	w = s.do(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "screamboard_http_requests_total")
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewIPRateLimiter(rate.Every(time.Hour), 1)
	router := gin.New()
	router.POST("/x", RateLimitMiddleware(limiter), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	assert.Zero(t, limiter.Prune())
}

func TestPruneForgetsIdleVisitors(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Every(time.Hour), 1)
	limiter.GetLimiter("10.0.0.1")
	require.Equal(t, 1, limiter.Prune())
	assert.Empty(t, limiter.visitors)
}

func TestRawIDAcceptsNumbersAndStrings(t *testing.T) {
	var in userInput
	require.NoError(t, json.Unmarshal([]byte(`{"user_id": 12345}`), &in))
	assert.Equal(t, RawID("12345"), in.UserID)

	require.NoError(t, json.Unmarshal([]byte(`{"user_id": "abc"}`), &in))
	assert.Equal(t, RawID("abc"), in.UserID)

	assert.Error(t, json.Unmarshal([]byte(`{"user_id": true}`), &in))
}
