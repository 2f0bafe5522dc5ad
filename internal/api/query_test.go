package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectern/lectern/internal/chat"
	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/log"
)

// stubService implements QueryService and StatsService.
type stubService struct {
	resp      chat.Response
	queryErr  error
	stats     index.Stats
	statsErr  error
	lastQuery string
	lastSID   string
}

func (s *stubService) Query(ctx context.Context, text, sessionID string) (chat.Response, error) {
	s.lastQuery = text
	s.lastSID = sessionID
	if s.queryErr != nil {
		return chat.Response{}, s.queryErr
	}
	return s.resp, nil
}

func (s *stubService) CourseStats(ctx context.Context) (index.Stats, error) {
	if s.statsErr != nil {
		return index.Stats{}, s.statsErr
	}
	return s.stats, nil
}

func newTestMux(svc *stubService) *http.ServeMux {
	mux := http.NewServeMux()
	NewQueryHandler(svc, log.NewNop()).RegisterRoutes(mux)
	NewCoursesHandler(svc, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func postQuery(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleQuery(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &stubService{resp: chat.Response{
			Answer:    "MCP servers expose tools.",
			Sources:   []string{"Introduction to MCP - Lesson 1"},
			SessionID: "sess-1",
		}}
		rec := postQuery(t, newTestMux(svc), `{"query":"What do MCP servers do?","session_id":"sess-1"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var got QueryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "MCP servers expose tools.", got.Answer)
		assert.Equal(t, []string{"Introduction to MCP - Lesson 1"}, got.Sources)
		assert.Equal(t, "sess-1", got.SessionID)
		assert.Equal(t, "What do MCP servers do?", svc.lastQuery)
		assert.Equal(t, "sess-1", svc.lastSID)
	})

	t.Run("sources never null", func(t *testing.T) {
		svc := &stubService{resp: chat.Response{Answer: "direct", SessionID: "s"}}
		rec := postQuery(t, newTestMux(svc), `{"query":"hi"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"sources":[]`)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		rec := postQuery(t, newTestMux(&stubService{}), `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing query", func(t *testing.T) {
		rec := postQuery(t, newTestMux(&stubService{}), `{"query":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("service failure is generic", func(t *testing.T) {
		svc := &stubService{queryErr: errors.New("pgx: connection refused at 10.0.0.5")}
		rec := postQuery(t, newTestMux(svc), `{"query":"q"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "10.0.0.5", "internal detail must not leak")
		assert.Contains(t, rec.Body.String(), "failed to process query")
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
		rec := httptest.NewRecorder()
		newTestMux(&stubService{}).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandleCourses(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &stubService{stats: index.Stats{
			TotalCourses: 2,
			CourseTitles: []string{"Advanced Retrieval", "Introduction to MCP"},
		}}
		req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
		rec := httptest.NewRecorder()
		newTestMux(svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var got index.Stats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 2, got.TotalCourses)
		assert.Equal(t, []string{"Advanced Retrieval", "Introduction to MCP"}, got.CourseTitles)
	})

	t.Run("empty catalog yields empty array", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
		rec := httptest.NewRecorder()
		newTestMux(&stubService{}).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"course_titles":[]`)
	})

	t.Run("failure", func(t *testing.T) {
		svc := &stubService{statsErr: errors.New("db down")}
		req := httptest.NewRequest(http.MethodGet, "/api/courses", nil)
		rec := httptest.NewRecorder()
		newTestMux(svc).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := chain(panicky, recoveryMiddleware(log.NewNop()), loggingMiddleware(log.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "internal server error"))
}
