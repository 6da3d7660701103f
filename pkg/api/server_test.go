package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventscout/eventscout/pkg/cache"
	"github.com/eventscout/eventscout/pkg/models"
)

type stubPipeline struct {
	result *models.SearchResult
	params models.SearchParams
	calls  int
}

func (s *stubPipeline) Run(_ context.Context, params models.SearchParams) *models.SearchResult {
	s.calls++
	s.params = params
	if s.result != nil {
		return s.result
	}
	return &models.SearchResult{
		Events:   []models.EventCandidate{},
		Metadata: models.SearchMetadata{RequestID: "test"},
		Logs:     []models.StageLog{},
	}
}

func newTestServer(t *testing.T, pipeline *stubPipeline) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := cache.NewStore(10, 0)
	t.Cleanup(store.Close)

	return NewServer(Deps{
		Pipeline: pipeline,
		Caches:   map[string]*cache.Store{"search": store},
	}).Router()
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSearch_Success(t *testing.T) {
	pipeline := &stubPipeline{result: &models.SearchResult{
		Events: []models.EventCandidate{
			{URL: "https://kongress.de/2025", Title: "Kongress", Confidence: 0.8},
		},
		Metadata: models.SearchMetadata{RequestID: "r1", SolidCandidates: 1},
		Logs:     []models.StageLog{{Stage: "discovery", Timestamp: time.Now()}},
	}}
	router := newTestServer(t, pipeline)

	w := doRequest(router, http.MethodPost, "/api/v1/search",
		`{"user_text":"legal compliance","country":"DE","date_from":"2025-03-01","date_to":"2025-03-31"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, pipeline.calls)
	assert.Equal(t, "legal compliance", pipeline.params.UserText)

	var result models.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Events, 1)
	assert.Equal(t, "https://kongress.de/2025", result.Events[0].URL)
}

func TestSearch_InvalidBody(t *testing.T) {
	router := newTestServer(t, &stubPipeline{})

	w := doRequest(router, http.MethodPost, "/api/v1/search", `{not json`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestSearch_ValidationFailure(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty query", `{"user_text":"","date_from":"2025-03-01","date_to":"2025-03-31"}`, "user_text"},
		{"bad country", `{"user_text":"x","country":"Germany","date_from":"2025-03-01","date_to":"2025-03-31"}`, "country"},
		{"bad date", `{"user_text":"x","date_from":"03/01/2025","date_to":"2025-03-31"}`, "date_from"},
		{"inverted window", `{"user_text":"x","date_from":"2025-04-01","date_to":"2025-03-01"}`, "after"},
	}

	pipeline := &stubPipeline{}
	router := newTestServer(t, pipeline)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/api/v1/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
	assert.Zero(t, pipeline.calls, "invalid requests never reach the pipeline")
}

func TestHealth_NoDatabaseIsDegraded(t *testing.T) {
	router := newTestServer(t, &stubPipeline{})

	w := doRequest(router, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusDegraded, resp.Status)
	assert.Equal(t, healthStatusDegraded, resp.Checks["database"].Status)
	assert.NotEmpty(t, resp.Version)
}

func TestStats_ReportsCaches(t *testing.T) {
	router := newTestServer(t, &stubPipeline{})

	w := doRequest(router, http.MethodGet, "/stats", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Contains(t, resp.Caches, "search")
}

func TestSecurityHeaders(t *testing.T) {
	router := newTestServer(t, &stubPipeline{})

	w := doRequest(router, http.MethodGet, "/health", "")

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestServer(t, &stubPipeline{})

	w := doRequest(router, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
