package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/research-writer/pkg/database"
	"github.com/mikeboe/research-writer/pkg/lease"
	"github.com/mikeboe/research-writer/pkg/memstore"
	"github.com/mikeboe/research-writer/pkg/metrics"
	"github.com/mikeboe/research-writer/pkg/research"
)

// cannedModel answers every call with the same text, streamed in one piece.
type cannedModel struct{ reply string }

func (m cannedModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	if opts.StreamingFunc != nil {
		if err := opts.StreamingFunc(ctx, []byte(m.reply)); err != nil {
			return nil, err
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m cannedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

type staticSearcher struct {
	mu      sync.Mutex
	regions []string
}

func (s *staticSearcher) Search(_ context.Context, term, region string) ([]research.SearchResult, error) {
	s.mu.Lock()
	s.regions = append(s.regions, region)
	s.mu.Unlock()
	return []research.SearchResult{{Title: term, URL: "https://example.com/" + strings.ReplaceAll(term, " ", "-")}}, nil
}

type fakeLogs struct{ entries []database.LogEntry }

func (f fakeLogs) JobLogs(context.Context, string) ([]database.LogEntry, error) { return f.entries, nil }

type testServer struct {
	engine   *gin.Engine
	store    *memstore.MemoryStore
	searcher *staticSearcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memstore.New()
	searcher := &staticSearcher{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	p, err := research.NewPipeline(research.Deps{
		Store: store,
		Lease: lease.NewMemory(time.Minute),
		Models: research.Models{
			Fast:      cannedModel{reply: "follow up term"},
			Reasoning: cannedModel{reply: "NO_GAPS_FOUND"},
			Writer:    cannedModel{reply: "Solar grew [1]."},
		},
		Searcher: searcher,
		Logger:   logger,
	}, research.DefaultConfig())
	require.NoError(t, err)

	logs := fakeLogs{entries: []database.LogEntry{{ID: 1, Level: "INFO", Message: "Job submitted", Metadata: json.RawMessage(`{}`)}}}
	svc := NewService(p, store, logs, metrics.New(), logger)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r)
	return &testServer{engine: r, store: store, searcher: searcher}
}

func (s *testServer) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Jobs(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/jobs", `{"topic":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	rec = s.do(http.MethodPost, "/api/jobs", `{"topic":"solar","kind":"podcast"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/jobs", `{"topic":"solar storage","region":"de"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var job research.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, research.StatusPending, job.Status)
	assert.Equal(t, research.KindArticle, job.Kind)
	assert.Equal(t, "DE", job.Region)

	rec = s.do(http.MethodGet, "/api/jobs/"+job.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/jobs/"+job.ID+"/logs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Job submitted")

	rec = s.do(http.MethodGet, "/api/jobs/missing/logs", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_StreamJob(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/jobs/missing/stream", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/jobs", `{"topic":"solar storage"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var job research.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	rec = s.do(http.MethodGet, "/api/jobs/"+job.ID+"/stream", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: breakdown\n")
	assert.Contains(t, body, "event: blog_part\n")
	assert.True(t, strings.HasSuffix(body, "\n\n"))
	assert.Contains(t, body, "event: complete\n")
	assert.Contains(t, body, research.ArticleDone)

	// A finished job replays its final event.
	rec = s.do(http.MethodGet, "/api/jobs/"+job.ID+"/stream", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "event: complete\n"))
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "event: "))
}

func TestHandler_StreamSearchWithChat(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/chats", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/chats", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var session research.ChatSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.ID)

	rec = s.do(http.MethodGet, "/api/stream-search?query=solar+storage&chat_id="+session.ID, "", "X-Region", "gb")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "event: summary_part\n")
	assert.Contains(t, body, research.AnswerDone)
	assert.Contains(t, body, "[[1](https://example.com/")
	assert.Contains(t, s.searcher.regions, "GB")

	rec = s.do(http.MethodGet, "/api/chats/"+session.ID+"/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var turns []research.HistoryTurn
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turns))
	require.Len(t, turns, 1)
	assert.Equal(t, "solar storage", turns[0].Query)

	rec = s.do(http.MethodGet, "/api/stream-search?query=", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Metrics(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "research_writer_active_streams")
}
