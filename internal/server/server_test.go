package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/app"
	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/handlers"
	"github.com/ternarybob/trackscope/internal/services/report"
	"github.com/ternarybob/trackscope/internal/services/scan"
	"github.com/ternarybob/trackscope/internal/services/stream"
)

type idleRunner struct{}

func (idleRunner) Run(ctx context.Context, req scan.Request, pub *stream.Publisher) error {
	pub.Close()
	return nil
}

func newTestServer() *Server {
	config := common.NewDefaultConfig()
	logger := arbor.NewLogger()
	return New(&app.App{
		Config:         config,
		Logger:         logger,
		APIHandler:     handlers.NewAPIHandler(logger),
		AnalyzeHandler: handlers.NewAnalyzeHandler(idleRunner{}, config.Stream, logger),
		ReportHandler:  handlers.NewReportHandler(report.NewService(logger), logger),
		ConfigHandler:  handlers.NewConfigHandler(config, logger),
	})
}

func TestRoutes(t *testing.T) {
	handler := newTestServer().Handler()

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"health", http.MethodGet, "/api/health", http.StatusOK},
		{"version", http.MethodGet, "/api/version", http.StatusOK},
		{"devices", http.MethodGet, "/api/devices", http.StatusOK},
		{"config", http.MethodGet, "/api/config", http.StatusOK},
		{"stream without url", http.MethodGet, "/api/analyze/stream", http.StatusBadRequest},
		{"report needs post", http.MethodGet, "/api/report/pdf", http.StatusMethodNotAllowed},
		{"unknown", http.MethodGet, "/api/nothing", http.StatusNotFound},
		{"preflight", http.MethodOptions, "/api/analyze/stream", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestStreamThroughMiddlewareFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze/stream?url=example.com", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: error")
}

func TestStreamResponseCarriesJobID(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze/stream?url=example.com&device=mobile", nil))

	jobID := rec.Header().Get(handlers.JobIDHeader)
	assert.NotEmpty(t, jobID)
	assert.Contains(t, rec.Body.String(), jobID)
	assert.Equal(t, handlers.JobIDHeader, rec.Header().Get("Access-Control-Expose-Headers"))

	// Plain API responses are not tagged
	rec = httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Empty(t, rec.Header().Get(handlers.JobIDHeader))
}

func TestResponseWriterCountsBytes(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _ = rw.Write([]byte("data: one\n\n"))
	_, _ = rw.Write([]byte("data: two\n\n"))
	rw.WriteHeader(http.StatusTeapot)

	assert.True(t, rw.wroteHeader)
	assert.Equal(t, int64(22), rw.bytes)
	assert.Equal(t, http.StatusOK, rw.statusCode)
}

func TestRecoveryMiddleware(t *testing.T) {
	s := newTestServer()
	handler := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecoveryMiddlewareAfterStreamStarted(t *testing.T) {
	s := newTestServer()
	handler := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("event: navigating\n\n"))
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze/stream", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "event: navigating\n\n", rec.Body.String())
}
