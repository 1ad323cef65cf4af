package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/scan"
	"github.com/ternarybob/trackscope/internal/services/stream"
)

// scriptedRunner publishes a fixed happy-path sequence, or blocks until cancelled
type scriptedRunner struct {
	block     bool
	cancelled chan struct{}
	requests  chan scan.Request
}

func newScriptedRunner(block bool) *scriptedRunner {
	return &scriptedRunner{block: block, cancelled: make(chan struct{}), requests: make(chan scan.Request, 1)}
}

func (s *scriptedRunner) Run(ctx context.Context, req scan.Request, pub *stream.Publisher) error {
	defer pub.Close()
	s.requests <- req

	if err := pub.Emit(models.StageNavigate, "Loading", scan.NavigatePayload{URL: req.URL}); err != nil {
		return err
	}
	if s.block {
		<-ctx.Done()
		close(s.cancelled)
		return ctx.Err()
	}
	for _, stage := range []models.Stage{models.StageAccessDenialCheck, models.StageConsentDetect, models.StageCapture, models.StageSummarize, models.StageAnalyze} {
		if err := pub.Emit(stage, "", nil); err != nil {
			return err
		}
	}
	return pub.Complete(models.AnalysisResult{Success: true, Summary: models.TrackingSummary{PageURL: req.URL}})
}

func newAnalyzeHandler(runner JobRunner) *AnalyzeHandler {
	return NewAnalyzeHandler(runner, common.StreamConfig{BufferSize: 8, HeartbeatInterval: "50ms"}, arbor.NewLogger())
}

// readSSE returns the event names of the stream, skipping heartbeat comments
func readSSE(t *testing.T, resp *http.Response) []string {
	t.Helper()
	var names []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			names = append(names, name)
		}
	}
	return names
}

func TestStreamHandlerEmitsOrderedEvents(t *testing.T) {
	runner := newScriptedRunner(false)
	server := httptest.NewServer(http.HandlerFunc(newAnalyzeHandler(runner).StreamHandler))
	defer server.Close()

	resp, err := http.Get(server.URL + "?url=" + url.QueryEscape("example.com") + "&device=iphone-14")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, []string{
		"navigate", "access-denial-check", "consent-detect", "capture", "summarize", "analyze", "complete",
	}, readSSE(t, resp))

	req := <-runner.requests
	assert.Equal(t, "https://example.com", req.URL)
	assert.Equal(t, "iphone-14", req.Device)
}

func TestStreamHandlerRejectsBadRequests(t *testing.T) {
	handler := newAnalyzeHandler(newScriptedRunner(false))

	tests := []struct {
		name   string
		method string
		query  string
		status int
	}{
		{"missing url", http.MethodGet, "", http.StatusBadRequest},
		{"bad scheme", http.MethodGet, "?url=" + url.QueryEscape("ftp://example.com"), http.StatusBadRequest},
		{"unknown device", http.MethodGet, "?url=example.com&device=toaster", http.StatusBadRequest},
		{"wrong method", http.MethodPost, "?url=example.com", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.StreamHandler(rec, httptest.NewRequest(tt.method, "/api/analyze/stream"+tt.query, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestStreamHandlerClientDisconnectCancelsJob(t *testing.T) {
	runner := newScriptedRunner(true)
	server := httptest.NewServer(http.HandlerFunc(newAnalyzeHandler(runner).StreamHandler))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"?url=example.com", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: navigate\n", line)

	cancel()
	resp.Body.Close()

	select {
	case <-runner.cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not cancelled after the client disconnected")
	}
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func readWSEvents(t *testing.T, conn *websocket.Conn) []models.StreamEvent {
	t.Helper()
	var events []models.StreamEvent
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev models.StreamEvent
		if err := conn.ReadJSON(&ev); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			return events
		}
		events = append(events, ev)
	}
}

func TestWebSocketHandlerStreamsUntilTerminal(t *testing.T) {
	runner := newScriptedRunner(false)
	server := httptest.NewServer(http.HandlerFunc(newAnalyzeHandler(runner).WebSocketHandler))
	defer server.Close()

	conn := dialWS(t, server)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(scan.Request{URL: "https://example.com"}))

	events := readWSEvents(t, conn)
	require.Len(t, events, 7)
	assert.Equal(t, models.StageNavigate, events[0].Stage)
	assert.Equal(t, models.StageComplete, events[6].Stage)
	assert.NotEmpty(t, events[0].JobID)
	for _, ev := range events {
		assert.Equal(t, events[0].JobID, ev.JobID)
	}
}

func TestWebSocketHandlerInvalidRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(newAnalyzeHandler(newScriptedRunner(false)).WebSocketHandler))
	defer server.Close()

	conn := dialWS(t, server)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]string{"url": "ftp://example.com/file"}))

	events := readWSEvents(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, models.StageError, events[0].Stage)
	assert.Equal(t, "A valid http(s) url is required", events[0].Message)
}
