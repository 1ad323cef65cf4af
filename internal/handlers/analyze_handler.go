package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/scan"
	"github.com/ternarybob/trackscope/internal/services/stream"
)

// JobIDHeader carries the scan job ID on SSE responses so access logs can correlate them
const JobIDHeader = "X-Job-ID"

// JobRunner executes one scan, publishing its stages to pub and closing it
type JobRunner interface {
	Run(ctx context.Context, req scan.Request, pub *stream.Publisher) error
}

// AnalyzeHandler streams scan jobs over SSE and WebSocket
type AnalyzeHandler struct {
	runner JobRunner
	config common.StreamConfig
	logger arbor.ILogger
}

func NewAnalyzeHandler(runner JobRunner, config common.StreamConfig, logger arbor.ILogger) *AnalyzeHandler {
	return &AnalyzeHandler{
		runner: runner,
		config: config,
		logger: logger,
	}
}

// start launches the job for req; the returned publisher's channel closes after the terminal event
func (h *AnalyzeHandler) start(ctx context.Context, req scan.Request) *stream.Publisher {
	jobID := common.NewJobID()
	pub := stream.NewPublisher(ctx, jobID, h.config.BufferSize, h.logger)

	h.logger.Info().Str("job_id", jobID).Str("url", req.URL).Str("device", req.Device).Msg("Scan job started")
	common.SafeGo(h.logger, "scan-"+jobID, func() {
		if err := h.runner.Run(ctx, req, pub); err != nil {
			h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Scan job ended with error")
		}
	})
	return pub
}

func (h *AnalyzeHandler) heartbeat() time.Duration {
	return common.Duration(h.config.HeartbeatInterval, 15*time.Second)
}

// StreamHandler runs a scan and streams its events as SSE.
// GET /api/analyze/stream?url=...&device=...
func (h *AnalyzeHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	req, err := scan.Request{
		URL:    r.URL.Query().Get("url"),
		Device: r.URL.Query().Get("device"),
	}.Normalize()
	if err != nil {
		WriteError(w, http.StatusBadRequest, requestError(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Disconnecting the client cancels the job
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Events buffer in the publisher until the loop below drains them
	pub := h.start(ctx, req)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set(JobIDHeader, pub.JobID())
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat())
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-pub.Events():
			if !open {
				return
			}
			if err := writeSSE(w, flusher, string(ev.Stage), ev); err != nil {
				h.logger.Debug().Err(err).Str("job_id", pub.JobID()).Msg("SSE client gone")
				return
			}
		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func requestError(err error) string {
	if errors.Is(err, models.ErrUnknownDevice) {
		return err.Error()
	}
	return "A valid http(s) url is required"
}
