package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Scan streams
	mux.HandleFunc("/api/analyze/stream", s.app.AnalyzeHandler.StreamHandler) // GET ?url=&device= (SSE)
	mux.HandleFunc("/ws/analyze", s.app.AnalyzeHandler.WebSocketHandler)      // WebSocket, first message is the request

	// Reports
	mux.HandleFunc("/api/report/pdf", s.app.ReportHandler.PDFHandler) // POST AnalysisResult -> PDF

	// API routes - System
	mux.HandleFunc("/api/devices", s.app.APIHandler.DevicesHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/config", s.app.ConfigHandler.GetConfig)

	// 404 handler for everything else
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
