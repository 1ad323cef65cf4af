package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/models"
)

// maxReportBody bounds the analysis result accepted for rendering
const maxReportBody = 8 << 20

// ReportBuilder renders an analysis result as a PDF
type ReportBuilder interface {
	Build(result models.AnalysisResult) ([]byte, error)
}

type ReportHandler struct {
	builder  ReportBuilder
	validate *validator.Validate
	logger   arbor.ILogger
}

func NewReportHandler(builder ReportBuilder, logger arbor.ILogger) *ReportHandler {
	return &ReportHandler{
		builder:  builder,
		validate: validator.New(),
		logger:   logger,
	}
}

// PDFHandler renders the posted AnalysisResult (the complete event payload) as a PDF.
// POST /api/report/pdf
func (h *ReportHandler) PDFHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var result models.AnalysisResult
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBody))
	if err := decoder.Decode(&result); err != nil {
		WriteError(w, http.StatusBadRequest, "Request body must be an analysis result")
		return
	}
	if err := h.validate.Var(result.Summary.PageURL, "required,url"); err != nil {
		WriteError(w, http.StatusBadRequest, "summary.page_url is required")
		return
	}

	data, err := h.builder.Build(result)
	if err != nil {
		h.logger.Error().Err(err).Str("url", result.Summary.PageURL).Msg("Report generation failed")
		WriteError(w, http.StatusInternalServerError, "Failed to generate report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFilename(result.Summary.PageURL)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func reportFilename(pageURL string) string {
	host := "report"
	if u, err := url.Parse(pageURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return "trackscope-" + strings.ReplaceAll(host, ".", "-") + ".pdf"
}
