// Package report renders scan results as PDF documents.
package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Service builds PDF reports
type Service struct {
	markdown goldmark.Markdown
	logger   arbor.ILogger
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{
		markdown: goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
		logger:   logger,
	}
}

// Build renders the result as an A4 PDF
func (s *Service) Build(result models.AnalysisResult) ([]byte, error) {
	source := []byte(Markdown(result))
	doc := s.markdown.Parser().Parse(text.NewReader(source))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle("Tracking report: "+result.Summary.PageURL, true)
	pdf.SetCreator(common.GetFullVersion(), true)
	pdf.AddPage()

	r := newRenderer(pdf, source)
	if err := r.render(doc); err != nil {
		s.logger.Error().Err(err).Str("url", result.Summary.PageURL).Msg("Failed to render report")
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write report PDF: %w", err)
	}

	s.logger.Debug().
		Str("url", result.Summary.PageURL).
		Int("pdf_size", buf.Len()).
		Msg("Report PDF generated")
	return buf.Bytes(), nil
}
