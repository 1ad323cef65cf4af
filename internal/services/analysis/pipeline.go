package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/llm"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/sync/errgroup"
)

const narrativeSystemPrompt = `You are a privacy analyst reviewing the tracking behaviour of a web page.
You receive a JSON summary of cookies, scripts, storage and network requests captured in a real browser,
and optionally what the page's cookie consent dialog disclosed.
Write a clear markdown report: an overview, the notable third parties and what they likely do,
cookies and storage of interest, and how the observed behaviour compares with the consent dialog.`

const highRiskSystemPrompt = `You are a privacy analyst. From the tracking summary, list only the highest-risk findings
as a short markdown bullet list (at most 6 bullets). Each bullet names the party and the risk.
If nothing is high risk, answer with a single bullet saying so.`

const scoreSystemPrompt = `You are a privacy analyst. Rate the page's privacy from 0 (extremely invasive) to 100 (no tracking).
Respond with ONLY a JSON object: {"score": integer 0-100, "summary": one sentence}`

type scoreResponse struct {
	Score   *int   `json:"score" validate:"required,min=0,max=100"`
	Summary string `json:"summary" validate:"required"`
}

// Pipeline issues the narrative, high-risk and score requests for a summary
type Pipeline struct {
	provider    interfaces.LLMProvider
	callTimeout time.Duration
	markdown    goldmark.Markdown
	validate    *validator.Validate
	logger      arbor.ILogger
}

func NewPipeline(provider interfaces.LLMProvider, callTimeout time.Duration, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		provider:    provider,
		callTimeout: callTimeout,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		),
		validate: validator.New(),
		logger:   logger,
	}
}

// Analyze runs the three model calls concurrently. Each field is filled independently;
// Success is false only when the narrative could not be produced.
func (p *Pipeline) Analyze(ctx context.Context, summary models.TrackingSummary, details *models.ConsentDetails) models.AnalysisResult {
	result := models.AnalysisResult{
		Summary:        summary,
		ConsentDetails: details,
	}

	input, err := analysisInput(summary, details)
	if err != nil {
		message := fmt.Sprintf("Analysis failed: %v", err)
		result.Error = &message
		return result
	}

	var (
		narrative, highRisks, scoreText string
		narrativeErr, highRiskErr       error
		scoreErr                        error
	)

	var g errgroup.Group
	g.Go(func() error {
		narrative, narrativeErr = p.call(ctx, narrativeSystemPrompt, input, false)
		return nil
	})
	g.Go(func() error {
		highRisks, highRiskErr = p.call(ctx, highRiskSystemPrompt, input, false)
		return nil
	})
	g.Go(func() error {
		scoreText, scoreErr = p.call(ctx, scoreSystemPrompt, input, true)
		return nil
	})
	_ = g.Wait()

	if narrativeErr != nil {
		p.logger.Warn().Err(narrativeErr).Msg("Narrative analysis failed")
		message := fmt.Sprintf("Analysis failed: %s", describeError(narrativeErr))
		result.Error = &message
	} else {
		result.Success = true
		result.Analysis = &narrative
		if html, err := p.RenderHTML(narrative); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to render analysis markdown")
		} else {
			result.AnalysisHTML = &html
		}
	}

	if highRiskErr != nil {
		p.logger.Warn().Err(highRiskErr).Msg("High-risk summary failed")
	} else {
		result.HighRisks = &highRisks
	}

	if scoreErr != nil {
		p.logger.Warn().Err(scoreErr).Msg("Privacy score request failed")
	} else if score, line, err := p.ParseScore(scoreText); err != nil {
		p.logger.Warn().Err(err).Msg("Privacy score response rejected")
	} else {
		result.PrivacyScore = &score
		result.PrivacySummary = &line
	}

	p.logger.Info().
		Bool("success", result.Success).
		Bool("high_risks", result.HighRisks != nil).
		Bool("score", result.PrivacyScore != nil).
		Msg("Tracking analysis complete")

	return result
}

// ParseScore decodes and validates the score contract
func (p *Pipeline) ParseScore(text string) (int, string, error) {
	var resp scoreResponse
	if err := llm.ExtractJSON(text, &resp); err != nil {
		return 0, "", err
	}
	resp.Summary = strings.TrimSpace(resp.Summary)
	if err := p.validate.Struct(resp); err != nil {
		return 0, "", fmt.Errorf("%w: %v", llm.ErrParse, err)
	}
	return *resp.Score, resp.Summary, nil
}

// RenderHTML converts analysis markdown to HTML; raw HTML in the input is not passed through
func (p *Pipeline) RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

func (p *Pipeline) call(ctx context.Context, system, input string, jsonResponse bool) (string, error) {
	text, err := llm.Call(ctx, p.provider, p.callTimeout, &interfaces.ContentRequest{
		SystemInstruction: system,
		Messages:          []interfaces.Message{{Role: "user", Content: input}},
		JSONResponse:      jsonResponse,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrAnalysisModel, err)
	}
	return strings.TrimSpace(text), nil
}

func analysisInput(summary models.TrackingSummary, details *models.ConsentDetails) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode tracking summary: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Tracking summary:\n")
	sb.Write(data)
	if details != nil {
		consent, err := json.MarshalIndent(details, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode consent details: %w", err)
		}
		sb.WriteString("\n\nConsent dialog disclosures:\n")
		sb.Write(consent)
	} else {
		sb.WriteString("\n\nNo consent dialog disclosures were captured.")
	}
	return sb.String(), nil
}

func describeError(err error) string {
	switch {
	case errors.Is(err, llm.ErrModelTimeout):
		return "model timed out"
	case errors.Is(err, llm.ErrNoProvider):
		return "no model provider configured"
	default:
		return "model call failed"
	}
}
