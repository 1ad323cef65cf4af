package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/llm"
)

// maxPromptChars caps the text blocks sent alongside the screenshot
const maxPromptChars = 40000

const overlaySystemPrompt = `You locate cookie consent overlays on web pages.
You receive a screenshot of the viewport and text blocks extracted from consent-related DOM elements.
Decide whether a cookie consent banner or dialog is visible and, if so, how to accept all cookies.
Respond with ONLY a JSON object of this exact shape:
{"found": boolean, "selector": string or null, "buttonText": string or null, "confidence": "high" | "medium" | "low", "reason": string}
"selector" is a CSS selector for the accept-all control when you can infer one (you may use :contains('Text')).
"buttonText" is the visible label of the accept-all control.`

type overlayResponse struct {
	Found      bool    `json:"found"`
	Type       *string `json:"type"`
	Selector   *string `json:"selector"`
	ButtonText *string `json:"buttonText"`
	Confidence string  `json:"confidence"`
	Reason     string  `json:"reason"`
}

// OverlayResolver asks a vision model to locate the consent accept control
type OverlayResolver struct {
	provider    interfaces.LLMProvider
	extractor   *BlockExtractor
	callTimeout time.Duration
	validate    *validator.Validate
	logger      arbor.ILogger
}

func NewOverlayResolver(provider interfaces.LLMProvider, extractor *BlockExtractor, callTimeout time.Duration, logger arbor.ILogger) *OverlayResolver {
	return &OverlayResolver{
		provider:    provider,
		extractor:   extractor,
		callTimeout: callTimeout,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Detect returns the detection and the extracted text blocks.
// Every failure degrades to found=false with the failure category in the reason.
func (r *OverlayResolver) Detect(ctx context.Context, page interfaces.Page) (models.CookieConsentDetection, []string) {
	blocks, err := r.extractor.Extract(ctx, page)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Consent text extraction failed, continuing with screenshot only")
	}

	screenshot, err := page.Screenshot(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Screenshot failed, consent detection skipped")
		return models.NotFoundDetection(fmt.Sprintf("%v: screenshot unavailable", models.ErrConsentDetection)), blocks
	}

	request := &interfaces.ContentRequest{
		SystemInstruction: overlaySystemPrompt,
		Messages:          []interfaces.Message{{Role: "user", Content: overlayPrompt(blocks)}},
		Images:            []interfaces.ImageInput{{MIMEType: "image/png", Data: screenshot}},
		JSONResponse:      true,
	}

	text, err := llm.Call(ctx, r.provider, r.callTimeout, request)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Vision model call failed, treating consent overlay as not found")
		return models.NotFoundDetection(fmt.Sprintf("%v: %s", models.ErrConsentDetection, describeModelError(err))), blocks
	}

	detection, err := r.ParseDetection(text)
	if err != nil {
		r.logger.Warn().Err(err).Str("response", truncate(text, 200)).Msg("Vision model response unparseable")
		return models.NotFoundDetection(fmt.Sprintf("%v: %v", models.ErrConsentDetection, err)), blocks
	}

	r.logger.Info().
		Bool("found", detection.Found).
		Str("confidence", string(detection.Confidence)).
		Int("blocks", len(blocks)).
		Msg("Consent overlay detection complete")

	return detection, blocks
}

// ParseDetection converts model output to a detection, failing with llm.ErrParse
func (r *OverlayResolver) ParseDetection(text string) (models.CookieConsentDetection, error) {
	var resp overlayResponse
	if err := llm.ExtractJSON(text, &resp); err != nil {
		return models.CookieConsentDetection{}, err
	}

	confidence := strings.ToLower(strings.TrimSpace(resp.Confidence))
	if err := r.validate.Var(confidence, "required,oneof=high medium low"); err != nil {
		confidence = string(models.ConfidenceLow)
	}

	detection := models.CookieConsentDetection{
		Found:      resp.Found,
		Type:       nonEmpty(resp.Type),
		Selector:   nonEmpty(resp.Selector),
		ButtonText: nonEmpty(resp.ButtonText),
		Confidence: models.ConfidenceTier(confidence),
		Reason:     resp.Reason,
	}
	return detection, nil
}

func overlayPrompt(blocks []string) string {
	var sb strings.Builder
	sb.WriteString("Is a cookie consent overlay visible in this screenshot? ")
	if len(blocks) == 0 {
		sb.WriteString("No consent-related text blocks were found in the DOM.")
		return sb.String()
	}
	sb.WriteString("Text blocks extracted from the page:\n\n")
	for _, block := range blocks {
		if sb.Len()+len(block) > maxPromptChars {
			break
		}
		sb.WriteString(block)
		sb.WriteString("\n")
	}
	return sb.String()
}

func describeModelError(err error) string {
	switch {
	case errors.Is(err, llm.ErrModelTimeout):
		return "vision model timed out"
	case errors.Is(err, llm.ErrNoProvider):
		return "vision model not configured"
	default:
		return "vision model call failed"
	}
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		return nil
	}
	return &trimmed
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
