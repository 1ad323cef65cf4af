package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// ProviderFactory routes content requests to Gemini or Claude.
// Clients are created lazily and shared by concurrent jobs.
type ProviderFactory struct {
	geminiConfig common.GeminiConfig
	claudeConfig common.ClaudeConfig
	llmConfig    common.LLMConfig
	logger       arbor.ILogger
	retryConfig  *RetryConfig

	mu            sync.Mutex
	geminiClient  *genai.Client
	claudeClient  *anthropic.Client
	geminiLimiter *rate.Limiter
	claudeLimiter *rate.Limiter
}

var _ interfaces.LLMProvider = (*ProviderFactory)(nil)

// NewProviderFactory creates a new provider factory
func NewProviderFactory(config *common.Config, logger arbor.ILogger) *ProviderFactory {
	return &ProviderFactory{
		geminiConfig:  config.Gemini,
		claudeConfig:  config.Claude,
		llmConfig:     config.LLM,
		logger:        logger,
		retryConfig:   NewDefaultRetryConfig(),
		geminiLimiter: newLimiter(config.Gemini.RateLimit),
		claudeLimiter: newLimiter(config.Claude.RateLimit),
	}
}

// newLimiter allows one request per interval; an empty interval disables limiting
func newLimiter(interval string) *rate.Limiter {
	d := common.Duration(interval, 0)
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// Name returns the configured default provider
func (f *ProviderFactory) Name() string {
	return string(f.llmConfig.DefaultProvider)
}

// Configured reports whether the default provider has an API key
func (f *ProviderFactory) Configured() bool {
	switch ProviderType(f.llmConfig.DefaultProvider) {
	case ProviderClaude:
		return f.claudeConfig.APIKey != ""
	default:
		return f.geminiConfig.APIKey != ""
	}
}

// GetGeminiClient returns a Gemini client, creating one if necessary
func (f *ProviderFactory) GetGeminiClient(ctx context.Context) (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.geminiClient != nil {
		return f.geminiClient, nil
	}
	if f.geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("%w: set gemini.api_key or GEMINI_API_KEY", ErrNoProvider)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  f.geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	f.geminiClient = client
	return client, nil
}

// GetClaudeClient returns a Claude client, creating one if necessary
func (f *ProviderFactory) GetClaudeClient() (*anthropic.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claudeClient != nil {
		return f.claudeClient, nil
	}
	if f.claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("%w: set claude.api_key or ANTHROPIC_API_KEY", ErrNoProvider)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(f.claudeConfig.APIKey),
	)
	f.claudeClient = &client
	return f.claudeClient, nil
}

// GenerateContent generates content with the default provider
func (f *ProviderFactory) GenerateContent(ctx context.Context, request *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	provider := ProviderType(f.llmConfig.DefaultProvider)

	f.logger.Debug().
		Str("provider", string(provider)).
		Int("message_count", len(request.Messages)).
		Int("image_count", len(request.Images)).
		Msg("Generating content with provider")

	switch provider {
	case ProviderClaude:
		return f.generateWithClaude(ctx, request)
	default:
		return f.generateWithGemini(ctx, request)
	}
}

// withRetry runs call, retrying transient failures with backoff until ctx is done
func (f *ProviderFactory) withRetry(ctx context.Context, name string, limiter *rate.Limiter, call func() error) error {
	var apiErr error
	for attempt := 0; attempt <= f.retryConfig.MaxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			// Wait fails early when the next token lands after the deadline
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}

		apiErr = call()
		if apiErr == nil || ctx.Err() != nil || attempt == f.retryConfig.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(apiErr) {
			backoff = f.retryConfig.CalculateBackoff(attempt, ExtractRetryDelay(apiErr))
		} else {
			backoff = time.Duration(attempt+1) * f.retryConfig.InitialBackoff
		}

		f.logger.Warn().
			Str("provider", name).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying model API call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	if apiErr != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return apiErr
}

// generateWithClaude generates content using Claude API
func (f *ProviderFactory) generateWithClaude(ctx context.Context, request *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	client, err := f.GetClaudeClient()
	if err != nil {
		return nil, err
	}

	claudeMessages, systemText, err := convertMessagesToClaude(request.Messages, request.Images)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	if request.SystemInstruction != "" {
		systemText = request.SystemInstruction
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = f.claudeConfig.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(f.claudeConfig.Model),
		MaxTokens: int64(maxTokens),
		Messages:  claudeMessages,
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = f.claudeConfig.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	var resp *anthropic.Message
	err = f.withRetry(ctx, string(ProviderClaude), f.claudeLimiter, func() error {
		var callErr error
		resp, callErr = client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("%w: empty response from Claude API", ErrModelFailure)
	}

	return &interfaces.ContentResponse{
		Text:     text.String(),
		Provider: string(ProviderClaude),
		Model:    f.claudeConfig.Model,
	}, nil
}

// generateWithGemini generates content using Gemini API
func (f *ProviderFactory) generateWithGemini(ctx context.Context, request *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	client, err := f.GetGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	contents, systemText, err := convertMessagesToGemini(request.Messages, request.Images)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	if request.SystemInstruction != "" {
		systemText = request.SystemInstruction
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = f.geminiConfig.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}
	if request.JSONResponse {
		config.ResponseMIMEType = "application/json"
	}

	var resp *genai.GenerateContentResponse
	err = f.withRetry(ctx, string(ProviderGemini), f.geminiLimiter, func() error {
		var callErr error
		resp, callErr = client.Models.GenerateContent(ctx, f.geminiConfig.Model, contents, config)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: empty response from Gemini API", ErrModelFailure)
	}
	responseText := resp.Text()
	if responseText == "" {
		return nil, fmt.Errorf("%w: empty text in Gemini response", ErrModelFailure)
	}

	return &interfaces.ContentResponse{
		Text:     responseText,
		Provider: string(ProviderGemini),
		Model:    f.geminiConfig.Model,
	}, nil
}
