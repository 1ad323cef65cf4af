package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/trackscope/internal/interfaces"
)

var (
	// ErrModelTimeout means the per-call timeout elapsed before the model answered
	ErrModelTimeout = errors.New("model call timed out")
	// ErrModelFailure means the provider reported an error or an empty answer
	ErrModelFailure = errors.New("model call failed")
	// ErrNoProvider means no API key is configured for the selected provider
	ErrNoProvider = errors.New("no model provider configured")
)

// Call runs one request under its own timeout and classifies the outcome.
// Errors wrap ErrModelTimeout, ErrNoProvider or ErrModelFailure.
func Call(ctx context.Context, provider interfaces.LLMProvider, timeout time.Duration, request *interfaces.ContentRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := provider.GenerateContent(callCtx, request)
	if err != nil {
		return "", classify(callCtx, err)
	}
	if resp == nil || resp.Text == "" {
		return "", fmt.Errorf("%w: empty response", ErrModelFailure)
	}
	return resp.Text, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrNoProvider), errors.Is(err, ErrModelTimeout), errors.Is(err, ErrModelFailure):
		return err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrModelTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrModelFailure, err)
	}
}
