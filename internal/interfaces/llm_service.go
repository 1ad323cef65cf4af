package interfaces

import (
	"context"
)

// Message represents a single message in a model conversation
type Message struct {
	// Role identifies the message sender: "user" or "assistant"
	Role string

	// Content contains the text content of the message
	Content string
}

// ImageInput is an inline image attached to the last user message
type ImageInput struct {
	MIMEType string
	Data     []byte
}

// ContentRequest describes one round-trip to a text or vision model
type ContentRequest struct {
	Messages          []Message
	SystemInstruction string
	Images            []ImageInput
	Temperature       float32
	MaxTokens         int

	// JSONResponse asks providers that support it to return application/json
	JSONResponse bool
}

// ContentResponse is the model output
type ContentResponse struct {
	Text     string
	Provider string
	Model    string
}

// LLMProvider generates content from an external model.
// Implementations must honour ctx cancellation and deadlines; the caller owns the
// per-call timeout and maps context.DeadlineExceeded to its timeout category.
type LLMProvider interface {
	// GenerateContent sends the request and returns the concatenated text output.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - request: Messages, optional system instruction and images
	//
	// Returns:
	//   - *ContentResponse: Model text with provider/model identification
	//   - error: Error if the call failed or the provider is not configured
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)

	// Name returns the provider identifier, e.g. "gemini"
	Name() string
}
