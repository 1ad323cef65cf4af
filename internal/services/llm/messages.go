package llm

import (
	"encoding/base64"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"google.golang.org/genai"
)

// lastUserIndex returns the index of the final user message, -1 if there is none
func lastUserIndex(messages []interfaces.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return i
		}
	}
	return -1
}

// convertMessagesToClaude maps messages to Claude format; images attach to the last user message.
// A "system" message is returned separately.
func convertMessagesToClaude(messages []interfaces.Message, images []interfaces.ImageInput) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}
	last := lastUserIndex(messages)
	if last < 0 {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for i, msg := range messages {
		switch msg.Role {
		case "system":
			if systemText == "" {
				systemText = msg.Content
			}
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			blocks := []anthropic.ContentBlockParamUnion{}
			if i == last {
				for _, img := range images {
					blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, base64.StdEncoding.EncodeToString(img.Data)))
				}
			}
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(blocks...))
		}
	}

	return claudeMessages, systemText, nil
}

// convertMessagesToGemini maps messages to Gemini contents; images attach to the last user message
func convertMessagesToGemini(messages []interfaces.Message, images []interfaces.ImageInput) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}
	last := lastUserIndex(messages)
	if last < 0 {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for i, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}

		parts := []*genai.Part{}
		if i == last {
			for _, img := range images {
				parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
			}
		}
		parts = append(parts, genai.NewPartFromText(msg.Content))

		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: parts,
		})
	}

	return contents, systemText, nil
}
