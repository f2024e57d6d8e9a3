package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// openAIClient talks to the chat completions endpoint, which is also served
// by most OpenAI-compatible gateways.
type openAIClient struct {
	baseURL         string
	apiKey          string
	model           string
	temperature     float64
	maxOutputTokens int
	timeout         time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *openAIClient) Provider() string {
	return "openai"
}

func (c *openAIClient) Model() string {
	return c.model
}

func (c *openAIClient) Generate(ctx context.Context, prompt Prompt) (string, error) {
	messages := prompt.messages()
	if len(messages) == 0 {
		return "", fmt.Errorf("empty prompt")
	}

	payload := map[string]any{
		"model":    c.model,
		"messages": messages,
	}
	if c.temperature > 0 {
		payload["temperature"] = c.temperature
	}
	if c.maxOutputTokens > 0 {
		payload["max_tokens"] = c.maxOutputTokens
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.apiKey)

	var parsed chatCompletionResponse
	if err := postJSON(ctx, c.timeout, c.baseURL+"/chat/completions", headers, payload, &parsed); err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return "", fmt.Errorf("openai error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response had no choices")
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai response had no content")
	}
	return text, nil
}

func (p Prompt) messages() []chatMessage {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(p.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: p.System})
	}
	if strings.TrimSpace(p.User) != "" {
		messages = append(messages, chatMessage{Role: "user", Content: p.User})
	}
	return messages
}
