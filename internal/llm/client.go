package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://api.openai.com"
	defaultChatModel = "gpt-5-nano"
)

// Part is one content item in a model request: either inline text or an
// inline base64 reference image.
type Part struct {
	Text     string
	ImageB64 string
}

// TextPart wraps plain text as a request content item.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart wraps base64 image data as a request content item.
func ImagePart(b64 string) Part {
	return Part{ImageB64: b64}
}

// Client is the language-model boundary used by the intent extractor and
// the design brief generator.
type Client interface {
	Complete(ctx context.Context, parts []Part) (string, error)
}

// Config describes how to reach the model provider.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIClient talks to the OpenAI Responses API over plain HTTP.
type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIClient constructs a client with defaults applied.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = defaultChatModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Complete sends a single user turn with the given content items and
// returns the flat text of the response.
func (c *OpenAIClient) Complete(ctx context.Context, parts []Part) (string, error) {
	content := make([]map[string]any, 0, len(parts))
	for _, part := range parts {
		switch {
		case part.ImageB64 != "":
			content = append(content, map[string]any{
				"type": "input_image",
				"data": map[string]any{"image": part.ImageB64},
			})
		case part.Text != "":
			content = append(content, map[string]any{
				"type": "input_text",
				"text": part.Text,
			})
		}
	}
	if len(content) == 0 {
		return "", fmt.Errorf("llm: no content to send")
	}

	payload := map[string]any{
		"model": c.model,
		"input": []map[string]any{
			{"role": "user", "content": content},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal responses payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", decodeRequestError(resp)
	}

	var envelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("llm decode response: %w", err)
	}
	return extractOutputText(envelope), nil
}

type responseEnvelope struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Content []json.RawMessage `json:"content"`
	} `json:"output"`
}

// extractOutputText flattens the provider envelope into a single string.
// Content items arrive in two shapes: a typed object exposing type/text
// fields, or a loose key-value map with the same two keys. Items without a
// recognizable text payload (reasoning items and the like) are skipped.
func extractOutputText(envelope responseEnvelope) string {
	var b strings.Builder
	for _, item := range envelope.Output {
		for _, raw := range item.Content {
			if text, ok := contentItemText(raw); ok {
				b.WriteString(text)
			}
		}
	}
	if b.Len() == 0 {
		return envelope.OutputText
	}
	return b.String()
}

func contentItemText(raw json.RawMessage) (string, bool) {
	var typed struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &typed); err == nil {
		if typed.Type == "output_text" {
			return typed.Text, true
		}
		return "", false
	}

	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return "", false
	}
	if loose["type"] != "output_text" {
		return "", false
	}
	text, ok := loose["text"].(string)
	return text, ok
}
