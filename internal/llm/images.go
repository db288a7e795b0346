package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultImageModel = "dall-e-3"

// ImageRequest describes one image-generation call. Empty optional fields
// are omitted from the wire payload, which is how the synthesizer strips
// parameters the provider rejected.
type ImageRequest struct {
	Model          string
	Prompt         string
	Size           string
	Quality        string
	ResponseFormat string
}

// ImageClient is the image-model boundary used by the image synthesizer.
type ImageClient interface {
	Generate(ctx context.Context, req ImageRequest) ([]byte, error)
}

// OpenAIImageClient talks to the OpenAI Images API over plain HTTP.
type OpenAIImageClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAIImageClient constructs an image client with defaults applied.
func NewOpenAIImageClient(cfg Config) *OpenAIImageClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &OpenAIImageClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Generate requests a single rendered image and returns the decoded bytes.
func (c *OpenAIImageClient) Generate(ctx context.Context, req ImageRequest) ([]byte, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("llm: image prompt is required")
	}
	model := req.Model
	if model == "" {
		model = defaultImageModel
	}

	payload := map[string]any{
		"model":  model,
		"prompt": req.Prompt,
	}
	if req.Size != "" {
		payload["size"] = req.Size
	}
	if req.Quality != "" {
		payload["quality"] = req.Quality
	}
	if req.ResponseFormat != "" {
		payload["response_format"] = req.ResponseFormat
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal image payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("image perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, decodeRequestError(resp)
	}

	var result struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("image decode response: %w", err)
	}
	if len(result.Data) == 0 || result.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image response carried no payload")
	}

	data, err := base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	return data, nil
}

// RequestError is a structured provider rejection.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("provider status %d: %s", e.Status, e.Message)
}

func decodeRequestError(resp *http.Response) error {
	var failure struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&failure)
	return &RequestError{Status: resp.StatusCode, Message: failure.Error.Message}
}

// Rejection categorizes a provider rejection for the synthesizer's
// fallback logic.
type Rejection int

const (
	// RejectionOther covers network failures and anything unclassified.
	RejectionOther Rejection = iota
	// RejectionResponseFormat means the response_format parameter was refused.
	RejectionResponseFormat
	// RejectionQuality means the quality parameter was refused.
	RejectionQuality
	// RejectionPermission means the model is not accessible with the
	// current credentials.
	RejectionPermission
)

// ClassifyRejection maps a provider error onto a rejection category. The
// provider only exposes free-text reasons, so substring matching is kept
// in this one place.
func ClassifyRejection(err error) []Rejection {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return nil
	}

	message := strings.ToLower(reqErr.Message)
	if reqErr.Status == http.StatusForbidden || strings.Contains(message, "permission") ||
		strings.Contains(message, "must be verified") {
		return []Rejection{RejectionPermission}
	}

	var kinds []Rejection
	if strings.Contains(message, "response_format") {
		kinds = append(kinds, RejectionResponseFormat)
	}
	if strings.Contains(message, "quality") || strings.Contains(message, "invalid value") {
		kinds = append(kinds, RejectionQuality)
	}
	return kinds
}
