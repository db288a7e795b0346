package vision

import (
	"context"
	"fmt"

	"cakestudio/internal/llm"
	"cakestudio/internal/prompts"
)

const (
	imageSize    = "1024x1024"
	imageQuality = "high"
	imageFormat  = "b64_json"
)

// Synthesizer renders a design brief into image bytes with two fallback
// ladders: stripping rejected request parameters, then switching to an
// alternate model on permission denial.
type Synthesizer struct {
	client   llm.ImageClient
	model    string
	altModel string
}

// NewSynthesizer constructs a synthesizer. A nil client makes Synthesize
// report generation as unavailable rather than failing.
func NewSynthesizer(client llm.ImageClient, model, altModel string) *Synthesizer {
	return &Synthesizer{client: client, model: model, altModel: altModel}
}

// Synthesize builds the image prompt and requests a render. A nil, nil
// return means no image backend is configured.
func (s *Synthesizer) Synthesize(ctx context.Context, designBrief, userPrompt, filling string) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	prompt := prompts.BuildImagePrompt(userPrompt, designBrief, filling)
	return s.generate(ctx, prompt, s.model, true)
}

func (s *Synthesizer) generate(ctx context.Context, prompt, model string, allowAltModel bool) ([]byte, error) {
	req := llm.ImageRequest{
		Model:          model,
		Prompt:         prompt,
		Size:           imageSize,
		Quality:        imageQuality,
		ResponseFormat: imageFormat,
	}

	data, err := s.client.Generate(ctx, req)
	if err == nil {
		return data, nil
	}

	kinds := llm.ClassifyRejection(err)
	if rejected(kinds, llm.RejectionPermission) {
		if allowAltModel && s.altModel != "" && s.altModel != model {
			return s.generate(ctx, prompt, s.altModel, false)
		}
		return nil, fmt.Errorf("image model refused: %w", err)
	}

	stripped := req
	retry := false
	if rejected(kinds, llm.RejectionResponseFormat) {
		stripped.ResponseFormat = ""
		retry = true
	}
	if rejected(kinds, llm.RejectionQuality) {
		stripped.Quality = ""
		retry = true
	}
	if !retry {
		return nil, err
	}
	return s.client.Generate(ctx, stripped)
}

func rejected(kinds []llm.Rejection, kind llm.Rejection) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
