package vision

import (
	"context"
	"encoding/base64"
	"strings"

	"cakestudio/internal/llm"
	"cakestudio/internal/prompts"
)

const (
	unavailableNotice = "OpenAI 클라이언트가 초기화되지 않았습니다."
	emptyResultNotice = "결과를 읽어오지 못했습니다."
)

// BriefRequest carries the inputs for one design-brief run.
type BriefRequest struct {
	UserPrompt     string
	Filling        string
	ReferenceImage []byte
}

// Designer produces short, policy-constrained design descriptions.
type Designer struct {
	client llm.Client
}

// NewDesigner constructs a designer. A nil client makes Brief return the
// fixed unavailable notice without any call.
func NewDesigner(client llm.Client) *Designer {
	return &Designer{client: client}
}

// Brief requests a design description honoring the style policy, with the
// flavor mood hint appended and the reference image attached when present.
// The model's text is returned verbatim.
func (d *Designer) Brief(ctx context.Context, req BriefRequest) (string, error) {
	if d == nil || d.client == nil {
		return unavailableNotice, nil
	}

	parts := []llm.Part{
		llm.TextPart(prompts.BuildBriefPrompt(req.UserPrompt, req.Filling)),
	}
	if len(req.ReferenceImage) > 0 {
		parts = append(parts, llm.ImagePart(base64.StdEncoding.EncodeToString(req.ReferenceImage)))
	}

	text, err := d.client.Complete(ctx, parts)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return emptyResultNotice, nil
	}
	return text, nil
}
