package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cakestudio/internal/llm"
	"cakestudio/internal/order"
	"cakestudio/internal/prompts"
)

// historyWindow bounds how many trailing chat turns are embedded in the
// extraction prompt.
const historyWindow = 5

// excerptLimit caps the raw-response excerpt included in diagnostics.
const excerptLimit = 300

const (
	noClientNotice = "🚨 OpenAI 클라이언트가 초기화되지 않았습니다. API 키를 확인해주세요."
	defaultReply   = "요청을 반영했습니다."
)

// Extractor turns a free-text chat turn into an order patch plus a
// conversational reply. Failures are always recovered: the caller gets the
// order back unchanged together with a diagnostic message.
type Extractor struct {
	client llm.Client
}

// NewExtractor constructs an extractor. A nil client is allowed and makes
// every call short-circuit with a fixed notice.
func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{client: client}
}

type extractionResult struct {
	UpdatedOrder    *order.Patch `json:"updated_order"`
	ResponseMessage string       `json:"response_message"`
}

// Extract analyzes one user turn against the current order and recent
// history. The returned order is always a copy; the input is never
// mutated.
func (e *Extractor) Extract(ctx context.Context, userText string, current order.Order, history []prompts.HistoryTurn) (order.Order, string) {
	if e == nil || e.client == nil {
		return current, noClientNotice
	}

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	systemPrompt, err := prompts.BuildIntentPrompt(current, history)
	if err != nil {
		return current, fmt.Sprintf("오류 발생: %v", err)
	}

	raw, err := e.client.Complete(ctx, []llm.Part{
		llm.TextPart(systemPrompt),
		llm.TextPart(userText),
	})
	if err != nil {
		return current, fmt.Sprintf("오류 발생: %v", err)
	}

	content := strings.TrimSpace(raw)
	if strings.Contains(content, "```") {
		if span, ok := braceSpan(content); ok {
			content = span
		}
	}

	var result extractionResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		span, ok := braceSpan(content)
		if !ok {
			return current, fmt.Sprintf("응답을 이해할 수 없습니다: %s", excerpt(content))
		}
		if err := json.Unmarshal([]byte(span), &result); err != nil {
			return current, fmt.Sprintf("파싱 오류: 응답을 JSON으로 변환할 수 없습니다. (원문: %s)", excerpt(content))
		}
	}

	updated := current
	if result.UpdatedOrder != nil {
		updated = result.UpdatedOrder.Apply(current)
	}
	reply := result.ResponseMessage
	if strings.TrimSpace(reply) == "" {
		reply = defaultReply
	}
	return updated, reply
}

// braceSpan extracts the widest {...} span so fenced or prose-wrapped JSON
// still parses.
func braceSpan(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLimit {
		return content
	}
	return string(runes[:excerptLimit])
}
