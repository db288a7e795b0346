package intent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cakestudio/internal/llm"
	"cakestudio/internal/order"
	"cakestudio/internal/prompts"
)

type stubClient struct {
	response string
	err      error
	parts    []llm.Part
}

func (s *stubClient) Complete(_ context.Context, parts []llm.Part) (string, error) {
	s.parts = parts
	return s.response, s.err
}

func baseOrder() order.Order {
	o := order.New("김민지", "010-1234-5678", "1호", "초코", "2025-12-24", "10:00")
	o.DesignDesc = "A"
	o.Lettering = "B"
	return o
}

func TestExtractMergesPatch(t *testing.T) {
	client := &stubClient{
		response: `{"updated_order":{"design_desc":"C","has_color":true},"response_message":"색상을 반영했어요!"}`,
	}
	extractor := NewExtractor(client)

	updated, reply := extractor.Extract(context.Background(), "파란색으로 해주세요", baseOrder(), nil)

	assert.Equal(t, "C", updated.DesignDesc)
	assert.Equal(t, "B", updated.Lettering, "fields absent from the patch stay untouched")
	assert.True(t, updated.HasColor)
	assert.Equal(t, "색상을 반영했어요!", reply)
}

func TestExtractDoesNotMutateInput(t *testing.T) {
	client := &stubClient{
		response: `{"updated_order":{"design_desc":"변경됨"},"response_message":"ok"}`,
	}
	extractor := NewExtractor(client)

	current := baseOrder()
	updated, _ := extractor.Extract(context.Background(), "디자인 바꿔줘", current, nil)

	assert.Equal(t, "A", current.DesignDesc)
	assert.Equal(t, "변경됨", updated.DesignDesc)
}

func TestExtractToleratesFencedResponse(t *testing.T) {
	client := &stubClient{
		response: "물론이죠! 아래와 같이 반영했습니다.\n```json\n" +
			`{"updated_order":{"object_count":2},"response_message":"장식 2개 추가"}` +
			"\n```",
	}
	extractor := NewExtractor(client)

	updated, reply := extractor.Extract(context.Background(), "곰돌이 2개 올려줘", baseOrder(), nil)
	assert.Equal(t, 2, updated.ObjectCount)
	assert.Equal(t, "장식 2개 추가", reply)
}

func TestExtractRecoversFromMalformedJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantIn   string
	}{
		{
			name:     "unbalanced object",
			response: `{"updated_order": {"design_desc": "끊긴"}`,
			wantIn:   "파싱 오류",
		},
		{
			name:     "no braces at all",
			response: "그냥 일반 텍스트 답변입니다",
			wantIn:   "응답을 이해할 수 없습니다",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := NewExtractor(&stubClient{response: tt.response})
			current := baseOrder()

			updated, reply := extractor.Extract(context.Background(), "아무거나", current, nil)

			assert.Equal(t, current, updated, "order returned unchanged")
			assert.Contains(t, reply, tt.wantIn)
			assert.Contains(t, reply, strings.TrimSpace(tt.response)[:10])
		})
	}
}

func TestExtractTruncatesDiagnosticExcerpt(t *testing.T) {
	long := strings.Repeat("가", 400)
	extractor := NewExtractor(&stubClient{response: long})

	_, reply := extractor.Extract(context.Background(), "아무거나", baseOrder(), nil)
	assert.NotContains(t, reply, strings.Repeat("가", 301))
	assert.Contains(t, reply, strings.Repeat("가", 300))
}

func TestExtractShortCircuitsWithoutClient(t *testing.T) {
	extractor := NewExtractor(nil)
	current := baseOrder()

	updated, reply := extractor.Extract(context.Background(), "안녕하세요", current, nil)
	assert.Equal(t, current, updated)
	assert.Contains(t, reply, "클라이언트가 초기화되지 않았습니다")
}

func TestExtractRecoversFromTransportError(t *testing.T) {
	extractor := NewExtractor(&stubClient{err: fmt.Errorf("connection reset")})
	current := baseOrder()

	updated, reply := extractor.Extract(context.Background(), "안녕하세요", current, nil)
	assert.Equal(t, current, updated)
	assert.Contains(t, reply, "오류 발생")
}

func TestExtractEmbedsOrderAndBoundedHistory(t *testing.T) {
	client := &stubClient{response: `{"response_message":"ok"}`}
	extractor := NewExtractor(client)

	history := make([]prompts.HistoryTurn, 0, 8)
	for i := 0; i < 8; i++ {
		history = append(history, prompts.HistoryTurn{Role: "user", Content: fmt.Sprintf("turn-%d", i)})
	}

	extractor.Extract(context.Background(), "문의", baseOrder(), history)

	require.NotEmpty(t, client.parts)
	prompt := client.parts[0].Text
	assert.Contains(t, prompt, `"010-1234-5678"`, "current order is serialized into the prompt")
	assert.Contains(t, prompt, "turn-7")
	assert.Contains(t, prompt, "turn-3")
	assert.NotContains(t, prompt, "turn-2", "only the trailing five turns are embedded")
}
