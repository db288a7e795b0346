package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"cakestudio/internal/order"
)

// DesignSystemPrompt is the fixed style policy applied to every design
// brief: single-tier only, bakery-reproducible complexity, at most 2-3
// colors, no floating or oversized ornamentation, five bullet lines max.
const DesignSystemPrompt = "너는 커스텀 케이크 디자이너야. 다음 규칙을 반드시 따르며 케이크를 디자인해줘:\n" +
	"1) 결과물은 항상 \"현실적으로 제작 가능한 실제 1단(원단) 케이크\"여야 한다.\n" +
	"2) 사용자의 설명은 반드시 케이크 디자인에 반영한다.\n" +
	"3) 생성하는 이미지에는 케이크 이외의 부수적인 요소는 포함되면 안돼.\n" +
	"4) 케이크는 과장되거나 비현실적인 형태(공중에 떠 있는 장식, 과도하게 큰 조형물, 지나치게 복잡한 구조)를 가지면 안 된다.\n" +
	"5) 전체 분위기는 '심플하고 미니멀한 디자인'을 기본으로 하고, 색상은 최대 2~3가지 안에서 조합한다.\n" +
	"6) 케이크 상단과 옆면 장식은 실제 동네 케이크 가게나 홈베이커가 구현할 수 있을 정도의 난이도로 제한한다.\n" +
	"7) 출력은 한국어 bullet 형식 5줄 이내로 작성한다.\n" +
	"8) 이미지/시안 생성 시 케이크는 반드시 단층(single-tier)으로 표현하고, 2단 이상은 절대 안 된다.\n" +
	"9) 이미지/시안 생성 시 케이크의 디자인은 복잡한 데코를 사용하지 말고, 평면 그림 위주로 구성한다."

const intentPromptTemplate = `
너는 '주문제작 케이크' 상담원이야. 고객의 말에서 디자인 요소를 추출해.
[현재 주문] %s
[대화 기록] %s

[분석 규칙]
1. 'design_desc': 디자인 묘사 요약.
2. 'lettering': 레터링 문구.
3. 'has_color' (Boolean): 색상 변경 시 true.
4. 'object_count' (Integer): 추가 장식물 개수.

[응답 포맷 (JSON)]
{
    "updated_order": { "design_desc": "...", "lettering": "...", "has_color": true/false, "object_count": 0 },
    "response_message": "..."
}
`

// HistoryTurn is one chat turn serialized into the intent prompt.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildIntentPrompt composes the extraction system instruction embedding
// the current order and the trailing chat history.
func BuildIntentPrompt(current order.Order, history []HistoryTurn) (string, error) {
	orderJSON, err := json.Marshal(current)
	if err != nil {
		return "", fmt.Errorf("marshal order for intent prompt: %w", err)
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("marshal history for intent prompt: %w", err)
	}
	return fmt.Sprintf(intentPromptTemplate, orderJSON, historyJSON), nil
}

// briefMoods are the flavor-specific hints appended to brief requests.
// Unrecognized flavors get no hint.
var briefMoods = map[string]string{
	"초코":   "중요: 이 케이크는 초코 케이크입니다. 전체적으로 다크하고 고급스러운 초콜릿 분위기로, 너무 화려하지 않고 차분하게 디자인해야 합니다.",
	"생크림":  "중요: 이 케이크는 생크림 케이크입니다. 전체적으로 밝고 깔끔한 생크림 분위기로, 파스텔 톤의 심플한 디자인을 사용하세요.",
	"레드벨벳": "중요: 이 케이크는 레드벨벳 케이크입니다. 레드와 화이트의 조화를 살리되, 과도한 장식 없이 고급스러운 느낌을 유지하세요.",
	"티라미수": "중요: 이 케이크는 티라미수 케이크입니다. 카카오와 크림의 조화를 살린, 차분하고 성숙한 분위기의 심플한 디자인이어야 합니다.",
}

// imageMoods are the flavor clauses woven into image prompts.
var imageMoods = map[string]string{
	"초코":   "다크하고 고급스러운 초콜릿 분위기이지만, 장식은 과하지 않고 차분한 느낌의 심플한 디자인.",
	"생크림":  "밝고 깔끔한 생크림 분위기. 파스텔 톤 위주의 미니멀한 디자인.",
	"레드벨벳": "우아하고 고급스러운 레드벨벳 분위기. 레드와 화이트의 단순한 조합.",
	"티라미수": "티라미수 특유의 카카오와 크림 조화. 브라운/크림 톤의 차분한 디자인.",
}

// BuildBriefPrompt combines the user request, the flavor mood hint and the
// style policy into one instruction for the brief generator.
func BuildBriefPrompt(userPrompt, filling string) string {
	enhanced := userPrompt
	if mood, ok := briefMoods[filling]; ok {
		enhanced += "\n\n" + mood
	}
	return fmt.Sprintf("%s\n\n사용자 요청:\n%s", DesignSystemPrompt, enhanced)
}

// BuildCombinedChatPrompt packages the raw chat turn together with the
// design state already reflected in the order, for brief and image runs.
func BuildCombinedChatPrompt(userText, designDesc, lettering string) string {
	return fmt.Sprintf("사용자 요청: %s\n\n(현재 반영된 디자인) 디자인: %s\n레터링: %s", userText, designDesc, lettering)
}

// BuildImagePrompt assembles the image-generation prompt: hard rendering
// constraints, the flavor mood clause, the raw user request and the brief.
func BuildImagePrompt(userPrompt, designBrief, filling string) string {
	fillingContext := fmt.Sprintf("\n케이크 맛: %s\n", filling)
	if mood, ok := imageMoods[filling]; ok {
		fillingContext = fmt.Sprintf("\n케이크 맛: %s\n%s\n", filling, mood)
	}

	return strings.TrimSpace(fmt.Sprintf(`
You are a pâtisserie for custom cake.

CONSTRAINTS (MUST FOLLOW):
- Render only a REALISTIC, physically feasible 1-tier (single-layer) cake.
- Never produce multi-tier or floating/structurally impossible cakes.
- The cake must look like a real custom cake you could order at a small local Korean bakery or home bakery, NOT a luxury wedding cake or fantasy cake.
- Overall style should be simple, minimal, and easy to make in a real kitchen.
- Limit the color palette to at most 2–3 main colors.
- Do NOT use tall 3D toppers, big figurines, or complex sculptures. Decorations must stay low-profile: cream piping, small fruits, small chocolate pieces, simple flat drawings on the top surface, etc.
- Use only real bakery materials (buttercream, fresh cream, fruits, chocolate, simple sugar flowers, edible gold flakes, etc.).
- No text overlays, no watermarks, no logos in the image itself.
- Showcase the cake as a real product photo in a clean studio setting, shallow depth of field, close-up.
- The cake must be easy and realistic for a real baker to reproduce.

%s
User request (Korean):
%s

Design brief (Korean):
%s

Output target:
A realistic product hero image of a single-tier, simple, minimal custom cake that a real bakery can easily make.
`, fillingContext, userPrompt, designBrief))
}
