package session

import (
	"sync"
	"time"

	"cakestudio/internal/order"
	"cakestudio/internal/pricing"
)

// Phase is the lifecycle stage of a session.
type Phase string

const (
	// PhaseForm collects identity, catalog and schedule fields.
	PhaseForm Phase = "FORM"
	// PhaseChat iterates on the design through chat turns.
	PhaseChat Phase = "CHAT"
	// PhaseSent is terminal; only a full reset leaves it.
	PhaseSent Phase = "SENT"
)

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session owns one customer's order, chat history and design artifacts.
// All fields are guarded by mu; the HTTP handlers and the deferred worker
// both touch a session.
type Session struct {
	mu sync.Mutex

	ID             string
	Phase          Phase
	Order          order.Order
	Messages       []Message
	ReferenceImage []byte
	GeneratedImage []byte
	AutoDesign     bool
	CreatedAt      time.Time

	// Deferred-processing bookkeeping: the pending chat input and the
	// index of the placeholder turn awaiting replacement. placeholderIdx
	// is -1 when no job is pending.
	pendingPrompt  string
	placeholderIdx int
}

func newSession(id string) *Session {
	return &Session{
		ID:             id,
		Phase:          PhaseForm,
		CreatedAt:      time.Now(),
		placeholderIdx: -1,
	}
}

// Snapshot is the read model handed to the UI boundary.
type Snapshot struct {
	ID                string             `json:"id"`
	Phase             Phase              `json:"phase"`
	Order             order.Order        `json:"order"`
	Extras            []pricing.LineItem `json:"extras"`
	Messages          []Message          `json:"messages"`
	AutoDesign        bool               `json:"auto_design"`
	Processing        bool               `json:"processing"`
	HasReferenceImage bool               `json:"has_reference_image"`
	HasGeneratedImage bool               `json:"has_generated_image"`
}

// Quote is the final order confirmation returned on CHAT→SENT.
type Quote struct {
	Order  order.Order        `json:"order"`
	Extras []pricing.LineItem `json:"extras"`
	Total  int                `json:"total"`
}
