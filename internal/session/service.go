package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"cakestudio/internal/catalog"
	"cakestudio/internal/events"
	"cakestudio/internal/order"
	"cakestudio/internal/pricing"
	"cakestudio/internal/prompts"
	"cakestudio/internal/vision"
)

const processTopic = "session.process"

const (
	processingNotice  = "⏳ 답변/시안 생성 중입니다. 잠시만 기다려 주세요!"
	validationNotice  = "⚠️ 모든 정보를 입력해주세요!"
	invalidSlotNotice = "선택한 날짜에 예약 가능한 시간이 아닙니다."
	imageRemovedMsg   = "참고 사진이 제거되었습니다."
)

// ErrBusy is returned when a chat turn arrives while the previous one is
// still being processed.
var ErrBusy = errors.New("session is processing a previous turn")

// ErrWrongPhase is returned for operations invalid in the current phase.
var ErrWrongPhase = errors.New("operation not allowed in current phase")

// ValidationError carries the user-visible message for rejected intake.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IntentExtractor merges one chat turn into the order. Implemented by
// intent.Extractor; failures are pre-recovered into the reply text.
type IntentExtractor interface {
	Extract(ctx context.Context, userText string, current order.Order, history []prompts.HistoryTurn) (order.Order, string)
}

// BriefGenerator produces a design brief. Implemented by vision.Designer.
type BriefGenerator interface {
	Brief(ctx context.Context, req vision.BriefRequest) (string, error)
}

// ImageSynthesizer renders the brief. Implemented by vision.Synthesizer;
// nil, nil means generation is unavailable.
type ImageSynthesizer interface {
	Synthesize(ctx context.Context, designBrief, userPrompt, filling string) ([]byte, error)
}

// Service owns the session registry and sequences the AI pipeline through
// the deferred-processing queue.
type Service struct {
	registry    *Registry
	catalog     catalog.Catalog
	extractor   IntentExtractor
	designer    BriefGenerator
	synthesizer ImageSynthesizer
	pubSub      *gochannel.GoChannel
	events      *events.Broker
	logger      *zap.Logger
}

// NewService wires the service. The gochannel pub/sub carries one job per
// submitted chat turn; Run must be called once to start the consumer.
func NewService(registry *Registry, cat catalog.Catalog, extractor IntentExtractor, designer BriefGenerator, synthesizer ImageSynthesizer, broker *events.Broker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:    registry,
		catalog:     cat,
		extractor:   extractor,
		designer:    designer,
		synthesizer: synthesizer,
		pubSub:      gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
		events:      broker,
		logger:      logger,
	}
}

// Catalog exposes the immutable catalog for the HTTP layer.
func (s *Service) Catalog() catalog.Catalog { return s.catalog }

// Create starts a fresh FORM-phase session.
func (s *Service) Create() Snapshot {
	sess := s.registry.Create()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.snapshotLocked(sess)
}

// Get returns the current snapshot.
func (s *Service) Get(id string) (Snapshot, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.snapshotLocked(sess), nil
}

// IntakeInput carries the FORM fields.
type IntakeInput struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Size       string `json:"size"`
	Filling    string `json:"filling"`
	PickupDate string `json:"pickup_date"`
	PickupTime string `json:"pickup_time"`
}

// Intake performs the FORM→CHAT transition. Missing name, phone or pickup
// time rejects the transition with a validation message and the session
// stays in FORM.
func (s *Service) Intake(id string, input IntakeInput) (Snapshot, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Phase != PhaseForm {
		return Snapshot{}, fmt.Errorf("intake: %w", ErrWrongPhase)
	}
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Phone) == "" || strings.TrimSpace(input.PickupTime) == "" {
		return Snapshot{}, &ValidationError{Message: validationNotice}
	}
	if !s.catalog.HasSlot(input.PickupDate, input.PickupTime) {
		return Snapshot{}, &ValidationError{Message: invalidSlotNotice}
	}

	sess.Order = order.New(input.Name, input.Phone, input.Size, input.Filling, input.PickupDate, input.PickupTime)
	s.repriceLocked(sess)
	sess.Messages = []Message{{Role: RoleAssistant, Content: welcomeMessage(input.Name)}}
	sess.Phase = PhaseChat

	s.publishEvent(events.Event{SessionID: sess.ID, Kind: events.KindPhase, Phase: string(sess.Phase)})
	s.logger.Info("session entered chat phase", zap.String("session_id", sess.ID), zap.Int("price", sess.Order.Price))
	return s.snapshotLocked(sess), nil
}

type processJob struct {
	SessionID string `json:"session_id"`
}

// Chat accepts one user turn: the turn and a processing placeholder are
// appended immediately, then the real work is queued so a caller sees the
// placeholder before any network latency is incurred.
func (s *Service) Chat(id, text string) (Snapshot, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()

	if sess.Phase != PhaseChat {
		sess.mu.Unlock()
		return Snapshot{}, fmt.Errorf("chat: %w", ErrWrongPhase)
	}
	if sess.placeholderIdx >= 0 {
		sess.mu.Unlock()
		return Snapshot{}, ErrBusy
	}

	sess.Messages = append(sess.Messages, Message{Role: RoleUser, Content: text})
	sess.placeholderIdx = len(sess.Messages)
	sess.Messages = append(sess.Messages, Message{Role: RoleAssistant, Content: processingNotice})
	sess.pendingPrompt = text
	snapshot := s.snapshotLocked(sess)
	sess.mu.Unlock()

	payload, err := json.Marshal(processJob{SessionID: id})
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal process job: %w", err)
	}
	if err := s.pubSub.Publish(processTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		return Snapshot{}, fmt.Errorf("publish process job: %w", err)
	}

	s.publishEvent(events.Event{SessionID: id, Kind: events.KindTurn})
	return snapshot, nil
}

// AttachReference stores a reference photo, flags the order and reprices.
// This is a direct mutation, not routed through the intent extractor.
func (s *Service) AttachReference(id string, data []byte) (Snapshot, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Phase != PhaseChat {
		return Snapshot{}, fmt.Errorf("attach reference: %w", ErrWrongPhase)
	}

	sess.ReferenceImage = data
	sess.Order.HasImage = true
	s.repriceLocked(sess)
	sess.Messages = append(sess.Messages, Message{
		Role:    RoleAssistant,
		Content: fmt.Sprintf("참고 사진이 추가되었습니다. (+%s원)", formatWon(s.catalog.Menu.Extras.Image)),
	})
	s.publishEvent(events.Event{SessionID: id, Kind: events.KindTurn})
	return s.snapshotLocked(sess), nil
}

// DetachReference removes the reference photo and reverses its fee.
func (s *Service) DetachReference(id string) (Snapshot, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Phase != PhaseChat {
		return Snapshot{}, fmt.Errorf("detach reference: %w", ErrWrongPhase)
	}

	sess.ReferenceImage = nil
	sess.Order.HasImage = false
	s.repriceLocked(sess)
	sess.Messages = append(sess.Messages, Message{Role: RoleAssistant, Content: imageRemovedMsg})
	s.publishEvent(events.Event{SessionID: id, Kind: events.KindTurn})
	return s.snapshotLocked(sess), nil
}

// SetAutoDesign toggles automatic brief + image generation per chat turn.
func (s *Service) SetAutoDesign(id string, enabled bool) (Snapshot, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.AutoDesign = enabled
	return s.snapshotLocked(sess), nil
}

// Confirm finalizes the order: CHAT→SENT, terminal.
func (s *Service) Confirm(id string) (Quote, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return Quote{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Phase != PhaseChat {
		return Quote{}, fmt.Errorf("confirm: %w", ErrWrongPhase)
	}
	sess.Phase = PhaseSent
	s.publishEvent(events.Event{SessionID: id, Kind: events.KindPhase, Phase: string(sess.Phase)})
	s.logger.Info("order confirmed", zap.String("session_id", id), zap.Int("total", sess.Order.Price))

	return Quote{
		Order:  sess.Order,
		Extras: pricing.Breakdown(sess.Order, s.catalog.Menu),
		Total:  sess.Order.Price,
	}, nil
}

// Reset swaps in a fresh FORM-phase session under the same ID.
func (s *Service) Reset(id string) (Snapshot, error) {
	sess, err := s.registry.Replace(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.publishEvent(events.Event{SessionID: id, Kind: events.KindPhase, Phase: string(PhaseForm)})
	return s.snapshotLocked(sess), nil
}

// GeneratedImage returns the most recently generated design image.
func (s *Service) GeneratedImage(id string) ([]byte, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if len(sess.GeneratedImage) == 0 {
		return nil, nil
	}
	img := make([]byte, len(sess.GeneratedImage))
	copy(img, sess.GeneratedImage)
	return img, nil
}

func (s *Service) snapshotLocked(sess *Session) Snapshot {
	messages := make([]Message, len(sess.Messages))
	copy(messages, sess.Messages)
	return Snapshot{
		ID:                sess.ID,
		Phase:             sess.Phase,
		Order:             sess.Order,
		Extras:            pricing.Breakdown(sess.Order, s.catalog.Menu),
		Messages:          messages,
		AutoDesign:        sess.AutoDesign,
		Processing:        sess.placeholderIdx >= 0,
		HasReferenceImage: len(sess.ReferenceImage) > 0,
		HasGeneratedImage: len(sess.GeneratedImage) > 0,
	}
}

// repriceLocked recomputes the derived price; the order never carries a
// stale price past a mutation.
func (s *Service) repriceLocked(sess *Session) {
	previous := sess.Order.Price
	sess.Order.Price = pricing.Calculate(sess.Order, s.catalog.Menu)
	if sess.Order.Price != previous {
		s.publishEvent(events.Event{SessionID: sess.ID, Kind: events.KindPrice, Price: sess.Order.Price})
	}
}

func (s *Service) publishEvent(evt events.Event) {
	if s.events != nil {
		s.events.Publish(evt)
	}
}

func welcomeMessage(name string) string {
	return fmt.Sprintf("안녕하세요 %s님! 👋 왼쪽 주문서 보이시죠?\n\n"+
		"원하는 케이크의 디자인과 레터링 문구를 적어주세요.\n\n"+
		"케이크 디자인 : \n"+
		"레터링 : \n"+
		"(왼쪽에 사진에 초안을 업로드해주면 최고~!)\n\n"+
		"케이크 디자인은 최대한 상세하게 적어주세요 😊", name)
}

func formatWon(amount int) string {
	raw := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, digit := range raw {
		if i > 0 && (len(raw)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return b.String()
}
