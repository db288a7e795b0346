package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"cakestudio/internal/events"
	"cakestudio/internal/order"
	"cakestudio/internal/prompts"
	"cakestudio/internal/vision"
)

// Run starts the deferred-processing consumer. One job is queued per chat
// turn; within a session jobs never overlap because a second turn is
// rejected while a placeholder is outstanding.
func (s *Service) Run(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, processTopic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", processTopic, err)
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()
	return nil
}

// Close shuts the underlying pub/sub down.
func (s *Service) Close() error {
	return s.pubSub.Close()
}

func (s *Service) processMessage(ctx context.Context, msg *message.Message) {
	// A job is consumed exactly once; failures surface in the placeholder
	// turn instead of being retried.
	defer msg.Ack()

	var job processJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		s.logger.Error("drop malformed process job", zap.Error(err))
		return
	}

	sess, err := s.registry.Get(job.SessionID)
	if err != nil {
		s.logger.Warn("process job for unknown session", zap.String("session_id", job.SessionID))
		return
	}

	s.processTurn(ctx, sess)
}

// processTurn runs the extractor and, with auto-design on, the brief and
// image stages. Nothing here may kill the session: every failure,
// including a panic, becomes a placeholder error message.
func (s *Service) processTurn(ctx context.Context, sess *Session) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during deferred processing", zap.String("session_id", sess.ID), zap.Any("panic", r))
			s.finishTurn(sess, fmt.Sprintf("처리 중 오류가 발생했습니다: %v", r), nil, "", false)
		}
	}()

	sess.mu.Lock()
	prompt := sess.pendingPrompt
	current := sess.Order
	auto := sess.AutoDesign
	reference := sess.ReferenceImage
	history := make([]prompts.HistoryTurn, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		if m.Content == "" {
			continue
		}
		history = append(history, prompts.HistoryTurn{Role: m.Role, Content: m.Content})
	}
	sess.mu.Unlock()

	updated, reply := s.extractor.Extract(ctx, prompt, current, history)

	if !auto {
		s.commitOrder(sess, updated)
		s.finishTurn(sess, reply, nil, "", false)
		return
	}

	s.commitOrder(sess, updated)

	combined := prompts.BuildCombinedChatPrompt(prompt, updated.DesignDesc, updated.Lettering)
	brief, err := s.designer.Brief(ctx, vision.BriefRequest{
		UserPrompt:     combined,
		Filling:        updated.Filling,
		ReferenceImage: reference,
	})
	if err != nil {
		s.finishTurn(sess, fmt.Sprintf("처리 중 오류가 발생했습니다: %v", err), nil, "", false)
		return
	}

	img, err := s.synthesizer.Synthesize(ctx, brief, combined, updated.Filling)
	if err != nil || len(img) == 0 {
		if err != nil {
			s.logger.Warn("design image generation failed", zap.String("session_id", sess.ID), zap.Error(err))
		}
		s.finishTurn(sess, "시안 이미지 생성에 실패했습니다. (권한/모델 문제일 수 있음)\n\nAI 응답: "+reply, nil, "", false)
		return
	}

	notice := fmt.Sprintf("✅ 시안이 생성되었습니다!\n\n디자인 제안:\n%s\n\n생성된 시안은 사이드바와 최종 견적서에서 확인할 수 있습니다.", brief)
	s.finishTurn(sess, notice, img, brief, true)
}

// commitOrder installs the merged order. The reference-photo flag is taken
// from the live session because attach/detach may have run while the
// extractor was on the wire.
func (s *Service) commitOrder(sess *Session, updated order.Order) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	updated.HasImage = sess.Order.HasImage
	sess.Order = updated
	s.repriceLocked(sess)
}

// finishTurn replaces the placeholder turn in place and clears the
// pending-job bookkeeping. When a brief was generated it overwrites
// design_desc and the image becomes the session's current design.
func (s *Service) finishTurn(sess *Session, finalMsg string, img []byte, brief string, applyBrief bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if applyBrief {
		sess.Order.DesignDesc = brief
		s.repriceLocked(sess)
	}
	if len(img) > 0 {
		sess.GeneratedImage = img
		s.publishEvent(events.Event{SessionID: sess.ID, Kind: events.KindImage})
	}

	if sess.placeholderIdx >= 0 && sess.placeholderIdx < len(sess.Messages) {
		sess.Messages[sess.placeholderIdx].Content = finalMsg
	} else {
		sess.Messages = append(sess.Messages, Message{Role: RoleAssistant, Content: finalMsg})
	}
	sess.placeholderIdx = -1
	sess.pendingPrompt = ""

	s.publishEvent(events.Event{SessionID: sess.ID, Kind: events.KindProcessed})
}
