package conversation

import (
	"context"
	"errors"
	"fmt"
	"line_chatbot/src/flow"
	"line_chatbot/src/llm"
	"line_chatbot/src/logger"
	"line_chatbot/src/metrics"
	"line_chatbot/src/model"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Service runs the free-form chat flow: accumulate or reset
type Service struct {
	repo     Repository
	model    llm.ChatModel
	strategy ContextStrategy
	chat     flow.ChatFlow
}

func NewService(repo Repository, chatModel llm.ChatModel, def *flow.Definition) *Service {
	return &Service{
		repo:     repo,
		model:    chatModel,
		strategy: NewWindowStrategy(def.Chat.SystemPrompt, def.Chat.MaxContextMessages),
		chat:     def.Chat,
	}
}

// Active reports whether userID has an open chat transcript
func (s *Service) Active(ctx context.Context, userID string) (bool, error) {
	return s.repo.Exists(ctx, userID)
}

// Handle answers text and appends both turns to the transcript
func (s *Service) Handle(ctx context.Context, userID, text string) ([]model.Message, error) {
	log := logger.Ctx(ctx)

	if s.chat.IsReset(text) {
		if _, err := s.repo.Delete(ctx, userID); err != nil {
			return nil, err
		}
		metrics.FlowTransitions.WithLabelValues(string(model.FlowChat), "open", "reset").Inc()
		return s.resetReply(), nil
	}

	transcript, err := s.repo.Load(ctx, userID)
	if errors.Is(err, flow.ErrCorruptSession) {
		log.Warn().Err(err).Str("user_id", userID).Msg("Resetting corrupt chat session")
		metrics.SessionResets.WithLabelValues(string(model.FlowChat), "corrupt").Inc()
		if _, err := s.repo.Delete(ctx, userID); err != nil {
			return nil, err
		}
		return s.resetReply(), nil
	}
	if err != nil {
		return nil, err
	}

	query := schema.UserMessage(text)
	out, err := s.model.Generate(ctx, s.strategy.BuildContext(transcript.Turns, query))
	if err != nil {
		return nil, fmt.Errorf("chat model failed: %w", err)
	}

	answer := ""
	if out != nil {
		answer = strings.TrimSpace(out.Content)
	}
	if answer == "" {
		answer = s.chat.FallbackReply
	}

	transcript.Turns = append(transcript.Turns, query, schema.AssistantMessage(answer, nil))
	if err := s.repo.Save(ctx, userID, transcript); err != nil {
		return nil, err
	}

	log.Debug().
		Str("user_id", userID).
		Int("turns", len(transcript.Turns)).
		Msg("Chat transcript updated")

	return []model.Message{model.TextMessage(answer)}, nil
}

func (s *Service) resetReply() []model.Message {
	if s.chat.ResetReply == "" {
		return nil
	}
	return []model.Message{model.TextMessage(s.chat.ResetReply)}
}
