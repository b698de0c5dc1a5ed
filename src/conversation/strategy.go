package conversation

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// ContextStrategy builds the model input from the stored history and the new message
type ContextStrategy interface {
	BuildContext(history []*schema.Message, query *schema.Message) []*schema.Message
}

// WindowStrategy sends the system prompt, the last maxTurns messages and the new message
type WindowStrategy struct {
	systemPrompt string
	maxTurns     int
}

func NewWindowStrategy(systemPrompt string, maxTurns int) *WindowStrategy {
	return &WindowStrategy{systemPrompt: strings.TrimSpace(systemPrompt), maxTurns: maxTurns}
}

func (s *WindowStrategy) BuildContext(history []*schema.Message, query *schema.Message) []*schema.Message {
	recent := trimTail(history, s.maxTurns)

	out := make([]*schema.Message, 0, len(recent)+2)
	if s.systemPrompt != "" {
		out = append(out, schema.SystemMessage(s.systemPrompt))
	}
	out = append(out, recent...)
	return append(out, query)
}

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
