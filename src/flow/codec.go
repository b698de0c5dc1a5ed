package flow

import (
	"errors"
	"fmt"
	"line_chatbot/src/model"

	"github.com/bytedance/sonic"
)

// ErrCorruptSession marks a stored session that cannot be trusted
var ErrCorruptSession = errors.New("corrupt session")

// EncodeSession serializes a session envelope, stamping the current version
func EncodeSession(s *model.Session) (string, error) {
	s.Version = model.SessionVersion
	data, err := sonic.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}
	return string(data), nil
}

// DecodeSession parses raw and checks it is a current-version session of kind
func DecodeSession(raw string, kind model.FlowKind) (*model.Session, error) {
	var s model.Session
	if err := sonic.UnmarshalString(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	if s.Version != model.SessionVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSession, s.Version)
	}
	if s.Kind != kind {
		return nil, fmt.Errorf("%w: kind %q stored under %s key", ErrCorruptSession, s.Kind, kind)
	}
	switch kind {
	case model.FlowBooking:
		if s.Booking == nil {
			return nil, fmt.Errorf("%w: missing booking state", ErrCorruptSession)
		}
	case model.FlowChat:
		if s.Chat == nil {
			return nil, fmt.Errorf("%w: missing chat transcript", ErrCorruptSession)
		}
	}
	return &s, nil
}
