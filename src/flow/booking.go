package flow

import (
	"context"
	"errors"
	"fmt"
	"line_chatbot/src/booking"
	"line_chatbot/src/logger"
	"line_chatbot/src/metrics"
	"line_chatbot/src/model"
	"line_chatbot/src/storage"
	"strings"
)

const (
	stepCompleted model.Step = "completed"
	stepCancelled model.Step = "cancelled"
)

// Creator performs the terminal booking action
type Creator interface {
	CreateBooking(ctx context.Context, userID string, req booking.Request) (*booking.Result, error)
}

// Booking drives the booking state machine stored under session:booking:{user_id}
type Booking struct {
	store   storage.SessionStore
	flow    *BookingFlow
	creator Creator
}

func NewBooking(store storage.SessionStore, def *Definition, creator Creator) *Booking {
	return &Booking{store: store, flow: &def.Booking, creator: creator}
}

func (b *Booking) key(userID string) string {
	return storage.SessionKey(model.FlowBooking, userID)
}

// Active reports whether a booking session key exists for userID, valid or not
func (b *Booking) Active(ctx context.Context, userID string) (bool, error) {
	_, ok, err := b.store.Get(ctx, b.key(userID))
	if err != nil {
		return false, fmt.Errorf("failed to read booking session: %w", err)
	}
	return ok, nil
}

// Start opens a fresh session at the initial step, replacing any previous one
func (b *Booking) Start(ctx context.Context, userID string) ([]model.Message, error) {
	st := &model.BookingState{Step: b.flow.Initial}
	if err := b.save(ctx, userID, st); err != nil {
		return nil, err
	}
	b.transition(ctx, userID, "", st.Step)
	return []model.Message{b.render(st.Step, st)}, nil
}

// Menu is the reply for text that opens no flow
func (b *Booking) Menu() []model.Message {
	return []model.Message{b.flow.Messages.Menu.Message(nil)}
}

// Cancel ends any open booking session
func (b *Booking) Cancel(ctx context.Context, userID string) ([]model.Message, error) {
	if _, err := b.store.Delete(ctx, b.key(userID)); err != nil {
		return nil, fmt.Errorf("failed to delete booking session: %w", err)
	}
	return []model.Message{b.flow.Messages.Cancelled.Message(nil)}, nil
}

// HandleText applies text as the answer to the current step. Keywords are
// matched on the trimmed text; a text answer is stored as sent.
func (b *Booking) HandleText(ctx context.Context, userID, raw string) ([]model.Message, error) {
	text := strings.TrimSpace(raw)

	st, err := b.load(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		if b.flow.IsTrigger(text) {
			return b.Start(ctx, userID)
		}
		return b.Menu(), nil
	}
	if errors.Is(err, ErrCorruptSession) {
		logger.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Resetting corrupt booking session")
		return b.reset(ctx, userID, "corrupt")
	}
	if err != nil {
		return nil, err
	}

	if b.flow.IsCancel(text) {
		b.transition(ctx, userID, st.Step, stepCancelled)
		return b.Cancel(ctx, userID)
	}

	state := b.flow.States[st.Step]
	switch state.Input {
	case InputPicker:
		return []model.Message{b.render(st.Step, st)}, nil

	case InputText, InputPickerOrText:
		if text == "" {
			return []model.Message{b.render(st.Step, st)}, nil
		}
		return b.advance(ctx, userID, st, state, raw)

	case InputConfirm:
		switch {
		case containsAny(text, b.flow.Affirmative):
			return b.complete(ctx, userID, st)
		case containsAny(text, b.flow.Negative):
			b.transition(ctx, userID, st.Step, stepCancelled)
			return b.Cancel(ctx, userID)
		default:
			return []model.Message{b.flow.Messages.RepromptConfirm.Message(nil)}, nil
		}
	}

	return b.reset(ctx, userID, "input")
}

// HandlePostback writes a picker value and advances past the picker's step.
// It reports false when action belongs to no picker.
func (b *Booking) HandlePostback(ctx context.Context, userID, action string, params *model.PostbackParams) ([]model.Message, bool, error) {
	step, state, ok := b.flow.PickerState(action)
	if !ok {
		return nil, false, nil
	}

	st, err := b.load(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		st = &model.BookingState{Step: step}
	case errors.Is(err, ErrCorruptSession):
		logger.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Resetting corrupt booking session")
		msgs, err := b.reset(ctx, userID, "corrupt")
		return msgs, true, err
	case err != nil:
		return nil, true, err
	}

	value := pickerValue(state.Picker.Mode, params)
	if value == "" {
		return []model.Message{b.render(step, st)}, true, nil
	}

	msgs, err := b.advance(ctx, userID, st, state, value)
	return msgs, true, err
}

func (b *Booking) advance(ctx context.Context, userID string, st *model.BookingState, state State, value string) ([]model.Message, error) {
	from := st.Step
	setField(st, state.Field, value)
	st.Step = state.Next
	if err := b.save(ctx, userID, st); err != nil {
		return nil, err
	}
	b.transition(ctx, userID, from, st.Step)
	return []model.Message{b.render(st.Step, st)}, nil
}

// complete runs the terminal action. The session is deleted whatever the outcome.
func (b *Booking) complete(ctx context.Context, userID string, st *model.BookingState) ([]model.Message, error) {
	log := logger.Ctx(ctx)

	result, actionErr := b.creator.CreateBooking(ctx, userID, booking.Request{
		Title: st.Title,
		Date:  st.Date,
		Time:  st.Time,
	})

	if _, err := b.store.Delete(ctx, b.key(userID)); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to delete completed booking session")
	}

	if actionErr != nil {
		log.Error().Err(actionErr).Str("user_id", userID).Msg("Booking action failed")
		metrics.SessionResets.WithLabelValues(string(model.FlowBooking), "action").Inc()
		return []model.Message{b.flow.Messages.Failure.Message(nil)}, nil
	}

	b.transition(ctx, userID, st.Step, stepCompleted)
	repl := strings.NewReplacer("{link}", result.Link)
	return []model.Message{b.flow.Messages.Success.Message(repl)}, nil
}

func (b *Booking) reset(ctx context.Context, userID, reason string) ([]model.Message, error) {
	metrics.SessionResets.WithLabelValues(string(model.FlowBooking), reason).Inc()
	if _, err := b.store.Delete(ctx, b.key(userID)); err != nil {
		return nil, fmt.Errorf("failed to delete booking session: %w", err)
	}
	return []model.Message{b.flow.Messages.Restart.Message(nil)}, nil
}

// load returns storage.ErrNotFound when no session exists and ErrCorruptSession
// when the stored value is unusable
func (b *Booking) load(ctx context.Context, userID string) (*model.BookingState, error) {
	raw, ok, err := b.store.Get(ctx, b.key(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read booking session: %w", err)
	}
	if !ok {
		return nil, storage.ErrNotFound
	}
	s, err := DecodeSession(raw, model.FlowBooking)
	if err != nil {
		return nil, err
	}
	if !b.flow.Declared(s.Booking.Step) {
		return nil, fmt.Errorf("%w: undeclared step %q", ErrCorruptSession, s.Booking.Step)
	}
	return s.Booking, nil
}

func (b *Booking) save(ctx context.Context, userID string, st *model.BookingState) error {
	if !b.flow.Declared(st.Step) {
		return fmt.Errorf("refusing to store undeclared step %q", st.Step)
	}
	raw, err := EncodeSession(&model.Session{Kind: model.FlowBooking, Booking: st})
	if err != nil {
		return err
	}
	if err := b.store.Set(ctx, b.key(userID), raw, b.flow.TTL()); err != nil {
		return fmt.Errorf("failed to write booking session: %w", err)
	}
	return nil
}

// render builds the prompt of step filled from st
func (b *Booking) render(step model.Step, st *model.BookingState) model.Message {
	state := b.flow.States[step]
	repl := strings.NewReplacer("{date}", st.Date, "{time}", st.Time, "{title}", st.Title)

	msg := model.TextMessage(repl.Replace(state.Prompt))
	if state.Picker != nil {
		msg.QuickReply = append(msg.QuickReply, model.QuickReplyItem{
			Label:      state.Picker.Label,
			Data:       "action=" + state.Picker.Action,
			PickerMode: state.Picker.Mode,
		})
	}
	msg.QuickReply = append(msg.QuickReply, quickReplyItems(state.QuickReplies)...)
	return msg
}

func (b *Booking) transition(ctx context.Context, userID string, from, to model.Step) {
	metrics.FlowTransitions.WithLabelValues(string(model.FlowBooking), string(from), string(to)).Inc()
	logger.Ctx(ctx).Debug().
		Str("user_id", userID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Booking transition")
}

// Message builds the outbound message for r, filling placeholders with repl when set
func (r Reply) Message(repl *strings.Replacer) model.Message {
	text := r.Text
	if repl != nil {
		text = repl.Replace(text)
	}
	return model.TextMessage(text, quickReplyItems(r.QuickReplies)...)
}

func quickReplyItems(qs []QuickReply) []model.QuickReplyItem {
	if len(qs) == 0 {
		return nil
	}
	items := make([]model.QuickReplyItem, 0, len(qs))
	for _, q := range qs {
		items = append(items, model.QuickReplyItem{Label: q.Label, Text: q.Text})
	}
	return items
}

func setField(st *model.BookingState, field Field, value string) {
	switch field {
	case FieldDate:
		st.Date = value
	case FieldTime:
		st.Time = value
	case FieldTitle:
		st.Title = value
	}
}

func pickerValue(mode model.PickerMode, params *model.PostbackParams) string {
	if params == nil {
		return ""
	}
	switch mode {
	case model.PickerDate:
		return params.Date
	case model.PickerTime:
		return params.Time
	default:
		return params.Datetime
	}
}
