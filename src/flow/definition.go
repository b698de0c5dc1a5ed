package flow

import (
	_ "embed"
	"fmt"
	"line_chatbot/src/model"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed flows.yaml
var defaultFlows []byte

// InputKind is the shape of input a booking step accepts from plain text
type InputKind string

const (
	InputPicker       InputKind = "picker"
	InputPickerOrText InputKind = "picker_or_text"
	InputText         InputKind = "text"
	InputConfirm      InputKind = "confirm"
)

// Field names a BookingState field a step writes
type Field string

const (
	FieldDate  Field = "date"
	FieldTime  Field = "time"
	FieldTitle Field = "title"
)

// Route is where unmatched text goes when no session is open
type Route string

const (
	RouteChat Route = "chat"
	RouteMenu Route = "menu"
)

type QuickReply struct {
	Label string `yaml:"label"`
	Text  string `yaml:"text"`
}

// Reply is a configured outbound text. In YAML it is either a plain string or
// a mapping with text and quick_replies.
type Reply struct {
	Text         string       `yaml:"text"`
	QuickReplies []QuickReply `yaml:"quick_replies"`
}

func (r *Reply) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&r.Text)
	}
	type plain Reply
	return value.Decode((*plain)(r))
}

type Picker struct {
	Label  string           `yaml:"label"`
	Action string           `yaml:"action"`
	Mode   model.PickerMode `yaml:"mode"`
}

type State struct {
	Prompt       string       `yaml:"prompt"`
	Input        InputKind    `yaml:"input"`
	Picker       *Picker      `yaml:"picker"`
	Field        Field        `yaml:"field"`
	Next         model.Step   `yaml:"next"`
	QuickReplies []QuickReply `yaml:"quick_replies"`
}

type BookingMessages struct {
	Menu            Reply `yaml:"menu"`
	Cancelled       Reply `yaml:"cancelled"`
	RepromptConfirm Reply `yaml:"reprompt_confirm"`
	Restart         Reply `yaml:"restart"`
	Success         Reply `yaml:"success"`
	Failure         Reply `yaml:"failure"`
}

type BookingFlow struct {
	TTLSeconds     int                  `yaml:"ttl_seconds"`
	EntryTriggers  []string             `yaml:"entry_triggers"`
	CancelKeywords []string             `yaml:"cancel_keywords"`
	Affirmative    []string             `yaml:"affirmative"`
	Negative       []string             `yaml:"negative"`
	Initial        model.Step           `yaml:"initial"`
	States         map[model.Step]State `yaml:"states"`
	Messages       BookingMessages      `yaml:"messages"`
}

type ViewBookingsCommand struct {
	Triggers []string `yaml:"triggers"`
	Empty    string   `yaml:"empty"`
}

type CancelBookingCommand struct {
	Trigger   string `yaml:"trigger"`
	MissingID string `yaml:"missing_id"`
	NotFound  string `yaml:"not_found"`
	Done      string `yaml:"done"`
	Failure   string `yaml:"failure"`
}

type Commands struct {
	ViewBookings  ViewBookingsCommand  `yaml:"view_bookings"`
	CancelBooking CancelBookingCommand `yaml:"cancel_booking"`
}

type ChatFlow struct {
	TTLSeconds         int      `yaml:"ttl_seconds"`
	ResetKeywords      []string `yaml:"reset_keywords"`
	ResetReply         string   `yaml:"reset_reply"`
	FallbackReply      string   `yaml:"fallback_reply"`
	MaxContextMessages int      `yaml:"max_context_messages"`
	SystemPrompt       string   `yaml:"system_prompt"`
}

type StickerReply struct {
	PackageID string `yaml:"package_id"`
	StickerID string `yaml:"sticker_id"`
}

// EventReplies are the texts sent for events that open no flow
type EventReplies struct {
	Welcome          string       `yaml:"welcome"`
	WelcomeBack      string       `yaml:"welcome_back"`
	GroupGreeting    string       `yaml:"group_greeting"`
	MemberWelcome    string       `yaml:"member_welcome"`
	Mention          string       `yaml:"mention"`
	BeaconEnter      string       `yaml:"beacon_enter"`
	ContentReceived  string       `yaml:"content_received"`
	DescribeImage    string       `yaml:"describe_image"`
	DescribeAudio    string       `yaml:"describe_audio"`
	LocationReceived string       `yaml:"location_received"`
	LocationTitle    string       `yaml:"location_title"`
	LocationAddress  string       `yaml:"location_address"`
	StickerReceived  string       `yaml:"sticker_received"`
	Sticker          StickerReply `yaml:"sticker"`
	PostbackEcho     string       `yaml:"postback_echo"`
}

// Definition is the static flow configuration, immutable after load
type Definition struct {
	DefaultRoute Route        `yaml:"default_route"`
	Booking      BookingFlow  `yaml:"booking"`
	Commands     Commands     `yaml:"commands"`
	Chat         ChatFlow     `yaml:"chat"`
	Replies      EventReplies `yaml:"replies"`
}

// DefaultDefinition returns the embedded flow definition
func DefaultDefinition() (*Definition, error) {
	return ParseDefinition(defaultFlows)
}

// LoadDefinition reads the flow file at path, or the embedded default when path is empty
func LoadDefinition(path string) (*Definition, error) {
	if path == "" {
		return DefaultDefinition()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file %s: %w", path, err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("flow file %s: %w", path, err)
	}
	return def, nil
}

func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse flow definition: %w", err)
	}
	if def.DefaultRoute == "" {
		def.DefaultRoute = RouteChat
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks that the booking state graph is closed and well formed
func (d *Definition) Validate() error {
	b := d.Booking
	if b.TTLSeconds <= 0 {
		return fmt.Errorf("booking.ttl_seconds must be positive")
	}
	if d.Chat.TTLSeconds <= 0 {
		return fmt.Errorf("chat.ttl_seconds must be positive")
	}
	if len(b.EntryTriggers) == 0 {
		return fmt.Errorf("booking.entry_triggers is empty")
	}
	if len(b.Affirmative) == 0 || len(b.Negative) == 0 {
		return fmt.Errorf("booking.affirmative and booking.negative are required")
	}
	if _, ok := b.States[b.Initial]; !ok {
		return fmt.Errorf("booking.initial %q is not a declared state", b.Initial)
	}
	switch d.DefaultRoute {
	case RouteChat, RouteMenu:
	default:
		return fmt.Errorf("unknown default_route %q", d.DefaultRoute)
	}

	confirms := 0
	actions := make(map[string]model.Step)
	for name, st := range b.States {
		switch st.Input {
		case InputConfirm:
			confirms++
			continue
		case InputPicker, InputPickerOrText:
			if st.Picker == nil || st.Picker.Action == "" {
				return fmt.Errorf("state %s: picker input requires picker.action", name)
			}
			if prev, dup := actions[st.Picker.Action]; dup {
				return fmt.Errorf("state %s: picker action %s already used by %s", name, st.Picker.Action, prev)
			}
			actions[st.Picker.Action] = name
		case InputText:
		default:
			return fmt.Errorf("state %s: unknown input %q", name, st.Input)
		}
		switch st.Field {
		case FieldDate, FieldTime, FieldTitle:
		default:
			return fmt.Errorf("state %s: unknown field %q", name, st.Field)
		}
		if _, ok := b.States[st.Next]; !ok {
			return fmt.Errorf("state %s: next %q is not a declared state", name, st.Next)
		}
	}
	if confirms != 1 {
		return fmt.Errorf("booking flow needs exactly one confirm state, found %d", confirms)
	}
	return nil
}

func (b *BookingFlow) TTL() time.Duration { return time.Duration(b.TTLSeconds) * time.Second }

func (c *ChatFlow) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

// Declared reports whether step is one of the booking flow's states
func (b *BookingFlow) Declared(step model.Step) bool {
	_, ok := b.States[step]
	return ok
}

// PickerState returns the state whose picker posts action
func (b *BookingFlow) PickerState(action string) (model.Step, State, bool) {
	for name, st := range b.States {
		if st.Picker != nil && st.Picker.Action == action {
			return name, st, true
		}
	}
	return "", State{}, false
}

// IsTrigger reports whether text contains a booking entry trigger
func (b *BookingFlow) IsTrigger(text string) bool {
	return containsAny(text, b.EntryTriggers)
}

// IsCancel reports whether text is exactly a cancel keyword
func (b *BookingFlow) IsCancel(text string) bool {
	return equalsAny(text, b.CancelKeywords)
}

// IsView reports whether text asks for the booking list
func (c *Commands) IsView(text string) bool {
	return containsAny(text, c.ViewBookings.Triggers)
}

// IsCancel reports whether text is a cancel-booking command
func (c *Commands) IsCancel(text string) bool {
	return containsAny(text, []string{c.CancelBooking.Trigger})
}

// IsReset reports whether text is exactly a chat reset keyword, ignoring case
func (c *ChatFlow) IsReset(text string) bool {
	text = strings.TrimSpace(text)
	for _, k := range c.ResetKeywords {
		if strings.EqualFold(text, k) {
			return true
		}
	}
	return false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func equalsAny(text string, words []string) bool {
	text = strings.TrimSpace(text)
	for _, w := range words {
		if strings.EqualFold(text, w) {
			return true
		}
	}
	return false
}
