package model

import "github.com/cloudwego/eino/schema"

// Cache key layout
//
// session:booking:{user_id}  // booking flow state, TTL from flow definition
// session:chat:{user_id}     // chat transcript, TTL from flow definition
// line:profile:{user_id}     // cached LINE profile, 5 minutes
// event:{webhook_event_id}   // redelivery claim

// SessionVersion is the schema version written into every session envelope
const SessionVersion = 1

// FlowKind names a flow and its session namespace
type FlowKind string

const (
	FlowBooking FlowKind = "booking"
	FlowChat    FlowKind = "chat"
)

// Step is a position in a named-step flow
type Step string

// Session is the envelope stored under session:{kind}:{user_id}.
// Exactly one of Booking or Chat is set, matching Kind.
type Session struct {
	Version int             `json:"v"`
	Kind    FlowKind        `json:"kind"`
	Booking *BookingState   `json:"booking,omitempty"`
	Chat    *ChatTranscript `json:"chat,omitempty"`
}

// BookingState holds the fields collected so far by the booking flow
type BookingState struct {
	Step  Step   `json:"step"`
	Date  string `json:"date,omitempty"`
	Time  string `json:"time,omitempty"`
	Title string `json:"title,omitempty"`
}

// ChatTranscript is the append-only history of a chat session
type ChatTranscript struct {
	Turns []*schema.Message `json:"turns"`
}
