package model

// ----------------------------------------------------
// ================ Webhook ================

// WebhookRequest is the body LINE posts to the webhook endpoint.
// Events is a pointer so a missing array is told apart from an empty one.
type WebhookRequest struct {
	Destination string   `json:"destination"`
	Events      *[]Event `json:"events"`
}

// EventType is the type tag of an inbound event
type EventType string

const (
	EventMessage           EventType = "message"
	EventUnsend            EventType = "unsend"
	EventFollow            EventType = "follow"
	EventUnfollow          EventType = "unfollow"
	EventJoin              EventType = "join"
	EventLeave             EventType = "leave"
	EventMemberJoined      EventType = "memberJoined"
	EventMemberLeft        EventType = "memberLeft"
	EventPostback          EventType = "postback"
	EventVideoPlayComplete EventType = "videoPlayComplete"
	EventBeacon            EventType = "beacon"
	EventAccountLink       EventType = "accountLink"
	EventThings            EventType = "things"
)

// SourceType tells whether an event came from a user, a group or a room
type SourceType string

const (
	SourceUser  SourceType = "user"
	SourceGroup SourceType = "group"
	SourceRoom  SourceType = "room"
)

// MessageType is the subtype of a message event
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageFile     MessageType = "file"
	MessageLocation MessageType = "location"
	MessageSticker  MessageType = "sticker"
)

// Event is one inbound notification
type Event struct {
	Type            EventType        `json:"type"`
	Mode            string           `json:"mode,omitempty"`
	Timestamp       int64            `json:"timestamp"`
	WebhookEventID  string           `json:"webhookEventId,omitempty"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
	Source          Source           `json:"source"`
	ReplyToken      string           `json:"replyToken,omitempty"`
	Message         *InboundMessage  `json:"message,omitempty"`
	Postback        *Postback        `json:"postback,omitempty"`
	Beacon          *Beacon          `json:"beacon,omitempty"`
	Joined          *Members         `json:"joined,omitempty"`
	Left            *Members         `json:"left,omitempty"`
	Follow          *Follow          `json:"follow,omitempty"`
}

// DeliveryContext carries redelivery information
type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// Source identifies where an event came from
type Source struct {
	Type    SourceType `json:"type"`
	UserID  string     `json:"userId,omitempty"`
	GroupID string     `json:"groupId,omitempty"`
	RoomID  string     `json:"roomId,omitempty"`
}

// InboundMessage is the payload of a message event
type InboundMessage struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type"`
	Text       string      `json:"text,omitempty"`
	QuoteToken string      `json:"quoteToken,omitempty"`
	Mention    *Mention    `json:"mention,omitempty"`
	FileName   string      `json:"fileName,omitempty"`
	FileSize   int64       `json:"fileSize,omitempty"`
	Duration   int64       `json:"duration,omitempty"`
	Title      string      `json:"title,omitempty"`
	Address    string      `json:"address,omitempty"`
	Latitude   float64     `json:"latitude,omitempty"`
	Longitude  float64     `json:"longitude,omitempty"`
	PackageID  string      `json:"packageId,omitempty"`
	StickerID  string      `json:"stickerId,omitempty"`
}

// Content is the binary payload of a media message fetched from the platform
type Content struct {
	Data     []byte
	MIMEType string
}

// Mention lists the users mentioned in a text message
type Mention struct {
	Mentionees []Mentionee `json:"mentionees"`
}

// Mentionee is one mention inside a text message
type Mentionee struct {
	Index  int    `json:"index"`
	Length int    `json:"length"`
	UserID string `json:"userId,omitempty"`
	IsSelf bool   `json:"isSelf,omitempty"`
	Type   string `json:"type"` // user | all
}

// Postback is the payload of a postback event
type Postback struct {
	Data   string          `json:"data"`
	Params *PostbackParams `json:"params,omitempty"`
}

// PostbackParams holds values chosen in a datetime picker
type PostbackParams struct {
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
	Datetime string `json:"datetime,omitempty"`
}

// Beacon is the payload of a beacon event
type Beacon struct {
	Hwid string `json:"hwid"`
	Type string `json:"type"` // enter | banner | stay
	Dm   string `json:"dm,omitempty"`
}

// Members lists members that joined or left a group
type Members struct {
	Members []Source `json:"members"`
}

// Follow is the payload of a follow event
type Follow struct {
	IsUnblocked bool `json:"isUnblocked"`
}

// IsIndividual reports whether the event was sent by a single user in a 1:1 chat
func (e Event) IsIndividual() bool {
	return e.Source.Type == SourceUser && e.Source.UserID != ""
}
