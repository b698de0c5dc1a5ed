package model

// ----------------------------------------------------
// ================ Outbound ================

// MaxReplyMessages is the number of messages LINE accepts in a single reply
const MaxReplyMessages = 5

// OutboundType is the type of an outbound message
type OutboundType string

const (
	OutboundText     OutboundType = "text"
	OutboundLocation OutboundType = "location"
	OutboundSticker  OutboundType = "sticker"
)

// PickerMode is the mode of a datetime picker action
type PickerMode string

const (
	PickerDate     PickerMode = "date"
	PickerTime     PickerMode = "time"
	PickerDatetime PickerMode = "datetime"
)

// Message is a platform-neutral outbound message
type Message struct {
	Type       OutboundType     `json:"type"`
	Text       string           `json:"text,omitempty"`
	QuoteToken string           `json:"quoteToken,omitempty"`
	QuickReply []QuickReplyItem `json:"quickReply,omitempty"`
	Location   *Location        `json:"location,omitempty"`
	Sticker    *Sticker         `json:"sticker,omitempty"`
}

// QuickReplyItem is either a message action (Text set) or a datetime picker (PickerMode set)
type QuickReplyItem struct {
	Label      string     `json:"label"`
	Text       string     `json:"text,omitempty"`
	Data       string     `json:"data,omitempty"`
	PickerMode PickerMode `json:"pickerMode,omitempty"`
}

// Location is a location message payload
type Location struct {
	Title     string  `json:"title"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Sticker is a sticker message payload
type Sticker struct {
	PackageID string `json:"packageId"`
	StickerID string `json:"stickerId"`
}

// Profile is a LINE user profile
type Profile struct {
	UserID        string `json:"userId" bson:"userId"`
	DisplayName   string `json:"displayName" bson:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty" bson:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty" bson:"statusMessage,omitempty"`
	Language      string `json:"language,omitempty" bson:"language,omitempty"`
}

// TextMessage builds a plain text message
func TextMessage(text string, quickReply ...QuickReplyItem) Message {
	return Message{Type: OutboundText, Text: text, QuickReply: quickReply}
}
