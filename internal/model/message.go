package model

import "time"

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeDoc   MessageType = "doc"
	MessageTypeAudio MessageType = "audio"
	MessageTypeVoice MessageType = "voice"
)

// ValidMessageType reports whether t is one of the known content types.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeDoc, MessageTypeAudio, MessageTypeVoice:
		return true
	}
	return false
}

type MessageStatus string

// Status only ever advances: sent -> delivered -> read.
const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// AllowedReactions is the fixed emoji set accepted by reaction toggles.
var AllowedReactions = []string{"👍", "❤️", "😂", "😮", "😢", "🙏"}

// AllowedReaction reports whether emoji is in AllowedReactions.
func AllowedReaction(emoji string) bool {
	for _, e := range AllowedReactions {
		if e == emoji {
			return true
		}
	}
	return false
}

type Message struct {
	ID                 string        `json:"id"`
	ConversationID     string        `json:"conversation_id"`
	FromUser           string        `json:"from_user"`
	ToUser             string        `json:"to_user"`
	Text               string        `json:"text,omitempty"`
	Type               MessageType   `json:"type"`
	MediaURL           string        `json:"media_url,omitempty"`
	Caption            string        `json:"caption,omitempty"`
	ReplyTo            *string       `json:"reply_to,omitempty"`
	ForwardedFrom      *string       `json:"forwarded_from,omitempty"`
	Status             MessageStatus `json:"status"`
	DeletedForEveryone bool          `json:"deleted_for_everyone"`
	CreatedAt          time.Time     `json:"created_at"`

	Reactions []Reaction `json:"reactions,omitempty"`
	StarredBy []string   `json:"starred_by,omitempty"`
}

// Redact blanks the content of a message deleted for everyone. The row itself
// survives so reply chains and ordering stay intact.
func (m *Message) Redact() {
	if !m.DeletedForEveryone {
		return
	}
	m.Text = ""
	m.MediaURL = ""
	m.Caption = ""
}

// IsParticipant reports whether userID is one of the two conversation sides.
func (m *Message) IsParticipant(userID string) bool {
	return m.FromUser == userID || m.ToUser == userID
}

type Reaction struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}
