package model

import "time"

// Conversation is the directory entry for a 1:1 thread, keyed by the
// canonicalized participant pair (UserLo < UserHi). Wallpaper and tone are
// shared between both participants, last write wins.
type Conversation struct {
	ID            string     `json:"id"`
	UserLo        string     `json:"user_lo"`
	UserHi        string     `json:"user_hi"`
	LastMessageID *string    `json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Wallpaper     string     `json:"wallpaper,omitempty"`
	Tone          string     `json:"tone,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Other returns the participant opposite to userID.
func (c *Conversation) Other(userID string) string {
	if c.UserLo == userID {
		return c.UserHi
	}
	return c.UserLo
}

// PairKey canonicalizes two user ids into the stored (lo, hi) order.
func PairKey(a, b string) (lo, hi string) {
	if a < b {
		return a, b
	}
	return b, a
}

// ConversationSummary is one row of a user's conversation list, resolved to
// the other participant's side.
type ConversationSummary struct {
	ConversationID string      `json:"conversation_id"`
	OtherUser      UserPublic  `json:"other_user"`
	LastMessage    *Message    `json:"last_message,omitempty"`
	LastMessageAt  *time.Time  `json:"last_message_at,omitempty"`
	UnreadCount    int         `json:"unread_count"`
	Pinned         bool        `json:"pinned"`
	Muted          bool        `json:"muted"`
	Wallpaper      string      `json:"wallpaper,omitempty"`
	Tone           string      `json:"tone,omitempty"`
}
