package ws

import "github.com/fitgram/internal/model"

// IncomingEvent is the tagged union a client sends over the channel. The
// boundary validates the tag before anything reaches the delivery
// coordinator; unknown tags answer an error event.
type IncomingEvent struct {
	Type string `json:"type"`

	// message
	To            string            `json:"to,omitempty"`
	Text          string            `json:"text,omitempty"`
	ContentType   model.MessageType `json:"content_type,omitempty"`
	MediaURL      string            `json:"media_url,omitempty"`
	Caption       string            `json:"caption,omitempty"`
	ReplyTo       *string           `json:"reply_to,omitempty"`
	ForwardedFrom *string           `json:"forwarded_from,omitempty"`

	// typing
	IsTyping bool `json:"is_typing,omitempty"`

	// read: "I have read messages from From"
	From string `json:"from,omitempty"`
}

// OutgoingEvent is what the server writes to a client connection.
type OutgoingEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const eventError = "error"
