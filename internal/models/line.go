package models

// LINE Messaging API webhook and reply types.
// Only the fields this service reads are mapped; everything else in the
// webhook payload is ignored.

// WebhookRequest is the body of a LINE webhook delivery. One delivery can
// carry a batch of events from different users.
type WebhookRequest struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

// WebhookEvent is a single event inside a webhook delivery
type WebhookEvent struct {
	Type       string        `json:"type"` // "message", "follow", "unfollow", ...
	ReplyToken string        `json:"replyToken"`
	Timestamp  int64         `json:"timestamp"` // milliseconds since epoch
	Source     *EventSource  `json:"source"`
	Message    *EventMessage `json:"message"`
}

// EventSource identifies who sent the event
type EventSource struct {
	Type    string `json:"type"` // "user", "group", "room"
	UserID  string `json:"userId"`
	GroupID string `json:"groupId,omitempty"`
}

// EventMessage is the message payload of a "message" event
type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"` // "text", "image", "sticker", ...
	Text string `json:"text"`
}

// IsTextMessage reports whether this event carries a user text message
func (e *WebhookEvent) IsTextMessage() bool {
	return e.Type == "message" && e.Message != nil && e.Message.Type == "text"
}

// UserID returns the sender's user ID, or "unknown" when the source is absent
func (e *WebhookEvent) UserID() string {
	if e.Source == nil || e.Source.UserID == "" {
		return "unknown"
	}
	return e.Source.UserID
}

// ReplyRequest is the body for POST /v2/bot/message/reply
type ReplyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []TextMessage `json:"messages"`
}

// TextMessage is a plain-text outgoing LINE message
type TextMessage struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

// HandoffNotification is the payload POSTed to the handoff webhook when a
// user asks for a human agent
type HandoffNotification struct {
	UserID    string `json:"userId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
