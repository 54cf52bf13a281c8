package models

// ConversationTurn is one turn in a user's conversation history
type ConversationTurn struct {
	Role      string `json:"role"` // "user" or "assistant"
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // unix seconds
}
