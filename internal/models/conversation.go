package models

import "time"

type Conversation struct {
	ID            int64     `json:"id"`
	ListingID     int64     `json:"listing_id"`
	TenantID      int64     `json:"tenant_id"`
	OwnerID       int64     `json:"owner_id"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	TenantUnread  int       `json:"tenant_unread"`
	OwnerUnread   int       `json:"owner_unread"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UnreadFor returns the unread counter of the given participant.
func (c *Conversation) UnreadFor(userID int64) int {
	switch userID {
	case c.TenantID:
		return c.TenantUnread
	case c.OwnerID:
		return c.OwnerUnread
	default:
		return 0
	}
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID int64) bool {
	return userID == c.TenantID || userID == c.OwnerID
}

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Kind           string    `json:"kind"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}
