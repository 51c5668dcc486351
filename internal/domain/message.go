package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type MessageID string

// Message is one entry of the conversation log. Messages are never modified
// after they are appended.
type Message struct {
	ID              MessageID
	Role            Role
	Text            string
	CreatedAt       time.Time
	FromVoice       bool
	GroundingChunks []GroundingChunk
}

// Reply is what a chat session yields for one sent message.
type Reply struct {
	Text            string
	GroundingChunks []GroundingChunk
}
