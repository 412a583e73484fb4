// Package chat holds the advisor conversation: the ordered message list that
// grows as an assistant answer streams in, and the per-turn session that
// gates submissions while a stream is open.
package chat

// Role is the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message. It doubles as the wire format of the
// chat-completion request body.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user message with the given content.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message with the given content.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
