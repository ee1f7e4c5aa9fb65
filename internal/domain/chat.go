package domain

import "fmt"

// Role is the author of a chat message.
type Role string

const (
	// RoleSystem carries instructions for the model.
	RoleSystem Role = "system"
	// RoleUser carries the user's request.
	RoleUser Role = "user"
	// RoleAssistant carries a model reply.
	RoleAssistant Role = "assistant"
)

// Message is one role/content pair of a chat prompt.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ValidateMessages checks that a prompt is a non-empty sequence of messages with known roles.
func ValidateMessages(msgs []Message) error {
	if len(msgs) == 0 {
		return fmt.Errorf("%w: messages are required", ErrInvalidPrompt)
	}
	for i, m := range msgs {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidPrompt, i, m.Role)
		}
	}
	return nil
}
