package domain

import (
	"fmt"
	"time"
)

// Role identifies who authored a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single entry of a Conversation.
// Once appended it is never modified.
type Message struct {
	Role Role `json:"role"`
	// Name is the node that authored the message. Empty for user input.
	Name      string    `json:"name,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// UserMessage builds a message authored by the human operator.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: time.Now().UTC()}
}

// AssistantMessage builds a message authored by the named node.
func AssistantMessage(name, content string) Message {
	return Message{Role: RoleAssistant, Name: name, Content: content, CreatedAt: time.Now().UTC()}
}

// SystemMessage builds a system-authored message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, CreatedAt: time.Now().UTC()}
}

// Validate checks the structural invariants of a message.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	return nil
}
