package domain

import (
	"encoding/json"
	"fmt"
)

// Conversation is the ordered history of a thread.
//
// It is an immutable value: Append returns a new Conversation and never touches
// the receiver, so a version handed to a node or a store cannot change underneath it.
// Position in the sequence is causal order. Nothing removes or reorders entries.
type Conversation struct {
	msgs []Message
}

// NewConversation builds a conversation holding a copy of msgs.
func NewConversation(msgs ...Message) Conversation {
	return Conversation{}.Append(msgs...)
}

// Append returns a new version with msgs added after the existing entries.
func (c Conversation) Append(msgs ...Message) Conversation {
	if len(msgs) == 0 {
		return c
	}
	out := make([]Message, len(c.msgs), len(c.msgs)+len(msgs))
	copy(out, c.msgs)
	return Conversation{msgs: append(out, msgs...)}
}

// Len returns the number of messages.
func (c Conversation) Len() int { return len(c.msgs) }

// IsEmpty reports whether the conversation has no messages.
func (c Conversation) IsEmpty() bool { return len(c.msgs) == 0 }

// At returns the i-th message. It panics when i is out of range, like a slice.
func (c Conversation) At(i int) Message { return c.msgs[i] }

// Messages returns a copy of the underlying sequence.
func (c Conversation) Messages() []Message {
	out := make([]Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// First returns the oldest message.
func (c Conversation) First() (Message, bool) {
	if len(c.msgs) == 0 {
		return Message{}, false
	}
	return c.msgs[0], true
}

// Last returns the newest message.
func (c Conversation) Last() (Message, bool) {
	if len(c.msgs) == 0 {
		return Message{}, false
	}
	return c.msgs[len(c.msgs)-1], true
}

// Since returns the messages appended after the first n entries.
func (c Conversation) Since(n int) []Message {
	if n >= len(c.msgs) {
		return nil
	}
	if n < 0 {
		n = 0
	}
	out := make([]Message, len(c.msgs)-n)
	copy(out, c.msgs[n:])
	return out
}

// HasPrefix reports whether prefix is an initial segment of c.
// A conversation that does not extend its previous version has lost history.
func (c Conversation) HasPrefix(prefix Conversation) bool {
	if prefix.Len() > c.Len() {
		return false
	}
	for i, m := range prefix.msgs {
		o := c.msgs[i]
		if o.Role != m.Role || o.Name != m.Name || o.Content != m.Content {
			return false
		}
	}
	return true
}

// Validate checks every message.
func (c Conversation) Validate() error {
	for i, m := range c.msgs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// MarshalJSON encodes the conversation as a JSON array of messages.
func (c Conversation) MarshalJSON() ([]byte, error) {
	if c.msgs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.msgs)
}

// UnmarshalJSON decodes a JSON array of messages.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return err
	}
	*c = Conversation{msgs: msgs}
	return c.Validate()
}
