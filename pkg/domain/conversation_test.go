package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_AppendDoesNotMutate(t *testing.T) {
	base := domain.NewConversation(domain.UserMessage("hello"))
	next := base.Append(domain.AssistantMessage("supervisor", "route to researcher"))

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, next.Len())
	assert.True(t, next.HasPrefix(base))

	// Two appends on the same base must not share a backing array.
	a := base.Append(domain.AssistantMessage("a", "A"))
	b := base.Append(domain.AssistantMessage("b", "B"))
	assert.Equal(t, "A", a.At(1).Content)
	assert.Equal(t, "B", b.At(1).Content)
}

func TestConversation_MessagesIsACopy(t *testing.T) {
	c := domain.NewConversation(domain.UserMessage("original"))
	msgs := c.Messages()
	msgs[0].Content = "tampered"

	assert.Equal(t, "original", c.At(0).Content)
}

func TestConversation_FirstLast(t *testing.T) {
	var empty domain.Conversation
	_, ok := empty.First()
	assert.False(t, ok)
	_, ok = empty.Last()
	assert.False(t, ok)

	c := domain.NewConversation(
		domain.UserMessage("q"),
		domain.AssistantMessage("researcher", "r"),
		domain.AssistantMessage("coder", "c"),
	)
	first, _ := c.First()
	last, _ := c.Last()
	assert.Equal(t, "q", first.Content)
	assert.Equal(t, "coder", last.Name)
	assert.Len(t, c.Since(1), 2)
	assert.Nil(t, c.Since(3))
}

func TestConversation_HasPrefix(t *testing.T) {
	c := domain.NewConversation(domain.UserMessage("a"), domain.UserMessage("b"))

	assert.True(t, c.HasPrefix(domain.Conversation{}))
	assert.True(t, c.HasPrefix(domain.NewConversation(domain.UserMessage("a"))))
	assert.False(t, c.HasPrefix(domain.NewConversation(domain.UserMessage("b"))))
	assert.False(t, domain.NewConversation(domain.UserMessage("a")).HasPrefix(c))
}

func TestConversation_JSON(t *testing.T) {
	c := domain.NewConversation(
		domain.UserMessage("find papers"),
		domain.AssistantMessage("supervisor", "needs research"),
	)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded domain.Conversation
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c.Len(), decoded.Len())
	assert.True(t, decoded.HasPrefix(c))

	empty, err := json.Marshal(domain.Conversation{})
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(empty))
}

func TestConversation_RejectsUnknownRole(t *testing.T) {
	var c domain.Conversation
	err := json.Unmarshal([]byte(`[{"role":"robot","content":"x"}]`), &c)
	assert.Error(t, err)
}

func TestCommand_Terminal(t *testing.T) {
	assert.True(t, domain.Finish().Terminal())
	assert.False(t, domain.Goto("supervisor").Terminal())
}
