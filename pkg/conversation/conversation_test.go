package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendOnlyAndOrdering(t *testing.T) {
	c := New()
	c = c.Append(NewMessage(RoleUser, "hello"))
	c = c.Append(NewAssistantToolCallMessage("", []ToolCall{{ID: "c1", Name: "get_weather"}}))
	c = c.Append(NewToolMessage("c1", "get_weather", `{"temp":15}`))
	c = c.Append(NewMessage(RoleAssistant, "15C"))

	require.Equal(t, 4, c.Len())
	assert.Empty(t, c.PendingToolCalls())
}

func TestOrphanToolMessageRejected(t *testing.T) {
	_, err := FromMessages([]Message{
		NewMessage(RoleUser, "hi"),
		NewToolMessage("missing", "x", "y"),
	})
	require.NotNil(t, err)
}

func TestMultipleLeadingSystemMessagesRejected(t *testing.T) {
	_, err := FromMessages([]Message{
		NewMessage(RoleSystem, "a"),
		NewMessage(RoleSystem, "b"),
	})
	require.NotNil(t, err)
}

func TestPendingToolCallsPreservesDeclarationOrder(t *testing.T) {
	c := New().Append(NewAssistantToolCallMessage("", []ToolCall{
		{ID: "c1"}, {ID: "c2"}, {ID: "c3"},
	}))
	pending := c.PendingToolCalls()
	require.Len(t, pending, 3)
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{pending[0].ID, pending[1].ID, pending[2].ID})
}
