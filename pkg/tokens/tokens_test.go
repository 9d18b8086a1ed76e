package tokens

import (
	"testing"

	"github.com/go-go-golems/codechat/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
	c, err := NewCounter("")
	require.NoError(t, err)

	n, err := c.Count("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = c.Count("hello world")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUnknownModelFallsBack(t *testing.T) {
	c, err := NewCounter("some-local-model")
	require.NoError(t, err)

	n, err := c.Count("hello world")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCountMessages(t *testing.T) {
	c, err := NewCounter("")
	require.NoError(t, err)

	messages := []conversation.Message{
		{Role: conversation.RoleUser, Content: "hello world"},
		{Role: conversation.RoleAssistant, Content: ""},
		{Role: conversation.RoleUser, Content: "hello world"},
	}
	n, err := c.CountMessages(messages)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
