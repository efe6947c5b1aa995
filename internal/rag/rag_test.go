package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRecorder struct {
	answer string
	err    error

	gotSystem string
	gotUser   string
}

func (c *chatRecorder) Embed(context.Context, string) ([]float32, error) { return nil, nil }

func (c *chatRecorder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, nil
}

func (c *chatRecorder) Dim() int { return 0 }

func (c *chatRecorder) Chat(_ context.Context, system, user string) (string, error) {
	c.gotSystem = system
	c.gotUser = user
	return c.answer, c.err
}

func TestPromptJoinsContexts(t *testing.T) {
	contexts := []string{
		"Date: 2023-05-01 Author: A fix planner crash",
		"Date: 2023-06-12 Author: B add hypertable support",
	}

	got := Prompt("what changed in the planner?", contexts)

	assert.Contains(t, got, "Git Commit Records:")
	assert.Contains(t, got, "Question: what changed in the planner?")
	assert.Contains(t, got,
		"Date: 2023-05-01 Author: A fix planner crash\n* Date: 2023-06-12 Author: B add hypertable support")
}

func TestPromptSingleContextHasNoSeparator(t *testing.T) {
	got := Prompt("q", []string{"only record"})
	assert.Contains(t, got, "only record")
	assert.NotContains(t, got, "\n* ")
}

func TestPromptEmptyContexts(t *testing.T) {
	got := Prompt("q", nil)
	assert.Contains(t, got, "Question: q")
}

func TestAnswerUsesAugmentedPrompt(t *testing.T) {
	client := &chatRecorder{answer: "The planner was rewritten in May."}
	r := NewResponder(client)

	got, err := r.Answer(context.Background(), "what happened to the planner?",
		[]string{"rec one", "rec two"})
	require.NoError(t, err)
	assert.Equal(t, "The planner was rewritten in May.", got)

	assert.True(t, strings.Contains(client.gotSystem, "git commit history"),
		"system prompt should frame the task: %q", client.gotSystem)
	assert.Equal(t, Prompt("what happened to the planner?", []string{"rec one", "rec two"}),
		client.gotUser)
}

func TestAnswerErrorPropagates(t *testing.T) {
	chatErr := errors.New("quota exceeded")
	r := NewResponder(&chatRecorder{err: chatErr})

	_, err := r.Answer(context.Background(), "q", []string{"rec"})
	require.ErrorIs(t, err, chatErr)
}
