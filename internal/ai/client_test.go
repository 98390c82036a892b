package ai

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("  {\"a\":1}  "))
}

func TestLooksLikeJSONObject(t *testing.T) {
	assert.True(t, looksLikeJSONObject(`{"title":"x"}`))
	assert.True(t, looksLikeJSONObject("```json\n{\"title\":\"x\"}\n```"))
	assert.False(t, looksLikeJSONObject("Once upon a time"))
	assert.False(t, looksLikeJSONObject(`["a","b"]`))
}

func TestRunStatusClassification(t *testing.T) {
	active := []openai.RunStatus{
		openai.RunStatusQueued,
		openai.RunStatusInProgress,
		openai.RunStatusRequiresAction,
		openai.RunStatusCancelling,
	}
	for _, status := range active {
		assert.True(t, RunActive(status), string(status))
		assert.False(t, RunTerminal(status), string(status))
	}

	terminal := []openai.RunStatus{
		openai.RunStatusCompleted,
		openai.RunStatusFailed,
		openai.RunStatusCancelled,
		openai.RunStatusExpired,
		openai.RunStatusIncomplete,
	}
	for _, status := range terminal {
		assert.False(t, RunActive(status), string(status))
		assert.True(t, RunTerminal(status), string(status))
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Model: "gpt-4o"})
	assert.Error(t, err)

	_, err = NewClient(Config{APIKey: "sk-test"})
	assert.Error(t, err)

	c, err := NewClient(Config{APIKey: "sk-test", Model: "gpt-4o"})
	assert.NoError(t, err)
	assert.Equal(t, "gpt-4o", c.Model())
}
