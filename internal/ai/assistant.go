package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// IllustrationToolName is the function tool the assistant calls when a
// finished story needs its three illustrations rendered.
const IllustrationToolName = "generate_story_images"

func illustrationTool() openai.AssistantTool {
	return openai.AssistantTool{
		Type: openai.AssistantToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        IllustrationToolName,
			Description: "Generate illustrations for a children's bedtime story, one per story part.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"story_title": map[string]any{
						"type":        "string",
						"description": "The title of the story",
					},
					"character_descriptions": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"name":        map[string]any{"type": "string"},
								"description": map[string]any{"type": "string"},
							},
						},
						"description": "Physical descriptions of characters for consistent illustrations",
					},
					"image_prompts": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Three detailed image prompts, one for each part of the story",
					},
				},
				"required": []string{"story_title", "character_descriptions", "image_prompts"},
			},
		},
	}
}

// EnsureAssistant resolves the assistant to use for story threads.
// A configured ID wins; otherwise an existing assistant with the given
// name is reused, and one is created as a last resort. The resolved ID
// is cached for the lifetime of the client.
func (c *Client) EnsureAssistant(ctx context.Context, configuredID, name, instructions string) (string, error) {
	if configuredID != "" {
		return configuredID, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assistantID != "" {
		return c.assistantID, nil
	}

	limit := 100
	list, err := c.api.ListAssistants(ctx, &limit, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("ai: list assistants: %w", err)
	}
	for _, a := range list.Assistants {
		if a.Name != nil && *a.Name == name {
			log.Info().Str("assistantID", a.ID).Str("name", name).Msg("Reusing existing assistant")
			c.assistantID = a.ID
			return a.ID, nil
		}
	}

	created, err := c.api.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        c.cfg.Model,
		Name:         &name,
		Instructions: &instructions,
		Tools:        []openai.AssistantTool{illustrationTool()},
	})
	if err != nil {
		return "", fmt.Errorf("ai: create assistant: %w", err)
	}
	log.Info().Str("assistantID", created.ID).Str("name", name).Msg("Created assistant")
	c.assistantID = created.ID
	return created.ID, nil
}

// CreateThread opens a fresh conversation thread.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("ai: create thread: %w", err)
	}
	return thread.ID, nil
}

// ActiveRun returns the most recent run on the thread that is still
// executing, or nil if the thread is idle.
func (c *Client) ActiveRun(ctx context.Context, threadID string) (*openai.Run, error) {
	limit := 5
	list, err := c.api.ListRuns(ctx, threadID, openai.Pagination{Limit: &limit})
	if err != nil {
		return nil, fmt.Errorf("ai: list runs: %w", err)
	}
	for i := range list.Runs {
		if RunActive(list.Runs[i].Status) {
			return &list.Runs[i], nil
		}
	}
	return nil, nil
}

// AddUserMessage appends a user message to the thread.
func (c *Client) AddUserMessage(ctx context.Context, threadID, content string) (string, error) {
	msg, err := c.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: content,
	})
	if err != nil {
		return "", fmt.Errorf("ai: create message: %w", err)
	}
	return msg.ID, nil
}

// StartRun kicks off a run of the assistant over the thread.
func (c *Client) StartRun(ctx context.Context, threadID, assistantID string) (openai.Run, error) {
	run, err := c.api.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return openai.Run{}, fmt.Errorf("ai: create run: %w", err)
	}
	return run, nil
}

// GetRun re-reads the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (openai.Run, error) {
	run, err := c.api.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return openai.Run{}, fmt.Errorf("ai: retrieve run: %w", err)
	}
	return run, nil
}

// SubmitToolOutputs answers a requires_action run with the outputs of
// the executed tool calls, resuming the run.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []openai.ToolOutput) (openai.Run, error) {
	run, err := c.api.SubmitToolOutputs(ctx, threadID, runID, openai.SubmitToolOutputsRequest{
		ToolOutputs: outputs,
	})
	if err != nil {
		return openai.Run{}, fmt.Errorf("ai: submit tool outputs: %w", err)
	}
	return run, nil
}

// RunMessage fetches the assistant message produced by the given run
// and returns its ID and concatenated text content.
func (c *Client) RunMessage(ctx context.Context, threadID, runID string) (string, string, error) {
	limit := 10
	order := "desc"
	list, err := c.api.ListMessage(ctx, threadID, &limit, &order, nil, nil, &runID)
	if err != nil {
		return "", "", fmt.Errorf("ai: list messages: %w", err)
	}
	for _, msg := range list.Messages {
		if msg.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		var text string
		for _, part := range msg.Content {
			if part.Text != nil {
				text += part.Text.Value
			}
		}
		if text != "" {
			return msg.ID, text, nil
		}
	}
	return "", "", fmt.Errorf("ai: run %s produced no assistant message", runID)
}

// RunActive reports whether a run is still occupying its thread.
func RunActive(status openai.RunStatus) bool {
	switch status {
	case openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusRequiresAction, openai.RunStatusCancelling:
		return true
	}
	return false
}

// RunTerminal reports whether a run has reached a final state.
func RunTerminal(status openai.RunStatus) bool {
	switch status {
	case openai.RunStatusCompleted, openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired, openai.RunStatusIncomplete:
		return true
	}
	return false
}
