// Package service implements the story generation pipeline: quota
// gating, family context assembly, narrative generation (stateless and
// assistant-backed), illustration fan-out and final story assembly.
package service

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"dreamlets-server/internal/models"
	"dreamlets-server/internal/repository"
)

// AI is the slice of the AI client the services depend on. It exists
// so tests can substitute a mock provider.
type AI interface {
	Model() string
	CompleteJSON(ctx context.Context, system, user string, maxTokens int) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)

	EnsureAssistant(ctx context.Context, configuredID, name, instructions string) (string, error)
	CreateThread(ctx context.Context) (string, error)
	ActiveRun(ctx context.Context, threadID string) (*openai.Run, error)
	AddUserMessage(ctx context.Context, threadID, content string) (string, error)
	StartRun(ctx context.Context, threadID, assistantID string) (openai.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (openai.Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []openai.ToolOutput) (openai.Run, error)
	RunMessage(ctx context.Context, threadID, runID string) (string, string, error)
}

// StoreSelector routes profile operations to the right backend:
// PostgreSQL for registered accounts, Redis for guest sessions.
type StoreSelector struct {
	Accounts repository.ProfileStore
	Guests   repository.ProfileStore
}

// For returns the profile store responsible for the owner.
func (s StoreSelector) For(owner models.Owner) repository.ProfileStore {
	if owner.Guest {
		return s.Guests
	}
	return s.Accounts
}
