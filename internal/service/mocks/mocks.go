// Package mocks provides testify mocks for the service dependencies.
package mocks

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/mock"

	"dreamlets-server/internal/models"
)

// AI mocks the AI provider client.
type AI struct {
	mock.Mock
}

func (m *AI) Model() string {
	return m.Called().String(0)
}

func (m *AI) CompleteJSON(ctx context.Context, system, user string, maxTokens int) (string, error) {
	args := m.Called(ctx, system, user, maxTokens)
	return args.String(0), args.Error(1)
}

func (m *AI) GenerateImage(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *AI) EnsureAssistant(ctx context.Context, configuredID, name, instructions string) (string, error) {
	args := m.Called(ctx, configuredID, name, instructions)
	return args.String(0), args.Error(1)
}

func (m *AI) CreateThread(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *AI) ActiveRun(ctx context.Context, threadID string) (*openai.Run, error) {
	args := m.Called(ctx, threadID)
	if run := args.Get(0); run != nil {
		return run.(*openai.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AI) AddUserMessage(ctx context.Context, threadID, content string) (string, error) {
	args := m.Called(ctx, threadID, content)
	return args.String(0), args.Error(1)
}

func (m *AI) StartRun(ctx context.Context, threadID, assistantID string) (openai.Run, error) {
	args := m.Called(ctx, threadID, assistantID)
	return args.Get(0).(openai.Run), args.Error(1)
}

func (m *AI) GetRun(ctx context.Context, threadID, runID string) (openai.Run, error) {
	args := m.Called(ctx, threadID, runID)
	return args.Get(0).(openai.Run), args.Error(1)
}

func (m *AI) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []openai.ToolOutput) (openai.Run, error) {
	args := m.Called(ctx, threadID, runID, outputs)
	return args.Get(0).(openai.Run), args.Error(1)
}

func (m *AI) RunMessage(ctx context.Context, threadID, runID string) (string, string, error) {
	args := m.Called(ctx, threadID, runID)
	return args.String(0), args.String(1), args.Error(2)
}

// ProfileStore mocks repository.ProfileStore.
type ProfileStore struct {
	mock.Mock
}

func (m *ProfileStore) CreateKid(ctx context.Context, owner models.Owner, attrs models.KidAttributes) (*models.Kid, error) {
	args := m.Called(ctx, owner, attrs)
	if kid := args.Get(0); kid != nil {
		return kid.(*models.Kid), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileStore) ListKids(ctx context.Context, owner models.Owner) ([]models.Kid, error) {
	args := m.Called(ctx, owner)
	if kids := args.Get(0); kids != nil {
		return kids.([]models.Kid), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileStore) UpdateKid(ctx context.Context, owner models.Owner, id int64, attrs models.KidAttributes) (*models.Kid, error) {
	args := m.Called(ctx, owner, id, attrs)
	if kid := args.Get(0); kid != nil {
		return kid.(*models.Kid), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileStore) DeleteKid(ctx context.Context, owner models.Owner, id int64) error {
	return m.Called(ctx, owner, id).Error(0)
}

func (m *ProfileStore) KidsByIDs(ctx context.Context, owner models.Owner, ids []int64) ([]models.Kid, error) {
	args := m.Called(ctx, owner, ids)
	if kids := args.Get(0); kids != nil {
		return kids.([]models.Kid), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileStore) CreateCharacter(ctx context.Context, owner models.Owner, attrs models.CharacterAttributes) (*models.Character, error) {
	args := m.Called(ctx, owner, attrs)
	if char := args.Get(0); char != nil {
		return char.(*models.Character), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileStore) ListCharacters(ctx context.Context, owner models.Owner) ([]models.Character, error) {
	args := m.Called(ctx, owner)
	if chars := args.Get(0); chars != nil {
		return chars.([]models.Character), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileStore) UpdateCharacter(ctx context.Context, owner models.Owner, id int64, attrs models.CharacterAttributes) (*models.Character, error) {
	args := m.Called(ctx, owner, id, attrs)
	if char := args.Get(0); char != nil {
		return char.(*models.Character), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileStore) DeleteCharacter(ctx context.Context, owner models.Owner, id int64) error {
	return m.Called(ctx, owner, id).Error(0)
}

func (m *ProfileStore) CharactersByIDs(ctx context.Context, owner models.Owner, ids []int64) ([]models.Character, error) {
	args := m.Called(ctx, owner, ids)
	if chars := args.Get(0); chars != nil {
		return chars.([]models.Character), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileStore) SaveStory(ctx context.Context, owner models.Owner, story *models.Story) (*models.Story, error) {
	args := m.Called(ctx, owner, story)
	if rf, ok := args.Get(0).(func(context.Context, models.Owner, *models.Story) *models.Story); ok {
		return rf(ctx, owner, story), args.Error(1)
	}
	if saved := args.Get(0); saved != nil {
		return saved.(*models.Story), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileStore) ListStories(ctx context.Context, owner models.Owner) ([]models.Story, error) {
	args := m.Called(ctx, owner)
	if stories := args.Get(0); stories != nil {
		return stories.([]models.Story), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileStore) GetStory(ctx context.Context, owner models.Owner, id int64) (*models.Story, error) {
	args := m.Called(ctx, owner, id)
	if story := args.Get(0); story != nil {
		return story.(*models.Story), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProfileStore) DeleteStory(ctx context.Context, owner models.Owner, id int64) error {
	args := m.Called(ctx, owner, id)
	return args.Error(0)
}

func (m *ProfileStore) CountStoriesSince(ctx context.Context, owner models.Owner, since time.Time) (int, error) {
	args := m.Called(ctx, owner, since)
	return args.Int(0), args.Error(1)
}

// AccountRepository mocks repository.AccountRepository.
type AccountRepository struct {
	mock.Mock
}

func (m *AccountRepository) EnsureAccount(ctx context.Context, userID string) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if account := args.Get(0); account != nil {
		return account.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AccountRepository) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if account := args.Get(0); account != nil {
		return account.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AccountRepository) ResetMonthlyUsage(ctx context.Context, userID string, resetDate time.Time) error {
	return m.Called(ctx, userID, resetDate).Error(0)
}

func (m *AccountRepository) IncrementUsage(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *AccountRepository) SaveConversation(ctx context.Context, userID string, conv models.ConversationContext) error {
	return m.Called(ctx, userID, conv).Error(0)
}

// ImageStore mocks storage.ImageStore.
type ImageStore struct {
	mock.Mock
}

func (m *ImageStore) SaveImage(ctx context.Context, ownerID, filename string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, ownerID, filename, data, contentType)
	return args.String(0), args.Error(1)
}
