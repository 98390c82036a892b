package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dreamlets-server/internal/models"
	"dreamlets-server/internal/service"
	"dreamlets-server/internal/service/mocks"
)

const assistantResponseJSON = `{
	"title": "Mia and the Star Whale",
	"part1": "The night sky shimmered...",
	"part2": "The whale dove through clouds...",
	"part3": "Mia drifted off to sleep.",
	"characterDescriptions": [{"name": "Mia", "description": "5-year-old with brown hair"}]
}`

func testAssistantConfig() service.AssistantConfig {
	return service.AssistantConfig{
		Name:         "Dreamlets Storytelling Companion",
		PollInterval: time.Millisecond,
		RunTimeout:   2 * time.Second,
	}
}

func testFamily() (models.GenerationRequest, models.FamilyContext) {
	req := models.GenerationRequest{KidIDs: []int64{1}, StoryIdea: "star whale", Tone: models.ToneDreamy}
	fam := models.FamilyContext{
		KidNames: []string{"Mia"},
		Kids:     []models.Kid{{ID: 1, Name: "Mia", Age: 5}},
	}
	return req, fam
}

func TestEnsureConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("existing context is reused", func(t *testing.T) {
		aiMock := new(mocks.AI)
		svc := service.NewAssistantService(aiMock, nil, testAssistantConfig(), zap.NewNop())

		conv, created, err := svc.EnsureConversation(ctx, models.ConversationContext{AssistantID: "asst_1", ThreadID: "thread_1"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "thread_1", conv.ThreadID)
		aiMock.AssertNotCalled(t, "CreateThread", mock.Anything)
	})

	t.Run("corrupt context is replaced", func(t *testing.T) {
		aiMock := new(mocks.AI)
		aiMock.On("EnsureAssistant", ctx, "", "Dreamlets Storytelling Companion", mock.AnythingOfType("string")).
			Return("asst_new", nil).Once()
		aiMock.On("CreateThread", ctx).Return("thread_new", nil).Once()

		svc := service.NewAssistantService(aiMock, nil, testAssistantConfig(), zap.NewNop())
		conv, created, err := svc.EnsureConversation(ctx, models.ConversationContext{AssistantID: "undefined", ThreadID: "thread_1"})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "asst_new", conv.AssistantID)
		assert.Equal(t, "thread_new", conv.ThreadID)
		aiMock.AssertExpectations(t)
	})
}

func TestAssistantGenerateStory(t *testing.T) {
	ctx := context.Background()
	owner := models.Owner{ID: "user-1"}
	conv := models.ConversationContext{AssistantID: "asst_1", ThreadID: "thread_1"}
	req, fam := testFamily()

	t.Run("run with illustration tool call", func(t *testing.T) {
		srv := imageServer(t)

		aiMock := new(mocks.AI)
		aiMock.On("ActiveRun", ctx, "thread_1").Return(nil, nil).Once()
		aiMock.On("AddUserMessage", ctx, "thread_1", mock.AnythingOfType("string")).Return("msg_user", nil).Once()
		aiMock.On("StartRun", ctx, "thread_1", "asst_1").
			Return(openai.Run{ID: "run_1", Status: openai.RunStatusQueued}, nil).Once()

		toolCall := openai.ToolCall{
			ID:   "call_1",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      "generate_story_images",
				Arguments: `{"story_title":"Mia and the Star Whale","character_descriptions":[{"name":"Mia","description":"5-year-old"}],"image_prompts":["p1","p2","p3"]}`,
			},
		}
		aiMock.On("GetRun", ctx, "thread_1", "run_1").Return(openai.Run{
			ID:     "run_1",
			Status: openai.RunStatusRequiresAction,
			RequiredAction: &openai.RunRequiredAction{
				Type:              openai.RequiredActionTypeSubmitToolOutputs,
				SubmitToolOutputs: &openai.SubmitToolOutputs{ToolCalls: []openai.ToolCall{toolCall}},
			},
		}, nil).Once()

		aiMock.On("GenerateImage", ctx, mock.AnythingOfType("string")).Return(srv.URL+"/img.png", nil).Times(3)
		store := new(mocks.ImageStore)
		store.On("SaveImage", ctx, "user-1", mock.AnythingOfType("string"), mock.Anything, "image/png").
			Return("/images/user-1/img.png", nil).Times(3)

		aiMock.On("SubmitToolOutputs", ctx, "thread_1", "run_1", mock.MatchedBy(func(outputs []openai.ToolOutput) bool {
			return len(outputs) == 1 && outputs[0].ToolCallID == "call_1"
		})).Return(openai.Run{ID: "run_1", Status: openai.RunStatusCompleted}, nil).Once()

		aiMock.On("RunMessage", ctx, "thread_1", "run_1").Return("msg_assistant", assistantResponseJSON, nil).Once()

		illustrations := service.NewIllustrationService(aiMock, store, 5*time.Second, zap.NewNop())
		svc := service.NewAssistantService(aiMock, illustrations, testAssistantConfig(), zap.NewNop())

		narrative, images, err := svc.GenerateStory(ctx, owner, conv, req, fam, false)
		require.NoError(t, err)
		assert.Equal(t, "Mia and the Star Whale", narrative.Title)
		assert.Equal(t, "run_1", narrative.RunID)
		assert.Equal(t, "msg_assistant", narrative.MessageID)
		assert.Equal(t, "Mia: 5-year-old with brown hair", narrative.ConsistencySheet)
		for i := range images {
			assert.NotNil(t, images[i], "slot %d", i+1)
		}
		aiMock.AssertExpectations(t)
	})

	t.Run("first turn sends the family roster", func(t *testing.T) {
		aiMock := new(mocks.AI)
		aiMock.On("ActiveRun", ctx, "thread_1").Return(nil, nil).Once()
		aiMock.On("AddUserMessage", ctx, "thread_1", mock.MatchedBy(func(msg string) bool {
			return strings.Contains(msg, "## Children:")
		})).Return("msg_user", nil).Once()
		aiMock.On("StartRun", ctx, "thread_1", "asst_1").
			Return(openai.Run{ID: "run_1", Status: openai.RunStatusCompleted}, nil).Once()
		aiMock.On("RunMessage", ctx, "thread_1", "run_1").Return("msg_assistant", assistantResponseJSON, nil).Once()

		svc := service.NewAssistantService(aiMock, nil, testAssistantConfig(), zap.NewNop())
		_, _, err := svc.GenerateStory(ctx, owner, conv, req, fam, true)
		require.NoError(t, err)
		aiMock.AssertExpectations(t)
	})

	t.Run("failed run surfaces as run failure", func(t *testing.T) {
		aiMock := new(mocks.AI)
		aiMock.On("ActiveRun", ctx, "thread_1").Return(nil, nil).Once()
		aiMock.On("AddUserMessage", ctx, "thread_1", mock.AnythingOfType("string")).Return("msg_user", nil).Once()
		aiMock.On("StartRun", ctx, "thread_1", "asst_1").
			Return(openai.Run{ID: "run_1", Status: openai.RunStatusFailed, LastError: &openai.RunLastError{Message: "model overloaded"}}, nil).Once()

		svc := service.NewAssistantService(aiMock, nil, testAssistantConfig(), zap.NewNop())
		_, _, err := svc.GenerateStory(ctx, owner, conv, req, fam, false)
		assert.ErrorIs(t, err, models.ErrRunFailed)
	})

	t.Run("stuck run times out", func(t *testing.T) {
		cfg := testAssistantConfig()
		cfg.PollInterval = time.Millisecond
		cfg.RunTimeout = 20 * time.Millisecond

		aiMock := new(mocks.AI)
		aiMock.On("ActiveRun", ctx, "thread_1").Return(nil, nil).Once()
		aiMock.On("AddUserMessage", ctx, "thread_1", mock.AnythingOfType("string")).Return("msg_user", nil).Once()
		aiMock.On("StartRun", ctx, "thread_1", "asst_1").
			Return(openai.Run{ID: "run_1", Status: openai.RunStatusQueued}, nil).Once()
		aiMock.On("GetRun", ctx, "thread_1", "run_1").
			Return(openai.Run{ID: "run_1", Status: openai.RunStatusInProgress}, nil)

		svc := service.NewAssistantService(aiMock, nil, cfg, zap.NewNop())
		_, _, err := svc.GenerateStory(ctx, owner, conv, req, fam, false)
		assert.ErrorIs(t, err, models.ErrProviderTimeout)
	})

	t.Run("run that keeps demanding tool calls times out", func(t *testing.T) {
		cfg := testAssistantConfig()
		cfg.RunTimeout = 20 * time.Millisecond

		toolCall := openai.ToolCall{
			ID:   "call_1",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      "generate_story_images",
				Arguments: `{"story_title":"t","character_descriptions":[],"image_prompts":["p1"]}`,
			},
		}
		needsTool := openai.Run{
			ID:     "run_1",
			Status: openai.RunStatusRequiresAction,
			RequiredAction: &openai.RunRequiredAction{
				Type:              openai.RequiredActionTypeSubmitToolOutputs,
				SubmitToolOutputs: &openai.SubmitToolOutputs{ToolCalls: []openai.ToolCall{toolCall}},
			},
		}

		aiMock := new(mocks.AI)
		aiMock.On("ActiveRun", ctx, "thread_1").Return(nil, nil).Once()
		aiMock.On("AddUserMessage", ctx, "thread_1", mock.AnythingOfType("string")).Return("msg_user", nil).Once()
		aiMock.On("StartRun", ctx, "thread_1", "asst_1").Return(needsTool, nil).Once()
		aiMock.On("GenerateImage", ctx, mock.AnythingOfType("string")).Return("", errors.New("rate limited"))
		aiMock.On("SubmitToolOutputs", ctx, "thread_1", "run_1", mock.Anything).
			Run(func(mock.Arguments) { time.Sleep(5 * time.Millisecond) }).
			Return(needsTool, nil)

		illustrations := service.NewIllustrationService(aiMock, new(mocks.ImageStore), 5*time.Second, zap.NewNop())
		svc := service.NewAssistantService(aiMock, illustrations, cfg, zap.NewNop())
		_, _, err := svc.GenerateStory(ctx, owner, conv, req, fam, false)
		assert.ErrorIs(t, err, models.ErrProviderTimeout)
	})

	t.Run("failed tool call is reported as a failure to the assistant", func(t *testing.T) {
		toolCall := openai.ToolCall{
			ID:   "call_1",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      "generate_story_images",
				Arguments: `{"story_title":"t","character_descriptions":[],"image_prompts":["p1","p2","p3"]}`,
			},
		}

		aiMock := new(mocks.AI)
		aiMock.On("ActiveRun", ctx, "thread_1").Return(nil, nil).Once()
		aiMock.On("AddUserMessage", ctx, "thread_1", mock.AnythingOfType("string")).Return("msg_user", nil).Once()
		aiMock.On("StartRun", ctx, "thread_1", "asst_1").Return(openai.Run{
			ID:     "run_1",
			Status: openai.RunStatusRequiresAction,
			RequiredAction: &openai.RunRequiredAction{
				Type:              openai.RequiredActionTypeSubmitToolOutputs,
				SubmitToolOutputs: &openai.SubmitToolOutputs{ToolCalls: []openai.ToolCall{toolCall}},
			},
		}, nil).Once()
		aiMock.On("GenerateImage", ctx, mock.AnythingOfType("string")).Return("", errors.New("rate limited")).Times(3)
		aiMock.On("SubmitToolOutputs", ctx, "thread_1", "run_1", mock.MatchedBy(func(outputs []openai.ToolOutput) bool {
			return len(outputs) == 1 &&
				strings.Contains(outputs[0].Output.(string), `"success":false`) &&
				!strings.Contains(outputs[0].Output.(string), "successfully")
		})).Return(openai.Run{ID: "run_1", Status: openai.RunStatusCompleted}, nil).Once()
		aiMock.On("RunMessage", ctx, "thread_1", "run_1").Return("msg_assistant", assistantResponseJSON, nil).Once()

		illustrations := service.NewIllustrationService(aiMock, new(mocks.ImageStore), 5*time.Second, zap.NewNop())
		svc := service.NewAssistantService(aiMock, illustrations, testAssistantConfig(), zap.NewNop())
		narrative, images, err := svc.GenerateStory(ctx, owner, conv, req, fam, false)
		require.NoError(t, err)
		assert.Equal(t, "Mia and the Star Whale", narrative.Title)
		for i := range images {
			assert.Nil(t, images[i], "slot %d", i+1)
		}
		aiMock.AssertExpectations(t)
	})

	t.Run("waits out a leftover run", func(t *testing.T) {
		aiMock := new(mocks.AI)
		leftover := openai.Run{ID: "run_old", Status: openai.RunStatusInProgress}
		aiMock.On("ActiveRun", ctx, "thread_1").Return(&leftover, nil).Once()
		aiMock.On("GetRun", ctx, "thread_1", "run_old").
			Return(openai.Run{ID: "run_old", Status: openai.RunStatusCompleted}, nil).Once()
		aiMock.On("AddUserMessage", ctx, "thread_1", mock.AnythingOfType("string")).Return("msg_user", nil).Once()
		aiMock.On("StartRun", ctx, "thread_1", "asst_1").
			Return(openai.Run{ID: "run_new", Status: openai.RunStatusCompleted}, nil).Once()
		aiMock.On("RunMessage", ctx, "thread_1", "run_new").Return("msg_assistant", assistantResponseJSON, nil).Once()

		svc := service.NewAssistantService(aiMock, nil, testAssistantConfig(), zap.NewNop())
		narrative, _, err := svc.GenerateStory(ctx, owner, conv, req, fam, false)
		require.NoError(t, err)
		assert.Equal(t, "run_new", narrative.RunID)
		aiMock.AssertExpectations(t)
	})
}
