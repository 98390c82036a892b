package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"dreamlets-server/internal/ai"
	"dreamlets-server/internal/models"
	"dreamlets-server/internal/prompts"
	"dreamlets-server/internal/schemas"
)

// AssistantConfig tunes the stateful conversation pipeline.
type AssistantConfig struct {
	// ConfiguredID pins a pre-created assistant; empty means resolve by
	// name, creating one if needed.
	ConfiguredID string
	Name         string
	PollInterval time.Duration
	RunTimeout   time.Duration
}

// AssistantService generates stories through a long-lived assistant
// thread that accumulates the family's story history. Illustrations
// are produced synchronously inside the run, when the assistant calls
// its image tool.
type AssistantService struct {
	ai            AI
	illustrations *IllustrationService
	cfg           AssistantConfig
	logger        *zap.Logger
}

// NewAssistantService creates the assistant-backed generator.
func NewAssistantService(aiClient AI, illustrations *IllustrationService, cfg AssistantConfig, logger *zap.Logger) *AssistantService {
	return &AssistantService{
		ai:            aiClient,
		illustrations: illustrations,
		cfg:           cfg,
		logger:        logger.Named("AssistantService"),
	}
}

// EnsureConversation returns a usable conversation context, creating
// the assistant and a fresh thread when the stored pair is absent or
// unusable. The second return value reports whether a new thread was
// opened, which means the family must be introduced on the next
// message.
func (s *AssistantService) EnsureConversation(ctx context.Context, conv models.ConversationContext) (models.ConversationContext, bool, error) {
	if conv.IsPresent() {
		return conv, false, nil
	}

	assistantID, err := s.ai.EnsureAssistant(ctx, s.cfg.ConfiguredID, s.cfg.Name, prompts.AssistantInstructions)
	if err != nil {
		return models.ConversationContext{}, false, fmt.Errorf("%w: %v", models.ErrConversationStateInvalid, err)
	}
	threadID, err := s.ai.CreateThread(ctx)
	if err != nil {
		return models.ConversationContext{}, false, fmt.Errorf("%w: %v", models.ErrConversationStateInvalid, err)
	}

	s.logger.Info("Opened new story conversation",
		zap.String("assistantID", assistantID),
		zap.String("threadID", threadID))
	return models.ConversationContext{AssistantID: assistantID, ThreadID: threadID}, true, nil
}

// GenerateStory runs one story turn of the conversation and returns
// the narrative together with the illustrations produced during the
// run. firstTurn seeds the thread with the full family roster.
func (s *AssistantService) GenerateStory(ctx context.Context, owner models.Owner, conv models.ConversationContext, req models.GenerationRequest, fam models.FamilyContext, firstTurn bool) (*models.Narrative, [3]*string, error) {
	var images [3]*string

	if !conv.IsPresent() {
		return nil, images, models.ErrConversationStateInvalid
	}

	if err := s.waitForIdleThread(ctx, conv.ThreadID); err != nil {
		return nil, images, err
	}

	message := prompts.NextThreadMessage(req, fam)
	if firstTurn {
		message = prompts.FirstThreadMessage(req, fam)
	}
	if _, err := s.ai.AddUserMessage(ctx, conv.ThreadID, message); err != nil {
		return nil, images, err
	}

	run, err := s.ai.StartRun(ctx, conv.ThreadID, conv.AssistantID)
	if err != nil {
		return nil, images, err
	}
	s.logger.Info("Started assistant run",
		zap.String("threadID", conv.ThreadID),
		zap.String("runID", run.ID),
		zap.Bool("firstTurn", firstTurn))

	run, images, err = s.driveRun(ctx, owner, conv.ThreadID, run)
	if err != nil {
		return nil, images, err
	}

	messageID, text, err := s.ai.RunMessage(ctx, conv.ThreadID, run.ID)
	if err != nil {
		return nil, images, err
	}
	narrative, err := schemas.ParseAssistantStoryResponse(text)
	if err != nil {
		return nil, images, fmt.Errorf("%w: %v", models.ErrNarrativeGenerationFailed, err)
	}
	narrative.RunID = run.ID
	narrative.MessageID = messageID

	s.logger.Info("Assistant run completed",
		zap.String("runID", run.ID),
		zap.String("title", narrative.Title))
	return narrative, images, nil
}

// waitForIdleThread blocks until any leftover run on the thread
// reaches a terminal state. A thread accepts no new messages while a
// run is active.
func (s *AssistantService) waitForIdleThread(ctx context.Context, threadID string) error {
	active, err := s.ai.ActiveRun(ctx, threadID)
	if err != nil {
		return err
	}
	if active == nil {
		return nil
	}

	s.logger.Info("Waiting for leftover run to finish",
		zap.String("threadID", threadID),
		zap.String("runID", active.ID),
		zap.String("status", string(active.Status)))

	deadline := time.Now().Add(s.cfg.RunTimeout)
	run := *active
	for ai.RunActive(run.Status) {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: leftover run %s still active", models.ErrProviderTimeout, run.ID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
		run, err = s.ai.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// driveRun polls the run to completion, executing illustration tool
// calls along the way. Polling stops after RunTimeout; a run that
// outlives it is abandoned as a provider timeout.
func (s *AssistantService) driveRun(ctx context.Context, owner models.Owner, threadID string, run openai.Run) (openai.Run, [3]*string, error) {
	var images [3]*string
	deadline := time.Now().Add(s.cfg.RunTimeout)

	for {
		switch {
		case run.Status == openai.RunStatusCompleted:
			return run, images, nil

		case run.Status == openai.RunStatusRequiresAction:
			if run.RequiredAction == nil || run.RequiredAction.SubmitToolOutputs == nil {
				return run, images, fmt.Errorf("%w: requires_action without tool calls", models.ErrRunFailed)
			}
			outputs, toolImages := s.executeToolCalls(ctx, owner, run.RequiredAction.SubmitToolOutputs.ToolCalls)
			for i, img := range toolImages {
				if img != nil {
					images[i] = img
				}
			}
			var err error
			run, err = s.ai.SubmitToolOutputs(ctx, threadID, run.ID, outputs)
			if err != nil {
				return run, images, err
			}
			if time.Now().After(deadline) {
				return run, images, fmt.Errorf("%w: run %s did not finish in %s", models.ErrProviderTimeout, run.ID, s.cfg.RunTimeout)
			}
			continue

		case ai.RunTerminal(run.Status):
			detail := string(run.Status)
			if run.LastError != nil {
				detail = fmt.Sprintf("%s: %s", run.Status, run.LastError.Message)
			}
			return run, images, fmt.Errorf("%w: %s", models.ErrRunFailed, detail)
		}

		if time.Now().After(deadline) {
			return run, images, fmt.Errorf("%w: run %s did not finish in %s", models.ErrProviderTimeout, run.ID, s.cfg.RunTimeout)
		}
		select {
		case <-ctx.Done():
			return run, images, ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}

		var err error
		run, err = s.ai.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return run, images, err
		}
	}
}

// executeToolCalls runs every illustration tool call and collects the
// outputs to submit. A failed tool call reports its error back to the
// assistant instead of failing the run.
func (s *AssistantService) executeToolCalls(ctx context.Context, owner models.Owner, calls []openai.ToolCall) ([]openai.ToolOutput, [3]*string) {
	var images [3]*string
	outputs := make([]openai.ToolOutput, 0, len(calls))

	for _, call := range calls {
		if call.Function.Name != ai.IllustrationToolName {
			outputs = append(outputs, toolOutput(call.ID, map[string]any{
				"success": false,
				"error":   fmt.Sprintf("unknown tool %q", call.Function.Name),
			}))
			continue
		}

		args, err := schemas.ParseIllustrationToolArgs(call.Function.Arguments)
		if err != nil {
			s.logger.Warn("Bad illustration tool arguments", zap.Error(err))
			outputs = append(outputs, toolOutput(call.ID, map[string]any{
				"success": false,
				"error":   err.Error(),
			}))
			continue
		}

		sheet := schemas.FlattenCharacterSheet(args.CharacterDescriptions)
		var genErr error
		images, genErr = s.illustrations.GenerateSet(ctx, owner, args.ImagePrompts, sheet)
		if genErr != nil {
			s.logger.Warn("Illustration tool produced no images", zap.Error(genErr))
		}

		urls := make([]string, 0, 3)
		for _, img := range images {
			if img != nil {
				urls = append(urls, *img)
			}
		}
		result := map[string]any{
			"success":    genErr == nil,
			"image_urls": urls,
		}
		if genErr == nil {
			result["message"] = "Images generated successfully"
		} else {
			result["error"] = genErr.Error()
		}
		outputs = append(outputs, toolOutput(call.ID, result))
	}
	return outputs, images
}

func toolOutput(callID string, payload map[string]any) openai.ToolOutput {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{"success":false}`)
	}
	return openai.ToolOutput{ToolCallID: callID, Output: string(data)}
}
