package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dreamlets-server/internal/models"
	"dreamlets-server/internal/prompts"
	"dreamlets-server/internal/schemas"
)

const storyMaxTokens = 2000

// NarrativeService produces story text through single-shot JSON-mode
// completions. It carries no conversation state, which makes it both
// the guest path and the fallback when the assistant pipeline fails.
type NarrativeService struct {
	ai     AI
	logger *zap.Logger
}

// NewNarrativeService creates the stateless narrative generator.
func NewNarrativeService(ai AI, logger *zap.Logger) *NarrativeService {
	return &NarrativeService{
		ai:     ai,
		logger: logger.Named("NarrativeService"),
	}
}

// Generate renders the story prompt for the family and returns a
// validated three-part narrative with its image prompts.
func (s *NarrativeService) Generate(ctx context.Context, req models.GenerationRequest, fam models.FamilyContext) (*models.Narrative, error) {
	s.logger.Info("Generating story",
		zap.Strings("kids", fam.KidNames),
		zap.Strings("characters", fam.CharacterNames),
		zap.String("tone", string(req.Tone)))

	raw, err := s.ai.CompleteJSON(ctx, prompts.StoryWriterSystemPrompt, prompts.StoryPrompt(req, fam), storyMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNarrativeGenerationFailed, err)
	}

	narrative, err := schemas.ParseStoryResponse(raw)
	if err != nil {
		s.logger.Warn("Story response failed validation", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrNarrativeGenerationFailed, err)
	}

	s.logger.Info("Story generated", zap.String("title", narrative.Title))
	return narrative, nil
}
