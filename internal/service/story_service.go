package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dreamlets-server/internal/models"
	"dreamlets-server/internal/repository"
)

// StoryService orchestrates the full generation pipeline: quota gate,
// family context, narrative, illustrations, persistence and usage
// accounting. Registered accounts go through the stateful assistant
// conversation with the stateless path as fallback; guests always use
// the stateless path.
type StoryService struct {
	stores        StoreSelector
	accounts      repository.AccountRepository
	quota         *QuotaService
	narrative     *NarrativeService
	assistant     *AssistantService
	illustrations *IllustrationService
	logger        *zap.Logger
}

// NewStoryService wires the generation pipeline together.
func NewStoryService(
	stores StoreSelector,
	accounts repository.AccountRepository,
	quota *QuotaService,
	narrative *NarrativeService,
	assistant *AssistantService,
	illustrations *IllustrationService,
	logger *zap.Logger,
) *StoryService {
	return &StoryService{
		stores:        stores,
		accounts:      accounts,
		quota:         quota,
		narrative:     narrative,
		assistant:     assistant,
		illustrations: illustrations,
		logger:        logger.Named("StoryService"),
	}
}

// Generate produces and persists one story for the owner. The quota
// is checked before any provider call and consumed only after the
// story is stored; a failed generation never costs allowance.
func (s *StoryService) Generate(ctx context.Context, owner models.Owner, req models.GenerationRequest) (*models.Story, error) {
	if !models.ValidTone(req.Tone) {
		return nil, fmt.Errorf("unsupported tone %q", req.Tone)
	}

	if _, err := s.quota.Check(ctx, owner); err != nil {
		return nil, err
	}

	store := s.stores.For(owner)
	fam, err := BuildFamilyContext(ctx, store, owner, req)
	if err != nil {
		return nil, err
	}

	var narrative *models.Narrative
	var images [3]*string
	if owner.Guest {
		narrative, images, err = s.generateStateless(ctx, owner, req, fam)
	} else {
		narrative, images, err = s.generateForAccount(ctx, owner, req, fam)
	}
	if err != nil {
		return nil, err
	}

	story := &models.Story{
		UserID:       owner.ID,
		Title:        narrative.Title,
		KidIDs:       req.KidIDs,
		CharacterIDs: req.CharacterIDs,
		StoryPart1:   narrative.Parts[0],
		StoryPart2:   narrative.Parts[1],
		StoryPart3:   narrative.Parts[2],
		ImageURL1:    images[0],
		ImageURL2:    images[1],
		ImageURL3:    images[2],
		Tone:         req.Tone,
	}
	if narrative.RunID != "" {
		story.RunID = &narrative.RunID
	}
	if narrative.MessageID != "" {
		story.MessageID = &narrative.MessageID
	}

	saved, err := store.SaveStory(ctx, owner, story)
	if err != nil {
		return nil, err
	}
	if err := s.quota.RecordSuccess(ctx, owner); err != nil {
		// The story is already persisted; losing the counter bump is
		// recoverable and must not fail the request.
		s.logger.Error("Failed to record story usage",
			zap.String("ownerID", owner.ID), zap.Error(err))
	}

	s.logger.Info("Story generated and saved",
		zap.String("ownerID", owner.ID),
		zap.Bool("guest", owner.Guest),
		zap.Int64("storyID", saved.ID),
		zap.String("title", saved.Title))
	return saved, nil
}

// generateForAccount runs the assistant conversation for a registered
// user, falling back to the stateless pipeline when the conversation
// cannot produce a story.
func (s *StoryService) generateForAccount(ctx context.Context, owner models.Owner, req models.GenerationRequest, fam models.FamilyContext) (*models.Narrative, [3]*string, error) {
	account, err := s.accounts.EnsureAccount(ctx, owner.ID)
	if err != nil {
		return nil, [3]*string{}, err
	}

	conv, created, err := s.assistant.EnsureConversation(ctx, account.Conversation())
	if err != nil {
		s.logger.Warn("Could not establish story conversation, using stateless generation",
			zap.String("userID", owner.ID), zap.Error(err))
		return s.generateStateless(ctx, owner, req, fam)
	}
	if created {
		if err := s.accounts.SaveConversation(ctx, owner.ID, conv); err != nil {
			return nil, [3]*string{}, err
		}
	}

	narrative, images, err := s.assistant.GenerateStory(ctx, owner, conv, req, fam, created)
	if err == nil {
		return narrative, images, nil
	}

	switch {
	case errors.Is(err, models.ErrProviderTimeout),
		errors.Is(err, models.ErrRunFailed),
		errors.Is(err, models.ErrNarrativeGenerationFailed),
		errors.Is(err, models.ErrConversationStateInvalid):
		s.logger.Warn("Assistant generation failed, using stateless generation",
			zap.String("userID", owner.ID), zap.Error(err))
		return s.generateStateless(ctx, owner, req, fam)
	default:
		return nil, images, err
	}
}

// generateStateless produces the narrative and illustrations without
// conversation memory.
func (s *StoryService) generateStateless(ctx context.Context, owner models.Owner, req models.GenerationRequest, fam models.FamilyContext) (*models.Narrative, [3]*string, error) {
	narrative, err := s.narrative.Generate(ctx, req, fam)
	if err != nil {
		return nil, [3]*string{}, err
	}
	images, err := s.illustrations.GenerateSet(ctx, owner, narrative.ImagePrompts, narrative.ConsistencySheet)
	if err != nil {
		// A story without pictures is still a story.
		s.logger.Warn("Illustrations lost, saving story without images",
			zap.String("ownerID", owner.ID), zap.Error(err))
	}
	return narrative, images, nil
}

// Usage exposes the owner's quota position.
func (s *StoryService) Usage(ctx context.Context, owner models.Owner) (*models.UsageReport, error) {
	return s.quota.Usage(ctx, owner)
}
