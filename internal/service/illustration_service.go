package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dreamlets-server/internal/models"
	"dreamlets-server/internal/prompts"
	"dreamlets-server/internal/storage"
)

// maxImageBytes caps a single downloaded illustration.
const maxImageBytes = 10 << 20

// IllustrationService renders the three story illustrations
// concurrently. Each slot degrades independently: a failed render or
// download leaves that slot nil and never fails the story.
type IllustrationService struct {
	ai         AI
	store      storage.ImageStore
	httpClient *http.Client
	logger     *zap.Logger
}

// NewIllustrationService creates the illustration pipeline.
func NewIllustrationService(ai AI, store storage.ImageStore, downloadTimeout time.Duration, logger *zap.Logger) *IllustrationService {
	return &IllustrationService{
		ai:         ai,
		store:      store,
		httpClient: &http.Client{Timeout: downloadTimeout},
		logger:     logger.Named("IllustrationService"),
	}
}

// GenerateSet produces up to three stored illustrations from scene
// prompts and the shared consistency sheet. The returned slots align
// with the story parts; a nil slot means that illustration was lost.
// Only a total failure, every slot lost or nothing to render, is
// reported as an error. Callers decide whether to degrade or fail.
func (s *IllustrationService) GenerateSet(ctx context.Context, owner models.Owner, scenePrompts []string, consistencySheet string) ([3]*string, error) {
	var urls [3]*string
	var wg sync.WaitGroup

	n := len(scenePrompts)
	if n == 0 {
		return urls, fmt.Errorf("%w: no image prompts", models.ErrIllustrationFailed)
	}
	if n > 3 {
		n = 3
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(slot int, scene string) {
			defer wg.Done()
			url, err := s.generateOne(ctx, owner, slot, scene, consistencySheet)
			if err != nil {
				s.logger.Warn("Illustration slot lost",
					zap.Int("slot", slot+1),
					zap.String("ownerID", owner.ID),
					zap.Error(err))
				return
			}
			urls[slot] = &url
		}(i, scenePrompts[i])
	}
	wg.Wait()

	for _, url := range urls {
		if url != nil {
			return urls, nil
		}
	}
	return urls, fmt.Errorf("%w: every illustration slot failed", models.ErrIllustrationFailed)
}

func (s *IllustrationService) generateOne(ctx context.Context, owner models.Owner, slot int, scene, sheet string) (string, error) {
	providerURL, err := s.ai.GenerateImage(ctx, prompts.IllustrationPrompt(scene, sheet))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrIllustrationFailed, err)
	}

	data, contentType, err := s.download(ctx, providerURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrIllustrationFailed, err)
	}

	filename := fmt.Sprintf("%s-%d.png", uuid.NewString(), slot+1)
	url, err := s.store.SaveImage(ctx, owner.ID, filename, data, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrIllustrationFailed, err)
	}
	return url, nil
}

// download fetches the provider-hosted image before the short-lived
// URL expires.
func (s *IllustrationService) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download image: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read image body: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return data, contentType, nil
}
