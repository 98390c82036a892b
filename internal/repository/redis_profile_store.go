package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dreamlets-server/internal/models"
)

// RedisProfileStore keeps guest profiles in Redis, keyed by the guest
// session id. Every key of a session shares one TTL which is refreshed
// on each write, so an active guest keeps their data while an
// abandoned session expires as a whole.
type RedisProfileStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisProfileStore creates the Redis-backed guest profile store.
func NewRedisProfileStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisProfileStore {
	return &RedisProfileStore{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisProfileStore"),
	}
}

func guestKey(sessionID, suffix string) string {
	return fmt.Sprintf("guest:%s:%s", sessionID, suffix)
}

// nextID allocates a session-local identifier.
func (s *RedisProfileStore) nextID(ctx context.Context, owner models.Owner) (int64, error) {
	id, err := s.client.Incr(ctx, guestKey(owner.ID, "seq")).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id: %w", err)
	}
	return id, nil
}

// refreshTTL extends the lifetime of all session keys.
func (s *RedisProfileStore) refreshTTL(ctx context.Context, owner models.Owner) {
	pipe := s.client.Pipeline()
	for _, suffix := range []string{"seq", "kids", "characters", "stories"} {
		pipe.Expire(ctx, guestKey(owner.ID, suffix), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("Failed to refresh guest session TTL",
			zap.String("sessionID", owner.ID), zap.Error(err))
	}
}

func (s *RedisProfileStore) CreateKid(ctx context.Context, owner models.Owner, attrs models.KidAttributes) (*models.Kid, error) {
	id, err := s.nextID(ctx, owner)
	if err != nil {
		return nil, err
	}
	kid := models.Kid{
		ID:          id,
		UserID:      owner.ID,
		Name:        attrs.Name,
		Age:         attrs.Age,
		Description: attrs.Description,
		HairColor:   attrs.HairColor,
		EyeColor:    attrs.EyeColor,
		HairLength:  attrs.HairLength,
		SkinTone:    attrs.SkinTone,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.putHash(ctx, owner, "kids", id, kid); err != nil {
		return nil, err
	}
	return &kid, nil
}

func (s *RedisProfileStore) ListKids(ctx context.Context, owner models.Owner) ([]models.Kid, error) {
	kids := []models.Kid{}
	if err := s.listHash(ctx, owner, "kids", &kids); err != nil {
		return nil, err
	}
	sort.Slice(kids, func(i, j int) bool { return kids[i].ID < kids[j].ID })
	return kids, nil
}

func (s *RedisProfileStore) UpdateKid(ctx context.Context, owner models.Owner, id int64, attrs models.KidAttributes) (*models.Kid, error) {
	var kid models.Kid
	if err := s.getHash(ctx, owner, "kids", id, &kid); err != nil {
		return nil, err
	}
	kid.Name = attrs.Name
	kid.Age = attrs.Age
	kid.Description = attrs.Description
	kid.HairColor = attrs.HairColor
	kid.EyeColor = attrs.EyeColor
	kid.HairLength = attrs.HairLength
	kid.SkinTone = attrs.SkinTone
	if err := s.putHash(ctx, owner, "kids", id, kid); err != nil {
		return nil, err
	}
	return &kid, nil
}

func (s *RedisProfileStore) DeleteKid(ctx context.Context, owner models.Owner, id int64) error {
	return s.deleteHash(ctx, owner, "kids", id)
}

func (s *RedisProfileStore) KidsByIDs(ctx context.Context, owner models.Owner, ids []int64) ([]models.Kid, error) {
	kids := make([]models.Kid, 0, len(ids))
	for _, id := range ids {
		var kid models.Kid
		if err := s.getHash(ctx, owner, "kids", id, &kid); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		kids = append(kids, kid)
	}
	return kids, nil
}

func (s *RedisProfileStore) CreateCharacter(ctx context.Context, owner models.Owner, attrs models.CharacterAttributes) (*models.Character, error) {
	id, err := s.nextID(ctx, owner)
	if err != nil {
		return nil, err
	}
	charType := attrs.Type
	if charType == "" {
		charType = "manual"
	}
	char := models.Character{
		ID:          id,
		UserID:      owner.ID,
		Name:        attrs.Name,
		Type:        charType,
		Description: attrs.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.putHash(ctx, owner, "characters", id, char); err != nil {
		return nil, err
	}
	return &char, nil
}

func (s *RedisProfileStore) ListCharacters(ctx context.Context, owner models.Owner) ([]models.Character, error) {
	chars := []models.Character{}
	if err := s.listHash(ctx, owner, "characters", &chars); err != nil {
		return nil, err
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i].ID < chars[j].ID })
	return chars, nil
}

func (s *RedisProfileStore) UpdateCharacter(ctx context.Context, owner models.Owner, id int64, attrs models.CharacterAttributes) (*models.Character, error) {
	var char models.Character
	if err := s.getHash(ctx, owner, "characters", id, &char); err != nil {
		return nil, err
	}
	char.Name = attrs.Name
	if attrs.Type != "" {
		char.Type = attrs.Type
	}
	char.Description = attrs.Description
	if err := s.putHash(ctx, owner, "characters", id, char); err != nil {
		return nil, err
	}
	return &char, nil
}

func (s *RedisProfileStore) DeleteCharacter(ctx context.Context, owner models.Owner, id int64) error {
	return s.deleteHash(ctx, owner, "characters", id)
}

func (s *RedisProfileStore) CharactersByIDs(ctx context.Context, owner models.Owner, ids []int64) ([]models.Character, error) {
	chars := make([]models.Character, 0, len(ids))
	for _, id := range ids {
		var char models.Character
		if err := s.getHash(ctx, owner, "characters", id, &char); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		chars = append(chars, char)
	}
	return chars, nil
}

func (s *RedisProfileStore) SaveStory(ctx context.Context, owner models.Owner, story *models.Story) (*models.Story, error) {
	id, err := s.nextID(ctx, owner)
	if err != nil {
		return nil, err
	}
	saved := *story
	saved.ID = id
	saved.UserID = owner.ID
	saved.CreatedAt = time.Now().UTC()
	if err := s.putHash(ctx, owner, "stories", id, saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *RedisProfileStore) ListStories(ctx context.Context, owner models.Owner) ([]models.Story, error) {
	stories := []models.Story{}
	if err := s.listHash(ctx, owner, "stories", &stories); err != nil {
		return nil, err
	}
	sort.Slice(stories, func(i, j int) bool { return stories[i].ID > stories[j].ID })
	return stories, nil
}

func (s *RedisProfileStore) GetStory(ctx context.Context, owner models.Owner, id int64) (*models.Story, error) {
	var story models.Story
	if err := s.getHash(ctx, owner, "stories", id, &story); err != nil {
		return nil, err
	}
	return &story, nil
}

func (s *RedisProfileStore) DeleteStory(ctx context.Context, owner models.Owner, id int64) error {
	return s.deleteHash(ctx, owner, "stories", id)
}

func (s *RedisProfileStore) CountStoriesSince(ctx context.Context, owner models.Owner, since time.Time) (int, error) {
	stories, err := s.ListStories(ctx, owner)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, story := range stories {
		if !story.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *RedisProfileStore) putHash(ctx context.Context, owner models.Owner, suffix string, id int64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s entry: %w", suffix, err)
	}
	if err := s.client.HSet(ctx, guestKey(owner.ID, suffix), strconv.FormatInt(id, 10), data).Err(); err != nil {
		s.logger.Error("Failed to store guest entry",
			zap.String("sessionID", owner.ID), zap.String("kind", suffix), zap.Error(err))
		return fmt.Errorf("failed to store %s entry: %w", suffix, err)
	}
	s.refreshTTL(ctx, owner)
	return nil
}

func (s *RedisProfileStore) getHash(ctx context.Context, owner models.Owner, suffix string, id int64, v any) error {
	data, err := s.client.HGet(ctx, guestKey(owner.ID, suffix), strconv.FormatInt(id, 10)).Result()
	if err != nil {
		if err == redis.Nil {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to read %s entry: %w", suffix, err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to decode %s entry: %w", suffix, err)
	}
	return nil
}

func (s *RedisProfileStore) deleteHash(ctx context.Context, owner models.Owner, suffix string, id int64) error {
	removed, err := s.client.HDel(ctx, guestKey(owner.ID, suffix), strconv.FormatInt(id, 10)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete %s entry: %w", suffix, err)
	}
	if removed == 0 {
		return models.ErrNotFound
	}
	return nil
}

// listHash decodes every entry of a session hash into out, which must
// be a pointer to a slice.
func (s *RedisProfileStore) listHash(ctx context.Context, owner models.Owner, suffix string, out any) error {
	entries, err := s.client.HGetAll(ctx, guestKey(owner.ID, suffix)).Result()
	if err != nil {
		return fmt.Errorf("failed to list %s entries: %w", suffix, err)
	}
	raw := make([]json.RawMessage, 0, len(entries))
	for _, data := range entries {
		raw = append(raw, json.RawMessage(data))
	}
	combined, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to combine %s entries: %w", suffix, err)
	}
	if err := json.Unmarshal(combined, out); err != nil {
		return fmt.Errorf("failed to decode %s entries: %w", suffix, err)
	}
	return nil
}
