package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"dreamlets-server/internal/models"
)

// PgProfileStore keeps registered users' kids, characters and stories
// in PostgreSQL.
type PgProfileStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgProfileStore creates the PostgreSQL-backed profile store.
func NewPgProfileStore(db *pgxpool.Pool, logger *zap.Logger) *PgProfileStore {
	return &PgProfileStore{
		db:     db,
		logger: logger.Named("PgProfileStore"),
	}
}

func (s *PgProfileStore) CreateKid(ctx context.Context, owner models.Owner, attrs models.KidAttributes) (*models.Kid, error) {
	query := `
		INSERT INTO kids (user_id, name, age, description, hair_color, eye_color, hair_length, skin_tone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, user_id, name, age, description, hair_color, eye_color, hair_length, skin_tone, created_at`

	var kid models.Kid
	err := pgxscan.Get(ctx, s.db, &kid, query,
		owner.ID, attrs.Name, attrs.Age, attrs.Description,
		attrs.HairColor, attrs.EyeColor, attrs.HairLength, attrs.SkinTone)
	if err != nil {
		s.logger.Error("Failed to create kid", zap.String("ownerID", owner.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to create kid: %w", err)
	}
	return &kid, nil
}

func (s *PgProfileStore) ListKids(ctx context.Context, owner models.Owner) ([]models.Kid, error) {
	query := `
		SELECT id, user_id, name, age, description, hair_color, eye_color, hair_length, skin_tone, created_at
		FROM kids
		WHERE user_id = $1
		ORDER BY created_at, id`

	kids := []models.Kid{}
	if err := pgxscan.Select(ctx, s.db, &kids, query, owner.ID); err != nil {
		s.logger.Error("Failed to list kids", zap.String("ownerID", owner.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to list kids: %w", err)
	}
	return kids, nil
}

func (s *PgProfileStore) UpdateKid(ctx context.Context, owner models.Owner, id int64, attrs models.KidAttributes) (*models.Kid, error) {
	query := `
		UPDATE kids
		SET name = $3, age = $4, description = $5, hair_color = $6, eye_color = $7, hair_length = $8, skin_tone = $9
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, age, description, hair_color, eye_color, hair_length, skin_tone, created_at`

	var kid models.Kid
	err := pgxscan.Get(ctx, s.db, &kid, query,
		id, owner.ID, attrs.Name, attrs.Age, attrs.Description,
		attrs.HairColor, attrs.EyeColor, attrs.HairLength, attrs.SkinTone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("Failed to update kid", zap.Int64("kidID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update kid: %w", err)
	}
	return &kid, nil
}

func (s *PgProfileStore) DeleteKid(ctx context.Context, owner models.Owner, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM kids WHERE id = $1 AND user_id = $2`, id, owner.ID)
	if err != nil {
		s.logger.Error("Failed to delete kid", zap.Int64("kidID", id), zap.Error(err))
		return fmt.Errorf("failed to delete kid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PgProfileStore) KidsByIDs(ctx context.Context, owner models.Owner, ids []int64) ([]models.Kid, error) {
	if len(ids) == 0 {
		return []models.Kid{}, nil
	}
	query := `
		SELECT id, user_id, name, age, description, hair_color, eye_color, hair_length, skin_tone, created_at
		FROM kids
		WHERE user_id = $1 AND id = ANY($2)`

	kids := []models.Kid{}
	if err := pgxscan.Select(ctx, s.db, &kids, query, owner.ID, ids); err != nil {
		s.logger.Error("Failed to load kids by ids", zap.String("ownerID", owner.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to load kids: %w", err)
	}
	return orderKids(kids, ids), nil
}

func (s *PgProfileStore) CreateCharacter(ctx context.Context, owner models.Owner, attrs models.CharacterAttributes) (*models.Character, error) {
	charType := attrs.Type
	if charType == "" {
		charType = "manual"
	}
	query := `
		INSERT INTO characters (user_id, name, type, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, name, type, description, created_at`

	var char models.Character
	if err := pgxscan.Get(ctx, s.db, &char, query, owner.ID, attrs.Name, charType, attrs.Description); err != nil {
		s.logger.Error("Failed to create character", zap.String("ownerID", owner.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to create character: %w", err)
	}
	return &char, nil
}

func (s *PgProfileStore) ListCharacters(ctx context.Context, owner models.Owner) ([]models.Character, error) {
	query := `
		SELECT id, user_id, name, type, description, created_at
		FROM characters
		WHERE user_id = $1
		ORDER BY created_at, id`

	chars := []models.Character{}
	if err := pgxscan.Select(ctx, s.db, &chars, query, owner.ID); err != nil {
		s.logger.Error("Failed to list characters", zap.String("ownerID", owner.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	return chars, nil
}

func (s *PgProfileStore) UpdateCharacter(ctx context.Context, owner models.Owner, id int64, attrs models.CharacterAttributes) (*models.Character, error) {
	query := `
		UPDATE characters
		SET name = $3, type = COALESCE(NULLIF($4, ''), type), description = $5
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, type, description, created_at`

	var char models.Character
	err := pgxscan.Get(ctx, s.db, &char, query, id, owner.ID, attrs.Name, attrs.Type, attrs.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("Failed to update character", zap.Int64("characterID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update character: %w", err)
	}
	return &char, nil
}

func (s *PgProfileStore) DeleteCharacter(ctx context.Context, owner models.Owner, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM characters WHERE id = $1 AND user_id = $2`, id, owner.ID)
	if err != nil {
		s.logger.Error("Failed to delete character", zap.Int64("characterID", id), zap.Error(err))
		return fmt.Errorf("failed to delete character: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PgProfileStore) CharactersByIDs(ctx context.Context, owner models.Owner, ids []int64) ([]models.Character, error) {
	if len(ids) == 0 {
		return []models.Character{}, nil
	}
	query := `
		SELECT id, user_id, name, type, description, created_at
		FROM characters
		WHERE user_id = $1 AND id = ANY($2)`

	chars := []models.Character{}
	if err := pgxscan.Select(ctx, s.db, &chars, query, owner.ID, ids); err != nil {
		s.logger.Error("Failed to load characters by ids", zap.String("ownerID", owner.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to load characters: %w", err)
	}
	return orderCharacters(chars, ids), nil
}

func (s *PgProfileStore) SaveStory(ctx context.Context, owner models.Owner, story *models.Story) (*models.Story, error) {
	kidIDs, err := json.Marshal(story.KidIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode kid ids: %w", err)
	}
	characterIDs, err := json.Marshal(story.CharacterIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode character ids: %w", err)
	}

	query := `
		INSERT INTO stories (user_id, title, kid_ids, character_ids,
		                     story_part_1, story_part_2, story_part_3,
		                     image_url_1, image_url_2, image_url_3,
		                     tone, run_id, message_id)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, user_id, title, kid_ids, character_ids,
		          story_part_1, story_part_2, story_part_3,
		          image_url_1, image_url_2, image_url_3,
		          tone, run_id, message_id, created_at`

	var saved models.Story
	err = pgxscan.Get(ctx, s.db, &saved, query,
		owner.ID, story.Title, string(kidIDs), string(characterIDs),
		story.StoryPart1, story.StoryPart2, story.StoryPart3,
		story.ImageURL1, story.ImageURL2, story.ImageURL3,
		story.Tone, story.RunID, story.MessageID)
	if err != nil {
		s.logger.Error("Failed to save story", zap.String("ownerID", owner.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to save story: %w", err)
	}
	return &saved, nil
}

func (s *PgProfileStore) ListStories(ctx context.Context, owner models.Owner) ([]models.Story, error) {
	query := `
		SELECT id, user_id, title, kid_ids, character_ids,
		       story_part_1, story_part_2, story_part_3,
		       image_url_1, image_url_2, image_url_3,
		       tone, run_id, message_id, created_at
		FROM stories
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	stories := []models.Story{}
	if err := pgxscan.Select(ctx, s.db, &stories, query, owner.ID); err != nil {
		s.logger.Error("Failed to list stories", zap.String("ownerID", owner.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return stories, nil
}

func (s *PgProfileStore) GetStory(ctx context.Context, owner models.Owner, id int64) (*models.Story, error) {
	query := `
		SELECT id, user_id, title, kid_ids, character_ids,
		       story_part_1, story_part_2, story_part_3,
		       image_url_1, image_url_2, image_url_3,
		       tone, run_id, message_id, created_at
		FROM stories
		WHERE id = $1 AND user_id = $2`

	var story models.Story
	err := pgxscan.Get(ctx, s.db, &story, query, id, owner.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("Failed to get story", zap.Int64("storyID", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return &story, nil
}

func (s *PgProfileStore) DeleteStory(ctx context.Context, owner models.Owner, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM stories WHERE id = $1 AND user_id = $2`, id, owner.ID)
	if err != nil {
		s.logger.Error("Failed to delete story", zap.Int64("storyID", id), zap.Error(err))
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PgProfileStore) CountStoriesSince(ctx context.Context, owner models.Owner, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM stories WHERE user_id = $1 AND created_at >= $2`,
		owner.ID, since).Scan(&count)
	if err != nil {
		s.logger.Error("Failed to count stories", zap.String("ownerID", owner.ID), zap.Error(err))
		return 0, fmt.Errorf("failed to count stories: %w", err)
	}
	return count, nil
}

// orderKids reorders rows to match the requested id order.
func orderKids(kids []models.Kid, ids []int64) []models.Kid {
	byID := make(map[int64]models.Kid, len(kids))
	for _, k := range kids {
		byID[k.ID] = k
	}
	ordered := make([]models.Kid, 0, len(kids))
	for _, id := range ids {
		if k, ok := byID[id]; ok {
			ordered = append(ordered, k)
		}
	}
	return ordered
}

func orderCharacters(chars []models.Character, ids []int64) []models.Character {
	byID := make(map[int64]models.Character, len(chars))
	for _, c := range chars {
		byID[c.ID] = c
	}
	ordered := make([]models.Character, 0, len(chars))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			ordered = append(ordered, c)
		}
	}
	return ordered
}
