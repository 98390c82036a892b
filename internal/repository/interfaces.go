// Package repository contains the persistence layer: account state in
// PostgreSQL and profile data in either PostgreSQL (registered users)
// or Redis (guest sessions).
package repository

import (
	"context"
	"time"

	"dreamlets-server/internal/models"
)

// ProfileStore is the profile surface shared by registered accounts
// and guest sessions: kids, characters and finished stories. The
// owner scopes every operation; implementations must never leak data
// across owners.
type ProfileStore interface {
	CreateKid(ctx context.Context, owner models.Owner, attrs models.KidAttributes) (*models.Kid, error)
	ListKids(ctx context.Context, owner models.Owner) ([]models.Kid, error)
	UpdateKid(ctx context.Context, owner models.Owner, id int64, attrs models.KidAttributes) (*models.Kid, error)
	DeleteKid(ctx context.Context, owner models.Owner, id int64) error
	KidsByIDs(ctx context.Context, owner models.Owner, ids []int64) ([]models.Kid, error)

	CreateCharacter(ctx context.Context, owner models.Owner, attrs models.CharacterAttributes) (*models.Character, error)
	ListCharacters(ctx context.Context, owner models.Owner) ([]models.Character, error)
	UpdateCharacter(ctx context.Context, owner models.Owner, id int64, attrs models.CharacterAttributes) (*models.Character, error)
	DeleteCharacter(ctx context.Context, owner models.Owner, id int64) error
	CharactersByIDs(ctx context.Context, owner models.Owner, ids []int64) ([]models.Character, error)

	SaveStory(ctx context.Context, owner models.Owner, story *models.Story) (*models.Story, error)
	ListStories(ctx context.Context, owner models.Owner) ([]models.Story, error)
	GetStory(ctx context.Context, owner models.Owner, id int64) (*models.Story, error)
	DeleteStory(ctx context.Context, owner models.Owner, id int64) error
	CountStoriesSince(ctx context.Context, owner models.Owner, since time.Time) (int, error)
}

// AccountRepository manages registered user accounts: quota counters
// and the stored assistant conversation context.
type AccountRepository interface {
	// EnsureAccount returns the account for userID, creating a fresh
	// free-tier row on first contact.
	EnsureAccount(ctx context.Context, userID string) (*models.Account, error)
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	// ResetMonthlyUsage zeroes the usage counter and stamps a new reset
	// date when a new calendar month begins.
	ResetMonthlyUsage(ctx context.Context, userID string, resetDate time.Time) error
	// IncrementUsage bumps the monthly story counter after a successful
	// generation.
	IncrementUsage(ctx context.Context, userID string) error
	// SaveConversation persists the assistant/thread pair so future
	// stories reuse the same family memory.
	SaveConversation(ctx context.Context, userID string, conv models.ConversationContext) error
}
