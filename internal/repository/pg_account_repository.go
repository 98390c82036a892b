package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"dreamlets-server/internal/models"
)

// PgAccountRepository stores registered accounts in PostgreSQL.
type PgAccountRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgAccountRepository creates the account repository.
func NewPgAccountRepository(db *pgxpool.Pool, logger *zap.Logger) *PgAccountRepository {
	return &PgAccountRepository{
		db:     db,
		logger: logger.Named("PgAccountRepository"),
	}
}

func (r *PgAccountRepository) EnsureAccount(ctx context.Context, userID string) (*models.Account, error) {
	query := `
		INSERT INTO users (id, subscription_tier, stories_this_month, monthly_reset_date)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (id) DO UPDATE SET updated_at = now()
		RETURNING id, email, subscription_tier, stories_this_month, monthly_reset_date,
		          assistant_id, thread_id, created_at, updated_at`

	var account models.Account
	if err := pgxscan.Get(ctx, r.db, &account, query, userID, models.TierFree); err != nil {
		r.logger.Error("Failed to ensure account", zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to ensure account: %w", err)
	}
	return &account, nil
}

func (r *PgAccountRepository) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	query := `
		SELECT id, email, subscription_tier, stories_this_month, monthly_reset_date,
		       assistant_id, thread_id, created_at, updated_at
		FROM users
		WHERE id = $1`

	var account models.Account
	err := pgxscan.Get(ctx, r.db, &account, query, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		r.logger.Error("Failed to get account", zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *PgAccountRepository) ResetMonthlyUsage(ctx context.Context, userID string, resetDate time.Time) error {
	query := `
		UPDATE users
		SET stories_this_month = 0, monthly_reset_date = $2, updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, userID, resetDate)
	if err != nil {
		r.logger.Error("Failed to reset monthly usage", zap.String("userID", userID), zap.Error(err))
		return fmt.Errorf("failed to reset monthly usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

func (r *PgAccountRepository) IncrementUsage(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET stories_this_month = stories_this_month + 1, updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to increment usage", zap.String("userID", userID), zap.Error(err))
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

func (r *PgAccountRepository) SaveConversation(ctx context.Context, userID string, conv models.ConversationContext) error {
	query := `
		UPDATE users
		SET assistant_id = $2, thread_id = $3, updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, userID, conv.AssistantID, conv.ThreadID)
	if err != nil {
		r.logger.Error("Failed to save conversation context",
			zap.String("userID", userID), zap.Error(err))
		return fmt.Errorf("failed to save conversation context: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}
	r.logger.Debug("Saved conversation context",
		zap.String("userID", userID),
		zap.String("threadID", conv.ThreadID))
	return nil
}
