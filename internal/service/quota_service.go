package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dreamlets-server/internal/models"
	"dreamlets-server/internal/repository"
)

// QuotaPolicy holds the configured story allowances.
type QuotaPolicy struct {
	GuestLimit  int
	GuestWindow time.Duration
	Monthly     models.MonthlyLimits
}

// QuotaService enforces story allowances before generation starts and
// records consumption after a story is successfully persisted.
// Registered accounts carry an explicit monthly counter; guests are
// limited by the number of stories stored in their session within a
// rolling window.
type QuotaService struct {
	accounts repository.AccountRepository
	guests   repository.ProfileStore
	policy   QuotaPolicy
	logger   *zap.Logger
	now      func() time.Time
}

// NewQuotaService creates the quota gate.
func NewQuotaService(accounts repository.AccountRepository, guests repository.ProfileStore, policy QuotaPolicy, logger *zap.Logger) *QuotaService {
	return &QuotaService{
		accounts: accounts,
		guests:   guests,
		policy:   policy,
		logger:   logger.Named("QuotaService"),
		now:      time.Now,
	}
}

// Check returns the owner's current usage and fails with a
// QuotaExceededError when no allowance remains.
func (s *QuotaService) Check(ctx context.Context, owner models.Owner) (*models.UsageReport, error) {
	report, err := s.Usage(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !report.Unlimited && report.Used >= report.Limit {
		reason := "monthly story limit reached"
		if owner.Guest {
			reason = "guest story limit reached, sign up to continue"
		}
		s.logger.Info("Story quota exceeded",
			zap.String("ownerID", owner.ID),
			zap.Bool("guest", owner.Guest),
			zap.Int("used", report.Used),
			zap.Int("limit", report.Limit))
		return nil, &models.QuotaExceededError{Used: report.Used, Limit: report.Limit, Reason: reason}
	}
	return report, nil
}

// Usage reports the owner's quota position without enforcing it. For
// registered accounts a new calendar month resets the counter first.
func (s *QuotaService) Usage(ctx context.Context, owner models.Owner) (*models.UsageReport, error) {
	if owner.Guest {
		since := s.now().Add(-s.policy.GuestWindow)
		used, err := s.guests.CountStoriesSince(ctx, owner, since)
		if err != nil {
			return nil, fmt.Errorf("failed to count guest stories: %w", err)
		}
		return buildReport(used, s.policy.GuestLimit), nil
	}

	account, err := s.accounts.EnsureAccount(ctx, owner.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !account.SameResetPeriod(now) {
		if err := s.accounts.ResetMonthlyUsage(ctx, owner.ID, now); err != nil {
			return nil, err
		}
		s.logger.Info("Monthly usage counter reset", zap.String("userID", owner.ID))
		account.StoriesThisMonth = 0
		account.MonthlyResetDate = now
	}

	limit := s.policy.Monthly.LimitFor(account.SubscriptionTier)
	if limit < 0 {
		return &models.UsageReport{Used: account.StoriesThisMonth, Limit: -1, Unlimited: true, Remaining: -1}, nil
	}
	return buildReport(account.StoriesThisMonth, limit), nil
}

// RecordSuccess consumes one story from the owner's allowance. Guest
// consumption is implicit in the stored story, so only registered
// accounts carry a counter to bump.
func (s *QuotaService) RecordSuccess(ctx context.Context, owner models.Owner) error {
	if owner.Guest {
		return nil
	}
	return s.accounts.IncrementUsage(ctx, owner.ID)
}

func buildReport(used, limit int) *models.UsageReport {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &models.UsageReport{Used: used, Limit: limit, Remaining: remaining}
}
