package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dreamlets-server/internal/models"
	"dreamlets-server/internal/service"
	"dreamlets-server/internal/service/mocks"
)

func testPolicy() service.QuotaPolicy {
	return service.QuotaPolicy{
		GuestLimit:  3,
		GuestWindow: 720 * time.Hour,
		Monthly:     models.MonthlyLimits{Free: 5, Premium15: 15},
	}
}

func TestQuotaCheckGuest(t *testing.T) {
	ctx := context.Background()
	guest := models.Owner{ID: "session-1", Guest: true}

	t.Run("under the limit", func(t *testing.T) {
		guests := new(mocks.ProfileStore)
		guests.On("CountStoriesSince", ctx, guest, mock.AnythingOfType("time.Time")).Return(2, nil).Once()

		quota := service.NewQuotaService(new(mocks.AccountRepository), guests, testPolicy(), zap.NewNop())
		report, err := quota.Check(ctx, guest)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Used)
		assert.Equal(t, 3, report.Limit)
		assert.Equal(t, 1, report.Remaining)
		guests.AssertExpectations(t)
	})

	t.Run("limit reached", func(t *testing.T) {
		guests := new(mocks.ProfileStore)
		guests.On("CountStoriesSince", ctx, guest, mock.AnythingOfType("time.Time")).Return(3, nil).Once()

		quota := service.NewQuotaService(new(mocks.AccountRepository), guests, testPolicy(), zap.NewNop())
		_, err := quota.Check(ctx, guest)
		require.Error(t, err)
		assert.True(t, models.IsQuotaExceeded(err))
		guests.AssertExpectations(t)
	})
}

func TestQuotaCheckAccount(t *testing.T) {
	ctx := context.Background()
	owner := models.Owner{ID: "user-1"}

	t.Run("free tier under the limit", func(t *testing.T) {
		accounts := new(mocks.AccountRepository)
		accounts.On("EnsureAccount", ctx, "user-1").Return(&models.Account{
			ID:               "user-1",
			SubscriptionTier: models.TierFree,
			StoriesThisMonth: 4,
			MonthlyResetDate: time.Now().UTC(),
		}, nil).Once()

		quota := service.NewQuotaService(accounts, new(mocks.ProfileStore), testPolicy(), zap.NewNop())
		report, err := quota.Check(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, 4, report.Used)
		assert.Equal(t, 5, report.Limit)
		accounts.AssertExpectations(t)
	})

	t.Run("free tier exhausted", func(t *testing.T) {
		accounts := new(mocks.AccountRepository)
		accounts.On("EnsureAccount", ctx, "user-1").Return(&models.Account{
			ID:               "user-1",
			SubscriptionTier: models.TierFree,
			StoriesThisMonth: 5,
			MonthlyResetDate: time.Now().UTC(),
		}, nil).Once()

		quota := service.NewQuotaService(accounts, new(mocks.ProfileStore), testPolicy(), zap.NewNop())
		_, err := quota.Check(ctx, owner)
		assert.True(t, models.IsQuotaExceeded(err))
	})

	t.Run("unlimited tier never blocks", func(t *testing.T) {
		accounts := new(mocks.AccountRepository)
		accounts.On("EnsureAccount", ctx, "user-1").Return(&models.Account{
			ID:               "user-1",
			SubscriptionTier: models.TierPremiumUnlimited,
			StoriesThisMonth: 9000,
			MonthlyResetDate: time.Now().UTC(),
		}, nil).Once()

		quota := service.NewQuotaService(accounts, new(mocks.ProfileStore), testPolicy(), zap.NewNop())
		report, err := quota.Check(ctx, owner)
		require.NoError(t, err)
		assert.True(t, report.Unlimited)
	})

	t.Run("new month resets the counter", func(t *testing.T) {
		accounts := new(mocks.AccountRepository)
		accounts.On("EnsureAccount", ctx, "user-1").Return(&models.Account{
			ID:               "user-1",
			SubscriptionTier: models.TierFree,
			StoriesThisMonth: 5,
			MonthlyResetDate: time.Now().UTC().AddDate(0, -2, 0),
		}, nil).Once()
		accounts.On("ResetMonthlyUsage", ctx, "user-1", mock.AnythingOfType("time.Time")).Return(nil).Once()

		quota := service.NewQuotaService(accounts, new(mocks.ProfileStore), testPolicy(), zap.NewNop())
		report, err := quota.Check(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Used)
		assert.Equal(t, 5, report.Remaining)
		accounts.AssertExpectations(t)
	})
}

func TestQuotaRecordSuccess(t *testing.T) {
	ctx := context.Background()

	t.Run("account increments counter", func(t *testing.T) {
		accounts := new(mocks.AccountRepository)
		accounts.On("IncrementUsage", ctx, "user-1").Return(nil).Once()

		quota := service.NewQuotaService(accounts, new(mocks.ProfileStore), testPolicy(), zap.NewNop())
		require.NoError(t, quota.RecordSuccess(ctx, models.Owner{ID: "user-1"}))
		accounts.AssertExpectations(t)
	})

	t.Run("guest consumption is implicit", func(t *testing.T) {
		accounts := new(mocks.AccountRepository)
		quota := service.NewQuotaService(accounts, new(mocks.ProfileStore), testPolicy(), zap.NewNop())
		require.NoError(t, quota.RecordSuccess(ctx, models.Owner{ID: "session-1", Guest: true}))
		accounts.AssertNotCalled(t, "IncrementUsage", mock.Anything, mock.Anything)
	})
}
