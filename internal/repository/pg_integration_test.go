package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"dreamlets-server/internal/models"
	"dreamlets-server/internal/repository"
	"dreamlets-server/migrations"
	"dreamlets-server/pkg/migration"
)

type PgRepositorySuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	store     *repository.PgProfileStore
	accounts  *repository.PgAccountRepository
}

func TestPgRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode.")
	}
	suite.Run(t, new(PgRepositorySuite))
}

func (s *PgRepositorySuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(5*time.Minute),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	pool, err := pgxpool.New(ctx, connStr)
	s.Require().NoError(err)
	s.pool = pool

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, pool)
	s.Require().NoError(migrator.Up())

	s.store = repository.NewPgProfileStore(pool, zap.NewNop())
	s.accounts = repository.NewPgAccountRepository(pool, zap.NewNop())
}

func (s *PgRepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func strPtr(v string) *string { return &v }

func (s *PgRepositorySuite) TestKidLifecycle() {
	ctx := context.Background()
	owner := models.Owner{ID: "user-kids"}
	other := models.Owner{ID: "user-other"}

	kid, err := s.store.CreateKid(ctx, owner, models.KidAttributes{
		Name: "Mia", Age: 5, HairColor: strPtr("brown"),
	})
	s.Require().NoError(err)
	s.NotZero(kid.ID)
	s.Equal("Mia", kid.Name)
	s.Require().NotNil(kid.HairColor)
	s.Nil(kid.EyeColor)

	kids, err := s.store.ListKids(ctx, owner)
	s.Require().NoError(err)
	s.Len(kids, 1)

	// The other owner must not see it.
	kids, err = s.store.ListKids(ctx, other)
	s.Require().NoError(err)
	s.Empty(kids)

	updated, err := s.store.UpdateKid(ctx, owner, kid.ID, models.KidAttributes{
		Name: "Mia", Age: 6, EyeColor: strPtr("green"),
	})
	s.Require().NoError(err)
	s.Equal(6, updated.Age)
	s.Require().NotNil(updated.EyeColor)
	// Omitted attributes are cleared, not preserved.
	s.Nil(updated.HairColor)

	_, err = s.store.UpdateKid(ctx, other, kid.ID, models.KidAttributes{Name: "Mia", Age: 6})
	s.ErrorIs(err, models.ErrNotFound)

	s.Require().NoError(s.store.DeleteKid(ctx, owner, kid.ID))
	s.ErrorIs(s.store.DeleteKid(ctx, owner, kid.ID), models.ErrNotFound)
}

func (s *PgRepositorySuite) TestKidsByIDsKeepsRequestOrder() {
	ctx := context.Background()
	owner := models.Owner{ID: "user-order"}

	first, err := s.store.CreateKid(ctx, owner, models.KidAttributes{Name: "Mia", Age: 5})
	s.Require().NoError(err)
	second, err := s.store.CreateKid(ctx, owner, models.KidAttributes{Name: "Leo", Age: 7})
	s.Require().NoError(err)

	kids, err := s.store.KidsByIDs(ctx, owner, []int64{second.ID, first.ID})
	s.Require().NoError(err)
	s.Require().Len(kids, 2)
	s.Equal("Leo", kids[0].Name)
	s.Equal("Mia", kids[1].Name)
}

func (s *PgRepositorySuite) TestStoryPersistence() {
	ctx := context.Background()
	owner := models.Owner{ID: "user-stories"}

	story := &models.Story{
		Title:        "Mia and the Moon Rabbit",
		KidIDs:       []int64{1, 2},
		CharacterIDs: []int64{},
		StoryPart1:   "part one",
		StoryPart2:   "part two",
		StoryPart3:   "part three",
		ImageURL1:    strPtr("/images/user-stories/a.png"),
		Tone:         models.ToneCozy,
		RunID:        strPtr("run_1"),
		MessageID:    strPtr("msg_1"),
	}

	saved, err := s.store.SaveStory(ctx, owner, story)
	s.Require().NoError(err)
	s.NotZero(saved.ID)
	s.Equal([]int64{1, 2}, saved.KidIDs)
	s.Require().NotNil(saved.RunID)
	s.Equal("run_1", *saved.RunID)
	s.Nil(saved.ImageURL2)

	got, err := s.store.GetStory(ctx, owner, saved.ID)
	s.Require().NoError(err)
	s.Equal(saved.Title, got.Title)

	_, err = s.store.GetStory(ctx, models.Owner{ID: "someone-else"}, saved.ID)
	s.ErrorIs(err, models.ErrNotFound)

	count, err := s.store.CountStoriesSince(ctx, owner, time.Now().Add(-time.Hour))
	s.Require().NoError(err)
	s.Equal(1, count)

	count, err = s.store.CountStoriesSince(ctx, owner, time.Now().Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(0, count)

	s.ErrorIs(s.store.DeleteStory(ctx, models.Owner{ID: "someone-else"}, saved.ID), models.ErrNotFound)
	s.Require().NoError(s.store.DeleteStory(ctx, owner, saved.ID))
	_, err = s.store.GetStory(ctx, owner, saved.ID)
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *PgRepositorySuite) TestAccountLifecycle() {
	ctx := context.Background()
	userID := "user-account"

	account, err := s.accounts.EnsureAccount(ctx, userID)
	s.Require().NoError(err)
	s.Equal(models.TierFree, account.SubscriptionTier)
	s.Equal(0, account.StoriesThisMonth)
	s.Nil(account.AssistantID)

	// Ensuring again returns the same row.
	again, err := s.accounts.EnsureAccount(ctx, userID)
	s.Require().NoError(err)
	s.Equal(account.ID, again.ID)

	s.Require().NoError(s.accounts.IncrementUsage(ctx, userID))
	s.Require().NoError(s.accounts.IncrementUsage(ctx, userID))

	account, err = s.accounts.GetAccount(ctx, userID)
	s.Require().NoError(err)
	s.Equal(2, account.StoriesThisMonth)

	resetDate := time.Now().UTC()
	s.Require().NoError(s.accounts.ResetMonthlyUsage(ctx, userID, resetDate))
	account, err = s.accounts.GetAccount(ctx, userID)
	s.Require().NoError(err)
	s.Equal(0, account.StoriesThisMonth)

	conv := models.ConversationContext{AssistantID: "asst_1", ThreadID: "thread_1"}
	s.Require().NoError(s.accounts.SaveConversation(ctx, userID, conv))
	account, err = s.accounts.GetAccount(ctx, userID)
	s.Require().NoError(err)
	s.Require().NotNil(account.ThreadID)
	s.Equal("thread_1", *account.ThreadID)

	_, err = s.accounts.GetAccount(ctx, "missing-user")
	s.ErrorIs(err, models.ErrAccountNotFound)

	s.ErrorIs(s.accounts.IncrementUsage(ctx, "missing-user"), models.ErrAccountNotFound)
}
