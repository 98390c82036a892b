package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dreamlets-server/internal/auth"
	"dreamlets-server/internal/handler"
	"dreamlets-server/internal/middleware"
	"dreamlets-server/internal/models"
	"dreamlets-server/internal/service"
	"dreamlets-server/internal/service/mocks"
)

type apiFixture struct {
	router   http.Handler
	accounts *mocks.AccountRepository
	pgStore  *mocks.ProfileStore
	guests   *mocks.ProfileStore
	aiMock   *mocks.AI
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		accounts: new(mocks.AccountRepository),
		pgStore:  new(mocks.ProfileStore),
		guests:   new(mocks.ProfileStore),
		aiMock:   new(mocks.AI),
	}

	log := zap.NewNop()
	stores := service.StoreSelector{Accounts: f.pgStore, Guests: f.guests}
	quota := service.NewQuotaService(f.accounts, f.guests, service.QuotaPolicy{
		GuestLimit:  3,
		GuestWindow: 720 * time.Hour,
		Monthly:     models.MonthlyLimits{Free: 5, Premium15: 15},
	}, log)
	illustrations := service.NewIllustrationService(f.aiMock, new(mocks.ImageStore), time.Second, log)
	narrative := service.NewNarrativeService(f.aiMock, log)
	assistant := service.NewAssistantService(f.aiMock, illustrations, service.AssistantConfig{
		Name:         "Dreamlets Storytelling Companion",
		PollInterval: time.Millisecond,
		RunTimeout:   time.Second,
	}, log)
	stories := service.NewStoryService(stores, f.accounts, quota, narrative, assistant, illustrations, log)

	verifier, err := auth.NewJWTVerifier("test-secret", log)
	require.NoError(t, err)

	h := handler.NewHandler(stores, stories, log)
	f.router = handler.NewRouter(h, verifier, handler.RouterConfig{
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		GuestCookie: middleware.GuestCookieConfig{
			Name: "dreamlets_guest",
			TTL:  72 * time.Hour,
		},
	}, log)
	return f
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGuestIdentityCookie(t *testing.T) {
	f := newAPIFixture(t)
	f.guests.On("ListKids", mock.Anything, mock.AnythingOfType("models.Owner")).Return([]models.Kid{}, nil).Once()

	rec := f.do(http.MethodGet, "/api/kids", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "dreamlets_guest" {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "guest session cookie must be issued")
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestInvalidBearerTokenRejected(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/kids", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	// Invalid credentials must not fall back to a guest session.
	f.guests.AssertNotCalled(t, "ListKids", mock.Anything, mock.Anything)
}

func TestKidCRUD(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		f := newAPIFixture(t)
		f.guests.On("CreateKid", mock.Anything, mock.AnythingOfType("models.Owner"), mock.AnythingOfType("models.KidAttributes")).
			Return(&models.Kid{ID: 1, Name: "Mia", Age: 5}, nil).Once()

		rec := f.do(http.MethodPost, "/api/kids", `{"name":"Mia","age":5}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var kid models.Kid
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &kid))
		assert.Equal(t, "Mia", kid.Name)
		f.guests.AssertExpectations(t)
	})

	t.Run("create rejects missing name", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodPost, "/api/kids", `{"age":5}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create rejects out-of-range age", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodPost, "/api/kids", `{"name":"Mia","age":42}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete missing kid maps to 404", func(t *testing.T) {
		f := newAPIFixture(t)
		f.guests.On("DeleteKid", mock.Anything, mock.AnythingOfType("models.Owner"), int64(7)).
			Return(models.ErrNotFound).Once()

		rec := f.do(http.MethodDelete, "/api/kids/7", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id is a client error", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodDelete, "/api/kids/banana", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStoryDeletion(t *testing.T) {
	t.Run("owner deletes a story", func(t *testing.T) {
		f := newAPIFixture(t)
		f.guests.On("DeleteStory", mock.Anything, mock.AnythingOfType("models.Owner"), int64(42)).
			Return(nil).Once()

		rec := f.do(http.MethodDelete, "/api/stories/42", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		f.guests.AssertExpectations(t)
	})

	t.Run("missing story maps to 404", func(t *testing.T) {
		f := newAPIFixture(t)
		f.guests.On("DeleteStory", mock.Anything, mock.AnythingOfType("models.Owner"), int64(42)).
			Return(models.ErrNotFound).Once()

		rec := f.do(http.MethodDelete, "/api/stories/42", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGenerateEndpoint(t *testing.T) {
	t.Run("quota exhausted maps to 429", func(t *testing.T) {
		f := newAPIFixture(t)
		f.guests.On("CountStoriesSince", mock.Anything, mock.AnythingOfType("models.Owner"), mock.AnythingOfType("time.Time")).
			Return(3, nil).Once()

		rec := f.do(http.MethodPost, "/api/stories/generate", `{"kidIds":[1],"storyIdea":"a trip","tone":"cozy"}`)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.EqualValues(t, 3, payload["limit"])
		f.aiMock.AssertNotCalled(t, "CompleteJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unsupported tone maps to 400", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodPost, "/api/stories/generate", `{"kidIds":[1],"storyIdea":"a trip","tone":"spooky"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing kid ids maps to 400", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.do(http.MethodPost, "/api/stories/generate", `{"storyIdea":"a trip","tone":"cozy"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLimitsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.guests.On("CountStoriesSince", mock.Anything, mock.AnythingOfType("models.Owner"), mock.AnythingOfType("time.Time")).
		Return(1, nil).Once()

	rec := f.do(http.MethodGet, "/api/limits", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.UsageReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Used)
	assert.Equal(t, 3, report.Limit)
	assert.Equal(t, 2, report.Remaining)
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
