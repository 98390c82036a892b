// Package handler exposes the HTTP API: profile CRUD, story
// generation and quota reporting.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dreamlets-server/internal/middleware"
	"dreamlets-server/internal/models"
	"dreamlets-server/internal/service"
)

// Handler carries the dependencies of all HTTP endpoints.
type Handler struct {
	stores  service.StoreSelector
	stories *service.StoryService
	logger  *zap.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(stores service.StoreSelector, stories *service.StoryService, logger *zap.Logger) *Handler {
	return &Handler{
		stores:  stores,
		stories: stories,
		logger:  logger.Named("Handler"),
	}
}

// RegisterRoutes mounts the API under /api. The identity middleware
// must already have run for every route registered here.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/kids", h.listKids)
	api.POST("/kids", h.createKid)
	api.PUT("/kids/:id", h.updateKid)
	api.DELETE("/kids/:id", h.deleteKid)

	api.GET("/characters", h.listCharacters)
	api.POST("/characters", h.createCharacter)
	api.PUT("/characters/:id", h.updateCharacter)
	api.DELETE("/characters/:id", h.deleteCharacter)

	api.GET("/stories", h.listStories)
	api.GET("/stories/:id", h.getStory)
	api.DELETE("/stories/:id", h.deleteStory)
	api.POST("/stories/generate", h.generateStory)

	api.GET("/limits", h.getLimits)
}

// owner pulls the resolved request owner or aborts with 401.
func (h *Handler) owner(c *gin.Context) (models.Owner, bool) {
	owner, ok := middleware.OwnerFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "request owner not resolved"})
	}
	return owner, ok
}

// respondError maps domain errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var quotaErr *models.QuotaExceededError
	switch {
	case errors.As(err, &quotaErr):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": quotaErr.Reason,
			"used":  quotaErr.Used,
			"limit": quotaErr.Limit,
		})
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrNarrativeGenerationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "story generation failed, please try again"})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
