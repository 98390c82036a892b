package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dreamlets-server/internal/models"
)

func (h *Handler) generateStory(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	var req models.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidTone(req.Tone) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported tone"})
		return
	}

	story, err := h.stories.Generate(c.Request.Context(), owner, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (h *Handler) getLimits(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	report, err := h.stories.Usage(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
