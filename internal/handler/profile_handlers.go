package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dreamlets-server/internal/models"
)

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) listKids(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	kids, err := h.stores.For(owner).ListKids(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, kids)
}

func (h *Handler) createKid(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var attrs models.KidAttributes
	if err := c.ShouldBindJSON(&attrs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kid, err := h.stores.For(owner).CreateKid(c.Request.Context(), owner, attrs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, kid)
}

func (h *Handler) updateKid(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var attrs models.KidAttributes
	if err := c.ShouldBindJSON(&attrs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kid, err := h.stores.For(owner).UpdateKid(c.Request.Context(), owner, id, attrs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, kid)
}

func (h *Handler) deleteKid(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.stores.For(owner).DeleteKid(c.Request.Context(), owner, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listCharacters(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	chars, err := h.stores.For(owner).ListCharacters(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chars)
}

func (h *Handler) createCharacter(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var attrs models.CharacterAttributes
	if err := c.ShouldBindJSON(&attrs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	char, err := h.stores.For(owner).CreateCharacter(c.Request.Context(), owner, attrs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, char)
}

func (h *Handler) updateCharacter(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var attrs models.CharacterAttributes
	if err := c.ShouldBindJSON(&attrs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	char, err := h.stores.For(owner).UpdateCharacter(c.Request.Context(), owner, id, attrs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, char)
}

func (h *Handler) deleteCharacter(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.stores.For(owner).DeleteCharacter(c.Request.Context(), owner, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listStories(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	stories, err := h.stores.For(owner).ListStories(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stories)
}

func (h *Handler) getStory(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	story, err := h.stores.For(owner).GetStory(c.Request.Context(), owner, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *Handler) deleteStory(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.stores.For(owner).DeleteStory(c.Request.Context(), owner, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
