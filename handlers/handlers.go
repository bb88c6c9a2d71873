package handlers

import (
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/necrophagism-spec/image-tagger/prompts"
)

// Handlers represents the HTTP handlers
type Handlers struct {
	tracker *Tracker
	prompts *prompts.Store
}

// NewHandlers creates new HTTP handlers
func NewHandlers(tracker *Tracker, store *prompts.Store) *Handlers {
	return &Handlers{tracker: tracker, prompts: store}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "image-tagger",
	})
}

// GetStatus returns the progress of the current batch
func (h *Handlers) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Status())
}

// ListTemplates returns the available prompt templates
func (h *Handlers) ListTemplates(c *gin.Context) {
	names, err := h.prompts.Names()
	if err != nil {
		log.Errorf("Failed to list templates: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list templates",
		})
		return
	}

	templates := make([]gin.H, 0, len(names))
	for _, name := range names {
		templates = append(templates, gin.H{
			"name":       name,
			"is_default": prompts.IsDefault(name),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"templates": templates,
	})
}
