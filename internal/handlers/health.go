package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"faqbridge/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	faq  *services.FAQService
	mode string // "offline" or "online"
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(faq *services.FAQService, mode string) *HealthHandler {
	return &HealthHandler{faq: faq, mode: mode}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"mode":        h.mode,
		"faq_entries": h.faq.Count(),
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}
