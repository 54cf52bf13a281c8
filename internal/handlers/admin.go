package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"faqbridge/internal/services"
)

// AdminHandler exposes operational endpoints guarded by the admin key
type AdminHandler struct {
	faq *services.FAQService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(faq *services.FAQService) *AdminHandler {
	return &AdminHandler{faq: faq}
}

// ReloadFAQ replaces the FAQ catalog wholesale from its source file,
// recomputing embeddings in online mode.
// POST /api/admin/faq/reload
func (h *AdminHandler) ReloadFAQ(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	if err := h.faq.Reload(ctx); err != nil {
		log.Printf("⚠️ [ADMIN] FAQ reload failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Reload failed: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"reloaded": true,
		"entries":  h.faq.Count(),
	})
}
