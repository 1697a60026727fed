package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/songprompt/internal/service"
	"github.com/makeasinger/songprompt/pkg/response"
)

type HealthHandler struct {
	prompts     *service.PromptService
	exports     *service.ExportService
	authEnabled bool
}

func NewHealthHandler(prompts *service.PromptService, exports *service.ExportService, authEnabled bool) *HealthHandler {
	return &HealthHandler{
		prompts:     prompts,
		exports:     exports,
		authEnabled: authEnabled,
	}
}

// Root handles GET /
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"timestamp": time.Now().Unix(),
	})
}

// Health handles GET /health. It never calls a provider.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	backend := h.prompts.Backend()
	return response.OK(c, fiber.Map{
		"status": "ok",
		"services": fiber.Map{
			"backend":           backend.Name(),
			"backendConfigured": backend.IsConfigured(),
			"research":          h.prompts.Researcher().Provider(),
			"storage":           h.exports.StorageEnabled(),
			"auth":              h.authEnabled,
		},
	})
}
