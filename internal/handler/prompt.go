package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/songprompt/internal/client"
	"github.com/makeasinger/songprompt/internal/model"
	"github.com/makeasinger/songprompt/internal/service"
	"github.com/makeasinger/songprompt/pkg/response"
)

type PromptHandler struct {
	service   *service.PromptService
	validator *validator.Validate
}

func NewPromptHandler(svc *service.PromptService, v *validator.Validate) *PromptHandler {
	return &PromptHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /api/prompts/generate
func (h *PromptHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result := h.service.Generate(c.Context(), &req)
	if result.Failed() {
		return resultError(c, result)
	}

	return response.OK(c, result)
}

// resultError maps a failed generation onto the error envelope.
func resultError(c *fiber.Ctx, result *model.GenerationResult) error {
	details := fiber.Map{
		"stage":     result.Stage,
		"errorKind": result.ErrorKind,
	}
	if result.FailedBackend != "" {
		details["backend"] = result.FailedBackend
	}

	switch {
	case result.Stage == model.StageValidation:
		return response.ValidationError(c, result.Error, nil)
	case result.Stage == model.StageConfig:
		return response.ConfigError(c, result.Error, details)
	}

	switch client.ErrorKind(result.ErrorKind) {
	case client.KindRateLimited:
		return response.RateLimited(c, result.Error)
	case client.KindParse, client.KindMalformedResponse:
		return response.ParseError(c, result.Error, details)
	case client.KindMissingCredential, client.KindInvalidCredential, client.KindUnknownModel:
		return response.ConfigError(c, result.Error, details)
	default:
		return response.AIError(c, result.Error, details)
	}
}
