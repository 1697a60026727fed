package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/songprompt/internal/model"
	"github.com/makeasinger/songprompt/internal/service"
	"github.com/makeasinger/songprompt/pkg/response"
)

type ExportHandler struct {
	service   *service.ExportService
	validator *validator.Validate
}

func NewExportHandler(svc *service.ExportService, v *validator.Validate) *ExportHandler {
	return &ExportHandler{
		service:   svc,
		validator: v,
	}
}

// Text handles POST /api/prompts/export
//
// The envelope is sent as a text attachment unless it was uploaded, in which
// case the JSON response carries the file URL.
func (h *ExportHandler) Text(c *fiber.Ctx) error {
	var req model.ExportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Export(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	if result.FileURL != "" {
		return response.OK(c, result)
	}

	c.Attachment(result.FileName)
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	return c.SendString(result.Content)
}
