package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/songprompt/internal/model"
	"github.com/makeasinger/songprompt/internal/service"
	"github.com/makeasinger/songprompt/pkg/response"
)

// JobQueue is the part of service.JobService the job routes use.
type JobQueue interface {
	Enqueue(ctx context.Context, req *model.GenerationRequest) (*model.JobStartResponse, error)
	GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error)
	Cancel(ctx context.Context, jobID string) error
}

type JobHandler struct {
	jobs      JobQueue
	validator *validator.Validate
}

func NewJobHandler(jobs JobQueue, v *validator.Validate) *JobHandler {
	return &JobHandler{
		jobs:      jobs,
		validator: v,
	}
}

// Start handles POST /api/prompts/jobs
func (h *JobHandler) Start(c *fiber.Ctx) error {
	var req model.GenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.jobs.Enqueue(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/prompts/jobs/:jobId
func (h *JobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.jobs.GetStatus(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Cancel handles DELETE /api/prompts/jobs/:jobId
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.jobs.Cancel(c.Context(), jobID); err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrJobDone):
			return response.Conflict(c, "Job already completed")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{
		"jobId":  jobID,
		"status": model.JobStatusCanceled,
	})
}
