package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/makeasinger/songprompt/internal/logger"
	"github.com/makeasinger/songprompt/internal/model"
	"github.com/makeasinger/songprompt/internal/service"
)

// Generator produces a prompt, reporting progress along the way.
type Generator interface {
	GenerateWithProgress(ctx context.Context, req *model.GenerationRequest, progress service.ProgressFunc) *model.GenerationResult
}

// JobStore is the part of service.JobService the worker writes to.
type JobStore interface {
	Job(ctx context.Context, jobID string) (*model.Job, error)
	UpdateProgress(ctx context.Context, jobID string, progress int, step string) error
	Complete(ctx context.Context, jobID string, result *model.GenerationResult) error
	Fail(ctx context.Context, jobID, errMsg string) error
}

// Notifier pushes job updates to connected clients.
type Notifier interface {
	PublishProgress(jobID string, progress int, status model.JobStatus, step string)
	PublishComplete(jobID string, result *model.GenerationResult)
	PublishError(jobID, code, message string)
}

// PromptWorker runs queued generations.
type PromptWorker struct {
	generator Generator
	jobs      JobStore
	notifier  Notifier
	log       *logger.Logger
}

func NewPromptWorker(generator Generator, jobs JobStore, notifier Notifier, log *logger.Logger) *PromptWorker {
	if log == nil {
		log = logger.Nop()
	}
	return &PromptWorker{
		generator: generator,
		jobs:      jobs,
		notifier:  notifier,
		log:       log,
	}
}

// ProcessTask handles a prompt:generate task. Generation failures are
// recorded on the job and do not make asynq retry. Canceling the job cancels
// ctx; the canceled status is kept and the result discarded.
func (w *PromptWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.GenerateTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}

	jobID := payload.JobID
	log := w.log.With("job_id", jobID)

	job, err := w.jobs.Job(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job.Status == model.JobStatusCanceled {
		log.Info("skipping canceled job")
		return nil
	}
	if payload.Request == nil {
		w.failJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("job %s has no request: %w", jobID, asynq.SkipRetry)
	}

	log.Info("starting prompt job")

	result := w.generator.GenerateWithProgress(ctx, payload.Request, func(progress int, step string) {
		w.updateProgress(ctx, jobID, progress, step)
	})

	// ctx is canceled when the job is, and the record still has to be read.
	storeCtx := context.WithoutCancel(ctx)
	if err := w.jobs.Complete(storeCtx, jobID, result); err != nil {
		if errors.Is(err, service.ErrJobDone) {
			log.Info("job canceled while running, result discarded")
			w.notifier.PublishError(jobID, "JOB_CANCELED", "Job was canceled")
			return nil
		}
		w.failJob(storeCtx, jobID, "Failed to save result")
		return err
	}

	if !result.Success {
		log.Warn("prompt job failed", "stage", string(result.Stage), "error", result.Error)
		w.notifier.PublishError(jobID, "GENERATION_FAILED", result.Error)
		return nil
	}

	w.notifier.PublishComplete(jobID, result)
	log.Info("prompt job completed", "backend", result.BackendUsed)
	return nil
}

func (w *PromptWorker) updateProgress(ctx context.Context, jobID string, progress int, step string) {
	if err := w.jobs.UpdateProgress(ctx, jobID, progress, step); err != nil {
		if errors.Is(err, service.ErrJobDone) {
			return
		}
		w.log.Warn("failed to update progress", "job_id", jobID, "error", err)
	}
	w.notifier.PublishProgress(jobID, progress, model.JobStatusRunning, step)
}

func (w *PromptWorker) failJob(ctx context.Context, jobID, errMsg string) {
	if err := w.jobs.Fail(ctx, jobID, errMsg); err != nil {
		w.log.Error("failed to mark job as failed", "job_id", jobID, "error", err)
	}
	w.notifier.PublishError(jobID, "GENERATION_FAILED", errMsg)
}
