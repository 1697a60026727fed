package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/songprompt/internal/model"
)

const (
	TaskTypeGenerate = "prompt:generate"
	QueueGenerate    = "prompts"

	jobTTL = 24 * time.Hour
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobDone     = errors.New("job already completed")
)

// jobRecords is the subset of the Redis client the job store uses.
type jobRecords interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type taskCanceler interface {
	CancelProcessing(id string) error
}

// JobService tracks queued generations in Redis and hands them to asynq.
type JobService struct {
	redis     jobRecords
	tasks     taskEnqueuer
	inspector taskCanceler
}

// NewJobService wires the job store. inspector may be nil, in which case a
// running job is only marked canceled and its worker finishes the call.
func NewJobService(redisClient *redis.Client, asynqClient *asynq.Client, inspector *asynq.Inspector) *JobService {
	s := &JobService{
		redis: redisClient,
		tasks: asynqClient,
	}
	if inspector != nil {
		s.inspector = inspector
	}
	return s
}

// GenerateTaskPayload is the asynq task body.
type GenerateTaskPayload struct {
	JobID   string                   `json:"jobId"`
	Request *model.GenerationRequest `json:"request"`
}

// Enqueue stores a queued job record and schedules the generation.
func (s *JobService) Enqueue(ctx context.Context, req *model.GenerationRequest) (*model.JobStartResponse, error) {
	jobID := uuid.New().String()
	now := time.Now()

	payload, err := json.Marshal(GenerateTaskPayload{JobID: jobID, Request: req})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.Job{
		ID:        jobID,
		Status:    model.JobStatusQueued,
		Payload:   payload,
		CreatedAt: now,
	}
	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	// Generation failures are reported in the job record, so asynq never retries.
	_, err = s.tasks.EnqueueContext(ctx, asynq.NewTask(TaskTypeGenerate, payload),
		asynq.TaskID(jobID),
		asynq.Queue(QueueGenerate),
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(jobTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.JobStartResponse{
		JobID:     jobID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the job record, including the result once finished.
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	resp := &model.JobStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if len(job.Result) > 0 {
		var result model.GenerationResult
		if err := json.Unmarshal(job.Result, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		resp.Result = &result
	}
	return resp, nil
}

// Cancel marks a queued or running job as canceled. A queued job is skipped
// when the worker picks it up; an active task has its context canceled.
func (s *JobService) Cancel(ctx context.Context, jobID string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Done() {
		return ErrJobDone
	}

	now := time.Now()
	job.Status = model.JobStatusCanceled
	job.CompletedAt = &now
	if err := s.saveJob(ctx, job); err != nil {
		return err
	}

	// A picked-up task can still read queued until its first progress report,
	// so the signal goes out for both states. Complete refuses to overwrite a
	// canceled job, so a missed signal only lets the backend call finish.
	if s.inspector != nil {
		_ = s.inspector.CancelProcessing(jobID)
	}
	return nil
}

// Job returns the raw job record (used by the worker).
func (s *JobService) Job(ctx context.Context, jobID string) (*model.Job, error) {
	return s.getJob(ctx, jobID)
}

// UpdateProgress moves a job to running on first call. It returns ErrJobDone
// once the job has finished or been canceled.
func (s *JobService) UpdateProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Done() {
		return ErrJobDone
	}

	job.Progress = progress
	job.CurrentStep = step
	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}
	return s.saveJob(ctx, job)
}

// Complete stores the generation result. A failed result marks the job failed.
// A job that is already done, canceled included, is left as is and ErrJobDone
// is returned.
func (s *JobService) Complete(ctx context.Context, jobID string, result *model.GenerationResult) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Done() {
		return ErrJobDone
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	now := time.Now()
	job.Result = data
	job.CompletedAt = &now
	job.Progress = 100
	if result.Success {
		job.Status = model.JobStatusSucceeded
		job.Error = nil
	} else {
		job.Status = model.JobStatusFailed
		msg := result.Error
		job.Error = &msg
	}
	return s.saveJob(ctx, job)
}

// Fail marks the job failed without a result.
func (s *JobService) Fail(ctx context.Context, jobID, errMsg string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Done() {
		return ErrJobDone
	}

	now := time.Now()
	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	job.CompletedAt = &now
	return s.saveJob(ctx, job)
}

func jobKey(id string) string {
	return "prompt-job:" + id
}

func (s *JobService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}

func (s *JobService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
