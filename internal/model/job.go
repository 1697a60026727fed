package model

import (
	"encoding/json"
	"time"
)

// Job is a queued generation tracked in Redis
type Job struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"currentStep,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	switch j.Status {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	}
	return false
}

// JobStartResponse is returned when a generation is queued
type JobStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobStatusResponse is returned by the job status endpoint
type JobStatusResponse struct {
	JobID       string            `json:"jobId"`
	Status      JobStatus         `json:"status"`
	Progress    int               `json:"progress"`
	CurrentStep string            `json:"currentStep,omitempty"`
	Error       *string           `json:"error,omitempty"`
	Result      *GenerationResult `json:"result,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}
