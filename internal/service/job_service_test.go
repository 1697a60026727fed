package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/songprompt/internal/model"
)

type memRecords struct {
	data map[string]string
	ttl  map[string]time.Duration
}

func newMemRecords() *memRecords {
	return &memRecords{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memRecords) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRecords) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	default:
		return redis.NewStatusResult("", errors.New("unsupported value"))
	}
	m.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

type fakeTasks struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeTasks) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{}, nil
}

type fakeInspector struct {
	canceled []string
}

func (f *fakeInspector) CancelProcessing(id string) error {
	f.canceled = append(f.canceled, id)
	return nil
}

func newTestJobService() (*JobService, *memRecords, *fakeTasks, *fakeInspector) {
	records, tasks, inspector := newMemRecords(), &fakeTasks{}, &fakeInspector{}
	return &JobService{redis: records, tasks: tasks, inspector: inspector}, records, tasks, inspector
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) (interface{}, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

func TestJobService_Enqueue(t *testing.T) {
	svc, records, tasks, _ := newTestJobService()
	ctx := context.Background()

	started, err := svc.Enqueue(ctx, &model.GenerationRequest{GenreOrArtist: "synthwave", Topic: "night drive"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, started.Status)
	assert.Equal(t, jobTTL, records.ttl[jobKey(started.JobID)])

	require.Len(t, tasks.tasks, 1)
	assert.Equal(t, TaskTypeGenerate, tasks.tasks[0].Type())
	id, ok := optionValue(tasks.opts[0], asynq.TaskIDOpt)
	require.True(t, ok)
	assert.Equal(t, started.JobID, id)

	var payload GenerateTaskPayload
	require.NoError(t, json.Unmarshal(tasks.tasks[0].Payload(), &payload))
	assert.Equal(t, started.JobID, payload.JobID)
	assert.Equal(t, "night drive", payload.Request.Topic)

	status, err := svc.GetStatus(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, status.Status)
	assert.Nil(t, status.Result)
}

func TestJobService_EnqueueError(t *testing.T) {
	svc, _, tasks, _ := newTestJobService()
	tasks.err = errors.New("redis down")

	_, err := svc.Enqueue(context.Background(), &model.GenerationRequest{})
	assert.ErrorContains(t, err, "failed to enqueue task")
}

func TestJobService_NotFound(t *testing.T) {
	svc, _, _, _ := newTestJobService()
	ctx := context.Background()

	_, err := svc.GetStatus(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, svc.Cancel(ctx, "missing"), ErrJobNotFound)
}

func TestJobService_ProgressAndComplete(t *testing.T) {
	svc, _, _, _ := newTestJobService()
	ctx := context.Background()

	started, err := svc.Enqueue(ctx, &model.GenerationRequest{})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateProgress(ctx, started.JobID, 40, "Generating lyrics"))
	status, err := svc.GetStatus(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, status.Status)
	assert.Equal(t, 40, status.Progress)
	assert.NotNil(t, status.StartedAt)

	result := &model.GenerationResult{Success: true, Title: "Neon Drift", BackendUsed: "groq"}
	require.NoError(t, svc.Complete(ctx, started.JobID, result))

	status, err = svc.GetStatus(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.Result)
	assert.Equal(t, "Neon Drift", status.Result.Title)

	assert.ErrorIs(t, svc.Cancel(ctx, started.JobID), ErrJobDone)
}

func TestJobService_CompleteFailedResult(t *testing.T) {
	svc, _, _, _ := newTestJobService()
	ctx := context.Background()

	started, err := svc.Enqueue(ctx, &model.GenerationRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.Complete(ctx, started.JobID, &model.GenerationResult{Error: "boom", Stage: model.StageLyrics}))

	status, err := svc.GetStatus(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, status.Status)
	require.NotNil(t, status.Error)
	assert.Equal(t, "boom", *status.Error)
}

func TestJobService_CancelQueued(t *testing.T) {
	svc, _, _, inspector := newTestJobService()
	ctx := context.Background()

	started, err := svc.Enqueue(ctx, &model.GenerationRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, started.JobID))

	job, err := svc.Job(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCanceled, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, []string{started.JobID}, inspector.canceled)
}

func TestJobService_CancelRunningKeepsCanceledStatus(t *testing.T) {
	svc, _, _, inspector := newTestJobService()
	ctx := context.Background()

	started, err := svc.Enqueue(ctx, &model.GenerationRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.UpdateProgress(ctx, started.JobID, 40, "Generating lyrics"))

	require.NoError(t, svc.Cancel(ctx, started.JobID))
	assert.Equal(t, []string{started.JobID}, inspector.canceled)

	// the worker finishing afterwards must not resurrect the job
	assert.ErrorIs(t, svc.UpdateProgress(ctx, started.JobID, 80, "Finalizing"), ErrJobDone)
	assert.ErrorIs(t, svc.Complete(ctx, started.JobID, &model.GenerationResult{Success: true, Title: "late"}), ErrJobDone)
	assert.ErrorIs(t, svc.Fail(ctx, started.JobID, "late"), ErrJobDone)

	status, err := svc.GetStatus(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCanceled, status.Status)
	assert.Equal(t, 40, status.Progress)
	assert.Nil(t, status.Result)
	assert.Nil(t, status.Error)

	assert.ErrorIs(t, svc.Cancel(ctx, started.JobID), ErrJobDone)
}

func TestJobService_CancelRunningWithoutInspector(t *testing.T) {
	records := newMemRecords()
	svc := &JobService{redis: records, tasks: &fakeTasks{}}
	ctx := context.Background()

	started, err := svc.Enqueue(ctx, &model.GenerationRequest{})
	require.NoError(t, err)
	require.NoError(t, svc.UpdateProgress(ctx, started.JobID, 40, "Generating lyrics"))
	require.NoError(t, svc.Cancel(ctx, started.JobID))

	assert.ErrorIs(t, svc.Complete(ctx, started.JobID, &model.GenerationResult{Success: true}), ErrJobDone)
	job, err := svc.Job(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCanceled, job.Status)
}
