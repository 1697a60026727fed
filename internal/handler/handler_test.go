package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/songprompt/internal/client"
	"github.com/makeasinger/songprompt/internal/logger"
	"github.com/makeasinger/songprompt/internal/model"
	"github.com/makeasinger/songprompt/internal/parser"
	"github.com/makeasinger/songprompt/internal/research"
	"github.com/makeasinger/songprompt/internal/service"
)

const neonDrift = `{"title":"Neon Drift","lyrics":"[Verse]\nhello"}`

type stubBackend struct {
	mu            sync.Mutex
	calls         int
	notConfigured bool
	reply         string
	err           error
}

func (b *stubBackend) Name() string       { return "stub" }
func (b *stubBackend) IsConfigured() bool { return !b.notConfigured }

func (b *stubBackend) Complete(_ context.Context, _, _ string, structured bool) (*client.Completion, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()

	if b.err != nil {
		return nil, b.err
	}
	if !structured {
		return &client.Completion{Text: b.reply}, nil
	}
	rec, err := parser.Parse(b.reply)
	if err != nil {
		return nil, &client.BackendError{Backend: "stub", Kind: client.KindParse, Message: "could not parse reply", Err: err}
	}
	return &client.Completion{Text: b.reply, Parsed: rec}, nil
}

type fakeJobs struct {
	enqueued  []*model.GenerationRequest
	statuses  map[string]*model.JobStatusResponse
	cancelErr error
}

func (f *fakeJobs) Enqueue(_ context.Context, req *model.GenerationRequest) (*model.JobStartResponse, error) {
	f.enqueued = append(f.enqueued, req)
	return &model.JobStartResponse{JobID: "job-1", Status: model.JobStatusQueued, CreatedAt: time.Now()}, nil
}

func (f *fakeJobs) GetStatus(_ context.Context, jobID string) (*model.JobStatusResponse, error) {
	if s, ok := f.statuses[jobID]; ok {
		return s, nil
	}
	return nil, service.ErrJobNotFound
}

func (f *fakeJobs) Cancel(_ context.Context, jobID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	if _, ok := f.statuses[jobID]; !ok {
		return service.ErrJobNotFound
	}
	return nil
}

type memoryStore struct {
	key  string
	body string
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	data, _ := io.ReadAll(body)
	m.key, m.body = key, string(data)
	return "https://cdn.example.com/" + key, nil
}

type testApp struct {
	app     *fiber.App
	backend *stubBackend
	jobs    *fakeJobs
}

// setupApp mounts the API routes the way cmd/server does, minus auth and rate limiting.
func setupApp(t *testing.T, backend *stubBackend, store client.ExportStore) *testApp {
	t.Helper()

	validate := model.NewValidator()
	defaults := model.RequestDefaults{Language: "English", VocalType: model.VocalFemale, BPM: model.BPMAuto, Duration: "3:00min"}
	researcher := research.NewResearcher(nil, 0, logger.Nop())

	prompts := service.NewPromptService(backend, researcher, defaults, logger.Nop())
	exports := service.NewExportService(store)
	jobs := &fakeJobs{statuses: map[string]*model.JobStatusResponse{
		"job-1": {JobID: "job-1", Status: model.JobStatusRunning, Progress: 40},
	}}

	promptHandler := NewPromptHandler(prompts, validate)
	jobHandler := NewJobHandler(jobs, validate)
	exportHandler := NewExportHandler(exports, validate)
	healthHandler := NewHealthHandler(prompts, exports, false)

	app := fiber.New()
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.Health)

	p := app.Group("/api/prompts")
	p.Post("/generate", promptHandler.Generate)
	p.Post("/jobs", jobHandler.Start)
	p.Get("/jobs/:jobId", jobHandler.Status)
	p.Delete("/jobs/:jobId", jobHandler.Cancel)
	p.Post("/export", exportHandler.Text)

	app.Use("/ws", RequireUpgrade)

	return &testApp{app: app, backend: backend, jobs: jobs}
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, bodyReader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func parseJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body := readBody(t, resp)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &out), "body: %s", body)
	return out
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := parseJSON(t, resp)
	detail, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	return detail["code"].(string)
}

func TestGenerate_Success(t *testing.T) {
	ta := setupApp(t, &stubBackend{reply: neonDrift}, nil)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/prompts/generate",
		`{"genreOrArtist":"synthwave","topic":"night drive","bpm":"120"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := parseJSON(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Neon Drift", body["title"])
	assert.Contains(t, body["stylePrompt"], "120 BPM")
	assert.Equal(t, "stub", body["backendUsed"])
	assert.Equal(t, 1, ta.backend.calls)
}

func TestGenerate_InvalidBody(t *testing.T) {
	ta := setupApp(t, &stubBackend{reply: neonDrift}, nil)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/prompts/generate", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, resp))
}

func TestGenerate_ValidationReportsFields(t *testing.T) {
	ta := setupApp(t, &stubBackend{reply: neonDrift}, nil)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/prompts/generate",
		`{"genreOrArtist":"","topic":"rain","vocalType":"Robot"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := parseJSON(t, resp)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "required", details["genreOrArtist"])
	assert.Equal(t, "oneof", details["vocalType"])
	assert.Zero(t, ta.backend.calls)
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		backend *stubBackend
		status  int
		code    string
	}{
		{
			name:    "missing credential",
			backend: &stubBackend{notConfigured: true},
			status:  http.StatusServiceUnavailable,
			code:    "CONFIG_ERROR",
		},
		{
			name:    "rate limited",
			backend: &stubBackend{err: &client.BackendError{Backend: "stub", Kind: client.KindRateLimited, StatusCode: 429, Message: "slow down"}},
			status:  http.StatusTooManyRequests,
			code:    "RATE_LIMITED",
		},
		{
			name:    "unparseable reply",
			backend: &stubBackend{reply: "I'm sorry, I can't help with that."},
			status:  http.StatusBadGateway,
			code:    "PARSE_ERROR",
		},
		{
			name:    "upstream failure",
			backend: &stubBackend{err: &client.BackendError{Backend: "stub", Kind: client.KindUpstream, StatusCode: 503, Message: "unavailable"}},
			status:  http.StatusBadGateway,
			code:    "AI_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := setupApp(t, tt.backend, nil)
			resp := doRequest(t, ta.app, http.MethodPost, "/api/prompts/generate",
				`{"genreOrArtist":"synthwave","topic":"night drive"}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, errorCode(t, resp))
		})
	}
}

func TestGenerate_FailureNamesBackendInDetails(t *testing.T) {
	backend := &stubBackend{err: &client.BackendError{Backend: "stub", Kind: client.KindUpstream, StatusCode: 503, Message: "unavailable"}}
	ta := setupApp(t, backend, nil)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/prompts/generate",
		`{"genreOrArtist":"synthwave","topic":"night drive"}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body := parseJSON(t, resp)
	assert.NotContains(t, body, "backendUsed")
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "stub", details["backend"])
	assert.Equal(t, "upstream", details["errorKind"])
}

func TestJobs_Start(t *testing.T) {
	ta := setupApp(t, &stubBackend{reply: neonDrift}, nil)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/prompts/jobs",
		`{"genreOrArtist":"synthwave","topic":"night drive"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := parseJSON(t, resp)
	assert.Equal(t, "job-1", body["jobId"])
	assert.Equal(t, "queued", body["status"])
	require.Len(t, ta.jobs.enqueued, 1)
	assert.Equal(t, "night drive", ta.jobs.enqueued[0].Topic)
}

func TestJobs_StartRejectsInvalid(t *testing.T) {
	ta := setupApp(t, &stubBackend{reply: neonDrift}, nil)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/prompts/jobs", `{"topic":"night drive"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, ta.jobs.enqueued)
}

func TestJobs_Status(t *testing.T) {
	ta := setupApp(t, &stubBackend{}, nil)

	resp := doRequest(t, ta.app, http.MethodGet, "/api/prompts/jobs/job-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := parseJSON(t, resp)
	assert.Equal(t, "running", body["status"])
	assert.EqualValues(t, 40, body["progress"])

	resp = doRequest(t, ta.app, http.MethodGet, "/api/prompts/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobs_Cancel(t *testing.T) {
	ta := setupApp(t, &stubBackend{}, nil)

	resp := doRequest(t, ta.app, http.MethodDelete, "/api/prompts/jobs/job-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "canceled", parseJSON(t, resp)["status"])

	ta.jobs.cancelErr = service.ErrJobDone
	resp = doRequest(t, ta.app, http.MethodDelete, "/api/prompts/jobs/job-1", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestExport_Attachment(t *testing.T) {
	ta := setupApp(t, &stubBackend{}, nil)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/prompts/export",
		`{"title":"Neon Drift","stylePrompt":"synthwave, 120 BPM","lyrics":"[Verse]\nhello","upload":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "neon-drift.txt")
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))

	body := readBody(t, resp)
	assert.Equal(t, "=== STYLE ===\nsynthwave, 120 BPM\n\n=== TITLE ===\nNeon Drift\n\n=== LYRICS ===\n[Verse]\nhello\n", body)
}

func TestExport_Upload(t *testing.T) {
	store := &memoryStore{}
	ta := setupApp(t, &stubBackend{}, store)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/prompts/export",
		`{"title":"Neon Drift","stylePrompt":"synthwave","lyrics":"[Verse]\nhello","upload":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := parseJSON(t, resp)
	assert.Equal(t, "neon-drift.txt", body["fileName"])
	assert.Equal(t, "https://cdn.example.com/"+store.key, body["fileUrl"])
	assert.Contains(t, store.body, "=== LYRICS ===")
}

func TestExport_Validation(t *testing.T) {
	ta := setupApp(t, &stubBackend{}, nil)

	resp := doRequest(t, ta.app, http.MethodPost, "/api/prompts/export", `{"title":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, resp))
}

func TestHealth(t *testing.T) {
	ta := setupApp(t, &stubBackend{notConfigured: true}, nil)

	resp := doRequest(t, ta.app, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := parseJSON(t, resp)
	assert.Equal(t, "ok", body["status"])
	services := body["services"].(map[string]any)
	assert.Equal(t, "stub", services["backend"])
	assert.Equal(t, false, services["backendConfigured"])
	assert.Equal(t, "none", services["research"])
	assert.Equal(t, false, services["storage"])
	assert.Zero(t, ta.backend.calls)
}

func TestRoot(t *testing.T) {
	ta := setupApp(t, &stubBackend{}, nil)

	resp := doRequest(t, ta.app, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, parseJSON(t, resp), "timestamp")
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	ta := setupApp(t, &stubBackend{}, nil)

	resp := doRequest(t, ta.app, http.MethodGet, "/ws/jobs/job-1", "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
