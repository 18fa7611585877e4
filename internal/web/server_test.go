package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/followup/internal/core"
)

// fakeBooks serves a one-line IPC follow-up and records written references.
type fakeBooks struct {
	block chan struct{}

	mu      sync.Mutex
	written []string
}

func (f *fakeBooks) ReadSheets(ctx context.Context, path string) ([]core.Sheet, error) {
	if f.block != nil {
		<-f.block
	}
	return []core.Sheet{{
		Name:   "IPC Follow-up",
		Header: []string{"PART NUMBER", "CSN", "Fig", "Type", "PART TITLE"},
		Rows:   [][]string{{"P-100", "01-02-03", "1", "EFW", "BRACKET"}},
	}}, nil
}

func (f *fakeBooks) WriteReference(ctx context.Context, path string, db core.ReferenceDB) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, path)
	return nil
}

func (f *fakeBooks) ReadUnits(ctx context.Context, dir string, kinds []core.TableDefinition, console core.Console) ([]core.UnitSource, error) {
	return nil, nil
}

func (f *fakeBooks) ReadReference(ctx context.Context, path string, console core.Console) (core.ReferenceDB, error) {
	return core.ReferenceDB{}, nil
}

func (f *fakeBooks) ReadFollowUp(ctx context.Context, path string, console core.Console) (core.FollowUpBook, error) {
	return core.FollowUpBook{}, nil
}

func (f *fakeBooks) WriteFollowUp(ctx context.Context, path string, book core.FollowUpBook) error {
	return nil
}

func (f *fakeBooks) WriteNCReport(ctx context.Context, path string, report core.NCReport) error {
	return nil
}

type fakeConfigs struct{}

func (fakeConfigs) LoadFleet(path string) (core.Fleet, error)     { return core.Fleet{}, nil }
func (fakeConfigs) LoadAuthors(path string) (core.Authors, error) { return core.Authors{}, nil }

type testEnv struct {
	server  *Server
	service *core.Service
	books   *fakeBooks
	dataDir string
}

func newTestEnv(t *testing.T, books *fakeBooks) *testEnv {
	t.Helper()
	service := core.NewService(core.NewPipeline(books, fakeConfigs{}), core.ServiceOptions{
		Limiter: core.NewRunLimiter(1, 20*time.Millisecond),
	})
	dataDir := t.TempDir()
	server := NewServer(service, Options{DataDir: dataDir})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = service.WaitForRuns(ctx)
		_ = server.Shutdown(ctx)
	})
	return &testEnv{server: server, service: service, books: books, dataDir: dataDir}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &fakeBooks{})

	rec := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"max_concurrent":1`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestListSteps(t *testing.T) {
	env := newTestEnv(t, &fakeBooks{})

	rec := env.do(t, http.MethodGet, "/api/steps", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var steps []core.StepInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&steps))
	require.Len(t, steps, 7)
	assert.Equal(t, "convert-follow-up", steps[0].Name)
	assert.Equal(t, core.StepNonconformityList, steps[6].Step)
}

func TestStartRun_CompletesAndWritesUnderDataDir(t *testing.T) {
	env := newTestEnv(t, &fakeBooks{})

	rec := env.do(t, http.MethodPost, "/api/runs", `{"step":0,"followUp":"follow-up.xlsx"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var started StartRunResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	require.NotEmpty(t, started.RunID)
	assert.Equal(t, "convert-follow-up", started.Step)
	want := filepath.Join(env.dataDir, core.DefaultReferenceOutput)
	assert.Equal(t, []string{want}, started.Outputs)

	rec = env.do(t, http.MethodGet, "/api/runs/"+started.RunID+"/result", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result core.RunResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Empty(t, result.Error)
	assert.Equal(t, 1, result.Stats.Records)
	assert.Contains(t, result.Lines, "---> Finished.")
	assert.Equal(t, []string{want}, env.books.written)
}

func TestStartRun_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"step":`, "CFG006"},
		{"unknown field", `{"step":0,"bogus":1}`, "CFG006"},
		{"missing inputs", `{"step":2}`, "CFG004"},
		{"unknown step", `{"step":5}`, "CFG005"},
		{"path escapes data dir", `{"step":0,"followUp":"../outside.xlsx"}`, "SRC006"},
		{"absolute path elsewhere", `{"step":0,"followUp":"/etc/follow-up.xlsx"}`, "SRC006"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeBooks{})

			rec := env.do(t, http.MethodPost, "/api/runs", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
			assert.Empty(t, env.books.written)
		})
	}
}

func TestStartRun_TooManyRuns(t *testing.T) {
	books := &fakeBooks{block: make(chan struct{})}
	env := newTestEnv(t, books)

	rec := env.do(t, http.MethodPost, "/api/runs", `{"step":0,"followUp":"a.xlsx"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started StartRunResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))

	rec = env.do(t, http.MethodPost, "/api/runs", `{"step":0,"followUp":"b.xlsx"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RUN001", decodeError(t, rec).Code)

	rec = env.do(t, http.MethodGet, "/api/runs/"+started.RunID+"/result?wait=false", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var progress core.RunProgress
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&progress))
	assert.Contains(t, []core.RunPhase{core.PhaseQueued, core.PhaseRunning}, progress.Phase)

	close(books.block)

	rec = env.do(t, http.MethodGet, "/api/runs/"+started.RunID+"/result", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRunProgress_StreamsLinesThenCompletes(t *testing.T) {
	env := newTestEnv(t, &fakeBooks{})

	rec := env.do(t, http.MethodPost, "/api/runs", `{"step":0,"followUp":"follow-up.xlsx"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started StartRunResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))

	_, err := env.service.GetRunResult(context.Background(), started.RunID)
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/api/runs/"+started.RunID+"/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: progress")
	assert.Contains(t, body, "event: complete")
	assert.Contains(t, body, "Finished.")
	assert.Less(t, strings.Index(body, "event: progress"), strings.Index(body, "event: complete"))
}

func TestRunNotFound(t *testing.T) {
	env := newTestEnv(t, &fakeBooks{})

	for _, path := range []string{
		"/api/runs/nope",
		"/api/runs/nope/result",
		"/api/runs/nope/progress",
	} {
		rec := env.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "RUN002", decodeError(t, rec).Code, path)
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := newTestEnv(t, &fakeBooks{})

	for _, path := range []string{"/api/runs", "/api/reference/pending"} {
		rec := env.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Equal(t, "DB004", decodeError(t, rec).Code, path)
	}
}

func TestListRuns_BadLimit(t *testing.T) {
	env := newTestEnv(t, &fakeBooks{})

	rec := env.do(t, http.MethodGet, "/api/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t, &fakeBooks{})

	rec := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Run history is not configured.")
	assert.Contains(t, rec.Body.String(), "nc-report")
}

func TestMetricsRoute(t *testing.T) {
	service := core.NewService(core.NewPipeline(&fakeBooks{}, fakeConfigs{}), core.ServiceOptions{})
	server := NewServer(service, Options{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("runs_started_total 0\n"))
		}),
	})

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "runs_started_total")
}

func TestResolvePaths(t *testing.T) {
	root := t.TempDir()
	req := core.RunRequest{
		Step:          core.StepCrossCheck,
		FleetPath:     "config/fleet.yaml",
		MDLDir:        filepath.Join(root, "mdl"),
		ReferencePath: "./ref/../ref/db.xlsx",
	}

	require.NoError(t, resolvePaths(root, &req))
	assert.Equal(t, filepath.Join(root, "config", "fleet.yaml"), req.FleetPath)
	assert.Equal(t, filepath.Join(root, "mdl"), req.MDLDir)
	assert.Equal(t, filepath.Join(root, "ref", "db.xlsx"), req.ReferencePath)
	assert.Equal(t, root, req.OutputDir)
	assert.Empty(t, req.AuthorsPath)

	req = core.RunRequest{Step: core.StepCrossCheck, MDLDir: "mdl/../../x"}
	err := resolvePaths(root, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the data directory")
	assert.Equal(t, http.StatusBadRequest, statusFor(err))
}

func TestRespondError(t *testing.T) {
	env := newTestEnv(t, &fakeBooks{})

	rec := httptest.NewRecorder()
	env.server.respondError(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil), errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "boom", resp.Error)
	assert.Equal(t, "ERR000", resp.Code)

	rec = httptest.NewRecorder()
	env.server.respondError(rec, httptest.NewRequest(http.MethodPost, "/runs", nil), core.ErrTooManyRuns)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Too many runs in progress")
	assert.Contains(t, rec.Body.String(), "RUN001")
}
