package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/followup/internal/core"
	"github.com/JonMunkholm/followup/internal/logging"
	"github.com/JonMunkholm/followup/internal/web/templates"
)

const maxRequestBody = 1 << 20

// StartRunResponse is returned when a run is accepted.
type StartRunResponse struct {
	RunID   string   `json:"runId"`
	Step    string   `json:"step"`
	Outputs []string `json:"outputs"`
}

// handleIndex renders the status page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := templates.IndexData{
		Steps:   core.Steps(),
		Tables:  s.service.ListTables(),
		Limiter: s.service.LimiterStatus(),
		History: true,
	}

	runs, err := s.service.ListRuns(r.Context(), 20)
	switch {
	case errors.Is(err, core.ErrHistoryDisabled):
		data.History = false
	case err != nil:
		s.respondError(w, r, err)
		return
	default:
		data.Runs = runs
		pending, err := s.service.PendingReference(r.Context())
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		data.Pending = len(pending)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.IndexPage(data).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render index", "error", err)
	}
}

// handleHealth reports liveness and the run limiter state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"runs":   s.service.LimiterStatus(),
	})
}

// handleListTables returns the registered table kinds.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListTables())
}

// handleListSteps returns the steps and the inputs each needs.
func (s *Server) handleListSteps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.Steps())
}

// handleStartRun validates a run request, resolves its paths under the data
// directory and starts the run. Responds 202 with the run id.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req core.RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: malformed request body: %w", errBadRequest, err))
		return
	}
	if err := req.Validate(); err != nil {
		if !errors.Is(err, core.ErrUnknownStep) {
			err = fmt.Errorf("%w: %w", errBadRequest, err)
		}
		s.respondError(w, r, err)
		return
	}
	if err := resolvePaths(s.opts.DataDir, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := withRequester(r.Context(), r)
	id, err := s.service.StartRun(ctx, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.WithFields(ctx, "run_id", id, "step", int(req.Step)).Info("run accepted")
	writeJSON(w, http.StatusAccepted, StartRunResponse{
		RunID:   id,
		Step:    req.Step.Name(),
		Outputs: req.Outputs(),
	})
}

// handleGetRun returns the current progress of a run without blocking.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	progress, err := s.service.GetRunProgress(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// handleRunResult returns the result of a run. It waits for the run to end
// unless called with wait=false, in which case an unfinished run answers 202
// with its progress.
func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if r.URL.Query().Get("wait") == "false" {
		progress, err := s.service.GetRunProgress(runID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if progress.Phase == core.PhaseQueued || progress.Phase == core.PhaseRunning {
			writeJSON(w, http.StatusAccepted, progress)
			return
		}
	}

	result, err := s.service.GetRunResult(r.Context(), runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRunProgress streams run progress via Server-Sent Events. Event ids
// are the number of console lines sent so far; a reconnecting client passes
// the last one as lastEventId (or the Last-Event-ID header) to skip lines it
// already has.
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID, _ := strconv.Atoi(lastEventIDStr)

	progressCh, err := s.service.SubscribeProgress(runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var last core.RunProgress
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				data, _ := json.Marshal(last)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}
			last = progress

			eventID := len(progress.Lines)
			running := progress.Phase == core.PhaseQueued || progress.Phase == core.PhaseRunning
			if lastEventIDStr != "" && running && eventID <= lastEventID {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleListRuns returns the run history, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, r, fmt.Errorf("%w: limit must be a positive number", errBadRequest))
			return
		}
		limit = n
	}

	runs, err := s.service.ListRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []core.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handlePendingReference returns the reference entries of the latest
// snapshot that still have a TBD book flag.
func (s *Server) handlePendingReference(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.PendingReference(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.RefEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
