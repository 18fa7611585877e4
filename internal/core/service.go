package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRunTimeout bounds the I/O of one run.
const DefaultRunTimeout = 10 * time.Minute

// DefaultResultRetention is how long finished runs stay queryable in memory.
const DefaultResultRetention = 30 * time.Minute

var (
	// ErrRunNotFound is returned for unknown or expired run ids.
	ErrRunNotFound = errors.New("run not found")

	// ErrHistoryDisabled is returned by history queries without a store.
	ErrHistoryDisabled = errors.New("run history not configured")
)

// RunRecord is a finished run as kept in the history store.
type RunRecord struct {
	ID        string        `json:"id"`
	Step      Step          `json:"step"`
	Phase     RunPhase      `json:"phase"`
	Request   RunRequest    `json:"request"`
	Outputs   []string      `json:"outputs"`
	Stats     RunStats      `json:"stats"`
	Error     string        `json:"error,omitempty"`
	Code      string        `json:"code,omitempty"`
	Requester Requester     `json:"requester"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
}

// RunStore keeps the history of finished runs and the reference databases
// they produced.
type RunStore interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	SaveReference(ctx context.Context, runID string, db ReferenceDB) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	// PendingReference returns the unclassified entries of the latest snapshot.
	PendingReference(ctx context.Context) ([]RefEntry, error)
	PruneRuns(ctx context.Context, before time.Time) (int64, error)
}

// RunObserver is notified of run lifecycle events, for metrics.
type RunObserver interface {
	RunStarted(step Step)
	RunRejected(step Step)
	RunFinished(step Step, phase RunPhase, elapsed time.Duration, stats RunStats)
}

// ServiceOptions configures a Service. Zero values select defaults; Store
// and Observer are optional.
type ServiceOptions struct {
	Limiter         *RunLimiter
	Store           RunStore
	Observer        RunObserver
	RunTimeout      time.Duration
	ResultRetention time.Duration
}

// Service runs pipeline steps in the background and streams their console
// output to subscribers.
type Service struct {
	pipeline  *Pipeline
	limiter   *RunLimiter
	store     RunStore
	observer  RunObserver
	timeout   time.Duration
	retention time.Duration

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	ID        string
	Request   RunRequest
	Requester Requester
	Started   time.Time

	mu        sync.Mutex
	progress  RunProgress
	result    *RunResult
	listeners []chan RunProgress

	done chan struct{}
}

// NewService creates a Service around a pipeline.
func NewService(pipeline *Pipeline, opts ServiceOptions) *Service {
	if opts.Limiter == nil {
		opts.Limiter = NewRunLimiter(0, 0)
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.ResultRetention <= 0 {
		opts.ResultRetention = DefaultResultRetention
	}
	return &Service{
		pipeline:  pipeline,
		limiter:   opts.Limiter,
		store:     opts.Store,
		observer:  opts.Observer,
		timeout:   opts.RunTimeout,
		retention: opts.ResultRetention,
		runs:      make(map[string]*activeRun),
	}
}

// ListTables returns information about all registered table kinds.
func (s *Service) ListTables() []TableInfo {
	defs := All()
	infos := make([]TableInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// LimiterStatus returns the run limiter's state.
func (s *Service) LimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// StartRun validates the request, waits for a run slot and starts the step
// in the background. It returns the run id immediately after.
//
// Returns ErrTooManyRuns if no slot frees up within the limiter's wait time.
func (s *Service) StartRun(ctx context.Context, req RunRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		if s.observer != nil {
			s.observer.RunRejected(req.Step)
		}
		return "", err
	}

	id := uuid.New().String()
	run := &activeRun{
		ID:        id,
		Request:   req,
		Requester: RequesterFromContext(ctx),
		Started:   time.Now(),
		progress:  RunProgress{RunID: id, Step: req.Step, Phase: PhaseQueued},
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[id] = run
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.RunStarted(req.Step)
	}

	go func() {
		defer s.limiter.Release()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in run", "run_id", id, "step", int(req.Step), "panic", r)
				s.finish(run, RunResult{Step: req.Step}, fmt.Errorf("internal error: %v", r))
			}
		}()
		s.execute(run)
	}()

	return id, nil
}

// execute runs the step and records its outcome.
func (s *Service) execute(run *activeRun) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	logger := slog.With("run_id", run.ID, "step", int(run.Request.Step))
	logger.Info("run started", "name", run.Request.Step.Name())

	run.setPhase(PhaseRunning)
	console := ConsoleFunc(func(line string) {
		logger.Info(line)
		run.appendLine(line)
	})

	res, err := s.pipeline.Run(ctx, run.Request, console)
	s.finish(run, res, err)
}

// finish publishes the result, closes listeners, persists history and
// schedules eviction.
func (s *Service) finish(run *activeRun, res RunResult, err error) {
	res.RunID = run.ID
	res.Started = run.Started
	res.Duration = time.Since(run.Started)

	phase := PhaseComplete
	if err != nil {
		phase = PhaseFailed
		res.Error = err.Error()
		res.Code = MapError(err).Code
		slog.Error("run failed", "run_id", run.ID, "step", int(run.Request.Step), "error", err)
	} else {
		slog.Info("run completed",
			"run_id", run.ID,
			"step", int(run.Request.Step),
			"records", res.Stats.Records,
			"flagged", res.Stats.FlaggedRecords,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}

	run.mu.Lock()
	if run.result != nil {
		run.mu.Unlock()
		return
	}
	res.Lines = append([]string(nil), run.progress.Lines...)
	run.result = &res
	run.progress.Phase = phase
	run.progress.Error = res.Error
	run.notifyLocked()
	for _, ch := range run.listeners {
		close(ch)
	}
	run.listeners = nil
	run.mu.Unlock()
	close(run.done)

	if s.observer != nil {
		s.observer.RunFinished(run.Request.Step, phase, res.Duration, res.Stats)
	}
	s.record(run, res, phase)
	s.cleanup(run.ID, s.retention)
}

func (s *Service) record(run *activeRun, res RunResult, phase RunPhase) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec := RunRecord{
		ID:        run.ID,
		Step:      run.Request.Step,
		Phase:     phase,
		Request:   run.Request,
		Outputs:   res.Outputs,
		Stats:     res.Stats,
		Error:     res.Error,
		Code:      res.Code,
		Requester: run.Requester,
		Started:   res.Started,
		Duration:  res.Duration,
	}
	if err := s.store.RecordRun(ctx, rec); err != nil {
		slog.Error("record run failed", "run_id", run.ID, "error", err)
		return
	}
	if phase == PhaseComplete && res.Reference != nil {
		if err := s.store.SaveReference(ctx, run.ID, *res.Reference); err != nil {
			slog.Error("save reference snapshot failed", "run_id", run.ID, "error", err)
		}
	}
}

// SubscribeProgress returns a channel of progress updates. The current
// progress is sent immediately; the channel is closed when the run ends.
// Slow subscribers miss intermediate updates.
func (s *Service) SubscribeProgress(runID string) (<-chan RunProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}

	ch := make(chan RunProgress, 16)
	run.mu.Lock()
	defer run.mu.Unlock()

	ch <- run.progress.snapshot()
	if run.result != nil {
		close(ch)
		return ch, nil
	}
	run.listeners = append(run.listeners, ch)
	return ch, nil
}

// GetRunResult returns the result of a run, blocking until it completes.
func (s *Service) GetRunResult(ctx context.Context, runID string) (*RunResult, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}

	select {
	case <-run.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return run.result, nil
}

// GetRunProgress returns the current progress without blocking.
func (s *Service) GetRunProgress(runID string) (RunProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return RunProgress{}, err
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.progress.snapshot(), nil
}

// ListRuns returns recent runs, newest first, from the history store.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.store.ListRuns(ctx, limit)
}

// PendingReference returns reference entries still waiting for a human.
func (s *Service) PendingReference(ctx context.Context) ([]RefEntry, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.store.PendingReference(ctx)
}

// WaitForRuns blocks until every active run finishes or ctx is done.
// Runs cannot be interrupted, so shutdown waits for them.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) lookup(runID string) (*activeRun, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

// cleanup forgets the run after a delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

func (r *activeRun) setPhase(phase RunPhase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress.Phase = phase
	r.notifyLocked()
}

func (r *activeRun) appendLine(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress.Lines = append(r.progress.Lines, line)
	r.notifyLocked()
}

// notifyLocked sends the progress to every listener without blocking.
// Callers hold r.mu.
func (r *activeRun) notifyLocked() {
	p := r.progress.snapshot()
	for _, ch := range r.listeners {
		select {
		case ch <- p:
		default:
			// Listener is slow, skip this update
		}
	}
}

func (p RunProgress) snapshot() RunProgress {
	p.Lines = append([]string(nil), p.Lines...)
	return p
}
