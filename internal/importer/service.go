package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/kzetxa/getmoneyclaude/internal/datasource"
	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/ledger"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// Progress mirrors the ledger counters of a run.
type Progress struct {
	Total      int64 `json:"total"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
}

// Response is the structured result of every Service action. Failures are
// reported with Success false and a Message; errors never escape raw.
type Response struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	ImportID string    `json:"importId,omitempty"`
	Status   string    `json:"status,omitempty"`
	Progress *Progress `json:"progress,omitempty"`
}

// Messages shared with the HTTP surface.
const (
	MsgInProgress    = "import already in progress"
	MsgMissingID     = "importId is required"
	MsgNotFound      = "import not found"
	MsgStarted       = "Import started"
	MsgCompleted     = "Import completed successfully"
	MsgWithErrors    = "Import completed with errors"
	MsgCancelled     = "Import cancelled successfully"
	MsgRunCancelled  = "Import cancelled"
	MsgStatus        = "Import status retrieved"
	MsgAlreadyFinish = "import already finished"
)

// Service exposes start, status and cancel over an Orchestrator. At most one
// import runs per Service; a second Start is refused rather than queued.
type Service struct {
	repo   storage.Repository
	fetch  datasource.Fetcher
	ledger *ledger.Ledger
	opt    Options
	log    zerolog.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewService wires a Service over repo and fetch.
func NewService(repo storage.Repository, fetch datasource.Fetcher, opt Options, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		fetch:   fetch,
		ledger:  ledger.New(repo, log),
		opt:     opt.withDefaults(),
		log:     log,
		sem:     semaphore.NewWeighted(1),
		running: map[string]context.CancelFunc{},
	}
}

// Ledger returns the ledger the service writes to.
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// Start runs an import to completion and reports its outcome.
func (s *Service) Start(ctx context.Context) Response {
	if !s.sem.TryAcquire(1) {
		return Response{Success: false, Message: MsgInProgress}
	}
	defer s.sem.Release(1)

	run, err := s.ledger.Create(ctx, strings.Join(s.opt.URLs, "; "))
	if err != nil {
		return Response{Success: false, Message: fmt.Sprintf("Import failed: %v", err)}
	}
	runCtx, done := s.track(ctx, run.ID)
	defer done()
	out, err := s.execute(runCtx, run.ID)
	return outcomeResponse(out, err)
}

// StartAsync creates the ledger row and runs the import in the background.
// The run is detached from ctx; use Cancel to stop it.
func (s *Service) StartAsync(ctx context.Context) Response {
	if !s.sem.TryAcquire(1) {
		return Response{Success: false, Message: MsgInProgress}
	}
	run, err := s.ledger.Create(ctx, strings.Join(s.opt.URLs, "; "))
	if err != nil {
		s.sem.Release(1)
		return Response{Success: false, Message: fmt.Sprintf("Import failed: %v", err)}
	}

	runCtx, done := s.track(context.WithoutCancel(ctx), run.ID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)
		defer done()
		_, _ = s.execute(runCtx, run.ID)
	}()
	return Response{
		Success:  true,
		Message:  MsgStarted,
		ImportID: run.ID,
		Status:   string(run.Status),
		Progress: &Progress{},
	}
}

// track registers a cancellable context for id so Cancel can reach the run.
// The returned func unregisters it.
func (s *Service) track(ctx context.Context, id string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.running[id] = cancel
	s.mu.Unlock()
	return ctx, func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
		cancel()
	}
}

func (s *Service) execute(ctx context.Context, id string) (Outcome, error) {
	o := New(s.repo, s.fetch, s.ledger, s.opt, s.log)
	return o.Run(ctx, id)
}

// Wait blocks until background imports have finished.
func (s *Service) Wait() { s.wg.Wait() }

// Stop cancels every live run of this Service and waits for them to
// finalize.
func (s *Service) Stop() {
	s.mu.Lock()
	for _, stop := range s.running {
		stop()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Status returns the ledger snapshot of importID.
func (s *Service) Status(ctx context.Context, importID string) Response {
	if strings.TrimSpace(importID) == "" {
		return Response{Success: false, Message: MsgMissingID}
	}
	run, err := s.ledger.Get(ctx, importID)
	if errors.Is(err, storage.ErrNotFound) {
		return Response{Success: false, Message: MsgNotFound, ImportID: importID}
	}
	if err != nil {
		return Response{Success: false, Message: fmt.Sprintf("Failed to get import status: %v", err), ImportID: importID}
	}
	return runResponse(true, MsgStatus, run)
}

// Cancel marks importID cancelled and, when the run is live in this
// process, stops it between batches.
func (s *Service) Cancel(ctx context.Context, importID string) Response {
	if strings.TrimSpace(importID) == "" {
		return Response{Success: false, Message: MsgMissingID}
	}
	run, err := s.ledger.Cancel(ctx, importID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return Response{Success: false, Message: MsgNotFound, ImportID: importID}
	case errors.Is(err, ledger.ErrFinished):
		return runResponse(false, MsgAlreadyFinish, run)
	case err != nil:
		return Response{Success: false, Message: fmt.Sprintf("Failed to cancel import: %v", err), ImportID: importID}
	}

	s.mu.Lock()
	stop, live := s.running[importID]
	s.mu.Unlock()
	if live {
		stop()
	}
	return runResponse(true, MsgCancelled, run)
}

func runResponse(ok bool, msg string, run domain.ImportRun) Response {
	return Response{
		Success:  ok,
		Message:  msg,
		ImportID: run.ID,
		Status:   string(run.Status),
		Progress: &Progress{
			Total:      run.TotalRecords,
			Successful: run.SuccessfulRecords,
			Failed:     run.FailedRecords,
		},
	}
}

func outcomeResponse(out Outcome, err error) Response {
	resp := Response{
		Success:  err == nil,
		ImportID: out.ImportID,
		Status:   string(out.Status),
		Progress: &Progress{Total: out.Total, Successful: out.Successful, Failed: out.Failed},
	}
	switch {
	case errors.Is(err, ErrCancelled):
		resp.Message = MsgRunCancelled
	case err != nil:
		resp.Message = fmt.Sprintf("Import failed: %v", err)
	case out.Status == domain.StatusCompletedWithErrors:
		resp.Message = MsgWithErrors
	default:
		resp.Message = MsgCompleted
	}
	return resp
}
