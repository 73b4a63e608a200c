package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appcommerce "github.com/beizaplus/commerce-sync/internal/application/commerce"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Reconcile Run Types
// ---------------------------------------------------------------------------

// RunStatus represents the outcome of a reconcile run
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusPartial RunStatus = "PARTIAL"
	RunStatusFailed  RunStatus = "FAILED"
)

// ReconcileRun records one scheduled or manual reconcile
type ReconcileRun struct {
	ID          uuid.UUID  `json:"id"`
	Trigger     string     `json:"trigger"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Synced      int        `json:"synced"`
	Errors      int        `json:"errors"`
	Error       string     `json:"error,omitempty"`
}

func (r *ReconcileRun) complete(summary *appcommerce.ReconcileSummary, err error) {
	now := time.Now()
	r.CompletedAt = &now
	if summary != nil {
		r.Synced = summary.Synced
		r.Errors = summary.Errors
	}
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		return
	}
	if summary.Errors == 0 {
		r.Status = RunStatusSuccess
	} else {
		r.Status = RunStatusPartial
	}
}

// ProductReconciler is the work the scheduler drives
type ProductReconciler interface {
	ReconcileProducts(ctx context.Context) (*appcommerce.ReconcileSummary, error)
}

// ---------------------------------------------------------------------------
// ProductReconcileSchedulerConfig
// ---------------------------------------------------------------------------

// ProductReconcileSchedulerConfig holds configuration for the product reconcile scheduler
type ProductReconcileSchedulerConfig struct {
	// Interval between the end of one run and the next tick
	Interval time.Duration
	// JobTimeout bounds a single run
	JobTimeout time.Duration
	// RunOnStart runs immediately instead of waiting for the first tick
	RunOnStart bool
	// MaxHistory is how many finished runs are kept in memory
	MaxHistory int
}

// DefaultProductReconcileSchedulerConfig returns default configuration
func DefaultProductReconcileSchedulerConfig() ProductReconcileSchedulerConfig {
	return ProductReconcileSchedulerConfig{
		Interval:   time.Hour,
		JobTimeout: 10 * time.Minute,
		RunOnStart: false,
		MaxHistory: 50,
	}
}

// Validate validates the configuration
func (c *ProductReconcileSchedulerConfig) Validate() error {
	if c.Interval <= 0 || c.JobTimeout <= 0 || c.MaxHistory < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// ProductReconcileScheduler
// ---------------------------------------------------------------------------

// ProductReconcileScheduler runs ReconcileProducts on a ticker.
// At most one run is active at a time, scheduled or manual.
type ProductReconcileScheduler struct {
	config     ProductReconcileSchedulerConfig
	reconciler ProductReconciler
	metrics    *telemetry.Metrics
	logger     *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	active    atomic.Bool

	historyMu sync.RWMutex
	history   []*ReconcileRun
}

// NewProductReconcileScheduler creates a new scheduler. metrics may be nil.
func NewProductReconcileScheduler(
	config ProductReconcileSchedulerConfig,
	reconciler ProductReconciler,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) (*ProductReconcileScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ProductReconcileScheduler{
		config:     config,
		reconciler: reconciler,
		metrics:    metrics,
		logger:     logger,
		history:    make([]*ReconcileRun, 0, config.MaxHistory),
	}, nil
}

// Start starts the ticker loop. Calling Start twice is a no-op.
func (s *ProductReconcileScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Product reconcile scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels the loop and waits for an active run to return or ctx to expire.
func (s *ProductReconcileScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Product reconcile scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Product reconcile scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the ticker loop is active
func (s *ProductReconcileScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *ProductReconcileScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		_, _ = s.RunOnce(ctx, "startup")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx, "schedule"); errors.Is(err, ErrRunInProgress) {
				s.logger.Debug("Skipping scheduled reconcile, previous run still active")
			}
		}
	}
}

// RunOnce performs one reconcile under the job timeout and records it.
// It returns ErrRunInProgress when another run is active.
func (s *ProductReconcileScheduler) RunOnce(ctx context.Context, trigger string) (*ReconcileRun, error) {
	if !s.active.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.active.Store(false)

	run := &ReconcileRun{
		ID:        uuid.New(),
		Trigger:   trigger,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	summary, err := s.reconciler.ReconcileProducts(jobCtx)
	run.complete(summary, err)
	elapsed := run.CompletedAt.Sub(run.StartedAt)
	s.metrics.ObserveReconcile(run.Synced, run.Errors, elapsed, err)

	if err != nil {
		s.logger.Error("Product reconcile run failed",
			zap.String("run_id", run.ID.String()),
			zap.String("trigger", trigger),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	} else {
		s.logger.Info("Product reconcile run completed",
			zap.String("run_id", run.ID.String()),
			zap.String("trigger", trigger),
			zap.String("status", string(run.Status)),
			zap.Int("synced", run.Synced),
			zap.Int("errors", run.Errors),
			zap.Duration("elapsed", elapsed),
		)
	}

	s.addToHistory(run)
	return run, err
}

func (s *ProductReconcileScheduler) addToHistory(run *ReconcileRun) {
	if s.config.MaxHistory == 0 {
		return
	}
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*ReconcileRun{run}, s.history...)
	if len(s.history) > s.config.MaxHistory {
		s.history = s.history[:s.config.MaxHistory]
	}
}

// History returns the most recent runs, newest first
func (s *ProductReconcileScheduler) History(limit int) []ReconcileRun {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]ReconcileRun, limit)
	for i := 0; i < limit; i++ {
		out[i] = *s.history[i]
	}
	return out
}
