package refresh

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/refreshd/pkg/observability"
)

// TickStatus describes the most recent tick.
type TickStatus struct {
	TickID                    string        `json:"tick_id,omitempty"`
	LastTickAt                time.Time     `json:"last_tick_at"`
	DueCount                  int           `json:"due_count"`
	BatchSize                 int           `json:"batch_size"`
	RecordsProcessed          int           `json:"records_processed"`
	RecordsFailed             int           `json:"records_failed"`
	RecordsSkippedRateLimited int           `json:"records_skipped_rate_limited"`
	Duration                  time.Duration `json:"duration_ns"`
	Error                     string        `json:"error,omitempty"`
}

// SchedulerOptions configures a Scheduler. Zero values select the defaults.
type SchedulerOptions struct {
	Period        time.Duration // Time between ticks, default 1h
	Concurrency   int           // Parallel record refreshes, default 4
	RecordTimeout time.Duration // Budget per record, default 2m
}

// Scheduler drives periodic ticks. Each tick selects the due records, sizes
// a batch and refreshes it through a bounded worker pool.
type Scheduler struct {
	selector *Selector
	engine   *Engine
	policy   Policy
	opts     SchedulerOptions
	logger   *log.Logger
	now      func() time.Time

	mu     sync.RWMutex
	status TickStatus
}

// NewScheduler creates a Scheduler. A nil logger discards output.
func NewScheduler(selector *Selector, engine *Engine, policy Policy, opts SchedulerOptions, logger *log.Logger) *Scheduler {
	if opts.Period <= 0 {
		opts.Period = time.Hour
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Scheduler{
		selector: selector,
		engine:   engine,
		policy:   policy,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Run ticks immediately and then every period until ctx is cancelled.
// Tick failures are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "period", s.opts.Period, "concurrency", s.opts.Concurrency)
	ticker := time.NewTicker(s.opts.Period)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("tick failed", "err", err)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one tick. Once ctx is cancelled no further record is
// dispatched; records already dispatched finish under their own timeout.
// Tick returns after all dispatched records are done.
func (s *Scheduler) Tick(ctx context.Context) (TickStatus, error) {
	start := s.now()
	st := TickStatus{TickID: uuid.NewString(), LastTickAt: start.UTC()}
	logger := s.logger.With("tick", st.TickID)

	due, err := s.selector.Due(ctx, start)
	if err != nil {
		st.Error = err.Error()
		st.Duration = s.now().Sub(start)
		s.setStatus(st)
		observability.Refresh().OnTickComplete(ctx, st.TickID, 0, 0, 0, st.Duration, err)
		return st, err
	}

	st.DueCount = due.Estimate
	st.BatchSize = min(BatchSize(due.Estimate, s.policy), len(due.Records))
	observability.Refresh().OnTickStart(ctx, st.TickID, st.DueCount, st.BatchSize)
	if st.BatchSize == 0 {
		st.Duration = s.now().Sub(start)
		s.setStatus(st)
		logger.Debug("nothing due")
		observability.Refresh().OnTickComplete(ctx, st.TickID, 0, 0, 0, st.Duration, nil)
		return st, nil
	}

	var (
		suppress                     atomic.Bool
		processed, failed, throttled atomic.Int64
	)
	work := context.WithoutCancel(ctx)
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)

	for _, rec := range due.Records[:st.BatchSize] {
		if ctx.Err() != nil {
			logger.Info("shutdown requested, stopping dispatch")
			break
		}
		if !s.selector.Acquire(rec.ID) {
			continue
		}
		g.Go(func() error {
			defer s.selector.Release(rec.ID)
			rctx, cancel := context.WithTimeout(work, s.opts.RecordTimeout)
			defer cancel()

			out := s.engine.Refresh(rctx, rec, &suppress)
			processed.Add(1)
			if out.Failed {
				failed.Add(1)
			}
			if out.RateLimited {
				throttled.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	st.RecordsProcessed = int(processed.Load())
	st.RecordsFailed = int(failed.Load())
	st.RecordsSkippedRateLimited = int(throttled.Load())
	st.Duration = s.now().Sub(start)
	s.setStatus(st)

	observability.Refresh().OnTickComplete(ctx, st.TickID, st.RecordsProcessed, st.RecordsFailed,
		st.RecordsSkippedRateLimited, st.Duration, nil)
	logger.Info("tick complete",
		"due", st.DueCount,
		"batch", st.BatchSize,
		"processed", st.RecordsProcessed,
		"failed", st.RecordsFailed,
		"rate_limited", st.RecordsSkippedRateLimited,
		"duration", st.Duration.Round(time.Millisecond))
	return st, nil
}

// Status returns the status of the most recent tick.
func (s *Scheduler) Status() TickStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Scheduler) setStatus(st TickStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}
