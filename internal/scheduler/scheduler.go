package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/athenasec/athena/internal/telemetry"
	"github.com/athenasec/athena/pkg/config"
	"github.com/athenasec/athena/pkg/errors"
	"github.com/athenasec/athena/pkg/logging"
	"github.com/athenasec/athena/pkg/resilience"
	"github.com/athenasec/athena/pkg/types"
)

// Analyzer executes a single analysis request. The failover coordinator
// satisfies this interface.
type Analyzer interface {
	Analyze(ctx context.Context, req *types.AnalysisRequest) (*types.AnalysisResult, error)
}

// Options customize a single batch submission.
type Options struct {
	// BatchID identifies the batch for progress events and CancelBatch.
	// Generated when empty.
	BatchID string

	// ConcurrencyOverride replaces the configured worker count for this
	// batch when positive.
	ConcurrencyOverride int

	// OnProgress is invoked after every terminal request outcome with a
	// fresh progress snapshot. May be nil.
	OnProgress func(types.BatchProgress)
}

// Scheduler runs batches of analysis requests through a bounded worker pool
// with strict priority ordering, exponential-backoff retries and cooperative
// cancellation.
type Scheduler struct {
	analyzer Analyzer
	config   config.SchedulerConfig
	backoff  *resilience.Backoff
	logger   *logrus.Entry
	sink     telemetry.Sink

	mu      sync.Mutex
	batches map[string]*batch

	// Lifetime counters across all batches.
	pending         int64
	active          int64
	completed       int64
	failed          int64
	totalProcessing time.Duration
}

// batch holds the per-submission queue and progress state. All fields below
// mu are guarded by it.
type batch struct {
	id         string
	ctx        context.Context
	cancel     context.CancelFunc
	onProgress func(types.BatchProgress)

	mu          sync.Mutex
	cond        *sync.Cond
	queue       requestHeap
	delayed     map[int]*time.Timer
	outstanding int
	cancelled   bool

	total           int
	completed       int
	failed          int
	cancelledCount  int
	responses       map[string]*types.BatchResponse
	order           []string
	totalProcessing time.Duration
}

// New builds a Scheduler from validated configuration.
func New(analyzer Analyzer, cfg config.SchedulerConfig, logger *logging.Logger, sink telemetry.Sink) (*Scheduler, error) {
	if analyzer == nil {
		return nil, errors.NewConfigError("scheduler requires an analyzer")
	}
	if cfg.MaxConcurrency < 1 {
		return nil, errors.NewConfigError("scheduler max concurrency must be at least 1")
	}
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Scheduler{
		analyzer: analyzer,
		config:   cfg,
		backoff: resilience.NewBackoff(resilience.BackoffConfig{
			BaseDelay:  cfg.BaseRetryDelay,
			MaxDelay:   cfg.MaxRetryDelay,
			Multiplier: 2.0,
			Jitter:     false,
		}),
		logger:  logger.WithComponent("scheduler"),
		sink:    sink,
		batches: make(map[string]*batch),
	}, nil
}

// SubmitBatch enqueues the requests and blocks until every request reaches a
// terminal state or is dropped by cancellation. Responses are returned in
// submission order; requests dropped before starting have no response.
func (s *Scheduler) SubmitBatch(ctx context.Context, requests []*types.BatchRequest, opts Options) ([]*types.BatchResponse, error) {
	if len(requests) == 0 {
		return []*types.BatchResponse{}, nil
	}
	if opts.ConcurrencyOverride < 0 {
		return nil, errors.NewConfigError("concurrency override must be positive")
	}

	seen := make(map[string]struct{}, len(requests))
	for _, req := range requests {
		if req == nil || req.ID == "" {
			return nil, errors.NewValidationError("batch request requires an id")
		}
		if _, dup := seen[req.ID]; dup {
			return nil, errors.NewValidationError("duplicate request id in batch: "+req.ID)
		}
		seen[req.ID] = struct{}{}
	}

	batchID := opts.BatchID
	if batchID == "" {
		batchID = uuid.New().String()
	}

	concurrency := s.config.MaxConcurrency
	if opts.ConcurrencyOverride > 0 {
		concurrency = opts.ConcurrencyOverride
	}
	if concurrency > len(requests) {
		concurrency = len(requests)
	}

	bctx, cancel := context.WithCancel(ctx)
	b := &batch{
		id:         batchID,
		ctx:        bctx,
		cancel:     cancel,
		onProgress: opts.OnProgress,
		delayed:    make(map[int]*time.Timer),
		total:      len(requests),
		responses:  make(map[string]*types.BatchResponse, len(requests)),
		order:      make([]string, 0, len(requests)),
	}
	b.cond = sync.NewCond(&b.mu)

	now := time.Now()
	for i, req := range requests {
		cp := *req
		if cp.SubmittedAt.IsZero() {
			cp.SubmittedAt = now
		}
		if cp.MaxRetries == 0 {
			cp.MaxRetries = s.config.DefaultMaxRetries
		}
		b.order = append(b.order, cp.ID)
		b.queue.push(&item{req: &cp, seq: i})
	}
	b.outstanding = len(requests)

	s.mu.Lock()
	s.batches[batchID] = b
	s.pending += int64(len(requests))
	s.mu.Unlock()
	s.recordQueueDepth()

	s.logger.WithFields(map[string]any{
		"batch_id":    batchID,
		"requests":    len(requests),
		"concurrency": concurrency,
	}).Info("Batch submitted")

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(b)
		}()
	}
	wg.Wait()

	s.mu.Lock()
	delete(s.batches, batchID)
	s.mu.Unlock()
	cancel()
	s.recordQueueDepth()

	responses := make([]*types.BatchResponse, 0, len(requests))
	b.mu.Lock()
	for _, id := range b.order {
		if resp, ok := b.responses[id]; ok {
			responses = append(responses, resp)
		}
	}
	completed, failed, dropped := b.completed, b.failed, b.cancelledCount
	b.mu.Unlock()

	s.logger.WithFields(map[string]any{
		"batch_id":  batchID,
		"completed": completed,
		"failed":    failed,
		"dropped":   dropped,
	}).Info("Batch finished")

	return responses, nil
}

// CancelBatch cooperatively cancels an active batch. Queued requests are
// dropped without execution; requests already started are aborted through
// their context. Unknown batch ids are ignored.
func (s *Scheduler) CancelBatch(batchID string) {
	s.mu.Lock()
	b, ok := s.batches[batchID]
	s.mu.Unlock()
	if !ok {
		return
	}

	b.mu.Lock()
	if b.cancelled {
		b.mu.Unlock()
		return
	}
	b.cancelled = true
	for seq, timer := range b.delayed {
		timer.Stop()
		delete(b.delayed, seq)
		s.dropLocked(b)
	}
	dropped := 0
	for b.queue.Len() > 0 {
		b.queue.pop()
		s.dropLocked(b)
		dropped++
	}
	b.cond.Broadcast()
	b.mu.Unlock()

	b.cancel()
	s.notifyProgress(b)

	s.logger.WithFields(map[string]any{
		"batch_id": batchID,
		"dropped":  dropped,
	}).Warn("Batch cancelled")
}

// QueueStatus reports queue depth and lifetime throughput counters.
func (s *Scheduler) QueueStatus() types.QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := types.QueueStatus{
		PendingRequests:   int(s.pending),
		ActiveRequests:    int(s.active),
		CompletedRequests: s.completed,
		FailedRequests:    s.failed,
	}
	if s.completed > 0 {
		status.AverageProcessingTime = s.totalProcessing / time.Duration(s.completed)
	}
	return status
}

func (s *Scheduler) worker(b *batch) {
	for {
		it := s.next(b)
		if it == nil {
			return
		}
		s.process(b, it)
	}
}

// next blocks until a request is ready, all work is done, or the batch is
// cancelled with an empty queue.
func (s *Scheduler) next(b *batch) *item {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.cancelled && b.queue.Len() == 0 {
			return nil
		}
		if it := b.queue.pop(); it != nil {
			return it
		}
		if b.outstanding == 0 {
			b.cond.Broadcast()
			return nil
		}
		b.cond.Wait()
	}
}

func (s *Scheduler) process(b *batch, it *item) {
	s.mu.Lock()
	s.pending--
	s.active++
	s.mu.Unlock()
	s.recordQueueDepth()

	req := it.req
	start := time.Now()
	result, err := s.analyzer.Analyze(b.ctx, &types.AnalysisRequest{
		Content:      req.Content,
		AnalysisType: req.AnalysisType,
		Options:      req.Options,
	})
	duration := time.Since(start)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	if err == nil {
		s.finish(b, req, &types.BatchResponse{
			RequestID:    req.ID,
			Result:       result,
			ProviderUsed: result.Provider,
			Duration:     duration,
		}, outcomeCompleted, duration)
		return
	}

	b.mu.Lock()
	cancelled := b.cancelled
	b.mu.Unlock()

	if cancelled || b.ctx.Err() != nil {
		cancelErr := errors.NewCancellationError(b.id).WithCause(err)
		s.finish(b, req, &types.BatchResponse{
			RequestID:    req.ID,
			Err:          cancelErr,
			ErrorMessage: cancelErr.Error(),
			Duration:     duration,
		}, outcomeCancelled, duration)
		return
	}

	if resilience.IsRetryable(err) && req.RetryCount < req.MaxRetries {
		s.scheduleRetry(b, it, err)
		return
	}

	s.finish(b, req, &types.BatchResponse{
		RequestID:    req.ID,
		Err:          err,
		ErrorMessage: err.Error(),
		Duration:     duration,
	}, outcomeFailed, duration)
}

// scheduleRetry re-enqueues the request after an exponential backoff delay.
// The request stays outstanding while the timer is pending so workers keep
// waiting for it.
func (s *Scheduler) scheduleRetry(b *batch, it *item, cause error) {
	delay := s.backoff.Delay(it.req.RetryCount)
	it.req.RetryCount++

	s.logger.WithError(cause).WithFields(map[string]any{
		"batch_id":   b.id,
		"request_id": it.req.ID,
		"retry":      it.req.RetryCount,
		"delay":      delay.String(),
	}).Warn("Request failed, retrying")
	telemetry.Record(s.sink, telemetry.Event{
		Kind:         telemetry.EventRequestRetried,
		AnalysisType: string(it.req.AnalysisType),
		Error:        cause.Error(),
	})

	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelled {
		s.dropLocked(b)
		b.cond.Broadcast()
		return
	}
	seq := it.seq
	b.delayed[seq] = time.AfterFunc(delay, func() {
		b.mu.Lock()
		if _, pending := b.delayed[seq]; !pending {
			b.mu.Unlock()
			return
		}
		delete(b.delayed, seq)
		if b.cancelled {
			s.dropLocked(b)
			b.cond.Broadcast()
			b.mu.Unlock()
			s.notifyProgress(b)
			return
		}
		b.queue.push(it)
		b.cond.Broadcast()
		b.mu.Unlock()
	})
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeFailed
	outcomeCancelled
)

// finish records a terminal outcome, updates counters and emits a progress
// snapshot.
func (s *Scheduler) finish(b *batch, req *types.BatchRequest, resp *types.BatchResponse, out outcome, duration time.Duration) {
	b.mu.Lock()
	b.responses[req.ID] = resp
	b.outstanding--
	switch out {
	case outcomeCompleted:
		b.completed++
		b.totalProcessing += duration
	case outcomeFailed:
		b.failed++
	case outcomeCancelled:
		b.cancelledCount++
	}
	b.cond.Broadcast()
	b.mu.Unlock()

	s.mu.Lock()
	switch out {
	case outcomeCompleted:
		s.completed++
		s.totalProcessing += duration
	case outcomeFailed:
		s.failed++
	}
	s.mu.Unlock()

	switch out {
	case outcomeCompleted:
		telemetry.Record(s.sink, telemetry.Event{
			Kind:         telemetry.EventRequestComplete,
			AnalysisType: string(req.AnalysisType),
			Duration:     duration,
		})
	case outcomeFailed:
		s.logger.WithError(resp.Err).WithFields(map[string]any{
			"batch_id":   b.id,
			"request_id": req.ID,
		}).Error("Request failed permanently")
		telemetry.Record(s.sink, telemetry.Event{
			Kind:         telemetry.EventRequestFailed,
			AnalysisType: string(req.AnalysisType),
			Error:        resp.ErrorMessage,
		})
	case outcomeCancelled:
		telemetry.Record(s.sink, telemetry.Event{
			Kind:         telemetry.EventRequestDropped,
			AnalysisType: string(req.AnalysisType),
		})
	}

	s.notifyProgress(b)
}

// dropLocked accounts for a queued request removed by cancellation. Dropped
// requests get no response and count as neither completed nor failed.
// Caller holds b.mu.
func (s *Scheduler) dropLocked(b *batch) {
	b.outstanding--
	b.cancelledCount++
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
	telemetry.Record(s.sink, telemetry.Event{Kind: telemetry.EventRequestDropped})
}

func (s *Scheduler) notifyProgress(b *batch) {
	if b.onProgress == nil {
		return
	}
	b.onProgress(s.progress(b))
}

func (s *Scheduler) progress(b *batch) types.BatchProgress {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := types.BatchProgress{
		BatchID:           b.id,
		TotalRequests:     b.total,
		CompletedRequests: b.completed,
		FailedRequests:    b.failed,
		CancelledRequests: b.cancelledCount,
	}
	if b.completed > 0 {
		p.AverageProcessingTime = b.totalProcessing / time.Duration(b.completed)
	}
	return p
}

func (s *Scheduler) recordQueueDepth() {
	s.mu.Lock()
	depth := s.pending
	s.mu.Unlock()
	telemetry.Record(s.sink, telemetry.Event{
		Kind:  telemetry.EventQueueDepth,
		Value: float64(depth),
	})
}
