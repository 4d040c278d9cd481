// internal/underwriting/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"time"

	"loan-underwriting/internal/audit"
	apperrors "loan-underwriting/internal/common/errors"
	"loan-underwriting/internal/common/logger"
	"loan-underwriting/internal/common/metrics"
	"loan-underwriting/internal/models"
	"loan-underwriting/internal/underwriting/taskgraph"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// TaskExecutor runs a single automatable task. Failures are reported in the
// result, never as a panic or error.
type TaskExecutor interface {
	Execute(ctx context.Context, task models.UnderwritingTask, tx models.TransactionProfile) models.TaskAutomationResult
}

type Scheduler struct {
	config   Config
	executor TaskExecutor
	emitter  *audit.Emitter
	tracer   trace.Tracer
	logger   logger.Logger
}

func New(config Config, executor TaskExecutor, emitter *audit.Emitter, log logger.Logger) *Scheduler {
	return &Scheduler{
		config:   config.normalized(),
		executor: executor,
		emitter:  emitter,
		tracer:   otel.Tracer("loan-underwriting/scheduler"),
		logger:   logger.Component(log, "scheduler"),
	}
}

// WithConfig returns a copy of the scheduler using config.
func (s *Scheduler) WithConfig(config Config) *Scheduler {
	cp := *s
	cp.config = config.normalized()
	return &cp
}

// Run validates the graph, executes it to quiescence and returns the report.
func (s *Scheduler) Run(ctx context.Context, tasks []models.UnderwritingTask, tx models.TransactionProfile) (*Report, error) {
	run, err := s.Start(ctx, tasks, tx)
	if err != nil {
		return nil, err
	}
	return run.Wait(), nil
}

// Start validates the graph and begins execution in the background. A graph
// invariant violation is returned before any task runs.
func (s *Scheduler) Start(ctx context.Context, tasks []models.UnderwritingTask, tx models.TransactionProfile) (*Run, error) {
	order, err := taskgraph.Validate(tasks)
	if err != nil {
		s.logger.Error("refusing to run invalid task graph", map[string]interface{}{
			"transactionId": tx.ID,
			"error":         err,
		})
		return nil, err
	}

	runID := uuid.NewString()
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.config.Deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.config.Deadline)
	}
	runCtx, span := s.tracer.Start(runCtx, "underwriting.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("transaction.id", tx.ID),
		attribute.String("loan.type", string(tx.Type)),
		attribute.Int("tasks", len(tasks)),
	))

	r := &Run{
		id:          runID,
		scheduler:   s,
		tx:          tx,
		state:       newRunState(tasks, order),
		order:       order,
		ctx:         runCtx,
		cancel:      cancel,
		span:        span,
		sem:         semaphore.NewWeighted(int64(s.config.ConcurrencyLimit)),
		completions: make(chan completion, len(tasks)),
		signals:     make(chan []int, len(tasks)+1),
		done:        make(chan struct{}),
		started:     time.Now(),
		logger: s.logger.WithFields(map[string]interface{}{
			"runId":         runID,
			"transactionId": tx.ID,
		}),
	}

	metrics.UnderwritingRunsActive.Inc()
	r.logger.Info("workflow run started", map[string]interface{}{
		"tasks":            len(tasks),
		"concurrencyLimit": s.config.ConcurrencyLimit,
	})

	go r.loop()
	return r, nil
}

type completion struct {
	idx    int
	result models.TaskAutomationResult
}

// Run is a live workflow run.
type Run struct {
	id        string
	scheduler *Scheduler
	tx        models.TransactionProfile
	state     *runState
	order     []string

	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span
	sem    *semaphore.Weighted

	completions chan completion
	signals     chan []int
	done        chan struct{}
	report      *Report
	started     time.Time
	logger      logger.Logger
}

func (r *Run) ID() string { return r.id }

// Done is closed once the report is available.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends.
func (r *Run) Wait() *Report {
	<-r.done
	return r.report
}

// CompleteHumanTask records that a person finished taskID, releasing its
// dependents. It fails with RUN_NOT_ACTIVE once the run has ended.
func (r *Run) CompleteHumanTask(taskID string) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	if r.state.done {
		return apperrors.NewRunNotActiveError(r.id)
	}
	idx, ok := r.state.index[taskID]
	if !ok {
		return apperrors.NewInvalidInputError("taskId", fmt.Sprintf("unknown task %q", taskID))
	}
	ready, err := r.state.apply(transition{
		kind:   transitionExternalComplete,
		idx:    idx,
		result: externalResult(taskID),
	})
	if err != nil {
		return err
	}
	// buffered past the number of possible completions, never blocks
	r.signals <- ready

	r.logger.Info("human task completed", map[string]interface{}{"taskId": taskID, "released": len(ready)})
	return nil
}

func (r *Run) loop() {
	defer close(r.done)
	defer r.cancel()

	queue := r.state.seed()
	stopping := false
	cancelled := r.ctx.Done()

	for {
		for !stopping && len(queue) > 0 {
			if r.ctx.Err() != nil || r.sem.Acquire(r.ctx, 1) != nil {
				stopping = true
				break
			}
			idx := queue[0]
			queue = queue[1:]
			r.dispatch(idx)
		}

		r.state.mu.Lock()
		quiescent := r.state.inFlight == 0 && len(r.signals) == 0 && (stopping || len(queue) == 0)
		if quiescent {
			r.state.done = true
		}
		r.state.mu.Unlock()
		if quiescent {
			break
		}

		select {
		case c := <-r.completions:
			queue = append(queue, r.finish(c)...)
		case ready := <-r.signals:
			queue = append(queue, ready...)
		case <-cancelled:
			stopping = true
			cancelled = nil
			r.logger.Warn("run cancelled, draining in-flight tasks", map[string]interface{}{"reason": r.ctx.Err()})
		}
	}

	report, events := r.buildReport(stopping)
	for _, e := range events {
		r.emit(e)
	}
	r.report = report

	r.logger.Info("workflow run finished", map[string]interface{}{
		"cancelled":  report.Cancelled,
		"completed":  report.CompletedCount(),
		"blocked":    len(report.Blocked),
		"durationMs": report.Duration.Milliseconds(),
	})
	r.span.SetAttributes(
		attribute.Bool("cancelled", r.report.Cancelled),
		attribute.Int("completed", r.report.CompletedCount()),
	)
	r.span.End()
	metrics.UnderwritingRunsActive.Dec()
}

func (r *Run) dispatch(idx int) {
	r.state.mu.Lock()
	_, err := r.state.apply(transition{kind: transitionDispatch, idx: idx})
	task := r.state.nodes[idx].task
	r.state.mu.Unlock()

	if err != nil {
		// already dispatched or completed externally since it was queued
		r.sem.Release(1)
		r.logger.Debug("dispatch skipped", map[string]interface{}{"taskId": task.ID, "error": err})
		return
	}

	r.emit(audit.NewEvent(r.id, r.tx.ID, audit.EventTaskStarted, task.ID,
		"task started", map[string]interface{}{"category": string(task.Category)}))

	go func() {
		res := r.executeWithRetry(task)
		r.sem.Release(1)
		r.completions <- completion{idx: idx, result: res}
	}()
}

func (r *Run) finish(c completion) []int {
	r.state.mu.Lock()
	ready, err := r.state.apply(transition{kind: transitionFinish, idx: c.idx, result: c.result})
	task := r.state.nodes[c.idx].task
	r.state.mu.Unlock()

	if err != nil {
		r.logger.Error("completion rejected", map[string]interface{}{"taskId": task.ID, "error": err})
		return nil
	}

	metrics.UnderwritingTasks.WithLabelValues(task.ID, string(c.result.Status)).Inc()
	metrics.UnderwritingTaskDuration.WithLabelValues(string(task.Category)).Observe(c.result.Duration.Seconds())

	kind := audit.EventTaskCompleted
	switch c.result.Status {
	case models.ResultStatusFailed:
		kind = audit.EventTaskFailed
	case models.ResultStatusRequiresHuman:
		kind = audit.EventTaskRequiresHuman
	}
	r.emit(audit.NewEvent(r.id, r.tx.ID, kind, task.ID, "task "+string(c.result.Status),
		map[string]interface{}{
			"confidence": c.result.Confidence,
			"durationMs": c.result.Duration.Milliseconds(),
			"attempts":   c.result.Attempts,
			"notes":      c.result.Notes,
		}))

	r.logger.Debug("task finished", map[string]interface{}{
		"taskId":   task.ID,
		"status":   string(c.result.Status),
		"released": len(ready),
	})
	return ready
}

// executeWithRetry runs task up to the retry policy's attempt count. Run
// cancellation stops further attempts but never interrupts one in progress.
func (r *Run) executeWithRetry(task models.UnderwritingTask) models.TaskAutomationResult {
	policy := r.scheduler.config.Retry

	var res models.TaskAutomationResult
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		res = r.executeOnce(task, attempt)
		res.Attempts = attempt
		if res.Status != models.ResultStatusFailed || attempt == policy.MaxAttempts || r.ctx.Err() != nil {
			break
		}
		if policy.Backoff > 0 {
			select {
			case <-time.After(policy.Backoff):
			case <-r.ctx.Done():
				return res
			}
		}
	}
	return res
}

func (r *Run) executeOnce(task models.UnderwritingTask, attempt int) models.TaskAutomationResult {
	timeout := r.scheduler.config.TaskTimeout

	ctx, span := r.scheduler.tracer.Start(context.WithoutCancel(r.ctx), "underwriting.task", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.category", string(task.Category)),
		attribute.Int("attempt", attempt),
	))
	defer span.End()

	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	out := make(chan models.TaskAutomationResult, 1)
	go func() {
		out <- r.scheduler.executor.Execute(ctx, task, r.tx)
	}()

	var res models.TaskAutomationResult
	select {
	case res = <-out:
	case <-ctx.Done():
		res = models.TaskAutomationResult{
			TaskID:   task.ID,
			Status:   models.ResultStatusFailed,
			Duration: timeout,
			Notes:    apperrors.NewTaskTimeoutError(task.ID, timeout).Error(),
		}
	}
	res.TaskID = task.ID

	span.SetAttributes(attribute.String("task.status", string(res.Status)))
	if res.Status == models.ResultStatusFailed {
		span.SetStatus(codes.Error, res.Notes)
	}
	return res
}

func (r *Run) buildReport(stopped bool) (*Report, []audit.Event) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	report := &Report{
		RunID:     r.id,
		Order:     r.order,
		Results:   make(map[string]models.TaskAutomationResult, len(r.state.nodes)),
		Statuses:  make(map[string]models.TaskStatus, len(r.state.nodes)),
		Cancelled: stopped && r.ctx.Err() != nil,
		Duration:  time.Since(r.started),
	}
	if report.Cancelled {
		report.CancelReason = context.Cause(r.ctx).Error()
	}

	var events []audit.Event
	for _, i := range r.state.order {
		n := &r.state.nodes[i]
		report.Statuses[n.task.ID] = n.status
		if n.status == models.TaskStatusBlocked {
			report.Blocked = append(report.Blocked, n.task.ID)
		}

		if n.result != nil {
			report.Results[n.task.ID] = *n.result
			continue
		}
		if report.Cancelled {
			continue
		}

		reason := r.state.humanReason(i)
		report.Results[n.task.ID] = models.TaskAutomationResult{
			TaskID: n.task.ID,
			Status: models.ResultStatusRequiresHuman,
			Notes:  reason,
		}
		events = append(events, audit.NewEvent(r.id, r.tx.ID, audit.EventTaskRequiresHuman, n.task.ID,
			"task requires human", map[string]interface{}{"reason": reason}))
	}

	if report.Cancelled {
		events = append(events, audit.NewEvent(r.id, r.tx.ID, audit.EventRunCancelled, "",
			"run cancelled", map[string]interface{}{
				"reason":   report.CancelReason,
				"terminal": len(report.Results),
			}))
	}
	return report, events
}

// emit delivers an event even after the run context is cancelled, so the
// drain phase is still audited.
func (r *Run) emit(event audit.Event) {
	r.scheduler.emitter.Emit(context.WithoutCancel(r.ctx), event)
}
