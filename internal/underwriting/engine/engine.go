// internal/underwriting/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"loan-underwriting/internal/audit"
	apperrors "loan-underwriting/internal/common/errors"
	"loan-underwriting/internal/common/logger"
	"loan-underwriting/internal/common/metrics"
	"loan-underwriting/internal/common/observability"
	"loan-underwriting/internal/models"
	"loan-underwriting/internal/underwriting/decision"
	"loan-underwriting/internal/underwriting/financial"
	"loan-underwriting/internal/underwriting/scheduler"
	"loan-underwriting/internal/underwriting/taskgraph"
)

// TransactionFetcher looks a transaction up by id. Implementations return a
// TRANSACTION_NOT_FOUND error when the id is unknown.
type TransactionFetcher interface {
	Fetch(ctx context.Context, transactionID string) (models.TransactionProfile, error)
}

type Dependencies struct {
	Fetcher       TransactionFetcher
	Executor      scheduler.TaskExecutor
	Emitter       *audit.Emitter
	Observability *observability.Observability
}

type Engine struct {
	config    scheduler.Config
	deps      Dependencies
	scheduler *scheduler.Scheduler
	logger    logger.Logger
}

func New(config scheduler.Config, deps Dependencies, log logger.Logger) *Engine {
	return &Engine{
		config:    config,
		deps:      deps,
		scheduler: scheduler.New(config, deps.Executor, deps.Emitter, log),
		logger:    logger.Component(log, "engine"),
	}
}

// BuildTaskGraph returns the task graph for the transaction's loan type.
func (e *Engine) BuildTaskGraph(tx models.TransactionProfile) ([]models.UnderwritingTask, error) {
	return taskgraph.Build(tx)
}

// RunWorkflow executes tasks to quiescence and returns the per-task results
// and whether the run was cancelled. A concurrencyLimit or deadline of zero
// keeps the engine's configured value.
func (e *Engine) RunWorkflow(ctx context.Context, tasks []models.UnderwritingTask, tx models.TransactionProfile, concurrencyLimit int, deadline time.Duration) (map[string]models.TaskAutomationResult, bool, error) {
	cfg := e.config
	if concurrencyLimit > 0 {
		cfg.ConcurrencyLimit = concurrencyLimit
	}
	if deadline > 0 {
		cfg.Deadline = deadline
	}
	report, err := e.scheduler.WithConfig(cfg).Run(ctx, tasks, tx)
	if err != nil {
		return nil, false, err
	}
	return report.Results, report.Cancelled, nil
}

// Synthesize produces the decision for a transaction and its results.
func (e *Engine) Synthesize(tx models.TransactionProfile, results map[string]models.TaskAutomationResult) (models.UnderwritingDecision, error) {
	list := make([]models.TaskAutomationResult, 0, len(results))
	for _, r := range results {
		list = append(list, r)
	}
	return decision.Decide(tx, list)
}

// Outcome is the state of one underwriting run.
type Outcome struct {
	Transaction models.TransactionProfile
	Report      *scheduler.Report
	Decision    *models.UnderwritingDecision

	mu sync.Mutex
}

// Option adjusts a single underwriting run.
type Option func(*runOptions)

type runOptions struct {
	completedHumanTasks []string
}

// WithCompletedHumanTasks marks human tasks an external actor has already
// finished. Their dependents proceed and they count as completed work.
func WithCompletedHumanTasks(taskIDs ...string) Option {
	return func(o *runOptions) {
		o.completedHumanTasks = append(o.completedHumanTasks, taskIDs...)
	}
}

// markCompleted sets the listed human tasks to completed. Unknown ids and
// automatable tasks are rejected.
func markCompleted(tasks []models.UnderwritingTask, taskIDs []string) error {
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
	}
	for _, id := range taskIDs {
		i, ok := index[id]
		if !ok {
			return apperrors.NewInvalidInputError("completedHumanTasks", fmt.Sprintf("task %q is not part of this workflow", id))
		}
		if tasks[i].Automatable() {
			return apperrors.NewInvalidInputError("completedHumanTasks", fmt.Sprintf("task %q is automated", id))
		}
		tasks[i].Status = models.TaskStatusCompleted
	}
	return nil
}

// Underwrite fetches a transaction, runs its workflow and decides it. A
// cancelled run returns the partial outcome with a RUN_CANCELLED error.
func (e *Engine) Underwrite(ctx context.Context, transactionID string, opts ...Option) (*Outcome, error) {
	if e.deps.Fetcher == nil {
		return nil, apperrors.NewTransactionLookupFailedError(transactionID, errors.New("no transaction fetcher configured"))
	}
	tx, err := e.deps.Fetcher.Fetch(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return e.UnderwriteTransaction(ctx, tx, opts...)
}

// UnderwriteTransaction is Underwrite for a transaction already in hand.
func (e *Engine) UnderwriteTransaction(ctx context.Context, tx models.TransactionProfile, opts ...Option) (*Outcome, error) {
	start := time.Now()
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	log := e.logger.WithFields(map[string]interface{}{
		"transactionId": tx.ID,
		"loanType":      string(tx.Type),
	})

	enriched, err := financial.WithRatios(tx)
	if err != nil {
		log.Warn("transaction has invalid financial figures", map[string]interface{}{"error": err})
		return nil, err
	}

	tasks, err := e.BuildTaskGraph(enriched)
	if err != nil {
		return nil, err
	}
	if err := markCompleted(tasks, ro.completedHumanTasks); err != nil {
		return nil, err
	}

	report, err := e.scheduler.Run(ctx, tasks, enriched)
	if err != nil {
		e.record(ctx, "invalid", time.Since(start))
		return nil, err
	}

	out := &Outcome{Transaction: enriched, Report: report}
	if report.Cancelled {
		log.Warn("workflow run cancelled", map[string]interface{}{
			"runId":  report.RunID,
			"reason": report.CancelReason,
		})
		e.record(ctx, "cancelled", time.Since(start))
		return out, apperrors.NewRunCancelledError(report.RunID, errors.New(report.CancelReason))
	}

	if err := e.Finalize(ctx, out); err != nil {
		return out, err
	}

	log.Info("underwriting decision produced", map[string]interface{}{
		"runId":          report.RunID,
		"recommendation": string(out.Decision.Recommendation),
		"confidence":     out.Decision.Confidence,
		"completedTasks": out.Decision.CompletedTasks,
	})
	e.record(ctx, string(out.Decision.Recommendation), time.Since(start))
	return out, nil
}

// Finalize synthesizes the decision for a finished run. It refuses cancelled
// runs and runs that already carry a decision.
func (e *Engine) Finalize(ctx context.Context, out *Outcome) error {
	out.mu.Lock()
	defer out.mu.Unlock()

	runID := out.Report.RunID
	if out.Decision != nil {
		return apperrors.NewDecisionAlreadyProducedError(runID)
	}
	if out.Report.Cancelled {
		return apperrors.NewRunCancelledError(runID, errors.New(out.Report.CancelReason))
	}

	d, err := e.Synthesize(out.Transaction, out.Report.Results)
	if err != nil {
		return err
	}
	out.Decision = &d

	metrics.UnderwritingDecisions.WithLabelValues(string(d.Recommendation)).Inc()
	e.deps.Emitter.Emit(context.WithoutCancel(ctx), audit.NewEvent(runID, out.Transaction.ID, audit.EventDecisionProduced, "",
		"underwriting decision produced", map[string]interface{}{
			"recommendation":  string(d.Recommendation),
			"confidence":      d.Confidence,
			"conditions":      d.Conditions,
			"requiredActions": d.RequiredActions,
			"riskFactors":     d.RiskFactors,
			"completedTasks":  d.CompletedTasks,
		}))
	return nil
}

func (e *Engine) record(ctx context.Context, outcome string, d time.Duration) {
	if e.deps.Observability == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	e.deps.Observability.RecordRunProcessed(ctx, outcome)
	e.deps.Observability.RecordRunDuration(ctx, d, outcome)
}
