// internal/underwriting/executor/executor.go
package executor

import (
	"context"
	"errors"
	"time"

	"loan-underwriting/internal/common/config"
	apperrors "loan-underwriting/internal/common/errors"
	"loan-underwriting/internal/common/logger"
	"loan-underwriting/internal/models"
)

// GenericConfidence is reported for automatable tasks without a dedicated analysis.
const GenericConfidence = 0.8

// DefaultConfidence holds the per-category confidence reported on a completed task.
var DefaultConfidence = map[models.TaskCategory]float64{
	models.TaskCategoryDocumentation: 0.95,
	models.TaskCategoryVerification:  0.90,
	models.TaskCategoryAnalysis:      0.88,
	models.TaskCategoryCompliance:    0.92,
	models.TaskCategoryApproval:      0.85,
}

type Config struct {
	// Confidence overrides DefaultConfidence per category.
	Confidence map[models.TaskCategory]float64
	// Latency is slept before each analysis to mimic a remote call.
	Latency time.Duration
}

func DefaultConfig() *Config {
	return &Config{Confidence: DefaultConfidence}
}

// ConfigFrom maps the underwriting section of the application config.
// Confidence keys are task category names; unknown categories are ignored.
func ConfigFrom(cfg config.UnderwritingConfig) *Config {
	out := &Config{
		Confidence: make(map[models.TaskCategory]float64, len(DefaultConfidence)),
		Latency:    config.GetDuration(cfg.SimulatedLatency),
	}
	for category, v := range DefaultConfidence {
		out.Confidence[category] = v
	}
	for name, v := range cfg.Confidence {
		category := models.TaskCategory(name)
		if _, known := DefaultConfidence[category]; known && v >= 0 && v <= 1 {
			out.Confidence[category] = v
		}
	}
	return out
}

// Ports groups the external services analyses call out to. Nil members are
// replaced with the simulated implementations.
type Ports struct {
	Credit     CreditBureau
	Compliance ComplianceScreen
	Collateral CollateralService
}

// Executor runs one automatable task against a transaction.
type Executor struct {
	config   *Config
	ports    Ports
	analyses map[string]analysis
	logger   logger.Logger
}

// analysis returns the result payload for a task. A *reviewError asks for a
// human instead of failing the task.
type analysis func(ctx context.Context, tx models.TransactionProfile) (map[string]interface{}, error)

type reviewError struct {
	reason string
}

func (e *reviewError) Error() string { return e.reason }

func needsReview(reason string) error {
	return &reviewError{reason: reason}
}

func New(config *Config, ports Ports, log logger.Logger) *Executor {
	if config == nil {
		config = DefaultConfig()
	}
	if ports.Credit == nil {
		ports.Credit = SimulatedCreditBureau{}
	}
	if ports.Compliance == nil {
		ports.Compliance = SimulatedComplianceScreen{}
	}
	if ports.Collateral == nil {
		ports.Collateral = SimulatedCollateralService{}
	}

	e := &Executor{
		config: config,
		ports:  ports,
		logger: logger.Component(log, "executor"),
	}
	e.analyses = e.registry()
	return e
}

// Execute never returns an error: failures are reported through the result status.
func (e *Executor) Execute(ctx context.Context, task models.UnderwritingTask, tx models.TransactionProfile) models.TaskAutomationResult {
	start := time.Now()
	result := models.TaskAutomationResult{TaskID: task.ID}

	if !task.Automatable() {
		result.Status = models.ResultStatusRequiresHuman
		result.Notes = "task is assigned to a human reviewer"
		return result
	}

	if err := e.simulateLatency(ctx); err != nil {
		return e.failed(result, start, err)
	}

	run, known := e.analyses[task.ID]
	if !known {
		result.Status = models.ResultStatusCompleted
		result.Result = map[string]interface{}{"processed": true, "taskId": task.ID}
		result.Confidence = GenericConfidence
		result.Notes = "processed"
		result.Duration = time.Since(start)
		return result
	}

	payload, err := run(ctx, tx)
	result.Result = payload
	result.Duration = time.Since(start)

	var review *reviewError
	switch {
	case errors.As(err, &review):
		result.Status = models.ResultStatusRequiresHuman
		result.Notes = review.reason
	case err != nil:
		return e.failed(result, start, err)
	default:
		result.Status = models.ResultStatusCompleted
		result.Confidence = e.confidence(task.Category)
	}

	e.logger.Debug("task executed", map[string]interface{}{
		"taskId":     task.ID,
		"status":     string(result.Status),
		"confidence": result.Confidence,
		"durationMs": result.Duration.Milliseconds(),
	})
	return result
}

func (e *Executor) failed(result models.TaskAutomationResult, start time.Time, err error) models.TaskAutomationResult {
	result.Status = models.ResultStatusFailed
	result.Confidence = 0
	result.Notes = err.Error()
	result.Duration = time.Since(start)

	e.logger.Warn("task failed", map[string]interface{}{
		"taskId": result.TaskID,
		"error":  apperrors.NewTaskExecutionFailureError(result.TaskID, err),
	})
	return result
}

func (e *Executor) confidence(category models.TaskCategory) float64 {
	if c, ok := e.config.Confidence[category]; ok {
		return c
	}
	if c, ok := DefaultConfidence[category]; ok {
		return c
	}
	return GenericConfidence
}

func (e *Executor) simulateLatency(ctx context.Context) error {
	if e.config.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.config.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
