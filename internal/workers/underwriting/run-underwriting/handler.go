// internal/workers/underwriting/run-underwriting/handler.go
package rununderwriting

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"loan-underwriting/internal/common/camunda"
	apperrors "loan-underwriting/internal/common/errors"
	"loan-underwriting/internal/common/logger"
	"loan-underwriting/internal/common/metrics"
	"loan-underwriting/internal/common/validation"
	"loan-underwriting/internal/models"
	"loan-underwriting/internal/underwriting/engine"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "underwrite-loan"
)

type Underwriter interface {
	Underwrite(ctx context.Context, transactionID string, opts ...engine.Option) (*engine.Outcome, error)
	UnderwriteTransaction(ctx context.Context, tx models.TransactionProfile, opts ...engine.Option) (*engine.Outcome, error)
}

type TransactionSaver interface {
	Save(ctx context.Context, tx models.TransactionProfile) error
}

type Handler struct {
	config       *Config
	underwriter  Underwriter
	saver        TransactionSaver
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

// NewHandler builds the job handler. saver may be nil, in which case inline
// transactions are underwritten without being stored.
func NewHandler(config *Config, underwriter Underwriter, saver TransactionSaver, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		underwriter:  underwriter,
		saver:        saver,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return h.failJob(ctx, client, job, apperrors.NewPayloadInvalidError(fmt.Sprintf("parse input: %v", err)))
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		return h.failJob(ctx, client, job, err)
	}

	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	return h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		outcome *engine.Outcome
		err     error
		opts    []engine.Option
	)
	if len(input.CompletedHumanTasks) > 0 {
		opts = append(opts, engine.WithCompletedHumanTasks(input.CompletedHumanTasks...))
	}
	switch {
	case len(input.Transaction) > 0 && string(input.Transaction) != "null":
		tx, decodeErr := validation.DecodeTransaction(input.Transaction)
		if decodeErr != nil {
			return nil, decodeErr
		}
		if h.config.PersistInline && h.saver != nil {
			if saveErr := h.saver.Save(ctx, tx); saveErr != nil {
				return nil, apperrors.NewTransactionLookupFailedError(tx.ID, saveErr)
			}
		}
		outcome, err = h.underwriter.UnderwriteTransaction(ctx, tx, opts...)
	case input.TransactionID != "":
		outcome, err = h.underwriter.Underwrite(ctx, input.TransactionID, opts...)
	default:
		return nil, apperrors.NewPayloadInvalidError("either transactionId or transaction is required")
	}
	if err != nil {
		return nil, err
	}

	d := outcome.Decision
	output := &Output{
		TransactionID:  outcome.Transaction.ID,
		RunID:          outcome.Report.RunID,
		Recommendation: d.Recommendation,
		Confidence:     d.Confidence,
		Decision:       d,
		BlockedTasks:   outcome.Report.Blocked,
	}
	for id, res := range outcome.Report.Results {
		if res.Status == models.ResultStatusRequiresHuman {
			output.HumanTasks = append(output.HumanTasks, id)
		}
	}
	sort.Strings(output.HumanTasks)

	h.logger.Info("loan underwritten", map[string]interface{}{
		"transactionId":  output.TransactionID,
		"runId":          output.RunID,
		"recommendation": string(output.Recommendation),
		"humanTasks":     len(output.HumanTasks),
	})
	return output, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return err
	}
	err = camunda.Retry(ctx, h.config.CompleteRetry, "complete-job", func(ctx context.Context) error {
		_, sendErr := cmd.Send(ctx)
		return sendErr
	})
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return err
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
	return nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) error {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(context.WithoutCancel(ctx), client, job, stdErr)
	return nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
