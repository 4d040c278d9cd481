// internal/audit/emitter.go
package audit

import (
	"context"
	"fmt"

	apperrors "loan-underwriting/internal/common/errors"
	"loan-underwriting/internal/common/logger"
)

// Emitter delivers events to a sink synchronously and logs, rather than
// returns, sink failures.
type Emitter struct {
	sink   Sink
	logger logger.Logger
}

func NewEmitter(sink Sink, log logger.Logger) *Emitter {
	return &Emitter{sink: sink, logger: logger.Component(log, "audit")}
}

func (e *Emitter) Emit(ctx context.Context, event Event) {
	if e == nil || e.sink == nil {
		return
	}
	if err := e.sink.Record(ctx, event); err != nil {
		stdErr := apperrors.NewAuditSinkFailedError(fmt.Sprintf("%T", e.sink), err)
		e.logger.Warn("audit sink failed", map[string]interface{}{
			"error":     stdErr,
			"eventId":   event.ID,
			"eventKind": string(event.Kind),
			"runId":     event.RunID,
			"taskId":    event.TaskID,
		})
	}
}
