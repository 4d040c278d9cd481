// internal/audit/log_sink.go
package audit

import (
	"context"

	"loan-underwriting/internal/common/logger"
)

// LogSink writes events to the structured logger.
type LogSink struct {
	logger logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: logger.Component(log, "audit-log")}
}

func (s *LogSink) Record(_ context.Context, event Event) error {
	fields := map[string]interface{}{
		"eventId":       event.ID,
		"runId":         event.RunID,
		"transactionId": event.TransactionID,
		"kind":          string(event.Kind),
		"at":            event.At,
	}
	if event.TaskID != "" {
		fields["taskId"] = event.TaskID
	}
	if len(event.Data) > 0 {
		fields["data"] = event.Data
	}
	s.logger.Info(event.Message, fields)
	return nil
}
