// internal/audit/event.go
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventTaskStarted       EventKind = "task_started"
	EventTaskCompleted     EventKind = "task_completed"
	EventTaskFailed        EventKind = "task_failed"
	EventTaskRequiresHuman EventKind = "task_requires_human"
	EventRunCancelled      EventKind = "run_cancelled"
	EventDecisionProduced  EventKind = "decision_produced"
)

// Event is one structured record of what happened during a workflow run.
type Event struct {
	ID            string                 `json:"id"`
	RunID         string                 `json:"runId"`
	TransactionID string                 `json:"transactionId"`
	Kind          EventKind              `json:"kind"`
	TaskID        string                 `json:"taskId,omitempty"`
	Message       string                 `json:"message"`
	Data          map[string]interface{} `json:"data,omitempty"`
	At            time.Time              `json:"at"`
}

func NewEvent(runID, transactionID string, kind EventKind, taskID, message string, data map[string]interface{}) Event {
	return Event{
		ID:            uuid.NewString(),
		RunID:         runID,
		TransactionID: transactionID,
		Kind:          kind,
		TaskID:        taskID,
		Message:       message,
		Data:          data,
		At:            time.Now().UTC(),
	}
}

// Sink accepts audit events. Callers treat a returned error as advisory: the
// run continues regardless.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Record(ctx context.Context, event Event) error {
	return f(ctx, event)
}
