// internal/audit/postgres_sink.go
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const insertEventSQL = `INSERT INTO underwriting_audit_events
	(id, run_id, transaction_id, kind, task_id, message, data, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Execer is satisfied by database.PostgresClient.
type Execer interface {
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresSink appends events to underwriting_audit_events.
type PostgresSink struct {
	db Execer
}

func NewPostgresSink(db Execer) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Record(ctx context.Context, event Event) error {
	var data []byte
	if len(event.Data) > 0 {
		var err error
		if data, err = json.Marshal(event.Data); err != nil {
			return fmt.Errorf("encode event data: %w", err)
		}
	}

	var taskID sql.NullString
	if event.TaskID != "" {
		taskID = sql.NullString{String: event.TaskID, Valid: true}
	}

	_, err := s.db.Exec(ctx, insertEventSQL,
		event.ID,
		event.RunID,
		event.TransactionID,
		string(event.Kind),
		taskID,
		event.Message,
		data,
		event.At,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
