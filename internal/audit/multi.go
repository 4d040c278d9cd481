// internal/audit/multi.go
package audit

import (
	"context"
	"errors"
	"fmt"
)

// MultiSink fans each event out to every sink. One failing sink does not
// stop delivery to the rest.
type MultiSink struct {
	sinks []Sink
	names []string
}

func NewMultiSink() *MultiSink {
	return &MultiSink{}
}

// Add registers a sink under a name used in error messages.
func (m *MultiSink) Add(name string, sink Sink) *MultiSink {
	m.sinks = append(m.sinks, sink)
	m.names = append(m.names, name)
	return m
}

func (m *MultiSink) Len() int {
	return len(m.sinks)
}

func (m *MultiSink) Record(ctx context.Context, event Event) error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Record(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.names[i], err))
		}
	}
	return errors.Join(errs...)
}
