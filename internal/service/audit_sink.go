package service

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/CodeAssist/internal/port/audit"
)

// MultiSink writes every record to all sinks concurrently. A failing sink
// does not stop the others; their errors are joined.
type MultiSink struct {
	sinks []audit.Sink
}

var _ audit.Sink = (*MultiSink)(nil)

// NewMultiSink drops nil entries.
func NewMultiSink(sinks ...audit.Sink) *MultiSink {
	ms := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			ms.sinks = append(ms.sinks, s)
		}
	}
	return ms
}

// Len returns the number of sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

// Write fans rec out to every sink and waits for all of them.
func (m *MultiSink) Write(ctx context.Context, rec audit.Record) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, s := range m.sinks {
		g.Go(func() error {
			if err := s.Write(ctx, rec); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
