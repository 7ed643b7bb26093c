package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Flusher drains buffered log records. Dropped reports how many records were
// discarded because the buffer was full.
type Flusher interface {
	Flush(ctx context.Context) error
	Dropped() int64
}

// syncFlusher is the Flusher of an unbuffered logger.
type syncFlusher struct{}

func (syncFlusher) Flush(context.Context) error { return nil }
func (syncFlusher) Dropped() int64              { return 0 }

// asyncState is shared by an AsyncHandler and every handler derived from it
// through WithAttrs or WithGroup.
type asyncState struct {
	ch chan asyncRecord
	wg sync.WaitGroup

	mu     sync.RWMutex // guards closed against sends on a closed channel
	closed bool
	once   sync.Once

	dropped  atomic.Int64
	reported atomic.Int64
	overflow slog.Handler // receives the "records dropped" notice
}

type asyncRecord struct {
	handler slog.Handler
	rec     slog.Record
}

// AsyncHandler hands records to a fixed set of workers through a bounded
// buffer. A full buffer drops the record instead of blocking the request or
// task that logged it; the next worker to catch up writes one warning with the
// number of records lost. After Flush, records are written synchronously.
type AsyncHandler struct {
	inner slog.Handler
	st    *asyncState
}

var _ Flusher = (*AsyncHandler)(nil)

// NewAsyncHandler starts workers goroutines draining a buffer of bufSize records.
func NewAsyncHandler(inner slog.Handler, bufSize, workers int) *AsyncHandler {
	st := &asyncState{
		ch:       make(chan asyncRecord, bufSize),
		overflow: inner,
	}
	for range max(workers, 1) {
		st.wg.Add(1)
		go st.work()
	}
	return &AsyncHandler{inner: inner, st: st}
}

func (s *asyncState) work() {
	defer s.wg.Done()
	for r := range s.ch {
		_ = r.handler.Handle(context.Background(), r.rec)
		s.reportDrops()
	}
	s.reportDrops()
}

// reportDrops writes a single warning covering records dropped since the
// last report.
func (s *asyncState) reportDrops() {
	total := s.dropped.Load()
	prev := s.reported.Load()
	if total == prev || !s.reported.CompareAndSwap(prev, total) {
		return
	}
	rec := slog.NewRecord(time.Now(), slog.LevelWarn, "log buffer full, records dropped", 0)
	rec.AddAttrs(slog.Int64("dropped", total-prev))
	_ = s.overflow.Handle(context.Background(), rec)
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues rec, or drops it when the buffer is full.
func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	h.st.mu.RLock()
	defer h.st.mu.RUnlock()

	if h.st.closed {
		return h.inner.Handle(ctx, rec)
	}
	select {
	case h.st.ch <- asyncRecord{handler: h.inner, rec: rec.Clone()}:
	default:
		h.st.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler on the same buffer with attrs added.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), st: h.st}
}

// WithGroup returns a handler on the same buffer with the group opened.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), st: h.st}
}

// Dropped returns the number of records lost to a full buffer.
func (h *AsyncHandler) Dropped() int64 {
	return h.st.dropped.Load()
}

// Flush stops buffering and waits for queued records to be written, or for
// ctx to end. It is safe to call more than once.
func (h *AsyncHandler) Flush(ctx context.Context) error {
	h.st.once.Do(func() {
		h.st.mu.Lock()
		h.st.closed = true
		close(h.st.ch)
		h.st.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		h.st.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush logs (%d pending): %w", len(h.st.ch), ctx.Err())
	}
}
