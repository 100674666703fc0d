package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueDepth   = 1024
	defaultDrainTimeout = 5 * time.Second
)

// AsyncOptions tunes the async pipeline. Zero values select the
// defaults above.
type AsyncOptions struct {
	BufferSize   int
	FlushTimeout time.Duration
	OnDrop       func(total uint64)
}

// AsyncHandler decouples remote log shipping from the calling
// goroutine: Handle enqueues and returns immediately, and a single
// background goroutine delivers records to the wrapped handler. When
// the queue is full, records are dropped and counted rather than
// blocking a request or pipeline goroutine on a slow log endpoint.
//
// Handlers derived via WithAttrs/WithGroup share the owner's queue;
// only the owner's Shutdown drains it.
type AsyncHandler struct {
	inner slog.Handler
	queue chan queuedRecord
	owner bool

	drainTimeout time.Duration
	closed       *atomic.Bool
	done         *sync.WaitGroup
	dropped      *atomic.Uint64
	onDrop       func(total uint64)
}

type queuedRecord struct {
	ctx    context.Context
	record slog.Record
	target slog.Handler
}

// NewAsyncHandler starts the delivery goroutine and returns the owning
// handler.
func NewAsyncHandler(inner slog.Handler, opts AsyncOptions) *AsyncHandler {
	depth := opts.BufferSize
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	timeout := opts.FlushTimeout
	if timeout <= 0 {
		timeout = defaultDrainTimeout
	}

	h := &AsyncHandler{
		inner:        inner,
		queue:        make(chan queuedRecord, depth),
		owner:        true,
		drainTimeout: timeout,
		closed:       &atomic.Bool{},
		done:         &sync.WaitGroup{},
		dropped:      &atomic.Uint64{},
		onDrop:       opts.OnDrop,
	}

	h.done.Add(1)
	go func() {
		defer h.done.Done()
		for q := range h.queue {
			_ = q.target.Handle(q.ctx, q.record)
		}
	}()

	return h
}

// Enabled delegates to the wrapped handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues a clone of r for background delivery. It never
// blocks: with the queue full the record is dropped and the drop
// counter bumped.
func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.inner.Enabled(ctx, r.Level) {
		return nil
	}
	if h.closed.Load() {
		return nil
	}
	select {
	case h.queue <- queuedRecord{ctx: ctx, record: r.Clone(), target: h.inner}:
	default:
		total := h.dropped.Add(1)
		if h.onDrop != nil {
			h.onDrop(total)
		}
	}
	return nil
}

// WithAttrs returns a derived handler sharing this handler's queue.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := *h
	derived.inner = h.inner.WithAttrs(attrs)
	derived.owner = false
	return &derived
}

// WithGroup returns a derived handler sharing this handler's queue.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	derived := *h
	derived.inner = h.inner.WithGroup(name)
	derived.owner = false
	return &derived
}

// Shutdown stops intake and waits for queued records to deliver, up to
// ctx's deadline or the configured drain timeout, whichever is sooner.
// Derived handlers are no-ops; only the owner closes the queue.
func (h *AsyncHandler) Shutdown(ctx context.Context) error {
	if h == nil || !h.owner {
		return nil
	}
	if h.closed.Swap(true) {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.drainTimeout)
		defer cancel()
	}

	close(h.queue)
	drained := make(chan struct{})
	go func() {
		h.done.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DroppedCount reports how many records were discarded on a full queue.
func (h *AsyncHandler) DroppedCount() uint64 {
	if h == nil {
		return 0
	}
	return h.dropped.Load()
}
