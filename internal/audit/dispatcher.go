package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit discard instead of block on a full buffer.
	DropIfFull bool
	// FlushTimeout bounds how long Close waits for buffered events. Zero
	// waits for the buffer to empty.
	FlushTimeout time.Duration
}

// Dispatcher forwards audit events to a sink from a single goroutine. Every
// event that does not reach the sink is counted in Dropped.
type Dispatcher struct {
	cfg      Config
	sink     Sink
	events   chan Event
	stop     chan struct{}
	finished chan struct{}
	// sinkCtx is cancelled once the flush deadline passes.
	sinkCtx    context.Context
	cancelSink context.CancelFunc
	dropped    atomic.Uint64
	closed     atomic.Bool
	closeOnce  sync.Once
}

// NewDispatcher starts a dispatcher. It returns nil when cfg is disabled; a
// nil dispatcher accepts and discards every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:        cfg,
		sink:       sink,
		events:     make(chan Event, cfg.BufferSize),
		stop:       make(chan struct{}),
		finished:   make(chan struct{}),
		sinkCtx:    ctx,
		cancelSink: cancel,
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.finished)

	for {
		select {
		case event := <-d.events:
			d.deliver(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// deliver hands event to the sink unless the flush deadline has passed, in
// which case the event is counted instead.
func (d *Dispatcher) deliver(event Event) {
	if d.sinkCtx.Err() != nil {
		d.dropped.Add(1)
		return
	}
	d.sink.Emit(d.sinkCtx, event)
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.events:
			d.deliver(event)
		default:
			return
		}
	}
}

// Emit queues event. With DropIfFull a full buffer drops the event.
// Otherwise Emit waits for room and counts the event as dropped if ctx ends
// or the dispatcher closes first.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if d.closed.Load() {
		d.dropped.Add(1)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
		d.dropped.Add(1)
	}
}

// Close stops intake and flushes the buffer. With a FlushTimeout it returns
// once the deadline passes even if the sink is still busy; the sink's
// context is cancelled and whatever remains queued is counted as dropped.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		defer d.cancelSink()

		if d.cfg.FlushTimeout <= 0 {
			<-d.finished
			return
		}
		timer := time.NewTimer(d.cfg.FlushTimeout)
		defer timer.Stop()
		select {
		case <-d.finished:
		case <-timer.C:
		}
	})
}

// Dropped reports how many events never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
