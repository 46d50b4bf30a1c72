package authclient

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// sinkEmitTimeout bounds one sink delivery so a stuck sink cannot wedge
// the dispatcher goroutine or Close.
const sinkEmitTimeout = time.Second

// eventDispatcher delivers events to the sink asynchronously so a slow sink
// never stalls a session transition. Events are dropped, and counted, when
// the buffer is full or the sink does not accept within the delivery window.
type eventDispatcher struct {
	sink      Sink
	ch        chan Event
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newEventDispatcher(cfg EventConfig, sink Sink) *eventDispatcher {
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
	d := &eventDispatcher{
		sink:   sink,
		ch:     make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *eventDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(d.ctx, event)
		case <-d.done:
			// Drain is best effort: buffered events get a fresh window each
			// so a closing session still flushes to a responsive sink.
			for {
				select {
				case event := <-d.ch:
					d.deliver(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (d *eventDispatcher) deliver(parent context.Context, event Event) {
	ctx, cancel := context.WithTimeout(parent, sinkEmitTimeout)
	d.sink.Emit(ctx, event)
	if ctx.Err() != nil {
		d.dropped.Add(1)
	}
	cancel()
}

func (d *eventDispatcher) emit(event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case d.ch <- event:
	default:
		d.dropped.Add(1)
	}
}

func (d *eventDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *eventDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.cancel()
		close(d.done)
		d.wg.Wait()
	})
}
