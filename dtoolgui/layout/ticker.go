package layout

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval is the stepping period of a Ticker
const DefaultTickInterval = 10 * time.Millisecond

// Ticker advances an engine by one iteration per tick and reports each step,
// typically to trigger a redraw.
type Ticker struct {
	engine   *Engine
	interval time.Duration
	onStep   func(*Engine)

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewTicker creates a stopped ticker. interval <= 0 selects DefaultTickInterval; onStep may be nil.
func NewTicker(engine *Engine, interval time.Duration, onStep func(*Engine)) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{
		engine:   engine,
		interval: interval,
		onStep:   onStep,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the stepping goroutine. It ends on Stop or when ctx is done.
func (t *Ticker) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		go t.loop(ctx)
	})
}

func (t *Ticker) loop(ctx context.Context) {
	defer close(t.done)
	tick := time.NewTicker(t.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-tick.C:
			t.engine.Iterate()
			if t.onStep != nil {
				t.onStep(t.engine)
			}
		}
	}
}

// Stop ends stepping and waits for the goroutine to exit. Safe to call more than once
// and on a ticker that never started.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	// a ticker that never started has no goroutine to wait for
	t.startOnce.Do(func() { close(t.done) })
	<-t.done
}

// Done is closed when the stepping goroutine has exited
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}
