package copier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/dataset"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/storage"
)

// DefaultWorkers is the number of items copied at once per job
const DefaultWorkers = 2

// Options configures a Manager
type Options struct {
	Workers int
	Metrics *common.Metrics

	// OnProgress receives every change of the aggregate progress
	OnProgress func(Progress)
	// OnHidden is called once all trackers are done and have been cleared
	OnHidden func()
}

// Manager runs dataset copies and aggregates their progress.
// Callbacks run one at a time on a dispatcher goroutine, in the order
// the changes happened.
type Manager struct {
	opts Options

	mu       sync.Mutex
	trackers []tracked
	nextID   int
	queue    []func()
	closed   bool

	notify chan struct{}
	done   chan struct{}
}

// NewManager starts the dispatcher. Close stops it.
func NewManager(opts Options) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Metrics == nil {
		opts.Metrics = common.DefaultMetrics()
	}
	m := &Manager{
		opts:   opts,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go m.dispatch()
	return m
}

// Close delivers the callbacks already queued and stops the dispatcher
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done
		return
	}
	m.closed = true
	m.mu.Unlock()
	m.wake()
	<-m.done
}

func (m *Manager) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Manager) dispatch() {
	defer close(m.done)
	for range m.notify {
		m.mu.Lock()
		batch := m.queue
		m.queue = nil
		closed := m.closed
		m.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if closed {
			return
		}
	}
}

// enqueue must be called with mu held
func (m *Manager) enqueue(fn func()) {
	if m.closed || fn == nil {
		return
	}
	m.queue = append(m.queue, fn)
	m.wake()
}

// enqueueProgress must be called with mu held
func (m *Manager) enqueueProgress() {
	if m.opts.OnProgress == nil {
		return
	}
	p := m.progressLocked()
	m.enqueue(func() { m.opts.OnProgress(p) })
}

func (m *Manager) progressLocked() Progress {
	out := Progress{
		Fraction: fraction(m.trackers),
		Trackers: make([]Tracker, len(m.trackers)),
	}
	for i, t := range m.trackers {
		out.Trackers[i] = t.Tracker
	}
	return out
}

// Start registers a tracker with the given label and length
func (m *Manager) Start(label string, length int) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.trackers = append(m.trackers, tracked{id: m.nextID, Tracker: Tracker{Label: label, Length: max(length, 0)}})
	m.enqueueProgress()
	return &Job{m: m, id: m.nextID}
}

func (m *Manager) update(id int, fn func(*Tracker)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.trackers {
		if m.trackers[i].id == id && !m.trackers[i].Done {
			fn(&m.trackers[i].Tracker)
			m.enqueueProgress()
			return
		}
	}
}

func (m *Manager) finish(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for i := range m.trackers {
		if m.trackers[i].id == id && !m.trackers[i].Done {
			m.trackers[i].Done = true
			found = true
		}
	}
	if !found {
		return
	}
	m.enqueueProgress()

	for _, t := range m.trackers {
		if !t.Done {
			return
		}
	}
	m.trackers = nil
	m.enqueueProgress()
	m.enqueue(m.opts.OnHidden)
}

// Progress returns the current aggregate progress
func (m *Manager) Progress() Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progressLocked()
}

// Fraction returns the summed step over the summed length of the active trackers
func (m *Manager) Fraction() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fraction(m.trackers)
}

// Active returns the number of trackers not yet done
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.trackers {
		if !t.Done {
			n++
		}
	}
	return n
}

// Copy copies the frozen local dataset src below destBaseURI and returns once the
// copy has finished. A destination holding the same dataset is resumed.
func (m *Manager) Copy(ctx context.Context, src dataset.Dataset, destBaseURI string) (*storage.CopyResult, error) {
	local, ok := src.(*dataset.Local)
	if !ok {
		return nil, fmt.Errorf("%w: only local datasets can be copied", common.ErrUnsupportedScheme)
	}
	scheme, _, err := storage.ParseURI(destBaseURI)
	if err != nil {
		return nil, err
	}
	if scheme != storage.SchemeFile {
		return nil, fmt.Errorf("%w: cannot copy to %s", common.ErrUnsupportedScheme, destBaseURI)
	}

	info := local.Info()
	job := m.Start(fmt.Sprintf("%s to %s", info.Name, destBaseURI), 0)
	defer job.Finish()

	metrics := m.opts.Metrics
	metrics.CopyActiveJobs.Inc()
	defer metrics.CopyActiveJobs.Dec()

	slog.Info("Starting copy", "uuid", info.UUID, "source", info.URI, "dest", destBaseURI)
	result, err := storage.Copy(ctx, local.Handle(), destBaseURI, storage.CopyOptions{
		Workers: m.opts.Workers,
		OnStart: func(items int, resume bool) {
			job.SetLength(items)
		},
		OnItem: func(ev storage.CopyEvent) {
			metrics.CopyItemsTotal.Inc()
			metrics.CopyBytesTotal.Add(float64(ev.Bytes))
			if !ev.Resumed {
				metrics.CopyItemDuration.Observe(ev.Duration.Seconds())
			}
			job.Advance(1)
		},
	})
	metrics.CopyJobsTotal.WithLabelValues(outcome(result, err)).Inc()
	if err != nil {
		if !common.IsCancellation(err) {
			slog.Error("Copy failed", "uuid", info.UUID, "dest", destBaseURI, "error", err)
		}
		return nil, err
	}
	return result, nil
}

func outcome(result *storage.CopyResult, err error) string {
	switch {
	case err == nil && result.Resume:
		return "resumed"
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrResourceConflict):
		return "conflict"
	case common.IsCancellation(err):
		return "cancelled"
	default:
		return "error"
	}
}
