package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultPollInterval = 2 * time.Second

// Listener receives progress events. Listeners are invoked synchronously, in
// registration order, from the monitor's polling goroutine. A listener may
// call back into the monitor (Start, Stop, RemoveListener); a Stop or Start
// issued during delivery returns immediately, and listeners after the caller
// are skipped for that delivery unless the event is terminal.
type Listener func(ProgressEvent)

// ListenerHandle identifies a registered listener for later removal.
type ListenerHandle int

type listenerEntry struct {
	handle ListenerHandle
	fn     Listener
}

// Monitor polls a single job through a StatusGateway and fans each snapshot
// out to listeners. At most one job is watched at a time; starting a new
// watch supersedes the previous one, which emits nothing further.
type Monitor struct {
	gateway  StatusGateway
	interval time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	jobID       uuid.UUID
	watching    bool
	cancelLoop  context.CancelFunc
	loopDone    chan struct{}
	last        *ProgressEvent
	listeners   []listenerEntry
	nextHandle  ListenerHandle
	dispatching int
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithPollInterval overrides the default 2s polling interval.
func WithPollInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.interval = d }
}

// WithMonitorLogger sets the logger used for swallowed fetch errors.
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = logger }
}

// NewMonitor builds a monitor over the given gateway.
func NewMonitor(gateway StatusGateway, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		gateway:  gateway,
		interval: defaultPollInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddListener registers fn and returns a handle for removal. Registration
// order is delivery order.
func (m *Monitor) AddListener(fn Listener) ListenerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextHandle++
	h := m.nextHandle
	m.listeners = append(m.listeners, listenerEntry{handle: h, fn: fn})
	return h
}

// RemoveListener deregisters the listener for h. Unknown or already-removed
// handles are a no-op.
func (m *Monitor) RemoveListener(h ListenerHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, entry := range m.listeners {
		if entry.handle == h {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// Start begins watching jobID, superseding any previous watch. The previous
// watch's polling goroutine is cancelled and emits no further events. The
// first fetch happens immediately, then every interval.
func (m *Monitor) Start(jobID uuid.UUID) {
	m.stop(true)

	m.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.jobID = jobID
	m.watching = true
	m.cancelLoop = cancel
	m.loopDone = done
	m.last = nil
	m.mu.Unlock()

	go m.loop(ctx, jobID, done)
}

// Stop cancels the current watch, if any, and clears the last snapshot.
// Safe to call when nothing is being watched.
func (m *Monitor) Stop() {
	m.stop(true)
	m.mu.Lock()
	m.last = nil
	m.mu.Unlock()
}

// stop cancels the active polling goroutine and, when wait is set, blocks
// until it has exited so a superseded loop cannot emit after Start returns.
// While an event is being delivered the wait is skipped: the caller may be a
// listener running on the polling goroutine itself, and waiting for that
// goroutine would never return. Remaining listeners in the delivery see the
// cleared watch state and are skipped instead.
func (m *Monitor) stop(wait bool) {
	m.mu.Lock()
	cancel := m.cancelLoop
	done := m.loopDone
	delivering := m.dispatching > 0
	m.cancelLoop = nil
	m.loopDone = nil
	m.watching = false
	m.jobID = uuid.Nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wait && !delivering && done != nil {
		<-done
	}
}

// Watching reports the job currently being watched, if any.
func (m *Monitor) Watching() (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobID, m.watching
}

// Progress returns the most recent event, if one has been received. The
// snapshot of a job that ended on its own is retained until the next Start
// or an explicit Stop.
func (m *Monitor) Progress() (ProgressEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return ProgressEvent{}, false
	}
	return *m.last, true
}

func (m *Monitor) loop(ctx context.Context, jobID uuid.UUID, done chan struct{}) {
	defer close(done)

	if terminal := m.poll(ctx, jobID, done); terminal {
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if terminal := m.poll(ctx, jobID, done); terminal {
				return
			}
		}
	}
}

// poll fetches once, records and fans out the event, and reports whether the
// job reached a terminal state. Fetch errors are logged and swallowed; the
// next tick retries. A terminal event is the watch's final act: the watch
// state is cleared before fan-out (so listeners may call Start or Stop),
// the event itself stays available via Progress, and no further fetches
// happen for this job.
func (m *Monitor) poll(ctx context.Context, jobID uuid.UUID, done chan struct{}) bool {
	result, err := m.gateway.Job(ctx, jobID)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("job poll failed", "job_id", jobID, "error", err)
		}
		return false
	}

	ev := eventFromPoll(result)

	m.mu.Lock()
	if m.jobID != jobID || !m.watching || m.loopDone != done {
		m.mu.Unlock()
		return true
	}
	m.last = &ev
	if ev.Finished {
		if m.cancelLoop != nil {
			m.cancelLoop()
		}
		m.cancelLoop = nil
		m.loopDone = nil
		m.watching = false
		m.jobID = uuid.Nil
	}
	entries := make([]listenerEntry, len(m.listeners))
	copy(entries, m.listeners)
	m.dispatching++
	m.mu.Unlock()

	for _, entry := range entries {
		// A listener may have stopped or restarted the monitor; terminal
		// events still reach everyone, a superseded watch goes quiet.
		if !ev.Finished && !m.active(jobID, done) {
			break
		}
		entry.fn(ev)
	}

	m.mu.Lock()
	m.dispatching--
	m.mu.Unlock()
	return ev.Finished
}

// active reports whether the watch identified by jobID and its loop-exit
// channel is still the current one.
func (m *Monitor) active(jobID uuid.UUID, done chan struct{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watching && m.jobID == jobID && m.loopDone == done
}
