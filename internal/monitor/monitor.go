// Package monitor watches the panel's current folder for outside changes
// and triggers a refresh through the location manager. Local folders are
// watched with fsnotify; a periodic check on the shared executor turns the
// accumulated change signal into at most one refresh per tick, and nothing
// fires while a folder change is already in flight.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dualpane/navigator/internal/constants"
	"github.com/dualpane/navigator/internal/executor"
	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/logging"
	"github.com/dualpane/navigator/internal/nav"
)

// Refresher is the slice of the location manager the monitor drives.
type Refresher interface {
	TryRefreshCurrentFolder(fileToSelect string) *nav.Task
	IsFolderChanging() bool
	LastFolderChangeTime() time.Time
}

// Monitor watches one panel's current folder.
type Monitor struct {
	refresher Refresher
	exec      *executor.Executor
	logger    *logging.Logger

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	watched   string // currently watched local path, "" when none
	dirty     bool
	dirtyAt   time.Time
	pollTask  *executor.Handle
	closeOnce sync.Once
	done      chan struct{}
}

// New creates a monitor. The fsnotify watcher is best effort: when the
// platform refuses one, the monitor still runs but only reacts to explicit
// MarkDirty calls.
func New(refresher Refresher, exec *executor.Executor, logger *logging.Logger) *Monitor {
	m := &Monitor{
		refresher: refresher,
		exec:      exec,
		logger:    logger,
		done:      make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn().Err(err).Msg("Folder watcher unavailable, relying on explicit refresh")
		return m
	}
	m.watcher = watcher
	go m.consume()
	return m
}

// Start schedules the periodic check. interval <= 0 uses the default; the
// minimum is clamped so a misconfigured preference cannot spin the pool.
func (m *Monitor) Start(interval time.Duration) {
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}
	if interval < constants.MinPollInterval {
		interval = constants.MinPollInterval
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pollTask != nil {
		return
	}
	m.pollTask = m.exec.ScheduleWithFixedDelay("folder-monitor", func(ctx context.Context) {
		m.tick()
	}, interval, interval)
}

// Stop tears the monitor down.
func (m *Monitor) Stop() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.mu.Lock()
		task := m.pollTask
		m.pollTask = nil
		watcher := m.watcher
		m.watcher = nil
		m.mu.Unlock()

		if task != nil {
			task.Cancel(false)
		}
		if watcher != nil {
			watcher.Close()
		}
	})
}

// SetLocation points the watcher at the panel's new current folder. Remote
// locations are not watchable; the watch is simply dropped for them.
func (m *Monitor) SetLocation(loc location.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watcher == nil {
		return
	}
	if m.watched != "" {
		m.watcher.Remove(m.watched)
		m.watched = ""
	}
	m.dirty = false

	if loc.Scheme() != location.SchemeFile {
		return
	}
	path := loc.Path()
	if err := m.watcher.Add(path); err != nil {
		m.logger.Debug().Str("path", path).Err(err).Msg("Cannot watch folder")
		return
	}
	m.watched = path
}

// MarkDirty flags the current folder as changed outside the application.
// The next tick turns it into a refresh.
func (m *Monitor) MarkDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = true
	m.dirtyAt = time.Now()
}

func (m *Monitor) consume() {
	for {
		select {
		case <-m.done:
			return
		case _, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.MarkDirty()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Debug().Err(err).Msg("Folder watcher error")
		}
	}
}

// tick fires at most one refresh per interval: only when a change was seen
// after the last committed folder change, and never while a change attempt
// is active.
func (m *Monitor) tick() {
	m.mu.Lock()
	dirty := m.dirty
	dirtyAt := m.dirtyAt
	m.mu.Unlock()

	if !dirty || m.refresher.IsFolderChanging() {
		return
	}
	if !dirtyAt.After(m.refresher.LastFolderChangeTime()) {
		// The panel refreshed since the event; stale signal.
		m.mu.Lock()
		m.dirty = false
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	m.dirty = false
	m.mu.Unlock()
	m.refresher.TryRefreshCurrentFolder("")
}

// LocationChanging implements nav.Listener.
func (m *Monitor) LocationChanging(e nav.LocationEvent) {}

// LocationChanged implements nav.Listener: the watch follows the panel.
func (m *Monitor) LocationChanged(e nav.LocationEvent) { m.SetLocation(e.Location) }

// LocationCancelled implements nav.Listener.
func (m *Monitor) LocationCancelled(e nav.LocationEvent) {}

// LocationFailed implements nav.Listener.
func (m *Monitor) LocationFailed(e nav.LocationEvent) {}
