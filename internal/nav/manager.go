// Package nav implements the asynchronous folder-change core: the
// per-panel location manager, the change-folder task state machine and the
// pure resolution logic they share. One Manager owns one panel's location
// state; all panels share the executor, the scheme registry, the credentials
// store and the history store.
package nav

import (
	"context"
	"sync"
	"time"

	"github.com/dualpane/navigator/internal/creds"
	"github.com/dualpane/navigator/internal/events"
	"github.com/dualpane/navigator/internal/executor"
	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/logging"
	"github.com/dualpane/navigator/internal/vfs"
)

// ManagerConfig wires a Manager's collaborators. All fields except Bus and
// Filter are required.
type ManagerConfig struct {
	PanelID  string
	Executor *executor.Executor
	Registry *vfs.Registry
	Resolver *Resolver
	Store    creds.Store
	History  History
	Panel    Panel

	AuthPrompt   AuthPrompt
	BrowsePrompt BrowsePrompt
	Download     DownloadHandler
	Errors       ErrorSink
	Dispatcher   Dispatcher

	// Bus, when set, mirrors lifecycle notifications onto the event bus.
	Bus *events.EventBus

	// Filter, when set, drops listed children before they reach the panel.
	Filter Filter

	Logger *logging.Logger
}

// Manager serializes folder-change requests for one panel and fans out
// lifecycle notifications. It is the only component allowed to submit a
// change task for its panel.
type Manager struct {
	panelID      string
	exec         *executor.Executor
	registry     *vfs.Registry
	resolver     *Resolver
	store        creds.Store
	history      History
	panel        Panel
	authPrompt   AuthPrompt
	browsePrompt BrowsePrompt
	download     DownloadHandler
	errors       ErrorSink
	dispatcher   Dispatcher
	bus          *events.EventBus
	filter       Filter
	logger       *logging.Logger

	listeners listenerRegistry

	// mu guards the panel's location state and the one-task-per-panel
	// invariant.
	mu         sync.Mutex
	current    location.Location
	lastChange time.Time
	active     *Task
}

// NewManager creates the location manager for one panel.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		panelID:      cfg.PanelID,
		exec:         cfg.Executor,
		registry:     cfg.Registry,
		resolver:     cfg.Resolver,
		store:        cfg.Store,
		history:      cfg.History,
		panel:        cfg.Panel,
		authPrompt:   cfg.AuthPrompt,
		browsePrompt: cfg.BrowsePrompt,
		download:     cfg.Download,
		errors:       cfg.Errors,
		dispatcher:   cfg.Dispatcher,
		bus:          cfg.Bus,
		filter:       cfg.Filter,
		logger:       cfg.Logger,
	}
}

// RegisterListener adds a lifecycle listener. Delivery order is registration
// order.
func (m *Manager) RegisterListener(l Listener) { m.listeners.register(l) }

// UnregisterListener removes a listener.
func (m *Manager) UnregisterListener(l Listener) { m.listeners.unregister(l) }

// CurrentLocation returns the panel's committed location.
func (m *Manager) CurrentLocation() location.Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// LastFolderChangeTime returns the time of the last successful commit.
// Freshness checks (the folder monitor) compare against it.
func (m *Manager) LastFolderChangeTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastChange
}

// IsFolderChanging reports whether a change attempt is active.
func (m *Manager) IsFolderChanging() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// TryChangeCurrentFolder starts a change attempt to target. Returns nil,
// without queuing or blocking, when another attempt is already active. A
// missing target fails rather than substituting an ancestor; the typed-path
// and refresh variants enable the fallback.
func (m *Manager) TryChangeCurrentFolder(target location.Location) *Task {
	return m.tryChange(ChangeRequest{Target: target})
}

// TryChangeCurrentFolderWithSelect starts a change attempt that selects a
// child after committing.
func (m *Manager) TryChangeCurrentFolderWithSelect(target location.Location, fileToSelect string, changeLockedTab bool) *Task {
	return m.tryChange(ChangeRequest{
		Target:          target,
		FileToSelect:    fileToSelect,
		ChangeLockedTab: changeLockedTab,
	})
}

// TryChangeCurrentFolderHandle starts a change attempt from an
// already-resolved handle, skipping re-resolution.
func (m *Manager) TryChangeCurrentFolderHandle(h vfs.Handle, changeLockedTab bool) *Task {
	return m.tryChange(ChangeRequest{
		Target:          h.Location(),
		Handle:          h,
		ChangeLockedTab: changeLockedTab,
	})
}

// TryChangeCurrentFolderPath parses a raw path or URL string and starts a
// change attempt with workable-folder fallback: typed paths are the classic
// case of navigating somewhere that may have disappeared. A malformed string
// is surfaced through the error sink.
func (m *Manager) TryChangeCurrentFolderPath(raw string) *Task {
	target, err := location.Parse(raw)
	if err != nil {
		m.errors.HandleAccessError(err)
		return nil
	}
	return m.tryChange(ChangeRequest{Target: target, FindWorkableFolder: true})
}

// TryChangeCurrentFolderWithCredentials starts a change attempt carrying
// explicit credentials, bypassing the upfront prompt.
func (m *Manager) TryChangeCurrentFolderWithCredentials(target location.Location, mapping creds.Mapping) *Task {
	return m.tryChange(ChangeRequest{
		Target:      target,
		Credentials: &mapping,
	})
}

// TryRefreshCurrentFolder re-runs the change against the current location
// with workable-folder fallback, so a deleted current folder lands on the
// nearest existing ancestor. fileToSelect re-selects a child afterwards.
func (m *Manager) TryRefreshCurrentFolder(fileToSelect string) *Task {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()
	if current.IsZero() {
		return nil
	}

	m.panel.RefreshTree()
	return m.tryChange(ChangeRequest{
		Target:             current,
		FindWorkableFolder: true,
		ChangeLockedTab:    true,
		FileToSelect:       fileToSelect,
	})
}

// TryStopChangeFolderTask forwards a kill request to the active task, if
// any. Returns whether a kill was accepted.
func (m *Manager) TryStopChangeFolderTask() bool {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if active == nil {
		return false
	}
	return active.TryKill()
}

// tryChange enforces the one-task-per-panel invariant and submits the task.
func (m *Manager) tryChange(req ChangeRequest) *Task {
	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		m.logger.Debug().Str("panel", m.panelID).Str("target", req.Target.Redacted()).
			Msg("Folder change already in progress, request dropped")
		return nil
	}
	t := newTask(m, req)
	m.active = t
	m.mu.Unlock()

	if h := m.exec.Submit("change-folder:"+m.panelID, t.run); h == nil {
		// Pool already shut down.
		m.mu.Lock()
		m.active = nil
		m.mu.Unlock()
		return nil
	}
	return t
}

// taskFinished releases the panel's slot. Called exactly once from the
// task's cleanup, after its terminal notification has fired, so two
// attempts' notification sequences never interleave.
func (m *Manager) taskFinished(t *Task) {
	m.mu.Lock()
	if m.active == t {
		m.active = nil
	}
	m.mu.Unlock()
}

// ChangeCurrentFolderInternal applies a folder without prompts or workable
// fallback beyond the local scheme. Called from the dispatch thread it is
// submitted to the pool; from any other goroutine it runs inline, since the
// caller is already off the UI thread and gains nothing from a re-dispatch.
func (m *Manager) ChangeCurrentFolderInternal(target location.Location, changeLockedTab bool) {
	run := func(ctx context.Context) {
		m.fireLocationChanging(target)

		handle, err := m.registry.Resolve(ctx, target)
		if err != nil {
			handle = nil
		} else if exists, eerr := handle.Exists(ctx); eerr == nil && !exists {
			err = vfs.ErrNotFound
			// Workable substitution for local paths only: remote schemes
			// would need prompting, which internal sets must not do.
			if target.Scheme() == location.SchemeFile {
				handle = m.resolver.FindWorkableAncestor(ctx, handle)
			} else {
				handle = nil
			}
		}
		if handle == nil {
			m.logger.Warn().Str("panel", m.panelID).Str("target", target.Redacted()).Err(err).
				Msg("Internal folder set failed")
			m.fireLocationFailed(target)
			return
		}

		if err := m.setCurrentFolder(ctx, handle, "", changeLockedTab); err != nil {
			m.logger.Warn().Str("panel", m.panelID).Err(err).Msg("Internal folder set failed")
			m.fireLocationFailed(target)
		}
	}

	if m.dispatcher != nil && m.dispatcher.IsDispatchThread() {
		m.exec.Submit("internal-folder-set:"+m.panelID, run)
		return
	}
	run(context.Background())
}

// setCurrentFolder lists the folder, commits it to the panel and fires the
// changed notification. The listing tolerates failure: a folder that can be
// entered but not listed still commits, with empty contents. The timestamp
// is advanced before the panel call so a concurrent freshness check sees the
// new time no later than the display update.
func (m *Manager) setCurrentFolder(ctx context.Context, handle vfs.Handle, fileToSelect string, changeLockedTab bool) error {
	entries, err := handle.List(ctx)
	if err != nil {
		m.logger.Debug().Str("panel", m.panelID).Str("location", handle.Location().Redacted()).
			Err(err).Msg("Folder listing failed, committing empty")
		entries = nil
	}
	if m.filter != nil {
		kept := entries[:0]
		for _, e := range entries {
			if m.filter(e) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	m.mu.Lock()
	m.lastChange = time.Now()
	m.mu.Unlock()

	if err := m.panel.SetSelectedFolder(handle, entries, fileToSelect, changeLockedTab); err != nil {
		return err
	}

	m.mu.Lock()
	m.current = handle.Location()
	m.mu.Unlock()

	m.fireLocationChanged(handle.Location())
	return nil
}

func (m *Manager) fireLocationChanging(loc location.Location) {
	e := LocationEvent{PanelID: m.panelID, Location: loc}
	for _, l := range m.listeners.snapshot() {
		l.LocationChanging(e)
	}
	if m.bus != nil {
		m.bus.PublishLocation(events.EventLocationChanging, m.panelID, loc)
	}
}

func (m *Manager) fireLocationChanged(loc location.Location) {
	e := LocationEvent{PanelID: m.panelID, Location: loc}
	for _, l := range m.listeners.snapshot() {
		l.LocationChanged(e)
	}
	if m.bus != nil {
		m.bus.PublishLocation(events.EventLocationChanged, m.panelID, loc)
	}
}

func (m *Manager) fireLocationCancelled(loc location.Location) {
	e := LocationEvent{PanelID: m.panelID, Location: loc}
	for _, l := range m.listeners.snapshot() {
		l.LocationCancelled(e)
	}
	if m.bus != nil {
		m.bus.PublishLocation(events.EventLocationCancelled, m.panelID, loc)
	}
}

func (m *Manager) fireLocationFailed(loc location.Location) {
	e := LocationEvent{PanelID: m.panelID, Location: loc}
	for _, l := range m.listeners.snapshot() {
		l.LocationFailed(e)
	}
	if m.bus != nil {
		m.bus.PublishLocation(events.EventLocationFailed, m.panelID, loc)
	}
}
