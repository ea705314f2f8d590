package nav

import (
	"context"
	"sync"
	"time"

	"github.com/dualpane/navigator/internal/creds"
	"github.com/dualpane/navigator/internal/executor"
	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/logging"
	"github.com/dualpane/navigator/internal/vfs"
)

// fakeHandle is a scriptable vfs.Handle.
type fakeHandle struct {
	loc        location.Location
	exists     bool
	dir        bool
	browsable  bool
	unreadable bool
	canonical  string // "" means already canonical
	parent     *fakeHandle
	selfParent bool // parent chain cycles back to itself
	entries    []vfs.Entry
	listErr    error
}

func (h *fakeHandle) Location() location.Location { return h.loc }
func (h *fakeHandle) Exists(ctx context.Context) (bool, error) {
	return h.exists, nil
}
func (h *fakeHandle) IsDirectory() bool { return h.dir }
func (h *fakeHandle) IsBrowsable() bool { return h.dir || h.browsable }
func (h *fakeHandle) CanRead(ctx context.Context) (bool, error) {
	return !h.unreadable, nil
}
func (h *fakeHandle) CanonicalPath(ctx context.Context) (string, error) {
	if h.canonical != "" {
		return h.canonical, nil
	}
	return h.loc.Path(), nil
}
func (h *fakeHandle) Parent() (vfs.Handle, bool) {
	if h.selfParent {
		return h, true
	}
	if h.parent != nil {
		return h.parent, true
	}
	return nil, false
}
func (h *fakeHandle) List(ctx context.Context) ([]vfs.Entry, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	return h.entries, nil
}

func dirHandle(path string) *fakeHandle {
	return &fakeHandle{loc: location.MustParse(path), exists: true, dir: true}
}

// fakeFS resolves locations against a scripted handle set. Errors and
// blocking are scriptable per resolve call.
type fakeFS struct {
	mu       sync.Mutex
	handles  map[string]*fakeHandle // keyed by SameResource form
	errs     map[string][]error     // consumed FIFO per location
	resolves []string
	block    chan struct{} // non-nil: Resolve waits for close or ctx
}

func newFakeFS(handles ...*fakeHandle) *fakeFS {
	fs := &fakeFS{handles: map[string]*fakeHandle{}, errs: map[string][]error{}}
	for _, h := range handles {
		fs.add(h)
	}
	return fs
}

func key(loc location.Location) string {
	return loc.Scheme() + "://" + loc.Host() + loc.Path()
}

func (f *fakeFS) add(h *fakeHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handles[key(h.loc)] = h
}

func (f *fakeFS) failNext(loc location.Location, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[key(loc)] = append(f.errs[key(loc)], err)
}

func (f *fakeFS) resolveCount(loc location.Location) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.resolves {
		if k == key(loc) {
			n++
		}
	}
	return n
}

func (f *fakeFS) Resolve(ctx context.Context, loc location.Location) (vfs.Handle, error) {
	f.mu.Lock()
	block := f.block
	f.resolves = append(f.resolves, key(loc))
	var err error
	if pending := f.errs[key(loc)]; len(pending) > 0 {
		err = pending[0]
		f.errs[key(loc)] = pending[1:]
	}
	h := f.handles[key(loc)]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if h == nil {
		return &fakeHandle{loc: loc}, nil
	}
	return h, nil
}

// stubPanel records every interaction of the commit sink.
type stubPanel struct {
	mu            sync.Mutex
	progress      []int
	events        []bool
	committed     []vfs.Handle
	lastEntries   []vfs.Entry
	lastSelect    string
	selected      location.Location
	commitErr     error
	commitBlock   chan struct{} // non-nil: SetSelectedFolder waits for close
	commitStarted chan struct{} // closed when SetSelectedFolder begins
	tsAtCommit    time.Time
	tsSource      func() time.Time
	refreshed     int
}

func newStubPanel() *stubPanel {
	return &stubPanel{commitStarted: make(chan struct{})}
}

func (p *stubPanel) SetSelectedFolder(h vfs.Handle, entries []vfs.Entry, fileToSelect string, changeLockedTab bool) error {
	p.mu.Lock()
	if p.tsSource != nil {
		p.tsAtCommit = p.tsSource()
	}
	started := p.commitStarted
	block := p.commitBlock
	p.mu.Unlock()

	select {
	case <-started:
	default:
		close(started)
	}
	if block != nil {
		<-block
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.commitErr != nil {
		return p.commitErr
	}
	p.committed = append(p.committed, h)
	p.lastEntries = entries
	p.lastSelect = fileToSelect
	return nil
}

func (p *stubPanel) SelectedFile() location.Location {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

func (p *stubPanel) SetProgress(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = append(p.progress, percent)
}

func (p *stubPanel) SetEventsEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, enabled)
}

func (p *stubPanel) RefreshTree() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshed++
}

func (p *stubPanel) commitCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.committed)
}

func (p *stubPanel) progressLog() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.progress))
	copy(out, p.progress)
	return out
}

// stubAuth feeds scripted decisions to the prompt.
type stubAuth struct {
	mu        sync.Mutex
	decisions []AuthDecision
	calls     int
	failures  []bool
}

func (a *stubAuth) PopAuthDialog(loc location.Location, priorFailure bool, errMessage string) AuthDecision {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.failures = append(a.failures, priorFailure)
	if len(a.decisions) == 0 {
		return AuthDecision{}
	}
	d := a.decisions[0]
	a.decisions = a.decisions[1:]
	return d
}

func (a *stubAuth) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type stubBrowse struct {
	mu     sync.Mutex
	choice BrowseChoice
	calls  int
}

func (b *stubBrowse) PopDownloadOrBrowseDialog() BrowseChoice {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.choice
}

func (b *stubBrowse) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type stubDownload struct {
	mu      sync.Mutex
	handles []vfs.Handle
}

func (d *stubDownload) HandleDownload(h vfs.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handles = append(d.handles, h)
}

func (d *stubDownload) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

type stubErrors struct {
	mu          sync.Mutex
	notExist    int
	failedRead  int
	accessCalls []error
}

func (e *stubErrors) HandleFolderDoesNotExist() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notExist++
}

func (e *stubErrors) HandleFailedToReadFolder() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failedRead++
}

func (e *stubErrors) HandleAccessError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.accessCalls = append(e.accessCalls, err)
}

type stubHistory struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newStubHistory() *stubHistory { return &stubHistory{seen: map[string]bool{}} }

func (h *stubHistory) add(loc location.Location) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen[key(loc)] = true
}

func (h *stubHistory) Contains(loc location.Location) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seen[key(loc)]
}

type stubConfig struct{ follow bool }

func (c stubConfig) FollowSymlinks() bool { return c.follow }

type stubDispatcher struct{ dispatch bool }

func (d stubDispatcher) IsDispatchThread() bool { return d.dispatch }

// recListener records the notification sequence.
type recListener struct {
	mu  sync.Mutex
	seq []string
}

func (l *recListener) LocationChanging(e LocationEvent)  { l.record("changing") }
func (l *recListener) LocationChanged(e LocationEvent)   { l.record("changed") }
func (l *recListener) LocationCancelled(e LocationEvent) { l.record("cancelled") }
func (l *recListener) LocationFailed(e LocationEvent)    { l.record("failed") }

func (l *recListener) record(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq = append(l.seq, s)
}

func (l *recListener) sequence() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.seq))
	copy(out, l.seq)
	return out
}

// fixture bundles a Manager wired to stubs.
type fixture struct {
	manager  *Manager
	exec     *executor.Executor
	fs       *fakeFS
	registry *vfs.Registry
	panel    *stubPanel
	auth     *stubAuth
	browse   *stubBrowse
	download *stubDownload
	errors   *stubErrors
	history  *stubHistory
	listener *recListener
	store    *creds.MemoryStore
	config   *stubConfig
	volumes  []string
}

func newFixture(handles ...*fakeHandle) *fixture {
	f := &fixture{
		exec:     executor.New(2, logging.NewNop()),
		fs:       newFakeFS(handles...),
		registry: vfs.NewRegistry(),
		panel:    newStubPanel(),
		auth:     &stubAuth{},
		browse:   &stubBrowse{},
		download: &stubDownload{},
		errors:   &stubErrors{},
		history:  newStubHistory(),
		listener: &recListener{},
		store:    creds.NewMemoryStore(),
		config:   &stubConfig{},
	}
	for _, scheme := range []string{"file", "http", "https", "s3", "zip"} {
		f.registry.Register(scheme, f.fs)
	}

	resolver := NewResolver(f.registry, f.config, func() []string { return f.volumes }, logging.NewNop())
	f.manager = NewManager(ManagerConfig{
		PanelID:      "left",
		Executor:     f.exec,
		Registry:     f.registry,
		Resolver:     resolver,
		Store:        f.store,
		History:      f.history,
		Panel:        f.panel,
		AuthPrompt:   f.auth,
		BrowsePrompt: f.browse,
		Download:     f.download,
		Errors:       f.errors,
		Dispatcher:   stubDispatcher{},
		Logger:       logging.NewNop(),
	})
	f.manager.RegisterListener(f.listener)
	return f
}

func (f *fixture) close() {
	f.exec.Shutdown(time.Second)
}

func awaitTask(t *Task) Outcome {
	select {
	case <-t.Done():
		return t.Outcome()
	case <-time.After(2 * time.Second):
		return Outcome{}
	}
}
