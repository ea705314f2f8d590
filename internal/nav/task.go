package nav

import (
	"context"
	"fmt"
	"sync"

	"github.com/dualpane/navigator/internal/creds"
	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/vfs"
)

// Progress milestones reported by a change attempt. Fixed checkpoint values,
// not measurements; external progress displays key off them.
const (
	progressStart     = 10
	progressResolved  = 25
	progressValidated = 50
	progressApplying  = 75
	progressCommitted = 95
	progressReset     = 0
)

// ChangeRequest is the immutable input to one change attempt.
type ChangeRequest struct {
	// Target is the location to change to.
	Target location.Location

	// Handle, when non-nil, is an already-resolved binding for Target; used
	// by refresh and retry paths to skip re-resolution.
	Handle vfs.Handle

	// Credentials, when non-nil, are applied without prompting.
	Credentials *creds.Mapping

	// FindWorkableFolder substitutes the nearest existing ancestor or volume
	// when the target is missing.
	FindWorkableFolder bool

	// ChangeLockedTab forces the change through even on a locked tab.
	ChangeLockedTab bool

	// FileToSelect names a child to select after the change, "" for none.
	FileToSelect string
}

// Task drives one folder-change attempt from request to terminal outcome.
// It occupies exactly one executor worker; all prompting blocks that worker
// while the prompt implementation runs on its own thread.
type Task struct {
	m   *Manager
	req ChangeRequest

	mu        sync.Mutex
	killed    bool
	doNotKill bool // point of no return reached
	interrupt context.CancelFunc

	cleanupOnce sync.Once
	done        chan struct{}
	outcome     Outcome
}

func newTask(m *Manager, req ChangeRequest) *Task {
	return &Task{m: m, req: req, done: make(chan struct{})}
}

// Outcome returns the terminal outcome, or Kind OutcomeNone before the task
// finishes.
func (t *Task) Outcome() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

// Done returns a channel closed when the task reaches a terminal state and
// its cleanup has run.
func (t *Task) Done() <-chan struct{} { return t.done }

// TryKill requests an abort. The first call before the point of no return
// marks the task killed and interrupts the worker; any other call (repeated,
// or past the point of no return) is a no-op returning false.
func (t *Task) TryKill() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.doNotKill || t.killed {
		return false
	}
	t.killed = true
	if t.interrupt != nil {
		t.interrupt()
	}
	return true
}

func (t *Task) isKilled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.killed
}

// passPointOfNoReturn atomically flips the task into the uninterruptible
// commit phase. Returns false if a kill arrived first; a kill arriving
// exactly at this boundary is honored, one arriving after is rejected.
func (t *Task) passPointOfNoReturn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.killed {
		return false
	}
	t.doNotKill = true
	return true
}

// run executes the attempt. It never lets an error escape: every failure is
// converted to a terminal outcome plus collaborator notifications.
func (t *Task) run(ctx context.Context) {
	// A task-local cancel so TryKill can interrupt blocking I/O without
	// involving the executor handle.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	t.mu.Lock()
	t.interrupt = cancel
	alreadyKilled := t.killed
	t.mu.Unlock()
	if alreadyKilled {
		t.finish(Outcome{Kind: OutcomeKilled})
		return
	}

	m := t.m
	target := t.req.Target

	m.panel.SetEventsEnabled(false)
	m.fireLocationChanging(target)
	m.panel.SetProgress(progressStart)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("panel", m.panelID).Interface("panic", r).
				Msg("Change folder task panicked")
			t.finish(Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	// Upfront credential resolution: prompt before the first I/O when the
	// scheme demands it, so the only outcome of that I/O isn't "you need
	// credentials".
	var usedMapping *creds.Mapping
	switch {
	case t.req.Credentials != nil:
		target = m.store.Authenticate(target, *t.req.Credentials)
		usedMapping = t.req.Credentials
	case target.HasCredentials():
		// Explicit credentials embedded in the location; use as-is.
	default:
		policy := vfs.PolicyFor(target.Scheme())
		if policy == vfs.AuthRequired ||
			(policy == vfs.AuthOptional && len(m.store.MatchingCredentials(target)) > 0) {
			decision := m.authPrompt.PopAuthDialog(target, false, "")
			if decision.Cancelled() {
				t.finish(Outcome{Kind: OutcomeCancelled})
				return
			}
			if decision.Mapping != nil {
				target = m.store.Authenticate(target, *decision.Mapping)
				usedMapping = decision.Mapping
			} else {
				guest := creds.GuestMapping(target)
				usedMapping = &guest
			}
		}
	}

	handle := t.req.Handle
	canonicalFollowed := false
	workableTried := false

	for {
		if t.isKilled() {
			t.finish(Outcome{Kind: OutcomeKilled})
			return
		}

		if handle == nil {
			var err error
			handle, err = m.registry.Resolve(ctx, target)
			if err != nil {
				if t.isKilled() {
					// Interruption fallout, not a real failure.
					t.finish(Outcome{Kind: OutcomeKilled})
					return
				}
				if authErr, ok := vfs.IsAuthError(err); ok {
					decision := m.authPrompt.PopAuthDialog(target, true, authErr.Error())
					if decision.Cancelled() {
						t.failWith(err, func() { m.errors.HandleAccessError(err) })
						return
					}
					if decision.Mapping != nil {
						target = m.store.Authenticate(target, *decision.Mapping)
						usedMapping = decision.Mapping
					} else {
						guest := creds.GuestMapping(target)
						usedMapping = &guest
						target = target.WithCredentials(location.Credentials{})
					}
					continue
				}
				if t.req.FindWorkableFolder && !workableTried {
					if sub := t.workableFromLocation(ctx, target); sub != nil {
						workableTried = true
						handle = sub
						target = sub.Location()
						continue
					}
				}
				t.failWith(err, func() { m.errors.HandleAccessError(err) })
				return
			}
		}

		m.panel.SetProgress(progressResolved)
		if t.isKilled() {
			t.finish(Outcome{Kind: OutcomeKilled})
			return
		}

		class, err := m.resolver.Classify(ctx, handle)
		if err != nil {
			if t.isKilled() {
				t.finish(Outcome{Kind: OutcomeKilled})
				return
			}
			t.failWith(err, func() { m.errors.HandleAccessError(err) })
			return
		}

		if class == ClassMissing {
			if t.req.FindWorkableFolder && !workableTried {
				if sub := m.resolver.FindWorkableAncestor(ctx, handle); sub != nil {
					workableTried = true
					handle = sub
					target = sub.Location()
					continue
				}
			}
			t.failWith(vfs.ErrNotFound, m.errors.HandleFolderDoesNotExist)
			return
		}

		readable, err := handle.CanRead(ctx)
		if err != nil || !readable {
			if t.isKilled() {
				t.finish(Outcome{Kind: OutcomeKilled})
				return
			}
			t.failWith(vfs.ErrPermissionDenied, m.errors.HandleFailedToReadFolder)
			return
		}
		m.panel.SetProgress(progressValidated)

		switch class {
		case ClassDirectory:
			// Proceed to commit.
		case ClassBrowsable:
			// Entering a container the user clearly meant to open skips the
			// prompt: seen in history, or it is the selected entry. The
			// selected-entry check is a weak proxy for "pressed Open";
			// preserved as-is, not extended.
			if !m.history.Contains(target) && !m.panel.SelectedFile().SameResource(target) {
				switch m.browsePrompt.PopDownloadOrBrowseDialog() {
				case BrowseChoiceCancel:
					t.finish(Outcome{Kind: OutcomeCancelled})
					return
				case BrowseChoiceDownload:
					m.download.HandleDownload(handle)
					t.finish(Outcome{Kind: OutcomeCancelled})
					return
				case BrowseChoiceBrowse:
					// Treat as directory.
				}
			}
		case ClassPlainFile:
			m.download.HandleDownload(handle)
			t.finish(Outcome{Kind: OutcomeCancelled})
			return
		}

		// At most one canonicalization per attempt, even when the canonical
		// path is itself a symlink.
		if !canonicalFollowed && m.resolver.NeedsCanonicalization(ctx, handle) {
			canonicalFollowed = true
			canonical, err := handle.CanonicalPath(ctx)
			if err == nil {
				if rebuilt, err := target.WithCanonical(canonical); err == nil {
					target = rebuilt
					handle = nil
					continue
				}
			}
		}

		if !t.passPointOfNoReturn() {
			t.finish(Outcome{Kind: OutcomeKilled})
			return
		}

		m.panel.SetProgress(progressApplying)
		if err := m.setCurrentFolder(ctx, handle, t.req.FileToSelect, t.req.ChangeLockedTab); err != nil {
			t.failWith(err, func() { m.errors.HandleAccessError(err) })
			return
		}
		m.panel.SetProgress(progressCommitted)

		if usedMapping != nil && !usedMapping.Guest {
			m.store.Add(*usedMapping)
		}

		t.finish(Outcome{Kind: OutcomeCommitted, Handle: handle})
		return
	}
}

// workableFromLocation searches for a workable substitute when resolution
// itself failed and no handle exists to walk: parent locations are resolved
// until one yields an existing handle.
func (t *Task) workableFromLocation(ctx context.Context, loc location.Location) vfs.Handle {
	cur := loc
	for i := 0; i < maxAncestorSteps; i++ {
		parent, ok := cur.Parent()
		if !ok {
			return nil
		}
		if parent.Equal(cur) {
			return nil
		}
		cur = parent

		h, err := t.m.registry.Resolve(ctx, cur)
		if err != nil {
			continue
		}
		exists, err := h.Exists(ctx)
		if err != nil || !exists {
			continue
		}
		if h.Location().Equal(loc) {
			return nil
		}
		return h
	}
	return nil
}

// failWith reports a failure through the designated collaborator and
// finishes the task. report is invoked exactly once.
func (t *Task) failWith(err error, report func()) {
	report()
	t.finish(Outcome{Kind: OutcomeFailed, Err: err})
}

// finish records the outcome and runs cleanup exactly once: progress reset,
// UI events re-enabled, terminal notification for non-committed outcomes,
// and finally the manager slot release.
func (t *Task) finish(outcome Outcome) {
	t.cleanupOnce.Do(func() {
		t.mu.Lock()
		t.outcome = outcome
		t.mu.Unlock()

		m := t.m
		m.panel.SetProgress(progressReset)
		m.panel.SetEventsEnabled(true)

		switch outcome.Kind {
		case OutcomeCommitted:
			// locationChanged was fired by the commit step.
		case OutcomeCancelled, OutcomeKilled:
			m.fireLocationCancelled(t.req.Target)
		case OutcomeFailed:
			m.fireLocationFailed(t.req.Target)
		}

		m.taskFinished(t)
		close(t.done)
	})
}
