package nav

import (
	"github.com/dualpane/navigator/internal/creds"
	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/vfs"
)

// AuthDecision is the user's answer to an authentication prompt. A nil
// Mapping with GuestSelected false means the prompt was cancelled.
type AuthDecision struct {
	Mapping       *creds.Mapping
	GuestSelected bool
}

// Cancelled reports whether the user dismissed the prompt.
func (d AuthDecision) Cancelled() bool {
	return d.Mapping == nil && !d.GuestSelected
}

// AuthPrompt asks the user for credentials. Implementations surface the
// prompt on their UI thread; the worker blocks on the call.
type AuthPrompt interface {
	// PopAuthDialog prompts for credentials for loc. priorFailure is true
	// when a previous attempt with credentials failed; errMessage carries
	// the failure text for display.
	PopAuthDialog(loc location.Location, priorFailure bool, errMessage string) AuthDecision
}

// BrowseChoice is the user's answer to the browse-or-download prompt.
type BrowseChoice int

const (
	BrowseChoiceCancel BrowseChoice = iota
	BrowseChoiceBrowse
	BrowseChoiceDownload
)

// BrowsePrompt disambiguates browsable non-directories.
type BrowsePrompt interface {
	PopDownloadOrBrowseDialog() BrowseChoice
}

// DownloadHandler starts an external download flow. The change task does not
// wait for the download; it terminates right after invoking it.
type DownloadHandler interface {
	HandleDownload(h vfs.Handle)
}

// ErrorSink surfaces user-visible navigation errors. Fire-and-forget from
// the task's perspective.
type ErrorSink interface {
	HandleFolderDoesNotExist()
	HandleFailedToReadFolder()
	HandleAccessError(err error)
}

// Panel is the commit sink: the only mutator of a panel's visible contents.
// SetSelectedFolder is called from the worker; implementations marshal to
// their UI thread if the platform requires it.
type Panel interface {
	// SetSelectedFolder applies the resolved folder and its listing to the
	// panel. fileToSelect names a child to select afterwards, "" for none.
	SetSelectedFolder(h vfs.Handle, entries []vfs.Entry, fileToSelect string, changeLockedTab bool) error

	// SelectedFile returns the location of the currently selected entry, or
	// the zero Location when nothing is selected.
	SelectedFile() location.Location

	// SetProgress reports a coarse progress milestone. Advisory,
	// non-blocking.
	SetProgress(percent int)

	// SetEventsEnabled gates normal UI event flow while a change runs.
	SetEventsEnabled(enabled bool)

	// RefreshTree requests a tree-view refresh before a folder refresh.
	RefreshTree()
}

// Dispatcher tells the manager whether the calling goroutine is the UI
// dispatch thread. Drives the inline-vs-submitted asymmetry of internal
// folder sets.
type Dispatcher interface {
	IsDispatchThread() bool
}

// Config is the configuration lookup consumed by the resolver.
type Config interface {
	// FollowSymlinks reports whether navigation should land on canonical
	// paths for schemes that do not force it.
	FollowSymlinks() bool
}

// History answers the browsable-container heuristic: a location already
// visited is entered without the browse-or-download prompt.
type History interface {
	Contains(loc location.Location) bool
}

// Filter decides which listed children reach the panel. A nil filter keeps
// everything.
type Filter func(e vfs.Entry) bool
