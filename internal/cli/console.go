package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/dualpane/navigator/internal/creds"
	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/logging"
	"github.com/dualpane/navigator/internal/nav"
	"github.com/dualpane/navigator/internal/vfs"
)

// Console is the terminal rendition of a navigation panel. It implements
// every collaborator interface the change-folder task talks to: prompts are
// read from stdin while the command loop is blocked waiting for the task, so
// the two never compete for input.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	logger *logging.Logger

	mu       sync.Mutex
	entries  []vfs.Entry
	selected location.Location
	bar      *progressbar.ProgressBar
}

// NewConsole creates a console panel reading prompts from in and rendering
// listings to out.
func NewConsole(in *bufio.Reader, out io.Writer, logger *logging.Logger) *Console {
	return &Console{in: in, out: out, logger: logger}
}

// PopAuthDialog implements nav.AuthPrompt. An empty username selects guest
// access; "-" cancels the prompt.
func (c *Console) PopAuthDialog(loc location.Location, priorFailure bool, errMessage string) nav.AuthDecision {
	if priorFailure {
		fmt.Fprintf(c.out, "\nAuthentication failed for %s", loc.Redacted())
		if errMessage != "" {
			fmt.Fprintf(c.out, ": %s", errMessage)
		}
		fmt.Fprintln(c.out)
	} else {
		fmt.Fprintf(c.out, "\nCredentials required for %s\n", loc.Redacted())
	}

	fmt.Fprint(c.out, "Username (empty for guest, '-' to cancel): ")
	user, err := c.in.ReadString('\n')
	if err != nil {
		return nav.AuthDecision{}
	}
	user = strings.TrimSpace(user)
	switch user {
	case "":
		return nav.AuthDecision{GuestSelected: true}
	case "-":
		return nav.AuthDecision{}
	}

	password, err := c.readPassword()
	if err != nil {
		return nav.AuthDecision{}
	}

	return nav.AuthDecision{Mapping: &creds.Mapping{
		Credentials: location.Credentials{User: user, Password: password},
		Realm:       creds.Realm(loc),
	}}
}

// readPassword reads without echo when stdin is a terminal, falling back to
// a plain line otherwise (tests, pipes).
func (c *Console) readPassword() (string, error) {
	fmt.Fprint(c.out, "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(c.out)
		return string(raw), err
	}
	line, err := c.in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// PopDownloadOrBrowseDialog implements nav.BrowsePrompt.
func (c *Console) PopDownloadOrBrowseDialog() nav.BrowseChoice {
	fmt.Fprintln(c.out, "\nThis file can be browsed like a folder.")
	fmt.Fprintln(c.out, "What would you like to do?")
	fmt.Fprintln(c.out, "  1. Browse - Enter it like a folder")
	fmt.Fprintln(c.out, "  2. Download - Fetch it instead")
	fmt.Fprintln(c.out, "  3. Cancel - Stay where you are")
	fmt.Fprint(c.out, "Choose [1-3]: ")

	input, err := c.in.ReadString('\n')
	if err != nil {
		return nav.BrowseChoiceCancel
	}
	switch strings.TrimSpace(input) {
	case "1":
		return nav.BrowseChoiceBrowse
	case "2":
		return nav.BrowseChoiceDownload
	case "3":
		return nav.BrowseChoiceCancel
	default:
		fmt.Fprintln(c.out, "Invalid choice, please try again.")
		return c.PopDownloadOrBrowseDialog()
	}
}

// HandleDownload implements nav.DownloadHandler. The console has no transfer
// engine; it reports where to fetch from and leaves the panel unchanged.
func (c *Console) HandleDownload(h vfs.Handle) {
	fmt.Fprintf(c.out, "Download deferred: fetch %s with your transfer tool.\n", h.Location().Redacted())
}

// HandleFolderDoesNotExist implements nav.ErrorSink.
func (c *Console) HandleFolderDoesNotExist() {
	fmt.Fprintln(c.out, "Folder does not exist.")
}

// HandleFailedToReadFolder implements nav.ErrorSink.
func (c *Console) HandleFailedToReadFolder() {
	fmt.Fprintln(c.out, "Folder could not be read (permission denied).")
}

// HandleAccessError implements nav.ErrorSink.
func (c *Console) HandleAccessError(err error) {
	fmt.Fprintf(c.out, "Access error: %v\n", err)
}

// SetSelectedFolder implements nav.Panel: render the listing and remember it
// so "ls" can replay without another round trip.
func (c *Console) SetSelectedFolder(h vfs.Handle, entries []vfs.Entry, fileToSelect string, changeLockedTab bool) error {
	sorted := make([]vfs.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Directory != sorted[j].Directory {
			return sorted[i].Directory
		}
		return sorted[i].Name < sorted[j].Name
	})

	c.mu.Lock()
	c.entries = sorted
	c.selected = location.Location{}
	if fileToSelect != "" {
		for _, e := range sorted {
			if e.Name == fileToSelect {
				c.selected = e.Location
				break
			}
		}
	}
	c.mu.Unlock()

	c.printListing(h.Location(), sorted)
	return nil
}

func (c *Console) printListing(loc location.Location, entries []vfs.Entry) {
	fmt.Fprintf(c.out, "\n%s  (%d entries)\n", loc.Redacted(), len(entries))
	for _, e := range entries {
		if e.Directory {
			fmt.Fprintf(c.out, "  %-10s %s/\n", "<dir>", e.Name)
		} else {
			fmt.Fprintf(c.out, "  %-10s %s\n", humanSize(e.Size), e.Name)
		}
	}
}

// SelectedFile implements nav.Panel.
func (c *Console) SelectedFile() location.Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Select marks the named child as selected, feeding the browsable-container
// heuristic the way a GUI selection would.
func (c *Console) Select(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.Name == name {
			c.selected = e.Location
			return true
		}
	}
	return false
}

// Entries returns the last rendered listing.
func (c *Console) Entries() []vfs.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]vfs.Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// SetProgress implements nav.Panel. Milestones drive a bar on stderr; the
// reset milestone clears it.
func (c *Console) SetProgress(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if percent <= 0 {
		if c.bar != nil {
			c.bar.Clear()
			c.bar = nil
		}
		return
	}
	if c.bar == nil {
		c.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("changing folder"),
			progressbar.OptionClearOnFinish(),
		)
	}
	c.bar.Set(percent)
}

// SetEventsEnabled implements nav.Panel. The console has no event queue to
// gate; the transition is only logged.
func (c *Console) SetEventsEnabled(enabled bool) {
	c.logger.Debug().Bool("enabled", enabled).Msg("Panel events gated")
}

// RefreshTree implements nav.Panel.
func (c *Console) RefreshTree() {}

// IsDispatchThread implements nav.Dispatcher. The console has no UI thread,
// so internal folder sets always run inline on the caller.
func (c *Console) IsDispatchThread() bool { return false }

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
