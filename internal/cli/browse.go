package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dualpane/navigator/internal/config"
	"github.com/dualpane/navigator/internal/constants"
	"github.com/dualpane/navigator/internal/creds"
	"github.com/dualpane/navigator/internal/diskspace"
	"github.com/dualpane/navigator/internal/events"
	"github.com/dualpane/navigator/internal/executor"
	"github.com/dualpane/navigator/internal/history"
	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/monitor"
	"github.com/dualpane/navigator/internal/nav"
	"github.com/dualpane/navigator/internal/pathutil"
	"github.com/dualpane/navigator/internal/vfs"
	"github.com/dualpane/navigator/internal/vfs/archivefs"
	"github.com/dualpane/navigator/internal/vfs/httpfs"
	"github.com/dualpane/navigator/internal/vfs/localfs"
	"github.com/dualpane/navigator/internal/vfs/s3fs"
)

func newBrowseCmd() *cobra.Command {
	var showHidden bool

	cmd := &cobra.Command{
		Use:   "browse [location]",
		Short: "Open an interactive navigation session",
		Long: `Open an interactive session on a starting location.

The location may be a local path, an http(s) URL, an s3:// URL or a path
into a zip archive (archive.zip!/inner/dir). With no argument the session
starts in the current directory.

Session commands:
  cd <target>    change folder (absolute, relative or full URL)
  ls             reprint the current listing
  up             change to the parent folder
  sel <name>     select a child entry
  refresh        re-read the current folder
  history        print recently visited locations
  vols           print volume roots and free space
  help           print this list
  quit           leave the session`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := ""
			if len(args) == 1 {
				start = args[0]
			}
			return runBrowse(start, showHidden)
		},
	}

	cmd.Flags().BoolVar(&showHidden, "hidden", true, "Include hidden files in listings")
	return cmd
}

// session bundles the wired components of one interactive run.
type session struct {
	console *Console
	manager *nav.Manager
	history *history.Store
	monitor *monitor.Monitor
	poller  *diskspace.Poller
	exec    *executor.Executor
	bus     *events.EventBus
	prefs   *config.Preferences
}

func runBrowse(start string, showHidden bool) error {
	log := GetLogger()

	prefs, err := loadPreferences()
	if err != nil {
		return err
	}
	if !showHidden {
		prefs.Navigation.ShowHiddenFiles = false
	}

	in := bufio.NewReader(os.Stdin)
	console := NewConsole(in, os.Stdout, log)

	registry := vfs.NewRegistry()
	registry.Register(location.SchemeFile, localfs.NewResolver())
	registry.Register(location.SchemeZip, archivefs.NewResolver())
	httpResolver := httpfs.NewResolver(log)
	registry.Register(location.SchemeHTTP, httpResolver)
	registry.Register(location.SchemeHTTPS, httpResolver)
	registry.Register(location.SchemeS3, s3fs.NewResolver())

	exec := executor.New(prefs.Executor.MaxWorkers, log)
	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	hist := history.NewStore(constants.HistoryCapacity)
	store := creds.NewKeyringStore(log)
	resolver := nav.NewResolver(registry, prefs, diskspace.Volumes, log)

	var filter nav.Filter
	if !prefs.Navigation.ShowHiddenFiles {
		filter = func(e vfs.Entry) bool { return !strings.HasPrefix(e.Name, ".") }
	}

	manager := nav.NewManager(nav.ManagerConfig{
		PanelID:      "console",
		Executor:     exec,
		Registry:     registry,
		Resolver:     resolver,
		Store:        store,
		History:      hist,
		Panel:        console,
		AuthPrompt:   console,
		BrowsePrompt: console,
		Download:     console,
		Errors:       console,
		Dispatcher:   console,
		Bus:          bus,
		Filter:       filter,
		Logger:       log,
	})
	manager.RegisterListener(hist)

	mon := monitor.New(manager, exec, log)
	manager.RegisterListener(mon)
	mon.Start(prefs.PollInterval())

	poller := diskspace.NewPoller(exec, bus, log)
	poller.Start(prefs.VolumePollInterval())
	manager.RegisterListener(volumeFollower{poller})

	s := &session{
		console: console,
		manager: manager,
		history: hist,
		monitor: mon,
		poller:  poller,
		exec:    exec,
		bus:     bus,
		prefs:   prefs,
	}
	defer s.shutdown()

	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("cannot determine working directory: %w", err)
		}
		start = wd
	}
	target, err := location.Parse(start)
	if err != nil {
		return fmt.Errorf("invalid starting location %q: %w", start, err)
	}
	if task := manager.TryChangeCurrentFolder(target); task != nil {
		s.await(task)
	}

	return s.loop(in)
}

// loop reads session commands. Prompts issued by a running task share the
// same reader, so the loop always drains the task before reading again.
func (s *session) loop(in *bufio.Reader) error {
	for {
		fmt.Print("nav> ")
		line, err := in.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, arg := fields[0], strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

		switch cmd {
		case "cd":
			if arg == "" {
				fmt.Println("Usage: cd <target>")
				continue
			}
			s.changeTo(arg)
		case "ls":
			cur := s.manager.CurrentLocation()
			if cur.IsZero() {
				fmt.Println("No current folder.")
				continue
			}
			s.console.printListing(cur, s.console.Entries())
		case "up":
			s.changeTo("..")
		case "sel":
			if arg == "" {
				fmt.Println("Usage: sel <name>")
				continue
			}
			if !s.console.Select(arg) {
				fmt.Printf("No entry named %q in the current folder.\n", arg)
			}
		case "refresh":
			if task := s.manager.TryRefreshCurrentFolder(""); task != nil {
				s.await(task)
			}
		case "history":
			for _, loc := range s.history.Visited() {
				fmt.Println("  " + loc.Redacted())
			}
		case "vols":
			for _, root := range diskspace.Volumes() {
				if space, err := diskspace.Usage(root); err == nil {
					fmt.Printf("  %-20s %s free of %s\n", root,
						humanSize(space.AvailableBytes), humanSize(space.TotalBytes))
				} else {
					fmt.Printf("  %-20s (unreadable: %v)\n", root, err)
				}
			}
		case "help":
			fmt.Println("Commands: cd ls up sel refresh history vols help quit")
		case "quit", "exit":
			return nil
		default:
			fmt.Printf("Unknown command %q. Try 'help'.\n", cmd)
		}
	}
}

// changeTo resolves a session argument against the current folder and starts
// a change task. Relative arguments only make sense for path-shaped schemes;
// full URLs pass through untouched.
func (s *session) changeTo(arg string) {
	var task *nav.Task
	cur := s.manager.CurrentLocation()

	switch {
	case strings.Contains(arg, "://"):
		target, err := location.Parse(arg)
		if err != nil {
			fmt.Printf("Invalid location: %v\n", err)
			return
		}
		task = s.manager.TryChangeCurrentFolder(target)
	case arg == "..":
		if cur.IsZero() {
			fmt.Println("No current folder.")
			return
		}
		parent, ok := cur.Parent()
		if !ok {
			fmt.Println("Already at the root.")
			return
		}
		task = s.manager.TryChangeCurrentFolder(parent)
	case strings.HasPrefix(arg, "/"), strings.HasPrefix(arg, "~"), cur.IsZero():
		resolved, err := pathutil.ResolveAbsolutePath(arg)
		if err != nil {
			fmt.Printf("Invalid target: %v\n", err)
			return
		}
		task = s.manager.TryChangeCurrentFolderPath(resolved)
	default:
		child := strings.TrimSuffix(cur.Path(), "/") + "/" + arg
		task = s.manager.TryChangeCurrentFolder(cur.WithPath(child))
	}

	if task != nil {
		s.await(task)
	}
}

// await blocks until the task terminates. Ctrl+C while waiting kills the
// attempt instead of the whole session.
func (s *session) await(task *nav.Task) {
	select {
	case <-task.Done():
	case <-GetContext().Done():
		if task.TryKill() {
			fmt.Println("Folder change aborted.")
		}
		<-task.Done()
	}

	if out := task.Outcome(); out.Kind == nav.OutcomeFailed && out.Err != nil {
		GetLogger().Debug().Err(out.Err).Msg("Folder change failed")
	}
}

func (s *session) shutdown() {
	s.monitor.Stop()
	s.poller.Stop()
	if !s.exec.Shutdown(s.prefs.ShutdownTimeout()) {
		GetLogger().Warn().Msg("Executor did not drain before the timeout")
	}
	s.bus.Close()
}

// volumeFollower points the free-space poller at the panel's folder so the
// reported volume is always the one being browsed.
type volumeFollower struct {
	poller *diskspace.Poller
}

func (v volumeFollower) LocationChanging(e nav.LocationEvent) {}

func (v volumeFollower) LocationChanged(e nav.LocationEvent) {
	if e.Location.Scheme() == location.SchemeFile {
		v.poller.SetPath(e.Location.Path())
	}
}

func (v volumeFollower) LocationCancelled(e nav.LocationEvent) {}

func (v volumeFollower) LocationFailed(e nav.LocationEvent) {}

func loadPreferences() (*config.Preferences, error) {
	path := cfgFile
	if path == "" {
		var err error
		path, err = config.DefaultPreferencesPath()
		if err != nil {
			return nil, err
		}
	}
	return config.LoadPreferences(path)
}
