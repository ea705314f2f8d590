package nav

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/dualpane/navigator/internal/creds"
	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/vfs"
)

func TestCommitDirectory(t *testing.T) {
	target := dirHandle("/data/docs")
	target.entries = []vfs.Entry{{Name: "a.txt"}}
	f := newFixture(target)
	defer f.close()

	before := f.manager.LastFolderChangeTime()
	task := f.manager.TryChangeCurrentFolder(target.loc)
	if task == nil {
		t.Fatal("Expected a task")
	}

	outcome := awaitTask(task)
	if outcome.Kind != OutcomeCommitted {
		t.Fatalf("Expected committed, got %v (err %v)", outcome.Kind, outcome.Err)
	}
	if !f.manager.CurrentLocation().Equal(target.loc) {
		t.Errorf("Current location should be %s, got %s", target.loc, f.manager.CurrentLocation())
	}
	if !f.manager.LastFolderChangeTime().After(before) {
		t.Error("Last change time should advance")
	}
	if got := f.listener.sequence(); !reflect.DeepEqual(got, []string{"changing", "changed"}) {
		t.Errorf("Expected [changing changed], got %v", got)
	}
	if f.panel.commitCount() != 1 {
		t.Errorf("Expected exactly one commit, got %d", f.panel.commitCount())
	}
}

func TestProgressMilestones(t *testing.T) {
	target := dirHandle("/data")
	f := newFixture(target)
	defer f.close()

	task := f.manager.TryChangeCurrentFolder(target.loc)
	awaitTask(task)

	want := []int{10, 25, 50, 75, 95, 0}
	if got := f.panel.progressLog(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected milestones %v, got %v", want, got)
	}
}

func TestEventsDisabledDuringChange(t *testing.T) {
	target := dirHandle("/data")
	f := newFixture(target)
	defer f.close()

	awaitTask(f.manager.TryChangeCurrentFolder(target.loc))

	want := []bool{false, true}
	f.panel.mu.Lock()
	got := f.panel.events
	f.panel.mu.Unlock()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected events gate %v, got %v", want, got)
	}
}

func TestMissingTargetFails(t *testing.T) {
	missing := &fakeHandle{loc: location.MustParse("/gone")}
	f := newFixture(missing)
	defer f.close()

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(missing.loc))
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("Expected failed, got %v", outcome.Kind)
	}
	f.errors.mu.Lock()
	notExist := f.errors.notExist
	f.errors.mu.Unlock()
	if notExist != 1 {
		t.Errorf("HandleFolderDoesNotExist should fire exactly once, got %d", notExist)
	}
	if got := f.listener.sequence(); !reflect.DeepEqual(got, []string{"changing", "failed"}) {
		t.Errorf("Expected [changing failed], got %v", got)
	}
	if f.panel.commitCount() != 0 {
		t.Error("Nothing must be committed on failure")
	}
}

func TestWorkableAncestorSubstitution(t *testing.T) {
	parent := dirHandle("/data")
	missing := &fakeHandle{loc: location.MustParse("/data/gone"), parent: parent}
	f := newFixture(missing, parent)
	defer f.close()

	outcome := awaitTask(f.manager.TryChangeCurrentFolderPath("/data/gone"))
	if outcome.Kind != OutcomeCommitted {
		t.Fatalf("Expected committed on the workable ancestor, got %v", outcome.Kind)
	}
	if !f.manager.CurrentLocation().Equal(parent.loc) {
		t.Errorf("Expected commit at /data, got %s", f.manager.CurrentLocation())
	}
}

func TestUnreadableFolderFails(t *testing.T) {
	locked := dirHandle("/secret")
	locked.unreadable = true
	f := newFixture(locked)
	defer f.close()

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(locked.loc))
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("Expected failed, got %v", outcome.Kind)
	}
	f.errors.mu.Lock()
	failedRead := f.errors.failedRead
	f.errors.mu.Unlock()
	if failedRead != 1 {
		t.Errorf("HandleFailedToReadFolder should fire once, got %d", failedRead)
	}
}

func TestBrowsablePromptCancel(t *testing.T) {
	archive := &fakeHandle{loc: location.MustParse("/data/a.zip"), exists: true, browsable: true}
	f := newFixture(archive)
	defer f.close()
	f.browse.choice = BrowseChoiceCancel

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(archive.loc))
	if outcome.Kind != OutcomeCancelled {
		t.Fatalf("Expected cancelled, got %v", outcome.Kind)
	}
	if f.browse.callCount() != 1 {
		t.Errorf("Prompt should fire once, got %d", f.browse.callCount())
	}
	if f.panel.commitCount() != 0 {
		t.Error("Cancel must not commit")
	}
	if got := f.listener.sequence(); !reflect.DeepEqual(got, []string{"changing", "cancelled"}) {
		t.Errorf("Expected [changing cancelled], got %v", got)
	}
}

func TestBrowsableBrowseCommits(t *testing.T) {
	archive := &fakeHandle{loc: location.MustParse("/data/a.zip"), exists: true, browsable: true}
	f := newFixture(archive)
	defer f.close()
	f.browse.choice = BrowseChoiceBrowse

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(archive.loc))
	if outcome.Kind != OutcomeCommitted {
		t.Fatalf("Expected committed, got %v", outcome.Kind)
	}
}

func TestBrowsableDownloadDefers(t *testing.T) {
	archive := &fakeHandle{loc: location.MustParse("/data/a.zip"), exists: true, browsable: true}
	f := newFixture(archive)
	defer f.close()
	f.browse.choice = BrowseChoiceDownload

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(archive.loc))
	if outcome.Kind != OutcomeCancelled {
		t.Fatalf("Expected a non-committing terminal outcome, got %v", outcome.Kind)
	}
	if f.download.count() != 1 {
		t.Errorf("Download handler should fire once, got %d", f.download.count())
	}
	if f.panel.commitCount() != 0 {
		t.Error("Download must not commit a location change")
	}
}

func TestBrowsableInHistorySkipsPrompt(t *testing.T) {
	archive := &fakeHandle{loc: location.MustParse("/data/a.zip"), exists: true, browsable: true}
	f := newFixture(archive)
	defer f.close()
	f.history.add(archive.loc)
	f.browse.choice = BrowseChoiceCancel // would cancel if asked

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(archive.loc))
	if outcome.Kind != OutcomeCommitted {
		t.Fatalf("Expected committed without prompting, got %v", outcome.Kind)
	}
	if f.browse.callCount() != 0 {
		t.Errorf("Prompt must be skipped for a history hit, got %d calls", f.browse.callCount())
	}
}

func TestBrowsableSelectedFileSkipsPrompt(t *testing.T) {
	archive := &fakeHandle{loc: location.MustParse("/data/a.zip"), exists: true, browsable: true}
	f := newFixture(archive)
	defer f.close()
	f.panel.selected = archive.loc
	f.browse.choice = BrowseChoiceCancel

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(archive.loc))
	if outcome.Kind != OutcomeCommitted {
		t.Fatalf("Expected committed without prompting, got %v", outcome.Kind)
	}
	if f.browse.callCount() != 0 {
		t.Errorf("Prompt must be skipped for the selected entry, got %d calls", f.browse.callCount())
	}
}

func TestPlainFileDefersToDownload(t *testing.T) {
	file := &fakeHandle{loc: location.MustParse("/data/report.pdf"), exists: true}
	f := newFixture(file)
	defer f.close()

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(file.loc))
	if outcome.Kind != OutcomeCancelled {
		t.Fatalf("Expected a non-committing terminal outcome, got %v", outcome.Kind)
	}
	if f.download.count() != 1 {
		t.Errorf("Download handler should fire once, got %d", f.download.count())
	}
	if f.browse.callCount() != 0 {
		t.Error("Plain files never prompt")
	}
}

func TestAuthRequiredUpfrontCancel(t *testing.T) {
	bucket := dirHandle("s3://bucket/data")
	f := newFixture(bucket)
	defer f.close()
	// No decisions queued: the prompt reports cancel.

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(bucket.loc))
	if outcome.Kind != OutcomeCancelled {
		t.Fatalf("Expected cancelled, got %v", outcome.Kind)
	}
	if f.auth.callCount() != 1 {
		t.Errorf("Auth prompt should fire once, got %d", f.auth.callCount())
	}
	if n := f.fs.resolveCount(bucket.loc); n != 0 {
		t.Errorf("Cancelling the upfront prompt must avoid I/O, got %d resolves", n)
	}
}

func TestAuthRetryAfterFailure(t *testing.T) {
	share := dirHandle("s3://bucket/data")
	f := newFixture(share)
	defer f.close()

	mapping := creds.Mapping{
		Credentials: location.Credentials{User: "alice", Password: "pw"},
		Realm:       creds.Realm(share.loc),
	}
	// First prompt (upfront, required scheme) supplies credentials; the
	// resolution then fails with an auth error; the retry prompt supplies
	// them again and resolution succeeds.
	f.auth.decisions = []AuthDecision{{Mapping: &mapping}, {Mapping: &mapping}}
	authedKey := share.loc.WithCredentials(mapping.Credentials)
	f.fs.failNext(authedKey, vfs.NewAuthError(share.loc, errors.New("bad password")))

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(share.loc))
	if outcome.Kind != OutcomeCommitted {
		t.Fatalf("Expected committed after retry, got %v (err %v)", outcome.Kind, outcome.Err)
	}
	if f.auth.callCount() != 2 {
		t.Fatalf("Expected 2 prompts, got %d", f.auth.callCount())
	}
	f.auth.mu.Lock()
	failures := f.auth.failures
	f.auth.mu.Unlock()
	if failures[0] || !failures[1] {
		t.Errorf("Second prompt must carry priorFailure, got %v", failures)
	}

	// Successful credentials are persisted.
	if got := f.store.MatchingCredentials(share.loc); len(got) != 1 || got[0].Credentials.User != "alice" {
		t.Errorf("Credentials should be persisted, got %v", got)
	}
}

func TestAuthRetryCancelFails(t *testing.T) {
	share := dirHandle("s3://bucket/data")
	f := newFixture(share)
	defer f.close()

	mapping := creds.Mapping{
		Credentials: location.Credentials{User: "alice", Password: "pw"},
		Realm:       creds.Realm(share.loc),
	}
	f.auth.decisions = []AuthDecision{{Mapping: &mapping}} // retry prompt cancels
	authedKey := share.loc.WithCredentials(mapping.Credentials)
	f.fs.failNext(authedKey, vfs.NewAuthError(share.loc, errors.New("bad password")))

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(share.loc))
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("Expected failed after cancelling the retry prompt, got %v", outcome.Kind)
	}
	if got := f.listener.sequence(); !reflect.DeepEqual(got, []string{"changing", "failed"}) {
		t.Errorf("Expected [changing failed], got %v", got)
	}
}

func TestGuestCredentialsNotPersisted(t *testing.T) {
	share := dirHandle("s3://bucket/data")
	f := newFixture(share)
	defer f.close()
	f.auth.decisions = []AuthDecision{{GuestSelected: true}}

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(share.loc))
	if outcome.Kind != OutcomeCommitted {
		t.Fatalf("Expected committed, got %v", outcome.Kind)
	}
	if got := f.store.MatchingCredentials(share.loc); len(got) != 0 {
		t.Errorf("Guest selection must not persist credentials, got %v", got)
	}
}

func TestExplicitCredentialsSkipPrompt(t *testing.T) {
	mapping := creds.Mapping{
		Credentials: location.Credentials{User: "alice", Password: "pw"},
		Realm:       creds.Realm(location.MustParse("s3://bucket/")),
	}
	target := location.MustParse("s3://bucket/data")
	authed := dirHandle("s3://bucket/data")
	authed.loc = target.WithCredentials(mapping.Credentials)
	f := newFixture()
	f.fs.add(authed)
	defer f.close()

	outcome := awaitTask(f.manager.TryChangeCurrentFolderWithCredentials(target, mapping))
	if outcome.Kind != OutcomeCommitted {
		t.Fatalf("Expected committed, got %v (err %v)", outcome.Kind, outcome.Err)
	}
	if f.auth.callCount() != 0 {
		t.Errorf("Explicit credentials must skip the prompt, got %d calls", f.auth.callCount())
	}
}

func TestCanonicalizationAppliedOnce(t *testing.T) {
	// /link resolves canonically to /real, which itself claims a further
	// canonical path; only the first rebuild may happen.
	real := dirHandle("/real")
	real.canonical = "/even/more/real"
	link := dirHandle("/link")
	link.canonical = "/real"
	f := newFixture(link, real)
	defer f.close()
	f.config.follow = true

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(link.loc))
	if outcome.Kind != OutcomeCommitted {
		t.Fatalf("Expected committed, got %v", outcome.Kind)
	}
	if !f.manager.CurrentLocation().Equal(real.loc) {
		t.Errorf("Expected a single canonicalization landing on /real, got %s", f.manager.CurrentLocation())
	}
}

func TestNoCanonicalizationWithoutPreference(t *testing.T) {
	link := dirHandle("/link")
	link.canonical = "/real"
	f := newFixture(link, dirHandle("/real"))
	defer f.close()

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(link.loc))
	if outcome.Kind != OutcomeCommitted {
		t.Fatalf("Expected committed, got %v", outcome.Kind)
	}
	if !f.manager.CurrentLocation().Equal(link.loc) {
		t.Errorf("Symlink must be kept without the preference, got %s", f.manager.CurrentLocation())
	}
}

func TestTryKillDuringResolution(t *testing.T) {
	target := dirHandle("/slow")
	f := newFixture(target)
	defer f.close()
	f.fs.block = make(chan struct{})

	task := f.manager.TryChangeCurrentFolder(target.loc)
	if task == nil {
		t.Fatal("Expected a task")
	}
	// Let the task reach the blocking resolve.
	time.Sleep(30 * time.Millisecond)

	if !task.TryKill() {
		t.Error("First kill before the point of no return should be accepted")
	}
	if task.TryKill() {
		t.Error("Second kill should be a no-op")
	}

	outcome := awaitTask(task)
	if outcome.Kind != OutcomeKilled {
		t.Fatalf("Expected killed, got %v", outcome.Kind)
	}
	if got := f.listener.sequence(); !reflect.DeepEqual(got, []string{"changing", "cancelled"}) {
		t.Errorf("Expected [changing cancelled], got %v", got)
	}
	if f.panel.commitCount() != 0 {
		t.Error("Killed task must not commit")
	}
	close(f.fs.block)
}

func TestTryKillAfterCommitReturnsFalse(t *testing.T) {
	target := dirHandle("/data")
	f := newFixture(target)
	defer f.close()
	f.panel.commitBlock = make(chan struct{})

	task := f.manager.TryChangeCurrentFolder(target.loc)
	<-f.panel.commitStarted

	if task.TryKill() {
		t.Error("Kill after the point of no return must be rejected")
	}
	close(f.panel.commitBlock)

	outcome := awaitTask(task)
	if outcome.Kind != OutcomeCommitted {
		t.Fatalf("Expected committed, got %v", outcome.Kind)
	}
	if !f.manager.CurrentLocation().Equal(target.loc) {
		t.Error("Panel location must reflect the committed folder")
	}
}

func TestListingFailureCommitsEmpty(t *testing.T) {
	target := dirHandle("/flaky")
	target.listErr = errors.New("read error")
	f := newFixture(target)
	defer f.close()

	outcome := awaitTask(f.manager.TryChangeCurrentFolder(target.loc))
	if outcome.Kind != OutcomeCommitted {
		t.Fatalf("A folder that cannot be listed still commits, got %v", outcome.Kind)
	}
	f.panel.mu.Lock()
	entries := f.panel.lastEntries
	f.panel.mu.Unlock()
	if len(entries) != 0 {
		t.Errorf("Expected empty listing, got %v", entries)
	}
}

func TestTimestampAdvancesBeforeCommit(t *testing.T) {
	target := dirHandle("/data")
	f := newFixture(target)
	defer f.close()
	f.panel.tsSource = f.manager.LastFolderChangeTime

	before := time.Now()
	awaitTask(f.manager.TryChangeCurrentFolder(target.loc))

	f.panel.mu.Lock()
	tsAtCommit := f.panel.tsAtCommit
	f.panel.mu.Unlock()
	if tsAtCommit.Before(before) {
		t.Error("Timestamp must be advanced before the panel commit call")
	}
}

func TestFileToSelectReachesPanel(t *testing.T) {
	target := dirHandle("/data")
	f := newFixture(target)
	defer f.close()

	awaitTask(f.manager.TryChangeCurrentFolderWithSelect(target.loc, "notes.txt", false))

	f.panel.mu.Lock()
	sel := f.panel.lastSelect
	f.panel.mu.Unlock()
	if sel != "notes.txt" {
		t.Errorf("Expected select hint notes.txt, got %q", sel)
	}
}
