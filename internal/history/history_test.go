package history

import (
	"fmt"
	"testing"

	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/nav"
)

func TestAddAndContains(t *testing.T) {
	s := NewStore(10)
	loc := location.MustParse("/tmp/docs")

	if s.Contains(loc) {
		t.Error("Empty store must not contain anything")
	}
	s.Add(loc)
	if !s.Contains(loc) {
		t.Error("Added location should be contained")
	}
}

func TestContainsIgnoresCredentials(t *testing.T) {
	s := NewStore(10)
	s.Add(location.MustParse("s3://bucket/data"))

	withCreds := location.MustParse("s3://bucket/data").
		WithCredentials(location.Credentials{User: "u", Password: "p"})
	if !s.Contains(withCreds) {
		t.Error("Same resource with different credentials should still match")
	}
}

func TestDeduplicationMovesToFront(t *testing.T) {
	s := NewStore(10)
	a := location.MustParse("/a")
	b := location.MustParse("/b")
	s.Add(a)
	s.Add(b)
	s.Add(a)

	visited := s.Visited()
	if len(visited) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(visited))
	}
	if !visited[0].Equal(a) || !visited[1].Equal(b) {
		t.Errorf("Expected [a b] most recent first, got %v", visited)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Add(location.MustParse(fmt.Sprintf("/dir%d", i)))
	}

	if s.Contains(location.MustParse("/dir0")) || s.Contains(location.MustParse("/dir1")) {
		t.Error("Oldest entries should have been evicted")
	}
	for i := 2; i < 5; i++ {
		if !s.Contains(location.MustParse(fmt.Sprintf("/dir%d", i))) {
			t.Errorf("Entry /dir%d should survive", i)
		}
	}
}

func TestRecordsCommittedChanges(t *testing.T) {
	s := NewStore(10)
	var _ nav.Listener = s

	s.LocationChanged(nav.LocationEvent{PanelID: "left", Location: location.MustParse("/visited")})
	s.LocationCancelled(nav.LocationEvent{PanelID: "left", Location: location.MustParse("/cancelled")})
	s.LocationFailed(nav.LocationEvent{PanelID: "left", Location: location.MustParse("/failed")})

	if !s.Contains(location.MustParse("/visited")) {
		t.Error("Committed location should be recorded")
	}
	if s.Contains(location.MustParse("/cancelled")) || s.Contains(location.MustParse("/failed")) {
		t.Error("Non-committed outcomes must not be recorded")
	}
}
