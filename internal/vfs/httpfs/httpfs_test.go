package httpfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/logging"
	"github.com/dualpane/navigator/internal/vfs"
)

func testResolver() *Resolver {
	return NewResolver(logging.NewNop())
}

func locFor(t *testing.T, srv *httptest.Server, path string) location.Location {
	t.Helper()
	loc, err := location.Parse(srv.URL + path)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return loc
}

func TestResolveHTMLPageIsBrowsable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>index</body></html>"))
	}))
	defer srv.Close()

	h, err := testResolver().Resolve(context.Background(), locFor(t, srv, "/docs/"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	exists, err := h.Exists(context.Background())
	if err != nil || !exists {
		t.Errorf("Expected existing handle, got exists=%v err=%v", exists, err)
	}
	if !h.IsBrowsable() {
		t.Error("HTML page should be browsable")
	}
	if h.IsDirectory() {
		t.Error("URL should not be a directory")
	}
}

func TestResolveBinaryIsNotBrowsable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0x1, 0x2})
	}))
	defer srv.Close()

	h, err := testResolver().Resolve(context.Background(), locFor(t, srv, "/file.bin"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if h.IsBrowsable() {
		t.Error("Binary content should not be browsable")
	}
}

func TestResolveNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	h, err := testResolver().Resolve(context.Background(), locFor(t, srv, "/missing"))
	if err != nil {
		t.Fatalf("Resolve of a 404 should return a handle, got error: %v", err)
	}
	exists, err := h.Exists(context.Background())
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("404 target must not exist")
	}
}

func TestResolveUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="test"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	_, err := testResolver().Resolve(context.Background(), locFor(t, srv, "/secret/"))
	if _, ok := vfs.IsAuthError(err); !ok {
		t.Fatalf("Expected AuthError, got %v", err)
	}

	// With credentials the same URL resolves.
	loc := locFor(t, srv, "/secret/").WithCredentials(location.Credentials{User: "u", Password: "p"})
	h, err := testResolver().Resolve(context.Background(), loc)
	if err != nil {
		t.Fatalf("Resolve with credentials failed: %v", err)
	}
	if !h.IsBrowsable() {
		t.Error("Authenticated page should be browsable")
	}
}

func TestCanonicalPathFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	h, err := testResolver().Resolve(context.Background(), locFor(t, srv, "/old/"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	canonical, err := h.CanonicalPath(context.Background())
	if err != nil {
		t.Fatalf("CanonicalPath failed: %v", err)
	}
	if !strings.HasSuffix(canonical, "/new/") {
		t.Errorf("Expected canonical path to follow the redirect, got %q", canonical)
	}
}

func TestListParsesAnchors(t *testing.T) {
	page := `<html><body>
		<a href="../">Parent</a>
		<a href="sub/">sub/</a>
		<a href="file.txt">file.txt</a>
		<a href="file.txt">duplicate</a>
		<a href="https://elsewhere.example.com/x">offsite</a>
	</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	h, err := testResolver().Resolve(context.Background(), locFor(t, srv, "/docs/"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	entries, err := h.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Name != "file.txt" || entries[0].Directory {
		t.Errorf("Expected file.txt entry, got %+v", entries[0])
	}
	if entries[1].Name != "sub" || !entries[1].Directory {
		t.Errorf("Expected sub directory entry, got %+v", entries[1])
	}
}

func TestHeadFallsBackToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	h, err := testResolver().Resolve(context.Background(), locFor(t, srv, "/"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !h.IsBrowsable() {
		t.Error("GET fallback should classify the HTML page as browsable")
	}
}
