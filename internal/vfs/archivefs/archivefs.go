// Package archivefs exposes zip archives as browsable containers. A zip
// location addresses the archive file and an inner path separated by "!":
// zip:///tmp/a.zip!/docs. The archive root is the canonical example of a
// browsable non-directory: it can be entered and listed, but it is a file.
package archivefs

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/vfs"
)

// Resolver resolves zip locations.
type Resolver struct{}

// NewResolver creates a zip resolver.
func NewResolver() *Resolver { return &Resolver{} }

// SplitPath splits a zip location path into the archive file path and the
// inner path. The inner path is empty for the archive root.
func SplitPath(p string) (archive, inner string) {
	if i := strings.Index(p, "!"); i >= 0 {
		inner = strings.Trim(p[i+1:], "/")
		if inner == "." {
			inner = ""
		}
		return p[:i], inner
	}
	return p, ""
}

// Resolve implements vfs.Resolver. Resolution stats the archive file but
// defers reading the zip directory until the handle is queried.
func (r *Resolver) Resolve(ctx context.Context, loc location.Location) (vfs.Handle, error) {
	archive, inner := SplitPath(loc.Path())
	h := &Handle{loc: loc, archive: archive, inner: inner}

	info, err := os.Stat(archive)
	switch {
	case err == nil:
		h.archiveExists = !info.IsDir()
	case os.IsNotExist(err):
		h.archiveExists = false
	case os.IsPermission(err):
		return nil, fmt.Errorf("%s: %w", archive, vfs.ErrPermissionDenied)
	default:
		return nil, fmt.Errorf("stat %s: %w", archive, err)
	}
	return h, nil
}

// Handle is a resolved binding to an archive or an entry inside it.
type Handle struct {
	loc           location.Location
	archive       string // local path of the zip file
	inner         string // entry path inside the archive, "" for the root
	archiveExists bool
}

// Location implements vfs.Handle.
func (h *Handle) Location() location.Location { return h.loc }

// IsDirectory implements vfs.Handle. Entries inside the archive that end in
// "/" (or have children) count as directories; the archive root does not.
func (h *Handle) IsDirectory() bool {
	if h.inner == "" {
		return false
	}
	kind, _ := h.entryKind()
	return kind == entryDir
}

// IsBrowsable implements vfs.Handle.
func (h *Handle) IsBrowsable() bool {
	if h.inner == "" {
		return h.archiveExists
	}
	kind, _ := h.entryKind()
	return kind == entryDir
}

// Exists implements vfs.Handle.
func (h *Handle) Exists(ctx context.Context) (bool, error) {
	if !h.archiveExists {
		// Re-stat: the archive may have appeared since resolution.
		info, err := os.Stat(h.archive)
		if err != nil || info.IsDir() {
			return false, nil
		}
		h.archiveExists = true
	}
	if h.inner == "" {
		return true, nil
	}
	kind, err := h.entryKind()
	if err != nil {
		return false, err
	}
	return kind != entryMissing, nil
}

// CanRead implements vfs.Handle: readable if the zip directory parses.
func (h *Handle) CanRead(ctx context.Context) (bool, error) {
	rc, err := zip.OpenReader(h.archive)
	if err != nil {
		if os.IsPermission(err) {
			return false, nil
		}
		return false, err
	}
	rc.Close()
	return true, nil
}

// CanonicalPath implements vfs.Handle: symlinks on the archive path are
// resolved, the inner path is already canonical.
func (h *Handle) CanonicalPath(ctx context.Context) (string, error) {
	resolved, err := filepath.EvalSymlinks(h.archive)
	if err != nil {
		return "", err
	}
	if h.inner == "" {
		return resolved + "!/", nil
	}
	return resolved + "!/" + h.inner, nil
}

// Parent implements vfs.Handle. The parent of the archive root is the
// archive file itself, as a local location.
func (h *Handle) Parent() (vfs.Handle, bool) {
	parentLoc, ok := h.loc.Parent()
	if !ok {
		return nil, false
	}
	if parentLoc.Scheme() != location.SchemeZip {
		// Out of archivefs territory; the caller re-resolves through the
		// registry. Return a thin handle over the archive file.
		return &archiveFileHandle{loc: parentLoc, path: h.archive}, true
	}
	_, inner := SplitPath(parentLoc.Path())
	return &Handle{loc: parentLoc, archive: h.archive, inner: inner, archiveExists: h.archiveExists}, true
}

// List implements vfs.Handle.
func (h *Handle) List(ctx context.Context) ([]vfs.Entry, error) {
	rc, err := zip.OpenReader(h.archive)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", h.archive, err)
	}
	defer rc.Close()

	prefix := h.inner
	if prefix != "" {
		prefix += "/"
	}

	seen := make(map[string]vfs.Entry)
	for _, f := range rc.File {
		name := strings.Trim(f.Name, "/")
		if !strings.HasPrefix(name, prefix) || name == h.inner {
			continue
		}
		rest := name[len(prefix):]
		if rest == "" {
			continue
		}

		child, _, nested := strings.Cut(rest, "/")
		childPath := prefix + child
		if existing, ok := seen[child]; ok {
			if nested && !existing.Directory {
				existing.Directory = true
				seen[child] = existing
			}
			continue
		}

		entry := vfs.Entry{
			Name:      child,
			Location:  h.loc.WithPath(h.archive + "!/" + childPath),
			Directory: nested || strings.HasSuffix(f.Name, "/"),
		}
		if !entry.Directory {
			entry.Size = int64(f.UncompressedSize64)
		}
		seen[child] = entry
	}

	out := make([]vfs.Entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type entryKindT int

const (
	entryMissing entryKindT = iota
	entryFile
	entryDir
)

// entryKind scans the zip directory for the inner path.
func (h *Handle) entryKind() (entryKindT, error) {
	rc, err := zip.OpenReader(h.archive)
	if err != nil {
		return entryMissing, err
	}
	defer rc.Close()

	want := h.inner
	for _, f := range rc.File {
		name := strings.Trim(f.Name, "/")
		if name == want {
			if strings.HasSuffix(f.Name, "/") {
				return entryDir, nil
			}
			return entryFile, nil
		}
		// Implicit directory: some zips omit directory entries.
		if strings.HasPrefix(name, want+"/") {
			return entryDir, nil
		}
	}
	return entryMissing, nil
}

// archiveFileHandle is the minimal view of the archive file used when
// walking out of the archive; full local semantics come from re-resolving
// through the registry.
type archiveFileHandle struct {
	loc  location.Location
	path string
}

func (h *archiveFileHandle) Location() location.Location { return h.loc }
func (h *archiveFileHandle) IsDirectory() bool           { return false }
func (h *archiveFileHandle) IsBrowsable() bool           { return true }

func (h *archiveFileHandle) Exists(ctx context.Context) (bool, error) {
	info, err := os.Stat(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (h *archiveFileHandle) CanRead(ctx context.Context) (bool, error) {
	f, err := os.Open(h.path)
	if err != nil {
		if os.IsPermission(err) {
			return false, nil
		}
		return false, err
	}
	f.Close()
	return true, nil
}

func (h *archiveFileHandle) CanonicalPath(ctx context.Context) (string, error) {
	return filepath.EvalSymlinks(h.path)
}

func (h *archiveFileHandle) Parent() (vfs.Handle, bool) {
	parentLoc, ok := h.loc.Parent()
	if !ok {
		return nil, false
	}
	return &archiveFileHandle{loc: parentLoc, path: path.Dir(h.path)}, true
}

func (h *archiveFileHandle) List(ctx context.Context) ([]vfs.Entry, error) {
	zh := &Handle{loc: h.loc, archive: h.path, archiveExists: true}
	return zh.List(ctx)
}
