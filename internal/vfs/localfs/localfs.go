// Package localfs resolves file-scheme locations against the local disk.
// Missing paths still resolve to a handle (Exists reports false), so that
// the workable-ancestor walk can climb toward an existing directory without
// resolution errors getting in the way.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/vfs"
	"github.com/dualpane/navigator/internal/vfs/archivefs"
)

// Resolver resolves file locations.
type Resolver struct{}

// NewResolver creates a local resolver.
func NewResolver() *Resolver { return &Resolver{} }

// Resolve implements vfs.Resolver. It stats the path once; the result is
// cached on the handle and refreshed by Exists.
func (r *Resolver) Resolve(ctx context.Context, loc location.Location) (vfs.Handle, error) {
	h := &Handle{loc: loc, path: loc.Path()}
	h.stat()
	return h, nil
}

// Handle is a resolved local path.
type Handle struct {
	loc  location.Location
	path string

	exists bool
	dir    bool
}

func (h *Handle) stat() {
	info, err := os.Stat(h.path)
	if err != nil {
		h.exists = false
		h.dir = false
		return
	}
	h.exists = true
	h.dir = info.IsDir()
}

// Location implements vfs.Handle.
func (h *Handle) Location() location.Location { return h.loc }

// Exists implements vfs.Handle. It re-stats so callers observe changes made
// since resolution.
func (h *Handle) Exists(ctx context.Context) (bool, error) {
	h.stat()
	return h.exists, nil
}

// IsDirectory implements vfs.Handle.
func (h *Handle) IsDirectory() bool { return h.dir }

// IsBrowsable implements vfs.Handle. Directories always; zip files count as
// browsable containers and delegate listing to archivefs.
func (h *Handle) IsBrowsable() bool {
	if h.dir {
		return true
	}
	return h.exists && isArchive(h.path)
}

func isArchive(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".zip")
}

// CanRead implements vfs.Handle by attempting an open.
func (h *Handle) CanRead(ctx context.Context) (bool, error) {
	f, err := os.Open(h.path)
	if err != nil {
		if os.IsPermission(err) {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, fmt.Errorf("%s: %w", h.path, vfs.ErrNotFound)
		}
		return false, err
	}
	f.Close()
	return true, nil
}

// CanonicalPath implements vfs.Handle via symlink resolution.
func (h *Handle) CanonicalPath(ctx context.Context) (string, error) {
	resolved, err := filepath.EvalSymlinks(h.path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(resolved), nil
}

// Parent implements vfs.Handle without touching the disk.
func (h *Handle) Parent() (vfs.Handle, bool) {
	parentLoc, ok := h.loc.Parent()
	if !ok {
		return nil, false
	}
	p := &Handle{loc: parentLoc, path: parentLoc.Path()}
	p.stat()
	return p, true
}

// List implements vfs.Handle. Zip files are listed through archivefs as if
// they were folders.
func (h *Handle) List(ctx context.Context) ([]vfs.Entry, error) {
	if !h.dir && isArchive(h.path) {
		return h.listArchive(ctx)
	}

	entries, err := os.ReadDir(h.path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, fmt.Errorf("%s: %w", h.path, vfs.ErrNotFound)
		case os.IsPermission(err):
			return nil, fmt.Errorf("%s: %w", h.path, vfs.ErrPermissionDenied)
		default:
			return nil, err
		}
	}

	out := make([]vfs.Entry, 0, len(entries))
	for _, de := range entries {
		e := vfs.Entry{
			Name:      de.Name(),
			Location:  h.loc.WithPath(h.path + "/" + de.Name()),
			Directory: de.IsDir(),
		}
		if info, err := de.Info(); err == nil && !de.IsDir() {
			e.Size = info.Size()
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (h *Handle) listArchive(ctx context.Context) ([]vfs.Entry, error) {
	zipLoc, err := location.Parse("zip://" + h.path + "!/")
	if err != nil {
		return nil, err
	}
	zh, err := archivefs.NewResolver().Resolve(ctx, zipLoc)
	if err != nil {
		return nil, err
	}
	return zh.List(ctx)
}
