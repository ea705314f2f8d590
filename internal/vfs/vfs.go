// Package vfs defines the Handle abstraction: a resolved binding from a
// Location to a queryable file-like object, plus the scheme registry that
// resolves Locations into Handles. Backends live in the subpackages localfs,
// archivefs, httpfs and s3fs.
package vfs

import (
	"context"
	"fmt"
	"sync"

	"github.com/dualpane/navigator/internal/location"
)

// Entry is one child of a listed container.
type Entry struct {
	Name      string
	Location  location.Location
	Directory bool
	Size      int64
}

// Handle is a resolved binding from a Location to an accessible object.
// Implementations are cheap value-ish objects; expensive I/O happens only in
// the methods taking a context.
type Handle interface {
	// Location returns the Location the handle was resolved from.
	Location() location.Location

	// Exists reports whether the object exists. The error is reserved for
	// I/O failures distinct from plain non-existence.
	Exists(ctx context.Context) (bool, error)

	// IsDirectory reports whether the object is a plain directory.
	IsDirectory() bool

	// IsBrowsable reports whether the object is a container that can be
	// listed without being a directory (an archive, an HTML index).
	// Directories are browsable by definition.
	IsBrowsable() bool

	// CanRead reports whether the object's contents may be listed/read.
	CanRead(ctx context.Context) (bool, error)

	// CanonicalPath resolves symlinks/redirects to the object's canonical
	// absolute path.
	CanonicalPath(ctx context.Context) (string, error)

	// Parent returns a handle on the parent container, or false at a root.
	// Parent never performs I/O.
	Parent() (Handle, bool)

	// List enumerates the container's children.
	List(ctx context.Context) ([]Entry, error)
}

// Resolver turns a Location of one scheme into a Handle. Resolution may
// perform I/O (a stat, a HEAD request) and fails explicitly; a nil Handle is
// never paired with a nil error.
type Resolver interface {
	Resolve(ctx context.Context, loc location.Location) (Handle, error)
}

// Registry maps schemes to resolvers. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]Resolver)}
}

// Register binds a scheme to a resolver, replacing any previous binding.
func (r *Registry) Register(scheme string, resolver Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[scheme] = resolver
}

// Resolve dispatches to the resolver registered for the location's scheme.
func (r *Registry) Resolve(ctx context.Context, loc location.Location) (Handle, error) {
	r.mu.RLock()
	resolver, ok := r.resolvers[loc.Scheme()]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no resolver for scheme %q", loc.Scheme())
	}
	return resolver.Resolve(ctx, loc)
}

// Schemes returns the registered schemes.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.resolvers))
	for s := range r.resolvers {
		out = append(out, s)
	}
	return out
}
