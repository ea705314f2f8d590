package nav

import (
	"context"
	"strings"

	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/logging"
	"github.com/dualpane/navigator/internal/vfs"
)

// Classification of a resolved handle.
type Classification int

const (
	ClassMissing Classification = iota
	ClassDirectory
	ClassBrowsable
	ClassPlainFile
)

func (c Classification) String() string {
	switch c {
	case ClassDirectory:
		return "directory"
	case ClassBrowsable:
		return "browsable"
	case ClassPlainFile:
		return "file"
	default:
		return "missing"
	}
}

// maxAncestorSteps bounds the workable-ancestor walk against degenerate
// parent chains.
const maxAncestorSteps = 64

// Resolver holds the pure navigation decision logic: classification,
// workable-ancestor search and the canonicalization predicate.
type Resolver struct {
	registry *vfs.Registry
	config   Config
	logger   *logging.Logger

	// volumes enumerates local root volumes for the last-resort fallback.
	volumes func() []string
}

// NewResolver creates a resolver over the given scheme registry.
func NewResolver(registry *vfs.Registry, config Config, volumes func() []string, logger *logging.Logger) *Resolver {
	return &Resolver{registry: registry, config: config, volumes: volumes, logger: logger}
}

// Classify buckets a handle into directory, browsable container, plain file
// or missing. The error is reserved for I/O failures distinct from plain
// non-existence.
func (r *Resolver) Classify(ctx context.Context, h vfs.Handle) (Classification, error) {
	exists, err := h.Exists(ctx)
	if err != nil {
		return ClassMissing, err
	}
	if !exists {
		return ClassMissing, nil
	}
	if h.IsDirectory() {
		return ClassDirectory, nil
	}
	if h.IsBrowsable() {
		return ClassBrowsable, nil
	}
	return ClassPlainFile, nil
}

// FindWorkableAncestor walks the parent chain of start until a handle
// exists, falling back to the first existing local root volume. Returns nil
// when nothing workable exists, and also when the only candidate found is
// start itself: a parent chain that cycles back must report no progress
// rather than loop.
func (r *Resolver) FindWorkableAncestor(ctx context.Context, start vfs.Handle) vfs.Handle {
	cur := start
	for i := 0; i < maxAncestorSteps; i++ {
		parent, ok := cur.Parent()
		if !ok {
			break
		}
		// Self-referential parent: no progress possible on this chain.
		if parent.Location().Equal(cur.Location()) {
			break
		}
		cur = parent

		exists, err := cur.Exists(ctx)
		if err != nil {
			continue
		}
		if exists {
			if cur.Location().Equal(start.Location()) {
				return nil
			}
			return cur
		}
	}

	for _, root := range r.volumes() {
		loc, err := location.Parse(root)
		if err != nil {
			continue
		}
		h, err := r.registry.Resolve(ctx, loc)
		if err != nil {
			continue
		}
		exists, err := h.Exists(ctx)
		if err != nil || !exists {
			continue
		}
		if h.Location().Equal(start.Location()) {
			return nil
		}
		return h
	}
	return nil
}

// NeedsCanonicalization reports whether the task should rebuild its target
// from the canonical path: the paths differ AND either the scheme always
// follows canonical paths or the symlink-follow preference is set.
func (r *Resolver) NeedsCanonicalization(ctx context.Context, h vfs.Handle) bool {
	scheme := h.Location().Scheme()
	if !vfs.FollowsCanonicalAlways(scheme) && !r.config.FollowSymlinks() {
		return false
	}
	canonical, err := h.CanonicalPath(ctx)
	if err != nil {
		r.logger.Debug().Str("location", h.Location().Redacted()).Err(err).
			Msg("Canonical path lookup failed")
		return false
	}
	loc := h.Location()
	if strings.Contains(canonical, "://") {
		return canonical != loc.Scheme()+"://"+loc.Host()+loc.Path()
	}
	return canonical != loc.Path()
}
