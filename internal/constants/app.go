// Package constants centralizes tunables shared across the navigation core.
package constants

import (
	"time"
)

// Executor pool
const (
	// DefaultWorkers - size of the shared worker pool. Folder changes,
	// internal folder sets and periodic pollers all run on these workers.
	DefaultWorkers = 8

	// ShutdownTimeout - per-phase wait of the two-phase executor drain:
	// graceful wait, forced cancel, second bounded wait.
	ShutdownTimeout = 60 * time.Second
)

// Event bus buffers
const (
	// EventBusDefaultBuffer - per-subscriber channel buffer. Publishing is
	// non-blocking; a full buffer drops the event and bumps a counter.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - upper bound on a requested buffer size.
	EventBusMaxBuffer = 10000
)

// Folder monitoring
const (
	// DefaultPollInterval - fixed delay between folder freshness checks when
	// the OS watcher cannot cover the current folder (remote locations).
	DefaultPollInterval = 10 * time.Second

	// MinPollInterval - floor for the configurable poll interval.
	MinPollInterval = time.Second

	// VolumeSpacePollInterval - fixed delay between free-space samples of
	// the current volume.
	VolumeSpacePollInterval = 30 * time.Second
)

// History
const (
	// HistoryCapacity - bounded size of the global location history; the
	// oldest entry is evicted first.
	HistoryCapacity = 100
)

// Remote I/O
const (
	// HTTPRetryMax - retry attempts for HTTP handle probes.
	HTTPRetryMax = 3

	// HTTPTimeout - per-request timeout for HTTP handle probes.
	HTTPTimeout = 30 * time.Second

	// S3ListPageSize - page size when probing S3 prefixes for existence.
	S3ListPageSize = 1000
)
