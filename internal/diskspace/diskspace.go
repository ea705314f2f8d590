// Package diskspace reports free space for the volume backing a path and
// enumerates mounted volumes. The Poller samples the active panel's volume on
// the shared executor and publishes the result on the event bus for the
// status bar.
package diskspace

import (
	"context"
	"sync"
	"time"

	"github.com/dualpane/navigator/internal/constants"
	"github.com/dualpane/navigator/internal/events"
	"github.com/dualpane/navigator/internal/executor"
	"github.com/dualpane/navigator/internal/logging"
)

// Space is one free-space sample for a volume.
type Space struct {
	Path           string
	AvailableBytes int64
	TotalBytes     int64
}

// Usage samples free and total bytes for the volume containing path.
// Implemented per OS in diskspace_unix.go / diskspace_windows.go.
func Usage(path string) (Space, error) {
	return usage(path)
}

// Volumes enumerates mounted volume roots. Best effort: on failure it falls
// back to the filesystem root so the caller always has at least one volume.
func Volumes() []string {
	return volumes()
}

// Poller periodically samples the volume of a watched path and publishes
// VolumeSpaceEvents. The watched path follows the current folder of the
// active panel; SetPath switches volumes without restarting the poller.
type Poller struct {
	exec   *executor.Executor
	bus    *events.EventBus
	logger *logging.Logger

	mu     sync.Mutex
	path   string
	handle *executor.Handle
}

// NewPoller creates a poller; it is idle until Start.
func NewPoller(exec *executor.Executor, bus *events.EventBus, logger *logging.Logger) *Poller {
	return &Poller{exec: exec, bus: bus, logger: logger, path: "/"}
}

// SetPath switches the sampled volume and publishes a fresh sample right
// away so the status bar does not show the previous volume's numbers.
func (p *Poller) SetPath(path string) {
	if path == "" {
		return
	}
	p.mu.Lock()
	p.path = path
	p.mu.Unlock()
	p.sample()
}

// Start schedules periodic sampling. interval <= 0 uses the default.
func (p *Poller) Start(interval time.Duration) {
	if interval <= 0 {
		interval = constants.VolumeSpacePollInterval
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle != nil {
		return
	}
	p.handle = p.exec.ScheduleWithFixedDelay("volume-space", func(ctx context.Context) {
		p.sample()
	}, 0, interval)
}

// Stop cancels the periodic sampling.
func (p *Poller) Stop() {
	p.mu.Lock()
	h := p.handle
	p.handle = nil
	p.mu.Unlock()
	if h != nil {
		h.Cancel(false)
	}
}

func (p *Poller) sample() {
	p.mu.Lock()
	path := p.path
	p.mu.Unlock()

	s, err := Usage(path)
	if err != nil {
		p.logger.Debug().Str("path", path).Err(err).Msg("Volume space sample failed")
		return
	}
	p.bus.Publish(&events.VolumeSpaceEvent{
		BaseEvent:      events.BaseEvent{EventType: events.EventVolumeSpace, Time: time.Now()},
		Path:           s.Path,
		AvailableBytes: s.AvailableBytes,
		TotalBytes:     s.TotalBytes,
	})
}
