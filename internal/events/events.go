// Package events provides the cross-panel event bus. Location lifecycle,
// progress and volume-space events are published here for any interested
// observer (status bar, history view, frontends). The bus observes the core,
// it never drives it: per-panel listener fan-out with ordering guarantees is
// handled by the nav package directly.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dualpane/navigator/internal/constants"
	"github.com/dualpane/navigator/internal/location"
)

// EventType defines the types of events that can be emitted.
type EventType string

const (
	// Location lifecycle events. For one change attempt the bus sees
	// "changing" followed by exactly one of changed/cancelled/failed.
	EventLocationChanging  EventType = "location_changing"
	EventLocationChanged   EventType = "location_changed"
	EventLocationCancelled EventType = "location_cancelled"
	EventLocationFailed    EventType = "location_failed"

	// EventProgress carries the coarse progress milestones of a change task.
	EventProgress EventType = "progress"

	// EventVolumeSpace carries a free-space sample of the current volume.
	EventVolumeSpace EventType = "volume_space"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// LocationEvent represents a location lifecycle transition on one panel.
type LocationEvent struct {
	BaseEvent
	PanelID  string
	Location location.Location
}

// ProgressEvent represents a change-task progress milestone.
type ProgressEvent struct {
	BaseEvent
	PanelID string
	Percent int // 0..100
}

// VolumeSpaceEvent represents a free-space sample.
type VolumeSpaceEvent struct {
	BaseEvent
	Path           string
	AvailableBytes int64
	TotalBytes     int64
}

// EventBus manages event subscriptions and publishing.
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // count of events dropped due to full buffers
}

// NewEventBus creates a new event bus with the specified buffer size.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events.
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// PublishLocation is a convenience method for publishing a lifecycle event.
func (eb *EventBus) PublishLocation(eventType EventType, panelID string, loc location.Location) {
	eb.Publish(&LocationEvent{
		BaseEvent: BaseEvent{EventType: eventType, Time: time.Now()},
		PanelID:   panelID,
		Location:  loc,
	})
}

// PublishProgress is a convenience method for publishing a progress event.
func (eb *EventBus) PublishProgress(panelID string, percent int) {
	eb.Publish(&ProgressEvent{
		BaseEvent: BaseEvent{EventType: EventProgress, Time: time.Now()},
		PanelID:   panelID,
		Percent:   percent,
	})
}

// Unsubscribe removes a subscription channel from a specific event type.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types.
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// Close shuts down the event bus and closes all channels.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// DroppedEventCount returns the total number of events dropped due to full
// buffers. Useful for detecting if buffer sizes need adjustment.
func (eb *EventBus) DroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
