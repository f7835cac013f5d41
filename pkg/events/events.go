// Package events carries session, tracking, plane, tap, and load-progress
// notifications from the controller to the host. Delivery is
// fire-and-forget over a single live subscription: emitters never block,
// and a slow host loses events rather than stalling the frame loop.
package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/arlow/armature/pkg/scene"
)

// Kind discriminates event payloads.
type Kind int

const (
	SessionStateChanged Kind = iota
	TrackingStateChanged
	PlaneDetected
	NodeTapped
	ModelLoadProgress
)

func (k Kind) String() string {
	switch k {
	case SessionStateChanged:
		return "sessionStateChanged"
	case TrackingStateChanged:
		return "trackingStateChanged"
	case PlaneDetected:
		return "planeDetected"
	case NodeTapped:
		return "nodeTapped"
	case ModelLoadProgress:
		return "modelLoadProgress"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalJSON emits the event name rather than the ordinal.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Event is one notification. Kind selects which payload fields are
// meaningful; the rest stay at their zero values.
type Event struct {
	Kind Kind `json:"kind"`

	// State names the session state for SessionStateChanged.
	State string `json:"state,omitempty"`

	// IsTracking is the per-frame tracking flag for TrackingStateChanged.
	// It is emitted every frame without change-deduplication.
	IsTracking bool `json:"isTracking"`

	// Plane is the detected or updated plane for PlaneDetected. The same
	// plane id may arrive repeatedly as its extent grows.
	Plane *scene.Plane `json:"plane,omitempty"`

	// NodeID names the tapped node for NodeTapped.
	NodeID string `json:"nodeId,omitempty"`

	// Progress is the download fraction in [0, 1] for ModelLoadProgress,
	// or -1 when the total size is unknown.
	Progress float64 `json:"progress"`
}

const defaultBuffer = 32

// Bridge fans events from any number of emitters to at most one live
// subscriber.
type Bridge struct {
	log *zap.Logger

	mu      sync.Mutex
	ch      chan Event
	closed  bool
	dropped uint64
}

// NewBridge builds a bridge with no subscriber. A nil logger disables
// logging.
func NewBridge(log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{log: log}
}

// Subscribe returns a fresh event channel and closes the previous
// subscriber's channel: the most recent subscription is the only live
// one. A non-positive buffer takes the default. After Close the returned
// channel is already closed.
func (b *Bridge) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch
	}
	if b.ch != nil {
		close(b.ch)
	}
	b.ch = ch
	return ch
}

// Publish delivers ev to the live subscriber if there is one with buffer
// space, and drops it otherwise. It never blocks.
func (b *Bridge) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.ch == nil {
		b.dropped++
		return
	}
	select {
	case b.ch <- ev:
	default:
		b.dropped++
		b.log.Debug("event dropped on full subscriber",
			zap.Stringer("kind", ev.Kind))
	}
}

// Dropped reports how many events were published with no subscriber or a
// full buffer.
func (b *Bridge) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close ends the live subscription. Publish becomes a no-op; further
// Subscribe calls return closed channels. Safe to call more than once.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.ch != nil {
		close(b.ch)
		b.ch = nil
	}
}
