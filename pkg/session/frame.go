package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/arlow/armature/pkg/events"
	"github.com/arlow/armature/pkg/queue"
	"github.com/arlow/armature/pkg/scene"
)

// OnFrame schedules one frame of session work: tracking-state
// publication, lifecycle transitions, and plane ingestion. The call
// never blocks the render thread; the work runs on the affinity queue.
// Frames delivered while paused or before Initialize are dropped.
func (c *Controller) OnFrame() {
	c.mu.Lock()
	skip := c.disposed || !c.initialized || c.paused
	c.mu.Unlock()
	if skip {
		return
	}
	c.q.Enqueue(queue.Func(c.frame))
}

// frame runs on the queue goroutine.
func (c *Controller) frame() {
	_, tracking := c.eng.CurrentCameraPose()

	// Tracking state goes out every frame, changed or not. Hosts use it
	// as a liveness signal.
	c.ev.Publish(events.Event{Kind: events.TrackingStateChanged, IsTracking: tracking})

	c.mu.Lock()
	switch {
	case tracking && (c.state == StateReady || c.state == StateTrackingLost):
		c.setState(StateTracking)
	case !tracking && c.state == StateTracking:
		c.setState(StateTrackingLost)
	}
	c.mu.Unlock()

	for _, p := range c.eng.UpdatedPlanes() {
		c.planes.put(p)
		plane := p
		c.ev.Publish(events.Event{Kind: events.PlaneDetected, Plane: &plane})
	}
}

// HandleTap resolves a screen tap against placed nodes and emits
// nodeTapped for the nearest hit. Taps on empty space are silent, as
// are taps before Initialize.
func (c *Controller) HandleTap(x, y float64) {
	if err := c.requireReady(); err != nil {
		return
	}
	c.q.Enqueue(queue.Func(func() {
		ref, ok := c.eng.PickNode(x, y)
		if !ok {
			return
		}
		for _, n := range c.graph.List() {
			if n.RenderRef == ref {
				c.log.Debug("node tapped", zap.String("id", n.ID))
				c.ev.Publish(events.Event{Kind: events.NodeTapped, NodeID: n.ID})
				return
			}
		}
	}))
}

// startPump begins self-driven frames when an interval is configured.
// Callers hold mu.
func (c *Controller) startPump() {
	if c.interval <= 0 || c.ticker != nil {
		return
	}
	c.ticker = time.NewTicker(c.interval)
	c.tickerStop = make(chan struct{})
	go func(tk *time.Ticker, stop chan struct{}) {
		for {
			select {
			case <-tk.C:
				c.OnFrame()
			case <-stop:
				return
			}
		}
	}(c.ticker, c.tickerStop)
}

// stopPump halts the self-pump. Callers hold mu.
func (c *Controller) stopPump() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.tickerStop)
	c.ticker = nil
}

// planeRegistry accumulates every plane the engine has ever reported,
// keyed by id. Updates overwrite in place; ids are never dropped, so
// Planes snapshots stay stable across rescans. Queue-confined.
type planeRegistry struct {
	byID  map[string]scene.Plane
	order []string
}

func newPlaneRegistry() *planeRegistry {
	return &planeRegistry{byID: make(map[string]scene.Plane)}
}

func (r *planeRegistry) put(p scene.Plane) {
	if _, seen := r.byID[p.ID]; !seen {
		r.order = append(r.order, p.ID)
	}
	r.byID[p.ID] = p
}

func (r *planeRegistry) list() []scene.Plane {
	out := make([]scene.Plane, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
