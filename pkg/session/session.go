// Package session implements the AR session controller: the state
// machine, the per-frame pump, and the command surface the host bridge
// calls into. One controller owns one AR view for its whole life; it is
// created by Initialize and torn down for good by Dispose.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arlow/armature/pkg/engine"
	"github.com/arlow/armature/pkg/events"
	"github.com/arlow/armature/pkg/model"
	"github.com/arlow/armature/pkg/queue"
	"github.com/arlow/armature/pkg/scene"
	"github.com/arlow/armature/pkg/status"
)

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateTracking
	StateTrackingLost
	StateError
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateTracking:
		return "tracking"
	case StateTrackingLost:
		return "trackingLost"
	case StateError:
		return "error"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Deps wires a controller. Engine is required; nil Queue and Events are
// built internally. Support and Permission are the injected host probes;
// nil means supported and granted.
type Deps struct {
	Engine engine.Engine

	// Queue, when injected, must not be started; the controller starts
	// and closes it.
	Queue  *queue.Queue
	Events *events.Bridge

	Resolver *model.Resolver
	Cache    *model.Cache

	Support    func() error
	Permission func(ctx context.Context) error

	// FrameInterval enables the self-pump: the controller drives its own
	// frames at this period instead of waiting for host render
	// callbacks. Zero leaves frame delivery to the host.
	FrameInterval time.Duration

	Logger *zap.Logger
}

type preparedModel struct {
	src   model.Source
	scale float64
}

// Controller is the native side of the AR bridge.
type Controller struct {
	log        *zap.Logger
	eng        engine.Engine
	q          *queue.Queue
	ev         *events.Bridge
	resolver   *model.Resolver
	cache      *model.Cache
	support    func() error
	permission func(ctx context.Context) error
	interval   time.Duration

	mu          sync.Mutex
	state       State
	initialized bool
	paused      bool
	disposed    bool
	prepared    *preparedModel
	loads       map[string]context.CancelFunc
	ticker      *time.Ticker
	tickerStop  chan struct{}

	// Confined to the queue goroutine.
	graph      *scene.Graph
	planes     *planeRegistry
	nextNodeID int
}

// New builds a controller and starts its affinity queue. The engine is
// not touched until Initialize.
func New(deps Deps) *Controller {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	q := deps.Queue
	if q == nil {
		q = queue.New(0, log)
	}
	ev := deps.Events
	if ev == nil {
		ev = events.NewBridge(log)
	}
	c := &Controller{
		log:        log,
		eng:        deps.Engine,
		q:          q,
		ev:         ev,
		resolver:   deps.Resolver,
		cache:      deps.Cache,
		support:    deps.Support,
		permission: deps.Permission,
		interval:   deps.FrameInterval,
		state:      StateUninitialized,
		loads:      make(map[string]context.CancelFunc),
		graph:      scene.NewGraph(),
		planes:     newPlaneRegistry(),
	}
	q.Start()
	return c
}

// Events exposes the controller's event bridge for host subscription.
func (c *Controller) Events() *events.Bridge {
	return c.ev
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState transitions and emits sessionStateChanged. Callers hold mu.
// Same-state calls are silent; every command path that must emit
// interposes a distinct state first.
func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.log.Info("session state changed", zap.Stringer("state", s))
	c.ev.Publish(events.Event{Kind: events.SessionStateChanged, State: s.String()})
}

// requireReady gates every command that needs a live session.
func (c *Controller) requireReady() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return status.New(status.NotInitialized, "session disposed")
	}
	if !c.initialized {
		return status.New(status.NotInitialized, "session not initialized")
	}
	return nil
}

// runSync runs fn on the affinity queue, mapping a closed queue to the
// disposed-session error.
func (c *Controller) runSync(ctx context.Context, fn func() error) error {
	err := c.q.RunSync(ctx, fn)
	if errors.Is(err, queue.ErrClosed) {
		return status.New(status.NotInitialized, "session disposed")
	}
	return err
}

// Initialize probes support and permission, configures the engine, and
// starts (or reconfigures) the session. Probe and engine failures move
// the session to the error state and emit the state event; the host
// decides whether to call Initialize again.
func (c *Controller) Initialize(ctx context.Context, cfg scene.SessionConfig) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return status.New(status.NotInitialized, "session disposed")
	}
	c.setState(StateInitializing)
	c.mu.Unlock()

	if c.support != nil {
		if err := c.support(); err != nil {
			return c.failInit(status.NotSupported, "AR not supported", err)
		}
	}
	if c.permission != nil {
		if err := c.permission(ctx); err != nil {
			return c.failInit(status.PermissionDenied, "camera permission", err)
		}
	}

	c.mu.Lock()
	restart := c.initialized
	c.mu.Unlock()

	err := c.runSync(ctx, func() error {
		if err := c.eng.ConfigureSession(cfg); err != nil {
			return fmt.Errorf("configure session: %w", err)
		}
		if restart {
			// Reconfiguration of a live session keeps the engine
			// running; the new config takes effect from the next frame.
			return nil
		}
		if err := c.eng.Start(); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		return nil
	})
	if err != nil {
		return c.failInit(status.Unknown, "engine initialization", err)
	}

	c.mu.Lock()
	c.initialized = true
	c.paused = false
	c.setState(StateReady)
	c.startPump()
	c.mu.Unlock()

	c.log.Info("session initialized",
		zap.Stringer("planeDetection", cfg.PlaneDetection),
		zap.Bool("showPlanes", cfg.ShowPlanes))
	return nil
}

func (c *Controller) failInit(code status.Code, msg string, err error) error {
	c.mu.Lock()
	c.setState(StateError)
	c.mu.Unlock()
	return status.Wrapf(code, err, "%s", msg)
}

// Pause suspends the engine session. The controller keeps its state and
// nodes; Resume continues where Pause left off.
func (c *Controller) Pause(ctx context.Context) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := c.runSync(ctx, c.eng.Pause); err != nil {
		return status.Wrapf(status.Unknown, err, "pause session")
	}
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	return nil
}

// Resume restarts frame delivery after Pause. Resuming a session that
// was never initialized is an error.
func (c *Controller) Resume(ctx context.Context) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := c.runSync(ctx, c.eng.Resume); err != nil {
		return status.Wrapf(status.Unknown, err, "resume session")
	}
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	return nil
}

// Dispose tears the session down: in-flight loads are canceled, every
// node and owned anchor is detached, the engine is stopped and
// destroyed, and the queue and event bridge are closed. Terminal and
// idempotent; the second call returns immediately.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.stopPump()
	cancels := make([]context.CancelFunc, 0, len(c.loads))
	for token, cancel := range c.loads {
		cancels = append(cancels, cancel)
		delete(c.loads, token)
	}
	wasInitialized := c.initialized
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	c.q.RunSync(context.Background(), func() error {
		for _, n := range c.graph.Clear() {
			c.detach(n)
		}
		if wasInitialized {
			if err := c.eng.Stop(); err != nil {
				c.log.Warn("engine stop failed during dispose", zap.Error(err))
			}
		}
		c.eng.Destroy()
		return nil
	})
	c.q.Close()

	c.mu.Lock()
	c.setState(StateDisposed)
	c.mu.Unlock()
	c.ev.Close()
	c.log.Info("session disposed")
}

// detach releases a node's engine resources. Queue-confined.
func (c *Controller) detach(n *scene.Node) {
	if n.RenderRef != "" {
		if err := c.eng.RemoveNode(n.RenderRef); err != nil {
			c.log.Warn("detach node", zap.String("id", n.ID), zap.Error(err))
		}
	}
	if n.AnchorRef != "" {
		if err := c.eng.RemoveAnchor(n.AnchorRef); err != nil {
			c.log.Warn("detach anchor", zap.String("id", n.ID), zap.Error(err))
		}
	}
}
