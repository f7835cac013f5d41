// Package headless implements the engine capability surface against a
// simulated world instead of device AR frameworks. It backs tests, the
// scripting console, and CI: planes, tracking state, and the camera pose
// are injected through virtual-world hooks, hit tests are resolved with a
// pinhole camera model, and snapshots render to PNG.
//
// Plane geometry convention: horizontal planes span Width along X and
// Height along Z at y = Center.Y; vertical planes span Width along X and
// Height along Y at z = Center.Z, facing +Z.
//
// Unlike device backends, every method is safe for concurrent use. The
// virtual-world hooks are called from test or REPL goroutines while a
// session drives frames, so the engine carries its own lock.
package headless

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/arlow/armature/pkg/engine"
	"github.com/arlow/armature/pkg/scene"
)

const (
	defaultWidth  = 1280
	defaultHeight = 720
	defaultFOV    = 60.0
)

// Config holds the virtual view parameters. Zero values take defaults.
type Config struct {
	// Width and Height are the view size in pixels.
	Width  int
	Height int

	// FOV is the vertical field of view in degrees.
	FOV float64

	Logger *zap.Logger
}

// Engine is the simulated backend.
type Engine struct {
	mu  sync.Mutex
	log *zap.Logger

	cfg scene.SessionConfig

	width  int
	height int
	fov    float64

	started   bool
	paused    bool
	stopped   bool
	destroyed bool

	tracking bool
	camera   scene.Pose
	frame    uint64

	planes     map[string]scene.Plane
	planeOrder []string
	pending    []string
	pendingSet map[string]bool

	nodes     map[string]*node
	nodeOrder []string
	nextNode  int

	anchors    map[string]anchor
	nextAnchor int
}

type anchor struct {
	pose    scene.Pose
	planeID string
}

var _ engine.Engine = (*Engine)(nil)

// New builds an engine with the given view parameters.
func New(cfg Config) *Engine {
	if cfg.Width == 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height == 0 {
		cfg.Height = defaultHeight
	}
	if cfg.FOV == 0 {
		cfg.FOV = defaultFOV
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:        log,
		width:      cfg.Width,
		height:     cfg.Height,
		fov:        cfg.FOV,
		planes:     make(map[string]scene.Plane),
		pendingSet: make(map[string]bool),
		nodes:      make(map[string]*node),
		anchors:    make(map[string]anchor),
	}
}

// ConfigureSession records session options. It may be called before Start
// or while running to reconfigure.
func (e *Engine) ConfigureSession(cfg scene.SessionConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return fmt.Errorf("headless: engine destroyed")
	}
	e.cfg = cfg
	e.log.Debug("session configured",
		zap.Stringer("planes", cfg.PlaneDetection),
		zap.Bool("lightEstimation", cfg.LightEstimation))
	return nil
}

// Start begins the simulated session. Tracking is available immediately;
// use SetTracking to simulate acquisition or loss.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.destroyed:
		return fmt.Errorf("headless: engine destroyed")
	case e.stopped:
		return fmt.Errorf("headless: engine stopped")
	case e.started:
		return fmt.Errorf("headless: session already started")
	}
	e.started = true
	e.tracking = true
	e.log.Debug("session started", zap.Int("width", e.width), zap.Int("height", e.height))
	return nil
}

// Pause suspends frame delivery.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.stopped {
		return fmt.Errorf("headless: engine not running")
	}
	e.paused = true
	return nil
}

// Resume restarts frame delivery after Pause.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.stopped {
		return fmt.Errorf("headless: engine not running")
	}
	e.paused = false
	return nil
}

// Stop ends the session.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return fmt.Errorf("headless: engine destroyed")
	}
	e.stopped = true
	e.started = false
	e.tracking = false
	return nil
}

// Destroy releases all simulated state.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.destroyed = true
	e.nodes = make(map[string]*node)
	e.nodeOrder = nil
	e.anchors = make(map[string]anchor)
	e.planes = make(map[string]scene.Plane)
	e.planeOrder = nil
	e.pending = nil
	e.pendingSet = make(map[string]bool)
	e.log.Debug("engine destroyed")
}

// CurrentCameraPose returns the injected camera pose. Tracking reports
// false before Start, after Stop, while paused, or after SetTracking(false).
func (e *Engine) CurrentCameraPose() (scene.Pose, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok := e.started && !e.paused && !e.stopped && !e.destroyed && e.tracking
	return e.camera, ok
}

// UpdatedPlanes drains planes added or changed since the last call.
func (e *Engine) UpdatedPlanes() []scene.Plane {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 || e.paused || e.destroyed {
		return nil
	}
	out := make([]scene.Plane, 0, len(e.pending))
	for _, id := range e.pending {
		if p, ok := e.planes[id]; ok {
			out = append(out, p)
		}
	}
	e.pending = nil
	e.pendingSet = make(map[string]bool)
	return out
}

// ViewSize reports the simulated view dimensions.
func (e *Engine) ViewSize() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width, e.height
}

// --- virtual-world hooks ---

// SetCameraPose moves the simulated camera.
func (e *Engine) SetCameraPose(p scene.Pose) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.camera = p
}

// SetTracking toggles tracking availability.
func (e *Engine) SetTracking(ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracking = ok
}

// PutPlane adds a plane to the simulated world, or updates its extent if
// the id is already tracked. The plane is reported by the next
// UpdatedPlanes call.
func (e *Engine) PutPlane(p scene.Plane) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	if _, known := e.planes[p.ID]; !known {
		e.planeOrder = append(e.planeOrder, p.ID)
	}
	e.planes[p.ID] = p
	if !e.pendingSet[p.ID] {
		e.pendingSet[p.ID] = true
		e.pending = append(e.pending, p.ID)
	}
	e.log.Debug("plane tracked",
		zap.String("id", p.ID),
		zap.Stringer("orientation", p.Orientation))
}

// SetViewSize resizes the simulated view.
func (e *Engine) SetViewSize(w, h int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.width = w
	e.height = h
}

// Advance steps the simulated clock one frame and returns the frame
// number. Paused or stopped engines do not advance.
func (e *Engine) Advance() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.paused || e.stopped || e.destroyed {
		return e.frame
	}
	e.frame++
	return e.frame
}
