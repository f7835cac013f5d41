// Package engine defines the capability surface a rendering and tracking
// backend must provide to drive an AR session. The session controller is
// written against this interface only; per-platform backends (and the
// headless backend used for tests and scripting) implement it.
package engine

import (
	"github.com/arlow/armature/pkg/scene"
)

// HitResult is a single candidate surface returned by a hit test.
type HitResult struct {
	// Pose is the world pose of the intersection, oriented to the
	// surface it struck.
	Pose scene.Pose

	// PlaneID names the detected plane the ray struck, or "" when the
	// hit was not against a tracked plane.
	PlaneID string

	// Distance is the ray distance from the camera to the intersection,
	// in meters.
	Distance float64

	// WithinPolygon reports whether the intersection lies inside the
	// plane's tracked boundary polygon. Only meaningful when
	// PolygonChecked is true.
	WithinPolygon bool

	// PolygonChecked reports whether the backend evaluated the boundary
	// polygon at all. Backends without boundary geometry leave it false,
	// and callers must treat such hits as usable.
	PolygonChecked bool
}

// NodeSpec describes a renderable node for AddNode. Exactly one shape is
// drawn per node: primitives use the dimension fields for their kind,
// models load from ModelPath.
type NodeSpec struct {
	Kind scene.ObjectKind

	// ModelPath is a local filesystem path to the model asset. Set only
	// when Kind is ObjectModel.
	ModelPath string

	// Size is the cube edge length in meters.
	Size float64

	// Radius applies to spheres and cylinders, in meters.
	Radius float64

	// Height is the cylinder height in meters.
	Height float64

	// Color is a hex color string such as "#ff8800". Empty means the
	// backend default material.
	Color string

	// Transform is the initial world transform of the node.
	Transform scene.Transform

	// AnchorRef attaches the node to a previously created anchor. Empty
	// places the node in world space with no anchor.
	AnchorRef string
}

// Engine is the backend contract. All methods are invoked from the
// session's scene goroutine, so implementations need no internal locking
// for node or plane state. Methods must not block on network or disk
// beyond what their operation inherently requires.
type Engine interface {
	// ConfigureSession applies session options before or after Start.
	ConfigureSession(cfg scene.SessionConfig) error

	// Start begins tracking and rendering. It is called once.
	Start() error

	// Pause suspends tracking and frame delivery.
	Pause() error

	// Resume restarts tracking after Pause.
	Resume() error

	// Stop ends the session. The engine may not be restarted.
	Stop() error

	// Destroy releases all backend resources. It must be safe to call
	// after Stop and must not be called twice.
	Destroy()

	// CurrentCameraPose returns the camera's world pose for the current
	// frame. The second return is false while tracking is unavailable.
	CurrentCameraPose() (scene.Pose, bool)

	// RunHitTest casts a ray through the given point in view coordinates
	// and returns candidate surfaces ordered nearest first. An empty
	// slice means nothing was struck.
	RunHitTest(x, y float64) []HitResult

	// UpdatedPlanes returns planes detected or updated since the last
	// call. The same plane may reappear across calls as its extent grows.
	UpdatedPlanes() []scene.Plane

	// AddNode creates a renderable node and returns an opaque ref for
	// later updates and removal.
	AddNode(spec NodeSpec) (string, error)

	// RemoveNode detaches and frees the node with the given ref.
	RemoveNode(ref string) error

	// SetNodeTransform replaces the world transform of an existing node.
	SetNodeTransform(ref string, t scene.Transform) error

	// AddAnchor fixes a pose in world space, optionally tied to a
	// detected plane, and returns an opaque anchor ref.
	AddAnchor(planeID string, pose scene.Pose) (string, error)

	// RemoveAnchor frees an anchor. Nodes attached to it keep their last
	// world transform.
	RemoveAnchor(ref string) error

	// PickNode returns the ref of the frontmost node under the given
	// view point, or false when the point hits empty space.
	PickNode(x, y float64) (string, bool)

	// Snapshot renders the current frame to an encoded PNG. It fails
	// when the view has zero area.
	Snapshot() ([]byte, error)

	// ViewSize reports the current view dimensions in pixels.
	ViewSize() (w, h int)
}
