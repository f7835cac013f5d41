package scene

import "encoding/json"

// PlaneOrientation distinguishes horizontal from vertical detected planes.
type PlaneOrientation int

const (
	PlaneHorizontal PlaneOrientation = iota // floor/table surfaces
	PlaneVertical                           // walls
)

func (o PlaneOrientation) String() string {
	switch o {
	case PlaneHorizontal:
		return "horizontal"
	case PlaneVertical:
		return "vertical"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the orientation as its name, which is what the host
// boundary expects.
func (o PlaneOrientation) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// Plane is a snapshot of an engine-tracked surface. The id is
// engine-assigned and stable for the anchor's lifetime; geometry fields
// refresh as tracking refines. Read-only to the host.
type Plane struct {
	ID          string           `json:"id"`
	Center      Vector3          `json:"center"`
	Width       float64          `json:"width"`  // extent along the plane's local X, meters
	Height      float64          `json:"height"` // extent along the plane's local Z (horizontal) or Y (vertical), meters
	Orientation PlaneOrientation `json:"orientation"`
}

// PlaneDetectionMode selects which surface classes the engine tracks.
type PlaneDetectionMode int

const (
	DetectNone PlaneDetectionMode = iota
	DetectHorizontal
	DetectVertical
	DetectHorizontalAndVertical
)

func (m PlaneDetectionMode) String() string {
	switch m {
	case DetectNone:
		return "none"
	case DetectHorizontal:
		return "horizontal"
	case DetectVertical:
		return "vertical"
	case DetectHorizontalAndVertical:
		return "horizontalAndVertical"
	default:
		return "unknown"
	}
}

// ParsePlaneDetectionMode converts a mode name to a PlaneDetectionMode.
func ParsePlaneDetectionMode(s string) (PlaneDetectionMode, bool) {
	switch s {
	case "none":
		return DetectNone, true
	case "horizontal":
		return DetectHorizontal, true
	case "vertical":
		return DetectVertical, true
	case "horizontalAndVertical", "both":
		return DetectHorizontalAndVertical, true
	}
	return 0, false
}

// Detects reports whether the mode includes the given orientation.
func (m PlaneDetectionMode) Detects(o PlaneOrientation) bool {
	switch m {
	case DetectHorizontalAndVertical:
		return true
	case DetectHorizontal:
		return o == PlaneHorizontal
	case DetectVertical:
		return o == PlaneVertical
	}
	return false
}

// SessionConfig carries the per-initialize session configuration.
type SessionConfig struct {
	PlaneDetection  PlaneDetectionMode `json:"planeDetection"`
	LightEstimation bool               `json:"lightEstimation"`
	ShowPlanes      bool               `json:"showPlanes"` // debug plane visuals
}
