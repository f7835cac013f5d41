// Package place turns ranked hit-test results into a placement decision.
// Resolution is a total function: when no usable plane hit exists the
// node goes a fixed offset in front of the camera, so placement commands
// never fail for lack of surfaces.
package place

import (
	"github.com/arlow/armature/pkg/engine"
	"github.com/arlow/armature/pkg/scene"
)

// ScreenPoint is a view coordinate in pixels.
type ScreenPoint struct {
	X float64
	Y float64
}

// Request carries the caller's placement inputs.
type Request struct {
	// Screen selects the hit-test point; nil means the view center.
	Screen *ScreenPoint

	// Offset is the camera-local fallback position used when no plane
	// hit survives filtering. Zero means one meter ahead, (0, 0, -1).
	Offset scene.Vector3
}

// ScreenAt returns the hit-test point, defaulting to the center of a
// view with the given size.
func (r Request) ScreenAt(w, h int) (float64, float64) {
	if r.Screen != nil {
		return r.Screen.X, r.Screen.Y
	}
	return float64(w) / 2, float64(h) / 2
}

func (r Request) offset() scene.Vector3 {
	if r.Offset.IsZero() {
		return scene.Vector3{Z: -1}
	}
	return r.Offset
}

// Placement is the chosen pose for a new node.
type Placement struct {
	Pose scene.Pose

	// PlaneID names the plane the node anchors to; empty for
	// camera-relative placements.
	PlaneID string

	// Anchored distinguishes a plane hit from the camera fallback.
	Anchored bool
}

// Resolve picks the placement for a set of ranked hits. Plane hits are
// taken nearest first, skipping hits the engine places outside the
// plane's tracked polygon; engines that cannot check the polygon have
// their hits trusted. Without a surviving hit (or without tracking,
// when hit poses cannot be trusted) the placement is the camera pose
// transform of the request offset.
func Resolve(hits []engine.HitResult, cam scene.Pose, camTracking bool, req Request) Placement {
	if camTracking {
		for _, h := range hits {
			if h.PlaneID == "" {
				continue
			}
			if h.PolygonChecked && !h.WithinPolygon {
				continue
			}
			return Placement{Pose: h.Pose, PlaneID: h.PlaneID, Anchored: true}
		}
	}
	return Placement{
		Pose: scene.Pose{
			Position: cam.TransformPoint(req.offset()),
			Rotation: cam.Rotation,
		},
	}
}
