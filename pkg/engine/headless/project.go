package headless

import (
	"math"
	"sort"

	"github.com/arlow/armature/pkg/engine"
	"github.com/arlow/armature/pkg/scene"
)

const rayEpsilon = 1e-9

// minPickRadius is the floor on the pick target size, in pixels, so small
// or distant nodes remain tappable.
const minPickRadius = 12.0

// rayThrough returns the world-space ray origin and unit direction for a
// view point, using a pinhole camera at the current pose.
func (e *Engine) rayThrough(x, y float64) (scene.Vector3, scene.Vector3) {
	w := float64(e.width)
	h := float64(e.height)
	tanHalf := math.Tan(e.fov / 2 * math.Pi / 180)
	aspect := w / h

	ndcX := 2*x/w - 1
	ndcY := 1 - 2*y/h

	dir := scene.Vector3{
		X: ndcX * tanHalf * aspect,
		Y: ndcY * tanHalf,
		Z: -1,
	}
	n := dir.Length()
	dir = dir.Scale(1 / n)
	return e.camera.Position, e.camera.TransformDirection(dir)
}

// project maps a world point to view coordinates. ok is false for points
// at or behind the camera.
func (e *Engine) project(p scene.Vector3) (sx, sy, depth float64, ok bool) {
	q := e.camera.InverseTransformPoint(p)
	depth = -q.Z
	if depth <= rayEpsilon {
		return 0, 0, 0, false
	}
	w := float64(e.width)
	h := float64(e.height)
	tanHalf := math.Tan(e.fov / 2 * math.Pi / 180)
	aspect := w / h

	sx = (q.X/(depth*tanHalf*aspect) + 1) * w / 2
	sy = (1 - q.Y/(depth*tanHalf)) * h / 2
	return sx, sy, depth, true
}

// RunHitTest casts a ray through the view point and intersects it with
// every tracked plane rectangle. Results are ordered nearest first and
// always carry polygon membership, so PolygonChecked is true on each.
func (e *Engine) RunHitTest(x, y float64) []engine.HitResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.paused || e.stopped || e.destroyed || e.width <= 0 || e.height <= 0 {
		return nil
	}

	origin, dir := e.rayThrough(x, y)

	var hits []engine.HitResult
	for _, id := range e.planeOrder {
		p := e.planes[id]
		hit, ok := intersectPlane(origin, dir, p)
		if !ok {
			continue
		}
		hits = append(hits, hit)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	return hits
}

// intersectPlane intersects the ray with one plane rectangle. Hits behind
// the camera or parallel to the plane report ok false.
func intersectPlane(origin, dir scene.Vector3, p scene.Plane) (engine.HitResult, bool) {
	var t float64
	switch p.Orientation {
	case scene.PlaneVertical:
		if math.Abs(dir.Z) < rayEpsilon {
			return engine.HitResult{}, false
		}
		t = (p.Center.Z - origin.Z) / dir.Z
	default:
		if math.Abs(dir.Y) < rayEpsilon {
			return engine.HitResult{}, false
		}
		t = (p.Center.Y - origin.Y) / dir.Y
	}
	if t <= rayEpsilon {
		return engine.HitResult{}, false
	}

	point := origin.Add(dir.Scale(t))

	var inside bool
	var rot scene.Rotation
	if p.Orientation == scene.PlaneVertical {
		inside = math.Abs(point.X-p.Center.X) <= p.Width/2 &&
			math.Abs(point.Y-p.Center.Y) <= p.Height/2
		// Up axis rotated onto the +Z plane normal.
		rot = scene.Rotation{Pitch: 90}
	} else {
		inside = math.Abs(point.X-p.Center.X) <= p.Width/2 &&
			math.Abs(point.Z-p.Center.Z) <= p.Height/2
	}

	return engine.HitResult{
		Pose:           scene.Pose{Position: point, Rotation: rot},
		PlaneID:        p.ID,
		Distance:       t,
		WithinPolygon:  inside,
		PolygonChecked: true,
	}, true
}

// PickNode projects node centers to the view and returns the ref of the
// nearest node whose projected bounds cover the point.
func (e *Engine) PickNode(x, y float64) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.width <= 0 || e.height <= 0 {
		return "", false
	}

	bestRef := ""
	bestDepth := math.MaxFloat64
	for _, ref := range e.nodeOrder {
		n := e.nodes[ref]
		sx, sy, depth, ok := e.project(n.transform.Position)
		if !ok {
			continue
		}
		pickR := e.projectedRadius(n, depth)
		if pickR < minPickRadius {
			pickR = minPickRadius
		}
		dx := sx - x
		dy := sy - y
		if dx*dx+dy*dy > pickR*pickR {
			continue
		}
		if depth < bestDepth {
			bestDepth = depth
			bestRef = ref
		}
	}
	return bestRef, bestRef != ""
}

// projectedRadius converts a node's world bounding radius to pixels at
// the given camera depth.
func (e *Engine) projectedRadius(n *node, depth float64) float64 {
	tanHalf := math.Tan(e.fov / 2 * math.Pi / 180)
	return n.radius / (depth * tanHalf) * float64(e.height) / 2
}
