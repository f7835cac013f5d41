package bridge

import (
	"github.com/arlow/armature/pkg/model"
	"github.com/arlow/armature/pkg/scene"
	"github.com/arlow/armature/pkg/status"
)

// InitializeRequest configures the AR session. An empty planeDetection
// selects horizontalAndVertical.
type InitializeRequest struct {
	PlaneDetection  string `json:"planeDetection,omitempty" validate:"omitempty,oneof=none horizontal vertical horizontalAndVertical"`
	LightEstimation bool   `json:"lightEstimation,omitempty"`
	ShowPlanes      bool   `json:"showPlanes,omitempty"`
}

// ScreenPoint is a normalized view coordinate: (0,0) top-left,
// (1,1) bottom-right.
type ScreenPoint struct {
	X float64 `json:"x" validate:"gte=0,lte=1"`
	Y float64 `json:"y" validate:"gte=0,lte=1"`
}

// ModelSource names a model to load. CacheRemote defaults to true for
// remote sources.
type ModelSource struct {
	Kind        string `json:"kind" validate:"required,oneof=asset file url"`
	Path        string `json:"path" validate:"required"`
	CacheRemote *bool  `json:"cacheRemote,omitempty"`
}

func (m ModelSource) toSource() (model.Source, error) {
	cache := true
	if m.CacheRemote != nil {
		cache = *m.CacheRemote
	}
	return model.ParseSource(m.Kind, m.Path, cache)
}

// PrepareModelRequest resolves a model ahead of placement.
type PrepareModelRequest struct {
	Source ModelSource `json:"source"`
	Scale  float64     `json:"scale,omitempty" validate:"omitempty,gt=0"`
}

// PlacePrimitiveRequest places a cube, sphere, or cylinder.
type PlacePrimitiveRequest struct {
	Kind   string         `json:"kind" validate:"required,oneof=cube sphere cylinder"`
	Offset *scene.Vector3 `json:"offset,omitempty"`
	Scale  float64        `json:"scale,omitempty" validate:"omitempty,gt=0"`
	Color  string         `json:"color,omitempty" validate:"omitempty,len=7,hexcolor"`
	Screen *ScreenPoint   `json:"screen,omitempty"`
}

// PlaceModelRequest places a model. A nil source uses the prepared
// model.
type PlaceModelRequest struct {
	Source *ModelSource   `json:"source,omitempty"`
	Offset *scene.Vector3 `json:"offset,omitempty"`
	Scale  float64        `json:"scale,omitempty" validate:"omitempty,gt=0"`
	Screen *ScreenPoint   `json:"screen,omitempty"`
}

// PlaceModelAtScreenRequest places a model at an explicit screen point.
type PlaceModelAtScreenRequest struct {
	Source ModelSource `json:"source"`
	Scale  float64     `json:"scale,omitempty" validate:"omitempty,gt=0"`
	Screen ScreenPoint `json:"screen"`
}

// PlaceOnTapRequest places a primitive or model at a tap point.
type PlaceOnTapRequest struct {
	Kind   string       `json:"kind" validate:"required,oneof=cube sphere cylinder model"`
	Source *ModelSource `json:"source,omitempty"`
	Scale  float64      `json:"scale,omitempty" validate:"omitempty,gt=0"`
	Color  string       `json:"color,omitempty" validate:"omitempty,len=7,hexcolor"`
	Screen *ScreenPoint `json:"screen,omitempty"`
}

// UpdateNodeRequest patches a node transform; omitted fields keep
// their values.
type UpdateNodeRequest struct {
	ID       string          `json:"id" validate:"required"`
	Position *scene.Vector3  `json:"position,omitempty"`
	Rotation *scene.Rotation `json:"rotation,omitempty"`
	Scale    *scene.Vector3  `json:"scale,omitempty"`
}

func (r UpdateNodeRequest) patch() (scene.TransformPatch, error) {
	if r.Scale != nil && (r.Scale.X <= 0 || r.Scale.Y <= 0 || r.Scale.Z <= 0) {
		return scene.TransformPatch{}, status.Newf(status.InvalidArguments, "scale components must be positive, got %+v", *r.Scale)
	}
	return scene.TransformPatch{Position: r.Position, Rotation: r.Rotation, Scale: r.Scale}, nil
}

// SourceRef echoes where a placed model came from.
type SourceRef struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// NodeDescriptor is the host-visible view of a placed node.
type NodeDescriptor struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Position scene.Vector3  `json:"position"`
	Rotation scene.Rotation `json:"rotation"`
	Scale    scene.Vector3  `json:"scale"`
	Color    string         `json:"color,omitempty"`
	Anchored bool           `json:"anchored"`
	PlaneID  string         `json:"planeId,omitempty"`
	Source   *SourceRef     `json:"source,omitempty"`
}

func describeNode(n scene.Node) NodeDescriptor {
	d := NodeDescriptor{
		ID:       n.ID,
		Kind:     n.Kind.String(),
		Position: n.Transform.Position,
		Rotation: n.Transform.Rotation,
		Scale:    n.Transform.Scale,
		Color:    n.Color(),
		Anchored: n.Anchored(),
		PlaneID:  n.PlaneID,
	}
	if n.Source != nil {
		d.Source = &SourceRef{Kind: n.Source.Kind, Path: n.Source.Path}
	}
	return d
}

// PlaneDescriptor is the host-visible view of a tracked plane.
type PlaneDescriptor struct {
	ID          string        `json:"id"`
	Center      scene.Vector3 `json:"center"`
	Width       float64       `json:"width"`
	Height      float64       `json:"height"`
	Orientation string        `json:"orientation"`
}

func describePlane(p scene.Plane) PlaneDescriptor {
	return PlaneDescriptor{
		ID:          p.ID,
		Center:      p.Center,
		Width:       p.Width,
		Height:      p.Height,
		Orientation: p.Orientation.String(),
	}
}
