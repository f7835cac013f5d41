package scene

import "encoding/json"

// ObjectKind enumerates the kinds of placeable objects.
type ObjectKind int

const (
	ObjectCube     ObjectKind = iota // unit cube primitive
	ObjectSphere                     // unit sphere primitive
	ObjectCylinder                   // unit cylinder primitive
	ObjectModel                      // loaded 3D model file
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectCube:
		return "cube"
	case ObjectSphere:
		return "sphere"
	case ObjectCylinder:
		return "cylinder"
	case ObjectModel:
		return "model"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its name, which is what the host
// boundary expects.
func (k ObjectKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// ParseObjectKind converts a kind name to an ObjectKind.
func ParseObjectKind(s string) (ObjectKind, bool) {
	switch s {
	case "cube":
		return ObjectCube, true
	case "sphere":
		return ObjectSphere, true
	case "cylinder":
		return ObjectCylinder, true
	case "model":
		return ObjectModel, true
	}
	return 0, false
}

// SourceInfo echoes a node's model source in host-boundary form. It is
// descriptive only; resolution behavior lives in pkg/model.
type SourceInfo struct {
	Kind string `json:"kind"` // "asset", "file", or "url"
	Path string `json:"path"`
}

// PropColor is the only node property key currently defined: a CSS-style
// hex color string.
const PropColor = "color"

// Node is one placed object in the scene. The render-engine node behind
// RenderRef is exclusively owned by this entry: removal always detaches it
// from the render scene before the entry is dropped, along with any
// anchor-node created solely for this placement.
type Node struct {
	ID         string            `json:"id"`
	Kind       ObjectKind        `json:"kind"`
	Source     *SourceInfo       `json:"source,omitempty"` // set iff Kind == ObjectModel
	Transform  Transform         `json:"transform"`
	Properties map[string]string `json:"properties,omitempty"`
	PlaneID    string            `json:"planeId,omitempty"` // anchoring plane, "" when camera-relative

	// Engine-side handles, never serialized.
	RenderRef string `json:"-"`
	AnchorRef string `json:"-"` // "" when the node is not plane-anchored
}

// Anchored reports whether the node is parented to a plane anchor.
func (n *Node) Anchored() bool {
	return n.AnchorRef != ""
}

// Color returns the node's color property, or "" if unset.
func (n *Node) Color() string {
	return n.Properties[PropColor]
}
