// Package scene defines the core vocabulary for the AR bridge: vectors,
// rotations, transforms, camera poses, detected planes, and the registry of
// placed nodes. Types here are engine-agnostic; concrete AR engines consume
// and produce them behind the capability interface in pkg/engine.
package scene

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Vector3 represents a 3D vector or point in meters.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vector3) Dot(o Vector3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Length returns the Euclidean length of v.
func (v Vector3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// IsZero reports whether all components are exactly zero.
func (v Vector3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Uniform returns a vector with all components set to s. Useful for
// uniform scale values.
func Uniform(s float64) Vector3 {
	return Vector3{X: s, Y: s, Z: s}
}

// Rotation is an Euler rotation in degrees: pitch about X, yaw about Y,
// roll about Z, applied in roll-yaw-pitch order (Z·Y·X).
type Rotation struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// IsZero reports whether the rotation is the identity.
func (r Rotation) IsZero() bool {
	return r.Pitch == 0 && r.Yaw == 0 && r.Roll == 0
}

// matrix returns the rotation matrix for r.
func (r Rotation) matrix() sdf.M44 {
	x := r.Pitch * math.Pi / 180.0
	y := r.Yaw * math.Pi / 180.0
	z := r.Roll * math.Pi / 180.0
	return sdf.RotateZ(z).Mul(sdf.RotateY(y)).Mul(sdf.RotateX(x))
}

// inverse returns the inverse rotation matrix for r.
func (r Rotation) inverse() sdf.M44 {
	x := -r.Pitch * math.Pi / 180.0
	y := -r.Yaw * math.Pi / 180.0
	z := -r.Roll * math.Pi / 180.0
	return sdf.RotateX(x).Mul(sdf.RotateY(y)).Mul(sdf.RotateZ(z))
}

// Apply rotates v by r.
func (r Rotation) Apply(v Vector3) Vector3 {
	out := r.matrix().MulPosition(v3.Vec{X: v.X, Y: v.Y, Z: v.Z})
	return Vector3{X: out.X, Y: out.Y, Z: out.Z}
}

// Transform is a node's placement: position, rotation, and per-axis scale.
type Transform struct {
	Position Vector3  `json:"position"`
	Rotation Rotation `json:"rotation"`
	Scale    Vector3  `json:"scale"`
}

// TransformPatch carries a partial transform update. Nil fields are left
// unchanged; they are never reset to a default.
type TransformPatch struct {
	Position *Vector3  `json:"position,omitempty"`
	Rotation *Rotation `json:"rotation,omitempty"`
	Scale    *Vector3  `json:"scale,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TransformPatch) IsEmpty() bool {
	return p.Position == nil && p.Rotation == nil && p.Scale == nil
}

// Pose is a position plus orientation, used for the camera and for
// hit-test results.
type Pose struct {
	Position Vector3  `json:"position"`
	Rotation Rotation `json:"rotation"`
}

// TransformPoint maps a point in pose-local space to world space. The
// camera convention is right-handed with -Z forward, so a local offset of
// (0, 0, -1) is one meter in front of the pose.
func (p Pose) TransformPoint(local Vector3) Vector3 {
	return p.Position.Add(p.Rotation.Apply(local))
}

// TransformDirection rotates a local-space direction into world space
// without translating it.
func (p Pose) TransformDirection(local Vector3) Vector3 {
	return p.Rotation.Apply(local)
}

// InverseTransformPoint maps a world-space point into pose-local space.
func (p Pose) InverseTransformPoint(world Vector3) Vector3 {
	d := world.Sub(p.Position)
	out := p.Rotation.inverse().MulPosition(v3.Vec{X: d.X, Y: d.Y, Z: d.Z})
	return Vector3{X: out.X, Y: out.Y, Z: out.Z}
}
