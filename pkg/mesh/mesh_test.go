package mesh

import (
	"math"
	"testing"
)

func checkMesh(t *testing.T, m *Mesh) {
	t.Helper()
	if m.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if len(m.Vertices)%9 != 0 {
		t.Errorf("vertex floats = %d, want multiple of 9", len(m.Vertices))
	}
	if len(m.Normals) != len(m.Vertices) {
		t.Errorf("normal floats = %d, want %d", len(m.Normals), len(m.Vertices))
	}
	if len(m.Indices)%3 != 0 {
		t.Errorf("index count = %d, want multiple of 3", len(m.Indices))
	}
	if got, want := m.TriangleCount(), len(m.Indices)/3; got != want {
		t.Errorf("TriangleCount() = %d, want %d", got, want)
	}
	max := uint32(m.VertexCount())
	for _, idx := range m.Indices {
		if idx >= max {
			t.Fatalf("index %d out of range (vertex count %d)", idx, max)
		}
	}
}

func checkBounds(t *testing.T, m *Mesh, limit float64) {
	t.Helper()
	min, max := m.Bounds()
	for axis := 0; axis < 3; axis++ {
		if min[axis] < -limit || max[axis] > limit {
			t.Errorf("axis %d bounds [%v, %v] exceed ±%v", axis, min[axis], max[axis], limit)
		}
	}
}

func TestCube(t *testing.T) {
	m, err := Cube(0.2)
	if err != nil {
		t.Fatalf("Cube: %v", err)
	}
	checkMesh(t, m)
	// Centered at the origin: every coordinate within half the edge
	// length plus tessellation slack.
	checkBounds(t, m, 0.11)
}

func TestSphere(t *testing.T) {
	m, err := Sphere(0.5)
	if err != nil {
		t.Fatalf("Sphere: %v", err)
	}
	checkMesh(t, m)
	checkBounds(t, m, 0.55)

	// Surface vertices sit near the radius.
	var maxDist float64
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		x := float64(m.Vertices[i])
		y := float64(m.Vertices[i+1])
		z := float64(m.Vertices[i+2])
		d := math.Sqrt(x*x + y*y + z*z)
		if d > maxDist {
			maxDist = d
		}
	}
	if maxDist > 0.55 {
		t.Errorf("max vertex distance %v, want <= 0.55", maxDist)
	}
}

func TestCylinder(t *testing.T) {
	m, err := Cylinder(0.1, 0.4)
	if err != nil {
		t.Fatalf("Cylinder: %v", err)
	}
	checkMesh(t, m)

	// Axis runs along Y after the rotation: Y spans the height, X and Z
	// stay within the radius.
	min, max := m.Bounds()
	if min[1] < -0.25 || max[1] > 0.25 {
		t.Errorf("Y bounds [%v, %v] exceed half height", min[1], max[1])
	}
	if min[0] < -0.15 || max[0] > 0.15 || min[2] < -0.15 || max[2] > 0.15 {
		t.Errorf("radial bounds exceed radius: x [%v, %v], z [%v, %v]", min[0], max[0], min[2], max[2])
	}
}

func TestPrimitiveArgs(t *testing.T) {
	tests := []struct {
		name string
		make func() (*Mesh, error)
	}{
		{"cube zero", func() (*Mesh, error) { return Cube(0) }},
		{"cube negative", func() (*Mesh, error) { return Cube(-1) }},
		{"sphere zero", func() (*Mesh, error) { return Sphere(0) }},
		{"cylinder zero radius", func() (*Mesh, error) { return Cylinder(0, 1) }},
		{"cylinder zero height", func() (*Mesh, error) { return Cylinder(1, 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.make(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestBoundsEmpty(t *testing.T) {
	var m Mesh
	min, max := m.Bounds()
	if min != [3]float64{} || max != [3]float64{} {
		t.Errorf("empty mesh bounds = %v, %v, want zeros", min, max)
	}
}
