package mesh

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// defaultMeshCells controls marching cubes tessellation resolution.
// Primitives here are small preview solids, so this stays well below
// CAD-grade resolutions.
const defaultMeshCells = 100

// Cube builds a cube mesh with the given edge length, centered at the
// origin. AR nodes are centered on their pose, so no corner shift is
// applied.
func Cube(size float64) (*Mesh, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mesh: cube size %v must be positive", size)
	}
	s, err := sdf.Box3D(v3.Vec{X: size, Y: size, Z: size}, 0)
	if err != nil {
		return nil, fmt.Errorf("mesh: box: %w", err)
	}
	return tessellate(s), nil
}

// Sphere builds a sphere mesh with the given radius, centered at the origin.
func Sphere(radius float64) (*Mesh, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("mesh: sphere radius %v must be positive", radius)
	}
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("mesh: sphere: %w", err)
	}
	return tessellate(s), nil
}

// Cylinder builds a cylinder mesh with the given radius and height,
// centered at the origin with the axis along Y.
func Cylinder(radius, height float64) (*Mesh, error) {
	if radius <= 0 || height <= 0 {
		return nil, fmt.Errorf("mesh: cylinder radius %v / height %v must be positive", radius, height)
	}
	// sdf.Cylinder3D extrudes along Z; rotate so the axis is vertical in
	// the scene's Y-up convention.
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("mesh: cylinder: %w", err)
	}
	s = sdf.Transform3D(s, sdf.RotateX(-0.5*math.Pi))
	return tessellate(s), nil
}

// tessellate converts a solid to a triangle mesh using marching cubes.
func tessellate(s sdf.SDF3) *Mesh {
	renderer := render.NewMarchingCubesUniform(defaultMeshCells)
	triangles := render.ToTriangles(s, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		nx := float32(n.X)
		ny := float32(n.Y)
		nz := float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}
}
