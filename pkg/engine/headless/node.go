package headless

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/arlow/armature/pkg/engine"
	"github.com/arlow/armature/pkg/mesh"
	"github.com/arlow/armature/pkg/scene"
	"github.com/arlow/armature/pkg/status"
)

// defaultModelRadius is the bounding radius assumed for model nodes, in
// meters, since the headless engine does not parse model geometry.
const defaultModelRadius = 0.5

type node struct {
	ref       string
	spec      engine.NodeSpec
	transform scene.Transform
	mesh      *mesh.Mesh // tessellated primitive geometry, nil for models
	format    string     // sniffed model format, "" for primitives
	radius    float64    // world bounding radius including scale
}

// AddNode tessellates primitives through the mesh package and validates
// model files by sniffing their format. The returned ref is stable for
// the life of the node.
func (e *Engine) AddNode(spec engine.NodeSpec) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return "", fmt.Errorf("headless: engine destroyed")
	}
	if spec.AnchorRef != "" {
		if _, ok := e.anchors[spec.AnchorRef]; !ok {
			return "", fmt.Errorf("headless: unknown anchor %q", spec.AnchorRef)
		}
	}

	n := &node{spec: spec, transform: spec.Transform}

	var err error
	switch spec.Kind {
	case scene.ObjectCube:
		n.mesh, err = mesh.Cube(spec.Size)
	case scene.ObjectSphere:
		n.mesh, err = mesh.Sphere(spec.Radius)
	case scene.ObjectCylinder:
		n.mesh, err = mesh.Cylinder(spec.Radius, spec.Height)
	case scene.ObjectModel:
		n.format, err = sniffModelFormat(spec.ModelPath)
	default:
		err = fmt.Errorf("headless: unknown object kind %d", spec.Kind)
	}
	if err != nil {
		return "", err
	}
	n.radius = boundingRadius(n)

	e.nextNode++
	n.ref = fmt.Sprintf("hn-%04d", e.nextNode)
	e.nodes[n.ref] = n
	e.nodeOrder = append(e.nodeOrder, n.ref)

	if n.mesh != nil {
		e.log.Debug("node added",
			zap.String("ref", n.ref),
			zap.Stringer("kind", spec.Kind),
			zap.Int("vertices", n.mesh.VertexCount()))
	} else {
		e.log.Debug("model node added",
			zap.String("ref", n.ref),
			zap.String("format", n.format),
			zap.String("path", spec.ModelPath))
	}
	return n.ref, nil
}

// RemoveNode frees the node with the given ref.
func (e *Engine) RemoveNode(ref string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.nodes[ref]; !ok {
		return fmt.Errorf("headless: unknown node %q", ref)
	}
	delete(e.nodes, ref)
	for i, r := range e.nodeOrder {
		if r == ref {
			e.nodeOrder = append(e.nodeOrder[:i], e.nodeOrder[i+1:]...)
			break
		}
	}
	return nil
}

// SetNodeTransform replaces the node's world transform.
func (e *Engine) SetNodeTransform(ref string, t scene.Transform) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[ref]
	if !ok {
		return fmt.Errorf("headless: unknown node %q", ref)
	}
	n.transform = t
	n.radius = boundingRadius(n)
	return nil
}

// AddAnchor fixes a pose in the simulated world. A non-empty planeID must
// name a tracked plane.
func (e *Engine) AddAnchor(planeID string, pose scene.Pose) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return "", fmt.Errorf("headless: engine destroyed")
	}
	if planeID != "" {
		if _, ok := e.planes[planeID]; !ok {
			return "", fmt.Errorf("headless: unknown plane %q", planeID)
		}
	}
	e.nextAnchor++
	ref := fmt.Sprintf("ha-%04d", e.nextAnchor)
	e.anchors[ref] = anchor{pose: pose, planeID: planeID}
	return ref, nil
}

// RemoveAnchor frees an anchor. Unknown refs are ignored, so removal is
// idempotent.
func (e *Engine) RemoveAnchor(ref string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.anchors, ref)
	return nil
}

// NodeCount reports the number of live nodes. Test hook.
func (e *Engine) NodeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.nodes)
}

// AnchorCount reports the number of live anchors. Test hook.
func (e *Engine) AnchorCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.anchors)
}

// boundingRadius derives the node's world bounding radius from its mesh
// extents (or the model default) and the largest scale component.
func boundingRadius(n *node) float64 {
	base := defaultModelRadius
	if n.mesh != nil {
		min, max := n.mesh.Bounds()
		var r float64
		for axis := 0; axis < 3; axis++ {
			r = math.Max(r, math.Max(math.Abs(min[axis]), math.Abs(max[axis])))
		}
		base = r
	}
	s := n.transform.Scale
	maxScale := math.Max(math.Abs(s.X), math.Max(math.Abs(s.Y), math.Abs(s.Z)))
	if maxScale == 0 {
		maxScale = 1
	}
	return base * maxScale
}

// fbxBinaryMagic is the fixed prefix of binary FBX files.
var fbxBinaryMagic = []byte("Kaydara FBX Binary")

// sniffModelFormat opens the file and identifies its model format from
// leading bytes, falling back to extension checks for container formats
// the simulator does not parse. Unknown content is rejected.
func sniffModelFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", status.Wrapf(status.FileNotFound, err, "model file %s", path)
		}
		return "", status.Wrapf(status.Unknown, err, "open model %s", path)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	if n == 0 {
		return "", status.Newf(status.UnsupportedModelFormat, "model file %s is empty", path)
	}
	head = head[:n]

	ext := strings.ToLower(filepath.Ext(path))
	trimmed := bytes.TrimLeft(head, " \t\r\n")

	switch {
	case bytes.HasPrefix(head, []byte("glTF")):
		return "glb", nil
	case len(trimmed) > 0 && trimmed[0] == '{' && bytes.Contains(head, []byte(`"asset"`)):
		return "gltf", nil
	case bytes.HasPrefix(trimmed, []byte("solid")):
		return "stl", nil
	case ext == ".stl":
		// Binary STL: 80-byte header with no reliable magic.
		return "stl", nil
	case looksLikeOBJ(head):
		return "obj", nil
	case bytes.HasPrefix(head, fbxBinaryMagic), ext == ".fbx":
		return "fbx", nil
	case bytes.HasPrefix(head, []byte("PK\x03\x04")) && ext == ".usdz":
		return "usdz", nil
	case bytes.Contains(head, []byte("COLLADA")), ext == ".dae" && bytes.HasPrefix(trimmed, []byte("<?xml")):
		return "dae", nil
	}
	return "", status.Newf(status.UnsupportedModelFormat, "unrecognized model data in %s", path)
}

// looksLikeOBJ reports whether the leading lines read as Wavefront OBJ
// statements.
func looksLikeOBJ(head []byte) bool {
	for _, line := range bytes.Split(head, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		for _, prefix := range []string{"v ", "vn ", "vt ", "f ", "o ", "g ", "mtllib ", "usemtl "} {
			if bytes.HasPrefix(line, []byte(prefix)) {
				return true
			}
		}
		return false
	}
	return false
}
