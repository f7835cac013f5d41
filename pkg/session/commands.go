package session

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arlow/armature/pkg/engine"
	"github.com/arlow/armature/pkg/events"
	"github.com/arlow/armature/pkg/model"
	"github.com/arlow/armature/pkg/place"
	"github.com/arlow/armature/pkg/scene"
	"github.com/arlow/armature/pkg/status"
)

// Canonical primitive dimensions in meters. The per-node scale
// multiplies these, so a scale-2 cube renders 20cm across.
const (
	cubeSize       = 0.1
	sphereRadius   = 0.05
	cylinderRadius = 0.05
	cylinderHeight = 0.1
)

// nextID allocates a scene node id. Queue-confined.
func (c *Controller) nextID() string {
	c.nextNodeID++
	return fmt.Sprintf("node-%06d", c.nextNodeID)
}

// resolveTracked resolves a model source with the load registered for
// CancelModelLoad. The registration lives exactly as long as the
// resolve; Dispose cancels whatever is still registered.
func (c *Controller) resolveTracked(ctx context.Context, src model.Source) (model.Local, error) {
	if c.resolver == nil {
		return model.Local{}, status.New(status.Unknown, "no model resolver configured")
	}
	lctx, cancel := context.WithCancel(ctx)
	token := uuid.NewString()

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		cancel()
		return model.Local{}, status.New(status.NotInitialized, "session disposed")
	}
	c.loads[token] = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.loads, token)
		c.mu.Unlock()
		cancel()
	}()

	return c.resolver.Resolve(lctx, src, func(fraction float64) {
		c.ev.Publish(events.Event{Kind: events.ModelLoadProgress, Progress: fraction})
	})
}

// PrepareModel resolves a model source ahead of placement and remembers
// it as the default for source-less PlaceModel calls. It returns the
// local file URI of the resolved model.
func (c *Controller) PrepareModel(ctx context.Context, src model.Source, scale float64) (string, error) {
	if err := c.requireReady(); err != nil {
		return "", err
	}
	local, err := c.resolveTracked(ctx, src)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.prepared = &preparedModel{src: src, scale: scale}
	c.mu.Unlock()

	c.log.Info("model prepared",
		zap.String("source", src.Path),
		zap.String("path", local.Path),
		zap.Bool("cached", local.FromCache))
	return "file://" + local.Path, nil
}

// PlacePrimitive places a cube, sphere, or cylinder at the resolved
// placement and returns a copy of the stored node.
func (c *Controller) PlacePrimitive(ctx context.Context, kind scene.ObjectKind, req place.Request, scale float64, color string) (scene.Node, error) {
	if err := c.requireReady(); err != nil {
		return scene.Node{}, err
	}
	if scale <= 0 {
		scale = 1
	}
	spec := engine.NodeSpec{
		Kind:      kind,
		Color:     color,
		Transform: scene.Transform{Scale: scene.Uniform(scale)},
	}
	switch kind {
	case scene.ObjectCube:
		spec.Size = cubeSize
	case scene.ObjectSphere:
		spec.Radius = sphereRadius
	case scene.ObjectCylinder:
		spec.Radius = cylinderRadius
		spec.Height = cylinderHeight
	default:
		return scene.Node{}, status.Newf(status.InvalidArguments, "cannot place %q as a primitive", kind)
	}
	return c.placeOnQueue(ctx, spec, nil, req, color)
}

// PlaceModel resolves a model source and places it. A nil src falls
// back to the last PrepareModel call, including its scale when the
// caller passes zero; an explicit src overrides the prepared model for
// this call only.
func (c *Controller) PlaceModel(ctx context.Context, src *model.Source, req place.Request, scale float64) (scene.Node, error) {
	if err := c.requireReady(); err != nil {
		return scene.Node{}, err
	}

	var source model.Source
	if src != nil {
		source = *src
	} else {
		c.mu.Lock()
		prep := c.prepared
		c.mu.Unlock()
		if prep == nil {
			return scene.Node{}, status.New(status.InvalidArguments, "no model source given and none prepared")
		}
		source = prep.src
		if scale == 0 {
			scale = prep.scale
		}
	}
	if scale <= 0 {
		scale = 1
	}

	local, err := c.resolveTracked(ctx, source)
	if err != nil {
		return scene.Node{}, err
	}
	if local.Temporary {
		defer os.Remove(local.Path)
	}

	spec := engine.NodeSpec{
		Kind:      scene.ObjectModel,
		ModelPath: local.Path,
		Transform: scene.Transform{Scale: scene.Uniform(scale)},
	}
	info := &scene.SourceInfo{Kind: string(source.Kind), Path: source.Path}
	return c.placeOnQueue(ctx, spec, info, req, "")
}

// placeOnQueue runs the placement phase on the affinity queue: hit
// test, pose resolution, anchor and node creation, graph insertion.
// Failures leave neither engine objects nor graph entries behind.
func (c *Controller) placeOnQueue(ctx context.Context, spec engine.NodeSpec, src *scene.SourceInfo, req place.Request, color string) (scene.Node, error) {
	var out scene.Node
	err := c.runSync(ctx, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		cam, tracking := c.eng.CurrentCameraPose()
		var hits []engine.HitResult
		if tracking {
			w, h := c.eng.ViewSize()
			x, y := req.ScreenAt(w, h)
			hits = c.eng.RunHitTest(x, y)
		}
		pl := place.Resolve(hits, cam, tracking, req)

		spec.Transform.Position = pl.Pose.Position
		spec.Transform.Rotation = scene.Rotation{}

		var anchorRef string
		if pl.Anchored {
			ref, err := c.eng.AddAnchor(pl.PlaneID, pl.Pose)
			if err != nil {
				return fmt.Errorf("anchor on plane %s: %w", pl.PlaneID, err)
			}
			anchorRef = ref
			spec.AnchorRef = ref
		}

		ref, err := c.eng.AddNode(spec)
		if err != nil {
			if anchorRef != "" {
				c.eng.RemoveAnchor(anchorRef)
			}
			return err
		}

		n := &scene.Node{
			ID:        c.nextID(),
			Kind:      spec.Kind,
			Source:    src,
			Transform: spec.Transform,
			PlaneID:   pl.PlaneID,
			RenderRef: ref,
			AnchorRef: anchorRef,
		}
		if color != "" {
			n.Properties = map[string]string{scene.PropColor: color}
		}
		if err := c.graph.Add(n); err != nil {
			c.eng.RemoveNode(ref)
			if anchorRef != "" {
				c.eng.RemoveAnchor(anchorRef)
			}
			return err
		}

		c.log.Info("node placed",
			zap.String("id", n.ID),
			zap.Stringer("kind", n.Kind),
			zap.Bool("anchored", pl.Anchored))
		out = *n
		return nil
	})
	return out, err
}

// RemoveNode removes a placed node and releases its engine resources.
func (c *Controller) RemoveNode(ctx context.Context, id string) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	return c.runSync(ctx, func() error {
		n, err := c.graph.Remove(id)
		if err != nil {
			return err
		}
		c.detach(n)
		c.log.Info("node removed", zap.String("id", id))
		return nil
	})
}

// RemoveAllNodes clears the scene. Anchors owned by removed nodes are
// released with them.
func (c *Controller) RemoveAllNodes(ctx context.Context) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	return c.runSync(ctx, func() error {
		removed := c.graph.Clear()
		for _, n := range removed {
			c.detach(n)
		}
		c.log.Info("scene cleared", zap.Int("removed", len(removed)))
		return nil
	})
}

// UpdateNode applies a partial transform to a placed node. Omitted
// fields keep their current values.
func (c *Controller) UpdateNode(ctx context.Context, id string, patch scene.TransformPatch) (scene.Node, error) {
	if err := c.requireReady(); err != nil {
		return scene.Node{}, err
	}
	var out scene.Node
	err := c.runSync(ctx, func() error {
		n, err := c.graph.Update(id, patch)
		if err != nil {
			return err
		}
		if n.RenderRef != "" {
			if err := c.eng.SetNodeTransform(n.RenderRef, n.Transform); err != nil {
				return status.Wrapf(status.Unknown, err, "apply transform to %s", id)
			}
		}
		out = *n
		return nil
	})
	return out, err
}

// NodeCount reports the number of placed nodes.
func (c *Controller) NodeCount(ctx context.Context) (int, error) {
	if err := c.requireReady(); err != nil {
		return 0, err
	}
	var count int
	err := c.runSync(ctx, func() error {
		count = c.graph.Count()
		return nil
	})
	return count, err
}

// DescribeNode returns a copy of a placed node.
func (c *Controller) DescribeNode(ctx context.Context, id string) (scene.Node, error) {
	if err := c.requireReady(); err != nil {
		return scene.Node{}, err
	}
	var out scene.Node
	err := c.runSync(ctx, func() error {
		n, err := c.graph.Get(id)
		if err != nil {
			return err
		}
		out = *n
		return nil
	})
	return out, err
}

// Nodes returns copies of every placed node in placement order.
func (c *Controller) Nodes(ctx context.Context) ([]scene.Node, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	var out []scene.Node
	err := c.runSync(ctx, func() error {
		for _, n := range c.graph.List() {
			out = append(out, *n)
		}
		return nil
	})
	return out, err
}

// Planes returns every plane the session has seen, in discovery order.
// Rescanned planes appear once with their latest geometry.
func (c *Controller) Planes(ctx context.Context) ([]scene.Plane, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	var out []scene.Plane
	err := c.runSync(ctx, func() error {
		out = c.planes.list()
		return nil
	})
	return out, err
}

// ViewSize reports the engine view dimensions in pixels.
func (c *Controller) ViewSize(ctx context.Context) (int, int, error) {
	if err := c.requireReady(); err != nil {
		return 0, 0, err
	}
	var w, h int
	err := c.runSync(ctx, func() error {
		w, h = c.eng.ViewSize()
		return nil
	})
	return w, h, err
}

// TakeSnapshot captures the current view as PNG bytes. The capture
// runs on the affinity queue so it sees a settled scene.
func (c *Controller) TakeSnapshot(ctx context.Context) ([]byte, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	var data []byte
	err := c.runSync(ctx, func() error {
		var snapErr error
		data, snapErr = c.eng.Snapshot()
		return snapErr
	})
	if err != nil {
		if _, ok := err.(*status.Error); ok {
			return nil, err
		}
		return nil, status.Wrapf(status.Unknown, err, "snapshot")
	}
	return data, nil
}

// CancelModelLoad aborts every in-flight model download. Loads that
// already finished are unaffected; canceling with nothing in flight is
// a no-op.
func (c *Controller) CancelModelLoad() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.loads))
	for token, cancel := range c.loads {
		cancels = append(cancels, cancel)
		delete(c.loads, token)
	}
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if len(cancels) > 0 {
		c.log.Info("model loads canceled", zap.Int("count", len(cancels)))
	}
}

// ClearModelCache removes every cached model file, acknowledging only
// after the sweep completes.
func (c *Controller) ClearModelCache(ctx context.Context) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if c.cache == nil {
		return nil
	}
	return c.cache.Clear(ctx)
}
