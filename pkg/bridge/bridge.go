// Package bridge is the host-facing facade over a session controller.
// Every command validates its payload before touching the session, so a
// bad request has no effect; results are JSON-tagged descriptors the
// host can forward unchanged.
package bridge

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/arlow/armature/pkg/events"
	"github.com/arlow/armature/pkg/model"
	"github.com/arlow/armature/pkg/place"
	"github.com/arlow/armature/pkg/scene"
	"github.com/arlow/armature/pkg/session"
	"github.com/arlow/armature/pkg/status"
)

// Bridge exposes the session command surface to a host.
type Bridge struct {
	log      *zap.Logger
	ctrl     *session.Controller
	validate *validator.Validate
}

// New wraps a controller. A nil logger disables logging.
func New(ctrl *session.Controller, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		log:      log,
		ctrl:     ctrl,
		validate: validator.New(),
	}
}

// Events exposes the session's event bridge for host subscription.
func (b *Bridge) Events() *events.Bridge {
	return b.ctrl.Events()
}

// State reports the session lifecycle state by name.
func (b *Bridge) State() string {
	return b.ctrl.State().String()
}

// OnFrame forwards a host render callback to the session.
func (b *Bridge) OnFrame() {
	b.ctrl.OnFrame()
}

// HandleTap forwards a view tap in pixel coordinates.
func (b *Bridge) HandleTap(x, y float64) {
	b.ctrl.HandleTap(x, y)
}

func (b *Bridge) check(req any) error {
	if err := b.validate.Struct(req); err != nil {
		return status.Wrap(status.InvalidArguments, err, "invalid request")
	}
	return nil
}

// toRequest converts command placement inputs to a pixel-space
// placement request.
func (b *Bridge) toRequest(ctx context.Context, screen *ScreenPoint, offset *scene.Vector3) (place.Request, error) {
	var req place.Request
	if offset != nil {
		req.Offset = *offset
	}
	if screen != nil {
		w, h, err := b.ctrl.ViewSize(ctx)
		if err != nil {
			return place.Request{}, err
		}
		req.Screen = &place.ScreenPoint{
			X: screen.X * float64(w),
			Y: screen.Y * float64(h),
		}
	}
	return req, nil
}

// Initialize starts or reconfigures the AR session.
func (b *Bridge) Initialize(ctx context.Context, req InitializeRequest) error {
	if err := b.check(req); err != nil {
		return err
	}
	mode := scene.DetectHorizontalAndVertical
	if req.PlaneDetection != "" {
		mode, _ = scene.ParsePlaneDetectionMode(req.PlaneDetection)
	}
	return b.ctrl.Initialize(ctx, scene.SessionConfig{
		PlaneDetection:  mode,
		LightEstimation: req.LightEstimation,
		ShowPlanes:      req.ShowPlanes,
	})
}

// Pause suspends the session.
func (b *Bridge) Pause(ctx context.Context) error {
	return b.ctrl.Pause(ctx)
}

// Resume continues a paused session.
func (b *Bridge) Resume(ctx context.Context) error {
	return b.ctrl.Resume(ctx)
}

// PrepareModel resolves a model ahead of placement and returns its
// local URI.
func (b *Bridge) PrepareModel(ctx context.Context, req PrepareModelRequest) (string, error) {
	if err := b.check(req); err != nil {
		return "", err
	}
	src, err := req.Source.toSource()
	if err != nil {
		return "", err
	}
	return b.ctrl.PrepareModel(ctx, src, req.Scale)
}

// PlacePrimitive places a primitive and returns its descriptor.
func (b *Bridge) PlacePrimitive(ctx context.Context, req PlacePrimitiveRequest) (NodeDescriptor, error) {
	if err := b.check(req); err != nil {
		return NodeDescriptor{}, err
	}
	kind, _ := scene.ParseObjectKind(req.Kind)
	pr, err := b.toRequest(ctx, req.Screen, req.Offset)
	if err != nil {
		return NodeDescriptor{}, err
	}
	n, err := b.ctrl.PlacePrimitive(ctx, kind, pr, req.Scale, req.Color)
	if err != nil {
		return NodeDescriptor{}, err
	}
	return describeNode(n), nil
}

// PlaceModel places a model, falling back to the prepared one when no
// source is given.
func (b *Bridge) PlaceModel(ctx context.Context, req PlaceModelRequest) (NodeDescriptor, error) {
	if err := b.check(req); err != nil {
		return NodeDescriptor{}, err
	}
	pr, err := b.toRequest(ctx, req.Screen, req.Offset)
	if err != nil {
		return NodeDescriptor{}, err
	}
	src, err := optionalSource(req.Source)
	if err != nil {
		return NodeDescriptor{}, err
	}
	n, err := b.ctrl.PlaceModel(ctx, src, pr, req.Scale)
	if err != nil {
		return NodeDescriptor{}, err
	}
	return describeNode(n), nil
}

// PlaceModelAtScreen places a model at an explicit normalized screen
// point.
func (b *Bridge) PlaceModelAtScreen(ctx context.Context, req PlaceModelAtScreenRequest) (NodeDescriptor, error) {
	if err := b.check(req); err != nil {
		return NodeDescriptor{}, err
	}
	return b.PlaceModel(ctx, PlaceModelRequest{
		Source: &req.Source,
		Scale:  req.Scale,
		Screen: &req.Screen,
	})
}

// PlaceOnTap places a primitive or model at a tap point.
func (b *Bridge) PlaceOnTap(ctx context.Context, req PlaceOnTapRequest) (NodeDescriptor, error) {
	if err := b.check(req); err != nil {
		return NodeDescriptor{}, err
	}
	if req.Kind == "model" {
		src, err := optionalSource(req.Source)
		if err != nil {
			return NodeDescriptor{}, err
		}
		pr, err := b.toRequest(ctx, req.Screen, nil)
		if err != nil {
			return NodeDescriptor{}, err
		}
		n, err := b.ctrl.PlaceModel(ctx, src, pr, req.Scale)
		if err != nil {
			return NodeDescriptor{}, err
		}
		return describeNode(n), nil
	}
	return b.PlacePrimitive(ctx, PlacePrimitiveRequest{
		Kind:   req.Kind,
		Scale:  req.Scale,
		Color:  req.Color,
		Screen: req.Screen,
	})
}

func optionalSource(m *ModelSource) (*model.Source, error) {
	if m == nil {
		return nil, nil
	}
	src, err := m.toSource()
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// RemoveNode removes a placed node.
func (b *Bridge) RemoveNode(ctx context.Context, id string) error {
	if id == "" {
		return status.New(status.InvalidArguments, "node id required")
	}
	return b.ctrl.RemoveNode(ctx, id)
}

// RemoveAllNodes clears the scene.
func (b *Bridge) RemoveAllNodes(ctx context.Context) error {
	return b.ctrl.RemoveAllNodes(ctx)
}

// UpdateNode patches a node transform and returns the updated
// descriptor.
func (b *Bridge) UpdateNode(ctx context.Context, req UpdateNodeRequest) (NodeDescriptor, error) {
	if err := b.check(req); err != nil {
		return NodeDescriptor{}, err
	}
	patch, err := req.patch()
	if err != nil {
		return NodeDescriptor{}, err
	}
	n, err := b.ctrl.UpdateNode(ctx, req.ID, patch)
	if err != nil {
		return NodeDescriptor{}, err
	}
	return describeNode(n), nil
}

// NodeCount reports the number of placed nodes.
func (b *Bridge) NodeCount(ctx context.Context) (int, error) {
	return b.ctrl.NodeCount(ctx)
}

// DescribeNode returns the descriptor of one placed node.
func (b *Bridge) DescribeNode(ctx context.Context, id string) (NodeDescriptor, error) {
	if id == "" {
		return NodeDescriptor{}, status.New(status.InvalidArguments, "node id required")
	}
	n, err := b.ctrl.DescribeNode(ctx, id)
	if err != nil {
		return NodeDescriptor{}, err
	}
	return describeNode(n), nil
}

// Nodes lists descriptors for every placed node in placement order.
func (b *Bridge) Nodes(ctx context.Context) ([]NodeDescriptor, error) {
	list, err := b.ctrl.Nodes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]NodeDescriptor, 0, len(list))
	for _, n := range list {
		out = append(out, describeNode(n))
	}
	return out, nil
}

// Planes lists every plane the session has seen.
func (b *Bridge) Planes(ctx context.Context) ([]PlaneDescriptor, error) {
	list, err := b.ctrl.Planes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PlaneDescriptor, 0, len(list))
	for _, p := range list {
		out = append(out, describePlane(p))
	}
	return out, nil
}

// TakeSnapshot captures the current view as PNG bytes.
func (b *Bridge) TakeSnapshot(ctx context.Context) ([]byte, error) {
	return b.ctrl.TakeSnapshot(ctx)
}

// CancelModelLoad aborts every in-flight model download.
func (b *Bridge) CancelModelLoad() {
	b.ctrl.CancelModelLoad()
}

// ClearModelCache removes every cached model file.
func (b *Bridge) ClearModelCache(ctx context.Context) error {
	return b.ctrl.ClearModelCache(ctx)
}

// Dispose tears the session down for good.
func (b *Bridge) Dispose() {
	b.ctrl.Dispose()
}
