package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/arlow/armature/pkg/engine/headless"
	"github.com/arlow/armature/pkg/events"
	"github.com/arlow/armature/pkg/model"
	"github.com/arlow/armature/pkg/place"
	"github.com/arlow/armature/pkg/scene"
	"github.com/arlow/armature/pkg/status"
)

const (
	viewW = 640
	viewH = 480
)

// glbBytes is a minimal payload the model sniffer accepts as binary glTF.
var glbBytes = append([]byte("glTF"), bytes.Repeat([]byte{0x2a}, 252)...)

type env struct {
	eng   *headless.Engine
	c     *Controller
	ch    <-chan events.Event
	cache *model.Cache
	dir   string
}

func newEnv(t *testing.T, opts ...func(*Deps)) *env {
	t.Helper()
	eng := headless.New(headless.Config{Width: viewW, Height: viewH})
	dir := t.TempDir()
	cache, err := model.OpenCache(dir, nil)
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	deps := Deps{
		Engine:   eng,
		Resolver: model.NewResolver(cache, model.NewDownloader(model.DownloaderOptions{}), nil, nil),
		Cache:    cache,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	c := New(deps)
	t.Cleanup(c.Dispose)
	return &env{eng: eng, c: c, ch: c.Events().Subscribe(256), cache: cache, dir: dir}
}

func (e *env) init(t *testing.T) {
	t.Helper()
	cfg := scene.SessionConfig{PlaneDetection: scene.DetectHorizontalAndVertical}
	if err := e.c.Initialize(context.Background(), cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
}

// barrier waits for everything already queued to finish.
func (e *env) barrier(t *testing.T) {
	t.Helper()
	if err := e.c.q.RunSync(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("barrier: %v", err)
	}
}

func (e *env) frame(t *testing.T) {
	t.Helper()
	e.c.OnFrame()
	e.barrier(t)
}

// drain empties the event channel without blocking.
func (e *env) drain() []events.Event {
	var out []events.Event
	for {
		select {
		case ev, ok := <-e.ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventsOf(list []events.Event, kind events.Kind) []events.Event {
	var out []events.Event
	for _, ev := range list {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func stateSeq(list []events.Event) []string {
	var out []string
	for _, ev := range eventsOf(list, events.SessionStateChanged) {
		out = append(out, ev.State)
	}
	return out
}

func wantStates(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("state sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("state sequence = %v, want %v", got, want)
		}
	}
}

func floorPlane(id string, w, h float64) scene.Plane {
	return scene.Plane{ID: id, Width: w, Height: h, Orientation: scene.PlaneHorizontal}
}

func lookDown(height float64) scene.Pose {
	return scene.Pose{
		Position: scene.Vector3{Y: height},
		Rotation: scene.Rotation{Pitch: -90},
	}
}

func near(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func TestInitializeReachesReady(t *testing.T) {
	e := newEnv(t)

	if got := e.c.State(); got != StateUninitialized {
		t.Fatalf("state before init = %v", got)
	}
	e.init(t)
	if got := e.c.State(); got != StateReady {
		t.Fatalf("state after init = %v", got)
	}
	wantStates(t, stateSeq(e.drain()), "initializing", "ready")
}

func TestInitializeNotSupported(t *testing.T) {
	supported := false
	e := newEnv(t, func(d *Deps) {
		d.Support = func() error {
			if !supported {
				return errors.New("no ARCore on device")
			}
			return nil
		}
	})

	err := e.c.Initialize(context.Background(), scene.SessionConfig{})
	if !status.Is(err, status.NotSupported) {
		t.Fatalf("err = %v, want NotSupported", err)
	}
	if got := e.c.State(); got != StateError {
		t.Fatalf("state = %v, want error", got)
	}
	wantStates(t, stateSeq(e.drain()), "initializing", "error")

	// A later attempt can still succeed.
	supported = true
	e.init(t)
	wantStates(t, stateSeq(e.drain()), "initializing", "ready")
}

func TestInitializePermissionDenied(t *testing.T) {
	e := newEnv(t, func(d *Deps) {
		d.Permission = func(context.Context) error { return errors.New("camera denied") }
	})

	err := e.c.Initialize(context.Background(), scene.SessionConfig{})
	if !status.Is(err, status.PermissionDenied) {
		t.Fatalf("err = %v, want PermissionDenied", err)
	}
	if got := e.c.State(); got != StateError {
		t.Fatalf("state = %v, want error", got)
	}
}

func TestInitializeEngineFailure(t *testing.T) {
	e := newEnv(t)
	e.eng.Destroy()

	err := e.c.Initialize(context.Background(), scene.SessionConfig{})
	if !status.Is(err, status.Unknown) {
		t.Fatalf("err = %v, want Unknown", err)
	}
	if got := e.c.State(); got != StateError {
		t.Fatalf("state = %v, want error", got)
	}
	wantStates(t, stateSeq(e.drain()), "initializing", "error")
}

func TestCommandsBeforeInitialize(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	src := model.Source{Kind: model.SourceFile, Path: "/tmp/x.glb"}

	cmds := []struct {
		name string
		run  func() error
	}{
		{"placePrimitive", func() error {
			_, err := e.c.PlacePrimitive(ctx, scene.ObjectCube, place.Request{}, 1, "")
			return err
		}},
		{"placeModel", func() error {
			_, err := e.c.PlaceModel(ctx, &src, place.Request{}, 1)
			return err
		}},
		{"prepareModel", func() error {
			_, err := e.c.PrepareModel(ctx, src, 1)
			return err
		}},
		{"removeNode", func() error { return e.c.RemoveNode(ctx, "node-000001") }},
		{"removeAllNodes", func() error { return e.c.RemoveAllNodes(ctx) }},
		{"updateNode", func() error {
			_, err := e.c.UpdateNode(ctx, "node-000001", scene.TransformPatch{})
			return err
		}},
		{"nodeCount", func() error {
			_, err := e.c.NodeCount(ctx)
			return err
		}},
		{"describeNode", func() error {
			_, err := e.c.DescribeNode(ctx, "node-000001")
			return err
		}},
		{"nodes", func() error {
			_, err := e.c.Nodes(ctx)
			return err
		}},
		{"planes", func() error {
			_, err := e.c.Planes(ctx)
			return err
		}},
		{"takeSnapshot", func() error {
			_, err := e.c.TakeSnapshot(ctx)
			return err
		}},
		{"clearModelCache", func() error { return e.c.ClearModelCache(ctx) }},
		{"pause", func() error { return e.c.Pause(ctx) }},
		{"resume", func() error { return e.c.Resume(ctx) }},
	}
	for _, cmd := range cmds {
		if err := cmd.run(); !status.Is(err, status.NotInitialized) {
			t.Errorf("%s before init: err = %v, want NotInitialized", cmd.name, err)
		}
	}

	// View callbacks are silent before init.
	e.c.HandleTap(10, 10)
	e.c.OnFrame()
	if evs := e.drain(); len(evs) != 0 {
		t.Fatalf("events before init: %v", evs)
	}
}

func TestFrameTrackingTransitions(t *testing.T) {
	e := newEnv(t)
	e.init(t)
	e.drain()

	e.frame(t)
	if got := e.c.State(); got != StateTracking {
		t.Fatalf("state after first frame = %v", got)
	}

	e.eng.SetTracking(false)
	e.frame(t)
	if got := e.c.State(); got != StateTrackingLost {
		t.Fatalf("state after losing tracking = %v", got)
	}

	e.eng.SetTracking(true)
	e.frame(t)
	if got := e.c.State(); got != StateTracking {
		t.Fatalf("state after regaining tracking = %v", got)
	}

	evs := e.drain()
	wantStates(t, stateSeq(evs), "tracking", "trackingLost", "tracking")

	tracking := eventsOf(evs, events.TrackingStateChanged)
	if len(tracking) != 3 {
		t.Fatalf("trackingStateChanged count = %d, want one per frame", len(tracking))
	}
	want := []bool{true, false, true}
	for i, ev := range tracking {
		if ev.IsTracking != want[i] {
			t.Fatalf("trackingStateChanged[%d] = %v, want %v", i, ev.IsTracking, want[i])
		}
	}
}

func TestTrackingEventNotDeduplicated(t *testing.T) {
	e := newEnv(t)
	e.init(t)
	e.drain()

	for i := 0; i < 5; i++ {
		e.frame(t)
	}
	got := eventsOf(e.drain(), events.TrackingStateChanged)
	if len(got) != 5 {
		t.Fatalf("trackingStateChanged count = %d, want 5", len(got))
	}
}

func TestPauseDropsFrames(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.init(t)
	e.frame(t)
	e.drain()

	if err := e.c.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	e.frame(t)
	e.frame(t)
	if evs := e.drain(); len(evs) != 0 {
		t.Fatalf("events while paused: %v", evs)
	}

	if err := e.c.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	e.frame(t)
	if got := eventsOf(e.drain(), events.TrackingStateChanged); len(got) != 1 {
		t.Fatalf("trackingStateChanged after resume = %d events, want 1", len(got))
	}
}

func TestReinitializeKeepsScene(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.init(t)
	if _, err := e.c.PlacePrimitive(ctx, scene.ObjectCube, place.Request{}, 1, ""); err != nil {
		t.Fatalf("PlacePrimitive: %v", err)
	}
	e.drain()

	cfg := scene.SessionConfig{PlaneDetection: scene.DetectHorizontal, ShowPlanes: true}
	if err := e.c.Initialize(ctx, cfg); err != nil {
		t.Fatalf("re-Initialize: %v", err)
	}
	if got := e.c.State(); got != StateReady {
		t.Fatalf("state after re-init = %v", got)
	}
	wantStates(t, stateSeq(e.drain()), "initializing", "ready")

	count, err := e.c.NodeCount(ctx)
	if err != nil || count != 1 {
		t.Fatalf("NodeCount after re-init = %d, %v", count, err)
	}
}

func TestPlaneIngestion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.init(t)
	e.drain()

	e.eng.PutPlane(floorPlane("plane-1", 1, 1))
	e.frame(t)

	e.eng.PutPlane(floorPlane("plane-1", 4, 4))
	e.eng.PutPlane(scene.Plane{ID: "plane-2", Center: scene.Vector3{Z: -3}, Width: 2, Height: 2, Orientation: scene.PlaneVertical})
	e.frame(t)

	detected := eventsOf(e.drain(), events.PlaneDetected)
	if len(detected) != 3 {
		t.Fatalf("planeDetected count = %d, want 3 (rescans repeat)", len(detected))
	}

	planes, err := e.c.Planes(ctx)
	if err != nil {
		t.Fatalf("Planes: %v", err)
	}
	if len(planes) != 2 {
		t.Fatalf("Planes len = %d, want 2", len(planes))
	}
	if planes[0].ID != "plane-1" || planes[1].ID != "plane-2" {
		t.Fatalf("plane order = %s, %s", planes[0].ID, planes[1].ID)
	}
	if planes[0].Width != 4 {
		t.Fatalf("rescanned plane width = %v, want latest geometry", planes[0].Width)
	}
	if planes[1].Orientation != scene.PlaneVertical {
		t.Fatalf("plane-2 orientation = %v", planes[1].Orientation)
	}
}

func TestDisposeIsTerminalAndIdempotent(t *testing.T) {
	e := newEnv(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	ctx := context.Background()
	e.init(t)
	if _, err := e.c.PlacePrimitive(ctx, scene.ObjectCube, place.Request{}, 1, ""); err != nil {
		t.Fatalf("PlacePrimitive: %v", err)
	}
	e.drain()

	e.c.Dispose()
	e.c.Dispose()

	if got := e.c.State(); got != StateDisposed {
		t.Fatalf("state = %v, want disposed", got)
	}
	if n := e.eng.NodeCount(); n != 0 {
		t.Fatalf("engine nodes after dispose = %d", n)
	}
	if err := e.eng.ConfigureSession(scene.SessionConfig{}); err == nil {
		t.Fatal("engine still alive after dispose")
	}

	if _, err := e.c.NodeCount(ctx); !status.Is(err, status.NotInitialized) {
		t.Fatalf("NodeCount after dispose: %v, want NotInitialized", err)
	}
	if err := e.c.Initialize(ctx, scene.SessionConfig{}); !status.Is(err, status.NotInitialized) {
		t.Fatalf("Initialize after dispose: %v, want NotInitialized", err)
	}

	// The final state event arrives and then the channel closes.
	var last string
	for ev := range e.ch {
		if ev.Kind == events.SessionStateChanged {
			last = ev.State
		}
	}
	if last != "disposed" {
		t.Fatalf("last state event = %q, want disposed", last)
	}
}

func TestDisposeCancelsInFlightLoads(t *testing.T) {
	e := newEnv(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	e.init(t)

	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1048576")
		w.Write(glbBytes)
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	src, err := model.ParseSource("url", srv.URL+"/big.glb", true)
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	errCh := make(chan error, 1)
	go func() {
		_, err := e.c.PlaceModel(context.Background(), &src, place.Request{}, 1)
		errCh <- err
	}()

	<-started
	e.c.Dispose()

	if err := <-errCh; err == nil {
		t.Fatal("PlaceModel survived dispose")
	} else if !errors.Is(err, context.Canceled) {
		t.Fatalf("PlaceModel error = %v, want context.Canceled in chain", err)
	}
	if n := e.cache.Entries(); n != 0 {
		t.Fatalf("cache entries after canceled load = %d", n)
	}
}

func TestSelfPump(t *testing.T) {
	e := newEnv(t, func(d *Deps) { d.FrameInterval = 2 * time.Millisecond })
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	e.init(t)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-e.ch:
			if ev.Kind == events.TrackingStateChanged {
				e.c.Dispose()
				return
			}
		case <-deadline:
			t.Fatal("no frame events from self-pump")
		}
	}
}

func TestStateString(t *testing.T) {
	cases := []struct {
		s    State
		want string
	}{
		{StateUninitialized, "uninitialized"},
		{StateInitializing, "initializing"},
		{StateReady, "ready"},
		{StateTracking, "tracking"},
		{StateTrackingLost, "trackingLost"},
		{StateError, "error"},
		{StateDisposed, "disposed"},
		{State(42), "State(42)"},
	}
	for _, c := range cases {
		if got := c.s.String(); got != c.want {
			t.Errorf("State(%d).String() = %q, want %q", int(c.s), got, c.want)
		}
	}
	if got := fmt.Sprint(StateTracking); got != "tracking" {
		t.Errorf("Sprint = %q", got)
	}
}
