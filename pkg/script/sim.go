package script

import (
	"context"
	"errors"
	"fmt"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/arlow/armature/pkg/scene"
)

func errSimOnly(name string) error {
	return fmt.Errorf("%s requires the headless engine", name)
}

// registerSim installs the virtual-world builtins. They stage planes,
// tracking and camera motion on the headless engine so scripts can
// run a whole session without a device. Each errors when the console
// was built without a sim.
func (c *Console) registerSim(env *zygo.Zlisp) {
	env.AddFunction("put_plane", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if c.sim == nil {
			return zygo.SexpNull, errSimOnly("put-plane")
		}
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, errors.New("put-plane: want a plane id")
		}
		id, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("put-plane: %w", err)
		}
		p := scene.Plane{ID: id, Width: 1, Height: 1}
		w, ok, err := pa.float("width")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("put-plane: %w", err)
		}
		if ok {
			p.Width = w
		}
		h, ok, err := pa.float("height")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("put-plane: %w", err)
		}
		if ok {
			p.Height = h
		}
		center, err := pa.vec3("center")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("put-plane: %w", err)
		}
		if center != nil {
			p.Center = *center
		}
		if v, ok := pa.kw["orientation"]; ok {
			s, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("put-plane: orientation: %w", err)
			}
			switch s {
			case "horizontal":
				p.Orientation = scene.PlaneHorizontal
			case "vertical":
				p.Orientation = scene.PlaneVertical
			default:
				return zygo.SexpNull, fmt.Errorf("put-plane: orientation: want horizontal or vertical, got %q", s)
			}
		}
		c.sim.PutPlane(p)
		return &zygo.SexpStr{S: id}, nil
	})

	env.AddFunction("set_tracking", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if c.sim == nil {
			return zygo.SexpNull, errSimOnly("set-tracking")
		}
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("set-tracking: want true or false")
		}
		ok, err := toBool(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-tracking: %w", err)
		}
		c.sim.SetTracking(ok)
		return &zygo.SexpBool{Val: ok}, nil
	})

	env.AddFunction("set_camera", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if c.sim == nil {
			return zygo.SexpNull, errSimOnly("set-camera")
		}
		pa := parseArgs(args)
		var pose scene.Pose
		pos, err := pa.vec3("position")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-camera: %w", err)
		}
		if pos != nil {
			pose.Position = *pos
		}
		pitch, ok, err := pa.float("pitch")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-camera: %w", err)
		}
		if ok {
			pose.Rotation.Pitch = pitch
		}
		yaw, ok, err := pa.float("yaw")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-camera: %w", err)
		}
		if ok {
			pose.Rotation.Yaw = yaw
		}
		roll, ok, err := pa.float("roll")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-camera: %w", err)
		}
		if ok {
			pose.Rotation.Roll = roll
		}
		c.sim.SetCameraPose(pose)
		return zygo.SexpNull, nil
	})

	// advance ticks the sim and pumps one frame per tick, then waits
	// for the controller to absorb them so the next form observes the
	// result.
	env.AddFunction("advance", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if c.sim == nil {
			return zygo.SexpNull, errSimOnly("advance")
		}
		pa := parseArgs(args)
		if len(pa.positional) > 1 {
			return zygo.SexpNull, errors.New("advance: want at most one frame count")
		}
		n := 1
		if len(pa.positional) == 1 {
			f, err := toFloat64(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("advance: %w", err)
			}
			n = int(f)
			if n < 1 {
				return zygo.SexpNull, fmt.Errorf("advance: want a frame count >= 1, got %d", n)
			}
		}
		var frame uint64
		for i := 0; i < n; i++ {
			frame = c.sim.Advance()
			c.bridge.OnFrame()
		}
		// The count doubles as a queue barrier. Before initialization
		// there is no queue to wait on and the error is irrelevant.
		_, _ = c.bridge.NodeCount(context.Background())
		return &zygo.SexpInt{Val: int64(frame)}, nil
	})
}
