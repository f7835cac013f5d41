package script

import (
	"context"
	"errors"
	"fmt"
	"os"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/arlow/armature/pkg/bridge"
	"github.com/arlow/armature/pkg/scene"
)

// modelSource builds a model source from :url, :file or :asset, with
// :cache controlling remote caching. Returns nil when no source
// keyword is present.
func modelSource(pa kwArgs) (*bridge.ModelSource, error) {
	var src *bridge.ModelSource
	for _, kind := range [...]string{"url", "file", "asset"} {
		path, ok, err := pa.str(kind)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if src != nil {
			return nil, errors.New("give only one of :url, :file or :asset")
		}
		src = &bridge.ModelSource{Kind: kind, Path: path}
	}
	if src == nil {
		return nil, nil
	}
	cache, ok, err := pa.boolean("cache")
	if err != nil {
		return nil, err
	}
	if ok {
		src.CacheRemote = &cache
	}
	return src, nil
}

// registerCommands installs the builtins that drive the session
// through the bridge.
func (c *Console) registerCommands(env *zygo.Zlisp) {
	env.AddFunction("ar_init", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var req bridge.InitializeRequest
		if v, ok := pa.kw["planes"]; ok {
			s, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("ar-init: planes: %w", err)
			}
			if s == "horizontal-and-vertical" {
				s = "horizontalAndVertical"
			}
			req.PlaneDetection = s
		}
		show, ok, err := pa.boolean("show-planes")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("ar-init: %w", err)
		}
		if ok {
			req.ShowPlanes = show
		}
		light, ok, err := pa.boolean("light-estimation")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("ar-init: %w", err)
		}
		if ok {
			req.LightEstimation = light
		}
		if err := c.bridge.Initialize(context.Background(), req); err != nil {
			return zygo.SexpNull, err
		}
		return &zygo.SexpStr{S: c.bridge.State()}, nil
	})

	place := func(kind string) func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error) {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			req := bridge.PlacePrimitiveRequest{Kind: kind}
			scale, ok, err := pa.float("scale")
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place-%s: %w", kind, err)
			}
			if ok {
				req.Scale = scale
			}
			color, ok, err := pa.str("color")
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place-%s: %w", kind, err)
			}
			if ok {
				req.Color = color
			}
			if req.Offset, err = pa.vec3("offset"); err != nil {
				return zygo.SexpNull, fmt.Errorf("place-%s: %w", kind, err)
			}
			if req.Screen, err = pa.screen("screen"); err != nil {
				return zygo.SexpNull, fmt.Errorf("place-%s: %w", kind, err)
			}
			d, err := c.bridge.PlacePrimitive(context.Background(), req)
			if err != nil {
				return zygo.SexpNull, err
			}
			return &sexpNode{d: d}, nil
		}
	}
	env.AddFunction("place_cube", place("cube"))
	env.AddFunction("place_sphere", place("sphere"))
	env.AddFunction("place_cylinder", place("cylinder"))

	env.AddFunction("place_model", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		src, err := modelSource(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place-model: %w", err)
		}
		req := bridge.PlaceModelRequest{Source: src}
		scale, ok, err := pa.float("scale")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place-model: %w", err)
		}
		if ok {
			req.Scale = scale
		}
		if req.Offset, err = pa.vec3("offset"); err != nil {
			return zygo.SexpNull, fmt.Errorf("place-model: %w", err)
		}
		if req.Screen, err = pa.screen("screen"); err != nil {
			return zygo.SexpNull, fmt.Errorf("place-model: %w", err)
		}
		d, err := c.bridge.PlaceModel(context.Background(), req)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpNode{d: d}, nil
	})

	env.AddFunction("prepare_model", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		src, err := modelSource(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("prepare-model: %w", err)
		}
		if src == nil {
			return zygo.SexpNull, errors.New("prepare-model: want :url, :file or :asset")
		}
		req := bridge.PrepareModelRequest{Source: *src}
		scale, ok, err := pa.float("scale")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("prepare-model: %w", err)
		}
		if ok {
			req.Scale = scale
		}
		uri, err := c.bridge.PrepareModel(context.Background(), req)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &zygo.SexpStr{S: uri}, nil
	})

	env.AddFunction("place_on_tap", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		v, ok := pa.kw["kind"]
		if !ok {
			return zygo.SexpNull, errors.New("place-on-tap: want :kind cube, sphere, cylinder or model")
		}
		kind, err := toKeywordString(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place-on-tap: kind: %w", err)
		}
		src, err := modelSource(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place-on-tap: %w", err)
		}
		req := bridge.PlaceOnTapRequest{Kind: kind, Source: src}
		scale, ok, err := pa.float("scale")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place-on-tap: %w", err)
		}
		if ok {
			req.Scale = scale
		}
		color, ok, err := pa.str("color")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place-on-tap: %w", err)
		}
		if ok {
			req.Color = color
		}
		if req.Screen, err = pa.screen("screen"); err != nil {
			return zygo.SexpNull, fmt.Errorf("place-on-tap: %w", err)
		}
		d, err := c.bridge.PlaceOnTap(context.Background(), req)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpNode{d: d}, nil
	})

	env.AddFunction("remove_node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("remove-node: want a node or node id")
		}
		id, err := toNodeID(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("remove-node: %w", err)
		}
		if err := c.bridge.RemoveNode(context.Background(), id); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	env.AddFunction("remove_all", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := c.bridge.RemoveAllNodes(context.Background()); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	env.AddFunction("update_node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, errors.New("update-node: want a node or node id")
		}
		id, err := toNodeID(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("update-node: %w", err)
		}
		req := bridge.UpdateNodeRequest{ID: id}
		if req.Position, err = pa.vec3("position"); err != nil {
			return zygo.SexpNull, fmt.Errorf("update-node: %w", err)
		}
		rot, err := pa.vec3("rotation")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("update-node: %w", err)
		}
		if rot != nil {
			req.Rotation = &scene.Rotation{Pitch: rot.X, Yaw: rot.Y, Roll: rot.Z}
		}
		// :scale takes a uniform number or a (vec3 x y z).
		if v, ok := pa.kw["scale"]; ok {
			if sv, isVec := v.(*sexpVec3); isVec {
				out := sv.v
				req.Scale = &out
			} else {
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("update-node: scale: %w", err)
				}
				u := scene.Uniform(f)
				req.Scale = &u
			}
		}
		d, err := c.bridge.UpdateNode(context.Background(), req)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpNode{d: d}, nil
	})

	env.AddFunction("node_count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		n, err := c.bridge.NodeCount(context.Background())
		if err != nil {
			return zygo.SexpNull, err
		}
		return &zygo.SexpInt{Val: int64(n)}, nil
	})

	env.AddFunction("nodes", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		ds, err := c.bridge.Nodes(context.Background())
		if err != nil {
			return zygo.SexpNull, err
		}
		out := make([]zygo.Sexp, len(ds))
		for i, d := range ds {
			out[i] = &sexpNode{d: d}
		}
		return &zygo.SexpArray{Val: out}, nil
	})

	env.AddFunction("planes", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		ds, err := c.bridge.Planes(context.Background())
		if err != nil {
			return zygo.SexpNull, err
		}
		out := make([]zygo.Sexp, len(ds))
		for i, d := range ds {
			out[i] = &sexpPlane{d: d}
		}
		return &zygo.SexpArray{Val: out}, nil
	})

	env.AddFunction("snapshot", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		data, err := c.bridge.TakeSnapshot(context.Background())
		if err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) > 0 {
			path, err := toString(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("snapshot: %w", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return zygo.SexpNull, fmt.Errorf("snapshot: %w", err)
			}
			return &zygo.SexpStr{S: path}, nil
		}
		return &zygo.SexpInt{Val: int64(len(data))}, nil
	})

	env.AddFunction("clear_cache", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := c.bridge.ClearModelCache(context.Background()); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	env.AddFunction("cancel_loads", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		c.bridge.CancelModelLoad()
		return zygo.SexpNull, nil
	})

	env.AddFunction("pause", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := c.bridge.Pause(context.Background()); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	env.AddFunction("resume", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := c.bridge.Resume(context.Background()); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	env.AddFunction("dispose", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		c.bridge.Dispose()
		return zygo.SexpNull, nil
	})

	env.AddFunction("state", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpStr{S: c.bridge.State()}, nil
	})
}
