package script

import (
	"errors"
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/arlow/armature/pkg/bridge"
	"github.com/arlow/armature/pkg/scene"
)

// kwArgs splits a builtin's argument list into :keyword pairs and
// positional values.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return strings.TrimPrefix(str.S, kwPrefix), true
}

func parseArgs(args []zygo.Sexp) kwArgs {
	out := kwArgs{kw: map[string]zygo.Sexp{}}
	i := 0
	for i < len(args) {
		if name, ok := isKW(args[i]); ok {
			if i+1 < len(args) {
				out.kw[name] = args[i+1]
				i += 2
				continue
			}
			// Trailing keyword with no value acts as a flag.
			out.kw[name] = zygo.SexpNull
			i++
			continue
		}
		out.positional = append(out.positional, args[i])
		i++
	}
	return out
}

func (a kwArgs) float(name string) (float64, bool, error) {
	v, ok := a.kw[name]
	if !ok {
		return 0, false, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", name, err)
	}
	return f, true, nil
}

func (a kwArgs) str(name string) (string, bool, error) {
	v, ok := a.kw[name]
	if !ok {
		return "", false, nil
	}
	s, err := toString(v)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", name, err)
	}
	return s, true, nil
}

func (a kwArgs) boolean(name string) (bool, bool, error) {
	v, ok := a.kw[name]
	if !ok {
		return false, false, nil
	}
	b, err := toBool(v)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", name, err)
	}
	return b, true, nil
}

// vec3 returns nil when the keyword is absent.
func (a kwArgs) vec3(name string) (*scene.Vector3, error) {
	v, ok := a.kw[name]
	if !ok {
		return nil, nil
	}
	sv, ok := v.(*sexpVec3)
	if !ok {
		return nil, fmt.Errorf("%s: expected a (vec3 x y z), got %s", name, v.SexpString(nil))
	}
	out := sv.v
	return &out, nil
}

// screen returns nil when the keyword is absent.
func (a kwArgs) screen(name string) (*bridge.ScreenPoint, error) {
	v, ok := a.kw[name]
	if !ok {
		return nil, nil
	}
	sp, ok := v.(*sexpScreen)
	if !ok {
		return nil, fmt.Errorf("%s: expected a (screen x y), got %s", name, v.SexpString(nil))
	}
	out := sp.p
	return &out, nil
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	default:
		return 0, fmt.Errorf("expected a number, got %s", s.SexpString(nil))
	}
}

func toString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected a string, got %s", s.SexpString(nil))
	}
	return str.S, nil
}

// toKeywordString accepts :keyword or a plain string and returns the
// bare name.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected a keyword or string, got %s", s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

func toBool(s zygo.Sexp) (bool, error) {
	b, ok := s.(*zygo.SexpBool)
	if !ok {
		return false, fmt.Errorf("expected true or false, got %s", s.SexpString(nil))
	}
	return b.Val, nil
}

func toNode(s zygo.Sexp) (*sexpNode, error) {
	n, ok := s.(*sexpNode)
	if !ok {
		return nil, fmt.Errorf("expected a node, got %s", s.SexpString(nil))
	}
	return n, nil
}

// toNodeID accepts either a placed node or its id string.
func toNodeID(s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *sexpNode:
		return v.d.ID, nil
	case *zygo.SexpStr:
		return v.S, nil
	default:
		return "", fmt.Errorf("expected a node or node id, got %s", s.SexpString(nil))
	}
}

// sexpVec3 is a position, scale or rotation triple inside the
// interpreter.
type sexpVec3 struct {
	v scene.Vector3
}

func (s *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", s.v.X, s.v.Y, s.v.Z)
}

func (s *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpScreen is a normalized screen point, (0,0) top-left through
// (1,1) bottom-right.
type sexpScreen struct {
	p bridge.ScreenPoint
}

func (s *sexpScreen) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(screen %g %g)", s.p.X, s.p.Y)
}

func (s *sexpScreen) Type() *zygo.RegisteredType { return nil }

// sexpNode wraps a placed node's descriptor.
type sexpNode struct {
	d bridge.NodeDescriptor
}

func (s *sexpNode) SexpString(ps *zygo.PrintState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(node %s :kind %s :position (%g %g %g) :scale (%g %g %g)",
		s.d.ID, s.d.Kind,
		s.d.Position.X, s.d.Position.Y, s.d.Position.Z,
		s.d.Scale.X, s.d.Scale.Y, s.d.Scale.Z)
	if s.d.Color != "" {
		fmt.Fprintf(&b, " :color %s", s.d.Color)
	}
	if s.d.Anchored {
		fmt.Fprintf(&b, " :plane %s", s.d.PlaneID)
	}
	b.WriteString(")")
	return b.String()
}

func (s *sexpNode) Type() *zygo.RegisteredType { return nil }

// sexpPlane wraps a detected plane's descriptor.
type sexpPlane struct {
	d bridge.PlaneDescriptor
}

func (s *sexpPlane) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(plane %s :%s %gx%g :center (%g %g %g))",
		s.d.ID, s.d.Orientation, s.d.Width, s.d.Height,
		s.d.Center.X, s.d.Center.Y, s.d.Center.Z)
}

func (s *sexpPlane) Type() *zygo.RegisteredType { return nil }

// register installs every console builtin into a fresh interpreter.
func (c *Console) register(env *zygo.Zlisp) {
	c.registerValues(env)
	c.registerCommands(env)
	c.registerSim(env)
}

// registerValues installs the builtins that construct and inspect
// values without touching the session.
func (c *Console) registerValues(env *zygo.Zlisp) {
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3: want 3 numbers, got %d args", len(args))
		}
		var v [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %w", err)
			}
			v[i] = f
		}
		return &sexpVec3{v: scene.Vector3{X: v[0], Y: v[1], Z: v[2]}}, nil
	})

	env.AddFunction("screen", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("screen: want x and y in [0,1], got %d args", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("screen: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("screen: %w", err)
		}
		return &sexpScreen{p: bridge.ScreenPoint{X: x, Y: y}}, nil
	})

	env.AddFunction("node_id", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("node-id: want one node")
		}
		n, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node-id: %w", err)
		}
		return &zygo.SexpStr{S: n.d.ID}, nil
	})

	env.AddFunction("node_anchored", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("node-anchored: want one node")
		}
		n, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node-anchored: %w", err)
		}
		return &zygo.SexpBool{Val: n.d.Anchored}, nil
	})

	env.AddFunction("node_plane", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("node-plane: want one node")
		}
		n, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node-plane: %w", err)
		}
		return &zygo.SexpStr{S: n.d.PlaneID}, nil
	})

	env.AddFunction("node_position", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, errors.New("node-position: want one node")
		}
		n, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node-position: %w", err)
		}
		return &sexpVec3{v: n.d.Position}, nil
	})

	env.AddFunction("assert", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 || len(args) > 2 {
			return zygo.SexpNull, errors.New("assert: want a condition and an optional message")
		}
		ok, err := toBool(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("assert: %w", err)
		}
		if !ok {
			msg := "assertion failed"
			if len(args) == 2 {
				if s, serr := toString(args[1]); serr == nil {
					msg = msg + ": " + s
				}
			}
			return zygo.SexpNull, errors.New(msg)
		}
		return &zygo.SexpBool{Val: true}, nil
	})
}
