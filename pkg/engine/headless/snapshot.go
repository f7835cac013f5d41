package headless

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sort"
	"strconv"

	"github.com/arlow/armature/pkg/scene"
)

var background = color.RGBA{R: 30, G: 32, B: 38, A: 255}

var kindColors = map[scene.ObjectKind]color.RGBA{
	scene.ObjectCube:     {R: 76, G: 139, B: 245, A: 255},
	scene.ObjectSphere:   {R: 224, G: 102, B: 102, A: 255},
	scene.ObjectCylinder: {R: 147, G: 196, B: 125, A: 255},
	scene.ObjectModel:    {R: 180, G: 167, B: 214, A: 255},
}

// Snapshot renders the view to a PNG: a background fill with one square
// marker per visible node, sized by projected bounds and painted far to
// near.
func (e *Engine) Snapshot() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return nil, fmt.Errorf("headless: engine destroyed")
	}
	if e.width <= 0 || e.height <= 0 {
		return nil, fmt.Errorf("headless: zero-area view %dx%d", e.width, e.height)
	}

	img := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	type marker struct {
		sx, sy, r, depth float64
		c                color.RGBA
	}
	var markers []marker
	for _, ref := range e.nodeOrder {
		n := e.nodes[ref]
		sx, sy, depth, ok := e.project(n.transform.Position)
		if !ok {
			continue
		}
		r := e.projectedRadius(n, depth)
		if r < 2 {
			r = 2
		}
		if r > 120 {
			r = 120
		}
		markers = append(markers, marker{sx: sx, sy: sy, r: r, depth: depth, c: nodeColor(n)})
	}
	sort.Slice(markers, func(i, j int) bool {
		return markers[i].depth > markers[j].depth
	})

	for _, m := range markers {
		fillSquare(img, m.sx, m.sy, m.r, m.c)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("headless: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func fillSquare(img *image.RGBA, cx, cy, half float64, c color.RGBA) {
	b := img.Bounds()
	x0 := int(cx - half)
	x1 := int(cx + half)
	y0 := int(cy - half)
	y1 := int(cy + half)
	for y := y0; y <= y1; y++ {
		if y < b.Min.Y || y >= b.Max.Y {
			continue
		}
		for x := x0; x <= x1; x++ {
			if x < b.Min.X || x >= b.Max.X {
				continue
			}
			img.SetRGBA(x, y, c)
		}
	}
}

func nodeColor(n *node) color.RGBA {
	if c, ok := parseHexColor(n.spec.Color); ok {
		return c
	}
	if c, ok := kindColors[n.spec.Kind]; ok {
		return c
	}
	return kindColors[scene.ObjectCube]
}

// parseHexColor parses "#rrggbb". Anything else reports false and the
// caller falls back to the kind default.
func parseHexColor(s string) (color.RGBA, bool) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}, true
}
