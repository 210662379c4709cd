package scene

import (
	"fmt"
	"math"
	"sort"

	"github.com/lazypower/waypoint/internal/memory"
	"github.com/lazypower/waypoint/internal/spatial"
)

// Marker geometry, in meters.
const (
	sphereRadius     = 0.05
	photoHalfWidth   = 0.10
	labelRadius      = 0.03
	glowPadding      = 0.03
	textLabelOffset  = 0.10
	photoLabelOffset = -0.10
	nearPlane        = 0.01
)

// Viewport describes the camera image hit tests are performed against.
type Viewport struct {
	Width  float32
	Height float32
	FOVY   float64 // vertical field of view, radians
}

// DefaultViewport is a portrait phone screen with a 60 degree vertical FOV.
var DefaultViewport = Viewport{Width: 1170, Height: 2532, FOVY: math.Pi / 3}

// PoseSource supplies the camera pose hit tests project through.
type PoseSource interface {
	Latest() (spatial.Pose, bool)
}

// Graph is an in-process scene graph. It builds a marker per memory (a
// sphere or photo plane with a floating label and a glow shell) and hit
// tests by projecting pick spheres through a pinhole camera at the latest
// pose. It is driven from the session's owner goroutine.
type Graph struct {
	root *Node
	pose PoseSource
	view Viewport
}

// NewGraph returns an empty scene viewed through pose.
func NewGraph(pose PoseSource, view Viewport) *Graph {
	if view.Width <= 0 || view.Height <= 0 || view.FOVY <= 0 {
		view = DefaultViewport
	}
	return &Graph{
		root: &Node{Name: "world", Kind: KindRoot},
		pose: pose,
		view: view,
	}
}

// CreateVisual builds and attaches the marker for m.
func (g *Graph) CreateVisual(m memory.Memory) (*Node, error) {
	if !finite(m.Position) {
		return nil, fmt.Errorf("memory %s: position %v is not finite", m.ID, m.Position)
	}

	anchor := &Node{Name: "anchor:" + m.ID, Kind: KindAnchor, Offset: m.Position}

	var body, label *Node
	if m.HasPhoto() {
		body = &Node{Name: "photo", Kind: KindPhoto, Radius: photoHalfWidth, HitTestable: true}
		label = &Node{Name: "caption", Kind: KindLabel, Offset: spatial.Vec3{Y: photoLabelOffset}, Radius: labelRadius}
	} else {
		body = &Node{Name: "sphere", Kind: KindSphere, Radius: sphereRadius, HitTestable: true}
		label = &Node{Name: "label", Kind: KindLabel, Offset: spatial.Vec3{Y: textLabelOffset}, Radius: labelRadius}
	}
	glow := &Node{Name: "glow", Kind: KindGlow, Radius: body.Radius + glowPadding}

	body.AddChild(glow)
	body.AddChild(label)
	anchor.AddChild(body)
	g.root.AddChild(anchor)
	return anchor, nil
}

// DestroyVisual detaches a marker from the scene.
func (g *Graph) DestroyVisual(root *Node) {
	root.RemoveFromParent()
}

// Anchors returns the markers currently in the scene.
func (g *Graph) Anchors() []*Node {
	return g.root.Children()
}

type hit struct {
	node  *Node
	depth float32
}

// HitTest returns every pickable node whose projected disc contains p,
// nearest first. Without a pose the camera sits at the origin looking
// down -Z.
func (g *Graph) HitTest(p Point) []*Node {
	pose, ok := g.pose.Latest()
	if !ok {
		pose = spatial.Pose{Orientation: spatial.Identity}
	}
	focal := (g.view.Height / 2) / float32(math.Tan(g.view.FOVY/2))
	cx, cy := g.view.Width/2, g.view.Height/2

	var hits []hit
	g.root.Walk(func(n *Node) {
		if n.Radius <= 0 {
			return
		}
		c := pose.ToCamera(n.WorldPosition())
		depth := -c.Z
		if depth <= nearPlane {
			return
		}
		sx := cx + focal*c.X/depth
		sy := cy - focal*c.Y/depth
		r := focal * n.Radius / depth
		dx, dy := p.X-sx, p.Y-sy
		if dx*dx+dy*dy <= r*r {
			hits = append(hits, hit{node: n, depth: depth})
		}
	})

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].depth < hits[j].depth })
	out := make([]*Node, len(hits))
	for i, h := range hits {
		out[i] = h.node
	}
	return out
}

func finite(v spatial.Vec3) bool {
	for _, f := range []float32{v.X, v.Y, v.Z} {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}
