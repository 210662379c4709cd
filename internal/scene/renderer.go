package scene

import "github.com/lazypower/waypoint/internal/memory"

// Point is a location on screen, in pixels from the top-left corner.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Renderer builds and tears down the visual for a memory. The returned root
// is owned by the caller until it is handed back to DestroyVisual.
type Renderer interface {
	CreateVisual(m memory.Memory) (*Node, error)
	DestroyVisual(root *Node)
}

// HitTester returns the nodes under a screen point, nearest first.
type HitTester interface {
	HitTest(p Point) []*Node
}
