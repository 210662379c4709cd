// Package scene keeps the live visual anchors of a tracking session in step
// with the memory collection and maps taps on them back to memories.
package scene

import (
	"github.com/lazypower/waypoint/internal/memory"
	"github.com/lazypower/waypoint/internal/spatial"
)

// Kind names the role a node plays in a memory's visual.
type Kind string

const (
	KindRoot   Kind = "root"
	KindAnchor Kind = "anchor"
	KindSphere Kind = "sphere"
	KindPhoto  Kind = "photo"
	KindLabel  Kind = "label"
	KindGlow   Kind = "glow"
)

// MemoryRef tags a node with the memory it represents. The node does not
// own the memory; the ref is for lookup only.
type MemoryRef struct {
	ID     string
	Memory memory.Memory
}

// Node is one element of a visual tree. Offset is relative to the parent.
// Radius is the pick radius used by hit testing; zero means the node has no
// pickable geometry. HitTestable marks parts that get tagged with the
// memory; decorative parts are left untagged and resolve through their
// ancestors.
type Node struct {
	Name        string
	Kind        Kind
	Offset      spatial.Vec3
	Radius      float32
	HitTestable bool
	Memory      *MemoryRef

	parent   *Node
	children []*Node
}

// AddChild attaches c under n, detaching it from any previous parent.
func (n *Node) AddChild(c *Node) {
	c.RemoveFromParent()
	c.parent = n
	n.children = append(n.children, c)
}

// RemoveFromParent detaches n from its parent.
func (n *Node) RemoveFromParent() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// Parent returns the owning node, or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the direct children of n.
func (n *Node) Children() []*Node { return n.children }

// WorldPosition sums offsets from n up to the root.
func (n *Node) WorldPosition() spatial.Vec3 {
	var p spatial.Vec3
	for cur := n; cur != nil; cur = cur.parent {
		p = p.Add(cur.Offset)
	}
	return p
}

// Walk visits n and its descendants depth-first, parents before children.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// TaggedAncestor returns the memory ref on n or the nearest ancestor that
// carries one.
func (n *Node) TaggedAncestor() *MemoryRef {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.Memory != nil {
			return cur.Memory
		}
	}
	return nil
}
