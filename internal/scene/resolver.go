package scene

import (
	"github.com/lazypower/waypoint/internal/memory"
	"github.com/lazypower/waypoint/internal/metrics"
)

// HitResolver maps a screen tap to the memory it landed on.
type HitResolver struct {
	hits    HitTester
	metrics *metrics.Collector
}

// NewHitResolver returns a resolver using ht for geometry.
func NewHitResolver(ht HitTester, m *metrics.Collector) *HitResolver {
	return &HitResolver{hits: ht, metrics: m}
}

// Resolve returns the memory of the nearest hit that carries a tag on
// itself or any ancestor. Scanning stops at the first candidate with a tag.
// ok is false when nothing under p belongs to a memory.
func (h *HitResolver) Resolve(p Point) (m memory.Memory, ok bool) {
	for _, n := range h.hits.HitTest(p) {
		if ref := n.TaggedAncestor(); ref != nil {
			h.metrics.TapResolved(true)
			return ref.Memory, true
		}
	}
	h.metrics.TapResolved(false)
	return memory.Memory{}, false
}
