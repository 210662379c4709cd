package scene

import (
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/lazypower/waypoint/internal/memory"
	"github.com/lazypower/waypoint/internal/metrics"
	"github.com/lazypower/waypoint/internal/spatial"
)

var errNoVisual = errors.New("renderer returned no visual")

// LiveAnchor is a memory's visual presence in the running session. It is a
// cache derived from store membership, never a source of truth.
type LiveAnchor struct {
	MemoryID string
	Root     *Node
}

// ReconcileResult lists the ids touched by one pass.
type ReconcileResult struct {
	Created   []string
	Destroyed []string
}

// Empty reports whether the pass changed nothing.
func (r ReconcileResult) Empty() bool {
	return len(r.Created) == 0 && len(r.Destroyed) == 0
}

// Reconciler maintains exactly one LiveAnchor per memory id. It owns every
// rendering handle it creates and is the only thing that releases them. It
// is not safe for concurrent use.
type Reconciler struct {
	renderer Renderer
	anchors  map[string]*LiveAnchor
	log      *zap.Logger
	metrics  *metrics.Collector
}

// NewReconciler returns a reconciler with no anchors.
func NewReconciler(r Renderer, logger *zap.Logger, m *metrics.Collector) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		renderer: r,
		anchors:  make(map[string]*LiveAnchor),
		log:      logger.Named("reconciler"),
		metrics:  m,
	}
}

// Reconcile brings the anchor set in line with memories: anchors are
// created for new ids and destroyed for ids no longer present. Anchors for
// ids present on both sides are left alone. A visual that fails to build is
// logged and retried on the next pass.
func (r *Reconciler) Reconcile(memories []memory.Memory) ReconcileResult {
	wanted := make(map[string]memory.Memory, len(memories))
	var order []string
	for _, m := range memories {
		if _, dup := wanted[m.ID]; dup {
			continue
		}
		wanted[m.ID] = m
		order = append(order, m.ID)
	}

	// Both sets are computed against the mapping as it stood on entry.
	var toCreate, toDestroy []string
	for _, id := range order {
		if _, ok := r.anchors[id]; !ok {
			toCreate = append(toCreate, id)
		}
	}
	for id := range r.anchors {
		if _, ok := wanted[id]; !ok {
			toDestroy = append(toDestroy, id)
		}
	}
	sort.Strings(toDestroy)

	var res ReconcileResult
	for _, id := range toDestroy {
		r.destroy(id)
		res.Destroyed = append(res.Destroyed, id)
	}
	for _, id := range toCreate {
		if r.create(wanted[id]) {
			res.Created = append(res.Created, id)
		}
	}

	if !res.Empty() {
		r.metrics.AnchorsChanged(len(res.Created), len(res.Destroyed), len(r.anchors))
		r.log.Debug("reconciled",
			zap.Int("created", len(res.Created)),
			zap.Int("destroyed", len(res.Destroyed)),
			zap.Int("live", len(r.anchors)))
	}
	return res
}

func (r *Reconciler) create(m memory.Memory) bool {
	root, err := r.renderer.CreateVisual(m)
	if err == nil && root == nil {
		err = errNoVisual
	}
	if err != nil {
		r.metrics.AnchorFailed()
		r.log.Warn("create visual failed", zap.String("memory_id", m.ID), zap.Error(err))
		return false
	}

	ref := &MemoryRef{ID: m.ID, Memory: m}
	root.Memory = ref
	root.Walk(func(n *Node) {
		if n.HitTestable {
			n.Memory = ref
		}
	})
	r.anchors[m.ID] = &LiveAnchor{MemoryID: m.ID, Root: root}
	return true
}

func (r *Reconciler) destroy(id string) {
	a := r.anchors[id]
	delete(r.anchors, id)
	r.renderer.DestroyVisual(a.Root)
}

// Reset destroys every anchor, as when the tracking session restarts.
func (r *Reconciler) Reset() int {
	ids := r.IDs()
	for _, id := range ids {
		r.destroy(id)
	}
	if len(ids) > 0 {
		r.metrics.AnchorsChanged(0, len(ids), 0)
		r.log.Info("anchors reset", zap.Int("destroyed", len(ids)))
	}
	return len(ids)
}

// Anchor returns the live anchor for a memory id.
func (r *Reconciler) Anchor(id string) (*LiveAnchor, bool) {
	a, ok := r.anchors[id]
	return a, ok
}

// IDs returns the ids with a live anchor, sorted.
func (r *Reconciler) IDs() []string {
	ids := make([]string, 0, len(r.anchors))
	for id := range r.anchors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live anchors.
func (r *Reconciler) Len() int { return len(r.anchors) }

// PartView is one node of an anchor as handed to a display client.
type PartView struct {
	Kind     Kind         `json:"kind"`
	Position spatial.Vec3 `json:"position"`
}

// AnchorView is a live anchor as handed to a display client.
type AnchorView struct {
	MemoryID string       `json:"memory_id"`
	Text     string       `json:"text"`
	HasPhoto bool         `json:"has_photo"`
	Position spatial.Vec3 `json:"position"`
	Parts    []PartView   `json:"parts"`
}

// Snapshot lists live anchors, sorted by memory id, with the cosmetic hover
// offset for elapsedSeconds applied to every part.
func (r *Reconciler) Snapshot(elapsedSeconds float64) []AnchorView {
	hover := spatial.HoverOffset(elapsedSeconds)
	views := make([]AnchorView, 0, len(r.anchors))
	for _, id := range r.IDs() {
		a := r.anchors[id]
		v := AnchorView{
			MemoryID: id,
			Text:     a.Root.Memory.Memory.Text,
			HasPhoto: a.Root.Memory.Memory.HasPhoto(),
			Position: a.Root.WorldPosition().Add(hover),
		}
		for _, c := range a.Root.Children() {
			c.Walk(func(n *Node) {
				v.Parts = append(v.Parts, PartView{Kind: n.Kind, Position: n.WorldPosition().Add(hover)})
			})
		}
		views = append(views, v)
	}
	return views
}
