// Package svo implements the sparse voxel octree (§4.1 of SPEC_FULL.md):
// a centered, auto-growing 2x2x2-branching tree with per-node optional
// voxel payload, point get/insert, axis-aligned brush application, and
// ray casting.
//
// Grounded on the teacher's voxelrt/rt/bvh/builder.go (AABB child
// ordering during traversal) and voxelrt/rt/volume/xbrickmap.go (sparse
// occupancy addressing, pointer-is-the-presence-bit idiom: a nil child
// means Empty, exactly as a zero OccupancyMask64 bit means an empty
// brick there).
package svo

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/voxel"
)

// Node is either Empty (represented by a nil *Node) or a Branch holding
// an optional coarse payload and eight child slots (each nil meaning
// Empty). The root additionally carries LgSize, so the Tree type wraps a
// root *Node with that extra field rather than growing the Node type
// itself.
type Node struct {
	Data     *voxel.Voxel
	Children [8]*Node
}

// Tree is a centered, auto-growing SVO. It covers [-2^LgSize, 2^LgSize)
// on each axis; LgSize grows as needed to hold inserted or brushed
// bounds, re-parenting the existing structure rather than invalidating
// any previously stored coordinate.
type Tree struct {
	root   *Node
	LgSize int16
}

// NewTree creates an empty tree with the given initial half-width
// exponent. It grows automatically as content is inserted outside its
// current extent.
func NewTree(initialLgSize int16) *Tree {
	return &Tree{root: &Node{}, LgSize: initialLgSize}
}

// Root exposes the tree's root node and current half-width exponent
// directly, for callers (internal/persist) that need to walk the whole
// structure rather than query it point by point.
func (t *Tree) Root() (*Node, int16) { return t.root, t.LgSize }

// FromRoot reconstructs a Tree directly from a root node and half-width
// exponent, the inverse of Root — used when decoding a persisted tree.
func FromRoot(root *Node, lgSize int16) *Tree {
	return &Tree{root: root, LgSize: lgSize}
}

// Get looks up the voxel stored exactly at b's addressed node. It does
// not fall back to a coarser ancestor's data: per §3, coarse and fine
// data are both readable but a reader picks by lg_size explicitly.
func (t *Tree) Get(b bounds.B) (voxel.Voxel, bool) {
	path, ok := pathTo(b, t.LgSize)
	if !ok {
		return voxel.Voxel{}, false
	}
	node := t.root
	for _, o := range path {
		if node == nil {
			return voxel.Voxel{}, false
		}
		node = node.Children[o]
	}
	if node == nil || node.Data == nil {
		return voxel.Voxel{}, false
	}
	return *node.Data, true
}

// Insert writes v at b, growing the tree first if b falls outside the
// current extent.
func (t *Tree) Insert(b bounds.B, v voxel.Voxel) {
	t.GrowToHold(b)
	path, ok := pathTo(b, t.LgSize)
	if !ok {
		// GrowToHold guarantees containment; unreachable in practice.
		panic("svo: GrowToHold failed to make bounds reachable")
	}
	node := t.root
	for _, o := range path {
		if node.Children[o] == nil {
			node.Children[o] = &Node{}
		}
		node = node.Children[o]
	}
	vv := v
	node.Data = &vv
}

// ContainsBounds reports whether b falls within the tree's current
// extent at its own resolution (§4.1: |coord| < (1<<root.lg_size)>>B.lg_size
// per axis).
func (t *Tree) ContainsBounds(b bounds.B) bool {
	_, ok := pathTo(b, t.LgSize)
	return ok
}

// GrowToHold doubles the tree's extent (re-parenting the existing
// subtrees as the diagonally-opposite octants of new branch nodes, so
// every previously reachable coordinate stays reachable) until b is
// contained.
func (t *Tree) GrowToHold(b bounds.B) {
	for !t.ContainsBounds(b) {
		t.growOnce()
	}
}

func (t *Tree) growOnce() {
	newRoot := &Node{}
	for octant := 0; octant < 8; octant++ {
		old := t.root.Children[octant]
		if old == nil {
			continue
		}
		branch := &Node{}
		branch.Children[octant^7] = old
		newRoot.Children[octant] = branch
	}
	t.root = newRoot
	t.LgSize++
}

// pathTo computes the sequence of child indices from the root down to the
// node addressing b, given the root's current half-width exponent. This
// is the addressing scheme of §4.1 expressed via repeated halving instead
// of an explicit shifting bit mask: climbing b up via Parent() one level
// at a time is equivalent to testing successive bits of the mask, and the
// final sign-based step corresponds to the spec's "first-level branch
// uses sign" rule.
func pathTo(b bounds.B, rootLg int16) ([]int, bool) {
	if b.LgSize > rootLg {
		return nil, false
	}
	steps := int(rootLg - b.LgSize)
	path := make([]int, steps+1)
	cur := b
	for i := steps; i >= 1; i-- {
		path[i] = cur.OctantInParent()
		cur = cur.Parent()
	}
	if cur.X != -1 && cur.X != 0 {
		return nil, false
	}
	if cur.Y != -1 && cur.Y != 0 {
		return nil, false
	}
	if cur.Z != -1 && cur.Z != 0 {
		return nil, false
	}
	path[0] = rootOctant(cur)
	return path, true
}

func rootOctant(c bounds.B) int {
	oct := 0
	if c.X == 0 {
		oct |= 1
	}
	if c.Y == 0 {
		oct |= 2
	}
	if c.Z == 0 {
		oct |= 4
	}
	return oct
}

// rootChildBounds returns the bounds of the root's octant-th direct
// child (lg_size == t.LgSize, low/high split at world coordinate zero).
func rootChildBounds(octant int, rootLg int16) bounds.B {
	x, y, z := int32(-1), int32(-1), int32(-1)
	if octant&1 != 0 {
		x = 0
	}
	if octant&2 != 0 {
		y = 0
	}
	if octant&4 != 0 {
		z = 0
	}
	return bounds.New(x, y, z, rootLg)
}

// Brush is an authoritative edit: a world-space AABB and a Mosaic that
// supplies (material, density, normal) within it. FinestLgSize is the
// smallest voxel size the brush writes; recursion stops there.
type Brush struct {
	Bounds       bounds.AABB
	Mosaic       voxel.Mosaic
	FinestLgSize int16
}

// ApplyBrush recursively applies brush to every node whose bounds
// overlap it, at every level from the tree's current root down to
// brush.FinestLgSize, writing voxel.OfField's result at each visited
// node's own coarse bounds. A brush whose AABB does not intersect any
// voxel is a no-op. Applying the same brush twice yields the same state
// (OfField is a pure function of (mosaic, bounds)).
func (t *Tree) ApplyBrush(brush Brush) {
	t.growToHoldAABB(brush.Bounds)
	for octant := 0; octant < 8; octant++ {
		b := rootChildBounds(octant, t.LgSize)
		if !b.AABB().Intersects(brush.Bounds) {
			continue
		}
		if t.root.Children[octant] == nil {
			t.root.Children[octant] = &Node{}
		}
		applyBrushRec(t.root.Children[octant], b, brush)
	}
}

func applyBrushRec(node *Node, b bounds.B, brush Brush) {
	if !b.AABB().Intersects(brush.Bounds) {
		return
	}
	if v, ok := voxel.OfField(brush.Mosaic, b); ok {
		vv := v
		node.Data = &vv
	}
	if b.LgSize <= brush.FinestLgSize {
		return
	}
	for octant := 0; octant < 8; octant++ {
		cb := b.Child(octant)
		if !cb.AABB().Intersects(brush.Bounds) {
			continue
		}
		if node.Children[octant] == nil {
			node.Children[octant] = &Node{}
		}
		applyBrushRec(node.Children[octant], cb, brush)
	}
}

func (t *Tree) growToHoldAABB(box bounds.AABB) {
	need := absMax(box.Min.X(), box.Max.X())
	need = maxf(need, absMax(box.Min.Y(), box.Max.Y()))
	need = maxf(need, absMax(box.Min.Z(), box.Max.Z()))
	for rootHalfWidth(t.LgSize) < need {
		t.growOnce()
	}
}

func rootHalfWidth(lg int16) float32 {
	if lg >= 0 {
		return float32(int64(1) << uint(lg))
	}
	return 1.0 / float32(int64(1)<<uint(-lg))
}

func absMax(a, b float32) float32 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	return maxf(a, b)
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// RayHitFunc is the RayCast callback: it inspects a candidate voxel and
// returns (result, true) to accept it.
type RayHitFunc func(b bounds.B, v voxel.Voxel) (result any, accept bool)

// RayCast walks the tree in roughly front-to-back order along the ray
// (origin, dir), invoking cb at every Branch with a payload until cb
// accepts a result or the tree is exhausted. Empty nodes are transparent.
// A miss returns (nil, false).
func (t *Tree) RayCast(origin, dir mgl32.Vec3, maxDist float32, cb RayHitFunc) (any, bool) {
	if dir.Len() == 0 {
		return nil, false
	}
	type candidate struct {
		octant int
		tNear  float32
	}
	var cands []candidate
	for octant := 0; octant < 8; octant++ {
		if t.root.Children[octant] == nil {
			continue
		}
		b := rootChildBounds(octant, t.LgSize)
		tNear, tFar, hit := rayAABB(origin, dir, b.AABB())
		if !hit || tNear > maxDist || tFar < 0 {
			continue
		}
		cands = append(cands, candidate{octant, tNear})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].tNear < cands[j].tNear })
	for _, c := range cands {
		b := rootChildBounds(c.octant, t.LgSize)
		if result, ok := rayCastNode(t.root.Children[c.octant], b, origin, dir, maxDist, cb); ok {
			return result, true
		}
	}
	return nil, false
}

func rayCastNode(node *Node, b bounds.B, origin, dir mgl32.Vec3, maxDist float32, cb RayHitFunc) (any, bool) {
	if node.Data != nil {
		if result, ok := cb(b, *node.Data); ok {
			return result, true
		}
	}
	type candidate struct {
		octant int
		tNear  float32
	}
	var cands []candidate
	for octant := 0; octant < 8; octant++ {
		if node.Children[octant] == nil {
			continue
		}
		cb2 := b.Child(octant)
		tNear, tFar, hit := rayAABB(origin, dir, cb2.AABB())
		if !hit || tNear > maxDist || tFar < 0 {
			continue
		}
		cands = append(cands, candidate{octant, tNear})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].tNear < cands[j].tNear })
	for _, c := range cands {
		cb2 := b.Child(c.octant)
		if result, ok := rayCastNode(node.Children[c.octant], cb2, origin, dir, maxDist, cb); ok {
			return result, true
		}
	}
	return nil, false
}

// rayAABB is the standard slab-method ray/AABB intersection test.
func rayAABB(origin, dir mgl32.Vec3, box bounds.AABB) (tNear, tFar float32, hit bool) {
	tMin, tMax := float32(0), float32(1e30)
	axes := [3][3]float32{
		{origin.X(), dir.X(), 0},
		{origin.Y(), dir.Y(), 0},
		{origin.Z(), dir.Z(), 0},
	}
	mins := [3]float32{box.Min.X(), box.Min.Y(), box.Min.Z()}
	maxs := [3]float32{box.Max.X(), box.Max.Y(), box.Max.Z()}
	for i := 0; i < 3; i++ {
		o, d := axes[i][0], axes[i][1]
		if d == 0 {
			if o < mins[i] || o > maxs[i] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / d
		t0 := (mins[i] - o) * inv
		t1 := (maxs[i] - o) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tMin = maxf(tMin, t0)
		tMax = minf(tMax, t1)
		if tMin > tMax {
			return 0, 0, false
		}
	}
	return tMin, tMax, true
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
