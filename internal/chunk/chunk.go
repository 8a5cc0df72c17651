// Package chunk defines chunk-position addressing and the LOD sampling
// table shared by the mesher, the LOD map, the surroundings loader, and
// the terrain loader (§3 "Chunk position C" of SPEC_FULL.md).
package chunk

import (
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxcore/voxcore/internal/bounds"
)

// LgWidth is the power-of-two exponent of a chunk's world-unit side
// length (W = 2^LgWidth). The scenario walkthroughs in SPEC_FULL.md §8
// use W = 8.
const LgWidth = 3

// Width is a chunk's world-unit side length, 2^LgWidth.
const Width = 1 << LgWidth

// LgSampleSize[lod] is the lg_size of the voxels a chunk is sampled at
// when loaded at the given LOD index. LODs form a strictly-refining
// sequence; index 0 is finest.
var LgSampleSize = []int16{0, 1, 2, 3, 3}

// EdgeSamples returns the number of voxels per chunk edge at lod.
func EdgeSamples(lod int) int {
	lg := LgSampleSize[lod]
	if lg >= 0 {
		return Width / (1 << uint(lg))
	}
	return Width * (1 << uint(-lg))
}

// NumLODs is the number of distinct LOD levels the sampling table
// defines.
func NumLODs() int { return len(LgSampleSize) }

// Position identifies a chunk by integer coordinate; it occupies
// [C*W, (C+1)*W) on each axis.
type Position struct {
	X, Y, Z int32
}

// Bounds returns the chunk's world-space AABB.
func (p Position) Bounds() bounds.AABB {
	low := mgl32.Vec3{float32(p.X) * Width, float32(p.Y) * Width, float32(p.Z) * Width}
	return bounds.AABB{Min: low, Max: low.Add(mgl32.Vec3{Width, Width, Width})}
}

// SampleOrigin returns the voxel-space low corner bounds.B of the chunk
// sampled at lod (the first voxel in its sample grid).
func (p Position) SampleOrigin(lod int) bounds.B {
	lg := LgSampleSize[lod]
	edge := int32(EdgeSamples(lod))
	return bounds.New(p.X*edge, p.Y*edge, p.Z*edge, lg)
}

// Axis identifies one of the three coordinate axes, used to name a chunk
// seam face.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Neighbor returns the chunk position one step in the negative direction
// along axis — the chunk ChunkFace(p, axis) seams against.
func (p Position) Neighbor(axis Axis) Position {
	switch axis {
	case AxisX:
		return Position{p.X - 1, p.Y, p.Z}
	case AxisY:
		return Position{p.X, p.Y - 1, p.Z}
	default:
		return Position{p.X, p.Y, p.Z - 1}
	}
}

// MeshKind discriminates the two MeshId variants.
type MeshKind uint8

const (
	MeshInner MeshKind = iota
	MeshFace
)

// MeshId is the logical identity of a mesh produced for a chunk: either
// the triangles strictly inside it at its current LOD, or the seam
// against its negative-direction neighbor along one axis.
type MeshId struct {
	Kind     MeshKind
	Position Position
	Axis     Axis // meaningful only when Kind == MeshFace
}

// Inner constructs a ChunkInner mesh id.
func Inner(p Position) MeshId { return MeshId{Kind: MeshInner, Position: p} }

// Face constructs a ChunkFace mesh id.
func Face(p Position, axis Axis) MeshId { return MeshId{Kind: MeshFace, Position: p, Axis: axis} }

// LOD is either Placeholder (a solid invisible voxel, no mesh) or
// Full(index) (meshed at LgSampleSize[index]). Ordering is
// Placeholder < Full(0) < ... < Full(N-1): higher Full index means
// coarser detail and lower priority.
type LOD struct {
	// full is true for Full(index); false means Placeholder.
	full  bool
	index int
}

// Placeholder is the coarsest possible LOD: a solid invisible voxel with
// no mesh, used to keep physics from seeing holes during streaming.
var Placeholder = LOD{}

// Full constructs the Full(index) LOD.
func Full(index int) LOD { return LOD{full: true, index: index} }

// IsPlaceholder reports whether l is Placeholder.
func (l LOD) IsPlaceholder() bool { return !l.full }

// Index returns the Full index. Only meaningful when !IsPlaceholder().
func (l LOD) Index() int { return l.index }

// rank gives LOD's position in the total order Placeholder < Full(0) <
// ... < Full(N-1); higher Full index ranks higher despite meaning
// coarser detail, matching SPEC_FULL.md §3's literal ordering.
func (l LOD) rank() int {
	if !l.full {
		return -1
	}
	return l.index
}

// Less reports whether l sorts strictly before o in the LOD map's total
// order (Placeholder < Full(0) < ... < Full(N-1)).
func (l LOD) Less(o LOD) bool { return l.rank() < o.rank() }

// Max returns whichever of l, o ranks higher in the LOD map's total
// order; entry.loaded_lod is always Max over an entry's owners.
func Max(l, o LOD) LOD {
	if l.Less(o) {
		return o
	}
	return l
}

// Equal reports whether l and o are the same LOD value.
func (l LOD) Equal(o LOD) bool { return l.full == o.full && (!l.full || l.index == o.index) }

// String renders l as "Placeholder" or "Full(i)".
func (l LOD) String() string {
	if !l.full {
		return "Placeholder"
	}
	return "Full(" + strconv.Itoa(l.index) + ")"
}
