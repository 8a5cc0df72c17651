// Package bounds implements integer-coordinate voxel identities at
// power-of-two sizes: the addressing scheme the rest of voxcore is built
// on top of.
package bounds

import "github.com/go-gl/mathgl/mgl32"

// B identifies a voxel by its low corner in units of its own size and a
// signed size exponent. The voxel occupies the world-space cube
// [coord*2^LgSize, (coord+1)*2^LgSize) on each axis. LgSize is signed:
// positive means larger than a unit cube, negative means smaller.
type B struct {
	X, Y, Z int32
	LgSize  int16
}

// New constructs a voxel bounds value.
func New(x, y, z int32, lgSize int16) B {
	return B{X: x, Y: y, Z: z, LgSize: lgSize}
}

// Size returns the world-space edge length of the voxel, 2^LgSize.
func (b B) Size() float32 {
	return exp2(b.LgSize)
}

func exp2(lg int16) float32 {
	if lg >= 0 {
		return float32(int64(1) << uint(lg))
	}
	return 1.0 / float32(int64(1)<<uint(-lg))
}

// LowCorner returns the world-space low corner of the voxel.
func (b B) LowCorner() mgl32.Vec3 {
	s := b.Size()
	return mgl32.Vec3{float32(b.X) * s, float32(b.Y) * s, float32(b.Z) * s}
}

// Corners returns all eight world-space corners of the voxel, ordered by
// x,y,z bit (bit 0 = x, bit 1 = y, bit 2 = z; 0 = low, 1 = high).
func (b B) Corners() [8]mgl32.Vec3 {
	low := b.LowCorner()
	s := b.Size()
	var out [8]mgl32.Vec3
	for i := 0; i < 8; i++ {
		dx, dy, dz := float32(0), float32(0), float32(0)
		if i&1 != 0 {
			dx = s
		}
		if i&2 != 0 {
			dy = s
		}
		if i&4 != 0 {
			dz = s
		}
		out[i] = low.Add(mgl32.Vec3{dx, dy, dz})
	}
	return out
}

// Center returns the world-space center of the voxel.
func (b B) Center() mgl32.Vec3 {
	s := b.Size()
	return b.LowCorner().Add(mgl32.Vec3{s / 2, s / 2, s / 2})
}

// Contains reports whether the world-space point p lies within the voxel.
func (b B) Contains(p mgl32.Vec3) bool {
	low := b.LowCorner()
	s := b.Size()
	return p.X() >= low.X() && p.X() < low.X()+s &&
		p.Y() >= low.Y() && p.Y() < low.Y()+s &&
		p.Z() >= low.Z() && p.Z() < low.Z()+s
}

// Child returns the octant-th child of b (half the size, same low corner
// scheme). octant bit 0 = x, bit 1 = y, bit 2 = z.
func (b B) Child(octant int) B {
	childLg := b.LgSize - 1
	x, y, z := b.X*2, b.Y*2, b.Z*2
	if octant&1 != 0 {
		x++
	}
	if octant&2 != 0 {
		y++
	}
	if octant&4 != 0 {
		z++
	}
	return B{X: x, Y: y, Z: z, LgSize: childLg}
}

// Parent returns the bounds of the voxel one level coarser that contains b.
func (b B) Parent() B {
	return B{X: floorDiv2(b.X), Y: floorDiv2(b.Y), Z: floorDiv2(b.Z), LgSize: b.LgSize + 1}
}

// OctantInParent returns which of Parent()'s eight children b is (the
// inverse of Child): bit 0 = x, bit 1 = y, bit 2 = z, 0 = low half, 1 =
// high half.
func (b B) OctantInParent() int {
	p := b.Parent()
	oct := 0
	if b.X-p.X*2 != 0 {
		oct |= 1
	}
	if b.Y-p.Y*2 != 0 {
		oct |= 2
	}
	if b.Z-p.Z*2 != 0 {
		oct |= 4
	}
	return oct
}

func floorDiv2(v int32) int32 {
	if v >= 0 {
		return v / 2
	}
	return -((-v + 1) / 2)
}

// AABB is an axis-aligned world-space bounding box.
type AABB struct {
	Min, Max mgl32.Vec3
}

// AABB returns the world-space axis-aligned bounding box of b.
func (b B) AABB() AABB {
	low := b.LowCorner()
	s := b.Size()
	return AABB{Min: low, Max: low.Add(mgl32.Vec3{s, s, s})}
}

// Intersects reports whether two AABBs overlap (touching edges count as
// non-overlapping, matching half-open voxel semantics).
func (a AABB) Intersects(o AABB) bool {
	return a.Min.X() < o.Max.X() && a.Max.X() > o.Min.X() &&
		a.Min.Y() < o.Max.Y() && a.Max.Y() > o.Min.Y() &&
		a.Min.Z() < o.Max.Z() && a.Max.Z() > o.Min.Z()
}
