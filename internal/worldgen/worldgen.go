// Package worldgen implements a minimal voxel.Mosaic for the server
// binary's default world: an undulating heightfield, one stone
// material below ground and nothing above it. SPEC_FULL.md treats
// Mosaic as an external collaborator interface, not a spec'd module, so
// this package exists only so cmd/voxcore-server has a real generator
// to hand the terrain loader rather than a stub.
//
// Grounded on teacher voxelrt/rt/volume/primitives.go's signed-distance
// fill primitives (Sphere/Cube/Cone each compute a per-point inside/
// outside test against a simple closed-form shape) generalized from a
// one-shot XBrickMap-filling pass to a continuous Mosaic queried
// on demand per point, which is what the voxelizer boundary requires.
package worldgen

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/voxel"
)

// Heightfield is a Mosaic whose surface is the sum of two sine waves in
// X and Z, Stone below the surface and empty above it.
type Heightfield struct {
	Stone     voxel.Material
	Amplitude float32
	Period    float32
}

// NewHeightfield returns a Heightfield with reasonable default rolling
// hills (amplitude 6 world units, period 48).
func NewHeightfield(stone voxel.Material) Heightfield {
	return Heightfield{Stone: stone, Amplitude: 6, Period: 48}
}

func (h Heightfield) heightAt(x, z float32) float32 {
	freq := 2 * math.Pi / h.Period
	return h.Amplitude * (float32(math.Sin(float64(x*freq))) + float32(math.Cos(float64(z*freq)))) / 2
}

// Density is negative below the surface (solid), positive above it, so
// OfField's weighted-average vertex placement leans toward whichever
// corner is closer to the surface crossing.
func (h Heightfield) Density(p mgl32.Vec3) float32 {
	return p.Y() - h.heightAt(p.X(), p.Z())
}

// Normal is the analytic gradient of Density, normalized.
func (h Heightfield) Normal(p mgl32.Vec3) mgl32.Vec3 {
	freq := 2 * math.Pi / h.Period
	dHdx := h.Amplitude * freq * float32(math.Cos(float64(p.X()*freq))) / 2
	dHdz := -h.Amplitude * freq * float32(math.Sin(float64(p.Z()*freq))) / 2
	n := mgl32.Vec3{-dHdx, 1, -dHdz}
	if n.Len() == 0 {
		return mgl32.Vec3{0, 1, 0}
	}
	return n.Normalize()
}

// Material reports Stone below the surface, Empty (still "written", not
// None) above it — this Mosaic covers all of space, it never returns
// ok=false.
func (h Heightfield) Material(p mgl32.Vec3) (voxel.Material, bool) {
	if p.Y() <= h.heightAt(p.X(), p.Z()) {
		return h.Stone, true
	}
	return voxel.Empty, true
}

// Sphere is the brush Mosaic behind a player's Add/Remove action: a
// signed-distance ball around Center that writes Fill inside its
// Radius and leaves everything outside it unwritten, so ApplyBrush
// only ever touches the voxels the brush's own AABB overlaps.
//
// Grounded on the same primitives.go this package's Sphere-fill loop
// generalizes from, here recast as a Mosaic query instead of a
// one-shot XBrickMap write so it can be handed straight to
// svo.Tree.ApplyBrush.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
	Fill   voxel.Material
}

// Density is the signed distance to the sphere's surface, negative
// inside.
func (s Sphere) Density(p mgl32.Vec3) float32 {
	return p.Sub(s.Center).Len() - s.Radius
}

// Normal is the outward radial direction, the analytic gradient of a
// sphere's signed-distance field.
func (s Sphere) Normal(p mgl32.Vec3) mgl32.Vec3 {
	d := p.Sub(s.Center)
	if d.Len() == 0 {
		return mgl32.Vec3{0, 1, 0}
	}
	return d.Normalize()
}

// Material reports Fill inside the sphere and ok=false outside it, so
// ApplyBrush leaves voxels beyond Radius untouched regardless of what
// they held before.
func (s Sphere) Material(p mgl32.Vec3) (voxel.Material, bool) {
	if s.Density(p) <= 0 {
		return s.Fill, true
	}
	return voxel.Empty, false
}

// Bounds returns the sphere's enclosing AABB, for the ApplyBrush call's
// own box argument.
func (s Sphere) Bounds() bounds.AABB {
	r := mgl32.Vec3{s.Radius, s.Radius, s.Radius}
	return bounds.AABB{Min: s.Center.Sub(r), Max: s.Center.Add(r)}
}
