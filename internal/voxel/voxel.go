// Package voxel implements the stored voxel content model (§3/§4.2 of
// SPEC_FULL.md): the Volume/Surface sum type, packed vertex/normal
// encoding, and the Field/Mosaic sampling boundary that turns a
// continuous scalar field into discrete voxels.
//
// Grounded on the teacher's voxelrt/rt/volume/xbrickmap.go Brick payload
// compression (the Volume/Surface split mirrors Brick.TryCompress's
// homogeneous-run detection) and voxelrt/rt/volume/primitives.go for the
// shape of a procedural Field implementation.
package voxel

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxcore/voxcore/internal/bounds"
)

// Material identifies a voxel's substance. The zero value, Empty, is a
// distinguished "known to contain nothing" material.
type Material uint16

// Empty is the distinguished material meaning "known to be empty",
// distinct from an ungenerated/unknown voxel (represented at the SVO
// layer by an Empty node, never by Voxel{}).
const Empty Material = 0

// Kind discriminates the two Voxel payload variants.
type Kind uint8

const (
	KindVolume Kind = iota
	KindSurface
)

// Voxel is the sum type stored at an SVO node: either a homogeneous
// Volume or a single Hermite-like Surface sample.
type Voxel struct {
	Kind Kind

	// Volume fields.
	VolumeMaterial Material

	// Surface fields. SurfaceVertex and Normal are packed fixed-point
	// fractions (see PackVertex/PackNormal); Corner is the material
	// sampled at the voxel's low corner, Empty iff the low corner lies
	// outside the solid.
	SurfaceVertex [3]uint8
	Normal        [3]int8
	Corner        Material
}

// IsVolume reports whether v is a homogeneous Volume voxel.
func (v Voxel) IsVolume() bool { return v.Kind == KindVolume }

// IsSurface reports whether v is a Surface voxel.
func (v Voxel) IsSurface() bool { return v.Kind == KindSurface }

// Volume constructs a homogeneous-material voxel.
func Volume(m Material) Voxel {
	return Voxel{Kind: KindVolume, VolumeMaterial: m}
}

// Surface constructs a surface-crossing voxel.
func Surface(vertex [3]uint8, normal [3]int8, corner Material) Voxel {
	return Voxel{Kind: KindSurface, SurfaceVertex: vertex, Normal: normal, Corner: corner}
}

// PackVertex encodes a point expressed as a fraction of the voxel's size
// (each component in [0,1)) into three u8 fractions in [0,256).
func PackVertex(local mgl32.Vec3) [3]uint8 {
	return [3]uint8{packFrac(local.X()), packFrac(local.Y()), packFrac(local.Z())}
}

func packFrac(f float32) uint8 {
	scaled := f * 256
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 255 {
		scaled = 255
	}
	return uint8(scaled)
}

// UnpackVertex converts a packed fractional vertex back to a world-space
// point within the given voxel bounds.
func UnpackVertex(frac [3]uint8, b bounds.B) mgl32.Vec3 {
	s := b.Size()
	low := b.LowCorner()
	return mgl32.Vec3{
		low.X() + (float32(frac[0])/256)*s,
		low.Y() + (float32(frac[1])/256)*s,
		low.Z() + (float32(frac[2])/256)*s,
	}
}

// PackNormal encodes a unit vector into three i8 fractions in [-128,128).
func PackNormal(n mgl32.Vec3) [3]int8 {
	return [3]int8{packSigned(n.X()), packSigned(n.Y()), packSigned(n.Z())}
}

func packSigned(f float32) int8 {
	scaled := f * 128
	if scaled < -128 {
		scaled = -128
	}
	if scaled > 127 {
		scaled = 127
	}
	return int8(scaled)
}

// UnpackNormal decodes a packed normal and renormalizes it to unit length.
func UnpackNormal(packed [3]int8) mgl32.Vec3 {
	n := mgl32.Vec3{float32(packed[0]) / 128, float32(packed[1]) / 128, float32(packed[2]) / 128}
	if n.Len() == 0 {
		return mgl32.Vec3{0, 1, 0}
	}
	return n.Normalize()
}

// Mosaic is the external scalar-field interface that authoring code
// implements. Material returns ok=false for "do not write this point".
type Mosaic interface {
	Density(p mgl32.Vec3) float32
	Normal(p mgl32.Vec3) mgl32.Vec3
	Material(p mgl32.Vec3) (Material, bool)
}

// MustMaterial samples m at p and panics if the point is unwritten. Used
// only where the caller has already established the point is covered
// (e.g. inside a brush's own AABB).
func MustMaterial(m Mosaic, p mgl32.Vec3) Material {
	mat, ok := m.Material(p)
	if !ok {
		panic("voxel: MustMaterial called on an unwritten point")
	}
	return mat
}

// OfField is the sole producer of Voxel values from a continuous field.
// It samples the eight corners of b; if they share one material it
// returns a Volume voxel, otherwise a density-weighted interior vertex is
// computed and a Surface voxel is returned. ok is false ("do not write
// this point") if any corner sample is itself unwritten.
func OfField(m Mosaic, b bounds.B) (Voxel, bool) {
	corners := b.Corners()
	var mats [8]Material
	for i, c := range corners {
		mat, ok := m.Material(c)
		if !ok {
			return Voxel{}, false
		}
		mats[i] = mat
	}

	allEqual := true
	for i := 1; i < 8; i++ {
		if mats[i] != mats[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return Volume(mats[0]), true
	}

	const eps = 1e-4
	var weightedSum mgl32.Vec3
	var weightTotal float32
	for _, c := range corners {
		w := 1 / (m.Density(c) + eps)
		weightedSum = weightedSum.Add(c.Mul(w))
		weightTotal += w
	}
	vertex := weightedSum.Mul(1 / weightTotal)

	s := b.Size()
	low := b.LowCorner()
	local := vertex.Sub(low).Mul(1 / s)
	// Clamp the averaged vertex inside the voxel: weighting can push it
	// epsilon outside [0,1) at extreme density ratios.
	local = mgl32.Vec3{clamp01(local.X()), clamp01(local.Y()), clamp01(local.Z())}
	packedVertex := PackVertex(local)
	worldVertex := UnpackVertex(packedVertex, b)
	packedNormal := PackNormal(m.Normal(worldVertex))

	// corners()[0] is the low corner (dx=dy=dz=0), matching bounds.B.Corners' ordering.
	return Surface(packedVertex, packedNormal, mats[0]), true
}

func clamp01(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f >= 1 {
		return 0.999
	}
	return f
}
