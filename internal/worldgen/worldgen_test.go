package worldgen

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxcore/voxcore/internal/voxel"
)

func TestHeightfieldIsStoneBelowSurfaceEmptyAbove(t *testing.T) {
	h := NewHeightfield(7)
	below := mgl32.Vec3{0, -100, 0}
	above := mgl32.Vec3{0, 100, 0}

	if mat, ok := h.Material(below); !ok || mat != 7 {
		t.Errorf("Material(below) = (%v, %v), want (7, true)", mat, ok)
	}
	if mat, ok := h.Material(above); !ok || mat != voxel.Empty {
		t.Errorf("Material(above) = (%v, %v), want (Empty, true)", mat, ok)
	}
}

func TestSphereFillsOnlyItsInterior(t *testing.T) {
	s := Sphere{Center: mgl32.Vec3{0, 0, 0}, Radius: 4, Fill: 3}

	if mat, ok := s.Material(mgl32.Vec3{1, 0, 0}); !ok || mat != 3 {
		t.Errorf("Material(inside) = (%v, %v), want (3, true)", mat, ok)
	}
	if _, ok := s.Material(mgl32.Vec3{10, 0, 0}); ok {
		t.Error("expected Material(outside) to report ok=false")
	}
}

func TestSphereBoundsEnclosesTheRadius(t *testing.T) {
	s := Sphere{Center: mgl32.Vec3{1, 2, 3}, Radius: 5}
	box := s.Bounds()
	if box.Min != (mgl32.Vec3{-4, -3, -2}) || box.Max != (mgl32.Vec3{6, 7, 8}) {
		t.Errorf("Bounds() = %+v, want Min{-4,-3,-2} Max{6,7,8}", box)
	}
}
