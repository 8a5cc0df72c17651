package persist

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/voxcore/voxcore/internal/bounds"
	"github.com/voxcore/voxcore/internal/svo"
	"github.com/voxcore/voxcore/internal/voxel"
)

const stone voxel.Material = 1

type slabMosaic struct{}

func (slabMosaic) Density(p mgl32.Vec3) float32 { return p.Y() - 0.5 }
func (slabMosaic) Normal(mgl32.Vec3) mgl32.Vec3 { return mgl32.Vec3{0, 1, 0} }
func (slabMosaic) Material(p mgl32.Vec3) (voxel.Material, bool) {
	if p.Y() < 0.5 {
		return stone, true
	}
	return voxel.Empty, true
}

func buildTestTree(t *testing.T) *svo.Tree {
	t.Helper()
	tree := svo.NewTree(4)
	tree.ApplyBrush(svo.Brush{
		Bounds:       bounds.AABB{Min: mgl32.Vec3{-8, -8, -8}, Max: mgl32.Vec3{8, 8, 8}},
		Mosaic:       slabMosaic{},
		FinestLgSize: 0,
	})
	return tree
}

func TestRoundTripPreservesEveryStoredVoxel(t *testing.T) {
	tree := buildTestTree(t)

	var buf bytes.Buffer
	if err := Encode(&buf, tree); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	for x := int32(-8); x < 8; x++ {
		for z := int32(-8); z < 8; z++ {
			for y := int32(-8); y < 8; y++ {
				b := bounds.New(x, y, z, 0)
				want, wantOk := tree.Get(b)
				got, gotOk := decoded.Get(b)
				if wantOk != gotOk {
					t.Fatalf("at %v: presence mismatch, want ok=%v got ok=%v", b, wantOk, gotOk)
				}
				if !wantOk {
					continue
				}
				if want != got {
					t.Fatalf("at %v: got %+v, want %+v", b, got, want)
				}
			}
		}
	}
}

func TestRoundTripPreservesLgSize(t *testing.T) {
	tree := buildTestTree(t)
	_, wantLg := tree.Root()

	var buf bytes.Buffer
	Encode(&buf, tree)
	decoded, _ := Decode(&buf)

	_, gotLg := decoded.Root()
	if gotLg != wantLg {
		t.Errorf("root lg_size = %d, want %d", gotLg, wantLg)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	tree := buildTestTree(t)

	var a, b bytes.Buffer
	if err := Encode(&a, tree); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := Encode(&b, tree); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Errorf("Encode must be a pure function of the tree's contents")
	}
}

func TestEmptyTreeRoundTrips(t *testing.T) {
	tree := svo.NewTree(2)

	var buf bytes.Buffer
	if err := Encode(&buf, tree); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := decoded.Get(bounds.New(0, 0, 0, 0)); ok {
		t.Errorf("an empty tree should round-trip to another empty tree")
	}
}
