package cubemap_test

import (
	"testing"

	"cubegen/cubemap"
)

// fillDeterministic writes a value derived from face and position into
// every texel so tests can compare exact pixel data.
func fillDeterministic(cm *cubemap.Cubemap) {
	for f := cubemap.PX; f <= cubemap.NZ; f++ {
		for y := 0; y < cm.Dim(); y++ {
			for x := 0; x < cm.Dim(); x++ {
				v := float32(int(f)*1000+y*cm.Dim()+x) * 0.001
				cm.WriteAt(f, x, y, v, v*0.5, v*0.25)
			}
		}
	}
}

func fillConstant(cm *cubemap.Cubemap, r, g, b float32) {
	for f := cubemap.PX; f <= cubemap.NZ; f++ {
		for y := 0; y < cm.Dim(); y++ {
			for x := 0; x < cm.Dim(); x++ {
				cm.WriteAt(f, x, y, r, g, b)
			}
		}
	}
}

func cubemapsEqual(t *testing.T, a, b *cubemap.Cubemap) {
	t.Helper()
	for f := cubemap.PX; f <= cubemap.NZ; f++ {
		for y := 0; y < a.Dim(); y++ {
			for x := 0; x < a.Dim(); x++ {
				ar, ag, ab := a.ReadAt(f, x, y)
				br, bg, bb := b.ReadAt(f, x, y)
				if ar != br || ag != bg || ab != bb {
					t.Fatalf("texel %s (%d, %d) should be (%f, %f, %f) but is (%f, %f, %f)",
						f.Name(), x, y, ar, ag, ab, br, bg, bb)
				}
			}
		}
	}
}

func TestCreateRejectsNonPowerOfTwo(t *testing.T) {
	for _, dim := range []int{0, -4, 3, 12, 100} {
		_, _, err := cubemap.Create(dim)
		if err == nil {
			t.Errorf("dimension %d should be rejected", dim)
		}
	}
}

func TestDirectionTexelBijection(t *testing.T) {
	_, cm, err := cubemap.Create(16)
	if err != nil {
		t.Fatal(err)
	}

	for f := cubemap.PX; f <= cubemap.NZ; f++ {
		for y := 0; y < cm.Dim(); y++ {
			for x := 0; x < cm.Dim(); x++ {
				dir := cm.DirectionFor(f, x, y)
				rf, rx, ry := cm.TexelFor(dir)
				if rf != f || rx != x || ry != y {
					t.Fatalf("texel %s (%d, %d) should map back to itself but maps to %s (%d, %d)",
						f.Name(), x, y, rf.Name(), rx, ry)
				}
			}
		}
	}
}

func TestDirectionForIsUnit(t *testing.T) {
	_, cm, err := cubemap.Create(8)
	if err != nil {
		t.Fatal(err)
	}
	for f := cubemap.PX; f <= cubemap.NZ; f++ {
		d := cm.DirectionFor(f, 0, 0)
		if l := d.Len(); l < 0.99999 || l > 1.00001 {
			t.Errorf("direction for face %s should be unit length but has length %f", f.Name(), l)
		}
	}
}

func TestMakeSeamlessIdempotent(t *testing.T) {
	img, cm, err := cubemap.Create(16)
	if err != nil {
		t.Fatal(err)
	}
	fillDeterministic(cm)

	cm.MakeSeamless()
	once := make([]float32, len(img.Pix))
	copy(once, img.Pix)

	cm.MakeSeamless()
	for i := range img.Pix {
		if img.Pix[i] != once[i] {
			t.Fatalf("element %d changed from %f to %f on the second pass", i, once[i], img.Pix[i])
		}
	}
}

func TestMakeSeamlessConstant(t *testing.T) {
	_, cm, err := cubemap.Create(16)
	if err != nil {
		t.Fatal(err)
	}
	fillConstant(cm, 0.25, 0.5, 0.75)
	cm.MakeSeamless()

	for f := cubemap.PX; f <= cubemap.NZ; f++ {
		for y := 0; y < cm.Dim(); y++ {
			for x := 0; x < cm.Dim(); x++ {
				r, g, b := cm.ReadAt(f, x, y)
				if r != 0.25 || g != 0.5 || b != 0.75 {
					t.Fatalf("texel %s (%d, %d) should stay constant but is (%f, %f, %f)", f.Name(), x, y, r, g, b)
				}
			}
		}
	}
}

func TestFilterAtConstant(t *testing.T) {
	_, cm, err := cubemap.Create(8)
	if err != nil {
		t.Fatal(err)
	}
	fillConstant(cm, 1.5, 2.5, 3.5)

	dirs := []struct{ f cubemap.Face; x, y int }{
		{cubemap.PX, 0, 0}, {cubemap.NY, 3, 3}, {cubemap.PZ, 7, 0}, {cubemap.NZ, 4, 6},
	}
	for _, d := range dirs {
		r, g, b := cm.FilterAt(cm.DirectionFor(d.f, d.x, d.y))
		if abs32(r-1.5) > 1e-5 || abs32(g-2.5) > 1e-5 || abs32(b-3.5) > 1e-5 {
			t.Errorf("filtered sample should be (1.5, 2.5, 3.5) but is (%f, %f, %f)", r, g, b)
		}
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
