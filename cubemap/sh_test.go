package cubemap_test

import (
	"math"
	"testing"

	"cubegen/cubemap"
)

func TestSHIndex(t *testing.T) {
	cases := []struct{ m, l, want int }{
		{0, 0, 0},
		{-1, 1, 1}, {0, 1, 2}, {1, 1, 3},
		{-2, 2, 4}, {0, 2, 6}, {2, 2, 8},
	}
	for _, c := range cases {
		if got := cubemap.SHIndex(c.m, c.l); got != c.want {
			t.Errorf("SHIndex(%d, %d) should be %d but is %d", c.m, c.l, c.want, got)
		}
	}
}

func TestSolidAngleSum(t *testing.T) {
	// the six faces tile the sphere, per-face texel solid angles must sum
	// to 4π
	dim := 16
	sum := 0.0
	for y := 0; y < dim; y++ {
		for x := 0; x < dim; x++ {
			sum += cubemap.SolidAngle(dim, x, y)
		}
	}
	sum *= 6
	if math.Abs(sum-4*math.Pi) > 1e-9 {
		t.Errorf("total solid angle should be %f but is %f", 4*math.Pi, sum)
	}
}

func TestComputeSHConstantRoundTrip(t *testing.T) {
	_, cm, err := cubemap.Create(32)
	if err != nil {
		t.Fatal(err)
	}
	fillConstant(cm, 1.0, 0.5, 0.25)

	sh := cubemap.ComputeSH(cm, 3, false)
	if len(sh) != 9 {
		t.Fatalf("3 bands should produce 9 coefficients but produced %d", len(sh))
	}

	// constant radiance projects onto the DC term only
	dc := 4 * math.Pi * 0.2820947917
	if math.Abs(sh[0].X()-dc) > 1e-3 {
		t.Errorf("sh[0] should be %f but is %f", dc, sh[0].X())
	}
	for i := 1; i < 9; i++ {
		if sh[i].Len() > 1e-6 {
			t.Errorf("sh[%d] should vanish for constant input but is %v", i, sh[i])
		}
	}

	_, out, err := cubemap.Create(32)
	if err != nil {
		t.Fatal(err)
	}
	cubemap.RenderSH(out, sh, 3)
	for f := cubemap.PX; f <= cubemap.NZ; f++ {
		r, g, b := out.ReadAt(f, 7, 21)
		if math.Abs(float64(r)-1.0) > 2e-3 || math.Abs(float64(g)-0.5) > 2e-3 || math.Abs(float64(b)-0.25) > 2e-3 {
			t.Errorf("face %s reconstruction should be (1, 0.5, 0.25) but is (%f, %f, %f)", f.Name(), r, g, b)
		}
	}
}

func TestComputeSHIrradianceConstant(t *testing.T) {
	_, cm, err := cubemap.Create(32)
	if err != nil {
		t.Fatal(err)
	}
	fillConstant(cm, 1.0, 1.0, 1.0)

	sh := cubemap.ComputeSH(cm, 3, true)

	_, out, err := cubemap.Create(16)
	if err != nil {
		t.Fatal(err)
	}
	cubemap.RenderSH(out, sh, 3)

	// irradiance of a constant unit environment is π in every direction
	for f := cubemap.PX; f <= cubemap.NZ; f++ {
		r, _, _ := out.ReadAt(f, 5, 9)
		if math.Abs(float64(r)-math.Pi) > 1e-2 {
			t.Errorf("face %s irradiance should be %f but is %f", f.Name(), math.Pi, r)
		}
	}
}

func TestIrradianceSH3BandsConstant(t *testing.T) {
	_, cm, err := cubemap.Create(32)
	if err != nil {
		t.Fatal(err)
	}
	fillConstant(cm, 2.0, 1.0, 0.5)

	sh := cubemap.ComputeIrradianceSH3Bands(cm)
	if len(sh) != 9 {
		t.Fatalf("should produce 9 coefficients but produced %d", len(sh))
	}

	_, out, err := cubemap.Create(16)
	if err != nil {
		t.Fatal(err)
	}
	cubemap.RenderPreScaledSH3Bands(out, sh)

	for f := cubemap.PX; f <= cubemap.NZ; f++ {
		r, g, b := out.ReadAt(f, 3, 12)
		if math.Abs(float64(r)-2*math.Pi) > 5e-2 ||
			math.Abs(float64(g)-math.Pi) > 3e-2 ||
			math.Abs(float64(b)-0.5*math.Pi) > 2e-2 {
			t.Errorf("face %s irradiance should be π·(2, 1, 0.5) but is (%f, %f, %f)", f.Name(), r, g, b)
		}
	}
}

func TestComputeSHDeterministic(t *testing.T) {
	_, cm, err := cubemap.Create(16)
	if err != nil {
		t.Fatal(err)
	}
	fillDeterministic(cm)

	a := cubemap.ComputeSH(cm, 4, false)
	b := cubemap.ComputeSH(cm, 4, false)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("coefficient %d differs between runs: %v vs %v", i, a[i], b[i])
		}
	}
}
