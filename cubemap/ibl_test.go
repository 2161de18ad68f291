package cubemap_test

import (
	"math"
	"testing"

	"cubegen/cubemap"
	"cubegen/libio"
)

func constantChain(t *testing.T, dim int, r, g, b float32) *cubemap.MipChain {
	t.Helper()
	img, cm, err := cubemap.Create(dim)
	if err != nil {
		t.Fatal(err)
	}
	fillConstant(cm, r, g, b)
	chain, err := cubemap.BuildMipChain(img, cm)
	if err != nil {
		t.Fatal(err)
	}
	return chain
}

func TestRoughnessFilterZeroIsIdentity(t *testing.T) {
	chain := constantChain(t, 32, 0.75, 0.5, 0.25)
	// break the constant with a marker so the copy is observable
	chain.Levels[0].WriteAt(cubemap.PY, 10, 10, 9, 9, 9)

	_, dst, err := cubemap.Create(32)
	if err != nil {
		t.Fatal(err)
	}
	cubemap.RoughnessFilter(dst, chain.Levels, 0, 64)

	r, _, _ := dst.ReadAt(cubemap.PY, 10, 10)
	if math.Abs(float64(r)-9) > 1e-3 {
		t.Errorf("marker texel should survive a zero roughness filter but is %f", r)
	}
	r, g, b := dst.ReadAt(cubemap.NX, 4, 4)
	if math.Abs(float64(r)-0.75) > 1e-4 || math.Abs(float64(g)-0.5) > 1e-4 || math.Abs(float64(b)-0.25) > 1e-4 {
		t.Errorf("constant texel should be (0.75, 0.5, 0.25) but is (%f, %f, %f)", r, g, b)
	}
}

func TestRoughnessFilterConstant(t *testing.T) {
	chain := constantChain(t, 32, 1.25, 0.5, 0.125)

	_, dst, err := cubemap.Create(16)
	if err != nil {
		t.Fatal(err)
	}
	cubemap.RoughnessFilter(dst, chain.Levels, 0.5*0.5, 256)

	// the filter normalizes its weights, a constant environment must stay
	// constant for any roughness
	for f := cubemap.PX; f <= cubemap.NZ; f++ {
		r, g, b := dst.ReadAt(f, 8, 8)
		if math.Abs(float64(r)-1.25) > 1e-3 || math.Abs(float64(g)-0.5) > 1e-3 || math.Abs(float64(b)-0.125) > 1e-3 {
			t.Errorf("face %s should be (1.25, 0.5, 0.125) but is (%f, %f, %f)", f.Name(), r, g, b)
		}
	}
}

func TestDiffuseIrradianceConstant(t *testing.T) {
	chain := constantChain(t, 32, 0.8, 0.4, 0.2)

	_, dst, err := cubemap.Create(16)
	if err != nil {
		t.Fatal(err)
	}
	cubemap.DiffuseIrradiance(dst, chain.Levels, 512)

	// cosine-weighted average of a constant environment is the constant
	for f := cubemap.PX; f <= cubemap.NZ; f++ {
		r, g, b := dst.ReadAt(f, 2, 13)
		if math.Abs(float64(r)-0.8) > 1e-3 || math.Abs(float64(g)-0.4) > 1e-3 || math.Abs(float64(b)-0.2) > 1e-3 {
			t.Errorf("face %s should be (0.8, 0.4, 0.2) but is (%f, %f, %f)", f.Name(), r, g, b)
		}
	}
}

func TestDFGRange(t *testing.T) {
	lut := libio.NewFloatImage(3, 16, 16)
	cubemap.DFG(lut, false, 256)

	for y := 0; y < lut.Height; y++ {
		for x := 0; x < lut.Width; x++ {
			i := lut.Index(x, y)
			scale, bias := lut.Pix[i], lut.Pix[i+1]
			if scale < 0 || bias < 0 || scale+bias > 1.1 {
				t.Fatalf("lut (%d, %d) out of range: scale %f bias %f", x, y, scale, bias)
			}
		}
	}

	// the bottom row approaches a mirror, where the split sums add to 1
	i := lut.Index(12, lut.Height-1)
	sum := float64(lut.Pix[i] + lut.Pix[i+1])
	if math.Abs(sum-1) > 0.05 {
		t.Errorf("near-mirror sum should be close to 1 but is %f", sum)
	}
}

func TestDFGMultiscatterDiffers(t *testing.T) {
	single := libio.NewFloatImage(3, 8, 8)
	multi := libio.NewFloatImage(3, 8, 8)
	cubemap.DFG(single, false, 128)
	cubemap.DFG(multi, true, 128)

	diff := false
	for i := range single.Pix {
		if single.Pix[i] != multi.Pix[i] {
			diff = true
			break
		}
	}
	if !diff {
		t.Error("multiscatter integration should produce different values")
	}
}

func TestBRDFLobeAroundZ(t *testing.T) {
	_, cm, err := cubemap.Create(32)
	if err != nil {
		t.Fatal(err)
	}
	cubemap.BRDF(cm, 0.1)

	center, _, _ := cm.ReadAt(cubemap.PZ, 16, 16)
	off, _, _ := cm.ReadAt(cubemap.PZ, 2, 2)
	if center <= off {
		t.Errorf("lobe should peak at +z: center %f off-axis %f", center, off)
	}
	back, _, _ := cm.ReadAt(cubemap.NZ, 16, 16)
	if back != 0 {
		t.Errorf("back hemisphere should be zero but is %f", back)
	}
}
