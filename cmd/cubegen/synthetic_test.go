package main

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"cubegen/cubemap"
	"cubegen/libio"
)

func TestSplitTrailingInt(t *testing.T) {
	cases := []struct {
		in     string
		prefix string
		n      int
	}{
		{"uv16", "uv", 16},
		{"u8", "u", 8},
		{"v1", "v", 1},
		{"brdf3", "brdf", 3},
		{"uv", "", 0},
		{"16", "", 0},
		{"studio", "", 0},
		{"uv0", "", 0},
	}
	for _, c := range cases {
		prefix, n := splitTrailingInt(c.in)
		if prefix != c.prefix || n != c.n {
			t.Errorf("splitTrailingInt(%q) should be (%q, %d) but is (%q, %d)", c.in, c.prefix, c.n, prefix, n)
		}
	}
}

func TestRenderSyntheticFallback(t *testing.T) {
	cfg := &config{size: 16, quiet: true}

	img, err := renderSynthetic(cfg, "no/such/studio.hdr")
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 64 || img.Height != 48 {
		t.Fatalf("fallback raster should be a 64x48 cross but is %dx%d", img.Width, img.Height)
	}

	// the +x cell must hold the red marker
	i := img.Index(2*16, 1*16)
	if img.Pix[i] <= 0 {
		t.Errorf("+x cell should be red but starts with %f", img.Pix[i])
	}
}

func TestRenderSyntheticBRDF(t *testing.T) {
	cfg := &config{size: 32, quiet: true}

	img, err := renderSynthetic(cfg, "brdf2")
	if err != nil {
		t.Fatal(err)
	}

	cm, err := cubemap.New(img, 32)
	if err != nil {
		t.Fatal(err)
	}
	center, _, _ := cm.ReadAt(cubemap.PZ, 16, 16)
	back, _, _ := cm.ReadAt(cubemap.NZ, 16, 16)
	if center <= 0 || back != 0 {
		t.Errorf("brdf lobe should peak on +z and vanish on -z: %f, %f", center, back)
	}
}

func TestDefaultFaceDim(t *testing.T) {
	cases := []struct {
		w, h, want int
	}{
		{256, 192, 64},  // horizontal cross
		{192, 256, 64},  // vertical cross
		{512, 256, 128}, // equirectangular
		{500, 250, 64},  // equirectangular, rounded down to a power of two
	}
	for _, c := range cases {
		img := libio.NewFloatImage(3, c.w, c.h)
		if got := defaultFaceDim(img); got != c.want {
			t.Errorf("defaultFaceDim(%dx%d) should be %d but is %d", c.w, c.h, c.want, got)
		}
	}
}

func TestFormatSH(t *testing.T) {
	sh := []mgl64.Vec3{{1, 0.5, 0.25}, {-0.125, 0, 2}}
	out := formatSH(sh)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("should format 2 lines but formatted %d", len(lines))
	}
	if lines[0] != "1 0.5 0.25" {
		t.Errorf("first line should be \"1 0.5 0.25\" but is %q", lines[0])
	}
}

func TestSHShaderSnippet(t *testing.T) {
	sh := make([]mgl64.Vec3, 9)
	sh[0] = mgl64.Vec3{1, 1, 1}
	out := shShaderSnippet(sh)
	if !strings.Contains(out, "vec3 irradianceSH(vec3 n)") {
		t.Errorf("snippet should declare irradianceSH:\n%s", out)
	}
	if !strings.Contains(out, "3.0 * n.z * n.z - 1.0") {
		t.Errorf("snippet should contain the band 2 zonal term:\n%s", out)
	}
}
