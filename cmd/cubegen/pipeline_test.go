package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cubegen/cubemap"
	"cubegen/libio"
)

func TestProcessEquirectSH(t *testing.T) {
	dir := t.TempDir()

	src := libio.NewFloatImage(3, 512, 256)
	for i := range src.Pix {
		src.Pix[i] = 0.5
	}
	input := filepath.Join(dir, "env.hdr")
	f, err := os.Create(input)
	if err != nil {
		t.Fatal(err)
	}
	if err := libio.EncodeHDR(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	shFile := filepath.Join(dir, "sh.txt")
	cfg := &config{
		outType:           "cubemap",
		format:            "hdr",
		size:              256,
		mirror:            true,
		iblSamples:        64,
		sampleGrowthLevel: 2,
		shBands:           3,
		shIrradiance:      true,
		shFile:            shFile,
		quiet:             true,
	}
	if err := processInput(cfg, input); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(shFile)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 9 {
		t.Fatalf("3-band irradiance should emit 9 coefficients but emitted %d", len(lines))
	}
	for i, line := range lines {
		if len(strings.Fields(line)) != 3 {
			t.Fatalf("coefficient %d should have 3 components: %q", i, line)
		}
	}
}

func TestMipChainFrom256(t *testing.T) {
	img, cm, err := cubemap.Create(256)
	if err != nil {
		t.Fatal(err)
	}
	chain, err := cubemap.BuildMipChain(img, cm)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain.Levels) != 9 {
		t.Fatalf("a 256 cubemap should produce 9 mip levels but produced %d", len(chain.Levels))
	}
	if chain.Levels[8].Dim() != 1 {
		t.Fatalf("the last level should have dimension 1 but has %d", chain.Levels[8].Dim())
	}
}
