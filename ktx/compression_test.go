package ktx_test

import (
	"testing"

	"github.com/arm-software/astc-encoder/astc"

	"cubegen/ktx"
)

func TestParseCompression(t *testing.T) {
	cfg, err := ktx.ParseCompression("astc_fast_ldr_4x4")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BlockX != 4 || cfg.BlockY != 4 {
		t.Errorf("block size should be 4x4 but is %dx%d", cfg.BlockX, cfg.BlockY)
	}
	if cfg.Profile != astc.ProfileLDR || cfg.Quality != astc.EncodeFast {
		t.Errorf("profile/quality parsed incorrectly: %+v", cfg)
	}
	if cfg.InternalFormat() != 0x93B0 {
		t.Errorf("internal format should be 0x93B0 but is 0x%X", cfg.InternalFormat())
	}

	cfg, err = ktx.ParseCompression("astc_thorough_hdr_8x8")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Profile != astc.ProfileHDR || cfg.Quality != astc.EncodeThorough {
		t.Errorf("profile/quality parsed incorrectly: %+v", cfg)
	}
	if cfg.InternalFormat() != 0x93B7 {
		t.Errorf("internal format should be 0x93B7 but is 0x%X", cfg.InternalFormat())
	}
}

func TestParseCompressionInvalid(t *testing.T) {
	invalid := []string{
		"",
		"astc",
		"astc_medium_ldr_4x4",
		"astc_fast_srgb_4x4",
		"astc_fast_ldr_7x7",
		"astc_fast_ldr_4by4",
		"s3tc_rgba_dxt5",
		"etc_rgb8",
		"unknown_fast_ldr_4x4",
	}
	for _, spec := range invalid {
		if _, err := ktx.ParseCompression(spec); err == nil {
			t.Errorf("spec %q should be rejected", spec)
		}
	}
}

func TestCompressTexture(t *testing.T) {
	dim := 8
	b := ktx.NewBundle(1, 1, true)
	b.Info = ktx.Info{
		GLType:               ktx.UnsignedByte,
		GLTypeSize:           1,
		GLFormat:             ktx.RGBA,
		GLInternalFormat:     ktx.RGBA8,
		GLBaseInternalFormat: ktx.RGBA,
		PixelWidth:           uint32(dim),
		PixelHeight:          uint32(dim),
	}
	for f := 0; f < 6; f++ {
		blob := make([]byte, dim*dim*4)
		for i := range blob {
			blob[i] = byte(f*31 + i%255)
		}
		if err := b.SetBlob(ktx.BlobIndex{Face: f}, blob); err != nil {
			t.Fatal(err)
		}
	}

	cfg, err := ktx.ParseCompression("astc_fast_ldr_4x4")
	if err != nil {
		t.Fatal(err)
	}
	if err := ktx.CompressTexture(b, cfg); err != nil {
		t.Fatal(err)
	}

	if b.Info.GLType != 0 || b.Info.GLFormat != 0 {
		t.Errorf("compressed header should clear type and format: %+v", b.Info)
	}
	if b.Info.GLInternalFormat != 0x93B0 {
		t.Errorf("internal format should be 0x93B0 but is 0x%X", b.Info.GLInternalFormat)
	}

	// 8x8 texels in 4x4 blocks is 4 blocks of 16 bytes
	blob, err := b.Blob(ktx.BlobIndex{Face: 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(blob) != 4*16 {
		t.Errorf("compressed blob should be 64 bytes but is %d", len(blob))
	}

	if _, err := b.Serialize(); err != nil {
		t.Errorf("compressed bundle should serialize: %v", err)
	}
}
