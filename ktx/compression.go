package ktx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arm-software/astc-encoder/astc"
)

// ASTC internal format enums, GL_COMPRESSED_RGBA_ASTC_*.
const (
	astc4x4   = 0x93B0
	astc5x4   = 0x93B1
	astc5x5   = 0x93B2
	astc6x5   = 0x93B3
	astc6x6   = 0x93B4
	astc8x5   = 0x93B5
	astc8x6   = 0x93B6
	astc8x8   = 0x93B7
	astc10x5  = 0x93B8
	astc10x6  = 0x93B9
	astc10x8  = 0x93BA
	astc10x10 = 0x93BB
	astc12x10 = 0x93BC
	astc12x12 = 0x93BD
)

var astcFormats = map[[2]int]uint32{
	{4, 4}:   astc4x4,
	{5, 4}:   astc5x4,
	{5, 5}:   astc5x5,
	{6, 5}:   astc6x5,
	{6, 6}:   astc6x6,
	{8, 5}:   astc8x5,
	{8, 6}:   astc8x6,
	{8, 8}:   astc8x8,
	{10, 5}:  astc10x5,
	{10, 6}:  astc10x6,
	{10, 8}:  astc10x8,
	{10, 10}: astc10x10,
	{12, 10}: astc12x10,
	{12, 12}: astc12x12,
}

// CompressionConfig selects a block compression codec and its options.
type CompressionConfig struct {
	BlockX  int
	BlockY  int
	Profile astc.Profile
	Quality astc.EncodeQuality
}

// ParseCompression parses a compression spec of the form
// astc_[fast|thorough]_[ldr|hdr]_WxH, e.g. "astc_fast_ldr_4x4".
func ParseCompression(spec string) (*CompressionConfig, error) {
	if strings.HasPrefix(spec, "s3tc_") || strings.HasPrefix(spec, "etc_") {
		return nil, fmt.Errorf("compression family %q is not supported", spec)
	}
	parts := strings.Split(spec, "_")
	if len(parts) != 4 || parts[0] != "astc" {
		return nil, fmt.Errorf("invalid compression spec %q, want astc_[fast|thorough]_[ldr|hdr]_WxH", spec)
	}

	cfg := &CompressionConfig{}
	switch parts[1] {
	case "fast":
		cfg.Quality = astc.EncodeFast
	case "thorough":
		cfg.Quality = astc.EncodeThorough
	default:
		return nil, fmt.Errorf("invalid compression quality %q, want fast or thorough", parts[1])
	}
	switch parts[2] {
	case "ldr":
		cfg.Profile = astc.ProfileLDR
	case "hdr":
		cfg.Profile = astc.ProfileHDR
	default:
		return nil, fmt.Errorf("invalid compression profile %q, want ldr or hdr", parts[2])
	}

	bx, by, ok := strings.Cut(parts[3], "x")
	if !ok {
		return nil, fmt.Errorf("invalid block size %q, want WxH", parts[3])
	}
	var err error
	if cfg.BlockX, err = strconv.Atoi(bx); err != nil {
		return nil, fmt.Errorf("invalid block width %q", bx)
	}
	if cfg.BlockY, err = strconv.Atoi(by); err != nil {
		return nil, fmt.Errorf("invalid block height %q", by)
	}
	if _, ok := astcFormats[[2]int{cfg.BlockX, cfg.BlockY}]; !ok {
		return nil, fmt.Errorf("unsupported astc block size %dx%d", cfg.BlockX, cfg.BlockY)
	}
	return cfg, nil
}

// InternalFormat returns the GL internal format enum for the config.
func (c *CompressionConfig) InternalFormat() uint32 {
	return astcFormats[[2]int{c.BlockX, c.BlockY}]
}

// CompressTexture block-compresses every blob in the bundle in place and
// rewrites the header info for the compressed format. Blobs must be raw
// RGBA8 payloads matching the mip dimensions.
func CompressTexture(b *Bundle, cfg *CompressionConfig) error {
	for m := 0; m < b.numMipLevels; m++ {
		w := int(b.Info.PixelWidth) >> m
		h := int(b.Info.PixelHeight) >> m
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		for l := 0; l < b.arrayLength; l++ {
			for f := 0; f < b.numFaces; f++ {
				idx := BlobIndex{MipLevel: m, ArrayLayer: l, Face: f}
				pix, err := b.Blob(idx)
				if err != nil {
					return err
				}
				if len(pix) != w*h*4 {
					return fmt.Errorf("mip %d face %d: expected %d rgba bytes, got %d", m, f, w*h*4, len(pix))
				}
				enc, err := astc.EncodeRGBA8WithProfileAndQuality(pix, w, h, cfg.BlockX, cfg.BlockY, cfg.Profile, cfg.Quality)
				if err != nil {
					return fmt.Errorf("compressing mip %d face %d: %w", m, f, err)
				}
				// drop the .astc file header, ktx stores bare blocks
				b.SetBlob(idx, enc[astc.HeaderSize:])
			}
		}
	}

	b.Info.GLType = 0
	b.Info.GLTypeSize = 1
	b.Info.GLFormat = 0
	b.Info.GLInternalFormat = cfg.InternalFormat()
	b.Info.GLBaseInternalFormat = RGBA
	return nil
}
