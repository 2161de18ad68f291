package main

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "image/png"

	"github.com/go-gl/mathgl/mgl64"

	"cubegen/cubemap"
	"cubegen/ktx"
	"cubegen/libio"
)

// processInput runs the full pipeline for one input file: decode, build
// the base cubemap and its mip chain, then emit every requested output.
func processInput(cfg *config, path string) error {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	src, err := loadInput(cfg, path)
	if err != nil {
		return err
	}
	src.Clamp()

	dim := cfg.size
	if dim == 0 {
		dim = defaultFaceDim(src)
	}

	baseImg, baseCm, err := cubemap.Create(dim)
	if err != nil {
		return err
	}
	if cubemap.CrossLayout(src.Width, src.Height) {
		err = cubemap.CrossToCubemap(baseCm, src)
	} else if src.Width == 2*src.Height {
		err = cubemap.EquirectangularToCubemap(baseCm, src)
	} else {
		err = fmt.Errorf("input %dx%d is neither a cross nor an equirectangular layout", src.Width, src.Height)
	}
	if err != nil {
		return err
	}

	if cfg.mirror {
		mirImg, mirCm, err := cubemap.Create(dim)
		if err != nil {
			return err
		}
		if err := cubemap.Mirror(mirCm, baseCm); err != nil {
			return err
		}
		baseImg, baseCm = mirImg, mirCm
	}
	baseCm.MakeSeamless()

	chain, err := cubemap.BuildMipChain(baseImg, baseCm)
	if err != nil {
		return err
	}
	if !cfg.quiet {
		fmt.Printf("Built %d mip levels from a %dx%d cubemap ...\n", len(chain.Levels), dim, dim)
	}

	outDir := filepath.Dir(path)

	if cfg.shBands > 0 || cfg.shFile != "" || cfg.shShader {
		if err := runSH(cfg, baseCm, outDir); err != nil {
			return err
		}
	}
	if cfg.iblIsMipmapDir != "" {
		if err := runIsMipmap(cfg, chain, cfg.iblIsMipmapDir); err != nil {
			return err
		}
	}
	if cfg.iblLdDir != "" {
		if err := runPrefilter(cfg, chain, cfg.iblLdDir); err != nil {
			return err
		}
	}
	if cfg.iblIrradianceDir != "" {
		if err := runIrradiance(cfg, chain, cfg.iblIrradianceDir); err != nil {
			return err
		}
	}
	if cfg.iblDfgFile != "" {
		if err := runDFG(cfg, cfg.iblDfgFile); err != nil {
			return err
		}
	}
	if cfg.extractDir != "" {
		if err := runExtract(cfg, chain, cfg.extractDir, base); err != nil {
			return err
		}
	}
	if cfg.deployDir != "" {
		if err := runDeploy(cfg, chain, cfg.deployDir, base); err != nil {
			return err
		}
	}
	return nil
}

// loadInput decodes the input image, or renders a synthetic environment
// when the path names one instead of an existing file.
func loadInput(cfg *config, path string) (*libio.FloatImage, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return renderSynthetic(cfg, path)
		}
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".hdr", ".rgbe":
		return libio.DecodeHDR(f)
	case ".raw":
		return libio.DecodeFloatImage(f)
	default:
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decoding %q: %w", path, err)
		}
		return fromLDR(img), nil
	}
}

// fromLDR converts an 8-bit image to a linear float raster assuming
// sRGB-ish gamma 2.2 content.
func fromLDR(img image.Image) *libio.FloatImage {
	b := img.Bounds()
	out := libio.NewFloatImage(3, b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			row[x*3+0] = float32(math.Pow(float64(r)/65535, 2.2))
			row[x*3+1] = float32(math.Pow(float64(g)/65535, 2.2))
			row[x*3+2] = float32(math.Pow(float64(bl)/65535, 2.2))
		}
	}
	return out
}

// defaultFaceDim derives the face dimension from the input layout,
// rounded down to a power of two.
func defaultFaceDim(src *libio.FloatImage) int {
	dim := src.Height / 2
	if cubemap.CrossLayout(src.Width, src.Height) {
		if src.Width > src.Height {
			dim = src.Width / 4
		} else {
			dim = src.Width / 3
		}
	}
	p := 1
	for p*2 <= dim {
		p *= 2
	}
	return p
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// runSH projects the base level onto spherical harmonics and prints,
// saves or renders them as requested.
func runSH(cfg *config, cm *cubemap.Cubemap, outDir string) error {
	bands := cfg.shBands
	if bands == 0 {
		bands = 3
	}

	var sh []mgl64.Vec3
	if cfg.shIrradiance && bands == 3 {
		sh = cubemap.ComputeIrradianceSH3Bands(cm)
	} else {
		sh = cubemap.ComputeSH(cm, bands, cfg.shIrradiance)
	}

	if !cfg.quiet {
		for i, c := range sh {
			fmt.Printf("sh[%2d] = (%14.8f, %14.8f, %14.8f)\n", i, c.X(), c.Y(), c.Z())
		}
	}
	if cfg.shShader {
		fmt.Print(shShaderSnippet(sh))
	}
	if cfg.shFile != "" {
		if err := os.WriteFile(cfg.shFile, []byte(formatSH(sh)), 0644); err != nil {
			return err
		}
	}

	if cfg.debug {
		dbgImg, dbgCm, err := cubemap.Create(cm.Dim())
		if err != nil {
			return err
		}
		if cfg.shIrradiance && bands == 3 {
			cubemap.RenderPreScaledSH3Bands(dbgCm, sh)
		} else {
			cubemap.RenderSH(dbgCm, sh, bands)
		}
		return emitCubemap(cfg, dbgImg, dbgCm, filepath.Join(outDir, "sh"))
	}
	return nil
}

// formatSH renders coefficients as whitespace-separated doubles, one
// coefficient per line.
func formatSH(sh []mgl64.Vec3) string {
	var sb strings.Builder
	for _, c := range sh {
		sb.WriteString(strconv.FormatFloat(c.X(), 'g', -1, 64))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(c.Y(), 'g', -1, 64))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(c.Z(), 'g', -1, 64))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// shShaderSnippet emits a GLSL function evaluating the irradiance
// polynomial for pre-scaled 3-band coefficients.
func shShaderSnippet(sh []mgl64.Vec3) string {
	var sb strings.Builder
	sb.WriteString("vec3 irradianceSH(vec3 n) {\n")
	sb.WriteString("    return\n")
	terms := []string{
		"1.0",
		"n.y", "n.z", "n.x",
		"n.y * n.x", "n.y * n.z", "3.0 * n.z * n.z - 1.0", "n.x * n.z", "n.x * n.x - n.y * n.y",
	}
	for i, c := range sh {
		if i >= len(terms) {
			break
		}
		sep := "+"
		if i == 0 {
			sep = " "
		}
		fmt.Fprintf(&sb, "        %s vec3(%g, %g, %g) * (%s)\n", sep, c.X(), c.Y(), c.Z(), terms[i])
	}
	sb.WriteString("        ;\n}\n")
	return sb.String()
}

// runIsMipmap writes every level of the plain mip chain, used for
// runtime importance sampling.
func runIsMipmap(cfg *config, chain *cubemap.MipChain, dir string) error {
	if err := ensureDir(dir); err != nil {
		return err
	}
	if cfg.format == "ktx" {
		return writeKtxChain(cfg, chain.Levels, nil, filepath.Join(dir, "is_mipmap.ktx"))
	}
	for level, img := range chain.Images {
		if err := emitCubemap(cfg, img, chain.Levels[level], filepath.Join(dir, fmt.Sprintf("is_m%d", level))); err != nil {
			return err
		}
	}
	return nil
}

// prefilteredLevels runs the roughness filter over the chain. Level l of
// the result is filtered with perceptual roughness l/(count-1). The
// sample count doubles per level starting at SampleGrowthLevel.
func prefilteredLevels(cfg *config, chain *cubemap.MipChain) ([]*cubemap.Cubemap, error) {
	count := len(chain.Levels)
	if count > 9 {
		// 256x256 down to 1x1 is enough for roughness reconstruction
		count = 9
	}

	levels := make([]*cubemap.Cubemap, count)
	samples := cfg.iblSamples
	for l := 0; l < count; l++ {
		dim := chain.Levels[l].Dim()
		_, cm, err := cubemap.Create(dim)
		if err != nil {
			return nil, err
		}

		roughness := float64(l) / float64(count-1)
		linear := roughness * roughness
		if !cfg.quiet {
			fmt.Printf("Prefiltering level %d (%dx%d, roughness %.3f, %d samples) ...\n", l, dim, dim, roughness, samples)
		}
		cubemap.RoughnessFilter(cm, chain.Levels, linear, samples)
		cm.MakeSeamless()

		levels[l] = cm
		if l+1 >= cfg.sampleGrowthLevel {
			samples *= 2
		}
	}
	return levels, nil
}

// runPrefilter writes the roughness-prefiltered pyramid as m<level>_<face>
// images or a single ktx file.
func runPrefilter(cfg *config, chain *cubemap.MipChain, dir string) error {
	if err := ensureDir(dir); err != nil {
		return err
	}
	levels, err := prefilteredLevels(cfg, chain)
	if err != nil {
		return err
	}

	if cfg.format == "ktx" {
		sh := cubemap.ComputeIrradianceSH3Bands(chain.Levels[0])
		return writeKtxChain(cfg, levels, sh, filepath.Join(dir, "ibl.ktx"))
	}
	for l, cm := range levels {
		for f := cubemap.PX; f <= cubemap.NZ; f++ {
			name := filepath.Join(dir, fmt.Sprintf("m%d_%s", l, f.Name()))
			if err := saveImage(cfg, cm.Face(f), name); err != nil {
				return err
			}
		}
	}
	return nil
}

// runIrradiance writes the diffuse irradiance map as i_<face> images.
func runIrradiance(cfg *config, chain *cubemap.MipChain, dir string) error {
	if err := ensureDir(dir); err != nil {
		return err
	}

	dim := chain.Levels[0].Dim()
	if dim > 64 {
		dim = 64
	}
	_, cm, err := cubemap.Create(dim)
	if err != nil {
		return err
	}
	if !cfg.quiet {
		fmt.Printf("Integrating diffuse irradiance (%dx%d, %d samples) ...\n", dim, dim, cfg.iblSamples)
	}
	cubemap.DiffuseIrradiance(cm, chain.Levels, cfg.iblSamples)
	cm.MakeSeamless()

	if cfg.format == "ktx" {
		return writeKtxChain(cfg, []*cubemap.Cubemap{cm}, nil, filepath.Join(dir, "irradiance.ktx"))
	}
	for f := cubemap.PX; f <= cubemap.NZ; f++ {
		if err := saveImage(cfg, cm.Face(f), filepath.Join(dir, "i_"+f.Name())); err != nil {
			return err
		}
	}
	return nil
}

// runDFG writes the split-sum BRDF lookup table.
func runDFG(cfg *config, path string) error {
	size := cfg.size
	if size == 0 {
		size = 128
	}
	lut := libio.NewFloatImage(3, size, size)
	if !cfg.quiet {
		fmt.Printf("Integrating DFG table (%dx%d, %d samples) ...\n", size, size, cfg.iblSamples)
	}
	cubemap.DFG(lut, cfg.iblDfgMultiscatter, cfg.iblSamples)
	return saveImage(cfg, lut, strings.TrimSuffix(path, filepath.Ext(path)))
}

// runExtract writes the environment in the configured layout, optionally
// blurred by a roughness filter first.
func runExtract(cfg *config, chain *cubemap.MipChain, dir, base string) error {
	if err := ensureDir(dir); err != nil {
		return err
	}

	img, cm := chain.Images[0], chain.Levels[0]
	if cfg.extractBlur > 0 {
		linear := cfg.extractBlur * cfg.extractBlur
		var err error
		img, cm, err = cubemap.Create(cm.Dim())
		if err != nil {
			return err
		}
		if !cfg.quiet {
			fmt.Printf("Blurring environment (roughness %.3f) ...\n", cfg.extractBlur)
		}
		cubemap.RoughnessFilter(cm, chain.Levels, linear, cfg.iblSamples)
		cm.MakeSeamless()
	}

	if cfg.format == "ktx" {
		return writeKtxChain(cfg, []*cubemap.Cubemap{cm}, nil, filepath.Join(dir, base+"_skybox.ktx"))
	}
	return emitCubemap(cfg, img, cm, filepath.Join(dir, base))
}

// runDeploy produces the standard deployment pair: the prefiltered IBL
// bundle with embedded SH metadata and the skybox bundle.
func runDeploy(cfg *config, chain *cubemap.MipChain, dir, base string) error {
	if err := ensureDir(dir); err != nil {
		return err
	}

	levels, err := prefilteredLevels(cfg, chain)
	if err != nil {
		return err
	}
	sh := cubemap.ComputeIrradianceSH3Bands(chain.Levels[0])
	if err := writeKtxChain(cfg, levels, sh, filepath.Join(dir, base+"_ibl.ktx")); err != nil {
		return err
	}
	return writeKtxChain(cfg, chain.Levels[:1], nil, filepath.Join(dir, base+"_skybox.ktx"))
}

// writeKtxChain bundles cubemap levels as RGBM payloads, optionally
// embedding pre-scaled SH coefficients under the "sh" metadata key.
func writeKtxChain(cfg *config, levels []*cubemap.Cubemap, sh []mgl64.Vec3, path string) error {
	b := ktx.NewBundle(len(levels), 1, true)
	dim := levels[0].Dim()
	b.Info = ktx.Info{
		GLType:               ktx.UnsignedByte,
		GLTypeSize:           1,
		GLFormat:             ktx.RGBA,
		GLInternalFormat:     ktx.RGBA8,
		GLBaseInternalFormat: ktx.RGBA,
		PixelWidth:           uint32(dim),
		PixelHeight:          uint32(dim),
	}

	for l, cm := range levels {
		for f := cubemap.PX; f <= cubemap.NZ; f++ {
			err := b.SetBlob(ktx.BlobIndex{MipLevel: l, Face: int(f)}, libio.ToRGBM(cm.Face(f)))
			if err != nil {
				return err
			}
		}
	}

	if cfg.compression != nil {
		if err := ktx.CompressTexture(b, cfg.compression); err != nil {
			return err
		}
	}

	if sh != nil {
		var sb strings.Builder
		for _, c := range sh {
			fmt.Fprintf(&sb, "%g %g %g ", c.X(), c.Y(), c.Z())
		}
		b.SetMetadata("sh", strings.TrimSpace(sb.String()))
	}

	data, err := b.Serialize()
	if err != nil {
		return err
	}
	if !cfg.quiet {
		fmt.Printf("Writing %q ...\n", filepath.ToSlash(filepath.Clean(path)))
	}
	return os.WriteFile(path, data, 0644)
}

// emitCubemap writes a cubemap-derived image in the configured layout.
// All non-ktx stages share this path.
func emitCubemap(cfg *config, img *libio.FloatImage, cm *cubemap.Cubemap, base string) error {
	switch cfg.outType {
	case "cubemap":
		return saveImage(cfg, img, base)
	case "equirect":
		out := libio.NewFloatImage(3, 4*cm.Dim(), 2*cm.Dim())
		if err := cubemap.ToEquirectangular(out, cm); err != nil {
			return err
		}
		return saveImage(cfg, out, base)
	case "octahedron":
		out := libio.NewFloatImage(3, 2*cm.Dim(), 2*cm.Dim())
		if err := cubemap.ToOctahedron(out, cm); err != nil {
			return err
		}
		return saveImage(cfg, out, base)
	case "ktx":
		return writeKtxChain(cfg, []*cubemap.Cubemap{cm}, nil, base+".ktx")
	}
	return fmt.Errorf("unknown output type %q", cfg.outType)
}
