package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/exp/slices"

	"cubegen/ktx"
)

var outTypes = []string{"cubemap", "equirect", "octahedron", "ktx"}
var formats = []string{"png", "hdr", "rgbm", "raw", "ktx"}

// config holds the fully parsed invocation. It is built once by
// parseFlags and never mutated afterwards.
type config struct {
	outType     string
	format      string
	compression *ktx.CompressionConfig
	size        int
	deployDir   string
	extractDir  string
	extractBlur float64
	mirror      bool

	iblSamples        int
	sampleGrowthLevel int

	shBands      int
	shFile       string
	shIrradiance bool
	shShader     bool

	iblLdDir           string
	iblIrradianceDir   string
	iblIsMipmapDir     string
	iblDfgFile         string
	iblDfgMultiscatter bool

	quiet bool
	debug bool
}

func parseFlags() (*config, []string) {
	cfg := &config{
		outType:           "cubemap",
		mirror:            true,
		iblSamples:        1024,
		sampleGrowthLevel: 2,
	}

	var noMirror bool
	var compression string

	flag.StringVar(&cfg.outType, "type", cfg.outType, "the output image layout; cubemap, equirect, octahedron or ktx")
	flag.StringVar(&cfg.format, "format", cfg.format, "the output file format; png, hdr, rgbm, raw or ktx")
	flag.StringVar(&compression, "compression", "", "block compression for ktx output, e.g. astc_fast_ldr_4x4")
	flag.IntVar(&cfg.size, "size", 0, "the cubemap face dimension, defaults to the input resolution")
	flag.StringVar(&cfg.deployDir, "deploy", "", "generate all deployment outputs into this directory")
	flag.StringVar(&cfg.extractDir, "extract", "", "extract the environment map into this directory")
	flag.Float64Var(&cfg.extractBlur, "extract-blur", 0, "the perceptual roughness of the extracted environment")
	flag.BoolVar(&noMirror, "no-mirror", false, "disables the default horizontal mirroring of the input")
	flag.IntVar(&cfg.iblSamples, "ibl-samples", cfg.iblSamples, "base number of samples for filter stages")
	flag.IntVar(&cfg.shBands, "sh", 0, "compute and print spherical harmonics of the given band count")
	flag.StringVar(&cfg.shFile, "sh-output", "", "write the spherical harmonics to this file")
	flag.BoolVar(&cfg.shIrradiance, "sh-irradiance", false, "convolve the harmonics by the cosine lobe")
	flag.BoolVar(&cfg.shShader, "sh-shader", false, "print a shader snippet evaluating the harmonics")
	flag.StringVar(&cfg.iblLdDir, "ibl-ld", "", "write roughness-prefiltered mip levels into this directory")
	flag.StringVar(&cfg.iblIrradianceDir, "ibl-irradiance", "", "write the diffuse irradiance map into this directory")
	flag.StringVar(&cfg.iblIsMipmapDir, "ibl-is-mipmap", "", "write the importance-sampling mipmap into this directory")
	flag.StringVar(&cfg.iblDfgFile, "ibl-dfg", "", "write the DFG lookup table to this file")
	flag.BoolVar(&cfg.iblDfgMultiscatter, "ibl-dfg-multiscatter", false, "use the multiscatter DFG integration")
	flag.BoolVar(&cfg.quiet, "quiet", false, "disables informational logging")
	flag.BoolVar(&cfg.quiet, "q", false, "shorthand for quiet")
	flag.BoolVar(&cfg.debug, "debug", false, "enables extra debug outputs")
	flag.Parse()

	cfg.mirror = !noMirror

	if !slices.Contains(outTypes, cfg.outType) {
		harderr(fmt.Errorf("%q is not a valid output type, want one of %v", cfg.outType, outTypes))
	}
	if cfg.outType == "ktx" {
		cfg.format = "ktx"
	}
	if cfg.format != "" && !slices.Contains(formats, cfg.format) {
		harderr(fmt.Errorf("%q is not a valid format, want one of %v", cfg.format, formats))
	}
	if cfg.format == "" {
		cfg.format = "hdr"
	}
	if cfg.size != 0 && (cfg.size < 1 || cfg.size&(cfg.size-1) != 0) {
		harderr(fmt.Errorf("size must be a power of two, got %d", cfg.size))
	}
	if cfg.iblSamples < 1 {
		harderr(fmt.Errorf("ibl-samples must be positive, got %d", cfg.iblSamples))
	}
	if cfg.shBands < 0 || cfg.shBands > 8 {
		harderr(fmt.Errorf("sh band count must be in [1, 8], got %d", cfg.shBands))
	}
	if compression != "" {
		var err error
		cfg.compression, err = ktx.ParseCompression(compression)
		harderr(err)
	}

	if flag.NArg() < 1 {
		printUsage()
	}
	return cfg, flag.Args()
}

func printUsage() {
	exe := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s [arguments] input-file...\n\n", exe)
	fmt.Fprintf(os.Stderr, "The arguments are:\n\n")
	flag.CommandLine.SetOutput(os.Stderr)
	flag.PrintDefaults()
	os.Exit(1)
}

func main() {
	cfg, inputs := parseFlags()

	success := 0
	start := time.Now()
	for i, p := range inputs {
		if !cfg.quiet {
			fmt.Printf("Processing file %d/%d %q ...\n", i+1, len(inputs), filepath.ToSlash(filepath.Clean(p)))
		}
		err := processInput(cfg, p)
		softerr(err)
		if err == nil {
			success++
		}
	}
	if !cfg.quiet {
		took := float32(time.Since(start).Milliseconds()) / 1000
		fmt.Printf("Processed %d/%d files in %.3f seconds\n", success, len(inputs), took)
	}
	if success < len(inputs) {
		os.Exit(1)
	}
}

func softerr(err error) bool {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return true
	}
	return false
}

func harderr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
