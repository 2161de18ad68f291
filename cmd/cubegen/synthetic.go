package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"cubegen/cubemap"
	"cubegen/libio"
)

// renderSynthetic builds a procedural environment when the input path
// does not name an existing file. Recognized names are uvN, uN and vN
// for checkerboard grids and brdfN for a specular lobe; anything else
// falls back to a 1x1 grid.
func renderSynthetic(cfg *config, path string) (*libio.FloatImage, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	dim := cfg.size
	if dim == 0 {
		dim = 256
	}
	img, cm, err := cubemap.Create(dim)
	if err != nil {
		return nil, err
	}

	prefix, n := splitTrailingInt(name)
	switch prefix {
	case "uv":
		cubemap.GenerateUVGrid(cm, n, n)
	case "u":
		cubemap.GenerateUVGrid(cm, n, 1)
	case "v":
		cubemap.GenerateUVGrid(cm, 1, n)
	case "brdf":
		r := float64(n) / math.Log2(float64(dim))
		cubemap.BRDF(cm, r*r)
	default:
		if !cfg.quiet {
			fmt.Printf("Input %q not found, rendering a debug grid ...\n", name)
		}
		cubemap.GenerateUVGrid(cm, 1, 1)
	}
	return img, nil
}

// splitTrailingInt splits "uv16" into "uv" and 16. Names without a
// positive trailing integer return n = 0 and an empty prefix.
func splitTrailingInt(s string) (string, int) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return "", 0
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil || n < 1 {
		return "", 0
	}
	return s[:i], n
}
