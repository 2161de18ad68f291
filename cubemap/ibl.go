package cubemap

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"cubegen/libio"
)

// Monte-Carlo IBL filters. Sample directions come from the Hammersley
// low-discrepancy sequence, so for a fixed sample count the output is
// fully deterministic.

func radicalInverseVdC(bits uint32) float64 {
	bits = (bits << 16) | (bits >> 16)
	bits = ((bits & 0x55555555) << 1) | ((bits & 0xAAAAAAAA) >> 1)
	bits = ((bits & 0x33333333) << 2) | ((bits & 0xCCCCCCCC) >> 2)
	bits = ((bits & 0x0F0F0F0F) << 4) | ((bits & 0xF0F0F0F0) >> 4)
	bits = ((bits & 0x00FF00FF) << 8) | ((bits & 0xFF00FF00) >> 8)
	return float64(bits) * 2.3283064365386963e-10 // / 0x100000000
}

func hammersley(i, n uint32) (u, v float64) {
	return float64(i) / float64(n), radicalInverseVdC(i)
}

// hemisphereImportanceSampleDGGX draws a half vector around +Z with
// pdf = D_GGX(a) · cosθ.
func hemisphereImportanceSampleDGGX(u, v, a float64) mgl64.Vec3 {
	phi := 2 * math.Pi * u
	// (a²-1) written as (a+1)(a-1) for fp accuracy
	cosTheta2 := (1 - v) / (1 + (a+1)*((a-1)*v))
	cosTheta := math.Sqrt(cosTheta2)
	sinTheta := math.Sqrt(1 - cosTheta2)
	return mgl64.Vec3{sinTheta * math.Cos(phi), sinTheta * math.Sin(phi), cosTheta}
}

// hemisphereCosSample draws a direction around +Z with pdf = cosθ/π.
func hemisphereCosSample(u, v float64) mgl64.Vec3 {
	phi := 2 * math.Pi * u
	cosTheta2 := 1 - v
	cosTheta := math.Sqrt(cosTheta2)
	sinTheta := math.Sqrt(1 - cosTheta2)
	return mgl64.Vec3{sinTheta * math.Cos(phi), sinTheta * math.Sin(phi), cosTheta}
}

func distributionGGX(noH, a float64) float64 {
	f := (a-1)*((a+1)*(noH*noH)) + 1
	return (a * a) / (math.Pi * f * f)
}

// visibilitySmithGGX is the height-correlated Smith visibility term,
// V = G / (4·NoV·NoL).
func visibilitySmithGGX(noV, noL, a float64) float64 {
	a2 := a * a
	ggxL := noV * math.Sqrt((noL-noL*a2)*noL+a2)
	ggxV := noL * math.Sqrt((noV-noV*a2)*noV+a2)
	return 0.5 / (ggxV + ggxL)
}

func log4(x float64) float64 {
	return 0.5 * math.Log2(x)
}

// tangentFrame returns a right-handed basis with n as its third axis.
func tangentFrame(n mgl64.Vec3) (t, b mgl64.Vec3) {
	up := mgl64.Vec3{0, 0, 1}
	if math.Abs(n.Z()) >= 0.999 {
		up = mgl64.Vec3{1, 0, 0}
	}
	t = up.Cross(n).Normalize()
	b = n.Cross(t)
	return t, b
}

type filterSample struct {
	l      mgl64.Vec3
	weight float64
	lerp   float64
	l0, l1 int
}

// lod bias allowing a bit of overlap between neighboring samples
const lodBiasK = 4.0

// RoughnessFilter convolves the mip chain with the GGX lobe of the given
// linear roughness into dst. Each sample picks its source mip from the
// ratio of sample solid angle to texel solid angle, which kills the
// fireflies an all-base-level filter would produce.
func RoughnessFilter(dst *Cubemap, levels []*Cubemap, linearRoughness float64, sampleCount int) {
	base := levels[0]
	maxLevel := len(levels) - 1

	if linearRoughness == 0 {
		// perfect mirror, an unfiltered copy of the base level
		process(dst, func(f Face, y int) {
			for x := 0; x < dst.dim; x++ {
				r, g, b := base.FilterAt(dst.DirectionFor(f, x, y))
				dst.WriteAt(f, x, y, r, g, b)
			}
		})
		return
	}

	// everything that only depends on the sample index is precomputed
	// once; the per-texel loop just rotates the cached directions
	omegaP := (4 * math.Pi) / float64(6*base.dim*base.dim)
	cache := make([]filterSample, 0, sampleCount)
	weightSum := 0.0
	for i := 0; i < sampleCount; i++ {
		u, v := hammersley(uint32(i), uint32(sampleCount))
		h := hemisphereImportanceSampleDGGX(u, v, linearRoughness)
		// N = +Z, L = reflect(-N, H)
		l := h.Mul(2 * h.Z()).Sub(mgl64.Vec3{0, 0, 1})
		noL := l.Z()
		if noL <= 0 {
			continue
		}

		pdf := distributionGGX(h.Z(), linearRoughness) / 4
		omegaS := 1 / (float64(sampleCount) * pdf)
		lod := log4(omegaS) - log4(omegaP) + log4(lodBiasK)
		if lod < 0 {
			lod = 0
		} else if lod > float64(maxLevel) {
			lod = float64(maxLevel)
		}
		l0 := int(lod)
		l1 := l0 + 1
		if l1 > maxLevel {
			l1 = maxLevel
		}

		cache = append(cache, filterSample{l: l, weight: noL, lerp: lod - float64(l0), l0: l0, l1: l1})
		weightSum += noL
	}
	for i := range cache {
		cache[i].weight /= weightSum
	}
	// summing small weights first improves fp accuracy
	sort.Slice(cache, func(i, j int) bool { return cache[i].weight < cache[j].weight })

	process(dst, func(f Face, y int) {
		for x := 0; x < dst.dim; x++ {
			n := dst.DirectionFor(f, x, y)
			t, b := tangentFrame(n)

			var cr, cg, cb float64
			for _, s := range cache {
				l := t.Mul(s.l.X()).Add(b.Mul(s.l.Y())).Add(n.Mul(s.l.Z()))
				sr, sg, sb := TrilinearFilterAt(levels[s.l0], levels[s.l1], s.lerp, l)
				cr += float64(sr) * s.weight
				cg += float64(sg) * s.weight
				cb += float64(sb) * s.weight
			}
			dst.WriteAt(f, x, y, float32(cr), float32(cg), float32(cb))
		}
	})
}

// DiffuseIrradiance integrates cosine-weighted irradiance per texel.
// Samples always come from a PDF-selected mip of the chain, like the
// roughness filter.
func DiffuseIrradiance(dst *Cubemap, levels []*Cubemap, sampleCount int) {
	base := levels[0]
	maxLevel := len(levels) - 1

	omegaP := (4 * math.Pi) / float64(6*base.dim*base.dim)
	cache := make([]filterSample, 0, sampleCount)
	for i := 0; i < sampleCount; i++ {
		u, v := hammersley(uint32(i), uint32(sampleCount))
		l := hemisphereCosSample(u, v)
		noL := l.Z()
		if noL <= 0 {
			continue
		}

		pdf := noL / math.Pi
		omegaS := 1 / (float64(sampleCount) * pdf)
		lod := log4(omegaS) - log4(omegaP) + log4(lodBiasK)
		if lod < 0 {
			lod = 0
		} else if lod > float64(maxLevel) {
			lod = float64(maxLevel)
		}
		l0 := int(lod)
		l1 := l0 + 1
		if l1 > maxLevel {
			l1 = maxLevel
		}

		cache = append(cache, filterSample{l: l, weight: 1, lerp: lod - float64(l0), l0: l0, l1: l1})
	}
	for i := range cache {
		cache[i].weight /= float64(len(cache))
	}

	process(dst, func(f Face, y int) {
		for x := 0; x < dst.dim; x++ {
			n := dst.DirectionFor(f, x, y)
			t, b := tangentFrame(n)

			var cr, cg, cb float64
			for _, s := range cache {
				l := t.Mul(s.l.X()).Add(b.Mul(s.l.Y())).Add(n.Mul(s.l.Z()))
				sr, sg, sb := TrilinearFilterAt(levels[s.l0], levels[s.l1], s.lerp, l)
				cr += float64(sr) * s.weight
				cg += float64(sg) * s.weight
				cb += float64(sb) * s.weight
			}
			dst.WriteAt(f, x, y, float32(cr), float32(cg), float32(cb))
		}
	})
}

func pow5(x float64) float64 {
	x2 := x * x
	return x2 * x2 * x
}

// dfv integrates the split-sum BRDF terms for one LUT texel. The Fresnel
// factor splits into a scale and a bias so f0 and f90 can be applied at
// runtime.
func dfv(noV, a float64, sampleCount int, multiscatter bool) (scale, bias float64) {
	v := mgl64.Vec3{math.Sqrt(1 - noV*noV), 0, noV}
	for i := 0; i < sampleCount; i++ {
		u0, u1 := hammersley(uint32(i), uint32(sampleCount))
		h := hemisphereImportanceSampleDGGX(u0, u1, a)
		l := h.Mul(2 * v.Dot(h)).Sub(v)

		voH := math.Max(0, v.Dot(h))
		noL := math.Max(0, l.Z())
		noH := math.Max(0, h.Z())
		if noL <= 0 {
			continue
		}

		g := visibilitySmithGGX(noV, noL, a) * noL * (voH / noH)
		fc := pow5(1 - voH)
		if multiscatter {
			scale += g * fc
			bias += g
		} else {
			scale += g * (1 - fc)
			bias += g * fc
		}
	}
	n := 4.0 / float64(sampleCount)
	return scale * n, bias * n
}

// DFG fills a 2-channel LUT indexed by (NoV, roughness) with the
// split-sum BRDF integration. Row 0 holds roughness 1; the coordinate
// maps to linear roughness through a squaring, matching the mip mapping
// of the roughness filter.
func DFG(dst *libio.FloatImage, multiscatter bool, sampleCount int) {
	width := dst.Width
	height := dst.Height

	var wg sync.WaitGroup
	rows := make(chan int)
	workers := runtime.NumCPU()
	if workers > height {
		workers = height
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				coord := math.Min(1, (float64(height-y)+0.5)/float64(height))
				a := coord * coord
				row := dst.Pix[y*dst.Stride:]
				for x := 0; x < width; x++ {
					noV := math.Min(1, (float64(x)+0.5)/float64(width))
					scale, bias := dfv(noV, a, sampleCount, multiscatter)
					row[x*dst.Channels+0] = float32(scale)
					row[x*dst.Channels+1] = float32(bias)
					if dst.Channels > 2 {
						row[x*dst.Channels+2] = 0
					}
				}
			}
		}()
	}
	for y := 0; y < height; y++ {
		rows <- y
	}
	close(rows)
	wg.Wait()
}

// BRDF renders the GGX specular lobe for a normal fixed at +Z into the
// cubemap, used by the synthetic brdfN inputs.
func BRDF(dst *Cubemap, linearRoughness float64) {
	n := mgl64.Vec3{0, 0, 1}
	process(dst, func(f Face, y int) {
		for x := 0; x < dst.dim; x++ {
			l := dst.DirectionFor(f, x, y)
			noL := n.Dot(l)
			if noL <= 0 {
				dst.WriteAt(f, x, y, 0, 0, 0)
				continue
			}
			h := n.Add(l).Normalize()
			noH := n.Dot(h)
			d := distributionGGX(noH, linearRoughness) * visibilitySmithGGX(1, noL, linearRoughness) * noL
			dst.WriteAt(f, x, y, float32(d), float32(d), float32(d))
		}
	})
}
