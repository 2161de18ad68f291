package cubemap

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Spherical harmonics projection and reconstruction. All accumulation is
// done in double precision; drift across millions of texels would
// otherwise show up as banding in the reconstructed irradiance.

// SHIndex maps (order m, band l) to the coefficient slot l² + l + m.
func SHIndex(m, l int) int {
	return l*l + l + m
}

// SolidAngle returns the solid angle subtended by texel (x, y) of a
// dim×dim cubemap face, from the cube-to-sphere Jacobian. Corner and
// edge texels subtend less than center texels.
func SolidAngle(dim, x, y int) float64 {
	iDim := 1.0 / float64(dim)
	s := (float64(x)+0.5)*2*iDim - 1
	t := (float64(y)+0.5)*2*iDim - 1
	x0, y0 := s-iDim, t-iDim
	x1, y1 := s+iDim, t+iDim
	return sphereQuadrantArea(x0, y0) -
		sphereQuadrantArea(x0, y1) -
		sphereQuadrantArea(x1, y0) +
		sphereQuadrantArea(x1, y1)
}

func sphereQuadrantArea(x, y float64) float64 {
	return math.Atan2(x*y, math.Sqrt(x*x+y*y+1))
}

// factorialRatio returns n! / d!.
func factorialRatio(n, d int) float64 {
	if d > n {
		r := factorialRatio(d, n)
		return 1 / r
	}
	r := 1.0
	for i := d + 1; i <= n; i++ {
		r *= float64(i)
	}
	return r
}

// kml returns the normalization factor K of the (m, l) SH basis
// function, sqrt((2l+1)·(l-|m|)! / (4π·(l+|m|)!)).
func kml(m, l int) float64 {
	if m < 0 {
		m = -m
	}
	k := float64(2*l+1) * factorialRatio(l-m, l+m)
	return math.Sqrt(k) / (2 * math.SqrtPi)
}

// ki precomputes the K factors for all coefficients up to bands, with
// the sqrt(2) factor folded in for m != 0.
func ki(bands int) []float64 {
	k := make([]float64, bands*bands)
	for l := 0; l < bands; l++ {
		k[SHIndex(0, l)] = kml(0, l)
		for m := 1; m <= l; m++ {
			v := math.Sqrt2 * kml(m, l)
			k[SHIndex(m, l)] = v
			k[SHIndex(-m, l)] = v
		}
	}
	return k
}

// truncatedCosSH returns the zonal coefficients of the clamped cosine
// lobe, the Lambertian transfer function.
func truncatedCosSH(l int) float64 {
	if l == 0 {
		return math.Pi
	}
	if l == 1 {
		return 2 * math.Pi / 3
	}
	if l&1 != 0 {
		return 0
	}
	l2 := l / 2
	a0 := 1.0 / float64((l+2)*(l-1))
	if l2&1 == 0 {
		a0 = -a0
	}
	a1 := factorialRatio(l, l2) / (factorialRatio(l2, 0) * float64(int(1)<<uint(l)))
	return 2 * math.Pi * a0 * a1
}

// computeSHBasis evaluates the non-normalized real SH basis at s using
// the associated Legendre recurrences, writing bands² values into out.
func computeSHBasis(out []float64, bands int, s mgl64.Vec3) {
	// zonal harmonics first (m = 0)
	pml2, pml1 := 0.0, 1.0
	out[0] = pml1
	for l := 1; l < bands; l++ {
		pml := (float64(2*l-1)*pml1*s.Z() - float64(l-1)*pml2) / float64(l)
		pml2, pml1 = pml1, pml
		out[SHIndex(0, l)] = pml
	}

	pmm := 1.0
	for m := 1; m < bands; m++ {
		// (1 - 2m) replaces the (-1)^m Condon-Shortley phase
		pmm = float64(1-2*m) * pmm
		pml2 := pmm
		pml1 := float64(2*m+1) * pmm * s.Z()
		out[SHIndex(-m, m)] = pml2
		out[SHIndex(m, m)] = pml2
		if m+1 < bands {
			out[SHIndex(-m, m+1)] = pml1
			out[SHIndex(m, m+1)] = pml1
			for l := m + 2; l < bands; l++ {
				pml := (float64(2*l-1)*pml1*s.Z() - float64(l+m-1)*pml2) / float64(l-m)
				pml2, pml1 = pml1, pml
				out[SHIndex(-m, l)] = pml
				out[SHIndex(m, l)] = pml
			}
		}
	}

	// multiply in sin(θ)^|m| via the cos(mφ), sin(mφ) chain
	cm, sm := s.X(), s.Y()
	for m := 1; m < bands; m++ {
		for l := m; l < bands; l++ {
			out[SHIndex(-m, l)] *= sm
			out[SHIndex(m, l)] *= cm
		}
		cm, sm = cm*s.X()-sm*s.Y(), sm*s.X()+cm*s.Y()
	}
}

// ComputeSH projects the cubemap's radiance onto the real SH basis up to
// the given band count, weighting every texel by its solid angle. With
// irradiance set, the coefficients are convolved by the clamped cosine
// lobe so the result directly represents irradiance.
func ComputeSH(cm *Cubemap, bands int, irradiance bool) []mgl64.Vec3 {
	numCoefs := bands * bands
	sh := make([]mgl64.Vec3, numCoefs)

	// per-face partial sums keep the accumulation order deterministic
	// regardless of goroutine scheduling
	var partial [6][]mgl64.Vec3
	var wg sync.WaitGroup
	for f := PX; f <= NZ; f++ {
		partial[f] = make([]mgl64.Vec3, numCoefs)
		wg.Add(1)
		go func(f Face) {
			defer wg.Done()
			basis := make([]float64, numCoefs)
			acc := partial[f]
			for y := 0; y < cm.dim; y++ {
				for x := 0; x < cm.dim; x++ {
					s := cm.DirectionFor(f, x, y)
					r, g, b := cm.ReadAt(f, x, y)
					sa := SolidAngle(cm.dim, x, y)
					color := mgl64.Vec3{float64(r) * sa, float64(g) * sa, float64(b) * sa}
					computeSHBasis(basis, bands, s)
					for i := 0; i < numCoefs; i++ {
						acc[i] = acc[i].Add(color.Mul(basis[i]))
					}
				}
			}
		}(f)
	}
	wg.Wait()
	for f := PX; f <= NZ; f++ {
		for i := 0; i < numCoefs; i++ {
			sh[i] = sh[i].Add(partial[f][i])
		}
	}

	k := ki(bands)
	if irradiance {
		for l := 0; l < bands; l++ {
			cosSH := truncatedCosSH(l)
			for m := -l; m <= l; m++ {
				k[SHIndex(m, l)] *= cosSH
			}
		}
	}
	for i := 0; i < numCoefs; i++ {
		sh[i] = sh[i].Mul(k[i])
	}
	return sh
}

// RenderSH reconstructs the truncated SH series into the cubemap, one
// evaluation per texel direction.
func RenderSH(cm *Cubemap, sh []mgl64.Vec3, bands int) {
	numCoefs := bands * bands
	k := ki(bands)
	process(cm, func(f Face, y int) {
		basis := make([]float64, numCoefs)
		for x := 0; x < cm.dim; x++ {
			s := cm.DirectionFor(f, x, y)
			computeSHBasis(basis, bands, s)
			var c mgl64.Vec3
			for i := 0; i < numCoefs; i++ {
				c = c.Add(sh[i].Mul(k[i] * basis[i]))
			}
			cm.WriteAt(f, x, y, float32(c.X()), float32(c.Y()), float32(c.Z()))
		}
	})
}

// The 3-band basis constants, including the Condon-Shortley phase, in
// SHIndex order.
var sh3BandFactors = [9]float64{
	0.282095,
	-0.488603, 0.488603, -0.488603,
	1.092548, -1.092548, 0.315392, -1.092548, 0.546274,
}

func sh3BandBasis(s mgl64.Vec3) [9]float64 {
	x, y, z := s.X(), s.Y(), s.Z()
	return [9]float64{
		1,
		y, z, x,
		y * x, y * z, 3*z*z - 1, x * z, x*x - y*y,
	}
}

// ComputeIrradianceSH3Bands is the fixed 3-band fast path. It folds the
// basis constants and the cosine convolution into the coefficients, so a
// shader can evaluate irradiance as a plain dot product against the
// polynomial basis. The result is numerically different from ComputeSH
// output and the two must not be mixed.
func ComputeIrradianceSH3Bands(cm *Cubemap) []mgl64.Vec3 {
	sh := make([]mgl64.Vec3, 9)

	var partial [6][9]mgl64.Vec3
	var wg sync.WaitGroup
	for f := PX; f <= NZ; f++ {
		wg.Add(1)
		go func(f Face) {
			defer wg.Done()
			for y := 0; y < cm.dim; y++ {
				for x := 0; x < cm.dim; x++ {
					s := cm.DirectionFor(f, x, y)
					r, g, b := cm.ReadAt(f, x, y)
					sa := SolidAngle(cm.dim, x, y)
					color := mgl64.Vec3{float64(r) * sa, float64(g) * sa, float64(b) * sa}
					basis := sh3BandBasis(s)
					for i := 0; i < 9; i++ {
						partial[f][i] = partial[f][i].Add(color.Mul(sh3BandFactors[i] * basis[i]))
					}
				}
			}
		}(f)
	}
	wg.Wait()
	for f := PX; f <= NZ; f++ {
		for i := 0; i < 9; i++ {
			sh[i] = sh[i].Add(partial[f][i])
		}
	}

	// pre-scale: fold the cosine lobe and a second basis factor in
	for i := 0; i < 9; i++ {
		l := 0
		if i >= 1 {
			l = 1
		}
		if i >= 4 {
			l = 2
		}
		sh[i] = sh[i].Mul(sh3BandFactors[i] * truncatedCosSH(l))
	}
	return sh
}

// RenderPreScaledSH3Bands reconstructs coefficients produced by
// ComputeIrradianceSH3Bands.
func RenderPreScaledSH3Bands(cm *Cubemap, sh []mgl64.Vec3) {
	process(cm, func(f Face, y int) {
		for x := 0; x < cm.dim; x++ {
			s := cm.DirectionFor(f, x, y)
			basis := sh3BandBasis(s)
			var c mgl64.Vec3
			for i := 0; i < 9; i++ {
				c = c.Add(sh[i].Mul(basis[i]))
			}
			cm.WriteAt(f, x, y, float32(c.X()), float32(c.Y()), float32(c.Z()))
		}
	})
}
