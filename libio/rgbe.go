package libio

import "github.com/chewxy/math32"

// Shared-exponent RGBE pixel conversion, as used by the Radiance HDR
// format. See https://www.graphics.cornell.edu/~bjw/rgbe/rgbe.c

func encodeRGBE(r, g, b float32) (byte, byte, byte, byte) {
	max := r
	if g > max {
		max = g
	}
	if b > max {
		max = b
	}

	if max < 1e-32 {
		return 0, 0, 0, 0
	}

	frac, exp := math32.Frexp(max)
	f := frac * 256.0 / max
	return byte(r * f), byte(g * f), byte(b * f), byte(exp + 128)
}

func decodeRGBE(re, ge, be, e byte) (r, g, b float32) {
	if e == 0 {
		return 0, 0, 0
	}
	f := math32.Ldexp(1.0, int(e)-(128+8))
	return float32(re) * f, float32(ge) * f, float32(be) * f
}
