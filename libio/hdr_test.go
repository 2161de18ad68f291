package libio_test

import (
	"bytes"
	"testing"

	"github.com/chewxy/math32"

	"cubegen/libio"
)

func TestHDRRoundTrip(t *testing.T) {
	src := libio.NewFloatImage(3, 16, 8)
	for i := range src.Pix {
		src.Pix[i] = float32(i%97) * 0.37
	}

	buf := &bytes.Buffer{}
	if err := libio.EncodeHDR(buf, src); err != nil {
		t.Fatal(err)
	}

	dst, err := libio.DecodeHDR(buf)
	if err != nil {
		t.Fatal(err)
	}
	if dst.Width != src.Width || dst.Height != src.Height {
		t.Fatalf("size should be %dx%d but is %dx%d", src.Width, src.Height, dst.Width, dst.Height)
	}

	// rgbe stores an 8 bit mantissa under a shared exponent, the error
	// bound is relative to the largest channel of the pixel
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			i := src.Index(x, y)
			max := math32.Max(src.Pix[i], math32.Max(src.Pix[i+1], src.Pix[i+2]))
			tolerance := max/128 + 1e-5
			for c := 0; c < 3; c++ {
				is := dst.Pix[dst.Index(x, y)+c]
				should := src.Pix[i+c]
				if math32.Abs(is-should) > tolerance {
					t.Fatalf("pixel (%d, %d) channel %d should be %f but is %f", x, y, c, should, is)
				}
			}
		}
	}
}

func TestDecodeHDRBadMagic(t *testing.T) {
	_, err := libio.DecodeHDR(bytes.NewReader([]byte("#?NOPE\n\n-Y 1 +X 1\n")))
	if err == nil {
		t.Error("decoding a bad magic number should fail")
	}
}

func TestRGBMRoundTrip(t *testing.T) {
	src := libio.NewFloatImage(3, 8, 8)
	values := []float32{0, 0.01, 0.125, 0.5, 1.0, 3.7, 9.2, 15.9}
	for i := range src.Pix {
		src.Pix[i] = values[i%len(values)]
	}

	data := libio.ToRGBM(src)
	if len(data) != src.Width*src.Height*4 {
		t.Fatalf("encoded length should be %d but is %d", src.Width*src.Height*4, len(data))
	}

	dst := libio.FromRGBM(data, src.Width, src.Height)
	for i := range src.Pix {
		if math32.Abs(dst.Pix[i]-src.Pix[i]) > 0.07 {
			t.Fatalf("pixel element %d should be %f but is %f", i, src.Pix[i], dst.Pix[i])
		}
	}
}
