package libio

import "github.com/chewxy/math32"

// rgbmRange is the maximum linear value representable by RGBM encoding.
const rgbmRange = 16.0

// ToRGBM encodes a 3-channel linear raster into 4-channel 8-bit RGBM
// bytes, with the shared multiplier stored in the alpha channel.
func ToRGBM(img *FloatImage) []byte {
	out := make([]byte, img.Width*img.Height*4)
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < img.Width; x++ {
			r := math32.Min(row[x*3+0]/rgbmRange, 1.0)
			g := math32.Min(row[x*3+1]/rgbmRange, 1.0)
			b := math32.Min(row[x*3+2]/rgbmRange, 1.0)

			m := math32.Max(r, math32.Max(g, b))
			// round the multiplier up so rgb stays within [0, 1]
			m = math32.Ceil(m*255.0) / 255.0

			i := (y*img.Width + x) * 4
			if m <= 0 {
				out[i+3] = 0
				continue
			}
			out[i+0] = uint8(r/m*255.0 + 0.5)
			out[i+1] = uint8(g/m*255.0 + 0.5)
			out[i+2] = uint8(b/m*255.0 + 0.5)
			out[i+3] = uint8(m*255.0 + 0.5)
		}
	}
	return out
}

// FromRGBM decodes RGBM bytes back into a linear raster. Mainly useful
// for verifying encoded payloads.
func FromRGBM(data []byte, width, height int) *FloatImage {
	img := NewFloatImage(3, width, height)
	for i := 0; i < width*height; i++ {
		m := float32(data[i*4+3]) / 255.0 * rgbmRange
		img.Pix[i*3+0] = float32(data[i*4+0]) / 255.0 * m
		img.Pix[i*3+1] = float32(data[i*4+1]) / 255.0 * m
		img.Pix[i*3+2] = float32(data[i*4+2]) / 255.0 * m
	}
	return img
}
