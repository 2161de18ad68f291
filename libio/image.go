package libio

import (
	goimg "image"

	"github.com/chewxy/math32"
)

// FloatImage is a linear floating-point raster. Stride is in float32
// elements per row, which allows sub-rectangle views that share the
// backing pixel buffer without owning it.
type FloatImage struct {
	Channels      int
	Width, Height int
	Stride        int
	Pix           []float32
}

func NewFloatImage(channels, width, height int) *FloatImage {
	return &FloatImage{
		Channels: channels,
		Width:    width,
		Height:   height,
		Stride:   width * channels,
		Pix:      make([]float32, width*height*channels),
	}
}

func NewFloatImageFrom(pix []float32, channels, width, height int) *FloatImage {
	return &FloatImage{
		Channels: channels,
		Width:    width,
		Height:   height,
		Stride:   width * channels,
		Pix:      pix,
	}
}

// Index returns the element index of the first channel of pixel (x, y).
// The origin is the top left, matching Go's image package.
func (img *FloatImage) Index(x, y int) int {
	return y*img.Stride + x*img.Channels
}

// SubRect returns a view of the given rectangle. The view shares pixel
// memory with img and must not outlive it.
func (img *FloatImage) SubRect(x, y, width, height int) *FloatImage {
	return &FloatImage{
		Channels: img.Channels,
		Width:    width,
		Height:   height,
		Stride:   img.Stride,
		Pix:      img.Pix[img.Index(x, y):],
	}
}

// Contiguous reports whether the rows are packed without gaps, i.e. the
// image is not a view of a larger raster.
func (img *FloatImage) Contiguous() bool {
	return img.Stride == img.Width*img.Channels
}

// Clone copies the (possibly strided) pixels into a new contiguous image.
func (img *FloatImage) Clone() *FloatImage {
	dst := NewFloatImage(img.Channels, img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+img.Width*img.Channels]
		copy(dst.Pix[y*dst.Stride:], src)
	}
	return dst
}

// maximum value representable as a half float, used to sanitize inputs
const maxHalf = 65504.0

// Clamp replaces non-finite values and clamps every element to
// [0, 65504] so later stages never see NaNs or negative radiance.
func (img *FloatImage) Clamp() {
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Width*img.Channels]
		for i, v := range row {
			if math32.IsNaN(v) || v < 0 {
				row[i] = 0
			} else if v > maxHalf {
				row[i] = maxHalf
			}
		}
	}
}

// Tonemap applies scale then gamma in place.
func (img *FloatImage) Tonemap(gamma, scale float32) {
	invGamma := 1.0 / gamma
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Width*img.Channels]
		for i, v := range row {
			row[i] = math32.Pow(v*scale, invGamma)
		}
	}
}

// Normalize rescales all elements to [0, 1].
func (img *FloatImage) Normalize() {
	min := float32(math32.MaxFloat32)
	max := float32(-math32.MaxFloat32)
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Width*img.Channels]
		for _, v := range row {
			min = math32.Min(min, v)
			max = math32.Max(max, v)
		}
	}
	d := max - min
	if d == 0 {
		d = 1
	}
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Width*img.Channels]
		for i, v := range row {
			row[i] = (v - min) / d
		}
	}
}

// ToRGBA quantizes the image to an 8-bit RGBA image, clamping to [0, 1].
// Missing channels default to 0 (alpha to 1).
func (img *FloatImage) ToRGBA() *goimg.RGBA {
	rgba := goimg.NewRGBA(goimg.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			si := img.Index(x, y)
			di := rgba.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				switch {
				case c < img.Channels:
					v := math32.Max(0, math32.Min(img.Pix[si+c], 1.0))
					rgba.Pix[di+c] = uint8(v*255 + 0.5)
				case c == 3:
					rgba.Pix[di+c] = 0xff
				default:
					rgba.Pix[di+c] = 0
				}
			}
		}
	}
	return rgba
}
