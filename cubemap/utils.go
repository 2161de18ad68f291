package cubemap

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"cubegen/libio"
)

// process runs fn over every scanline of every face, one goroutine per
// face. Faces write into disjoint regions of the backing raster, so no
// synchronization beyond the final wait is needed.
func process(cm *Cubemap, fn func(f Face, y int)) {
	var wg sync.WaitGroup
	for f := PX; f <= NZ; f++ {
		wg.Add(1)
		go func(f Face) {
			defer wg.Done()
			for y := 0; y < cm.dim; y++ {
				fn(f, y)
			}
		}(f)
	}
	wg.Wait()
}

// CrossLayout reports whether the raster has a cross aspect ratio and
// a power-of-two face dimension.
func CrossLayout(width, height int) bool {
	return (width*3 == height*4 && IsPowerOfTwo(width/4)) ||
		(height*3 == width*4 && IsPowerOfTwo(height/4))
}

// CrossToCubemap fills the cubemap from a 4:3 (horizontal) or 3:4
// (vertical) cross image. The bottom cell of a vertical cross holds the
// -Z face rotated by 180 degrees.
func CrossToCubemap(dst *Cubemap, src *libio.FloatImage) error {
	if !CrossLayout(src.Width, src.Height) {
		return fmt.Errorf("aspect ratio %dx%d is not a cross layout", src.Width, src.Height)
	}
	horizontal := src.Width*3 == src.Height*4
	cell := src.Width / 4
	if !horizontal {
		cell = src.Width / 3
	}

	dim := dst.dim
	fcell := float64(cell)
	process(dst, func(f Face, y int) {
		for x := 0; x < dim; x++ {
			fx := (float64(x) + 0.5) * fcell / float64(dim)
			fy := (float64(y) + 0.5) * fcell / float64(dim)

			var sx, sy float64
			switch f {
			case NX:
				sx, sy = fx, fcell+fy
			case PX:
				sx, sy = 2*fcell+fx, fcell+fy
			case PY:
				sx, sy = fcell+fx, fy
			case NY:
				sx, sy = fcell+fx, 2*fcell+fy
			case PZ:
				sx, sy = fcell+fx, fcell+fy
			case NZ:
				if horizontal {
					sx, sy = 3*fcell+fx, fcell+fy
				} else {
					sx, sy = fcell+(fcell-fx), 3*fcell+(fcell-fy)
				}
			}

			r, g, b := bilinear(src, float32(sx-0.5), float32(sy-0.5))
			dst.WriteAt(f, x, y, r, g, b)
		}
	})
	return nil
}

// EquirectangularToCubemap fills the cubemap from a 2:1 lat/long image.
func EquirectangularToCubemap(dst *Cubemap, src *libio.FloatImage) error {
	if src.Width != 2*src.Height {
		return fmt.Errorf("equirectangular input must be 2:1, got %dx%d", src.Width, src.Height)
	}

	w := float64(src.Width)
	h := float64(src.Height)
	process(dst, func(f Face, y int) {
		for x := 0; x < dst.dim; x++ {
			d := dst.DirectionFor(f, x, y)
			// longitude from atan2, latitude from asin; +Y maps to the
			// top scanline
			u := (math.Atan2(d.X(), d.Z())/(2*math.Pi) + 0.5) * w
			v := (0.5 - math.Asin(d.Y())/math.Pi) * h
			r, g, b := bilinear(src, float32(u)-0.5, float32(v)-0.5)
			dst.WriteAt(f, x, y, r, g, b)
		}
	})
	return nil
}

// ToEquirectangular renders the cubemap into a 2:1 lat/long raster.
func ToEquirectangular(dst *libio.FloatImage, src *Cubemap) error {
	if dst.Width != 2*dst.Height {
		return fmt.Errorf("equirectangular output must be 2:1, got %dx%d", dst.Width, dst.Height)
	}

	w := float64(dst.Width)
	h := float64(dst.Height)
	for y := 0; y < dst.Height; y++ {
		row := dst.Pix[y*dst.Stride:]
		phi := (0.5 - (float64(y)+0.5)/h) * math.Pi
		for x := 0; x < dst.Width; x++ {
			theta := ((float64(x)+0.5)/w - 0.5) * 2 * math.Pi
			d := mgl64.Vec3{
				math.Cos(phi) * math.Sin(theta),
				math.Sin(phi),
				math.Cos(phi) * math.Cos(theta),
			}
			r, g, b := src.FilterAt(d)
			row[x*3+0] = r
			row[x*3+1] = g
			row[x*3+2] = b
		}
	}
	return nil
}

// ToOctahedron renders the cubemap into a square octahedral layout, +Y
// at the center and the lower hemisphere folded into the corners.
func ToOctahedron(dst *libio.FloatImage, src *Cubemap) error {
	if dst.Width != dst.Height {
		return fmt.Errorf("octahedron output must be square, got %dx%d", dst.Width, dst.Height)
	}

	dim := float64(dst.Width)
	for y := 0; y < dst.Height; y++ {
		row := dst.Pix[y*dst.Stride:]
		v := (float64(y)+0.5)/dim*2 - 1
		for x := 0; x < dst.Width; x++ {
			u := (float64(x)+0.5)/dim*2 - 1

			ox, oz := u, v
			oy := 1 - math.Abs(u) - math.Abs(v)
			if oy < 0 {
				ox = math.Copysign(1-math.Abs(v), u)
				oz = math.Copysign(1-math.Abs(u), v)
			}
			d := mgl64.Vec3{ox, oy, oz}.Normalize()

			r, g, b := src.FilterAt(d)
			row[x*3+0] = r
			row[x*3+1] = g
			row[x*3+2] = b
		}
	}
	return nil
}

// Mirror writes src into dst with the environment's handedness flipped.
// Sampling through the direction mapping gives the face-dependent index
// and sign flips for free.
func Mirror(dst, src *Cubemap) error {
	if dst.dim != src.dim {
		return fmt.Errorf("mirror requires equal dimensions, got %d and %d", dst.dim, src.dim)
	}
	process(dst, func(f Face, y int) {
		for x := 0; x < dst.dim; x++ {
			d := dst.DirectionFor(f, x, y)
			r, g, b := src.SampleAt(mgl64.Vec3{-d.X(), d.Y(), d.Z()})
			dst.WriteAt(f, x, y, r, g, b)
		}
	})
	return nil
}

// DownsampleBoxFilter halves the cubemap: every destination texel is the
// unweighted average of the 2x2 source block on the same face. Seam
// correctness is restored afterwards by MakeSeamless.
func DownsampleBoxFilter(dst, src *Cubemap) error {
	if src.dim != 2*dst.dim {
		return fmt.Errorf("downsample requires a 2:1 dimension ratio, got %d to %d", src.dim, dst.dim)
	}
	process(dst, func(f Face, y int) {
		img := src.faces[f]
		for x := 0; x < dst.dim; x++ {
			o00 := img.Index(2*x, 2*y)
			o10 := img.Index(2*x+1, 2*y)
			o01 := img.Index(2*x, 2*y+1)
			o11 := img.Index(2*x+1, 2*y+1)
			dst.WriteAt(f, x, y,
				(img.Pix[o00+0]+img.Pix[o10+0]+img.Pix[o01+0]+img.Pix[o11+0])*0.25,
				(img.Pix[o00+1]+img.Pix[o10+1]+img.Pix[o01+1]+img.Pix[o11+1])*0.25,
				(img.Pix[o00+2]+img.Pix[o10+2]+img.Pix[o01+2]+img.Pix[o11+2])*0.25)
		}
	})
	return nil
}

// MipChain holds a full cubemap mip pyramid down to dimension 1,
// together with the rasters owning each level's pixels.
type MipChain struct {
	Images []*libio.FloatImage
	Levels []*Cubemap
}

// BuildMipChain box-filters the base level down to dimension 1 and makes
// every generated level seamless. The chain has log2(dim)+1 levels.
func BuildMipChain(baseImg *libio.FloatImage, base *Cubemap) (*MipChain, error) {
	chain := &MipChain{
		Images: []*libio.FloatImage{baseImg},
		Levels: []*Cubemap{base},
	}
	for dim := base.dim; dim > 1; {
		dim >>= 1
		img, cm, err := Create(dim)
		if err != nil {
			return nil, err
		}
		if err := DownsampleBoxFilter(cm, chain.Levels[len(chain.Levels)-1]); err != nil {
			return nil, err
		}
		cm.MakeSeamless()
		chain.Images = append(chain.Images, img)
		chain.Levels = append(chain.Levels, cm)
	}
	return chain, nil
}

// uvGridColors identifies faces in debug grids: red +X, green +Y,
// blue +Z, darker for the negative directions.
var uvGridColors = [6][3]float32{
	PX: {1, 0, 0},
	NX: {0.5, 0, 0},
	PY: {0, 1, 0},
	NY: {0, 0.5, 0},
	PZ: {0, 0, 1},
	NZ: {0, 0, 0.5},
}

const uvGridHDRIntensity = 5.0

// GenerateUVGrid fills the cubemap with a face-colored checkerboard of
// the given horizontal and vertical frequency.
func GenerateUVGrid(cm *Cubemap, freqX, freqY int) {
	if freqX < 1 {
		freqX = 1
	}
	if freqY < 1 {
		freqY = 1
	}
	gridX := cm.dim / (2 * freqX)
	if gridX < 1 {
		gridX = 1
	}
	gridY := cm.dim / (2 * freqY)
	if gridY < 1 {
		gridY = 1
	}

	process(cm, func(f Face, y int) {
		for x := 0; x < cm.dim; x++ {
			c := uvGridColors[f]
			if (x/gridX+y/gridY)&1 == 0 {
				cm.WriteAt(f, x, y, c[0]*uvGridHDRIntensity, c[1]*uvGridHDRIntensity, c[2]*uvGridHDRIntensity)
			} else {
				cm.WriteAt(f, x, y, 0.2, 0.2, 0.2)
			}
		}
	})
}
