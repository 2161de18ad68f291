package cubemap

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"cubegen/libio"
)

// Face identifies one of the six cubemap faces, in GL order.
type Face int

const (
	PX = Face(iota)
	NX
	PY
	NY
	PZ
	NZ
)

var faceNames = [6]string{"px", "nx", "py", "ny", "pz", "nz"}

// Name returns the short face tag used in output file names.
func (f Face) Name() string {
	return faceNames[f]
}

// Cubemap is an addressable 6-face view over a single backing raster.
// It never owns pixel memory; the raster does. All faces share one
// power-of-two edge length.
type Cubemap struct {
	dim   int
	scale float64
	faces [6]*libio.FloatImage
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Create allocates a horizontal-cross raster large enough for six dim×dim
// faces and returns it together with the cubemap viewing it.
func Create(dim int) (*libio.FloatImage, *Cubemap, error) {
	if !IsPowerOfTwo(dim) {
		return nil, nil, fmt.Errorf("cubemap dimension must be a power of two, got %d", dim)
	}
	img := libio.NewFloatImage(3, 4*dim, 3*dim)
	cm, err := New(img, dim)
	if err != nil {
		return nil, nil, err
	}
	return img, cm, nil
}

// crossOffsets holds the face cell positions in the horizontal cross
// layout, in units of the face dimension.
//
//	    py
//	 nx pz px nz
//	    ny
var crossOffsets = [6][2]int{
	PX: {2, 1},
	NX: {0, 1},
	PY: {1, 0},
	NY: {1, 2},
	PZ: {1, 1},
	NZ: {3, 1},
}

// New derives face views over an existing 4·dim × 3·dim raster.
func New(img *libio.FloatImage, dim int) (*Cubemap, error) {
	if !IsPowerOfTwo(dim) {
		return nil, fmt.Errorf("cubemap dimension must be a power of two, got %d", dim)
	}
	if img.Channels != 3 || img.Width < 4*dim || img.Height < 3*dim {
		return nil, fmt.Errorf("raster %dx%dx%d cannot back a cubemap of dimension %d",
			img.Width, img.Height, img.Channels, dim)
	}
	cm := &Cubemap{
		dim:   dim,
		scale: 2.0 / float64(dim),
	}
	for f := PX; f <= NZ; f++ {
		cm.faces[f] = img.SubRect(crossOffsets[f][0]*dim, crossOffsets[f][1]*dim, dim, dim)
	}
	return cm, nil
}

func (cm *Cubemap) Dim() int {
	return cm.dim
}

// Face returns the raster view of the given face.
func (cm *Cubemap) Face(f Face) *libio.FloatImage {
	return cm.faces[f]
}

func (cm *Cubemap) ReadAt(f Face, x, y int) (r, g, b float32) {
	img := cm.faces[f]
	i := img.Index(x, y)
	return img.Pix[i], img.Pix[i+1], img.Pix[i+2]
}

func (cm *Cubemap) WriteAt(f Face, x, y int, r, g, b float32) {
	img := cm.faces[f]
	i := img.Index(x, y)
	img.Pix[i] = r
	img.Pix[i+1] = g
	img.Pix[i+2] = b
}

// directionFor maps face-local coordinates s, t in [-1, 1] through the
// face basis to a unit direction.
func directionFor(f Face, s, t float64) mgl64.Vec3 {
	var d mgl64.Vec3
	switch f {
	case PX:
		d = mgl64.Vec3{1, -t, -s}
	case NX:
		d = mgl64.Vec3{-1, -t, s}
	case PY:
		d = mgl64.Vec3{s, 1, t}
	case NY:
		d = mgl64.Vec3{s, -1, -t}
	case PZ:
		d = mgl64.Vec3{s, -t, 1}
	case NZ:
		d = mgl64.Vec3{-s, -t, -1}
	}
	return d.Normalize()
}

// DirectionFor returns the unit direction through the center of texel
// (x, y) of the given face.
func (cm *Cubemap) DirectionFor(f Face, x, y int) mgl64.Vec3 {
	s := (float64(x)+0.5)*cm.scale - 1
	t := (float64(y)+0.5)*cm.scale - 1
	return directionFor(f, s, t)
}

// AddressFor projects a direction onto its major-axis face and returns
// normalized face coordinates s, t in [0, 1].
func AddressFor(dir mgl64.Vec3) (f Face, s, t float64) {
	rx, ry, rz := dir.X(), dir.Y(), dir.Z()
	ax, ay, az := math.Abs(rx), math.Abs(ry), math.Abs(rz)

	var sc, tc, ma float64
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		if rx >= 0 {
			f = PX
			sc = -rz
		} else {
			f = NX
			sc = rz
		}
		tc = -ry
	case ay >= ax && ay >= az:
		ma = ay
		if ry >= 0 {
			f = PY
			tc = rz
		} else {
			f = NY
			tc = -rz
		}
		sc = rx
	default:
		ma = az
		if rz >= 0 {
			f = PZ
			sc = rx
		} else {
			f = NZ
			sc = -rx
		}
		tc = -ry
	}

	s = (sc/ma + 1) * 0.5
	t = (tc/ma + 1) * 0.5
	return f, s, t
}

// TexelFor returns the texel whose center is nearest to the direction.
func (cm *Cubemap) TexelFor(dir mgl64.Vec3) (f Face, x, y int) {
	f, s, t := AddressFor(dir)
	x = int(s * float64(cm.dim))
	y = int(t * float64(cm.dim))
	if x >= cm.dim {
		x = cm.dim - 1
	}
	if y >= cm.dim {
		y = cm.dim - 1
	}
	return f, x, y
}

// SampleAt point-samples the cubemap in the given direction.
func (cm *Cubemap) SampleAt(dir mgl64.Vec3) (r, g, b float32) {
	f, x, y := cm.TexelFor(dir)
	return cm.ReadAt(f, x, y)
}

// FilterAt bilinearly samples the cubemap in the given direction. The
// filter does not cross face boundaries; seam continuity comes from
// MakeSeamless instead.
func (cm *Cubemap) FilterAt(dir mgl64.Vec3) (r, g, b float32) {
	f, s, t := AddressFor(dir)
	return filterFace(cm.faces[f], float32(s*float64(cm.dim)), float32(t*float64(cm.dim)))
}

// TrilinearFilterAt blends bilinear samples from two mip levels.
func TrilinearFilterAt(c0, c1 *Cubemap, lerp float64, dir mgl64.Vec3) (r, g, b float32) {
	r0, g0, b0 := c0.FilterAt(dir)
	if lerp == 0 || c0 == c1 {
		return r0, g0, b0
	}
	r1, g1, b1 := c1.FilterAt(dir)
	l := float32(lerp)
	return r0 + (r1-r0)*l, g0 + (g1-g0)*l, b0 + (b1-b0)*l
}

// MakeSeamless rewrites the 1-texel border of every face by resampling
// the neighboring face's interior across the seam, then patches corners
// from the fixed edges. Border values only ever depend on interior
// texels, which makes the operation idempotent.
func (cm *Cubemap) MakeSeamless() {
	d := cm.dim
	if d < 4 {
		return
	}

	// stitch reads the texel 1.5 texels beyond the seam, which lands on
	// the neighboring face's second row/column from its edge
	stitch := func(f Face, x, y, vx, vy int) {
		s := (float64(vx)+0.5)*cm.scale - 1
		t := (float64(vy)+0.5)*cm.scale - 1
		nf, nx, ny := cm.TexelFor(directionFor(f, s, t))
		r, g, b := cm.ReadAt(nf, nx, ny)
		cm.WriteAt(f, x, y, r, g, b)
	}

	for f := PX; f <= NZ; f++ {
		for i := 1; i < d-1; i++ {
			stitch(f, 0, i, -2, i)
			stitch(f, d-1, i, d+1, i)
			stitch(f, i, 0, i, -2)
			stitch(f, i, d-1, i, d+1)
		}
	}

	// corners average their two edge neighbors on the same face
	corner := func(f Face, x, y, x0, y0, x1, y1 int) {
		r0, g0, b0 := cm.ReadAt(f, x0, y0)
		r1, g1, b1 := cm.ReadAt(f, x1, y1)
		cm.WriteAt(f, x, y, (r0+r1)*0.5, (g0+g1)*0.5, (b0+b1)*0.5)
	}
	for f := PX; f <= NZ; f++ {
		corner(f, 0, 0, 1, 0, 0, 1)
		corner(f, d-1, 0, d-2, 0, d-1, 1)
		corner(f, 0, d-1, 1, d-1, 0, d-2)
		corner(f, d-1, d-1, d-2, d-1, d-1, d-2)
	}
}

// filterFace bilinearly samples a face raster at pixel coordinates,
// clamped to the face. Adapted from the equirectangular sampler.
func filterFace(img *libio.FloatImage, u, v float32) (r, g, b float32) {
	return bilinear(img, u-0.5, v-0.5)
}

func bilinear(img *libio.FloatImage, u, v float32) (r, g, b float32) {
	x0 := int(math.Floor(float64(u)))
	y0 := int(math.Floor(float64(v)))
	uf := u - float32(x0)
	vf := v - float32(y0)
	x1, y1 := x0+1, y0+1

	clampX := func(x int) int {
		if x < 0 {
			return 0
		}
		if x >= img.Width {
			return img.Width - 1
		}
		return x
	}
	clampY := func(y int) int {
		if y < 0 {
			return 0
		}
		if y >= img.Height {
			return img.Height - 1
		}
		return y
	}
	x0, x1 = clampX(x0), clampX(x1)
	y0, y1 = clampY(y0), clampY(y1)

	o00 := img.Index(x0, y0)
	o10 := img.Index(x1, y0)
	o01 := img.Index(x0, y1)
	o11 := img.Index(x1, y1)

	rh0 := img.Pix[o00+0]*(1-uf) + img.Pix[o10+0]*uf
	gh0 := img.Pix[o00+1]*(1-uf) + img.Pix[o10+1]*uf
	bh0 := img.Pix[o00+2]*(1-uf) + img.Pix[o10+2]*uf

	rh1 := img.Pix[o01+0]*(1-uf) + img.Pix[o11+0]*uf
	gh1 := img.Pix[o01+1]*(1-uf) + img.Pix[o11+1]*uf
	bh1 := img.Pix[o01+2]*(1-uf) + img.Pix[o11+2]*uf

	return rh0 + (rh1-rh0)*vf, gh0 + (gh1-gh0)*vf, bh0 + (bh1-bh0)*vf
}
