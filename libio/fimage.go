package libio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pierrec/lz4/v4"
)

// Binary container for raw float32 rasters, used for LUTs and debug dumps
// that must round-trip without any precision loss.

const MagicNumberF32 = 0x46b32c01

type FloatImageVersion uint32

const (
	F32Version1_000_000 = FloatImageVersion(1_000_000)
)

type FloatImageCompression uint32

const (
	FloatImageCompressionNone = FloatImageCompression(iota)
	FloatImageCompressionLZ4Fast
	FloatImageCompressionLZ4
)

type floatImageHeader struct {
	Check       uint32
	Version     FloatImageVersion
	Compression FloatImageCompression
	Channels    uint32
	Width       uint32
	Height      uint32
}

// EncodeFloatImage writes img with the given compression. The pixel
// payload is little-endian float32, optionally wrapped in an LZ4 frame.
func EncodeFloatImage(w io.Writer, img *FloatImage, compression FloatImageCompression) (err error) {
	bw := &BinaryWriter{
		Dst:   w,
		Order: binary.LittleEndian,
	}

	header := floatImageHeader{
		Check:       MagicNumberF32,
		Version:     F32Version1_000_000,
		Compression: compression,
		Channels:    uint32(img.Channels),
		Width:       uint32(img.Width),
		Height:      uint32(img.Height),
	}
	if !bw.WriteRef(&header) {
		return fmt.Errorf("could not write float image header: %w", bw.Err)
	}

	var dst io.Writer = bw
	var lzw *lz4.Writer
	switch compression {
	case FloatImageCompressionNone:
	case FloatImageCompressionLZ4Fast:
		lzw = lz4.NewWriter(bw)
		if err := lzw.Apply(lz4.CompressionLevelOption(lz4.Fast)); err != nil {
			return err
		}
		dst = lzw
	case FloatImageCompressionLZ4:
		lzw = lz4.NewWriter(bw)
		if err := lzw.Apply(lz4.CompressionLevelOption(lz4.Level4)); err != nil {
			return err
		}
		dst = lzw
	default:
		return fmt.Errorf("float image compression id %d unsupported", compression)
	}

	buf := make([]byte, img.Width*img.Channels*4)
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Width*img.Channels]
		for i, v := range row {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := dst.Write(buf); err != nil {
			return err
		}
	}

	if lzw != nil {
		return lzw.Close()
	}
	return bw.Err
}

// DecodeFloatImage reads a container written by EncodeFloatImage.
func DecodeFloatImage(r io.Reader) (*FloatImage, error) {
	br := &BinaryReader{
		Src:   r,
		Order: binary.LittleEndian,
	}

	header := floatImageHeader{}
	if !br.ReadRef(&header) {
		return nil, fmt.Errorf("expected float image header: %w", br.Err)
	}
	if header.Check != MagicNumberF32 {
		return nil, fmt.Errorf("float image header is corrupt")
	}
	if header.Version != F32Version1_000_000 {
		return nil, fmt.Errorf("float image version %d unsupported", header.Version)
	}

	var src io.Reader = br.Src
	switch header.Compression {
	case FloatImageCompressionNone:
	case FloatImageCompressionLZ4Fast, FloatImageCompressionLZ4:
		src = lz4.NewReader(br.Src)
	default:
		return nil, fmt.Errorf("float image compression id %d unsupported", header.Compression)
	}

	img := NewFloatImage(int(header.Channels), int(header.Width), int(header.Height))
	buf := make([]byte, len(img.Pix)*4)
	if _, err := io.ReadFull(src, buf); err != nil {
		return nil, fmt.Errorf("expected %d pixel bytes: %w", len(buf), err)
	}
	for i := range img.Pix {
		img.Pix[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}

	return img, nil
}
