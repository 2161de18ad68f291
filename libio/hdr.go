package libio

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Radiance HDR file codec. Only the 32-bit_rle_rgbe pixel format is
// supported, which is what every .hdr file in the wild uses. The decoder
// handles both flat and adaptive-RLE scanlines; the encoder always writes
// flat scanlines.

const hdrFormat = "32-bit_rle_rgbe"

// DecodeHDR reads a Radiance .hdr stream into a 3-channel linear raster.
func DecodeHDR(r io.Reader) (*FloatImage, error) {
	br := bufio.NewReader(r)

	magic, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("could not read hdr magic: %w", err)
	}
	if !strings.HasPrefix(magic, "#?RADIANCE") && !strings.HasPrefix(magic, "#?RGBE") {
		return nil, fmt.Errorf("not a radiance hdr file")
	}

	formatOk := false
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("could not read hdr header: %w", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "FORMAT=") {
			if strings.TrimPrefix(line, "FORMAT=") != hdrFormat {
				return nil, fmt.Errorf("unsupported hdr format %q", line)
			}
			formatOk = true
		}
	}
	if !formatOk {
		return nil, fmt.Errorf("hdr header is missing the FORMAT line")
	}

	var height, width int
	resolution, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("could not read hdr resolution: %w", err)
	}
	if n, _ := fmt.Sscanf(resolution, "-Y %d +X %d", &height, &width); n != 2 {
		return nil, fmt.Errorf("unsupported hdr resolution line %q", strings.TrimSpace(resolution))
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid hdr size %dx%d", width, height)
	}

	img := NewFloatImage(3, width, height)
	scanline := make([]byte, width*4)
	for y := 0; y < height; y++ {
		if err := readHdrScanline(br, scanline, width); err != nil {
			return nil, fmt.Errorf("hdr scanline %d: %w", y, err)
		}
		row := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			r, g, b := decodeRGBE(scanline[x*4], scanline[x*4+1], scanline[x*4+2], scanline[x*4+3])
			row[x*3+0] = r
			row[x*3+1] = g
			row[x*3+2] = b
		}
	}

	return img, nil
}

func readHdrScanline(br *bufio.Reader, scanline []byte, width int) error {
	head := make([]byte, 4)
	if _, err := io.ReadFull(br, head); err != nil {
		return err
	}

	if head[0] != 2 || head[1] != 2 || int(head[2])<<8|int(head[3]) != width {
		// flat scanline, head already holds the first pixel
		copy(scanline, head)
		_, err := io.ReadFull(br, scanline[4:width*4])
		return err
	}

	// adaptive RLE: four separate component planes
	for c := 0; c < 4; c++ {
		x := 0
		for x < width {
			count, err := br.ReadByte()
			if err != nil {
				return err
			}
			if count > 128 {
				// run of a single value
				n := int(count) - 128
				if x+n > width {
					return fmt.Errorf("rle run overflows scanline")
				}
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				for i := 0; i < n; i++ {
					scanline[(x+i)*4+c] = v
				}
				x += n
			} else {
				n := int(count)
				if n == 0 || x+n > width {
					return fmt.Errorf("rle literal overflows scanline")
				}
				for i := 0; i < n; i++ {
					v, err := br.ReadByte()
					if err != nil {
						return err
					}
					scanline[(x+i)*4+c] = v
				}
				x += n
			}
		}
	}
	return nil
}

// EncodeHDR writes a 3-channel linear raster as a Radiance .hdr stream
// with flat (uncompressed) scanlines.
func EncodeHDR(w io.Writer, img *FloatImage) error {
	if img.Channels != 3 {
		return fmt.Errorf("hdr output requires 3 channels, image has %d", img.Channels)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "#?RADIANCE\nFORMAT=%s\n\n-Y %d +X %d\n", hdrFormat, img.Height, img.Width)

	scanline := make([]byte, img.Width*4)
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < img.Width; x++ {
			r, g, b, e := encodeRGBE(row[x*3+0], row[x*3+1], row[x*3+2])
			scanline[x*4+0] = r
			scanline[x*4+1] = g
			scanline[x*4+2] = b
			scanline[x*4+3] = e
		}
		if _, err := bw.Write(scanline); err != nil {
			return err
		}
	}

	return bw.Flush()
}
