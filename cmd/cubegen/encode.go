package main

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"cubegen/libio"
)

// saveImage writes img to base plus the format's extension. The png path
// tonemaps to gamma 2.2, rgbm writes an 8-bit png with the multiplier in
// alpha, raw writes the lossless float container.
func saveImage(cfg *config, img *libio.FloatImage, base string) error {
	switch cfg.format {
	case "png":
		tm := img.Clone()
		tm.Tonemap(2.2, 1.0)
		return writePNG(cfg, tm, base+".png")
	case "hdr":
		return writeFile(cfg, base+".hdr", func(f *os.File) error {
			return libio.EncodeHDR(f, img)
		})
	case "rgbm":
		return writeRGBM(cfg, img, base+".rgbm.png")
	case "raw":
		return writeFile(cfg, base+".raw", func(f *os.File) error {
			return libio.EncodeFloatImage(f, img, libio.FloatImageCompressionLZ4Fast)
		})
	case "ktx":
		return fmt.Errorf("ktx output requires a cubemap source")
	}
	return fmt.Errorf("unknown format %q", cfg.format)
}

func writePNG(cfg *config, img *libio.FloatImage, path string) error {
	return writeFile(cfg, path, func(f *os.File) error {
		return png.Encode(f, img.ToRGBA())
	})
}

func writeRGBM(cfg *config, img *libio.FloatImage, path string) error {
	data := libio.ToRGBM(img)
	rgba := &image.RGBA{
		Pix:    data,
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
	return writeFile(cfg, path, func(f *os.File) error {
		return png.Encode(f, rgba)
	})
}

func writeFile(cfg *config, path string, write func(f *os.File) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	if !cfg.quiet {
		fmt.Printf("Writing %q ...\n", path)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
