// Package ktx assembles and parses KTX 1.1 texture containers.
package ktx

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"cubegen/libio"
)

// OpenGL enums used by the container header.
const (
	EndianDefault = 0x04030201

	UnsignedByte = 0x1401

	RGB   = 0x1907
	RGBA  = 0x1908
	RGB8  = 0x8051
	RGBA8 = 0x8058
)

var fileIdentifier = [12]byte{
	0xAB, 0x4B, 0x54, 0x58, 0x20, 0x31, 0x31, 0xBB, 0x0D, 0x0A, 0x1A, 0x0A,
}

// Info mirrors the KTX header fields that describe the pixel data.
type Info struct {
	GLType               uint32
	GLTypeSize           uint32
	GLFormat             uint32
	GLInternalFormat     uint32
	GLBaseInternalFormat uint32
	PixelWidth           uint32
	PixelHeight          uint32
	PixelDepth           uint32
}

// BlobIndex addresses one image blob inside a bundle.
type BlobIndex struct {
	MipLevel   int
	ArrayLayer int
	Face       int
}

// Bundle holds the header info, ordered key/value metadata and the
// per-image payloads of a KTX file under construction.
type Bundle struct {
	Info Info

	numMipLevels   int
	arrayLength    int
	numFaces       int
	metadataKeys   []string
	metadataValues map[string]string
	blobs          [][]byte
}

// NewBundle creates an empty bundle for the given shape. Cubemaps carry
// six faces per mip level.
func NewBundle(numMipLevels, arrayLength int, isCubemap bool) *Bundle {
	faces := 1
	if isCubemap {
		faces = 6
	}
	if numMipLevels < 1 {
		numMipLevels = 1
	}
	if arrayLength < 1 {
		arrayLength = 1
	}
	return &Bundle{
		numMipLevels:   numMipLevels,
		arrayLength:    arrayLength,
		numFaces:       faces,
		metadataValues: map[string]string{},
		blobs:          make([][]byte, numMipLevels*arrayLength*faces),
	}
}

func (b *Bundle) NumMipLevels() int { return b.numMipLevels }
func (b *Bundle) ArrayLength() int  { return b.arrayLength }
func (b *Bundle) NumFaces() int     { return b.numFaces }
func (b *Bundle) IsCubemap() bool   { return b.numFaces == 6 }

func (b *Bundle) blobOffset(idx BlobIndex) (int, error) {
	if idx.MipLevel < 0 || idx.MipLevel >= b.numMipLevels ||
		idx.ArrayLayer < 0 || idx.ArrayLayer >= b.arrayLength ||
		idx.Face < 0 || idx.Face >= b.numFaces {
		return 0, fmt.Errorf("blob index %+v out of range", idx)
	}
	return (idx.MipLevel*b.arrayLength+idx.ArrayLayer)*b.numFaces + idx.Face, nil
}

// SetBlob stores the payload for one image. The slice is retained, not
// copied.
func (b *Bundle) SetBlob(idx BlobIndex, data []byte) error {
	i, err := b.blobOffset(idx)
	if err != nil {
		return err
	}
	b.blobs[i] = data
	return nil
}

// Blob returns the payload stored for one image, or an error if the
// index is out of range or nothing was stored.
func (b *Bundle) Blob(idx BlobIndex) ([]byte, error) {
	i, err := b.blobOffset(idx)
	if err != nil {
		return nil, err
	}
	if b.blobs[i] == nil {
		return nil, fmt.Errorf("no blob stored at %+v", idx)
	}
	return b.blobs[i], nil
}

// SetMetadata stores a key/value entry. Keys keep their insertion order
// in the serialized file.
func (b *Bundle) SetMetadata(key, value string) {
	if _, ok := b.metadataValues[key]; !ok {
		b.metadataKeys = append(b.metadataKeys, key)
	}
	b.metadataValues[key] = value
}

// GetMetadata returns the value for a key and whether it was set.
func (b *Bundle) GetMetadata(key string) (string, bool) {
	v, ok := b.metadataValues[key]
	return v, ok
}

// metadataEntrySize returns the padded on-disk size of one entry,
// excluding its own length field.
func metadataEntrySize(key, value string) int {
	n := len(key) + 1 + len(value) + 1
	return (n + 3) &^ 3
}

func (b *Bundle) bytesOfKeyValueData() int {
	total := 0
	for _, k := range b.metadataKeys {
		total += 4 + metadataEntrySize(k, b.metadataValues[k])
	}
	return total
}

// GetSerializedLength returns the exact byte length Serialize will
// produce, assuming all blobs are present.
func (b *Bundle) GetSerializedLength() int {
	n := 12 + 13*4 + b.bytesOfKeyValueData()
	for m := 0; m < b.numMipLevels; m++ {
		n += 4
		for l := 0; l < b.arrayLength; l++ {
			for f := 0; f < b.numFaces; f++ {
				i := (m*b.arrayLength+l)*b.numFaces + f
				n += len(b.blobs[i])
			}
		}
	}
	return n
}

// Serialize writes the bundle as a KTX 1.1 file. Every blob must be set,
// and within a mip level all blobs must have equal size.
func (b *Bundle) Serialize() ([]byte, error) {
	for m := 0; m < b.numMipLevels; m++ {
		var size = -1
		for l := 0; l < b.arrayLength; l++ {
			for f := 0; f < b.numFaces; f++ {
				i := (m*b.arrayLength+l)*b.numFaces + f
				if b.blobs[i] == nil {
					return nil, fmt.Errorf("missing blob at mip %d layer %d face %d", m, l, f)
				}
				if size == -1 {
					size = len(b.blobs[i])
				} else if len(b.blobs[i]) != size {
					return nil, fmt.Errorf("blob size mismatch in mip %d", m)
				}
			}
		}
	}

	buf := bytes.NewBuffer(make([]byte, 0, b.GetSerializedLength()))
	bw := &libio.BinaryWriter{Order: binary.LittleEndian, Dst: buf}

	bw.WriteBytes(fileIdentifier[:])
	bw.WriteUInt32(EndianDefault)
	bw.WriteUInt32(b.Info.GLType)
	bw.WriteUInt32(b.Info.GLTypeSize)
	bw.WriteUInt32(b.Info.GLFormat)
	bw.WriteUInt32(b.Info.GLInternalFormat)
	bw.WriteUInt32(b.Info.GLBaseInternalFormat)
	bw.WriteUInt32(b.Info.PixelWidth)
	bw.WriteUInt32(b.Info.PixelHeight)
	bw.WriteUInt32(b.Info.PixelDepth)
	// arrayLength is 0 for non-array textures
	if b.arrayLength > 1 {
		bw.WriteUInt32(uint32(b.arrayLength))
	} else {
		bw.WriteUInt32(0)
	}
	bw.WriteUInt32(uint32(b.numFaces))
	bw.WriteUInt32(uint32(b.numMipLevels))
	bw.WriteUInt32(uint32(b.bytesOfKeyValueData()))

	for _, k := range b.metadataKeys {
		v := b.metadataValues[k]
		entry := len(k) + 1 + len(v) + 1
		bw.WriteUInt32(uint32(entry))
		bw.WriteBytes([]byte(k))
		bw.WriteUInt8(0)
		bw.WriteBytes([]byte(v))
		bw.WriteUInt8(0)
		for p := entry; p&3 != 0; p++ {
			bw.WriteUInt8(0)
		}
	}

	for m := 0; m < b.numMipLevels; m++ {
		first := b.blobs[m*b.arrayLength*b.numFaces]
		bw.WriteUInt32(uint32(len(first)))
		for l := 0; l < b.arrayLength; l++ {
			for f := 0; f < b.numFaces; f++ {
				i := (m*b.arrayLength+l)*b.numFaces + f
				bw.WriteBytes(b.blobs[i])
			}
		}
	}

	if bw.Err != nil {
		return nil, bw.Err
	}
	return buf.Bytes(), nil
}

// Parse reads a little-endian KTX 1.1 file back into a bundle. Mainly
// used to verify serialized output.
func Parse(data []byte) (*Bundle, error) {
	br := &libio.BinaryReader{Order: binary.LittleEndian, Src: bytes.NewReader(data)}

	if !br.ReadBytes(12) {
		return nil, fmt.Errorf("reading identifier: %w", br.Err)
	}
	if !bytes.Equal(br.Bytes(), fileIdentifier[:]) {
		return nil, fmt.Errorf("not a ktx file")
	}

	var endianness uint32
	br.ReadUInt32(&endianness)
	if br.Err == nil && endianness != EndianDefault {
		return nil, fmt.Errorf("unsupported endianness 0x%08x", endianness)
	}

	var info Info
	var arrayLength, numFaces, numMips, kvBytes uint32
	br.ReadUInt32(&info.GLType)
	br.ReadUInt32(&info.GLTypeSize)
	br.ReadUInt32(&info.GLFormat)
	br.ReadUInt32(&info.GLInternalFormat)
	br.ReadUInt32(&info.GLBaseInternalFormat)
	br.ReadUInt32(&info.PixelWidth)
	br.ReadUInt32(&info.PixelHeight)
	br.ReadUInt32(&info.PixelDepth)
	br.ReadUInt32(&arrayLength)
	br.ReadUInt32(&numFaces)
	br.ReadUInt32(&numMips)
	br.ReadUInt32(&kvBytes)
	if br.Err != nil {
		return nil, fmt.Errorf("reading header: %w", br.Err)
	}
	if numFaces != 1 && numFaces != 6 {
		return nil, fmt.Errorf("invalid face count %d", numFaces)
	}
	if numMips == 0 {
		numMips = 1
	}

	b := NewBundle(int(numMips), int(arrayLength), numFaces == 6)
	b.Info = info

	remaining := int(kvBytes)
	for remaining > 0 {
		var entry uint32
		if !br.ReadUInt32(&entry) {
			return nil, fmt.Errorf("reading metadata: %w", br.Err)
		}
		padded := (int(entry) + 3) &^ 3
		if padded+4 > remaining {
			return nil, fmt.Errorf("metadata entry overruns key/value block")
		}
		if !br.ReadBytes(padded) {
			return nil, fmt.Errorf("reading metadata: %w", br.Err)
		}
		kv := br.Bytes()[:entry]
		sep := bytes.IndexByte(kv, 0)
		if sep < 0 {
			return nil, fmt.Errorf("metadata entry has no key terminator")
		}
		value := kv[sep+1:]
		value = bytes.TrimSuffix(value, []byte{0})
		b.SetMetadata(string(kv[:sep]), string(value))
		remaining -= 4 + padded
	}

	for m := 0; m < b.numMipLevels; m++ {
		var imageSize uint32
		if !br.ReadUInt32(&imageSize) {
			return nil, fmt.Errorf("reading mip %d size: %w", m, br.Err)
		}
		for l := 0; l < b.arrayLength; l++ {
			for f := 0; f < b.numFaces; f++ {
				if !br.ReadBytes(int(imageSize)) {
					return nil, fmt.Errorf("reading mip %d face %d: %w", m, f, br.Err)
				}
				blob := make([]byte, imageSize)
				copy(blob, br.Bytes())
				b.SetBlob(BlobIndex{MipLevel: m, ArrayLayer: l, Face: f}, blob)
			}
		}
	}

	return b, nil
}
