package libio

import (
	"encoding/binary"
	"io"
)

// BinaryReader wraps an io.Reader with a sticky error and a byte index,
// so serialization code can chain reads and check for failure once.
type BinaryReader struct {
	Order     binary.ByteOrder
	Src       io.Reader
	Index     int
	LastIndex int
	Err       error
	buf       []byte
}

func (br *BinaryReader) ReadBytes(n int) (ok bool) {
	if br.Err != nil {
		return false
	}

	if cap(br.buf) < n {
		br.buf = make([]byte, n)
	} else {
		br.buf = br.buf[:n]
	}

	nread, err := io.ReadFull(br.Src, br.buf)
	if err != nil {
		br.Err = err
	}

	br.LastIndex = br.Index
	br.Index += nread

	return br.Err == nil
}

// Bytes returns the scratch buffer filled by the last ReadBytes call.
func (br *BinaryReader) Bytes() []byte {
	return br.buf
}

func (br *BinaryReader) Read(p []byte) (n int, err error) {
	n, err = br.Src.Read(p)
	br.LastIndex = br.Index
	br.Index += n
	return n, err
}

func (br *BinaryReader) ReadUInt8(i *int) (ok bool) {
	if !br.ReadBytes(1) {
		return false
	}
	*i = int(br.buf[0])
	return true
}

func (br *BinaryReader) ReadUInt32(i *uint32) (ok bool) {
	if !br.ReadBytes(4) {
		return false
	}
	*i = br.Order.Uint32(br.buf)
	return true
}

func (br *BinaryReader) ReadRef(data any) (ok bool) {
	if br.Err != nil {
		return false
	}
	err := binary.Read(br.Src, br.Order, data)
	br.Err = err
	br.LastIndex = br.Index
	if err == nil {
		br.Index += binary.Size(data)
	}
	return err == nil
}

// BinaryWriter is the writing counterpart of BinaryReader.
type BinaryWriter struct {
	Order binary.ByteOrder
	Dst   io.Writer
	Index int
	Err   error
}

func (bw *BinaryWriter) WriteBytes(p []byte) (ok bool) {
	if bw.Err != nil {
		return false
	}

	n, err := bw.Dst.Write(p)
	bw.Index += n
	if err != nil {
		bw.Err = err
		return false
	}
	return true
}

func (bw *BinaryWriter) Write(p []byte) (n int, err error) {
	n, err = bw.Dst.Write(p)
	bw.Index += n
	return n, err
}

func (bw *BinaryWriter) WriteUInt8(i uint8) (ok bool) {
	return bw.WriteBytes([]byte{i})
}

func (bw *BinaryWriter) WriteUInt32(i uint32) (ok bool) {
	buf := make([]byte, 4)
	bw.Order.PutUint32(buf, i)
	return bw.WriteBytes(buf)
}

func (bw *BinaryWriter) WriteRef(data any) (ok bool) {
	if bw.Err != nil {
		return false
	}
	err := binary.Write(bw.Dst, bw.Order, data)
	bw.Err = err
	if err == nil {
		bw.Index += binary.Size(data)
	}
	return err == nil
}
