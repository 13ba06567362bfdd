package gguf

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

// byteSource is the cursor the primitive decoder reads from: an explicit
// position that advances as fixed-width values and length-prefixed strings
// are consumed. sliceSource backs it directly with an in-memory byte slice
// (the common case: round-trip tests, eager loads); streamSource backs it
// with a buffered file handle so a lazy load never has to read tensor data
// it doesn't need just to find out where the header ends.
type byteSource interface {
	readN(n int) ([]byte, error)
	pos() int64
}

// sliceSource is a byteSource over an in-memory buffer.
type sliceSource struct {
	data   []byte
	cursor int
}

func newSliceSource(data []byte) *sliceSource {
	return &sliceSource{data: data}
}

func (s *sliceSource) readN(n int) ([]byte, error) {
	if n < 0 || s.cursor+n > len(s.data) {
		return nil, &ErrTruncated{Context: "slice", Need: s.cursor + n - len(s.data)}
	}
	b := s.data[s.cursor : s.cursor+n]
	s.cursor += n
	return b, nil
}

func (s *sliceSource) pos() int64 { return int64(s.cursor) }

// streamSource is a byteSource over a buffered io.Reader.
type streamSource struct {
	r   *bufio.Reader
	off int64
}

func newStreamSource(r io.Reader) *streamSource {
	return &streamSource{r: bufio.NewReaderSize(r, 64*1024)}
}

func (s *streamSource) readN(n int) ([]byte, error) {
	b := make([]byte, n)
	got, err := io.ReadFull(s.r, b)
	s.off += int64(got)
	if err != nil {
		return nil, &ErrTruncated{Context: "stream", Need: n - got}
	}
	return b, nil
}

func (s *streamSource) pos() int64 { return s.off }

// Primitive decoder: fixed-width and length-prefixed reads over a byteSource.

func readU8(s byteSource) (uint8, error) {
	b, err := s.readN(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func readI8(s byteSource) (int8, error) {
	v, err := readU8(s)
	return int8(v), err
}

func readBool(s byteSource) (bool, error) {
	v, err := readU8(s)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func readU16(s byteSource) (uint16, error) {
	b, err := s.readN(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func readI16(s byteSource) (int16, error) {
	v, err := readU16(s)
	return int16(v), err
}

func readU32(s byteSource) (uint32, error) {
	b, err := s.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func readI32(s byteSource) (int32, error) {
	v, err := readU32(s)
	return int32(v), err
}

func readU64(s byteSource) (uint64, error) {
	b, err := s.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func readI64(s byteSource) (int64, error) {
	v, err := readU64(s)
	return int64(v), err
}

func readF32(s byteSource) (float32, error) {
	v, err := readU32(s)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func readF64(s byteSource) (float64, error) {
	v, err := readU64(s)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// readString reads a GGUF length-prefixed byte string. The width of the
// length prefix depends on the container version: v2 uses a 32-bit
// little-endian length, v3 a 64-bit one (spec.md §3). The returned string
// is never NUL-terminated; it is exactly the bytes on disk.
func readString(s byteSource, version uint32) (string, error) {
	var length uint64
	if version == 2 {
		l, err := readU32(s)
		if err != nil {
			return "", err
		}
		length = uint64(l)
	} else {
		l, err := readU64(s)
		if err != nil {
			return "", err
		}
		length = l
	}
	if length > 1<<31 {
		return "", &ErrTruncated{Context: "string length sanity check", Need: int(length)}
	}
	b, err := s.readN(int(length))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
