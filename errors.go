package gguf

import "fmt"

// ErrFileNotFound is returned when Load/Peek/FetchTensor is given a path
// that does not exist.
type ErrFileNotFound struct {
	Path string
}

func (e *ErrFileNotFound) Error() string {
	return fmt.Sprintf("gguf: file not found: %s", e.Path)
}

// ErrInvalidMagic is returned when the first four bytes of a file are not "GGUF".
type ErrInvalidMagic struct {
	Got [4]byte
}

func (e *ErrInvalidMagic) Error() string {
	return fmt.Sprintf("gguf: invalid magic %q, expected \"GGUF\"", e.Got[:])
}

// ErrUnsupportedVersion is returned when the magic matched but the version is not 2 or 3.
type ErrUnsupportedVersion struct {
	Version uint32
}

func (e *ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("gguf: unsupported version %d (supported: 2, 3)", e.Version)
}

// ErrUnknownMetadataType is returned when a metadata value type tag falls outside 0..12.
type ErrUnknownMetadataType struct {
	ID uint32
}

func (e *ErrUnknownMetadataType) Error() string {
	return fmt.Sprintf("gguf: unknown metadata value type %d", e.ID)
}

// ErrUnknownTensorType is returned when a tensor's GGML type id is not in the registry.
type ErrUnknownTensorType struct {
	ID uint32
}

func (e *ErrUnknownTensorType) Error() string {
	return fmt.Sprintf("gguf: unknown tensor type id %d", e.ID)
}

// ErrUnsupportedQuant is returned when the registry recognises a tag but no
// dequantization kernel exists for it.
type ErrUnsupportedQuant struct {
	Tag Tag
}

func (e *ErrUnsupportedQuant) Error() string {
	return fmt.Sprintf("gguf: unsupported quantization type %s", e.Tag)
}

// ErrInvalidSize is returned when an element count is not a multiple of the
// tag's block size.
type ErrInvalidSize struct {
	Tag       Tag
	NElements uint64
}

func (e *ErrInvalidSize) Error() string {
	return fmt.Sprintf("gguf: %d elements is not a multiple of block size %d for %s",
		e.NElements, BlockSize(e.Tag), e.Tag)
}

// ErrTensorNotFound is returned by FetchTensor when the name is absent from
// the tensor directory.
type ErrTensorNotFound struct {
	Name string
}

func (e *ErrTensorNotFound) Error() string {
	return fmt.Sprintf("gguf: tensor %q not found", e.Name)
}

// ErrTruncated is returned when a file, region, or string is shorter than required.
type ErrTruncated struct {
	Context string
	Need    int
}

func (e *ErrTruncated) Error() string {
	return fmt.Sprintf("gguf: truncated while reading %s: need %d more bytes", e.Context, e.Need)
}
