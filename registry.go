// Package gguf parses the GGUF binary container used by llama.cpp-family
// runtimes to ship quantized large-language-model weights. It decodes the
// header and metadata dictionary, the tensor directory, and — on demand —
// dequantizes packed tensor blocks into plain float32 (or native numeric)
// element buffers. Packaging those buffers as a first-class tensor value is
// left to the host numeric layer; see the gomlxtensor subpackage for one
// such adapter.
package gguf

import "fmt"

// Tag identifies a GGML element format: a native numeric type (F32, I16, ...)
// or a quantized block format (Q4_0, Q6_K, ...).
type Tag uint32

const (
	TagF32 Tag = 0
	TagF16 Tag = 1
	TagQ4_0 Tag = 2
	TagQ4_1 Tag = 3
	// 4, 5 were removed from the format and never assigned.
	TagQ5_0 Tag = 6
	TagQ5_1 Tag = 7
	TagQ8_0 Tag = 8
	TagQ8_1 Tag = 9
	TagQ2_K Tag = 10
	TagQ3_K Tag = 11
	TagQ4_K Tag = 12
	TagQ5_K Tag = 13
	TagQ6_K Tag = 14
	TagQ8_K Tag = 15
	TagIQ2_XXS Tag = 16
	TagIQ2_XS  Tag = 17
	TagIQ3_XXS Tag = 18
	TagIQ1_S   Tag = 19
	TagIQ4_NL  Tag = 20
	TagIQ3_S   Tag = 21
	TagIQ2_S   Tag = 22
	TagIQ4_XS  Tag = 23
	TagI8  Tag = 24
	TagI16 Tag = 25
	TagI32 Tag = 26
	TagI64 Tag = 27
	TagF64 Tag = 28
	TagIQ1_M Tag = 29
	TagBF16  Tag = 30
)

// registryEntry holds the static (block_size, bytes_per_block) pair for a tag.
type registryEntry struct {
	name         string
	blockSize    int
	bytesPerBlock int
}

var registry = map[Tag]registryEntry{
	TagF32:     {"F32", 1, 4},
	TagF16:     {"F16", 1, 2},
	TagQ4_0:    {"Q4_0", 32, 18},
	TagQ4_1:    {"Q4_1", 32, 20},
	TagQ5_0:    {"Q5_0", 32, 22},
	TagQ5_1:    {"Q5_1", 32, 24},
	TagQ8_0:    {"Q8_0", 32, 34},
	TagQ8_1:    {"Q8_1", 32, 36},
	TagQ2_K:    {"Q2_K", 256, 84},
	TagQ3_K:    {"Q3_K", 256, 110},
	TagQ4_K:    {"Q4_K", 256, 144},
	TagQ5_K:    {"Q5_K", 256, 176},
	TagQ6_K:    {"Q6_K", 256, 210},
	TagQ8_K:    {"Q8_K", 256, 292},
	// IQ* bytes-per-block figures below are approximate (spec.md
	// table 4.1 lists them as "per reference"); none of these tags ever
	// reaches a dequantization kernel — byte_size_for exists only so the
	// tensor-info decoder can still validate byte ranges for them.
	TagIQ2_XXS: {"IQ2_XXS", 256, 66},
	TagIQ2_XS:  {"IQ2_XS", 256, 74},
	TagIQ3_XXS: {"IQ3_XXS", 256, 98},
	TagIQ1_S:   {"IQ1_S", 256, 50},
	TagIQ4_NL:  {"IQ4_NL", 32, 18},
	TagIQ3_S:   {"IQ3_S", 256, 110},
	TagIQ2_S:   {"IQ2_S", 256, 82},
	TagIQ4_XS:  {"IQ4_XS", 256, 136},
	TagI8:      {"I8", 1, 1},
	TagI16:     {"I16", 1, 2},
	TagI32:     {"I32", 1, 4},
	TagI64:     {"I64", 1, 8},
	TagF64:     {"F64", 1, 8},
	TagIQ1_M:   {"IQ1_M", 256, 56},
	TagBF16:    {"BF16", 1, 2},
}

// String returns the symbolic name of the tag, or "unknown(id)" if unrecognised.
func (t Tag) String() string {
	if e, ok := registry[t]; ok {
		return e.name
	}
	return fmt.Sprintf("unknown(%d)", uint32(t))
}

// TagFromID maps a GGML type id read from the wire to a symbolic Tag.
// Returns ErrUnknownTensorType if the id is not in the registry.
func TagFromID(id uint32) (Tag, error) {
	t := Tag(id)
	if _, ok := registry[t]; !ok {
		return 0, &ErrUnknownTensorType{ID: id}
	}
	return t, nil
}

// BlockSize returns the number of elements per quantization block for tag.
// Native (unquantized) types have a block size of 1.
func BlockSize(t Tag) int {
	return registry[t].blockSize
}

// BytesPerBlock returns the number of packed bytes per quantization block for tag.
func BytesPerBlock(t Tag) int {
	return registry[t].bytesPerBlock
}

// ByteSizeFor computes the exact on-disk byte size of nElements values of
// tag. Returns ErrInvalidSize if nElements is not a multiple of the tag's
// block size.
func ByteSizeFor(t Tag, nElements uint64) (uint64, error) {
	bs := uint64(BlockSize(t))
	bpb := uint64(BytesPerBlock(t))
	if bs == 0 || bpb == 0 {
		return 0, &ErrUnsupportedQuant{Tag: t}
	}
	if nElements%bs != 0 {
		return 0, &ErrInvalidSize{Tag: t, NElements: nElements}
	}
	return (nElements / bs) * bpb, nil
}

// ElementType identifies the Go-native representation of a decoded tensor
// element buffer.
type ElementType int

const (
	ElemFloat32 ElementType = iota
	ElemFloat64
	ElemInt8
	ElemInt16
	ElemInt32
	ElemInt64
	ElemRawBytes // opaque, undecoded quantized bytes (Dequantize: false)
)

// MaybeNativeNumericType reports the Go-native element type for
// unquantized tags (F32, F16, BF16, F64, I8, I16, I32, I64). F16 and BF16
// report ElemFloat32 since Go has no native 16-bit float type — see
// SPEC_FULL.md's Open Questions for the rationale. The second return value
// is false for quantized tags, which must go through a dequantization
// kernel instead.
func MaybeNativeNumericType(t Tag) (ElementType, bool) {
	switch t {
	case TagF32:
		return ElemFloat32, true
	case TagF16, TagBF16:
		return ElemFloat32, true
	case TagF64:
		return ElemFloat64, true
	case TagI8:
		return ElemInt8, true
	case TagI16:
		return ElemInt16, true
	case TagI32:
		return ElemInt32, true
	case TagI64:
		return ElemInt64, true
	default:
		return 0, false
	}
}
