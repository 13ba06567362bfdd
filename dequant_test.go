package gguf

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// float32ToFloat16Bits converts a float32 to its IEEE 754 half-precision
// representation. Used only in tests to construct known test vectors.
func float32ToFloat16Bits(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := (bits >> 16) & 0x8000
	exp := int((bits>>23)&0xFF) - 127 + 15
	mant := bits & 0x7FFFFF

	switch {
	case exp <= 0:
		return uint16(sign)
	case exp >= 31:
		return uint16(sign | 0x7C00) // Inf
	default:
		return uint16(sign | uint32(exp)<<10 | (mant >> 13))
	}
}

func TestFloat16ToFloat32(t *testing.T) {
	tests := []struct {
		name string
		bits uint16
		want float32
	}{
		{"positive zero", 0x0000, 0.0},
		{"negative zero", 0x8000, float32(math.Copysign(0, -1))},
		{"one", 0x3C00, 1.0},
		{"negative one", 0xBC00, -1.0},
		{"half", 0x3800, 0.5},
		{"two", 0x4000, 2.0},
		{"inf", 0x7C00, float32(math.Inf(1))},
		{"neg inf", 0xFC00, float32(math.Inf(-1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := float16ToFloat32(tt.bits)
			if math.IsInf(float64(tt.want), 0) {
				assert.True(t, math.IsInf(float64(got), int(math.Copysign(1, float64(tt.want)))))
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFloat16Roundtrip(t *testing.T) {
	values := []float32{0.0, 1.0, -1.0, 0.5, 2.0, 0.25, 100.0}
	for _, v := range values {
		bits := float32ToFloat16Bits(v)
		got := float16ToFloat32(bits)
		assert.InDelta(t, v, got, float64(math.Abs(float64(v))*0.001+1e-6),
			"roundtrip failed for %v (bits=0x%04X, got=%v)", v, bits, got)
	}
}

func TestBfloat16ToFloat32(t *testing.T) {
	// bf16 is just the top 16 bits of an f32, so widening back is exact.
	tests := []float32{0.0, 1.0, -1.0, 2.5, -100.0}
	for _, want := range tests {
		bits := uint16(math.Float32bits(want) >> 16)
		got := bfloat16ToFloat32(bits)
		assert.Equal(t, want, got)
	}
}

func TestDequantQ8_0(t *testing.T) {
	// Q8_0 block: 2 bytes f16 scale + 32 bytes int8 values = 34 bytes.
	// scale = 2.0, values = [0, 1, 2, ..., 31] -> [0.0, 2.0, ..., 62.0]
	src := make([]byte, 34)
	binary.LittleEndian.PutUint16(src[0:2], float32ToFloat16Bits(2.0))
	for i := range 32 {
		src[2+i] = byte(int8(i))
	}

	dst := make([]float32, 32)
	require.NoError(t, dequantQ8_0(src, 32, dst))

	for i := range 32 {
		assert.InDelta(t, float32(i)*2.0, dst[i], 0.01, "Q8_0 index %d", i)
	}
}

func TestDequantQ8_0_Negative(t *testing.T) {
	src := make([]byte, 34)
	binary.LittleEndian.PutUint16(src[0:2], float32ToFloat16Bits(1.0))
	src[2] = 0x80 // int8(-128)
	src[3] = 0xFF // int8(-1)
	src[4] = 0x00 // int8(0)
	src[5] = 0x01 // int8(1)
	src[6] = 0x7F // int8(127)

	dst := make([]float32, 32)
	require.NoError(t, dequantQ8_0(src, 32, dst))

	assert.InDelta(t, -128.0, dst[0], 0.01)
	assert.InDelta(t, -1.0, dst[1], 0.01)
	assert.InDelta(t, 0.0, dst[2], 0.01)
	assert.InDelta(t, 1.0, dst[3], 0.01)
	assert.InDelta(t, 127.0, dst[4], 0.01)
}

func TestDequantQ4_0(t *testing.T) {
	// Q4_0 block: 2 bytes f16 scale + 16 bytes nibbles = 18 bytes. scale = 0.5.
	// Byte[0] = 0x80 -> low nibble = 0, high nibble = 8; offset -8 each.
	src := make([]byte, 18)
	binary.LittleEndian.PutUint16(src[0:2], float32ToFloat16Bits(0.5))
	src[2] = 0x80

	dst := make([]float32, 32)
	require.NoError(t, dequantQ4_0(src, 32, dst))

	assert.InDelta(t, -4.0, dst[0], 0.01, "Q4_0 low nibble")
	assert.InDelta(t, 0.0, dst[16], 0.01, "Q4_0 high nibble")

	// Byte[1] = 0xFF -> low = 15, high = 15; offset 7 each.
	src[3] = 0xFF
	require.NoError(t, dequantQ4_0(src, 32, dst))
	assert.InDelta(t, 3.5, dst[1], 0.01, "Q4_0 low nibble 0xF")
	assert.InDelta(t, 3.5, dst[17], 0.01, "Q4_0 high nibble 0xF")
}

func TestDequantQ4_K(t *testing.T) {
	// Q4_K: 2 bytes d + 2 bytes dmin + 12 bytes scales + 128 bytes qs = 144 bytes.
	// d = 1.0, dmin = 0.0, sub-block 0 scale=1, min=0, all qs = 0 -> all zero.
	src := make([]byte, 144)
	binary.LittleEndian.PutUint16(src[0:2], float32ToFloat16Bits(1.0))
	binary.LittleEndian.PutUint16(src[2:4], float32ToFloat16Bits(0.0))
	for i := 0; i < 4; i++ {
		src[4+i] = 1
	}

	dst := make([]float32, 256)
	require.NoError(t, dequantQ4_K(src, 256, dst))

	for i := 0; i < 128; i++ {
		assert.InDelta(t, 0.0, dst[i], 0.01, "Q4_K zero index %d", i)
	}
}

func TestDequantQ4_K_NonZero(t *testing.T) {
	// d = 2.0, dmin = 1.0, sub-block 0 scale=3 min=2, sub-block 1 scale=5 min=1.
	// qs[0] = 0x54 -> low nibble = 4, high nibble = 5.
	src := make([]byte, 144)
	binary.LittleEndian.PutUint16(src[0:2], float32ToFloat16Bits(2.0))
	binary.LittleEndian.PutUint16(src[2:4], float32ToFloat16Bits(1.0))
	src[4+0] = 3
	src[4+4] = 2
	src[4+1] = 5
	src[4+5] = 1
	src[16] = 0x54

	dst := make([]float32, 256)
	require.NoError(t, dequantQ4_K(src, 256, dst))

	// dst[0] = d1*low - min1 = 2.0*3*4 - 1.0*2 = 22.
	assert.InDelta(t, 22.0, dst[0], 0.1, "Q4_K non-zero low nibble")
	// dst[32] = d2*high - min2 = 2.0*5*5 - 1.0*1 = 49.
	assert.InDelta(t, 49.0, dst[32], 0.1, "Q4_K non-zero high nibble")
}

func TestDequantQ6_K(t *testing.T) {
	// All zeros -> d = 0, every output is 0.
	src := make([]byte, 210)

	dst := make([]float32, 256)
	require.NoError(t, dequantQ6_K(src, 256, dst))

	for i := range 256 {
		assert.InDelta(t, 0.0, dst[i], 0.01, "Q6_K zero index %d", i)
	}
}

func TestDequantQ6_K_NonZero(t *testing.T) {
	// d = 1.0, scale[0] = 2, ql[0] low nibble = 3, qh all zero -> q1 = 3-32 = -29.
	src := make([]byte, 210)
	src[192] = 2 // sc[0]
	src[0] = 0x03
	binary.LittleEndian.PutUint16(src[208:210], float32ToFloat16Bits(1.0))

	dst := make([]float32, 256)
	require.NoError(t, dequantQ6_K(src, 256, dst))

	assert.InDelta(t, 1.0*2*-29, dst[0], 0.01, "Q6_K non-zero")
}

func TestGetDequantFunc(t *testing.T) {
	supported := []Tag{TagQ4_0, TagQ8_0, TagQ4_K, TagQ6_K}
	for _, tag := range supported {
		fn, err := getDequantFunc(tag)
		require.NoError(t, err, "getDequantFunc(%s)", tag)
		assert.NotNil(t, fn)
	}

	// Every other quantized tag, even ones the GGML format defines, must be
	// rejected: this library implements only the four kernels above.
	unsupported := []Tag{TagQ4_1, TagQ5_0, TagQ5_1, TagQ8_1, TagQ2_K, TagQ3_K, TagQ5_K, TagQ8_K, TagIQ2_XXS}
	for _, tag := range unsupported {
		_, err := getDequantFunc(tag)
		require.Error(t, err, "getDequantFunc(%s) should fail", tag)
		var unsupportedErr *ErrUnsupportedQuant
		require.ErrorAs(t, err, &unsupportedErr)
		assert.Equal(t, tag, unsupportedErr.Tag)
	}

	// Natively numeric tags never reach a dequant kernel at all.
	_, err := getDequantFunc(TagF32)
	assert.Error(t, err)
}

func TestDecodeNativeSlices(t *testing.T) {
	t.Run("f32", func(t *testing.T) {
		src := make([]byte, 8)
		binary.LittleEndian.PutUint32(src[0:4], math.Float32bits(1.5))
		binary.LittleEndian.PutUint32(src[4:8], math.Float32bits(-2.5))
		got, err := decodeF32Slice(src, 2)
		require.NoError(t, err)
		assert.Equal(t, []float32{1.5, -2.5}, got)
	})

	t.Run("i16", func(t *testing.T) {
		src := make([]byte, 4)
		binary.LittleEndian.PutUint16(src[0:2], uint16(int16(-1)))
		binary.LittleEndian.PutUint16(src[2:4], uint16(int16(42)))
		got, err := decodeI16Slice(src, 2)
		require.NoError(t, err)
		assert.Equal(t, []int16{-1, 42}, got)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := decodeF32Slice(make([]byte, 3), 1)
		var truncated *ErrTruncated
		require.ErrorAs(t, err, &truncated)
	})
}

func TestDecodeF16AndBF16Slices(t *testing.T) {
	src := make([]byte, 4)
	binary.LittleEndian.PutUint16(src[0:2], float32ToFloat16Bits(1.0))
	binary.LittleEndian.PutUint16(src[2:4], float32ToFloat16Bits(-2.0))
	got, err := decodeF16Slice(src, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got[0], 0.01)
	assert.InDelta(t, -2.0, got[1], 0.01)

	bsrc := make([]byte, 4)
	binary.LittleEndian.PutUint16(bsrc[0:2], uint16(math.Float32bits(3.0)>>16))
	got2, err := decodeBF16Slice(bsrc, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(3.0), got2[0])
}
