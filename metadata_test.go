package gguf

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendKVHeader(buf []byte, version uint32, key string, typeTag valueType) []byte {
	if version == 2 {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(key)))
	} else {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(key)))
	}
	buf = append(buf, key...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(typeTag))
	return buf
}

func TestDecodeMetadataScalarTypes(t *testing.T) {
	const version = uint32(3)
	var buf []byte

	buf = appendKVHeader(buf, version, "general.architecture", valueTypeString)
	buf = binary.LittleEndian.AppendUint64(buf, 5)
	buf = append(buf, "llama"...)

	buf = appendKVHeader(buf, version, "llama.block_count", valueTypeUint32)
	buf = binary.LittleEndian.AppendUint32(buf, 32)

	buf = appendKVHeader(buf, version, "llama.rope.freq_base", valueTypeFloat32)
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(10000.0))

	buf = appendKVHeader(buf, version, "llama.use_parallel_residual", valueTypeBool)
	buf = append(buf, 1)

	buf = appendKVHeader(buf, version, "some.negative", valueTypeInt64)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(-42)))

	s := newSliceSource(buf)
	md, err := decodeMetadata(s, version, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, md.Len())

	v, ok := md.Get("general.architecture")
	require.True(t, ok)
	assert.Equal(t, "llama", v.String())

	v, ok = md.Get("llama.block_count")
	require.True(t, ok)
	assert.Equal(t, uint64(32), v.Uint())
	assert.Equal(t, int64(32), v.Int())

	v, ok = md.Get("llama.rope.freq_base")
	require.True(t, ok)
	assert.Equal(t, float64(10000.0), v.Float())

	v, ok = md.Get("llama.use_parallel_residual")
	require.True(t, ok)
	assert.True(t, v.Bool())

	v, ok = md.Get("some.negative")
	require.True(t, ok)
	assert.Equal(t, int64(-42), v.Int())

	_, ok = md.Get("does.not.exist")
	assert.False(t, ok)

	assert.Equal(t, []string{
		"general.architecture", "llama.block_count", "llama.rope.freq_base",
		"llama.use_parallel_residual", "some.negative",
	}, md.Keys())
}

func TestDecodeMetadataStringArray(t *testing.T) {
	const version = uint32(3)
	var buf []byte
	buf = appendKVHeader(buf, version, "tokenizer.ggml.tokens", valueTypeArray)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(valueTypeString))
	buf = binary.LittleEndian.AppendUint64(buf, 3)
	for _, s := range []string{"hello", "world", "!"} {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(s)))
		buf = append(buf, s...)
	}

	s := newSliceSource(buf)
	md, err := decodeMetadata(s, version, 1)
	require.NoError(t, err)

	v, ok := md.Get("tokenizer.ggml.tokens")
	require.True(t, ok)
	assert.Equal(t, []string{"hello", "world", "!"}, v.Strings())
}

func TestDecodeMetadataNestedArray(t *testing.T) {
	const version = uint32(3)
	var buf []byte
	buf = appendKVHeader(buf, version, "nested", valueTypeArray)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(valueTypeArray)) // outer elements are arrays
	buf = binary.LittleEndian.AppendUint64(buf, 2)                     // 2 inner arrays

	// Inner array 1: [1, 2] as int32.
	buf = binary.LittleEndian.AppendUint32(buf, uint32(valueTypeInt32))
	buf = binary.LittleEndian.AppendUint64(buf, 2)
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, 2)

	// Inner array 2: [3] as int32.
	buf = binary.LittleEndian.AppendUint32(buf, uint32(valueTypeInt32))
	buf = binary.LittleEndian.AppendUint64(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, 3)

	s := newSliceSource(buf)
	md, err := decodeMetadata(s, version, 1)
	require.NoError(t, err)

	v, ok := md.Get("nested")
	require.True(t, ok)
	inner, ok := v.Raw().([]Value)
	require.True(t, ok)
	require.Len(t, inner, 2)
	assert.Equal(t, []int32{1, 2}, inner[0].Raw())
	assert.Equal(t, []int32{3}, inner[1].Raw())
}

func TestDecodeMetadataUnknownType(t *testing.T) {
	const version = uint32(3)
	var buf []byte
	buf = appendKVHeader(buf, version, "bad", valueType(99))

	s := newSliceSource(buf)
	_, err := decodeMetadata(s, version, 1)
	var unknown *ErrUnknownMetadataType
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, uint32(99), unknown.ID)
}

func TestValueIsPositiveInteger(t *testing.T) {
	assert.NotPanics(t, func() {
		v := Value{data: uint32(64)}
		n, ok := v.IsPositiveInteger()
		assert.True(t, ok)
		assert.Equal(t, uint64(64), n)

		v = Value{data: int32(-1)}
		_, ok = v.IsPositiveInteger()
		assert.False(t, ok)

		v = Value{data: "not a number"}
		_, ok = v.IsPositiveInteger()
		assert.False(t, ok)
	})
}
