package gguf

// Tensor is a fully materialised tensor: a row-major shape plus a typed
// element buffer. Quantized source data has already been expanded to
// float32 by a dequantization kernel; native numeric types keep their own
// width. Packaging this into a richer tensor value (with math operations,
// device placement, etc.) is left to the host numeric layer — see the
// gomlxtensor subpackage for a GoMLX adapter.
type Tensor struct {
	Shape []int
	Type  ElementType
	data  any
}

// Float32 returns the element buffer as []float32 and true if Type is
// ElemFloat32.
func (t *Tensor) Float32() ([]float32, bool) {
	v, ok := t.data.([]float32)
	return v, ok
}

// Float64 returns the element buffer as []float64 and true if Type is
// ElemFloat64.
func (t *Tensor) Float64() ([]float64, bool) {
	v, ok := t.data.([]float64)
	return v, ok
}

// Int8 returns the element buffer as []int8 and true if Type is ElemInt8.
func (t *Tensor) Int8() ([]int8, bool) {
	v, ok := t.data.([]int8)
	return v, ok
}

// Int16 returns the element buffer as []int16 and true if Type is ElemInt16.
func (t *Tensor) Int16() ([]int16, bool) {
	v, ok := t.data.([]int16)
	return v, ok
}

// Int32 returns the element buffer as []int32 and true if Type is ElemInt32.
func (t *Tensor) Int32() ([]int32, bool) {
	v, ok := t.data.([]int32)
	return v, ok
}

// Int64 returns the element buffer as []int64 and true if Type is ElemInt64.
func (t *Tensor) Int64() ([]int64, bool) {
	v, ok := t.data.([]int64)
	return v, ok
}

// Bytes returns the raw undecoded element buffer and true if Type is
// ElemRawBytes (produced when LoadOptions.Dequantize is false for a
// quantized tensor).
func (t *Tensor) Bytes() ([]byte, bool) {
	v, ok := t.data.([]byte)
	return v, ok
}

// NumElements returns the total element count implied by Shape.
func (t *Tensor) NumElements() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}
