// Package gomlxtensor adapts decoded gguf.Tensor values into GoMLX
// tensors.Tensor values. It exists entirely outside the core gguf package:
// per the library's design, packaging a (shape, typed buffer) pair into a
// first-class numeric tensor is the host runtime's job, not the parser's.
// This is one such host — the GoMLX engine the original teacher repo ships
// GGUF support for.
package gomlxtensor

import (
	"fmt"

	"github.com/ggufkit/ggufkit"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Convert materialises t as a GoMLX tensor. Raw (undequantized) byte
// buffers — produced when LoadOptions.Dequantize was false for a
// quantized tensor — have no GoMLX dtype and return an error.
func Convert(t *gguf.Tensor) (*tensors.Tensor, error) {
	switch t.Type {
	case gguf.ElemFloat32:
		v, _ := t.Float32()
		return tensors.FromFlatDataAndDimensions(v, t.Shape...), nil
	case gguf.ElemFloat64:
		v, _ := t.Float64()
		return tensors.FromFlatDataAndDimensions(v, t.Shape...), nil
	case gguf.ElemInt8:
		v, _ := t.Int8()
		return tensors.FromFlatDataAndDimensions(v, t.Shape...), nil
	case gguf.ElemInt16:
		v, _ := t.Int16()
		return tensors.FromFlatDataAndDimensions(v, t.Shape...), nil
	case gguf.ElemInt32:
		v, _ := t.Int32()
		return tensors.FromFlatDataAndDimensions(v, t.Shape...), nil
	case gguf.ElemInt64:
		v, _ := t.Int64()
		return tensors.FromFlatDataAndDimensions(v, t.Shape...), nil
	default:
		return nil, fmt.Errorf("gomlxtensor: element type %v has no GoMLX dtype (raw undequantized buffer?)", t.Type)
	}
}
