package gguf

import (
	"encoding/binary"
	"math"
)

// dequantFunc expands nElements worth of packed blocks from src into dst.
// len(src) must be at least the byte size for nElements of the kernel's tag;
// len(dst) must equal nElements.
type dequantFunc func(src []byte, nElements int, dst []float32) error

// getDequantFunc returns the dequantization kernel for tag, or
// ErrUnsupportedQuant if tag is quantized but no kernel exists for it.
// Per spec.md §4.5, every quantized tag other than Q4_0, Q8_0, Q4_K, Q6_K
// is deliberately left unimplemented.
func getDequantFunc(tag Tag) (dequantFunc, error) {
	switch tag {
	case TagQ4_0:
		return dequantQ4_0, nil
	case TagQ8_0:
		return dequantQ8_0, nil
	case TagQ4_K:
		return dequantQ4_K, nil
	case TagQ6_K:
		return dequantQ6_K, nil
	default:
		return nil, &ErrUnsupportedQuant{Tag: tag}
	}
}

// float16ToFloat32 converts an IEEE 754 binary16 word to float32, per the
// case analysis in spec.md §4.5.
func float16ToFloat32(bits uint16) float32 {
	sign := uint32(bits>>15) & 1
	exp := uint32(bits>>10) & 0x1F
	mant := uint32(bits) & 0x3FF

	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign << 31)
	case exp == 0:
		// Subnormal: sign * 2^-14 * mant/1024.
		return float32(signOf(sign)) * float32(math.Ldexp(float64(mant)/1024, -14))
	case exp == 0x1F && mant == 0:
		return math.Float32frombits((sign << 31) | (0xFF << 23))
	case exp == 0x1F:
		return math.Float32frombits((sign << 31) | (0xFF << 23) | (1 << 22)) // quiet NaN
	default:
		f := (sign << 31) | ((exp + 127 - 15) << 23) | (mant << 13)
		return math.Float32frombits(f)
	}
}

func signOf(sign uint32) float64 {
	if sign == 1 {
		return -1
	}
	return 1
}

// bfloat16ToFloat32 widens a bfloat16 word into float32 by left-shifting it
// into the high 16 bits and zero-padding the mantissa's low bits.
func bfloat16ToFloat32(bits uint16) float32 {
	return math.Float32frombits(uint32(bits) << 16)
}

func checkBlockLayout(tag Tag, src []byte, nElements int) error {
	bs := BlockSize(tag)
	if nElements%bs != 0 {
		return &ErrInvalidSize{Tag: tag, NElements: uint64(nElements)}
	}
	nBlocks := nElements / bs
	need := nBlocks * BytesPerBlock(tag)
	if len(src) < need {
		return &ErrTruncated{Context: "dequant " + tag.String(), Need: need - len(src)}
	}
	return nil
}

// dequantQ4_0 expands Q4_0 blocks (32 values, 18 bytes: f16 scale + 16
// packed-nibble bytes). Per block, byte i's low nibble becomes the i-th
// low-half value and its high nibble the i-th high-half value; all 16
// low-half values precede all 16 high-half values in the output.
func dequantQ4_0(src []byte, nElements int, dst []float32) error {
	if err := checkBlockLayout(TagQ4_0, src, nElements); err != nil {
		return err
	}
	const blockBytes = 18
	for b := 0; b*32 < nElements; b++ {
		block := src[b*blockBytes : (b+1)*blockBytes]
		d := float16ToFloat32(binary.LittleEndian.Uint16(block[0:2]))
		qs := block[2:]
		out := dst[b*32 : b*32+32]
		for j := 0; j < 16; j++ {
			x0 := int(qs[j]&0x0F) - 8
			x1 := int(qs[j]>>4) - 8
			out[j] = float32(x0) * d
			out[j+16] = float32(x1) * d
		}
	}
	return nil
}

// dequantQ8_0 expands Q8_0 blocks (32 values, 34 bytes: f16 scale + 32
// signed int8 quants). dst[i] = scale * quant[i].
func dequantQ8_0(src []byte, nElements int, dst []float32) error {
	if err := checkBlockLayout(TagQ8_0, src, nElements); err != nil {
		return err
	}
	const blockBytes = 34
	for b := 0; b*32 < nElements; b++ {
		block := src[b*blockBytes : (b+1)*blockBytes]
		d := float16ToFloat32(binary.LittleEndian.Uint16(block[0:2]))
		qs := block[2:]
		out := dst[b*32 : b*32+32]
		for j := 0; j < 32; j++ {
			out[j] = d * float32(int8(qs[j]))
		}
	}
	return nil
}

// getScaleMinK4 unpacks the 6-bit scale and 6-bit min for sub-block j
// (0..7) from Q4_K/Q5_K's 12-byte packed scales array, per spec.md §4.5.
func getScaleMinK4(j int, scales []byte) (sc, m uint8) {
	if j < 4 {
		sc = scales[j] & 0x3F
		m = scales[j+4] & 0x3F
	} else {
		sc = (scales[j+4] & 0x0F) | ((scales[j-4] >> 6) << 4)
		m = (scales[j+4] >> 4) | ((scales[j] >> 6) << 4)
	}
	return
}

// dequantQ4_K expands Q4_K super-blocks (256 values, 144 bytes: f16 d, f16
// dmin, 12 bytes of packed 6-bit scale/min pairs for 8 sub-blocks of 32, and
// 128 bytes of packed 4-bit quants). Sub-block j's value is
// d*s_j*nibble - dmin*m_j.
func dequantQ4_K(src []byte, nElements int, dst []float32) error {
	if err := checkBlockLayout(TagQ4_K, src, nElements); err != nil {
		return err
	}
	const blockBytes = 144
	for b := 0; b*256 < nElements; b++ {
		block := src[b*blockBytes : (b+1)*blockBytes]
		d := float16ToFloat32(binary.LittleEndian.Uint16(block[0:2]))
		dmin := float16ToFloat32(binary.LittleEndian.Uint16(block[2:4]))
		scales := block[4:16]
		qs := block[16:144]
		out := dst[b*256 : b*256+256]

		idx := 0
		is := 0
		for j := 0; j < 256; j += 64 {
			sc1, m1 := getScaleMinK4(is, scales)
			d1 := d * float32(sc1)
			min1 := dmin * float32(m1)
			sc2, m2 := getScaleMinK4(is+1, scales)
			d2 := d * float32(sc2)
			min2 := dmin * float32(m2)

			qoff := j / 2
			for l := 0; l < 32; l++ {
				out[idx] = d1*float32(qs[qoff+l]&0xF) - min1
				idx++
			}
			for l := 0; l < 32; l++ {
				out[idx] = d2*float32(qs[qoff+l]>>4) - min2
				idx++
			}
			is += 2
		}
	}
	return nil
}

// dequantQ6_K expands Q6_K super-blocks (256 values, 210 bytes: 128 bytes
// ql, 64 bytes qh, 16 signed int8 scales, f16 d). Values are 6-bit (4 bits
// from ql, 2 bits from qh), centered by -32 then scaled by d*scale.
func dequantQ6_K(src []byte, nElements int, dst []float32) error {
	if err := checkBlockLayout(TagQ6_K, src, nElements); err != nil {
		return err
	}
	const blockBytes = 210
	for b := 0; b*256 < nElements; b++ {
		block := src[b*blockBytes : (b+1)*blockBytes]
		ql := block[0:128]
		qh := block[128:192]
		sc := block[192:208]
		d := float16ToFloat32(binary.LittleEndian.Uint16(block[208:210]))
		out := dst[b*256 : b*256+256]

		idx := 0
		var qlOff, qhOff, scOff int
		for n := 0; n < 256; n += 128 {
			for l := 0; l < 32; l++ {
				is := l / 16
				q1 := int8((ql[qlOff+l]&0xF)|((qh[qhOff+l]>>0)&3)<<4) - 32
				q2 := int8((ql[qlOff+l+32]&0xF)|((qh[qhOff+l]>>2)&3)<<4) - 32
				q3 := int8((ql[qlOff+l]>>4)|((qh[qhOff+l]>>4)&3)<<4) - 32
				q4 := int8((ql[qlOff+l+32]>>4)|((qh[qhOff+l]>>6)&3)<<4) - 32
				out[idx+l] = d * float32(int8(sc[scOff+is])) * float32(q1)
				out[idx+l+32] = d * float32(int8(sc[scOff+is+2])) * float32(q2)
				out[idx+l+64] = d * float32(int8(sc[scOff+is+4])) * float32(q3)
				out[idx+l+96] = d * float32(int8(sc[scOff+is+6])) * float32(q4)
			}
			idx += 128
			qlOff += 64
			qhOff += 32
			scOff += 8
		}
	}
	return nil
}

// decodeF32Slice reinterprets nElements little-endian f32 words.
func decodeF32Slice(src []byte, nElements int) ([]float32, error) {
	if len(src) < nElements*4 {
		return nil, &ErrTruncated{Context: "f32 tensor", Need: nElements*4 - len(src)}
	}
	out := make([]float32, nElements)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return out, nil
}

func decodeF64Slice(src []byte, nElements int) ([]float64, error) {
	if len(src) < nElements*8 {
		return nil, &ErrTruncated{Context: "f64 tensor", Need: nElements*8 - len(src)}
	}
	out := make([]float64, nElements)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*8:]))
	}
	return out, nil
}

func decodeI8Slice(src []byte, nElements int) ([]int8, error) {
	if len(src) < nElements {
		return nil, &ErrTruncated{Context: "i8 tensor", Need: nElements - len(src)}
	}
	out := make([]int8, nElements)
	for i := range out {
		out[i] = int8(src[i])
	}
	return out, nil
}

func decodeI16Slice(src []byte, nElements int) ([]int16, error) {
	if len(src) < nElements*2 {
		return nil, &ErrTruncated{Context: "i16 tensor", Need: nElements*2 - len(src)}
	}
	out := make([]int16, nElements)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return out, nil
}

func decodeI32Slice(src []byte, nElements int) ([]int32, error) {
	if len(src) < nElements*4 {
		return nil, &ErrTruncated{Context: "i32 tensor", Need: nElements*4 - len(src)}
	}
	out := make([]int32, nElements)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return out, nil
}

func decodeI64Slice(src []byte, nElements int) ([]int64, error) {
	if len(src) < nElements*8 {
		return nil, &ErrTruncated{Context: "i64 tensor", Need: nElements*8 - len(src)}
	}
	out := make([]int64, nElements)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(src[i*8:]))
	}
	return out, nil
}

// decodeF16Slice expands nElements packed f16 words into float32, via
// float16ToFloat32.
func decodeF16Slice(src []byte, nElements int) ([]float32, error) {
	if len(src) < nElements*2 {
		return nil, &ErrTruncated{Context: "f16 tensor", Need: nElements*2 - len(src)}
	}
	out := make([]float32, nElements)
	for i := range out {
		out[i] = float16ToFloat32(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return out, nil
}

// decodeBF16Slice expands nElements packed bf16 words into float32, via
// bfloat16ToFloat32.
func decodeBF16Slice(src []byte, nElements int) ([]float32, error) {
	if len(src) < nElements*2 {
		return nil, &ErrTruncated{Context: "bf16 tensor", Need: nElements*2 - len(src)}
	}
	out := make([]float32, nElements)
	for i := range out {
		out[i] = bfloat16ToFloat32(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return out, nil
}
