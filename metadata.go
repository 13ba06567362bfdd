package gguf

// valueType is the on-disk type tag of a GGUF metadata value.
type valueType uint32

const (
	valueTypeUint8   valueType = 0
	valueTypeInt8    valueType = 1
	valueTypeUint16  valueType = 2
	valueTypeInt16   valueType = 3
	valueTypeUint32  valueType = 4
	valueTypeInt32   valueType = 5
	valueTypeFloat32 valueType = 6
	valueTypeBool    valueType = 7
	valueTypeString  valueType = 8
	valueTypeArray   valueType = 9
	valueTypeUint64  valueType = 10
	valueTypeInt64   valueType = 11
	valueTypeFloat64 valueType = 12
)

// Value wraps a single GGUF metadata value. The on-disk type tag dictates
// how data is interpreted; typed accessors return the zero value when the
// underlying type doesn't match rather than erroring, mirroring how loosely
// typed metadata dictionaries are used in practice (lookups for keys that
// may or may not be present, of a type the caller already expects).
type Value struct {
	data any
}

// Raw returns the underlying decoded value without type conversion. It is
// one of: uint8/int8/uint16/int16/uint32/int32/uint64/int64/float32/
// float64/bool/string, a slice of one of those (for arrays), or []Value
// (for an array of arrays).
func (v Value) Raw() any { return v.data }

// String returns the value as a string, or "" if it is not a string.
func (v Value) String() string {
	s, _ := v.data.(string)
	return s
}

// Strings returns the value as a string slice, or nil if it is not one.
func (v Value) Strings() []string {
	s, _ := v.data.([]string)
	return s
}

// Bool returns the value as a bool, or false if it is not a bool.
func (v Value) Bool() bool {
	b, _ := v.data.(bool)
	return b
}

// Int returns the value as an int64. Works for any signed or unsigned
// integer type; returns 0 if the value is not an integer.
func (v Value) Int() int64 {
	switch n := v.data.(type) {
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	default:
		return 0
	}
}

// Uint returns the value as a uint64. Works for any unsigned or signed
// integer type; returns 0 if the value is not an integer.
func (v Value) Uint() uint64 {
	switch n := v.data.(type) {
	case uint8:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint32:
		return uint64(n)
	case uint64:
		return n
	case int8:
		return uint64(n)
	case int16:
		return uint64(n)
	case int32:
		return uint64(n)
	case int64:
		return uint64(n)
	default:
		return 0
	}
}

// Float returns the value as a float64. Works for float32 and float64;
// returns 0 if the value is not a float.
func (v Value) Float() float64 {
	switch n := v.data.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

// IsPositiveInteger reports whether the value holds an integer type with a
// value greater than zero. Used for the general.alignment override, whose
// spec-mandated fallback behavior (§9) only engages for non-positive or
// non-integer values.
func (v Value) IsPositiveInteger() (uint64, bool) {
	switch v.data.(type) {
	case uint8, uint16, uint32, uint64, int8, int16, int32, int64:
	default:
		return 0, false
	}
	i := v.Int()
	if i <= 0 {
		return 0, false
	}
	return uint64(i), true
}

// KeyValue is a single metadata key/value pair as read off the wire.
type KeyValue struct {
	Key string
	Value
}

// Metadata is the ordered mapping from string key to Value described in
// spec.md §3. Duplicate keys are last-wins for lookups, but iteration order
// follows first-seen insertion order (deterministic, matching the wire
// order of the file).
type Metadata struct {
	order []string
	byKey map[string]Value
}

func newMetadata(n int) *Metadata {
	return &Metadata{order: make([]string, 0, n), byKey: make(map[string]Value, n)}
}

func (m *Metadata) set(key string, v Value) {
	if _, exists := m.byKey[key]; !exists {
		m.order = append(m.order, key)
	}
	m.byKey[key] = v
}

// Get looks up a metadata value by key.
func (m *Metadata) Get(key string) (Value, bool) {
	v, ok := m.byKey[key]
	return v, ok
}

// Keys returns all metadata keys in first-seen insertion order.
func (m *Metadata) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of distinct keys.
func (m *Metadata) Len() int { return len(m.order) }

// decodeMetadata reads count key/value pairs sequentially from s.
func decodeMetadata(s byteSource, version uint32, count uint64) (*Metadata, error) {
	md := newMetadata(int(count))
	for i := uint64(0); i < count; i++ {
		key, err := readString(s, version)
		if err != nil {
			return nil, err
		}
		typeTag, err := readU32(s)
		if err != nil {
			return nil, err
		}
		val, err := decodeValue(s, version, valueType(typeTag))
		if err != nil {
			return nil, err
		}
		md.set(key, val)
	}
	return md, nil
}

// decodeValue reads a single typed value, dispatching on the 13 known type
// tags. Type 9 (array) recurses: it reads its own element-type prefix and
// count, then decodes that many elements using this same dispatch — so an
// array of arrays carries a nested element-type prefix per spec.md §3/§9.
func decodeValue(s byteSource, version uint32, vt valueType) (Value, error) {
	switch vt {
	case valueTypeUint8:
		v, err := readU8(s)
		return Value{v}, err
	case valueTypeInt8:
		v, err := readI8(s)
		return Value{v}, err
	case valueTypeUint16:
		v, err := readU16(s)
		return Value{v}, err
	case valueTypeInt16:
		v, err := readI16(s)
		return Value{v}, err
	case valueTypeUint32:
		v, err := readU32(s)
		return Value{v}, err
	case valueTypeInt32:
		v, err := readI32(s)
		return Value{v}, err
	case valueTypeFloat32:
		v, err := readF32(s)
		return Value{v}, err
	case valueTypeBool:
		v, err := readBool(s)
		return Value{v}, err
	case valueTypeString:
		v, err := readString(s, version)
		return Value{v}, err
	case valueTypeUint64:
		v, err := readU64(s)
		return Value{v}, err
	case valueTypeInt64:
		v, err := readI64(s)
		return Value{v}, err
	case valueTypeFloat64:
		v, err := readF64(s)
		return Value{v}, err
	case valueTypeArray:
		return decodeArray(s, version)
	default:
		return Value{}, &ErrUnknownMetadataType{ID: uint32(vt)}
	}
}

// decodeArray reads a GGUF typed array: uint32 element type, uint64 length,
// then that many elements of the element type.
func decodeArray(s byteSource, version uint32) (Value, error) {
	elemTypeRaw, err := readU32(s)
	if err != nil {
		return Value{}, err
	}
	elemType := valueType(elemTypeRaw)
	length, err := readU64(s)
	if err != nil {
		return Value{}, err
	}

	switch elemType {
	case valueTypeUint8:
		return decodeNumericArray(s, length, readU8)
	case valueTypeInt8:
		return decodeNumericArray(s, length, readI8)
	case valueTypeUint16:
		return decodeNumericArray(s, length, readU16)
	case valueTypeInt16:
		return decodeNumericArray(s, length, readI16)
	case valueTypeUint32:
		return decodeNumericArray(s, length, readU32)
	case valueTypeInt32:
		return decodeNumericArray(s, length, readI32)
	case valueTypeFloat32:
		return decodeNumericArray(s, length, readF32)
	case valueTypeUint64:
		return decodeNumericArray(s, length, readU64)
	case valueTypeInt64:
		return decodeNumericArray(s, length, readI64)
	case valueTypeFloat64:
		return decodeNumericArray(s, length, readF64)
	case valueTypeBool:
		vals := make([]bool, length)
		for i := range vals {
			v, err := readBool(s)
			if err != nil {
				return Value{}, err
			}
			vals[i] = v
		}
		return Value{vals}, nil
	case valueTypeString:
		vals := make([]string, length)
		for i := range vals {
			v, err := readString(s, version)
			if err != nil {
				return Value{}, err
			}
			vals[i] = v
		}
		return Value{vals}, nil
	case valueTypeArray:
		// Array of arrays: each element carries its own recursive
		// element-type + length prefix. Represented as []Value.
		vals := make([]Value, length)
		for i := range vals {
			v, err := decodeArray(s, version)
			if err != nil {
				return Value{}, err
			}
			vals[i] = v
		}
		return Value{vals}, nil
	default:
		return Value{}, &ErrUnknownMetadataType{ID: elemTypeRaw}
	}
}

// decodeNumericArray reads length elements of a fixed-width numeric type
// using the generic reader fn, returning them as a typed Go slice.
func decodeNumericArray[T any](s byteSource, length uint64, fn func(byteSource) (T, error)) (Value, error) {
	vals := make([]T, length)
	for i := range vals {
		v, err := fn(s)
		if err != nil {
			return Value{}, err
		}
		vals[i] = v
	}
	return Value{vals}, nil
}
