package gguf

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	ggufMagic        = "GGUF"
	defaultAlignment = 32
	alignmentKey     = "general.alignment"
)

// LoadOptions configures Load. The zero value loads eagerly, accepts every
// tensor (TensorFilter nil), and dequantizes quantized tensors to float32
// (Dequantize nil) — matching spec's documented defaults exactly.
type LoadOptions struct {
	// Lazy, when true, parses structure only: no tensor bytes are read
	// during Load, and FetchTensor performs a positioned read on demand.
	Lazy bool
	// TensorFilter, when non-nil, is consulted for every tensor name during
	// an eager load; tensors for which it returns false are still recorded
	// in the directory but their data is not read. Ignored when Lazy.
	TensorFilter func(name string) bool
	// Dequantize controls whether quantized tensors are expanded to
	// float32 (true, the default) or returned as opaque raw-byte buffers
	// (false). Natively numeric tensors (F32, F16, BF16, F64, I8/16/32/64)
	// are unaffected either way. A nil pointer means "use the default" —
	// use DequantizeOpt to set it from a plain bool, since LoadOptions{}'s
	// zero value must still mean "dequantize" per the documented default.
	Dequantize *bool
}

// DequantizeOpt returns a *bool suitable for LoadOptions.Dequantize.
func DequantizeOpt(v bool) *bool { return &v }

// DefaultLoadOptions returns the options Load uses when none are given
// explicitly: eager, accept-all, dequantize.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{Lazy: false, TensorFilter: nil, Dequantize: DequantizeOpt(true)}
}

func (o LoadOptions) dequantize() bool {
	if o.Dequantize == nil {
		return true
	}
	return *o.Dequantize
}

// Model is a parsed GGUF file: its version, metadata dictionary, tensor
// directory, and — depending on LoadOptions — either every tensor already
// materialised or enough bookkeeping to fetch them on demand.
type Model struct {
	Version    uint32
	Alignment  uint64
	DataOffset int64

	metadata  *Metadata
	directory *TensorDirectory
	tensors   map[string]*Tensor // nil in lazy mode

	path       string // set only in lazy mode, for FetchTensor's positioned reads
	dequantize bool
}

// Metadata returns the file's metadata dictionary.
func (m *Model) Metadata() *Metadata { return m.metadata }

// TensorNames returns every tensor name in the directory, in the order
// they appeared on disk.
func (m *Model) TensorNames() []string { return m.directory.Names() }

// TensorInfo looks up a tensor's directory entry without materialising it.
func (m *Model) TensorInfo(name string) (TensorInfo, bool) { return m.directory.Get(name) }

// Load opens and parses a GGUF file at path according to opts. In eager
// mode (the default) every tensor passing opts.TensorFilter is decoded
// immediately and the file handle is released before Load returns; in lazy
// mode only the header, metadata, and tensor directory are read.
func Load(path string, opts LoadOptions) (*Model, error) {
	if opts.TensorFilter == nil {
		opts.TensorFilter = func(string) bool { return true }
	}

	if opts.Lazy {
		return loadLazy(path, opts)
	}
	return loadEager(path, opts)
}

// Peek parses only the structure of a GGUF file (header, metadata, tensor
// directory) without reading any tensor bytes. Equivalent to
// Load(path, LoadOptions{Lazy: true}).
func Peek(path string) (*Model, error) {
	return Load(path, LoadOptions{Lazy: true, TensorFilter: func(string) bool { return false }})
}

func openForRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ErrFileNotFound{Path: path}
		}
		return nil, errors.Wrapf(err, "gguf: open %s", path)
	}
	return f, nil
}

// parsePrefix decodes the header, metadata dictionary, and tensor
// directory from s, and computes the effective alignment and absolute
// tensor-data base offset. It does not touch tensor payload bytes.
func parsePrefix(s byteSource) (version uint32, metadata *Metadata, directory *TensorDirectory, alignment uint64, dataOffset int64, err error) {
	magic, err := s.readN(4)
	if err != nil {
		return 0, nil, nil, 0, 0, err
	}
	if !bytes.Equal(magic, []byte(ggufMagic)) {
		var got [4]byte
		copy(got[:], magic)
		return 0, nil, nil, 0, 0, &ErrInvalidMagic{Got: got}
	}

	version, err = readU32(s)
	if err != nil {
		return 0, nil, nil, 0, 0, err
	}
	if version != 2 && version != 3 {
		return 0, nil, nil, 0, 0, &ErrUnsupportedVersion{Version: version}
	}

	tensorCount, err := readU64(s)
	if err != nil {
		return 0, nil, nil, 0, 0, err
	}
	kvCount, err := readU64(s)
	if err != nil {
		return 0, nil, nil, 0, 0, err
	}

	metadata, err = decodeMetadata(s, version, kvCount)
	if err != nil {
		return 0, nil, nil, 0, 0, err
	}

	directory = newTensorDirectory(int(tensorCount))
	for i := uint64(0); i < tensorCount; i++ {
		ti, err := decodeTensorInfo(s, version)
		if err != nil {
			return 0, nil, nil, 0, 0, err
		}
		directory.add(ti)
	}

	alignment = uint64(defaultAlignment)
	if kv, ok := metadata.Get(alignmentKey); ok {
		if a, ok := kv.IsPositiveInteger(); ok {
			alignment = a
		} else {
			klog.Warningf("gguf: %s present but not a positive integer, falling back to default alignment %d", alignmentKey, defaultAlignment)
		}
	}

	prefixEnd := s.pos()
	dataOffset = alignUp(prefixEnd, alignment)

	klog.V(2).Infof("gguf: parsed header version=%d tensors=%d kv=%d alignment=%d dataOffset=%d",
		version, tensorCount, kvCount, alignment, dataOffset)
	return version, metadata, directory, alignment, dataOffset, nil
}

func alignUp(offset int64, alignment uint64) int64 {
	off := uint64(offset)
	rem := off % alignment
	if rem == 0 {
		return int64(off)
	}
	return int64(off + (alignment - rem))
}

func loadLazy(path string, opts LoadOptions) (*Model, error) {
	f, err := openForRead(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ss := newStreamSource(f)
	version, metadata, directory, alignment, dataOffset, err := parsePrefix(ss)
	if err != nil {
		return nil, err
	}

	return &Model{
		Version:    version,
		Alignment:  alignment,
		DataOffset: dataOffset,
		metadata:   metadata,
		directory:  directory,
		tensors:    nil,
		path:       path,
		dequantize: opts.dequantize(),
	}, nil
}

func loadEager(path string, opts LoadOptions) (*Model, error) {
	f, err := openForRead(path)
	if err != nil {
		return nil, err
	}
	buf, err := io.ReadAll(f)
	closeErr := f.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "gguf: read %s", path)
	}
	if closeErr != nil {
		return nil, errors.Wrapf(closeErr, "gguf: close %s", path)
	}

	sl := newSliceSource(buf)
	version, metadata, directory, alignment, dataOffset, err := parsePrefix(sl)
	if err != nil {
		return nil, err
	}

	tensors := make(map[string]*Tensor, directory.Len())
	for _, name := range directory.Names() {
		if !opts.TensorFilter(name) {
			klog.V(3).Infof("gguf: tensor %q rejected by filter", name)
			continue
		}
		info, _ := directory.Get(name)
		start := dataOffset + int64(info.Offset)
		end := start + int64(info.ByteSize)
		if start < 0 || end > int64(len(buf)) {
			return nil, &ErrTruncated{Context: "tensor " + name, Need: int(end - int64(len(buf)))}
		}
		raw := buf[start:end]

		shape := make([]int, len(info.Shape))
		for i, d := range info.Shape {
			shape[i] = int(d)
		}
		elemType, data, err := decodeTensorData(info.Type, raw, int(info.NumElements()), opts.dequantize())
		if err != nil {
			return nil, errors.Wrapf(err, "gguf: decode tensor %q", name)
		}
		tensors[name] = &Tensor{Shape: shape, Type: elemType, data: data}
	}

	return &Model{
		Version:    version,
		Alignment:  alignment,
		DataOffset: dataOffset,
		metadata:   metadata,
		directory:  directory,
		tensors:    tensors,
		dequantize: opts.dequantize(),
	}, nil
}

// FetchTensor materialises a single tensor by name. For eager models this
// returns the already-decoded tensor (or ErrTensorNotFound if it was
// rejected by the load-time filter or doesn't exist). For lazy models this
// performs one positioned read — open, pread, close — scoped to the call,
// and does not mutate or cache anything on Model: concurrent FetchTensor
// calls against the same lazy Model are safe.
func (m *Model) FetchTensor(name string) (*Tensor, error) {
	if m.tensors != nil {
		t, ok := m.tensors[name]
		if !ok {
			return nil, &ErrTensorNotFound{Name: name}
		}
		return t, nil
	}

	info, ok := m.directory.Get(name)
	if !ok {
		return nil, &ErrTensorNotFound{Name: name}
	}

	f, err := openForRead(m.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw := make([]byte, info.ByteSize)
	offset := m.DataOffset + int64(info.Offset)
	n, err := f.ReadAt(raw, offset)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "gguf: read tensor %q", name)
	}
	if n < len(raw) {
		return nil, &ErrTruncated{Context: "tensor " + name, Need: len(raw) - n}
	}

	shape := make([]int, len(info.Shape))
	for i, d := range info.Shape {
		shape[i] = int(d)
	}
	elemType, data, err := decodeTensorData(info.Type, raw, int(info.NumElements()), m.dequantize)
	if err != nil {
		return nil, errors.Wrapf(err, "gguf: decode tensor %q", name)
	}
	return &Tensor{Shape: shape, Type: elemType, data: data}, nil
}

// decodeTensorData expands raw tensor bytes into a typed element buffer.
// Natively numeric tags are always decoded to their matching Go type
// regardless of dequantize; quantized tags are expanded to float32 when
// dequantize is true, or passed through as opaque raw bytes when false.
func decodeTensorData(tag Tag, raw []byte, nElements int, dequantize bool) (ElementType, any, error) {
	if _, ok := MaybeNativeNumericType(tag); ok {
		switch tag {
		case TagF32:
			v, err := decodeF32Slice(raw, nElements)
			return ElemFloat32, v, err
		case TagF16:
			v, err := decodeF16Slice(raw, nElements)
			return ElemFloat32, v, err
		case TagBF16:
			v, err := decodeBF16Slice(raw, nElements)
			return ElemFloat32, v, err
		case TagF64:
			v, err := decodeF64Slice(raw, nElements)
			return ElemFloat64, v, err
		case TagI8:
			v, err := decodeI8Slice(raw, nElements)
			return ElemInt8, v, err
		case TagI16:
			v, err := decodeI16Slice(raw, nElements)
			return ElemInt16, v, err
		case TagI32:
			v, err := decodeI32Slice(raw, nElements)
			return ElemInt32, v, err
		case TagI64:
			v, err := decodeI64Slice(raw, nElements)
			return ElemInt64, v, err
		}
	}

	if !dequantize {
		return ElemRawBytes, raw, nil
	}

	fn, err := getDequantFunc(tag)
	if err != nil {
		return 0, nil, err
	}
	dst := make([]float32, nElements)
	if err := fn(raw, nElements, dst); err != nil {
		return 0, nil, err
	}
	return ElemFloat32, dst, nil
}
