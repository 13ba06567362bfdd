package gguf

// TensorInfo describes one tensor's directory entry: its name, row-major
// shape, element tag, on-disk offset relative to the tensor-data section,
// and the derived byte size of its packed payload.
type TensorInfo struct {
	Name     string
	Shape    []uint64 // outermost-first (row-major); GGUF stores this reversed on disk.
	Type     Tag
	Offset   uint64 // relative to the start of the tensor-data section.
	ByteSize uint64 // derived: (numElements * bytesPerBlock) / blockSize.
}

// NumElements returns the total element count implied by Shape.
func (ti *TensorInfo) NumElements() uint64 {
	if len(ti.Shape) == 0 {
		return 0
	}
	n := uint64(1)
	for _, d := range ti.Shape {
		n *= d
	}
	return n
}

// TensorDirectory is the ordered-by-appearance collection of every tensor
// entry in a file, keyed by name.
type TensorDirectory struct {
	order []string
	byName map[string]*TensorInfo
}

func newTensorDirectory(n int) *TensorDirectory {
	return &TensorDirectory{order: make([]string, 0, n), byName: make(map[string]*TensorInfo, n)}
}

func (d *TensorDirectory) add(ti TensorInfo) {
	if _, exists := d.byName[ti.Name]; !exists {
		d.order = append(d.order, ti.Name)
	}
	info := ti
	d.byName[ti.Name] = &info
}

// Get looks up a tensor's directory entry by name.
func (d *TensorDirectory) Get(name string) (TensorInfo, bool) {
	ti, ok := d.byName[name]
	if !ok {
		return TensorInfo{}, false
	}
	return *ti, true
}

// Names returns every tensor name in directory order.
func (d *TensorDirectory) Names() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of tensors in the directory.
func (d *TensorDirectory) Len() int { return len(d.order) }

// decodeTensorInfo reads a single tensor directory entry: name, dimension
// count, that many uint64 dims stored innermost-first, a type id, and a
// data-relative offset. Dims are reversed into row-major (outermost-first)
// order per spec.md §3, and the packed byte size is derived from the
// registry.
func decodeTensorInfo(s byteSource, version uint32) (TensorInfo, error) {
	name, err := readString(s, version)
	if err != nil {
		return TensorInfo{}, err
	}

	nDims, err := readU32(s)
	if err != nil {
		return TensorInfo{}, err
	}

	dimsOnDisk := make([]uint64, nDims)
	for i := range dimsOnDisk {
		d, err := readU64(s)
		if err != nil {
			return TensorInfo{}, err
		}
		dimsOnDisk[i] = d
	}

	typeID, err := readU32(s)
	if err != nil {
		return TensorInfo{}, err
	}
	tag, err := TagFromID(typeID)
	if err != nil {
		return TensorInfo{}, err
	}

	offset, err := readU64(s)
	if err != nil {
		return TensorInfo{}, err
	}

	shape := make([]uint64, len(dimsOnDisk))
	for i, d := range dimsOnDisk {
		shape[len(dimsOnDisk)-1-i] = d
	}

	ti := TensorInfo{Name: name, Shape: shape, Type: tag, Offset: offset}
	n := ti.NumElements()
	byteSize, err := ByteSizeFor(tag, n)
	if err != nil {
		return TensorInfo{}, err
	}
	ti.ByteSize = byteSize
	return ti, nil
}
