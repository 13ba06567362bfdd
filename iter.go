package gguf

import "sort"

// TensorsByOffset returns every tensor name in the directory ordered by its
// on-disk offset rather than by directory-insertion order. Useful for a
// caller that wants to FetchTensor sequentially against a lazy Model,
// where reading tensors in storage order keeps positioned reads
// monotonic instead of seeking back and forth across the file.
func (m *Model) TensorsByOffset() []string {
	names := m.directory.Names()
	sort.Slice(names, func(i, j int) bool {
		a, _ := m.directory.Get(names[i])
		b, _ := m.directory.Get(names[j])
		return a.Offset < b.Offset
	})
	return names
}
