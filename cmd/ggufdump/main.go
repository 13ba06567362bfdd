// Command ggufdump prints a human-readable report of a GGUF file's header,
// metadata dictionary, and tensor directory without materialising any
// tensor data.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/ggufkit/ggufkit"
	"k8s.io/klog/v2"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

func main() {
	klog.InitFlags(nil)
	showTensors := flag.Bool("tensors", true, "list the tensor directory")
	showMeta := flag.Bool("metadata", true, "list metadata key/value pairs")
	byOffset := flag.Bool("by-offset", false, "sort tensors by on-disk offset instead of by name")
	flag.Parse()
	defer klog.Flush()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ggufdump [flags] <path.gguf>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	model, err := gguf.Peek(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ggufdump: %v\n", err)
		os.Exit(1)
	}

	printHeader(model)
	if *showMeta {
		printMetadata(model)
	}
	if *showTensors {
		printTensors(model, *byOffset)
	}
}

func printHeader(m *gguf.Model) {
	fmt.Println(headingStyle.Render("Header"))
	fmt.Printf("  %s %d\n", keyStyle.Render("version:"), m.Version)
	fmt.Printf("  %s %d\n", keyStyle.Render("alignment:"), m.Alignment)
	fmt.Printf("  %s %d\n", keyStyle.Render("data offset:"), m.DataOffset)
	fmt.Println()
}

func printMetadata(m *gguf.Model) {
	md := m.Metadata()
	keys := md.Keys()
	fmt.Println(headingStyle.Render(fmt.Sprintf("Metadata (%d keys)", len(keys))))
	for _, k := range keys {
		v, _ := md.Get(k)
		fmt.Printf("  %s %s\n", keyStyle.Render(k+":"), formatValue(v))
	}
	fmt.Println()
}

func formatValue(v gguf.Value) string {
	if s := v.Strings(); s != nil {
		if len(s) > 4 {
			return fmt.Sprintf("%v %s", s[:4], dimStyle.Render(fmt.Sprintf("... (%d total)", len(s))))
		}
		return fmt.Sprintf("%v", s)
	}
	switch raw := v.Raw().(type) {
	case string:
		return raw
	case bool:
		return fmt.Sprintf("%t", raw)
	default:
		return fmt.Sprintf("%v", raw)
	}
}

func printTensors(m *gguf.Model, byOffset bool) {
	var names []string
	if byOffset {
		names = m.TensorsByOffset()
	} else {
		names = m.TensorNames()
	}
	fmt.Println(headingStyle.Render(fmt.Sprintf("Tensors (%d)", len(names))))

	type row struct {
		name, tag, shape string
		offset, size     uint64
	}
	rows := make([]row, 0, len(names))
	for _, name := range names {
		info, ok := m.TensorInfo(name)
		if !ok {
			continue
		}
		rows = append(rows, row{
			name:   name,
			tag:    info.Type.String(),
			shape:  fmt.Sprint(info.Shape),
			offset: info.Offset,
			size:   info.ByteSize,
		})
	}
	if !byOffset {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].name < rows[j].name })
	}
	for _, r := range rows {
		fmt.Printf("  %-40s %-8s %-20s offset=%-10d size=%d\n",
			r.name, r.tag, r.shape, r.offset, r.size)
	}
}
