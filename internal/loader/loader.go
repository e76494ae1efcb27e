// Package loader mmaps a weight file and hands out borrowed
// tensor.Buffer views into it, so loading a multi-gigabyte checkpoint
// never copies the weight bytes into the Go heap. Grounded in the
// teacher's GGUF-loading path (yent.go's model open sequence) and
// itohio-EasyRobot's go.mod, which pulls in edsrzf/mmap-go for the
// same zero-copy discipline.
package loader

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/rs/zerolog/log"

	"github.com/lattice-run/tensorkernel/tensor"
)

// TensorEntry describes one named tensor's location within a mapped
// weight file: byte offset, dtype, and logical shape.
type TensorEntry struct {
	Name   string
	Offset int64
	Length int64
	Dtype  tensor.Dtype
	Shape  []int
}

// File holds an open mmap and the directory of tensors within it.
// Close unmaps the file; every Buffer handed out by View becomes
// invalid after that.
type File struct {
	f       *os.File
	mapping mmap.MMap
	entries map[string]TensorEntry
}

// Open mmaps path read-only, indexes entries by name, and validates
// every entry's bounds and dtype/block alignment against the mapping
// before returning. Callers build the entry directory themselves (e.g.
// by parsing a header) and pass it in — this package only owns the
// mapping lifecycle and the borrowed-buffer handoff, not any
// particular container format.
//
// Validation is fanned out across dev's worker pool via
// Device.ParallelizeErr rather than a bare loop: a multi-gigabyte
// checkpoint can carry thousands of tensor entries, and any one
// out-of-bounds or misaligned entry must abort the whole open instead
// of being silently skipped by a worker that happened to find it.
func Open(path string, entries []TensorEntry, dev *tensor.Device) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("loader: mmap %s: %w", path, err)
	}
	idx := make(map[string]TensorEntry, len(entries))
	for _, e := range entries {
		idx[e.Name] = e
	}
	lf := &File{f: f, mapping: m, entries: idx}
	if err := lf.validate(dev, entries); err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}
	log.Debug().Str("path", path).Int("tensors", len(entries)).Msg("loader: mapped weight file")
	return lf, nil
}

// validate checks every entry's byte range against the mapping and its
// dtype's block alignment, in parallel, via Device.ParallelizeErr.
func (lf *File) validate(dev *tensor.Device, entries []TensorEntry) error {
	size := int64(len(lf.mapping))
	return dev.ParallelizeErr(len(entries), func(start, end int) error {
		for i := start; i < end; i++ {
			e := entries[i]
			if e.Offset < 0 || e.Length < 0 || e.Offset+e.Length > size {
				return fmt.Errorf("loader: tensor %q out of bounds (offset=%d length=%d file=%d)", e.Name, e.Offset, e.Length, size)
			}
			if _, err := tensor.FromRawBytes(lf.mapping[e.Offset:e.Offset+e.Length], e.Dtype); err != nil {
				return fmt.Errorf("loader: tensor %q: %w", e.Name, err)
			}
		}
		return nil
	})
}

// Close unmaps the file and closes the underlying descriptor.
func (lf *File) Close() error {
	if err := lf.mapping.Unmap(); err != nil {
		return err
	}
	return lf.f.Close()
}

// View returns a borrowed tensor.Buffer over the named tensor's raw
// bytes — no allocation, no copy. The returned buffer is valid only
// until Close.
func (lf *File) View(name string) (*tensor.Buffer, *TensorEntry, error) {
	e, ok := lf.entries[name]
	if !ok {
		return nil, nil, fmt.Errorf("loader: unknown tensor %q", name)
	}
	raw := lf.mapping[e.Offset : e.Offset+e.Length]
	buf, err := tensor.FromRawBytes(raw, e.Dtype)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: view %q: %w", name, err)
	}
	return buf, &e, nil
}

// ReadUint32At reads a little-endian uint32 from the mapping at
// offset, used by format-specific header parsers built on top of this
// package (directory tables, magic numbers).
func (lf *File) ReadUint32At(offset int64) uint32 {
	return binary.LittleEndian.Uint32(lf.mapping[offset : offset+4])
}
