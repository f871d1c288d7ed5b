package catalog

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zstd"
)

// recordReader walks a decompressed snapshot body.
type recordReader struct {
	data   []byte
	offset int
	err    error
}

func newRecordReader(data []byte) *recordReader {
	return &recordReader{data: data}
}

func (r *recordReader) uint32() uint32 {
	if r.err != nil {
		return 0
	}
	if r.offset+4 > len(r.data) {
		r.err = fmt.Errorf("%w: truncated at offset %d", ErrBadSnapshot, r.offset)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v
}

// remaining returns the unread byte count.
func (r *recordReader) remaining() int {
	return len(r.data) - r.offset
}

func (r *recordReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.offset+n > len(r.data) {
		r.err = fmt.Errorf("%w: record of %d bytes overruns offset %d", ErrBadSnapshot, n, r.offset)
		return nil
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b
}

// LoadSnapshotMapped memory-maps a snapshot and decompresses it in one pass.
func LoadSnapshotMapped(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("%w: empty file %s", ErrBadSnapshot, path)
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to map file: %w", err)
	}
	defer data.Unmap()

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	return decodeRecords(raw)
}
