package catalog

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/s3kfm/lezhure-maps/cluster"
)

const (
	snapshotMagic   uint32 = 0x4c5a4556 // "LZEV"
	snapshotVersion uint32 = 1
	snapshotExt            = ".zst"
)

var ErrBadSnapshot = errors.New("catalog: malformed snapshot")

// ErrSnapshotNotFound is returned when no snapshot carries the requested id.
var ErrSnapshotNotFound = errors.New("catalog: snapshot not found")

// SnapshotInfo describes a snapshot file on disk.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	NumEvents int       `json:"numEvents"`
	Timestamp time.Time `json:"timestamp"`
	FileSize  int64     `json:"fileSize"`
	Path      string    `json:"-"`
}

// SnapshotFilename returns a new snapshot path in dir.
// Format: events-{numEvents}e-{timestamp}-{id}.zst
func SnapshotFilename(dir string, numEvents int) string {
	timestamp := time.Now().Format("20060102-150405")
	id := uuid.New().String()[:8]
	return filepath.Join(dir, fmt.Sprintf("events-%de-%s-%s%s", numEvents, timestamp, id, snapshotExt))
}

// ParseSnapshotName extracts the fields encoded in a snapshot filename. Path
// and FileSize are left empty.
func ParseSnapshotName(name string) (SnapshotInfo, bool) {
	if !strings.HasPrefix(name, "events-") || !strings.HasSuffix(name, snapshotExt) {
		return SnapshotInfo{}, false
	}
	parts := strings.Split(strings.TrimSuffix(name, snapshotExt), "-")
	if len(parts) != 5 || !strings.HasSuffix(parts[1], "e") {
		return SnapshotInfo{}, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(parts[1], "e"))
	if err != nil {
		return SnapshotInfo{}, false
	}
	ts, err := time.ParseInLocation("20060102-150405", parts[2]+"-"+parts[3], time.Local)
	if err != nil {
		return SnapshotInfo{}, false
	}
	return SnapshotInfo{ID: parts[4], NumEvents: n, Timestamp: ts}, true
}

// ListSnapshots returns the snapshots in dir, newest first.
func ListSnapshots(dir string) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var infos []SnapshotInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, ok := ParseSnapshotName(entry.Name())
		if !ok {
			continue
		}
		if fi, err := entry.Info(); err == nil {
			info.FileSize = fi.Size()
		}
		info.Path = filepath.Join(dir, entry.Name())
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})
	return infos, nil
}

// FindSnapshot returns the snapshot in dir with the given id.
func FindSnapshot(dir, id string) (SnapshotInfo, error) {
	infos, err := ListSnapshots(dir)
	if err != nil {
		return SnapshotInfo{}, err
	}
	for _, info := range infos {
		if info.ID == id {
			return info, nil
		}
	}
	return SnapshotInfo{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
}

// errWriter keeps the first write error so the encoder body stays flat.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) write(v any) {
	if ew.err != nil {
		return
	}
	ew.err = binary.Write(ew.w, binary.LittleEndian, v)
}

func (ew *errWriter) bytes(b []byte) {
	if ew.err != nil {
		return
	}
	_, ew.err = ew.w.Write(b)
}

// SaveSnapshot writes the catalog as a zstd-compressed snapshot.
func SaveSnapshot(path string, c *Catalog) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	bufWriter := bufio.NewWriterSize(file, 1024*1024)
	enc, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer enc.Close()

	ew := &errWriter{w: enc}

	// Header, then one length-prefixed JSON record per event
	ew.write(snapshotMagic)
	ew.write(snapshotVersion)
	ew.write(uint32(len(c.events)))
	for _, ev := range c.events {
		record, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", ev.ID, err)
		}
		ew.write(uint32(len(record)))
		ew.bytes(record)
	}
	if ew.err != nil {
		return fmt.Errorf("failed to write snapshot: %w", ew.err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %w", err)
	}
	if err := bufWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot through a streaming zstd decoder.
func LoadSnapshot(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(bufio.NewReaderSize(file, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	return decodeRecords(raw)
}

// decodeRecords parses the decompressed snapshot body.
func decodeRecords(raw []byte) (*Catalog, error) {
	r := newRecordReader(raw)

	magic, version, count := r.uint32(), r.uint32(), r.uint32()
	if r.err != nil {
		return nil, r.err
	}
	if magic != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrBadSnapshot, magic)
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, version)
	}
	// Every record carries at least its 4-byte length prefix
	if uint64(count) > uint64(r.remaining()/4) {
		return nil, fmt.Errorf("%w: %d records cannot fit in %d bytes", ErrBadSnapshot, count, r.remaining())
	}

	events := make([]cluster.Event, 0, count)
	for i := uint32(0); i < count; i++ {
		record := r.bytes(int(r.uint32()))
		if r.err != nil {
			return nil, fmt.Errorf("record %d: %w", i, r.err)
		}
		var ev cluster.Event
		if err := json.Unmarshal(record, &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return New(events)
}
