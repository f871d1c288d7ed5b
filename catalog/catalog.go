// Package catalog loads the immutable, ordered event list that every
// clustering pass runs over.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/internal/monitoring"
)

var (
	ErrDuplicateID   = errors.New("catalog: duplicate event id")
	ErrUnknownFormat = errors.New("catalog: unknown source format")
)

// Catalog is an ordered, read-only event list.
type Catalog struct {
	events []cluster.Event
	index  map[string]int
}

// New builds a catalog, keeping input order. Events without an id are
// skipped and logged; duplicate ids fail the whole catalog.
func New(events []cluster.Event) (*Catalog, error) {
	c := &Catalog{
		events: make([]cluster.Event, 0, len(events)),
		index:  make(map[string]int, len(events)),
	}
	for i, ev := range events {
		if ev.ID == "" {
			monitoring.Logf("catalog: skipping event at position %d: missing id", i)
			continue
		}
		if _, exists := c.index[ev.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, ev.ID)
		}
		c.index[ev.ID] = len(c.events)
		c.events = append(c.events, ev)
	}
	return c, nil
}

// Len returns the number of events.
func (c *Catalog) Len() int {
	return len(c.events)
}

// Events returns a copy of the events in catalog order.
func (c *Catalog) Events() []cluster.Event {
	return slices.Clone(c.events)
}

// Lookup returns the event with the given id.
func (c *Catalog) Lookup(id string) (cluster.Event, bool) {
	idx, ok := c.index[id]
	if !ok {
		return cluster.Event{}, false
	}
	return c.events[idx], true
}

// DecodeJSON reads a JSON array of events.
func DecodeJSON(r io.Reader) (*Catalog, error) {
	var events []cluster.Event
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return New(events)
}

// LoadJSON reads a JSON event file.
func LoadJSON(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close()
	return DecodeJSON(f)
}

// Open loads a catalog, choosing the reader from the file extension:
// .json, .zst (snapshot, memory-mapped), .db / .sqlite / .sqlite3.
func Open(ctx context.Context, path string) (*Catalog, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path)
	case ".zst":
		return LoadSnapshotMapped(path)
	case ".db", ".sqlite", ".sqlite3":
		return LoadSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}
