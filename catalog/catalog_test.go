package catalog

import (
	"context"
	"database/sql"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func loadFixture(t *testing.T) *Catalog {
	t.Helper()
	c, err := LoadJSON(filepath.Join("testdata", "events.json"))
	require.NoError(t, err)
	return c
}

func TestLoadJSON(t *testing.T) {
	c := loadFixture(t)
	require.Equal(t, 3, c.Len())

	events := c.Events()
	assert.Equal(t, []string{"evt-sunset-jazz", "evt-taco-crawl", "evt-hike"},
		[]string{events[0].ID, events[1].ID, events[2].ID})

	jazz, ok := c.Lookup("evt-sunset-jazz")
	require.True(t, ok)
	assert.Equal(t, "https://img.example.com/sunset-jazz.jpg", jazz.PrimaryImageURL())
	assert.Equal(t, "@grandpark", jazz.Host.InstagramHandle)
	assert.Equal(t, []cluster.Tag{{ID: "music", Name: "Music"}}, jazz.Tags)

	taco, _ := c.Lookup("evt-taco-crawl")
	assert.Empty(t, taco.PrimaryImageURL())

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestEventsReturnsCopy(t *testing.T) {
	c := loadFixture(t)
	events := c.Events()
	events[0].Title = "changed"

	again, _ := c.Lookup(events[0].ID)
	assert.Equal(t, "Sunset Jazz", again.Title)
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New([]cluster.Event{{ID: "a"}, {ID: "a"}})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestNewSkipsEventsWithoutID(t *testing.T) {
	c, err := New([]cluster.Event{{ID: "a"}, {Title: "no id"}, {ID: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	b, ok := c.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, "b", b.ID)
	assert.Equal(t, []string{"a", "b"}, []string{c.Events()[0].ID, c.Events()[1].ID})
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	_, err := DecodeJSON(strings.NewReader(`{"not":"an array"}`))
	assert.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := loadFixture(t)
	path := SnapshotFilename(t.TempDir(), c.Len())
	require.NoError(t, SaveSnapshot(path, c))

	streamed, err := LoadSnapshot(path)
	require.NoError(t, err)
	mapped, err := LoadSnapshotMapped(path)
	require.NoError(t, err)

	if diff := cmp.Diff(c.Events(), streamed.Events(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("streamed snapshot mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(c.Events(), mapped.Events(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mapped snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotLargeCatalog(t *testing.T) {
	bounds := cluster.Bounds{MinLat: 25, MinLng: -125, MaxLat: 49, MaxLng: -67}
	c, err := New(cluster.GenerateTestEvents(2000, bounds, 3))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "big.zst")
	require.NoError(t, SaveSnapshot(path, c))

	loaded, err := LoadSnapshotMapped(path)
	require.NoError(t, err)
	assert.Equal(t, c.Len(), loaded.Len())
	if diff := cmp.Diff(c.Events(), loaded.Events(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("large snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotCorruption(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.zst")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err := LoadSnapshotMapped(empty)
	assert.ErrorIs(t, err, ErrBadSnapshot)

	garbage := filepath.Join(dir, "garbage.zst")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not zstd"), 0644))
	_, err = LoadSnapshot(garbage)
	assert.Error(t, err)

	_, err = decodeRecords([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrBadSnapshot)

	_, err = decodeRecords([]byte{0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrBadSnapshot)

	// A valid header whose record count overstates the body
	header := binary.LittleEndian.AppendUint32(nil, snapshotMagic)
	header = binary.LittleEndian.AppendUint32(header, snapshotVersion)
	header = binary.LittleEndian.AppendUint32(header, 0xFFFFFFFF)
	_, err = decodeRecords(header)
	assert.ErrorIs(t, err, ErrBadSnapshot)
	assert.Contains(t, err.Error(), "cannot fit")

	_, err = decodeRecords(append(header[:8:8], 2, 0, 0, 0, 0, 0, 0, 0))
	assert.ErrorIs(t, err, ErrBadSnapshot)
}

func TestListSnapshots(t *testing.T) {
	dir := t.TempDir()
	c := loadFixture(t)

	path := SnapshotFilename(dir, c.Len())
	require.NoError(t, SaveSnapshot(path, c))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	infos, err := ListSnapshots(dir)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 3, infos[0].NumEvents)
	assert.Positive(t, infos[0].FileSize)
	assert.Len(t, infos[0].ID, 8)

	found, err := FindSnapshot(dir, infos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, path, found.Path)

	_, err = FindSnapshot(dir, "nope")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := loadFixture(t)
	path := filepath.Join(t.TempDir(), "events.db")

	require.NoError(t, SaveSQLite(ctx, path, c))
	loaded, err := LoadSQLite(ctx, path)
	require.NoError(t, err)

	if diff := cmp.Diff(c.Events(), loaded.Events(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("sqlite mismatch (-want +got):\n%s", diff)
	}

	// Saving again replaces rather than appends
	require.NoError(t, SaveSQLite(ctx, path, c))
	loaded, err = LoadSQLite(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
}

func TestSQLiteSkipsMalformedRows(t *testing.T) {
	ctx := context.Background()
	c := loadFixture(t)
	path := filepath.Join(t.TempDir(), "events.db")
	require.NoError(t, SaveSQLite(ctx, path, c))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE events SET host_json = '{' WHERE id = 'evt-taco-crawl'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	loaded, err := LoadSQLite(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	_, ok := loaded.Lookup("evt-taco-crawl")
	assert.False(t, ok)
	_, ok = loaded.Lookup("evt-hike")
	assert.True(t, ok)
}

func TestOpenDispatchesOnExtension(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := loadFixture(t)

	snap := filepath.Join(dir, "events.zst")
	require.NoError(t, SaveSnapshot(snap, c))
	db := filepath.Join(dir, "events.sqlite")
	require.NoError(t, SaveSQLite(ctx, db, c))

	for _, path := range []string{filepath.Join("testdata", "events.json"), snap, db} {
		got, err := Open(ctx, path)
		require.NoError(t, err, path)
		if diff := cmp.Diff(c.Events(), got.Events(), cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", path, diff)
		}
	}

	_, err := Open(ctx, filepath.Join(dir, "events.csv"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
