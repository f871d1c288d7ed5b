package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3kfm/lezhure-maps/catalog"
	"github.com/s3kfm/lezhure-maps/cluster"
)

func TestGenerateSnapshotReportsID(t *testing.T) {
	dir := t.TempDir()
	bounds := cluster.Bounds{MinLat: 34, MinLng: -118.5, MaxLat: 34.2, MaxLng: -118.1}

	info, err := generateSnapshot(dir, 12, bounds)
	require.NoError(t, err)
	assert.Len(t, info.ID, 8)
	assert.Equal(t, 12, info.NumEvents)
	assert.Positive(t, info.FileSize)

	found, err := catalog.FindSnapshot(dir, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.Path, found.Path)

	listed, err := listSnapshots(dir)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, info.ID, listed[0].ID)
}

func TestListSnapshotsMissingDir(t *testing.T) {
	listed, err := listSnapshots(t.TempDir() + "/missing")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, formatFileSize(test.size))
	}
}
