package cluster

import (
	"runtime"
	"testing"
)

var benchBounds = Bounds{MinLat: 33.7, MinLng: -118.7, MaxLat: 34.3, MaxLng: -117.9}

// benchmarkSelection runs one clustering pass per iteration
func benchmarkSelection(b *testing.B, numEvents int, zoom int) {
	engine := NewEngine(DefaultOptions())
	events := GenerateTestEvents(numEvents, benchBounds, 42)
	proj := WebMercator{Center: LatLng{Lat: 34.0522, Lng: -118.2437}, ZoomLevel: zoom}

	// Track memory usage before and after
	var memStatsBefore, memStatsAfter runtime.MemStats
	runtime.ReadMemStats(&memStatsBefore)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.SelectRepresentatives(events, proj, zoom)
	}
	b.StopTimer()

	runtime.ReadMemStats(&memStatsAfter)
	allocMB := float64(memStatsAfter.TotalAlloc-memStatsBefore.TotalAlloc) / 1024 / 1024
	b.ReportMetric(allocMB/float64(b.N), "MB/op")
}

func BenchmarkSelectionSmall_LowZoom(b *testing.B) {
	benchmarkSelection(b, 100, 8)
}

func BenchmarkSelectionSmall_CityZoom(b *testing.B) {
	benchmarkSelection(b, 100, 11)
}

func BenchmarkSelectionSmall_StreetZoom(b *testing.B) {
	benchmarkSelection(b, 100, 16)
}

func BenchmarkSelectionMedium_LowZoom(b *testing.B) {
	benchmarkSelection(b, 1000, 8)
}

func BenchmarkSelectionMedium_CityZoom(b *testing.B) {
	benchmarkSelection(b, 1000, 11)
}

// At street zoom almost nothing overlaps, the O(n^2) worst case
func BenchmarkSelectionMedium_StreetZoom(b *testing.B) {
	benchmarkSelection(b, 1000, 16)
}
