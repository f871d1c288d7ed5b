package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/internal/timeutil"
	"github.com/s3kfm/lezhure-maps/presenter"
)

var (
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile  = flag.String("memprofile", "", "write memory profile to file")
	heapprofile = flag.String("heapprofile", "", "write heap profile to file")
	numEvents   = flag.Int("events", 2000, "number of events to generate")
	zoomLevel   = flag.Int("zoom", 11, "zoom level to profile")
	testall     = flag.Bool("testall", false, "test all configurations")
)

// Greater Los Angeles
var laBounds = cluster.Bounds{MinLat: 33.7, MinLng: -118.7, MaxLat: 34.35, MaxLng: -117.9}

func projectorFor(zoom int) cluster.WebMercator {
	return cluster.WebMercator{
		Center:    cluster.LatLng{Lat: 34.05, Lng: -118.25},
		ZoomLevel: zoom,
		Width:     1280,
		Height:    800,
	}
}

type result struct {
	clusters int
	duration time.Duration
	allocMB  float64
	gcRuns   uint32
}

// profileSelection times one clustering pass plus the layer sync it feeds.
func profileSelection(events []cluster.Event, zoom int) result {
	engine := cluster.NewEngine(cluster.DefaultOptions())
	proj := projectorFor(zoom)
	layer := presenter.NewLayer(presenter.NewRecorder(), timeutil.NewManualClock(time.Now()), presenter.DefaultStyle())
	layer.Mount(events, nil)

	var memStatsBefore, memStatsAfter runtime.MemStats
	runtime.ReadMemStats(&memStatsBefore)

	start := time.Now()
	clusters, err := engine.Partition(events, proj, zoom)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Partition failed: %v\n", err)
		return result{}
	}
	set, _ := engine.SelectRepresentatives(events, proj, zoom)
	layer.Sync(set)
	layer.Draw(proj)
	duration := time.Since(start)

	runtime.ReadMemStats(&memStatsAfter)
	return result{
		clusters: len(clusters),
		duration: duration,
		allocMB:  float64(memStatsAfter.TotalAlloc-memStatsBefore.TotalAlloc) / 1024 / 1024,
		gcRuns:   memStatsAfter.NumGC - memStatsBefore.NumGC,
	}
}

func runSingleProfile(numEvents, zoomLevel int) {
	fmt.Printf("Profiling with %d events at zoom level %d\n", numEvents, zoomLevel)

	events := cluster.GenerateTestEvents(numEvents, laBounds, 42)
	res := profileSelection(events, zoomLevel)

	fmt.Printf("Clustering completed in %v (%d clusters)\n", res.duration, res.clusters)
	fmt.Printf("Memory allocated: %.2f MB\n", res.allocMB)
}

func runProfileBattery() {
	eventCounts := []int{100, 1000, 5000, 10000}
	zoomLevels := []int{8, 11, 14, 17}

	fmt.Println("Running comprehensive profile battery...")
	fmt.Println("=======================================")

	// Table header
	fmt.Printf("%-10s | %-10s | %-10s | %-15s | %-10s | %-10s\n",
		"Events", "Zoom", "Clusters", "Duration", "Memory (MB)", "GC Runs")
	fmt.Printf("%s\n", "------------------------------------------------------------------------")

	for _, n := range eventCounts {
		events := cluster.GenerateTestEvents(n, laBounds, 42)
		for _, zoom := range zoomLevels {
			res := profileSelection(events, zoom)
			fmt.Printf("%-10d | %-10d | %-10d | %-15s | %-10.2f | %-10d\n",
				n, zoom, res.clusters, res.duration, res.allocMB, res.gcRuns)
		}

		// Add separator between event counts
		fmt.Printf("%s\n", "------------------------------------------------------------------------")
	}
}

func main() {
	flag.Parse()

	// Set up CPU profiling if requested
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			return
		}
		defer f.Close()

		fmt.Println("Starting CPU profiling...")
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			return
		}
		defer pprof.StopCPUProfile()
	}

	// Run tests
	if *testall {
		runProfileBattery()
	} else {
		runSingleProfile(*numEvents, *zoomLevel)
	}

	// Write memory profile if requested
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create memory profile: %v\n", err)
			return
		}
		defer f.Close()
		runtime.GC() // Get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write memory profile: %v\n", err)
		}
	}

	// Write heap profile if requested
	if *heapprofile != "" {
		f, err := os.Create(*heapprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create heap profile: %v\n", err)
			return
		}
		defer f.Close()

		memProfile := pprof.Lookup("heap")
		if memProfile == nil {
			fmt.Fprintf(os.Stderr, "Could not find heap profile\n")
			return
		}

		if err := memProfile.WriteTo(f, 0); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write heap profile: %v\n", err)
		}
	}
}
