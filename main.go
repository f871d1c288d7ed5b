package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/s3kfm/lezhure-maps/api"
	"github.com/s3kfm/lezhure-maps/catalog"
	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/internal/config"
	"github.com/s3kfm/lezhure-maps/runner"
)

const defaultDataDir = "data/events"

// SnapshotInfo is the snapshot listing shown by the single-process server.
type SnapshotInfo struct {
	ID            string `json:"id"`
	NumEvents     int    `json:"numEvents"`
	Timestamp     string `json:"timestamp"`
	FileSize      int64  `json:"fileSize"`
	FormattedSize string `json:"formattedSize"`
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func listSnapshots(dir string) ([]SnapshotInfo, error) {
	infos, err := catalog.ListSnapshots(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []SnapshotInfo{}, nil
		}
		return nil, err
	}
	out := make([]SnapshotInfo, len(infos))
	for i, info := range infos {
		out[i] = SnapshotInfo{
			ID:            info.ID,
			NumEvents:     info.NumEvents,
			Timestamp:     info.Timestamp.Format(time.RFC3339),
			FileSize:      info.FileSize,
			FormattedSize: formatFileSize(info.FileSize),
		}
	}
	return out, nil
}

// generateSnapshot creates n synthetic events inside bounds and saves them in
// dir, the way the runner does for generated sessions.
func generateSnapshot(dir string, n int, bounds cluster.Bounds) (catalog.SnapshotInfo, error) {
	fmt.Printf("Generating %d events...\n", n)
	c, err := catalog.New(cluster.GenerateTestEvents(n, bounds, time.Now().UnixNano()))
	if err != nil {
		return catalog.SnapshotInfo{}, err
	}

	savePath := catalog.SnapshotFilename(dir, n)
	info, ok := catalog.ParseSnapshotName(filepath.Base(savePath))
	if !ok {
		return catalog.SnapshotInfo{}, fmt.Errorf("unparseable snapshot name %s", filepath.Base(savePath))
	}
	info.Path = savePath

	fmt.Printf("Saving events to %s...\n", savePath)
	saveStart := time.Now()
	if err := catalog.SaveSnapshot(savePath, c); err != nil {
		return catalog.SnapshotInfo{}, fmt.Errorf("failed to save snapshot: %w", err)
	}
	if fileInfo, err := os.Stat(savePath); err == nil {
		info.FileSize = fileInfo.Size()
		fmt.Printf("Saved snapshot in %v (file size: %s)\n", time.Since(saveStart), formatFileSize(fileInfo.Size()))
	}
	return info, nil
}

// exportCatalog writes the catalog to path as a snapshot or SQLite database.
func exportCatalog(ctx context.Context, c *catalog.Catalog, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst":
		return catalog.SaveSnapshot(path, c)
	case ".db", ".sqlite", ".sqlite3":
		return catalog.SaveSQLite(ctx, path, c)
	}
	return fmt.Errorf("%w: %s", catalog.ErrUnknownFormat, path)
}

func main() {
	port := flag.Int("port", 8000, "HTTP port")
	eventsPath := flag.String("events", "", "Default event source (.json, .zst, .db)")
	dataDir := flag.String("data", defaultDataDir, "Directory for event snapshots")
	configPath := flag.String("config", "", "Visual config JSON file")
	generate := flag.Int("generate", 0, "Generate a snapshot with this many events at startup")
	export := flag.String("export", "", "Write the -events catalog to this .zst or .db file and exit")
	flag.Parse()

	cfg := &config.VisualConfig{}
	if *configPath != "" {
		var err error
		cfg, err = config.LoadVisualConfig(*configPath)
		if err != nil {
			fmt.Printf("Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	// Ensure snapshot directory exists
	absPath, _ := filepath.Abs(*dataDir)
	fmt.Printf("Ensuring snapshot directory exists: %s\n", absPath)
	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		fmt.Printf("Error creating snapshot directory: %v\n", err)
	}

	var events *catalog.Catalog
	if *eventsPath != "" {
		var err error
		events, err = catalog.Open(context.Background(), *eventsPath)
		if err != nil {
			fmt.Printf("Failed to load events: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded %d events from %s\n", events.Len(), *eventsPath)
	}

	if *export != "" {
		if events == nil {
			fmt.Println("-export needs -events")
			os.Exit(1)
		}
		if err := exportCatalog(context.Background(), events, *export); err != nil {
			fmt.Printf("Export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported %d events to %s\n", events.Len(), *export)
		return
	}

	center := cfg.GetCenter()
	area := cluster.Bounds{
		MinLat: center.Lat - 0.25,
		MinLng: center.Lng - 0.25,
		MaxLat: center.Lat + 0.25,
		MaxLng: center.Lng + 0.25,
	}
	if *generate > 0 {
		if _, err := generateSnapshot(*dataDir, *generate, area); err != nil {
			fmt.Printf("ERROR: %v\n", err)
		}
	}

	mapRunner := runner.NewMapRunner(runner.Options{
		Catalog: events,
		DataDir: *dataDir,
		Config:  cfg,
	})
	defer mapRunner.Close()

	r := api.NewServer(mapRunner).Router(gin.Logger())

	// Snapshot management for the single-process setup
	r.GET("/api/snapshots", func(c *gin.Context) {
		snapshots, err := listSnapshots(*dataDir)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snapshots)
	})

	r.POST("/api/snapshots", func(c *gin.Context) {
		var req struct {
			NumEvents int `json:"numEvents"`
		}
		if err := c.BindJSON(&req); err != nil || req.NumEvents <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		info, err := generateSnapshot(*dataDir, req.NumEvents, area)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": info.ID, "numEvents": req.NumEvents})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Printf("Starting server on :%d...\n", *port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("Server error: %v\n", err)
		}
	}()

	<-quit
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Printf("Forced shutdown: %v\n", err)
	}
}
