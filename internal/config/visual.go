package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/presenter"
)

// VisualConfig holds the clustering, marker styling, and session settings.
// Every field is optional; the Get* methods return the production default
// for fields left out of the JSON.
type VisualConfig struct {
	// Clustering
	ClusterDistance *float64 `json:"cluster_distance_px,omitempty"`
	ScaleByZoom     *bool    `json:"scale_by_zoom,omitempty"`
	LogClustering   *bool    `json:"log_clustering,omitempty"`

	// Marker style
	DotSize       *float64 `json:"dot_size_px,omitempty"`
	ImageSize     *float64 `json:"image_size_px,omitempty"`
	TitleHeight   *float64 `json:"title_height_px,omitempty"`
	TitleMaxWidth *float64 `json:"title_max_width_px,omitempty"`
	Gap           *float64 `json:"gap_px,omitempty"`
	EntryScale    *float64 `json:"entry_scale,omitempty"`
	EnterDuration *string  `json:"enter_duration,omitempty"` // duration string like "250ms"
	ExitDuration  *string  `json:"exit_duration,omitempty"`

	// Initial view
	CenterLat      *float64 `json:"center_lat,omitempty"`
	CenterLng      *float64 `json:"center_lng,omitempty"`
	Zoom           *int     `json:"zoom,omitempty"`
	ViewportWidth  *float64 `json:"viewport_width_px,omitempty"`
	ViewportHeight *float64 `json:"viewport_height_px,omitempty"`

	// Sessions
	MaxSessions     *int    `json:"max_sessions,omitempty"`
	SessionIdle     *string `json:"session_idle,omitempty"`
	CleanupInterval *string `json:"cleanup_interval,omitempty"`
}

const maxFileSize = 1 * 1024 * 1024 // 1MB

// LoadVisualConfig reads a VisualConfig from a .json file of at most 1MB.
func LoadVisualConfig(path string) (*VisualConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &VisualConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *VisualConfig) Validate() error {
	positive := map[string]*float64{
		"cluster_distance_px": c.ClusterDistance,
		"dot_size_px":         c.DotSize,
		"image_size_px":       c.ImageSize,
		"title_height_px":     c.TitleHeight,
		"title_max_width_px":  c.TitleMaxWidth,
		"viewport_width_px":   c.ViewportWidth,
		"viewport_height_px":  c.ViewportHeight,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	if c.Gap != nil && *c.Gap < 0 {
		return fmt.Errorf("gap_px must not be negative, got %f", *c.Gap)
	}
	if c.EntryScale != nil && (*c.EntryScale <= 0 || *c.EntryScale > 1) {
		return fmt.Errorf("entry_scale must be in (0, 1], got %f", *c.EntryScale)
	}
	if c.CenterLat != nil && (*c.CenterLat < -90 || *c.CenterLat > 90) {
		return fmt.Errorf("center_lat must be between -90 and 90, got %f", *c.CenterLat)
	}
	if c.CenterLng != nil && (*c.CenterLng < -180 || *c.CenterLng > 180) {
		return fmt.Errorf("center_lng must be between -180 and 180, got %f", *c.CenterLng)
	}
	if c.Zoom != nil && (*c.Zoom < 0 || *c.Zoom > 22) {
		return fmt.Errorf("zoom must be between 0 and 22, got %d", *c.Zoom)
	}
	if c.MaxSessions != nil && *c.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", *c.MaxSessions)
	}

	durations := map[string]*string{
		"enter_duration":   c.EnterDuration,
		"exit_duration":    c.ExitDuration,
		"session_idle":     c.SessionIdle,
		"cleanup_interval": c.CleanupInterval,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, *v)
		}
	}
	// The sweeper ticks on these, so zero is as invalid as negative.
	for name, v := range map[string]*string{
		"session_idle":     c.SessionIdle,
		"cleanup_interval": c.CleanupInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		if d, _ := time.ParseDuration(*v); d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}
	return nil
}

func getFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func getDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func getPositiveDuration(v *string, def time.Duration) time.Duration {
	if d := getDuration(v, def); d > 0 {
		return d
	}
	return def
}

// GetClusterDistance returns the anchor distance threshold in pixels.
func (c *VisualConfig) GetClusterDistance() float64 {
	return getFloat(c.ClusterDistance, cluster.DefaultDistance)
}

// GetScaleByZoom returns whether world points are scaled by 2^zoom.
func (c *VisualConfig) GetScaleByZoom() bool {
	if c.ScaleByZoom == nil {
		return true // default
	}
	return *c.ScaleByZoom
}

// GetLogClustering returns whether each clustering pass is logged.
func (c *VisualConfig) GetLogClustering() bool {
	return c.LogClustering != nil && *c.LogClustering
}

// GetCenter returns the initial map centre.
func (c *VisualConfig) GetCenter() cluster.LatLng {
	// Downtown Los Angeles, where the event list is centred.
	return cluster.LatLng{
		Lat: getFloat(c.CenterLat, 34.0522),
		Lng: getFloat(c.CenterLng, -118.2437),
	}
}

// GetZoom returns the initial zoom level.
func (c *VisualConfig) GetZoom() int {
	if c.Zoom == nil {
		return 11 // default
	}
	return *c.Zoom
}

// GetViewportSize returns the initial viewport size in pixels.
func (c *VisualConfig) GetViewportSize() (width, height float64) {
	return getFloat(c.ViewportWidth, 1280), getFloat(c.ViewportHeight, 800)
}

// GetMaxSessions returns the session limit of a runner.
func (c *VisualConfig) GetMaxSessions() int {
	if c.MaxSessions == nil {
		return 100 // default
	}
	return *c.MaxSessions
}

// GetSessionIdle returns how long a session may go unused before eviction.
func (c *VisualConfig) GetSessionIdle() time.Duration {
	return getPositiveDuration(c.SessionIdle, 30*time.Minute)
}

// GetCleanupInterval returns how often idle sessions are swept.
func (c *VisualConfig) GetCleanupInterval() time.Duration {
	return getPositiveDuration(c.CleanupInterval, 5*time.Minute)
}

// EngineOptions converts the clustering settings.
func (c *VisualConfig) EngineOptions() cluster.Options {
	return cluster.Options{
		Distance:    c.GetClusterDistance(),
		ScaleByZoom: c.GetScaleByZoom(),
		Log:         c.GetLogClustering(),
	}
}

// Style converts the marker settings, starting from presenter.DefaultStyle.
func (c *VisualConfig) Style() presenter.Style {
	s := presenter.DefaultStyle()
	s.DotSize = getFloat(c.DotSize, s.DotSize)
	s.ImageSize = getFloat(c.ImageSize, s.ImageSize)
	s.TitleHeight = getFloat(c.TitleHeight, s.TitleHeight)
	s.TitleMaxWidth = getFloat(c.TitleMaxWidth, s.TitleMaxWidth)
	s.Gap = getFloat(c.Gap, s.Gap)
	s.EntryScale = getFloat(c.EntryScale, s.EntryScale)
	s.EnterDuration = getDuration(c.EnterDuration, s.EnterDuration)
	s.ExitDuration = getDuration(c.ExitDuration, s.ExitDuration)
	return s
}
